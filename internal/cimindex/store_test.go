// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package cimindex

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/saferwall/cimparse/internal/cimfmt"
	"github.com/saferwall/cimparse/internal/mapping"
)

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

// buildSinglePage encodes one leaf index page (no children, no parent)
// holding a single key, padded out to the fixed on-disk page size.
func buildSinglePage(key string) []byte {
	var buf bytes.Buffer
	buf.Write(u32(0x1234)) // signature, unchecked by the parser
	buf.Write(u32(0))      // logical id, unused
	buf.Write(u32(0))      // pad
	buf.Write(u32(0))      // root_page: this page is its own root
	buf.Write(u32(1))      // record_count

	buf.Write(u32(0)) // unk0[0]

	buf.Write(u32(cimfmt.IndexPageInvalid)) // children[0]
	buf.Write(u32(cimfmt.IndexPageInvalid)) // children[1]

	buf.Write(u16(0)) // keys[0]: string-definition index

	buf.Write(u16(2)) // string definition table size
	buf.Write(u16(1)) // stringDefTable[0]: part count
	buf.Write(u16(0)) // stringDefTable[1]: part -> stringTable[0]

	buf.Write(u16(0)) // string table size
	buf.Write(u16(0)) // stringTable[0]: offset 0 into tail

	buf.WriteString(key)
	buf.WriteByte(0)

	out := buf.Bytes()
	padded := make([]byte, cimfmt.IndexPageSize)
	copy(padded, out)
	return padded
}

func buildXPMapping(physicalPages []uint32) []byte {
	var buf bytes.Buffer
	buf.Write(u32(cimfmt.MappingSignature))
	buf.Write(u32(1))
	buf.Write(u32(uint32(len(physicalPages))))
	buf.Write(u32(uint32(len(physicalPages))))
	for _, p := range physicalPages {
		buf.Write(u32(p))
	}
	return buf.Bytes()
}

func newSingleKeyStore(t *testing.T, key string) *Store {
	t.Helper()

	m, err := mapping.New(bytes.NewReader(buildXPMapping([]uint32{0})), true)
	if err != nil {
		t.Fatalf("mapping.New: %v", err)
	}

	backing := buildSinglePage(key)
	s, err := New(bytes.NewReader(backing), m)
	if err != nil {
		t.Fatalf("cimindex.New: %v", err)
	}
	return s
}

func TestLookupExactMatch(t *testing.T) {
	s := newSingleKeyStore(t, "bravo")

	matches, err := s.Lookup("bravo")
	if err != nil {
		t.Fatalf("Lookup(bravo): %v", err)
	}
	if len(matches) != 1 || matches[0] != "bravo" {
		t.Fatalf("Lookup(bravo) = %v, want [bravo]", matches)
	}
}

func TestLookupSubstringInclusive(t *testing.T) {
	s := newSingleKeyStore(t, "bravo")

	matches, err := s.Lookup("brav")
	if err != nil {
		t.Fatalf("Lookup(brav): %v", err)
	}
	if len(matches) != 1 || matches[0] != "bravo" {
		t.Fatalf("Lookup(brav) = %v, want [bravo] (substring-inclusive)", matches)
	}
}

func TestLookupNoMatch(t *testing.T) {
	s := newSingleKeyStore(t, "bravo")

	matches, err := s.Lookup("zzz")
	if err != nil {
		t.Fatalf("Lookup(zzz): %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("Lookup(zzz) = %v, want no matches", matches)
	}

	matches, err = s.Lookup("aaa")
	if err != nil {
		t.Fatalf("Lookup(aaa): %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("Lookup(aaa) = %v, want no matches", matches)
	}
}

func TestLookupCachesResults(t *testing.T) {
	s := newSingleKeyStore(t, "bravo")

	first, err := s.Lookup("bravo")
	if err != nil {
		t.Fatalf("Lookup(bravo): %v", err)
	}
	second, err := s.Lookup("bravo")
	if err != nil {
		t.Fatalf("Lookup(bravo) second call: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("cached Lookup(bravo) result diverged: %v vs %v", first, second)
	}
}
