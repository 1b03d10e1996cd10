// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package cimparse

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/saferwall/cimparse/internal/cimfmt"
)

func cimU32(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }
func cimU16(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }

// buildValidModernMapping encodes a one-entry modern mapping record
// whose single entry maps logical page 0 to physical page 0, with
// UsedSpace set to 0 so the index store picks physical page 0 as its
// root.
func buildValidModernMapping(version uint32) []byte {
	var buf bytes.Buffer
	buf.Write(cimU32(cimfmt.MappingSignature))
	buf.Write(cimU32(version))
	buf.Write(cimU32(1)) // first id
	buf.Write(cimU32(0)) // second id
	buf.Write(cimU32(10))
	buf.Write(cimU32(1))
	// single entry: page=0, crc=0, free=0, used=0 (root page number), first=0, second=0
	buf.Write(cimU32(0))
	buf.Write(cimU32(0))
	buf.Write(cimU32(0))
	buf.Write(cimU32(0))
	buf.Write(cimU32(0))
	buf.Write(cimU32(0))
	return buf.Bytes()
}

// buildEmptyRootIndexPage encodes a zero-record index page: valid but
// with no keys, so every Lookup on it returns no matches.
func buildEmptyRootIndexPage() []byte {
	var buf bytes.Buffer
	buf.Write(cimU32(0))  // signature
	buf.Write(cimU32(0))  // logical id
	buf.Write(cimU32(0))  // pad
	buf.Write(cimU32(0))  // root_page
	buf.Write(cimU32(0))  // record_count
	buf.Write(cimU32(cimfmt.IndexPageInvalid)) // children[0], the only child slot
	buf.Write(cimU16(0))                       // string definition table size
	buf.Write(cimU16(0))                       // string table size
	buf.Write(cimU16(0))                       // stringTable[0]

	out := buf.Bytes()
	padded := make([]byte, cimfmt.IndexPageSize)
	copy(padded, out)
	return padded
}

func newTestCIM(t *testing.T) *CIM {
	t.Helper()

	mapRaw := buildValidModernMapping(1)
	var streams []io.ReadSeeker
	for i := 0; i < 3; i++ {
		streams = append(streams, bytes.NewReader(mapRaw))
	}

	indexBacking := bytes.NewReader(buildEmptyRootIndexPage())
	objectsBacking := bytes.NewReader(make([]byte, cimfmt.DataPageSize))

	cim, err := New(indexBacking, objectsBacking, streams, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return cim
}

func TestNewRequiresThreeMappingStreams(t *testing.T) {
	indexBacking := bytes.NewReader(make([]byte, cimfmt.IndexPageSize))
	objectsBacking := bytes.NewReader(make([]byte, cimfmt.DataPageSize))

	_, err := New(indexBacking, objectsBacking, []io.ReadSeeker{bytes.NewReader(nil)}, nil)
	if err == nil {
		t.Fatal("New with one mapping stream: want error, got nil")
	}
}

func TestNewRejectsBadMappingSignature(t *testing.T) {
	bad := append([]byte(nil), buildValidModernMapping(1)...)
	binary.LittleEndian.PutUint32(bad[0:4], 0xFFFFFFFF)

	var streams []io.ReadSeeker
	for i := 0; i < 3; i++ {
		streams = append(streams, bytes.NewReader(bad))
	}

	indexBacking := bytes.NewReader(make([]byte, cimfmt.IndexPageSize))
	objectsBacking := bytes.NewReader(make([]byte, cimfmt.DataPageSize))

	_, err := New(indexBacking, objectsBacking, streams, nil)
	if err == nil {
		t.Fatal("New with a corrupt mapping signature: want error, got nil")
	}
}

func TestNewBuildsASession(t *testing.T) {
	cim := newTestCIM(t)
	if cim.IsXP() {
		t.Error("IsXP() = true, want false for a modern-layout fixture")
	}
	if cim.Root().Name() != rootNamespaceName {
		t.Errorf("Root().Name() = %q, want %q", cim.Root().Name(), rootNamespaceName)
	}
	if cim.System().Name() != systemNamespaceName {
		t.Errorf("System().Name() = %q, want %q", cim.System().Name(), systemNamespaceName)
	}
}

func TestNamespaceCacheReusesInstances(t *testing.T) {
	cim := newTestCIM(t)
	a := cim.Root()
	b := cim.Root()
	if a != b {
		t.Error("CIM.Root() returned distinct Namespace instances across calls, want the cached one")
	}
}

func TestClassLookupOnEmptyIndexIsReferenceNotFound(t *testing.T) {
	cim := newTestCIM(t)
	_, err := cim.Root().Class_("Win32_NoSuchClass")
	if err == nil {
		t.Fatal("Class_ on an empty index: want an error, got nil")
	}
	if _, ok := err.(*ReferenceNotFoundError); !ok {
		t.Fatalf("Class_ on an empty index: err = %T (%v), want *ReferenceNotFoundError", err, err)
	}
}
