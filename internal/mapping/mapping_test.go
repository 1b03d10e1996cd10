// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package mapping

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/saferwall/cimparse/internal/cimfmt"
)

func u32le(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// buildModernMapping encodes a non-XP mapping record: header plus a
// flat array of (page, crc, free, used, first, second) entries.
func buildModernMapping(version uint32, pages []uint32) []byte {
	var buf bytes.Buffer
	buf.Write(u32le(cimfmt.MappingSignature))
	buf.Write(u32le(version))
	buf.Write(u32le(1)) // first id
	buf.Write(u32le(0)) // second id (first-1 == second -> not XP)
	buf.Write(u32le(uint32(len(pages) * 10)))
	buf.Write(u32le(uint32(len(pages))))
	for _, p := range pages {
		buf.Write(u32le(p))
		buf.Write(u32le(0)) // crc
		buf.Write(u32le(0)) // free
		buf.Write(u32le(0)) // used
		buf.Write(u32le(0)) // first
		buf.Write(u32le(0)) // second
	}
	return buf.Bytes()
}

func TestSelectCurrentPicksHighestVersion(t *testing.T) {
	m1 := buildModernMapping(1, []uint32{0, 1})
	m2 := buildModernMapping(3, []uint32{0, 1})
	m3 := buildModernMapping(2, []uint32{0, 1})

	streams := []io.ReadSeeker{
		bytes.NewReader(m1),
		bytes.NewReader(m2),
		bytes.NewReader(m3),
	}

	isXP, winner, err := SelectCurrent(streams)
	if err != nil {
		t.Fatalf("SelectCurrent: %v", err)
	}
	if isXP {
		t.Errorf("SelectCurrent isXP = true, want false for a modern-layout record")
	}
	if winner != 1 {
		t.Errorf("SelectCurrent winner = %d, want 1 (highest version)", winner)
	}
}

func TestSelectCurrentRejectsBadSignature(t *testing.T) {
	bad := append([]byte(nil), buildModernMapping(1, []uint32{0})...)
	binary.LittleEndian.PutUint32(bad[0:4], 0xFFFFFFFF)

	_, _, err := SelectCurrent([]io.ReadSeeker{bytes.NewReader(bad)})
	if err == nil {
		t.Fatal("SelectCurrent with a corrupt signature: want error, got nil")
	}
}

func TestNewAndEntry(t *testing.T) {
	raw := buildModernMapping(1, []uint32{5, cimfmt.UnmappedPage, 7})
	s, err := New(bytes.NewReader(raw), false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.EntryCount() != 3 {
		t.Fatalf("EntryCount() = %d, want 3", s.EntryCount())
	}

	e, err := s.Entry(0)
	if err != nil || e.PageNumber != 5 {
		t.Fatalf("Entry(0) = %+v, %v; want PageNumber 5, nil", e, err)
	}

	if _, err := s.Entry(1); err == nil {
		t.Fatal("Entry(1) over an unmapped page: want error, got nil")
	}

	if _, err := s.Entry(99); err == nil {
		t.Fatal("Entry(99) out of range: want error, got nil")
	}
}

func TestReverse(t *testing.T) {
	raw := buildModernMapping(1, []uint32{5, 6, cimfmt.UnmappedPage})
	s, err := New(bytes.NewReader(raw), false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logical, err := s.Reverse(6)
	if err != nil || logical != 1 {
		t.Fatalf("Reverse(6) = %d, %v; want 1, nil", logical, err)
	}

	if _, err := s.Reverse(123); err == nil {
		t.Fatal("Reverse(123) of an unmapped physical page: want error, got nil")
	}
}

func TestConsumedMatchesRecordLength(t *testing.T) {
	raw := buildModernMapping(1, []uint32{1, 2, 3})
	s, err := New(bytes.NewReader(raw), false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Consumed() != len(raw) {
		t.Fatalf("Consumed() = %d, want %d (no trailing footer in this fixture)", s.Consumed(), len(raw))
	}
}

func TestIsXPMappingHeuristics(t *testing.T) {
	tests := []struct {
		name string
		h    Header
		want bool
	}{
		{
			name: "sparse entry count implies XP",
			h:    Header{Signature: cimfmt.MappingSignature, PhysicalPageCount: 100, EntryCount: 5},
			want: true,
		},
		{
			name: "mismatched ids imply XP",
			h:    Header{Signature: cimfmt.MappingSignature, PhysicalPageCount: 10, EntryCount: 10, HasIDs: true, FirstID: 9, SecondID: 1},
			want: true,
		},
		{
			name: "consistent modern header",
			h:    Header{Signature: cimfmt.MappingSignature, PhysicalPageCount: 10, EntryCount: 10, HasIDs: true, FirstID: 2, SecondID: 1},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsXPMapping(tt.h)
			if err != nil {
				t.Fatalf("IsXPMapping: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsXPMapping(%+v) = %v, want %v", tt.h, got, tt.want)
			}
		})
	}
}
