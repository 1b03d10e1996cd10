// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package classdef

import (
	"testing"
	"time"

	"github.com/saferwall/cimparse/internal/cimfmt"
)

func TestCarrierSizeArrayIsAlwaysFour(t *testing.T) {
	tt := CIMTypeTuple{Type: cimfmt.TypeUint8, ArrayState: cimfmt.ArrayStateArray}
	size, err := tt.CarrierSize()
	if err != nil {
		t.Fatalf("CarrierSize: %v", err)
	}
	if size != 4 {
		t.Fatalf("CarrierSize(array of uint8) = %d, want 4", size)
	}
}

func TestCarrierSizeScalarMatchesElementSize(t *testing.T) {
	tt := CIMTypeTuple{Type: cimfmt.TypeUint64}
	size, err := tt.CarrierSize()
	if err != nil {
		t.Fatalf("CarrierSize: %v", err)
	}
	if size != 8 {
		t.Fatalf("CarrierSize(uint64) = %d, want 8", size)
	}
}

func TestReadCarrierLittleEndian(t *testing.T) {
	c := cimfmt.NewCursor([]byte{0xEF, 0xBE, 0xAD, 0xDE})
	v, err := readCarrier(c, CIMTypeTuple{Type: cimfmt.TypeUint32})
	if err != nil {
		t.Fatalf("readCarrier: %v", err)
	}
	if v != 0xDEADBEEF {
		t.Fatalf("readCarrier = %#x, want 0xdeadbeef", v)
	}
}

func TestFileTimeEpoch(t *testing.T) {
	got := FileTime(0)
	want := time.Date(1601, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("FileTime(0) = %v, want %v", got, want)
	}
}

func TestFileTimeOneSecond(t *testing.T) {
	// FILETIME counts 100ns ticks; 10_000_000 ticks = 1 second.
	got := FileTime(10_000_000)
	want := time.Date(1601, 1, 1, 0, 0, 1, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("FileTime(1e7) = %v, want %v", got, want)
	}
}

func TestParseCIMType(t *testing.T) {
	c := cimfmt.NewCursor([]byte{0x08, 0x20, 0x01, 0x00}) // string, array, unk=1
	tup, err := parseCIMType(c)
	if err != nil {
		t.Fatalf("parseCIMType: %v", err)
	}
	if tup.Type != cimfmt.TypeString || !tup.IsArray() || tup.Unk != 1 {
		t.Fatalf("parseCIMType = %+v, want Type=String IsArray=true Unk=1", tup)
	}
}
