// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
// Package classdef parses class definitions and class instances: the
// qualifier and property reference lists, the default-value metadata
// blob, and the property/method data regions (spec §4.6).
//
// Grounded on dissect/cim/classes.py, restructured around the
// bounds-checked cimfmt.Cursor the way the teacher library threads a
// single byte buffer through structUnpack-style readers.
package classdef

import (
	"fmt"
	"time"

	"github.com/saferwall/cimparse/internal/cimfmt"
)

// CIMTypeTuple is the on-disk {type, array_state, unk} triple that
// tags every property and qualifier value (spec §3 "Property").
type CIMTypeTuple struct {
	Type       cimfmt.CIMType
	ArrayState uint8
	Unk        uint16
}

// IsArray reports whether the array_state byte marks this as an array
// carrier (a 32-bit offset into the data region).
func (t CIMTypeTuple) IsArray() bool { return t.ArrayState == cimfmt.ArrayStateArray }

// CarrierSize returns the width, in bytes, of the inline slot this
// type occupies: 4 for arrays (always an offset), otherwise the
// element's own width.
func (t CIMTypeTuple) CarrierSize() (int, error) {
	if t.IsArray() {
		return 4, nil
	}
	return t.Type.ElementSize()
}

func parseCIMType(c *cimfmt.Cursor) (CIMTypeTuple, error) {
	typ, err := c.U8()
	if err != nil {
		return CIMTypeTuple{}, err
	}
	arrState, err := c.U8()
	if err != nil {
		return CIMTypeTuple{}, err
	}
	unk, err := c.U16()
	if err != nil {
		return CIMTypeTuple{}, err
	}
	return CIMTypeTuple{Type: cimfmt.CIMType(typ), ArrayState: arrState, Unk: unk}, nil
}

// readCarrier reads the inline value slot for t (an array offset, a
// string/reference/datetime/object offset, or a primitive value) as a
// zero-extended 64-bit integer, little-endian.
func readCarrier(c *cimfmt.Cursor, t CIMTypeTuple) (uint64, error) {
	size, err := t.CarrierSize()
	if err != nil {
		return 0, err
	}
	b, err := c.Bytes(size)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

// filetimeEpoch is the Windows FILETIME epoch (1601-01-01 UTC) as a Go
// time.Time; FILETIME counts 100ns intervals since this instant.
var filetimeEpoch = time.Date(1601, 1, 1, 0, 0, 0, 0, time.UTC)

// FileTime converts a raw 64-bit Windows FILETIME to time.Time.
func FileTime(ft uint64) time.Time {
	return filetimeEpoch.Add(time.Duration(ft) * 100)
}

// ErrUnsupportedCarrier names a CIM type this best-effort reader does
// not resolve to a usable Go value. No decoder in this package returns
// it: REAL32/REAL64/REFERENCE and CHAR16 are decoded, and OBJECT is
// surfaced as its raw uint32 data-region offset (see decodeScalar).
type ErrUnsupportedCarrier struct {
	Type cimfmt.CIMType
}

func (e ErrUnsupportedCarrier) Error() string {
	return fmt.Sprintf("classdef: unsupported value type %#x", uint8(e.Type))
}
