// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package classdef

import (
	"fmt"
	"math"

	"github.com/saferwall/cimparse/internal/cimfmt"
)

// DataRegion is a length-prefixed blob (spec §3 "Data region") holding
// the strings and array payloads a class definition's or class
// instance's properties/qualifiers point into.
type DataRegion struct {
	Size uint32
	Data []byte
}

// ParseDataRegion reads a 31-bit length (the top bit is reserved/
// masked per spec §3) followed by that many bytes of payload.
func ParseDataRegion(c *cimfmt.Cursor) (*DataRegion, error) {
	raw, err := c.U32()
	if err != nil {
		return nil, err
	}
	size := raw & 0x7FFFFFFF
	data, err := c.Bytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("classdef: data region: %w", err)
	}
	return &DataRegion{Size: size, Data: data}, nil
}

// GetString decodes the length-prefixed string at offset: a single
// encoding byte (0x00 = Latin-1 NUL-terminated, 0x01 = UTF-16LE)
// followed by the string bytes (spec §3 "Data region").
func (d *DataRegion) GetString(offset uint32) (string, error) {
	if int(offset) >= len(d.Data) {
		return "", fmt.Errorf("classdef: string offset %d out of range", offset)
	}
	flag := d.Data[offset]
	rest := d.Data[offset+1:]

	switch flag {
	case 0x00:
		end := 0
		for end < len(rest) && rest[end] != 0 {
			end++
		}
		return latin1ToUTF8(rest[:end]), nil
	case 0x01:
		return cimfmt.DecodeUTF16LE(rest)
	default:
		return "", cimfmt.ErrBadEncoding
	}
}

func latin1ToUTF8(b []byte) string {
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}

// GetArray decodes a 32-bit element count followed by that many
// inline elements of itemType at offset. Array elements of
// string/reference/datetime type are left as their raw uint32 region
// offsets rather than further resolved to strings: this mirrors
// dissect.cim's own objects.py/classes.py behavior, where
// DataRegion.get_array always reads the declared CIM_TYPES_MAP carrier
// type and never re-enters get_string for array members.
func (d *DataRegion) GetArray(offset uint32, itemType cimfmt.CIMType) ([]any, error) {
	if int(offset) > len(d.Data) {
		return nil, fmt.Errorf("classdef: array offset %d out of range", offset)
	}
	c := cimfmt.NewCursor(d.Data)
	if err := c.Seek(int(offset)); err != nil {
		return nil, err
	}
	count, err := c.U32()
	if err != nil {
		return nil, err
	}

	size, err := itemType.ElementSize()
	if err != nil {
		return nil, err
	}

	out := make([]any, count)
	for i := uint32(0); i < count; i++ {
		b, err := c.Bytes(size)
		if err != nil {
			return nil, fmt.Errorf("classdef: array element %d: %w", i, err)
		}
		var raw uint64
		for j := len(b) - 1; j >= 0; j-- {
			raw = raw<<8 | uint64(b[j])
		}
		v, err := decodeScalar(raw, itemType)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// GetValue resolves a carrier value against t, per spec §4.6's
// property/qualifier value resolution: arrays are decoded via
// GetArray; STRING/REFERENCE/DATETIME carriers are offsets resolved
// via GetString; BOOLEAN compares against the 0x0000/0xFFFF wire
// encoding; every other recognized type is the already-inline
// primitive value carried directly. An unrecognized type tag is a
// hard error (spec §9: "reimplementations must always raise on
// unknown type", unlike the original's silently-dropped fall-through).
func (d *DataRegion) GetValue(carrier uint64, t CIMTypeTuple) (any, error) {
	if t.IsArray() {
		return d.GetArray(uint32(carrier), t.Type)
	}

	switch t.Type {
	case cimfmt.TypeString, cimfmt.TypeReference, cimfmt.TypeDateTime:
		return d.GetString(uint32(carrier))
	default:
		return decodeScalar(carrier, t.Type)
	}
}

// decodeScalar interprets a raw zero-extended carrier as the numeric/
// boolean/float primitive its CIM type declares. STRING/REFERENCE/
// DATETIME are returned as their raw uint32 region offset: callers
// that need the resolved string go through DataRegion.GetValue or
// DataRegion.GetString directly, matching the original's behavior of
// leaving array-of-string elements unresolved.
func decodeScalar(raw uint64, t cimfmt.CIMType) (any, error) {
	switch t {
	case cimfmt.TypeBoolean:
		return raw == cimfmt.BooleanTrue, nil
	case cimfmt.TypeInt8:
		return int8(raw), nil
	case cimfmt.TypeUint8:
		return uint8(raw), nil
	case cimfmt.TypeInt16:
		return int16(raw), nil
	case cimfmt.TypeUint16:
		return uint16(raw), nil
	case cimfmt.TypeInt32:
		return int32(raw), nil
	case cimfmt.TypeUint32:
		return uint32(raw), nil
	case cimfmt.TypeInt64:
		return int64(raw), nil
	case cimfmt.TypeUint64:
		return raw, nil
	case cimfmt.TypeReal32:
		return math.Float32frombits(uint32(raw)), nil
	case cimfmt.TypeReal64:
		return math.Float64frombits(raw), nil
	case cimfmt.TypeChar16:
		return rune(raw), nil
	case cimfmt.TypeString, cimfmt.TypeReference, cimfmt.TypeDateTime:
		return uint32(raw), nil
	case cimfmt.TypeObject:
		// Embedded CIM objects are not parsed by this reader; the raw
		// data-region offset is surfaced instead (spec §7: OBJECT is a
		// known low-priority gap).
		return uint32(raw), nil
	default:
		return nil, cimfmt.ErrUnknownType
	}
}
