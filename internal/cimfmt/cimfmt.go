// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
// Package cimfmt holds the fixed-layout on-disk record shapes of the
// CIM repository format and the primitive decoders every higher layer
// builds on: little-endian integers, length-prefixed UTF-16LE wide
// strings, and bounds-checked sequential reads.
//
// The decoders follow the same shape as the teacher library's
// structUnpack/ReadUintN helpers: every read is bounds-checked against
// the backing buffer and returns ErrOutsideBoundary instead of
// panicking, and wide strings are decoded with
// golang.org/x/text/encoding/unicode exactly as DecodeUTF16String does.
package cimfmt

import (
	"encoding/binary"
	"errors"

	"golang.org/x/text/encoding/unicode"
)

// Wire constants that must match byte-for-byte (spec §6).
const (
	MappingSignature = 0xABCD
	FooterSignature  = 0xDCBA

	PageIDMask      = 0x3FFFFFFF
	UnmappedPage    = 0x3FFFFFFF
	IndexPageInvalid  = 0xFFFFFFFF
	IndexPageInvalid2 = 0x00000000

	IndexPageSize = 0x2000
	DataPageSize  = 0x2000

	BooleanFalse = 0x0000
	BooleanTrue  = 0xFFFF

	DynpropsNone    = 0x01
	DynpropsPresent = 0x02

	ArrayStateNotArray = 0x00
	ArrayStateArray    = 0x20
)

// CIMType is the on-disk property/qualifier value type tag.
type CIMType uint8

// CIM value type IDs (spec §6).
const (
	TypeInt16    CIMType = 0x2
	TypeInt32    CIMType = 0x3
	TypeReal32   CIMType = 0x4
	TypeReal64   CIMType = 0x5
	TypeString   CIMType = 0x8
	TypeBoolean  CIMType = 0xB
	TypeObject   CIMType = 0xD
	TypeInt8     CIMType = 0x10
	TypeUint8    CIMType = 0x11
	TypeUint16   CIMType = 0x12
	TypeUint32   CIMType = 0x13
	TypeInt64    CIMType = 0x14
	TypeUint64   CIMType = 0x15
	TypeDateTime CIMType = 0x65
	TypeReference CIMType = 0x66
	TypeChar16   CIMType = 0x67
)

// ElementSize returns the width, in bytes, of the inline/array-element
// carrier for t. Arrays always carry a 32-bit offset into the data
// region regardless of t, so callers must check ArrayState separately.
func (t CIMType) ElementSize() (int, error) {
	switch t {
	case TypeInt8, TypeUint8:
		return 1, nil
	case TypeInt16, TypeUint16, TypeBoolean, TypeChar16:
		return 2, nil
	case TypeInt32, TypeUint32, TypeReal32, TypeString, TypeObject, TypeDateTime, TypeReference:
		return 4, nil
	case TypeInt64, TypeUint64, TypeReal64:
		return 8, nil
	default:
		return 0, ErrUnknownType
	}
}

// Builtin qualifier ids (spec §6 / c_cim BUILTIN_QUALIFIERS).
const (
	QualifierPrimaryKey    = 0x1
	QualifierReadAccess    = 0x3
	QualifierProvider      = 0x6
	QualifierDynamic       = 0x7
	QualifierType          = 0xA
)

var qualifierNames = map[uint32]string{
	QualifierPrimaryKey: "PROP_QUALIFIER_KEY",
	QualifierReadAccess: "PROP_QUALIFIER_READ_ACCESS",
	QualifierProvider:   "CLASS_QUALIFIER_PROVIDER",
	QualifierDynamic:    "CLASS_QUALIFIER_DYNAMIC",
	QualifierType:       "PROP_QUALIFIER_TYPE",
}

// QualifierName returns the builtin qualifier name for id, or "" if id
// is not a recognized builtin qualifier.
func QualifierName(id uint32) string { return qualifierNames[id] }

// Builtin property ids (spec §6 / c_cim BUILTIN_PROPERTIES).
const (
	PropertyPrimaryKey = 0x1
	PropertyRead       = 0x2
	PropertyWrite      = 0x3
	PropertyVolatile   = 0x4
	PropertyProvider   = 0x6
	PropertyDynamic    = 0x7
	PropertyType       = 0xA
)

var propertyNames = map[uint32]string{
	PropertyPrimaryKey: "PRIMARY_KEY",
	PropertyRead:       "READ",
	PropertyWrite:      "WRITE",
	PropertyVolatile:   "VOLATILE",
	PropertyProvider:   "PROVIDER",
	PropertyDynamic:    "DYNAMIC",
	PropertyType:       "TYPE",
}

// PropertyName returns the builtin property name for id, or "" if id is
// not a recognized builtin property.
func PropertyName(id uint32) string { return propertyNames[id] }

// Errors surfaced by the decoders. Higher layers wrap these into the
// public error taxonomy (cimparse.InvalidDatabaseError and friends).
var (
	ErrOutsideBoundary = errors.New("cimfmt: read outside buffer boundary")
	ErrUnknownType     = errors.New("cimfmt: unknown CIM value type")
	ErrBadEncoding      = errors.New("cimfmt: invalid string encoding flag")
)

// Cursor is a bounds-checked sequential reader over an in-memory
// buffer, the Go analogue of the BytesIO handles the original format
// is built around: structures are parsed by reading fields off the
// buffer in order, with Seek used to jump to records located by an
// offset.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor wraps buf for sequential reading starting at offset 0.
func NewCursor(buf []byte) *Cursor { return &Cursor{buf: buf} }

// Pos returns the current read offset.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the number of unread bytes.
func (c *Cursor) Len() int { return len(c.buf) - c.pos }

// Seek moves the cursor to an absolute offset.
func (c *Cursor) Seek(pos int) error {
	if pos < 0 || pos > len(c.buf) {
		return ErrOutsideBoundary
	}
	c.pos = pos
	return nil
}

func (c *Cursor) need(n int) error {
	if n < 0 || c.pos+n > len(c.buf) {
		return ErrOutsideBoundary
	}
	return nil
}

// Bytes reads n raw bytes.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// U8 reads an unsigned 8-bit integer.
func (c *Cursor) U8() (uint8, error) {
	b, err := c.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16 reads a little-endian unsigned 16-bit integer.
func (c *Cursor) U16() (uint16, error) {
	b, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// U32 reads a little-endian unsigned 32-bit integer.
func (c *Cursor) U32() (uint32, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// U64 reads a little-endian unsigned 64-bit integer.
func (c *Cursor) U64() (uint64, error) {
	b, err := c.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// WideString reads n UTF-16LE code units (2*n bytes) and decodes them,
// stopping at an embedded NUL the way a Windows length-prefixed wide
// string is conventionally terminated.
func (c *Cursor) WideString(n int) (string, error) {
	b, err := c.Bytes(n * 2)
	if err != nil {
		return "", err
	}
	return DecodeUTF16LE(b)
}

// DecodeUTF16LE decodes a UTF-16LE byte slice, stopping at the first
// embedded double-NUL code unit if present. Grounded on the teacher's
// helper.go:DecodeUTF16String, which uses the same x/text decoder.
func DecodeUTF16LE(b []byte) (string, error) {
	n := len(b) - (len(b) % 2)
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			n = i
			break
		}
	}
	if n == 0 {
		return "", nil
	}
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	s, err := decoder.Bytes(b[:n])
	if err != nil {
		return "", err
	}
	return string(s), nil
}
