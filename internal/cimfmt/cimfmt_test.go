// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package cimfmt

import (
	"encoding/binary"
	"testing"
)

func TestCursorPrimitives(t *testing.T) {
	buf := make([]byte, 0, 16)
	buf = append(buf, 0x42)
	buf = append(buf, 0xBE, 0xBA)
	buf = append(buf, 0xEF, 0xBE, 0xAD, 0xDE)
	buf = append(buf, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08)

	c := NewCursor(buf)

	u8, err := c.U8()
	if err != nil || u8 != 0x42 {
		t.Fatalf("U8() = %#x, %v; want 0x42, nil", u8, err)
	}

	u16, err := c.U16()
	if err != nil || u16 != 0xBABE {
		t.Fatalf("U16() = %#x, %v; want 0xbabe, nil", u16, err)
	}

	u32, err := c.U32()
	if err != nil || u32 != 0xDEADBEEF {
		t.Fatalf("U32() = %#x, %v; want 0xdeadbeef, nil", u32, err)
	}

	u64, err := c.U64()
	if err != nil || u64 != binary.LittleEndian.Uint64(buf[7:15]) {
		t.Fatalf("U64() = %#x, %v; want %#x, nil", u64, err, binary.LittleEndian.Uint64(buf[7:15]))
	}

	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after consuming the whole buffer", c.Len())
	}
}

func TestCursorOutsideBoundary(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x02})
	if _, err := c.U32(); err != ErrOutsideBoundary {
		t.Fatalf("U32() on a 2-byte buffer: err = %v, want ErrOutsideBoundary", err)
	}
	if err := c.Seek(10); err != ErrOutsideBoundary {
		t.Fatalf("Seek(10) on a 2-byte buffer: err = %v, want ErrOutsideBoundary", err)
	}
}

func TestCursorSeek(t *testing.T) {
	c := NewCursor([]byte{0xAA, 0xBB, 0xCC, 0xDD})
	if err := c.Seek(2); err != nil {
		t.Fatalf("Seek(2): %v", err)
	}
	b, err := c.Bytes(2)
	if err != nil {
		t.Fatalf("Bytes(2): %v", err)
	}
	if b[0] != 0xCC || b[1] != 0xDD {
		t.Fatalf("Bytes(2) after Seek(2) = % x, want cc dd", b)
	}
}

func TestDecodeUTF16LE(t *testing.T) {
	// "Hi" UTF-16LE, NUL-terminated.
	b := []byte{'H', 0, 'i', 0, 0, 0}
	s, err := DecodeUTF16LE(b)
	if err != nil {
		t.Fatalf("DecodeUTF16LE: %v", err)
	}
	if s != "Hi" {
		t.Fatalf("DecodeUTF16LE(%v) = %q, want %q", b, s, "Hi")
	}
}

func TestDecodeUTF16LEEmpty(t *testing.T) {
	s, err := DecodeUTF16LE([]byte{0, 0})
	if err != nil || s != "" {
		t.Fatalf("DecodeUTF16LE(empty) = %q, %v; want \"\", nil", s, err)
	}
}

func TestCIMTypeElementSize(t *testing.T) {
	tests := []struct {
		typ     CIMType
		want    int
		wantErr bool
	}{
		{TypeUint8, 1, false},
		{TypeUint16, 2, false},
		{TypeUint32, 4, false},
		{TypeReal64, 8, false},
		{TypeString, 4, false},
		{CIMType(0xFE), 0, true},
	}
	for _, tt := range tests {
		got, err := tt.typ.ElementSize()
		if (err != nil) != tt.wantErr {
			t.Errorf("ElementSize(%#x): err = %v, wantErr %v", tt.typ, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ElementSize(%#x) = %d, want %d", tt.typ, got, tt.want)
		}
	}
}

func TestQualifierAndPropertyNames(t *testing.T) {
	if got := QualifierName(QualifierPrimaryKey); got != "PROP_QUALIFIER_KEY" {
		t.Errorf("QualifierName(primary key) = %q", got)
	}
	if got := QualifierName(0xFFFF); got != "" {
		t.Errorf("QualifierName(unknown) = %q, want \"\"", got)
	}
	if got := PropertyName(PropertyDynamic); got != "DYNAMIC" {
		t.Errorf("PropertyName(dynamic) = %q", got)
	}
}
