// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package classdef

import "fmt"

// PropertyStates is the 2-bit-per-property packed table carried on
// both class definitions and class instances (spec §3 "Property
// state"). Each property's pair of bits records, depending on
// context:
//
//   - on a class definition: bit1 = is_inherited, bit0 clear = has_default_value
//   - on a class instance:   bit1 = use_default_value, bit0 clear = is_initialized
//
// dissect.cim's classes.py stores both meanings behind the same
// accessor names; this reader exposes the raw bit pairs and leaves the
// is-class-definition-vs-instance interpretation to the caller, which
// always knows which kind of record it is decoding.
type PropertyStates struct {
	raw   []byte
	count int
}

// readPropertyStates reads ceil(2*count/8) bytes of packed state bits
// for count properties.
func readPropertyStates(data []byte, offset, count int) (PropertyStates, error) {
	nbytes := (count*2 + 7) / 8
	if offset < 0 || offset+nbytes > len(data) {
		return PropertyStates{}, fmt.Errorf("classdef: property state table (offset %d, %d properties) out of range", offset, count)
	}
	return PropertyStates{raw: data[offset : offset+nbytes], count: count}, nil
}

// bits returns the 2-bit pair for property index i, as (bit1, bit0).
func (s PropertyStates) bits(i int) (bool, bool, error) {
	if i < 0 || i >= s.count {
		return false, false, fmt.Errorf("classdef: property state index %d out of range", i)
	}
	byteIdx := (i * 2) / 8
	shift := uint((i * 2) % 8)
	b := s.raw[byteIdx]
	bit0 := b&(1<<shift) != 0
	bit1 := b&(1<<(shift+1)) != 0
	return bit1, bit0, nil
}

// IsInherited reports whether the definition-context high bit is set:
// the property is declared on a superclass rather than this class.
func (s PropertyStates) IsInherited(i int) (bool, error) {
	hi, _, err := s.bits(i)
	return hi, err
}

// HasDefaultValue reports whether the definition-context low bit
// marks a default value as present for property i.
func (s PropertyStates) HasDefaultValue(i int) (bool, error) {
	_, lo, err := s.bits(i)
	return !lo, err
}

// UseDefaultValue reports whether the instance-context high bit marks
// property i as unset on the instance (the class default applies).
func (s PropertyStates) UseDefaultValue(i int) (bool, error) {
	hi, _, err := s.bits(i)
	return hi, err
}

// IsInitialized reports whether the instance-context low bit marks
// property i as explicitly present in the instance's own TOC.
func (s PropertyStates) IsInitialized(i int) (bool, error) {
	_, lo, err := s.bits(i)
	return !lo, err
}
