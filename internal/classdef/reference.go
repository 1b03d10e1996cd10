// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package classdef

import (
	"fmt"

	"github.com/saferwall/cimparse/internal/cimfmt"
)

// QualifierRef is a single entry in a class definition's or class
// instance's qualifier reference list: the builtin qualifier id (or
// offset into the string data region for a user-defined qualifier
// name) and the tagged value carrier (spec §3 "Qualifier").
type QualifierRef struct {
	KeyReference uint32
	Unk          uint8
	Type         CIMTypeTuple
	Carrier      uint64
}

// qualifierRefSize is the fixed header width of one qualifier
// reference before its variable-width carrier: key_reference(4) +
// unk(1) + type(1) + array_state(1) + unk16(2).
const qualifierRefSize = 9

// readQualifierRefs decodes a byte-length-prefixed list of qualifier
// references (classes.py: QualifierReference.read_list reads entries
// while at least one fixed header still fits in the remaining bytes).
func readQualifierRefs(c *cimfmt.Cursor) ([]QualifierRef, error) {
	length, err := c.U32()
	if err != nil {
		return nil, err
	}
	end := c.Pos() + int(length)
	if end > c.Pos()+c.Len() {
		return nil, fmt.Errorf("classdef: qualifier reference list length %d out of range", length)
	}

	var refs []QualifierRef
	for c.Pos()+qualifierRefSize <= end {
		keyRef, err := c.U32()
		if err != nil {
			return nil, err
		}
		unk, err := c.U8()
		if err != nil {
			return nil, err
		}
		typ, err := parseCIMType(c)
		if err != nil {
			return nil, err
		}
		carrier, err := readCarrier(c, typ)
		if err != nil {
			return nil, fmt.Errorf("classdef: qualifier reference carrier: %w", err)
		}
		refs = append(refs, QualifierRef{
			KeyReference: keyRef,
			Unk:          unk,
			Type:         typ,
			Carrier:      carrier,
		})
	}
	return refs, nil
}

// PropertyRef locates one property's class_definition_property record
// in the property_data region, and names it either by a builtin
// property id or by an offset into the qualifier/property string data
// (spec §3 "Property").
type PropertyRef struct {
	NameOffset     uint32
	PropertyOffset uint32
}

// readPropertyRefs decodes an element-count-prefixed list of property
// references (classes.py: PropertyReference.read_list).
func readPropertyRefs(c *cimfmt.Cursor) ([]PropertyRef, error) {
	count, err := c.U32()
	if err != nil {
		return nil, err
	}
	refs := make([]PropertyRef, count)
	for i := range refs {
		nameOff, err := c.U32()
		if err != nil {
			return nil, fmt.Errorf("classdef: property reference %d: %w", i, err)
		}
		propOff, err := c.U32()
		if err != nil {
			return nil, fmt.Errorf("classdef: property reference %d: %w", i, err)
		}
		refs[i] = PropertyRef{NameOffset: nameOff, PropertyOffset: propOff}
	}
	return refs, nil
}

// resolveName resolves a reference's name_offset: the high bit marks a
// builtin property/qualifier id (spec §3); otherwise it is a byte
// offset into the string data region holding an encoded string.
func resolveName(nameOffset uint32, strings *DataRegion) (string, error) {
	const builtinFlag = 0x80000000
	if nameOffset&builtinFlag != 0 {
		return cimfmt.PropertyName(nameOffset &^ builtinFlag), nil
	}
	return strings.GetString(nameOffset)
}

// resolveQualifierName is resolveName's qualifier-table counterpart:
// a qualifier reference's key_reference field indexes into the
// builtin qualifier table rather than the builtin property table when
// its high bit is set.
func resolveQualifierName(keyReference uint32, strings *DataRegion) (string, error) {
	const builtinFlag = 0x80000000
	if keyReference&builtinFlag != 0 {
		return cimfmt.QualifierName(keyReference &^ builtinFlag), nil
	}
	return strings.GetString(keyReference)
}
