// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package classdef

import (
	"fmt"
	"time"

	"github.com/saferwall/cimparse/internal/cimfmt"
)

// ClassDefinitionProperty is one property slot declared directly on a
// single class definition (own properties only — inheritance is a
// Navigator-layer concern): its wire type, declaration order, the
// legacy instance-payload offset field, and any qualifiers attached at
// the point of declaration (spec §3 "Property").
type ClassDefinitionProperty struct {
	Name       string
	Type       CIMTypeTuple
	Index      uint16
	Offset     uint32 // legacy instance-payload offset; unused by this reader, kept for fidelity
	Level      uint32
	Qualifiers []QualifierRef
}

// ClassDefinition is the parsed class_definition record backing a
// namespace's CD (class definition) index entries (spec §4.6).
//
// Grounded on dissect/cim/classes.py's ClassDefinition and its
// underlying class_definition_header/class_definition_property wire
// structs (c_cim.py): default-value resolution is deliberately NOT
// done here — the property-state table embedded at the head of
// default_values_data is sized to an externally-resolved full
// property set (own + every ancestor's), which only the Navigator
// layer (which walks the derivation chain) knows how to compute.
type ClassDefinition struct {
	SuperClassName string
	Timestamp      time.Time
	ClassNameOffset uint32

	Qualifiers []QualifierRef
	Properties []ClassDefinitionProperty

	strings          *DataRegion // property_data region
	methodData       *DataRegion
	rawDefaultValues []byte
}

// Parse decodes a class_definition record: the header (super-class
// name, timestamp, and the offset/size fields class_definition_header
// carries, including its trailing — and otherwise unused — embedded
// class_name_record), a qualifier reference list, a property reference
// list, the raw default-values blob, and finally the property-data and
// method-data regions.
func Parse(data []byte) (*ClassDefinition, error) {
	c := cimfmt.NewCursor(data)

	superLen, err := c.U32()
	if err != nil {
		return nil, fmt.Errorf("classdef: super class name length: %w", err)
	}
	superName, err := c.WideString(int(superLen))
	if err != nil {
		return nil, fmt.Errorf("classdef: super class name: %w", err)
	}

	ts, err := c.U64()
	if err != nil {
		return nil, fmt.Errorf("classdef: timestamp: %w", err)
	}
	if _, err := c.U32(); err != nil { // data_len: total record length, unused by this reader
		return nil, fmt.Errorf("classdef: data length: %w", err)
	}
	if _, err := c.U8(); err != nil { // unk0
		return nil, fmt.Errorf("classdef: header unk byte: %w", err)
	}
	classNameOffset, err := c.U32()
	if err != nil {
		return nil, fmt.Errorf("classdef: class name offset: %w", err)
	}
	defaultSize, err := c.U32()
	if err != nil {
		return nil, fmt.Errorf("classdef: default values metadata size: %w", err)
	}

	// class_name_record: a length-prefixed blob embedded at the tail of
	// the header, its own length field included in its size. Consumed
	// for byte-layout fidelity and otherwise discarded — the original
	// resolves the class's actual name via class_name_offset into
	// property_data, not via this record.
	nameRecordSize, err := c.U32()
	if err != nil {
		return nil, fmt.Errorf("classdef: class name record size: %w", err)
	}
	if nameRecordSize < 4 {
		return nil, fmt.Errorf("classdef: class name record size %d too small", nameRecordSize)
	}
	if _, err := c.Bytes(int(nameRecordSize) - 4); err != nil {
		return nil, fmt.Errorf("classdef: class name record: %w", err)
	}

	qualifiers, err := readQualifierRefs(c)
	if err != nil {
		return nil, fmt.Errorf("classdef: class qualifiers: %w", err)
	}

	propRefs, err := readPropertyRefs(c)
	if err != nil {
		return nil, fmt.Errorf("classdef: property references: %w", err)
	}

	rawDefaultValues, err := c.Bytes(int(defaultSize))
	if err != nil {
		return nil, fmt.Errorf("classdef: default values blob: %w", err)
	}

	propertyData, err := ParseDataRegion(c)
	if err != nil {
		return nil, fmt.Errorf("classdef: property data region: %w", err)
	}

	var methodData *DataRegion
	if c.Len() > 0 {
		methodData, err = ParseDataRegion(c)
		if err != nil {
			return nil, fmt.Errorf("classdef: method data region: %w", err)
		}
	} else {
		methodData = &DataRegion{}
	}

	cd := &ClassDefinition{
		SuperClassName:   superName,
		Timestamp:        FileTime(ts),
		ClassNameOffset:  classNameOffset,
		Qualifiers:       qualifiers,
		strings:          propertyData,
		methodData:       methodData,
		rawDefaultValues: rawDefaultValues,
	}

	props, err := cd.resolveProperties(propRefs)
	if err != nil {
		return nil, err
	}
	cd.Properties = props
	return cd, nil
}

// resolveProperties decodes the class_definition_property record for
// each reference: a cim_type tuple, a 16-bit index, a 32-bit legacy
// offset, a 32-bit inheritance level, followed by the property's own
// qualifier reference list (classes.py: ClassDefinitionProperty).
func (cd *ClassDefinition) resolveProperties(refs []PropertyRef) ([]ClassDefinitionProperty, error) {
	props := make([]ClassDefinitionProperty, len(refs))
	for i, ref := range refs {
		name, err := resolveName(ref.NameOffset, cd.strings)
		if err != nil {
			return nil, fmt.Errorf("classdef: property %d name: %w", i, err)
		}

		c := cimfmt.NewCursor(cd.strings.Data)
		if err := c.Seek(int(ref.PropertyOffset)); err != nil {
			return nil, fmt.Errorf("classdef: property %q record: %w", name, err)
		}
		typ, err := parseCIMType(c)
		if err != nil {
			return nil, err
		}
		index, err := c.U16()
		if err != nil {
			return nil, err
		}
		offset, err := c.U32()
		if err != nil {
			return nil, err
		}
		level, err := c.U32()
		if err != nil {
			return nil, err
		}
		quals, err := readQualifierRefs(c)
		if err != nil {
			return nil, fmt.Errorf("classdef: property %q qualifiers: %w", name, err)
		}

		props[i] = ClassDefinitionProperty{
			Name:       name,
			Type:       typ,
			Index:      index,
			Offset:     offset,
			Level:      level,
			Qualifiers: quals,
		}
	}
	return props, nil
}

// ClassName resolves the class's own name out of its property-data
// region, at the offset the header's class_name_offset field points
// to.
func (cd *ClassDefinition) ClassName() (string, error) {
	return cd.strings.GetString(cd.ClassNameOffset)
}

// RawDefaultValues exposes the undecoded default-values blob: a
// property-state table followed by a flat array of default-value
// carriers, both sized to a property count this definition alone does
// not know (the Navigator layer's externally-resolved full property
// set). See PropertyDefaultValues.
func (cd *ClassDefinition) RawDefaultValues() []byte { return cd.rawDefaultValues }

// StringData exposes the property-data region backing this
// definition's qualifier/property name and value resolution, for
// callers (instances, the facade layer) that need to resolve values
// against the same region the definition itself uses.
func (cd *ClassDefinition) StringData() *DataRegion { return cd.strings }

// MethodData exposes the (possibly empty) method-data region.
func (cd *ClassDefinition) MethodData() *DataRegion { return cd.methodData }
