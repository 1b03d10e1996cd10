// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package classdef

import (
	"fmt"

	"github.com/saferwall/cimparse/internal/cimfmt"
)

// PropertyDefaultValues decodes a class definition's raw default-value
// blob against an externally supplied, index-sorted property list: the
// property-state table embedded at the head of the blob and the flat
// array of default-value carriers that follows it, one per property in
// the same order (spec §4.6 "Default-value resolution").
//
// Grounded on dissect/cim/classes.py's PropertyDefaultValues, whose
// caller (cim.py's Class.property_default_values) always sizes it to
// the class's full resolved property set — own plus every ancestor's —
// not just the properties this one class definition declares, which is
// why this lives outside ClassDefinition itself.
type PropertyDefaultValues struct {
	states PropertyStates
	values []uint64
	types  []CIMTypeTuple
	byIndex map[uint16]int
}

// ParsePropertyDefaultValues decodes raw (a class definition's
// RawDefaultValues()) against sortedProps, which must already be
// sorted by ascending Index and must have as many entries as the
// state table and value array the blob encodes (spec invariant I4/I5's
// counterpart on the definition side).
func ParsePropertyDefaultValues(raw []byte, sortedProps []ClassDefinitionProperty) (*PropertyDefaultValues, error) {
	states, err := readPropertyStates(raw, 0, len(sortedProps))
	if err != nil {
		return nil, fmt.Errorf("classdef: default value property states: %w", err)
	}

	c := cimfmt.NewCursor(raw)
	if err := c.Seek(len(states.raw)); err != nil {
		return nil, err
	}

	values := make([]uint64, len(sortedProps))
	types := make([]CIMTypeTuple, len(sortedProps))
	byIndex := make(map[uint16]int, len(sortedProps))
	for i, p := range sortedProps {
		v, err := readCarrier(c, p.Type)
		if err != nil {
			return nil, fmt.Errorf("classdef: default value for %q: %w", p.Name, err)
		}
		values[i] = v
		types[i] = p.Type
		byIndex[p.Index] = i
	}

	return &PropertyDefaultValues{states: states, values: values, types: types, byIndex: byIndex}, nil
}

func (d *PropertyDefaultValues) position(index uint16) (int, error) {
	pos, ok := d.byIndex[index]
	if !ok {
		return 0, fmt.Errorf("classdef: property index %d not present in default value set", index)
	}
	return pos, nil
}

// IsInherited reports whether the property at index is merely
// inherited on this class definition (state bit, spec §3 "Property
// state table").
func (d *PropertyDefaultValues) IsInherited(index uint16) (bool, error) {
	pos, err := d.position(index)
	if err != nil {
		return false, err
	}
	return d.states.IsInherited(pos)
}

// HasDefaultValue reports whether this class definition records a
// default value for the property at index.
func (d *PropertyDefaultValues) HasDefaultValue(index uint16) (bool, error) {
	pos, err := d.position(index)
	if err != nil {
		return false, err
	}
	return d.states.HasDefaultValue(pos)
}

// Raw returns the default-value carrier and its CIM type tuple for the
// property at index, to be resolved via a DataRegion.GetValue call
// against the declaring definition's own property_data.
func (d *PropertyDefaultValues) Raw(index uint16) (uint64, CIMTypeTuple, error) {
	pos, err := d.position(index)
	if err != nil {
		return 0, CIMTypeTuple{}, err
	}
	return d.values[pos], d.types[pos], nil
}
