// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package classdef

import (
	"fmt"
	"sort"
	"time"

	"github.com/saferwall/cimparse/internal/cimfmt"
)

// nameHashWidth is the fixed width, in wide characters, of a class
// instance's leading name-hash field: the modern repository layout
// hashes with SHA-256 (64 hex characters); the XP-era layout hashes
// with MD5 (32 hex characters) (spec §4.6, §6).
func nameHashWidth(isXP bool) int {
	if isXP {
		return 0x20
	}
	return 0x40
}

// ClassInstance is a single object record decoded against the class
// definition that declares its properties (spec §4.6).
//
// Grounded on dissect/cim/classes.py's ClassInstance, restructured so
// that resolving a property's value and deciding whether it falls back
// to the class's default is the caller's job (the facade layer walks
// ancestor class definitions; this type only knows about one).
type ClassInstance struct {
	NameHash        string
	Timestamp1      time.Time
	Timestamp2      time.Time
	ClassNameOffset uint32

	Qualifiers  []QualifierRef
	HasDynprops bool

	states PropertyStates
	toc    map[uint16]uint64 // property index -> raw carrier
	data   *DataRegion
}

// ParseInstance decodes a class_instance (or, under the XP layout,
// class_instance_xp) record against resolvedProps, the instance's
// class's full resolved property set (own plus every ancestor's,
// sorted by ascending Index) — the same set that sizes the class
// definition's own default-value table, since both are sized to the
// Navigator layer's resolved view of the class, not any single class
// definition's own declarations.
//
// Grounded on c_cim.py's class_instance_header/class_instance_xp_header
// structs and classes.py's ClassInstance.__init__.
func ParseInstance(data []byte, resolvedProps []ClassDefinitionProperty, isXP bool) (*ClassInstance, error) {
	c := cimfmt.NewCursor(data)

	nameHash, err := c.WideString(nameHashWidth(isXP))
	if err != nil {
		return nil, fmt.Errorf("classdef: instance name hash: %w", err)
	}
	ts1, err := c.U64()
	if err != nil {
		return nil, fmt.Errorf("classdef: instance timestamp 1: %w", err)
	}
	ts2, err := c.U64()
	if err != nil {
		return nil, fmt.Errorf("classdef: instance timestamp 2: %w", err)
	}
	dataSize, err := c.U32()
	if err != nil {
		return nil, fmt.Errorf("classdef: instance data size: %w", err)
	}
	classNameOffset, err := c.U32()
	if err != nil {
		return nil, fmt.Errorf("classdef: instance class name offset: %w", err)
	}
	if _, err := c.U8(); err != nil { // unk0
		return nil, fmt.Errorf("classdef: instance header unk byte: %w", err)
	}

	// remaining_data is sized by data_size minus the nine bytes of
	// data_size/class_name_offset/unk0 that precede it in the struct.
	if dataSize < 9 {
		return nil, fmt.Errorf("classdef: instance data size %d too small", dataSize)
	}
	remaining, err := c.Bytes(int(dataSize) - 9)
	if err != nil {
		return nil, fmt.Errorf("classdef: instance remaining data: %w", err)
	}
	rc := cimfmt.NewCursor(remaining)

	propCount := len(resolvedProps)
	states, err := readPropertyStates(remaining, rc.Pos(), propCount)
	if err != nil {
		return nil, fmt.Errorf("classdef: instance property states: %w", err)
	}
	if _, err := rc.Bytes(len(states.raw)); err != nil {
		return nil, err
	}

	ordered := append([]ClassDefinitionProperty(nil), resolvedProps...)
	sort.Slice(ordered, func(a, b int) bool { return ordered[a].Index < ordered[b].Index })

	toc := make(map[uint16]uint64, propCount)
	for _, p := range ordered {
		carrier, err := readCarrier(rc, p.Type)
		if err != nil {
			return nil, fmt.Errorf("classdef: instance TOC for %q: %w", p.Name, err)
		}
		toc[p.Index] = carrier
	}

	quals, err := readQualifierRefs(rc)
	if err != nil {
		return nil, fmt.Errorf("classdef: instance qualifiers: %w", err)
	}

	dynMarker, err := rc.U8()
	if err != nil {
		return nil, fmt.Errorf("classdef: instance dynprops marker: %w", err)
	}
	hasDynprops := dynMarker == cimfmt.DynpropsPresent
	if hasDynprops {
		if _, err := rc.U32(); err != nil {
			return nil, err
		}
		if _, err := rc.U32(); err != nil {
			return nil, err
		}
	}

	instData, err := ParseDataRegion(rc)
	if err != nil {
		return nil, fmt.Errorf("classdef: instance data region: %w", err)
	}

	return &ClassInstance{
		NameHash:        nameHash,
		Timestamp1:      FileTime(ts1),
		Timestamp2:      FileTime(ts2),
		ClassNameOffset: classNameOffset,
		Qualifiers:      quals,
		HasDynprops:     hasDynprops,
		states:          states,
		toc:             toc,
		data:            instData,
	}, nil
}

// ClassName resolves the instance's own class name. The original
// reader always resolves this at data region offset 0 regardless of
// the (also present, but otherwise unused) class_name_offset header
// field, and this reimplementation follows that for fidelity.
func (ci *ClassInstance) ClassName() (string, error) {
	return ci.data.GetString(0)
}

// Value resolves property p's value from this instance's own TOC. The
// second return reports whether the instance's property-state bits
// mark the slot as falling back to the class's default value rather
// than holding an explicit value of its own; the facade layer is
// responsible for then consulting the declaring class definition (and
// its ancestors) for that default.
func (ci *ClassInstance) Value(p ClassDefinitionProperty) (value any, usesDefault bool, err error) {
	idx := int(p.Index)
	initialized, err := ci.states.IsInitialized(idx)
	if err != nil {
		return nil, false, err
	}
	if !initialized {
		return nil, false, fmt.Errorf("classdef: property %q is not initialized on this instance", p.Name)
	}

	useDefault, err := ci.states.UseDefaultValue(idx)
	if err != nil {
		return nil, false, err
	}
	if useDefault {
		return nil, true, nil
	}

	carrier, ok := ci.toc[p.Index]
	if !ok {
		return nil, false, fmt.Errorf("classdef: no TOC entry for property %q", p.Name)
	}
	v, err := ci.data.GetValue(carrier, p.Type)
	if err != nil {
		return nil, false, err
	}
	return v, false, nil
}

// IsInitialized reports whether property p was explicitly set on this
// instance (as opposed to never having been touched since creation).
func (ci *ClassInstance) IsInitialized(p ClassDefinitionProperty) (bool, error) {
	return ci.states.IsInitialized(int(p.Index))
}
