// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package cimparse

import (
	"fmt"
	"sort"
	"strings"

	"github.com/saferwall/cimparse/internal/classdef"
)

// Instance is a single class instance, resolved against the class
// that declares its properties (spec §4.7).
type Instance struct {
	class *Class
	raw   *classdef.ClassInstance
}

// Class returns the class this instance belongs to.
func (in *Instance) Class() *Class { return in.class }

// Qualifiers resolves the instance's own qualifiers to name/value pairs.
func (in *Instance) Qualifiers() ([]classdef.Qualifier, error) {
	return classdef.ResolveQualifiers(in.raw.Qualifiers, in.class.handle.def.StringData())
}

// Value resolves property p's value on this instance: if the
// instance's own property-state bits say to use the class default,
// the class's (or its declaring ancestor's) default value is returned
// instead of an explicit per-instance value (spec §4.7 "Property
// value resolution").
func (in *Instance) Value(p Property) (any, error) {
	v, usesDefault, err := in.raw.Value(p.prop)
	if err != nil {
		return nil, err
	}
	if usesDefault {
		return p.DefaultValue()
	}
	return v, nil
}

// IsInitialized reports whether property p was explicitly set on this
// instance.
func (in *Instance) IsInitialized(p Property) (bool, error) {
	return in.raw.IsInitialized(p.prop)
}

// Properties returns the resolved property set of the instance's class,
// in ascending index order; Value reads each one off this instance.
func (in *Instance) Properties() ([]Property, error) {
	return in.class.Properties()
}

// Key computes the instance's key string (spec §4.7 "InstanceKey"):
// the instance is enumerated by its primary key properties' current
// values, formatted as ";"-joined name=value pairs in
// property-enumeration order; an instance with no key properties
// yields the literal string "default".
func (in *Instance) Key() (string, error) {
	props, err := in.Properties()
	if err != nil {
		return "", err
	}

	var keyProps []Property
	for _, p := range props {
		isKey, err := p.IsKey()
		if err != nil {
			return "", err
		}
		if isKey {
			keyProps = append(keyProps, p)
		}
	}
	sort.Slice(keyProps, func(a, b int) bool { return keyProps[a].Index() < keyProps[b].Index() })

	if len(keyProps) == 0 {
		return "default", nil
	}

	parts := make([]string, 0, len(keyProps))
	for _, p := range keyProps {
		v, err := in.Value(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("%s=%v", p.Name(), v))
	}
	return strings.Join(parts, ";"), nil
}
