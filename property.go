// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package cimparse

import (
	"fmt"

	"github.com/saferwall/cimparse/internal/classdef"
)

// Property is a single property in a class's resolved property set:
// own or inherited, with its declaring class's default value resolved
// lazily and only on request (spec §4.6, §4.7).
type Property struct {
	class *Class
	prop  classdef.ClassDefinitionProperty
}

// Name returns the property's name.
func (p Property) Name() string { return p.prop.Name }

// Index returns the property's position in the class's resolved,
// index-sorted property set.
func (p Property) Index() uint16 { return p.prop.Index }

// Qualifiers resolves the property's own qualifiers to name/value pairs.
func (p Property) Qualifiers() ([]classdef.Qualifier, error) {
	return classdef.ResolveQualifiers(p.prop.Qualifiers, p.class.handle.def.StringData())
}

// IsKey reports whether the property carries the builtin primary-key
// qualifier, marking it as part of the class's key property set (spec
// §4.7 "InstanceKey").
func (p Property) IsKey() (bool, error) {
	quals, err := p.Qualifiers()
	if err != nil {
		return false, err
	}
	for _, q := range quals {
		if q.Name == "PROP_QUALIFIER_KEY" {
			if b, ok := q.Value.(bool); ok {
				return b, nil
			}
			return true, nil
		}
	}
	return false, nil
}

// IsInherited reports whether this property's default-value slot on
// the property's class (the class whose Properties returned it) is an
// inherited entry, as opposed to one that class declares itself.
// Grounded on cim.py's Property.is_inherited, which reads this off the
// class's own property_default_values rather than off Level (which
// only records where the property was first introduced in the chain).
func (p Property) IsInherited() (bool, error) {
	defaults, err := p.class.propertyDefaultValues()
	if err != nil {
		return false, err
	}
	return defaults.IsInherited(p.prop.Index)
}

// HasDefaultValue reports whether the class records a default value
// for this property at all.
func (p Property) HasDefaultValue() (bool, error) {
	defaults, err := p.class.propertyDefaultValues()
	if err != nil {
		return false, err
	}
	return defaults.HasDefaultValue(p.prop.Index)
}

// DefaultValue resolves the property's default value. When the
// property is inherited, the default is not necessarily recorded on
// the leaf class itself — the original walks the derivation chain from
// the leaf backward to the root, asking each ancestor's own resolved
// default-value table until one reports the value as not inherited
// (i.e. actually declared at that level), and uses that level's value.
//
// Grounded on cim.py's Property.default_value.
func (p Property) DefaultValue() (any, error) {
	hasDefault, err := p.HasDefaultValue()
	if err != nil {
		return nil, err
	}
	if !hasDefault {
		return nil, fmt.Errorf("cimparse: property %q has no default value", p.prop.Name)
	}

	chain, err := p.class.Derivation()
	if err != nil {
		return nil, err
	}

	for i := len(chain) - 1; i >= 0; i-- {
		cl := chain[i]
		defaults, err := cl.propertyDefaultValues()
		if err != nil {
			return nil, err
		}
		ancestorHasDefault, err := defaults.HasDefaultValue(p.prop.Index)
		if err != nil {
			return nil, err
		}
		if !ancestorHasDefault {
			return nil, fmt.Errorf("cimparse: ancestor class %q declares no default value for property %q", cl.name, p.prop.Name)
		}
		inherited, err := defaults.IsInherited(p.prop.Index)
		if err != nil {
			return nil, err
		}
		if inherited {
			continue
		}
		carrier, typ, err := defaults.Raw(p.prop.Index)
		if err != nil {
			return nil, err
		}
		return cl.handle.def.StringData().GetValue(carrier, typ)
	}
	return nil, fmt.Errorf("cimparse: unable to find ancestor class with default value for property %q", p.prop.Name)
}
