// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package cimparse

import (
	"fmt"

	"github.com/saferwall/cimparse/internal/classdef"
)

// Class is a navigable class definition, scoped to the namespace it
// was resolved under (spec §4.7).
type Class struct {
	ns     *Namespace
	name   string
	handle *ClassDefinitionHandle
}

// Name returns the class's own name (not its superclass).
func (cl *Class) Name() string { return cl.name }

// Namespace returns the namespace this class was resolved under.
func (cl *Class) Namespace() *Namespace { return cl.ns }

// SuperClassName returns the declared super-class name, or "" at the
// root of a derivation chain.
func (cl *Class) SuperClassName() string { return cl.handle.def.SuperClassName }

// resolveClassDefinition fetches and parses the class_definition
// record for name in namespace ns, caching by "ns/name".
func (c *CIM) resolveClassDefinition(ns, name string) (*ClassDefinitionHandle, error) {
	cacheKey := ns + "/" + name
	if h, ok := c.classCache[cacheKey]; ok {
		return h, nil
	}

	k, err := newKey(c).NS(&ns)
	if err != nil {
		return nil, err
	}
	k, err = k.CD(&name)
	if err != nil {
		return nil, err
	}
	data, err := k.object()
	if err != nil {
		return nil, err
	}

	def, err := classdef.Parse(data)
	if err != nil {
		return nil, &InvalidDatabaseError{Path: k.String(), Err: err}
	}

	h := &ClassDefinitionHandle{def: def, ns: ns}
	c.classCache[cacheKey] = h
	return h, nil
}

// Derivation returns the class's inheritance chain from root to leaf,
// the leaf (self) last (spec §4.6 "Resolved property set", §8
// property 6).
func (cl *Class) Derivation() ([]*Class, error) {
	var chain []*Class
	seen := make(map[string]bool)

	cur := cl
	for {
		chain = append([]*Class{cur}, chain...)
		if seen[cur.name] {
			return nil, &InvalidDatabaseError{Path: cur.name, Err: fmt.Errorf("cyclic class derivation detected")}
		}
		seen[cur.name] = true

		super := cur.SuperClassName()
		if super == "" {
			break
		}
		h, err := cl.ns.cim.resolveClassDefinition(cur.handle.ns, super)
		if err != nil {
			return nil, err
		}
		cur = &Class{ns: cur.ns, name: super, handle: h}
	}
	return chain, nil
}

// Properties returns the class's resolved property set: every
// property declared across the whole derivation chain, unioned by
// name with leaf definitions shadowing same-named ancestor
// definitions, ordered by ascending index (spec §4.6, §8 property 6).
func (cl *Class) Properties() ([]Property, error) {
	chain, err := cl.Derivation()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]classdef.ClassDefinitionProperty)
	for _, ancestor := range chain { // root to leaf: later entries shadow
		for _, p := range ancestor.handle.def.Properties {
			byName[p.Name] = p
		}
	}

	out := make([]Property, 0, len(byName))
	for _, p := range byName {
		out = append(out, Property{class: cl, prop: p})
	}
	sortPropertiesByIndex(out)
	return out, nil
}

// propertyDefaultValues decodes this class definition's own raw
// default-values blob against the class's full resolved property set,
// sorted by ascending index. Every class in a derivation chain embeds
// its own copy of this table sized to the same resolved set, so this
// must be recomputed per ancestor rather than reused across the chain
// (spec §4.6 "Default-value resolution"; grounded on cim.py's
// Class.property_default_values, recomputed per ancestor by
// Property.default_value).
func (cl *Class) propertyDefaultValues() (*classdef.PropertyDefaultValues, error) {
	props, err := cl.Properties()
	if err != nil {
		return nil, err
	}
	sorted := make([]classdef.ClassDefinitionProperty, len(props))
	for i, p := range props {
		sorted[i] = p.prop
	}
	return classdef.ParsePropertyDefaultValues(cl.handle.def.RawDefaultValues(), sorted)
}

func sortPropertiesByIndex(props []Property) {
	for i := 1; i < len(props); i++ {
		for j := i; j > 0 && props[j].prop.Index < props[j-1].prop.Index; j-- {
			props[j], props[j-1] = props[j-1], props[j]
		}
	}
}

// Property looks up a single resolved property by name.
func (cl *Class) Property(name string) (Property, error) {
	props, err := cl.Properties()
	if err != nil {
		return Property{}, err
	}
	for _, p := range props {
		if p.Name() == name {
			return p, nil
		}
	}
	return Property{}, &ReferenceNotFoundError{Key: name}
}

// Qualifiers returns the class's own (non-inherited) qualifiers,
// resolved to name/value pairs.
func (cl *Class) Qualifiers() ([]classdef.Qualifier, error) {
	return classdef.ResolveQualifiers(cl.handle.def.Qualifiers, cl.handle.def.StringData())
}

// Instances queries NS(ns).CI(class_name).IL for every instance
// reference of this class in its namespace (spec §4.7). An instance
// that fails to decode against the resolved property set is recorded
// as an anomaly and skipped rather than failing the whole query.
func (cl *Class) Instances() ([]*Instance, *Anomalies, error) {
	k, err := newKey(cl.ns.cim).NS(&cl.ns.name)
	if err != nil {
		return nil, nil, err
	}
	k, err = k.CI(&cl.name)
	if err != nil {
		return nil, nil, err
	}
	k, err = k.IL(nil)
	if err != nil {
		return nil, nil, err
	}

	blobs, err := k.objects()
	if err != nil {
		return nil, nil, err
	}

	props, err := cl.Properties()
	if err != nil {
		return nil, nil, err
	}
	resolved := make([]classdef.ClassDefinitionProperty, len(props))
	for i, p := range props {
		resolved[i] = p.prop
	}

	anomalies := &Anomalies{}
	out := make([]*Instance, 0, len(blobs))
	for _, data := range blobs {
		inst, err := classdef.ParseInstance(data, resolved, cl.ns.cim.isXP)
		if err != nil {
			anomalies.Record(AnoInstanceParseFailed, &InvalidDatabaseError{Path: k.String(), Err: err})
			continue
		}
		out = append(out, &Instance{class: cl, raw: inst})
	}
	return out, anomalies, nil
}

// Instance looks up a single instance of this class by its key string
// (spec §4.7, §7 "IndexError for Class.instance(key) with no match").
func (cl *Class) Instance(key string) (*Instance, error) {
	instances, _, err := cl.Instances()
	if err != nil {
		return nil, err
	}
	for _, inst := range instances {
		ik, err := inst.Key()
		if err != nil {
			return nil, err
		}
		if ik == key {
			return inst, nil
		}
	}
	return nil, &ReferenceNotFoundError{Key: key}
}
