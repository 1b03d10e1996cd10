// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package cimparse

import (
	"fmt"
	"strings"
)

// Namespace is a navigable CIM namespace (spec §4.7 "Namespace").
type Namespace struct {
	cim  *CIM
	name string
}

// Name returns the namespace's path: "root" or "__SystemClass" for the
// well-known namespaces, and "parent\child" for a namespace reached
// through Namespaces.
func (ns *Namespace) Name() string { return ns.name }

// Class_ resolves a class definition by name in this namespace,
// falling back to the well-known __SystemClass namespace when this
// namespace has no class definition reference of its own (spec §4.7
// "Namespace.class").
func (ns *Namespace) Class_(name string) (*Class, error) {
	h, err := ns.cim.resolveClassDefinition(ns.name, name)
	if err == nil {
		return &Class{ns: ns, name: name, handle: h}, nil
	}
	if _, ok := err.(*ReferenceNotFoundError); !ok {
		return nil, err
	}

	h, err = ns.cim.resolveClassDefinition(systemNamespaceName, name)
	if err != nil {
		return nil, err
	}
	return &Class{ns: ns, name: name, handle: h}, nil
}

// Classes enumerates every class visible from this namespace: the
// system classes (reparented so they resolve within this namespace)
// plus this namespace's own class-definition references, deduplicated
// by name (spec §4.7 "Namespace.classes"). A class reference that
// fails to parse is recorded as an anomaly and skipped rather than
// failing the whole enumeration.
func (ns *Namespace) Classes() ([]*Class, *Anomalies, error) {
	byName := make(map[string]*Class)
	anomalies := &Anomalies{}

	sysKey, err := newKey(ns.cim).NS(strPtr(systemNamespaceName))
	if err != nil {
		return nil, nil, err
	}
	sysKey, err = sysKey.CD(nil)
	if err != nil {
		return nil, nil, err
	}
	sysRefs, err := sysKey.references()
	if err != nil {
		return nil, nil, err
	}
	for _, ref := range sysRefs {
		digest, ok := classNameFromCDKey(ref)
		if !ok {
			continue
		}
		h, err := ns.cim.resolveClassDefinition(systemNamespaceName, digest)
		if err != nil {
			anomalies.Record(AnoClassParseFailed, err)
			continue
		}
		name, err := h.def.ClassName()
		if err != nil {
			anomalies.Record(AnoClassParseFailed, err)
			continue
		}
		byName[name] = &Class{ns: ns, name: name, handle: h}
	}

	ownKey, err := newKey(ns.cim).NS(strPtr(ns.name))
	if err != nil {
		return nil, nil, err
	}
	ownKey, err = ownKey.CD(nil)
	if err != nil {
		return nil, nil, err
	}
	ownRefs, err := ownKey.references()
	if err != nil {
		return nil, nil, err
	}
	for _, ref := range ownRefs {
		digest, ok := classNameFromCDKey(ref)
		if !ok {
			continue
		}
		h, err := ns.cim.resolveClassDefinition(ns.name, digest)
		if err != nil {
			anomalies.Record(AnoClassParseFailed, err)
			continue
		}
		name, err := h.def.ClassName()
		if err != nil {
			anomalies.Record(AnoClassParseFailed, err)
			continue
		}
		byName[name] = &Class{ns: ns, name: name, handle: h}
	}

	out := make([]*Class, 0, len(byName))
	for _, cl := range byName {
		out = append(out, cl)
	}
	return out, anomalies, nil
}

// classNameFromCDKey extracts the hashed-name component off a resolved
// "NS_xxx/CD_yyy[.page.id.length]" style reference, identifying it only
// by structural position. This digest is only good for re-resolving
// the class definition (hashName passes an already-hashed name
// through unchanged); the real class name comes from the parsed
// definition's ClassName(), since the key format does not carry it in
// plaintext.
func classNameFromCDKey(ref string) (string, bool) {
	segs := strings.Split(ref, "/")
	for _, s := range segs {
		if strings.HasPrefix(s, "CD_") {
			rest := strings.TrimPrefix(s, "CD_")
			if i := strings.IndexByte(rest, '.'); i >= 0 {
				rest = rest[:i]
			}
			return rest, true
		}
	}
	return "", false
}

// Namespace resolves a single immediate child namespace by name,
// case-insensitively, among this namespace's children (spec §4.7
// "Namespace.namespace").
func (ns *Namespace) Namespace(childName string) (*Namespace, error) {
	children, err := ns.Namespaces()
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if strings.EqualFold(child.name, ns.name+"\\"+childName) || strings.EqualFold(lastSegment(child.name), childName) {
			return child, nil
		}
	}
	return nil, &ReferenceNotFoundError{Key: childName}
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '\\'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Namespaces enumerates every immediate child namespace: the
// __namespace class instances filed under this namespace, each naming
// a child via its "Name" property (spec §4.7 "Namespace.namespaces").
// Under "root" this additionally yields the well-known system
// namespace, which the original always surfaces there even though no
// __namespace instance names it.
func (ns *Namespace) Namespaces() ([]*Namespace, error) {
	const namespaceClassName = "__namespace"

	cl, err := ns.Class_(namespaceClassName)
	if err != nil {
		return nil, err
	}
	instances, _, err := cl.Instances()
	if err != nil {
		return nil, err
	}

	var out []*Namespace
	for _, inst := range instances {
		childName, err := namespaceInstanceName(inst)
		if err != nil {
			return nil, err
		}
		full := ns.name + "\\" + childName
		out = append(out, ns.cim.namespace(full))
	}

	if ns.name == rootNamespaceName {
		// TODO: why does root yield __SystemClass as a child namespace
		// here? No __namespace instance names it. Kept as-is.
		out = append(out, ns.cim.System())
	}

	return out, nil
}

func namespaceInstanceName(inst *Instance) (string, error) {
	p, err := inst.class.Property("Name")
	if err != nil {
		return "", err
	}
	v, err := inst.Value(p)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", &InvalidDatabaseError{Path: "__namespace.Name", Err: fmt.Errorf("Name property is not a string (got %T)", v)}
	}
	return s, nil
}
