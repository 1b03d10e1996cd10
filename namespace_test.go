// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package cimparse

import "testing"

func TestClassNameFromCDKeyExtractsDigestSegment(t *testing.T) {
	digest, ok := classNameFromCDKey("NS_0123ABCD/CD_89DEADBEEF.5.6.7")
	if !ok {
		t.Fatal("classNameFromCDKey: want ok=true")
	}
	if digest != "89DEADBEEF" {
		t.Fatalf("classNameFromCDKey = %q, want %q", digest, "89DEADBEEF")
	}
}

func TestClassNameFromCDKeyNoMatch(t *testing.T) {
	if _, ok := classNameFromCDKey("NS_0123ABCD/IL"); ok {
		t.Fatal("classNameFromCDKey on a ref with no CD_ segment: want ok=false")
	}
}

// TestResolvedDigestYieldsParsedClassName covers the step
// Namespace.Classes relies on to name a class: it resolves a class
// definition by its CD key digest through a pre-populated cache
// (bypassing the index/object-store lookup that classNameFromCDKey's
// digest would otherwise feed) and checks that the definition's parsed
// ClassName(), not the digest, is the real name. Namespace.Classes
// itself is not called.
func TestResolvedDigestYieldsParsedClassName(t *testing.T) {
	def := buildSinglePropertyClassDef("Win32_RealName", 0x00, 1)

	cim := &CIM{classCache: map[string]*ClassDefinitionHandle{
		"root/89DEADBEEF": {def: def, ns: "root"},
	}}

	h, err := cim.resolveClassDefinition("root", "89DEADBEEF")
	if err != nil {
		t.Fatalf("resolveClassDefinition: %v", err)
	}
	name, err := h.def.ClassName()
	if err != nil {
		t.Fatalf("ClassName: %v", err)
	}
	if name != "Win32_RealName" {
		t.Fatalf("ClassName() = %q, want %q (the digest %q must never be used as a display name)", name, "Win32_RealName", "89DEADBEEF")
	}
}
