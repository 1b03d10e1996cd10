// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package classdef

import "fmt"

// Qualifier is a resolved, named qualifier value attached to a class,
// property, or instance (spec §3 "Qualifier").
type Qualifier struct {
	Name  string
	Value any
}

// ResolveQualifiers resolves a raw qualifier reference list's names and
// values against strings, the data region the references were parsed
// alongside.
func ResolveQualifiers(refs []QualifierRef, strings *DataRegion) ([]Qualifier, error) {
	out := make([]Qualifier, len(refs))
	for i, ref := range refs {
		name, err := resolveQualifierName(ref.KeyReference, strings)
		if err != nil {
			return nil, fmt.Errorf("classdef: qualifier %d name: %w", i, err)
		}
		value, err := strings.GetValue(ref.Carrier, ref.Type)
		if err != nil {
			return nil, fmt.Errorf("classdef: qualifier %q value: %w", name, err)
		}
		out[i] = Qualifier{Name: name, Value: value}
	}
	return out, nil
}
