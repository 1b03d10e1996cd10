// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package cimparse

import "fmt"

// Error is the base of cimparse's error taxonomy: Error and its more
// specific siblings below mirror the teacher library's sentinel
// errors.New package-level vars but are typed so callers can recover
// structured detail (which path, which key) with errors.As instead of
// just a string. Not every returned error is one of these types:
// errors from the mapping (an unmapped page included), the object
// store, and key or record decoding are passed back as they are.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("cimparse: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// InvalidDatabaseError reports that a repository file's structure did
// not match what the format requires: a bad signature, a truncated
// record, a mapping entry pointing out of bounds.
type InvalidDatabaseError struct {
	Path string
	Err  error
}

func (e *InvalidDatabaseError) Error() string {
	return fmt.Sprintf("cimparse: invalid database %q: %v", e.Path, e.Err)
}

func (e *InvalidDatabaseError) Unwrap() error { return e.Err }

// ReferenceNotFoundError reports that a namespace, class, or instance
// key did not resolve to anything in the repository.
type ReferenceNotFoundError struct {
	Key string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("cimparse: reference not found: %s", e.Key)
}

// UnmappedPageError reports that a logical page number has no
// physical page assigned to it in the active mapping. No function in
// this package returns it; an unmapped page surfaces as the mapping
// package's own ErrUnmapped.
type UnmappedPageError struct {
	Logical uint32
}

func (e *UnmappedPageError) Error() string {
	return fmt.Sprintf("cimparse: unmapped logical page %d", e.Logical)
}
