// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package cimparse

import (
	"errors"
	"testing"
)

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying failure")
	err := &Error{Op: "New", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is could not find the wrapped cause through Error.Unwrap")
	}
}

func TestErrorMessageWithAndWithoutOp(t *testing.T) {
	withOp := &Error{Op: "New", Err: errors.New("boom")}
	if withOp.Error() != "cimparse: New: boom" {
		t.Errorf("Error() = %q, want %q", withOp.Error(), "cimparse: New: boom")
	}

	withoutOp := &Error{Err: errors.New("boom")}
	if withoutOp.Error() != "boom" {
		t.Errorf("Error() = %q, want %q", withoutOp.Error(), "boom")
	}
}

func TestInvalidDatabaseErrorUnwrap(t *testing.T) {
	cause := errors.New("bad signature")
	err := &InvalidDatabaseError{Path: "INDEX.BTR", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is could not find the wrapped cause through InvalidDatabaseError.Unwrap")
	}
}

func TestReferenceNotFoundErrorMessage(t *testing.T) {
	err := &ReferenceNotFoundError{Key: "CD_DEADBEEF"}
	if err.Error() == "" {
		t.Fatal("ReferenceNotFoundError.Error() returned an empty string")
	}
}

func TestUnmappedPageErrorMessage(t *testing.T) {
	err := &UnmappedPageError{Logical: 42}
	if err.Error() == "" {
		t.Fatal("UnmappedPageError.Error() returned an empty string")
	}
}
