// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cimparse

import "go.uber.org/multierr"

// Anomalies recorded while walking the repository: a class reference
// that fails to parse, an instance that fails to decode against its
// class. (A mapping footer signature mismatch is not recorded here; New
// only logs it as a warning.) Enumeration keeps going past a
// bad entry rather than failing the whole walk — mirroring the teacher
// library's own Anomalies []string, but aggregated with
// go.uber.org/multierr so the underlying errors remain inspectable
// instead of being flattened to bare strings.
var (
	AnoClassParseFailed    = "class definition failed to parse"
	AnoInstanceParseFailed = "class instance failed to decode"
	AnoCyclicDerivation    = "cyclic class derivation chain"
)

// Anomalies is a non-fatal error list accumulated during a best-effort
// enumeration (spec §7: "read-only best-effort" extends to skipping,
// not failing, on a single bad entry).
type Anomalies struct {
	err error
}

// Record appends err, tagged with anomaly label, to the accumulated
// anomaly list.
func (a *Anomalies) Record(label string, err error) {
	a.err = multierr.Append(a.err, &Error{Op: label, Err: err})
}

// Err returns every recorded anomaly combined via multierr.Combine, or
// nil if none were recorded.
func (a *Anomalies) Err() error { return a.err }

// Empty reports whether no anomalies were recorded.
func (a *Anomalies) Empty() bool { return a.err == nil }
