// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
// Package log provides the structured logger shared across cimparse's
// packages: a thin wrapper over zap.SugaredLogger, the logging stack
// grounded on ignite's internal/engine use of *zap.SugaredLogger as a
// struct field threaded through constructors.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging handle passed into Options.Logger. A nil
// Logger is valid everywhere it's accepted and disables logging.
type Logger = zap.SugaredLogger

// New builds a development-mode logger: console-encoded, timestamped,
// logging at level or above.
func New(level zapcore.Level) (*Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// Nop returns a logger that discards everything, for callers that
// don't supply their own via Options.
func Nop() *Logger {
	return zap.NewNop().Sugar()
}

// From returns l if non-nil, otherwise a no-op logger; every package
// that accepts an optional *Logger normalizes through this so call
// sites never need a nil check of their own.
func From(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}
