// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
// Package cimparse is a read-only parser and navigator for the
// Windows CIM (WMI) on-disk repository: a Mapping set, a paged B-tree
// Index over compressed string keys, an Object heap, and a
// Class/Instance deserializer, composed into a Namespace/Class/
// Instance/Property facade layer keyed by textual paths.
//
// Grounded on the teacher library's top-level pe.go: a single session
// struct built by a package-level New/Open constructor, wrapping
// mmap-backed byte streams and exposing typed accessors rather than a
// raw parse tree.
package cimparse

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"

	"github.com/saferwall/cimparse/internal/cimfmt"
	"github.com/saferwall/cimparse/internal/cimindex"
	"github.com/saferwall/cimparse/internal/classdef"
	"github.com/saferwall/cimparse/internal/mapping"
	"github.com/saferwall/cimparse/internal/objectstore"
	"github.com/saferwall/cimparse/pkg/log"
)

const (
	rootNamespaceName   = "root"
	systemNamespaceName = "__SystemClass"
)

// Options configures Open/New. The zero value is valid and uses a
// no-op logger.
type Options struct {
	// Logger receives structured diagnostics during construction and
	// navigation. Nil disables logging.
	Logger *log.Logger
}

func (o *Options) logger() *log.Logger {
	if o == nil {
		return log.Nop()
	}
	return log.From(o.Logger)
}

// CIM is an open repository session: the winning mapping, the index
// and object stores built over it, and the namespace/class/instance
// caches the Navigator facades populate lazily.
//
// Ownership follows spec §3: CIM owns the three backing byte streams;
// Mapping owns the parsed current-map record; Index and Objects each
// hold a non-owning handle to the stream and a shared reference to
// the Mapping.
type CIM struct {
	indexStream   io.ReaderAt
	objectsStream io.ReaderAt

	m       *mapping.Set
	index   *cimindex.Store
	objects *objectstore.Store
	isXP    bool

	log *log.Logger

	classCache map[string]*ClassDefinitionHandle
	nsCache    map[string]*Namespace
}

// closer, if the backing streams need releasing, is held separately so
// CIM itself stays a plain value the facades can copy references to.
type closer struct {
	mmaps []mmap.MMap
	files []*os.File
}

// sessionWithCloser pairs a CIM with the resources Open allocated for
// it, so Close can release them; New (which accepts caller-owned
// streams) never populates this.
type sessionWithCloser struct {
	*CIM
	c closer
}

// Close unmaps and closes every file Open mapped. It is a no-op for
// sessions built with New from caller-supplied streams.
func (s *sessionWithCloser) Close() error {
	var firstErr error
	for _, m := range s.c.mmaps {
		if err := m.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, f := range s.c.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Open builds a session from the fixed filenames (INDEX.BTR,
// OBJECTS.DATA, MAPPING1.MAP..MAPPING3.MAP) found under dir, the
// convenience opener described in spec §6. Files are memory-mapped
// read-only the way the teacher library maps a PE image.
func Open(dir string, opts *Options) (*sessionWithCloser, error) {
	log := opts.logger()

	indexFile, indexMap, err := openMapped(filepath.Join(dir, "INDEX.BTR"))
	if err != nil {
		return nil, err
	}
	objectsFile, objectsMap, err := openMapped(filepath.Join(dir, "OBJECTS.DATA"))
	if err != nil {
		return nil, err
	}

	var mapFiles []*os.File
	var mapMaps []mmap.MMap
	var mapStreams []io.ReadSeeker
	for i := 1; i <= 3; i++ {
		f, m, err := openMapped(filepath.Join(dir, fmt.Sprintf("MAPPING%d.MAP", i)))
		if err != nil {
			return nil, err
		}
		mapFiles = append(mapFiles, f)
		mapMaps = append(mapMaps, m)
		mapStreams = append(mapStreams, bytes.NewReader([]byte(m)))
	}

	cim, err := New(bytes.NewReader(indexMap), bytes.NewReader(objectsMap), mapStreams, opts)
	if err != nil {
		return nil, err
	}
	log.Debugw("opened cim repository", "dir", dir, "xp", cim.isXP)

	allFiles := append([]*os.File{indexFile, objectsFile}, mapFiles...)
	allMaps := append([]mmap.MMap{indexMap, objectsMap}, mapMaps...)

	return &sessionWithCloser{CIM: cim, c: closer{mmaps: allMaps, files: allFiles}}, nil
}

func openMapped(path string) (*os.File, mmap.MMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &InvalidDatabaseError{Path: path, Err: err}
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, nil, &InvalidDatabaseError{Path: path, Err: err}
	}
	return f, m, nil
}

// New builds a session directly from caller-owned byte streams: the
// index stream, the objects stream, and exactly three candidate
// mapping streams. This is the path Open delegates to once its files
// are mapped, and the one embedders with their own I/O layer use
// directly.
func New(indexStream, objectsStream io.ReaderAt, mappingStreams []io.ReadSeeker, opts *Options) (*CIM, error) {
	log := opts.logger()

	if len(mappingStreams) != 3 {
		return nil, &Error{Op: "New", Err: fmt.Errorf("expected 3 mapping streams, got %d", len(mappingStreams))}
	}

	isXP, winner, err := mapping.SelectCurrent(mappingStreams)
	if err != nil {
		return nil, &InvalidDatabaseError{Path: "mapping", Err: err}
	}

	winnerStream := mappingStreams[winner]
	if _, err := winnerStream.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	m, err := mapping.New(winnerStream, isXP)
	if err != nil {
		return nil, &InvalidDatabaseError{Path: "mapping", Err: err}
	}

	// mapping.New buffers its entire input via io.ReadAll, so the
	// stream is left positioned at EOF; seek back to the end of the
	// record it actually consumed before looking for the trailing
	// footer signature that immediately follows it.
	if _, err := winnerStream.Seek(int64(m.Consumed()), io.SeekStart); err == nil {
		checkFooter(winnerStream, m, log)
	}

	index, err := cimindex.New(indexStream, m)
	if err != nil {
		return nil, &InvalidDatabaseError{Path: "INDEX.BTR", Err: err}
	}
	objects := objectstore.New(objectsStream, m)

	return &CIM{
		indexStream:   indexStream,
		objectsStream: objectsStream,
		m:             m,
		index:         index,
		objects:       objects,
		isXP:          isXP,
		log:           log,
		classCache:    make(map[string]*ClassDefinitionHandle),
		nsCache:       make(map[string]*Namespace),
	}, nil
}

// checkFooter best-effort verifies the trailing 0xDCBA footer signature
// immediately following the mapping record. Spec §3 notes this is
// sometimes absent from later Windows builds' index mapping, so a
// short read or EOF is not itself an error — only an explicitly wrong
// value is logged, since CRC/footer enforcement is read-only
// best-effort per spec §7.
func checkFooter(r io.Reader, m *mapping.Set, log *log.Logger) {
	buf := make([]byte, 4)
	n, err := io.ReadFull(r, buf)
	if err != nil || n != 4 {
		return
	}
	sig := binary.LittleEndian.Uint32(buf)
	if sig != cimfmt.FooterSignature {
		log.Warnw("mapping footer signature mismatch", "got", sig, "want", uint32(cimfmt.FooterSignature))
	}
}

// IsXP reports whether this session's repository uses the legacy
// Windows XP on-disk layout.
func (c *CIM) IsXP() bool { return c.isXP }

// Root returns the "root" namespace, the top of the namespace tree.
func (c *CIM) Root() *Namespace { return c.namespace(rootNamespaceName) }

// System returns the well-known "__SystemClass" namespace that every
// namespace's class lookups fall back to.
func (c *CIM) System() *Namespace { return c.namespace(systemNamespaceName) }

func (c *CIM) namespace(name string) *Namespace {
	if ns, ok := c.nsCache[name]; ok {
		return ns
	}
	ns := &Namespace{cim: c, name: name}
	c.nsCache[name] = ns
	return ns
}

// ClassDefinitionHandle pairs a parsed class definition with the
// namespace key it was resolved under, so inheritance walks and
// instance decoding know where to look up the superclass.
type ClassDefinitionHandle struct {
	def *classdef.ClassDefinition
	ns  string
}
