// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
// Package cimindex implements the paged B-tree-like index over
// compressed string keys (spec §4.3) and its substring-inclusive
// lookup algorithm.
//
// Grounded on dissect/cim/index.py (Store, IndexPage, Key.lookup) and,
// for the recursive page-tree traversal shape, on the teacher's own
// doParseResourceDirectory in resource.go — both walk a disk-backed
// tree of fixed-size pages, recursing into child pages identified by
// an offset/index found on the current page, with an explicit guard
// against invalid/sentinel child pointers.
package cimindex

import (
	"bytes"
	"fmt"

	"github.com/saferwall/cimparse/internal/cimfmt"
	"github.com/saferwall/cimparse/internal/lru"
)

// keyCacheSize bounds the per-page key() memoization (spec §4.3: "~256").
const keyCacheSize = 256

// page is a single decoded index page: its header, the raw child
// pointer and key-descriptor arrays, and the tail byte region the
// string table's offsets point into.
type page struct {
	logicalNum uint32
	physicalNum uint32

	signature  uint32
	rootPage   uint32
	count      uint32

	children       []uint32
	keys           []uint16
	stringDefTable []uint16
	stringTable    []uint16
	tail           []byte

	keyCache *lru.Cache[uint32, string]
}

func parsePage(buf []byte, logicalNum, physicalNum uint32) (*page, error) {
	c := cimfmt.NewCursor(buf)

	sig, err := c.U32()
	if err != nil {
		return nil, err
	}
	if _, err := c.U32(); err != nil { // logical_id, unused: caller already knows it
		return nil, err
	}
	if _, err := c.U32(); err != nil { // _pad
		return nil, err
	}
	rootPage, err := c.U32()
	if err != nil {
		return nil, err
	}
	recordCount, err := c.U32()
	if err != nil {
		return nil, err
	}

	// unk0[record_count], not used by any query.
	if _, err := c.Bytes(int(recordCount) * 4); err != nil {
		return nil, fmt.Errorf("cimindex: page %d: unk table: %w", logicalNum, err)
	}

	children := make([]uint32, recordCount+1)
	for i := range children {
		if children[i], err = c.U32(); err != nil {
			return nil, fmt.Errorf("cimindex: page %d: children: %w", logicalNum, err)
		}
	}

	keys := make([]uint16, recordCount)
	for i := range keys {
		if keys[i], err = c.U16(); err != nil {
			return nil, fmt.Errorf("cimindex: page %d: keys: %w", logicalNum, err)
		}
	}

	stringDefSize, err := c.U16()
	if err != nil {
		return nil, err
	}
	stringDefTable := make([]uint16, stringDefSize)
	for i := range stringDefTable {
		if stringDefTable[i], err = c.U16(); err != nil {
			return nil, fmt.Errorf("cimindex: page %d: string definition table: %w", logicalNum, err)
		}
	}

	stringTableSize, err := c.U16()
	if err != nil {
		return nil, err
	}
	stringTable := make([]uint16, int(stringTableSize)+1)
	for i := range stringTable {
		if stringTable[i], err = c.U16(); err != nil {
			return nil, fmt.Errorf("cimindex: page %d: string table: %w", logicalNum, err)
		}
	}

	tail, err := c.Bytes(c.Len())
	if err != nil {
		return nil, err
	}

	return &page{
		logicalNum:     logicalNum,
		physicalNum:    physicalNum,
		signature:      sig,
		rootPage:       rootPage,
		count:          recordCount,
		children:       children,
		keys:           keys,
		stringDefTable: stringDefTable,
		stringTable:    stringTable,
		tail:           tail,
		keyCache:       lru.New[uint32, string](keyCacheSize),
	}, nil
}

// child returns the logical page number of the idx'th child pointer.
func (p *page) child(idx int) uint32 {
	return p.children[idx]
}

// stringPart decodes the NUL-terminated UTF-8 fragment at stringTable[idx].
func (p *page) stringPart(idx uint16) (string, error) {
	if int(idx) >= len(p.stringTable) {
		return "", fmt.Errorf("cimindex: page %d: string table index %d out of range", p.logicalNum, idx)
	}
	offset := int(p.stringTable[idx])
	if offset < 0 || offset > len(p.tail) {
		return "", fmt.Errorf("cimindex: page %d: string offset %d out of range", p.logicalNum, offset)
	}
	end := bytes.IndexByte(p.tail[offset:], 0)
	if end < 0 {
		end = len(p.tail) - offset
	}
	return string(p.tail[offset : offset+end]), nil
}

// str reconstructs the "/"-joined string whose parts are described by
// the string-definition-table entry at idx.
func (p *page) str(idx uint16) (string, error) {
	if int(idx) >= len(p.stringDefTable) {
		return "", fmt.Errorf("cimindex: page %d: string definition index %d out of range", p.logicalNum, idx)
	}
	partCount := int(p.stringDefTable[idx])

	parts := make([]string, 0, partCount)
	for i := 0; i < partCount; i++ {
		descIdx := int(idx) + 1 + i
		if descIdx >= len(p.stringDefTable) {
			return "", fmt.Errorf("cimindex: page %d: string definition table truncated", p.logicalNum)
		}
		part, err := p.stringPart(p.stringDefTable[descIdx])
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}

	out := ""
	for i, part := range parts {
		if i > 0 {
			out += "/"
		}
		out += part
	}
	return out, nil
}

// key returns the reconstructed textual key at record position idx,
// memoized per-page.
func (p *page) key(idx int) (string, error) {
	if cached, ok := p.keyCache.Get(uint32(idx)); ok {
		return cached, nil
	}
	if idx >= len(p.keys) {
		return "", fmt.Errorf("cimindex: page %d: record index %d out of range", p.logicalNum, idx)
	}
	k, err := p.str(p.keys[idx])
	if err != nil {
		return "", err
	}
	p.keyCache.Put(uint32(idx), k)
	return k, nil
}
