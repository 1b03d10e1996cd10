// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package cimindex

import (
	"fmt"
	"io"
	"strings"

	"github.com/saferwall/cimparse/internal/cimfmt"
	"github.com/saferwall/cimparse/internal/lru"
	"github.com/saferwall/cimparse/internal/mapping"
)

// lookupCacheSize bounds the (root identity, target) lookup memoization
// (spec §4.3: "~1024").
const lookupCacheSize = 1024

type lookupCacheKey struct {
	page   uint32
	target string
}

// Store is the paged B-tree index over a single INDEX.BTR stream,
// translating logical index page numbers through a shared Mapping.
type Store struct {
	r   io.ReaderAt
	m   *mapping.Set
	root *page

	lookupCache *lru.Cache[lookupCacheKey, []string]
}

// New constructs the index store and locates its root page, following
// Store.__init__ in index.py: prefer the mapping entry's UsedSpace
// field as the root page number when the modern layout supplies one,
// otherwise fall back to logical page 0's own root_page header field.
func New(r io.ReaderAt, m *mapping.Set) (*Store, error) {
	s := &Store{
		r:           r,
		m:           m,
		lookupCache: lru.New[lookupCacheKey, []string](lookupCacheSize),
	}

	entry, err := m.Entry(0)
	if err != nil {
		return nil, err
	}

	rootPageNum := entry.UsedSpace
	if !entry.HasMeta {
		p0, err := s.page(0)
		if err != nil {
			return nil, err
		}
		rootPageNum = p0.rootPage
	}

	root, err := s.page(rootPageNum)
	if err != nil {
		return nil, err
	}
	s.root = root
	return s, nil
}

// page reads and decodes the index page at logical page number n.
func (s *Store) page(logicalNum uint32) (*page, error) {
	entry, err := s.m.Entry(logicalNum)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, cimfmt.IndexPageSize)
	off := int64(entry.PageNumber) * cimfmt.IndexPageSize
	if _, err := s.r.ReadAt(buf, off); err != nil && err != io.EOF {
		return nil, fmt.Errorf("cimindex: reading page %d (physical %d): %w", logicalNum, entry.PageNumber, err)
	}

	return parsePage(buf, logicalNum, entry.PageNumber)
}

// Lookup performs the substring-inclusive traversal of spec §4.3,
// starting at the root page, and returns every matching key string in
// traversal order.
func (s *Store) Lookup(target string) ([]string, error) {
	return s.lookup(target, s.root)
}

func (s *Store) lookup(target string, p *page) ([]string, error) {
	cacheKey := lookupCacheKey{page: p.logicalNum, target: target}
	if cached, ok := s.lookupCache.Get(cacheKey); ok {
		return cached, nil
	}

	var matches []string
	count := int(p.count)

scan:
	for i := 0; i < count; i++ {
		pageKey, err := p.key(i)
		if err != nil {
			return nil, err
		}

		switch {
		case strings.Contains(pageKey, target):
			left, err := s.lookupChild(target, p, i, 0)
			if err != nil {
				return nil, err
			}
			matches = append(matches, left...)
			matches = append(matches, pageKey)
			right, err := s.lookupChild(target, p, i, 1)
			if err != nil {
				return nil, err
			}
			matches = append(matches, right...)
			if i == count-1 {
				break scan
			}
			continue

		case target < pageKey:
			left, err := s.lookupChild(target, p, i, 0)
			if err != nil {
				return nil, err
			}
			matches = append(matches, left...)
			break scan

		default: // target > pageKey
			if i == count-1 {
				right, err := s.lookupChild(target, p, i, 1)
				if err != nil {
					return nil, err
				}
				matches = append(matches, right...)
				break scan
			}
			continue
		}
	}

	s.lookupCache.Put(cacheKey, matches)
	return matches, nil
}

// lookupChild recurses into the child pointer at position i+direction
// (direction 0 = left, 1 = right), treating the sentinel child
// pointers 0xFFFFFFFF and 0x00000000 as "no subtree".
func (s *Store) lookupChild(target string, p *page, i, direction int) ([]string, error) {
	childIdx := p.child(i + direction)
	if childIdx == cimfmt.IndexPageInvalid || childIdx == cimfmt.IndexPageInvalid2 {
		return nil, nil
	}

	child, err := s.page(childIdx)
	if err != nil {
		return nil, err
	}
	return s.lookup(target, child)
}
