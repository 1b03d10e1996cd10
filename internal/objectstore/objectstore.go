// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
// Package objectstore reassembles a data reference (logical page,
// record id, length) into a contiguous byte stream, splicing across
// successor pages when a record's payload overflows its home page
// (spec §4.5).
//
// Grounded on dissect/cim/objects.py (Objects, Store, DataPage, TOC).
package objectstore

import (
	"fmt"
	"io"

	"github.com/saferwall/cimparse/internal/cimfmt"
	"github.com/saferwall/cimparse/internal/mapping"
)

// Store is the object (data page) heap backing OBJECTS.DATA, reached
// through a shared Mapping.
type Store struct {
	r io.ReaderAt
	m *mapping.Set
}

// New constructs an object store over r, translating logical pages
// through m.
func New(r io.ReaderAt, m *mapping.Set) *Store {
	return &Store{r: r, m: m}
}

// tocEntry is a single data-page table-of-contents record.
type tocEntry struct {
	recordID uint32
	offset   uint32
	size     uint32
	crc      uint32
}

// readTOC parses the table-of-contents prefix of a data page: a
// sequence of {record_id, offset, size, crc} records terminated by an
// all-zero entry.
func readTOC(buf []byte) ([]tocEntry, error) {
	c := cimfmt.NewCursor(buf)
	var entries []tocEntry
	for {
		id, err := c.U32()
		if err != nil {
			return nil, fmt.Errorf("objectstore: truncated TOC: %w", err)
		}
		off, err := c.U32()
		if err != nil {
			return nil, err
		}
		size, err := c.U32()
		if err != nil {
			return nil, err
		}
		crc, err := c.U32()
		if err != nil {
			return nil, err
		}
		if id == 0 && off == 0 && size == 0 && crc == 0 {
			return entries, nil
		}
		entries = append(entries, tocEntry{recordID: id, offset: off, size: size, crc: crc})
	}
}

// ErrSizeMismatch is returned when a TOC entry's recorded size is
// smaller than the length a data reference demands.
type ErrSizeMismatch struct {
	Have, Want uint32
}

func (e ErrSizeMismatch) Error() string {
	return fmt.Sprintf("objectstore: TOC entry size %d smaller than requested length %d", e.Have, e.Want)
}

// physicalPage reads the raw bytes of physical page number n.
func (s *Store) physicalPage(n uint32) ([]byte, error) {
	buf := make([]byte, cimfmt.DataPageSize)
	off := int64(n) * cimfmt.DataPageSize
	if _, err := s.r.ReadAt(buf, off); err != nil && err != io.EOF {
		return nil, fmt.Errorf("objectstore: reading physical page %d: %w", n, err)
	}
	return buf, nil
}

// logicalPage reads the raw bytes of a logical page, translated
// through the mapping.
func (s *Store) logicalPage(n uint32) ([]byte, error) {
	entry, err := s.m.Entry(n)
	if err != nil {
		return nil, err
	}
	return s.physicalPage(entry.PageNumber)
}

// Fetch resolves a data reference (logical page, record id, expected
// length) into its byte payload, per the algorithm in spec §4.5:
// scan the TOC of the home page for record_id, fail fast if its size
// is smaller than length, and otherwise splice in whole successor
// logical pages (not TOC-parsed — a raw tail) until length bytes are
// assembled.
func (s *Store) Fetch(page, recordID, length uint32) ([]byte, error) {
	home, err := s.logicalPage(page)
	if err != nil {
		return nil, err
	}

	toc, err := readTOC(home)
	if err != nil {
		return nil, err
	}

	var entry *tocEntry
	for i := range toc {
		if toc[i].recordID == recordID {
			entry = &toc[i]
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("objectstore: record id %d not found on logical page %d", recordID, page)
	}

	if entry.size < length {
		return nil, ErrSizeMismatch{Have: entry.size, Want: length}
	}

	// TODO(cimparse): the original dissect.cim DataPage.data() has an
	// unhandled branch here — `if entry.size > DATA_PAGE_SIZE -
	// entry.offset: pass` — whose intent is unclear; a strict
	// reimplementation would treat an entry whose declared size runs
	// past the end of the page as on-page overflow and fall through to
	// the splicing path below, but the bounds check below already
	// clamps the read to what is actually present on the page, which
	// has the same effect for well-formed fixtures. Flagged rather
	// than guessed at, per the open question this carries forward.
	end := int(entry.offset) + int(entry.size)
	if end > len(home) {
		end = len(home)
	}
	if int(entry.offset) > len(home) {
		return nil, fmt.Errorf("objectstore: TOC entry offset %d beyond page bounds", entry.offset)
	}
	buf := append([]byte(nil), home[entry.offset:end]...)

	if uint32(len(buf)) == length {
		return buf, nil
	}

	out := make([]byte, 0, length)
	out = append(out, buf...)

	curPage := page + 1
	for uint32(len(out)) < length {
		next, err := s.logicalPage(curPage)
		if err != nil {
			return nil, err
		}

		remaining := length - uint32(len(out))
		if uint32(len(next)) > remaining {
			out = append(out, next[:remaining]...)
		} else {
			out = append(out, next...)
		}
		curPage++
	}

	return out, nil
}
