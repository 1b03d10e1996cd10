// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
// Package mapping implements mapping-file selection and logical-to-
// physical page translation (spec §4.1, §4.2).
//
// Grounded on dissect/cim/mappings.py and dissect/cim/utils.py
// (find_current_mapping, is_xp_mapping), restructured in the teacher
// library's style: a typed record set built once from a bounds-checked
// cursor (internal/cimfmt), with an LRU-cached accessor instead of
// Python's functools.lru_cache decorator.
package mapping

import (
	"fmt"
	"io"

	"github.com/saferwall/cimparse/internal/cimfmt"
	"github.com/saferwall/cimparse/internal/lru"
)

// entryCacheSize bounds the recent-lookup cache on Set.Entry, matching
// the suggested capacity in spec §4.2.
const entryCacheSize = 256

// Entry is a single mapping-table record: the physical page a logical
// page number resolves to, plus the modern-layout per-page metadata
// (nil under the XP layout, where entries are bare page numbers).
type Entry struct {
	PageNumber uint32

	// The following are only populated for the modern (non-XP) layout.
	HasMeta   bool
	PageCRC   uint32
	FreeSpace uint32
	UsedSpace uint32
	FirstID   uint32
	SecondID  uint32
}

// IsMapped reports whether the entry resolves to a real physical page.
func (e Entry) IsMapped() bool {
	return e.PageNumber != cimfmt.UnmappedPage
}

// Set is a parsed mapping table: the winning mapping file's header and
// entry array, offering forward (logical->physical) and reverse
// (physical->logical) translation.
type Set struct {
	isXP    bool
	entries []Entry
	consumed int

	cache       *lru.Cache[uint32, Entry]
	reverseMap  map[uint32]uint32
	reverseBuilt bool
}

// Consumed returns the number of bytes read from the winner stream to
// parse the mapping record (header + entry array). Callers use this to
// locate the optional trailing footer signature (spec §3).
func (s *Set) Consumed() int { return s.consumed }

// Header mirrors the fixed portion common to both mapping_header and
// mapping_header_xp, as decoded from the winning stream.
type Header struct {
	Signature         uint32
	Version           uint32
	FirstID           uint32 // zero value under XP, where the field does not exist
	SecondID          uint32
	HasIDs            bool
	PhysicalPageCount uint32
	EntryCount        uint32
}

func readHeader(c *cimfmt.Cursor, isXP bool) (Header, error) {
	var h Header
	var err error
	if h.Signature, err = c.U32(); err != nil {
		return h, err
	}
	if h.Version, err = c.U32(); err != nil {
		return h, err
	}
	if !isXP {
		if h.FirstID, err = c.U32(); err != nil {
			return h, err
		}
		if h.SecondID, err = c.U32(); err != nil {
			return h, err
		}
		h.HasIDs = true
	}
	if h.PhysicalPageCount, err = c.U32(); err != nil {
		return h, err
	}
	if h.EntryCount, err = c.U32(); err != nil {
		return h, err
	}
	return h, nil
}

// IsXPMapping applies the variant-detection heuristic of spec §3 /
// utils.py:is_xp_mapping to an already-decoded header.
func IsXPMapping(h Header) (bool, error) {
	if h.Signature != cimfmt.MappingSignature {
		return false, fmt.Errorf("mapping: invalid signature %#x", h.Signature)
	}

	if h.EntryCount < h.PhysicalPageCount/10 {
		return true, nil
	}

	if h.HasIDs && h.FirstID-1 != h.SecondID {
		return true, nil
	}

	return false, nil
}

// SelectCurrent implements find_current_mapping (spec §4.1): read each
// candidate's header, fix the XP/modern variant from the first
// candidate, re-read all headers under that variant, and return the
// index of the stream with the strictly highest version.
func SelectCurrent(streams []io.ReadSeeker) (isXP bool, winner int, err error) {
	if len(streams) == 0 {
		return false, -1, fmt.Errorf("mapping: no candidate mapping streams")
	}

	const headerProbeSize = 24 // large enough for either header shape
	variantFixed := false
	maxVersion := uint32(0)
	winner = -1

	for i, s := range streams {
		if _, err := s.Seek(0, io.SeekStart); err != nil {
			return false, -1, err
		}
		buf := make([]byte, headerProbeSize)
		n, rerr := io.ReadFull(s, buf)
		if rerr != nil && rerr != io.ErrUnexpectedEOF {
			return false, -1, rerr
		}
		buf = buf[:n]

		if !variantFixed {
			h, herr := readHeader(cimfmt.NewCursor(buf), false)
			if herr != nil {
				return false, -1, herr
			}
			xp, derr := IsXPMapping(h)
			if derr != nil {
				return false, -1, derr
			}
			isXP = xp
			variantFixed = true
		}

		h, herr := readHeader(cimfmt.NewCursor(buf), isXP)
		if herr != nil {
			return false, -1, herr
		}
		if h.Signature != cimfmt.MappingSignature {
			return false, -1, fmt.Errorf("mapping: invalid signature %#x in candidate %d", h.Signature, i)
		}

		if h.Version > maxVersion || winner == -1 {
			maxVersion = h.Version
			winner = i
		}

		if _, err := s.Seek(0, io.SeekStart); err != nil {
			return false, -1, err
		}
	}

	return isXP, winner, nil
}

// New parses the full mapping record (header + entry array) from r at
// its current position, per spec §4.2 ("Construction parses the
// entire mapping record out of the winner stream at its current
// position").
func New(r io.Reader, isXP bool) (*Set, error) {
	// The entry array length is unknown up front, so the whole
	// remainder is buffered the way Python's cstruct reads a length-
	// prefixed record off a file handle.
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	c := cimfmt.NewCursor(buf)

	h, err := readHeader(c, isXP)
	if err != nil {
		return nil, err
	}
	if h.Signature != cimfmt.MappingSignature {
		return nil, fmt.Errorf("mapping: invalid signature %#x", h.Signature)
	}

	entries := make([]Entry, 0, h.EntryCount)
	for i := uint32(0); i < h.EntryCount; i++ {
		var e Entry
		if isXP {
			pn, err := c.U32()
			if err != nil {
				return nil, fmt.Errorf("mapping: entry %d: %w", i, err)
			}
			e.PageNumber = pn & cimfmt.PageIDMask
		} else {
			pn, err := c.U32()
			if err != nil {
				return nil, fmt.Errorf("mapping: entry %d: %w", i, err)
			}
			e.PageNumber = pn & cimfmt.PageIDMask
			e.HasMeta = true
			if e.PageCRC, err = c.U32(); err != nil {
				return nil, err
			}
			if e.FreeSpace, err = c.U32(); err != nil {
				return nil, err
			}
			if e.UsedSpace, err = c.U32(); err != nil {
				return nil, err
			}
			if e.FirstID, err = c.U32(); err != nil {
				return nil, err
			}
			if e.SecondID, err = c.U32(); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}

	return &Set{
		isXP:     isXP,
		entries:  entries,
		consumed: c.Pos(),
		cache:    lru.New[uint32, Entry](entryCacheSize),
	}, nil
}

// ErrUnmapped is returned by Entry/Reverse when a logical or physical
// page has no mapping (spec §4.2, I2).
type ErrUnmapped uint32

func (e ErrUnmapped) Error() string {
	return fmt.Sprintf("mapping: unmapped page %d", uint32(e))
}

// Entry returns the mapping entry for a logical page number, bounds-
// checked against the entry count and caching recent lookups.
func (s *Set) Entry(logical uint32) (Entry, error) {
	if cached, ok := s.cache.Get(logical); ok {
		return cached, nil
	}

	if int(logical) >= len(s.entries) {
		return Entry{}, ErrUnmapped(logical)
	}

	e := s.entries[logical]
	if e.PageNumber == cimfmt.UnmappedPage {
		return Entry{}, ErrUnmapped(logical)
	}

	s.cache.Put(logical, e)
	return e, nil
}

// Reverse resolves a physical page number back to its logical page
// number, lazily building a dense reverse index on first use.
func (s *Set) Reverse(physical uint32) (uint32, error) {
	if !s.reverseBuilt {
		s.reverseMap = make(map[uint32]uint32, len(s.entries))
		for i, e := range s.entries {
			if e.PageNumber == cimfmt.UnmappedPage {
				continue
			}
			s.reverseMap[e.PageNumber] = uint32(i)
		}
		s.reverseBuilt = true
	}

	logical, ok := s.reverseMap[physical]
	if !ok {
		return 0, ErrUnmapped(physical)
	}
	return logical, nil
}

// EntryCount returns the number of entries in the mapping table.
func (s *Set) EntryCount() int { return len(s.entries) }

// IsXP reports whether this mapping set uses the legacy XP layout.
func (s *Set) IsXP() bool { return s.isXP }
