// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package cimparse

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// Key is a "/"-joined path of PREFIX_HEXDIGEST segments identifying a
// namespace, class definition, class instance, or instance list (spec
// §3 "Key", §4.4).
type Key struct {
	cim   *CIM
	parts []string
}

func newKey(cim *CIM) Key { return Key{cim: cim} }

// isUpperHex reports whether s looks like an already-hashed, uppercase
// hex digest — the hashing functions use such values verbatim instead
// of hashing them a second time (spec §4.4).
func isUpperHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// hashName produces the UPPERCASE hex digest of name's UTF-16LE
// uppercase encoding: MD5 under the XP layout, SHA-256 otherwise. A
// name that already looks like an uppercase hex digest is returned
// verbatim.
func (k Key) hashName(name string) (string, error) {
	if isUpperHex(name) {
		return name, nil
	}

	upper := strings.ToUpper(name)
	encoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	wide, err := encoder.String(upper)
	if err != nil {
		return "", fmt.Errorf("cimparse: encoding key name %q: %w", name, err)
	}

	var sum []byte
	if k.cim.isXP {
		s := md5.Sum([]byte(wide))
		sum = s[:]
	} else {
		s := sha256.Sum256([]byte(wide))
		sum = s[:]
	}
	return strings.ToUpper(hex.EncodeToString(sum)), nil
}

func (k Key) append(prefix string, name *string) (Key, error) {
	next := Key{cim: k.cim, parts: append([]string(nil), k.parts...)}
	if name == nil {
		next.parts = append(next.parts, prefix)
		return next, nil
	}
	digest, err := k.hashName(*name)
	if err != nil {
		return Key{}, err
	}
	next.parts = append(next.parts, fmt.Sprintf("%s_%s", prefix, digest))
	return next, nil
}

func strPtr(s string) *string { return &s }

// NS appends a namespace segment. Pass nil to build a bare prefix
// segment used for enumeration queries.
func (k Key) NS(name *string) (Key, error) { return k.append("NS", name) }

// CD appends a class-definition segment.
func (k Key) CD(name *string) (Key, error) { return k.append("CD", name) }

// CI appends a class-instance segment.
func (k Key) CI(name *string) (Key, error) { return k.append("CI", name) }

// IL appends an instance-list segment.
func (k Key) IL(name *string) (Key, error) { return k.append("IL", name) }

// String renders the "/"-joined key.
func (k Key) String() string { return strings.Join(k.parts, "/") }

// reference resolves k to the single matching key string, or "" if no
// match exists. More than one match is an InvalidDatabaseError.
func (k Key) reference() (string, error) {
	matches, err := k.references()
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	if len(matches) > 1 {
		return "", &InvalidDatabaseError{Path: k.String(), Err: fmt.Errorf("ambiguous key: %d matches", len(matches))}
	}
	return matches[0], nil
}

// references resolves k to every matching key string, in traversal order.
func (k Key) references() ([]string, error) {
	return k.cim.index.Lookup(k.String())
}

// dataRef is a parsed data-reference tail: {data_page, data_id, data_length}.
type dataRef struct {
	page, id, length uint32
}

// parseDataRef parses the trailing ".{page}.{id}.{length}" segment of
// a resolved key string.
func parseDataRef(resolved string) (dataRef, error) {
	idx := strings.IndexByte(resolved, '.')
	if idx < 0 {
		return dataRef{}, fmt.Errorf("cimparse: key %q is not a data reference", resolved)
	}
	fields := strings.Split(resolved[idx+1:], ".")
	if len(fields) != 3 {
		return dataRef{}, fmt.Errorf("cimparse: malformed data reference tail %q", resolved[idx+1:])
	}
	var vals [3]uint64
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return dataRef{}, fmt.Errorf("cimparse: malformed data reference field %q: %w", f, err)
		}
		vals[i] = v
	}
	return dataRef{page: uint32(vals[0]), id: uint32(vals[1]), length: uint32(vals[2])}, nil
}

// object resolves k to its single data reference and fetches the
// underlying bytes.
func (k Key) object() ([]byte, error) {
	resolved, err := k.reference()
	if err != nil {
		return nil, err
	}
	if resolved == "" {
		return nil, &ReferenceNotFoundError{Key: k.String()}
	}
	ref, err := parseDataRef(resolved)
	if err != nil {
		return nil, err
	}
	return k.cim.objects.Fetch(ref.page, ref.id, ref.length)
}

// objects resolves k to every matching data reference and fetches
// each one's bytes, in traversal order.
func (k Key) objects() ([][]byte, error) {
	matches, err := k.references()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(matches))
	for _, resolved := range matches {
		ref, err := parseDataRef(resolved)
		if err != nil {
			return nil, err
		}
		b, err := k.cim.objects.Fetch(ref.page, ref.id, ref.length)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
