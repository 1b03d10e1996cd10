// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package cimparse

import (
	"fmt"
	"strings"
)

// ObjectPath is a parsed WMI object-path query: a namespace path, an
// optional class name, and — for an instance query — the key
// property/value pairs named after the class (spec §6 "Object path
// grammar").
//
// Grounded on dissect/cim/utils.py's parse_object_path.
type ObjectPath struct {
	Hostname  string
	Namespace string
	Class     string
	Instance  map[string]string
}

// ParseObjectPath parses one of the supported object-path schemas:
//
//	cimv2                              -> namespace
//	//./root/cimv2                      -> namespace
//	//HOSTNAME/root/cimv2               -> namespace
//	winmgmts://./root/cimv2             -> namespace
//	Win32_Service                       -> class
//	//./root/cimv2:Win32_Service         -> class
//	Win32_Service.Name='Beep'           -> instance
//	//./root/cimv2:Win32_Service.Name="Beep" -> instance
//
// ns, when non-nil, anchors a relative path (one with no leading "//"
// and no explicit namespace) and is used to disambiguate a bare,
// dot-free path between a child namespace name and a class name.
func ParseObjectPath(objectPath string, ns *Namespace) (ObjectPath, error) {
	original := objectPath
	objectPath = strings.ReplaceAll(objectPath, "\\", "/")

	if strings.HasPrefix(objectPath, "winmgmts:") {
		objectPath = objectPath[len("winmgmts:"):]
	}

	hostname := "localhost"
	namespace := ""
	if ns != nil {
		namespace = ns.name
	}
	instance := map[string]string{}

	isRooted := false
	if strings.HasPrefix(objectPath, "//") {
		isRooted = true
		objectPath = objectPath[len("//"):]

		host, rest, found := cutByte(objectPath, '/')
		if found {
			objectPath = rest
		} else {
			objectPath = ""
		}
		hostname = host
		if hostname == "." {
			hostname = "localhost"
		}
	}

	if strings.Contains(objectPath, ":") {
		before, after, _ := strings.Cut(objectPath, ":")
		namespace = before
		objectPath = after
	} else if !strings.Contains(objectPath, ".") {
		if isRooted {
			return ObjectPath{
				Hostname:  hostname,
				Namespace: strings.ReplaceAll(objectPath, "/", "\\"),
				Class:     "",
				Instance:  map[string]string{},
			}, nil
		}

		if ns == nil {
			return ObjectPath{}, fmt.Errorf("cimparse: relative query %q but no namespace", original)
		}

		if _, err := ns.Namespace(objectPath); err == nil {
			ns1 := strings.ReplaceAll(ns.name, "/", "\\")
			ns2 := strings.ReplaceAll(objectPath, "/", "\\")
			return ObjectPath{
				Hostname:  hostname,
				Namespace: ns1 + "\\" + ns2,
				Class:     "",
				Instance:  map[string]string{},
			}, nil
		}

		if _, err := ns.Class_(objectPath); err != nil {
			return ObjectPath{}, fmt.Errorf("cimparse: unknown object path schema: %s", original)
		}
		namespace = ns.name
	}

	className := objectPath
	if strings.Contains(objectPath, ".") {
		before, keys, _ := strings.Cut(objectPath, ".")
		className = before
		if keys != "" {
			for _, kv := range strings.Split(keys, ",") {
				k, v, _ := strings.Cut(kv, "=")
				instance[k] = strings.Trim(v, `"'`)
			}
		}
	}

	return ObjectPath{
		Hostname:  hostname,
		Namespace: strings.ReplaceAll(namespace, "/", "\\"),
		Class:     className,
		Instance:  instance,
	}, nil
}

// cutByte splits s at the first occurrence of sep, the Go analogue of
// str.partition for a single-byte separator; found reports whether sep
// was present.
func cutByte(s string, sep byte) (before, after string, found bool) {
	i := strings.IndexByte(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}
