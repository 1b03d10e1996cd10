// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.
package lru

import "testing"

func TestGetPutRoundTrip(t *testing.T) {
	c := New[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Fatalf("Get(b) = %d, %v; want 2, true", v, ok)
	}
	if _, ok := c.Get("c"); ok {
		t.Fatal("Get(c) on a missing key: want false")
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[int, string](2)
	c.Put(1, "one")
	c.Put(2, "two")
	c.Get(1) // touch 1 so 2 becomes the LRU entry
	c.Put(3, "three")

	if _, ok := c.Get(2); ok {
		t.Fatal("Get(2) after eviction: want false, entry should have been evicted")
	}
	if v, ok := c.Get(1); !ok || v != "one" {
		t.Fatalf("Get(1) = %q, %v; want \"one\", true (recently touched, should survive)", v, ok)
	}
	if v, ok := c.Get(3); !ok || v != "three" {
		t.Fatalf("Get(3) = %q, %v; want \"three\", true", v, ok)
	}
}

func TestPutUpdatesExistingKey(t *testing.T) {
	c := New[string, int](2)
	c.Put("a", 1)
	c.Put("a", 2)
	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Fatalf("Get(a) after update = %d, %v; want 2, true", v, ok)
	}
	if len(c.entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1 after overwriting the same key", len(c.entries))
	}
}

func TestNonPositiveCapacityDisablesCaching(t *testing.T) {
	c := New[string, int](0)
	c.Put("a", 1)
	if _, ok := c.Get("a"); ok {
		t.Fatal("Get(a) on a zero-capacity cache: want false")
	}
}
