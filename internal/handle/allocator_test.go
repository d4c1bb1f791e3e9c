// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package handle

import "testing"

func TestAllocatorSequential(t *testing.T) {
	var a Allocator
	for want := uint32(1); want <= 5; want++ {
		if got := a.Next(nil); got != want {
			t.Fatalf("Next() = %d, want %d", got, want)
		}
	}
}

func TestAllocatorSkipsInUse(t *testing.T) {
	used := map[uint32]bool{1: true, 2: true, 4: true}
	var a Allocator
	inUse := func(h uint32) bool { return used[h] }

	if got := a.Next(inUse); got != 3 {
		t.Fatalf("Next() = %d, want 3", got)
	}
	if got := a.Next(inUse); got != 5 {
		t.Fatalf("Next() = %d, want 5", got)
	}
}

func TestAllocatorWrapAroundSkipsZero(t *testing.T) {
	var a Allocator
	a.Reset(^uint32(0) - 1)

	if got := a.Next(nil); got != ^uint32(0) {
		t.Fatalf("Next() = %d, want max uint32", got)
	}
	if got := a.Next(nil); got != 1 {
		t.Fatalf("Next() after wrap = %d, want 1", got)
	}
}

func TestAllocatorWrapAroundSkipsLiveHandles(t *testing.T) {
	used := map[uint32]bool{1: true, 2: true}
	var a Allocator
	a.Reset(^uint32(0))

	if got := a.Next(func(h uint32) bool { return used[h] }); got != 3 {
		t.Fatalf("Next() = %d, want 3", got)
	}
	if a.Last() != 3 {
		t.Errorf("Last() = %d, want 3", a.Last())
	}
}
