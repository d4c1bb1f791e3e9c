// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package delayed keeps color buffers whose reference count dropped to zero
// until their grace period runs out.
package delayed

import (
	"time"

	"golang.org/x/exp/slices"
)

// Entry is a pending close. A zero Handle marks an entry cancelled in place.
type Entry struct {
	At     time.Time
	Handle uint32
}

// Queue is a time-ordered list of pending closes. It is not safe for
// concurrent use; the registry lock guards it.
type Queue struct {
	entries []Entry
}

func cmpEntry(e Entry, at time.Time) int {
	return e.At.Compare(at)
}

// Schedule records that handle became unreferenced at the given time.
func (q *Queue) Schedule(handle uint32, at time.Time) {
	i, _ := slices.BinarySearchFunc(q.entries, at, cmpEntry)
	for i < len(q.entries) && q.entries[i].At.Equal(at) {
		i++
	}
	q.entries = slices.Insert(q.entries, i, Entry{At: at, Handle: handle})
}

// Cancel clears the pending close of handle scheduled at the given time.
// It reports whether an entry was found.
func (q *Queue) Cancel(handle uint32, at time.Time) bool {
	i, _ := slices.BinarySearchFunc(q.entries, at, cmpEntry)
	for ; i < len(q.entries) && q.entries[i].At.Equal(at); i++ {
		if q.entries[i].Handle == handle {
			q.entries[i].Handle = 0
			return true
		}
	}
	return false
}

// Expire removes every entry whose grace period has elapsed at now, or all
// entries when forced, and returns the live handles among them in order.
func (q *Queue) Expire(now time.Time, grace time.Duration, forced bool) []uint32 {
	n := 0
	for n < len(q.entries) && (forced || !q.entries[n].At.Add(grace).After(now)) {
		n++
	}
	if n == 0 {
		return nil
	}
	var expired []uint32
	for _, e := range q.entries[:n] {
		if e.Handle != 0 {
			expired = append(expired, e.Handle)
		}
	}
	q.entries = slices.Delete(q.entries, 0, n)
	return expired
}

// Len returns the number of entries, cancelled ones included.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Pending reports how many entries still refer to a handle.
func (q *Queue) Pending() int {
	n := 0
	for _, e := range q.entries {
		if e.Handle != 0 {
			n++
		}
	}
	return n
}

// Contains reports whether handle has a live pending close.
func (q *Queue) Contains(handle uint32) bool {
	return slices.ContainsFunc(q.entries, func(e Entry) bool { return e.Handle == handle })
}

// Entries returns a copy of the queue contents in time order.
func (q *Queue) Entries() []Entry {
	return slices.Clone(q.entries)
}

// Clear drops every entry.
func (q *Queue) Clear() {
	q.entries = q.entries[:0]
}
