// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package handle issues guest-visible resource identifiers.
package handle

// Allocator hands out non-zero 32-bit handles from one namespace shared by
// every object kind. It has no locking of its own: the owner serializes calls.
type Allocator struct {
	last uint32
}

// Next returns the next handle for which inUse reports false.
// The counter wraps around; zero is never returned.
func (a *Allocator) Next(inUse func(uint32) bool) uint32 {
	for {
		a.last++
		if a.last == 0 {
			continue
		}
		if inUse != nil && inUse(a.last) {
			continue
		}
		return a.last
	}
}

// Last returns the most recently issued handle.
func (a *Allocator) Last() uint32 {
	return a.last
}

// Reset makes the next call to Next start searching after last.
func (a *Allocator) Reset(last uint32) {
	a.last = last
}
