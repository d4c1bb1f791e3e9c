// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package ownership records which guest process or render thread owns each
// guest-visible object so that owners can be torn down in bulk.
package ownership

import (
	"golang.org/x/exp/slices"
)

// Mode selects where ownership of contexts and window surfaces is recorded.
type Mode uint8

const (
	// PerProcess attributes objects to the guest process id of the caller.
	PerProcess Mode = iota

	// PerThread attributes objects to the calling render thread. Used by
	// guests that never announce a process id.
	PerThread
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case PerProcess:
		return "per-process"
	case PerThread:
		return "per-thread"
	default:
		return "unknown"
	}
}

// Set is a set of handles.
type Set map[uint32]struct{}

// Add inserts h.
func (s Set) Add(h uint32) { s[h] = struct{}{} }

// Remove deletes h.
func (s Set) Remove(h uint32) { delete(s, h) }

// Has reports whether h is present.
func (s Set) Has(h uint32) bool {
	_, ok := s[h]
	return ok
}

// Sorted returns the handles in ascending order.
func (s Set) Sorted() []uint32 {
	hs := make([]uint32, 0, len(s))
	for h := range s {
		hs = append(hs, h)
	}
	slices.Sort(hs)
	return hs
}

// ThreadObjects holds the objects owned by one render thread in PerThread mode.
type ThreadObjects struct {
	Contexts Set
	Windows  Set
}

// NewThreadObjects returns empty per-thread sets.
func NewThreadObjects() *ThreadObjects {
	return &ThreadObjects{Contexts: make(Set), Windows: make(Set)}
}

// Owner identifies the caller of a registry operation.
type Owner struct {
	PUID   uint64
	Thread *ThreadObjects
}

// Mode reports which table the owner's objects are recorded in.
func (o Owner) Mode() Mode {
	if o.PUID != 0 {
		return PerProcess
	}
	return PerThread
}

// Kind names one of the per-process handle tables that are persisted.
type Kind uint8

const (
	KindWindowSurfaces Kind = iota
	KindImages
	KindContexts
)

// ProcessHandles is one process entry of a persisted table.
type ProcessHandles struct {
	PUID    uint64
	Handles []uint32
}

// ColorBufferOpen is the number of outstanding opens of a color buffer by
// one process.
type ColorBufferOpen struct {
	Handle uint32
	Count  int
}

// Record is everything a process owned at the time it was taken.
type Record struct {
	Windows      []uint32
	ColorBuffers []ColorBufferOpen
	Images       []uint32
	Contexts     []uint32
}

// Tracker holds the per-process ownership tables. It is not safe for
// concurrent use; the registry lock guards it.
type Tracker struct {
	windows      map[uint64]Set
	colorBuffers map[uint64]map[uint32]int
	images       map[uint64]Set
	contexts     map[uint64]Set
	callbacks    map[uint64]map[any]func()
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		windows:      make(map[uint64]Set),
		colorBuffers: make(map[uint64]map[uint32]int),
		images:       make(map[uint64]Set),
		contexts:     make(map[uint64]Set),
		callbacks:    make(map[uint64]map[any]func()),
	}
}

func addTo(m map[uint64]Set, puid uint64, h uint32) {
	s, ok := m[puid]
	if !ok {
		s = make(Set)
		m[puid] = s
	}
	s.Add(h)
}

func removeFrom(m map[uint64]Set, puid uint64, h uint32) {
	if s, ok := m[puid]; ok {
		s.Remove(h)
	}
}

// AddContext records a new render context for o.
func (t *Tracker) AddContext(o Owner, h uint32) {
	switch o.Mode() {
	case PerProcess:
		addTo(t.contexts, o.PUID, h)
	case PerThread:
		if o.Thread != nil {
			o.Thread.Contexts.Add(h)
		}
	}
}

// RemoveContext forgets a destroyed render context of o.
func (t *Tracker) RemoveContext(o Owner, h uint32) {
	switch o.Mode() {
	case PerProcess:
		removeFrom(t.contexts, o.PUID, h)
	case PerThread:
		if o.Thread != nil {
			o.Thread.Contexts.Remove(h)
		}
	}
}

// AddWindow records a new window surface for o.
func (t *Tracker) AddWindow(o Owner, h uint32) {
	switch o.Mode() {
	case PerProcess:
		addTo(t.windows, o.PUID, h)
	case PerThread:
		if o.Thread != nil {
			o.Thread.Windows.Add(h)
		}
	}
}

// RemoveWindow forgets a destroyed window surface of o.
func (t *Tracker) RemoveWindow(o Owner, h uint32) {
	switch o.Mode() {
	case PerProcess:
		removeFrom(t.windows, o.PUID, h)
	case PerThread:
		if o.Thread != nil {
			o.Thread.Windows.Remove(h)
		}
	}
}

// AddImage records a client image. Images are only tracked per process.
func (t *Tracker) AddImage(o Owner, h uint32) {
	if o.Mode() == PerProcess {
		addTo(t.images, o.PUID, h)
	}
}

// RemoveImage forgets a destroyed client image. The process entry is kept
// even when it becomes empty.
func (t *Tracker) RemoveImage(o Owner, h uint32) {
	if o.Mode() == PerProcess {
		removeFrom(t.images, o.PUID, h)
	}
}

// OpenColorBuffer counts one open of h by o's process.
func (t *Tracker) OpenColorBuffer(o Owner, h uint32) {
	if o.Mode() != PerProcess {
		return
	}
	m, ok := t.colorBuffers[o.PUID]
	if !ok {
		m = make(map[uint32]int)
		t.colorBuffers[o.PUID] = m
	}
	m[h]++
}

// CloseColorBuffer drops one open of h by o's process, never going below zero.
func (t *Tracker) CloseColorBuffer(o Owner, h uint32) {
	if o.Mode() != PerProcess {
		return
	}
	if m, ok := t.colorBuffers[o.PUID]; ok && m[h] > 0 {
		m[h]--
	}
}

// ColorBufferOpens returns how many opens of h puid still holds.
func (t *Tracker) ColorBufferOpens(puid uint64, h uint32) int {
	return t.colorBuffers[puid][h]
}

// Owns reports whether puid has an entry in any table.
func (t *Tracker) Owns(puid uint64) bool {
	_, w := t.windows[puid]
	_, c := t.colorBuffers[puid]
	_, i := t.images[puid]
	_, x := t.contexts[puid]
	return w || c || i || x
}

// Take removes every entry of puid and returns what it owned.
func (t *Tracker) Take(puid uint64) Record {
	var r Record
	if s, ok := t.windows[puid]; ok {
		r.Windows = s.Sorted()
		delete(t.windows, puid)
	}
	if m, ok := t.colorBuffers[puid]; ok {
		hs := make([]uint32, 0, len(m))
		for h := range m {
			hs = append(hs, h)
		}
		slices.Sort(hs)
		for _, h := range hs {
			r.ColorBuffers = append(r.ColorBuffers, ColorBufferOpen{Handle: h, Count: m[h]})
		}
		delete(t.colorBuffers, puid)
	}
	if s, ok := t.images[puid]; ok {
		r.Images = s.Sorted()
		delete(t.images, puid)
	}
	if s, ok := t.contexts[puid]; ok {
		r.Contexts = s.Sorted()
		delete(t.contexts, puid)
	}
	return r
}

// Processes returns every process id present in any object table, ascending.
func (t *Tracker) Processes() []uint64 {
	seen := make(map[uint64]struct{})
	for puid := range t.windows {
		seen[puid] = struct{}{}
	}
	for puid := range t.colorBuffers {
		seen[puid] = struct{}{}
	}
	for puid := range t.images {
		seen[puid] = struct{}{}
	}
	for puid := range t.contexts {
		seen[puid] = struct{}{}
	}
	return sortedIDs(seen)
}

// Empty reports whether no table, callbacks included, has any entry.
func (t *Tracker) Empty() bool {
	return len(t.windows) == 0 && len(t.colorBuffers) == 0 &&
		len(t.images) == 0 && len(t.contexts) == 0 && len(t.callbacks) == 0
}

// RegisterCallback attaches fn to puid under key, replacing any previous one.
func (t *Tracker) RegisterCallback(puid uint64, key any, fn func()) {
	m, ok := t.callbacks[puid]
	if !ok {
		m = make(map[any]func())
		t.callbacks[puid] = m
	}
	m[key] = fn
}

// UnregisterCallback removes the callback of puid under key and reports
// whether it existed.
func (t *Tracker) UnregisterCallback(puid uint64, key any) bool {
	m, ok := t.callbacks[puid]
	if !ok {
		return false
	}
	_, found := m[key]
	delete(m, key)
	return found
}

// TakeCallbacks removes and returns the callbacks of puid.
func (t *Tracker) TakeCallbacks(puid uint64) []func() {
	m, ok := t.callbacks[puid]
	if !ok {
		return nil
	}
	delete(t.callbacks, puid)
	fns := make([]func(), 0, len(m))
	for _, fn := range m {
		fns = append(fns, fn)
	}
	return fns
}

// TakeAllCallbacks removes and returns the callbacks of every process.
func (t *Tracker) TakeAllCallbacks() []func() {
	var fns []func()
	for puid := range t.callbacks {
		fns = append(fns, t.TakeCallbacks(puid)...)
	}
	return fns
}

func sortedIDs[V any](m map[uint64]V) []uint64 {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (t *Tracker) table(k Kind) map[uint64]Set {
	switch k {
	case KindWindowSurfaces:
		return t.windows
	case KindImages:
		return t.images
	default:
		return t.contexts
	}
}

// Export returns the non-empty entries of table k ordered by process id.
func (t *Tracker) Export(k Kind) []ProcessHandles {
	m := t.table(k)
	ids := sortedIDs(m)
	var out []ProcessHandles
	for _, puid := range ids {
		if len(m[puid]) == 0 {
			continue
		}
		out = append(out, ProcessHandles{PUID: puid, Handles: m[puid].Sorted()})
	}
	return out
}

// Import adds entries to table k.
func (t *Tracker) Import(k Kind, entries []ProcessHandles) {
	m := t.table(k)
	for _, e := range entries {
		for _, h := range e.Handles {
			addTo(m, e.PUID, h)
		}
	}
}
