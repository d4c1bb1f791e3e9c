// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package binding switches the host binding of a render thread between the
// guest's own context, the internal off-screen pair and presentation windows.
package binding

import (
	"errors"
	"log/slog"

	"github.com/gogpu/renderhost/host"
)

var (
	// ErrBindFailed is returned by Do when the internal pair cannot be made current.
	ErrBindFailed = errors.New("binding: make current failed")

	// ErrRestoreFailed is returned by Do when the previous binding cannot be
	// restored. The thread is left with nothing current.
	ErrRestoreFailed = errors.New("binding: restore failed")
)

// Switcher is the part of the host backend the coordinator drives.
type Switcher interface {
	MakeCurrent(b host.Binding) error
	InternalBinding() host.Binding
}

// State is the binding state of one thread. The zero value has nothing bound.
type State struct {
	current host.Binding
	saved   host.Binding
	nested  int
}

// Current returns what the thread has current.
func (s *State) Current() host.Binding { return s.current }

// SetCurrent records a binding made outside the coordinator.
func (s *State) SetCurrent(b host.Binding) { s.current = b }

// Coordinator drives make-current calls. Each State belongs to one thread
// and is only touched by that thread.
type Coordinator struct {
	sw  Switcher
	log func() *slog.Logger
}

// New returns a coordinator driving sw. log is consulted on every message so
// that logger changes take effect immediately.
func New(sw Switcher, log func() *slog.Logger) *Coordinator {
	return &Coordinator{sw: sw, log: log}
}

// Bind makes the internal pair current on the thread and saves the previous
// binding. A nested call is reported and proceeds without touching the
// saved binding.
func (c *Coordinator) Bind(st *State) bool {
	internal := c.sw.InternalBinding()
	if st.current == internal {
		c.log().Error("binding: nested internal bind detected, should never happen", "depth", st.nested+1)
		st.nested++
		return true
	}
	if err := c.sw.MakeCurrent(internal); err != nil {
		c.log().Error("binding: make current failed", "err", err)
		return false
	}
	st.saved = st.current
	st.current = internal
	return true
}

// Unbind restores the binding saved by Bind. It is safe to call when
// nothing was bound. When the restore fails nothing is current afterwards.
func (c *Coordinator) Unbind(st *State) bool {
	if st.nested > 0 {
		st.nested--
		return true
	}
	if st.current != st.saved {
		if err := c.sw.MakeCurrent(st.saved); err != nil {
			c.log().Error("binding: restore failed", "err", err)
			if err := c.sw.MakeCurrent(host.Binding{}); err != nil {
				c.log().Warn("binding: release after failed restore", "err", err)
			}
			st.current = host.Binding{}
			st.saved = host.Binding{}
			return false
		}
	}
	st.current = st.saved
	st.saved = host.Binding{}
	return true
}

// Do runs fn with the internal pair current and always restores the
// previous binding afterwards. A failed restore is reported when fn
// itself succeeded.
func (c *Coordinator) Do(st *State, fn func() error) (err error) {
	if !c.Bind(st) {
		return ErrBindFailed
	}
	defer func() {
		if !c.Unbind(st) && err == nil {
			err = ErrRestoreFailed
		}
	}()
	return fn()
}

// BindWindow makes the pair that draws into w current. Presentation threads
// keep it bound for their whole lifetime.
func (c *Coordinator) BindWindow(st *State, w host.Window) bool {
	b := w.Binding()
	if st.current != b {
		if err := c.sw.MakeCurrent(b); err != nil {
			c.log().Error("binding: make current failed for window", "err", err)
			return false
		}
	}
	st.saved = st.current
	st.current = b
	return true
}

// Release makes nothing current on the thread.
func (c *Coordinator) Release(st *State) {
	if st.current.IsZero() {
		return
	}
	if err := c.sw.MakeCurrent(host.Binding{}); err != nil {
		c.log().Warn("binding: release failed", "err", err)
	}
	st.current = host.Binding{}
	st.saved = host.Binding{}
	st.nested = 0
}
