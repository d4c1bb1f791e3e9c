// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package binding

import (
	"errors"
	"image"
	"log/slog"
	"testing"

	"github.com/gogpu/renderhost/host"
)

type ctx struct{ name string }

func (*ctx) Version() host.APIVersion { return host.APIVersionES2 }

type window struct{ b host.Binding }

func (w *window) Size() (int, int)          { return 1, 1 }
func (w *window) Present(*image.RGBA) error { return nil }
func (w *window) Binding() host.Binding     { return w.b }

type switcher struct {
	internal host.Binding
	calls    []host.Binding
	fail     bool
	reject   host.Binding
}

func (s *switcher) MakeCurrent(b host.Binding) error {
	if s.fail || (!b.IsZero() && b == s.reject) {
		return errors.New("boom")
	}
	s.calls = append(s.calls, b)
	return nil
}

func (s *switcher) InternalBinding() host.Binding { return s.internal }

func newCoordinator() (*Coordinator, *switcher) {
	sw := &switcher{internal: host.Binding{Context: &ctx{"pbuf"}}}
	return New(sw, slog.Default), sw
}

func TestBindSavesAndRestores(t *testing.T) {
	c, sw := newCoordinator()
	guest := host.Binding{Context: &ctx{"guest"}}
	var st State
	st.SetCurrent(guest)

	if !c.Bind(&st) {
		t.Fatal("Bind() = false")
	}
	if st.Current() != sw.internal {
		t.Fatal("internal pair not current after Bind")
	}
	if !c.Unbind(&st) {
		t.Fatal("Unbind() = false")
	}
	if st.Current() != guest {
		t.Error("guest binding not restored")
	}
	if len(sw.calls) != 2 {
		t.Errorf("MakeCurrent calls = %d, want 2", len(sw.calls))
	}
}

func TestNestedBindProceeds(t *testing.T) {
	c, sw := newCoordinator()
	var st State

	if !c.Bind(&st) || !c.Bind(&st) {
		t.Fatal("Bind() = false")
	}
	if len(sw.calls) != 1 {
		t.Errorf("nested bind made %d host calls, want 1", len(sw.calls))
	}
	c.Unbind(&st)
	if st.Current() != sw.internal {
		t.Error("inner Unbind must keep the outer binding")
	}
	c.Unbind(&st)
	if !st.Current().IsZero() {
		t.Error("outer Unbind must restore the empty binding")
	}
}

func TestUnbindWithoutBind(t *testing.T) {
	c, sw := newCoordinator()
	var st State
	if !c.Unbind(&st) {
		t.Error("Unbind() on fresh state = false")
	}
	if len(sw.calls) != 0 {
		t.Errorf("MakeCurrent calls = %d, want 0", len(sw.calls))
	}
}

func TestDoAlwaysRestores(t *testing.T) {
	c, _ := newCoordinator()
	var st State
	wantErr := errors.New("work failed")

	err := c.Do(&st, func() error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Errorf("Do() = %v, want %v", err, wantErr)
	}
	if !st.Current().IsZero() {
		t.Error("binding not restored after failed work")
	}
}

func TestDoBindFailure(t *testing.T) {
	c, sw := newCoordinator()
	sw.fail = true
	var st State
	ran := false
	if err := c.Do(&st, func() error { ran = true; return nil }); !errors.Is(err, ErrBindFailed) {
		t.Errorf("Do() = %v, want ErrBindFailed", err)
	}
	if ran {
		t.Error("work ran without a binding")
	}
}

func TestDoRestoreFailure(t *testing.T) {
	c, sw := newCoordinator()
	guest := host.Binding{Context: &ctx{"guest"}}
	sw.reject = guest
	var st State
	st.SetCurrent(guest)

	if err := c.Do(&st, func() error { return nil }); !errors.Is(err, ErrRestoreFailed) {
		t.Errorf("Do() = %v, want ErrRestoreFailed", err)
	}
	if !st.Current().IsZero() {
		t.Error("internal pair left current after failed restore")
	}

	// The next scoped bind is a fresh one, not a nested one.
	calls := len(sw.calls)
	if err := c.Do(&st, func() error { return nil }); err != nil {
		t.Errorf("second Do() = %v", err)
	}
	if got := len(sw.calls) - calls; got != 2 {
		t.Errorf("second Do made %d host calls, want 2", got)
	}
}

func TestBindWindowAndRelease(t *testing.T) {
	c, sw := newCoordinator()
	w := &window{b: host.Binding{Context: &ctx{"win"}}}
	var st State

	if !c.BindWindow(&st, w) {
		t.Fatal("BindWindow() = false")
	}
	if st.Current() != w.b {
		t.Error("window binding not current")
	}
	c.Release(&st)
	if !st.Current().IsZero() {
		t.Error("Release() left a binding current")
	}
	if last := sw.calls[len(sw.calls)-1]; !last.IsZero() {
		t.Error("Release() did not clear the host binding")
	}
}
