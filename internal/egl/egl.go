// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build linux || freebsd

package egl

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"

	"github.com/gogpu/renderhost/config"
)

var libraryNames = []string{"libEGL.so.1", "libEGL.so"}

var (
	libEGL   uintptr
	loadOnce sync.Once
	loadErr  error
)

var (
	eglGetDisplay      func(native uintptr) uintptr
	eglInitialize      func(dpy uintptr, major, minor *int32) uint32
	eglTerminate       func(dpy uintptr) uint32
	eglGetError        func() int32
	eglGetConfigs      func(dpy uintptr, configs *uintptr, size int32, num *int32) uint32
	eglGetConfigAttrib func(dpy, cfg uintptr, attr int32, value *int32) uint32
	eglChooseConfig    func(dpy uintptr, attribs *int32, configs *uintptr, size int32, num *int32) uint32
	eglQueryString     func(dpy uintptr, name int32) string
)

// Load opens libEGL and binds its entry points. It is safe to call more
// than once; only the first call does any work.
func Load() error {
	loadOnce.Do(func() {
		loadErr = load()
	})
	return loadErr
}

func load() error {
	var err error
	for _, name := range libraryNames {
		libEGL, err = purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			slogger().Debug("egl: loaded", "library", name)
			break
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotLoaded, err)
	}

	purego.RegisterLibFunc(&eglGetDisplay, libEGL, "eglGetDisplay")
	purego.RegisterLibFunc(&eglInitialize, libEGL, "eglInitialize")
	purego.RegisterLibFunc(&eglTerminate, libEGL, "eglTerminate")
	purego.RegisterLibFunc(&eglGetError, libEGL, "eglGetError")
	purego.RegisterLibFunc(&eglGetConfigs, libEGL, "eglGetConfigs")
	purego.RegisterLibFunc(&eglGetConfigAttrib, libEGL, "eglGetConfigAttrib")
	purego.RegisterLibFunc(&eglChooseConfig, libEGL, "eglChooseConfig")
	purego.RegisterLibFunc(&eglQueryString, libEGL, "eglQueryString")
	return nil
}

// Display is an initialized EGL display.
type Display struct {
	mu           sync.Mutex
	dpy          uintptr
	major, minor int32
}

// Open loads libEGL if needed and initializes the default display.
func Open() (*Display, error) {
	if err := Load(); err != nil {
		return nil, err
	}
	dpy := eglGetDisplay(eglDefaultDisplay)
	if dpy == eglNoDisplay {
		return nil, ErrNoDisplay
	}
	d := &Display{dpy: dpy}
	if eglInitialize(dpy, &d.major, &d.minor) == eglFalse {
		return nil, fmt.Errorf("%w: 0x%x", ErrInitialize, eglGetError())
	}
	slogger().Info("egl: display initialized",
		"version", fmt.Sprintf("%d.%d", d.major, d.minor),
		"vendor", eglQueryString(dpy, Vendor))
	return d, nil
}

// Version returns the EGL version reported by eglInitialize.
func (d *Display) Version() (major, minor int32) { return d.major, d.minor }

// QueryString returns one of Vendor, Version, Extensions or ClientAPIs.
func (d *Display) QueryString(name int32) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dpy == eglNoDisplay {
		return ""
	}
	return eglQueryString(d.dpy, name)
}

func (d *Display) failed(call string) error {
	return fmt.Errorf("%w: %s: 0x%x", ErrCallFailed, call, eglGetError())
}

// Configs returns every config of the display.
func (d *Display) Configs() ([]config.HostConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dpy == eglNoDisplay {
		return nil, ErrNoDisplay
	}
	var n int32
	if eglGetConfigs(d.dpy, nil, 0, &n) == eglFalse {
		return nil, d.failed("eglGetConfigs")
	}
	if n == 0 {
		return nil, nil
	}
	raw := make([]uintptr, n)
	if eglGetConfigs(d.dpy, &raw[0], n, &n) == eglFalse {
		return nil, d.failed("eglGetConfigs")
	}
	return toHostConfigs(raw[:n]), nil
}

// Attrib returns one attribute of a config.
func (d *Display) Attrib(c config.HostConfig, a config.Attrib) (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dpy == eglNoDisplay {
		return 0, ErrNoDisplay
	}
	var v int32
	if eglGetConfigAttrib(d.dpy, uintptr(c), int32(a), &v) == eglFalse {
		return 0, d.failed("eglGetConfigAttrib")
	}
	return v, nil
}

// Choose runs eglChooseConfig on an attribute list. A missing None
// terminator is appended.
func (d *Display) Choose(attribs []int32, max int) ([]config.HostConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dpy == eglNoDisplay {
		return nil, ErrNoDisplay
	}
	list := terminate(attribs)
	if max <= 0 {
		return nil, nil
	}
	raw := make([]uintptr, max)
	var n int32
	if eglChooseConfig(d.dpy, &list[0], &raw[0], int32(max), &n) == eglFalse {
		return nil, d.failed("eglChooseConfig")
	}
	return toHostConfigs(raw[:n]), nil
}

// Close terminates the display.
func (d *Display) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dpy == eglNoDisplay {
		return nil
	}
	ok := eglTerminate(d.dpy)
	d.dpy = eglNoDisplay
	if ok == eglFalse {
		return fmt.Errorf("%w: eglTerminate", ErrCallFailed)
	}
	return nil
}

var _ config.Source = (*Display)(nil)
