// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package egl enumerates the configs of the host EGL display. Only the
// calls needed for config matching and renderer strings are bound; the
// library is loaded at runtime with purego, so no cgo toolchain is needed.
//
// A Display implements config.Source.
package egl

import "errors"

// Errors returned by this package.
var (
	ErrNotLoaded   = errors.New("egl: libEGL not loaded")
	ErrNoDisplay   = errors.New("egl: no display")
	ErrInitialize  = errors.New("egl: eglInitialize failed")
	ErrCallFailed  = errors.New("egl: call failed")
	ErrUnsupported = errors.New("egl: unsupported platform")
)

// String names for eglQueryString.
const (
	Vendor     int32 = 0x3053
	Version    int32 = 0x3054
	Extensions int32 = 0x3055
	ClientAPIs int32 = 0x308D
)

const (
	eglFalse          = 0
	eglDefaultDisplay = 0
	eglNoDisplay      = 0
	eglSuccess        = 0x3000
)
