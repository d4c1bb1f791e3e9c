// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import "errors"

// Package errors for the hal backend.
var (
	// ErrNoGPU is returned when no adapter is available.
	ErrNoGPU = errors.New("native: no GPU adapter available")

	// ErrBackendUnavailable is returned when the requested hal backend is
	// not registered.
	ErrBackendUnavailable = errors.New("native: hal backend not registered")

	// ErrClosed is returned for calls after Close.
	ErrClosed = errors.New("native: backend closed")

	// ErrInvalidDimensions is returned when width or height is invalid.
	ErrInvalidDimensions = errors.New("native: invalid dimensions")

	// ErrForeignObject is returned for objects created by another backend.
	ErrForeignObject = errors.New("native: object not created by this backend")

	// ErrBadProvider is returned when a device provider does not expose
	// hal types.
	ErrBadProvider = errors.New("native: provider does not expose HAL device and queue")

	// ErrRegion is returned when a pixel region is outside the buffer or
	// the data slice is too short.
	ErrRegion = errors.New("native: bad pixel region")

	// ErrGPUWait is returned when a submission does not complete in time.
	ErrGPUWait = errors.New("native: GPU wait failed")
)
