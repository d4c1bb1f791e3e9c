// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderhost

import "errors"

// Errors returned by FrameBuffer operations.
var (
	// ErrInvalidHandle is returned when a handle does not name a live object
	// of the expected kind.
	ErrInvalidHandle = errors.New("renderhost: invalid handle")

	// ErrInvalidConfig is returned when a config index is out of range.
	ErrInvalidConfig = errors.New("renderhost: invalid config")

	// ErrHostFailure wraps an error returned by the host backend.
	ErrHostFailure = errors.New("renderhost: host failure")

	// ErrHandleCollision is raised through the fatal hook when an explicit
	// handle is already in use.
	ErrHandleCollision = errors.New("renderhost: handle collision")

	// ErrNoThread is returned when a call that needs the caller's thread
	// state gets a nil RenderThread.
	ErrNoThread = errors.New("renderhost: nil render thread")

	// ErrShuttingDown is returned once SetShuttingDown has been called.
	ErrShuttingDown = errors.New("renderhost: shutting down")

	// ErrNoBackend is returned by New when no backend was supplied.
	ErrNoBackend = errors.New("renderhost: no backend")

	// ErrNotInitialized is returned by Default before Initialize succeeded.
	ErrNotInitialized = errors.New("renderhost: not initialized")

	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("renderhost: already initialized")

	// ErrNoSubWindow is returned by presentation calls that need a window.
	ErrNoSubWindow = errors.New("renderhost: no subwindow")

	// ErrChannels is returned by Screenshot for a channel count other than 3 or 4.
	ErrChannels = errors.New("renderhost: screenshot needs 3 or 4 channels")

	// ErrDisplayInUse is returned when a post callback is already set for a display.
	ErrDisplayInUse = errors.New("renderhost: display already has a post callback")

	// ErrUnknownDisplay is returned for displays without a post callback.
	ErrUnknownDisplay = errors.New("renderhost: display not recording")

	// ErrComposeVersion is returned for unsupported compose descriptions.
	ErrComposeVersion = errors.New("renderhost: unsupported compose version")

	// ErrInvalidSize is returned for non-positive dimensions.
	ErrInvalidSize = errors.New("renderhost: invalid size")

	// ErrNoFrame is returned by Screenshot before anything was posted.
	ErrNoFrame = errors.New("renderhost: nothing posted yet")

	// ErrBufferTooSmall is returned when a caller buffer cannot hold the
	// result. The accompanying size says how much is needed.
	ErrBufferTooSmall = errors.New("renderhost: buffer too small")

	// ErrSnapshot is returned when a snapshot stream is malformed.
	ErrSnapshot = errors.New("renderhost: bad snapshot")
)
