// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderhost

import (
	"fmt"
)

// CreateWindowSurface creates a host drawable of width by height pixels for
// config. The surface starts without a color buffer.
func (fb *FrameBuffer) CreateWindowSurface(rt *RenderThread, config, width, height int) (Handle, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	cfg, ok := fb.catalog.Get(config)
	if !ok {
		slogger().Warn("renderhost: create window surface with invalid config", "config", config)
		return 0, fmt.Errorf("%w: %d", ErrInvalidConfig, config)
	}
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	s, err := fb.backend.CreateSurface(cfg, width, height)
	if err != nil {
		slogger().Error("renderhost: create surface failed", "width", width, "height", height, "err", err)
		return 0, fmt.Errorf("%w: %w", ErrHostFailure, err)
	}

	h := fb.allocLocked()
	fb.windows[h] = &windowSurface{handle: h, config: config, width: width, height: height, host: s}
	fb.owners.AddWindow(ownerOf(rt), uint32(h))
	slogger().Debug("renderhost: created window surface", "handle", h, "width", width, "height", height)
	return h, nil
}

// DestroyWindowSurface destroys a window surface and releases its color
// buffer reference. It returns the color buffers destroyed as a result.
func (fb *FrameBuffer) DestroyWindowSurface(rt *RenderThread, h Handle) ([]Handle, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if _, ok := fb.windows[h]; !ok {
		slogger().Warn("renderhost: destroy of unknown window surface", "handle", h)
		return nil, fmt.Errorf("%w: window surface %v", ErrInvalidHandle, h)
	}
	destroyed := fb.removeWindowSurfaceLocked(h, false)
	fb.owners.RemoveWindow(ownerOf(rt), uint32(h))
	return destroyed, nil
}

// removeWindowSurfaceLocked destroys a window surface and drops the
// reference it holds on its color buffer.
func (fb *FrameBuffer) removeWindowSurfaceLocked(h Handle, forced bool) []Handle {
	w, ok := fb.windows[h]
	if !ok {
		return nil
	}
	fb.backend.DestroySurface(w.host)
	delete(fb.windows, h)
	slogger().Debug("renderhost: destroyed window surface", "handle", h, "colorbuffer", w.cb)

	if w.cb == 0 {
		return nil
	}
	if fb.opts.refCountPipe {
		if fb.decRefLocked(w.cb) {
			return []Handle{w.cb}
		}
		return nil
	}
	if fb.closeColorBufferLocked(w.cb, forced) {
		return []Handle{w.cb}
	}
	return nil
}

// SetWindowSurfaceColorBuffer makes cb the render target of surface. The
// surface takes a reference on cb and drops the one it held on its
// previous buffer.
func (fb *FrameBuffer) SetWindowSurfaceColorBuffer(rt *RenderThread, surface, cb Handle) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	w, ok := fb.windows[surface]
	if !ok {
		slogger().Warn("renderhost: set color buffer of unknown window surface", "surface", surface)
		return fmt.Errorf("%w: window surface %v", ErrInvalidHandle, surface)
	}
	c, ok := fb.colorBuffers[cb]
	if !ok {
		slogger().Warn("renderhost: set unknown color buffer on window surface", "surface", surface, "colorbuffer", cb)
		return fmt.Errorf("%w: color buffer %v", ErrInvalidHandle, cb)
	}

	w.host.SetColorBuffer(c.host)
	fb.markOpenedLocked(c)
	c.refCount++

	if old := w.cb; old != 0 {
		if fb.opts.refCountPipe {
			fb.decRefLocked(old)
		} else {
			fb.closeColorBufferLocked(old, false)
		}
	}
	w.cb = cb
	slogger().Debug("renderhost: bound color buffer", "surface", surface, "colorbuffer", cb, "refcount", c.refCount)
	return nil
}

// WindowSurfaceColorBuffer returns the color buffer bound to surface, or 0.
func (fb *FrameBuffer) WindowSurfaceColorBuffer(surface Handle) Handle {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if w, ok := fb.windows[surface]; ok {
		return w.cb
	}
	return 0
}

// FlushWindowSurfaceColorBuffer resolves the contents of surface into its
// color buffer.
func (fb *FrameBuffer) FlushWindowSurfaceColorBuffer(rt *RenderThread, surface Handle) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	w, ok := fb.windows[surface]
	if !ok {
		slogger().Warn("renderhost: flush of unknown window surface", "surface", surface)
		return fmt.Errorf("%w: window surface %v", ErrInvalidHandle, surface)
	}
	if w.cb == 0 {
		slogger().Warn("renderhost: flush of window surface without color buffer", "surface", surface)
		return fmt.Errorf("%w: window surface %v has no color buffer", ErrInvalidHandle, surface)
	}
	if err := w.host.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrHostFailure, err)
	}
	return nil
}
