// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderhost

import (
	"fmt"

	"github.com/gogpu/renderhost/host"
)

// CreateRenderContext creates a host context for config and returns its
// handle. A non-zero share names a live context whose object namespace the
// new one joins. The context is owned by rt's process, or by rt itself when
// no process id is known.
func (fb *FrameBuffer) CreateRenderContext(rt *RenderThread, config int, share Handle, version host.APIVersion) (Handle, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	cfg, ok := fb.catalog.Get(config)
	if !ok {
		slogger().Warn("renderhost: create context with invalid config", "config", config)
		return 0, fmt.Errorf("%w: %d", ErrInvalidConfig, config)
	}
	var shareCtx host.Context
	if share != 0 {
		s, ok := fb.contexts[share]
		if !ok {
			slogger().Warn("renderhost: create context with invalid share context", "share", share)
			return 0, fmt.Errorf("%w: share context %v", ErrInvalidHandle, share)
		}
		shareCtx = s.host
	}

	hc, err := fb.backend.CreateContext(cfg, shareCtx, version)
	if err != nil {
		slogger().Error("renderhost: create context failed", "config", config, "version", version, "err", err)
		return 0, fmt.Errorf("%w: %w", ErrHostFailure, err)
	}

	h := fb.allocLocked()
	fb.contexts[h] = &renderContext{handle: h, config: config, version: version, share: share, host: hc}
	fb.owners.AddContext(ownerOf(rt), uint32(h))
	slogger().Debug("renderhost: created context", "handle", h, "config", config, "version", version, "share", share)
	return h, nil
}

// DestroyRenderContext destroys a render context. Bindings that still use
// it on other threads are not affected until they rebind.
func (fb *FrameBuffer) DestroyRenderContext(rt *RenderThread, h Handle) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.sweepLocked()
	c, ok := fb.contexts[h]
	if !ok {
		slogger().Warn("renderhost: destroy of unknown context", "handle", h)
		return fmt.Errorf("%w: context %v", ErrInvalidHandle, h)
	}
	fb.backend.DestroyContext(c.host)
	delete(fb.contexts, h)
	fb.owners.RemoveContext(ownerOf(rt), uint32(h))
	slogger().Debug("renderhost: destroyed context", "handle", h)
	return nil
}
