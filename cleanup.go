// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderhost

// CleanupProcessObjects releases everything guest process puid owns: its
// window surfaces with their color buffer bindings, every color buffer
// open it still holds, its images and its contexts. Cleanup callbacks of
// the process run afterwards, outside the registry lock. It returns the
// color buffers destroyed on the way; others may be pending a delayed close.
func (fb *FrameBuffer) CleanupProcessObjects(puid uint64) []Handle {
	fb.mu.Lock()
	if fb.shuttingDown {
		fb.mu.Unlock()
		return nil
	}
	destroyed := fb.cleanupProcessLocked(puid, false)
	callbacks := fb.owners.TakeCallbacks(puid)
	fb.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return destroyed
}

// cleanupProcessLocked is CleanupProcessObjects without the callbacks. A
// forced cleanup destroys unreferenced color buffers immediately.
func (fb *FrameBuffer) cleanupProcessLocked(puid uint64, forced bool) []Handle {
	rec := fb.owners.Take(puid)
	var destroyed []Handle
	for _, h := range rec.Windows {
		destroyed = append(destroyed, fb.removeWindowSurfaceLocked(Handle(h), forced)...)
	}
	for _, open := range rec.ColorBuffers {
		destroyed = append(destroyed, fb.closeOpensLocked(open, forced)...)
	}
	for _, h := range rec.Images {
		_ = fb.destroyImageLocked(Handle(h))
	}
	for _, h := range rec.Contexts {
		if c, ok := fb.contexts[Handle(h)]; ok {
			fb.backend.DestroyContext(c.host)
			delete(fb.contexts, Handle(h))
		}
	}
	slogger().Debug("renderhost: cleaned up process",
		"puid", puid, "windows", len(rec.Windows), "colorbuffers", len(rec.ColorBuffers),
		"images", len(rec.Images), "contexts", len(rec.Contexts), "destroyed", len(destroyed))
	return destroyed
}

// RegisterCleanupCallback runs fn when rt's process is cleaned up. A
// callback registered again under the same key replaces the first.
func (fb *FrameBuffer) RegisterCleanupCallback(rt *RenderThread, key any, fn func()) error {
	if rt == nil {
		return ErrNoThread
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.owners.RegisterCallback(rt.PUID(), key, fn)
	return nil
}

// UnregisterCleanupCallback removes the callback registered under key for
// rt's process.
func (fb *FrameBuffer) UnregisterCleanupCallback(rt *RenderThread, key any) error {
	if rt == nil {
		return ErrNoThread
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if !fb.owners.UnregisterCallback(rt.PUID(), key) {
		slogger().Warn("renderhost: no cleanup callback to unregister", "puid", rt.PUID(), "key", key)
	}
	return nil
}
