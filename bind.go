// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderhost

import (
	"fmt"

	"github.com/gogpu/renderhost/host"
)

// BindContext makes ctx current on rt with draw and read as its surfaces.
// All three zero unbinds. Otherwise every handle must name a live object.
// Nothing is bound once shutdown has begun.
func (fb *FrameBuffer) BindContext(rt *RenderThread, ctx, draw, read Handle) error {
	if rt == nil {
		return ErrNoThread
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.shuttingDown {
		return ErrShuttingDown
	}

	if ctx == 0 && draw == 0 && read == 0 {
		if err := fb.backend.MakeCurrent(host.Binding{}); err != nil {
			return fmt.Errorf("%w: %w", ErrHostFailure, err)
		}
		rt.state.SetCurrent(host.Binding{})
		rt.ctx, rt.draw, rt.read = 0, 0, 0
		fb.sweepLocked()
		return nil
	}

	c, ok := fb.contexts[ctx]
	if !ok {
		slogger().Warn("renderhost: bind of unknown context", "context", ctx)
		return fmt.Errorf("%w: context %v", ErrInvalidHandle, ctx)
	}
	d, ok := fb.windows[draw]
	if !ok {
		slogger().Warn("renderhost: bind of unknown draw surface", "surface", draw)
		return fmt.Errorf("%w: window surface %v", ErrInvalidHandle, draw)
	}
	r := d
	if read != draw {
		if r, ok = fb.windows[read]; !ok {
			slogger().Warn("renderhost: bind of unknown read surface", "surface", read)
			return fmt.Errorf("%w: window surface %v", ErrInvalidHandle, read)
		}
	}

	b := host.Binding{Context: c.host, Draw: d.host, Read: r.host}
	if err := fb.backend.MakeCurrent(b); err != nil {
		slogger().Error("renderhost: make current failed", "context", ctx, "draw", draw, "read", read, "err", err)
		return fmt.Errorf("%w: %w", ErrHostFailure, err)
	}
	rt.state.SetCurrent(b)
	rt.ctx, rt.draw, rt.read = ctx, draw, read
	slogger().Debug("renderhost: bound context", "context", ctx, "draw", draw, "read", read)
	return nil
}

// DrainThread releases everything a thread without a process id created,
// once the thread exits. Threads with a process id own nothing themselves;
// their objects go with CleanupProcessObjects.
func (fb *FrameBuffer) DrainThread(rt *RenderThread) []Handle {
	if rt == nil {
		return nil
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.binder.Release(&rt.state)
	rt.ctx, rt.draw, rt.read = 0, 0, 0
	if fb.shuttingDown {
		return nil
	}

	var destroyed []Handle
	for _, h := range rt.objects.Contexts.Sorted() {
		if c, ok := fb.contexts[Handle(h)]; ok {
			fb.backend.DestroyContext(c.host)
			delete(fb.contexts, Handle(h))
		}
	}
	for _, h := range rt.objects.Windows.Sorted() {
		destroyed = append(destroyed, fb.removeWindowSurfaceLocked(Handle(h), false)...)
	}
	clear(rt.objects.Contexts)
	clear(rt.objects.Windows)
	slogger().Debug("renderhost: drained thread", "destroyed", len(destroyed))
	return destroyed
}
