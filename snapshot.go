// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderhost

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/exp/slices"

	"github.com/gogpu/renderhost/host"
	"github.com/gogpu/renderhost/internal/ownership"
	"github.com/gogpu/renderhost/internal/stream"
)

// persistedKinds is the order the per-process tables are saved in.
var persistedKinds = [...]ownership.Kind{
	ownership.KindWindowSurfaces,
	ownership.KindImages,
	ownership.KindContexts,
}

func b32(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

func sortedKeys[V any](m map[Handle]V) []Handle {
	keys := make([]Handle, 0, len(m))
	for h := range m {
		keys = append(keys, h)
	}
	slices.Sort(keys)
	return keys
}

// contextSaveOrder orders contexts so that every share context comes
// before the contexts sharing with it.
func (fb *FrameBuffer) contextSaveOrder() []*renderContext {
	pending := sortedKeys(fb.contexts)
	done := make(map[Handle]bool, len(pending))
	out := make([]*renderContext, 0, len(pending))
	for len(pending) > 0 {
		next := pending[:0]
		for _, h := range pending {
			c := fb.contexts[h]
			_, shareLive := fb.contexts[c.share]
			if c.share == 0 || !shareLive || done[c.share] {
				out = append(out, c)
				done[h] = true
				continue
			}
			next = append(next, h)
		}
		if len(next) == len(pending) {
			// Sharing cycle; cannot happen through CreateRenderContext.
			for _, h := range next {
				out = append(out, fb.contexts[h])
			}
			break
		}
		pending = next
	}
	return out
}

// OnSave writes the registry state to w. Color buffer pixels are read back
// from the host and stored compressed.
func (fb *FrameBuffer) OnSave(w io.Writer) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	sw := stream.NewWriter(w)
	sw.Be32(uint32(fb.width))
	sw.Be32(uint32(fb.height))
	sw.Float(fb.dpr)
	sw.Be32(b32(fb.useSubWindow))
	sw.Be32(1)
	sw.Be32(b32(fb.fpsStats))
	sw.Be32(fb.statsFrames)
	var start int64
	if !fb.statsStart.IsZero() {
		start = fb.statsStart.UnixNano()
	}
	sw.Be64(uint64(start))

	ctxs := fb.contextSaveOrder()
	sw.Be32(uint32(len(ctxs)))
	for _, c := range ctxs {
		sw.Be32(uint32(c.handle))
		sw.Be32(uint32(c.config))
		sw.Byte(byte(c.version))
		sw.Be32(uint32(c.share))
	}

	now := fb.now()
	cbs := sortedKeys(fb.colorBuffers)
	sw.Be32(uint32(len(cbs)))
	for _, h := range cbs {
		cb := fb.colorBuffers[h]
		d := cb.desc
		pix := make([]byte, d.Width*d.Height*4)
		err := fb.binder.Do(&fb.internal, func() error { return cb.host.ReadPixels(d.Bounds(), pix) })
		if err != nil {
			return fmt.Errorf("renderhost: save color buffer %v: %w", h, err)
		}
		sw.Be32(d.Handle)
		sw.Be32(uint32(d.Width))
		sw.Be32(uint32(d.Height))
		sw.Be32(uint32(d.Format))
		sw.Be32(uint32(d.Framework))
		sw.Blob(pix)
		sw.Be32(uint32(cb.refCount))
		sw.Bool(cb.opened)
		var secs uint32
		if !cb.closedAt.IsZero() {
			if age := now.Sub(cb.closedAt); age > 0 {
				secs = uint32(age / time.Second)
			}
		}
		sw.Be32(secs)
	}

	sw.Be32(uint32(fb.lastPosted))

	wins := sortedKeys(fb.windows)
	sw.Be32(uint32(len(wins)))
	for _, h := range wins {
		win := fb.windows[h]
		sw.Be32(uint32(win.handle))
		sw.Be32(uint32(win.config))
		sw.Be32(uint32(win.width))
		sw.Be32(uint32(win.height))
		sw.Be32(uint32(win.cb))
	}

	for _, k := range persistedKinds {
		entries := fb.owners.Export(k)
		sw.Be32(uint32(len(entries)))
		for _, e := range entries {
			sw.Be64(e.PUID)
			sw.Handles(e.Handles)
		}
	}

	imgs := sortedKeys(fb.images)
	sw.Be32(uint32(len(imgs)))
	for _, h := range imgs {
		img := fb.images[h]
		sw.Be32(uint32(img.handle))
		sw.Be32(uint32(img.ctx))
		sw.Be32(img.target)
		sw.Be32(img.buffer)
	}

	if err := sw.Err(); err != nil {
		return fmt.Errorf("renderhost: save: %w", err)
	}
	slogger().Info("renderhost: saved",
		"contexts", len(ctxs), "colorbuffers", len(cbs), "windows", len(wins), "images", len(imgs))
	return nil
}

// OnLoad replaces the registry state with a snapshot written by OnSave.
// Everything live is released first, with process cleanup callbacks run
// outside the lock, and every loaded color buffer is touched afterwards.
func (fb *FrameBuffer) OnLoad(r io.Reader) error {
	fb.mu.Lock()
	callbacks := fb.releaseForLoadLocked()
	fb.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.delayed.Clear()
	if n := len(fb.contexts) + len(fb.windows) + len(fb.colorBuffers) + len(fb.images); n > 0 {
		slogger().Warn("renderhost: stale objects on load", "count", n)
		fb.destroyAllLocked()
	}
	fb.lastPosted = 0
	clear(fb.displays)

	if err := fb.loadLocked(stream.NewReader(r)); err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshot, err)
	}
	for _, cb := range fb.colorBuffers {
		cb.host.Touch()
	}
	slogger().Info("renderhost: loaded",
		"contexts", len(fb.contexts), "colorbuffers", len(fb.colorBuffers),
		"windows", len(fb.windows), "images", len(fb.images))
	return nil
}

// releaseForLoadLocked tears down the live state ahead of a load and
// returns the cleanup callbacks to run. Guests that never announced a
// process id leave nothing in the ownership tables; their objects are
// dropped wholesale.
func (fb *FrameBuffer) releaseForLoadLocked() []func() {
	fb.sweepLocked()
	legacy := fb.owners.Empty() &&
		(len(fb.contexts) > 0 || len(fb.windows) > 0 || len(fb.colorBuffers) > fb.delayed.Pending())
	if legacy {
		fb.destroyAllLocked()
		return nil
	}
	for _, puid := range fb.owners.Processes() {
		fb.cleanupProcessLocked(puid, true)
	}
	callbacks := fb.owners.TakeAllCallbacks()
	fb.expireLocked(true)
	return callbacks
}

type savedContext struct {
	handle  Handle
	config  int
	version host.APIVersion
	share   Handle
}

func (fb *FrameBuffer) loadLocked(sr *stream.Reader) error {
	width := int(sr.Be32())
	height := int(sr.Be32())
	dpr := sr.Float()
	useSubWindow := sr.Be32() != 0
	sr.Be32()
	fpsStats := sr.Be32() != 0
	frames := sr.Be32()
	start := int64(sr.Be64())
	if err := sr.Err(); err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("framebuffer size %dx%d", width, height)
	}
	fb.width, fb.height, fb.dpr = width, height, dpr
	fb.useSubWindow = useSubWindow
	fb.fpsStats = fpsStats
	fb.statsFrames = frames
	fb.statsStart = time.Time{}
	if start != 0 {
		fb.statsStart = time.Unix(0, start)
	}

	var maxHandle Handle
	seen := func(h Handle) {
		if h > maxHandle {
			maxHandle = h
		}
	}

	n := sr.Be32()
	for i := uint32(0); i < n && sr.Err() == nil; i++ {
		c := savedContext{
			handle:  Handle(sr.Be32()),
			config:  int(sr.Be32()),
			version: host.APIVersion(sr.Byte()),
			share:   Handle(sr.Be32()),
		}
		if err := sr.Err(); err != nil {
			return err
		}
		if err := fb.restoreContextLocked(c); err != nil {
			return err
		}
		seen(c.handle)
	}

	now := fb.now()
	n = sr.Be32()
	for i := uint32(0); i < n && sr.Err() == nil; i++ {
		desc := host.ColorBufferDesc{
			Handle:    sr.Be32(),
			Width:     int(sr.Be32()),
			Height:    int(sr.Be32()),
			Format:    host.InternalFormat(sr.Be32()),
			Framework: host.FrameworkFormat(sr.Be32()),
		}
		pix := sr.Blob()
		refCount := int(sr.Be32())
		opened := sr.Bool()
		secs := sr.Be32()
		if err := sr.Err(); err != nil {
			return err
		}
		cb, err := fb.backend.CreateColorBuffer(desc)
		if err != nil {
			return fmt.Errorf("color buffer %v: %w", Handle(desc.Handle), err)
		}
		if len(pix) == desc.Width*desc.Height*4 {
			if err := cb.UpdatePixels(desc.Bounds(), pix); err != nil {
				return fmt.Errorf("color buffer %v: %w", Handle(desc.Handle), err)
			}
		}
		h := Handle(desc.Handle)
		c := &colorBuffer{desc: desc, host: cb, refCount: refCount, opened: opened}
		if refCount == 0 {
			c.closedAt = now.Add(-time.Duration(secs) * time.Second)
			fb.delayed.Schedule(desc.Handle, c.closedAt)
		}
		fb.colorBuffers[h] = c
		seen(h)
	}

	fb.lastPosted = Handle(sr.Be32())

	n = sr.Be32()
	for i := uint32(0); i < n && sr.Err() == nil; i++ {
		h := Handle(sr.Be32())
		config := int(sr.Be32())
		width := int(sr.Be32())
		height := int(sr.Be32())
		bound := Handle(sr.Be32())
		if err := sr.Err(); err != nil {
			return err
		}
		cfg, ok := fb.catalog.Get(config)
		if !ok {
			return fmt.Errorf("window surface %v: config %d", h, config)
		}
		s, err := fb.backend.CreateSurface(cfg, width, height)
		if err != nil {
			return fmt.Errorf("window surface %v: %w", h, err)
		}
		if bound != 0 {
			cb, ok := fb.colorBuffers[bound]
			if !ok {
				return fmt.Errorf("window surface %v: color buffer %v", h, bound)
			}
			s.SetColorBuffer(cb.host)
		}
		fb.windows[h] = &windowSurface{handle: h, config: config, width: width, height: height, host: s, cb: bound}
		seen(h)
	}

	for _, k := range persistedKinds {
		n = sr.Be32()
		entries := make([]ownership.ProcessHandles, 0, min(n, 1024))
		for i := uint32(0); i < n && sr.Err() == nil; i++ {
			puid := sr.Be64()
			hs := sr.Handles()
			entries = append(entries, ownership.ProcessHandles{PUID: puid, Handles: hs})
		}
		if err := sr.Err(); err != nil {
			return err
		}
		fb.owners.Import(k, entries)
	}

	n = sr.Be32()
	for i := uint32(0); i < n && sr.Err() == nil; i++ {
		h := Handle(sr.Be32())
		ctx := Handle(sr.Be32())
		target := sr.Be32()
		buffer := sr.Be32()
		if err := sr.Err(); err != nil {
			return err
		}
		var hc host.Context
		if c, ok := fb.contexts[ctx]; ok {
			hc = c.host
		}
		img, err := fb.backend.CreateImage(hc, target, buffer)
		if err != nil {
			return fmt.Errorf("image %v: %w", h, err)
		}
		fb.images[h] = &clientImage{handle: h, ctx: ctx, target: target, buffer: buffer, host: img}
		seen(h)
	}
	if err := sr.Err(); err != nil {
		return err
	}

	if maxHandle > Handle(fb.handles.Last()) {
		fb.handles.Reset(uint32(maxHandle))
	}
	return nil
}

func (fb *FrameBuffer) restoreContextLocked(c savedContext) error {
	cfg, ok := fb.catalog.Get(c.config)
	if !ok {
		return fmt.Errorf("context %v: config %d", c.handle, c.config)
	}
	var share host.Context
	if c.share != 0 {
		s, ok := fb.contexts[c.share]
		if !ok {
			return fmt.Errorf("context %v: share context %v", c.handle, c.share)
		}
		share = s.host
	}
	hc, err := fb.backend.CreateContext(cfg, share, c.version)
	if err != nil {
		return fmt.Errorf("context %v: %w", c.handle, err)
	}
	fb.contexts[c.handle] = &renderContext{handle: c.handle, config: c.config, version: c.version, share: c.share, host: hc}
	return nil
}
