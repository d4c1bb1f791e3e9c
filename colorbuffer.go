// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderhost

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/gogpu/renderhost/host"
	"github.com/gogpu/renderhost/internal/binding"
	"github.com/gogpu/renderhost/internal/ownership"
)

// CreateColorBuffer creates a color buffer with a reference count of one,
// recorded as opened once by rt's process.
func (fb *FrameBuffer) CreateColorBuffer(rt *RenderThread, width, height int, format host.InternalFormat, fw host.FrameworkFormat) (Handle, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.sweepLocked()
	h := fb.allocLocked()
	if err := fb.createColorBufferLocked(rt, h, width, height, format, fw); err != nil {
		return 0, err
	}
	return h, nil
}

// CreateColorBufferWithHandle is CreateColorBuffer with a guest-chosen
// handle. A handle that is already live breaks the allocation protocol
// between guest and host and is reported through the fatal hook.
func (fb *FrameBuffer) CreateColorBufferWithHandle(rt *RenderThread, width, height int, format host.InternalFormat, fw host.FrameworkFormat, h Handle) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.sweepLocked()
	if h == 0 {
		return fmt.Errorf("%w: zero handle", ErrInvalidHandle)
	}
	if fb.inUse(uint32(h)) {
		err := fmt.Errorf("%w: %v", ErrHandleCollision, h)
		fb.opts.fatal(err)
		return err
	}
	return fb.createColorBufferLocked(rt, h, width, height, format, fw)
}

func (fb *FrameBuffer) createColorBufferLocked(rt *RenderThread, h Handle, width, height int, format host.InternalFormat, fw host.FrameworkFormat) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	desc := host.ColorBufferDesc{
		Handle:    uint32(h),
		Width:     width,
		Height:    height,
		Format:    format,
		Framework: fw,
	}
	var cb host.ColorBuffer
	err := fb.binder.Do(fb.stateOf(rt), func() error {
		var err error
		cb, err = fb.backend.CreateColorBuffer(desc)
		return err
	})
	if cb != nil && errors.Is(err, binding.ErrRestoreFailed) {
		slogger().Warn("renderhost: guest binding lost after color buffer creation", "handle", h)
		err = nil
	}
	if err != nil {
		slogger().Error("renderhost: create color buffer failed", "width", width, "height", height, "format", format, "err", err)
		return fmt.Errorf("%w: %w", ErrHostFailure, err)
	}

	fb.colorBuffers[h] = &colorBuffer{desc: desc, host: cb, refCount: 1}
	if !fb.opts.refCountPipe {
		fb.owners.OpenColorBuffer(ownerOf(rt), uint32(h))
	}
	slogger().Debug("renderhost: created color buffer", "handle", h, "width", width, "height", height, "framework", fw)
	return nil
}

// OpenColorBuffer takes a reference on h for rt's process and cancels a
// pending close. It does nothing when the guest manages lifetime through
// the refcount pipe.
func (fb *FrameBuffer) OpenColorBuffer(rt *RenderThread, h Handle) error {
	if fb.opts.refCountPipe {
		return nil
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()

	cb, ok := fb.colorBuffers[h]
	if !ok {
		slogger().Warn("renderhost: open of unknown color buffer", "handle", h)
		return fmt.Errorf("%w: color buffer %v", ErrInvalidHandle, h)
	}
	cb.refCount++
	fb.markOpenedLocked(cb)
	fb.owners.OpenColorBuffer(ownerOf(rt), uint32(h))
	return nil
}

// CloseColorBuffer drops one reference of rt's process on h. It reports
// whether the buffer was destroyed. A buffer whose count reaches zero is
// normally kept for the grace period first. Unknown and fully closed
// buffers are ignored: guests close buffers the host already collected.
func (fb *FrameBuffer) CloseColorBuffer(rt *RenderThread, h Handle) bool {
	if fb.opts.refCountPipe {
		return false
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.owners.CloseColorBuffer(ownerOf(rt), uint32(h))
	return fb.closeColorBufferLocked(h, fb.opts.noDelayClose)
}

// closeColorBufferLocked drops one reference on h. At zero the buffer is
// destroyed if forced, otherwise scheduled for a delayed close.
func (fb *FrameBuffer) closeColorBufferLocked(h Handle, forced bool) bool {
	if fb.opts.noDelayClose {
		forced = true
	}
	cb, ok := fb.colorBuffers[h]
	if !ok {
		slogger().Warn("renderhost: close of unknown color buffer", "handle", h)
		return false
	}

	destroyed := false
	switch {
	case cb.refCount > 0:
		cb.refCount--
		if cb.refCount == 0 {
			if forced {
				fb.eraseColorBufferLocked(h)
				destroyed = true
			} else {
				cb.closedAt = fb.now()
				fb.delayed.Schedule(uint32(h), cb.closedAt)
			}
		}
	case forced:
		fb.eraseColorBufferLocked(h)
		destroyed = true
	default:
		slogger().Warn("renderhost: close of color buffer with no references", "handle", h)
	}

	fb.expireLocked(false)
	return destroyed
}

// markOpenedLocked records that the guest used cb and cancels any pending
// close of it.
func (fb *FrameBuffer) markOpenedLocked(cb *colorBuffer) {
	cb.opened = true
	if cb.closedAt.IsZero() {
		return
	}
	fb.delayed.Cancel(cb.desc.Handle, cb.closedAt)
	cb.closedAt = time.Time{}
}

// decRefLocked drops one reference in refcount-pipe mode, destroying the
// buffer at zero. It reports whether the buffer was destroyed.
func (fb *FrameBuffer) decRefLocked(h Handle) bool {
	cb, ok := fb.colorBuffers[h]
	if !ok {
		return false
	}
	if cb.refCount > 0 {
		cb.refCount--
	}
	if cb.refCount > 0 {
		return false
	}
	fb.eraseColorBufferLocked(h)
	return true
}

// eraseColorBufferLocked destroys h now.
func (fb *FrameBuffer) eraseColorBufferLocked(h Handle) {
	cb, ok := fb.colorBuffers[h]
	if !ok {
		return
	}
	if !cb.closedAt.IsZero() {
		fb.delayed.Cancel(uint32(h), cb.closedAt)
	}
	fb.backend.DestroyColorBuffer(cb.host)
	delete(fb.colorBuffers, h)
	if fb.lastPosted == h {
		fb.lastPosted = 0
	}
	for id, d := range fb.displays {
		if d == h {
			delete(fb.displays, id)
		}
	}
	slogger().Debug("renderhost: destroyed color buffer", "handle", h)
}

// expireLocked destroys the unreferenced buffers whose grace period ran
// out, or all of them when forced.
func (fb *FrameBuffer) expireLocked(forced bool) []Handle {
	var destroyed []Handle
	for _, raw := range fb.delayed.Expire(fb.now(), fb.opts.grace, forced) {
		h := Handle(raw)
		cb, ok := fb.colorBuffers[h]
		if !ok || cb.refCount != 0 {
			continue
		}
		cb.closedAt = time.Time{}
		fb.eraseColorBufferLocked(h)
		destroyed = append(destroyed, h)
	}
	return destroyed
}

// OnLastColorBufferRef is called by the refcount pipe when the guest drops
// its last reference to h. The release happens on the next sweep.
func (fb *FrameBuffer) OnLastColorBufferRef(h Handle) {
	select {
	case fb.outstanding <- h:
	default:
		slogger().Warn("renderhost: too many outstanding color buffer destroys, leaking", "handle", h)
	}
}

// sweepLocked applies queued refcount-pipe releases and expires delayed
// closes.
func (fb *FrameBuffer) sweepLocked() {
	for drained := false; !drained; {
		select {
		case h := <-fb.outstanding:
			fb.decRefLocked(h)
		default:
			drained = true
		}
	}
	fb.expireLocked(false)
}

func (fb *FrameBuffer) lookupColorBuffer(h Handle) (*colorBuffer, error) {
	cb, ok := fb.colorBuffers[h]
	if !ok {
		slogger().Warn("renderhost: unknown color buffer", "handle", h)
		return nil, fmt.Errorf("%w: color buffer %v", ErrInvalidHandle, h)
	}
	return cb, nil
}

// ReadColorBuffer reads r of h into dst as tightly packed RGBA8.
func (fb *FrameBuffer) ReadColorBuffer(rt *RenderThread, h Handle, r image.Rectangle, dst []byte) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	cb, err := fb.lookupColorBuffer(h)
	if err != nil {
		return err
	}
	return fb.hostCall(rt, func() error { return cb.host.ReadPixels(r, dst) })
}

// UpdateColorBuffer writes tightly packed RGBA8 src into r of h.
func (fb *FrameBuffer) UpdateColorBuffer(rt *RenderThread, h Handle, r image.Rectangle, src []byte) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	cb, err := fb.lookupColorBuffer(h)
	if err != nil {
		return err
	}
	return fb.hostCall(rt, func() error { return cb.host.UpdatePixels(r, src) })
}

// ReplaceColorBufferContents overwrites all of h with src.
func (fb *FrameBuffer) ReplaceColorBufferContents(rt *RenderThread, h Handle, src []byte) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	cb, err := fb.lookupColorBuffer(h)
	if err != nil {
		return err
	}
	return fb.hostCall(rt, func() error { return cb.host.UpdatePixels(cb.desc.Bounds(), src) })
}

// ReadColorBufferContents returns all pixels of h.
func (fb *FrameBuffer) ReadColorBufferContents(rt *RenderThread, h Handle) ([]byte, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	cb, err := fb.lookupColorBuffer(h)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, cb.desc.Width*cb.desc.Height*4)
	if err := fb.hostCall(rt, func() error { return cb.host.ReadPixels(cb.desc.Bounds(), buf) }); err != nil {
		return nil, err
	}
	return buf, nil
}

// ColorBufferInfo describes h.
func (fb *FrameBuffer) ColorBufferInfo(h Handle) (host.ColorBufferDesc, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	cb, err := fb.lookupColorBuffer(h)
	if err != nil {
		return host.ColorBufferDesc{}, err
	}
	return cb.desc, nil
}

// hostCall runs fn with the internal pair bound on rt's thread.
func (fb *FrameBuffer) hostCall(rt *RenderThread, fn func() error) error {
	if err := fb.binder.Do(fb.stateOf(rt), fn); err != nil {
		return fmt.Errorf("%w: %w", ErrHostFailure, err)
	}
	return nil
}

// colorBufferImage reads all of h into a new image. It is used by the
// workers, which have no RenderThread.
func (fb *FrameBuffer) colorBufferImage(h Handle) (*image.RGBA, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	cb, err := fb.lookupColorBuffer(h)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(cb.desc.Bounds())
	if err := cb.host.ReadPixels(img.Rect, img.Pix); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHostFailure, err)
	}
	return img, nil
}

// storeColorBufferImage writes img over all of h.
func (fb *FrameBuffer) storeColorBufferImage(h Handle, img *image.RGBA) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	cb, err := fb.lookupColorBuffer(h)
	if err != nil {
		return err
	}
	if img.Rect != cb.desc.Bounds() {
		return fmt.Errorf("%w: image %v for buffer %v", ErrInvalidSize, img.Rect, cb.desc.Bounds())
	}
	if err := cb.host.UpdatePixels(img.Rect, img.Pix); err != nil {
		return fmt.Errorf("%w: %w", ErrHostFailure, err)
	}
	return nil
}

// closeOpensLocked closes h once for every open rec recorded.
func (fb *FrameBuffer) closeOpensLocked(rec ownership.ColorBufferOpen, forced bool) []Handle {
	var destroyed []Handle
	for i := 0; i < rec.Count; i++ {
		if fb.closeColorBufferLocked(Handle(rec.Handle), forced) {
			destroyed = append(destroyed, Handle(rec.Handle))
			break
		}
	}
	return destroyed
}
