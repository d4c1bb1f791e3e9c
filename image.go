// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderhost

import (
	"fmt"

	"github.com/gogpu/renderhost/host"
)

// CreateClientImage creates a host image from buffer of the given target.
// ctx may be 0 for images that do not come from a context. The image is
// owned by rt's process.
func (fb *FrameBuffer) CreateClientImage(rt *RenderThread, ctx Handle, target, buffer uint32) (Handle, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	var hc host.Context
	if ctx != 0 {
		c, ok := fb.contexts[ctx]
		if !ok {
			slogger().Warn("renderhost: create image with unknown context", "context", ctx)
			return 0, fmt.Errorf("%w: context %v", ErrInvalidHandle, ctx)
		}
		hc = c.host
	}
	img, err := fb.backend.CreateImage(hc, target, buffer)
	if err != nil {
		slogger().Error("renderhost: create image failed", "target", target, "buffer", buffer, "err", err)
		return 0, fmt.Errorf("%w: %w", ErrHostFailure, err)
	}

	h := fb.allocLocked()
	fb.images[h] = &clientImage{handle: h, ctx: ctx, target: target, buffer: buffer, host: img}
	fb.owners.AddImage(ownerOf(rt), uint32(h))
	slogger().Debug("renderhost: created image", "handle", h, "target", target)
	return h, nil
}

// DestroyClientImage destroys an image created with CreateClientImage.
func (fb *FrameBuffer) DestroyClientImage(rt *RenderThread, h Handle) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if _, ok := fb.images[h]; !ok {
		slogger().Warn("renderhost: destroy of unknown image", "handle", h)
		return fmt.Errorf("%w: image %v", ErrInvalidHandle, h)
	}
	err := fb.destroyImageLocked(h)
	fb.owners.RemoveImage(ownerOf(rt), uint32(h))
	return err
}

func (fb *FrameBuffer) destroyImageLocked(h Handle) error {
	img, ok := fb.images[h]
	if !ok {
		return nil
	}
	delete(fb.images, h)
	if err := fb.backend.DestroyImage(img.host); err != nil {
		slogger().Warn("renderhost: destroy image failed", "handle", h, "err", err)
		return fmt.Errorf("%w: %w", ErrHostFailure, err)
	}
	return nil
}
