// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// copyPitchAlignment is the BytesPerRow alignment of texture-to-buffer copies.
const copyPitchAlignment = 256

// texture is an RGBA8 texture with CPU read and write paths.
type texture struct {
	b      *Backend
	label  string
	width  uint32
	height uint32

	mu        sync.Mutex
	raw       hal.Texture
	destroyed bool
}

func (b *Backend) newTexture(label string, w, h int) (*texture, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, w, h)
	}
	label = b.cfg.LabelPrefix + "_" + label
	raw, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage: gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst |
			gputypes.TextureUsageTextureBinding | gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %s: %w", label, err)
	}
	return &texture{b: b, label: label, width: uint32(w), height: uint32(h), raw: raw}, nil
}

func (t *texture) bounds() image.Rectangle {
	return image.Rect(0, 0, int(t.width), int(t.height))
}

func (t *texture) destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return
	}
	t.destroyed = true
	t.b.device.DestroyTexture(t.raw)
	t.raw = nil
}

// readAll returns the whole texture as tightly packed RGBA8 rows.
func (t *texture) readAll() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return nil, errDestroyed(t.label)
	}
	return t.b.readTexture(t.raw, t.label, t.width, t.height)
}

// writeAll replaces the whole texture with tightly packed RGBA8 rows.
func (t *texture) writeAll(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return errDestroyed(t.label)
	}
	t.b.writeTexture(t.raw, t.width, t.height, data)
	return nil
}

// read copies region r into dst.
func (t *texture) read(r image.Rectangle, dst []byte) error {
	if !r.In(t.bounds()) || len(dst) < r.Dx()*r.Dy()*4 {
		return fmt.Errorf("%w: %v of %v", ErrRegion, r, t.bounds())
	}
	all, err := t.readAll()
	if err != nil {
		return err
	}
	copyRegion(dst, r.Dx()*4, all, int(t.width)*4, r)
	return nil
}

// write copies src into region r.
func (t *texture) write(r image.Rectangle, src []byte) error {
	if !r.In(t.bounds()) || len(src) < r.Dx()*r.Dy()*4 {
		return fmt.Errorf("%w: %v of %v", ErrRegion, r, t.bounds())
	}
	if r == t.bounds() {
		return t.writeAll(src[:r.Dx()*r.Dy()*4])
	}
	all, err := t.readAll()
	if err != nil {
		return err
	}
	pitch := int(t.width) * 4
	rowLen := r.Dx() * 4
	for y := 0; y < r.Dy(); y++ {
		off := (r.Min.Y+y)*pitch + r.Min.X*4
		copy(all[off:off+rowLen], src[y*rowLen:(y+1)*rowLen])
	}
	return t.writeAll(all)
}

// copyRegion copies region r out of a full image with pitch srcPitch.
func copyRegion(dst []byte, dstPitch int, src []byte, srcPitch int, r image.Rectangle) {
	rowLen := r.Dx() * 4
	for y := 0; y < r.Dy(); y++ {
		off := (r.Min.Y+y)*srcPitch + r.Min.X*4
		copy(dst[y*dstPitch:y*dstPitch+rowLen], src[off:off+rowLen])
	}
}

// readTexture copies a texture into a staging buffer, waits for the GPU and
// strips the row padding.
func (b *Backend) readTexture(tex hal.Texture, label string, w, h uint32) ([]byte, error) {
	b.submitMu.Lock()
	defer b.submitMu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: label + "_readback",
	})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label + "_readback"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label + "_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer b.device.DestroyBuffer(staging)

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopyDst,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageCopyDst,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer b.device.FreeCommandBuffer(cmdBuf)

	fence, err := b.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	defer b.device.DestroyFence(fence)

	if err := b.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	ok, err := b.device.Wait(fence, 1, b.cfg.WaitTimeout)
	if err != nil || !ok {
		return nil, fmt.Errorf("%w: ok=%v err=%v", ErrGPUWait, ok, err)
	}

	readback := make([]byte, stagingSize)
	if err := b.queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}
	if alignedBytesPerRow == bytesPerRow {
		return readback, nil
	}
	tight := make([]byte, uint64(bytesPerRow)*uint64(h))
	for row := uint32(0); row < h; row++ {
		src := int(row) * int(alignedBytesPerRow)
		dst := int(row) * int(bytesPerRow)
		copy(tight[dst:dst+int(bytesPerRow)], readback[src:src+int(bytesPerRow)])
	}
	return tight, nil
}

func (b *Backend) writeTexture(tex hal.Texture, w, h uint32, data []byte) {
	b.submitMu.Lock()
	defer b.submitMu.Unlock()
	b.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		data,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: w * 4, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
}
