// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"golang.org/x/image/draw"

	"github.com/gogpu/renderhost/config"
	"github.com/gogpu/renderhost/host"
)

func errDestroyed(label string) error {
	return fmt.Errorf("%w: %s", host.ErrDestroyed, label)
}

// Context is a render context. It records its config and share group.
type Context struct {
	label     string
	version   host.APIVersion
	cfg       *config.Config
	share     *Context
	destroyed atomic.Bool
}

// Version returns the requested API version.
func (c *Context) Version() host.APIVersion { return c.version }

// Share returns the context this one shares objects with, or nil.
func (c *Context) Share() *Context { return c.share }

// Surface is a window surface backed by a texture.
type Surface struct {
	tex *texture

	mu sync.Mutex
	cb *ColorBuffer
}

// Size returns the surface size in pixels.
func (s *Surface) Size() (int, int) { return int(s.tex.width), int(s.tex.height) }

// SetColorBuffer attaches cb. A color buffer from another backend detaches.
func (s *Surface) SetColorBuffer(cb host.ColorBuffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := cb.(*ColorBuffer)
	if !ok && cb != nil {
		slogger().Warn("native: foreign color buffer attached to surface", "surface", s.tex.label)
	}
	s.cb = c
}

// Flush copies the overlapping region of the surface into the attached
// color buffer.
func (s *Surface) Flush() error {
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()
	if cb == nil {
		return nil
	}
	r := s.tex.bounds().Intersect(cb.tex.bounds())
	if r.Empty() {
		return nil
	}
	buf := make([]byte, r.Dx()*r.Dy()*4)
	if err := s.tex.read(r, buf); err != nil {
		return err
	}
	return cb.tex.write(r, buf)
}

// Draw replaces the surface contents. Renderers outside the registry use
// it to produce frames.
func (s *Surface) Draw(img *image.RGBA) error {
	r := img.Bounds().Intersect(s.tex.bounds())
	buf := make([]byte, r.Dx()*r.Dy()*4)
	copyRegion(buf, r.Dx()*4, img.Pix, img.Stride, r.Sub(img.Rect.Min))
	return s.tex.write(r, buf)
}

// ColorBuffer is a color buffer backed by a texture.
type ColorBuffer struct {
	desc    host.ColorBufferDesc
	tex     *texture
	touches atomic.Uint64
}

// Desc returns the creation descriptor.
func (c *ColorBuffer) Desc() host.ColorBufferDesc { return c.desc }

// ReadPixels copies region r into dst as RGBA8.
func (c *ColorBuffer) ReadPixels(r image.Rectangle, dst []byte) error {
	return c.tex.read(r, dst)
}

// UpdatePixels copies RGBA8 src into region r.
func (c *ColorBuffer) UpdatePixels(r image.Rectangle, src []byte) error {
	return c.tex.write(r, src)
}

// Touch counts accesses. Texture contents need no refresh on hal.
func (c *ColorBuffer) Touch() { c.touches.Add(1) }

// Touches returns how often Touch was called.
func (c *ColorBuffer) Touches() uint64 { return c.touches.Load() }

// Image is a client image created from a guest buffer.
type Image struct {
	ctx    *Context
	target uint32
	buffer uint32
}

// Target returns the image target.
func (i *Image) Target() uint32 { return i.target }

// Presenter receives the frames presented to a window.
type Presenter interface {
	Present(img *image.RGBA) error
}

// Window is an offscreen presentation target.
type Window struct {
	surface *Surface
	binding host.Binding
	out     Presenter

	mu   sync.Mutex
	last *image.RGBA
}

// Size returns the window size in pixels.
func (w *Window) Size() (int, int) { return w.surface.Size() }

// Binding returns the window's context and surface.
func (w *Window) Binding() host.Binding { return w.binding }

// Present uploads img to the window texture and forwards it to the
// presenter, if any.
func (w *Window) Present(img *image.RGBA) error {
	if err := w.surface.Draw(img); err != nil {
		return err
	}
	frame := image.NewRGBA(img.Bounds())
	draw.Draw(frame, frame.Bounds(), img, img.Bounds().Min, draw.Src)
	w.mu.Lock()
	w.last = frame
	w.mu.Unlock()
	if w.out != nil {
		return w.out.Present(frame)
	}
	return nil
}

// LastFrame returns the most recent presented frame, or nil.
func (w *Window) LastFrame() *image.RGBA {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

var (
	_ host.Context     = (*Context)(nil)
	_ host.Surface     = (*Surface)(nil)
	_ host.ColorBuffer = (*ColorBuffer)(nil)
	_ host.Image       = (*Image)(nil)
	_ host.Window      = (*Window)(nil)
)
