// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package host defines the boundary between the resource registry and the
// host GPU. A Backend must be fully constructed before any registry
// operation runs; the registry never reaches past these interfaces.
package host

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/renderhost/config"
)

// ErrDestroyed is returned when a host object is used after destruction.
var ErrDestroyed = errors.New("host: object destroyed")

// APIVersion is the GLES major version requested for a render context.
type APIVersion uint8

const (
	APIVersionES1 APIVersion = 1
	APIVersionES2 APIVersion = 2
	APIVersionES3 APIVersion = 3
)

// String returns the version as it appears in GLES strings.
func (v APIVersion) String() string {
	switch v {
	case APIVersionES1:
		return "GLES-CM 1.1"
	case APIVersionES2:
		return "GLES 2.0"
	case APIVersionES3:
		return "GLES 3.0"
	default:
		return fmt.Sprintf("APIVersion(%d)", uint8(v))
	}
}

// InternalFormat is the GL internal format of a color buffer.
type InternalFormat uint32

// Internal formats accepted for color buffers.
const (
	FormatRGB    InternalFormat = 0x1907
	FormatRGBA   InternalFormat = 0x1908
	FormatBGRA   InternalFormat = 0x80E1
	FormatRGB565 InternalFormat = 0x8D62
	FormatRGBA8  InternalFormat = 0x8058
)

// BytesPerPixel returns the host storage size of one pixel.
func (f InternalFormat) BytesPerPixel() int {
	switch f {
	case FormatRGB:
		return 3
	case FormatRGB565:
		return 2
	default:
		return 4
	}
}

// FrameworkFormat tags the layout the guest framework uses for a buffer.
type FrameworkFormat uint8

const (
	FrameworkGL FrameworkFormat = iota
	FrameworkYV12
	FrameworkYUV420888
	FrameworkNV12
	FrameworkDMA
)

// String returns the framework format name.
func (f FrameworkFormat) String() string {
	switch f {
	case FrameworkGL:
		return "GL"
	case FrameworkYV12:
		return "YV12"
	case FrameworkYUV420888:
		return "YUV_420_888"
	case FrameworkNV12:
		return "NV12"
	case FrameworkDMA:
		return "DMA"
	default:
		return fmt.Sprintf("FrameworkFormat(%d)", uint8(f))
	}
}

// IsYUV reports whether the guest writes planar YUV data.
func (f FrameworkFormat) IsYUV() bool {
	return f == FrameworkYV12 || f == FrameworkYUV420888 || f == FrameworkNV12
}

// ColorBufferDesc describes a color buffer.
type ColorBufferDesc struct {
	Handle    uint32
	Width     int
	Height    int
	Format    InternalFormat
	Framework FrameworkFormat
}

// Bounds returns the full rectangle of the buffer.
func (d ColorBufferDesc) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.Width, d.Height)
}

// Info describes the host renderer.
type Info struct {
	Vendor     string
	Renderer   string
	Version    string
	Extensions string
}

// Context is a host rendering context.
type Context interface {
	Version() APIVersion
}

// Surface is a host drawable backing a guest window surface.
type Surface interface {
	Size() (width, height int)

	// SetColorBuffer attaches the color buffer rendering resolves into.
	SetColorBuffer(cb ColorBuffer)

	// Flush copies the surface contents into the attached color buffer.
	Flush() error
}

// ColorBuffer is host pixel storage for a guest color buffer. Pixel data is
// tightly packed RGBA8 regardless of the internal format.
type ColorBuffer interface {
	Desc() ColorBufferDesc
	ReadPixels(r image.Rectangle, dst []byte) error
	UpdatePixels(r image.Rectangle, src []byte) error

	// Touch refreshes any lazily derived state.
	Touch()
}

// Image is a host client image.
type Image interface {
	Target() uint32
}

// Window is an on-screen presentation target.
type Window interface {
	Size() (width, height int)
	Present(img *image.RGBA) error

	// Binding returns the context and surface pair that draws into the window.
	Binding() Binding
}

// Binding is what a thread has current: a context and its draw and read
// surfaces. The zero value means nothing is bound.
type Binding struct {
	Context Context
	Draw    Surface
	Read    Surface
}

// IsZero reports whether nothing is bound.
func (b Binding) IsZero() bool {
	return b.Context == nil && b.Draw == nil && b.Read == nil
}

// Backend creates and destroys host objects.
type Backend interface {
	Info() Info

	CreateContext(cfg *config.Config, share Context, version APIVersion) (Context, error)
	DestroyContext(ctx Context)

	CreateSurface(cfg *config.Config, width, height int) (Surface, error)
	DestroySurface(s Surface)

	CreateColorBuffer(desc ColorBufferDesc) (ColorBuffer, error)
	DestroyColorBuffer(cb ColorBuffer)

	CreateImage(ctx Context, target, buffer uint32) (Image, error)
	DestroyImage(img Image) error

	// MakeCurrent switches the host binding of the calling render thread.
	MakeCurrent(b Binding) error

	// InternalBinding returns the off-screen pair used for registry work.
	InternalBinding() Binding

	// CreateWindow wraps a native window, or creates an offscreen one when
	// native is nil.
	CreateWindow(native any, width, height int) (Window, error)
	DestroyWindow(w Window)

	// ConfigSource returns the config source of the host display.
	ConfigSource() config.Source

	Close() error
}
