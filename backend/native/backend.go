// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/renderhost/config"
	"github.com/gogpu/renderhost/host"
)

// Backend is a host.Backend on a hal device.
type Backend struct {
	cfg      Config
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance
	external bool
	adapter  string

	// submitMu serializes command submission and queue writes.
	submitMu sync.Mutex

	mu       sync.Mutex
	closed   bool
	internal host.Binding
	nextID   atomic.Uint64
}

// Open initializes the configured hal backend and opens the first discrete
// or integrated adapter, falling back to the first adapter found.
func Open(cfg Config) (*Backend, error) {
	cfg = cfg.withDefaults()
	api, ok := hal.GetBackend(cfg.Backend)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, cfg.Backend)
	}
	instance, err := api.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoGPU
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}
	b, err := newBackend(cfg, openDev.Device, openDev.Queue, selected.Info.Name)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	b.instance = instance
	slogger().Info("native: device opened", "adapter", selected.Info.Name)
	return b, nil
}

// New returns a backend on a device owned by the caller. Close does not
// destroy the device.
func New(device hal.Device, queue hal.Queue, cfg Config) (*Backend, error) {
	b, err := newBackend(cfg.withDefaults(), device, queue, "external")
	if err != nil {
		return nil, err
	}
	b.external = true
	return b, nil
}

// NewFromProvider returns a backend on the device of a host application.
// The provider must also expose HalDevice() and HalQueue().
func NewFromProvider(provider gpucontext.DeviceProvider, cfg Config) (*Backend, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrBadProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrBadProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrBadProvider)
	}
	return New(device, queue, cfg)
}

func newBackend(cfg Config, device hal.Device, queue hal.Queue, adapter string) (*Backend, error) {
	b := &Backend{cfg: cfg, device: device, queue: queue, adapter: adapter}
	ctx := &Context{label: "internal", version: host.APIVersionES2}
	tex, err := b.newTexture("internal_pbuffer", 1, 1)
	if err != nil {
		return nil, err
	}
	surf := &Surface{tex: tex}
	b.internal = host.Binding{Context: ctx, Draw: surf, Read: surf}
	return b, nil
}

func (b *Backend) label(kind string) string {
	return fmt.Sprintf("%s_%d", kind, b.nextID.Add(1))
}

func (b *Backend) checkOpen() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Info describes the renderer.
func (b *Backend) Info() host.Info {
	renderer := b.cfg.RendererName
	if renderer == "" {
		renderer = "gogpu hal (" + b.adapter + ")"
	}
	return host.Info{
		Vendor:     "gogpu",
		Renderer:   renderer,
		Version:    "OpenGL ES 3.0",
		Extensions: "GL_OES_EGL_image GL_OES_rgb8_rgba8 GL_EXT_texture_format_BGRA8888",
	}
}

// CreateContext creates a render context.
func (b *Backend) CreateContext(cfg *config.Config, share host.Context, version host.APIVersion) (host.Context, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	var sh *Context
	if share != nil {
		var ok bool
		if sh, ok = share.(*Context); !ok {
			return nil, ErrForeignObject
		}
		if sh.destroyed.Load() {
			return nil, errDestroyed(sh.label)
		}
	}
	ctx := &Context{label: b.label("context"), version: version, cfg: cfg, share: sh}
	slogger().Debug("native: context created", "label", ctx.label, "version", version)
	return ctx, nil
}

// DestroyContext destroys a render context.
func (b *Backend) DestroyContext(ctx host.Context) {
	if c, ok := ctx.(*Context); ok {
		c.destroyed.Store(true)
	}
}

// CreateSurface creates a window surface texture.
func (b *Backend) CreateSurface(_ *config.Config, width, height int) (host.Surface, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	tex, err := b.newTexture(b.label("surface"), width, height)
	if err != nil {
		return nil, err
	}
	return &Surface{tex: tex}, nil
}

// DestroySurface destroys a window surface.
func (b *Backend) DestroySurface(s host.Surface) {
	if sf, ok := s.(*Surface); ok {
		sf.tex.destroy()
	}
}

// CreateColorBuffer creates a color buffer texture.
func (b *Backend) CreateColorBuffer(desc host.ColorBufferDesc) (host.ColorBuffer, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	tex, err := b.newTexture(fmt.Sprintf("cb_%d", desc.Handle), desc.Width, desc.Height)
	if err != nil {
		return nil, err
	}
	return &ColorBuffer{desc: desc, tex: tex}, nil
}

// DestroyColorBuffer destroys a color buffer.
func (b *Backend) DestroyColorBuffer(cb host.ColorBuffer) {
	if c, ok := cb.(*ColorBuffer); ok {
		c.tex.destroy()
	}
}

// CreateImage creates a client image in ctx. A nil ctx creates an image
// that belongs to no context.
func (b *Backend) CreateImage(ctx host.Context, target, buffer uint32) (host.Image, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	if ctx == nil {
		return &Image{target: target, buffer: buffer}, nil
	}
	c, ok := ctx.(*Context)
	if !ok {
		return nil, ErrForeignObject
	}
	if c.destroyed.Load() {
		return nil, errDestroyed(c.label)
	}
	return &Image{ctx: c, target: target, buffer: buffer}, nil
}

// DestroyImage destroys a client image.
func (b *Backend) DestroyImage(img host.Image) error {
	if _, ok := img.(*Image); !ok {
		return ErrForeignObject
	}
	return nil
}

// MakeCurrent validates b. Destroyed contexts and surfaces are refused.
func (b *Backend) MakeCurrent(bind host.Binding) error {
	if bind.Context != nil {
		c, ok := bind.Context.(*Context)
		if !ok {
			return ErrForeignObject
		}
		if c.destroyed.Load() {
			return errDestroyed(c.label)
		}
	}
	for _, s := range []host.Surface{bind.Draw, bind.Read} {
		if s == nil {
			continue
		}
		sf, ok := s.(*Surface)
		if !ok {
			return ErrForeignObject
		}
		sf.tex.mu.Lock()
		gone := sf.tex.destroyed
		sf.tex.mu.Unlock()
		if gone {
			return errDestroyed(sf.tex.label)
		}
	}
	return nil
}

// InternalBinding returns the 1x1 off-screen pair.
func (b *Backend) InternalBinding() host.Binding { return b.internal }

// CreateWindow creates an offscreen window. native may be nil or a
// Presenter that receives every frame.
func (b *Backend) CreateWindow(nativeWin any, width, height int) (host.Window, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	var out Presenter
	if nativeWin != nil {
		p, ok := nativeWin.(Presenter)
		if !ok {
			return nil, fmt.Errorf("%w: window %T is not a Presenter", ErrForeignObject, nativeWin)
		}
		out = p
	}
	tex, err := b.newTexture(b.label("window"), width, height)
	if err != nil {
		return nil, err
	}
	surf := &Surface{tex: tex}
	ctx := &Context{label: b.label("window_context"), version: host.APIVersionES2}
	return &Window{
		surface: surf,
		binding: host.Binding{Context: ctx, Draw: surf, Read: surf},
		out:     out,
	}, nil
}

// DestroyWindow destroys a window.
func (b *Backend) DestroyWindow(w host.Window) {
	if win, ok := w.(*Window); ok {
		win.surface.tex.destroy()
		if c, ok := win.binding.Context.(*Context); ok {
			c.destroyed.Store(true)
		}
	}
}

// ConfigSource returns the configured config source.
func (b *Backend) ConfigSource() config.Source { return b.cfg.Configs }

// Close releases the internal pair and, for devices opened by Open, the
// device and instance.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if s, ok := b.internal.Draw.(*Surface); ok {
		s.tex.destroy()
	}
	if !b.external {
		b.device.Destroy()
		if b.instance != nil {
			b.instance.Destroy()
		}
	}
	slogger().Debug("native: backend closed")
	return nil
}

var _ host.Backend = (*Backend)(nil)
