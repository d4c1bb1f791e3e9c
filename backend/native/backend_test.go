// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/renderhost"
	"github.com/gogpu/renderhost/host"
)

// createNoopDevice creates a noop device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

func newNoopBackend(t *testing.T) *Backend {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	b, err := New(device, queue, Config{})
	if err != nil {
		cleanup()
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		_ = b.Close()
		cleanup()
	})
	return b
}

func TestDefaultConfig(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.LabelPrefix != "renderhost" {
		t.Errorf("LabelPrefix = %q", cfg.LabelPrefix)
	}
	if cfg.Backend != gputypes.BackendVulkan {
		t.Errorf("Backend = %v, want Vulkan", cfg.Backend)
	}
	if cfg.Configs == nil {
		t.Error("Configs not defaulted")
	}
}

func TestContextLifecycle(t *testing.T) {
	b := newNoopBackend(t)

	parent, err := b.CreateContext(nil, nil, host.APIVersionES3)
	if err != nil {
		t.Fatal(err)
	}
	child, err := b.CreateContext(nil, parent, host.APIVersionES3)
	if err != nil {
		t.Fatal(err)
	}
	if child.(*Context).Share() != parent {
		t.Error("share group not recorded")
	}
	if err := b.MakeCurrent(host.Binding{Context: child}); err != nil {
		t.Errorf("MakeCurrent = %v", err)
	}

	b.DestroyContext(parent)
	if _, err := b.CreateContext(nil, parent, host.APIVersionES3); !errors.Is(err, host.ErrDestroyed) {
		t.Errorf("share with destroyed context: err = %v", err)
	}
	if err := b.MakeCurrent(host.Binding{Context: parent}); !errors.Is(err, host.ErrDestroyed) {
		t.Errorf("MakeCurrent(destroyed) = %v", err)
	}
}

func TestColorBufferCreate(t *testing.T) {
	b := newNoopBackend(t)

	cb, err := b.CreateColorBuffer(host.ColorBufferDesc{Handle: 7, Width: 64, Height: 32, Format: host.FormatRGBA})
	if err != nil {
		t.Fatal(err)
	}
	if d := cb.Desc(); d.Handle != 7 || d.Width != 64 {
		t.Errorf("Desc = %+v", d)
	}
	cb.Touch()
	if cb.(*ColorBuffer).Touches() != 1 {
		t.Error("Touch not counted")
	}

	if _, err := b.CreateColorBuffer(host.ColorBufferDesc{Width: 0, Height: 4}); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("zero width: err = %v", err)
	}
}

func TestColorBufferRegionChecks(t *testing.T) {
	b := newNoopBackend(t)
	cb, err := b.CreateColorBuffer(host.ColorBufferDesc{Width: 4, Height: 4})
	if err != nil {
		t.Fatal(err)
	}
	if err := cb.ReadPixels(image.Rect(0, 0, 5, 4), make([]byte, 80)); !errors.Is(err, ErrRegion) {
		t.Errorf("out of bounds read: err = %v", err)
	}
	if err := cb.UpdatePixels(image.Rect(0, 0, 4, 4), make([]byte, 8)); !errors.Is(err, ErrRegion) {
		t.Errorf("short write: err = %v", err)
	}

	b.DestroyColorBuffer(cb)
	if err := cb.UpdatePixels(image.Rect(0, 0, 4, 4), make([]byte, 64)); !errors.Is(err, host.ErrDestroyed) {
		t.Errorf("write after destroy: err = %v", err)
	}
}

func TestImageNeedsLiveContext(t *testing.T) {
	b := newNoopBackend(t)
	ctx, _ := b.CreateContext(nil, nil, host.APIVersionES2)

	img, err := b.CreateImage(ctx, 0x3140, 9)
	if err != nil {
		t.Fatal(err)
	}
	if img.Target() != 0x3140 {
		t.Errorf("Target = %#x", img.Target())
	}
	if err := b.DestroyImage(img); err != nil {
		t.Errorf("DestroyImage = %v", err)
	}

	b.DestroyContext(ctx)
	if _, err := b.CreateImage(ctx, 0x3140, 9); !errors.Is(err, host.ErrDestroyed) {
		t.Errorf("image on destroyed context: err = %v", err)
	}
}

func TestImageWithoutContext(t *testing.T) {
	b := newNoopBackend(t)

	img, err := b.CreateImage(nil, 0x3140, 9)
	if err != nil {
		t.Fatalf("CreateImage(nil) error = %v", err)
	}
	if img.Target() != 0x3140 {
		t.Errorf("Target = %#x", img.Target())
	}
	if err := b.DestroyImage(img); err != nil {
		t.Errorf("DestroyImage = %v", err)
	}
}

func TestRegistryImageWithoutContext(t *testing.T) {
	fb, err := renderhost.New(renderhost.WithBackend(newNoopBackend(t)), renderhost.WithSize(16, 16))
	if err != nil {
		t.Fatalf("renderhost.New() error = %v", err)
	}
	defer fb.Finalize()

	rt := renderhost.NewRenderThread(3)
	h, err := fb.CreateClientImage(rt, 0, 0x3140, 9)
	if err != nil {
		t.Fatalf("CreateClientImage(ctx 0) error = %v", err)
	}
	if h == 0 {
		t.Fatal("CreateClientImage returned handle 0")
	}
	if err := fb.DestroyClientImage(rt, h); err != nil {
		t.Errorf("DestroyClientImage() error = %v", err)
	}
}

type capture struct{ frames int }

func (c *capture) Present(*image.RGBA) error { c.frames++; return nil }

func TestWindowPresent(t *testing.T) {
	b := newNoopBackend(t)
	out := &capture{}
	w, err := b.CreateWindow(out, 8, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.MakeCurrent(w.Binding()); err != nil {
		t.Fatalf("MakeCurrent(window) = %v", err)
	}

	frame := image.NewRGBA(image.Rect(0, 0, 8, 8))
	frame.SetRGBA(1, 1, color.RGBA{R: 0xff, A: 0xff})
	if err := w.Present(frame); err != nil {
		t.Fatal(err)
	}
	if out.frames != 1 {
		t.Errorf("presenter frames = %d, want 1", out.frames)
	}
	if got := w.(*Window).LastFrame().RGBAAt(1, 1); got.R != 0xff {
		t.Errorf("last frame pixel = %v", got)
	}

	b.DestroyWindow(w)
	if err := b.MakeCurrent(w.Binding()); !errors.Is(err, host.ErrDestroyed) {
		t.Errorf("MakeCurrent(destroyed window) = %v", err)
	}
}

func TestWindowRejectsUnknownNative(t *testing.T) {
	b := newNoopBackend(t)
	if _, err := b.CreateWindow(42, 8, 8); !errors.Is(err, ErrForeignObject) {
		t.Errorf("CreateWindow(int) err = %v", err)
	}
}

func TestClosedBackend(t *testing.T) {
	b := newNoopBackend(t)
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if _, err := b.CreateSurface(nil, 4, 4); !errors.Is(err, ErrClosed) {
		t.Errorf("CreateSurface after Close: err = %v", err)
	}
}

func TestNewFromProviderRejectsPlainProvider(t *testing.T) {
	if _, err := NewFromProvider(nil, Config{}); !errors.Is(err, ErrBadProvider) {
		t.Errorf("err = %v, want ErrBadProvider", err)
	}
}
