// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command fbhost drives a renderhost FrameBuffer the way a guest decoder
// would: it creates a context, a window surface and a color buffer, uploads
// a test pattern, posts it and saves a screenshot.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/renderhost"
	"github.com/gogpu/renderhost/backend/native"
	"github.com/gogpu/renderhost/host"
	"github.com/gogpu/renderhost/internal/egl"
)

func main() {
	var (
		width   = flag.Int("width", 640, "framebuffer width")
		height  = flag.Int("height", 480, "framebuffer height")
		output  = flag.String("output", "fbhost.png", "screenshot file")
		useNoop = flag.Bool("noop", false, "use the noop hal device instead of Vulkan")
		useEGL  = flag.Bool("egl", false, "offer the configs of the host EGL display")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		renderhost.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	cfg := native.DefaultConfig()
	var opts []renderhost.Option
	if *useEGL {
		d, err := egl.Open()
		if err != nil {
			log.Fatalf("egl: %v", err)
		}
		defer d.Close()
		cfg.Configs = d
		major, minor := d.Version()
		log.Printf("EGL %d.%d", major, minor)
	}

	b, closeDevice, err := openBackend(cfg, *useNoop)
	if err != nil {
		log.Fatalf("open backend: %v", err)
	}
	defer closeDevice()
	defer b.Close()

	opts = append(opts,
		renderhost.WithBackend(b),
		renderhost.WithSize(*width, *height),
		renderhost.WithSubWindow(true),
	)
	fb, err := renderhost.Initialize(opts...)
	if err != nil {
		log.Fatalf("initialize: %v", err)
	}
	defer fb.Finalize()

	if err := run(fb, *width, *height, *output); err != nil {
		log.Fatal(err)
	}
}

// openBackend opens the Vulkan device, or a noop device when useNoop is set.
// The returned func releases what the caller owns besides the backend.
func openBackend(cfg native.Config, useNoop bool) (*native.Backend, func(), error) {
	if !useNoop {
		b, err := native.Open(cfg)
		return b, func() {}, err
	}
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		return nil, nil, err
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, native.ErrNoGPU
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, err
	}
	closeDevice := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	b, err := native.New(openDev.Device, openDev.Queue, cfg)
	if err != nil {
		closeDevice()
		return nil, nil, err
	}
	return b, closeDevice, nil
}

// window counts the frames presented into the subwindow.
type window struct {
	frames int
}

func (w *window) Present(*image.RGBA) error {
	w.frames++
	return nil
}

func run(fb *renderhost.FrameBuffer, width, height int, output string) error {
	rt := renderhost.NewRenderThread(1)
	defer fb.CleanupProcessObjects(rt.PUID())

	ctx, err := fb.CreateRenderContext(rt, 0, 0, host.APIVersionES3)
	if err != nil {
		return err
	}
	surf, err := fb.CreateWindowSurface(rt, 0, width, height)
	if err != nil {
		return err
	}
	cb, err := fb.CreateColorBuffer(rt, width, height, host.FormatRGBA, host.FrameworkGL)
	if err != nil {
		return err
	}
	if err := fb.SetWindowSurfaceColorBuffer(rt, surf, cb); err != nil {
		return err
	}
	if err := fb.BindContext(rt, ctx, surf, surf); err != nil {
		return err
	}
	if err := fb.ReplaceColorBufferContents(rt, cb, pattern(width, height)); err != nil {
		return err
	}

	win := &window{}
	if err := fb.SetupSubWindow(win, 0, 0, width, height, renderhost.Rotate0); err != nil {
		return err
	}
	if err := fb.Post(cb); err != nil {
		return err
	}

	shot := image.NewRGBA(image.Rect(0, 0, width, height))
	if _, err := fb.Screenshot(4, width, height, renderhost.Rotate0, shot.Pix); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	if err := fb.BindContext(rt, 0, 0, 0); err != nil {
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := png.Encode(f, shot); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	st := fb.Stats()
	log.Printf("saved %s: %d contexts, %d surfaces, %d color buffers, %d frames presented",
		output, st.Contexts, st.WindowSurfaces, st.ColorBuffers, win.frames)
	return nil
}

// pattern returns an RGBA gradient with a checkerboard overlay.
func pattern(width, height int) []byte {
	pix := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 4
			pix[i] = uint8(x * 255 / width)
			pix[i+1] = uint8(y * 255 / height)
			pix[i+2] = 0x80
			if (x/32+y/32)%2 == 0 {
				pix[i+2] = 0xff
			}
			pix[i+3] = 0xff
		}
	}
	return pix
}
