// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package renderhost is the resource registry of a GPU virtualization
// host. It owns the objects a guest renders with (render contexts, window
// surfaces, color buffers and client images) on behalf of many guest render
// threads and processes.
//
// # Overview
//
// A FrameBuffer owns every host object and hands out 32-bit handles. One
// handle namespace covers all object kinds, and 0 always means "none".
// Guest calls arrive already decoded, each on the RenderThread that
// represents the calling decoder thread:
//
//	fb, err := renderhost.New(renderhost.WithBackend(backend))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer fb.Finalize()
//
//	rt := renderhost.NewRenderThread(puid)
//	ctx, _ := fb.CreateRenderContext(rt, 0, 0, host.APIVersionES3)
//	surf, _ := fb.CreateWindowSurface(rt, 0, 640, 480)
//	cb, _ := fb.CreateColorBuffer(rt, 640, 480, host.FormatRGBA, host.FrameworkGL)
//	_ = fb.SetWindowSurfaceColorBuffer(rt, surf, cb)
//	_ = fb.BindContext(rt, ctx, surf, surf)
//
// # Color buffer lifetime
//
// Color buffers are reference counted. A buffer whose count drops to zero
// is kept for a grace period (one second by default) and destroyed by the
// next sweep unless it is reopened first. Process cleanup and snapshot load
// close buffers immediately.
//
// # Ownership
//
// Objects created on a RenderThread with a process id are recorded against
// that process, and CleanupProcessObjects releases all of them when the
// guest process dies. Threads without a process id fall back to per-thread
// ownership, released by DrainThread.
//
// # Presentation
//
// Posting, composition and screenshots run on a dedicated presentation
// goroutine; frame readback for post callbacks runs on a second one. Post
// returns without waiting; every other presentation call waits for the
// worker.
//
// # Logging
//
// renderhost logs through log/slog and is silent by default. See SetLogger.
package renderhost
