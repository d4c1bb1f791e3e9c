// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderhost

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/renderhost/config"
	"github.com/gogpu/renderhost/host"
	"github.com/gogpu/renderhost/internal/binding"
	"github.com/gogpu/renderhost/internal/delayed"
	"github.com/gogpu/renderhost/internal/handle"
	"github.com/gogpu/renderhost/internal/ownership"
)

type renderContext struct {
	handle  Handle
	config  int
	version host.APIVersion
	share   Handle
	host    host.Context
}

type windowSurface struct {
	handle Handle
	config int
	width  int
	height int
	host   host.Surface

	// cb is the bound color buffer, 0 if none. The binding holds one
	// reference of the buffer.
	cb Handle
}

type colorBuffer struct {
	desc     host.ColorBufferDesc
	host     host.ColorBuffer
	refCount int
	opened   bool

	// closedAt is when refCount last reached zero. Zero while referenced.
	closedAt time.Time
}

func (c *colorBuffer) handle() Handle { return Handle(c.desc.Handle) }

type clientImage struct {
	handle Handle
	ctx    Handle
	target uint32
	buffer uint32
	host   host.Image
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Contexts       int
	WindowSurfaces int
	ColorBuffers   int
	Images         int
	PendingCloses  int
	Frames         uint32
}

// FrameBuffer owns every host object created on behalf of the guest and
// maps guest handles to them. There is normally one per process, see
// Initialize and Default.
//
// All methods are safe for concurrent use. A single lock serializes every
// registry mutation, host calls included.
type FrameBuffer struct {
	opts    options
	backend host.Backend
	catalog *config.Catalog
	binder  *binding.Coordinator

	mu           sync.Mutex
	handles      handle.Allocator
	contexts     map[Handle]*renderContext
	windows      map[Handle]*windowSurface
	colorBuffers map[Handle]*colorBuffer
	images       map[Handle]*clientImage
	owners       *ownership.Tracker
	delayed      delayed.Queue
	internal     binding.State
	lastPosted   Handle
	displays     map[uint32]Handle
	shuttingDown bool

	// outstanding carries refcount-pipe releases to the next sweep.
	outstanding chan Handle

	width        int
	height       int
	dpr          float32
	useSubWindow bool
	subWindow    host.Window
	rotation     Rotation

	fpsStats    bool
	statsFrames uint32
	statsStart  time.Time

	post     *presenter
	readback *readbacker

	finalize sync.Once
}

// New creates a FrameBuffer. WithBackend is required.
func New(opts ...Option) (*FrameBuffer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.backend == nil {
		return nil, ErrNoBackend
	}
	if o.width <= 0 || o.height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, o.width, o.height)
	}

	src := o.configSource
	if src == nil {
		src = o.backend.ConfigSource()
	}
	catalog, err := config.New(src, o.configOpts)
	if err != nil {
		return nil, fmt.Errorf("renderhost: config catalog: %w", err)
	}

	fb := &FrameBuffer{
		opts:         o,
		backend:      o.backend,
		catalog:      catalog,
		binder:       binding.New(o.backend, slogger),
		contexts:     make(map[Handle]*renderContext),
		windows:      make(map[Handle]*windowSurface),
		colorBuffers: make(map[Handle]*colorBuffer),
		images:       make(map[Handle]*clientImage),
		owners:       ownership.NewTracker(),
		displays:     make(map[uint32]Handle),
		outstanding:  make(chan Handle, o.outstanding),
		width:        o.width,
		height:       o.height,
		dpr:          o.dpr,
		useSubWindow: o.useSubWindow,
		fpsStats:     o.fpsStats,
	}
	fb.post = newPresenter(fb)
	fb.readback = newReadbacker(fb)

	propagateLogger(o.backend)
	info := o.backend.Info()
	slogger().Info("renderhost: initialized",
		"width", fb.width, "height", fb.height,
		"configs", catalog.Len(), "renderer", info.Renderer,
		"subwindow", fb.useSubWindow)
	return fb, nil
}

var (
	defaultMu    sync.Mutex
	defaultFB    *FrameBuffer
	defaultReady = make(chan struct{})
)

// Initialize creates the process-wide FrameBuffer returned by Default.
func Initialize(opts ...Option) (*FrameBuffer, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultFB != nil {
		return nil, ErrAlreadyInitialized
	}
	fb, err := New(opts...)
	if err != nil {
		return nil, err
	}
	defaultFB = fb
	close(defaultReady)
	return fb, nil
}

// Default returns the FrameBuffer created by Initialize.
func Default() (*FrameBuffer, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultFB == nil {
		return nil, ErrNotInitialized
	}
	return defaultFB, nil
}

// WaitUntilInitialized blocks until Initialize succeeds or ctx is done.
func WaitUntilInitialized(ctx context.Context) (*FrameBuffer, error) {
	defaultMu.Lock()
	ready := defaultReady
	defaultMu.Unlock()
	select {
	case <-ready:
		return Default()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func clearDefault(fb *FrameBuffer) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultFB == fb {
		defaultFB = nil
		defaultReady = make(chan struct{})
	}
}

// SetShuttingDown marks the registry as shutting down. Process and thread
// cleanup become no-ops afterwards, since the host is about to tear
// everything down anyway.
func (fb *FrameBuffer) SetShuttingDown() {
	fb.mu.Lock()
	fb.shuttingDown = true
	fb.mu.Unlock()
}

// ShuttingDown reports whether SetShuttingDown was called.
func (fb *FrameBuffer) ShuttingDown() bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.shuttingDown
}

// Finalize stops both workers and destroys every host object. The backend
// itself is left open. Finalize is idempotent.
func (fb *FrameBuffer) Finalize() {
	fb.finalize.Do(func() {
		fb.SetShuttingDown()
		fb.post.stop()
		fb.readback.stop()

		fb.mu.Lock()
		fb.sweepLocked()
		fb.destroyAllLocked()
		fb.owners.TakeAllCallbacks()
		win := fb.subWindow
		fb.subWindow = nil
		fb.mu.Unlock()

		if win != nil {
			fb.backend.DestroyWindow(win)
		}
		fb.binder.Release(&fb.internal)
		forgetLogger(fb.backend)
		clearDefault(fb)
		slogger().Info("renderhost: finalized")
	})
}

// destroyAllLocked destroys every object regardless of references.
func (fb *FrameBuffer) destroyAllLocked() {
	for h, img := range fb.images {
		if err := fb.backend.DestroyImage(img.host); err != nil {
			slogger().Warn("renderhost: destroy image failed", "handle", h, "err", err)
		}
	}
	for _, w := range fb.windows {
		fb.backend.DestroySurface(w.host)
	}
	for _, c := range fb.contexts {
		fb.backend.DestroyContext(c.host)
	}
	for _, cb := range fb.colorBuffers {
		fb.backend.DestroyColorBuffer(cb.host)
	}
	clear(fb.images)
	clear(fb.windows)
	clear(fb.contexts)
	clear(fb.colorBuffers)
	clear(fb.displays)
	fb.delayed.Clear()
	fb.lastPosted = 0
}

// inUse reports whether h names a live object of any kind.
func (fb *FrameBuffer) inUse(h uint32) bool {
	k := Handle(h)
	if _, ok := fb.contexts[k]; ok {
		return true
	}
	if _, ok := fb.windows[k]; ok {
		return true
	}
	if _, ok := fb.colorBuffers[k]; ok {
		return true
	}
	_, ok := fb.images[k]
	return ok
}

func (fb *FrameBuffer) allocLocked() Handle {
	h := Handle(fb.handles.Next(fb.inUse))
	slogger().Debug("renderhost: allocated handle", "handle", h)
	return h
}

func (fb *FrameBuffer) now() time.Time {
	return fb.opts.clock()
}

// stateOf returns the binding state internal work on behalf of rt uses.
func (fb *FrameBuffer) stateOf(rt *RenderThread) *binding.State {
	if rt == nil {
		return &fb.internal
	}
	return &rt.state
}

func ownerOf(rt *RenderThread) ownership.Owner {
	if rt == nil {
		return ownership.Owner{}
	}
	return rt.owner()
}

// Configs returns the config catalog.
func (fb *FrameBuffer) Configs() *config.Catalog {
	return fb.catalog
}

// ChooseConfig returns the local index of the config best matching a
// reference attribute vector, or -1.
func (fb *FrameBuffer) ChooseConfig(attribs []int32) int {
	return fb.catalog.ChooseConfig(attribs)
}

// MatchedConfig returns the 1-based local id matched to a reference config
// id, or -1.
func (fb *FrameBuffer) MatchedConfig(referenceID int32) int32 {
	return fb.catalog.MatchedConfig(referenceID)
}

// Strings returns the vendor, renderer, version and extension strings of
// the host.
func (fb *FrameBuffer) Strings() host.Info {
	return fb.backend.Info()
}

// Width returns the framebuffer width in pixels.
func (fb *FrameBuffer) Width() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.width
}

// Height returns the framebuffer height in pixels.
func (fb *FrameBuffer) Height() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.height
}

// Stats returns live object counts.
func (fb *FrameBuffer) Stats() Stats {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return Stats{
		Contexts:       len(fb.contexts),
		WindowSurfaces: len(fb.windows),
		ColorBuffers:   len(fb.colorBuffers),
		Images:         len(fb.images),
		PendingCloses:  fb.delayed.Pending(),
		Frames:         fb.statsFrames,
	}
}

// countFrameLocked updates the posted-frame statistics.
func (fb *FrameBuffer) countFrameLocked() {
	if !fb.fpsStats {
		return
	}
	now := fb.now()
	if fb.statsStart.IsZero() {
		fb.statsStart = now
	}
	fb.statsFrames++
	if d := now.Sub(fb.statsStart); d >= time.Second {
		slogger().Info("renderhost: fps", "fps", float64(fb.statsFrames)/d.Seconds())
		fb.statsStart = now
		fb.statsFrames = 0
	}
}
