// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderhost

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/gogpu/renderhost/host"
	"github.com/gogpu/renderhost/internal/binding"
	"github.com/gogpu/renderhost/internal/compose"
	"github.com/gogpu/renderhost/internal/worker"
)

// Rotation is a clockwise rotation of the displayed frame.
type Rotation = compose.Rotation

// Rotations.
const (
	Rotate0   = compose.Rotate0
	Rotate90  = compose.Rotate90
	Rotate180 = compose.Rotate180
	Rotate270 = compose.Rotate270
)

// Layer composition types.
type (
	LayerMode      = compose.Mode
	LayerBlend     = compose.Blend
	LayerTransform = compose.Transform
	LayerCrop      = compose.Crop
)

// Layer modes, blends and transforms.
const (
	LayerDevice     = compose.ModeDevice
	LayerSolidColor = compose.ModeSolidColor

	BlendNone          = compose.BlendNone
	BlendPremultiplied = compose.BlendPremultiplied
	BlendCoverage      = compose.BlendCoverage

	TransformNone   = compose.TransformNone
	TransformFlipH  = compose.TransformFlipH
	TransformFlipV  = compose.TransformFlipV
	TransformRot90  = compose.TransformRot90
	TransformRot180 = compose.TransformRot180
	TransformRot270 = compose.TransformRot270
)

// ComposeLayer is one layer of a composition. ColorBuffer is the source of
// device layers; solid color layers use Color instead.
type ComposeLayer struct {
	ColorBuffer Handle
	Mode        LayerMode
	Color       color.RGBA
	Blend       LayerBlend
	Alpha       float32
	Transform   LayerTransform
	Frame       image.Rectangle
	Crop        LayerCrop
}

// ComposeDevice describes a composition into Target. Version 1 always
// posts the result. Version 2 posts only for display 0 and records Target
// as the color buffer of any other display.
type ComposeDevice struct {
	Version   int
	DisplayID uint32
	Target    Handle
	Layers    []ComposeLayer
}

// ScreenshotResult describes a screenshot. Size is the number of bytes the
// pixels need.
type ScreenshotResult struct {
	Width  int
	Height int
	Size   int
}

type postOp uint8

const (
	postOpPost postOp = iota
	postOpViewport
	postOpCompose
	postOpClear
	postOpScreenshot
	postOpResetSubWindow
)

type screenshotCmd struct {
	channels int
	width    int
	height   int
	rotation Rotation
	dst      []byte
	result   ScreenshotResult
	err      error
}

type composeCmd struct {
	target Handle
	layers []ComposeLayer
	err    error
}

type postCmd struct {
	op       postOp
	cb       Handle
	window   host.Window
	width    int
	height   int
	dpr      float32
	rotation Rotation
	shot     *screenshotCmd
	compose  *composeCmd
}

// presenter runs presentation commands on its own goroutine. The window
// stays bound from the first command until ResetSubWindow.
type presenter struct {
	fb    *FrameBuffer
	queue *worker.Queue[postCmd]
	opts  compose.Options

	// Owned by the worker goroutine.
	state    binding.State
	window   host.Window
	bound    bool
	viewport image.Rectangle
	rotation Rotation
	frame    *image.RGBA
}

func newPresenter(fb *FrameBuffer) *presenter {
	p := &presenter{fb: fb}
	p.queue = worker.New("post", 64, p.handle)
	return p
}

func (p *presenter) stop() {
	p.queue.Stop()
	if p.bound {
		p.fb.binder.Release(&p.state)
	}
}

func (p *presenter) handle(cmd postCmd) {
	switch cmd.op {
	case postOpPost:
		p.post(cmd.cb)
	case postOpViewport:
		p.setViewport(cmd)
	case postOpCompose:
		cmd.compose.err = p.compose(cmd.compose)
	case postOpClear:
		p.clear()
	case postOpScreenshot:
		p.screenshot(cmd.cb, cmd.shot)
	case postOpResetSubWindow:
		p.fb.binder.Release(&p.state)
		p.window = nil
		p.bound = false
		p.frame = nil
	}
}

// bind binds the window on first use.
func (p *presenter) bind() bool {
	if p.bound {
		return true
	}
	if p.window == nil {
		return false
	}
	if !p.fb.binder.BindWindow(&p.state, p.window) {
		return false
	}
	p.bound = true
	return true
}

func (p *presenter) target() *image.RGBA {
	w, h := p.window.Size()
	if p.frame == nil || p.frame.Rect.Dx() != w || p.frame.Rect.Dy() != h {
		p.frame = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return p.frame
}

func (p *presenter) post(cb Handle) {
	if !p.bind() {
		slogger().Warn("renderhost: no window to post to, dropping frame", "colorbuffer", cb)
		return
	}
	src, err := p.fb.colorBufferImage(cb)
	if err != nil {
		slogger().Warn("renderhost: post dropped", "colorbuffer", cb, "err", err)
		return
	}
	frame := p.target()
	vp := p.viewport
	if vp.Empty() {
		vp = frame.Rect
	}
	compose.Clear(frame, color.RGBA{A: 0xff})
	compose.FitRect(frame, vp.Intersect(frame.Rect), src, src.Rect, p.rotation, &p.opts)
	if err := p.window.Present(frame); err != nil {
		slogger().Warn("renderhost: present failed", "colorbuffer", cb, "err", err)
	}
}

// setViewport rebinds the window unconditionally and resizes the viewport.
func (p *presenter) setViewport(cmd postCmd) {
	p.fb.binder.Release(&p.state)
	p.bound = false
	p.window = cmd.window
	p.rotation = cmd.rotation
	p.viewport = compose.Viewport(cmd.width, cmd.height, cmd.dpr)
	if !p.bind() {
		slogger().Warn("renderhost: viewport bind failed", "width", cmd.width, "height", cmd.height)
	}
}

func (p *presenter) clear() {
	if !p.bind() {
		return
	}
	frame := p.target()
	compose.Clear(frame, color.RGBA{A: 0xff})
	if err := p.window.Present(frame); err != nil {
		slogger().Warn("renderhost: clear failed", "err", err)
	}
}

// compose draws the layers over the current contents of the target.
func (p *presenter) compose(c *composeCmd) error {
	dst, err := p.fb.colorBufferImage(c.target)
	if err != nil {
		return err
	}
	layers := make([]compose.Layer, 0, len(c.layers))
	for _, l := range c.layers {
		cl := compose.Layer{
			Mode:      l.Mode,
			Color:     l.Color,
			Blend:     l.Blend,
			Alpha:     l.Alpha,
			Transform: l.Transform,
			Frame:     l.Frame,
			Crop:      l.Crop,
		}
		if l.Mode == compose.ModeDevice {
			src, err := p.fb.colorBufferImage(l.ColorBuffer)
			if err != nil {
				slogger().Warn("renderhost: compose layer skipped", "colorbuffer", l.ColorBuffer, "err", err)
				continue
			}
			cl.Source = src
		}
		layers = append(layers, cl)
	}
	compose.Layers(dst, layers, &p.opts)
	return p.fb.storeColorBufferImage(c.target, dst)
}

func (p *presenter) screenshot(cb Handle, s *screenshotCmd) {
	src, err := p.fb.colorBufferImage(cb)
	if err != nil {
		s.err = err
		return
	}
	out := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	compose.Fit(out, src, s.rotation, &p.opts)
	n, ok, err := compose.Pack(s.dst, out, s.channels)
	switch {
	case err != nil:
		s.err = err
	case !ok:
		s.err = ErrBufferTooSmall
	}
	s.result.Size = n
}

// SetupSubWindow attaches a native window to present into. width and
// height are in logical pixels. A second call with an existing window only
// updates the viewport and rotation.
func (fb *FrameBuffer) SetupSubWindow(nativeWin any, x, y, width, height int, rot Rotation) error {
	if !fb.useSubWindow {
		return ErrNoSubWindow
	}
	if !rot.Valid() {
		return fmt.Errorf("renderhost: invalid rotation %d", int(rot))
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}

	fb.mu.Lock()
	win := fb.subWindow
	created := false
	if win == nil {
		vp := compose.Viewport(width, height, fb.dpr)
		w, err := fb.backend.CreateWindow(nativeWin, vp.Dx(), vp.Dy())
		if err != nil {
			fb.mu.Unlock()
			slogger().Error("renderhost: create subwindow failed", "err", err)
			return fmt.Errorf("%w: %w", ErrHostFailure, err)
		}
		fb.subWindow = w
		win = w
		created = true
	}
	fb.rotation = rot
	dpr := fb.dpr
	last := fb.lastPosted
	fb.mu.Unlock()

	slogger().Info("renderhost: subwindow set up",
		"x", x, "y", y, "width", width, "height", height, "rotation", rot, "created", created)
	err := fb.post.queue.SubmitWait(context.Background(), postCmd{
		op:       postOpViewport,
		window:   win,
		width:    width,
		height:   height,
		dpr:      dpr,
		rotation: rot,
	})
	if err != nil {
		return err
	}
	if last != 0 {
		return fb.Post(last)
	}
	return fb.post.queue.SubmitWait(context.Background(), postCmd{op: postOpClear})
}

// RemoveSubWindow detaches and destroys the subwindow.
func (fb *FrameBuffer) RemoveSubWindow() error {
	if !fb.useSubWindow {
		return ErrNoSubWindow
	}
	fb.mu.Lock()
	win := fb.subWindow
	fb.subWindow = nil
	fb.mu.Unlock()
	if win == nil {
		return nil
	}

	err := fb.post.queue.SubmitWait(context.Background(), postCmd{op: postOpResetSubWindow})
	fb.backend.DestroyWindow(win)
	slogger().Info("renderhost: subwindow removed")
	return err
}

// Post displays color buffer h and hands it to every registered post
// callback. It does not wait for the frame to reach the window.
func (fb *FrameBuffer) Post(h Handle) error {
	fb.mu.Lock()
	cb, err := fb.lookupColorBuffer(h)
	if err != nil {
		fb.mu.Unlock()
		return err
	}
	fb.lastPosted = h
	fb.markOpenedLocked(cb)
	cb.host.Touch()
	fb.countFrameLocked()
	hasWindow := fb.subWindow != nil
	targets := fb.readbackTargetsLocked(h)
	fb.mu.Unlock()

	if hasWindow {
		if err := fb.post.queue.Submit(postCmd{op: postOpPost, cb: h}); err != nil {
			slogger().Warn("renderhost: post dropped", "colorbuffer", h, "err", err)
		}
	}
	fb.readback.frames(targets)
	return nil
}

// Repost displays the last posted color buffer again.
func (fb *FrameBuffer) Repost() error {
	fb.mu.Lock()
	h := fb.lastPosted
	fb.mu.Unlock()
	if h == 0 {
		slogger().Debug("renderhost: nothing to repost")
		return nil
	}
	return fb.Post(h)
}

// LastPosted returns the last posted color buffer, or 0.
func (fb *FrameBuffer) LastPosted() Handle {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.lastPosted
}

// Compose draws dev's layers over dev.Target and posts it as dev
// describes. It waits for the composition but not for the post.
func (fb *FrameBuffer) Compose(dev *ComposeDevice) error {
	if dev.Version != 1 && dev.Version != 2 {
		return fmt.Errorf("%w: %d", ErrComposeVersion, dev.Version)
	}
	fb.mu.Lock()
	if _, err := fb.lookupColorBuffer(dev.Target); err != nil {
		fb.mu.Unlock()
		return err
	}
	if dev.Version == 2 && dev.DisplayID != 0 {
		fb.displays[dev.DisplayID] = dev.Target
	}
	fb.mu.Unlock()

	c := &composeCmd{target: dev.Target, layers: dev.Layers}
	if err := fb.post.queue.SubmitWait(context.Background(), postCmd{op: postOpCompose, compose: c}); err != nil {
		return err
	}
	if c.err != nil {
		return c.err
	}
	if dev.Version == 1 || dev.DisplayID == 0 {
		return fb.Post(dev.Target)
	}
	return nil
}

// Screenshot renders the last posted frame into dst as packed RGB or RGBA
// rows, scaled to width by height (0 for the native size) and rotated by
// rot. Rotations by 90 and 270 swap the output dimensions. When dst is too
// small nothing is written and the error is ErrBufferTooSmall; the result
// still carries the required size.
func (fb *FrameBuffer) Screenshot(channels, width, height int, rot Rotation, dst []byte) (ScreenshotResult, error) {
	if channels != 3 && channels != 4 {
		return ScreenshotResult{}, fmt.Errorf("%w: %d", ErrChannels, channels)
	}
	if !rot.Valid() {
		return ScreenshotResult{}, fmt.Errorf("renderhost: invalid rotation %d", int(rot))
	}
	fb.mu.Lock()
	h := fb.lastPosted
	var desc host.ColorBufferDesc
	if cb, ok := fb.colorBuffers[h]; ok {
		desc = cb.desc
	}
	fb.mu.Unlock()
	if h == 0 || desc.Handle == 0 {
		return ScreenshotResult{}, ErrNoFrame
	}

	if width == 0 || height == 0 {
		width, height = desc.Width, desc.Height
	}
	width, height = rot.Rotated(width, height)
	s := &screenshotCmd{
		channels: channels,
		width:    width,
		height:   height,
		rotation: rot,
		dst:      dst,
		result:   ScreenshotResult{Width: width, Height: height, Size: width * height * channels},
	}
	if len(dst) < s.result.Size {
		return s.result, ErrBufferTooSmall
	}
	if err := fb.post.queue.SubmitWait(context.Background(), postCmd{op: postOpScreenshot, cb: h, shot: s}); err != nil {
		return ScreenshotResult{}, err
	}
	return s.result, s.err
}

// ClearWindow blanks the subwindow.
func (fb *FrameBuffer) ClearWindow() error {
	fb.mu.Lock()
	has := fb.subWindow != nil
	fb.mu.Unlock()
	if !has {
		return ErrNoSubWindow
	}
	return fb.post.queue.SubmitWait(context.Background(), postCmd{op: postOpClear})
}

// SetDisplayColorBuffer records h as the color buffer shown on display id.
func (fb *FrameBuffer) SetDisplayColorBuffer(id uint32, h Handle) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if _, err := fb.lookupColorBuffer(h); err != nil {
		return err
	}
	fb.displays[id] = h
	return nil
}

// DisplayColorBuffer returns the color buffer shown on display id.
func (fb *FrameBuffer) DisplayColorBuffer(id uint32) (Handle, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	h, ok := fb.displays[id]
	return h, ok
}
