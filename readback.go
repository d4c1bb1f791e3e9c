// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderhost

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/renderhost/internal/binding"
	"github.com/gogpu/renderhost/internal/worker"
)

// PostCallback receives every frame posted for a display. frame belongs to
// the callback until it returns.
type PostCallback func(displayID uint32, frame *image.RGBA)

type readbackOp uint8

const (
	readbackOpAddDisplay readbackOp = iota
	readbackOpDelDisplay
	readbackOpReadback
	readbackOpGetPixels
)

type readbackCmd struct {
	op      readbackOp
	display uint32
	cb      Handle
	fn      PostCallback
	dst     []byte
	n       int
	err     error
}

type recording struct {
	fn   PostCallback
	last *image.RGBA
}

// readbacker copies posted frames out of color buffers for post callbacks.
// With async readback the copies run on its own goroutine.
type readbacker struct {
	fb    *FrameBuffer
	queue *worker.Queue[*readbackCmd]

	mu       sync.Mutex
	displays map[uint32]*recording

	// Owned by the worker goroutine.
	state  binding.State
	inited bool
}

func newReadbacker(fb *FrameBuffer) *readbacker {
	r := &readbacker{fb: fb, displays: make(map[uint32]*recording)}
	r.queue = worker.New("readback", 64, r.handle)
	return r
}

func (r *readbacker) stop() {
	r.queue.Stop()
	if r.inited {
		r.fb.binder.Release(&r.state)
	}
}

func (r *readbacker) handle(cmd *readbackCmd) {
	if !r.inited {
		r.fb.binder.Bind(&r.state)
		r.inited = true
	}
	switch cmd.op {
	case readbackOpAddDisplay:
		r.mu.Lock()
		if _, ok := r.displays[cmd.display]; ok {
			cmd.err = fmt.Errorf("%w: %d", ErrDisplayInUse, cmd.display)
		} else {
			r.displays[cmd.display] = &recording{fn: cmd.fn}
		}
		r.mu.Unlock()
	case readbackOpDelDisplay:
		r.mu.Lock()
		if _, ok := r.displays[cmd.display]; ok {
			delete(r.displays, cmd.display)
		} else {
			cmd.err = fmt.Errorf("%w: %d", ErrUnknownDisplay, cmd.display)
		}
		r.mu.Unlock()
	case readbackOpReadback:
		r.readback(cmd.display, cmd.cb)
	case readbackOpGetPixels:
		cmd.n, cmd.err = r.pixels(cmd.display, cmd.dst)
	}
}

// readback copies cb into the display's frame and runs its callback.
func (r *readbacker) readback(display uint32, cb Handle) {
	img, err := r.fb.colorBufferImage(cb)
	if err != nil {
		slogger().Warn("renderhost: readback failed", "display", display, "colorbuffer", cb, "err", err)
		return
	}
	r.mu.Lock()
	rec, ok := r.displays[display]
	if ok {
		rec.last = img
	}
	r.mu.Unlock()
	if ok && rec.fn != nil {
		rec.fn(display, img)
	}
}

func (r *readbacker) pixels(display uint32, dst []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.displays[display]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownDisplay, display)
	}
	if rec.last == nil {
		return 0, ErrNoFrame
	}
	if len(dst) < len(rec.last.Pix) {
		return len(rec.last.Pix), ErrBufferTooSmall
	}
	return copy(dst, rec.last.Pix), nil
}

// readbackTarget pairs a recording display with the buffer it shows.
type readbackTarget struct {
	display uint32
	cb      Handle
}

// readbackTargetsLocked returns what a post of h reads back: h itself for
// display 0 and the current buffer of every other recording display.
func (fb *FrameBuffer) readbackTargetsLocked(h Handle) []readbackTarget {
	r := fb.readback
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []readbackTarget
	for id := range r.displays {
		if id == 0 {
			out = append(out, readbackTarget{display: 0, cb: h})
			continue
		}
		cb, ok := fb.displays[id]
		if !ok {
			slogger().Warn("renderhost: recording display has no color buffer", "display", id)
			continue
		}
		out = append(out, readbackTarget{display: id, cb: cb})
	}
	return out
}

// frames reads back every target, on the worker when async.
func (r *readbacker) frames(targets []readbackTarget) {
	for _, t := range targets {
		if !r.fb.opts.asyncRead {
			r.readback(t.display, t.cb)
			continue
		}
		if err := r.queue.Submit(&readbackCmd{op: readbackOpReadback, display: t.display, cb: t.cb}); err != nil {
			slogger().Warn("renderhost: readback dropped", "display", t.display, "err", err)
		}
	}
}

// SetPostCallback registers fn to receive every frame posted to display id.
// Display 0 receives the posted buffer itself; other displays receive the
// buffer set with SetDisplayColorBuffer.
func (fb *FrameBuffer) SetPostCallback(id uint32, fn PostCallback) error {
	if fn == nil {
		return fmt.Errorf("renderhost: nil post callback")
	}
	cmd := &readbackCmd{op: readbackOpAddDisplay, display: id, fn: fn}
	if err := fb.readback.queue.SubmitWait(context.Background(), cmd); err != nil {
		return err
	}
	return cmd.err
}

// ClearPostCallback stops delivering frames of display id.
func (fb *FrameBuffer) ClearPostCallback(id uint32) error {
	cmd := &readbackCmd{op: readbackOpDelDisplay, display: id}
	if err := fb.readback.queue.SubmitWait(context.Background(), cmd); err != nil {
		return err
	}
	return cmd.err
}

// GetPixels copies the last frame read back for display id into dst as
// RGBA8 rows and returns the number of bytes written. When dst is too
// small the count is the size needed.
func (fb *FrameBuffer) GetPixels(id uint32, dst []byte) (int, error) {
	cmd := &readbackCmd{op: readbackOpGetPixels, display: id, dst: dst}
	if err := fb.readback.queue.SubmitWait(context.Background(), cmd); err != nil {
		return 0, err
	}
	return cmd.n, cmd.err
}
