// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderhost

import (
	"github.com/gogpu/renderhost/internal/binding"
	"github.com/gogpu/renderhost/internal/ownership"
)

// OwnershipMode says where a thread's objects are recorded.
type OwnershipMode = ownership.Mode

// Ownership modes.
const (
	PerProcess = ownership.PerProcess
	PerThread  = ownership.PerThread
)

// RenderThread is the execution context of one guest render thread. A
// decoder creates one per connection and passes it to every FrameBuffer
// call made on behalf of that connection. It must not be used from more
// than one goroutine at a time.
type RenderThread struct {
	puid    uint64
	objects *ownership.ThreadObjects
	state   binding.State

	ctx, draw, read Handle
}

// NewRenderThread returns the context of a thread serving guest process
// puid. A zero puid selects per-thread ownership.
func NewRenderThread(puid uint64) *RenderThread {
	return &RenderThread{puid: puid, objects: ownership.NewThreadObjects()}
}

// PUID returns the guest process id, or 0.
func (rt *RenderThread) PUID() uint64 { return rt.puid }

// SetPUID sets the guest process id once the guest announces it.
func (rt *RenderThread) SetPUID(puid uint64) { rt.puid = puid }

// Current returns the context and surfaces last bound with BindContext.
func (rt *RenderThread) Current() (ctx, draw, read Handle) {
	return rt.ctx, rt.draw, rt.read
}

// Mode reports how objects created on this thread are owned.
func (rt *RenderThread) Mode() OwnershipMode {
	return rt.owner().Mode()
}

func (rt *RenderThread) owner() ownership.Owner {
	return ownership.Owner{PUID: rt.puid, Thread: rt.objects}
}
