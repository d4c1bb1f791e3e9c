// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package native implements host.Backend on gogpu/wgpu/hal.
//
// Color buffers and window surfaces are RGBA8 textures. Pixel reads go
// through a staging buffer and a fence; writes use Queue.WriteTexture.
// Contexts carry no GPU state of their own: hal has no notion of a current
// context, so MakeCurrent only validates the binding.
//
// Windows are offscreen textures. A window created with a Presenter also
// receives every presented frame.
package native
