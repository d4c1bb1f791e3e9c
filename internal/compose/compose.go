// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package compose implements the CPU side of presentation: fitting a color
// buffer into a window with rotation, hardware-composer style layer
// composition and screenshot packing.
package compose

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Rotation is a clockwise display rotation in degrees.
type Rotation int

// Supported rotations.
const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// Valid reports whether r is one of the four supported rotations.
func (r Rotation) Valid() bool {
	switch r {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return true
	}
	return false
}

// SwapsAxes reports whether r exchanges width and height.
func (r Rotation) SwapsAxes() bool {
	return r == Rotate90 || r == Rotate270
}

// Rotated returns the size of a w by h image after rotation.
func (r Rotation) Rotated(w, h int) (int, int) {
	if r.SwapsAxes() {
		return h, w
	}
	return w, h
}

func (r Rotation) String() string {
	return fmt.Sprintf("%d°", int(r))
}

// Options controls resampling.
type Options struct {
	// Interpolator defaults to draw.BiLinear.
	Interpolator draw.Interpolator
}

func (o *Options) interp() draw.Interpolator {
	if o == nil || o.Interpolator == nil {
		return draw.BiLinear
	}
	return o.Interpolator
}

// fitMatrix maps the source rectangle sr onto dr after a clockwise rotation.
func fitMatrix(sr, dr image.Rectangle, rot Rotation) f64.Aff3 {
	w, h := float64(sr.Dx()), float64(sr.Dy())
	rw, rh := rot.Rotated(sr.Dx(), sr.Dy())
	kx := float64(dr.Dx()) / float64(rw)
	ky := float64(dr.Dy()) / float64(rh)
	ox, oy := float64(dr.Min.X), float64(dr.Min.Y)
	sx, sy := float64(sr.Min.X), float64(sr.Min.Y)

	var m f64.Aff3
	switch rot {
	case Rotate90:
		// (x, y) -> (h - y, x)
		m = f64.Aff3{0, -kx, kx * h, ky, 0, 0}
	case Rotate180:
		m = f64.Aff3{-kx, 0, kx * w, 0, -ky, ky * h}
	case Rotate270:
		// (x, y) -> (y, w - x)
		m = f64.Aff3{0, kx, 0, -ky, 0, ky * w}
	default:
		m = f64.Aff3{kx, 0, 0, 0, ky, 0}
	}
	// Translate the source origin to zero first, the destination origin last.
	m[2] += ox - (m[0]*sx + m[1]*sy)
	m[5] += oy - (m[3]*sx + m[4]*sy)
	return m
}

// Fit draws src into the whole of dst, rotated clockwise by rot and scaled
// to fill. dst is cleared first.
func Fit(dst *image.RGBA, src image.Image, rot Rotation, opts *Options) {
	Clear(dst, color.RGBA{A: 0xff})
	FitRect(dst, dst.Bounds(), src, src.Bounds(), rot, opts)
}

// FitRect draws sr of src into dr of dst, rotated clockwise by rot.
func FitRect(dst *image.RGBA, dr image.Rectangle, src image.Image, sr image.Rectangle, rot Rotation, opts *Options) {
	if dr.Empty() || sr.Empty() {
		return
	}
	if rot == Rotate0 && dr.Size() == sr.Size() {
		draw.Copy(dst, dr.Min, src, sr, draw.Src, nil)
		return
	}
	opts.interp().Transform(dst, fitMatrix(sr, dr, rot), src, sr, draw.Src, nil)
}

// Clear fills dst with c.
func Clear(dst *image.RGBA, c color.RGBA) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// Viewport returns the window-space rectangle of a subwindow of w by h
// logical pixels at device pixel ratio dpr.
func Viewport(w, h int, dpr float32) image.Rectangle {
	if dpr <= 0 {
		dpr = 1
	}
	return image.Rect(0, 0, int(float32(w)*dpr), int(float32(h)*dpr))
}
