// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compose

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Mode selects what a layer draws.
type Mode uint8

// Layer modes.
const (
	ModeDevice Mode = iota + 1
	ModeSolidColor
)

// Blend is the blending of a layer with what is below it.
type Blend uint8

// Blend modes.
const (
	BlendNone          Blend = 1
	BlendPremultiplied Blend = 2
	BlendCoverage      Blend = 3
)

// Transform is a composer transform bit set. Flips apply before rotation.
type Transform uint8

// Transform bits and their combinations.
const (
	TransformNone   Transform = 0
	TransformFlipH  Transform = 1
	TransformFlipV  Transform = 2
	TransformRot90  Transform = 4
	TransformRot180 Transform = TransformFlipH | TransformFlipV
	TransformRot270 Transform = TransformFlipH | TransformFlipV | TransformRot90
)

// Crop is a source crop in buffer pixels.
type Crop struct {
	Left, Top, Right, Bottom float32
}

// Empty reports whether the crop selects no pixels.
func (c Crop) Empty() bool {
	return c.Right <= c.Left || c.Bottom <= c.Top
}

// Layer is one composer layer.
type Layer struct {
	Mode Mode

	// Source holds the color buffer pixels for ModeDevice layers.
	Source *image.RGBA

	// Color fills the frame for ModeSolidColor layers.
	Color color.RGBA

	Blend     Blend
	Alpha     float32
	Transform Transform
	Frame     image.Rectangle
	Crop      Crop
}

// mul returns the affine map that applies b, then a.
func mul(a, b f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		a[0]*b[0] + a[1]*b[3], a[0]*b[1] + a[1]*b[4], a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3], a[3]*b[1] + a[4]*b[4], a[3]*b[2] + a[4]*b[5] + a[5],
	}
}

// layerMatrix maps crop space onto the frame through the unit square.
func layerMatrix(c Crop, t Transform, frame image.Rectangle) f64.Aff3 {
	cw, ch := float64(c.Right-c.Left), float64(c.Bottom-c.Top)
	m := f64.Aff3{1 / cw, 0, -float64(c.Left) / cw, 0, 1 / ch, -float64(c.Top) / ch}
	if t&TransformFlipH != 0 {
		m = mul(f64.Aff3{-1, 0, 1, 0, 1, 0}, m)
	}
	if t&TransformFlipV != 0 {
		m = mul(f64.Aff3{1, 0, 0, 0, -1, 1}, m)
	}
	if t&TransformRot90 != 0 {
		// (u, v) -> (1 - v, u)
		m = mul(f64.Aff3{0, -1, 1, 1, 0, 0}, m)
	}
	fw, fh := float64(frame.Dx()), float64(frame.Dy())
	return mul(f64.Aff3{fw, 0, float64(frame.Min.X), 0, fh, float64(frame.Min.Y)}, m)
}

func alphaMask(a float32) image.Image {
	if a >= 1 {
		return nil
	}
	if a < 0 {
		a = 0
	}
	return image.NewUniform(color.Alpha16{A: uint16(a * 0xffff)})
}

func (l *Layer) op() draw.Op {
	if l.Blend == BlendNone {
		return draw.Src
	}
	return draw.Over
}

// Layers composes layers onto dst bottom to top. Layers with an empty frame
// or crop are skipped.
func Layers(dst *image.RGBA, layers []Layer, opts *Options) {
	for i := range layers {
		l := &layers[i]
		frame := l.Frame.Intersect(dst.Bounds())
		if frame.Empty() {
			continue
		}
		mask := alphaMask(l.Alpha)
		switch l.Mode {
		case ModeSolidColor:
			if mask == nil {
				draw.Draw(dst, frame, image.NewUniform(l.Color), image.Point{}, l.op())
			} else {
				draw.DrawMask(dst, frame, image.NewUniform(l.Color), image.Point{}, mask, image.Point{}, l.op())
			}
		case ModeDevice:
			if l.Source == nil || l.Crop.Empty() {
				continue
			}
			var src image.Image = l.Source
			if l.Blend == BlendCoverage {
				// Coverage layers carry straight alpha.
				src = &image.NRGBA{Pix: l.Source.Pix, Stride: l.Source.Stride, Rect: l.Source.Rect}
			}
			sr := image.Rect(int(l.Crop.Left), int(l.Crop.Top), int(l.Crop.Right+0.5), int(l.Crop.Bottom+0.5)).Intersect(l.Source.Bounds())
			var dopts *draw.Options
			if mask != nil {
				dopts = &draw.Options{DstMask: mask}
			}
			opts.interp().Transform(dst, layerMatrix(l.Crop, l.Transform, l.Frame), src, sr, l.op(), dopts)
		}
	}
}
