// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compose

import (
	"errors"
	"image"
)

// ErrChannels is returned for a channel count other than 3 or 4.
var ErrChannels = errors.New("compose: channel count must be 3 or 4")

// PackedSize returns the byte size of img packed with the given channels.
func PackedSize(r image.Rectangle, channels int) int {
	return r.Dx() * r.Dy() * channels
}

// Pack copies img into dst as tightly packed RGB or RGBA rows. n is the
// packed size. ok is false, and nothing is written, when dst is shorter.
func Pack(dst []byte, img *image.RGBA, channels int) (n int, ok bool, err error) {
	if channels != 3 && channels != 4 {
		return 0, false, ErrChannels
	}
	b := img.Bounds()
	need := PackedSize(b, channels)
	if len(dst) < need {
		return need, false, nil
	}
	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		out := dst[y*w*channels : (y+1)*w*channels]
		if channels == 4 {
			copy(out, row)
			continue
		}
		for x := 0; x < w; x++ {
			copy(out[x*3:x*3+3], row[x*4:x*4+3])
		}
	}
	return need, true, nil
}
