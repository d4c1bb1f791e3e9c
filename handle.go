// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderhost

import "fmt"

// Handle names a guest-visible object. Zero means none.
type Handle uint32

func (h Handle) String() string {
	return fmt.Sprintf("%#x", uint32(h))
}

func toHandles(hs []uint32) []Handle {
	if hs == nil {
		return nil
	}
	out := make([]Handle, len(hs))
	for i, h := range hs {
		out[i] = Handle(h)
	}
	return out
}

func fromHandles(hs []Handle) []uint32 {
	out := make([]uint32, len(hs))
	for i, h := range hs {
		out[i] = uint32(h)
	}
	return out
}
