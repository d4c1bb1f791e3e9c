// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !(linux || freebsd)

package egl

import "github.com/gogpu/renderhost/config"

// Load reports ErrUnsupported outside Linux and FreeBSD.
func Load() error { return ErrUnsupported }

// Display is unavailable on this platform.
type Display struct{}

// Open reports ErrUnsupported.
func Open() (*Display, error) { return nil, ErrUnsupported }

func (*Display) Version() (major, minor int32) { return 0, 0 }
func (*Display) QueryString(int32) string      { return "" }
func (*Display) Close() error                  { return nil }

func (*Display) Configs() ([]config.HostConfig, error) {
	return nil, ErrUnsupported
}

func (*Display) Attrib(config.HostConfig, config.Attrib) (int32, error) {
	return 0, ErrUnsupported
}

func (*Display) Choose([]int32, int) ([]config.HostConfig, error) {
	return nil, ErrUnsupported
}
