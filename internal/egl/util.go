// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package egl

import "github.com/gogpu/renderhost/config"

// terminate returns attribs ending in a single None. Pairs after the first
// None are dropped.
func terminate(attribs []int32) []int32 {
	out := make([]int32, 0, len(attribs)+1)
	for i := 0; i+1 < len(attribs); i += 2 {
		if attribs[i] == int32(config.None) {
			break
		}
		out = append(out, attribs[i], attribs[i+1])
	}
	return append(out, int32(config.None))
}

func toHostConfigs(raw []uintptr) []config.HostConfig {
	out := make([]config.HostConfig, len(raw))
	for i, c := range raw {
		out[i] = config.HostConfig(c)
	}
	return out
}
