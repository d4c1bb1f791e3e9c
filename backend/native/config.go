// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/renderhost/config"
)

// Config holds backend settings.
type Config struct {
	// Backend selects the hal backend Open initializes.
	// Default: gputypes.BackendVulkan.
	Backend gputypes.Backend

	// LabelPrefix prefixes the debug label of every GPU object.
	// Default: "renderhost".
	LabelPrefix string

	// WaitTimeout bounds a single fence wait.
	// Default: 5s.
	WaitTimeout time.Duration

	// Configs is the config source offered to the registry. hal exposes no
	// EGL configs, so the default is the reference table.
	Configs config.Source

	// RendererName overrides the renderer string reported by Info.
	RendererName string
}

// DefaultConfig returns the default backend configuration.
func DefaultConfig() Config {
	return Config{
		Backend:     gputypes.BackendVulkan,
		LabelPrefix: "renderhost",
		WaitTimeout: 5 * time.Second,
		Configs:     config.ReferenceSource(),
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	var zero gputypes.Backend
	if c.Backend == zero {
		c.Backend = d.Backend
	}
	if c.LabelPrefix == "" {
		c.LabelPrefix = d.LabelPrefix
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = d.WaitTimeout
	}
	if c.Configs == nil {
		c.Configs = d.Configs
	}
	return c
}
