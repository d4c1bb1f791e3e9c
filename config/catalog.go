// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package config enumerates host framebuffer configs, exposes them to the
// guest under stable indices and matches guest requests against them.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by New.
var (
	// ErrNoConfigs is returned when the host offers no compatible config.
	ErrNoConfigs = errors.New("config: no compatible host configs")

	// ErrReferenceMatch is returned in strict mode when a reference config
	// has no local equivalent.
	ErrReferenceMatch = errors.New("config: reference config has no match")
)

// Options tunes matching.
type Options struct {
	// IgnoreSamples treats SAMPLES and SAMPLE_BUFFERS as wildcards. Set it
	// on hosts where multisampled configs never support pbuffers.
	IgnoreSamples bool

	// Strict makes New fail when any reference config is unmatched.
	Strict bool
}

// Config is an immutable host config with its attribute vector.
type Config struct {
	host   HostConfig
	values [NumAttributes]int32
}

// HostConfig returns the underlying host config.
func (c *Config) HostConfig() HostConfig { return c.host }

// ID returns the host CONFIG_ID.
func (c *Config) ID() int32 { return c.values[4] }

// Value returns the value of a, or 0 when a is not in the vector.
func (c *Config) Value(a Attrib) int32 {
	if i := a.Index(); i >= 0 {
		return c.values[i]
	}
	return 0
}

// Values returns the attribute vector in Attributes order.
func (c *Config) Values() [NumAttributes]int32 { return c.values }

// String formats the config as "id:v0,v1,...".
func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:", c.ID())
	for _, v := range c.values {
		fmt.Fprintf(&b, "%d,", v)
	}
	return b.String()
}

// Catalog is the list of host configs usable for guest surfaces.
// It is immutable after New and safe for concurrent use.
type Catalog struct {
	src       Source
	opts      Options
	configs   []*Config
	hostCount int

	// matched maps reference config row to local index, -1 when unmatched.
	matched []int
}

// New enumerates src, keeps the compatible configs and matches the
// reference device table against them.
func New(src Source, opts Options) (*Catalog, error) {
	hosts, err := src.Configs()
	if err != nil {
		return nil, fmt.Errorf("config: enumerate host configs: %w", err)
	}
	c := &Catalog{src: src, opts: opts, hostCount: len(hosts)}
	for _, h := range hosts {
		if !c.compatible(h) {
			continue
		}
		cfg := &Config{host: h}
		for i, a := range Attributes {
			v, err := src.Attrib(h, a)
			if err != nil {
				v = 0
			}
			// Guest window surfaces are backed by host pbuffers.
			if a == SurfaceType {
				v |= WindowBit
			}
			cfg.values[i] = v
		}
		c.configs = append(c.configs, cfg)
	}
	slogger().Info("config: host configs enumerated", "host", len(hosts), "usable", len(c.configs))
	if len(c.configs) == 0 {
		return nil, ErrNoConfigs
	}
	if err := c.matchReference(); err != nil {
		return nil, err
	}
	return c, nil
}

// compatible reports whether h supports pbuffers and has RGB channels.
func (c *Catalog) compatible(h HostConfig) bool {
	st, err := c.src.Attrib(h, SurfaceType)
	if err != nil || st&PbufferBit == 0 {
		return false
	}
	for _, a := range [...]Attrib{RedSize, GreenSize, BlueSize} {
		v, err := c.src.Attrib(h, a)
		if err != nil || v == 0 {
			return false
		}
	}
	return true
}

func (c *Catalog) matchReference() error {
	c.matched = make([]int, len(ReferenceConfigs))
	var b strings.Builder
	b.WriteString("reference,local,configID;")
	for i := range ReferenceConfigs {
		idx := c.ChooseConfig(ReferenceConfigs[i][:])
		c.matched[i] = idx
		if idx < 0 {
			slogger().Error("config: reference config unmatched", "reference", i)
			if c.opts.Strict {
				return fmt.Errorf("%w: row %d", ErrReferenceMatch, i)
			}
			continue
		}
		fmt.Fprintf(&b, "%d,%d,%d;", i, idx, c.configs[idx].ID())
	}
	slogger().Info("config: reference configs matched", "table", b.String())
	return nil
}

// Len returns the number of usable configs.
func (c *Catalog) Len() int { return len(c.configs) }

// Get returns the config at local index i.
func (c *Catalog) Get(i int) (*Config, bool) {
	if i < 0 || i >= len(c.configs) {
		return nil, false
	}
	return c.configs[i], true
}

// indexOf returns the local index of the host config h, by CONFIG_ID.
func (c *Catalog) indexOf(h HostConfig) int {
	id, err := c.src.Attrib(h, ConfigIDAttrib)
	if err != nil {
		return -1
	}
	for i, cfg := range c.configs {
		if cfg.ID() == id {
			return i
		}
	}
	return -1
}

// skippedForChoose reports attributes of a reference vector that are never
// passed to the host chooser.
func (c *Catalog) skippedForChoose(a Attrib, v int32) bool {
	switch a {
	case MaxPbufferHeight, MaxPbufferPixels, MaxPbufferWidth,
		NativeVisualID, NativeVisualType, RecordableAndroid,
		ConfigIDAttrib, NativeRenderable, MaxSwapInterval:
		return true
	case Samples, SampleBuffers:
		return c.opts.IgnoreSamples
	case BindToTextureRGB:
		return v == 0
	}
	return false
}

func (c *Catalog) critical(a Attrib) bool {
	switch a {
	case AlphaSize, BlueSize, GreenSize, RedSize, DepthSize, StencilSize:
		return true
	case Samples:
		return !c.opts.IgnoreSamples
	}
	return false
}

// ChooseConfig returns the local index of the config matching a full
// reference attribute vector, or -1. SURFACE_TYPE is forced to the pbuffer
// bit. On failure the candidates are logged in detail.
func (c *Catalog) ChooseConfig(attribs []int32) int {
	if len(attribs) != NumAttributes || len(c.configs) == 0 {
		return -1
	}
	req := make([]int32, 0, 2*NumAttributes+1)
	for i, a := range Attributes {
		v := attribs[i]
		if c.skippedForChoose(a, v) {
			continue
		}
		if a == SurfaceType {
			v = PbufferBit
		}
		req = append(req, int32(a), v)
	}
	req = append(req, int32(None))

	cands, err := c.src.Choose(req, c.hostCount)
	if err != nil {
		slogger().Error("config: host choose failed", "err", err)
		return -1
	}
	if len(cands) == 0 {
		slogger().Error("config: host choose returned no configs", "configID", attribs[4])
		return -1
	}
	if idx := c.matchBest(attribs, cands, false); idx >= 0 {
		return idx
	}
	slogger().Error("config: no exact match", "configID", attribs[4], "candidates", len(cands))
	c.matchBest(attribs, cands, true)
	return -1
}

func (c *Catalog) matchBest(attribs []int32, cands []HostConfig, verbose bool) int {
	for _, h := range cands {
		if !c.compatible(h) {
			if verbose {
				id, _ := c.src.Attrib(h, ConfigIDAttrib)
				slogger().Error("config: candidate not compatible", "configID", id)
			}
			continue
		}
		idx := c.indexOf(h)
		if idx < 0 {
			continue
		}
		cfg := c.configs[idx]
		if verbose {
			slogger().Error("config: candidate", "config", cfg.String())
		}
		found := true
		for i, a := range Attributes {
			if !c.critical(a) {
				continue
			}
			if cfg.values[i] != attribs[i] {
				if verbose {
					slogger().Error("config: attribute mismatch",
						"configID", cfg.ID(), "attrib", a.String(),
						"want", attribs[i], "have", cfg.values[i])
				}
				found = false
				break
			}
		}
		if found {
			return idx
		}
	}
	return -1
}

// MatchedConfig maps a reference CONFIG_ID (1-based) to a local index.
// It returns -1 for ids outside the reference table or unmatched rows.
func (c *Catalog) MatchedConfig(referenceID int32) int32 {
	row := int(referenceID) - 1
	if row < 0 || row >= len(c.matched) {
		slogger().Error("config: reference id out of range", "id", referenceID)
		return -1
	}
	return int32(c.matched[row])
}

// ChooseGuestConfigs runs a guest attribute list (name/value pairs,
// optionally terminated by None) through the host chooser and writes the
// local indices of the results to out. SURFACE_TYPE is forced to the
// pbuffer bit. When depth24 is set and no DEPTH_SIZE was requested, a
// 24-bit depth buffer is required. It returns the number of matches, capped
// at len(out) when out is not empty.
func (c *Catalog) ChooseGuestConfigs(attribs []int32, out []uint32, depth24 bool) int {
	req := make([]int32, 0, len(attribs)+5)
	hasSurfaceType, hasDepth := false, false
	for i := 0; i+1 < len(attribs); i += 2 {
		a, v := Attrib(attribs[i]), attribs[i+1]
		if a == None {
			break
		}
		switch a {
		case SurfaceType:
			hasSurfaceType = true
			v = PbufferBit
		case DepthSize:
			hasDepth = true
		}
		req = append(req, int32(a), v)
	}
	if !hasSurfaceType {
		req = append(req, int32(SurfaceType), PbufferBit)
	}
	if depth24 && !hasDepth {
		req = append(req, int32(DepthSize), 24)
	}
	req = append(req, int32(None))

	cands, err := c.src.Choose(req, c.hostCount)
	if err != nil {
		slogger().Error("config: guest choose failed", "err", err)
		return 0
	}
	n := 0
	for _, h := range cands {
		if len(out) > 0 && n >= len(out) {
			break
		}
		idx := c.indexOf(h)
		if idx < 0 {
			continue
		}
		if n < len(out) {
			out[n] = uint32(idx)
		}
		n++
	}
	return n
}

// PackInfo returns the config count and the attribute vector length.
func (c *Catalog) PackInfo() (numConfigs, numAttribs int) {
	return len(c.configs), NumAttributes
}

// Pack writes the attribute names followed by every config's values to buf.
// If buf is too small it returns the negated number of words needed;
// otherwise it returns the config count.
func (c *Catalog) Pack(buf []uint32) int {
	need := (len(c.configs) + 1) * NumAttributes
	if len(buf) < need {
		return -need
	}
	for i, a := range Attributes {
		buf[i] = uint32(a)
	}
	for k, cfg := range c.configs {
		row := buf[(k+1)*NumAttributes:]
		for i, v := range cfg.values {
			row[i] = uint32(v)
		}
	}
	return len(c.configs)
}
