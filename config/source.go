// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"errors"
	"fmt"
)

// HostConfig is an opaque host config reference, such as an EGLConfig.
type HostConfig uintptr

// Source enumerates and matches the configs of the host display.
type Source interface {
	// Configs returns every config the host supports.
	Configs() ([]HostConfig, error)

	// Attrib returns the value of one attribute of a host config.
	Attrib(c HostConfig, a Attrib) (int32, error)

	// Choose returns the host configs matching attribs, a flat list of
	// name/value pairs. A max of 0 means no limit.
	Choose(attribs []int32, max int) ([]HostConfig, error)
}

// ErrUnknownHostConfig is returned by StaticSource for a config it did not issue.
var ErrUnknownHostConfig = errors.New("config: unknown host config")

// StaticSource is an in-memory Source. Each row is a full attribute vector
// in Attributes order. Choose follows the EGL selection rules for the
// attributes of the vector: sizes match at least, bitmasks must be
// contained, everything else matches exactly, DontCare matches anything.
type StaticSource struct {
	rows [][NumAttributes]int32
}

// NewStaticSource returns a source serving rows. HostConfig values are the
// row index plus one.
func NewStaticSource(rows [][NumAttributes]int32) *StaticSource {
	return &StaticSource{rows: rows}
}

// ReferenceSource returns a StaticSource holding the reference device configs.
func ReferenceSource() *StaticSource {
	rows := make([][NumAttributes]int32, len(ReferenceConfigs))
	copy(rows, ReferenceConfigs[:])
	return NewStaticSource(rows)
}

// Configs implements Source.
func (s *StaticSource) Configs() ([]HostConfig, error) {
	out := make([]HostConfig, len(s.rows))
	for i := range s.rows {
		out[i] = HostConfig(i + 1)
	}
	return out, nil
}

// Attrib implements Source.
func (s *StaticSource) Attrib(c HostConfig, a Attrib) (int32, error) {
	i := int(c) - 1
	if i < 0 || i >= len(s.rows) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownHostConfig, c)
	}
	idx := a.Index()
	if idx < 0 {
		return 0, fmt.Errorf("config: attribute %v not in vector", a)
	}
	return s.rows[i][idx], nil
}

// Choose implements Source.
func (s *StaticSource) Choose(attribs []int32, max int) ([]HostConfig, error) {
	if len(attribs)%2 != 0 {
		return nil, fmt.Errorf("config: odd attribute list length %d", len(attribs))
	}
	var out []HostConfig
	for i := range s.rows {
		if max > 0 && len(out) >= max {
			break
		}
		if s.matches(&s.rows[i], attribs) {
			out = append(out, HostConfig(i+1))
		}
	}
	return out, nil
}

func (s *StaticSource) matches(row *[NumAttributes]int32, attribs []int32) bool {
	for i := 0; i+1 < len(attribs); i += 2 {
		a, want := Attrib(attribs[i]), attribs[i+1]
		if a == None {
			break
		}
		if want == DontCare {
			continue
		}
		idx := a.Index()
		if idx < 0 {
			continue
		}
		have := row[idx]
		switch matchRule(a) {
		case ruleAtLeast:
			if have < want {
				return false
			}
		case ruleMask:
			if have&want != want {
				return false
			}
		default:
			if have != want {
				return false
			}
		}
	}
	return true
}

type rule uint8

const (
	ruleExact rule = iota
	ruleAtLeast
	ruleMask
)

func matchRule(a Attrib) rule {
	switch a {
	case BufferSize, RedSize, GreenSize, BlueSize, AlphaSize, DepthSize,
		StencilSize, Samples, SampleBuffers, LuminanceSize, AlphaMaskSize:
		return ruleAtLeast
	case SurfaceType, RenderableType, Conformant:
		return ruleMask
	default:
		return ruleExact
	}
}
