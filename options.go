// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderhost

import (
	"fmt"
	"time"

	"github.com/gogpu/renderhost/config"
	"github.com/gogpu/renderhost/host"
)

// Option configures a FrameBuffer during creation.
// Use functional options to customize FrameBuffer behavior.
//
// Example:
//
//	fb, err := renderhost.New(
//	    renderhost.WithBackend(backend),
//	    renderhost.WithSize(1080, 1920),
//	    renderhost.WithGracePeriod(2*time.Second),
//	)
type Option func(*options)

// options holds the FrameBuffer configuration.
type options struct {
	backend      host.Backend
	configSource config.Source
	width        int
	height       int
	useSubWindow bool
	dpr          float32
	grace        time.Duration
	clock        func() time.Time
	noDelayClose bool
	refCountPipe bool
	outstanding  int
	configOpts   config.Options
	asyncRead    bool
	fatal        func(error)
	fpsStats     bool
}

// defaultOptions returns the default FrameBuffer options.
func defaultOptions() options {
	return options{
		width:       640,
		height:      480,
		dpr:         1,
		grace:       time.Second,
		clock:       time.Now,
		outstanding: 1000,
		fatal:       defaultFatal,
	}
}

// defaultFatal logs err and panics. A handle collision means guest and host
// disagree about allocation and nothing downstream can be trusted.
func defaultFatal(err error) {
	slogger().Error("renderhost: fatal", "err", err)
	panic(fmt.Sprintf("renderhost: %v", err))
}

// WithBackend sets the host backend. It is required.
func WithBackend(b host.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithConfigSource overrides the config source of the backend.
func WithConfigSource(src config.Source) Option {
	return func(o *options) {
		o.configSource = src
	}
}

// WithSize sets the framebuffer size in pixels. It is also the size of the
// fake window used when no subwindow exists. Default: 640x480.
func WithSize(width, height int) Option {
	return func(o *options) {
		o.width = width
		o.height = height
	}
}

// WithSubWindow enables posting to a subwindow set up with SetupSubWindow.
func WithSubWindow(enabled bool) Option {
	return func(o *options) {
		o.useSubWindow = enabled
	}
}

// WithDevicePixelRatio sets the ratio of window pixels to logical pixels.
// Default: 1.
func WithDevicePixelRatio(dpr float32) Option {
	return func(o *options) {
		if dpr > 0 {
			o.dpr = dpr
		}
	}
}

// WithGracePeriod sets how long an unreferenced color buffer survives
// before a sweep destroys it. Default: 1s.
func WithGracePeriod(d time.Duration) Option {
	return func(o *options) {
		o.grace = d
	}
}

// WithClock sets the time source for delayed closes. The default is
// time.Now, whose readings carry the monotonic clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithNoDelayClose destroys color buffers as soon as their reference count
// reaches zero.
func WithNoDelayClose(enabled bool) Option {
	return func(o *options) {
		o.noDelayClose = enabled
	}
}

// WithRefCountPipe hands color buffer lifetime to the guest's refcount
// pipe: open and close become no-ops and OnLastColorBufferRef releases.
func WithRefCountPipe(enabled bool) Option {
	return func(o *options) {
		o.refCountPipe = enabled
	}
}

// WithOutstandingDestroys bounds the queue of refcount-pipe releases
// waiting for a sweep. Default: 1000.
func WithOutstandingDestroys(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.outstanding = n
		}
	}
}

// WithIgnoreSamples treats SAMPLES and SAMPLE_BUFFERS as wildcards when
// choosing configs, for hosts whose multisampled configs lack pbuffers.
func WithIgnoreSamples(enabled bool) Option {
	return func(o *options) {
		o.configOpts.IgnoreSamples = enabled
	}
}

// WithStrictConfigs makes New fail when a reference config has no host
// equivalent.
func WithStrictConfigs(enabled bool) Option {
	return func(o *options) {
		o.configOpts.Strict = enabled
	}
}

// WithAsyncReadback moves post callback readback to the readback worker.
func WithAsyncReadback(enabled bool) Option {
	return func(o *options) {
		o.asyncRead = enabled
	}
}

// WithFatalFunc replaces the handler of unrecoverable protocol errors. The
// default logs and panics.
func WithFatalFunc(fn func(error)) Option {
	return func(o *options) {
		if fn != nil {
			o.fatal = fn
		}
	}
}

// WithFPSStats counts posted frames, see Stats.
func WithFPSStats(enabled bool) Option {
	return func(o *options) {
		o.fpsStats = enabled
	}
}
