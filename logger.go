// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderhost

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/renderhost/config"
	"github.com/gogpu/renderhost/internal/egl"
	"github.com/gogpu/renderhost/internal/worker"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for renderhost and its sub-packages.
// By default, renderhost produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by renderhost:
//   - [slog.LevelDebug]: per-call traces (handle allocation, binding, sweeps)
//   - [slog.LevelInfo]: lifecycle events (initialize, finalize, subwindow, snapshot)
//   - [slog.LevelWarn]: guest quirks (double close, unknown handle, dropped post)
//   - [slog.LevelError]: host failures and broken invariants
//
// Example:
//
//	// Enable debug-level logging for full diagnostics:
//	renderhost.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	config.SetLogger(l)
	worker.SetLogger(l)
	egl.SetLogger(l)

	backendsMu.Lock()
	bs := make([]loggerSetter, 0, len(backends))
	for b := range backends {
		bs = append(bs, b)
	}
	backendsMu.Unlock()
	for _, b := range bs {
		b.SetLogger(l)
	}
}

// Logger returns the current logger used by renderhost.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

func slogger() *slog.Logger { return loggerPtr.Load() }

// loggerSetter is implemented by backends that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

var (
	backendsMu sync.Mutex
	backends   = make(map[loggerSetter]struct{})
)

// propagateLogger passes the logger to a backend if it implements
// loggerSetter, and remembers it for later SetLogger calls.
func propagateLogger(b any) {
	ls, ok := b.(loggerSetter)
	if !ok {
		return
	}
	ls.SetLogger(slogger())
	backendsMu.Lock()
	backends[ls] = struct{}{}
	backendsMu.Unlock()
}

// forgetLogger drops a backend registered by propagateLogger.
func forgetLogger(b any) {
	if ls, ok := b.(loggerSetter); ok {
		backendsMu.Lock()
		delete(backends, ls)
		backendsMu.Unlock()
	}
}
