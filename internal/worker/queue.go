// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package worker runs commands on a dedicated goroutine, one at a time, in
// submission order.
package worker

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned when a command is submitted after Stop.
var ErrStopped = errors.New("worker: queue stopped")

type request[T any] struct {
	cmd  T
	done chan struct{}
	exit bool
}

// Queue is a single-consumer command queue. The consumer goroutine starts on
// the first submission, or on Start.
type Queue[T any] struct {
	name   string
	handle func(T)
	ch     chan request[T]

	mu      sync.RWMutex
	started bool
	stopped bool
	exited  chan struct{}
}

// New returns a queue that runs handle for every command. capacity bounds
// the number of commands waiting for the consumer.
func New[T any](name string, capacity int, handle func(T)) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		name:   name,
		handle: handle,
		ch:     make(chan request[T], capacity),
		exited: make(chan struct{}),
	}
}

// Start launches the consumer goroutine if it is not running yet.
func (q *Queue[T]) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.startLocked()
}

func (q *Queue[T]) startLocked() {
	if q.started || q.stopped {
		return
	}
	q.started = true
	slogger().Debug("worker: starting", "queue", q.name)
	go q.run()
}

func (q *Queue[T]) run() {
	defer close(q.exited)
	for req := range q.ch {
		if req.exit {
			if req.done != nil {
				close(req.done)
			}
			slogger().Debug("worker: exiting", "queue", q.name)
			return
		}
		q.handle(req.cmd)
		if req.done != nil {
			close(req.done)
		}
	}
}

func (q *Queue[T]) send(req request[T]) error {
	q.mu.RLock()
	if !q.started {
		q.mu.RUnlock()
		q.mu.Lock()
		q.startLocked()
		q.mu.Unlock()
		q.mu.RLock()
	}
	defer q.mu.RUnlock()
	if q.stopped {
		return ErrStopped
	}
	q.ch <- req
	return nil
}

// Submit queues cmd and returns without waiting for it to run.
func (q *Queue[T]) Submit(cmd T) error {
	return q.send(request[T]{cmd: cmd})
}

// SubmitWait queues cmd and blocks until it has run or ctx is done. A
// command abandoned by a cancelled ctx still runs.
func (q *Queue[T]) SubmitWait(ctx context.Context, cmd T) error {
	done := make(chan struct{})
	if err := q.send(request[T]{cmd: cmd, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the consumer goroutine is live.
func (q *Queue[T]) Running() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.started && !q.stopped
}

// Stop runs every queued command, then stops the consumer and waits for it.
// Stop is idempotent.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	started := q.started
	q.stopped = true
	if started {
		q.ch <- request[T]{exit: true}
	}
	q.mu.Unlock()
	if started {
		<-q.exited
	}
}
