package logging

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

type entry struct {
	ctx   context.Context
	level slog.Level
	msg   string
	args  []any
}

// Async writes log entries from a single background goroutine so callers on
// hot paths never wait for I/O. When the buffer is full new entries are
// dropped and counted.
type Async struct {
	base    *slog.Logger
	entries chan entry
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts an async logger writing to base, or to the default logger
// at write time when base is nil.
func NewAsync(base *slog.Logger, buffer int) *Async {
	if buffer <= 0 {
		buffer = 1
	}
	a := &Async{
		base:    base,
		entries: make(chan entry, buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Submit queues an entry and returns immediately. Request and run ids on
// ctx are kept; its cancellation is not.
func (a *Async) Submit(ctx context.Context, level slog.Level, msg string, args ...any) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.dropped.Add(1)
		return
	}

	select {
	case a.entries <- entry{ctx: context.WithoutCancel(ctx), level: level, msg: msg, args: args}:
	default:
		a.dropped.Add(1)
	}
}

// Dropped returns how many entries were discarded.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting entries and waits until the queued ones are written.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.closed = true
	close(a.entries)
	a.mu.Unlock()

	<-a.done

	if n := a.dropped.Load(); n > 0 {
		a.logger().Warn("async log entries dropped", "count", n)
	}
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.entries {
		enrich(a.logger(), e.ctx).Log(e.ctx, e.level, e.msg, e.args...)
	}
}

func (a *Async) logger() *slog.Logger {
	if a.base != nil {
		return a.base
	}
	return slog.Default()
}
