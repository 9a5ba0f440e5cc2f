package core

import (
	"context"
	"path/filepath"
	"sync"
)

// PathLocks serializes work on the same file. Different paths never block
// each other. Entries are removed once nobody holds or waits for them.
type PathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	ch   chan struct{}
	refs int
}

// NewPathLocks creates an empty lock table.
func NewPathLocks() *PathLocks {
	return &PathLocks{locks: make(map[string]*pathLock)}
}

// Lock blocks until path is free or ctx ends. The returned function releases
// the lock and is safe to call more than once.
func (p *PathLocks) Lock(ctx context.Context, path string) (func(), error) {
	key := lockKey(path)

	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &pathLock{ch: make(chan struct{}, 1)}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		p.release(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			p.release(key, l)
		})
	}, nil
}

// Held returns the number of paths with a holder or waiter.
func (p *PathLocks) Held() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}

func (p *PathLocks) release(key string, l *pathLock) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(p.locks, key)
	}
}

func lockKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
