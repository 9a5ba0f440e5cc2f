package core

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathLocksSerializeSamePath(t *testing.T) {
	locks := NewPathLocks()
	var (
		inside atomic.Int32
		peak   atomic.Int32
		wg     sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locks.Lock(context.Background(), "data/clients.xlsx")
			if err != nil {
				t.Error(err)
				return
			}
			defer unlock()

			n := inside.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, 0, locks.Held())
}

func TestPathLocksEquivalentPaths(t *testing.T) {
	locks := NewPathLocks()
	unlock, err := locks.Lock(context.Background(), "data/clients.xlsx")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locks.Lock(ctx, filepath.Join("data", ".", "clients.xlsx"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPathLocksDifferentPathsDoNotBlock(t *testing.T) {
	locks := NewPathLocks()
	unlockA, err := locks.Lock(context.Background(), "a.xlsx")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := locks.Lock(ctx, "b.xlsx")
	require.NoError(t, err)
	unlockB()
	assert.Equal(t, 1, locks.Held())
}

func TestPathLocksUnlockTwice(t *testing.T) {
	locks := NewPathLocks()
	unlock, err := locks.Lock(context.Background(), "a.xlsx")
	require.NoError(t, err)
	unlock()
	unlock()

	unlock, err = locks.Lock(context.Background(), "a.xlsx")
	require.NoError(t, err)
	unlock()
	assert.Equal(t, 0, locks.Held())
}
