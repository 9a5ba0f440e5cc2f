package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportLimiterDefaults(t *testing.T) {
	l := NewImportLimiter(0, 0)
	assert.Equal(t, DefaultMaxConcurrentImports, l.Status().MaxConcurrent)
	assert.Equal(t, DefaultMaxWaitTime, l.maxWait)
}

func TestImportLimiterAcquireRelease(t *testing.T) {
	l := NewImportLimiter(2, time.Second)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))
	assert.Equal(t, LimiterStatus{Active: 2, Available: 0, MaxConcurrent: 2}, l.Status())
	assert.False(t, l.TryAcquire())

	l.Release()
	assert.True(t, l.TryAcquire())
	l.Release()
	l.Release()
	assert.Equal(t, LimiterStatus{Active: 0, Available: 2, MaxConcurrent: 2}, l.Status())
}

func TestImportLimiterTimeout(t *testing.T) {
	l := NewImportLimiter(1, 20*time.Millisecond)
	require.True(t, l.TryAcquire())
	defer l.Release()

	start := time.Now()
	err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrTooManyImports)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestImportLimiterContextCancelled(t *testing.T) {
	l := NewImportLimiter(1, time.Minute)
	require.True(t, l.TryAcquire())
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	assert.ErrorIs(t, l.Acquire(ctx), context.Canceled)
}

func TestImportLimiterWaitsForSlot(t *testing.T) {
	l := NewImportLimiter(1, time.Second)
	require.True(t, l.TryAcquire())

	go func() {
		time.Sleep(20 * time.Millisecond)
		l.Release()
	}()
	require.NoError(t, l.Acquire(context.Background()))
	l.Release()
}

func TestImportLimiterBoundsConcurrency(t *testing.T) {
	const limit = 3
	l := NewImportLimiter(limit, 5*time.Second)

	var (
		mu      sync.Mutex
		running int
		peak    int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Error(err)
				return
			}
			defer l.Release()

			mu.Lock()
			running++
			peak = max(peak, running)
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak, limit)
	assert.Equal(t, 0, l.Status().Active)
}

func TestImportLimiterWaitForDrain(t *testing.T) {
	l := NewImportLimiter(2, time.Second)
	require.NoError(t, l.WaitForDrain(context.Background()))

	require.True(t, l.TryAcquire())
	go func() {
		time.Sleep(30 * time.Millisecond)
		l.Release()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, l.WaitForDrain(ctx))

	require.True(t, l.TryAcquire())
	defer l.Release()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	assert.ErrorIs(t, l.WaitForDrain(ctx2), context.DeadlineExceeded)
}
