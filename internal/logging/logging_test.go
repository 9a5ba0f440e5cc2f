package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/ClientImport/internal/core"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "warn", "json").Info("hidden")
	New(&buf, "warn", "json").Warn("shown", "rows", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, float64(3), rec["rows"])
}

func TestFromContextAddsIDs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "text"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	ctx = core.ContextWithRunID(ctx, "run-9")
	WithFields(ctx, "file", "clients.xlsx").Info("import started")

	out := buf.String()
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "run_id=run-9")
	assert.Contains(t, out, "file=clients.xlsx")
}

func TestAsyncWritesAllEntriesOnClose(t *testing.T) {
	buf := &syncBuffer{}
	a := NewAsync(New(buf, "debug", "text"), 100)

	ctx, cancel := context.WithCancel(core.ContextWithRunID(context.Background(), "run-1"))
	for i := 0; i < 10; i++ {
		a.Submit(ctx, slog.LevelInfo, "row batch", "n", i)
	}
	cancel()
	a.Close()

	out := buf.String()
	assert.Equal(t, 10, strings.Count(out, "row batch"))
	assert.Contains(t, out, "run_id=run-1")
	assert.Equal(t, int64(0), a.Dropped())
}

func TestAsyncDropsWhenFull(t *testing.T) {
	buf := &syncBuffer{}
	blocker := &blockingWriter{release: make(chan struct{}), next: buf}
	a := NewAsync(New(blocker, "info", "text"), 1)

	// The first entry occupies the writer, the second fills the buffer and
	// the rest are dropped.
	for i := 0; i < 50; i++ {
		a.Submit(context.Background(), slog.LevelInfo, "event")
	}
	assert.Positive(t, a.Dropped())

	close(blocker.release)
	a.Close()
	assert.Contains(t, buf.String(), "async log entries dropped")
}

func TestAsyncSubmitAfterClose(t *testing.T) {
	a := NewAsync(New(&syncBuffer{}, "info", "text"), 4)
	a.Close()
	a.Close()

	assert.NotPanics(t, func() {
		a.Submit(context.Background(), slog.LevelInfo, "late")
	})
	assert.Equal(t, int64(1), a.Dropped())
}

// blockingWriter holds every write until release is closed.
type blockingWriter struct {
	release chan struct{}
	next    *syncBuffer
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	<-w.release
	return w.next.Write(p)
}
