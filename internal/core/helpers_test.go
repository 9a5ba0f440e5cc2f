package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/ClientImport/internal/schema"
	"github.com/JonMunkholm/ClientImport/internal/sheet"
)

// fixedNow is the clock used by tests that depend on today's date.
var fixedNow = time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// clientHeader is a header row for the columns most tests fill in.
var clientHeader = []string{"name", "taxIdentifier", "email", "phone", "country", "postalCode"}

// textRows builds rows of text cells numbered from 1.
func textRows(lines ...[]string) []sheet.RawRow {
	rows := make([]sheet.RawRow, len(lines))
	for i, line := range lines {
		cells := make([]sheet.Cell, len(line))
		for j, v := range line {
			cells[j] = sheet.TextCell(v)
		}
		rows[i] = sheet.RawRow{Index: i + 1, Cells: cells}
	}
	return rows
}

// fakeReader serves fixed rows for any path.
type fakeReader struct {
	rows  []sheet.RawRow
	err   error
	calls atomic.Int32

	// block, when set, is waited on before returning.
	block chan struct{}
	mu    sync.Mutex
	inUse int
	peak  int
}

func (f *fakeReader) ReadRows(ctx context.Context, _ string) ([]sheet.RawRow, error) {
	f.calls.Add(1)

	f.mu.Lock()
	f.inUse++
	if f.inUse > f.peak {
		f.peak = f.inUse
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inUse--
		f.mu.Unlock()
	}()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.rows, f.err
}

func (f *fakeReader) peakConcurrency() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

// parseClients parses text rows with the client template.
func parseClients(lines ...[]string) ([]CandidateRecord, error) {
	p := NewParser(schema.Clients, &fakeReader{}, 0)
	return p.ParseRows(context.Background(), "test.csv", textRows(lines...))
}

// mustParseClients is parseClients for inputs known to be well formed.
func mustParseClients(lines ...[]string) []CandidateRecord {
	recs, err := parseClients(lines...)
	if err != nil {
		panic(err)
	}
	return recs
}

func newTestEngine(opts ...EngineOption) *Engine {
	return NewEngine(schema.Clients, append([]EngineOption{WithClock(fixedClock)}, opts...)...)
}

func errorsByRule(errs []FieldError) map[string]FieldError {
	m := make(map[string]FieldError, len(errs))
	for _, e := range errs {
		m[e.Rule] = e
	}
	return m
}
