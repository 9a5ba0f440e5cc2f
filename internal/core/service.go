package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/ClientImport/internal/schema"
)

// Logger receives pipeline events. Submit must not block the caller.
type Logger interface {
	Submit(ctx context.Context, level slog.Level, msg string, args ...any)
}

type discardLogger struct{}

func (discardLogger) Submit(context.Context, slog.Level, string, ...any) {}

// CommitFunc persists the valid records of an import. It runs while the
// file's path lock is held and returns how many records were stored.
type CommitFunc func(ctx context.Context, runID string, records []CandidateRecord) (int64, error)

// KeyLoader returns the keys already stored. ImportAndCommit calls it inside
// the commit section so the set cannot go stale before the commit.
type KeyLoader func(ctx context.Context) (KeySet, error)

// StaticKeys returns a KeyLoader that always yields ks.
func StaticKeys(ks KeySet) KeyLoader {
	return func(context.Context) (KeySet, error) { return ks, nil }
}

// Options tunes a Service. Zero values pick the package defaults.
type Options struct {
	Workers          int
	BatchSize        int
	SampleErrorCap   int
	HeaderSearchRows int
	MaxConcurrent    int
	MaxWait          time.Duration
	Clock            func() time.Time
	Logger           Logger
}

// Service runs previews, imports and template exports for one template.
type Service struct {
	spec      schema.TemplateSpec
	parser    *Parser
	engine    *Engine
	exporter  *Exporter
	locks     *PathLocks
	limiter   *ImportLimiter
	commits   chan struct{}
	sampleCap int
	log       Logger
}

// NewService creates a service for spec reading files through reader.
func NewService(spec schema.TemplateSpec, reader RowReader, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = discardLogger{}
	}
	return &Service{
		spec:   spec,
		parser: NewParser(spec, reader, opts.HeaderSearchRows, WithParseClock(opts.Clock)),
		engine: NewEngine(spec,
			WithWorkers(opts.Workers),
			WithBatchSize(opts.BatchSize),
			WithClock(opts.Clock),
		),
		exporter:  NewExporter(),
		locks:     NewPathLocks(),
		limiter:   NewImportLimiter(opts.MaxConcurrent, opts.MaxWait),
		commits:   make(chan struct{}, 1),
		sampleCap: opts.SampleErrorCap,
		log:       log,
	}
}

// Spec returns the template the service imports.
func (s *Service) Spec() schema.TemplateSpec { return s.spec }

// Rules returns the validation rule names in evaluation order.
func (s *Service) Rules() []string { return s.engine.Rules() }

// LimiterStatus reports how many imports are running.
func (s *Service) LimiterStatus() LimiterStatus { return s.limiter.Status() }

// WaitForDrain blocks until running imports finish or ctx ends.
func (s *Service) WaitForDrain(ctx context.Context) error { return s.limiter.WaitForDrain(ctx) }

// PreviewImport reports what importing path would do without committing
// anything. Previewing an unchanged file twice gives equal results.
func (s *Service) PreviewImport(ctx context.Context, path string, existing KeySet) (PreviewResult, error) {
	s.log.Submit(ctx, slog.LevelInfo, "preview started", "file", path)

	var result PreviewResult
	err := s.withPath(ctx, path, func(ctx context.Context) error {
		outcomes, err := s.validateFile(ctx, path, existing)
		if err != nil {
			return err
		}
		result = Aggregate(outcomes, s.sampleCap)
		return nil
	})
	if err != nil {
		s.log.Submit(ctx, slog.LevelWarn, "preview failed", "file", path, "error", err)
		return PreviewResult{}, err
	}

	s.log.Submit(ctx, slog.LevelInfo, "preview finished",
		"file", path,
		"total", result.TotalRows,
		"valid", result.ValidCount,
		"invalid", result.InvalidCount,
		"duplicates", result.DuplicateCount,
	)
	return result, nil
}

// ImportClients parses and validates path and returns every outcome. Callers
// commit the records whose status is StatusValid.
func (s *Service) ImportClients(ctx context.Context, path string, existing KeySet) ([]ValidationOutcome, error) {
	s.log.Submit(ctx, slog.LevelInfo, "import started", "file", path)

	var outcomes []ValidationOutcome
	err := s.withPath(ctx, path, func(ctx context.Context) error {
		var err error
		outcomes, err = s.validateFile(ctx, path, existing)
		return err
	})
	if err != nil {
		s.log.Submit(ctx, slog.LevelWarn, "import failed", "file", path, "error", err)
		return nil, err
	}

	s.log.Submit(ctx, slog.LevelInfo, "import validated", "file", path, "records", len(outcomes))
	return outcomes, nil
}

// ImportAndCommit validates path and hands the valid records to commit while
// the path lock is still held. Nothing is committed when validation fails.
//
// Loading the existing keys, validating and committing run inside one commit
// section per service, so two imports of different files that share a key
// cannot both see it as new: the later one reports it as a duplicate.
func (s *Service) ImportAndCommit(ctx context.Context, path string, keys KeyLoader, commit CommitFunc) (ImportSummary, error) {
	runID := uuid.NewString()
	ctx = ContextWithRunID(ctx, runID)
	s.log.Submit(ctx, slog.LevelInfo, "import started", "file", path, "run_id", runID)

	summary := ImportSummary{RunID: runID, File: path}
	err := s.withPath(ctx, path, func(ctx context.Context) error {
		release, err := s.enterCommit(ctx)
		if err != nil {
			return err
		}
		defer release()

		existing := NewKeySet()
		if keys != nil {
			if existing, err = keys(ctx); err != nil {
				return fmt.Errorf("load existing keys: %w", err)
			}
		}

		outcomes, err := s.validateFile(ctx, path, existing)
		if err != nil {
			return err
		}
		summary.Preview = Aggregate(outcomes, s.sampleCap)

		valid := ValidRecords(outcomes)
		if len(valid) == 0 || commit == nil {
			return nil
		}
		n, err := commit(ctx, runID, valid)
		if err != nil {
			return fmt.Errorf("commit %d records: %w", len(valid), err)
		}
		summary.Committed = n
		return nil
	})
	if err != nil {
		s.log.Submit(ctx, slog.LevelWarn, "import failed", "file", path, "run_id", runID, "error", err)
		return ImportSummary{}, err
	}

	s.log.Submit(ctx, slog.LevelInfo, "import committed",
		"file", path,
		"run_id", runID,
		"committed", summary.Committed,
		"rejected", summary.Preview.InvalidCount+summary.Preview.DuplicateCount,
	)
	return summary, nil
}

// ExportTemplate writes a blank template for the service's spec to path.
func (s *Service) ExportTemplate(path string) error {
	ctx := context.Background()
	if err := s.exporter.Export(path, s.spec); err != nil {
		s.log.Submit(ctx, slog.LevelWarn, "template export failed", "file", path, "error", err)
		return err
	}
	s.log.Submit(ctx, slog.LevelInfo, "template exported", "file", path, "template", s.spec.Key)
	return nil
}

// withPath runs fn holding an import slot and the lock for path.
func (s *Service) withPath(ctx context.Context, path string, fn func(ctx context.Context) error) error {
	if err := s.limiter.Acquire(ctx); err != nil {
		return err
	}
	defer s.limiter.Release()

	unlock, err := s.locks.Lock(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()

	return fn(ctx)
}

// enterCommit waits for the service's commit section or until ctx ends.
func (s *Service) enterCommit(ctx context.Context) (func(), error) {
	select {
	case s.commits <- struct{}{}:
		return func() { <-s.commits }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) validateFile(ctx context.Context, path string, existing KeySet) ([]ValidationOutcome, error) {
	records, err := s.parser.Parse(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.engine.Validate(ctx, records, existing)
}
