package core

// validation.go runs the rule pipeline over parsed records.
//
// Rules run in a fixed order and every stage runs for every record:
//  1. required: required columns must hold a value
//  2. format: type coercion failures, then per-field format rules
//  3. consistency: cross-field rules
//  4. duplicate: key collisions within the file and against existing keys
//
// Stages 1-3 only look at one record and run on a bounded worker pool.
// Stage 4 needs every record and runs afterwards as a single ordered pass.

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/ClientImport/internal/schema"
)

// DefaultBatchSize is how many records a worker validates between
// cancellation checks.
const DefaultBatchSize = 256

// Engine validates records against a template and its rules.
type Engine struct {
	spec      schema.TemplateSpec
	rules     []Rule
	workers   int
	batchSize int
	now       func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithWorkers sets the number of validation goroutines.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithBatchSize sets how many records each worker task validates.
func WithBatchSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithClock sets the clock used by date rules.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRules replaces the format and consistency rules.
func WithRules(rules ...Rule) EngineOption {
	return func(e *Engine) {
		e.rules = rules
	}
}

// NewEngine creates an engine for spec. Client templates get ClientRules by
// default; other templates only get the required, type and unique checks.
func NewEngine(spec schema.TemplateSpec, opts ...EngineOption) *Engine {
	e := &Engine{
		spec:      spec,
		workers:   runtime.GOMAXPROCS(0),
		batchSize: DefaultBatchSize,
		now:       time.Now,
	}
	if spec.Key == schema.ClientsKey {
		e.rules = ClientRules()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the rule names in evaluation order.
func (e *Engine) Rules() []string {
	names := []string{RuleRequired, RuleType}
	for _, r := range e.rules {
		if r.Stage == StageFormat {
			names = append(names, r.Name)
		}
	}
	for _, r := range e.rules {
		if r.Stage == StageConsistency {
			names = append(names, r.Name)
		}
	}
	return append(names, RuleUnique)
}

// Validate returns one outcome per record, in input order. Results depend only
// on the records, existing and the engine clock. On cancellation all partial
// results are discarded and the context error is returned.
func (e *Engine) Validate(ctx context.Context, records []CandidateRecord, existing KeySet) ([]ValidationOutcome, error) {
	outcomes := make([]ValidationOutcome, len(records))
	rc := RuleContext{Today: e.now()}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for start := 0; start < len(records); start += e.batchSize {
		if gctx.Err() != nil {
			break
		}
		end := min(start+e.batchSize, len(records))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				outcomes[i] = ValidationOutcome{
					Record: records[i],
					Errors: e.checkRecord(records[i], rc),
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dups := MarkDuplicates(records, e.spec.KeyColumn, existing)
	for i := range outcomes {
		if d, ok := dups[i]; ok {
			outcomes[i].IsDuplicate = true
			outcomes[i].Errors = append(outcomes[i].Errors, FieldError{
				Field:    e.spec.KeyColumn,
				Rule:     RuleUnique,
				Message:  d.message(),
				Severity: SeverityError,
			})
		}
		outcomes[i].Status = deriveStatus(outcomes[i].Errors, outcomes[i].IsDuplicate)
	}
	return outcomes, nil
}

// checkRecord runs stages 1-3 against one record.
func (e *Engine) checkRecord(rec CandidateRecord, rc RuleContext) []FieldError {
	var errs []FieldError

	for _, col := range e.spec.Columns {
		if !col.Required {
			continue
		}
		if f, ok := rec.Field(col.Name); !ok || !f.Present {
			errs = append(errs, FieldError{
				Field:    col.Name,
				Rule:     RuleRequired,
				Message:  "required field is empty",
				Severity: SeverityError,
			})
		}
	}

	for _, col := range e.spec.Columns {
		if f, ok := rec.Field(col.Name); ok && f.Present && f.CoerceErr != "" {
			errs = append(errs, FieldError{
				Field:    col.Name,
				Rule:     RuleType,
				Message:  fmt.Sprintf("expected %s: %s", col.Type, f.CoerceErr),
				Severity: SeverityError,
			})
		}
	}

	errs = e.runStage(errs, StageFormat, rec, rc)
	return e.runStage(errs, StageConsistency, rec, rc)
}

func (e *Engine) runStage(errs []FieldError, stage Stage, rec CandidateRecord, rc RuleContext) []FieldError {
	for _, r := range e.rules {
		if r.Stage != stage || !r.applies(rec) {
			continue
		}
		for _, fe := range r.Check(rec, rc) {
			fe.Rule = r.Name
			fe.Severity = r.Severity
			errs = append(errs, fe)
		}
	}
	return errs
}
