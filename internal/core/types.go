package core

import (
	"encoding/json"
	"time"

	"github.com/JonMunkholm/ClientImport/internal/schema"
)

// FieldValue is one typed field of a parsed record.
type FieldValue struct {
	Column    string          // Template column name
	Type      schema.DataType // Expected type from the template
	Raw       string          // Cleaned text form of the source cell
	Present   bool            // False when the cell was empty or the column absent
	Text      string
	Number    float64
	Time      time.Time
	Bool      bool
	CoerceErr string // Non-empty when the cell could not be converted to Type
}

// Coerced reports whether the field holds a usable typed value.
func (v FieldValue) Coerced() bool {
	return v.Present && v.CoerceErr == ""
}

// CandidateRecord is a typed projection of one data row. Records are built by
// the parser and never modified afterwards; validation results live in
// ValidationOutcome.
type CandidateRecord struct {
	SourceRow int // 1-based row number in the source file
	fields    []FieldValue
}

// NewCandidateRecord builds a record from fields in template order.
func NewCandidateRecord(sourceRow int, fields []FieldValue) CandidateRecord {
	cp := make([]FieldValue, len(fields))
	copy(cp, fields)
	return CandidateRecord{SourceRow: sourceRow, fields: cp}
}

// Fields returns a copy of the record's fields in template order.
func (r CandidateRecord) Fields() []FieldValue {
	cp := make([]FieldValue, len(r.fields))
	copy(cp, r.fields)
	return cp
}

// Field returns the named field.
func (r CandidateRecord) Field(name string) (FieldValue, bool) {
	for _, f := range r.fields {
		if f.Column == name {
			return f, true
		}
	}
	return FieldValue{}, false
}

// Text returns the text value of a coerced field, or "".
func (r CandidateRecord) Text(name string) string {
	f, ok := r.Field(name)
	if !ok || !f.Coerced() {
		return ""
	}
	return f.Text
}

// Values returns the cleaned source text of every present field.
func (r CandidateRecord) Values() map[string]string {
	values := make(map[string]string, len(r.fields))
	for _, f := range r.fields {
		if f.Present {
			values[f.Column] = f.Raw
		}
	}
	return values
}

// MarshalJSON renders the record as its row number and source values.
func (r CandidateRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Row    int               `json:"row"`
		Values map[string]string `json:"values"`
	}{r.SourceRow, r.Values()})
}

// Severity classifies a FieldError. Only SeverityError affects status.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// MarshalText renders the severity name for JSON output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FieldError is a single rule violation attached to a record.
type FieldError struct {
	Field    string   `json:"field"`
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (e FieldError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// Status is the derived verdict for a record.
type Status int

const (
	StatusValid Status = iota
	StatusInvalid
	StatusDuplicateRejected
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	case StatusDuplicateRejected:
		return "duplicate"
	default:
		return "unknown"
	}
}

// MarshalText renders the status name for JSON output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ValidationOutcome pairs a record with everything validation found.
type ValidationOutcome struct {
	Record      CandidateRecord `json:"record"`
	Errors      []FieldError    `json:"errors"`
	IsDuplicate bool            `json:"isDuplicate"`
	Status      Status          `json:"status"`
}

// HasWarnings reports whether any warning-severity entry is present.
func (o ValidationOutcome) HasWarnings() bool {
	for _, e := range o.Errors {
		if e.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// deriveStatus applies the status precedence: duplicate, then error, then valid.
func deriveStatus(errs []FieldError, isDuplicate bool) Status {
	if isDuplicate {
		return StatusDuplicateRejected
	}
	for _, e := range errs {
		if e.Severity == SeverityError {
			return StatusInvalid
		}
	}
	return StatusValid
}

// ValidRecords returns the records of all outcomes with StatusValid, in order.
func ValidRecords(outcomes []ValidationOutcome) []CandidateRecord {
	var out []CandidateRecord
	for _, o := range outcomes {
		if o.Status == StatusValid {
			out = append(out, o.Record)
		}
	}
	return out
}

// SampleError is a FieldError with the row it came from.
type SampleError struct {
	Row int `json:"row"`
	FieldError
}

// PreviewResult summarizes what an import would do. It is recomputed on
// every preview and carries no timing data, so repeated previews of the same
// file compare equal.
type PreviewResult struct {
	TotalRows      int           `json:"totalRows"`
	ValidCount     int           `json:"validCount"`
	InvalidCount   int           `json:"invalidCount"`
	DuplicateCount int           `json:"duplicateCount"`
	WarningCount   int           `json:"warningCount"`
	SampleErrors   []SampleError `json:"sampleErrors"`
}

// ImportSummary is the result of an import that handed valid records to a
// commit function.
type ImportSummary struct {
	RunID     string        `json:"runId"`
	File      string        `json:"file"`
	Preview   PreviewResult `json:"preview"`
	Committed int64         `json:"committed"`
}
