package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/ClientImport/internal/schema"
	"github.com/JonMunkholm/ClientImport/internal/sheet"
)

// DefaultHeaderSearchRows is how many leading rows are searched for the header.
// Title or note rows above the header are skipped as long as the header sits
// inside this window.
const DefaultHeaderSearchRows = 20

// RowReader reads the raw rows of a spreadsheet file.
type RowReader interface {
	ReadRows(ctx context.Context, path string) ([]sheet.RawRow, error)
}

// Parser turns raw spreadsheet rows into candidate records for one template.
type Parser struct {
	spec             schema.TemplateSpec
	reader           RowReader
	headerSearchRows int
	now              func() time.Time
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithParseClock sets the clock that anchors two-digit years in text dates.
func WithParseClock(now func() time.Time) ParserOption {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// NewParser creates a parser for spec reading through reader.
// A headerSearchRows of zero or less uses DefaultHeaderSearchRows.
func NewParser(spec schema.TemplateSpec, reader RowReader, headerSearchRows int, opts ...ParserOption) *Parser {
	if headerSearchRows <= 0 {
		headerSearchRows = DefaultHeaderSearchRows
	}
	p := &Parser{spec: spec, reader: reader, headerSearchRows: headerSearchRows, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads path and returns one record per non-blank data row, in source
// order. Header problems are reported before any data row is converted.
func (p *Parser) Parse(ctx context.Context, path string) ([]CandidateRecord, error) {
	rows, err := p.reader.ReadRows(ctx, path)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &FileFormatError{Path: path, Reason: "cannot read file", Err: err}
	}
	return p.ParseRows(ctx, path, rows)
}

// ParseRows converts rows that were already read. path is only used in errors.
func (p *Parser) ParseRows(ctx context.Context, path string, rows []sheet.RawRow) ([]CandidateRecord, error) {
	headerPos, binding, err := p.findHeader(path, rows)
	if err != nil {
		return nil, err
	}
	header := rows[headerPos]
	now := p.now()

	data := rows[headerPos+1:]
	records := make([]CandidateRecord, 0, len(data))
	for i, row := range data {
		if i%sheet.ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if row.IsBlank() {
			continue
		}
		records = append(records, p.buildRecord(row, binding, now))
	}

	if len(records) == 0 {
		return nil, &EmptyFileError{Path: path, HeaderRow: header.Index}
	}
	return records, nil
}

// findHeader returns the position and column binding of the first row inside
// the search window that carries every required column. When no row does, the
// error names the columns missing from the closest candidate.
func (p *Parser) findHeader(path string, rows []sheet.RawRow) (int, []int, error) {
	var (
		sawRow      bool
		bestPos     = -1
		bestMissing []string
	)
	for i, row := range rows {
		if row.IsBlank() {
			continue
		}
		sawRow = true
		if row.Index > p.headerSearchRows {
			break
		}
		binding, missing := p.bindHeader(row)
		if len(missing) == 0 {
			return i, binding, nil
		}
		if bestPos < 0 || len(missing) < len(bestMissing) {
			bestPos, bestMissing = i, missing
		}
	}

	switch {
	case !sawRow:
		return -1, nil, &EmptyFileError{Path: path}
	case bestPos < 0:
		return -1, nil, &FileFormatError{
			Path:   path,
			Reason: fmt.Sprintf("no header row in the first %d rows", p.headerSearchRows),
		}
	default:
		return -1, nil, &FileFormatError{
			Path:    path,
			Row:     rows[bestPos].Index,
			Missing: bestMissing,
			Reason:  "missing required columns: " + strings.Join(bestMissing, ", "),
		}
	}
}

// bindHeader maps each template column to its cell position in the header,
// -1 when absent. The first matching header cell wins.
func (p *Parser) bindHeader(header sheet.RawRow) ([]int, []string) {
	positions := make(map[string]int, len(header.Cells))
	for i, cell := range header.Cells {
		name := schema.NormalizeHeader(CleanCell(cell.String()))
		if name == "" {
			continue
		}
		if _, seen := positions[name]; !seen {
			positions[name] = i
		}
	}

	binding := make([]int, len(p.spec.Columns))
	var missing []string
	for i, col := range p.spec.Columns {
		pos, ok := positions[schema.NormalizeHeader(col.Name)]
		if !ok {
			binding[i] = -1
			if col.Required {
				missing = append(missing, col.Name)
			}
			continue
		}
		binding[i] = pos
	}
	return binding, missing
}

func (p *Parser) buildRecord(row sheet.RawRow, binding []int, now time.Time) CandidateRecord {
	fields := make([]FieldValue, len(p.spec.Columns))
	for i, col := range p.spec.Columns {
		if binding[i] < 0 {
			fields[i] = FieldValue{Column: col.Name, Type: col.Type}
			continue
		}
		fields[i] = coerceCell(row.Cell(binding[i]), col, now)
	}
	return CandidateRecord{SourceRow: row.Index, fields: fields}
}
