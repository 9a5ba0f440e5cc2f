package sheet

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Format is a supported spreadsheet file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ErrUnsupportedFormat is returned for file extensions the codec cannot handle.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrFileTooLarge is returned when a file exceeds the reader's size limit.
var ErrFileTooLarge = errors.New("file too large")

// ContextCheckInterval is how many rows are read between cancellation checks.
var ContextCheckInterval = 500

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Reader reads spreadsheet files into raw rows.
type Reader struct {
	// SheetName selects the worksheet of xlsx files. Empty or unknown
	// names fall back to the active sheet.
	SheetName string

	// MaxFileSize rejects larger files before parsing. Zero disables the check.
	MaxFileSize int64
}

// NewReader creates a Reader.
func NewReader(sheetName string, maxFileSize int64) *Reader {
	return &Reader{SheetName: sheetName, MaxFileSize: maxFileSize}
}

// ReadRows reads every row of the file in source order, blank rows included.
func (r *Reader) ReadRows(ctx context.Context, path string) ([]RawRow, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if r.MaxFileSize > 0 && info.Size() > r.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, info.Size(), r.MaxFileSize)
	}

	switch format {
	case FormatCSV:
		return r.readCSV(ctx, path)
	default:
		return r.readXLSX(ctx, path)
	}
}

func (r *Reader) readXLSX(ctx context.Context, path string) ([]RawRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheetName := r.SheetName
	if idx, err := f.GetSheetIndex(sheetName); sheetName == "" || err != nil || idx == -1 {
		sheetName = f.GetSheetName(f.GetActiveSheetIndex())
	}

	rows, err := f.Rows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheetName, err)
	}
	defer rows.Close()

	var out []RawRow
	rowNum := 0
	for rows.Next() {
		rowNum++
		if rowNum%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", rowNum, err)
		}

		cells := make([]Cell, len(cols))
		for i, raw := range cols {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(i+1, rowNum)
			if err != nil {
				return nil, err
			}
			typ, err := f.GetCellType(sheetName, axis)
			if err != nil {
				typ = excelize.CellTypeUnset
			}
			cells[i] = typedCell(raw, typ)
		}
		out = append(out, RawRow{Index: rowNum, Cells: cells})
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheetName, err)
	}

	return out, nil
}

func (r *Reader) readCSV(ctx context.Context, path string) ([]RawRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	data = sanitizeUTF8(data)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	// encoding/csv skips empty lines, so row numbers come from FieldPos
	// rather than the record count.
	var out []RawRow
	for n := 0; ; n++ {
		if n%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		cells := make([]Cell, len(rec))
		for j, v := range rec {
			cells[j] = TextCell(v)
		}
		out = append(out, RawRow{Index: line, Cells: cells})
	}
	return out, nil
}

// sanitizeUTF8 replaces invalid byte sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
