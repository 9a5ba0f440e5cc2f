// Package sheet is the spreadsheet codec. It reads xlsx and csv files into
// ordered rows of typed cells and writes header-only templates. It knows
// nothing about columns or validation; that lives in core.
package sheet

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Kind is the type of a cell value as stored in the file.
type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
	KindDate
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Cell is a single untyped scalar read from a spreadsheet.
// The zero value is an empty cell.
type Cell struct {
	Kind   Kind
	Text   string
	Number float64
	Time   time.Time
	Bool   bool
}

// TextCell builds a text cell, or an empty cell for blank input.
func TextCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{}
	}
	return Cell{Kind: KindText, Text: s}
}

// NumberCell builds a numeric cell.
func NumberCell(f float64) Cell {
	return Cell{Kind: KindNumber, Number: f}
}

// DateCell builds a date cell.
func DateCell(t time.Time) Cell {
	return Cell{Kind: KindDate, Time: t}
}

// BoolCell builds a boolean cell.
func BoolCell(b bool) Cell {
	return Cell{Kind: KindBool, Bool: b}
}

// IsEmpty reports whether the cell holds no value. Whitespace-only text
// counts as empty.
func (c Cell) IsEmpty() bool {
	switch c.Kind {
	case KindEmpty:
		return true
	case KindText:
		return strings.TrimSpace(c.Text) == ""
	default:
		return false
	}
}

// String renders the cell as text: numbers without exponent, dates as
// YYYY-MM-DD, bools as true/false.
func (c Cell) String() string {
	switch c.Kind {
	case KindText:
		return c.Text
	case KindNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case KindDate:
		return c.Time.Format("2006-01-02")
	case KindBool:
		return strconv.FormatBool(c.Bool)
	default:
		return ""
	}
}

// RawRow is one source row. Index is the 1-based row number in the file.
type RawRow struct {
	Index int
	Cells []Cell
}

// Cell returns the cell at position i, or an empty cell when the row is
// shorter than i+1.
func (r RawRow) Cell(i int) Cell {
	if i < 0 || i >= len(r.Cells) {
		return Cell{}
	}
	return r.Cells[i]
}

// IsBlank reports whether every cell in the row is empty.
func (r RawRow) IsBlank() bool {
	for _, c := range r.Cells {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// SerialToTime converts an Excel serial date number to a time in UTC.
func SerialToTime(serial float64) (time.Time, error) {
	return excelize.ExcelDateToTime(serial, false)
}

// typedCell converts a raw xlsx value into a Cell using the stored cell type.
// Formula cells carry their cached value.
func typedCell(raw string, typ excelize.CellType) Cell {
	if strings.TrimSpace(raw) == "" {
		return Cell{}
	}

	switch typ {
	case excelize.CellTypeBool:
		return BoolCell(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeDate:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return DateCell(t)
			}
		}
		return TextCell(raw)
	case excelize.CellTypeNumber, excelize.CellTypeUnset, excelize.CellTypeFormula:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return NumberCell(f)
		}
		return TextCell(raw)
	default:
		return TextCell(raw)
	}
}
