package core

// convert.go turns spreadsheet cells into typed field values.
//
// Spreadsheets arrive in every shape users can produce:
//   - Multiple date formats (US, EU, ISO, Excel serials)
//   - Currency symbols and thousand separators in numbers
//   - Various boolean representations (yes/no, true/false, 1/0)
//   - Excel formula prefixes (="value")
//
// Conversion never fails the parse. A cell that cannot be converted keeps its
// text and records the reason in FieldValue.CoerceErr.

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/JonMunkholm/ClientImport/internal/schema"
	"github.com/JonMunkholm/ClientImport/internal/sheet"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are moved
// to the previous century.
var TwoDigitYearPivot = 20

// Excel serials outside this window are treated as plain numbers, not dates.
const (
	minDateSerial = 1       // 1900-01-01
	maxDateSerial = 2958465 // 9999-12-31
)

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "02-Jan-2006",
		"2006-01-02T15:04:05", "2006-01-02 15:04:05",
		"20060102",
	}
)

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, an Excel text formula wrapper (="...") and one
// matched pair of surrounding double quotes. Apostrophes and a bare leading
// "=" are part of the value and are kept.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	switch {
	case len(s) >= 3 && strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`):
		s = s[2 : len(s)-1]
	case len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`):
		s = s[1 : len(s)-1]
	}

	return strings.TrimSpace(s)
}

// ParseNumber parses a user-formatted number. Currency symbols, thousands
// separators and accounting parentheses are accepted.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "").Replace(s)
	s = strings.TrimSpace(s)
	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return 0, false
	}
	n, err := cast.ToFloat64E(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseDate parses a date written in any of the supported layouts.
// Two-digit years are resolved with TwoDigitYearPivot against today.
func ParseDate(s string) (time.Time, bool) {
	return ParseDateAt(s, time.Now())
}

// ParseDateAt is ParseDate with two-digit years resolved relative to now.
func ParseDateAt(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}

	pivotYear := now.Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return truncateDay(t), true
		}
	}

	// RFC 3339 and the other layouts cast knows about.
	if t, err := cast.ToTimeInDefaultLocationE(s, time.UTC); err == nil {
		return truncateDay(t), true
	}
	return time.Time{}, false
}

// ParseBool accepts true/false, yes/no, t/f, y/n and 1/0 in any case.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// coerceCell converts one cell to the column's type. now anchors two-digit
// years in text dates.
func coerceCell(cell sheet.Cell, col schema.Column, now time.Time) FieldValue {
	v := FieldValue{Column: col.Name, Type: col.Type}
	if cell.IsEmpty() {
		return v
	}

	v.Raw = CleanCell(cell.String())
	if v.Raw == "" {
		return v
	}
	v.Present = true

	switch col.Type {
	case schema.TypeText:
		v.Text = v.Raw

	case schema.TypeNumber:
		switch cell.Kind {
		case sheet.KindNumber:
			v.Number = cell.Number
		case sheet.KindText:
			n, ok := ParseNumber(v.Raw)
			if !ok {
				v.CoerceErr = fmt.Sprintf("%q is not a number", v.Raw)
				break
			}
			v.Number = n
		default:
			v.CoerceErr = fmt.Sprintf("expected a number, got %s", cell.Kind)
		}

	case schema.TypeDate:
		switch cell.Kind {
		case sheet.KindDate:
			v.Time = truncateDay(cell.Time)
		case sheet.KindNumber:
			if cell.Number < minDateSerial || cell.Number > maxDateSerial {
				v.CoerceErr = fmt.Sprintf("%s is not a date", v.Raw)
				break
			}
			t, err := sheet.SerialToTime(cell.Number)
			if err != nil {
				v.CoerceErr = fmt.Sprintf("%s is not a date", v.Raw)
				break
			}
			v.Time = truncateDay(t)
		case sheet.KindText:
			t, ok := ParseDateAt(v.Raw, now)
			if !ok {
				v.CoerceErr = fmt.Sprintf("%q is not a recognized date", v.Raw)
				break
			}
			v.Time = t
		default:
			v.CoerceErr = fmt.Sprintf("expected a date, got %s", cell.Kind)
		}

	case schema.TypeBool:
		switch cell.Kind {
		case sheet.KindBool:
			v.Bool = cell.Bool
		case sheet.KindNumber, sheet.KindText:
			b, ok := ParseBool(v.Raw)
			if !ok {
				v.CoerceErr = fmt.Sprintf("%q is not yes/no", v.Raw)
				break
			}
			v.Bool = b
		default:
			v.CoerceErr = fmt.Sprintf("expected yes/no, got %s", cell.Kind)
		}
	}

	return v
}
