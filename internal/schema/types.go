// Package schema defines the column contract shared by the import parser and
// the template exporter. A TemplateSpec is the only place column names, order,
// types and required flags are declared.
package schema

import (
	"fmt"
	"strings"
)

// DataType is the expected type of a spreadsheet column.
type DataType int

const (
	TypeText DataType = iota
	TypeNumber
	TypeDate
	TypeBool
)

// String returns the lowercase type name used in messages and the API.
func (t DataType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeNumber:
		return "number"
	case TypeDate:
		return "date"
	case TypeBool:
		return "bool"
	default:
		return "value"
	}
}

// MarshalText renders the type name for JSON output.
func (t DataType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Column describes a single template column.
type Column struct {
	Name        string   `json:"name"`     // Header text, also the field name on parsed records
	Type        DataType `json:"type"`     // Expected cell type
	Required    bool     `json:"required"` // Header must exist and every row needs a value
	Description string   `json:"description,omitempty"`
}

// TemplateSpec is an ordered column set for one import type.
type TemplateSpec struct {
	Key       string   `json:"key"`       // Registry key: "clients"
	Label     string   `json:"label"`     // Display name: "Clients"
	SheetName string   `json:"sheetName"` // Worksheet name used by exported templates
	KeyColumn string   `json:"keyColumn"` // Column used for duplicate detection
	Columns   []Column `json:"columns"`
}

// ColumnNames returns the header names in template order.
func (s TemplateSpec) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by exact name.
func (s TemplateSpec) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Index returns the template position of a column, or -1.
func (s TemplateSpec) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// RequiredColumns returns the names of all required columns in template order.
func (s TemplateSpec) RequiredColumns() []string {
	var out []string
	for _, c := range s.Columns {
		if c.Required {
			out = append(out, c.Name)
		}
	}
	return out
}

// Validate checks the spec is usable: non-empty, unique normalized names,
// and a key column that exists.
func (s TemplateSpec) Validate() error {
	if s.Key == "" {
		return fmt.Errorf("template spec has no key")
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("template spec %s has no columns", s.Key)
	}

	seen := make(map[string]string, len(s.Columns))
	for _, c := range s.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("template spec %s has a column without a name", s.Key)
		}
		norm := NormalizeHeader(c.Name)
		if prev, ok := seen[norm]; ok {
			return fmt.Errorf("template spec %s: columns %q and %q collide", s.Key, prev, c.Name)
		}
		seen[norm] = c.Name
	}

	if s.KeyColumn != "" {
		if _, ok := s.Column(s.KeyColumn); !ok {
			return fmt.Errorf("template spec %s: key column %q not found", s.Key, s.KeyColumn)
		}
	}
	return nil
}

// NormalizeHeader folds a header cell for matching: trimmed, lowercased, with
// spaces, underscores and dashes removed. "Tax Identifier", "tax_identifier"
// and "taxIdentifier" all normalize to "taxidentifier".
func NormalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t':
			return -1
		}
		return r
	}, s)
}
