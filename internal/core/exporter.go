package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/ClientImport/internal/schema"
	"github.com/JonMunkholm/ClientImport/internal/sheet"
)

// HeaderWriter writes a header-only spreadsheet to w.
type HeaderWriter func(w io.Writer, format sheet.Format, sheetName string, columns []string) error

// Exporter writes blank templates. Files are written next to the target and
// renamed into place, so a failed export never leaves a partial file.
type Exporter struct {
	write HeaderWriter
}

// NewExporter creates an exporter backed by the sheet codec.
func NewExporter() *Exporter {
	return &Exporter{write: sheet.WriteHeader}
}

// Export writes a template for spec to path: one header row holding the
// column names in template order and nothing else. The format follows the
// file extension; a path without extension gets xlsx.
func (e *Exporter) Export(path string, spec schema.TemplateSpec) error {
	format := sheet.FormatXLSX
	if filepath.Ext(path) != "" {
		f, err := sheet.FormatFromPath(path)
		if err != nil {
			return &WriteError{Path: path, Err: err}
		}
		format = f
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return &WriteError{Path: path, Err: errors.New("target is a directory")}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := e.write(tmp, format, spec.SheetName, spec.ColumnNames()); err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("encode: %w", err)}
	}
	if err := tmp.Sync(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	committed = true
	return nil
}
