package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/ClientImport/internal/sheet"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"missing columns", &FileFormatError{Path: "a.xlsx", Row: 1, Missing: []string{"taxIdentifier"}}, "VAL004"},
		{"unreadable file", &FileFormatError{Path: "a.xlsx", Reason: "cannot read file", Err: errors.New("zip: not a valid zip file")}, "FILE002"},
		{"too large through file error", &FileFormatError{Reason: "cannot read file", Err: fmt.Errorf("%w: 10 bytes", sheet.ErrFileTooLarge)}, "FILE001"},
		{"unsupported format", &FileFormatError{Err: sheet.ErrUnsupportedFormat}, "FILE002"},
		{"broken csv", &FileFormatError{Err: errors.New("invalid csv: bare quote")}, "FILE007"},
		{"no header row", &FileFormatError{Reason: "no header row in the first 20 rows"}, "VAL005"},
		{"empty file", &EmptyFileError{Path: "a.csv", HeaderRow: 1}, "FILE005"},
		{"write error", &WriteError{Path: "t.xlsx", Err: errors.New("permission denied")}, "FILE006"},
		{"too many imports", fmt.Errorf("preview: %w", ErrTooManyImports), "IMP001"},
		{"cancelled", context.Canceled, "IMP002"},
		{"timed out", fmt.Errorf("import: %w", context.DeadlineExceeded), "IMP003"},
		{"commit failure", errors.New("commit 3 records: tx closed"), "IMP004"},
		{"key conflict on commit", fmt.Errorf("commit 2 records: %w", fmt.Errorf("copy clients: %w: %w", ErrKeyConflict, errors.New("tx aborted"))), "DB001"},
		{"duplicate key", errors.New("ERROR: duplicate key value violates unique constraint"), "DB001"},
		{"connection refused", errors.New("dial tcp: connection refused"), "DB002"},
		{"no database", errors.New("database not configured"), "DB004"},
		{"unknown template", errors.New(`unknown template "vendors"`), "VAL006"},
		{"no file", errors.New("no file provided"), "FILE004"},
		{"case insensitive", errors.New("FILE TOO LARGE"), "FILE001"},
		{"unknown error returns default", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			if tt.err != nil {
				assert.NotEmpty(t, got.Message)
				assert.NotEmpty(t, got.Action)
			}
		})
	}
}

func TestMapErrorNamesMissingColumns(t *testing.T) {
	got := MapError(&FileFormatError{Missing: []string{"name", "taxIdentifier"}})
	assert.Contains(t, got.Message, "name, taxIdentifier")
}

func TestFormatUserError(t *testing.T) {
	assert.Equal(t, "", FormatUserError(nil))
	assert.Equal(t,
		"The system is busy processing other imports (Code: IMP001). Please wait a moment and try again",
		FormatUserError(ErrTooManyImports),
	)
}

func TestIsUserFacing(t *testing.T) {
	assert.False(t, IsUserFacing(nil))
	assert.True(t, IsUserFacing(&EmptyFileError{}))
	assert.False(t, IsUserFacing(errors.New("segfault")))
}

func TestNewUserError(t *testing.T) {
	assert.Nil(t, NewUserError(nil))

	cause := &WriteError{Path: "t.xlsx", Err: errors.New("read-only file system")}
	ue := NewUserError(cause)
	assert.Equal(t, "FILE006", ue.User.Code)
	assert.Equal(t, ue.User.Message, ue.Error())
	assert.ErrorIs(t, ue, cause)
}
