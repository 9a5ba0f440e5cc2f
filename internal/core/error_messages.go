package core

// error_messages.go maps technical errors to messages users can act on.
//
// Every message carries a code for support reference:
//
//	FILE001  File too large               "file too large"
//	FILE002  Unsupported or unreadable    *FileFormatError, "unsupported file format"
//	FILE003  Encoding problem             "invalid utf-8", "encoding error"
//	FILE004  No file in the request       "no file provided"
//	FILE005  No data rows                 *EmptyFileError
//	FILE006  Template could not be saved  *WriteError
//	FILE007  Broken CSV                   "invalid csv"
//	VAL004   Missing required columns     *FileFormatError with Missing
//	VAL005   No header row found          "no header row"
//	VAL006   Unknown template             "unknown template"
//	IMP001   Too many imports             ErrTooManyImports
//	IMP002   Cancelled                    context.Canceled
//	IMP003   Timed out                    context.DeadlineExceeded
//	IMP004   Commit failed                "commit"
//	DB001    Duplicate key                ErrKeyConflict, "duplicate key", "violates unique"
//	DB002    Connection refused           "connection refused"
//	DB003    Connection reset             "connection reset"
//	DB004    No database configured       "database not configured"
//	ERR000   Anything else; check the logs for the technical error.
//
// Typed errors are matched first with errors.As and errors.Is. The remaining
// patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgFileFormat = UserMessage{
		Message: "The file could not be read as a spreadsheet",
		Action:  "Upload an .xlsx or .csv file saved from the import template",
		Code:    "FILE002",
	}
	msgEmptyFile = UserMessage{
		Message: "The file has no client rows",
		Action:  "Add at least one row below the header and try again",
		Code:    "FILE005",
	}
	msgWrite = UserMessage{
		Message: "The template could not be saved",
		Action:  "Check that the folder exists and is writable",
		Code:    "FILE006",
	}
	msgMissingColumns = UserMessage{
		Message: "Required columns are missing from the header",
		Action:  "Download the template and keep its header row",
		Code:    "VAL004",
	}
	msgKeyConflict = UserMessage{
		Message: "A client with this tax identifier was stored while the file was being imported",
		Action:  "Import the file again; stored clients will be reported as duplicates",
		Code:    "DB001",
	}
	msgBusy = UserMessage{
		Message: "The system is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "IMP001",
	}
	msgCancelled = UserMessage{
		Message: "The import was cancelled",
		Action:  "Start the import again when ready",
		Code:    "IMP002",
	}
	msgTimeout = UserMessage{
		Message: "The import took too long",
		Action:  "Split the file into smaller parts or try again later",
		Code:    "IMP003",
	}
)

var errorPatterns = []errorPattern{
	// Database
	{"duplicate key", UserMessage{"A client with this tax identifier already exists", "Preview the file to see which rows are duplicates", "DB001"}},
	{"violates unique", UserMessage{"A client with this tax identifier already exists", "Preview the file to see which rows are duplicates", "DB001"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB002"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB003"}},
	{"database not configured", UserMessage{"Imports cannot be saved on this server", "Use preview, or ask an administrator to configure DATABASE_URL", "DB004"}},

	// Files
	{"file too large", UserMessage{"File exceeds the maximum size limit", "Split the file into smaller parts", "FILE001"}},
	{"unsupported file format", UserMessage{"This file type is not supported", "Upload an .xlsx or .csv file", "FILE002"}},
	{"invalid utf-8", UserMessage{"File contains invalid characters", "Save the file with UTF-8 encoding", "FILE003"}},
	{"encoding error", UserMessage{"File contains invalid characters", "Save the file with UTF-8 encoding", "FILE003"}},
	{"no file provided", UserMessage{"No file was selected", "Please select a spreadsheet to upload", "FILE004"}},
	{"invalid csv", UserMessage{"File is not a valid CSV", "Ensure the file is comma-separated with quoted text", "FILE007"}},

	// Header and template
	{"no header row", UserMessage{"No header row was found near the top of the file", "Put the column names in the first row", "VAL005"}},
	{"unknown template", UserMessage{"Unknown import template", "Choose one of the listed templates", "VAL006"}},

	// Import
	{"commit", UserMessage{"Validated clients could not be saved", "Please try again; nothing was saved", "IMP004"}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// A nil error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	if msg, ok := mapTyped(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

func mapTyped(err error) (UserMessage, bool) {
	var (
		ff *FileFormatError
		ef *EmptyFileError
		we *WriteError
	)
	switch {
	case errors.Is(err, ErrKeyConflict):
		return msgKeyConflict, true
	case errors.Is(err, ErrTooManyImports):
		return msgBusy, true
	case errors.Is(err, context.Canceled):
		return msgCancelled, true
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout, true
	case errors.As(err, &ef):
		return msgEmptyFile, true
	case errors.As(err, &we):
		return msgWrite, true
	case errors.As(err, &ff):
		if len(ff.Missing) > 0 {
			m := msgMissingColumns
			m.Message += ": " + strings.Join(ff.Missing, ", ")
			return m, true
		}
		// Let the cause pick a more specific file message when it has one.
		if ff.Err != nil {
			if m := MapError(ff.Err); m.Code != defaultMessage.Code {
				return m, true
			}
		}
		if strings.Contains(ff.Reason, "no header row") {
			return MapError(errors.New(ff.Reason)), true
		}
		return msgFileFormat, true
	}
	return UserMessage{}, false
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
