package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/ClientImport/internal/core"
	"github.com/JonMunkholm/ClientImport/internal/logging"
)

// ErrorResponse is the JSON body of every error response. Code is the
// stable machine-readable identifier.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// codeStatus maps core error codes to HTTP statuses. Unlisted codes are
// server errors.
var codeStatus = map[string]int{
	"DB001":   http.StatusConflict,
	"DB002":   http.StatusServiceUnavailable,
	"DB003":   http.StatusServiceUnavailable,
	"DB004":   http.StatusServiceUnavailable,
	"FILE001": http.StatusRequestEntityTooLarge,
	"FILE002": http.StatusUnsupportedMediaType,
	"FILE003": http.StatusUnprocessableEntity,
	"FILE004": http.StatusBadRequest,
	"FILE005": http.StatusUnprocessableEntity,
	"FILE007": http.StatusUnprocessableEntity,
	"VAL004":  http.StatusUnprocessableEntity,
	"VAL005":  http.StatusUnprocessableEntity,
	"VAL006":  http.StatusNotFound,
	"IMP001":  http.StatusServiceUnavailable,
	"IMP002":  http.StatusRequestTimeout,
	"IMP003":  http.StatusGatewayTimeout,
}

// statusFor picks the HTTP status for an error from its mapped code.
func statusFor(msg core.UserMessage) int {
	if status, ok := codeStatus[msg.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError logs err with the request id and writes its user-facing
// message. A zero status is derived from the error code.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)
	if status == 0 {
		status = statusFor(msg)
	}
	if errors.Is(err, core.ErrTooManyImports) {
		w.Header().Set("Retry-After", "5")
	}

	logging.FromContext(r.Context()).Warn("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	)

	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeError writes an error that did not come from the pipeline.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message, action string) {
	logging.FromContext(r.Context()).Warn("request rejected",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", code,
	)
	writeJSON(w, status, ErrorResponse{Error: message, Message: message, Action: action, Code: code})
}
