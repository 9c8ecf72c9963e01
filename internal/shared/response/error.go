package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"holdings-server/internal/shared/errors"
)

// ErrorResponse represents the JSON error response sent to clients
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type errorPolicy struct {
	status int
	level  slog.Level
	title  string
}

// Client mistakes stay at debug; ESI trouble is transient and expected, so
// it is a warning rather than an error.
var policies = map[errors.ErrorType]errorPolicy{
	errors.ErrorTypeNotFound:         {http.StatusNotFound, slog.LevelDebug, "Resource not found"},
	errors.ErrorTypeValidation:       {http.StatusBadRequest, slog.LevelDebug, "Validation error"},
	errors.ErrorTypeMethodNotAllowed: {http.StatusMethodNotAllowed, slog.LevelDebug, "Method not allowed"},
	errors.ErrorTypeUnauthorized:     {http.StatusUnauthorized, slog.LevelWarn, "Authorization error"},
	errors.ErrorTypeForbidden:        {http.StatusForbidden, slog.LevelWarn, "Authorization error"},
	errors.ErrorTypeUnavailable:      {http.StatusServiceUnavailable, slog.LevelInfo, "Data not available yet"},
	errors.ErrorTypeExternal:         {http.StatusBadGateway, slog.LevelWarn, "ESI request failed"},
}

var internalPolicy = errorPolicy{http.StatusInternalServerError, slog.LevelError, "Internal server error"}

func policyFor(err error) (errors.ErrorType, errorPolicy) {
	errorType := errors.GetType(err)
	if p, ok := policies[errorType]; ok {
		return errorType, p
	}
	return errorType, internalPolicy
}

// Error logs an error and sends a JSON error response to the client.
// Handlers report failures through here only.
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ErrorWithMessage(w, r, logger, err, err.Error())
}

// ErrorWithMessage logs the actual error but shows clientMessage to the client
func ErrorWithMessage(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, clientMessage string) {
	errorType, p := policyFor(err)

	logger.Log(r.Context(), p.level, p.title,
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"error_type", errorType,
		"status_code", p.status,
		"error", err,
	)

	writeJSON(w, p.status, ErrorResponse{
		Error:   string(errorType),
		Message: clientMessage,
		Code:    p.status,
	})
}

// Success sends a JSON success response to the client
func Success(w http.ResponseWriter, statusCode int, data interface{}) {
	if data == nil {
		w.WriteHeader(statusCode)
		return
	}
	writeJSON(w, statusCode, data)
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	// the status line is already out, nothing useful to do on failure
	_ = json.NewEncoder(w).Encode(v)
}
