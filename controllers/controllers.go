package controllers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/blogem/memorial-registry/apperr"
	"github.com/blogem/memorial-registry/logging"
	"github.com/blogem/memorial-registry/services"
)

// ErrorResponse is the JSON body of every error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Options carries HTTP-level settings into the controllers
type Options struct {
	Search         services.FuzzyOptions
	ImportMaxBytes int64
	AdminEmails    []string
}

// Controllers holds all controller instances
type Controllers struct {
	Auth     *AuthController
	Search   *SearchController
	Records  *RecordController
	Transfer *TransferController
	Audit    *AuditController
	Backup   *BackupController
}

// NewControllers creates and initializes all controller instances
func NewControllers(services *services.Services, opts Options) *Controllers {
	return &Controllers{
		Auth:     NewAuthController(services, opts.AdminEmails),
		Search:   NewSearchController(services, opts.Search),
		Records:  NewRecordController(services),
		Transfer: NewTransferController(services, opts.ImportMaxBytes),
		Audit:    NewAuditController(services),
		Backup:   NewBackupController(services),
	}
}

// statusFor maps an error kind to its HTTP status
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindImportFormat:
		return http.StatusBadRequest
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as a JSON error response. Server-side failures are
// logged with their full cause; the client only sees the safe message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)

	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"code", string(kind),
		"error", err.Error(),
	)

	writeJSON(w, r, status, ErrorResponse{
		Error:   string(kind),
		Message: apperr.MessageOf(err),
	})
}

// writeJSON encodes v as the response body with the given status
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}

// decodeJSON reads a JSON request body into v
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("invalid request body: " + err.Error())
	}
	return nil
}
