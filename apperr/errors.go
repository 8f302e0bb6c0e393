// Package apperr defines the error kinds surfaced by the registry services.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to react to it (HTTP status, CLI exit code).
type Kind string

const (
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindNotFound     Kind = "NOT_FOUND"
	KindImportFormat Kind = "IMPORT_FORMAT"
	KindValidation   Kind = "VALIDATION"
	KindStorage      Kind = "STORAGE"
	KindInternal     Kind = "INTERNAL"
)

// Error is a classified application error
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, apperr.ErrNotFound) works
// for any not-found error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrImportFormat = &Error{Kind: KindImportFormat}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrStorage      = &Error{Kind: KindStorage}
)

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// ImportFormat wraps a parse failure of a bulk import document.
func ImportFormat(message string, err error) *Error {
	return &Error{Kind: KindImportFormat, Message: message, Err: err}
}

// Storage wraps an underlying persistence failure.
func Storage(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns a message safe to show to a client.
// Unclassified errors get a generic message.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		if appErr.Kind == KindStorage {
			return appErr.Message
		}
		return appErr.Error()
	}
	return "an unexpected error occurred"
}
