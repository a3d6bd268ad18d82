// Package apperror defines the ingestion and query error taxonomy and its
// mapping onto HTTP statuses. Every terminal ingestion failure is one of
// these kinds; anything else surfacing at the API boundary is a 500.
package apperror

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/pkg/errors"
)

type Kind string

const (
	KindInvalidFileType  Kind = "INVALID_FILE_TYPE"
	KindFileTooLarge     Kind = "FILE_TOO_LARGE"
	KindUnreadableInput  Kind = "UNREADABLE_CSV"
	KindMissingColumns   Kind = "MISSING_COLUMNS"
	KindEmptyInput       Kind = "EMPTY_CSV"
	KindInvalidAmount    Kind = "INVALID_AMOUNT"
	KindInvalidTimestamp Kind = "INVALID_TIMESTAMP"
	KindUserNotFound     Kind = "USER_NOT_FOUND"
)

var statusMap = map[Kind]int{
	KindInvalidFileType:  http.StatusBadRequest,
	KindFileTooLarge:     http.StatusRequestEntityTooLarge,
	KindUnreadableInput:  http.StatusBadRequest,
	KindMissingColumns:   http.StatusUnprocessableEntity,
	KindEmptyInput:       http.StatusUnprocessableEntity,
	KindInvalidAmount:    http.StatusUnprocessableEntity,
	KindInvalidTimestamp: http.StatusUnprocessableEntity,
	KindUserNotFound:     http.StatusNotFound,
}

// Status returns the HTTP status for a kind, defaulting to 400 for kinds
// outside the table.
func Status(kind Kind) int {
	if status, ok := statusMap[kind]; ok {
		return status
	}
	return http.StatusBadRequest
}

type Error struct {
	Kind   Kind
	Detail string
	cause  error
}

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(err error, kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, cause: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// IsKind reports whether err is (or wraps) a taxonomy error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// ToHuma converts an error into a huma status error. Taxonomy errors map to
// their table status with the kind as the message; anything else is a 500.
func ToHuma(err error) error {
	var appErr *Error
	if errors.As(err, &appErr) {
		if appErr.Detail != "" {
			return huma.NewError(Status(appErr.Kind), string(appErr.Kind), errors.New(appErr.Detail))
		}
		return huma.NewError(Status(appErr.Kind), string(appErr.Kind))
	}
	return huma.NewError(http.StatusInternalServerError, "internal error", err)
}
