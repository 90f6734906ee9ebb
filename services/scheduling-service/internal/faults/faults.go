// Package faults classifies the expected, recoverable failures of the
// scheduling core. Every kind maps to an HTTP status at the handler layer;
// none of them is ever treated as fatal.
package faults

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation: malformed input the caller can fix (off-grid time,
	// empty selection, count mismatch against the product entitlement).
	KindValidation
	// KindAuthorization: the caller's role or identity does not match the
	// operation (non-member checkout, self-approval).
	KindAuthorization
	// KindNotFound: referenced booking/session/request is missing or not
	// visible to the caller.
	KindNotFound
	// KindConflict: requested slots collide with occupied slots, or a second
	// pending change request was attempted.
	KindConflict
	// KindCutoff: operation attempted outside its time window (24h creation
	// cutoff, 48h response expiry).
	KindCutoff
)

type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...any) error {
	return newf(KindValidation, format, args...)
}

func Denied(format string, args ...any) error {
	return newf(KindAuthorization, format, args...)
}

func NotFound(format string, args ...any) error {
	return newf(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) error {
	return newf(KindConflict, format, args...)
}

func Cutoff(format string, args ...any) error {
	return newf(KindCutoff, format, args...)
}

func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

func Is(err error, k Kind) bool { return KindOf(err) == k }

// HTTPStatus maps a classified error to the response status the handlers
// emit. Unclassified errors are internal.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindCutoff:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
