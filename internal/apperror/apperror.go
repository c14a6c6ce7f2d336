// Package apperror defines the closed set of failure kinds every service
// pipeline funnels into, and the single mapping from kind to a user-safe
// message. Underlying causes are kept for logging only and never surface to
// callers.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	// KindStore is a transport/driver failure. The cause is opaque to callers.
	KindStore Kind = iota
	KindNotFound
	KindArchived
	KindUnauthorized
	KindValidation
)

type Error struct {
	Kind  Kind
	Op    string // operation that failed, e.g. "projects.create"
	Cause error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Cause)
	case e.Cause != nil:
		return e.Cause.Error()
	case e.Op != "":
		return e.Op + ": " + Message(e)
	}
	return Message(e)
}

func (e *Error) Unwrap() error { return e.Cause }

func Store(op string, cause error) *Error {
	return &Error{Kind: KindStore, Op: op, Cause: cause}
}

func NotFound(op string) *Error { return &Error{Kind: KindNotFound, Op: op} }

func Archived(op string) *Error { return &Error{Kind: KindArchived, Op: op} }

func Unauthorized(op string) *Error { return &Error{Kind: KindUnauthorized, Op: op} }

func Validation(op string, cause error) *Error {
	return &Error{Kind: KindValidation, Op: op, Cause: cause}
}

// KindOf classifies any error. Unknown errors count as store failures, which
// keeps driver errors behind the generic message.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStore
}

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

func IsArchived(err error) bool { return KindOf(err) == KindArchived }

// User-facing messages. One generic message covers every store failure
// regardless of cause.
const (
	MsgGeneral      = "Something went wrong. Please try again later."
	MsgNotFound     = "The requested data could not be found."
	MsgArchived     = "This project is archived and can no longer be modified."
	MsgUnauthorized = "You must be signed in to perform this action."
	MsgValidation   = "The submitted data is invalid."
)

func Message(err error) string {
	switch KindOf(err) {
	case KindNotFound:
		return MsgNotFound
	case KindArchived:
		return MsgArchived
	case KindUnauthorized:
		return MsgUnauthorized
	case KindValidation:
		return MsgValidation
	default:
		return MsgGeneral
	}
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindArchived:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
