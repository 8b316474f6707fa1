package services

import (
	"errors"

	"github.com/baharkarakas/circulation-backend/internal/validate"
)

// Kind classifies a service error for callers that map it onto a transport.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindPrecondition    Kind = "precondition"
	KindUnavailable     Kind = "unavailable"
	KindConsistency     Kind = "consistency"
)

// Error is a typed refusal with a stable code and message. Two Errors match under
// errors.Is when their codes are equal, so sentinels can carry per-call details.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details any
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// With returns a copy of e carrying details.
func (e *Error) With(details any) *Error {
	c := *e
	c.Details = details
	return &c
}

var (
	ErrInvalidRequest = &Error{Kind: KindValidation, Code: "invalid_request", Message: "request is invalid"}

	ErrInvalidCredentials = &Error{Kind: KindUnauthenticated, Code: "invalid_credentials", Message: "invalid credentials"}

	ErrForbidden = &Error{Kind: KindForbidden, Code: "forbidden", Message: "not permitted for this account"}

	ErrAccountNotFound = &Error{Kind: KindNotFound, Code: "account_not_found", Message: "account not found"}
	ErrBookNotFound    = &Error{Kind: KindNotFound, Code: "book_not_found", Message: "book not found"}
	ErrLoanNotFound    = &Error{Kind: KindNotFound, Code: "loan_not_found", Message: "loan not found"}

	ErrAccountNotApproved  = &Error{Kind: KindPrecondition, Code: "account_not_approved", Message: "account is not approved for borrowing"}
	ErrNoCopiesAvailable   = &Error{Kind: KindPrecondition, Code: "no_copies_available", Message: "no copies of this book are available"}
	ErrLoanAlreadyReturned = &Error{Kind: KindPrecondition, Code: "loan_already_returned", Message: "loan has already been returned"}
	ErrAlreadyDecided      = &Error{Kind: KindPrecondition, Code: "already_decided", Message: "account approval has already been decided"}
	ErrInvalidTransition   = &Error{Kind: KindPrecondition, Code: "invalid_transition", Message: "account state does not allow this change"}
	ErrCopiesInUse         = &Error{Kind: KindPrecondition, Code: "copies_in_use", Message: "more copies are on loan than the requested total"}
	ErrAlreadyExists       = &Error{Kind: KindPrecondition, Code: "already_exists", Message: "a record with the same unique key already exists"}

	ErrStoreBusy = &Error{Kind: KindUnavailable, Code: "store_busy", Message: "store is busy, try again"}

	ErrConsistency = &Error{Kind: KindConsistency, Code: "consistency_violation", Message: "stored circulation state is inconsistent"}
)

// invalid wraps a validation failure so its field errors travel as details.
func invalid(err error) error {
	var errs validate.Errs
	if errors.As(err, &errs) {
		return ErrInvalidRequest.With(errs)
	}
	return ErrInvalidRequest.With([]validate.ErrField{{Field: "request", Msg: err.Error()}})
}

// KindOf reports the Kind of err, or "" when err is not a service error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
