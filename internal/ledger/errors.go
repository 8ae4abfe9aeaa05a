package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers deciding how to react to it.
type Kind string

const (
	// KindValidation is the caller's fault and recoverable by correcting input. Never retried.
	KindValidation Kind = "validation"
	// KindReference means an id points at something missing, inactive, or of the wrong shape.
	KindReference Kind = "reference"
	// KindState means the operation is not allowed in the target's current state.
	KindState Kind = "state"
	// KindConcurrency means a posting lost a race. Safe to retry from a fresh read.
	KindConcurrency Kind = "concurrency"
	// KindComputation signals broken arithmetic or a stored invariant that no longer holds.
	KindComputation Kind = "computation"
)

// Account errors
var (
	ErrInvalidAccountCode  = errors.New("invalid account code")
	ErrInvalidAccountName  = errors.New("invalid account name")
	ErrInvalidAccountType  = errors.New("invalid account type")
	ErrGroupOpeningBalance = errors.New("group account cannot carry an opening balance")
	ErrDuplicateCode       = errors.New("account code already exists")
	ErrInvalidParent       = errors.New("parent must be an existing group account")
	ErrCycleDetected       = errors.New("account hierarchy would contain a cycle")
	ErrHierarchyTooDeep    = errors.New("account hierarchy exceeds maximum depth")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountInUse        = errors.New("account has ledger entries or children")
	ErrImmutableAccount    = errors.New("account code and type are fixed once ledger entries exist")
)

// Journal errors
var (
	ErrEmptyEntry       = errors.New("journal entry has no lines")
	ErrInvalidLine      = errors.New("line must have exactly one non-negative, nonzero side")
	ErrInvalidAmount    = errors.New("amount has more than 2 decimal places")
	ErrUnbalanced       = errors.New("journal entry debits and credits do not balance")
	ErrInvalidAccount   = errors.New("line must reference an active, non-group account")
	ErrEntryNotFound    = errors.New("journal entry not found")
	ErrAlreadyPosted    = errors.New("journal entry is already posted")
	ErrNotPosted        = errors.New("journal entry is not posted")
	ErrBackdatedPosting = errors.New("entry date precedes the account's latest ledger entry")
	ErrPostingConflict  = errors.New("concurrent posting on the same account")
)

// Projection errors
var (
	ErrBalanceMismatch = errors.New("stored running balance does not match replayed ledger")
	ErrInvalidRange    = errors.New("date range start is after its end")
)

// Document errors
var (
	ErrInvalidDocumentType = errors.New("invalid document type")
	ErrUnknownDocumentType = errors.New("no handler registered for document type")
)

// Error carries the kind of a failure together with the offending field or id.
type Error struct {
	Kind  Kind
	Field string
	ID    string
	Err   error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Err.Error()
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.ID != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.ID)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified error. field and id may be empty.
func NewError(kind Kind, err error, field, id string) *Error {
	return &Error{Kind: kind, Field: field, ID: id, Err: err}
}

func validationError(err error, field string) *Error {
	return NewError(KindValidation, err, field, "")
}

func referenceError(err error, field, id string) *Error {
	return NewError(KindReference, err, field, id)
}

func stateError(err error, id string) *Error {
	return NewError(KindState, err, "", id)
}

// KindOf returns the kind of the first classified error in err's chain, or ""
// when err is nil or unclassified (an infrastructure failure).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether the caller may re-issue the whole operation.
func IsRetryable(err error) bool {
	return KindOf(err) == KindConcurrency
}
