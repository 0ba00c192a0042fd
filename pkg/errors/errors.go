package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones of a sentinel
// still match it with errors.Is.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for the lifecycle engine taxonomy.
var (
	ErrUnauthenticated   = New("UNAUTHENTICATED", http.StatusUnauthorized, "authentication required")
	ErrTenantMismatch    = New("TENANT_MISMATCH", http.StatusForbidden, "tenant mismatch")
	ErrInsufficientRole  = New("INSUFFICIENT_ROLE", http.StatusForbidden, "insufficient role")
	ErrNotOwner          = New("NOT_OWNER", http.StatusForbidden, "not the record owner")
	ErrSelfDeletion      = New("SELF_DELETION", http.StatusForbidden, "actors cannot delete themselves")
	ErrWrongState        = New("WRONG_STATE", http.StatusConflict, "record is not in an editable state")
	ErrInvalidTransition = New("INVALID_TRANSITION", http.StatusConflict, "transition not allowed from current state")
	ErrDuplicateRecord   = New("DUPLICATE_RECORD", http.StatusConflict, "a record with the same key already exists")
	ErrNotFound          = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrStorageConflict   = New("STORAGE_CONFLICT", http.StatusConflict, "storage conflict")

	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Storage wraps a failure raised inside a transaction as STORAGE_CONFLICT.
// Typed errors pass through untouched.
func Storage(err error, message string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Wrap(err, ErrStorageConflict.Code, ErrStorageConflict.Status, message)
}
