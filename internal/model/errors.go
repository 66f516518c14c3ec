package model

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes domain errors so the transport layer can map them
// to responses without string matching.
type ErrorCode string

const (
	// ErrCodePrecondition means the entity is not in a state that allows
	// the requested operation (e.g. approving a draft order).
	ErrCodePrecondition ErrorCode = "PRECONDITION_FAILED"

	// ErrCodeNotPartOfOrder means a referenced item id does not belong to
	// the order being operated on. The whole call is rejected.
	ErrCodeNotPartOfOrder ErrorCode = "NOT_PART_OF_ORDER"

	// ErrCodeNotFound means the referenced entity does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeConflict means the operation collides with existing state
	// (duplicate active name, already-finalized count).
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeValidation means the input itself is malformed or violates
	// an allow-list.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeForbidden means the acting user's role or property scope does
	// not permit the operation.
	ErrCodeForbidden ErrorCode = "FORBIDDEN"

	// ErrCodeBusy means a serialization lock could not be acquired; the
	// caller may retry.
	ErrCodeBusy ErrorCode = "BUSY"
)

type DomainError struct {
	Code    ErrorCode
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewDomainError(code ErrorCode, format string, args ...interface{}) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func ErrPrecondition(format string, args ...interface{}) *DomainError {
	return NewDomainError(ErrCodePrecondition, format, args...)
}

func ErrNotPartOfOrder(format string, args ...interface{}) *DomainError {
	return NewDomainError(ErrCodeNotPartOfOrder, format, args...)
}

func ErrNotFound(format string, args ...interface{}) *DomainError {
	return NewDomainError(ErrCodeNotFound, format, args...)
}

func ErrConflict(format string, args ...interface{}) *DomainError {
	return NewDomainError(ErrCodeConflict, format, args...)
}

func ErrValidation(format string, args ...interface{}) *DomainError {
	return NewDomainError(ErrCodeValidation, format, args...)
}

func ErrForbidden(format string, args ...interface{}) *DomainError {
	return NewDomainError(ErrCodeForbidden, format, args...)
}

func ErrBusy(format string, args ...interface{}) *DomainError {
	return NewDomainError(ErrCodeBusy, format, args...)
}

// CodeOf extracts the domain error code from err, unwrapping as needed.
// Unrecognized errors report an empty code.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
