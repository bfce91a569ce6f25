package model

import (
	"errors"
	"fmt"
)

// Error is the typed failure shared by all classver components.
//
// Error includes structured fields for diagnostics:
//   - Object: the versioned object name, when known
//   - Path: the internal file path, when known
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Object identifies the affected versioned object.
	Object string

	// Path identifies the affected internal file.
	Path string

	// Err is the underlying cause (optional).
	Err error
}

// ErrorCode categorizes errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates an absent object, revision or path.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeDeleted indicates a read of a tombstoned revision.
	ErrCodeDeleted ErrorCode = "DELETED"

	// ErrCodeUninitialized indicates an object without real content yet.
	ErrCodeUninitialized ErrorCode = "UNINITIALIZED"

	// ErrCodeStructural indicates a tree traversal that cannot resolve root or parent.
	ErrCodeStructural ErrorCode = "STRUCTURAL"

	// ErrCodePersistence indicates a store failure or an unmapped reason.
	ErrCodePersistence ErrorCode = "PERSISTENCE"

	// ErrCodeIllegalState indicates transaction lifecycle misuse.
	ErrCodeIllegalState ErrorCode = "ILLEGAL_STATE"

	// ErrCodePurgeDenied indicates the purge policy refused a destructive operation.
	ErrCodePurgeDenied ErrorCode = "PURGE_DENIED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Object != "" && e.Path != "" {
		msg = fmt.Sprintf("%s (object=%s, path=%s)", msg, e.Object, e.Path)
	} else if e.Object != "" {
		msg = fmt.Sprintf("%s (object=%s)", msg, e.Object)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsNotFound reports whether err is a NOT_FOUND error. Uses errors.As.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsDeleted reports whether err is a DELETED error.
func IsDeleted(err error) bool { return hasCode(err, ErrCodeDeleted) }

// IsUninitialized reports whether err is an UNINITIALIZED error.
func IsUninitialized(err error) bool { return hasCode(err, ErrCodeUninitialized) }

// IsStructural reports whether err is a STRUCTURAL error.
func IsStructural(err error) bool { return hasCode(err, ErrCodeStructural) }

// IsPersistence reports whether err is a PERSISTENCE error.
func IsPersistence(err error) bool { return hasCode(err, ErrCodePersistence) }

// IsIllegalState reports whether err is an ILLEGAL_STATE error.
func IsIllegalState(err error) bool { return hasCode(err, ErrCodeIllegalState) }

// IsPurgeDenied reports whether err is a PURGE_DENIED error.
func IsPurgeDenied(err error) bool { return hasCode(err, ErrCodePurgeDenied) }

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// NewNotFoundError creates a NOT_FOUND error.
func NewNotFoundError(object, path, message string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: message, Object: object, Path: path}
}

// NewDeletedError creates a DELETED error.
func NewDeletedError(object, path string) *Error {
	return &Error{Code: ErrCodeDeleted, Message: "cannot read already deleted content", Object: object, Path: path}
}

// NewUninitializedError creates an UNINITIALIZED error.
func NewUninitializedError(object string) *Error {
	return &Error{Code: ErrCodeUninitialized, Message: "object does not have any content yet", Object: object}
}

// NewStructuralError creates a STRUCTURAL error.
func NewStructuralError(message string) *Error {
	return &Error{Code: ErrCodeStructural, Message: message}
}

// NewPersistenceError creates a PERSISTENCE error wrapping cause.
func NewPersistenceError(message string, cause error) *Error {
	return &Error{Code: ErrCodePersistence, Message: message, Err: cause}
}

// NewIllegalStateError creates an ILLEGAL_STATE error.
func NewIllegalStateError(message string) *Error {
	return &Error{Code: ErrCodeIllegalState, Message: message}
}

// NewPurgeDeniedError creates a PURGE_DENIED error.
func NewPurgeDeniedError(object string) *Error {
	return &Error{Code: ErrCodePurgeDenied, Message: "purge policy does not allow dropping history", Object: object}
}
