package graph

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes pipeline errors.
type ErrorCode string

const (
	// ErrCodeInvalidSubgraphKind indicates a compile operation was invoked on
	// a subgraph of the wrong kind. No bundle is written.
	ErrCodeInvalidSubgraphKind ErrorCode = "INVALID_SUBGRAPH_KIND"

	// ErrCodeSanitizationCollision indicates two distinct subgraph names map to
	// the same sanitized token.
	ErrCodeSanitizationCollision ErrorCode = "SANITIZATION_COLLISION"

	// ErrCodeSerializationFailure indicates the bundle could not be written
	// or read back.
	ErrCodeSerializationFailure ErrorCode = "SERIALIZATION_FAILURE"

	// ErrCodeEmptySelection marks a zero-length resource. It is only ever
	// logged as a warning.
	ErrCodeEmptySelection ErrorCode = "EMPTY_SELECTION"

	// ErrCodeIndexOverflow indicates a node id that does not fit the int32
	// index type of the container.
	ErrCodeIndexOverflow ErrorCode = "INDEX_OVERFLOW"

	// ErrCodeNotFound indicates a missing subgraph, node or bundle.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Error is the structured error returned by the store, compiler, bundle and
// cache packages.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// SubgraphID identifies the affected subgraph, if any.
	SubgraphID int64

	// Path is the bundle path involved, if any.
	Path string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.SubgraphID != 0 {
		msg += fmt.Sprintf(" (subgraph=%d)", e.SubgraphID)
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewInvalidKindError reports a compile operation invoked on the wrong kind.
func NewInvalidKindError(sg Subgraph, want SubgraphKind) *Error {
	return &Error{
		Code:       ErrCodeInvalidSubgraphKind,
		Message:    fmt.Sprintf("subgraph %q has kind %q, operation requires %q", sg.Name, sg.Kind, want),
		SubgraphID: sg.ID,
	}
}

// NewCollisionError reports that name sanitizes to a token already owned by
// another subgraph.
func NewCollisionError(token string, ids ...int64) *Error {
	e := &Error{
		Code:    ErrCodeSanitizationCollision,
		Message: fmt.Sprintf("subgraphs %v all sanitize to %q", ids, token),
	}
	if len(ids) > 0 {
		e.SubgraphID = ids[0]
	}
	return e
}

// NewSerializationError wraps an I/O failure on a bundle path.
func NewSerializationError(path, message string, err error) *Error {
	return &Error{
		Code:    ErrCodeSerializationFailure,
		Message: message,
		Path:    path,
		Err:     err,
	}
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(what string, id int64) *Error {
	return &Error{
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("%s %d not found", what, id),
		SubgraphID: id,
	}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsInvalidKind reports whether err is an INVALID_SUBGRAPH_KIND error.
func IsInvalidKind(err error) bool { return hasCode(err, ErrCodeInvalidSubgraphKind) }

// IsCollision reports whether err is a SANITIZATION_COLLISION error.
func IsCollision(err error) bool { return hasCode(err, ErrCodeSanitizationCollision) }

// IsSerialization reports whether err is a SERIALIZATION_FAILURE error.
func IsSerialization(err error) bool { return hasCode(err, ErrCodeSerializationFailure) }

// IsIndexOverflow reports whether err is an INDEX_OVERFLOW error.
func IsIndexOverflow(err error) bool { return hasCode(err, ErrCodeIndexOverflow) }

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
