package puzzle

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes puzzle store errors.
type ErrorCode string

const (
	// CodeNotFound indicates a lookup matched no puzzle.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeDuplicateFound indicates a lookup that must be unique matched more than one puzzle.
	CodeDuplicateFound ErrorCode = "DUPLICATE_FOUND"

	// CodeAlreadyExists indicates a new puzzle collides with a stored one.
	CodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// CodeDanglingReference indicates the inserter or solver is not a stored identity.
	CodeDanglingReference ErrorCode = "DANGLING_REFERENCE"

	// CodeInactiveObject indicates a write with an in-memory puzzle older than the stored one.
	CodeInactiveObject ErrorCode = "INACTIVE_OBJECT"

	// CodeCorrupt indicates a persisted puzzle failed its self-check.
	CodeCorrupt ErrorCode = "CORRUPT"

	// CodeInvalidPuzzle indicates a puzzle handed to the store failed its self-check.
	CodeInvalidPuzzle ErrorCode = "INVALID_PUZZLE"

	// CodeInvalidState indicates a lifecycle transition that is not allowed.
	CodeInvalidState ErrorCode = "INVALID_STATE"
)

// Error is returned by the puzzle model and the puzzle store.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// PuzzleID identifies the affected puzzle, if known.
	PuzzleID string

	// Details contains additional context such as the slot of a lookup.
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.PuzzleID != "" {
		return fmt.Sprintf("%s: %s (puzzle=%s)", e.Code, e.Message, e.PuzzleID)
	}
	if len(e.Details) > 0 {
		return fmt.Sprintf("%s: %s %v", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code ErrorCode) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsNotFound reports whether err is a lookup miss.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsDuplicate reports whether err signals a uniqueness violation found by a lookup.
func IsDuplicate(err error) bool { return hasCode(err, CodeDuplicateFound) }

// IsAlreadyExists reports whether err is an id collision on store.
func IsAlreadyExists(err error) bool { return hasCode(err, CodeAlreadyExists) }

// IsDanglingReference reports whether err is a missing-identity error.
func IsDanglingReference(err error) bool { return hasCode(err, CodeDanglingReference) }

// IsInactive reports whether err is a stale-instance error.
func IsInactive(err error) bool { return hasCode(err, CodeInactiveObject) }

// IsCorrupt reports whether err is a failed self-check of persisted data.
func IsCorrupt(err error) bool { return hasCode(err, CodeCorrupt) }

// IsInvalid reports whether err is a rejected puzzle or lifecycle transition.
func IsInvalid(err error) bool {
	return hasCode(err, CodeInvalidPuzzle) || hasCode(err, CodeInvalidState)
}

// NewNotFoundError creates an Error for a lookup miss.
func NewNotFoundError(message string, details map[string]string) *Error {
	return &Error{Code: CodeNotFound, Message: message, Details: details}
}

// NewDuplicateError creates an Error for a lookup that matched n puzzles.
func NewDuplicateError(n int, details map[string]string) *Error {
	return &Error{
		Code:    CodeDuplicateFound,
		Message: fmt.Sprintf("%d puzzles share a unique key", n),
		Details: details,
	}
}

// NewCorruptError creates an Error for a persisted puzzle that failed its self-check.
func NewCorruptError(id, reason string) *Error {
	return &Error{Code: CodeCorrupt, Message: reason, PuzzleID: id}
}

func newError(code ErrorCode, id, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), PuzzleID: id}
}

// NewAlreadyExistsError creates an Error for an id collision.
func NewAlreadyExistsError(id string) *Error {
	return newError(CodeAlreadyExists, id, "a different puzzle with this id is already stored")
}

// NewDanglingReferenceError creates an Error for a reference to an identity that is not stored.
func NewDanglingReferenceError(id, role, identityID string) *Error {
	return newError(CodeDanglingReference, id, "%s %q is not a stored identity", role, identityID)
}

// NewInactiveError creates an Error for a stale in-memory instance.
func NewInactiveError(id string, have, stored int64) *Error {
	if stored == 0 {
		return newError(CodeInactiveObject, id, "puzzle was deleted since revision %d was loaded", have)
	}
	return newError(CodeInactiveObject, id, "instance is at revision %d, store is at %d", have, stored)
}
