// Package shared holds the error kinds and domain events used by every
// domain package. It has no dependencies outside the standard library.
package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is or the Is* helpers below.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrConcurrentModification: the record changed between read and write.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// DomainError carries the aggregate and operation that failed along with a
// message safe to show to the sensei.
type DomainError struct {
	Domain  string // "ninja", "progress"
	Op      string // "Create", "LessonUp", "Correct"
	Kind    error  // one of the kinds above
	Message string
	Err     error // cause, optional
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the cause, or the kind when there is none.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches against both the kind and the cause.
func (e *DomainError) Is(target error) bool {
	return (e.Kind != nil && errors.Is(e.Kind, target)) ||
		(e.Err != nil && errors.Is(e.Err, target))
}

func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError is NewDomainError with a cause.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// Ninja errors.
var (
	ErrNinjaNotFound      = NewDomainError("ninja", "Find", ErrNotFound, "ninja not found")
	ErrNinjaAlreadyExists = NewDomainError("ninja", "Create", ErrAlreadyExists, "ninja already exists")
	ErrInvalidNinjaName   = NewDomainError("ninja", "Validate", ErrInvalidInput, "first name and last name are required")
	ErrInvalidUsername    = NewDomainError("ninja", "Validate", ErrInvalidInput, "username must be 3-40 chars without whitespace")
)

// Progress history errors.
var (
	ErrProgressEntryNotFound = NewDomainError("progress", "Find", ErrNotFound, "progress entry not found")
	ErrInvalidPath           = NewDomainError("progress", "Validate", ErrInvalidInput, "unknown path")
	ErrInvalidEntryKind      = NewDomainError("progress", "Validate", ErrInvalidInput, "unknown progress entry kind")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation reports any of the input kinds. The HTTP layer maps them to 400.
func IsValidation(err error) bool {
	for _, kind := range []error{ErrValidation, ErrInvalidID, ErrInvalidInput, ErrEmptyValue, ErrValueOutOfRange} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
