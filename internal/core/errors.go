package core

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is.
var (
	ErrValidation     = errors.New("validation error")
	ErrState          = errors.New("invalid state")
	ErrNotFound       = errors.New("not found")
	ErrAmbiguousMatch = errors.New("ambiguous match")
	ErrPersistence    = errors.New("persistence error")
)

var (
	ErrInvalidAmount     = NewValidationError("amount must be greater than zero")
	ErrEmptyDescription  = NewValidationError("description cannot be empty")
	ErrEmptyName         = NewValidationError("fund name cannot be empty")
	ErrEmptyFunder       = NewValidationError("funder name cannot be empty")
	ErrEmptyRelationship = NewValidationError("funder relationship cannot be empty")
	ErrFundNotActive     = NewStateError("fund is not active")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func NewValidationError(msg string) error {
	return &kindError{kind: ErrValidation, msg: msg}
}

func NewStateError(msg string) error {
	return &kindError{kind: ErrState, msg: msg}
}

func NewNotFoundError(format string, args ...any) error {
	return &kindError{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

// Persistence wraps a storage failure so the dialogue layer can hide it.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// AmbiguousMatchError is returned when a name lookup hits more than one fund.
type AmbiguousMatchError struct {
	Query   string
	Matches []Fund
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%d funds match %q", len(e.Matches), e.Query)
}

func (e *AmbiguousMatchError) Is(target error) bool {
	return target == ErrAmbiguousMatch
}

// Message returns the user-facing text of a validation or state error.
func Message(err error) string {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.msg
	}
	return err.Error()
}
