package vote

import (
	"errors"
	"fmt"
)

// Rejection kinds. Every *Error returned by the workflow matches exactly one
// of them with errors.Is.
var (
	ErrInvalidCandidate       = errors.New("invalid candidate")
	ErrProofGenerationFailed  = errors.New("proof generation failed")
	ErrInvalidProof           = errors.New("invalid proof")
	ErrDuplicateVote          = errors.New("duplicate vote")
	ErrLedgerSubmissionFailed = errors.New("ledger submission failed")
)

// Error is a classified vote rejection.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func newError(kind error, err error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

// Unwrap returns the kind and, if any, the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the rejection kind of err, or nil if err is not a
// classified rejection.
func KindOf(err error) error {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Kind
	}
	return nil
}
