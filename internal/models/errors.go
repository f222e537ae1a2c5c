package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the coarse category of a claims error. Callers branch on it.
type ErrorKind string

const (
	KindNotFound                      ErrorKind = "not_found"
	KindInvalidField                  ErrorKind = "invalid_field"
	KindInvalidPrice                  ErrorKind = "invalid_price"
	KindInvalidScore                  ErrorKind = "invalid_score"
	KindInvalidURL                    ErrorKind = "invalid_url"
	KindIllegalTransition             ErrorKind = "illegal_transition"
	KindFinalizationRequirementNotMet ErrorKind = "finalization_requirement_not_met"
	KindClaimNotEditable              ErrorKind = "claim_not_editable"
	KindStorageFailure                ErrorKind = "storage_failure"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrNotFound                      = &Error{Kind: KindNotFound}
	ErrInvalidField                  = &Error{Kind: KindInvalidField}
	ErrInvalidPrice                  = &Error{Kind: KindInvalidPrice}
	ErrInvalidScore                  = &Error{Kind: KindInvalidScore}
	ErrInvalidURL                    = &Error{Kind: KindInvalidURL}
	ErrIllegalTransition             = &Error{Kind: KindIllegalTransition}
	ErrFinalizationRequirementNotMet = &Error{Kind: KindFinalizationRequirementNotMet}
	ErrClaimNotEditable              = &Error{Kind: KindClaimNotEditable}
	ErrStorageFailure                = &Error{Kind: KindStorageFailure}
)

// Error is the single error type returned by validation and the lifecycle engine.
type Error struct {
	Kind    ErrorKind
	Op      string      // Optional: operation that failed, e.g. "attempt_transition"
	Field   string      // Optional: offending input field
	Current ClaimStatus // Optional: claim status observed when the rule was evaluated
	Target  ClaimStatus // Optional: requested status
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else {
		b.WriteString(string(e.Kind))
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (field=%s)", e.Field)
	}
	switch {
	case e.Current != "" && e.Target != "":
		fmt.Fprintf(&b, " (current=%s requested=%s)", e.Current, e.Target)
	case e.Current != "":
		fmt.Fprintf(&b, " (current=%s)", e.Current)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsInvalidInput reports whether err is an input normalization failure.
func IsInvalidInput(err error) bool {
	switch KindOf(err) {
	case KindInvalidField, KindInvalidPrice, KindInvalidScore, KindInvalidURL:
		return true
	}
	return false
}

// NotFound builds a KindNotFound error for the named entity.
func NotFound(op, entity, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf("%s %s not found", entity, id)}
}

// StorageFailure wraps a persistence error.
func StorageFailure(op string, err error) *Error {
	return &Error{Kind: KindStorageFailure, Op: op, Msg: "storage failure", Err: err}
}
