package vehicle

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every failure returned by the prediction pipeline matches exactly
// one of these through errors.Is.
var (
	ErrSchemaMismatch  = errors.New("schema mismatch")
	ErrDomain          = errors.New("value outside transform domain")
	ErrUnseenCategory  = errors.New("unseen category")
	ErrModelInvocation = errors.New("model invocation failed")
	ErrValidation      = errors.New("required fields missing")
)

// SchemaMismatchError reports a record whose field set or order differs from the schema.
type SchemaMismatchError struct {
	Field  string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema mismatch: %s", e.Reason)
	}
	return fmt.Sprintf("schema mismatch on %q: %s", e.Field, e.Reason)
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }

// DomainError reports a numeric value the log transform is undefined for.
type DomainError struct {
	Field string
	Value float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("field %q: log1p undefined for %v (must be finite and > -1)", e.Field, e.Value)
}

func (e *DomainError) Unwrap() error { return ErrDomain }

// UnseenCategoryError is returned in strict mode for a category absent from the
// reference vocabulary.
type UnseenCategoryError struct {
	Field string
	Value string
}

func (e *UnseenCategoryError) Error() string {
	return fmt.Sprintf("field %q: category %q not present in reference data", e.Field, e.Value)
}

func (e *UnseenCategoryError) Unwrap() error { return ErrUnseenCategory }

// ModelInvocationError wraps a failure of the trained model itself.
type ModelInvocationError struct {
	Model string
	Err   error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Model, e.Err)
}

func (e *ModelInvocationError) Unwrap() []error { return []error{ErrModelInvocation, e.Err} }

// ValidationError lists the required fields still holding their sentinel default.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("required fields missing: %s", strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
