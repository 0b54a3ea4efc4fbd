package validate

import (
	"fmt"
	"strings"
)

// FieldError represents a validation failure for a single field
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// FieldErrors holds multiple validation failures
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validator accumulates field validation failures
type Validator struct {
	errors FieldErrors
}

// New creates a new validator
func New() *Validator {
	return &Validator{
		errors: make(FieldErrors, 0),
	}
}

// RequiredString validates that a string is non-empty after trimming
func (v *Validator) RequiredString(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.errors = append(v.errors, FieldError{
			Field:   field,
			Message: "is required and cannot be empty",
		})
	}
	return v
}

// MaxLength validates that a string does not exceed max characters
func (v *Validator) MaxLength(field, value string, max int) *Validator {
	if len([]rune(value)) > max {
		v.errors = append(v.errors, FieldError{
			Field:   field,
			Message: fmt.Sprintf("must be at most %d characters", max),
		})
	}
	return v
}

// OneOf validates that a string is one of the allowed values
func (v *Validator) OneOf(field, value string, allowed ...string) *Validator {
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.errors = append(v.errors, FieldError{
		Field:   field,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	})
	return v
}

// PositiveInt validates that an integer is greater than zero
func (v *Validator) PositiveInt(field string, value int64) *Validator {
	if value <= 0 {
		v.errors = append(v.errors, FieldError{
			Field:   field,
			Message: "must be greater than zero",
		})
	}
	return v
}

// Err returns the accumulated errors, or nil if validation passed
func (v *Validator) Err() error {
	if len(v.errors) == 0 {
		return nil
	}
	return v.errors
}
