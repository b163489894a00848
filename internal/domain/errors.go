package domain

import (
	"fmt"
	"strings"
)

// Error types for consistent error handling across the service.

// ErrSchema indicates an upload is missing required columns.
type ErrSchema struct {
	Required []string
	Missing  []string
}

func (e *ErrSchema) Error() string {
	return fmt.Sprintf("CSV must have columns: [%s] (missing: %s)",
		strings.Join(e.Required, ", "), strings.Join(e.Missing, ", "))
}

// ErrDecode indicates the upload is not readable as UTF-8 delimited text.
type ErrDecode struct {
	Reason string
	Err    error
}

func (e *ErrDecode) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot decode upload: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot decode upload: %s", e.Reason)
}

func (e *ErrDecode) Unwrap() error {
	return e.Err
}

// ErrParse indicates a cell that could not be converted to its column type.
// Row is the 1-based data row (the header is not counted).
type ErrParse struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ErrParse) Error() string {
	return fmt.Sprintf("row %d: invalid %s value %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *ErrParse) Unwrap() error {
	return e.Err
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrConfiguration indicates a required setting is absent. Operator-fixable.
type ErrConfiguration struct {
	Setting string
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("%s not configured", e.Setting)
}

// ErrUpstream indicates the text-generation provider failed or returned
// content that could not be used.
type ErrUpstream struct {
	Provider string
	Err      error
}

func (e *ErrUpstream) Error() string {
	return fmt.Sprintf("draft generation failed [%s]: %v", e.Provider, e.Err)
}

func (e *ErrUpstream) Unwrap() error {
	return e.Err
}
