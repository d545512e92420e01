package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the referenced training session does not exist
	ErrNotFound = errors.New("training session not found")

	// ErrForbidden is returned when the training session belongs to another user
	ErrForbidden = errors.New("training session belongs to another user")

	// ErrValidation is the sentinel wrapped by every ValidationError
	ErrValidation = errors.New("validation error")

	// ErrUpstream is the sentinel wrapped by every UpstreamError
	ErrUpstream = errors.New("upstream failure")
)

// ValidationError reports a malformed identifier, credential or payload field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// UpstreamError wraps a failed call to Secrets Manager, SSM, Cognito or the database
type UpstreamError struct {
	Source string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{ErrUpstream, e.Err}
}

// Upstream wraps err as an UpstreamError, keeping nil as nil
func Upstream(source string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Source: source, Err: err}
}
