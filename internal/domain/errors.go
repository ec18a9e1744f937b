package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies job and execution failures.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindValidation    ErrorKind = "validation"
	KindProvider      ErrorKind = "provider"
	KindExtraction    ErrorKind = "extraction"
	KindTimeout       ErrorKind = "timeout"
	KindUpload        ErrorKind = "upload"
)

// Error is the taxonomy-carrying error used across the engine. Job names the
// offending job when the error is job-scoped.
type Error struct {
	Kind    ErrorKind
	Job     string
	Message string
	cause   error
}

// NewError builds a classified error. args are applied to format when given.
func NewError(kind ErrorKind, jobID, format string, args ...any) *Error {
	return &Error{Kind: kind, Job: jobID, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies an underlying error without losing its chain.
func WrapError(kind ErrorKind, jobID string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Job: jobID, Message: fmt.Sprintf(format, args...), cause: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Job != "" {
		b.WriteString(" [")
		b.WriteString(e.Job)
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

// KindOf extracts the taxonomy kind from an error chain, defaulting to
// KindProvider for unclassified errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindProvider
}

// AggregateError summarizes failed jobs into a single execution error. One
// failure names the job and its cause; several failures enumerate all.
func AggregateError(failed []Job) string {
	switch len(failed) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("job %s failed: %s", failed[0].ID, failed[0].ErrorMessage)
	default:
		parts := make([]string, 0, len(failed))
		for _, j := range failed {
			parts = append(parts, fmt.Sprintf("%s: %s", j.ID, j.ErrorMessage))
		}
		return fmt.Sprintf("%d jobs failed (%s)", len(failed), strings.Join(parts, "; "))
	}
}
