// errors.go - Error taxonomy shared by all pipeline stages

package common

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a pipeline failure. Every stage fails fast with
// exactly one kind; the orchestrator passes the first failure through
// unchanged so callers can map kinds to HTTP statuses.
type ErrorKind string

const (
	// ErrInput - malformed or missing image payload (client-side failure)
	ErrInput ErrorKind = "input_error"
	// ErrImageProcessing - decode/transform failure during normalization
	ErrImageProcessing ErrorKind = "image_processing_error"
	// ErrEngineNotReady - a recognition engine was never initialized or was
	// released; signals a lifecycle bug rather than bad input
	ErrEngineNotReady ErrorKind = "engine_not_ready"
	// ErrRecognition - every language pass failed
	ErrRecognition ErrorKind = "recognition_failure"
	// ErrExtractionParse - the model response did not validate against the
	// invoice schema
	ErrExtractionParse ErrorKind = "extraction_parse_error"
	// ErrUpstream - the OCR or LLM dependency itself failed (network,
	// quota, auth)
	ErrUpstream ErrorKind = "upstream_service_error"
	// ErrInternal - anything that escaped classification
	ErrInternal ErrorKind = "internal_error"
)

// PipelineError is the typed failure every stage reports.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Cause   error
	// Raw carries the unparsed model output for ErrExtractionParse
	// diagnostics.
	Raw string
	// Violations lists the individual schema violations for
	// ErrExtractionParse.
	Violations []string
}

func (e *PipelineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Kind, e.Message)
	if len(e.Violations) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Violations, "; "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// NewError builds a PipelineError wrapping cause.
func NewError(kind ErrorKind, message string, cause error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Cause: cause}
}

// NewParseError builds an ErrExtractionParse error carrying the raw model
// output and the list of schema violations.
func NewParseError(message, raw string, violations []string) *PipelineError {
	return &PipelineError{
		Kind:       ErrExtractionParse,
		Message:    message,
		Raw:        raw,
		Violations: violations,
	}
}

// KindOf extracts the ErrorKind from err, walking the wrap chain.
// Unclassified errors report ErrInternal.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
