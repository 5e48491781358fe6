package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrExtraction       = errors.New("text extraction failed")
	ErrModelAPI         = errors.New("model api error")
	ErrResponseParse    = errors.New("response parse error")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ModelAPIError is returned when the model service could not produce a response,
// either because retries were exhausted or because the failure was fatal.
type ModelAPIError struct {
	Operation string
	Attempts  int
	Retryable bool
	Err       error
}

func (e *ModelAPIError) Error() string {
	if e == nil {
		return "model api error"
	}
	return fmt.Sprintf("model %s failed after %d attempt(s): %v", e.Operation, e.Attempts, e.Err)
}

func (e *ModelAPIError) Unwrap() []error {
	if e.Retryable {
		return []error{ErrModelAPI, ErrTemporary, e.Err}
	}
	return []error{ErrModelAPI, e.Err}
}

// ResponseParseError carries the raw model text that could not be decoded.
type ResponseParseError struct {
	Raw string
	Err error
}

func (e *ResponseParseError) Error() string {
	if e == nil {
		return "response parse error"
	}
	return fmt.Sprintf("parse model response: %v", e.Err)
}

func (e *ResponseParseError) Unwrap() []error {
	return []error{ErrResponseParse, e.Err}
}

// ErrorCode returns the stable code reported to callers for err.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case IsKind(err, ErrInvalidInput):
		return "INVALID_INPUT"
	case IsKind(err, ErrDocumentNotFound):
		return "DOCUMENT_NOT_FOUND"
	case IsKind(err, ErrExtraction):
		return "EXTRACTION_FAILED"
	case IsKind(err, ErrResponseParse):
		return "RESPONSE_PARSE_ERROR"
	case IsKind(err, ErrModelAPI):
		return "LLM_API_ERROR"
	case IsKind(err, ErrTemporary):
		return "TEMPORARY_FAILURE"
	default:
		return "INTERNAL"
	}
}
