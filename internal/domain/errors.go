package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for different failure scenarios
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodePrediction = "PREDICTION_ERROR"
	ErrCodeModel      = "MODEL_UNAVAILABLE"
	ErrCodeReviewer   = "REVIEWER_UNAVAILABLE"
	ErrCodeDatabase   = "DATABASE_ERROR"
	ErrCodeRateLimit  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal   = "INTERNAL_SERVER_ERROR"
)

// Sentinel errors for degraded pipeline stages.
var (
	// ErrModelUnavailable means no classifier artifact is loaded.
	ErrModelUnavailable = errors.New("classifier model unavailable")

	// ErrReviewerUnavailable means the clinical reviewer could not be
	// reached (no API key, circuit open, or retries exhausted).
	ErrReviewerUnavailable = errors.New("clinical reviewer unavailable")
)

// FieldViolation describes a single out-of-range or malformed input field.
type FieldViolation struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// ValidationError carries every violation found in a patient record, not
// just the first one, so API callers can fix their payload in one pass.
type ValidationError struct {
	Violations []FieldViolation `json:"violations"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation error"
	}
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return fmt.Sprintf("patient record validation failed: %s", strings.Join(msgs, "; "))
}

// Add appends a violation to the error.
func (e *ValidationError) Add(field, message string, value interface{}) {
	e.Violations = append(e.Violations, FieldViolation{Field: field, Message: message, Value: value})
}

// HasViolations reports whether any field failed validation.
func (e *ValidationError) HasViolations() bool {
	return len(e.Violations) > 0
}

// PredictionError wraps an internal classifier failure. The orchestrator
// never surfaces it to callers; it is logged and converted to a degraded
// opinion.
type PredictionError struct {
	Cause error
}

// Error implements the error interface
func (e *PredictionError) Error() string {
	return fmt.Sprintf("classifier prediction failed: %v", e.Cause)
}

// Unwrap returns the underlying cause.
func (e *PredictionError) Unwrap() error {
	return e.Cause
}
