package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeCapture       = "CAPTURE_FAILED"
	ErrCodeMetrics       = "METRICS_FAILED"
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// ReportError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ReportError struct {
	Code    string
	Message string

	// Details is forwarded verbatim in the API error body (e.g. the
	// metrics provider's own error document).
	Details any

	Err error // wrapped original error
}

func (e *ReportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ReportError) Unwrap() error {
	return e.Err
}

// NewReportError creates a new ReportError.
func NewReportError(code, message string, err error) *ReportError {
	return &ReportError{Code: code, Message: message, Err: err}
}

// NewInvalidInputError reports a missing or malformed URL.
func NewInvalidInputError(message string, err error) *ReportError {
	return NewReportError(ErrCodeInvalidInput, message, err)
}

// NewCaptureError reports a browser launch, navigation or screenshot failure.
func NewCaptureError(message string, err error) *ReportError {
	return NewReportError(ErrCodeCapture, message, err)
}

// NewMetricsError reports an unavailable, unauthorized or non-200 metrics provider.
func NewMetricsError(message string, details any, err error) *ReportError {
	e := NewReportError(ErrCodeMetrics, message, err)
	e.Details = details
	return e
}

// NewConfigurationError reports a missing required setting such as an API credential.
func NewConfigurationError(message string) *ReportError {
	return NewReportError(ErrCodeConfiguration, message, nil)
}

// AsReportError unwraps err into a *ReportError, wrapping unknown errors as INTERNAL_ERROR.
func AsReportError(err error) *ReportError {
	var re *ReportError
	if errors.As(err, &re) {
		return re
	}
	return NewReportError(ErrCodeInternal, "Failed to analyze URL", err)
}

// CodeOf returns the error code carried by err, or "" when err is nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return AsReportError(err).Code
}

// ToResponse converts the error to the API-facing error body.
func (e *ReportError) ToResponse() ErrorResponse {
	resp := ErrorResponse{Error: e.Message, Code: e.Code, Details: e.Details}
	if resp.Details == nil && e.Err != nil {
		resp.Details = e.Err.Error()
	}
	return resp
}
