package errors

import (
	"errors"
	"fmt"
)

// Common application errors
var (
	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrInvalidRounds        = errors.New("rounds must be positive")
	ErrInvalidAlpha         = errors.New("alpha must be in (0, 1)")
	ErrInvalidEpsilon       = errors.New("epsilon must be positive")
	ErrInvalidDelta         = errors.New("delta must be in [0, 1)")
	ErrZeroSensitivity      = errors.New("sensitivity must be positive")
	ErrEmptyWorkload        = errors.New("workload cannot be empty")
	ErrUnknownEngine        = errors.New("unknown estimator engine")

	// Selection errors
	ErrEmptyCandidates    = errors.New("candidate set cannot be empty")
	ErrCandidateExhausted = errors.New("no candidate satisfies the model size cap")

	// Privacy errors
	ErrBudgetExhausted = errors.New("privacy budget exhausted")
	ErrBudgetOverdraft = errors.New("privacy budget overdraft")

	// Estimation errors
	ErrEstimationFailed = errors.New("model estimation failed")
	ErrProjectionFailed = errors.New("marginal projection failed")
	ErrSynthesisFailed  = errors.New("synthetic data generation failed")

	// Data errors
	ErrUnknownAttribute = errors.New("attribute not in domain")
	ErrInvalidDomain    = errors.New("invalid domain")
	ErrEmptyDataset     = errors.New("dataset cannot be empty")
	ErrDataNotFound     = errors.New("data not found")

	// Storage errors
	ErrStorageReadFailed  = errors.New("storage read failed")
	ErrStorageWriteFailed = errors.New("storage write failed")

	// Internal errors
	ErrInternal = errors.New("internal error")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeSelection     ErrorType = "selection"
	ErrorTypePrivacy       ErrorType = "privacy"
	ErrorTypeEstimation    ErrorType = "estimation"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeInternal      ErrorType = "internal"
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		HTTPStatus: getDefaultHTTPStatus(errType),
	}
}

// WrapError wraps an existing error with application context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		Cause:      err,
		HTTPStatus: getDefaultHTTPStatus(errType),
	}
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *AppError {
	return NewAppError(ErrorTypeValidation, code, message)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(code, message string) *AppError {
	return NewAppError(ErrorTypeConfiguration, code, message)
}

// NewSelectionError creates a selection error
func NewSelectionError(code, message string) *AppError {
	return NewAppError(ErrorTypeSelection, code, message)
}

// NewPrivacyError creates a privacy error
func NewPrivacyError(code, message string) *AppError {
	return NewAppError(ErrorTypePrivacy, code, message)
}

// NewEstimationError creates an estimation error
func NewEstimationError(code, message string) *AppError {
	return NewAppError(ErrorTypeEstimation, code, message)
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *AppError {
	return NewAppError(ErrorTypeStorage, code, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		HTTPStatus: 500,
	}
}

// getDefaultHTTPStatus returns the default HTTP status for an error type
func getDefaultHTTPStatus(errType ErrorType) int {
	switch errType {
	case ErrorTypeValidation, ErrorTypeConfiguration, ErrorTypeSelection:
		return 400
	case ErrorTypePrivacy:
		return 403
	case ErrorTypeStorage:
		return 404
	case ErrorTypeEstimation, ErrorTypeInternal:
		return 500
	default:
		return 500
	}
}

// Error codes for different error scenarios
const (
	// Configuration error codes
	CodeInvalidRounds       = "INVALID_ROUNDS"
	CodeInvalidAlpha        = "INVALID_ALPHA"
	CodeInvalidEpsilon      = "INVALID_EPSILON"
	CodeInvalidDelta        = "INVALID_DELTA"
	CodeZeroSensitivity     = "ZERO_SENSITIVITY"
	CodeEmptyWorkload       = "EMPTY_WORKLOAD"
	CodeUnknownEngine       = "UNKNOWN_ENGINE"
	CodeInvalidModelSize    = "INVALID_MODEL_SIZE"

	// Selection error codes
	CodeEmptyCandidates    = "EMPTY_CANDIDATES"
	CodeCandidateExhausted = "CANDIDATE_EXHAUSTED"

	// Privacy error codes
	CodeBudgetExhausted = "BUDGET_EXHAUSTED"
	CodeBudgetOverdraft = "BUDGET_OVERDRAFT"

	// Estimation error codes
	CodeEstimationFailed = "ESTIMATION_FAILED"
	CodeProjectionFailed = "PROJECTION_FAILED"
	CodeSynthesisFailed  = "SYNTHESIS_FAILED"

	// Data error codes
	CodeUnknownAttribute = "UNKNOWN_ATTRIBUTE"
	CodeInvalidDomain    = "INVALID_DOMAIN"
	CodeEmptyDataset     = "EMPTY_DATASET"

	// Storage error codes
	CodeReadFailed  = "READ_FAILED"
	CodeWriteFailed = "WRITE_FAILED"

	// Internal error codes
	CodeInternalError = "INTERNAL_ERROR"
)
