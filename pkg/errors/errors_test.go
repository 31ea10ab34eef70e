package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorFormatting(t *testing.T) {
	err := NewConfigurationError(CodeInvalidEpsilon, "epsilon must be positive")
	assert.Equal(t, "INVALID_EPSILON: epsilon must be positive", err.Error())

	err = err.WithDetails("got -1")
	assert.Contains(t, err.Error(), "got -1")
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapError(cause, ErrorTypeStorage, CodeWriteFailed, "failed to write")

	assert.ErrorIs(t, err, cause)

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, CodeWriteFailed, appErr.Code)
}

func TestAppErrorIs(t *testing.T) {
	a := NewPrivacyError(CodeBudgetExhausted, "out of budget")
	b := NewPrivacyError(CodeBudgetExhausted, "different message")
	c := NewPrivacyError(CodeBudgetOverdraft, "overdraft")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestDefaultHTTPStatus(t *testing.T) {
	assert.Equal(t, 400, NewValidationError(CodeEmptyDataset, "x").HTTPStatus)
	assert.Equal(t, 400, NewConfigurationError(CodeInvalidRounds, "x").HTTPStatus)
	assert.Equal(t, 403, NewPrivacyError(CodeBudgetExhausted, "x").HTTPStatus)
	assert.Equal(t, 500, NewEstimationError(CodeEstimationFailed, "x").HTTPStatus)
	assert.Equal(t, 500, NewInternalError("x").HTTPStatus)
}

func TestWithContext(t *testing.T) {
	err := NewSelectionError(CodeCandidateExhausted, "exhausted").
		WithContext("round", 3).
		WithContext("cap_mib", 0.5)

	assert.Equal(t, 3, err.Context["round"])
	assert.Equal(t, 0.5, err.Context["cap_mib"])
}
