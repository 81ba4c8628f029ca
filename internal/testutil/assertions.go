package testutil

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	apperrors "orgfolio/internal/errors"
)

// AssertAppError stops the test unless err carries an AppError with the given code.
func AssertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()

	require.Error(t, err, "expected AppError with code %q", expectedCode)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected *AppError, got %T: %v", err, err)
	require.Equal(t, expectedCode, appErr.Code, "message: %s", appErr.Message)
}

// AssertNoError stops the test on a non-nil error.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	require.NoError(t, err)
}

// AssertDecimal compares amounts numerically, so "150" matches "150.00".
func AssertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "expected %s, got %s", want, got)
}

// AssertNullDecimal checks a nullable price: want "" expects NULL.
func AssertNullDecimal(t *testing.T, want string, got decimal.NullDecimal) {
	t.Helper()
	if want == "" {
		require.Falsef(t, got.Valid, "expected NULL, got %s", got.Decimal)
		return
	}
	require.True(t, got.Valid, "expected %s, got NULL", want)
	AssertDecimal(t, want, got.Decimal)
}
