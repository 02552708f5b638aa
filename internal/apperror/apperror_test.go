package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetailedCopyStillMatchesSentinel(t *testing.T) {
	err := ErrOverReturn.WithDetail("code", "BRG-001")

	assert.True(t, errors.Is(err, ErrOverReturn))
	assert.False(t, errors.Is(err, ErrAlreadyCancelled))
	assert.Empty(t, ErrOverReturn.Details, "sentinel must not be mutated")
	assert.Equal(t, "BRG-001", err.Details["code"])
}

func TestWrappedAppErrorIsFound(t *testing.T) {
	wrapped := fmt.Errorf("returning items: %w", ErrNoOpenShift)

	appErr := As(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, CodeNoOpenShift, appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.HTTPStatus)
}

func TestAsTreatsPlainErrorsAsInternal(t *testing.T) {
	appErr := As(errors.New("connection refused"))

	assert.Equal(t, CodeInternal, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	assert.Nil(t, As(nil))
}
