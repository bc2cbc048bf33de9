package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: ErrValidation.WithCause(errors.New("bad body")), want: http.StatusBadRequest},
		{name: "wrapped validation", err: fmt.Errorf("handler: %w", ErrValidation), want: http.StatusBadRequest},
		{name: "custom status", err: NewError("CONFLICT", "conflict", http.StatusConflict), want: http.StatusConflict},
		{name: "plain error", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToHTTPStatus(tt.err))
		})
	}
}

func TestToErrorResponse_UsesDetailMessage(t *testing.T) {
	err := ErrValidation.WithDetail("message", "messages[0].message_id is required")

	resp := ToErrorResponse(err)
	assert.Equal(t, "VALIDATION_ERROR", resp["error_code"])
	assert.Equal(t, "messages[0].message_id is required", resp["error"])
	assert.Empty(t, ErrValidation.Details, "WithDetail must not mutate the sentinel")
}

func TestRecoverPanic(t *testing.T) {
	assert.Nil(t, RecoverPanic(nil))

	err := RecoverPanic("index out of range")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index out of range")

	var appErr *Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, true, appErr.Details["panic"])
}
