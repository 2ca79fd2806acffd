package goerror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("dial tcp: refused")

	tests := []struct {
		name     string
		err      error
		wantType Type
		wantCode Code
		status   int
		message  string
	}{
		{"server", NewServer(cause), TypeServer, CodeInternal, http.StatusInternalServerError, "dial tcp: refused"},
		{"unavailable", NewUnavailable(cause), TypeServer, CodeUnavailable, http.StatusServiceUnavailable, "dial tcp: refused"},
		{"business", NewBusiness("invalid confirmation code", CodeUnauthorized), TypeBusiness, CodeUnauthorized, http.StatusUnauthorized, "invalid confirmation code"},
		{"invalid input", NewInvalidInput(nil, "email", "must be a valid email"), TypeValidation, CodeInvalidInput, http.StatusUnprocessableEntity, "Validation error"},
		{"invalid input odd pairs", NewInvalidInput(nil, "email"), TypeValidation, CodeInvalidFormat, http.StatusBadRequest, "Invalid request body"},
		{"invalid format", NewInvalidFormat(), TypeValidation, CodeInvalidFormat, http.StatusBadRequest, "Invalid request body"},
		{"invalid format msg", NewInvalidFormat("bad json"), TypeValidation, CodeInvalidFormat, http.StatusBadRequest, "bad json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ge, ok := As(tt.err)
			require.True(t, ok)
			assert.Equal(t, tt.wantType, ge.Type())
			assert.Equal(t, tt.wantCode, ge.Code())
			assert.Equal(t, tt.status, ge.StatusCode())
			assert.Equal(t, tt.message, ge.Error())
		})
	}
}

func TestInvalidInputFields(t *testing.T) {
	ge, ok := As(NewInvalidInput(nil, "email", "required", "code", "too short"))
	require.True(t, ok)
	assert.Equal(t, map[string]string{"email": "required", "code": "too short"}, ge.Fields())
}

func TestUnwrapAndAs(t *testing.T) {
	err := fmt.Errorf("usecase: %w", NewServer(ErrNotFound))
	assert.ErrorIs(t, err, ErrNotFound)

	ge, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, CodeInternal, ge.Code())

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(errors.New("plain")))
	assert.True(t, IsRetryable(NewServer(errors.New("db down"))))
	assert.True(t, IsRetryable(NewUnavailable(errors.New("broker down"))))
	assert.False(t, IsRetryable(NewInvalidInput(nil, "email", "required")))
	assert.False(t, IsRetryable(NewBusiness("nope", CodeUnauthorized)))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "ERROR_TYPE_UNKNOWN", Type(99).String())
	assert.Equal(t, "ERROR_CODE_INTERNAL", Code(99).String())
	assert.Equal(t, "ERROR_CODE_UNAVAILABLE", CodeUnavailable.String())

	var ge *Error
	require.ErrorAs(t, NewBusiness("x", CodeConflict), &ge)
	assert.Contains(t, ge.String(), "ERROR_TYPE_BUSINESS")
	assert.Equal(t, http.StatusInternalServerError, (&Error{code: Code(99)}).StatusCode())
}
