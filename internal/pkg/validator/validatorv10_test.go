package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"confirmation_code" validate:"required,confirmation_code"`
	Note  string `validate:"omitempty,max=3"`
}

func TestV10Validator(t *testing.T) {
	v, err := NewV10Validator()
	require.NoError(t, err)

	tests := []struct {
		name   string
		in     sample
		fields []string
	}{
		{"valid", sample{Email: "a@example.com", Code: "3f2a-11"}, nil},
		{"missing all", sample{}, []string{"email", "confirmation_code"}},
		{"bad email", sample{Email: "nope", Code: "x"}, []string{"email"}},
		{"code with space", sample{Email: "a@example.com", Code: "a b"}, []string{"confirmation_code"}},
		{"code too long", sample{Email: "a@example.com", Code: strings.Repeat("x", 129)}, []string{"confirmation_code"}},
		{"untagged field name", sample{Email: "a@example.com", Code: "x", Note: "long"}, []string{"Note"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.in)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}

			var verr V10ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Len(t, verr.Values(), len(tt.fields))
			for _, f := range tt.fields {
				assert.Contains(t, verr.Values(), f)
			}
		})
	}
}

func TestV10ValidationError_Error(t *testing.T) {
	assert.Equal(t, "validation error", V10ValidationError{}.Error())
	assert.JSONEq(t, `{"email":"required"}`, V10ValidationError{"email": "required"}.Error())
}
