// internal/common/validation/schema_test.go
package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeSchema(t *testing.T) {
	v := MustValidator(SubscribeSchema)

	tests := []struct {
		name      string
		body      string
		wantValid bool
		wantField string
	}{
		{"valid", `{"customerNumber":"234774784"}`, true, ""},
		{"missing customer", `{}`, false, "customerNumber"},
		{"blank customer", `{"customerNumber":"   "}`, false, "customerNumber"},
		{"wrong type", `{"customerNumber":234774784}`, false, "customerNumber"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate([]byte(tt.body))
			assert.Equal(t, tt.wantValid, result.Valid, result.GetErrorMessages())
			if tt.wantField != "" {
				assert.True(t, result.HasErrors(tt.wantField), result.GetErrorMessages())
			}
		})
	}
}

func TestLoanRequestSchema(t *testing.T) {
	v := MustValidator(LoanRequestSchema)

	tests := []struct {
		name      string
		body      string
		wantValid bool
	}{
		{"numeric amount", `{"customerNumber":"234774784","amount":5000}`, true},
		{"decimal string amount", `{"customerNumber":"234774784","amount":"5000.50"}`, true},
		// sign is checked by the workflow, not the schema
		{"negative amount", `{"customerNumber":"234774784","amount":-1}`, true},
		{"missing amount", `{"customerNumber":"234774784"}`, false},
		{"non-numeric string", `{"customerNumber":"234774784","amount":"lots"}`, false},
		{"null amount", `{"customerNumber":"234774784","amount":null}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate([]byte(tt.body))
			assert.Equal(t, tt.wantValid, result.Valid, result.GetErrorMessages())
		})
	}
}

func TestValidator_MalformedDocument(t *testing.T) {
	result := MustValidator(SubscribeSchema).Validate([]byte(`{"customerNumber":`))

	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "MALFORMED_DOCUMENT", result.Errors[0].Code)
}

func TestNewValidator_BadSchema(t *testing.T) {
	_, err := NewValidator(`{"type": 12}`)
	assert.Error(t, err)
}
