// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// SubscribeSchema describes POST /api/v1/mobile/subscribe.
const SubscribeSchema = `{
  "type": "object",
  "properties": {
    "customerNumber": {"type": "string", "pattern": "\\S"}
  },
  "required": ["customerNumber"]
}`

// LoanRequestSchema describes POST /api/v1/mobile/loans/request. The amount
// may be sent as a JSON number or a decimal string.
const LoanRequestSchema = `{
  "type": "object",
  "properties": {
    "customerNumber": {"type": "string", "pattern": "\\S"},
    "amount": {
      "oneOf": [
        {"type": "number"},
        {"type": "string", "pattern": "^-?[0-9]+(\\.[0-9]+)?$"}
      ]
    }
  },
  "required": ["customerNumber", "amount"]
}`

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validator holds compiled schemas.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles a JSON schema.
func NewValidator(schemaJSON string) (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// MustValidator is NewValidator for package-level schemas known to compile.
func MustValidator(schemaJSON string) *Validator {
	v, err := NewValidator(schemaJSON)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks a raw JSON document. Malformed JSON is reported as a
// single error on the document root.
func (v *Validator) Validate(document []byte) *ValidationResult {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return &ValidationResult{
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "MALFORMED_DOCUMENT",
			}},
		}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   fieldName(desc),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return &ValidationResult{
		Valid:  result.Valid(),
		Errors: errs,
	}
}

// required errors are reported on the parent; point them at the missing property
func fieldName(desc gojsonschema.ResultError) string {
	if desc.Type() == "required" {
		if prop, ok := desc.Details()["property"].(string); ok {
			return prop
		}
	}
	return desc.Field()
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}
