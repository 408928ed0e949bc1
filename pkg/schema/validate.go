// Package schema validates step configurations against the field schema of
// their trigger or action before anything is sent to the backend.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/area/pkg/models"
	"github.com/robfig/cron/v3"
	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidConfig is returned when a configuration does not satisfy its fields.
var ErrInvalidConfig = errors.New("invalid configuration")

func init() {
	gojsonschema.FormatCheckers.Add("cron", cronChecker{})
}

type cronChecker struct{}

func (cronChecker) IsFormat(input any) bool {
	expr, ok := input.(string)
	if !ok {
		return false
	}

	_, err := cron.ParseStandard(expr)

	return err == nil
}

// FieldError is a single failed constraint.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every failed constraint of a configuration.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}

	return fmt.Sprintf("%s: %s", ErrInvalidConfig, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// Fields returns the keys that failed validation, in report order.
func (e *ValidationError) Fields() []string {
	fields := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		fields[i] = fe.Field
	}

	return fields
}

// Validate checks config against fields. Empty values of optional fields are
// ignored, the way an untouched form input would be.
func Validate(title string, fields []*models.Field, config map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	document := make(map[string]any, len(config))
	optional := make(map[string]bool, len(fields))

	for _, field := range fields {
		optional[field.Key] = !field.Required
	}

	for key, value := range config {
		if optional[key] && isEmpty(value) {
			continue
		}

		document[key] = normalize(value)
	}

	schemaLoader := gojsonschema.NewGoLoader(models.BuildSchema(title, fields))
	dataLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{}

	for _, resultErr := range result.Errors() {
		field := resultErr.Field()
		if field == "(root)" {
			if missing, ok := resultErr.Details()["property"].(string); ok {
				field = missing
			}
		}

		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   strings.SplitN(field, ".", 2)[0],
			Message: resultErr.Description(),
		})
	}

	return validationErr
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

// normalize turns typed slices into []any so the JSON loader sees arrays.
func normalize(value any) any {
	if values, ok := value.([]string); ok {
		out := make([]any, len(values))
		for i, v := range values {
			out[i] = v
		}

		return out
	}

	return value
}
