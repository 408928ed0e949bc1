package models

// FieldType is the input widget of a configuration field.
type FieldType string

const (
	FieldTypeText        FieldType = "text"
	FieldTypeTextarea    FieldType = "textarea"
	FieldTypeNumber      FieldType = "number"
	FieldTypeBoolean     FieldType = "checkbox"
	FieldTypeSelect      FieldType = "select"
	FieldTypeMultiSelect FieldType = "multiselect"
	FieldTypeEmail       FieldType = "email"
	FieldTypeURL         FieldType = "url"
	FieldTypeCron        FieldType = "cron"
)

// Field describes one key of a step's configuration.
type Field struct {
	Key         string    `json:"key"`
	Label       string    `json:"label"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
	Placeholder string    `json:"placeholder,omitempty"`
	Options     []Option  `json:"options,omitempty"`
	Default     any       `json:"default,omitempty"`
	Pattern     string    `json:"pattern,omitempty"`
}

// Option is one choice of a select field.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// JSONSchema represents a JSON Schema for configuration validation
type JSONSchema struct {
	Type        string               `json:"type"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Required    []string             `json:"required,omitempty"`
	Title       string               `json:"title,omitempty"`
	Description string               `json:"description,omitempty"`
}

// Property represents a JSON Schema property
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Enum        []any     `json:"enum,omitempty"`
	Default     any       `json:"default,omitempty"`
	Format      string    `json:"format,omitempty"`
	MinLength   *int      `json:"minLength,omitempty"`
	Pattern     string    `json:"pattern,omitempty"`
	Items       *Property `json:"items,omitempty"`
	MinItems    *int      `json:"minItems,omitempty"`
}

// BuildSchema converts a field list into an object schema. Required text
// fields get minLength 1 and required multiselects minItems 1, so an empty
// value counts as missing.
func BuildSchema(title string, fields []*Field) *JSONSchema {
	schema := &JSONSchema{
		Type:       "object",
		Title:      title,
		Properties: make(map[string]*Property, len(fields)),
	}

	one := 1

	for _, field := range fields {
		prop := &Property{
			Description: field.Description,
			Default:     field.Default,
			Pattern:     field.Pattern,
		}

		switch field.Type {
		case FieldTypeNumber:
			prop.Type = "number"
		case FieldTypeBoolean:
			prop.Type = "boolean"
		case FieldTypeMultiSelect:
			prop.Type = "array"
			prop.Items = &Property{Type: "string", Enum: optionValues(field.Options)}
			if field.Required {
				prop.MinItems = &one
			}
		default:
			prop.Type = "string"
			prop.Enum = optionValues(field.Options)
			if field.Required {
				prop.MinLength = &one
			}
		}

		switch field.Type {
		case FieldTypeEmail:
			prop.Format = "email"
		case FieldTypeURL:
			prop.Format = "uri"
		case FieldTypeCron:
			prop.Format = "cron"
		}

		schema.Properties[field.Key] = prop

		if field.Required {
			schema.Required = append(schema.Required, field.Key)
		}
	}

	return schema
}

func optionValues(options []Option) []any {
	if len(options) == 0 {
		return nil
	}

	values := make([]any, len(options))
	for i, option := range options {
		values[i] = option.Value
	}

	return values
}
