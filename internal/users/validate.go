package users

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var (
	createSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"email":   {"type": "string", "format": "email"},
			"name":    {"type": ["string", "null"]},
			"phone":   {"type": "integer", "minimum": 0},
			"city":    {"type": ["string", "null"]},
			"state":   {"type": ["string", "null"]},
			"country": {"type": ["string", "null"]}
		},
		"required": ["email", "phone"]
	}`)

	updateSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"email":   {"type": "string", "format": "email"},
			"name":    {"type": ["string", "null"]},
			"phone":   {"type": "integer", "minimum": 0},
			"city":    {"type": ["string", "null"]},
			"state":   {"type": ["string", "null"]},
			"country": {"type": ["string", "null"]}
		}
	}`)
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("users: invalid built-in schema: %v", err))
	}
	return schema
}

// ValidateCreateJSON checks a raw create body against the users schema.
func ValidateCreateJSON(body []byte) error {
	return validate(createSchema, gojsonschema.NewBytesLoader(body))
}

// ValidateUpdateJSON checks a raw partial-update body against the users schema.
func ValidateUpdateJSON(body []byte) error {
	return validate(updateSchema, gojsonschema.NewBytesLoader(body))
}

func validate(schema *gojsonschema.Schema, doc gojsonschema.JSONLoader) error {
	result, err := schema.Validate(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, ", "))
}
