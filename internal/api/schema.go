package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const maxBodyBytes = 64 << 10

// errValidation marks a body that parsed but does not match its schema.
var errValidation = errors.New("request validation failed")

var interactionSchema = mustSchema(`{
	"type": "object",
	"properties": {
		"path": {"type": "string", "maxLength": 512},
		"slug": {"type": "string", "minLength": 1, "maxLength": 256},
		"kind": {"type": "string", "enum": ["project", "blog"]},
		"tags": {"type": "array", "items": {"type": "string", "maxLength": 64}, "maxItems": 20}
	},
	"anyOf": [{"required": ["path"]}, {"required": ["slug"]}],
	"additionalProperties": false
}`)

var preferencesSchema = mustSchema(`{
	"type": "object",
	"properties": {
		"optOut": {"type": "boolean"},
		"segment": {"type": "string", "enum": ["", "local", "tech-hub", "federal", "drupal-community", "healthcare", "international", "general"]}
	},
	"minProperties": 1,
	"additionalProperties": false
}`)

// The newsletter form may post extra fields; only the shape of known ones is checked.
var newsletterSchema = mustSchema(`{
	"type": "object",
	"properties": {
		"email": {"type": "string", "maxLength": 320},
		"honeypot": {"type": "string"},
		"segment": {"type": "string", "maxLength": 64}
	}
}`)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return s
}

func validate(schema *gojsonschema.Schema, raw []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", errValidation, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", errValidation, strings.Join(errs, "; "))
	}
	return nil
}
