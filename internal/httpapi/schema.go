package httpapi

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// clientMsgSchema rejects malformed frames before they reach the
// registry: exactly one variant key, correctly shaped payload, and no
// degenerate operation primitives (zero counts, empty inserts).
const clientMsgSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"minProperties": 1,
	"maxProperties": 1,
	"additionalProperties": false,
	"properties": {
		"Edit": {
			"type": "object",
			"required": ["revision", "operation"],
			"additionalProperties": false,
			"properties": {
				"revision": {"type": "integer", "minimum": 0},
				"operation": {
					"type": "array",
					"items": {
						"anyOf": [
							{"type": "integer", "not": {"const": 0}},
							{"type": "string", "minLength": 1}
						]
					}
				}
			}
		},
		"SetLanguage": {"type": "string"},
		"ClientInfo": {
			"type": "object",
			"required": ["name", "hue"],
			"additionalProperties": false,
			"properties": {
				"name": {"type": "string"},
				"hue": {"type": "integer"}
			}
		},
		"CursorData": {
			"type": "object",
			"required": ["cursors", "selections"],
			"additionalProperties": false,
			"properties": {
				"cursors": {
					"type": "array",
					"items": {"type": "integer", "minimum": 0}
				},
				"selections": {
					"type": "array",
					"items": {
						"type": "array",
						"items": {"type": "integer", "minimum": 0},
						"minItems": 2,
						"maxItems": 2
					}
				}
			}
		}
	}
}`

type clientMsgValidator struct {
	schema *jsonschema.Schema
}

func mustClientMsgValidator() *clientMsgValidator {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(clientMsgSchema))
	if err != nil {
		panic(fmt.Sprintf("httpapi: parse client message schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("client_msg.json", doc); err != nil {
		panic(fmt.Sprintf("httpapi: add client message schema: %v", err))
	}
	schema, err := compiler.Compile("client_msg.json")
	if err != nil {
		panic(fmt.Sprintf("httpapi: compile client message schema: %v", err))
	}
	return &clientMsgValidator{schema: schema}
}

// Validate checks one raw frame against the client message schema.
func (v *clientMsgValidator) Validate(data []byte) error {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return v.schema.Validate(instance)
}
