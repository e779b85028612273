package actions

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/deskmux/deskmux/pkg/models"
)

// actionSchemaDoc describes the §6.2 desktop action grammar: every action
// is a tagged object, window.* actions carry a windowId.
const actionSchemaDoc = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {
      "type": "string",
      "enum": [
        "window.create", "window.close", "window.setTitle", "window.setContent",
        "window.updateContent", "window.move", "window.resize", "window.minimize",
        "window.maximize", "window.restore", "window.focus", "window.lock",
        "window.unlock", "notification.show", "notification.dismiss",
        "toast.show", "toast.dismiss", "dialog.confirm"
      ]
    },
    "windowId": {"type": "string"}
  },
  "if": {
    "properties": {"type": {"pattern": "^window\\."}}
  },
  "then": {
    "required": ["type", "windowId"]
  }
}`

// SchemaValidator validates actions against the desktop action grammar
// using github.com/santhosh-tekuri/jsonschema/v5.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// NewSchemaValidator compiles the built-in action grammar schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("action.json", bytes.NewReader([]byte(actionSchemaDoc))); err != nil {
		return nil, fmt.Errorf("actions: add schema resource: %w", err)
	}
	schema, err := compiler.Compile("action.json")
	if err != nil {
		return nil, fmt.Errorf("actions: compile schema: %w", err)
	}
	return &SchemaValidator{schema: schema}, nil
}

// Validate checks a into the compiled schema by round-tripping it through
// encoding/json, matching how actions arrive over the wire.
func (v *SchemaValidator) Validate(a models.Action) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("actions: marshal for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("actions: unmarshal for validation: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("actions: schema validation: %w", err)
	}
	return nil
}
