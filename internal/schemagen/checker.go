package schemagen

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/joyfill/joydoc"
)

// Checker validates documents with a resolved compiled schema. It is safe for
// concurrent use.
type Checker struct {
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
}

// NewChecker resolves schema once. schema must not be changed afterwards.
func NewChecker(schema *jsonschema.Schema) (*Checker, error) {
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return nil, joydoc.NewError(joydoc.ErrorTypeInternal, joydoc.ErrCodeSchemaCompile,
			"failed to resolve JSON schema").WithCause(err)
	}
	return &Checker{schema: schema, resolved: resolved}, nil
}

// NewDefaultChecker compiles the built-in contracts and resolves them.
func NewDefaultChecker() (*Checker, error) {
	schema, err := Compile(Options{})
	if err != nil {
		return nil, err
	}
	return NewChecker(schema)
}

// Schema returns the schema the checker validates with.
func (c *Checker) Schema() *jsonschema.Schema {
	return c.schema
}

// Check validates doc, which is raw JSON or a generic JSON tree.
func (c *Checker) Check(doc any) error {
	var instance any
	switch d := doc.(type) {
	case []byte:
		if err := json.Unmarshal(d, &instance); err != nil {
			return joydoc.NewDecodeError(joydoc.ErrCodeInvalidJSON, "malformed JSON", err)
		}
	case json.RawMessage:
		if err := json.Unmarshal(d, &instance); err != nil {
			return joydoc.NewDecodeError(joydoc.ErrCodeInvalidJSON, "malformed JSON", err)
		}
	default:
		instance = d
	}

	if err := c.resolved.Validate(instance); err != nil {
		return fmt.Errorf("JSON schema validation failed: %w", err)
	}
	return nil
}
