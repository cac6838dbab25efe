// Package schemagen compiles the JoyDoc attribute contracts into a draft
// 2020-12 JSON Schema and validates documents against it.
package schemagen

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/joyfill/joydoc"
)

const (
	// Draft is the JSON Schema dialect of the compiled artifact.
	Draft = "https://json-schema.org/draft/2020-12/schema"
	// VersionKeyword carries the artifact version at the schema root.
	VersionKeyword = "$joyfillSchemaVersion"

	fieldDispatchDef  = "Field"
	columnDispatchDef = "TableColumn"
)

// Options controls Compile.
type Options struct {
	// Version is written to the root as $joyfillSchemaVersion. Defaults to
	// joydoc.SchemaVersion.
	Version string
	// ID is the optional $id of the artifact.
	ID string
	// Registry supplies the field and column variants. Defaults to
	// joydoc.DefaultRegistry().
	Registry *joydoc.VariantRegistry
}

type compiler struct {
	registry *joydoc.VariantRegistry
	defs     map[string]*jsonschema.Schema
	owners   map[string]*joydoc.Contract
}

// Compile builds the document schema. Every contract becomes one $defs entry
// and is referenced by $ref, so recursive contracts compile to recursive
// references. Undeclared attributes stay allowed. Ordering references have no
// JSON Schema counterpart and are not encoded.
func Compile(opts Options) (*jsonschema.Schema, error) {
	if opts.Version == "" {
		opts.Version = joydoc.SchemaVersion
	}
	if opts.Registry == nil {
		opts.Registry = joydoc.DefaultRegistry()
	}

	c := &compiler{
		registry: opts.Registry,
		defs:     make(map[string]*jsonschema.Schema),
		owners:   make(map[string]*joydoc.Contract),
	}
	if err := c.dispatchDefs(); err != nil {
		return nil, err
	}
	root, err := c.ref(joydoc.DocumentContract())
	if err != nil {
		return nil, err
	}

	root.Type = "object"
	root.Schema = Draft
	root.ID = opts.ID
	root.Title = "JoyDoc"
	root.Defs = c.defs
	root.Extra = map[string]any{VersionKeyword: opts.Version}
	return root, nil
}

// dispatchDefs emits the Field and TableColumn definitions. A known
// discriminant selects its variant with if/then; anything else, including a
// missing or non-string type, falls back to the custom contract.
func (c *compiler) dispatchDefs() error {
	fieldDef, err := c.dispatch(c.registry.FieldVariants(), c.registry.ResolveFieldVariant, c.registry.CustomFieldContract())
	if err != nil {
		return err
	}
	c.defs[fieldDispatchDef] = fieldDef

	columnDef, err := c.dispatch(c.registry.ColumnVariants(), c.registry.ResolveColumnVariant, c.registry.CustomColumnContract())
	if err != nil {
		return err
	}
	c.defs[columnDispatchDef] = columnDef
	return nil
}

func (c *compiler) dispatch(discriminants []string, resolve func(string) joydoc.VariantContract, custom *joydoc.Contract) (*jsonschema.Schema, error) {
	sort.Strings(discriminants)
	def := &jsonschema.Schema{}

	known := make([]any, 0, len(discriminants))
	for _, d := range discriminants {
		target, err := c.ref(resolve(d).Contract)
		if err != nil {
			return nil, err
		}
		var value any = d
		def.AllOf = append(def.AllOf, &jsonschema.Schema{
			If: &jsonschema.Schema{
				Required:   []string{"type"},
				Properties: map[string]*jsonschema.Schema{"type": {Const: &value}},
			},
			Then: target,
		})
		known = append(known, d)
	}

	fallback, err := c.ref(custom)
	if err != nil {
		return nil, err
	}
	def.AllOf = append(def.AllOf, &jsonschema.Schema{
		If: &jsonschema.Schema{
			Required:   []string{"type"},
			Properties: map[string]*jsonschema.Schema{"type": {Enum: known}},
		},
		Else: fallback,
	})
	return def, nil
}

// ref returns a fresh $ref node for contract, compiling it on first use.
// Schema nodes must form a tree, so a node is never shared.
func (c *compiler) ref(contract *joydoc.Contract) (*jsonschema.Schema, error) {
	node := &jsonschema.Schema{Ref: "#/$defs/" + contract.Name}
	if owner, ok := c.owners[contract.Name]; ok {
		if owner != contract {
			return nil, joydoc.NewError(joydoc.ErrorTypeInternal, joydoc.ErrCodeSchemaCompile,
				fmt.Sprintf("two contracts are named %q", contract.Name))
		}
		return node, nil
	}
	if _, ok := c.defs[contract.Name]; ok {
		return nil, joydoc.NewError(joydoc.ErrorTypeInternal, joydoc.ErrCodeSchemaCompile,
			fmt.Sprintf("contract name %q is reserved", contract.Name))
	}

	// Contract definitions carry no type of their own. The referencing
	// attribute decides which kinds are accepted, so nullable objects work.
	def := &jsonschema.Schema{Properties: make(map[string]*jsonschema.Schema)}
	c.owners[contract.Name] = contract
	c.defs[contract.Name] = def

	for _, a := range contract.Attributes {
		s, err := c.attrType(a.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", contract.Name, a.Name, err)
		}
		if len(a.Enum) > 0 {
			s.Extra = map[string]any{"x-documented-values": a.Enum}
		}
		def.Properties[a.Name] = s
	}
	def.Required = contract.Required()
	return node, nil
}

func (c *compiler) attrType(t *joydoc.AttrType) (*jsonschema.Schema, error) {
	s := &jsonschema.Schema{}
	if t == nil {
		return s, nil
	}

	switch len(t.Kinds) {
	case 0:
	case 1:
		s.Type = string(t.Kinds[0])
	default:
		for _, k := range t.Kinds {
			s.Types = append(s.Types, string(k))
		}
	}
	if t.NonEmpty {
		s.MinLength = intPtr(1)
	}
	if t.MinItems > 0 {
		s.MinItems = intPtr(t.MinItems)
	}
	if t.MaxItems > 0 {
		s.MaxItems = intPtr(t.MaxItems)
	}

	if t.Items != nil {
		items, err := c.attrType(t.Items)
		if err != nil {
			return nil, err
		}
		s.Items = items
	}
	if t.Values != nil {
		values, err := c.attrType(t.Values)
		if err != nil {
			return nil, err
		}
		s.AdditionalProperties = values
	}

	switch {
	case t.Dispatch == joydoc.DispatchField:
		s.AllOf = append(s.AllOf, &jsonschema.Schema{Ref: "#/$defs/" + fieldDispatchDef})
	case t.Dispatch == joydoc.DispatchColumn:
		s.AllOf = append(s.AllOf, &jsonschema.Schema{Ref: "#/$defs/" + columnDispatchDef})
	case t.Object != nil:
		target, err := c.ref(t.Object)
		if err != nil {
			return nil, err
		}
		s.AllOf = append(s.AllOf, target)
	}

	if t.AllowEmptyString {
		var empty any = ""
		return &jsonschema.Schema{AnyOf: []*jsonschema.Schema{s, {Const: &empty}}}, nil
	}
	return s, nil
}

func intPtr(n int) *int { return &n }

// Marshal renders schema as indented JSON.
func Marshal(schema *jsonschema.Schema) ([]byte, error) {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return append(data, '\n'), nil
}
