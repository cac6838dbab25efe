package joydoc

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ValueKind is the JSON kind of a value in a document tree.
type ValueKind string

const (
	KindString  ValueKind = "string"
	KindNumber  ValueKind = "number"
	KindBoolean ValueKind = "boolean"
	KindObject  ValueKind = "object"
	KindArray   ValueKind = "array"
	KindNull    ValueKind = "null"
)

// KindOf reports the JSON kind of v. The second result is false when v is not a
// value a JSON decoder could have produced (or a non-finite number).
func KindOf(v any) (ValueKind, bool) {
	switch n := v.(type) {
	case nil:
		return KindNull, true
	case string:
		return KindString, true
	case bool:
		return KindBoolean, true
	case float64:
		return KindNumber, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		f := float64(n)
		return KindNumber, !math.IsNaN(f) && !math.IsInf(f, 0)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindNumber, true
	case json.Number:
		_, err := n.Float64()
		return KindNumber, err == nil
	case map[string]any:
		return KindObject, true
	case []any:
		return KindArray, true
	default:
		return "", false
	}
}

// Dispatch selects how an object value picks its contract.
type Dispatch int

const (
	// DispatchNone uses AttrType.Object as is.
	DispatchNone Dispatch = iota
	// DispatchField resolves the contract from the object's "type" through the field registry.
	DispatchField
	// DispatchColumn resolves the contract from the object's "type" through the column registry.
	DispatchColumn
)

// AttrType describes the values an attribute accepts.
type AttrType struct {
	// Kinds lists the accepted JSON kinds. Empty accepts any value.
	Kinds []ValueKind
	// NonEmpty rejects the empty string.
	NonEmpty bool
	// AllowEmptyString accepts "" in addition to Kinds.
	AllowEmptyString bool
	// Items is the element type of an array.
	Items *AttrType
	// MinItems and MaxItems bound array length when positive.
	MinItems int
	MaxItems int
	// Object is the contract an object value must satisfy.
	Object *Contract
	// Dispatch resolves Object from the value's discriminant.
	Dispatch Dispatch
	// Values is the type of every entry of an id-keyed map.
	Values *AttrType
	// SingleFlag names a boolean attribute expected to be true on exactly one
	// entry of an id-keyed map. Advisory only.
	SingleFlag string
}

func (t *AttrType) accepts(kind ValueKind) bool {
	if len(t.Kinds) == 0 {
		return true
	}
	for _, k := range t.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (t *AttrType) wantsObject() bool {
	return len(t.Kinds) == 1 && t.Kinds[0] == KindObject
}

func (t *AttrType) arity() string {
	switch {
	case t.MinItems > 0 && t.MinItems == t.MaxItems:
		return fmt.Sprintf("exactly %d item(s)", t.MinItems)
	case t.MinItems > 0 && t.MaxItems > 0:
		return fmt.Sprintf("between %d and %d items", t.MinItems, t.MaxItems)
	case t.MinItems > 0:
		return fmt.Sprintf("at least %d item(s)", t.MinItems)
	default:
		return fmt.Sprintf("at most %d item(s)", t.MaxItems)
	}
}

func (t *AttrType) describe() string {
	if len(t.Kinds) == 0 {
		return "any value"
	}
	names := make([]string, 0, len(t.Kinds)+1)
	for _, k := range t.Kinds {
		names = append(names, string(k))
	}
	if t.AllowEmptyString {
		names = append(names, `""`)
	}
	if len(names) == 1 {
		if t.Kinds[0] == KindObject || t.Kinds[0] == KindArray {
			return "an " + names[0]
		}
		return "a " + names[0]
	}
	return "one of " + strings.Join(names, ", ")
}

// Attribute is one declared attribute of a contract.
type Attribute struct {
	Name     string
	Type     *AttrType
	Required bool
	// Enum lists documented values of an open enumeration. Never enforced;
	// strict mode reports undocumented values as warnings.
	Enum []string
}

// OrderRef ties an ordering array to the array of objects whose ids it lists.
type OrderRef struct {
	Order  string
	Target string
}

// Contract is the attribute contract of one entity. Undeclared attributes are
// always accepted.
type Contract struct {
	Name       string
	Attributes []Attribute
	OrderRefs  []OrderRef
}

// Attribute returns the declared attribute with the given name.
func (c *Contract) Attribute(name string) (Attribute, bool) {
	for _, a := range c.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Required returns the names of the required attributes in declaration order.
func (c *Contract) Required() []string {
	var names []string
	for _, a := range c.Attributes {
		if a.Required {
			names = append(names, a.Name)
		}
	}
	return names
}

// Optional returns the names of the optional attributes in declaration order.
func (c *Contract) Optional() []string {
	var names []string
	for _, a := range c.Attributes {
		if !a.Required {
			names = append(names, a.Name)
		}
	}
	return names
}

// extend returns a new contract holding c's attributes followed by attrs.
// An attribute in attrs replaces a same-named attribute of c.
func (c *Contract) extend(name string, attrs ...Attribute) *Contract {
	out := &Contract{Name: name, OrderRefs: append([]OrderRef(nil), c.OrderRefs...)}
	replaced := make(map[string]Attribute, len(attrs))
	for _, a := range attrs {
		replaced[a.Name] = a
	}
	for _, a := range c.Attributes {
		if r, ok := replaced[a.Name]; ok {
			out.Attributes = append(out.Attributes, r)
			delete(replaced, a.Name)
			continue
		}
		out.Attributes = append(out.Attributes, a)
	}
	for _, a := range attrs {
		if _, ok := replaced[a.Name]; ok {
			out.Attributes = append(out.Attributes, a)
		}
	}
	return out
}

func req(name string, t *AttrType) Attribute { return Attribute{Name: name, Type: t, Required: true} }
func opt(name string, t *AttrType) Attribute { return Attribute{Name: name, Type: t} }

func (a Attribute) enum(values ...string) Attribute {
	a.Enum = values
	return a
}

func stringType() *AttrType  { return &AttrType{Kinds: []ValueKind{KindString}} }
func idType() *AttrType      { return &AttrType{Kinds: []ValueKind{KindString}, NonEmpty: true} }
func numberType() *AttrType  { return &AttrType{Kinds: []ValueKind{KindNumber}} }
func booleanType() *AttrType { return &AttrType{Kinds: []ValueKind{KindBoolean}} }
func anyType() *AttrType     { return &AttrType{} }
func openObjectType() *AttrType {
	return &AttrType{Kinds: []ValueKind{KindObject}}
}

func objectType(c *Contract) *AttrType {
	return &AttrType{Kinds: []ValueKind{KindObject}, Object: c}
}

func arrayOf(items *AttrType) *AttrType {
	return &AttrType{Kinds: []ValueKind{KindArray}, Items: items}
}

func mapOf(values *AttrType) *AttrType {
	return &AttrType{Kinds: []ValueKind{KindObject}, Values: values}
}

func nullable(t *AttrType) *AttrType {
	out := *t
	out.Kinds = append(append([]ValueKind(nil), t.Kinds...), KindNull)
	return &out
}
