package joydoc

import (
	"fmt"
	"sort"
	"sync"
)

// Field discriminants with a dedicated contract.
const (
	FieldImage       = "image"
	FieldRichText    = "richText"
	FieldFile        = "file"
	FieldText        = "text"
	FieldTextarea    = "textarea"
	FieldNumber      = "number"
	FieldDropdown    = "dropdown"
	FieldMultiSelect = "multiSelect"
	FieldDate        = "date"
	FieldSignature   = "signature"
	FieldTable       = "table"
	FieldChart       = "chart"
	FieldCollection  = "collection"
	FieldBlock       = "block"
	FieldRTE         = "rte"
)

// Column discriminants with a dedicated contract.
const (
	ColumnText        = "text"
	ColumnDropdown    = "dropdown"
	ColumnMultiSelect = "multiSelect"
	ColumnImage       = "image"
	ColumnNumber      = "number"
	ColumnDate        = "date"
	ColumnBlock       = "block"
	ColumnBarcode     = "barcode"
	ColumnSignature   = "signature"
)

// VariantContract is the outcome of resolving a discriminant.
type VariantContract struct {
	Discriminant string
	// Known is false when the discriminant fell back to the open custom contract.
	Known    bool
	Contract *Contract
}

// VariantRegistry maps discriminant values to attribute contracts for fields
// and table columns. Unregistered discriminants resolve to an open contract
// that only carries the base attributes.
type VariantRegistry struct {
	mu           sync.RWMutex
	fields       map[string]*Contract
	columns      map[string]*Contract
	customField  *Contract
	customColumn *Contract
}

var defaultRegistry = NewVariantRegistry()

// NewVariantRegistry creates a registry holding the built-in field and column variants.
func NewVariantRegistry() *VariantRegistry {
	r := &VariantRegistry{
		fields:       builtinFieldVariants(entities),
		columns:      builtinColumnVariants(entities),
		customField:  entities.fieldBase.extend("CustomField"),
		customColumn: entities.columnBase.extend("CustomColumn"),
	}
	return r
}

// DefaultRegistry returns the registry used by the package-level functions.
// It holds the built-in variants only; register additional variants on a
// registry created with NewVariantRegistry.
func DefaultRegistry() *VariantRegistry {
	return defaultRegistry
}

// ResolveFieldVariant resolves a field discriminant with the default registry.
func ResolveFieldVariant(discriminant string) VariantContract {
	return defaultRegistry.ResolveFieldVariant(discriminant)
}

// ResolveColumnVariant resolves a column discriminant with the default registry.
func ResolveColumnVariant(discriminant string) VariantContract {
	return defaultRegistry.ResolveColumnVariant(discriminant)
}

// ResolveFieldVariant returns the contract for a Field with the given type.
func (r *VariantRegistry) ResolveFieldVariant(discriminant string) VariantContract {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.fields[discriminant]; ok {
		return VariantContract{Discriminant: discriminant, Known: true, Contract: c}
	}
	return VariantContract{Discriminant: discriminant, Contract: r.customField}
}

// ResolveColumnVariant returns the contract for a TableColumn with the given type.
func (r *VariantRegistry) ResolveColumnVariant(discriminant string) VariantContract {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.columns[discriminant]; ok {
		return VariantContract{Discriminant: discriminant, Known: true, Contract: c}
	}
	return VariantContract{Discriminant: discriminant, Contract: r.customColumn}
}

// RegisterFieldVariant adds or replaces a field variant. attrs are appended to
// the base field attributes.
func (r *VariantRegistry) RegisterFieldVariant(discriminant string, attrs ...Attribute) (*Contract, error) {
	if discriminant == "" {
		return nil, fmt.Errorf("field discriminant cannot be empty")
	}
	if r == defaultRegistry {
		return nil, fmt.Errorf("the default registry is read-only; use NewVariantRegistry")
	}
	c := entities.fieldBase.extend(discriminant+"Field", attrs...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields[discriminant] = c
	return c, nil
}

// RegisterColumnVariant adds or replaces a column variant. attrs are appended
// to the base column attributes.
func (r *VariantRegistry) RegisterColumnVariant(discriminant string, attrs ...Attribute) (*Contract, error) {
	if discriminant == "" {
		return nil, fmt.Errorf("column discriminant cannot be empty")
	}
	if r == defaultRegistry {
		return nil, fmt.Errorf("the default registry is read-only; use NewVariantRegistry")
	}
	c := entities.columnBase.extend(discriminant+"Column", attrs...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.columns[discriminant] = c
	return c, nil
}

// FieldVariants lists the registered field discriminants in sorted order.
func (r *VariantRegistry) FieldVariants() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.fields)
}

// ColumnVariants lists the registered column discriminants in sorted order.
func (r *VariantRegistry) ColumnVariants() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.columns)
}

// CustomFieldContract is the open contract unknown field types resolve to.
func (r *VariantRegistry) CustomFieldContract() *Contract { return r.customField }

// CustomColumnContract is the open contract unknown column types resolve to.
func (r *VariantRegistry) CustomColumnContract() *Contract { return r.customColumn }

func sortedKeys(m map[string]*Contract) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func builtinFieldVariants(m *entityModel) map[string]*Contract {
	base := m.fieldBase
	variant := func(discriminant string, attrs ...Attribute) *Contract {
		return base.extend(discriminant+"Field", attrs...)
	}
	stringValue := opt("value", stringType())
	fileValues := opt("value", arrayOf(objectType(m.contracts[ContractFileValue])))

	table := variant(FieldTable,
		req("value", arrayOf(objectType(m.contracts[ContractTableRow]))),
		req("rowOrder", arrayOf(stringType())),
		req("tableColumns", arrayOf(m.columnType)),
		req("tableColumnOrder", arrayOf(stringType())),
	)
	table.OrderRefs = []OrderRef{
		{Order: "rowOrder", Target: "value"},
		{Order: "tableColumnOrder", Target: "tableColumns"},
	}

	return map[string]*Contract{
		FieldText:     variant(FieldText, stringValue),
		FieldTextarea: variant(FieldTextarea, stringValue),
		FieldBlock:    variant(FieldBlock, stringValue),
		FieldRichText: variant(FieldRichText, stringValue),
		FieldRTE:      variant(FieldRTE, stringValue),
		FieldNumber: variant(FieldNumber,
			opt("value", &AttrType{Kinds: []ValueKind{KindNumber}, AllowEmptyString: true}),
		),
		FieldDate: variant(FieldDate,
			opt("value", &AttrType{Kinds: []ValueKind{KindNumber, KindNull}, AllowEmptyString: true}),
			opt("format", stringType()),
		),
		FieldDropdown: variant(FieldDropdown,
			req("options", m.optionsType),
			stringValue,
		),
		FieldMultiSelect: variant(FieldMultiSelect,
			req("options", m.optionsType),
			opt("value", arrayOf(stringType())),
			opt("multi", booleanType()),
		),
		FieldImage: variant(FieldImage, fileValues, opt("multi", booleanType())),
		FieldFile:  variant(FieldFile, fileValues, opt("multi", booleanType())),
		FieldSignature: variant(FieldSignature,
			opt("value", anyType()),
			opt("signer", stringType()),
		),
		FieldTable: table,
		FieldChart: variant(FieldChart,
			req("yTitle", stringType()),
			req("xTitle", stringType()),
			req("yMax", numberType()),
			req("yMin", numberType()),
			req("xMax", numberType()),
			req("xMin", numberType()),
			opt("value", arrayOf(objectType(m.contracts[ContractChartSeries]))),
		),
		FieldCollection: variant(FieldCollection,
			req("schema", m.schemaMapType),
			req("value", m.collectionType),
		),
	}
}

func builtinColumnVariants(m *entityModel) map[string]*Contract {
	base := m.columnBase
	variant := func(discriminant string, attrs ...Attribute) *Contract {
		return base.extend(discriminant+"Column", attrs...)
	}
	stringValue := opt("value", stringType())
	imageBounds := []Attribute{
		opt("maxImageWidth", numberType()),
		opt("maxImageHeight", numberType()),
	}

	return map[string]*Contract{
		ColumnText:    variant(ColumnText, stringValue),
		ColumnBlock:   variant(ColumnBlock, stringValue),
		ColumnBarcode: variant(ColumnBarcode, stringValue),
		ColumnDropdown: variant(ColumnDropdown,
			stringValue,
			opt("options", m.optionsType),
		),
		ColumnMultiSelect: variant(ColumnMultiSelect,
			opt("value", arrayOf(stringType())),
			opt("options", m.optionsType),
		),
		ColumnNumber:    variant(ColumnNumber, opt("value", numberType())),
		ColumnDate:      variant(ColumnDate, opt("value", numberType())),
		ColumnImage:     variant(ColumnImage, append(imageBounds, opt("multi", booleanType()))...),
		ColumnSignature: variant(ColumnSignature, imageBounds...),
	}
}
