package joydoc

import "sort"

// Contract names of the entity model.
const (
	ContractDocument               = "Document"
	ContractFile                   = "File"
	ContractView                   = "View"
	ContractPage                   = "Page"
	ContractHeaderFooter           = "HeaderFooter"
	ContractFieldPosition          = "FieldPosition"
	ContractCoreStyles             = "CoreStyles"
	ContractPositionColumn         = "PositionColumnOverride"
	ContractPositionSchema         = "PositionSchemaOverride"
	ContractLogic                  = "Logic"
	ContractCondition              = "Condition"
	ContractSchemaLogic            = "SchemaLogic"
	ContractSchemaLogicCondition   = "SchemaLogicCondition"
	ContractFormula                = "Formula"
	ContractFieldFormula           = "FieldFormula"
	ContractFieldBase              = "FieldBase"
	ContractColumnBase             = "TableColumnBase"
	ContractOption                 = "Option"
	ContractTableRow               = "TableRow"
	ContractFileValue              = "FileValue"
	ContractChartSeries            = "ChartSeries"
	ContractChartPoint             = "ChartPoint"
	ContractSchemaDefinition       = "SchemaDefinition"
	ContractCollectionItem         = "CollectionItem"
	ContractCollectionItemChildren = "CollectionItemChildren"
)

var (
	conditionOperators = []string{"*=", "null=", "=", "!=", "?=", ">", "<"}
	displayTypes       = []string{"original", "horizontal", "text", "circle", "square", "check", "radio", "inputGroup"}
)

// entityModel holds every contract and the shared attribute types that
// reference them.
type entityModel struct {
	contracts map[string]*Contract

	document *Contract
	// documentShell is document with "fields" reduced to a plain array so
	// fields can be validated one by one.
	documentShell *Contract

	fieldBase  *Contract
	columnBase *Contract

	logicType       *AttrType
	schemaLogicType *AttrType
	schemaMapType   *AttrType
	fieldType       *AttrType
	columnType      *AttrType
	optionsType     *AttrType
	collectionType  *AttrType
}

var entities = buildEntities()

func buildEntities() *entityModel {
	m := &entityModel{contracts: make(map[string]*Contract)}
	add := func(c *Contract) *Contract {
		m.contracts[c.Name] = c
		return c
	}

	m.fieldType = &AttrType{Kinds: []ValueKind{KindObject}, Dispatch: DispatchField}
	m.columnType = &AttrType{Kinds: []ValueKind{KindObject}, Dispatch: DispatchColumn}

	condition := add(&Contract{Name: ContractCondition, Attributes: []Attribute{
		opt("_id", idType()),
		req("file", stringType()),
		req("page", stringType()),
		req("field", stringType()),
		req("condition", stringType()).enum(conditionOperators...),
		opt("value", anyType()),
	}})
	logic := add(&Contract{Name: ContractLogic, Attributes: []Attribute{
		opt("_id", idType()),
		req("action", stringType()).enum("show", "hide"),
		req("eval", stringType()).enum("and", "or"),
		req("conditions", arrayOf(objectType(condition))),
	}})
	m.logicType = objectType(logic)

	schemaCondition := add(&Contract{Name: ContractSchemaLogicCondition, Attributes: []Attribute{
		opt("_id", idType()),
		req("schema", stringType()),
		req("column", stringType()),
		req("condition", stringType()).enum(conditionOperators...),
		opt("value", anyType()),
	}})
	schemaLogic := add(logic.extend(ContractSchemaLogic,
		req("conditions", arrayOf(objectType(schemaCondition))),
	))
	m.schemaLogicType = objectType(schemaLogic)

	coreStyles := add(&Contract{Name: ContractCoreStyles, Attributes: []Attribute{
		opt("titleFontSize", numberType()),
		opt("titleFontColor", stringType()),
		opt("titleFontStyle", stringType()).enum("normal", "italic"),
		opt("titleFontWeight", stringType()),
		opt("titleTextAlign", stringType()).enum("left", "center", "right"),
		opt("titleTextTransform", stringType()).enum("none", "uppercase"),
		opt("titleTextDecoration", stringType()).enum("none", "underline"),
		opt("fontSize", numberType()),
		opt("fontColor", stringType()),
		opt("fontStyle", stringType()).enum("normal", "italic"),
		opt("fontWeight", stringType()),
		opt("textAlign", stringType()).enum("left", "center", "right"),
		opt("textTransform", stringType()).enum("none", "uppercase"),
		opt("textDecoration", stringType()).enum("none", "underline"),
		opt("textOverflow", stringType()).enum("", "ellipsis"),
		opt("padding", numberType()),
		opt("margin", numberType()),
		opt("borderColor", stringType()),
		opt("borderRadius", numberType()),
		opt("borderWidth", numberType()),
		opt("backgroundColor", stringType()),
	}})

	positionColumn := add(&Contract{Name: ContractPositionColumn, Attributes: []Attribute{
		opt("format", stringType()),
		opt("hidden", booleanType()),
	}})
	positionSchema := add(&Contract{Name: ContractPositionSchema, Attributes: []Attribute{
		opt("tableColumns", mapOf(objectType(positionColumn))),
	}})
	fieldPosition := add(coreStyles.extend(ContractFieldPosition,
		req("_id", idType()),
		req("field", idType()),
		req("displayType", stringType()).enum(displayTypes...),
		req("width", numberType()),
		req("height", numberType()),
		req("x", numberType()),
		req("y", numberType()),
		req("type", stringType()),
		opt("primaryMaxWidth", numberType()),
		opt("primaryMaxHeight", numberType()),
		opt("lineHeight", numberType()),
		opt("zIndex", numberType()),
		opt("rowIndex", numberType()),
		opt("format", stringType()),
		opt("targetValue", stringType()),
		opt("titleDisplay", stringType()).enum("none", "inline"),
		opt("column", stringType()),
		opt("columnType", stringType()),
		opt("columnTitleFontSize", numberType()),
		opt("columnTitlePadding", numberType()),
		opt("columnTitleFontColor", stringType()),
		opt("columnTitleFontStyle", stringType()),
		opt("columnTitleFontWeight", stringType()),
		opt("columnTitleTextAlign", stringType()),
		opt("columnTitleTextTransform", stringType()),
		opt("columnTitleTextDecoration", stringType()),
		opt("columnTitleBackgroundColor", stringType()),
		opt("tableColumns", mapOf(objectType(positionColumn))),
		opt("schema", mapOf(objectType(positionSchema))),
	))
	fieldPositions := arrayOf(objectType(fieldPosition))

	page := add(&Contract{Name: ContractPage, Attributes: []Attribute{
		req("_id", idType()),
		req("name", stringType()),
		req("fieldPositions", fieldPositions),
		req("width", numberType()),
		req("height", numberType()),
		req("cols", numberType()),
		req("rowHeight", numberType()),
		req("layout", stringType()).enum("grid", "positioned"),
		req("presentation", stringType()).enum("normal"),
		opt("padding", numberType()),
		opt("margin", numberType()),
		opt("borderWidth", numberType()),
		opt("hidden", booleanType()),
		opt("backgroundImage", stringType()),
		opt("backgroundSize", stringType()).enum("", "100% 100%"),
		opt("metadata", openObjectType()),
		opt("logic", m.logicType),
	}})
	pages := arrayOf(objectType(page))

	headerFooter := add(&Contract{Name: ContractHeaderFooter, Attributes: []Attribute{
		req("fieldPositions", fieldPositions),
		req("height", numberType()),
		req("cols", numberType()),
		req("rowHeight", numberType()),
		req("layout", stringType()).enum("grid", "positioned"),
		opt("presentation", stringType()).enum("normal"),
		opt("padding", numberType()),
	}})

	pageOrderRef := []OrderRef{{Order: "pageOrder", Target: "pages"}}
	view := add(&Contract{Name: ContractView, OrderRefs: pageOrderRef, Attributes: []Attribute{
		opt("_id", idType()),
		opt("type", stringType()).enum("mobile"),
		req("pages", pages),
		req("pageOrder", arrayOf(stringType())),
	}})

	file := add(&Contract{Name: ContractFile, OrderRefs: pageOrderRef, Attributes: []Attribute{
		req("_id", idType()),
		opt("name", stringType()),
		opt("styles", openObjectType()),
		opt("metadata", openObjectType()),
		req("pages", pages),
		req("pageOrder", arrayOf(stringType())),
		opt("views", arrayOf(objectType(view))),
		opt("header", nullable(objectType(headerFooter))),
		opt("footer", nullable(objectType(headerFooter))),
	}})

	formula := add(&Contract{Name: ContractFormula, Attributes: []Attribute{
		req("_id", idType()),
		req("desc", stringType()),
		req("type", stringType()).enum("calc"),
		req("scope", stringType()).enum("global", "private"),
		req("expression", stringType()),
	}})
	fieldFormula := add(&Contract{Name: ContractFieldFormula, Attributes: []Attribute{
		opt("_id", idType()),
		opt("key", stringType()),
		opt("formula", stringType()),
	}})

	option := add(&Contract{Name: ContractOption, Attributes: []Attribute{
		req("_id", idType()),
		req("value", stringType()),
		opt("deleted", booleanType()),
		opt("width", numberType()),
		opt("styles", openObjectType()),
		opt("metadata", openObjectType()),
	}})
	m.optionsType = arrayOf(objectType(option))

	add(&Contract{Name: ContractTableRow, Attributes: []Attribute{
		req("_id", idType()),
		opt("deleted", booleanType()),
		opt("cells", openObjectType()),
	}})
	add(&Contract{Name: ContractFileValue, Attributes: []Attribute{
		req("_id", idType()),
		req("url", stringType()),
		opt("fileName", stringType()),
		opt("filePath", stringType()),
	}})
	point := add(&Contract{Name: ContractChartPoint, Attributes: []Attribute{
		req("_id", idType()),
		opt("label", stringType()),
		req("x", numberType()),
		req("y", numberType()),
	}})
	add(&Contract{Name: ContractChartSeries, Attributes: []Attribute{
		req("_id", idType()),
		opt("deleted", booleanType()),
		opt("title", stringType()),
		opt("description", stringType()),
		req("points", arrayOf(objectType(point))),
	}})

	m.fieldBase = add(&Contract{Name: ContractFieldBase, Attributes: []Attribute{
		req("_id", idType()),
		req("file", stringType()),
		req("type", stringType()),
		opt("identifier", stringType()),
		opt("title", stringType()),
		opt("description", stringType()),
		opt("required", booleanType()),
		opt("tipTitle", stringType()),
		opt("tipDescription", stringType()),
		opt("tipVisible", booleanType()),
		opt("hidden", booleanType()),
		opt("disabled", booleanType()),
		opt("metadata", openObjectType()),
		opt("logic", m.logicType),
		opt("formulas", arrayOf(objectType(fieldFormula))),
	}})
	m.columnBase = add(&Contract{Name: ContractColumnBase, Attributes: []Attribute{
		req("_id", idType()),
		req("type", stringType()),
		opt("title", stringType()),
		opt("identifier", stringType()),
		opt("width", numberType()),
		opt("deleted", booleanType()),
	}})

	schemaDefinition := add(&Contract{Name: ContractSchemaDefinition, Attributes: []Attribute{
		opt("root", booleanType()),
		opt("title", stringType()),
		opt("identifier", stringType()),
		req("tableColumns", arrayOf(m.columnType)),
		opt("children", arrayOf(stringType())),
		opt("logic", m.schemaLogicType),
	}})
	m.schemaMapType = mapOf(objectType(schemaDefinition))
	m.schemaMapType.SingleFlag = "root"

	// CollectionItem is self-referential through its children groups.
	item := &Contract{Name: ContractCollectionItem}
	group := add(&Contract{Name: ContractCollectionItemChildren})
	m.collectionType = arrayOf(objectType(item))
	group.Attributes = []Attribute{
		opt("value", m.collectionType),
	}
	item.Attributes = []Attribute{
		req("_id", idType()),
		opt("deleted", booleanType()),
		opt("cells", openObjectType()),
		opt("children", mapOf(objectType(group))),
	}
	add(item)

	m.document = add(&Contract{Name: ContractDocument, Attributes: []Attribute{
		opt("_id", idType()),
		opt("type", stringType()).enum("template", "document"),
		opt("identifier", stringType()),
		opt("name", stringType()),
		opt("stage", stringType()),
		opt("source", stringType()),
		opt("createdOn", numberType()),
		opt("deleted", booleanType()),
		opt("metadata", openObjectType()),
		opt("categories", arrayOf(stringType())),
		req("files", &AttrType{Kinds: []ValueKind{KindArray}, Items: objectType(file), MinItems: 1, MaxItems: 1}),
		req("fields", arrayOf(m.fieldType)),
		opt("formulas", arrayOf(objectType(formula))),
	}})
	m.documentShell = m.document.extend(ContractDocument,
		req("fields", &AttrType{Kinds: []ValueKind{KindArray}}),
	)
	return m
}

// LookupContract returns the entity contract with the given name. Field and
// column variant contracts are resolved through a VariantRegistry instead.
func LookupContract(name string) (*Contract, bool) {
	c, ok := entities.contracts[name]
	return c, ok
}

// ContractNames lists the entity contract names in sorted order.
func ContractNames() []string {
	names := make([]string, 0, len(entities.contracts))
	for name := range entities.contracts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DocumentContract returns the root contract of a JoyDoc document.
func DocumentContract() *Contract {
	return entities.document
}

// FieldType is the attribute type of a single entry of Document.fields.
func FieldType() *AttrType { return entities.fieldType }

// ColumnType is the attribute type of a single table or schema column.
func ColumnType() *AttrType { return entities.columnType }

// SchemaType is the attribute type of a nested-collection schema map.
func SchemaType() *AttrType { return entities.schemaMapType }
