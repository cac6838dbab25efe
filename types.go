package joydoc

import (
	"encoding/json"
	"sort"
)

// DocumentType distinguishes reusable templates from filled-in documents.
type DocumentType string

const (
	DocumentTypeTemplate DocumentType = "template"
	DocumentTypeDocument DocumentType = "document"
)

// Document is a read-only typed view of a JoyDoc document. Validation runs on
// the generic JSON tree; decode into Document only after a document has been
// found valid.
type Document struct {
	ID         string         `json:"_id,omitempty"`
	Type       DocumentType   `json:"type,omitempty"`
	Identifier string         `json:"identifier,omitempty"`
	Name       string         `json:"name,omitempty"`
	Stage      string         `json:"stage,omitempty"`
	Source     string         `json:"source,omitempty"`
	CreatedOn  float64        `json:"createdOn,omitempty"`
	Deleted    bool           `json:"deleted,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Categories []string       `json:"categories,omitempty"`
	Files      []File         `json:"files"`
	Fields     []Field        `json:"fields"`
	Formulas   []Formula      `json:"formulas,omitempty"`
}

// File is the page container of a document.
type File struct {
	ID        string         `json:"_id"`
	Name      string         `json:"name,omitempty"`
	Styles    map[string]any `json:"styles,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Pages     []Page         `json:"pages"`
	PageOrder []string       `json:"pageOrder"`
	Views     []View         `json:"views,omitempty"`
	Header    *HeaderFooter  `json:"header,omitempty"`
	Footer    *HeaderFooter  `json:"footer,omitempty"`
}

// View is an alternative page layout, e.g. for mobile.
type View struct {
	ID        string   `json:"_id,omitempty"`
	Type      string   `json:"type,omitempty"`
	Pages     []Page   `json:"pages"`
	PageOrder []string `json:"pageOrder"`
}

// Page places fields on a canvas.
type Page struct {
	ID             string          `json:"_id"`
	Name           string          `json:"name"`
	FieldPositions []FieldPosition `json:"fieldPositions"`
	Width          float64         `json:"width"`
	Height         float64         `json:"height"`
	Cols           float64         `json:"cols"`
	RowHeight      float64         `json:"rowHeight"`
	Layout         string          `json:"layout"`
	Presentation   string          `json:"presentation"`
	Hidden         bool            `json:"hidden,omitempty"`
	Logic          *Logic          `json:"logic,omitempty"`
}

// HeaderFooter is the shared header or footer band of a file.
type HeaderFooter struct {
	FieldPositions []FieldPosition `json:"fieldPositions"`
	Height         float64         `json:"height"`
	Cols           float64         `json:"cols"`
	RowHeight      float64         `json:"rowHeight"`
	Layout         string          `json:"layout"`
}

// FieldPosition is the placement of a field on a page. Style attributes are
// not decoded.
type FieldPosition struct {
	ID          string  `json:"_id"`
	Field       string  `json:"field"`
	DisplayType string  `json:"displayType"`
	Type        string  `json:"type"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

// Logic controls visibility of a page, field or schema node.
type Logic struct {
	ID         string      `json:"_id,omitempty"`
	Action     string      `json:"action"`
	Eval       string      `json:"eval"`
	Conditions []Condition `json:"conditions"`
}

// Condition is a field condition (File, Page, Field) or a schema condition
// (Schema, Column).
type Condition struct {
	ID        string `json:"_id,omitempty"`
	File      string `json:"file,omitempty"`
	Page      string `json:"page,omitempty"`
	Field     string `json:"field,omitempty"`
	Schema    string `json:"schema,omitempty"`
	Column    string `json:"column,omitempty"`
	Condition string `json:"condition"`
	Value     any    `json:"value,omitempty"`
}

// Formula is a document-level calculation.
type Formula struct {
	ID         string `json:"_id"`
	Desc       string `json:"desc"`
	Type       string `json:"type"`
	Scope      string `json:"scope"`
	Expression string `json:"expression"`
}

// ChoiceOption is one choice of a dropdown or multi-select.
type ChoiceOption struct {
	ID      string `json:"_id"`
	Value   string `json:"value"`
	Deleted bool   `json:"deleted,omitempty"`
}

// TableColumn is one column of a table field or collection schema node.
type TableColumn struct {
	ID         string         `json:"_id"`
	Type       string         `json:"type"`
	Title      string         `json:"title,omitempty"`
	Identifier string         `json:"identifier,omitempty"`
	Options    []ChoiceOption `json:"options,omitempty"`
}

// SchemaDefinition is one node of a collection schema.
type SchemaDefinition struct {
	Root         bool          `json:"root,omitempty"`
	Title        string        `json:"title,omitempty"`
	Identifier   string        `json:"identifier,omitempty"`
	TableColumns []TableColumn `json:"tableColumns"`
	Children     []string      `json:"children,omitempty"`
	Logic        *Logic        `json:"logic,omitempty"`
}

// Field carries the data of one input. Variant specific attributes that are
// not decoded into a typed member are kept in Extra.
type Field struct {
	ID               string                      `json:"_id"`
	File             string                      `json:"file"`
	Type             string                      `json:"type"`
	Identifier       string                      `json:"identifier,omitempty"`
	Title            string                      `json:"title,omitempty"`
	Required         bool                        `json:"required,omitempty"`
	Hidden           bool                        `json:"hidden,omitempty"`
	Disabled         bool                        `json:"disabled,omitempty"`
	Logic            *Logic                      `json:"logic,omitempty"`
	Value            json.RawMessage             `json:"value,omitempty"`
	Options          []ChoiceOption              `json:"options,omitempty"`
	TableColumns     []TableColumn               `json:"tableColumns,omitempty"`
	RowOrder         []string                    `json:"rowOrder,omitempty"`
	TableColumnOrder []string                    `json:"tableColumnOrder,omitempty"`
	Schema           map[string]SchemaDefinition `json:"schema,omitempty"`
	Extra            map[string]json.RawMessage  `json:"-"`
}

var fieldKeys = map[string]struct{}{
	"_id": {}, "file": {}, "type": {}, "identifier": {}, "title": {}, "required": {},
	"hidden": {}, "disabled": {}, "logic": {}, "value": {}, "options": {},
	"tableColumns": {}, "rowOrder": {}, "tableColumnOrder": {}, "schema": {},
}

// UnmarshalJSON decodes the typed members and collects everything else into Extra.
func (f *Field) UnmarshalJSON(data []byte) error {
	type fieldAlias Field
	var alias fieldAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range raw {
		if _, known := fieldKeys[k]; known {
			delete(raw, k)
		}
	}
	*f = Field(alias)
	if len(raw) > 0 {
		f.Extra = raw
	}
	return nil
}

// MarshalJSON writes the typed members followed by Extra.
func (f Field) MarshalJSON() ([]byte, error) {
	type fieldAlias Field
	data, err := json.Marshal(fieldAlias(f))
	if err != nil || len(f.Extra) == 0 {
		return data, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range f.Extra {
		if _, taken := merged[k]; !taken {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// DecodeDocument decodes raw JSON into a Document.
func DecodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, NewDecodeError(ErrCodeInvalidJSON, "failed to decode document", err)
	}
	return &doc, nil
}

// DocumentFromTree decodes a generic JSON tree into a Document.
func DocumentFromTree(tree any) (*Document, error) {
	data, err := json.Marshal(tree)
	if err != nil {
		return nil, NewDecodeError(ErrCodeUnsupportedInput, "failed to encode document tree", err)
	}
	return DecodeDocument(data)
}

// FieldByID returns the field with the given id.
func (d *Document) FieldByID(id string) (*Field, bool) {
	for i := range d.Fields {
		if d.Fields[i].ID == id {
			return &d.Fields[i], true
		}
	}
	return nil, false
}

// OrderedPages returns the pages of f in pageOrder. Pages missing from
// pageOrder follow in their array order.
func (f *File) OrderedPages() []Page {
	byID := make(map[string]int, len(f.Pages))
	for i, p := range f.Pages {
		byID[p.ID] = i
	}
	used := make([]bool, len(f.Pages))
	out := make([]Page, 0, len(f.Pages))
	for _, id := range f.PageOrder {
		if i, ok := byID[id]; ok && !used[i] {
			used[i] = true
			out = append(out, f.Pages[i])
		}
	}
	for i, p := range f.Pages {
		if !used[i] {
			out = append(out, p)
		}
	}
	return out
}

// DocumentSummary is a short description of a document for reports.
type DocumentSummary struct {
	ID           string         `json:"id,omitempty"`
	Name         string         `json:"name,omitempty"`
	Type         DocumentType   `json:"type,omitempty"`
	Pages        int            `json:"pages"`
	Fields       int            `json:"fields"`
	FieldsByType map[string]int `json:"fieldsByType"`
}

// Summary counts the pages and fields of d.
func (d *Document) Summary() DocumentSummary {
	s := DocumentSummary{
		ID:           d.ID,
		Name:         d.Name,
		Type:         d.Type,
		Fields:       len(d.Fields),
		FieldsByType: make(map[string]int),
	}
	for _, f := range d.Files {
		s.Pages += len(f.Pages)
	}
	for _, f := range d.Fields {
		s.FieldsByType[f.Type]++
	}
	return s
}

// FieldTypes lists the distinct field types of d in sorted order.
func (s DocumentSummary) FieldTypes() []string {
	types := make([]string, 0, len(s.FieldsByType))
	for t := range s.FieldsByType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
