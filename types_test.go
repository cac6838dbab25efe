package joydoc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestDecodeDocument_KitchenSink(t *testing.T) {
	doc, err := DecodeDocument(readFixture(t, "kitchen_sink.json"))
	require.NoError(t, err)

	require.Len(t, doc.Files, 1)
	file := doc.Files[0]
	assert.Len(t, file.Pages, 2)
	require.NotNil(t, file.Header)
	assert.Nil(t, file.Footer)
	require.Len(t, file.Views, 1)
	assert.Equal(t, "mobile", file.Views[0].Type)
	require.Len(t, doc.Formulas, 1)
	assert.Equal(t, "fm1", doc.Formulas[0].ID)

	table, ok := doc.FieldByID(doc.Fields[14].ID)
	require.True(t, ok)
	assert.Equal(t, "table", table.Type)
	assert.Len(t, table.TableColumns, 9)
	assert.Len(t, table.RowOrder, 2)

	collection := doc.Fields[16]
	assert.Equal(t, "collection", collection.Type)
	require.Contains(t, collection.Schema, "rootSchema")
	assert.True(t, collection.Schema["rootSchema"].Root)
	assert.Equal(t, []string{"childSchema"}, collection.Schema["rootSchema"].Children)
	require.NotNil(t, collection.Schema["childSchema"].Logic)

	chart := doc.Fields[15]
	assert.Contains(t, chart.Extra, "yTitle")
	assert.Contains(t, chart.Extra, "xMax")

	_, ok = doc.FieldByID("nope")
	assert.False(t, ok)
}

func TestDecodeDocument_DropdownOptions(t *testing.T) {
	doc, err := DecodeDocument(readFixture(t, "dropdown_template.json"))
	require.NoError(t, err)

	field, ok := doc.FieldByID("dropdown1")
	require.True(t, ok)
	assert.Equal(t, []ChoiceOption{
		{ID: "689324c75000966ad1de9033", Value: "Yes"},
		{ID: "689324c7c21489b0ba635b62", Value: "No"},
		{ID: "689324c735e2e17275c6b9e9", Value: "N/A"},
	}, field.Options)

	// Validator options and dropdown choices are distinct types.
	var _ Option = WithConfig(DefaultConfig().Validation)
}

func TestDecodeDocument_Malformed(t *testing.T) {
	_, err := DecodeDocument([]byte(`{"files": 3}`))
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
}

func TestDocumentFromTree(t *testing.T) {
	tree := loadFixture(t, "minimal.json")
	doc, err := DocumentFromTree(tree)
	require.NoError(t, err)
	assert.Len(t, doc.Files, 1)

	_, err = DocumentFromTree(map[string]any{"bad": make(chan int)})
	assert.True(t, IsDecodeError(err))
}

func TestField_ExtraRoundTrip(t *testing.T) {
	src := `{"_id":"f1","file":"file1","type":"hologram","value":[1,2],"beam":{"power":9},"tint":"blue"}`

	var f Field
	require.NoError(t, json.Unmarshal([]byte(src), &f))
	assert.Equal(t, "hologram", f.Type)
	assert.JSONEq(t, `[1,2]`, string(f.Value))
	require.Len(t, f.Extra, 2)
	assert.JSONEq(t, `{"power":9}`, string(f.Extra["beam"]))

	out, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, src, string(out))

	plain := Field{ID: "f2", File: "file1", Type: "text"}
	out, err = json.Marshal(plain)
	require.NoError(t, err)
	assert.JSONEq(t, `{"_id":"f2","file":"file1","type":"text"}`, string(out))
}

func TestFile_OrderedPages(t *testing.T) {
	f := File{
		Pages:     []Page{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		PageOrder: []string{"c", "missing", "a", "c"},
	}
	var ids []string
	for _, p := range f.OrderedPages() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestDocument_Summary(t *testing.T) {
	doc, err := DecodeDocument(readFixture(t, "kitchen_sink.json"))
	require.NoError(t, err)

	s := doc.Summary()
	assert.Equal(t, 2, s.Pages)
	assert.Equal(t, 17, s.Fields)
	assert.Equal(t, 2, s.FieldsByType["number"])
	assert.Equal(t, 2, s.FieldsByType["date"])
	assert.Len(t, s.FieldTypes(), 15)
	assert.IsIncreasing(t, s.FieldTypes())
}
