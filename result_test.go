package joydoc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathNode_String(t *testing.T) {
	var root *pathNode
	tests := []struct {
		name string
		path *pathNode
		want string
	}{
		{"root", root, ""},
		{"single key", root.child("files"), "files"},
		{"index", root.child("fields").item(0).child("rowOrder"), "fields[0].rowOrder"},
		{"nested map key", root.child("fields").item(0).child("schema").child("s1").child("tableColumns"), "fields[0].schema.s1.tableColumns"},
		{"underscore key", root.child("fields").item(0).child("options").item(0).child("_id"), "fields[0].options[0]._id"},
		{"hex id key", root.child("schema").child("6889cdae7553c92c7db50284"), "schema.6889cdae7553c92c7db50284"},
		{"dotted key", root.child("schema").child("a.b"), `schema["a.b"]`},
		{"key with space", root.child("schema").child("my node"), `schema["my node"]`},
		{"empty key", root.child("schema").child(""), `schema[""]`},
		{"root index", root.item(3), "[3]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.path.String())
		})
	}
}

func TestViolationList_Result(t *testing.T) {
	var empty ViolationList
	result := empty.Result()
	assert.True(t, result.Valid)
	require.NotNil(t, result.Violations)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid":true,"violations":[]}`, string(data))

	var list ViolationList
	list.Add(ArityViolation, "files", "must contain exactly 1 item(s), got 0")
	list.Warn("fields[0].schema", "expected exactly one entry with root set, found 0")

	var other ViolationList
	other.Addf(MissingRequiredAttribute, "fields[0].rowOrder", "required attribute %s", "is missing")
	list.Merge(&other)
	list.Merge(nil)

	assert.True(t, list.HasViolations())
	assert.Equal(t, 2, list.Count())

	result = list.Result()
	assert.False(t, result.Valid)
	assert.Len(t, result.Warnings, 1)
	assert.True(t, result.HasViolationAt("fields[0].rowOrder"))
	assert.False(t, result.HasViolationAt("fields[0]"))
	assert.Len(t, result.ByKind(ArityViolation), 1)

	data, err = json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"valid": false,
		"violations": [
			{"path": "files", "message": "must contain exactly 1 item(s), got 0", "kind": "ArityViolation"},
			{"path": "fields[0].rowOrder", "message": "required attribute is missing", "kind": "MissingRequiredAttribute"}
		],
		"warnings": [
			{"path": "fields[0].schema", "message": "expected exactly one entry with root set, found 0"}
		]
	}`, string(data))
}

func TestValidationResult_Err(t *testing.T) {
	var nilResult *ValidationResult
	assert.NoError(t, nilResult.Err())
	assert.NoError(t, (&ValidationResult{Valid: true}).Err())

	result := &ValidationResult{Violations: []Violation{{Path: "files", Message: "must contain exactly 1 item(s), got 0", Kind: ArityViolation}}}
	err := result.Err()
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "[ArityViolation] files: must contain exactly 1 item(s), got 0")

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 1, e.Details["violations"])
}

func TestViolation_String(t *testing.T) {
	assert.Equal(t, "[StructuralViolation] input must be an object, got null",
		Violation{Message: "input must be an object, got null", Kind: StructuralViolation}.String())
	assert.Equal(t, "[TypeMismatch] fields[0].value: must be a string, got number",
		Violation{Path: "fields[0].value", Message: "must be a string, got number", Kind: TypeMismatch}.String())
}
