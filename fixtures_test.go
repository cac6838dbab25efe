package joydoc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// loadFixture decodes testdata/name into a fresh generic tree.
func loadFixture(t *testing.T, name string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func parseTree(t *testing.T, src string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(src), &out))
	return out
}

// at follows keys (string) and indexes (int) from root and returns the node.
func at(t *testing.T, root any, steps ...any) any {
	t.Helper()
	node := root
	for _, step := range steps {
		switch s := step.(type) {
		case string:
			m, ok := node.(map[string]any)
			require.Truef(t, ok, "step %q: not an object", s)
			node, ok = m[s]
			require.Truef(t, ok, "step %q: missing", s)
		case int:
			arr, ok := node.([]any)
			require.Truef(t, ok, "step %d: not an array", s)
			require.Less(t, s, len(arr))
			node = arr[s]
		default:
			t.Fatalf("unsupported step %T", step)
		}
	}
	return node
}

func objectAt(t *testing.T, root any, steps ...any) map[string]any {
	t.Helper()
	m, ok := at(t, root, steps...).(map[string]any)
	require.True(t, ok, "node is not an object")
	return m
}

func minimalDocument() map[string]any {
	return map[string]any{
		"files": []any{
			map[string]any{
				"_id":       "file1",
				"pages":     []any{},
				"pageOrder": []any{},
			},
		},
		"fields": []any{},
	}
}

func documentWithFields(fields ...any) map[string]any {
	doc := minimalDocument()
	doc["fields"] = fields
	return doc
}

func violationPaths(r *ValidationResult) []string {
	paths := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		paths = append(paths, v.Path)
	}
	return paths
}
