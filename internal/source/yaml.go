package source

import (
	"fmt"

	"github.com/joyfill/joydoc"
	"gopkg.in/yaml.v3"
)

const (
	tagTimestamp = "!!timestamp"
	tagMerge     = "!!merge"
)

func decodeYAML(data []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, joydoc.NewDecodeError(joydoc.ErrCodeInvalidYAML, "malformed YAML", err)
	}
	tree, err := (&yamlTree{active: map[*yaml.Node]bool{}}).value(&doc)
	if err != nil {
		return nil, joydoc.NewDecodeError(joydoc.ErrCodeInvalidYAML, "malformed YAML", err)
	}
	return tree, nil
}

// yamlTree rewrites a YAML node graph into the shapes encoding/json produces:
// float64 numbers, string-keyed objects and timestamps kept as written.
type yamlTree struct {
	active map[*yaml.Node]bool
}

func (t *yamlTree) value(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return t.value(n.Content[0])
	case yaml.AliasNode:
		if t.active[n.Alias] {
			return nil, fmt.Errorf("line %d: alias *%s refers to itself", n.Line, n.Value)
		}
		t.active[n.Alias] = true
		defer delete(t.active, n.Alias)
		return t.value(n.Alias)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := t.value(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		if err := t.mapping(n, out); err != nil {
			return nil, err
		}
		return out, nil
	case yaml.ScalarNode:
		return scalar(n)
	case 0:
		return nil, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", n.Line, n.Kind)
	}
}

// mapping fills out with the pairs of n. Merged mappings are applied first so
// explicit keys win.
func (t *yamlTree) mapping(n *yaml.Node, out map[string]any) error {
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if key.Kind == yaml.ScalarNode && key.ShortTag() == tagMerge {
			if err := t.merge(val, out); err != nil {
				return err
			}
		}
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if key.Kind == yaml.ScalarNode && key.ShortTag() == tagMerge {
			continue
		}
		name, err := t.key(key)
		if err != nil {
			return err
		}
		v, err := t.value(val)
		if err != nil {
			return err
		}
		out[name] = v
	}
	return nil
}

func (t *yamlTree) merge(n *yaml.Node, out map[string]any) error {
	switch n.Kind {
	case yaml.AliasNode, yaml.MappingNode:
		v, err := t.value(n)
		if err != nil {
			return err
		}
		m, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("line %d: merge value is not a mapping", n.Line)
		}
		for k, e := range m {
			out[k] = e
		}
		return nil
	case yaml.SequenceNode:
		// Earlier entries take precedence.
		for i := len(n.Content) - 1; i >= 0; i-- {
			if err := t.merge(n.Content[i], out); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("line %d: merge value is not a mapping", n.Line)
	}
}

func (t *yamlTree) key(n *yaml.Node) (string, error) {
	if n.Kind == yaml.ScalarNode {
		return n.Value, nil
	}
	v, err := t.value(n)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(v), nil
}

func scalar(n *yaml.Node) (any, error) {
	if n.ShortTag() == tagTimestamp {
		return n.Value, nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case float32:
		return float64(x), nil
	default:
		return v, nil
	}
}
