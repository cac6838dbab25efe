package joydoc

import (
	"fmt"
	"slices"
	"sort"
)

type walkOptions struct {
	registry       *VariantRegistry
	strict         bool
	checkOrderRefs bool
}

type walkTask struct {
	path  *pathNode
	value any
	typ   *AttrType
	// element is set for the entries of an array.
	element bool
}

// walker checks a generic JSON tree against attribute types. It keeps its
// own work stack, so the depth of the tree is bounded by memory only.
type walker struct {
	opts  walkOptions
	out   *ViolationList
	stack []walkTask
}

func newWalker(opts walkOptions, out *ViolationList) *walker {
	if opts.registry == nil {
		opts.registry = defaultRegistry
	}
	return &walker{opts: opts, out: out}
}

func (w *walker) walk(path *pathNode, value any, t *AttrType) {
	w.push(walkTask{path: path, value: value, typ: t})
	w.drain()
}

// walkEntry checks value as one entry of an array.
func (w *walker) walkEntry(path *pathNode, value any, t *AttrType) {
	w.push(walkTask{path: path, value: value, typ: t, element: true})
	w.drain()
}

func (w *walker) drain() {
	for len(w.stack) > 0 {
		task := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]
		w.visit(task)
	}
}

func (w *walker) push(task walkTask) {
	w.stack = append(w.stack, task)
}

func (w *walker) visit(task walkTask) {
	t := task.typ
	if t == nil {
		return
	}
	kind, ok := KindOf(task.value)
	if !ok {
		w.out.Addf(TypeMismatch, task.path.String(), "unsupported value of type %T", task.value)
		return
	}
	if task.element && t.wantsObject() && kind != KindObject {
		w.out.Addf(StructuralViolation, task.path.String(), "entry must be an object, got %s", kind)
		return
	}
	if !t.accepts(kind) {
		if t.AllowEmptyString && task.value == "" {
			return
		}
		w.out.Addf(TypeMismatch, task.path.String(), "must be %s, got %s", t.describe(), kind)
		return
	}

	switch kind {
	case KindString:
		if t.NonEmpty && task.value == "" {
			w.out.Add(TypeMismatch, task.path.String(), "must be a non-empty string")
		}
	case KindArray:
		w.visitArray(task.path, task.value.([]any), t)
	case KindObject:
		obj := task.value.(map[string]any)
		if t.Values != nil {
			w.visitMap(task.path, obj, t)
			return
		}
		if c := w.contractFor(task.path, obj, t); c != nil {
			w.visitObject(task.path, obj, c)
		}
	}
}

func (w *walker) visitArray(path *pathNode, arr []any, t *AttrType) {
	n := len(arr)
	if (t.MinItems > 0 && n < t.MinItems) || (t.MaxItems > 0 && n > t.MaxItems) {
		w.out.Addf(ArityViolation, path.String(), "must contain %s, got %d", t.arity(), n)
	}
	if t.Items == nil {
		return
	}
	for i := n - 1; i >= 0; i-- {
		w.push(walkTask{path: path.item(i), value: arr[i], typ: t.Items, element: true})
	}
}

func (w *walker) visitMap(path *pathNode, obj map[string]any, t *AttrType) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if t.SingleFlag != "" {
		flagged := 0
		for _, k := range keys {
			if entry, ok := obj[k].(map[string]any); ok {
				if set, _ := entry[t.SingleFlag].(bool); set {
					flagged++
				}
			}
		}
		if flagged != 1 {
			w.out.Warn(path.String(), fmt.Sprintf("expected exactly one entry with %s set, found %d", t.SingleFlag, flagged))
		}
	}

	for i := len(keys) - 1; i >= 0; i-- {
		w.push(walkTask{path: path.child(keys[i]), value: obj[keys[i]], typ: t.Values})
	}
}

func (w *walker) contractFor(path *pathNode, obj map[string]any, t *AttrType) *Contract {
	var vc VariantContract
	var what string
	switch t.Dispatch {
	case DispatchField:
		disc, _ := obj["type"].(string)
		vc, what = w.opts.registry.ResolveFieldVariant(disc), "field"
	case DispatchColumn:
		disc, _ := obj["type"].(string)
		vc, what = w.opts.registry.ResolveColumnVariant(disc), "column"
	default:
		return t.Object
	}
	if w.opts.strict && !vc.Known {
		if _, ok := obj["type"].(string); ok {
			w.out.Warn(path.child("type").String(),
				fmt.Sprintf("unknown %s type %q, only base attributes are checked", what, vc.Discriminant))
		}
	}
	return vc.Contract
}

func (w *walker) visitObject(path *pathNode, obj map[string]any, c *Contract) {
	for _, a := range c.Attributes {
		v, present := obj[a.Name]
		if !present {
			if a.Required {
				w.out.Add(MissingRequiredAttribute, path.child(a.Name).String(), "required attribute is missing")
			}
			continue
		}
		if w.opts.strict && len(a.Enum) > 0 {
			if s, ok := v.(string); ok && !slices.Contains(a.Enum, s) {
				w.out.Warn(path.child(a.Name).String(), fmt.Sprintf("undocumented value %q", s))
			}
		}
	}

	if w.opts.checkOrderRefs {
		for _, ref := range c.OrderRefs {
			w.checkOrder(path, obj, ref)
		}
	}

	for i := len(c.Attributes) - 1; i >= 0; i-- {
		a := c.Attributes[i]
		if v, present := obj[a.Name]; present {
			w.push(walkTask{path: path.child(a.Name), value: v, typ: a.Type})
		}
	}
}

// checkOrder reports entries of an ordering array that name no object of the
// target array. Nothing is checked unless both arrays are well-formed.
func (w *walker) checkOrder(path *pathNode, obj map[string]any, ref OrderRef) {
	order, ok := obj[ref.Order].([]any)
	if !ok {
		return
	}
	targets, ok := obj[ref.Target].([]any)
	if !ok {
		return
	}
	ids := make(map[string]struct{}, len(targets))
	for _, entry := range targets {
		m, ok := entry.(map[string]any)
		if !ok {
			return
		}
		id, ok := m["_id"].(string)
		if !ok {
			return
		}
		ids[id] = struct{}{}
	}
	for i, entry := range order {
		id, ok := entry.(string)
		if !ok {
			continue
		}
		if _, found := ids[id]; !found {
			w.out.Addf(StructuralViolation, path.child(ref.Order).item(i).String(),
				"references unknown %s id %q", ref.Target, id)
		}
	}
}
