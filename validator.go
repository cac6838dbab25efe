package joydoc

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Observer receives a summary of every validation a Validator performs.
// scope is "document", "schema" or "logic".
type Observer interface {
	ObserveValidation(scope string, result *ValidationResult, elapsed time.Duration)
}

// Validator validates JoyDoc documents and their subtrees. It is immutable
// after construction and safe for concurrent use.
type Validator struct {
	registry       *VariantRegistry
	config         ValidationConfig
	logger         *zap.Logger
	logValidations bool
	observer       Observer
}

// Option configures a Validator.
type Option func(*Validator)

// WithRegistry resolves field and column variants with r instead of the default registry.
func WithRegistry(r *VariantRegistry) Option {
	return func(v *Validator) {
		if r != nil {
			v.registry = r
		}
	}
}

// WithConfig applies the validation settings.
func WithConfig(cfg ValidationConfig) Option {
	return func(v *Validator) {
		v.config = cfg
	}
}

// WithLogger sets the logger used for per-document debug summaries. Summaries
// are only written when logValidations is true.
func WithLogger(logger *zap.Logger, logValidations bool) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
		v.logValidations = logValidations
	}
}

// WithObserver reports every validation to o.
func WithObserver(o Observer) Option {
	return func(v *Validator) {
		v.observer = o
	}
}

// NewValidator creates a Validator. Without options it uses the default
// registry and DefaultConfig().Validation.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		registry: defaultRegistry,
		config:   DefaultConfig().Validation,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.config.MaxWorkers <= 0 {
		v.config.MaxWorkers = 1
	}
	return v
}

var defaultValidator = NewValidator()

// Config returns the validation settings in effect.
func (v *Validator) Config() ValidationConfig {
	return v.config
}

// Registry returns the variant registry the validator resolves with.
func (v *Validator) Registry() *VariantRegistry {
	return v.registry
}

func (v *Validator) walkOptions() walkOptions {
	return walkOptions{
		registry:       v.registry,
		strict:         v.config.Strict,
		checkOrderRefs: v.config.CheckOrderReferences,
	}
}

// ValidateDocument checks a whole document. doc is a generic JSON tree, raw
// JSON bytes, or any value that encodes to JSON, including trees that mix in
// typed Go maps and slices. Every violation is collected; validation never
// stops at the first one.
func (v *Validator) ValidateDocument(doc any) *ValidationResult {
	start := time.Now()
	var out ViolationList
	root, ok := v.rootObject(doc, &out)
	if ok {
		w := newWalker(v.walkOptions(), &out)
		w.walk(nil, root, objectType(entities.documentShell))
		if fields, ok := root["fields"].([]any); ok {
			v.validateFields(fields, &out)
		}
	}
	result := out.Result()
	v.finish("document", result, start)
	return result
}

// ValidateJSON decodes data and validates it as a document. Malformed JSON is
// reported as a single structural violation.
func (v *Validator) ValidateJSON(data []byte) *ValidationResult {
	return v.ValidateDocument(json.RawMessage(data))
}

func (v *Validator) validateFields(fields []any, out *ViolationList) {
	fieldsPath := (*pathNode)(nil).child("fields")
	workers := min(v.config.MaxWorkers, len(fields))
	if !v.config.ParallelFields || workers <= 1 || len(fields) < v.config.ParallelThreshold {
		w := newWalker(v.walkOptions(), out)
		for i, f := range fields {
			w.walkEntry(fieldsPath.item(i), f, entities.fieldType)
		}
		return
	}

	// Each field gets its own list; merging by index keeps the serial order.
	lists := make([]ViolationList, len(fields))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				w := newWalker(v.walkOptions(), &lists[i])
				w.walkEntry(fieldsPath.item(i), fields[i], entities.fieldType)
			}
		}()
	}
	for i := range fields {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i := range lists {
		out.Merge(&lists[i])
	}
}

func (v *Validator) validateRoot(scope string, value any, t *AttrType) *ValidationResult {
	start := time.Now()
	var out ViolationList
	if root, ok := v.rootObject(value, &out); ok {
		newWalker(v.walkOptions(), &out).walk(nil, root, t)
	}
	result := out.Result()
	v.finish(scope, result, start)
	return result
}

// rootObject normalizes value and reports a single structural violation at
// the empty path when it is not an object.
func (v *Validator) rootObject(value any, out *ViolationList) (map[string]any, bool) {
	tree, err := normalize(value)
	if err != nil {
		out.Add(StructuralViolation, "", err.Error())
		return nil, false
	}
	root, ok := tree.(map[string]any)
	if !ok {
		kind, known := KindOf(tree)
		if !known {
			out.Addf(StructuralViolation, "", "input must be an object, got %T", tree)
		} else {
			out.Addf(StructuralViolation, "", "input must be an object, got %s", kind)
		}
		return nil, false
	}
	return root, true
}

func (v *Validator) finish(scope string, result *ValidationResult, start time.Time) {
	elapsed := time.Since(start)
	if v.observer != nil {
		v.observer.ObserveValidation(scope, result, elapsed)
	}
	if v.logValidations {
		v.logger.Debug("validation finished",
			zap.String("scope", scope),
			zap.Bool("valid", result.Valid),
			zap.Int("violations", len(result.Violations)),
			zap.Int("warnings", len(result.Warnings)),
			zap.Duration("elapsed", elapsed),
		)
	}
}

// normalize turns the accepted input forms into a generic JSON tree. Maps and
// slices holding typed Go values are re-encoded; when that fails the tree is
// kept so the walker reports the offending value at its path.
func normalize(value any) (any, error) {
	switch d := value.(type) {
	case nil, string, bool, float64, json.Number:
		return d, nil
	case map[string]any, []any:
		if isJSONTree(d) {
			return d, nil
		}
		data, err := json.Marshal(d)
		if err != nil {
			return d, nil
		}
		return decodeTree(data)
	case json.RawMessage:
		return decodeTree(d)
	case []byte:
		return decodeTree(d)
	default:
		data, err := json.Marshal(d)
		if err != nil {
			return nil, NewDecodeError(ErrCodeUnsupportedInput, fmt.Sprintf("cannot encode %T as JSON", d), err)
		}
		return decodeTree(data)
	}
}

// isJSONTree reports whether every node below v has a type KindOf knows.
func isJSONTree(v any) bool {
	switch n := v.(type) {
	case map[string]any:
		for _, e := range n {
			if !isJSONTree(e) {
				return false
			}
		}
		return true
	case []any:
		for _, e := range n {
			if !isJSONTree(e) {
				return false
			}
		}
		return true
	default:
		_, known := KindOf(v)
		return known
	}
}

func decodeTree(data []byte) (any, error) {
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, NewDecodeError(ErrCodeInvalidJSON, "malformed JSON", err)
	}
	return tree, nil
}

// ValidateDocument validates a document with the default validator.
func ValidateDocument(doc any) *ValidationResult {
	return defaultValidator.ValidateDocument(doc)
}

// ValidateJSON validates raw JSON with the default validator.
func ValidateJSON(data []byte) *ValidationResult {
	return defaultValidator.ValidateJSON(data)
}
