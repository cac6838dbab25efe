package joydoc

import (
	"fmt"
	"strconv"
	"strings"
)

// ViolationKind categorizes a validation violation.
type ViolationKind string

const (
	// MissingRequiredAttribute: a required attribute is absent.
	MissingRequiredAttribute ViolationKind = "MissingRequiredAttribute"
	// TypeMismatch: an attribute is present with the wrong semantic type.
	TypeMismatch ViolationKind = "TypeMismatch"
	// ArityViolation: a cardinality rule is broken, e.g. files is not length 1.
	ArityViolation ViolationKind = "ArityViolation"
	// StructuralViolation: the shape of the tree is broken, e.g. the document is
	// not an object, an entry of an object array is not an object, or an ordering
	// array names an id that does not exist.
	StructuralViolation ViolationKind = "StructuralViolation"
)

// Violation is one structural conformance failure.
type Violation struct {
	Path    string        `json:"path"`
	Message string        `json:"message"`
	Kind    ViolationKind `json:"kind"`
}

func (v Violation) String() string {
	if v.Path == "" {
		return fmt.Sprintf("[%s] %s", v.Kind, v.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", v.Kind, v.Path, v.Message)
}

// Warning is advisory and never affects validity.
type Warning struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationResult is the verdict for one document or subtree.
type ValidationResult struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
	Warnings   []Warning   `json:"warnings,omitempty"`
}

// Err returns nil for a valid result and a validation *Error otherwise.
func (r *ValidationResult) Err() error {
	if r == nil || r.Valid {
		return nil
	}
	msg := fmt.Sprintf("document has %d violation(s)", len(r.Violations))
	if len(r.Violations) > 0 {
		msg += "; first: " + r.Violations[0].String()
	}
	return NewValidationFailedError(msg).
		WithDetail("violations", len(r.Violations)).
		WithDetail("warnings", len(r.Warnings))
}

// ByKind returns the violations of the given kind.
func (r *ValidationResult) ByKind(kind ViolationKind) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Kind == kind {
			out = append(out, v)
		}
	}
	return out
}

// HasViolationAt reports whether a violation was recorded at exactly path.
func (r *ValidationResult) HasViolationAt(path string) bool {
	for _, v := range r.Violations {
		if v.Path == path {
			return true
		}
	}
	return false
}

// ViolationList accumulates violations and warnings in the order they are found.
type ViolationList struct {
	violations []Violation
	warnings   []Warning
}

// Add records a violation.
func (l *ViolationList) Add(kind ViolationKind, path, message string) {
	l.violations = append(l.violations, Violation{Path: path, Message: message, Kind: kind})
}

// Addf records a violation with a formatted message.
func (l *ViolationList) Addf(kind ViolationKind, path, format string, args ...any) {
	l.Add(kind, path, fmt.Sprintf(format, args...))
}

// Warn records a warning.
func (l *ViolationList) Warn(path, message string) {
	l.warnings = append(l.warnings, Warning{Path: path, Message: message})
}

// Merge appends everything recorded in other.
func (l *ViolationList) Merge(other *ViolationList) {
	if other == nil {
		return
	}
	l.violations = append(l.violations, other.violations...)
	l.warnings = append(l.warnings, other.warnings...)
}

// HasViolations returns true if any violation was recorded.
func (l *ViolationList) HasViolations() bool {
	return len(l.violations) > 0
}

// Count returns the number of violations.
func (l *ViolationList) Count() int {
	return len(l.violations)
}

// Result builds the verdict. Violations is never nil so it encodes as [].
func (l *ViolationList) Result() *ValidationResult {
	violations := l.violations
	if violations == nil {
		violations = []Violation{}
	}
	return &ValidationResult{
		Valid:      len(violations) == 0,
		Violations: violations,
		Warnings:   l.warnings,
	}
}

// pathNode is one segment of a location in the document tree. Paths are
// linked to their parent so deep trees share prefixes; they are only rendered
// when something is reported.
type pathNode struct {
	parent *pathNode
	key    string
	index  int
	isItem bool
}

func (p *pathNode) child(key string) *pathNode {
	return &pathNode{parent: p, key: key}
}

func (p *pathNode) item(i int) *pathNode {
	return &pathNode{parent: p, index: i, isItem: true}
}

// String renders the path in dot/bracket notation, e.g. fields[0].schema.s1.
func (p *pathNode) String() string {
	if p == nil {
		return ""
	}
	var segments []*pathNode
	for n := p; n != nil; n = n.parent {
		segments = append(segments, n)
	}
	var b strings.Builder
	for i := len(segments) - 1; i >= 0; i-- {
		n := segments[i]
		switch {
		case n.isItem:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(n.index))
			b.WriteByte(']')
		case isPlainKey(n.key):
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(n.key)
		default:
			b.WriteByte('[')
			b.WriteString(strconv.Quote(n.key))
			b.WriteByte(']')
		}
	}
	return b.String()
}

func isPlainKey(key string) bool {
	if key == "" {
		return false
	}
	return !strings.ContainsAny(key, ".[]\" \t\r\n")
}
