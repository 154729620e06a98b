// Package schema defines the declarative field model for collections and the
// validator that checks documents against it. A schema is a plain value,
// constructed once at startup; validation collects every issue it finds
// rather than stopping at the first, so callers can surface all problems in
// one pass.
package schema

import (
	"context"

	"github.com/asaidimu/go-vellum/core/access"
)

// FieldKind represents the value types supported by the field model.
type FieldKind string

const (
	FieldText     FieldKind = "text"     // single-line text
	FieldTextarea FieldKind = "textarea" // multi-line text
	FieldRichText FieldKind = "richtext" // structured tree of typed nodes
	FieldNumber   FieldKind = "number"   // numeric data, optional min/max
	FieldBoolean  FieldKind = "boolean"  // true/false
	FieldDate     FieldKind = "date"     // any value parseable to an absolute timestamp
	FieldSelect   FieldKind = "select"   // one of a declared option set
	FieldGroup    FieldKind = "group"    // nested field list
	FieldArray    FieldKind = "array"    // repeatable nested field list
	FieldRelation FieldKind = "relation" // reference to a document in another collection
	FieldUpload   FieldKind = "upload"   // binary asset reference into an upload-enabled collection
)

// ValueValidator is a pure per-field validation rule. A non-nil error marks
// the value invalid; the error message becomes the issue message.
type ValueValidator func(value any) error

// FieldHook is a field-scoped beforeValidate hook. It receives the current
// field value and the whole working document, and returns the (possibly
// replaced) value. Runs before schema validation of the field.
type FieldHook func(ctx context.Context, value any, doc Document, op access.Operation) (any, error)

// FieldDescriptor declares one typed, named value slot within a collection.
type FieldDescriptor struct {
	Name     string
	Kind     FieldKind
	Required bool

	// Default supplies a value when the field is absent on create. DefaultFunc
	// takes precedence over Default when both are set.
	Default     any
	DefaultFunc func() any

	// Validators run in order after type checking succeeds.
	Validators []ValueValidator

	// BeforeValidate are field-scoped hooks, run in declaration order before
	// this field is validated.
	BeforeValidate []FieldHook

	// Options enumerates the allowed values for select fields.
	Options []string

	// Fields holds the nested descriptors for group and array fields.
	Fields []FieldDescriptor

	// Target names the collection a relation or upload field references.
	// Resolved lazily at validation time, so collections may reference each
	// other regardless of registration order.
	Target string

	// Min and Max bound number fields when non-nil.
	Min *float64
	Max *float64
}

// HasDefault reports whether the descriptor supplies a default value.
func (f *FieldDescriptor) HasDefault() bool {
	return f.DefaultFunc != nil || f.Default != nil
}

// DefaultValue produces the default for this field.
func (f *FieldDescriptor) DefaultValue() any {
	if f.DefaultFunc != nil {
		return f.DefaultFunc()
	}
	return f.Default
}

// ApplyDefaults fills absent fields that declare defaults. Empty strings are
// treated as absent so that blank form submissions still pick up defaults.
func ApplyDefaults(fields []FieldDescriptor, doc Document) {
	for i := range fields {
		f := &fields[i]
		value, ok := doc[f.Name]
		if ok {
			if s, isStr := value.(string); !isStr || s != "" {
				continue
			}
		}
		if f.HasDefault() {
			doc[f.Name] = f.DefaultValue()
		}
	}
}
