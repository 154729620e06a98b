package schema

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/asaidimu/go-vellum/core/richtext"
)

// ReferenceChecker resolves relation and upload targets. Implementations are
// expected to delegate to the persistence collaborator; the check is advisory
// (see the concurrency notes on the engine) and exists to fail fast on
// dangling references.
type ReferenceChecker interface {
	// Exists reports whether a document with the given id exists in the named
	// collection. An unknown collection reports false rather than erroring so
	// the problem surfaces as a dangling reference on the offending field.
	Exists(ctx context.Context, collection string, id string) (bool, error)
}

// Validator checks documents against a field list, collecting every issue it
// finds. Valid values are coerced in place (numbers from strings, dates from
// strings or epoch seconds) so downstream stages see normalized data.
type Validator struct {
	fields  []FieldDescriptor
	checker ReferenceChecker
	issues  []Issue
}

// NewValidator creates a Validator for a field list. The checker may be nil,
// in which case relation and upload existence checks are skipped.
func NewValidator(fields []FieldDescriptor, checker ReferenceChecker) *Validator {
	return &Validator{fields: fields, checker: checker}
}

// Validate checks data against the validator's fields. It never fails fast:
// all declared fields are checked and the complete issue list is returned.
// Coerced values are written back into data.
func (v *Validator) Validate(ctx context.Context, data Document) ValidationResult {
	v.issues = make([]Issue, 0)
	v.validateFields(ctx, v.fields, map[string]any(data), "")
	return ValidationResult{Valid: len(v.issues) == 0, Issues: v.issues}
}

func (v *Validator) validateFields(ctx context.Context, fields []FieldDescriptor, data map[string]any, path string) {
	declared := make(map[string]struct{}, len(fields))
	for i := range fields {
		field := &fields[i]
		declared[field.Name] = struct{}{}
		fieldPath := buildPath(path, field.Name)
		value, exists := data[field.Name]

		if !exists || value == nil || isEmptyString(value, field.Kind) {
			if field.Required {
				v.addIssue(CodeRequiredFieldMissing, fmt.Sprintf("required field '%s' is missing", field.Name), fieldPath)
			}
			continue
		}

		coerced, ok := v.validateValue(ctx, field, value, fieldPath)
		if ok {
			data[field.Name] = coerced
		}
	}

	for key := range data {
		if _, ok := declared[key]; ok {
			continue
		}
		if path == "" && isReservedField(key) {
			continue
		}
		v.addIssue(CodeUnexpectedField, fmt.Sprintf("unexpected field '%s' not declared in schema", key), buildPath(path, key))
	}
}

// validateValue checks a single value against its descriptor and returns the
// coerced value. The boolean reports whether type checking passed; later
// constraint failures still return true so the coercion sticks.
func (v *Validator) validateValue(ctx context.Context, field *FieldDescriptor, value any, path string) (any, bool) {
	switch field.Kind {
	case FieldText, FieldTextarea:
		s, ok := value.(string)
		if !ok {
			v.addIssue(CodeTypeMismatch, fmt.Sprintf("expected string, got %T", value), path)
			return value, false
		}
		v.runValidators(field, s, path)
		return s, true

	case FieldNumber:
		n, ok := coerceNumber(value)
		if !ok {
			v.addIssue(CodeTypeMismatch, fmt.Sprintf("expected number, got %T", value), path)
			return value, false
		}
		if field.Min != nil && n < *field.Min {
			v.addIssue(CodeRangeViolation, fmt.Sprintf("value %v is below minimum %v", n, *field.Min), path)
		}
		if field.Max != nil && n > *field.Max {
			v.addIssue(CodeRangeViolation, fmt.Sprintf("value %v is above maximum %v", n, *field.Max), path)
		}
		v.runValidators(field, n, path)
		return n, true

	case FieldBoolean:
		b, ok := coerceBool(value)
		if !ok {
			v.addIssue(CodeTypeMismatch, fmt.Sprintf("expected boolean, got %T", value), path)
			return value, false
		}
		v.runValidators(field, b, path)
		return b, true

	case FieldDate:
		t, ok := coerceDate(value)
		if !ok {
			v.addIssue(CodeDateUnparseable, fmt.Sprintf("value %v is not parseable as a timestamp", value), path)
			return value, false
		}
		v.runValidators(field, t, path)
		return t, true

	case FieldSelect:
		s, ok := value.(string)
		if !ok {
			v.addIssue(CodeTypeMismatch, fmt.Sprintf("expected string option, got %T", value), path)
			return value, false
		}
		if !contains(field.Options, s) {
			v.addIssue(CodeOptionViolation, fmt.Sprintf("value '%s' is not one of %v", s, field.Options), path)
		}
		v.runValidators(field, s, path)
		return s, true

	case FieldRichText:
		nodes, ok := richtext.FromValue(value)
		if !ok {
			v.addIssue(CodeRichTextInvalid, "richtext value is not a valid node tree", path)
			return value, false
		}
		v.runValidators(field, nodes, path)
		return value, true

	case FieldGroup:
		nested, ok := value.(map[string]any)
		if !ok {
			v.addIssue(CodeTypeMismatch, fmt.Sprintf("expected object, got %T", value), path)
			return value, false
		}
		// Recurse and keep collecting: callers need the complete error set.
		v.validateFields(ctx, field.Fields, nested, path)
		return nested, true

	case FieldArray:
		items, ok := value.([]any)
		if !ok {
			v.addIssue(CodeTypeMismatch, fmt.Sprintf("expected array, got %T", value), path)
			return value, false
		}
		for i, item := range items {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			row, ok := item.(map[string]any)
			if !ok {
				v.addIssue(CodeTypeMismatch, fmt.Sprintf("expected object, got %T", item), itemPath)
				continue
			}
			v.validateFields(ctx, field.Fields, row, itemPath)
		}
		return items, true

	case FieldRelation:
		id, ok := value.(string)
		if !ok {
			v.addIssue(CodeTypeMismatch, fmt.Sprintf("expected document id, got %T", value), path)
			return value, false
		}
		v.checkReference(ctx, field.Target, id, path)
		return id, true

	case FieldUpload:
		ref, ok := value.(map[string]any)
		if !ok {
			v.addIssue(CodeTypeMismatch, fmt.Sprintf("expected asset reference, got %T", value), path)
			return value, false
		}
		id, _ := ref["documentId"].(string)
		if id == "" {
			v.addIssue(CodeDanglingReference, "asset reference carries no documentId", path)
			return ref, true
		}
		v.checkReference(ctx, field.Target, id, path)
		return ref, true

	default:
		v.addIssue(CodeTypeMismatch, fmt.Sprintf("unknown field kind '%s'", field.Kind), path)
		return value, false
	}
}

func (v *Validator) checkReference(ctx context.Context, target, id, path string) {
	if v.checker == nil {
		return
	}
	exists, err := v.checker.Exists(ctx, target, id)
	if err != nil {
		v.addIssue(CodeReferenceCheckFailed, fmt.Sprintf("could not verify reference into '%s': %v", target, err), path)
		return
	}
	if !exists {
		v.addIssue(CodeDanglingReference, fmt.Sprintf("document '%s' does not exist in collection '%s'", id, target), path)
	}
}

func (v *Validator) runValidators(field *FieldDescriptor, value any, path string) {
	for _, validate := range field.Validators {
		if err := validate(value); err != nil {
			v.addIssue(CodeValidatorFailed, err.Error(), path)
		}
	}
}

func (v *Validator) addIssue(code, message, path string) {
	v.issues = append(v.issues, Issue{Code: code, Message: message, Path: path, Severity: "error"})
}

func buildPath(base, field string) string {
	if base == "" {
		return field
	}
	return base + "." + field
}

func isReservedField(name string) bool {
	return name == FieldID || name == FieldCreatedAt || name == FieldUpdatedAt
}

// isEmptyString treats empty text as absent, matching the derivation rule
// that an empty and a missing slug are equivalent.
func isEmptyString(value any, kind FieldKind) bool {
	if kind != FieldText && kind != FieldTextarea && kind != FieldSelect {
		return false
	}
	s, ok := value.(string)
	return ok && s == ""
}

func coerceNumber(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func coerceBool(value any) (bool, bool) {
	switch b := value.(type) {
	case bool:
		return b, true
	case string:
		if b == "true" {
			return true, true
		}
		if b == "false" {
			return false, true
		}
	}
	return false, false
}

func coerceDate(value any) (time.Time, bool) {
	switch t := value.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	case float64:
		return time.Unix(int64(t), 0).UTC(), true
	case int64:
		return time.Unix(t, 0).UTC(), true
	case int:
		return time.Unix(int64(t), 0).UTC(), true
	}
	return time.Time{}, false
}

func contains(options []string, value string) bool {
	for _, option := range options {
		if option == value {
			return true
		}
	}
	return false
}
