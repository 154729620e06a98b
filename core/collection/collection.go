// Package collection ties a named document category to its schema, access
// policy, hook bindings, and lifecycle flags, and provides the process-wide
// registry those definitions live in. Definitions are built once at startup
// and treated as read-only afterwards.
package collection

import (
	"fmt"

	"github.com/asaidimu/go-vellum/core/access"
	"github.com/asaidimu/go-vellum/core/assets"
	"github.com/asaidimu/go-vellum/core/hook"
	"github.com/asaidimu/go-vellum/core/schema"
)

// UploadConfig marks a collection as binary-capable and declares the derived
// size variants produced at upload time.
type UploadConfig struct {
	// MimeTypes restricts accepted content types by prefix match,
	// e.g. "image/". Empty accepts everything.
	MimeTypes []string
	// SizeProfiles are the named variants derived for each upload.
	SizeProfiles []assets.SizeProfile
}

// Accepts reports whether the config admits the given content type.
func (u *UploadConfig) Accepts(contentType string) bool {
	if len(u.MimeTypes) == 0 {
		return true
	}
	for _, prefix := range u.MimeTypes {
		if len(contentType) >= len(prefix) && contentType[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// CollectionSchema is the static descriptor of one collection: slug, ordered
// field list, per-operation access predicates, hook bindings, and lifecycle
// flags. Immutable after registration.
type CollectionSchema struct {
	// Slug uniquely identifies the collection across the registry.
	Slug string

	// Fields is the ordered field list.
	Fields []schema.FieldDescriptor

	// Access maps each operation to its predicate; missing entries fail closed.
	Access access.Policy

	// Hooks binds lifecycle stages to ordered hook lists.
	Hooks hook.Bindings

	// Timestamps enables engine-managed createdAt/updatedAt stamping.
	Timestamps bool

	// UniqueFields names fields requiring per-collection uniqueness.
	UniqueFields []string

	// Upload marks the collection binary-capable; upload fields may only
	// target collections with a non-nil Upload config.
	Upload *UploadConfig
}

// Field returns the descriptor with the given name, or nil.
func (c *CollectionSchema) Field(name string) *schema.FieldDescriptor {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i]
		}
	}
	return nil
}

// Validate checks the structural invariants of the definition. Relation and
// upload targets are deliberately not resolved here; target slugs resolve
// lazily at validation time so collections may reference each other
// regardless of registration order.
func (c *CollectionSchema) Validate() error {
	if c.Slug == "" {
		return fmt.Errorf("collection slug must not be empty")
	}
	seen := make(map[string]struct{}, len(c.Fields))
	for i := range c.Fields {
		f := &c.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("collection '%s': field %d has no name", c.Slug, i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("collection '%s': duplicate field name '%s'", c.Slug, f.Name)
		}
		seen[f.Name] = struct{}{}
		if err := validateField(c.Slug, f); err != nil {
			return err
		}
	}
	for _, name := range c.UniqueFields {
		if _, ok := seen[name]; !ok {
			return fmt.Errorf("collection '%s': unique field '%s' is not declared", c.Slug, name)
		}
	}
	return nil
}

func validateField(slug string, f *schema.FieldDescriptor) error {
	switch f.Kind {
	case schema.FieldSelect:
		if len(f.Options) == 0 {
			return fmt.Errorf("collection '%s': select field '%s' declares no options", slug, f.Name)
		}
	case schema.FieldRelation, schema.FieldUpload:
		if f.Target == "" {
			return fmt.Errorf("collection '%s': %s field '%s' names no target collection", slug, f.Kind, f.Name)
		}
	case schema.FieldGroup, schema.FieldArray:
		nested := make(map[string]struct{}, len(f.Fields))
		for i := range f.Fields {
			child := &f.Fields[i]
			if _, dup := nested[child.Name]; dup {
				return fmt.Errorf("collection '%s': duplicate nested field '%s.%s'", slug, f.Name, child.Name)
			}
			nested[child.Name] = struct{}{}
			if err := validateField(slug, child); err != nil {
				return err
			}
		}
	}
	return nil
}
