package collection

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/asaidimu/go-vellum/core/access"
	"github.com/asaidimu/go-vellum/core/assets"
	"github.com/asaidimu/go-vellum/core/hook"
	"github.com/asaidimu/go-vellum/core/schema"
)

// LoaderOptions supplies the named hooks and predicates a descriptor may
// reference. Built-in access rule names (allow, deny, authenticated,
// role:<name>, owner:<field>) resolve without any entry here.
type LoaderOptions struct {
	Hooks      map[string]hook.Hook
	Predicates map[string]access.Predicate
}

// descriptor is the YAML/JSON wire form of a collection definition. JSON
// documents parse too, since YAML is a superset.
type descriptor struct {
	Slug         string              `yaml:"slug"`
	Timestamps   bool                `yaml:"timestamps"`
	UniqueFields []string            `yaml:"uniqueFields"`
	Access       map[string]string   `yaml:"access"`
	Hooks        map[string][]string `yaml:"hooks"`
	Fields       []fieldDescriptor   `yaml:"fields"`
	Upload       *uploadDescriptor   `yaml:"upload"`
}

type fieldDescriptor struct {
	Name     string            `yaml:"name"`
	Kind     string            `yaml:"kind"`
	Required bool              `yaml:"required"`
	Default  any               `yaml:"default"`
	Options  []string          `yaml:"options"`
	Target   string            `yaml:"target"`
	Min      *float64          `yaml:"min"`
	Max      *float64          `yaml:"max"`
	Fields   []fieldDescriptor `yaml:"fields"`
}

type uploadDescriptor struct {
	MimeTypes []string             `yaml:"mimeTypes"`
	Sizes     []assets.SizeProfile `yaml:"sizes"`
}

// Parse builds a CollectionSchema from a YAML or JSON descriptor document.
func Parse(data []byte, opts LoaderOptions) (*CollectionSchema, error) {
	var d descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing collection descriptor: %w", err)
	}
	return d.build(opts)
}

// LoadFile reads and parses one descriptor file.
func LoadFile(path string, opts LoaderOptions) (*CollectionSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading collection descriptor %s: %w", path, err)
	}
	c, err := Parse(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (d *descriptor) build(opts LoaderOptions) (*CollectionSchema, error) {
	c := &CollectionSchema{
		Slug:         d.Slug,
		Timestamps:   d.Timestamps,
		UniqueFields: d.UniqueFields,
	}

	if len(d.Access) > 0 {
		c.Access = make(access.Policy, len(d.Access))
		for opName, rule := range d.Access {
			op := access.Operation(opName)
			switch op {
			case access.OperationCreate, access.OperationRead, access.OperationUpdate, access.OperationDelete:
			default:
				return nil, fmt.Errorf("collection '%s': unknown operation '%s' in access map", d.Slug, opName)
			}
			predicate, err := resolvePredicate(rule, opts.Predicates)
			if err != nil {
				return nil, fmt.Errorf("collection '%s': %w", d.Slug, err)
			}
			c.Access[op] = predicate
		}
	}

	if len(d.Hooks) > 0 {
		c.Hooks = make(hook.Bindings, len(d.Hooks))
		for stageName, names := range d.Hooks {
			stage := hook.Stage(stageName)
			switch stage {
			case hook.BeforeValidate, hook.BeforeChange, hook.AfterChange:
			default:
				return nil, fmt.Errorf("collection '%s': unknown hook stage '%s'", d.Slug, stageName)
			}
			for _, name := range names {
				h, ok := opts.Hooks[name]
				if !ok {
					return nil, fmt.Errorf("collection '%s': hook '%s' is not provided", d.Slug, name)
				}
				c.Hooks[stage] = append(c.Hooks[stage], h)
			}
		}
	}

	fields, err := buildFields(d.Slug, d.Fields)
	if err != nil {
		return nil, err
	}
	c.Fields = fields

	if d.Upload != nil {
		c.Upload = &UploadConfig{
			MimeTypes:    d.Upload.MimeTypes,
			SizeProfiles: d.Upload.Sizes,
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func buildFields(slug string, descriptors []fieldDescriptor) ([]schema.FieldDescriptor, error) {
	fields := make([]schema.FieldDescriptor, 0, len(descriptors))
	for _, fd := range descriptors {
		field := schema.FieldDescriptor{
			Name:     fd.Name,
			Kind:     schema.FieldKind(fd.Kind),
			Required: fd.Required,
			Default:  fd.Default,
			Options:  fd.Options,
			Target:   fd.Target,
			Min:      fd.Min,
			Max:      fd.Max,
		}
		if len(fd.Fields) > 0 {
			nested, err := buildFields(slug, fd.Fields)
			if err != nil {
				return nil, err
			}
			field.Fields = nested
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// resolvePredicate maps an access rule name to a predicate. Caller-supplied
// names take precedence over the built-ins.
func resolvePredicate(rule string, supplied map[string]access.Predicate) (access.Predicate, error) {
	if p, ok := supplied[rule]; ok {
		return p, nil
	}
	switch {
	case rule == "allow":
		return access.AllowAll, nil
	case rule == "deny":
		return func(access.Principal) access.AccessDecision { return access.Deny() }, nil
	case rule == "authenticated":
		return access.Authenticated, nil
	case strings.HasPrefix(rule, "role:"):
		return access.RequireRole(strings.TrimPrefix(rule, "role:")), nil
	case strings.HasPrefix(rule, "owner:"):
		return access.OwnerOnly(strings.TrimPrefix(rule, "owner:")), nil
	default:
		return nil, fmt.Errorf("unknown access rule '%s'", rule)
	}
}
