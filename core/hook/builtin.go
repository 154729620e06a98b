package hook

import (
	"context"
	"strings"
	"time"

	"github.com/asaidimu/go-vellum/core/access"
	"github.com/asaidimu/go-vellum/core/richtext"
	"github.com/asaidimu/go-vellum/core/schema"
)

// Slugify lowercases the input, replaces every run of non-alphanumeric
// characters with a single hyphen, and trims leading and trailing hyphens.
// Deterministic and idempotent over its own output.
func Slugify(title string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(title) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if alnum {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// DeriveSlug returns a beforeValidate hook that fills slugField from
// titleField when the slug is empty or missing. A manually supplied slug is
// never overwritten; empty string and absence are treated alike.
func DeriveSlug(titleField, slugField string) Hook {
	return func(ctx context.Context, args *Args) (schema.Document, error) {
		if args.Operation != access.OperationCreate && args.Operation != access.OperationUpdate {
			return nil, nil
		}
		if args.Doc.String(slugField) != "" {
			return nil, nil
		}
		title := args.Doc.String(titleField)
		if title == "" {
			return nil, nil
		}
		args.Doc[slugField] = Slugify(title)
		return args.Doc, nil
	}
}

// DeriveExcerpt returns a beforeChange hook that fills excerptField from the
// richtext contentField when no excerpt was supplied. Empty content derives
// an empty excerpt.
func DeriveExcerpt(contentField, excerptField string) Hook {
	return func(ctx context.Context, args *Args) (schema.Document, error) {
		if args.Doc.String(excerptField) != "" {
			return nil, nil
		}
		content, ok := args.Doc[contentField]
		if !ok {
			return nil, nil
		}
		nodes, ok := richtext.FromValue(content)
		if !ok {
			return nil, nil
		}
		args.Doc[excerptField] = richtext.Excerpt(nodes)
		return args.Doc, nil
	}
}

// DeriveReadingTime returns a beforeChange hook that computes the estimated
// reading time in minutes from the richtext contentField.
func DeriveReadingTime(contentField, readTimeField string) Hook {
	return func(ctx context.Context, args *Args) (schema.Document, error) {
		content, ok := args.Doc[contentField]
		if !ok {
			return nil, nil
		}
		nodes, ok := richtext.FromValue(content)
		if !ok {
			return nil, nil
		}
		args.Doc[readTimeField] = richtext.EstimateReadingTime(nodes)
		return args.Doc, nil
	}
}

// StampOnCreate returns a beforeChange hook that sets field to the current
// time on create and leaves it untouched afterwards. Used by submission-style
// collections that record when an entry arrived.
func StampOnCreate(field string) Hook {
	return func(ctx context.Context, args *Args) (schema.Document, error) {
		if args.Operation != access.OperationCreate {
			return nil, nil
		}
		if _, ok := args.Doc[field]; ok {
			return nil, nil
		}
		args.Doc[field] = time.Now().UTC()
		return args.Doc, nil
	}
}
