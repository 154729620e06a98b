// Package storage defines the persistence collaborator contract consumed by
// the engine. The engine issues reads and writes through this interface but
// implements no indexing or durability of its own; race-free guarantees such
// as unique indexes belong to the implementation behind it.
package storage

import (
	"context"

	"github.com/asaidimu/go-vellum/core/schema"
)

// Operator is the comparison applied by a filter condition.
type Operator string

const (
	OpEq  Operator = "eq"
	OpNeq Operator = "neq"
	OpIn  Operator = "in"
)

// Condition is a single field comparison.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// Filter is a conjunction of conditions; an empty filter matches everything.
type Filter struct {
	Conditions []Condition
}

// Eq starts a filter with one equality condition.
func Eq(field string, value any) Filter {
	return Filter{Conditions: []Condition{{Field: field, Operator: OpEq, Value: value}}}
}

// FromCriteria builds an equality filter from a criteria map, the shape
// produced by scoped access decisions.
func FromCriteria(criteria map[string]any) Filter {
	f := Filter{}
	for field, value := range criteria {
		f.Conditions = append(f.Conditions, Condition{Field: field, Operator: OpEq, Value: value})
	}
	return f
}

// And returns a filter combining the receiver with extra conditions.
func (f Filter) And(conditions ...Condition) Filter {
	combined := Filter{Conditions: make([]Condition, 0, len(f.Conditions)+len(conditions))}
	combined.Conditions = append(combined.Conditions, f.Conditions...)
	combined.Conditions = append(combined.Conditions, conditions...)
	return combined
}

// Empty reports whether the filter matches everything.
func (f Filter) Empty() bool {
	return len(f.Conditions) == 0
}

// Pagination selects a window of a filtered result set.
type Pagination struct {
	Limit  int
	Offset int
}

// Page is a window of documents plus metadata computed against the filtered
// count, never the unfiltered collection size.
type Page struct {
	Docs       []schema.Document `json:"docs"`
	TotalDocs  int64             `json:"totalDocs"`
	Limit      int               `json:"limit"`
	Offset     int               `json:"offset"`
	TotalPages int               `json:"totalPages"`
	HasNext    bool              `json:"hasNext"`
}

// Store is the document persistence collaborator. Implementations assign
// opaque ids on insert and must treat the id field as immutable thereafter.
type Store interface {
	// Find returns the documents matching filter within the pagination window,
	// plus the total filtered count for pagination metadata.
	Find(ctx context.Context, collection string, filter Filter, page Pagination) ([]schema.Document, int64, error)

	// FindByID returns the document with the given id, constrained by filter
	// (used to enforce scoped access at the persistence layer). A missing or
	// filtered-out document returns (nil, nil).
	FindByID(ctx context.Context, collection string, id string, filter Filter) (schema.Document, error)

	// Insert persists a new document, assigns its id, and returns the stored form.
	Insert(ctx context.Context, collection string, doc schema.Document) (schema.Document, error)

	// UpdateByID overwrites the stored document's fields, constrained by
	// filter. Returns the updated document, or (nil, nil) when no document
	// matched id plus filter.
	UpdateByID(ctx context.Context, collection string, id string, doc schema.Document, filter Filter) (schema.Document, error)

	// DeleteByID removes a document, constrained by filter. Returns false when
	// no document matched.
	DeleteByID(ctx context.Context, collection string, id string, filter Filter) (bool, error)

	// CountMatching returns the number of documents matching filter.
	CountMatching(ctx context.Context, collection string, filter Filter) (int64, error)
}

// NewPage assembles pagination metadata for a result window.
func NewPage(docs []schema.Document, total int64, page Pagination) Page {
	limit := page.Limit
	totalPages := 1
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
		if totalPages == 0 {
			totalPages = 1
		}
	}
	return Page{
		Docs:       docs,
		TotalDocs:  total,
		Limit:      limit,
		Offset:     page.Offset,
		TotalPages: totalPages,
		HasNext:    limit > 0 && int64(page.Offset+limit) < total,
	}
}
