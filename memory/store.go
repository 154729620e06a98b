// Package memory provides an in-memory implementation of the storage.Store
// contract. It backs tests, examples, and single-process deployments; it
// offers no durability and enforces no unique indexes, so the engine's
// uniqueness pre-checks are the only guard against duplicates.
package memory

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/asaidimu/go-vellum/core/schema"
	"github.com/asaidimu/go-vellum/core/storage"
)

// Store keeps documents in process memory, preserving insertion order per
// collection. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	docs  map[string]map[string]schema.Document
	order map[string][]string
}

var _ storage.Store = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		docs:  make(map[string]map[string]schema.Document),
		order: make(map[string][]string),
	}
}

// Find returns matching documents in insertion order within the pagination
// window, plus the total filtered count.
func (s *Store) Find(ctx context.Context, collection string, filter storage.Filter, page storage.Pagination) ([]schema.Document, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []schema.Document
	for _, id := range s.order[collection] {
		doc := s.docs[collection][id]
		if matches(doc, filter) {
			matched = append(matched, doc.Clone())
		}
	}
	total := int64(len(matched))

	if page.Offset > 0 {
		if page.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[page.Offset:]
		}
	}
	if page.Limit > 0 && len(matched) > page.Limit {
		matched = matched[:page.Limit]
	}
	return matched, total, nil
}

// FindByID returns the document with the given id when it matches filter,
// or (nil, nil) otherwise.
func (s *Store) FindByID(ctx context.Context, collection string, id string, filter storage.Filter) (schema.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[collection][id]
	if !ok || !matches(doc, filter) {
		return nil, nil
	}
	return doc.Clone(), nil
}

// Insert stores a new document under a freshly assigned uuid.
func (s *Store) Insert(ctx context.Context, collection string, doc schema.Document) (schema.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := doc.Clone()
	id := uuid.New().String()
	stored[schema.FieldID] = id

	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]schema.Document)
	}
	s.docs[collection][id] = stored
	s.order[collection] = append(s.order[collection], id)
	return stored.Clone(), nil
}

// UpdateByID overwrites a stored document when it matches filter, keeping
// the id immutable.
func (s *Store) UpdateByID(ctx context.Context, collection string, id string, doc schema.Document, filter storage.Filter) (schema.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.docs[collection][id]
	if !ok || !matches(existing, filter) {
		return nil, nil
	}
	stored := doc.Clone()
	stored[schema.FieldID] = id
	s.docs[collection][id] = stored
	return stored.Clone(), nil
}

// DeleteByID removes a document when it matches filter.
func (s *Store) DeleteByID(ctx context.Context, collection string, id string, filter storage.Filter) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.docs[collection][id]
	if !ok || !matches(existing, filter) {
		return false, nil
	}
	delete(s.docs[collection], id)
	ids := s.order[collection]
	for i, existingID := range ids {
		if existingID == id {
			s.order[collection] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return true, nil
}

// CountMatching returns the number of documents matching filter.
func (s *Store) CountMatching(ctx context.Context, collection string, filter storage.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, doc := range s.docs[collection] {
		if matches(doc, filter) {
			count++
		}
	}
	return count, nil
}

func matches(doc schema.Document, filter storage.Filter) bool {
	for _, cond := range filter.Conditions {
		value, exists := doc[cond.Field]
		switch cond.Operator {
		case storage.OpEq:
			if !exists || !looseEqual(value, cond.Value) {
				return false
			}
		case storage.OpNeq:
			if exists && looseEqual(value, cond.Value) {
				return false
			}
		case storage.OpIn:
			values, ok := cond.Value.([]any)
			if !ok || !exists {
				return false
			}
			found := false
			for _, candidate := range values {
				if looseEqual(value, candidate) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// looseEqual compares values the way JSON round-tripping would: numeric
// types compare by value regardless of width.
func looseEqual(a, b any) bool {
	if na, ok := toFloat(a); ok {
		if nb, ok := toFloat(b); ok {
			return na == nb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
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
	}
	return 0, false
}
