package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/asaidimu/go-vellum/core/schema"
	"github.com/asaidimu/go-vellum/core/storage"
)

func TestInsertAssignsID(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	stored, err := s.Insert(ctx, "posts", schema.Document{"title": "one"})
	assert.NoError(t, err)
	assert.NotEmpty(t, stored.ID())
	assert.Equal(t, "one", stored["title"])
}

func TestFind_InsertionOrderAndPagination(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c", "d"} {
		_, err := s.Insert(ctx, "posts", schema.Document{"title": title})
		assert.NoError(t, err)
	}

	docs, total, err := s.Find(ctx, "posts", storage.Filter{}, storage.Pagination{Limit: 2, Offset: 1})
	assert.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, docs, 2)
	assert.Equal(t, "b", docs[0]["title"])
	assert.Equal(t, "c", docs[1]["title"])
}

func TestFind_FilteredTotal(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Insert(ctx, "posts", schema.Document{"owner": "alice"})
		assert.NoError(t, err)
	}
	_, err := s.Insert(ctx, "posts", schema.Document{"owner": "bob"})
	assert.NoError(t, err)

	docs, total, err := s.Find(ctx, "posts", storage.Eq("owner", "alice"), storage.Pagination{Limit: 2})
	assert.NoError(t, err)
	// The total reflects the filtered set, not the collection size.
	assert.Equal(t, int64(3), total)
	assert.Len(t, docs, 2)
}

func TestFind_Operators(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	for _, status := range []string{"draft", "published", "archived"} {
		_, err := s.Insert(ctx, "posts", schema.Document{"status": status})
		assert.NoError(t, err)
	}

	_, total, err := s.Find(ctx, "posts",
		storage.Filter{Conditions: []storage.Condition{{Field: "status", Operator: storage.OpNeq, Value: "draft"}}},
		storage.Pagination{})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, total, err = s.Find(ctx, "posts",
		storage.Filter{Conditions: []storage.Condition{{Field: "status", Operator: storage.OpIn, Value: []any{"draft", "archived"}}}},
		storage.Pagination{})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestFind_NumericEqualityAcrossWidths(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.Insert(ctx, "products", schema.Document{"price": float64(10)})
	assert.NoError(t, err)

	_, total, err := s.Find(ctx, "products", storage.Eq("price", 10), storage.Pagination{})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestFindByID(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	stored, err := s.Insert(ctx, "posts", schema.Document{"owner": "alice"})
	assert.NoError(t, err)

	doc, err := s.FindByID(ctx, "posts", stored.ID(), storage.Filter{})
	assert.NoError(t, err)
	assert.Equal(t, "alice", doc["owner"])

	// A non-matching filter behaves like a missing document.
	doc, err = s.FindByID(ctx, "posts", stored.ID(), storage.Eq("owner", "bob"))
	assert.NoError(t, err)
	assert.Nil(t, doc)

	doc, err = s.FindByID(ctx, "posts", "no-such-id", storage.Filter{})
	assert.NoError(t, err)
	assert.Nil(t, doc)
}

func TestUpdateByID(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	stored, err := s.Insert(ctx, "posts", schema.Document{"title": "old"})
	assert.NoError(t, err)

	next := stored.Clone()
	next["title"] = "new"
	updated, err := s.UpdateByID(ctx, "posts", stored.ID(), next, storage.Filter{})
	assert.NoError(t, err)
	assert.Equal(t, "new", updated["title"])

	fetched, err := s.FindByID(ctx, "posts", stored.ID(), storage.Filter{})
	assert.NoError(t, err)
	assert.Equal(t, "new", fetched["title"])

	// Updates constrained by a non-matching filter do nothing.
	blocked, err := s.UpdateByID(ctx, "posts", stored.ID(), next, storage.Eq("title", "missing"))
	assert.NoError(t, err)
	assert.Nil(t, blocked)
}

func TestDeleteByID(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	stored, err := s.Insert(ctx, "posts", schema.Document{"owner": "alice"})
	assert.NoError(t, err)

	deleted, err := s.DeleteByID(ctx, "posts", stored.ID(), storage.Eq("owner", "bob"))
	assert.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = s.DeleteByID(ctx, "posts", stored.ID(), storage.Filter{})
	assert.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteByID(ctx, "posts", stored.ID(), storage.Filter{})
	assert.NoError(t, err)
	assert.False(t, deleted)
}

func TestStoredDocumentsAreIsolated(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	original := schema.Document{"title": "one"}
	stored, err := s.Insert(ctx, "posts", original)
	assert.NoError(t, err)

	// Mutating either the input or the returned copy must not leak into the store.
	original["title"] = "mutated input"
	stored["title"] = "mutated output"

	fetched, err := s.FindByID(ctx, "posts", stored.ID(), storage.Filter{})
	assert.NoError(t, err)
	assert.Equal(t, "one", fetched["title"])
}

func TestCountMatching(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Insert(ctx, "posts", schema.Document{"owner": "alice"})
		assert.NoError(t, err)
	}

	count, err := s.CountMatching(ctx, "posts", storage.Eq("owner", "alice"))
	assert.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = s.CountMatching(ctx, "empty", storage.Filter{})
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
