package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/asaidimu/go-vellum/core/schema"
)

func TestFromCriteria(t *testing.T) {
	f := FromCriteria(map[string]any{"owner": "u1"})
	assert.Len(t, f.Conditions, 1)
	assert.Equal(t, "owner", f.Conditions[0].Field)
	assert.Equal(t, OpEq, f.Conditions[0].Operator)
	assert.Equal(t, "u1", f.Conditions[0].Value)
}

func TestFilter_And(t *testing.T) {
	base := Eq("status", "published")
	combined := base.And(Condition{Field: "owner", Operator: OpEq, Value: "u1"})

	assert.Len(t, combined.Conditions, 2)
	// The receiver is untouched.
	assert.Len(t, base.Conditions, 1)
}

func TestFilter_Empty(t *testing.T) {
	assert.True(t, Filter{}.Empty())
	assert.False(t, Eq("a", 1).Empty())
}

func TestNewPage(t *testing.T) {
	docs := []schema.Document{{"id": "1"}, {"id": "2"}}

	tests := []struct {
		name       string
		total      int64
		page       Pagination
		totalPages int
		hasNext    bool
	}{
		{"first of many", 25, Pagination{Limit: 10, Offset: 0}, 3, true},
		{"middle window", 25, Pagination{Limit: 10, Offset: 10}, 3, true},
		{"last window", 25, Pagination{Limit: 10, Offset: 20}, 3, false},
		{"exact fit", 20, Pagination{Limit: 10, Offset: 10}, 2, false},
		{"no limit", 25, Pagination{}, 1, false},
		{"empty result", 0, Pagination{Limit: 10}, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := NewPage(docs, tt.total, tt.page)
			assert.Equal(t, tt.total, page.TotalDocs)
			assert.Equal(t, tt.totalPages, page.TotalPages)
			assert.Equal(t, tt.hasNext, page.HasNext)
			assert.Equal(t, tt.page.Limit, page.Limit)
			assert.Equal(t, tt.page.Offset, page.Offset)
		})
	}
}
