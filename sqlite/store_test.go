package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/asaidimu/go-vellum/core/storage"
)

func TestTableName(t *testing.T) {
	assert.Equal(t, "col_posts", tableName("posts"))
	assert.Equal(t, "col_service_bookings", tableName("service-bookings"))
	assert.Equal(t, "col_a_b_c", tableName("a.b c"))
}

func TestBuildWhere(t *testing.T) {
	tests := []struct {
		name     string
		filter   storage.Filter
		expected string
		args     []any
	}{
		{
			"empty matches all",
			storage.Filter{},
			"",
			nil,
		},
		{
			"equality on json field",
			storage.Eq("status", "published"),
			" WHERE json_extract(doc, '$.status') = ?",
			[]any{"published"},
		},
		{
			"id uses the indexed column",
			storage.Eq("id", "doc-1"),
			" WHERE id = ?",
			[]any{"doc-1"},
		},
		{
			"conjunction",
			storage.Eq("status", "published").And(storage.Condition{Field: "owner", Operator: storage.OpEq, Value: "u1"}),
			" WHERE json_extract(doc, '$.status') = ? AND json_extract(doc, '$.owner') = ?",
			[]any{"published", "u1"},
		},
		{
			"neq admits missing fields",
			storage.Filter{Conditions: []storage.Condition{{Field: "status", Operator: storage.OpNeq, Value: "draft"}}},
			" WHERE (json_extract(doc, '$.status') IS NULL OR json_extract(doc, '$.status') != ?)",
			[]any{"draft"},
		},
		{
			"in expands placeholders",
			storage.Filter{Conditions: []storage.Condition{{Field: "status", Operator: storage.OpIn, Value: []any{"draft", "published"}}}},
			" WHERE json_extract(doc, '$.status') IN (?, ?)",
			[]any{"draft", "published"},
		},
		{
			"empty in matches nothing",
			storage.Filter{Conditions: []storage.Condition{{Field: "status", Operator: storage.OpIn, Value: []any{}}}},
			" WHERE 1 = 0",
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args, err := buildWhere(tt.filter)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, where)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestBuildWhere_BadInValue(t *testing.T) {
	_, _, err := buildWhere(storage.Filter{Conditions: []storage.Condition{
		{Field: "status", Operator: storage.OpIn, Value: "not a slice"},
	}})
	assert.ErrorContains(t, err, "requires a value slice")
}

func TestSQLValue(t *testing.T) {
	assert.Equal(t, 1, sqlValue(true))
	assert.Equal(t, 0, sqlValue(false))
	assert.Equal(t, "hello", sqlValue("hello"))
	assert.Equal(t, 42, sqlValue(42))

	stamp := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-06-01T12:00:00Z", sqlValue(stamp))
}
