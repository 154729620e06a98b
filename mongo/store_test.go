package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/asaidimu/go-vellum/core/storage"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		filter   storage.Filter
		expected bson.M
	}{
		{"empty matches all", storage.Filter{}, bson.M{}},
		{"equality", storage.Eq("status", "published"), bson.M{"status": "published"}},
		{
			"conjunction",
			storage.Eq("status", "published").And(storage.Condition{Field: "owner", Operator: storage.OpEq, Value: "u1"}),
			bson.M{"status": "published", "owner": "u1"},
		},
		{
			"neq",
			storage.Filter{Conditions: []storage.Condition{{Field: "status", Operator: storage.OpNeq, Value: "draft"}}},
			bson.M{"status": bson.M{"$ne": "draft"}},
		},
		{
			"in",
			storage.Filter{Conditions: []storage.Condition{{Field: "status", Operator: storage.OpIn, Value: []any{"a", "b"}}}},
			bson.M{"status": bson.M{"$in": []any{"a", "b"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildQuery(tt.filter))
		})
	}
}

func TestDecodeDoc_DropsOrderingKey(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"_id": "internal", "id": "doc-1", "title": "kept"})
	assert.NoError(t, err)

	doc, err := decodeDoc(raw)
	assert.NoError(t, err)
	assert.NotContains(t, doc, "_id")
	assert.Equal(t, "doc-1", doc["id"])
	assert.Equal(t, "kept", doc["title"])
}
