// Package mongo provides a MongoDB-backed implementation of the
// storage.Store contract. Each collection maps to a Mongo collection; the
// engine's document id lives in an indexed "id" field while Mongo's _id is an
// ObjectID used only for stable insertion ordering.
package mongo

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/asaidimu/go-vellum/core/schema"
	"github.com/asaidimu/go-vellum/core/storage"
)

// Store persists documents in a MongoDB database.
type Store struct {
	db     *mongo.Database
	logger *zap.Logger

	mu      sync.Mutex
	indexed map[string]struct{}
}

var _ storage.Store = (*Store)(nil)

// NewStore creates a Store over a connected database. A nil logger falls
// back to a no-op logger.
func NewStore(db *mongo.Database, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger, indexed: make(map[string]struct{})}
}

// Find returns matching documents in insertion order, plus the total
// filtered count for pagination metadata.
func (s *Store) Find(ctx context.Context, collection string, filter storage.Filter, page storage.Pagination) ([]schema.Document, int64, error) {
	coll, err := s.collection(ctx, collection)
	if err != nil {
		return nil, 0, err
	}
	query := buildQuery(filter)

	total, err := coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("counting documents in %s: %w", collection, err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if page.Limit > 0 {
		opts.SetLimit(int64(page.Limit))
	}
	if page.Offset > 0 {
		opts.SetSkip(int64(page.Offset))
	}
	cursor, err := coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("querying %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var docs []schema.Document
	for cursor.Next(ctx) {
		doc, err := decodeDoc(cursor.Current)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	return docs, total, cursor.Err()
}

// FindByID returns the document with the given id, constrained by filter.
func (s *Store) FindByID(ctx context.Context, collection string, id string, filter storage.Filter) (schema.Document, error) {
	coll, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	query := buildQuery(filter.And(storage.Condition{Field: schema.FieldID, Operator: storage.OpEq, Value: id}))

	var raw bson.Raw
	err = coll.FindOne(ctx, query).Decode(&raw)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading document %s from %s: %w", id, collection, err)
	}
	return decodeDoc(raw)
}

// Insert stores a new document under a freshly assigned uuid.
func (s *Store) Insert(ctx context.Context, collection string, doc schema.Document) (schema.Document, error) {
	coll, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	stored := doc.Clone()
	stored[schema.FieldID] = uuid.New().String()

	if _, err := coll.InsertOne(ctx, bson.M(stored)); err != nil {
		return nil, fmt.Errorf("inserting into %s: %w", collection, err)
	}
	return stored, nil
}

// UpdateByID overwrites a stored document when it matches filter.
func (s *Store) UpdateByID(ctx context.Context, collection string, id string, doc schema.Document, filter storage.Filter) (schema.Document, error) {
	coll, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	stored := doc.Clone()
	stored[schema.FieldID] = id
	query := buildQuery(filter.And(storage.Condition{Field: schema.FieldID, Operator: storage.OpEq, Value: id}))

	// Field-wise $set keeps the ordering _id untouched.
	update := bson.M{"$set": bson.M(stored)}
	result, err := coll.UpdateOne(ctx, query, update)
	if err != nil {
		return nil, fmt.Errorf("updating %s in %s: %w", id, collection, err)
	}
	if result.MatchedCount == 0 {
		return nil, nil
	}
	return stored, nil
}

// DeleteByID removes a document when it matches filter.
func (s *Store) DeleteByID(ctx context.Context, collection string, id string, filter storage.Filter) (bool, error) {
	coll, err := s.collection(ctx, collection)
	if err != nil {
		return false, err
	}
	query := buildQuery(filter.And(storage.Condition{Field: schema.FieldID, Operator: storage.OpEq, Value: id}))
	result, err := coll.DeleteOne(ctx, query)
	if err != nil {
		return false, fmt.Errorf("deleting %s from %s: %w", id, collection, err)
	}
	return result.DeletedCount > 0, nil
}

// CountMatching returns the number of documents matching filter.
func (s *Store) CountMatching(ctx context.Context, collection string, filter storage.Filter) (int64, error) {
	coll, err := s.collection(ctx, collection)
	if err != nil {
		return 0, err
	}
	count, err := coll.CountDocuments(ctx, buildQuery(filter))
	if err != nil {
		return 0, fmt.Errorf("counting documents in %s: %w", collection, err)
	}
	return count, nil
}

// collection returns the handle for a collection, ensuring its unique id
// index once per process.
func (s *Store) collection(ctx context.Context, collection string) (*mongo.Collection, error) {
	coll := s.db.Collection(collection)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexed[collection]; ok {
		return coll, nil
	}
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: schema.FieldID, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("ensuring id index on %s: %w", collection, err)
	}
	s.logger.Debug("collection index ready", zap.String("collection", collection))
	s.indexed[collection] = struct{}{}
	return coll, nil
}

// buildQuery compiles a filter into a Mongo query document.
func buildQuery(filter storage.Filter) bson.M {
	query := bson.M{}
	for _, cond := range filter.Conditions {
		switch cond.Operator {
		case storage.OpEq:
			query[cond.Field] = cond.Value
		case storage.OpNeq:
			query[cond.Field] = bson.M{"$ne": cond.Value}
		case storage.OpIn:
			query[cond.Field] = bson.M{"$in": cond.Value}
		}
	}
	return query
}

// decodeDoc converts a stored BSON document back to the engine's map form,
// dropping the internal ordering key.
func decodeDoc(raw bson.Raw) (schema.Document, error) {
	var doc schema.Document
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding stored document: %w", err)
	}
	delete(doc, "_id")
	return doc, nil
}
