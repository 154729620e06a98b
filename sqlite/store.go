// Package sqlite provides a SQLite-backed implementation of the
// storage.Store contract. Each collection maps to one table holding the
// document as a JSON column; filters compile to json_extract expressions, so
// scoped access criteria are enforced in SQL rather than in memory.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asaidimu/go-vellum/core/schema"
	"github.com/asaidimu/go-vellum/core/storage"
)

// Store persists documents in a SQLite database. Tables are created lazily
// on first use of a collection.
type Store struct {
	db     *sql.DB
	logger *zap.Logger

	mu    sync.Mutex
	ready map[string]struct{}
}

var _ storage.Store = (*Store)(nil)

// NewStore creates a Store over an open database handle. A nil logger falls
// back to a no-op logger.
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger, ready: make(map[string]struct{})}
}

// Find returns matching documents in insertion order, plus the total
// filtered count for pagination metadata.
func (s *Store) Find(ctx context.Context, collection string, filter storage.Filter, page storage.Pagination) ([]schema.Document, int64, error) {
	table, err := s.ensureTable(ctx, collection)
	if err != nil {
		return nil, 0, err
	}
	where, args, err := buildWhere(filter)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", table, where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting documents in %s: %w", collection, err)
	}

	query := fmt.Sprintf("SELECT doc FROM %s%s ORDER BY seq", table, where)
	queryArgs := args
	if page.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		queryArgs = append(append([]any{}, args...), page.Limit, page.Offset)
	} else if page.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		queryArgs = append(append([]any{}, args...), page.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []schema.Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, 0, fmt.Errorf("scanning document row: %w", err)
		}
		doc, err := unmarshalDoc(raw)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	return docs, total, rows.Err()
}

// FindByID returns the document with the given id, constrained by filter.
func (s *Store) FindByID(ctx context.Context, collection string, id string, filter storage.Filter) (schema.Document, error) {
	table, err := s.ensureTable(ctx, collection)
	if err != nil {
		return nil, err
	}
	where, args, err := buildWhere(filter.And(storage.Condition{Field: schema.FieldID, Operator: storage.OpEq, Value: id}))
	if err != nil {
		return nil, err
	}

	var raw []byte
	query := fmt.Sprintf("SELECT doc FROM %s%s", table, where)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading document %s from %s: %w", id, collection, err)
	}
	return unmarshalDoc(raw)
}

// Insert stores a new document under a freshly assigned uuid.
func (s *Store) Insert(ctx context.Context, collection string, doc schema.Document) (schema.Document, error) {
	table, err := s.ensureTable(ctx, collection)
	if err != nil {
		return nil, err
	}
	stored := doc.Clone()
	id := uuid.New().String()
	stored[schema.FieldID] = id

	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("marshaling document for %s: %w", collection, err)
	}
	query := fmt.Sprintf("INSERT INTO %s (id, doc) VALUES (?, ?)", table)
	if _, err := s.db.ExecContext(ctx, query, id, string(raw)); err != nil {
		return nil, fmt.Errorf("inserting into %s: %w", collection, err)
	}
	return unmarshalDoc(raw)
}

// UpdateByID overwrites a stored document when it matches filter.
func (s *Store) UpdateByID(ctx context.Context, collection string, id string, doc schema.Document, filter storage.Filter) (schema.Document, error) {
	table, err := s.ensureTable(ctx, collection)
	if err != nil {
		return nil, err
	}
	stored := doc.Clone()
	stored[schema.FieldID] = id
	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("marshaling document for %s: %w", collection, err)
	}

	where, args, err := buildWhere(filter.And(storage.Condition{Field: schema.FieldID, Operator: storage.OpEq, Value: id}))
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("UPDATE %s SET doc = ?%s", table, where)
	result, err := s.db.ExecContext(ctx, query, append([]any{string(raw)}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("updating %s in %s: %w", id, collection, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}
	return unmarshalDoc(raw)
}

// DeleteByID removes a document when it matches filter.
func (s *Store) DeleteByID(ctx context.Context, collection string, id string, filter storage.Filter) (bool, error) {
	table, err := s.ensureTable(ctx, collection)
	if err != nil {
		return false, err
	}
	where, args, err := buildWhere(filter.And(storage.Condition{Field: schema.FieldID, Operator: storage.OpEq, Value: id}))
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf("DELETE FROM %s%s", table, where)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("deleting %s from %s: %w", id, collection, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CountMatching returns the number of documents matching filter.
func (s *Store) CountMatching(ctx context.Context, collection string, filter storage.Filter) (int64, error) {
	table, err := s.ensureTable(ctx, collection)
	if err != nil {
		return 0, err
	}
	where, args, err := buildWhere(filter)
	if err != nil {
		return 0, err
	}
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", table, where)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents in %s: %w", collection, err)
	}
	return count, nil
}

// ensureTable creates the collection's table on first use and returns its
// quoted name.
func (s *Store) ensureTable(ctx context.Context, collection string) (string, error) {
	table := tableName(collection)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ready[table]; ok {
		return table, nil
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		doc TEXT NOT NULL
	)`, table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return "", fmt.Errorf("creating table for collection %s: %w", collection, err)
	}
	s.logger.Debug("collection table ready", zap.String("table", table))
	s.ready[table] = struct{}{}
	return table, nil
}

// tableName maps a collection slug to a safe identifier.
func tableName(collection string) string {
	var b strings.Builder
	b.WriteString("col_")
	for _, r := range collection {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// buildWhere compiles a filter into a WHERE clause over json_extract
// expressions. The id field resolves to the indexed id column.
func buildWhere(filter storage.Filter) (string, []any, error) {
	if filter.Empty() {
		return "", nil, nil
	}
	var clauses []string
	var args []any
	for _, cond := range filter.Conditions {
		expr := fmt.Sprintf("json_extract(doc, '$.%s')", cond.Field)
		if cond.Field == schema.FieldID {
			expr = "id"
		}
		switch cond.Operator {
		case storage.OpEq:
			clauses = append(clauses, expr+" = ?")
			args = append(args, sqlValue(cond.Value))
		case storage.OpNeq:
			clauses = append(clauses, fmt.Sprintf("(%s IS NULL OR %s != ?)", expr, expr))
			args = append(args, sqlValue(cond.Value))
		case storage.OpIn:
			values, ok := cond.Value.([]any)
			if !ok {
				return "", nil, fmt.Errorf("in-condition on '%s' requires a value slice", cond.Field)
			}
			if len(values) == 0 {
				// SQLite rejects a bare IN (); an empty set matches nothing.
				clauses = append(clauses, "1 = 0")
				continue
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", expr, placeholders))
			for _, v := range values {
				args = append(args, sqlValue(v))
			}
		default:
			return "", nil, fmt.Errorf("unsupported filter operator '%s'", cond.Operator)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// sqlValue normalizes Go values to the forms json_extract yields: booleans
// become 0/1 and timestamps their RFC3339 JSON encoding.
func sqlValue(value any) any {
	switch v := value.(type) {
	case bool:
		if v {
			return 1
		}
		return 0
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return value
	}
}

func unmarshalDoc(raw []byte) (schema.Document, error) {
	var doc schema.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling stored document: %w", err)
	}
	return doc, nil
}
