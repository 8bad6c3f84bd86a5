package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/matthewbaird/rentroll/internal/types"
)

// Store is the interface for reading and writing activity entries.
type Store interface {
	// WriteEntries writes one or more activity entries (one event → many entries).
	// Rewriting an entry already stored is a no-op.
	WriteEntries(ctx context.Context, entries []types.ActivityEntry) error

	// QueryByEntity returns activity entries for a specific entity, newest first.
	QueryByEntity(ctx context.Context, entityType, entityID string, opts QueryOptions) (entries []types.ActivityEntry, nextCursor string, totalCount int, err error)

	// Search performs case-insensitive substring search across activity summaries.
	Search(ctx context.Context, query string, opts SearchOptions) (entries []types.ActivityEntry, totalCount int, err error)
}

const table = "activity_entries"

var columns = []string{
	"event_id", "event_type", "occurred_at", "indexed_entity_type", "indexed_entity_id",
	"entity_role", "source_refs", "summary", "category", "payload",
}

// SQLiteStore implements Store on a SQLite table. occurred_at is stored as
// Unix nanoseconds so range filters and ordering stay numeric.
type SQLiteStore struct {
	db *sql.DB
	b  *entsql.DialectBuilder
}

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, b: entsql.Dialect(dialect.SQLite)}
}

// CreateTable creates the activity_entries table and its lookup index.
func (s *SQLiteStore) CreateTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS activity_entries (
			event_id            TEXT NOT NULL DEFAULT '',
			event_type          TEXT NOT NULL DEFAULT '',
			occurred_at         INTEGER NOT NULL,
			indexed_entity_type TEXT NOT NULL DEFAULT '',
			indexed_entity_id   TEXT NOT NULL DEFAULT '',
			entity_role         TEXT NOT NULL DEFAULT '',
			source_refs         TEXT NOT NULL DEFAULT '[]',
			summary             TEXT NOT NULL DEFAULT '',
			category            TEXT NOT NULL DEFAULT '',
			payload             TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (indexed_entity_type, indexed_entity_id, event_id)
		);

		CREATE INDEX IF NOT EXISTS idx_activity_entity_time
			ON activity_entries (indexed_entity_type, indexed_entity_id, occurred_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("activity: create table: %w", err)
	}
	return nil
}

// WriteEntries inserts activity entries in a single statement.
func (s *SQLiteStore) WriteEntries(ctx context.Context, entries []types.ActivityEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ins := s.b.Insert(table).Columns(columns...)
	for _, e := range entries {
		refsJSON, err := json.Marshal(e.SourceRefs)
		if err != nil {
			return fmt.Errorf("activity: encode source refs: %w", err)
		}
		ins.Values(
			e.EventID, e.EventType, e.OccurredAt.UnixNano(), e.IndexedEntityType, e.IndexedEntityID,
			e.EntityRole, string(refsJSON), e.Summary, e.Category, string(e.Payload),
		)
	}
	query, args := ins.
		OnConflict(entsql.ConflictColumns("indexed_entity_type", "indexed_entity_id", "event_id"), entsql.DoNothing()).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("activity: write entries: %w", err)
	}
	return nil
}

// QueryByEntity returns activity entries for a specific entity with filtering and pagination.
func (s *SQLiteStore) QueryByEntity(ctx context.Context, entityType, entityID string, opts QueryOptions) ([]types.ActivityEntry, string, int, error) {
	preds := []*entsql.Predicate{
		entsql.EQ("indexed_entity_type", entityType),
		entsql.EQ("indexed_entity_id", entityID),
	}
	if opts.Since != nil {
		preds = append(preds, entsql.GTE("occurred_at", opts.Since.UnixNano()))
	}
	if opts.Until != nil {
		preds = append(preds, entsql.LTE("occurred_at", opts.Until.UnixNano()))
	}
	if len(opts.Categories) > 0 {
		preds = append(preds, entsql.In("category", anySlice(opts.Categories)...))
	}

	total, err := s.count(ctx, preds)
	if err != nil {
		return nil, "", 0, err
	}

	if opts.Cursor != "" {
		if cursorTime, err := time.Parse(time.RFC3339Nano, opts.Cursor); err == nil {
			preds = append(preds, entsql.LT("occurred_at", cursorTime.UnixNano()))
		}
	}
	limit := opts.limit()
	entries, err := s.selectEntries(ctx, preds, limit+1) // one extra for the cursor
	if err != nil {
		return nil, "", 0, err
	}

	var nextCursor string
	if len(entries) > limit {
		entries = entries[:limit]
		nextCursor = entries[len(entries)-1].OccurredAt.Format(time.RFC3339Nano)
	}
	return entries, nextCursor, total, nil
}

// Search performs case-insensitive substring search across activity summaries.
func (s *SQLiteStore) Search(ctx context.Context, query string, opts SearchOptions) ([]types.ActivityEntry, int, error) {
	preds := []*entsql.Predicate{entsql.ContainsFold("summary", query)}
	if opts.EntityType != "" {
		preds = append(preds, entsql.EQ("indexed_entity_type", opts.EntityType))
	}
	if opts.Since != nil {
		preds = append(preds, entsql.GTE("occurred_at", opts.Since.UnixNano()))
	}
	if len(opts.Categories) > 0 {
		preds = append(preds, entsql.In("category", anySlice(opts.Categories)...))
	}

	total, err := s.count(ctx, preds)
	if err != nil {
		return nil, 0, err
	}
	entries, err := s.selectEntries(ctx, preds, opts.limit())
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *SQLiteStore) count(ctx context.Context, preds []*entsql.Predicate) (int, error) {
	query, args := s.b.Select(entsql.Count("*")).
		From(s.b.Table(table)).
		Where(entsql.And(preds...)).
		Query()
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("activity: count entries: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) selectEntries(ctx context.Context, preds []*entsql.Predicate, limit int) ([]types.ActivityEntry, error) {
	query, args := s.b.Select(columns...).
		From(s.b.Table(table)).
		Where(entsql.And(preds...)).
		OrderBy(entsql.Desc("occurred_at")).
		Limit(limit).
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("activity: query entries: %w", err)
	}
	defer rows.Close()

	entries := []types.ActivityEntry{}
	for rows.Next() {
		var e types.ActivityEntry
		var occurred int64
		var refsJSON, payload string
		err := rows.Scan(
			&e.EventID, &e.EventType, &occurred, &e.IndexedEntityType, &e.IndexedEntityID,
			&e.EntityRole, &refsJSON, &e.Summary, &e.Category, &payload,
		)
		if err != nil {
			return nil, fmt.Errorf("activity: scan entry: %w", err)
		}
		e.OccurredAt = time.Unix(0, occurred).UTC()
		if refsJSON != "" {
			_ = json.Unmarshal([]byte(refsJSON), &e.SourceRefs)
		}
		if payload != "" {
			e.Payload = json.RawMessage(payload)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
