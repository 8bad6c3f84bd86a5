package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/matthewbaird/rentroll/internal/types"
)

const (
	leasesTable     = "leases"
	paymentsTable   = "payments"
	unitsTable      = "units"
	propertiesTable = "properties"
)

// SQLiteStore implements Store on SQLite. Each record is kept as its JSON
// document next to the key columns the filters use.
type SQLiteStore struct {
	db *sql.DB
	b  *entsql.DialectBuilder
}

// NewSQLiteStore creates a new SQLiteStore. Call Migrate before first use.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, b: entsql.Dialect(dialect.SQLite)}
}

// Migrate creates the read-model tables and their lookup indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS leases (
			id        TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL DEFAULT '',
			unit_id   TEXT NOT NULL DEFAULT '',
			doc       TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS payments (
			id      TEXT PRIMARY KEY,
			unit_id TEXT NOT NULL DEFAULT '',
			doc     TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS units (
			id          TEXT PRIMARY KEY,
			tenant_id   TEXT NOT NULL DEFAULT '',
			property_id TEXT NOT NULL DEFAULT '',
			doc         TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS properties (
			id  TEXT PRIMARY KEY,
			doc TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_leases_tenant ON leases (tenant_id);
		CREATE INDEX IF NOT EXISTS idx_leases_unit ON leases (unit_id);
		CREATE INDEX IF NOT EXISTS idx_payments_unit ON payments (unit_id);
		CREATE INDEX IF NOT EXISTS idx_units_tenant ON units (tenant_id);
		CREATE INDEX IF NOT EXISTS idx_units_property ON units (property_id);
	`)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// upsert writes doc under id, replacing the key columns on conflict.
// The row keeps its rowid so list order stays first-insertion order.
func (s *SQLiteStore) upsert(ctx context.Context, table string, id types.ID, doc any, keys map[string]string) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: encode %s %s: %w", table, id, err)
	}
	cols := []string{"id", "doc"}
	vals := []any{id.String(), string(raw)}
	for _, c := range slices.Sorted(maps.Keys(keys)) {
		cols = append(cols, c)
		vals = append(vals, keys[c])
	}
	query, args := s.b.Insert(table).
		Columns(cols...).
		Values(vals...).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store: upsert %s %s: %w", table, id, err)
	}
	return nil
}

func (s *SQLiteStore) get(ctx context.Context, table string, id types.ID, dst any) error {
	query, args := s.b.Select("doc").
		From(s.b.Table(table)).
		Where(entsql.EQ("id", id.String())).
		Query()
	var raw string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: get %s %s: %w", table, id, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("store: decode %s %s: %w", table, id, err)
	}
	return nil
}

// list decodes every doc in table matching all of preds.
func list[T any](ctx context.Context, s *SQLiteStore, table string, preds []*entsql.Predicate) ([]T, error) {
	sel := s.b.Select("doc").From(s.b.Table(table)).OrderBy("rowid")
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	query, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", table, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", table, err)
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("store: decode %s: %w", table, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertLease(ctx context.Context, l types.Lease) error {
	return s.upsert(ctx, leasesTable, l.ID, l, map[string]string{
		"tenant_id": l.Tenant.String(),
		"unit_id":   l.Unit.String(),
	})
}

func (s *SQLiteStore) GetLease(ctx context.Context, id types.ID) (*types.Lease, error) {
	var l types.Lease
	if err := s.get(ctx, leasesTable, id, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *SQLiteStore) ListLeases(ctx context.Context, f LeaseFilter) ([]types.Lease, error) {
	var preds []*entsql.Predicate
	if f.TenantID != "" {
		preds = append(preds, entsql.EQ("tenant_id", f.TenantID.String()))
	}
	if f.UnitID != "" {
		preds = append(preds, entsql.EQ("unit_id", f.UnitID.String()))
	}
	return list[types.Lease](ctx, s, leasesTable, preds)
}

func (s *SQLiteStore) UpsertPayment(ctx context.Context, p types.Payment) error {
	return s.upsert(ctx, paymentsTable, p.ID, p, map[string]string{
		"unit_id": p.Metadata.UnitID.String(),
	})
}

func (s *SQLiteStore) GetPayment(ctx context.Context, id types.ID) (*types.Payment, error) {
	var p types.Payment
	if err := s.get(ctx, paymentsTable, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) ListPayments(ctx context.Context, f PaymentFilter) ([]types.Payment, error) {
	var preds []*entsql.Predicate
	if len(f.UnitIDs) > 0 {
		ids := make([]any, len(f.UnitIDs))
		for i, id := range f.UnitIDs {
			ids[i] = id.String()
		}
		preds = append(preds, entsql.In("unit_id", ids...))
	}
	return list[types.Payment](ctx, s, paymentsTable, preds)
}

func (s *SQLiteStore) UpsertUnit(ctx context.Context, u types.Unit) error {
	return s.upsert(ctx, unitsTable, u.ID, u, map[string]string{
		"tenant_id":   u.Tenant.String(),
		"property_id": u.Property.String(),
	})
}

func (s *SQLiteStore) GetUnit(ctx context.Context, id types.ID) (*types.Unit, error) {
	var u types.Unit
	if err := s.get(ctx, unitsTable, id, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) ListUnits(ctx context.Context, f UnitFilter) ([]types.Unit, error) {
	var preds []*entsql.Predicate
	if f.TenantID != "" {
		preds = append(preds, entsql.EQ("tenant_id", f.TenantID.String()))
	}
	if f.PropertyID != "" {
		preds = append(preds, entsql.EQ("property_id", f.PropertyID.String()))
	}
	return list[types.Unit](ctx, s, unitsTable, preds)
}

func (s *SQLiteStore) UpsertProperty(ctx context.Context, p types.Property) error {
	return s.upsert(ctx, propertiesTable, p.ID, p, nil)
}

func (s *SQLiteStore) GetProperty(ctx context.Context, id types.ID) (*types.Property, error) {
	var p types.Property
	if err := s.get(ctx, propertiesTable, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) FetchProperty(ctx context.Context, id types.ID) (*types.Property, error) {
	p, err := s.GetProperty(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(p.Units) == 0 {
		if p.Units, err = s.ListUnits(ctx, UnitFilter{PropertyID: id}); err != nil {
			return nil, err
		}
	}
	return p, nil
}
