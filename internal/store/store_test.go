package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/rentroll/internal/types"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is its own database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := NewSQLiteStore(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": newSQLiteStore(t),
	}
}

func TestStore_Leases(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.UpsertLease(ctx, types.Lease{ID: "l2", Tenant: "t1", Unit: "u2", MonthlyRent: decimal.NewFromInt(900)}))
			require.NoError(t, s.UpsertLease(ctx, types.Lease{ID: "l1", Tenant: "t1", Unit: "u1", MonthlyRent: decimal.NewFromInt(1000)}))
			require.NoError(t, s.UpsertLease(ctx, types.Lease{ID: "l3", Tenant: "t2", Unit: "u1"}))

			got, err := s.GetLease(ctx, "l1")
			require.NoError(t, err)
			assert.True(t, decimal.NewFromInt(1000).Equal(got.MonthlyRent))

			_, err = s.GetLease(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			byTenant, err := s.ListLeases(ctx, LeaseFilter{TenantID: "t1"})
			require.NoError(t, err)
			require.Len(t, byTenant, 2)
			assert.Equal(t, types.ID("l2"), byTenant[0].ID, "first-insertion order")

			byUnit, err := s.ListLeases(ctx, LeaseFilter{UnitID: "u1"})
			require.NoError(t, err)
			assert.Len(t, byUnit, 2)

			// Updating keeps the original position and refreshes the key columns.
			require.NoError(t, s.UpsertLease(ctx, types.Lease{ID: "l2", Tenant: "t2", Unit: "u2", Status: types.LeaseEnded}))
			byTenant, err = s.ListLeases(ctx, LeaseFilter{TenantID: "t2"})
			require.NoError(t, err)
			require.Len(t, byTenant, 2)
			assert.Equal(t, types.ID("l2"), byTenant[0].ID)
			assert.Equal(t, types.LeaseEnded, byTenant[0].Status)
		})
	}
}

func TestStore_Payments(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, p := range []types.Payment{
				{ID: "p1", Status: types.PaymentSucceeded, Metadata: types.PaymentMetadata{UnitID: "u1", Month: "January 2024"}},
				{ID: "p2", Status: types.PaymentPending, Metadata: types.PaymentMetadata{UnitID: "u2"}},
				{ID: "p3", Status: types.PaymentFailed, Metadata: types.PaymentMetadata{UnitID: "u3"}},
			} {
				require.NoError(t, s.UpsertPayment(ctx, p))
			}

			all, err := s.ListPayments(ctx, PaymentFilter{})
			require.NoError(t, err)
			assert.Len(t, all, 3)

			some, err := s.ListPayments(ctx, PaymentFilter{UnitIDs: []types.ID{"u1", "u3"}})
			require.NoError(t, err)
			require.Len(t, some, 2)
			assert.Equal(t, types.ID("p1"), some[0].ID)
			assert.Equal(t, "January 2024", some[0].Metadata.Month)

			p, err := s.GetPayment(ctx, "p2")
			require.NoError(t, err)
			assert.Equal(t, types.PaymentPending, p.Status)
		})
	}
}

func TestStore_UnitsAndProperties(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.UpsertProperty(ctx, types.Property{ID: "prop-1", Name: "Maple Court"}))
			require.NoError(t, s.UpsertUnit(ctx, types.Unit{ID: "u1", Property: "prop-1", Tenant: "t1", UnitNumber: "1A"}))
			require.NoError(t, s.UpsertUnit(ctx, types.Unit{ID: "u2", Property: "prop-1", UnitNumber: "1B"}))
			require.NoError(t, s.UpsertUnit(ctx, types.Unit{ID: "u3", Property: "prop-2", Tenant: "t1"}))

			mine, err := s.ListUnits(ctx, UnitFilter{TenantID: "t1"})
			require.NoError(t, err)
			assert.Len(t, mine, 2)

			u, err := s.GetUnit(ctx, "u2")
			require.NoError(t, err)
			assert.Equal(t, "1B", u.UnitNumber)

			prop, err := s.FetchProperty(ctx, "prop-1")
			require.NoError(t, err)
			assert.Equal(t, "Maple Court", prop.Name)
			require.Len(t, prop.Units, 2)
			assert.Equal(t, "1A", prop.FindUnit("u1").UnitNumber)

			_, err = s.FetchProperty(ctx, "prop-2")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSQLiteStore_MigrateIsIdempotent(t *testing.T) {
	s := newSQLiteStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}
