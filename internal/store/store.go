// Package store keeps a local read model of the leases, payments, units and
// properties mirrored from the upstream backend.
package store

import (
	"context"
	"errors"

	"github.com/matthewbaird/rentroll/internal/types"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// LeaseFilter narrows ListLeases. Zero fields match everything.
type LeaseFilter struct {
	TenantID types.ID
	UnitID   types.ID
}

// PaymentFilter narrows ListPayments. An empty UnitIDs matches every payment.
type PaymentFilter struct {
	UnitIDs []types.ID
}

// UnitFilter narrows ListUnits. Zero fields match everything.
type UnitFilter struct {
	TenantID   types.ID
	PropertyID types.ID
}

// Store is the interface for reading and writing the read model.
// List results come back in first-insertion order.
type Store interface {
	UpsertLease(ctx context.Context, l types.Lease) error
	GetLease(ctx context.Context, id types.ID) (*types.Lease, error)
	ListLeases(ctx context.Context, f LeaseFilter) ([]types.Lease, error)

	UpsertPayment(ctx context.Context, p types.Payment) error
	GetPayment(ctx context.Context, id types.ID) (*types.Payment, error)
	ListPayments(ctx context.Context, f PaymentFilter) ([]types.Payment, error)

	UpsertUnit(ctx context.Context, u types.Unit) error
	GetUnit(ctx context.Context, id types.ID) (*types.Unit, error)
	ListUnits(ctx context.Context, f UnitFilter) ([]types.Unit, error)

	UpsertProperty(ctx context.Context, p types.Property) error
	GetProperty(ctx context.Context, id types.ID) (*types.Property, error)

	// FetchProperty returns the property with its units populated from the
	// unit table when the stored document carries none.
	FetchProperty(ctx context.Context, id types.ID) (*types.Property, error)
}

func matchLease(l *types.Lease, f LeaseFilter) bool {
	if f.TenantID != "" && l.Tenant != f.TenantID {
		return false
	}
	if f.UnitID != "" && l.Unit != f.UnitID {
		return false
	}
	return true
}

func matchUnit(u *types.Unit, f UnitFilter) bool {
	if f.TenantID != "" && u.Tenant != f.TenantID {
		return false
	}
	if f.PropertyID != "" && u.Property != f.PropertyID {
		return false
	}
	return true
}

func matchPayment(p *types.Payment, f PaymentFilter) bool {
	if len(f.UnitIDs) == 0 {
		return true
	}
	for _, id := range f.UnitIDs {
		if p.Metadata.UnitID == id {
			return true
		}
	}
	return false
}
