package store

import (
	"context"
	"sync"

	"github.com/matthewbaird/rentroll/internal/types"
)

// MemoryStore implements Store with in-memory maps.
// Intended for demos and testing; no database required.
type MemoryStore struct {
	mu         sync.RWMutex
	leases     ordered[types.Lease]
	payments   ordered[types.Payment]
	units      ordered[types.Unit]
	properties ordered[types.Property]
}

// ordered is a map that remembers first-insertion order.
type ordered[T any] struct {
	order []types.ID
	items map[types.ID]T
}

func (o *ordered[T]) put(id types.ID, v T) {
	if o.items == nil {
		o.items = make(map[types.ID]T)
	}
	if _, ok := o.items[id]; !ok {
		o.order = append(o.order, id)
	}
	o.items[id] = v
}

func (o *ordered[T]) get(id types.ID) (T, bool) {
	v, ok := o.items[id]
	return v, ok
}

func (o *ordered[T]) each(fn func(T)) {
	for _, id := range o.order {
		fn(o.items[id])
	}
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) UpsertLease(_ context.Context, l types.Lease) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leases.put(l.ID, l)
	return nil
}

func (s *MemoryStore) GetLease(_ context.Context, id types.ID) (*types.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leases.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (s *MemoryStore) ListLeases(_ context.Context, f LeaseFilter) ([]types.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []types.Lease{}
	s.leases.each(func(l types.Lease) {
		if matchLease(&l, f) {
			out = append(out, l)
		}
	})
	return out, nil
}

func (s *MemoryStore) UpsertPayment(_ context.Context, p types.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments.put(p.ID, p)
	return nil
}

func (s *MemoryStore) GetPayment(_ context.Context, id types.ID) (*types.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListPayments(_ context.Context, f PaymentFilter) ([]types.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []types.Payment{}
	s.payments.each(func(p types.Payment) {
		if matchPayment(&p, f) {
			out = append(out, p)
		}
	})
	return out, nil
}

func (s *MemoryStore) UpsertUnit(_ context.Context, u types.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units.put(u.ID, u)
	return nil
}

func (s *MemoryStore) GetUnit(_ context.Context, id types.ID) (*types.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) ListUnits(_ context.Context, f UnitFilter) ([]types.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []types.Unit{}
	s.units.each(func(u types.Unit) {
		if matchUnit(&u, f) {
			out = append(out, u)
		}
	})
	return out, nil
}

func (s *MemoryStore) UpsertProperty(_ context.Context, p types.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties.put(p.ID, p)
	return nil
}

func (s *MemoryStore) GetProperty(_ context.Context, id types.ID) (*types.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) FetchProperty(ctx context.Context, id types.ID) (*types.Property, error) {
	p, err := s.GetProperty(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(p.Units) == 0 {
		units, err := s.ListUnits(ctx, UnitFilter{PropertyID: id})
		if err != nil {
			return nil, err
		}
		p.Units = units
	}
	return p, nil
}
