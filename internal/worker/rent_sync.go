// Package worker contains the jobs that keep the local read model in step with
// the upstream backend.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/matthewbaird/rentroll/internal/event"
	"github.com/matthewbaird/rentroll/internal/store"
	"github.com/matthewbaird/rentroll/internal/types"
)

// Upstream is the system of record the sync pulls from.
type Upstream interface {
	ListLeases(ctx context.Context) ([]types.Lease, error)
	ListPayments(ctx context.Context) ([]types.Payment, error)
	ListUnits(ctx context.Context) ([]types.Unit, error)
	ListProperties(ctx context.Context) ([]types.Property, error)
}

// Stats summarises one sync run.
type Stats struct {
	Properties int `json:"properties"`
	Units      int `json:"units"`
	Leases     int `json:"leases"`
	Payments   int `json:"payments"`
	Events     int `json:"events"`
	Changed    int `json:"changed"` // new or modified units and properties
}

// Invalidator drops cached derivations after the store changes.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// ErrSyncInProgress is returned when Run is called while a run is active.
var ErrSyncInProgress = errors.New("worker: sync already running")

// RentSync copies the upstream snapshot into the store and records an event
// for every payment status change, new payment, new or updated lease and lease
// end. Unit and property changes carry no event and only invalidate the cache.
type RentSync struct {
	upstream Upstream
	store    store.Store
	recorder event.Recorder
	cache    Invalidator
	logger   *slog.Logger
	running  sync.Mutex
}

func NewRentSync(upstream Upstream, s store.Store, recorder event.Recorder, logger *slog.Logger) *RentSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &RentSync{upstream: upstream, store: s, recorder: recorder, logger: logger}
}

// SetInvalidator makes the sync bump c before every recorded event and after
// unit or property changes.
func (w *RentSync) SetInvalidator(c Invalidator) {
	w.cache = c
}

// Run performs one sync. Upstream and store failures abort the run; event
// recording failures are logged and the run continues.
func (w *RentSync) Run(ctx context.Context) (Stats, error) {
	if !w.running.TryLock() {
		return Stats{}, ErrSyncInProgress
	}
	defer w.running.Unlock()

	var stats Stats

	properties, err := w.upstream.ListProperties(ctx)
	if err != nil {
		return stats, fmt.Errorf("worker: fetch properties: %w", err)
	}
	for _, p := range properties {
		changed, err := w.syncProperty(ctx, p)
		if err != nil {
			return stats, err
		}
		stats.Properties++
		if changed {
			stats.Changed++
		}
	}

	units, err := w.upstream.ListUnits(ctx)
	if err != nil {
		return stats, fmt.Errorf("worker: fetch units: %w", err)
	}
	for _, u := range units {
		changed, err := w.syncUnit(ctx, u)
		if err != nil {
			return stats, err
		}
		stats.Units++
		if changed {
			stats.Changed++
		}
	}
	if stats.Changed > 0 {
		w.invalidate(ctx)
	}

	leases, err := w.upstream.ListLeases(ctx)
	if err != nil {
		return stats, fmt.Errorf("worker: fetch leases: %w", err)
	}
	for _, l := range leases {
		evt, err := w.syncLease(ctx, l)
		if err != nil {
			return stats, err
		}
		stats.Leases++
		stats.Events += w.record(ctx, evt)
	}

	payments, err := w.upstream.ListPayments(ctx)
	if err != nil {
		return stats, fmt.Errorf("worker: fetch payments: %w", err)
	}
	for _, p := range payments {
		evt, err := w.syncPayment(ctx, p)
		if err != nil {
			return stats, err
		}
		stats.Payments++
		stats.Events += w.record(ctx, evt)
	}

	w.logger.Info("worker: rent sync complete",
		"properties", stats.Properties, "units", stats.Units,
		"leases", stats.Leases, "payments", stats.Payments, "events", stats.Events)
	return stats, nil
}

// syncLease upserts l and returns the event its change warrants, if any.
func (w *RentSync) syncLease(ctx context.Context, l types.Lease) (*event.DomainEvent, error) {
	prev, err := w.store.GetLease(ctx, l.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err := w.store.UpsertLease(ctx, l); err != nil {
		return nil, err
	}
	if prev != nil && !prev.Status.IsEnded() && l.Status.IsEnded() {
		evt := event.NewLeaseEnded(event.LeaseEndedPayload{
			LeaseID:        l.ID,
			UnitID:         l.Unit,
			TenantID:       l.Tenant,
			Status:         l.Status,
			TerminatedDate: l.TerminatedDate,
			MoveOutDate:    l.MoveOutDate,
		})
		return &evt, nil
	}
	if prev == nil || !sameJSON(*prev, l) {
		evt := event.NewLeaseUpdated(event.LeaseUpdatedPayload{
			LeaseID:     l.ID,
			UnitID:      l.Unit,
			TenantID:    l.Tenant,
			Status:      l.Status,
			MonthlyRent: l.MonthlyRent.String(),
		})
		return &evt, nil
	}
	return nil, nil
}

// syncPayment upserts p and returns the event its change warrants, if any.
func (w *RentSync) syncPayment(ctx context.Context, p types.Payment) (*event.DomainEvent, error) {
	prev, err := w.store.GetPayment(ctx, p.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err := w.store.UpsertPayment(ctx, p); err != nil {
		return nil, err
	}
	switch {
	case prev == nil:
		evt := event.NewPaymentRecorded(event.PaymentRecordedPayload{
			PaymentID: p.ID,
			UnitID:    p.Metadata.UnitID,
			Month:     p.Metadata.Month,
			Amount:    p.Amount.String(),
			Status:    p.Status,
		})
		return &evt, nil
	case prev.Status != p.Status:
		evt := event.NewPaymentStatusUpdated(event.PaymentStatusUpdatedPayload{
			PaymentID: p.ID,
			UnitID:    p.Metadata.UnitID,
			Month:     p.Metadata.Month,
			OldStatus: prev.Status,
			NewStatus: p.Status,
		})
		return &evt, nil
	}
	return nil, nil
}

// syncProperty upserts p and reports whether it is new or changed.
func (w *RentSync) syncProperty(ctx context.Context, p types.Property) (bool, error) {
	prev, err := w.store.GetProperty(ctx, p.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	if err := w.store.UpsertProperty(ctx, p); err != nil {
		return false, err
	}
	return prev == nil || !sameJSON(*prev, p), nil
}

// syncUnit upserts u and reports whether it is new or changed.
func (w *RentSync) syncUnit(ctx context.Context, u types.Unit) (bool, error) {
	prev, err := w.store.GetUnit(ctx, u.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	if err := w.store.UpsertUnit(ctx, u); err != nil {
		return false, err
	}
	return prev == nil || !sameJSON(*prev, u), nil
}

func (w *RentSync) invalidate(ctx context.Context) {
	if w.cache == nil {
		return
	}
	if err := w.cache.Bump(ctx); err != nil {
		w.logger.Warn("worker: cache bump failed", "error", err)
	}
}

// record bumps the cache and then records evt, so subscribers that refetch on
// the event never read a stale cached schedule.
func (w *RentSync) record(ctx context.Context, evt *event.DomainEvent) int {
	if evt == nil {
		return 0
	}
	w.invalidate(ctx)
	if w.recorder == nil {
		return 0
	}
	if err := w.recorder.Record(ctx, *evt); err != nil {
		w.logger.Error("worker: record event failed", "event_type", evt.EventType, "error", err)
		return 0
	}
	return 1
}

// sameJSON compares the wire forms, so 1200 and 1200.00 rent are equal.
func sameJSON(a, b any) bool {
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ra, rb)
}
