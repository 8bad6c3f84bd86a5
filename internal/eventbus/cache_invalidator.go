package eventbus

import (
	"context"

	"github.com/matthewbaird/rentroll/internal/event"
)

// Bumper invalidates every cached schedule at once.
type Bumper interface {
	Bump(ctx context.Context) error
}

// CacheInvalidator bumps the schedule cache whenever an event could change a
// derived schedule or occupancy split.
type CacheInvalidator struct {
	cache Bumper
}

func NewCacheInvalidator(cache Bumper) *CacheInvalidator {
	return &CacheInvalidator{cache: cache}
}

func (c *CacheInvalidator) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	switch evt.EventType {
	case event.TypePaymentStatusUpdated, event.TypePaymentRecorded,
		event.TypeLeaseEnded, event.TypeLeaseUpdated:
		return c.cache.Bump(ctx)
	}
	return nil
}
