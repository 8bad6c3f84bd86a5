// Package event provides domain event recording for command handlers and the
// sync worker. Events are fanned out as ActivityEntry records via the
// activity.Store interface, then published to the in-process event bus.
package event

import (
	"context"
	"fmt"

	"github.com/matthewbaird/rentroll/internal/types"
)

// EntryWriter persists activity entries.
type EntryWriter interface {
	WriteEntries(ctx context.Context, entries []types.ActivityEntry) error
}

// Recorder writes domain events to the activity store.
type Recorder interface {
	Record(ctx context.Context, evt DomainEvent) error
}

// Publisher sends domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// ActivityRecorder implements Recorder by fanning out a DomainEvent into
// one ActivityEntry per affected entity, then writing via the store.
// If a Publisher is set, the event is also published after the write succeeds.
type ActivityRecorder struct {
	store EntryWriter
	bus   Publisher
}

// NewActivityRecorder creates a new ActivityRecorder backed by the given store.
func NewActivityRecorder(store EntryWriter) *ActivityRecorder {
	return &ActivityRecorder{store: store}
}

// SetPublisher attaches an event bus. Events are published after store writes.
func (r *ActivityRecorder) SetPublisher(p Publisher) {
	r.bus = p
}

// Entries fans evt out into one activity entry per affected entity.
func Entries(evt DomainEvent) []types.ActivityEntry {
	entries := make([]types.ActivityEntry, 0, len(evt.AffectedEntities))
	for _, ref := range evt.AffectedEntities {
		entries = append(entries, types.ActivityEntry{
			EventID:           evt.ID,
			EventType:         evt.EventType,
			OccurredAt:        evt.OccurredAt,
			IndexedEntityType: ref.EntityType,
			IndexedEntityID:   ref.EntityID,
			EntityRole:        ref.Role,
			SourceRefs:        evt.AffectedEntities,
			Summary:           evt.Summary,
			Category:          evt.Category,
			Payload:           evt.Payload,
		})
	}
	return entries
}

// Record writes evt's activity entries and publishes it.
func (r *ActivityRecorder) Record(ctx context.Context, evt DomainEvent) error {
	if r.store != nil {
		if err := r.store.WriteEntries(ctx, Entries(evt)); err != nil {
			return fmt.Errorf("event: record %s: %w", evt.EventType, err)
		}
	}
	if r.bus != nil {
		r.bus.Publish(ctx, evt)
	}
	return nil
}
