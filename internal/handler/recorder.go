package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/matthewbaird/rentroll/internal/cache"
	"github.com/matthewbaird/rentroll/internal/event"
	"github.com/matthewbaird/rentroll/internal/occupancy"
	"github.com/matthewbaird/rentroll/internal/schedule"
	"github.com/matthewbaird/rentroll/internal/store"
)

// Deps are the collaborators shared by the handlers.
type Deps struct {
	Store      store.Store
	Recorder   event.Recorder // optional
	Cache      *cache.Cache   // optional
	Classifier *occupancy.Classifier
	Policy     schedule.Policy
	Location   *time.Location
	Logger     *slog.Logger
	Now        func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Classifier == nil {
		d.Classifier = occupancy.NewClassifier(occupancy.Config{
			Properties: d.Store,
			Policy:     d.Policy,
			Location:   d.Location,
			Logger:     d.Logger,
		})
	}
	return d
}

// recordEvent invalidates cached derivations, then records evt if a recorder
// is configured. The bump lands before the event is published, so a client
// that refetches on the event reads the new state. Errors are logged but do
// not fail the request.
func (d Deps) recordEvent(ctx context.Context, evt event.DomainEvent) {
	d.invalidate(ctx)
	if d.Recorder == nil {
		return
	}
	if err := d.Recorder.Record(ctx, evt); err != nil {
		d.Logger.Error("event recording failed", "event_type", evt.EventType, "error", err)
	}
}

// invalidate bumps the cache version after a store write.
func (d Deps) invalidate(ctx context.Context) {
	if err := d.Cache.Bump(ctx); err != nil {
		d.Logger.Warn("cache bump failed", "error", err)
	}
}

// day is asOf's calendar day in the service location.
func (d Deps) day(asOf time.Time) time.Time {
	return schedule.DayOf(asOf, d.Location)
}

// cached serves dest from the cache under the key built from parts, running
// loader on a miss. Without a usable key the loader runs uncached.
func (d Deps) cached(ctx context.Context, parts []string, dest any, loader func(context.Context) (any, error)) error {
	key, err := d.Cache.BuildKey(ctx, parts...)
	if err != nil {
		d.Logger.Warn("cache unavailable", "error", err)
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dest)
	}
	return d.Cache.FetchJSON(ctx, key, dest, loader)
}
