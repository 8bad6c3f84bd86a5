package eventbus

import (
	"context"
	"log/slog"

	"github.com/matthewbaird/rentroll/internal/event"
)

// LogConsumer logs all domain events for observability.
type LogConsumer struct {
	logger *slog.Logger
}

func NewLogConsumer(logger *slog.Logger) *LogConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogConsumer{logger: logger}
}

func (c *LogConsumer) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	entities := make([]string, len(evt.AffectedEntities))
	for i, ref := range evt.AffectedEntities {
		entities[i] = ref.EntityType + ":" + ref.EntityID
	}
	c.logger.InfoContext(ctx, "event",
		"event_type", evt.EventType,
		"category", evt.Category,
		"summary", evt.Summary,
		"entities", entities)
	return nil
}
