package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/matthewbaird/rentroll/internal/event"
)

// Fanout copies every event to each attached listener, such as a websocket
// client. A listener that falls behind loses events rather than stalling the bus.
type Fanout struct {
	mu        sync.Mutex
	listeners map[int]chan event.DomainEvent
	next      int
	bufSize   int
	logger    *slog.Logger
}

func NewFanout(bufSize int, logger *slog.Logger) *Fanout {
	if bufSize < 1 {
		bufSize = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{
		listeners: make(map[int]chan event.DomainEvent),
		bufSize:   bufSize,
		logger:    logger,
	}
}

// Listen attaches a listener. The returned cancel func detaches it and closes
// the channel; it is safe to call more than once.
func (f *Fanout) Listen() (<-chan event.DomainEvent, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	ch := make(chan event.DomainEvent, f.bufSize)
	f.listeners[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.listeners, id)
			close(ch)
		})
	}
}

// Len returns the number of attached listeners.
func (f *Fanout) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *Fanout) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.listeners {
		select {
		case ch <- evt:
		default:
			f.logger.Warn("eventbus: listener behind, dropping event", "listener", id, "event_type", evt.EventType)
		}
	}
	return nil
}
