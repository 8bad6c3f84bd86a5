package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/rentroll/internal/types"
)

type fakeWriter struct {
	entries []types.ActivityEntry
	err     error
}

func (w *fakeWriter) WriteEntries(_ context.Context, entries []types.ActivityEntry) error {
	if w.err != nil {
		return w.err
	}
	w.entries = append(w.entries, entries...)
	return nil
}

type fakePublisher struct{ events []DomainEvent }

func (p *fakePublisher) Publish(_ context.Context, evt DomainEvent) {
	p.events = append(p.events, evt)
}

func TestActivityRecorder_FansOutAndPublishes(t *testing.T) {
	w := &fakeWriter{}
	pub := &fakePublisher{}
	r := NewActivityRecorder(w)
	r.SetPublisher(pub)

	evt := NewLeaseEnded(LeaseEndedPayload{LeaseID: "l1", UnitID: "u1", TenantID: "t1", Status: types.LeaseTerminated})
	require.NoError(t, r.Record(context.Background(), evt))

	require.Len(t, w.entries, 3)
	assert.Equal(t, "lease", w.entries[0].IndexedEntityType)
	assert.Equal(t, "subject", w.entries[0].EntityRole)
	assert.Equal(t, "unit", w.entries[1].IndexedEntityType)
	assert.Equal(t, "tenant", w.entries[2].IndexedEntityType)
	for _, e := range w.entries {
		assert.Equal(t, evt.ID, e.EventID)
		assert.Equal(t, TypeLeaseEnded, e.EventType)
	}
	require.Len(t, pub.events, 1)
	assert.Equal(t, evt.ID, pub.events[0].ID)
}

func TestActivityRecorder_WriteFailureSkipsPublish(t *testing.T) {
	pub := &fakePublisher{}
	r := NewActivityRecorder(&fakeWriter{err: errors.New("disk full")})
	r.SetPublisher(pub)

	err := r.Record(context.Background(), NewPaymentStatusUpdated(PaymentStatusUpdatedPayload{PaymentID: "p1", NewStatus: types.PaymentFailed}))
	assert.Error(t, err)
	assert.Empty(t, pub.events)
}

func TestEventsSkipEmptyReferences(t *testing.T) {
	evt := NewPaymentRecorded(PaymentRecordedPayload{PaymentID: "p1", Amount: "1200", Month: "March 2024"})
	require.Len(t, evt.AffectedEntities, 1)
	assert.True(t, evt.RefersTo("payment", "p1"))
	assert.False(t, evt.RefersTo("unit", ""))
	assert.Equal(t, "Payment p1 of 1200 recorded for March 2024", evt.Summary)
	assert.NotEmpty(t, evt.ID)
}

func TestMustJSONPanicsOnUnencodablePayload(t *testing.T) {
	assert.Panics(t, func() { mustJSON(make(chan int)) })
	assert.JSONEq(t, `{"a":1}`, string(mustJSON(map[string]int{"a": 1})))
}
