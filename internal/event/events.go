package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/rentroll/internal/types"
)

// Event types. These are the names subscribers and websocket clients see.
const (
	TypePaymentStatusUpdated = "payment_status_updated"
	TypePaymentRecorded      = "payment_recorded"
	TypeLeaseEnded           = "lease_ended"
	TypeLeaseUpdated         = "lease_updated"
)

// DomainEvent carries the canonical shape of every domain event.
type DomainEvent struct {
	ID               string            `json:"id"`
	EventType        string            `json:"event_type"`
	OccurredAt       time.Time         `json:"occurred_at"`
	AffectedEntities []types.SourceRef `json:"affected_entities"`
	Summary          string            `json:"summary"`
	Category         string            `json:"category"` // "lease", "payment"
	Payload          json.RawMessage   `json:"payload,omitempty"`
}

// RefersTo reports whether the event references the given entity.
func (e DomainEvent) RefersTo(entityType, entityID string) bool {
	for _, ref := range e.AffectedEntities {
		if ref.EntityType == entityType && ref.EntityID == entityID {
			return true
		}
	}
	return false
}

func newID() string { return uuid.New().String() }

// mustJSON encodes an event payload. Payloads are plain structs of strings
// and decimals, so a marshal error is a programming error.
func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic("event: encode payload: " + err.Error())
	}
	return b
}

func appendRef(refs []types.SourceRef, entityType string, id types.ID, role string) []types.SourceRef {
	if id == "" {
		return refs
	}
	return append(refs, types.SourceRef{EntityType: entityType, EntityID: id.String(), Role: role})
}

// ── Payment events ───────────────────────────────────────────────────────────

// PaymentStatusUpdatedPayload carries event-specific data for PaymentStatusUpdated.
type PaymentStatusUpdatedPayload struct {
	PaymentID types.ID            `json:"payment_id"`
	UnitID    types.ID            `json:"unit_id,omitempty"`
	Month     string              `json:"month,omitempty"`
	OldStatus types.PaymentStatus `json:"old_status,omitempty"`
	NewStatus types.PaymentStatus `json:"new_status"`
}

func NewPaymentStatusUpdated(p PaymentStatusUpdatedPayload) DomainEvent {
	var refs []types.SourceRef
	refs = appendRef(refs, "payment", p.PaymentID, "subject")
	refs = appendRef(refs, "unit", p.UnitID, "context")
	return DomainEvent{
		ID:               newID(),
		EventType:        TypePaymentStatusUpdated,
		OccurredAt:       time.Now(),
		AffectedEntities: refs,
		Summary:          fmt.Sprintf("Payment %s status changed to %s", p.PaymentID, p.NewStatus),
		Category:         "payment",
		Payload:          mustJSON(p),
	}
}

// PaymentRecordedPayload carries event-specific data for PaymentRecorded.
type PaymentRecordedPayload struct {
	PaymentID types.ID            `json:"payment_id"`
	UnitID    types.ID            `json:"unit_id,omitempty"`
	Month     string              `json:"month,omitempty"`
	Amount    string              `json:"amount"`
	Status    types.PaymentStatus `json:"status"`
}

func NewPaymentRecorded(p PaymentRecordedPayload) DomainEvent {
	var refs []types.SourceRef
	refs = appendRef(refs, "payment", p.PaymentID, "subject")
	refs = appendRef(refs, "unit", p.UnitID, "context")
	summary := fmt.Sprintf("Payment %s of %s recorded", p.PaymentID, p.Amount)
	if p.Month != "" {
		summary += " for " + p.Month
	}
	return DomainEvent{
		ID:               newID(),
		EventType:        TypePaymentRecorded,
		OccurredAt:       time.Now(),
		AffectedEntities: refs,
		Summary:          summary,
		Category:         "payment",
		Payload:          mustJSON(p),
	}
}

// ── Lease events ─────────────────────────────────────────────────────────────

// LeaseEndedPayload carries event-specific data for LeaseEnded.
type LeaseEndedPayload struct {
	LeaseID        types.ID          `json:"lease_id"`
	UnitID         types.ID          `json:"unit_id,omitempty"`
	TenantID       types.ID          `json:"tenant_id,omitempty"`
	Status         types.LeaseStatus `json:"status"`
	TerminatedDate string            `json:"terminated_date,omitempty"`
	MoveOutDate    string            `json:"move_out_date,omitempty"`
}

func NewLeaseEnded(p LeaseEndedPayload) DomainEvent {
	var refs []types.SourceRef
	refs = appendRef(refs, "lease", p.LeaseID, "subject")
	refs = appendRef(refs, "unit", p.UnitID, "target")
	refs = appendRef(refs, "tenant", p.TenantID, "related")
	return DomainEvent{
		ID:               newID(),
		EventType:        TypeLeaseEnded,
		OccurredAt:       time.Now(),
		AffectedEntities: refs,
		Summary:          fmt.Sprintf("Lease %s ended (%s)", p.LeaseID, p.Status),
		Category:         "lease",
		Payload:          mustJSON(p),
	}
}

// LeaseUpdatedPayload carries event-specific data for LeaseUpdated.
type LeaseUpdatedPayload struct {
	LeaseID     types.ID          `json:"lease_id"`
	UnitID      types.ID          `json:"unit_id,omitempty"`
	TenantID    types.ID          `json:"tenant_id,omitempty"`
	Status      types.LeaseStatus `json:"status,omitempty"`
	MonthlyRent string            `json:"monthly_rent"`
}

func NewLeaseUpdated(p LeaseUpdatedPayload) DomainEvent {
	var refs []types.SourceRef
	refs = appendRef(refs, "lease", p.LeaseID, "subject")
	refs = appendRef(refs, "unit", p.UnitID, "target")
	refs = appendRef(refs, "tenant", p.TenantID, "related")
	return DomainEvent{
		ID:               newID(),
		EventType:        TypeLeaseUpdated,
		OccurredAt:       time.Now(),
		AffectedEntities: refs,
		Summary:          fmt.Sprintf("Lease %s updated", p.LeaseID),
		Category:         "lease",
		Payload:          mustJSON(p),
	}
}
