// Package types provides the wire shapes shared between the rent service and the
// upstream property-management backend. Dates stay as the strings the backend sends;
// the schedule package owns parsing them.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ID is an entity identifier. The backend emits ids as strings, numbers, or
// populated sub-documents carrying "_id"; all of them decode to the string form.
type ID string

// UnmarshalJSON accepts a string, a number, or an object with an "_id" (or "id") key.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
	case '{':
		var doc struct {
			MongoID ID `json:"_id"`
			ID      ID `json:"id"`
		}
		if err := json.Unmarshal(b, &doc); err != nil {
			return err
		}
		if doc.MongoID != "" {
			*id = doc.MongoID
		} else {
			*id = doc.ID
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		var n json.Number
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("id: unsupported value %s", b)
		}
		*id = ID(n.String())
	}
	return nil
}

func (id ID) String() string { return string(id) }

// LeaseStatus is the lifecycle state reported by the backend.
type LeaseStatus string

const (
	LeaseActive     LeaseStatus = "ACTIVE"
	LeaseEnded      LeaseStatus = "ENDED"
	LeaseTerminated LeaseStatus = "TERMINATED"
	LeaseInactive   LeaseStatus = "INACTIVE"
)

// IsEnded reports whether the status alone marks the lease as over.
func (s LeaseStatus) IsEnded() bool {
	switch s {
	case LeaseEnded, LeaseTerminated, LeaseInactive:
		return true
	}
	return false
}

// Lease is a rental agreement between a tenant and a unit.
type Lease struct {
	ID              ID               `json:"_id"`
	Unit            ID               `json:"unit"`
	Tenant          ID               `json:"tenant"`
	LeaseStartDate  string           `json:"leaseStartDate"`
	LeaseEndDate    string           `json:"leaseEndDate"`
	MonthlyRent     decimal.Decimal  `json:"monthlyRent"`
	SecurityDeposit *decimal.Decimal `json:"securityDeposit,omitempty"`
	Status          LeaseStatus      `json:"status,omitempty"`
	TerminatedDate  string           `json:"terminatedDate,omitempty"`
	MoveOutDate     string           `json:"moveOutDate,omitempty"`
	AgreementNumber string           `json:"agreementNumber,omitempty"`
	Documents       json.RawMessage  `json:"documents,omitempty"`
}

// PaymentStatus is the gateway outcome of a rent payment.
type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "SUCCEEDED"
	PaymentPending   PaymentStatus = "PENDING"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Valid reports whether s is one of the known payment statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentSucceeded, PaymentPending, PaymentFailed:
		return true
	}
	return false
}

// PaymentMetadata links a payment to the rent month and unit it settles.
type PaymentMetadata struct {
	Month      string `json:"month,omitempty"` // "January 2024"
	UnitID     ID     `json:"unitId,omitempty"`
	DueDate    string `json:"dueDate,omitempty"`
	PropertyID ID     `json:"propertyId,omitempty"`
}

// Payment is a rent payment attempt.
type Payment struct {
	ID        ID              `json:"_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    PaymentStatus   `json:"status"`
	Method    string          `json:"method,omitempty"`
	PaidDate  string          `json:"paidDate,omitempty"`
	CreatedAt string          `json:"createdAt,omitempty"`
	Metadata  PaymentMetadata `json:"metadata"`
}

// Unit is a rentable space inside a property.
type Unit struct {
	ID         ID               `json:"_id"`
	Property   ID               `json:"property,omitempty"`
	UnitNumber string           `json:"unitNumber,omitempty"`
	Tenant     ID               `json:"tenant,omitempty"` // currently assigned tenant
	Rent       *decimal.Decimal `json:"rent,omitempty"`
	Status     string           `json:"status,omitempty"`
}

// Property groups units under one address.
type Property struct {
	ID      ID     `json:"_id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Owner   ID     `json:"owner,omitempty"`
	Units   []Unit `json:"units,omitempty"`
}

// FindUnit returns the property's unit with the given id, or nil.
func (p *Property) FindUnit(id ID) *Unit {
	if p == nil {
		return nil
	}
	for i := range p.Units {
		if p.Units[i].ID == id {
			return &p.Units[i]
		}
	}
	return nil
}

// SourceRef identifies an entity referenced by a domain event.
type SourceRef struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Role       string `json:"role"` // "subject", "target", "related", "context"
}

// ActivityEntry is a per-entity index entry over the domain event log.
// One event produces one entry for every entity it references.
type ActivityEntry struct {
	EventID           string          `json:"event_id"`
	EventType         string          `json:"event_type"`
	OccurredAt        time.Time       `json:"occurred_at"`
	IndexedEntityType string          `json:"indexed_entity_type"`
	IndexedEntityID   string          `json:"indexed_entity_id"`
	EntityRole        string          `json:"entity_role"`
	SourceRefs        []SourceRef     `json:"source_refs"`
	Summary           string          `json:"summary"`
	Category          string          `json:"category"` // "lease", "payment"
	Payload           json.RawMessage `json:"payload"`
}
