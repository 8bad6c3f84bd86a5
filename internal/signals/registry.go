// Package signals classifies activity entries into weighted signals and
// aggregates them into a per-entity payment and tenancy health summary.
package signals

import "github.com/matthewbaird/rentroll/internal/event"

// WeightOrder maps signal weights to numeric severity (lower = more severe).
var WeightOrder = map[string]int{
	"critical": 1,
	"strong":   2,
	"moderate": 3,
	"weak":     4,
	"info":     5,
}

// Registration classifies one event type, optionally only when Condition
// holds against the event payload.
type Registration struct {
	ID              string           `json:"id"`
	EventType       string           `json:"event_type"`
	Condition       string           `json:"condition,omitempty"`
	Category        string           `json:"category"`
	Weight          string           `json:"weight"`
	Polarity        string           `json:"polarity"`
	Description     string           `json:"description"`
	EscalationRules []EscalationRule `json:"escalation_rules,omitempty"`
}

// CategoryRequirement is one leg of a cross-category escalation.
type CategoryRequirement struct {
	Category string `json:"category"`
	Polarity string `json:"polarity,omitempty"`
	MinCount int    `json:"min_count"`
}

// EscalationRule raises a pattern of signals to a higher weight.
type EscalationRule struct {
	ID                   string                `json:"id"`
	Description          string                `json:"description"`
	TriggerType          string                `json:"trigger_type"` // "count", "cross_category"
	SignalCategory       string                `json:"signal_category,omitempty"`
	SignalPolarity       string                `json:"signal_polarity,omitempty"`
	Count                int                   `json:"count,omitempty"`
	WithinDays           int                   `json:"within_days"`
	RequiredCategories   []CategoryRequirement `json:"required_categories,omitempty"`
	EscalatedWeight      string                `json:"escalated_weight"`
	EscalatedDescription string                `json:"escalated_description"`
	RecommendedAction    string                `json:"recommended_action,omitempty"`
}

// Registry holds every registration, in lookup order.
var Registry = []Registration{
	// === Payment ===
	{
		ID:          "payment_received",
		EventType:   event.TypePaymentRecorded,
		Condition:   "status == SUCCEEDED",
		Category:    "payment",
		Weight:      "info",
		Polarity:    "positive",
		Description: "Rent payment received",
	},
	{
		ID:          "payment_declined",
		EventType:   event.TypePaymentRecorded,
		Condition:   "status == FAILED",
		Category:    "payment",
		Weight:      "moderate",
		Polarity:    "negative",
		Description: "Rent payment declined at the gateway",
	},
	{
		ID:          "payment_submitted",
		EventType:   event.TypePaymentRecorded,
		Category:    "payment",
		Weight:      "info",
		Polarity:    "neutral",
		Description: "Rent payment submitted, awaiting settlement",
	},
	{
		ID:          "payment_failed",
		EventType:   event.TypePaymentStatusUpdated,
		Condition:   "new_status == FAILED",
		Category:    "payment",
		Weight:      "moderate",
		Polarity:    "negative",
		Description: "Rent payment failed",
		EscalationRules: []EscalationRule{
			{
				ID:                   "pay_failure_pattern",
				Description:          "Repeated failed payments",
				TriggerType:          "count",
				SignalCategory:       "payment",
				SignalPolarity:       "negative",
				Count:                3,
				WithinDays:           180,
				EscalatedWeight:      "strong",
				EscalatedDescription: "3+ failed payments in 6 months.",
				RecommendedAction:    "Reach out about the payment method. Offer a payment plan if appropriate.",
			},
			{
				ID:                   "pay_failure_acute",
				Description:          "Failed payments in quick succession",
				TriggerType:          "count",
				SignalCategory:       "payment",
				SignalPolarity:       "negative",
				Count:                2,
				WithinDays:           30,
				EscalatedWeight:      "critical",
				EscalatedDescription: "2 failed payments within 30 days.",
				RecommendedAction:    "Contact the tenant before the next due date.",
			},
		},
	},
	{
		ID:          "payment_settled",
		EventType:   event.TypePaymentStatusUpdated,
		Condition:   "new_status == SUCCEEDED",
		Category:    "payment",
		Weight:      "info",
		Polarity:    "positive",
		Description: "Rent payment settled",
	},
	{
		ID:          "payment_status_changed",
		EventType:   event.TypePaymentStatusUpdated,
		Category:    "payment",
		Weight:      "info",
		Polarity:    "neutral",
		Description: "Rent payment status changed",
	},

	// === Lease ===
	{
		ID:          "lease_terminated",
		EventType:   event.TypeLeaseEnded,
		Condition:   "status == TERMINATED",
		Category:    "lease",
		Weight:      "strong",
		Polarity:    "negative",
		Description: "Lease terminated before its end date",
	},
	{
		ID:          "lease_ended",
		EventType:   event.TypeLeaseEnded,
		Category:    "lease",
		Weight:      "moderate",
		Polarity:    "neutral",
		Description: "Lease ended",
	},
	{
		ID:          "lease_updated",
		EventType:   event.TypeLeaseUpdated,
		Category:    "lease",
		Weight:      "info",
		Polarity:    "neutral",
		Description: "Lease terms updated",
	},
}

// CrossCategoryRules are escalation rules that span payment and lease signals.
var CrossCategoryRules = []EscalationRule{
	{
		ID:          "exit_after_failures",
		Description: "Lease terminated after failed payments",
		TriggerType: "cross_category",
		RequiredCategories: []CategoryRequirement{
			{Category: "payment", Polarity: "negative", MinCount: 2},
			{Category: "lease", Polarity: "negative", MinCount: 1},
		},
		WithinDays:           90,
		EscalatedWeight:      "critical",
		EscalatedDescription: "Termination preceded by repeated payment failures. Likely unpaid balance.",
		RecommendedAction:    "Reconcile the outstanding balance against the security deposit.",
	},
}

var byEventType = func() map[string][]Registration {
	m := make(map[string][]Registration)
	for _, reg := range Registry {
		m[reg.EventType] = append(m[reg.EventType], reg)
	}
	return m
}()

// Lookup returns the registrations for an event type.
func Lookup(eventType string) []Registration {
	return byEventType[eventType]
}

// escalationRules returns every per-signal and cross-category rule.
func escalationRules() []EscalationRule {
	var rules []EscalationRule
	for _, reg := range Registry {
		rules = append(rules, reg.EscalationRules...)
	}
	return append(rules, CrossCategoryRules...)
}
