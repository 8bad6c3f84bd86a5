package schedule

import "fmt"

// Status is the derived state of one schedule entry.
type Status string

const (
	StatusPaid     Status = "paid"
	StatusPending  Status = "pending"
	StatusOverdue  Status = "overdue"
	StatusFailed   Status = "failed"
	StatusDue      Status = "due"
	StatusUpcoming Status = "upcoming"
)

// DueRule selects how an unpaid or unsettled month is judged late.
type DueRule string

const (
	// DueRuleScheduleDate compares the month's scheduled date with today and keeps
	// failed payments visible as failed.
	DueRuleScheduleDate DueRule = "overdue_by_date"
	// DueRulePaymentDueDate compares today with the payment's metadata.dueDate
	// (falling back to createdAt) and reports due/pending.
	DueRulePaymentDueDate DueRule = "metadata_due_date"
)

// DefaultMaxMonths is the display window applied when a policy leaves it unset.
const DefaultMaxMonths = 12

// ParseDueRule validates a rule name. Empty input selects the default rule.
func ParseDueRule(s string) (DueRule, error) {
	switch DueRule(s) {
	case "":
		return DueRuleScheduleDate, nil
	case DueRuleScheduleDate, DueRulePaymentDueDate:
		return DueRule(s), nil
	}
	return "", fmt.Errorf("schedule: unknown due rule %q", s)
}

// Statuses lists every status the rule can assign.
func (r DueRule) Statuses() []Status {
	if r == DueRulePaymentDueDate {
		return []Status{StatusPaid, StatusDue, StatusPending, StatusUpcoming}
	}
	return []Status{StatusPaid, StatusPending, StatusOverdue, StatusFailed, StatusUpcoming}
}

// Policy configures schedule derivation.
type Policy struct {
	DueRule   DueRule
	MaxMonths int
}

// DefaultPolicy returns the schedule-date rule with a twelve month window.
func DefaultPolicy() Policy {
	return Policy{DueRule: DueRuleScheduleDate, MaxMonths: DefaultMaxMonths}
}

func (p Policy) normalized() Policy {
	if p.DueRule == "" {
		p.DueRule = DueRuleScheduleDate
	}
	if p.MaxMonths <= 0 {
		p.MaxMonths = DefaultMaxMonths
	}
	return p
}
