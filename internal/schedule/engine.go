// Package schedule derives the month-by-month rent obligations of a lease and
// matches them against recorded payments.
package schedule

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/matthewbaird/rentroll/internal/types"
)

// Options controls a single Generate call.
type Options struct {
	// UnitID, when set, restricts payments to those whose metadata.unitId matches.
	UnitID types.ID
	// Now is the reference instant for overdue and current-month checks.
	// Zero means time.Now().
	Now time.Time
	// Location interprets dates without an offset and defines day boundaries.
	// Nil means UTC.
	Location *time.Location
	Policy   Policy
}

// Entry is one month of the derived schedule.
type Entry struct {
	Month          string          `json:"month"`
	Key            MonthKey        `json:"-"`
	DueDate        time.Time       `json:"dueDate"`
	Amount         decimal.Decimal `json:"amount"`
	Status         Status          `json:"status"`
	IsCurrentMonth bool            `json:"isCurrentMonth"`
	Payment        *types.Payment  `json:"payment,omitempty"`
}

// Generate builds the rent schedule for lease. A nil lease yields an empty schedule.
// Unparseable lease dates, and payment due dates consulted by DueRulePaymentDueDate,
// are returned as *InvalidDateError.
//
// Entries start at leaseStartDate and step one calendar month at a time while the
// date is on or before leaseEndDate, up to Policy.MaxMonths entries. Every entry
// carries the full monthly rent; partial months are not prorated.
func Generate(lease *types.Lease, payments []types.Payment, opts Options) ([]Entry, error) {
	if lease == nil {
		return []Entry{}, nil
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	policy := opts.Policy.normalized()
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	today := DayOf(now, loc)

	start, err := ParseDate("leaseStartDate", lease.LeaseStartDate, loc)
	if err != nil {
		return nil, err
	}
	end, err := ParseDate("leaseEndDate", lease.LeaseEndDate, loc)
	if err != nil {
		return nil, err
	}

	byMonth := indexPayments(payments, opts.UnitID)

	entries := make([]Entry, 0, policy.MaxMonths)
	for i := 0; i < policy.MaxMonths; i++ {
		due := addMonths(start, i)
		if due.After(end) {
			break
		}
		key := MonthOf(due)
		payment := byMonth[key]
		status, err := deriveStatus(policy.DueRule, payment, due, today, loc)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			Month:          key.String(),
			Key:            key,
			DueDate:        due,
			Amount:         lease.MonthlyRent,
			Status:         status,
			IsCurrentMonth: key == MonthOf(today),
			Payment:        payment,
		})
	}
	return entries, nil
}

// indexPayments maps each payment to the month it settles. Payments without a
// parseable metadata.month are left out; a later payment for the same month
// replaces an earlier one.
func indexPayments(payments []types.Payment, unitID types.ID) map[MonthKey]*types.Payment {
	byMonth := make(map[MonthKey]*types.Payment, len(payments))
	for i := range payments {
		p := &payments[i]
		if unitID != "" && p.Metadata.UnitID != unitID {
			continue
		}
		if p.Metadata.Month == "" {
			continue
		}
		key, err := ParseMonthKey(p.Metadata.Month)
		if err != nil {
			continue
		}
		byMonth[key] = p
	}
	return byMonth
}

func deriveStatus(rule DueRule, payment *types.Payment, due, today time.Time, loc *time.Location) (Status, error) {
	overdue := due.Before(today)
	if rule == DueRulePaymentDueDate {
		return paymentDueDateStatus(payment, due, today, overdue, loc)
	}
	return scheduleDateStatus(payment, overdue), nil
}

func scheduleDateStatus(payment *types.Payment, overdue bool) Status {
	if payment != nil {
		switch payment.Status {
		case types.PaymentSucceeded:
			return StatusPaid
		case types.PaymentFailed:
			return StatusFailed
		default:
			if overdue {
				return StatusOverdue
			}
			return StatusPending
		}
	}
	if overdue {
		return StatusOverdue
	}
	return StatusUpcoming
}

func paymentDueDateStatus(payment *types.Payment, due, today time.Time, overdue bool, loc *time.Location) (Status, error) {
	if payment == nil {
		if overdue {
			return StatusDue, nil
		}
		return StatusUpcoming, nil
	}
	if payment.Status == types.PaymentSucceeded {
		return StatusPaid, nil
	}
	dueAt := due
	switch {
	case payment.Metadata.DueDate != "":
		t, err := ParseDate("metadata.dueDate", payment.Metadata.DueDate, loc)
		if err != nil {
			return "", err
		}
		dueAt = t
	case payment.CreatedAt != "":
		t, err := ParseDate("createdAt", payment.CreatedAt, loc)
		if err != nil {
			return "", err
		}
		dueAt = t
	}
	if today.After(dueAt) {
		return StatusDue, nil
	}
	return StatusPending, nil
}
