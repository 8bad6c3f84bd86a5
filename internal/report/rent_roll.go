// Package report builds portfolio-level views over the derived rent schedules.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matthewbaird/rentroll/internal/occupancy"
	"github.com/matthewbaird/rentroll/internal/schedule"
	"github.com/matthewbaird/rentroll/internal/store"
	"github.com/matthewbaird/rentroll/internal/types"
)

// Row is one lease's obligation for the reported month.
type Row struct {
	LeaseID    types.ID       `json:"leaseId"`
	TenantID   types.ID       `json:"tenantId"`
	UnitID     types.ID       `json:"unitId"`
	UnitNumber string         `json:"unitNumber,omitempty"`
	PropertyID types.ID       `json:"propertyId,omitempty"`
	LeaseEnded bool           `json:"leaseEnded"`
	Entry      schedule.Entry `json:"entry"`
}

// Totals aggregates a rent roll. Collected counts paid payments at their
// recorded amount; Outstanding is the rent of every month not yet paid.
type Totals struct {
	Expected    decimal.Decimal `json:"expected"`
	Collected   decimal.Decimal `json:"collected"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Paid        int             `json:"paid"`
	Late        int             `json:"late"`
	Open        int             `json:"open"`
}

// RentRoll lists every lease with rent scheduled in Month.
type RentRoll struct {
	Month   string `json:"month"`
	AsOf    string `json:"asOf"`
	Rows    []Row  `json:"rows"`
	Totals  Totals `json:"totals"`
	Skipped int    `json:"skipped"` // leases whose dates could not be parsed
}

// Reporter reads the local store.
type Reporter struct {
	store  store.Store
	policy schedule.Policy
	loc    *time.Location
	logger *slog.Logger
}

func NewReporter(s store.Store, policy schedule.Policy, loc *time.Location, logger *slog.Logger) *Reporter {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{store: s, policy: policy, loc: loc, logger: logger}
}

// RentRoll builds the rent roll for month as seen at now. A lease whose dates
// cannot be parsed is logged and counted in Skipped rather than failing the roll.
func (r *Reporter) RentRoll(ctx context.Context, month schedule.MonthKey, now time.Time) (*RentRoll, error) {
	if month.IsZero() {
		return nil, errors.New("report: month required")
	}
	leases, err := r.store.ListLeases(ctx, store.LeaseFilter{})
	if err != nil {
		return nil, fmt.Errorf("report: list leases: %w", err)
	}
	payments, err := r.store.ListPayments(ctx, store.PaymentFilter{})
	if err != nil {
		return nil, fmt.Errorf("report: list payments: %w", err)
	}
	units, err := r.store.ListUnits(ctx, store.UnitFilter{})
	if err != nil {
		return nil, fmt.Errorf("report: list units: %w", err)
	}
	unitByID := make(map[types.ID]types.Unit, len(units))
	for _, u := range units {
		unitByID[u.ID] = u
	}

	roll := &RentRoll{
		Month: month.String(),
		AsOf:  schedule.DayOf(now, r.loc).Format("2006-01-02"),
		Rows:  []Row{},
		Totals: Totals{
			Expected:    decimal.Zero,
			Collected:   decimal.Zero,
			Outstanding: decimal.Zero,
		},
	}
	for i := range leases {
		l := &leases[i]
		entries, err := schedule.Generate(l, payments, schedule.Options{
			UnitID:   l.Unit,
			Now:      now,
			Location: r.loc,
			Policy:   r.policy,
		})
		if err != nil {
			r.logger.Warn("report: skipping lease", "lease_id", l.ID.String(), "error", err)
			roll.Skipped++
			continue
		}
		entry, ok := entryFor(entries, month)
		if !ok {
			continue
		}
		ended, err := occupancy.IsEnded(l, now, r.loc)
		if err != nil {
			r.logger.Warn("report: skipping lease", "lease_id", l.ID.String(), "error", err)
			roll.Skipped++
			continue
		}
		row := Row{
			LeaseID:    l.ID,
			TenantID:   l.Tenant,
			UnitID:     l.Unit,
			LeaseEnded: ended,
			Entry:      entry,
		}
		if u, ok := unitByID[l.Unit]; ok {
			row.UnitNumber = u.UnitNumber
			row.PropertyID = u.Property
		}
		roll.Rows = append(roll.Rows, row)
		roll.Totals.add(entry)
	}
	return roll, nil
}

func (t *Totals) add(e schedule.Entry) {
	t.Expected = t.Expected.Add(e.Amount)
	switch e.Status {
	case schedule.StatusPaid:
		t.Paid++
		if e.Payment != nil {
			t.Collected = t.Collected.Add(e.Payment.Amount)
		} else {
			t.Collected = t.Collected.Add(e.Amount)
		}
		return
	case schedule.StatusOverdue, schedule.StatusDue:
		t.Late++
	default:
		t.Open++
	}
	t.Outstanding = t.Outstanding.Add(e.Amount)
}

func entryFor(entries []schedule.Entry, month schedule.MonthKey) (schedule.Entry, bool) {
	for _, e := range entries {
		if e.Key == month {
			return e, true
		}
	}
	return schedule.Entry{}, false
}
