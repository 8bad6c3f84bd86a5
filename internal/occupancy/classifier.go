// Package occupancy splits a tenant's lease-unit associations into current and
// previous occupancy and assembles the tenant's ended-lease history.
package occupancy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/matthewbaird/rentroll/internal/schedule"
	"github.com/matthewbaird/rentroll/internal/types"
)

// PropertyFetcher resolves a property and its units from the system of record.
type PropertyFetcher interface {
	FetchProperty(ctx context.Context, id types.ID) (*types.Property, error)
}

// LeaseSelection names the rule that picks one lease when a tenant holds several
// leases on the same unit.
type LeaseSelection string

const (
	// SelectMostRecent picks the lease with the latest leaseStartDate. Ties keep
	// the lease that appears first in the input.
	SelectMostRecent LeaseSelection = "most_recent"
	// SelectFirstMatch picks the first lease in input order, regardless of dates.
	SelectFirstMatch LeaseSelection = "first_match"
)

// ParseLeaseSelection validates a rule name. Empty input selects SelectMostRecent.
func ParseLeaseSelection(s string) (LeaseSelection, error) {
	switch LeaseSelection(s) {
	case "":
		return SelectMostRecent, nil
	case SelectMostRecent, SelectFirstMatch:
		return LeaseSelection(s), nil
	}
	return "", fmt.Errorf("occupancy: unknown lease selection %q", s)
}

// Config wires a Classifier.
type Config struct {
	Properties PropertyFetcher // optional; without it history carries no property
	Policy     schedule.Policy
	Selection  LeaseSelection
	Location   *time.Location
	Logger     *slog.Logger
}

// Classifier partitions tenant occupancy. It holds no mutable state and is safe
// for concurrent use.
type Classifier struct {
	properties PropertyFetcher
	policy     schedule.Policy
	selection  LeaseSelection
	loc        *time.Location
	logger     *slog.Logger
}

// NewClassifier creates a Classifier from cfg, filling defaults for unset fields.
func NewClassifier(cfg Config) *Classifier {
	c := &Classifier{
		properties: cfg.Properties,
		policy:     cfg.Policy,
		selection:  cfg.Selection,
		loc:        cfg.Location,
		logger:     cfg.Logger,
	}
	if c.selection == "" {
		c.selection = SelectMostRecent
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Input is the already-fetched data a classification runs over.
type Input struct {
	Leases   []types.Lease
	Units    []types.Unit
	Payments []types.Payment
}

// UnitOccupancy is one unit together with the lease that governs it.
type UnitOccupancy struct {
	Unit     types.Unit       `json:"unit"`
	Lease    *types.Lease     `json:"lease,omitempty"`
	Schedule []schedule.Entry `json:"schedule"`
}

// HistoryEntry is one ended lease with its property and unit resolved.
type HistoryEntry struct {
	Lease    types.Lease     `json:"lease"`
	Property *types.Property `json:"property,omitempty"`
	Unit     *types.Unit     `json:"unit,omitempty"`
}

// Result is the outcome of Classify.
type Result struct {
	TenantID   types.ID        `json:"tenantId"`
	Current    []UnitOccupancy `json:"current"`
	Previous   []UnitOccupancy `json:"previous"`
	AllHistory []HistoryEntry  `json:"allHistory"`
}

// IsEnded reports whether lease is over at now. An ended, terminated or inactive
// status decides without looking at dates; otherwise the lease is over once its
// end date is before today.
func IsEnded(lease *types.Lease, now time.Time, loc *time.Location) (bool, error) {
	if lease.Status.IsEnded() {
		return true, nil
	}
	end, err := schedule.ParseDate("leaseEndDate", lease.LeaseEndDate, loc)
	if err != nil {
		return false, err
	}
	return end.Before(schedule.DayOf(now, loc)), nil
}

// Classify partitions tenantID's units into current and previous occupancy as of
// now (zero means time.Now()). Units come from both the unit tenant references and
// the tenant's leases; a unit assigned to the tenant without any lease counts as
// current with an empty schedule. Date errors from the schedule propagate. Property
// lookups for the history are best-effort: a failed lookup drops that lease from
// AllHistory and is logged.
func (c *Classifier) Classify(ctx context.Context, tenantID types.ID, in Input, now time.Time) (*Result, error) {
	if now.IsZero() {
		now = time.Now()
	}
	res := &Result{
		TenantID:   tenantID,
		Current:    []UnitOccupancy{},
		Previous:   []UnitOccupancy{},
		AllHistory: []HistoryEntry{},
	}

	var leases []types.Lease
	for _, l := range in.Leases {
		if l.Tenant == tenantID {
			leases = append(leases, l)
		}
	}

	units := make(map[types.ID]types.Unit, len(in.Units))
	var order []types.ID
	seen := make(map[types.ID]bool)
	for _, u := range in.Units {
		units[u.ID] = u
		if u.Tenant == tenantID && !seen[u.ID] {
			seen[u.ID] = true
			order = append(order, u.ID)
		}
	}
	for _, l := range leases {
		if l.Unit != "" && !seen[l.Unit] {
			seen[l.Unit] = true
			order = append(order, l.Unit)
		}
	}

	for _, unitID := range order {
		unit, ok := units[unitID]
		if !ok {
			unit = types.Unit{ID: unitID}
		}
		lease, err := c.selectLease(leases, unitID)
		if err != nil {
			return nil, err
		}
		if lease == nil {
			res.Current = append(res.Current, UnitOccupancy{Unit: unit, Schedule: []schedule.Entry{}})
			continue
		}
		ended, err := IsEnded(lease, now, c.loc)
		if err != nil {
			return nil, err
		}
		if ended {
			res.Previous = append(res.Previous, UnitOccupancy{Unit: unit, Lease: lease, Schedule: []schedule.Entry{}})
			continue
		}
		entries, err := schedule.Generate(lease, in.Payments, schedule.Options{
			UnitID:   unitID,
			Now:      now,
			Location: c.loc,
			Policy:   c.policy,
		})
		if err != nil {
			return nil, fmt.Errorf("occupancy: schedule for lease %s: %w", lease.ID, err)
		}
		res.Current = append(res.Current, UnitOccupancy{Unit: unit, Lease: lease, Schedule: entries})
	}

	history, err := c.history(ctx, leases, units, in.Payments, now)
	if err != nil {
		return nil, err
	}
	res.AllHistory = history
	return res, nil
}

// selectLease applies the configured selection rule to the leases on unitID.
func (c *Classifier) selectLease(leases []types.Lease, unitID types.ID) (*types.Lease, error) {
	var best *types.Lease
	var bestStart time.Time
	for i := range leases {
		l := &leases[i]
		if l.Unit != unitID {
			continue
		}
		if c.selection == SelectFirstMatch {
			return l, nil
		}
		start, err := schedule.ParseDate("leaseStartDate", l.LeaseStartDate, c.loc)
		if err != nil {
			return nil, err
		}
		if best == nil || start.After(bestStart) {
			best, bestStart = l, start
		}
	}
	return best, nil
}

func (c *Classifier) history(ctx context.Context, leases []types.Lease, units map[types.ID]types.Unit, payments []types.Payment, now time.Time) ([]HistoryEntry, error) {
	history := []HistoryEntry{}
	fetched := make(map[types.ID]*types.Property)
	failed := make(map[types.ID]bool)

	for i := range leases {
		l := leases[i]
		ended, err := IsEnded(&l, now, c.loc)
		if err != nil {
			return nil, err
		}
		if !ended {
			continue
		}

		entry := HistoryEntry{Lease: l}
		if u, ok := units[l.Unit]; ok {
			unit := u
			entry.Unit = &unit
		}

		propertyID := propertyFor(l, units, payments)
		if c.properties == nil || propertyID == "" {
			history = append(history, entry)
			continue
		}
		if failed[propertyID] {
			continue
		}
		prop, ok := fetched[propertyID]
		if !ok {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			prop, err = c.properties.FetchProperty(ctx, propertyID)
			if err != nil {
				c.logger.Warn("occupancy: property lookup failed, omitting lease from history",
					slog.String("property_id", propertyID.String()),
					slog.String("lease_id", l.ID.String()),
					slog.Any("error", err))
				failed[propertyID] = true
				continue
			}
			fetched[propertyID] = prop
		}
		entry.Property = prop
		if u := prop.FindUnit(l.Unit); u != nil {
			entry.Unit = u
		}
		history = append(history, entry)
	}
	return history, nil
}

// propertyFor finds the property a lease belongs to, from the unit record or,
// failing that, from payment metadata recorded against the unit.
func propertyFor(l types.Lease, units map[types.ID]types.Unit, payments []types.Payment) types.ID {
	if u, ok := units[l.Unit]; ok && u.Property != "" {
		return u.Property
	}
	for _, p := range payments {
		if p.Metadata.UnitID == l.Unit && p.Metadata.PropertyID != "" {
			return p.Metadata.PropertyID
		}
	}
	return ""
}
