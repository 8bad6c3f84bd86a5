package schedule

import "github.com/shopspring/decimal"

// Totals aggregates a schedule's amounts by settlement state.
type Totals struct {
	Expected    decimal.Decimal `json:"expected"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
	LateMonths  int             `json:"lateMonths"`
}

// Summarize totals entries. Outstanding counts every month not yet paid, upcoming
// ones included; paid uses the matched payment amount when one is present.
func Summarize(entries []Entry) Totals {
	t := Totals{Expected: decimal.Zero, Paid: decimal.Zero, Outstanding: decimal.Zero}
	for _, e := range entries {
		t.Expected = t.Expected.Add(e.Amount)
		switch e.Status {
		case StatusPaid:
			if e.Payment != nil {
				t.Paid = t.Paid.Add(e.Payment.Amount)
			} else {
				t.Paid = t.Paid.Add(e.Amount)
			}
		case StatusOverdue, StatusDue:
			t.LateMonths++
			t.Outstanding = t.Outstanding.Add(e.Amount)
		default:
			t.Outstanding = t.Outstanding.Add(e.Amount)
		}
	}
	return t
}
