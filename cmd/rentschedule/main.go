// cmd/rentschedule prints the rent schedule of one lease from JSON exports,
// without a server or database.
//
//	rentschedule -lease lease.json -payments payments.json [-unit ID] [-due-rule metadata_due_date] [-as-of 2024-03-20] [-json]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/matthewbaird/rentroll/internal/schedule"
	"github.com/matthewbaird/rentroll/internal/types"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("rentschedule: ")

	leasePath := flag.String("lease", "", "path to the lease JSON document (required)")
	paymentsPath := flag.String("payments", "", "path to a JSON array of payments")
	unitID := flag.String("unit", "", "unit id to match payments against (default: the lease's unit)")
	dueRule := flag.String("due-rule", string(schedule.DueRuleScheduleDate), "overdue_by_date or metadata_due_date")
	asOf := flag.String("as-of", "", "reference day, YYYY-MM-DD (default: today)")
	tz := flag.String("tz", "UTC", "time zone for day boundaries")
	maxMonths := flag.Int("max-months", schedule.DefaultMaxMonths, "maximum number of months to list")
	asJSON := flag.Bool("json", false, "print JSON instead of a table")
	flag.Parse()

	if *leasePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		log.Fatalf("time zone: %v", err)
	}
	rule, err := schedule.ParseDueRule(*dueRule)
	if err != nil {
		log.Fatal(err)
	}
	now := time.Now()
	if *asOf != "" {
		if now, err = schedule.ParseDate("as-of", *asOf, loc); err != nil {
			log.Fatal(err)
		}
	}

	var lease types.Lease
	if err := readJSON(*leasePath, &lease); err != nil {
		log.Fatalf("reading lease: %v", err)
	}
	var payments []types.Payment
	if *paymentsPath != "" {
		if err := readJSON(*paymentsPath, &payments); err != nil {
			log.Fatalf("reading payments: %v", err)
		}
	}
	unit := types.ID(*unitID)
	if unit == "" {
		unit = lease.Unit
	}

	entries, err := schedule.Generate(&lease, payments, schedule.Options{
		UnitID:   unit,
		Now:      now,
		Location: loc,
		Policy:   schedule.Policy{DueRule: rule, MaxMonths: *maxMonths},
	})
	if err != nil {
		log.Fatal(err)
	}
	totals := schedule.Summarize(entries)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{"entries": entries, "totals": totals}); err != nil {
			log.Fatal(err)
		}
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MONTH\tDUE\tAMOUNT\tSTATUS\tPAYMENT")
	for _, e := range entries {
		month := e.Month
		if e.IsCurrentMonth {
			month += " *"
		}
		payment := "-"
		if e.Payment != nil {
			payment = fmt.Sprintf("%s (%s)", e.Payment.ID, e.Payment.Status)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", month, e.DueDate.Format(time.DateOnly), e.Amount.StringFixed(2), e.Status, payment)
	}
	tw.Flush()
	fmt.Printf("\nexpected %s  paid %s  outstanding %s  late months %d\n",
		totals.Expected.StringFixed(2), totals.Paid.StringFixed(2), totals.Outstanding.StringFixed(2), totals.LateMonths)
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
