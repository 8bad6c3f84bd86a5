package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/matthewbaird/rentroll/internal/occupancy"
	"github.com/matthewbaird/rentroll/internal/schedule"
)

//go:embed policy.cue
var policySchema []byte

// Policy is the schedule and classification policy. Zero fields mean "keep the
// value from the environment".
type Policy struct {
	DueRule        string `json:"dueRule,omitempty"`
	MaxMonths      int    `json:"maxMonths,omitempty"`
	LeaseSelection string `json:"leaseSelection,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
}

// LoadPolicy reads a CUE policy file of the form
//
//	policy: {
//		dueRule:        "metadata_due_date"
//		leaseSelection: "first_match"
//	}
//
// and validates it against the embedded schema.
func LoadPolicy(path string) (Policy, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("config: read policy: %w", err)
	}
	return parsePolicy(path, src)
}

func parsePolicy(filename string, src []byte) (Policy, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(policySchema, cue.Filename("policy.cue"))
	if err := schema.Err(); err != nil {
		return Policy{}, fmt.Errorf("config: policy schema: %w", err)
	}
	val := ctx.CompileBytes(src, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return Policy{}, fmt.Errorf("config: parse policy: %w", err)
	}
	merged := schema.Unify(val)
	if err := merged.Validate(cue.Concrete(true)); err != nil {
		return Policy{}, fmt.Errorf("config: invalid policy: %w", err)
	}
	var p Policy
	if err := merged.LookupPath(cue.ParsePath("policy")).Decode(&p); err != nil {
		return Policy{}, fmt.Errorf("config: decode policy: %w", err)
	}
	return p, nil
}

// Resolved is the effective policy handed to the engine and classifier.
type Resolved struct {
	Schedule  schedule.Policy
	Selection occupancy.LeaseSelection
	Location  *time.Location
}

// Resolve merges the environment settings with the policy file, if any.
func (c *Config) Resolve() (Resolved, error) {
	p := Policy{
		DueRule:        c.DueRule,
		MaxMonths:      c.MaxMonths,
		LeaseSelection: c.LeaseSelection,
		Timezone:       c.Timezone,
	}
	if c.PolicyFile != "" {
		fromFile, err := LoadPolicy(c.PolicyFile)
		if err != nil {
			return Resolved{}, err
		}
		p = p.override(fromFile)
	}
	return p.resolve()
}

func (p Policy) override(o Policy) Policy {
	if o.DueRule != "" {
		p.DueRule = o.DueRule
	}
	if o.MaxMonths != 0 {
		p.MaxMonths = o.MaxMonths
	}
	if o.LeaseSelection != "" {
		p.LeaseSelection = o.LeaseSelection
	}
	if o.Timezone != "" {
		p.Timezone = o.Timezone
	}
	return p
}

func (p Policy) resolve() (Resolved, error) {
	rule, err := schedule.ParseDueRule(p.DueRule)
	if err != nil {
		return Resolved{}, fmt.Errorf("config: %w", err)
	}
	sel, err := occupancy.ParseLeaseSelection(p.LeaseSelection)
	if err != nil {
		return Resolved{}, fmt.Errorf("config: %w", err)
	}
	tz := p.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Resolved{}, fmt.Errorf("config: timezone %q: %w", tz, err)
	}
	return Resolved{
		Schedule:  schedule.Policy{DueRule: rule, MaxMonths: p.MaxMonths},
		Selection: sel,
		Location:  loc,
	}, nil
}
