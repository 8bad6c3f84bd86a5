package signals

import (
	"encoding/json"
	"strings"

	"github.com/matthewbaird/rentroll/internal/types"
)

// Classification is the signal an activity entry maps to.
type Classification struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Weight   string `json:"weight"`
	Polarity string `json:"polarity"`
}

// Classify looks up the entry's event type in the registry. Registrations with
// a condition are tried first; the first one without a condition is the fallback.
// Returns ok=false if no registration matches the event type.
func Classify(entry types.ActivityEntry) (Classification, bool) {
	regs := Lookup(entry.EventType)
	if len(regs) == 0 {
		return Classification{}, false
	}

	var payload map[string]any
	if len(entry.Payload) > 0 {
		_ = json.Unmarshal(entry.Payload, &payload)
	}

	var fallback *Registration
	for i := range regs {
		reg := &regs[i]
		if reg.Condition == "" {
			if fallback == nil {
				fallback = reg
			}
			continue
		}
		if matchCondition(reg.Condition, payload) {
			return classification(reg), true
		}
	}
	if fallback != nil {
		return classification(fallback), true
	}
	return Classification{}, false
}

func classification(reg *Registration) Classification {
	return Classification{ID: reg.ID, Category: reg.Category, Weight: reg.Weight, Polarity: reg.Polarity}
}

// matchCondition supports "field == value" and "field != value" against
// top-level string payload fields.
func matchCondition(condition string, payload map[string]any) bool {
	if payload == nil {
		return false
	}
	for _, op := range []string{"!=", "=="} {
		key, expected, found := strings.Cut(condition, op)
		if !found {
			continue
		}
		actual, ok := payload[strings.TrimSpace(key)].(string)
		if !ok {
			return false
		}
		equal := actual == strings.TrimSpace(expected)
		if op == "==" {
			return equal
		}
		return !equal
	}
	return false
}
