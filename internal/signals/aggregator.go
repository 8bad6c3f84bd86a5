package signals

import (
	"slices"
	"sort"
	"time"

	"github.com/matthewbaird/rentroll/internal/types"
)

// CategorySummary counts the signals of one category.
type CategorySummary struct {
	Category         string         `json:"category"`
	SignalCount      int            `json:"signal_count"`
	ByWeight         map[string]int `json:"by_weight"`
	ByPolarity       map[string]int `json:"by_polarity"`
	DominantPolarity string         `json:"dominant_polarity"`
	Trend            string         `json:"trend"` // "improving", "stable", "declining"
}

// EscalatedSignal is an escalation rule that fired.
type EscalatedSignal struct {
	Rule             EscalationRule `json:"rule"`
	TriggeringCount  int            `json:"triggering_count"`
	EarliestOccurred time.Time      `json:"earliest_occurred"`
	LatestOccurred   time.Time      `json:"latest_occurred"`
}

// Summary is the aggregated signal view of one entity over a window.
type Summary struct {
	EntityType       string                     `json:"entity_type"`
	EntityID         string                     `json:"entity_id"`
	Since            time.Time                  `json:"since"`
	Until            time.Time                  `json:"until"`
	Categories       map[string]CategorySummary `json:"categories"`
	OverallSentiment string                     `json:"overall_sentiment"` // "positive", "mixed", "concerning", "critical"
	SentimentReason  string                     `json:"sentiment_reason"`
	Escalations      []EscalatedSignal          `json:"escalations"`
}

type signal struct {
	Classification
	occurredAt time.Time
}

// Aggregate produces a Summary from activity entries within [since, until].
// Escalation windows are measured back from until. Entries whose event type
// has no registration count as neutral info signals in their own category.
func Aggregate(entries []types.ActivityEntry, entityType, entityID string, since, until time.Time) Summary {
	sigs := make([]signal, 0, len(entries))
	for _, e := range entries {
		if e.OccurredAt.Before(since) || e.OccurredAt.After(until) {
			continue
		}
		cls, ok := Classify(e)
		if !ok {
			cls = Classification{Category: e.Category, Weight: "info", Polarity: "neutral"}
		}
		sigs = append(sigs, signal{Classification: cls, occurredAt: e.OccurredAt})
	}

	categories := make(map[string]CategorySummary)
	for _, s := range sigs {
		cs, ok := categories[s.Category]
		if !ok {
			cs = CategorySummary{
				Category:   s.Category,
				ByWeight:   make(map[string]int),
				ByPolarity: make(map[string]int),
			}
		}
		cs.SignalCount++
		cs.ByWeight[s.Weight]++
		cs.ByPolarity[s.Polarity]++
		categories[s.Category] = cs
	}
	for cat, cs := range categories {
		cs.DominantPolarity = dominantPolarity(cs.ByPolarity)
		cs.Trend = computeTrend(sigs, cat, since, until)
		categories[cat] = cs
	}

	escalations := evaluateEscalations(sigs, until)
	sentiment, reason := computeSentiment(categories, escalations)

	return Summary{
		EntityType:       entityType,
		EntityID:         entityID,
		Since:            since,
		Until:            until,
		Categories:       categories,
		OverallSentiment: sentiment,
		SentimentReason:  reason,
		Escalations:      escalations,
	}
}

func evaluateEscalations(sigs []signal, until time.Time) []EscalatedSignal {
	escalated := []EscalatedSignal{}
	for _, rule := range escalationRules() {
		var es EscalatedSignal
		var ok bool
		switch rule.TriggerType {
		case "count":
			es, ok = evaluateCountRule(rule, sigs, until)
		case "cross_category":
			es, ok = evaluateCrossCategoryRule(rule, sigs, until)
		}
		if ok {
			escalated = append(escalated, es)
		}
	}
	return escalated
}

func evaluateCountRule(rule EscalationRule, sigs []signal, until time.Time) (EscalatedSignal, bool) {
	windowStart := until.AddDate(0, 0, -rule.WithinDays)

	var matching []time.Time
	for _, s := range sigs {
		if s.occurredAt.Before(windowStart) {
			continue
		}
		if rule.SignalCategory != "" && s.Category != rule.SignalCategory {
			continue
		}
		if rule.SignalPolarity != "" && s.Polarity != rule.SignalPolarity {
			continue
		}
		matching = append(matching, s.occurredAt)
	}
	if len(matching) < rule.Count {
		return EscalatedSignal{}, false
	}

	sort.Slice(matching, func(i, j int) bool { return matching[i].Before(matching[j]) })
	return EscalatedSignal{
		Rule:             rule,
		TriggeringCount:  len(matching),
		EarliestOccurred: matching[0],
		LatestOccurred:   matching[len(matching)-1],
	}, true
}

func evaluateCrossCategoryRule(rule EscalationRule, sigs []signal, until time.Time) (EscalatedSignal, bool) {
	windowStart := until.AddDate(0, 0, -rule.WithinDays)

	counts := make(map[string]int)
	var earliest, latest time.Time
	for _, s := range sigs {
		if s.occurredAt.Before(windowStart) {
			continue
		}
		for _, req := range rule.RequiredCategories {
			if s.Category != req.Category || (req.Polarity != "" && s.Polarity != req.Polarity) {
				continue
			}
			counts[req.Category]++
			if earliest.IsZero() || s.occurredAt.Before(earliest) {
				earliest = s.occurredAt
			}
			if s.occurredAt.After(latest) {
				latest = s.occurredAt
			}
		}
	}

	total := 0
	for _, req := range rule.RequiredCategories {
		if counts[req.Category] < req.MinCount {
			return EscalatedSignal{}, false
		}
		total += counts[req.Category]
	}
	return EscalatedSignal{
		Rule:             rule,
		TriggeringCount:  total,
		EarliestOccurred: earliest,
		LatestOccurred:   latest,
	}, true
}

// dominantPolarity returns the polarity with the highest count. Ties go to
// the alphabetically first polarity so the result is stable.
func dominantPolarity(byPolarity map[string]int) string {
	keys := make([]string, 0, len(byPolarity))
	for p := range byPolarity {
		keys = append(keys, p)
	}
	slices.Sort(keys)
	best, bestCount := "", 0
	for _, p := range keys {
		if byPolarity[p] > bestCount {
			best, bestCount = p, byPolarity[p]
		}
	}
	return best
}

// computeTrend compares negative signal volume in the first and second half
// of the window.
func computeTrend(sigs []signal, category string, since, until time.Time) string {
	mid := since.Add(until.Sub(since) / 2)
	var firstHalf, secondHalf int
	for _, s := range sigs {
		if s.Category != category || s.Polarity != "negative" {
			continue
		}
		if s.occurredAt.Before(mid) {
			firstHalf++
		} else {
			secondHalf++
		}
	}
	if secondHalf > firstHalf+1 {
		return "declining"
	}
	if firstHalf > secondHalf+1 {
		return "improving"
	}
	return "stable"
}

// computeSentiment determines overall sentiment from category summaries and escalations.
func computeSentiment(categories map[string]CategorySummary, escalations []EscalatedSignal) (string, string) {
	for _, e := range escalations {
		if e.Rule.EscalatedWeight == "critical" {
			return "critical", "Critical escalation triggered: " + e.Rule.EscalatedDescription
		}
	}

	var criticalCount, strongCount, negativeCount, positiveCount int
	for _, cs := range categories {
		criticalCount += cs.ByWeight["critical"]
		strongCount += cs.ByWeight["strong"]
		negativeCount += cs.ByPolarity["negative"]
		positiveCount += cs.ByPolarity["positive"]
	}
	for _, e := range escalations {
		if e.Rule.EscalatedWeight == "strong" {
			strongCount++
		}
	}

	if criticalCount > 0 {
		return "critical", "Critical-weight signals present requiring immediate attention."
	}
	if strongCount >= 2 || negativeCount > positiveCount*2 {
		return "concerning", "Multiple strong signals or predominantly negative activity."
	}
	if negativeCount > positiveCount {
		return "mixed", "More negative than positive signals, but no critical concerns."
	}
	return "positive", "Activity is predominantly positive or neutral."
}
