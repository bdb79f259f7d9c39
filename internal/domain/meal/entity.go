package meal

import "strings"

// GuestIdentity is the anonymous identity. Its analyses are never persisted.
const GuestIdentity = "Guest"

// TimestampLayout is the minute-resolution local time format stamped on history entries.
const TimestampLayout = "2006-01-02 15:04"

// AnalysisRecord is the canonical result of one meal-photo analysis.
type AnalysisRecord struct {
	IsFood        bool     `json:"is_food"`
	Name          string   `json:"name"`
	HealthScore   int      `json:"health_score"`
	Calories      int      `json:"calories"`
	Protein       int      `json:"protein"`
	Carbs         int      `json:"carbs"`
	Fats          int      `json:"fats"`
	Ingredients   []string `json:"ingredients"`
	HealthSummary string   `json:"health_summary"`
	ShortReport   string   `json:"short_report"`
}

// Canonical returns a copy with every invariant applied: clamped numbers, a
// non-nil ingredient list, and zeroed nutrition for non-food subjects.
func (r AnalysisRecord) Canonical() AnalysisRecord {
	out := r
	if !r.IsFood {
		out.HealthScore, out.Calories, out.Protein, out.Carbs, out.Fats = 0, 0, 0, 0, 0
		out.Ingredients = []string{}
		return out
	}
	out.HealthScore = min(nonNegative(r.HealthScore), maxHealthScore)
	out.Calories = nonNegative(r.Calories)
	out.Protein = nonNegative(r.Protein)
	out.Carbs = nonNegative(r.Carbs)
	out.Fats = nonNegative(r.Fats)
	out.Ingredients = make([]string, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		if ing = strings.TrimSpace(ing); ing != "" {
			out.Ingredients = append(out.Ingredients, ing)
		}
	}
	return out
}

// HistoryEntry is an AnalysisRecord stamped at append time.
type HistoryEntry struct {
	AnalysisRecord
	Timestamp string `json:"timestamp"`
}

// Store maps an identity to its entries in append order.
type Store map[string][]HistoryEntry

// NormalizeIdentity trims a username; blank names collapse to GuestIdentity.
func NormalizeIdentity(identity string) string {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return GuestIdentity
	}
	return identity
}

// IsGuest reports whether identity is the anonymous identity.
func IsGuest(identity string) bool {
	return NormalizeIdentity(identity) == GuestIdentity
}

// NewestFirst returns a reversed copy of entries for display.
func NewestFirst(entries []HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
