package engine

// Achievement criteria are a closed set of tagged variants evaluated by
// a pure function. Keeping the set closed (instead of an open-ended
// interpreted structure) keeps the award path testable.

type CriterionKind string

const (
	// CriterionStreak fires when the current streak reaches Threshold days.
	CriterionStreak CriterionKind = "streak_threshold"
	// CriterionCount fires when total done completions reach Threshold.
	CriterionCount CriterionKind = "cumulative_count"
	// CriterionTier fires when the adherence tier reaches Threshold.
	CriterionTier CriterionKind = "tier_reached"
)

type Criterion struct {
	Kind      CriterionKind
	Threshold int
}

// AdherenceStats is the evaluation input: a snapshot of one owner's
// counters in one domain.
type AdherenceStats struct {
	CurrentStreak int
	BestStreak    int
	TotalDone     int
}

// Tier buckets total completions into coarse levels.
func (s AdherenceStats) Tier() int {
	switch {
	case s.TotalDone >= 250:
		return 3
	case s.TotalDone >= 50:
		return 2
	case s.TotalDone >= 10:
		return 1
	default:
		return 0
	}
}

// Met evaluates the criterion against a stats snapshot.
func (c Criterion) Met(s AdherenceStats) bool {
	switch c.Kind {
	case CriterionStreak:
		return s.CurrentStreak >= c.Threshold
	case CriterionCount:
		return s.TotalDone >= c.Threshold
	case CriterionTier:
		return s.Tier() >= c.Threshold
	}
	return false
}

type Achievement struct {
	Code      string
	Title     string
	Criterion Criterion
	XP        int
}

// Catalog is the built-in achievement set.
var Catalog = []Achievement{
	{Code: "first_step", Title: "First Step", Criterion: Criterion{Kind: CriterionCount, Threshold: 1}, XP: 10},
	{Code: "week_streak", Title: "One Week Strong", Criterion: Criterion{Kind: CriterionStreak, Threshold: 7}, XP: 50},
	{Code: "month_streak", Title: "Thirty Days", Criterion: Criterion{Kind: CriterionStreak, Threshold: 30}, XP: 200},
	{Code: "hundred_streak", Title: "Centurion", Criterion: Criterion{Kind: CriterionStreak, Threshold: 100}, XP: 1000},
	{Code: "fifty_done", Title: "Fifty Done", Criterion: Criterion{Kind: CriterionCount, Threshold: 50}, XP: 100},
	{Code: "committed", Title: "Committed", Criterion: Criterion{Kind: CriterionTier, Threshold: 2}, XP: 150},
	{Code: "devoted", Title: "Devoted", Criterion: Criterion{Kind: CriterionTier, Threshold: 3}, XP: 500},
}

// NewlyUnlocked returns the achievements met by after but not by before.
// Comparing snapshots makes unlock emission idempotent: a criterion
// already satisfied yesterday does not fire again today.
func NewlyUnlocked(before, after AdherenceStats) []Achievement {
	var out []Achievement
	for _, a := range Catalog {
		if a.Criterion.Met(after) && !a.Criterion.Met(before) {
			out = append(out, a)
		}
	}
	return out
}
