package models

import "time"

// ResolutionKind is how the user answered a delivered reminder.
type ResolutionKind string

const (
	ResolutionDone    ResolutionKind = "done"
	ResolutionSkipped ResolutionKind = "skipped"
	ResolutionSnoozed ResolutionKind = "snoozed"
)

// TimingClass classifies a done resolution against its scheduled instant.
type TimingClass string

const (
	TimingEarly  TimingClass = "early"
	TimingOnTime TimingClass = "on_time"
	TimingLate   TimingClass = "late"
)

// ClassifyTiming buckets a signed scheduled-vs-actual delta. toleranceMin
// is the late boundary: a delta in [0, tolerance] still counts as on time.
func ClassifyTiming(deltaMin int, toleranceMin int) TimingClass {
	switch {
	case deltaMin < 0:
		return TimingEarly
	case deltaMin <= toleranceMin:
		return TimingOnTime
	default:
		return TimingLate
	}
}

// CompletionRecord is the immutable outcome of a reminder instance.
// DeltaMinutes is only meaningful for done resolutions.
type CompletionRecord struct {
	RecordID     int64          `json:"record_id"`
	InstanceID   int64          `json:"instance_id"`
	OwnerID      int64          `json:"owner_id"`
	Domain       string         `json:"domain"`
	Kind         ResolutionKind `json:"kind"`
	ResolvedAt   time.Time      `json:"resolved_at"`
	DeltaMinutes int            `json:"delta_minutes"`
	Note         string         `json:"note"`
	SkipReason   string         `json:"skip_reason"`
	SnoozedTo    *time.Time     `json:"snoozed_to"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AdherenceReport is the reporting view over a period.
type AdherenceReport struct {
	OwnerID        int64       `json:"owner_id"`
	Domain         string      `json:"domain"`
	From           time.Time   `json:"from"`
	To             time.Time   `json:"to"`
	Scheduled      int         `json:"scheduled"`
	Completed      int         `json:"completed"`
	Skipped        int         `json:"skipped"`
	CompletionRate float64     `json:"completion_rate"`
	CurrentStreak  int         `json:"current_streak"`
	BestStreak     int         `json:"best_streak"`
	MissedDates    []time.Time `json:"missed_dates"`
}
