package models

import "time"

// StreakState is the per (owner, domain) rolling consistency counter.
// LastActivityDate is a user-local calendar date stored at UTC midnight.
type StreakState struct {
	OwnerID          int64      `json:"owner_id"`
	Domain           string     `json:"domain"`
	Current          int        `json:"current"`
	Best             int        `json:"best"`
	LastActivityDate *time.Time `json:"last_activity_date"`
	FreezeRemaining  int        `json:"freeze_remaining"`
	FreezeUsed       int        `json:"freeze_used"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// StreakUpdate is the outcome of recording one day's activity. Prior is
// the current streak as it stood entering the update, so consumers can
// detect threshold crossings without reconstructing history.
type StreakUpdate struct {
	Prior       int  `json:"prior"`
	Current     int  `json:"current"`
	Best        int  `json:"best"`
	IsNewBest   bool `json:"is_new_best"`
	UsedFreeze  int  `json:"used_freeze"`
	BrokeStreak bool `json:"broke_streak"`
	Changed     bool `json:"changed"` // false for same-day repeats and stale dates
}

// LocalDate truncates an instant to the calendar date it falls on in loc,
// normalized to UTC midnight so day arithmetic is plain division.
func LocalDate(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns b - a in whole calendar days for two LocalDate values.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}
