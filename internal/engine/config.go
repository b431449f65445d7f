package engine

import "time"

// Config carries the engine tunables. Zero values are replaced by
// DefaultConfig at construction.
type Config struct {
	// CheckInterval is the heartbeat period.
	CheckInterval time.Duration
	// GraceWindow is how long a delivered instance may sit unresolved
	// before the heartbeat expires it.
	GraceWindow time.Duration
	// OnTimeTolerance is the late boundary for done classifications.
	OnTimeTolerance time.Duration
	// SnoozeOffsetsMin is the closed set of accepted snooze offsets.
	SnoozeOffsetsMin []int
	// DefaultFreezeDays seeds the freeze allowance of new streaks.
	DefaultFreezeDays int
}

func DefaultConfig() Config {
	return Config{
		CheckInterval:     30 * time.Second,
		GraceWindow:       4 * time.Hour,
		OnTimeTolerance:   15 * time.Minute,
		SnoozeOffsetsMin:  []int{15, 30, 60},
		DefaultFreezeDays: 2,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CheckInterval <= 0 {
		c.CheckInterval = d.CheckInterval
	}
	if c.GraceWindow <= 0 {
		c.GraceWindow = d.GraceWindow
	}
	if c.OnTimeTolerance <= 0 {
		c.OnTimeTolerance = d.OnTimeTolerance
	}
	if len(c.SnoozeOffsetsMin) == 0 {
		c.SnoozeOffsetsMin = d.SnoozeOffsetsMin
	}
	if c.DefaultFreezeDays <= 0 {
		c.DefaultFreezeDays = d.DefaultFreezeDays
	}
	return c
}
