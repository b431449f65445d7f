package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/klcheng/PulseCoach/internal/models"
)

// CompletionEvent is emitted for every terminal done or skipped
// resolution. XP is the award the downstream consumer should grant.
type CompletionEvent struct {
	EventID uuid.UUID
	Record  models.CompletionRecord
	Timing  models.TimingClass
	XP      int
}

// StreakEvent is emitted when a streak update crosses a milestone or
// sets a new best.
type StreakEvent struct {
	EventID   uuid.UUID
	OwnerID   int64
	Domain    string
	Update    models.StreakUpdate
	Milestone int // 0 when the event is for a new best only
}

// AchievementEvent is emitted when an achievement criterion is first met.
type AchievementEvent struct {
	EventID     uuid.UUID
	OwnerID     int64
	Domain      string
	Achievement Achievement
}

// Sink is the boundary to the delivery and award collaborators. Deliver
// failures belong to the notifier; the engine only logs them. The event
// methods must not block: the engines call them synchronously on the
// resolution path.
type Sink interface {
	Deliver(ctx context.Context, def *models.ReminderDefinition, inst *models.ReminderInstance) error
	OnCompletion(ctx context.Context, ev CompletionEvent)
	OnStreakMilestone(ctx context.Context, ev StreakEvent)
	OnAchievement(ctx context.Context, ev AchievementEvent)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Deliver(context.Context, *models.ReminderDefinition, *models.ReminderInstance) error {
	return nil
}
func (NopSink) OnCompletion(context.Context, CompletionEvent)   {}
func (NopSink) OnStreakMilestone(context.Context, StreakEvent)  {}
func (NopSink) OnAchievement(context.Context, AchievementEvent) {}

// streakMilestones are the streak lengths worth celebrating beyond a new
// best.
var streakMilestones = []int{7, 30, 100}

func isStreakMilestone(n int) bool {
	for _, m := range streakMilestones {
		if n == m {
			return true
		}
	}
	return false
}
