package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/klcheng/PulseCoach/internal/models"
)

// Resolution is a user's answer to a delivered reminder.
type Resolution struct {
	Kind          models.ResolutionKind
	At            time.Time
	Note          string
	SkipReason    string
	SnoozeMinutes int // snoozed only
}

// CompletionStateMachine validates and persists instance resolutions.
// The transition graph is pending -> delivered -> {resolved, expired};
// only delivered instances resolve, and the conditional store write
// makes duplicate attempts lose cleanly instead of overwriting.
type CompletionStateMachine struct {
	defs        DefinitionStore
	instances   InstanceStore
	completions CompletionStore
	schedule    *ScheduleEngine
	streaks     *StreakEngine
	sink        Sink
	cfg         Config
	log         zerolog.Logger
}

func NewCompletionStateMachine(
	defs DefinitionStore,
	instances InstanceStore,
	completions CompletionStore,
	schedule *ScheduleEngine,
	streaks *StreakEngine,
	sink Sink,
	cfg Config,
	log zerolog.Logger,
) *CompletionStateMachine {
	return &CompletionStateMachine{
		defs:        defs,
		instances:   instances,
		completions: completions,
		schedule:    schedule,
		streaks:     streaks,
		sink:        sink,
		cfg:         cfg.withDefaults(),
		log:         log.With().Str("component", "completion").Logger(),
	}
}

// Resolve applies a resolution to a delivered instance and returns the
// persisted record. Validation failures propagate to the caller so the
// user-facing action can report them; a duplicate button press gets
// ErrAlreadyResolved, never a silent success.
func (m *CompletionStateMachine) Resolve(ctx context.Context, instanceID int64, res Resolution) (*models.CompletionRecord, error) {
	inst, err := m.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	switch inst.Status {
	case models.InstanceDelivered:
	case models.InstancePending:
		return nil, models.ErrInstanceNotDeliverable
	default:
		return nil, models.ErrAlreadyResolved
	}

	rec := &models.CompletionRecord{
		InstanceID: inst.InstanceID,
		OwnerID:    inst.OwnerID,
		Domain:     inst.Domain,
		Kind:       res.Kind,
		ResolvedAt: res.At.UTC(),
		Note:       res.Note,
	}

	var timing models.TimingClass
	switch res.Kind {
	case models.ResolutionDone:
		rec.DeltaMinutes = minutesFloor(res.At.Sub(inst.ScheduledAt))
		timing = models.ClassifyTiming(rec.DeltaMinutes, int(m.cfg.OnTimeTolerance.Minutes()))
	case models.ResolutionSkipped:
		rec.SkipReason = res.SkipReason
	case models.ResolutionSnoozed:
		if !m.snoozeOffsetAllowed(res.SnoozeMinutes) {
			return nil, fmt.Errorf("unsupported snooze offset %d minutes", res.SnoozeMinutes)
		}
		to := res.At.Add(time.Duration(res.SnoozeMinutes) * time.Minute).UTC()
		rec.SnoozedTo = &to
	default:
		return nil, fmt.Errorf("unknown resolution kind %q", res.Kind)
	}

	ok, err := m.instances.MarkResolved(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race with a concurrent resolution or the expiry sweep.
		return nil, models.ErrAlreadyResolved
	}

	if err := m.completions.Create(ctx, rec); err != nil {
		return nil, err
	}

	m.log.Info().
		Int64("instance_id", instanceID).
		Int64("owner_id", inst.OwnerID).
		Str("domain", inst.Domain).
		Str("kind", string(res.Kind)).
		Msg("instance resolved")

	switch res.Kind {
	case models.ResolutionSnoozed:
		// The original instance is terminal; the follow-up carries the
		// occurrence forward without touching the recurring rule.
		if _, err := m.schedule.ScheduleSnoozeFollowUp(ctx, inst, *rec.SnoozedTo); err != nil {
			return nil, err
		}
	default:
		if err := m.afterTerminal(ctx, inst, rec, timing); err != nil {
			return nil, err
		}
	}

	return rec, nil
}

// minutesFloor rounds toward negative infinity, so a resolution seconds
// before the scheduled instant still lands in the early bucket instead
// of truncating to an on-time zero.
func minutesFloor(d time.Duration) int {
	m := d / time.Minute
	if d%time.Minute != 0 && d < 0 {
		m--
	}
	return int(m)
}

// snoozeOffsetAllowed checks the closed offset set.
func (m *CompletionStateMachine) snoozeOffsetAllowed(min int) bool {
	for _, o := range m.cfg.SnoozeOffsetsMin {
		if o == min {
			return true
		}
	}
	return false
}

// afterTerminal handles the side effects of a done or skipped record:
// streak feed, events and the next recurring occurrence. Store failures
// propagate so the caller reports a failure instead of confirming a
// resolution whose streak update was lost; the instance transition is
// already durable and a retry lands on ErrAlreadyResolved, never on a
// double-applied update. Only event sink emission stays fire-and-forget.
func (m *CompletionStateMachine) afterTerminal(ctx context.Context, inst *models.ReminderInstance, rec *models.CompletionRecord, timing models.TimingClass) error {
	def, err := m.defs.GetByID(ctx, inst.DefinitionID)
	if err != nil {
		return fmt.Errorf("failed to load definition after resolution: %w", err)
	}

	xp := 0
	if rec.Kind == models.ResolutionDone {
		xp = 10
		if timing == models.TimingOnTime {
			xp += 5
		}
	}
	m.sink.OnCompletion(ctx, CompletionEvent{
		EventID: uuid.New(),
		Record:  *rec,
		Timing:  timing,
		XP:      xp,
	})

	if rec.Kind == models.ResolutionDone && def.Tracked {
		if err := m.recordStreakAndAchievements(ctx, def, rec); err != nil {
			return err
		}
	}

	// Roll the schedule forward so a resolved occurrence immediately has
	// a successor. The next fire instant is computed after both the
	// scheduled and the actual resolution time to avoid re-firing today.
	// A failure here is flagged on the definition and retried by the
	// heartbeat, so it does not unwind an otherwise complete resolution.
	after := rec.ResolvedAt
	if inst.ScheduledAt.After(after) {
		after = inst.ScheduledAt
	}
	if _, err := m.schedule.ScheduleNext(ctx, inst.DefinitionID, after); err != nil {
		m.log.Error().Err(err).Int64("definition_id", inst.DefinitionID).Msg("failed to schedule next occurrence")
		if ferr := m.defs.SetLastError(ctx, inst.DefinitionID, err.Error()); ferr != nil {
			m.log.Error().Err(ferr).Int64("definition_id", inst.DefinitionID).Msg("failed to flag definition")
		}
	}
	return nil
}

func (m *CompletionStateMachine) recordStreakAndAchievements(ctx context.Context, def *models.ReminderDefinition, rec *models.CompletionRecord) error {
	loc, err := time.LoadLocation(def.Timezone)
	if err != nil {
		return fmt.Errorf("bad definition timezone %q: %w", def.Timezone, err)
	}

	// The qualifying day is the owner's subjective "today", not the UTC
	// date: a 23:30 local completion counts for that local date.
	day := models.LocalDate(rec.ResolvedAt, loc)
	upd, err := m.streaks.RecordActivity(ctx, def.OwnerID, def.Domain, day)
	if err != nil {
		return fmt.Errorf("streak update failed: %w", err)
	}

	total, err := m.completions.CountDone(ctx, def.OwnerID, def.Domain)
	if err != nil {
		return fmt.Errorf("failed to count completions: %w", err)
	}

	// The before snapshot uses the streak as it actually stood, not an
	// arithmetic reconstruction: a streak preserved by a freeze day has
	// Prior == Current and must not look like a fresh crossing.
	after := AdherenceStats{CurrentStreak: upd.Current, BestStreak: upd.Best, TotalDone: total}
	before := AdherenceStats{CurrentStreak: upd.Prior, BestStreak: upd.Best, TotalDone: total - 1}

	for _, a := range NewlyUnlocked(before, after) {
		m.sink.OnAchievement(ctx, AchievementEvent{
			EventID:     uuid.New(),
			OwnerID:     def.OwnerID,
			Domain:      def.Domain,
			Achievement: a,
		})
	}
	return nil
}
