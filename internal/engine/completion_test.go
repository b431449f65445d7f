package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klcheng/PulseCoach/internal/models"
	"github.com/klcheng/PulseCoach/internal/recurrence"
)

type completionFixture struct {
	defs    *fakeDefs
	insts   *fakeInstances
	comps   *fakeCompletions
	streaks *fakeStreaks
	sink    *recordSink

	schedule *ScheduleEngine
	machine  *CompletionStateMachine
}

func newCompletionFixture(now time.Time) *completionFixture {
	f := &completionFixture{
		defs:    newFakeDefs(),
		insts:   newFakeInstances(),
		comps:   &fakeCompletions{},
		streaks: newFakeStreaks(),
		sink:    &recordSink{},
	}
	log := zerolog.Nop()
	f.schedule = NewScheduleEngine(f.defs, f.insts, f.sink, Config{}, log)
	f.schedule.now = func() time.Time { return now }
	streakEngine := NewStreakEngine(f.streaks, f.sink, Config{}, log)
	f.machine = NewCompletionStateMachine(f.defs, f.insts, f.comps, f.schedule, streakEngine, f.sink, Config{}, log)
	return f
}

// delivered creates a daily reminder for the owner and walks its first
// instance to the delivered state.
func (f *completionFixture) delivered(t *testing.T, owner int64, domain string, at time.Time) (*models.ReminderDefinition, *models.ReminderInstance) {
	t.Helper()
	def := &models.ReminderDefinition{
		OwnerID:  owner,
		Domain:   domain,
		Message:  "take your medication",
		Timezone: "Etc/GMT-2",
		Tracked:  true,
	}
	inst, err := f.schedule.CreateReminder(context.Background(), def, recurrence.Rule{
		Kind:   recurrence.KindDaily,
		Hour:   at.In(mustLocation(t, def.Timezone)).Hour(),
		Minute: at.In(mustLocation(t, def.Timezone)).Minute(),
	})
	require.NoError(t, err)
	require.Equal(t, at, inst.ScheduledAt)

	ok, err := f.insts.MarkDelivered(context.Background(), inst.InstanceID, at)
	require.NoError(t, err)
	require.True(t, ok)
	inst.Status = models.InstanceDelivered
	return def, inst
}

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestResolveDoneOnTime(t *testing.T) {
	// 06:00 UTC is 08:00 local in UTC+2.
	scheduled := time.Date(2026, 6, 10, 6, 0, 0, 0, time.UTC)
	f := newCompletionFixture(scheduled.Add(-time.Hour))
	def, inst := f.delivered(t, 1, "medication", scheduled)

	rec, err := f.machine.Resolve(context.Background(), inst.InstanceID, Resolution{
		Kind: models.ResolutionDone,
		At:   scheduled.Add(5 * time.Minute),
	})
	require.NoError(t, err)

	assert.Equal(t, 5, rec.DeltaMinutes)

	require.Len(t, f.sink.completions, 1)
	ev := f.sink.completions[0]
	assert.Equal(t, models.TimingOnTime, ev.Timing)
	assert.Equal(t, 15, ev.XP)

	// Streak fed on the owner-local calendar date.
	s, err := f.streaks.Get(context.Background(), 1, "medication")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Current)

	// The next occurrence exists and is tomorrow.
	live, err := f.insts.LiveByDefinition(context.Background(), def.DefinitionID)
	require.NoError(t, err)
	assert.Equal(t, scheduled.AddDate(0, 0, 1), live.ScheduledAt)
	assert.Equal(t, 1, f.insts.liveCount(def.DefinitionID))
}

func TestResolveDoneLate(t *testing.T) {
	scheduled := time.Date(2026, 6, 10, 6, 0, 0, 0, time.UTC)
	f := newCompletionFixture(scheduled.Add(-time.Hour))
	_, inst := f.delivered(t, 1, "medication", scheduled)

	rec, err := f.machine.Resolve(context.Background(), inst.InstanceID, Resolution{
		Kind: models.ResolutionDone,
		At:   scheduled.Add(40 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, 40, rec.DeltaMinutes)

	require.Len(t, f.sink.completions, 1)
	assert.Equal(t, models.TimingLate, f.sink.completions[0].Timing)
	assert.Equal(t, 10, f.sink.completions[0].XP)
}

func TestResolveDuplicateLosesCleanly(t *testing.T) {
	scheduled := time.Date(2026, 6, 10, 6, 0, 0, 0, time.UTC)
	f := newCompletionFixture(scheduled.Add(-time.Hour))
	_, inst := f.delivered(t, 1, "medication", scheduled)

	res := Resolution{Kind: models.ResolutionDone, At: scheduled.Add(time.Minute)}
	_, err := f.machine.Resolve(context.Background(), inst.InstanceID, res)
	require.NoError(t, err)

	_, err = f.machine.Resolve(context.Background(), inst.InstanceID, res)
	assert.ErrorIs(t, err, models.ErrAlreadyResolved)

	// No second record, no second event.
	assert.Len(t, f.comps.recs, 1)
	assert.Len(t, f.sink.completions, 1)
}

func TestResolvePendingInstance(t *testing.T) {
	now := time.Date(2026, 6, 10, 4, 0, 0, 0, time.UTC)
	f := newCompletionFixture(now)

	def := &models.ReminderDefinition{OwnerID: 1, Domain: "sleep", Message: "wind down", Timezone: "UTC"}
	inst, err := f.schedule.CreateReminder(context.Background(), def, recurrence.Rule{
		Kind: recurrence.KindDaily, Hour: 22,
	})
	require.NoError(t, err)

	_, err = f.machine.Resolve(context.Background(), inst.InstanceID, Resolution{
		Kind: models.ResolutionDone, At: now,
	})
	assert.ErrorIs(t, err, models.ErrInstanceNotDeliverable)
}

func TestResolveUnknownInstance(t *testing.T) {
	f := newCompletionFixture(time.Now().UTC())
	_, err := f.machine.Resolve(context.Background(), 404, Resolution{
		Kind: models.ResolutionDone, At: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestResolveSkippedIsStreakNeutral(t *testing.T) {
	scheduled := time.Date(2026, 6, 10, 6, 0, 0, 0, time.UTC)
	f := newCompletionFixture(scheduled.Add(-time.Hour))
	def, inst := f.delivered(t, 1, "medication", scheduled)

	rec, err := f.machine.Resolve(context.Background(), inst.InstanceID, Resolution{
		Kind:       models.ResolutionSkipped,
		At:         scheduled.Add(10 * time.Minute),
		SkipReason: "doctor said pause",
	})
	require.NoError(t, err)
	assert.Equal(t, "doctor said pause", rec.SkipReason)

	// No streak row was even created.
	_, err = f.streaks.Get(context.Background(), 1, "medication")
	assert.ErrorIs(t, err, models.ErrNotFound)

	// The event still fires, with no XP, and the schedule rolls forward.
	require.Len(t, f.sink.completions, 1)
	assert.Equal(t, 0, f.sink.completions[0].XP)
	assert.Equal(t, 1, f.insts.liveCount(def.DefinitionID))
}

func TestResolveSnoozeCreatesFollowUp(t *testing.T) {
	scheduled := time.Date(2026, 6, 10, 6, 0, 0, 0, time.UTC)
	f := newCompletionFixture(scheduled.Add(-time.Hour))
	def, inst := f.delivered(t, 1, "medication", scheduled)

	at := scheduled.Add(2 * time.Minute)
	rec, err := f.machine.Resolve(context.Background(), inst.InstanceID, Resolution{
		Kind:          models.ResolutionSnoozed,
		At:            at,
		SnoozeMinutes: 30,
	})
	require.NoError(t, err)
	require.NotNil(t, rec.SnoozedTo)
	assert.Equal(t, at.Add(30*time.Minute), *rec.SnoozedTo)

	// Original instance is terminal; exactly one follow-up is pending at
	// the snoozed instant, and the recurring rule is untouched.
	got, err := f.insts.GetByID(context.Background(), inst.InstanceID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceResolved, got.Status)

	live, err := f.insts.LiveByDefinition(context.Background(), def.DefinitionID)
	require.NoError(t, err)
	assert.Equal(t, at.Add(30*time.Minute), live.ScheduledAt)
	assert.Equal(t, models.InstancePending, live.Status)

	stored, err := f.defs.GetByID(context.Background(), def.DefinitionID)
	require.NoError(t, err)
	assert.Equal(t, def.RuleSpec, stored.RuleSpec)

	// No completion event for a snooze.
	assert.Empty(t, f.sink.completions)
}

func TestResolveSnoozeRejectsUnknownOffset(t *testing.T) {
	scheduled := time.Date(2026, 6, 10, 6, 0, 0, 0, time.UTC)
	f := newCompletionFixture(scheduled.Add(-time.Hour))
	_, inst := f.delivered(t, 1, "medication", scheduled)

	_, err := f.machine.Resolve(context.Background(), inst.InstanceID, Resolution{
		Kind:          models.ResolutionSnoozed,
		At:            scheduled,
		SnoozeMinutes: 45,
	})
	assert.Error(t, err)

	// Still resolvable afterwards.
	got, err := f.insts.GetByID(context.Background(), inst.InstanceID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceDelivered, got.Status)
}

func TestResolveDoneUnlocksFirstAchievement(t *testing.T) {
	scheduled := time.Date(2026, 6, 10, 6, 0, 0, 0, time.UTC)
	f := newCompletionFixture(scheduled.Add(-time.Hour))
	_, inst := f.delivered(t, 1, "medication", scheduled)

	_, err := f.machine.Resolve(context.Background(), inst.InstanceID, Resolution{
		Kind: models.ResolutionDone,
		At:   scheduled.Add(time.Minute),
	})
	require.NoError(t, err)

	require.NotEmpty(t, f.sink.achievements)
	assert.Equal(t, "first_step", f.sink.achievements[0].Achievement.Code)
}

type failingStreaks struct {
	*fakeStreaks
}

func (f *failingStreaks) Mutate(context.Context, int64, string, func(*models.StreakState)) (models.StreakState, error) {
	return models.StreakState{}, errors.New("streak store unavailable")
}

func TestResolveDonePropagatesStreakStoreFailure(t *testing.T) {
	scheduled := time.Date(2026, 6, 10, 6, 0, 0, 0, time.UTC)
	f := newCompletionFixture(scheduled.Add(-time.Hour))

	// Swap in a streak store whose writes fail.
	log := zerolog.Nop()
	broken := NewStreakEngine(&failingStreaks{f.streaks}, f.sink, Config{}, log)
	f.machine = NewCompletionStateMachine(f.defs, f.insts, f.comps, f.schedule, broken, f.sink, Config{}, log)

	_, inst := f.delivered(t, 1, "medication", scheduled)

	_, err := f.machine.Resolve(context.Background(), inst.InstanceID, Resolution{
		Kind: models.ResolutionDone,
		At:   scheduled.Add(time.Minute),
	})
	require.Error(t, err)

	// The instance transition and the record are durable; a retry lands
	// on the duplicate guard rather than re-applying anything.
	got, err := f.insts.GetByID(context.Background(), inst.InstanceID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceResolved, got.Status)
	assert.Len(t, f.comps.recs, 1)

	_, err = f.machine.Resolve(context.Background(), inst.InstanceID, Resolution{
		Kind: models.ResolutionDone,
		At:   scheduled.Add(2 * time.Minute),
	})
	assert.ErrorIs(t, err, models.ErrAlreadyResolved)
}

func TestResolveDoneFreezePreservedStreakDoesNotReUnlock(t *testing.T) {
	scheduled := time.Date(2026, 6, 10, 6, 0, 0, 0, time.UTC)
	f := newCompletionFixture(scheduled.Add(-time.Hour))

	// Streak held at 7 with a two-day gap ahead: the freeze day preserves
	// it, so no threshold is crossed today.
	last := day(2026, 6, 8)
	f.streaks.put(&models.StreakState{
		Current:          7,
		Best:             9,
		FreezeRemaining:  2,
		LastActivityDate: &last,
	}, 1, "medication")

	_, inst := f.delivered(t, 1, "medication", scheduled)
	_, err := f.machine.Resolve(context.Background(), inst.InstanceID, Resolution{
		Kind: models.ResolutionDone,
		At:   scheduled.Add(5 * time.Minute),
	})
	require.NoError(t, err)

	for _, ev := range f.sink.achievements {
		assert.NotEqualf(t, "week_streak", ev.Achievement.Code,
			"streak preserved at 7 must not re-cross the 7-day threshold")
	}
	assert.Empty(t, f.sink.streaks, "a preserved streak reaches nothing new to celebrate")

	s, err := f.streaks.Get(context.Background(), 1, "medication")
	require.NoError(t, err)
	assert.Equal(t, 7, s.Current)
	assert.Equal(t, 1, s.FreezeRemaining)
}

func TestResolveDoneSecondsEarlyClassifiesEarly(t *testing.T) {
	scheduled := time.Date(2026, 6, 10, 6, 0, 0, 0, time.UTC)
	f := newCompletionFixture(scheduled.Add(-time.Hour))
	_, inst := f.delivered(t, 1, "medication", scheduled)

	rec, err := f.machine.Resolve(context.Background(), inst.InstanceID, Resolution{
		Kind: models.ResolutionDone,
		At:   scheduled.Add(-30 * time.Second),
	})
	require.NoError(t, err)

	assert.Equal(t, -1, rec.DeltaMinutes)
	require.Len(t, f.sink.completions, 1)
	assert.Equal(t, models.TimingEarly, f.sink.completions[0].Timing)
}

func TestResolveDoneSecondsLateStaysOnTime(t *testing.T) {
	scheduled := time.Date(2026, 6, 10, 6, 0, 0, 0, time.UTC)
	f := newCompletionFixture(scheduled.Add(-time.Hour))
	_, inst := f.delivered(t, 1, "medication", scheduled)

	rec, err := f.machine.Resolve(context.Background(), inst.InstanceID, Resolution{
		Kind: models.ResolutionDone,
		At:   scheduled.Add(30 * time.Second),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, rec.DeltaMinutes)
	require.Len(t, f.sink.completions, 1)
	assert.Equal(t, models.TimingOnTime, f.sink.completions[0].Timing)
}

func TestResolveDoneUntrackedSkipsStreak(t *testing.T) {
	now := time.Date(2026, 6, 10, 4, 0, 0, 0, time.UTC)
	f := newCompletionFixture(now)

	def := &models.ReminderDefinition{OwnerID: 1, Domain: "chores", Message: "water plants", Timezone: "UTC"}
	inst, err := f.schedule.CreateReminder(context.Background(), def, recurrence.Rule{
		Kind: recurrence.KindDaily, Hour: 8,
	})
	require.NoError(t, err)
	ok, err := f.insts.MarkDelivered(context.Background(), inst.InstanceID, inst.ScheduledAt)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.machine.Resolve(context.Background(), inst.InstanceID, Resolution{
		Kind: models.ResolutionDone, At: inst.ScheduledAt.Add(time.Minute),
	})
	require.NoError(t, err)

	_, err = f.streaks.Get(context.Background(), 1, "chores")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
