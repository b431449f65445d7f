package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/klcheng/PulseCoach/internal/models"
)

// StreakEngine maintains per (owner, domain) consistency counters.
// Updates run inside the store's row-locked transaction, so two
// completions in the same domain resolving back to back cannot lose an
// update.
type StreakEngine struct {
	store StreakStore
	sink  Sink
	cfg   Config
	log   zerolog.Logger
}

func NewStreakEngine(store StreakStore, sink Sink, cfg Config, log zerolog.Logger) *StreakEngine {
	return &StreakEngine{
		store: store,
		sink:  sink,
		cfg:   cfg.withDefaults(),
		log:   log.With().Str("component", "streak").Logger(),
	}
}

// RecordActivity registers a qualifying activity on the owner-local
// calendar date. At most one increment per day per domain; repeated
// same-day activity and out-of-order dates are no-ops.
func (se *StreakEngine) RecordActivity(ctx context.Context, ownerID int64, domain string, date time.Time) (models.StreakUpdate, error) {
	var upd models.StreakUpdate
	_, err := se.store.Mutate(ctx, ownerID, domain, func(s *models.StreakState) {
		if s.LastActivityDate == nil && s.FreezeRemaining == 0 && s.FreezeUsed == 0 {
			s.FreezeRemaining = se.cfg.DefaultFreezeDays
		}
		upd = applyActivity(s, date)
	})
	if err != nil {
		return models.StreakUpdate{}, err
	}

	if upd.Changed {
		se.log.Info().
			Int64("owner_id", ownerID).
			Str("domain", domain).
			Int("current", upd.Current).
			Int("best", upd.Best).
			Bool("new_best", upd.IsNewBest).
			Int("used_freeze", upd.UsedFreeze).
			Msg("streak updated")
	}

	// A freeze-preserved streak has Prior == Current: nothing was
	// reached today, so nothing is celebrated again.
	if upd.Changed && upd.Current != upd.Prior && (upd.IsNewBest || isStreakMilestone(upd.Current)) {
		ev := StreakEvent{
			EventID: uuid.New(),
			OwnerID: ownerID,
			Domain:  domain,
			Update:  upd,
		}
		if isStreakMilestone(upd.Current) {
			ev.Milestone = upd.Current
		}
		se.sink.OnStreakMilestone(ctx, ev)
	}
	return upd, nil
}

// GrantFreezeDays tops up the protective allowance. Replenishment cadence
// belongs to the caller (an operator job), not the engine.
func (se *StreakEngine) GrantFreezeDays(ctx context.Context, ownerID int64, domain string, n int) (models.StreakState, error) {
	if n <= 0 {
		return models.StreakState{}, fmt.Errorf("freeze day grant must be positive, got %d", n)
	}
	return se.store.Mutate(ctx, ownerID, domain, func(s *models.StreakState) {
		s.FreezeRemaining += n
		s.FreezeUsed = 0
	})
}

// Get returns the streak state, or a zero-valued state when none exists
// yet for the pair.
func (se *StreakEngine) Get(ctx context.Context, ownerID int64, domain string) (*models.StreakState, error) {
	s, err := se.store.Get(ctx, ownerID, domain)
	if err == models.ErrNotFound {
		return &models.StreakState{OwnerID: ownerID, Domain: domain}, nil
	}
	return s, err
}

// applyActivity is the streak transition function. date must be a
// LocalDate-normalized calendar date. Skipped resolutions never reach
// here: only true gaps with no resolution at all draw down the freeze
// allowance.
func applyActivity(s *models.StreakState, date time.Time) models.StreakUpdate {
	upd := models.StreakUpdate{Prior: s.Current, Current: s.Current, Best: s.Best}

	if s.LastActivityDate == nil {
		s.Current = 1
		if s.Best < 1 {
			s.Best = 1
			upd.IsNewBest = true
		}
		s.LastActivityDate = &date
		upd.Current, upd.Best, upd.Changed = s.Current, s.Best, true
		return upd
	}

	gap := models.DaysBetween(*s.LastActivityDate, date)
	switch {
	case gap <= 0:
		// Same-day repeat or out-of-order event: never decrement.
		return upd

	case gap == 1:
		s.Current++
		if s.Current > s.Best {
			s.Best = s.Current
			upd.IsNewBest = true
		}

	case gap <= s.FreezeRemaining+1:
		// Short lapse covered by freeze days: preserved, not incremented.
		used := gap - 1
		s.FreezeRemaining -= used
		s.FreezeUsed += used
		upd.UsedFreeze = used

	default:
		s.Current = 1
		s.FreezeUsed = 0
		upd.BrokeStreak = true
	}

	s.LastActivityDate = &date
	upd.Current, upd.Best, upd.Changed = s.Current, s.Best, true
	return upd
}
