package engine

import (
	"context"
	"time"

	"github.com/klcheng/PulseCoach/internal/models"
)

// Reporter serves the adherence query surface for dashboards and the
// bot's report command.
type Reporter struct {
	adherence AdherenceStore
	streaks   StreakStore
}

func NewReporter(adherence AdherenceStore, streaks StreakStore) *Reporter {
	return &Reporter{adherence: adherence, streaks: streaks}
}

// QueryAdherence aggregates settled instances over [from, to). With a
// domain the streak counters are that pair's; without one they are the
// maximum across the owner's domains.
func (r *Reporter) QueryAdherence(ctx context.Context, ownerID int64, domain string, from, to time.Time) (*models.AdherenceReport, error) {
	rep, err := r.adherence.Report(ctx, ownerID, domain, from, to)
	if err != nil {
		return nil, err
	}

	if domain != "" {
		s, err := r.streaks.Get(ctx, ownerID, domain)
		if err != nil && err != models.ErrNotFound {
			return nil, err
		}
		if err == nil {
			rep.CurrentStreak = s.Current
			rep.BestStreak = s.Best
		}
		return rep, nil
	}

	states, err := r.streaks.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, s := range states {
		if s.Current > rep.CurrentStreak {
			rep.CurrentStreak = s.Current
		}
		if s.Best > rep.BestStreak {
			rep.BestStreak = s.Best
		}
	}
	return rep, nil
}
