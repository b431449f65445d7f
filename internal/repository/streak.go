package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/klcheng/PulseCoach/internal/database"
	"github.com/klcheng/PulseCoach/internal/models"
)

type StreakRepository struct {
	db *database.DB
}

func NewStreakRepository(db *database.DB) *StreakRepository {
	return &StreakRepository{db: db}
}

func (r *StreakRepository) Get(ctx context.Context, ownerID int64, domain string) (*models.StreakState, error) {
	return scanStreak(r.db.Pool.QueryRow(ctx,
		`SELECT owner_id, domain, current_streak, best_streak, last_activity_date, freeze_remaining, freeze_used, updated_at
		 FROM streak_states WHERE owner_id = $1 AND domain = $2`,
		ownerID, domain,
	))
}

func (r *StreakRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*models.StreakState, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT owner_id, domain, current_streak, best_streak, last_activity_date, freeze_remaining, freeze_used, updated_at
		 FROM streak_states WHERE owner_id = $1 ORDER BY domain ASC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*models.StreakState
	for rows.Next() {
		s, err := scanStreak(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

func scanStreak(row pgx.Row) (*models.StreakState, error) {
	s := &models.StreakState{}
	err := row.Scan(&s.OwnerID, &s.Domain, &s.Current, &s.Best,
		&s.LastActivityDate, &s.FreezeRemaining, &s.FreezeUsed, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Mutate runs fn against the (owner, domain) streak row inside one
// transaction, holding a row lock for the duration. The row is created
// first if it does not exist, so concurrent updates for the same pair
// serialize on the lock and lost updates cannot occur.
func (r *StreakRepository) Mutate(ctx context.Context, ownerID int64, domain string, fn func(*models.StreakState)) (models.StreakState, error) {
	var out models.StreakState
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return out, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO streak_states (owner_id, domain) VALUES ($1, $2)
		 ON CONFLICT (owner_id, domain) DO NOTHING`,
		ownerID, domain,
	)
	if err != nil {
		return out, err
	}

	s, err := scanStreak(tx.QueryRow(ctx,
		`SELECT owner_id, domain, current_streak, best_streak, last_activity_date, freeze_remaining, freeze_used, updated_at
		 FROM streak_states WHERE owner_id = $1 AND domain = $2 FOR UPDATE`,
		ownerID, domain,
	))
	if err != nil {
		return out, err
	}

	fn(s)
	s.UpdatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx,
		`UPDATE streak_states
		 SET current_streak = $1, best_streak = $2, last_activity_date = $3, freeze_remaining = $4, freeze_used = $5, updated_at = $6
		 WHERE owner_id = $7 AND domain = $8`,
		s.Current, s.Best, s.LastActivityDate, s.FreezeRemaining, s.FreezeUsed, s.UpdatedAt,
		ownerID, domain,
	)
	if err != nil {
		return out, err
	}

	if err := tx.Commit(ctx); err != nil {
		return out, err
	}
	return *s, nil
}
