package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/klcheng/PulseCoach/internal/database"
	"github.com/klcheng/PulseCoach/internal/models"
)

type CompletionRepository struct {
	db *database.DB
}

func NewCompletionRepository(db *database.DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

func (r *CompletionRepository) Create(ctx context.Context, rec *models.CompletionRecord) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO completion_records (instance_id, owner_id, domain, kind, resolved_at, delta_minutes, note, skip_reason, snoozed_to)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING record_id, created_at`,
		rec.InstanceID, rec.OwnerID, rec.Domain, rec.Kind, rec.ResolvedAt,
		rec.DeltaMinutes, rec.Note, rec.SkipReason, rec.SnoozedTo,
	).Scan(&rec.RecordID, &rec.CreatedAt)
}

func (r *CompletionRepository) GetByInstance(ctx context.Context, instanceID int64) (*models.CompletionRecord, error) {
	rec := &models.CompletionRecord{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT record_id, instance_id, owner_id, domain, kind, resolved_at, delta_minutes, note, skip_reason, snoozed_to, created_at
		 FROM completion_records WHERE instance_id = $1`,
		instanceID,
	).Scan(&rec.RecordID, &rec.InstanceID, &rec.OwnerID, &rec.Domain, &rec.Kind, &rec.ResolvedAt,
		&rec.DeltaMinutes, &rec.Note, &rec.SkipReason, &rec.SnoozedTo, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// CountDone counts terminal done resolutions for an owner, optionally
// narrowed to one domain.
func (r *CompletionRepository) CountDone(ctx context.Context, ownerID int64, domain string) (int, error) {
	var n int
	var err error
	if domain == "" {
		err = r.db.Pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM completion_records WHERE owner_id = $1 AND kind = 'done'`,
			ownerID,
		).Scan(&n)
	} else {
		err = r.db.Pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM completion_records WHERE owner_id = $1 AND domain = $2 AND kind = 'done'`,
			ownerID, domain,
		).Scan(&n)
	}
	return n, err
}
