package repository

import (
	"context"
	"time"

	"github.com/klcheng/PulseCoach/internal/database"
	"github.com/klcheng/PulseCoach/internal/models"
)

// AdherenceRepository serves the reporting queries. It reads the same
// tables the engine writes; it never mutates anything.
type AdherenceRepository struct {
	db *database.DB
}

func NewAdherenceRepository(db *database.DB) *AdherenceRepository {
	return &AdherenceRepository{db: db}
}

// Report aggregates instance outcomes for an owner over [from, to).
// domain narrows the report when non-empty. Pending and delivered
// instances are excluded: only settled occurrences count toward the rate.
func (r *AdherenceRepository) Report(ctx context.Context, ownerID int64, domain string, from, to time.Time) (*models.AdherenceReport, error) {
	rep := &models.AdherenceReport{OwnerID: ownerID, Domain: domain, From: from, To: to}

	err := r.db.Pool.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE i.status IN ('resolved', 'expired')),
		   COUNT(*) FILTER (WHERE c.kind = 'done'),
		   COUNT(*) FILTER (WHERE c.kind = 'skipped')
		 FROM reminder_instances i
		 LEFT JOIN completion_records c ON c.instance_id = i.instance_id
		 WHERE i.owner_id = $1
		   AND ($2 = '' OR i.domain = $2)
		   AND i.scheduled_at >= $3 AND i.scheduled_at < $4`,
		ownerID, domain, from, to,
	).Scan(&rep.Scheduled, &rep.Completed, &rep.Skipped)
	if err != nil {
		return nil, err
	}

	if rep.Scheduled > 0 {
		rep.CompletionRate = float64(rep.Completed) / float64(rep.Scheduled)
	}

	rows, err := r.db.Pool.Query(ctx,
		`SELECT scheduled_at FROM reminder_instances
		 WHERE owner_id = $1
		   AND ($2 = '' OR domain = $2)
		   AND scheduled_at >= $3 AND scheduled_at < $4
		   AND status = 'expired'
		 ORDER BY scheduled_at ASC`,
		ownerID, domain, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, err
		}
		rep.MissedDates = append(rep.MissedDates, at)
	}
	return rep, rows.Err()
}
