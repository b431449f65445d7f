package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/klcheng/PulseCoach/internal/database"
	"github.com/klcheng/PulseCoach/internal/models"
)

type InstanceRepository struct {
	db *database.DB
}

func NewInstanceRepository(db *database.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

const instanceColumns = `instance_id, definition_id, owner_id, domain, scheduled_at, status, delivered_at, created_at`

func scanInstance(row pgx.Row) (*models.ReminderInstance, error) {
	inst := &models.ReminderInstance{}
	err := row.Scan(&inst.InstanceID, &inst.DefinitionID, &inst.OwnerID, &inst.Domain,
		&inst.ScheduledAt, &inst.Status, &inst.DeliveredAt, &inst.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func (r *InstanceRepository) Create(ctx context.Context, inst *models.ReminderInstance) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO reminder_instances (definition_id, owner_id, domain, scheduled_at, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING instance_id, created_at`,
		inst.DefinitionID, inst.OwnerID, inst.Domain, inst.ScheduledAt, inst.Status,
	).Scan(&inst.InstanceID, &inst.CreatedAt)
}

func (r *InstanceRepository) GetByID(ctx context.Context, instanceID int64) (*models.ReminderInstance, error) {
	return scanInstance(r.db.Pool.QueryRow(ctx,
		`SELECT `+instanceColumns+` FROM reminder_instances WHERE instance_id = $1`,
		instanceID,
	))
}

// LiveByDefinition returns the single pending or delivered instance for a
// definition, or ErrNotFound when none exists.
func (r *InstanceRepository) LiveByDefinition(ctx context.Context, definitionID int64) (*models.ReminderInstance, error) {
	return scanInstance(r.db.Pool.QueryRow(ctx,
		`SELECT `+instanceColumns+` FROM reminder_instances
		 WHERE definition_id = $1 AND status IN ('pending', 'delivered')`,
		definitionID,
	))
}

func (r *InstanceRepository) DuePending(ctx context.Context, until time.Time) ([]*models.ReminderInstance, error) {
	return r.queryMany(ctx,
		`SELECT `+instanceColumns+` FROM reminder_instances
		 WHERE status = 'pending' AND scheduled_at <= $1
		 ORDER BY scheduled_at ASC`,
		until,
	)
}

// OverdueDelivered returns delivered instances whose delivery happened at
// or before the cutoff and that were never resolved.
func (r *InstanceRepository) OverdueDelivered(ctx context.Context, cutoff time.Time) ([]*models.ReminderInstance, error) {
	return r.queryMany(ctx,
		`SELECT `+instanceColumns+` FROM reminder_instances
		 WHERE status = 'delivered' AND delivered_at <= $1
		 ORDER BY delivered_at ASC`,
		cutoff,
	)
}

func (r *InstanceRepository) queryMany(ctx context.Context, sql string, args ...any) ([]*models.ReminderInstance, error) {
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []*models.ReminderInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

// MarkDelivered transitions pending -> delivered. Returns false when the
// instance was not pending, so concurrent ticks cannot double-deliver.
func (r *InstanceRepository) MarkDelivered(ctx context.Context, instanceID int64, at time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminder_instances SET status = 'delivered', delivered_at = $1
		 WHERE instance_id = $2 AND status = 'pending'`,
		at, instanceID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkResolved transitions delivered -> resolved. The conditional write is
// the serialization point for duplicate resolution attempts.
func (r *InstanceRepository) MarkResolved(ctx context.Context, instanceID int64) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminder_instances SET status = 'resolved'
		 WHERE instance_id = $1 AND status = 'delivered'`,
		instanceID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkExpired transitions any live instance to expired.
func (r *InstanceRepository) MarkExpired(ctx context.Context, instanceID int64) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminder_instances SET status = 'expired'
		 WHERE instance_id = $1 AND status IN ('pending', 'delivered')`,
		instanceID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
