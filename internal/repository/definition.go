package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/klcheng/PulseCoach/internal/database"
	"github.com/klcheng/PulseCoach/internal/models"
)

type DefinitionRepository struct {
	db *database.DB
}

func NewDefinitionRepository(db *database.DB) *DefinitionRepository {
	return &DefinitionRepository{db: db}
}

const definitionColumns = `definition_id, owner_id, domain, message, rule_spec, timezone, active, tracked, last_error, created_at, deactivated_at`

func scanDefinition(row pgx.Row) (*models.ReminderDefinition, error) {
	def := &models.ReminderDefinition{}
	err := row.Scan(&def.DefinitionID, &def.OwnerID, &def.Domain, &def.Message, &def.RuleSpec,
		&def.Timezone, &def.Active, &def.Tracked, &def.LastError, &def.CreatedAt, &def.DeactivatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return def, nil
}

func (r *DefinitionRepository) Create(ctx context.Context, def *models.ReminderDefinition) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO reminder_definitions (owner_id, domain, message, rule_spec, timezone, active, tracked)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING definition_id, created_at`,
		def.OwnerID, def.Domain, def.Message, def.RuleSpec, def.Timezone, def.Active, def.Tracked,
	).Scan(&def.DefinitionID, &def.CreatedAt)
}

func (r *DefinitionRepository) GetByID(ctx context.Context, definitionID int64) (*models.ReminderDefinition, error) {
	return scanDefinition(r.db.Pool.QueryRow(ctx,
		`SELECT `+definitionColumns+` FROM reminder_definitions WHERE definition_id = $1`,
		definitionID,
	))
}

func (r *DefinitionRepository) GetByOwner(ctx context.Context, ownerID int64) ([]*models.ReminderDefinition, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+definitionColumns+` FROM reminder_definitions
		 WHERE owner_id = $1 AND active = true ORDER BY created_at ASC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []*models.ReminderDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (r *DefinitionRepository) UpdateRule(ctx context.Context, definitionID int64, ruleSpec string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminder_definitions SET rule_spec = $1, last_error = '' WHERE definition_id = $2`,
		ruleSpec, definitionID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Deactivate soft-disables a definition; history stays intact.
func (r *DefinitionRepository) Deactivate(ctx context.Context, definitionID int64, at time.Time) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminder_definitions SET active = false, deactivated_at = $1 WHERE definition_id = $2`,
		at, definitionID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetLastError flags a definition whose scheduling failed after retries.
func (r *DefinitionRepository) SetLastError(ctx context.Context, definitionID int64, msg string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE reminder_definitions SET last_error = $1 WHERE definition_id = $2`,
		msg, definitionID,
	)
	return err
}
