package repository

import (
	"context"
	"time"

	"github.com/klcheng/PulseCoach/internal/database"
	"github.com/klcheng/PulseCoach/internal/models"
)

type UserSettingsRepository struct {
	db *database.DB
}

func NewUserSettingsRepository(db *database.DB) *UserSettingsRepository {
	return &UserSettingsRepository{db: db}
}

// GetOrCreate returns the owner's settings, seeding a row with the given
// timezone on first contact.
func (r *UserSettingsRepository) GetOrCreate(ctx context.Context, ownerID int64, defaultTZ string) (*models.UserSettings, error) {
	s := &models.UserSettings{}
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO user_settings (owner_id, timezone) VALUES ($1, $2)
		 ON CONFLICT (owner_id) DO UPDATE SET owner_id = EXCLUDED.owner_id
		 RETURNING owner_id, timezone, updated_at`,
		ownerID, defaultTZ,
	).Scan(&s.OwnerID, &s.Timezone, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *UserSettingsRepository) SetTimezone(ctx context.Context, ownerID int64, tz string) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO user_settings (owner_id, timezone, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (owner_id) DO UPDATE SET timezone = EXCLUDED.timezone, updated_at = EXCLUDED.updated_at`,
		ownerID, tz, time.Now().UTC(),
	)
	return err
}
