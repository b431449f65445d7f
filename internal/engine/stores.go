package engine

import (
	"context"
	"time"

	"github.com/klcheng/PulseCoach/internal/models"
)

// Store interfaces are the persistence seams the engines work through.
// internal/repository provides the Postgres implementations; tests use
// in-memory fakes. Conditional transitions return false when the prior
// state did not match, which is the concurrency guard the engines rely on.

type DefinitionStore interface {
	Create(ctx context.Context, def *models.ReminderDefinition) error
	GetByID(ctx context.Context, definitionID int64) (*models.ReminderDefinition, error)
	UpdateRule(ctx context.Context, definitionID int64, ruleSpec string) error
	Deactivate(ctx context.Context, definitionID int64, at time.Time) error
	SetLastError(ctx context.Context, definitionID int64, msg string) error
}

type InstanceStore interface {
	Create(ctx context.Context, inst *models.ReminderInstance) error
	GetByID(ctx context.Context, instanceID int64) (*models.ReminderInstance, error)
	LiveByDefinition(ctx context.Context, definitionID int64) (*models.ReminderInstance, error)
	DuePending(ctx context.Context, until time.Time) ([]*models.ReminderInstance, error)
	OverdueDelivered(ctx context.Context, cutoff time.Time) ([]*models.ReminderInstance, error)
	MarkDelivered(ctx context.Context, instanceID int64, at time.Time) (bool, error)
	MarkResolved(ctx context.Context, instanceID int64) (bool, error)
	MarkExpired(ctx context.Context, instanceID int64) (bool, error)
}

type CompletionStore interface {
	Create(ctx context.Context, rec *models.CompletionRecord) error
	CountDone(ctx context.Context, ownerID int64, domain string) (int, error)
}

type StreakStore interface {
	Get(ctx context.Context, ownerID int64, domain string) (*models.StreakState, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.StreakState, error)
	Mutate(ctx context.Context, ownerID int64, domain string, fn func(*models.StreakState)) (models.StreakState, error)
}

type AdherenceStore interface {
	Report(ctx context.Context, ownerID int64, domain string, from, to time.Time) (*models.AdherenceReport, error)
}
