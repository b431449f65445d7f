package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/klcheng/PulseCoach/internal/models"
	"github.com/klcheng/PulseCoach/internal/recurrence"
)

// ScheduleEngine owns the fire-time computation and the tick heartbeat.
// All pending work is re-derived from the store on every tick, so a
// restart recovers by simply ticking again; there is no in-memory timer
// registry to lose.
type ScheduleEngine struct {
	defs      DefinitionStore
	instances InstanceStore
	sink      Sink
	cfg       Config
	log       zerolog.Logger
	notifyCh  chan struct{}
	now       func() time.Time
}

func NewScheduleEngine(defs DefinitionStore, instances InstanceStore, sink Sink, cfg Config, log zerolog.Logger) *ScheduleEngine {
	return &ScheduleEngine{
		defs:      defs,
		instances: instances,
		sink:      sink,
		cfg:       cfg.withDefaults(),
		log:       log.With().Str("component", "schedule").Logger(),
		notifyCh:  make(chan struct{}, 1),
		now:       time.Now,
	}
}

// Notify triggers an immediate tick. Non-blocking if one is already pending.
func (e *ScheduleEngine) Notify() {
	select {
	case e.notifyCh <- struct{}{}:
	default:
	}
}

// CreateReminder validates the rule, persists the definition and creates
// the first pending instance. A rule that cannot produce a fire instant
// strictly after now is rejected with ErrInvalidRecurrence.
func (e *ScheduleEngine) CreateReminder(ctx context.Context, def *models.ReminderDefinition, rule recurrence.Rule) (*models.ReminderInstance, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(def.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", models.ErrInvalidRecurrence, def.Timezone)
	}

	next, ok, err := rule.Next(e.now(), loc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: rule has no future occurrence", models.ErrInvalidRecurrence)
	}

	def.RuleSpec = rule.Encode()
	def.Active = true
	if err := e.defs.Create(ctx, def); err != nil {
		return nil, err
	}

	inst, err := e.createInstance(ctx, def, next)
	if err != nil {
		return nil, err
	}
	e.Notify()
	return inst, nil
}

// Reschedule replaces a definition's rule, expiring any live instance and
// computing a fresh one under the new rule.
func (e *ScheduleEngine) Reschedule(ctx context.Context, definitionID int64, rule recurrence.Rule) (*models.ReminderInstance, error) {
	def, err := e.defs.GetByID(ctx, definitionID)
	if err != nil {
		return nil, err
	}
	if !def.Active {
		return nil, models.ErrDefinitionInactive
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(def.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", models.ErrInvalidRecurrence, def.Timezone)
	}
	next, ok, err := rule.Next(e.now(), loc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: rule has no future occurrence", models.ErrInvalidRecurrence)
	}

	if err := e.defs.UpdateRule(ctx, definitionID, rule.Encode()); err != nil {
		return nil, err
	}
	def.RuleSpec = rule.Encode()

	if err := e.expireLive(ctx, definitionID); err != nil {
		return nil, err
	}
	return e.createInstance(ctx, def, next)
}

// Cancel deactivates a definition and expires its live instance. History
// is retained; the definition is never physically deleted.
func (e *ScheduleEngine) Cancel(ctx context.Context, definitionID int64) error {
	if err := e.defs.Deactivate(ctx, definitionID, e.now()); err != nil {
		return err
	}
	return e.expireLive(ctx, definitionID)
}

// ScheduleSnoozeFollowUp creates a one-off pending instance at the given
// instant without touching the recurring rule. Called by the completion
// state machine after the snoozed instance has been made terminal.
func (e *ScheduleEngine) ScheduleSnoozeFollowUp(ctx context.Context, inst *models.ReminderInstance, at time.Time) (*models.ReminderInstance, error) {
	def, err := e.defs.GetByID(ctx, inst.DefinitionID)
	if err != nil {
		return nil, err
	}
	if !def.Active {
		return nil, models.ErrDefinitionInactive
	}
	return e.createInstance(ctx, def, at.UTC())
}

// ScheduleNext computes and creates the next occurrence after a terminal
// resolution or expiry. Once rules with no remaining occurrence
// deactivate their definition so the one-live-instance invariant keeps
// holding vacuously.
func (e *ScheduleEngine) ScheduleNext(ctx context.Context, definitionID int64, after time.Time) (*models.ReminderInstance, error) {
	def, err := e.defs.GetByID(ctx, definitionID)
	if err != nil {
		return nil, err
	}
	if !def.Active {
		return nil, nil
	}
	rule, err := recurrence.Parse(def.RuleSpec)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(def.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", models.ErrInvalidRecurrence, def.Timezone)
	}
	next, ok, err := rule.Next(after, loc)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := e.defs.Deactivate(ctx, definitionID, e.now()); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return e.createInstance(ctx, def, next)
}

func (e *ScheduleEngine) createInstance(ctx context.Context, def *models.ReminderDefinition, at time.Time) (*models.ReminderInstance, error) {
	inst := &models.ReminderInstance{
		DefinitionID: def.DefinitionID,
		OwnerID:      def.OwnerID,
		Domain:       def.Domain,
		ScheduledAt:  at.UTC(),
		Status:       models.InstancePending,
	}
	if err := e.instances.Create(ctx, inst); err != nil {
		return nil, err
	}
	e.log.Debug().
		Int64("definition_id", def.DefinitionID).
		Int64("instance_id", inst.InstanceID).
		Time("scheduled_at", inst.ScheduledAt).
		Msg("scheduled instance")
	return inst, nil
}

func (e *ScheduleEngine) expireLive(ctx context.Context, definitionID int64) error {
	live, err := e.instances.LiveByDefinition(ctx, definitionID)
	if err != nil {
		if err == models.ErrNotFound {
			return nil
		}
		return err
	}
	_, err = e.instances.MarkExpired(ctx, live.InstanceID)
	return err
}

// Run drives the heartbeat until the context is cancelled.
func (e *ScheduleEngine) Run(ctx context.Context) error {
	e.log.Info().Dur("interval", e.cfg.CheckInterval).Msg("scheduler started")
	ticker := time.NewTicker(e.cfg.CheckInterval)
	defer ticker.Stop()

	e.Tick(ctx, e.now())

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			e.Tick(ctx, e.now())
		case <-e.notifyCh:
			e.Tick(ctx, e.now())
		}
	}
}

// Tick is one heartbeat: deliver due pending instances, then expire
// delivered instances past the grace window and roll their definitions
// forward. Store reads retry with bounded backoff; exhausted retries are
// logged and the affected work is picked up by a later tick.
func (e *ScheduleEngine) Tick(ctx context.Context, now time.Time) {
	e.deliverDue(ctx, now)
	e.expireOverdue(ctx, now)
}

func (e *ScheduleEngine) deliverDue(ctx context.Context, now time.Time) {
	var due []*models.ReminderInstance
	err := e.withRetry(ctx, func() error {
		var err error
		due, err = e.instances.DuePending(ctx, now)
		return err
	})
	if err != nil {
		e.log.Error().Err(err).Msg("failed to enumerate due instances")
		return
	}

	for _, inst := range due {
		def, err := e.defs.GetByID(ctx, inst.DefinitionID)
		if err != nil {
			e.log.Error().Err(err).Int64("instance_id", inst.InstanceID).Msg("failed to load definition for delivery")
			continue
		}

		ok, err := e.instances.MarkDelivered(ctx, inst.InstanceID, now)
		if err != nil {
			e.log.Error().Err(err).Int64("instance_id", inst.InstanceID).Msg("failed to mark delivered")
			continue
		}
		if !ok {
			// Lost the race to a concurrent tick; that tick delivers.
			continue
		}
		inst.Status = models.InstanceDelivered
		inst.DeliveredAt = &now

		// Delivery must not block the scan: a slow notifier for one user
		// cannot delay everyone else's reminders.
		go func(def *models.ReminderDefinition, inst *models.ReminderInstance) {
			if err := e.sink.Deliver(ctx, def, inst); err != nil {
				e.log.Error().Err(err).
					Int64("instance_id", inst.InstanceID).
					Int64("owner_id", inst.OwnerID).
					Msg("delivery failed")
				return
			}
			e.log.Info().
				Int64("instance_id", inst.InstanceID).
				Int64("owner_id", inst.OwnerID).
				Str("domain", inst.Domain).
				Msg("delivered reminder")
		}(def, inst)
	}
}

func (e *ScheduleEngine) expireOverdue(ctx context.Context, now time.Time) {
	var overdue []*models.ReminderInstance
	err := e.withRetry(ctx, func() error {
		var err error
		overdue, err = e.instances.OverdueDelivered(ctx, now.Add(-e.cfg.GraceWindow))
		return err
	})
	if err != nil {
		e.log.Error().Err(err).Msg("failed to enumerate overdue instances")
		return
	}

	for _, inst := range overdue {
		ok, err := e.instances.MarkExpired(ctx, inst.InstanceID)
		if err != nil {
			e.log.Error().Err(err).Int64("instance_id", inst.InstanceID).Msg("failed to expire instance")
			continue
		}
		if !ok {
			continue
		}
		e.log.Info().
			Int64("instance_id", inst.InstanceID).
			Int64("owner_id", inst.OwnerID).
			Msg("expired unresolved instance")

		// A missed reminder must never block future ones.
		if _, err := e.ScheduleNext(ctx, inst.DefinitionID, now); err != nil {
			e.log.Error().Err(err).Int64("definition_id", inst.DefinitionID).Msg("failed to schedule next occurrence")
			if ferr := e.defs.SetLastError(ctx, inst.DefinitionID, err.Error()); ferr != nil {
				e.log.Error().Err(ferr).Int64("definition_id", inst.DefinitionID).Msg("failed to flag definition")
			}
		}
	}
}

// withRetry runs fn up to three times with linear backoff. Transient
// store failures at the heartbeat are the one place retrying is safe:
// every operation behind it is a read or a conditional write.
func (e *ScheduleEngine) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
		}
	}
	return err
}
