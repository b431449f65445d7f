package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/klcheng/PulseCoach/internal/models"
)

// --- In-memory store fakes ---

type fakeDefs struct {
	mu   sync.Mutex
	seq  int64
	defs map[int64]*models.ReminderDefinition
}

func newFakeDefs() *fakeDefs {
	return &fakeDefs{defs: map[int64]*models.ReminderDefinition{}}
}

func (f *fakeDefs) Create(_ context.Context, def *models.ReminderDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	def.DefinitionID = f.seq
	def.CreatedAt = time.Now().UTC()
	cp := *def
	f.defs[def.DefinitionID] = &cp
	return nil
}

func (f *fakeDefs) GetByID(_ context.Context, id int64) (*models.ReminderDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	def, ok := f.defs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *def
	return &cp, nil
}

func (f *fakeDefs) UpdateRule(_ context.Context, id int64, spec string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	def, ok := f.defs[id]
	if !ok {
		return models.ErrNotFound
	}
	def.RuleSpec = spec
	def.LastError = ""
	return nil
}

func (f *fakeDefs) Deactivate(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	def, ok := f.defs[id]
	if !ok {
		return models.ErrNotFound
	}
	def.Active = false
	def.DeactivatedAt = &at
	return nil
}

func (f *fakeDefs) SetLastError(_ context.Context, id int64, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if def, ok := f.defs[id]; ok {
		def.LastError = msg
	}
	return nil
}

type fakeInstances struct {
	mu    sync.Mutex
	seq   int64
	insts map[int64]*models.ReminderInstance
}

func newFakeInstances() *fakeInstances {
	return &fakeInstances{insts: map[int64]*models.ReminderInstance{}}
}

func (f *fakeInstances) Create(_ context.Context, inst *models.ReminderInstance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, other := range f.insts {
		if other.DefinitionID == inst.DefinitionID && !other.Status.Terminal() {
			return fmt.Errorf("duplicate live instance for definition %d", inst.DefinitionID)
		}
	}
	f.seq++
	inst.InstanceID = f.seq
	inst.CreatedAt = time.Now().UTC()
	cp := *inst
	f.insts[inst.InstanceID] = &cp
	return nil
}

func (f *fakeInstances) GetByID(_ context.Context, id int64) (*models.ReminderInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.insts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *inst
	return &cp, nil
}

func (f *fakeInstances) LiveByDefinition(_ context.Context, defID int64) (*models.ReminderInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inst := range f.insts {
		if inst.DefinitionID == defID && !inst.Status.Terminal() {
			cp := *inst
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeInstances) DuePending(_ context.Context, until time.Time) ([]*models.ReminderInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ReminderInstance
	for _, inst := range f.insts {
		if inst.Status == models.InstancePending && !inst.ScheduledAt.After(until) {
			cp := *inst
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeInstances) OverdueDelivered(_ context.Context, cutoff time.Time) ([]*models.ReminderInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ReminderInstance
	for _, inst := range f.insts {
		if inst.Status == models.InstanceDelivered && inst.DeliveredAt != nil && !inst.DeliveredAt.After(cutoff) {
			cp := *inst
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeInstances) MarkDelivered(_ context.Context, id int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.insts[id]
	if !ok || inst.Status != models.InstancePending {
		return false, nil
	}
	inst.Status = models.InstanceDelivered
	inst.DeliveredAt = &at
	return true, nil
}

func (f *fakeInstances) MarkResolved(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.insts[id]
	if !ok || inst.Status != models.InstanceDelivered {
		return false, nil
	}
	inst.Status = models.InstanceResolved
	return true, nil
}

func (f *fakeInstances) MarkExpired(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.insts[id]
	if !ok || inst.Status.Terminal() {
		return false, nil
	}
	inst.Status = models.InstanceExpired
	return true, nil
}

// liveCount reports non-terminal instances for a definition.
func (f *fakeInstances) liveCount(defID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, inst := range f.insts {
		if inst.DefinitionID == defID && !inst.Status.Terminal() {
			n++
		}
	}
	return n
}

type fakeCompletions struct {
	mu   sync.Mutex
	seq  int64
	recs []*models.CompletionRecord
}

func (f *fakeCompletions) Create(_ context.Context, rec *models.CompletionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	rec.RecordID = f.seq
	rec.CreatedAt = time.Now().UTC()
	cp := *rec
	f.recs = append(f.recs, &cp)
	return nil
}

func (f *fakeCompletions) CountDone(_ context.Context, ownerID int64, domain string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rec := range f.recs {
		if rec.OwnerID == ownerID && rec.Kind == models.ResolutionDone && (domain == "" || rec.Domain == domain) {
			n++
		}
	}
	return n, nil
}

type fakeStreaks struct {
	mu     sync.Mutex
	states map[string]*models.StreakState
}

func newFakeStreaks() *fakeStreaks {
	return &fakeStreaks{states: map[string]*models.StreakState{}}
}

func streakKey(ownerID int64, domain string) string {
	return fmt.Sprintf("%d/%s", ownerID, domain)
}

func (f *fakeStreaks) Get(_ context.Context, ownerID int64, domain string) (*models.StreakState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[streakKey(ownerID, domain)]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStreaks) ListByOwner(_ context.Context, ownerID int64) ([]*models.StreakState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.StreakState
	for _, s := range f.states {
		if s.OwnerID == ownerID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStreaks) put(s *models.StreakState, ownerID int64, domain string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	cp.OwnerID = ownerID
	cp.Domain = domain
	f.states[streakKey(ownerID, domain)] = &cp
}

func (f *fakeStreaks) Mutate(_ context.Context, ownerID int64, domain string, fn func(*models.StreakState)) (models.StreakState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := streakKey(ownerID, domain)
	s, ok := f.states[key]
	if !ok {
		s = &models.StreakState{OwnerID: ownerID, Domain: domain}
		f.states[key] = s
	}
	fn(s)
	s.UpdatedAt = time.Now().UTC()
	return *s, nil
}

// --- Recording sink ---

type recordSink struct {
	mu           sync.Mutex
	delivered    []int64
	completions  []CompletionEvent
	streaks      []StreakEvent
	achievements []AchievementEvent
}

func (s *recordSink) Deliver(_ context.Context, _ *models.ReminderDefinition, inst *models.ReminderInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, inst.InstanceID)
	return nil
}

func (s *recordSink) OnCompletion(_ context.Context, ev CompletionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completions = append(s.completions, ev)
}

func (s *recordSink) OnStreakMilestone(_ context.Context, ev StreakEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaks = append(s.streaks, ev)
}

func (s *recordSink) OnAchievement(_ context.Context, ev AchievementEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.achievements = append(s.achievements, ev)
}

func (s *recordSink) deliveredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}
