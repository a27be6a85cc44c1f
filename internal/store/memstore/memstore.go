// Package memstore is an in-memory store.Store. Transactions run one at a
// time against a copy of the state that replaces the live state on commit.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/store"
	"github.com/post-analyzer/internal/types"
)

// Seeded plan and provider ids, identical to the Postgres seed migration
const (
	PublicPlanID = "plan-public"
	ProPlanID    = "plan-pro"
)

// DefaultPlans returns the plans every fresh database starts with
func DefaultPlans() []*models.Plan {
	return []*models.Plan{
		{
			ID:                    PublicPlanID,
			Name:                  types.DefaultPlanName,
			Features:              map[string]bool{types.FeatureSpamDetection: false},
			MaxIntegrations:       1,
			MaxTrackedKeywords:    3,
			MaxCompetitors:        1,
			MonthlyTokenAllowance: 10000,
		},
		{
			ID:                    ProPlanID,
			Name:                  "Pro",
			Features:              map[string]bool{types.FeatureSpamDetection: true},
			MaxIntegrations:       5,
			MaxTrackedKeywords:    50,
			MaxCompetitors:        10,
			MonthlyTokenAllowance: 1000000,
		},
	}
}

// DefaultProviders returns the providers every fresh database starts with
func DefaultProviders() []*models.Provider {
	return []*models.Provider{
		{ID: "provider-youtube", Name: "youtube"},
		{ID: "provider-reddit", Name: "reddit"},
	}
}

type state struct {
	users        map[string]*models.User
	integrations map[string]*models.Integration
	resources    map[string]*models.TrackedResource
	tasks        map[string]*models.Task
	subTasks     map[string]*models.SubTask
	invitations  map[string]*models.InvitationToken
}

func newState() *state {
	return &state{
		users:        map[string]*models.User{},
		integrations: map[string]*models.Integration{},
		resources:    map[string]*models.TrackedResource{},
		tasks:        map[string]*models.Task{},
		subTasks:     map[string]*models.SubTask{},
		invitations:  map[string]*models.InvitationToken{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = copyUser(v)
	}
	for k, v := range s.integrations {
		cp := *v
		c.integrations[k] = &cp
	}
	for k, v := range s.resources {
		cp := *v
		c.resources[k] = &cp
	}
	for k, v := range s.tasks {
		c.tasks[k] = copyTask(v)
	}
	for k, v := range s.subTasks {
		cp := *v
		c.subTasks[k] = &cp
	}
	for k, v := range s.invitations {
		c.invitations[k] = copyInvitation(v)
	}
	return c
}

// Store implements store.Store in memory. Plans and providers are reference
// data guarded separately so they stay readable inside a transaction.
type Store struct {
	mu    sync.Mutex
	state *state

	refMu     sync.RWMutex
	plans     map[string]*models.Plan
	providers map[string]*models.Provider
}

// New creates an empty store
func New() *Store {
	return &Store{
		state:     newState(),
		plans:     map[string]*models.Plan{},
		providers: map[string]*models.Provider{},
	}
}

// NewSeeded creates a store holding the default plans and providers
func NewSeeded() *Store {
	s := New()
	for _, p := range DefaultPlans() {
		s.PutPlan(p)
	}
	for _, p := range DefaultProviders() {
		s.PutProvider(p)
	}
	return s
}

// PutPlan inserts or replaces a plan
func (s *Store) PutPlan(plan *models.Plan) {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	s.plans[plan.ID] = copyPlan(plan)
}

// PutProvider inserts or replaces a provider
func (s *Store) PutProvider(provider *models.Provider) {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	cp := *provider
	s.providers[cp.ID] = &cp
}

// WithinTx runs fn against a private copy of the state and publishes the copy
// only when fn returns nil. Transactions are serialized.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(ctx, &txView{store: s, state: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = working
	return nil
}

// Users returns the non-transactional user repository
func (s *Store) Users() store.UserRepository { return &userRepo{run: s.run} }

// Integrations returns the non-transactional integration repository
func (s *Store) Integrations() store.IntegrationRepository {
	return &integrationRepo{run: s.run, lookupProvider: s.providerByName}
}

// Resources returns the non-transactional tracked resource repository
func (s *Store) Resources() store.ResourceRepository { return &resourceRepo{run: s.run} }

// Tasks returns the non-transactional task repository
func (s *Store) Tasks() store.TaskRepository { return &taskRepo{run: s.run} }

// Invitations returns the non-transactional invitation repository
func (s *Store) Invitations() store.InvitationRepository { return &invitationRepo{run: s.run} }

// Plans returns the plan repository
func (s *Store) Plans() store.PlanRepository { return planRepo{store: s} }

// Providers returns the provider repository
func (s *Store) Providers() store.ProviderRepository { return providerRepo{store: s} }

// run executes a single statement against the live state
func (s *Store) run(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

func (s *Store) providerByName(name string) (*models.Provider, bool) {
	s.refMu.RLock()
	defer s.refMu.RUnlock()
	for _, p := range s.providers {
		if p.Name == name {
			cp := *p
			return &cp, true
		}
	}
	return nil, false
}

type txView struct {
	store *Store
	state *state
}

// the transaction already holds the store lock
func (t *txView) run(fn func(st *state) error) error { return fn(t.state) }

func (t *txView) Users() store.UserRepository { return &userRepo{run: t.run} }
func (t *txView) Integrations() store.IntegrationRepository {
	return &integrationRepo{run: t.run, lookupProvider: t.store.providerByName}
}
func (t *txView) Resources() store.ResourceRepository     { return &resourceRepo{run: t.run} }
func (t *txView) Tasks() store.TaskRepository             { return &taskRepo{run: t.run} }
func (t *txView) Invitations() store.InvitationRepository { return &invitationRepo{run: t.run} }

type runner func(fn func(st *state) error) error

// Users

type userRepo struct{ run runner }

func (r *userRepo) Create(_ context.Context, user *models.User) error {
	return r.run(func(st *state) error {
		if _, ok := st.users[user.ID]; ok {
			return store.ErrConflict
		}
		for _, u := range st.users {
			if strings.EqualFold(u.Email, user.Email) {
				return store.ErrConflict
			}
		}
		now := time.Now().UTC()
		if user.CreatedAt.IsZero() {
			user.CreatedAt = now
		}
		user.UpdatedAt = now
		st.users[user.ID] = copyUser(user)
		return nil
	})
}

func (r *userRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	var out *models.User
	err := r.run(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return store.ErrNotFound
		}
		out = copyUser(u)
		return nil
	})
	return out, err
}

// GetForUpdate needs no lock of its own; transactions are already serialized
func (r *userRepo) GetForUpdate(ctx context.Context, id string) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	var out *models.User
	err := r.run(func(st *state) error {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, email) {
				out = copyUser(u)
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (r *userRepo) UpdatePlan(_ context.Context, userID, planID string) error {
	return r.run(func(st *state) error {
		u, ok := st.users[userID]
		if !ok {
			return store.ErrNotFound
		}
		u.PlanID = planID
		u.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *userRepo) UpdateFeatureFlags(_ context.Context, userID string, flags map[string]bool) error {
	return r.run(func(st *state) error {
		u, ok := st.users[userID]
		if !ok {
			return store.ErrNotFound
		}
		u.FeatureFlags = copyFlags(flags)
		u.UpdatedAt = time.Now().UTC()
		return nil
	})
}

// Plans and providers

type planRepo struct{ store *Store }

func (r planRepo) GetByID(_ context.Context, id string) (*models.Plan, error) {
	r.store.refMu.RLock()
	defer r.store.refMu.RUnlock()
	p, ok := r.store.plans[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyPlan(p), nil
}

func (r planRepo) GetByName(_ context.Context, name string) (*models.Plan, error) {
	r.store.refMu.RLock()
	defer r.store.refMu.RUnlock()
	for _, p := range r.store.plans {
		if p.Name == name {
			return copyPlan(p), nil
		}
	}
	return nil, store.ErrNotFound
}

type providerRepo struct{ store *Store }

func (r providerRepo) GetByName(_ context.Context, name string) (*models.Provider, error) {
	p, ok := r.store.providerByName(name)
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

// Integrations

type integrationRepo struct {
	run            runner
	lookupProvider func(name string) (*models.Provider, bool)
}

func (r *integrationRepo) Create(_ context.Context, integration *models.Integration) error {
	provider, ok := r.lookupProvider(integration.ProviderName)
	if !ok {
		return store.ErrNotFound
	}
	return r.run(func(st *state) error {
		if _, exists := st.integrations[integration.ID]; exists {
			return store.ErrConflict
		}
		if integration.IsActive {
			for _, existing := range st.integrations {
				if existing.IsActive && existing.UserID == integration.UserID && existing.ProviderID == provider.ID {
					return store.ErrConflict
				}
			}
		}
		now := time.Now().UTC()
		integration.ProviderID = provider.ID
		if integration.CreatedAt.IsZero() {
			integration.CreatedAt = now
		}
		integration.UpdatedAt = now
		cp := *integration
		st.integrations[cp.ID] = &cp
		return nil
	})
}

func (r *integrationRepo) GetByUserAndProvider(_ context.Context, userID, providerName string) (*models.Integration, error) {
	var out *models.Integration
	err := r.run(func(st *state) error {
		var best *models.Integration
		for _, in := range st.integrations {
			if in.UserID != userID || in.ProviderName != providerName {
				continue
			}
			switch {
			case best == nil:
				best = in
			case in.IsActive && !best.IsActive:
				best = in
			case in.IsActive == best.IsActive && in.UpdatedAt.After(best.UpdatedAt):
				best = in
			}
		}
		if best == nil {
			return store.ErrNotFound
		}
		cp := *best
		out = &cp
		return nil
	})
	return out, err
}

func (r *integrationRepo) Deactivate(_ context.Context, userID, providerName string) (bool, error) {
	changed := false
	err := r.run(func(st *state) error {
		for _, in := range st.integrations {
			if in.UserID == userID && in.ProviderName == providerName && in.IsActive {
				in.IsActive = false
				in.UpdatedAt = time.Now().UTC()
				changed = true
			}
		}
		return nil
	})
	return changed, err
}

func (r *integrationRepo) CountActiveByUser(_ context.Context, userID string) (int, error) {
	count := 0
	err := r.run(func(st *state) error {
		for _, in := range st.integrations {
			if in.UserID == userID && in.IsActive {
				count++
			}
		}
		return nil
	})
	return count, err
}

// Tracked resources

type resourceRepo struct{ run runner }

func (r *resourceRepo) Create(_ context.Context, resource *models.TrackedResource) error {
	return r.run(func(st *state) error {
		for _, existing := range st.resources {
			if existing.ID == resource.ID ||
				(existing.UserID == resource.UserID && existing.Kind == resource.Kind && existing.Value == resource.Value) {
				return store.ErrConflict
			}
		}
		if resource.CreatedAt.IsZero() {
			resource.CreatedAt = time.Now().UTC()
		}
		cp := *resource
		st.resources[cp.ID] = &cp
		return nil
	})
}

func (r *resourceRepo) CountByUser(_ context.Context, userID string, kind types.ResourceKind) (int, error) {
	count := 0
	err := r.run(func(st *state) error {
		for _, res := range st.resources {
			if res.UserID == userID && res.Kind == kind {
				count++
			}
		}
		return nil
	})
	return count, err
}

// Tasks

type taskRepo struct{ run runner }

func (r *taskRepo) CreateTask(_ context.Context, task *models.Task) error {
	return r.run(func(st *state) error {
		if _, ok := st.tasks[task.ID]; ok {
			return store.ErrConflict
		}
		now := time.Now().UTC()
		if task.CreatedAt.IsZero() {
			task.CreatedAt = now
		}
		task.UpdatedAt = now
		st.tasks[task.ID] = copyTask(task)
		return nil
	})
}

func (r *taskRepo) CreateSubTask(_ context.Context, subTask *models.SubTask) error {
	return r.run(func(st *state) error {
		if _, ok := st.tasks[subTask.TaskID]; !ok {
			return store.ErrNotFound
		}
		if _, ok := st.subTasks[subTask.ID]; ok {
			return store.ErrConflict
		}
		now := time.Now().UTC()
		if subTask.CreatedAt.IsZero() {
			subTask.CreatedAt = now
		}
		subTask.UpdatedAt = now
		cp := *subTask
		st.subTasks[cp.ID] = &cp
		return nil
	})
}

func (r *taskRepo) GetTask(_ context.Context, id string) (*models.Task, error) {
	var out *models.Task
	err := r.run(func(st *state) error {
		t, ok := st.tasks[id]
		if !ok {
			return store.ErrNotFound
		}
		out = copyTask(t)
		return nil
	})
	return out, err
}

func (r *taskRepo) GetSubTask(_ context.Context, id string) (*models.SubTask, error) {
	var out *models.SubTask
	err := r.run(func(st *state) error {
		sub, ok := st.subTasks[id]
		if !ok {
			return store.ErrNotFound
		}
		cp := *sub
		out = &cp
		return nil
	})
	return out, err
}

func (r *taskRepo) ListSubTasks(_ context.Context, taskID string) ([]*models.SubTask, error) {
	var out []*models.SubTask
	err := r.run(func(st *state) error {
		for _, sub := range st.subTasks {
			if sub.TaskID == taskID {
				cp := *sub
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (r *taskRepo) GetTaskForUpdate(ctx context.Context, id string) (*models.Task, error) {
	// transactions are already serialized
	return r.GetTask(ctx, id)
}

func (r *taskRepo) UpdateTaskStatus(_ context.Context, id string, from, to types.TaskStatus) (bool, error) {
	changed := false
	err := r.run(func(st *state) error {
		t, ok := st.tasks[id]
		if !ok {
			return store.ErrNotFound
		}
		if from.IsTerminal() || t.Status != from {
			return nil
		}
		t.Status = to
		t.UpdatedAt = time.Now().UTC()
		changed = true
		return nil
	})
	return changed, err
}

func (r *taskRepo) UpdateSubTaskStatus(_ context.Context, id string, from, to types.TaskStatus) (bool, error) {
	changed := false
	err := r.run(func(st *state) error {
		sub, ok := st.subTasks[id]
		if !ok {
			return store.ErrNotFound
		}
		if from.IsTerminal() || sub.Status != from {
			return nil
		}
		sub.Status = to
		sub.UpdatedAt = time.Now().UTC()
		changed = true
		return nil
	})
	return changed, err
}

// Invitations

type invitationRepo struct{ run runner }

func (r *invitationRepo) Create(_ context.Context, token *models.InvitationToken) error {
	return r.run(func(st *state) error {
		if _, ok := st.invitations[token.Token]; ok {
			return store.ErrConflict
		}
		if token.CreatedAt.IsZero() {
			token.CreatedAt = time.Now().UTC()
		}
		st.invitations[token.Token] = copyInvitation(token)
		return nil
	})
}

func (r *invitationRepo) GetByToken(_ context.Context, token string) (*models.InvitationToken, error) {
	var out *models.InvitationToken
	err := r.run(func(st *state) error {
		t, ok := st.invitations[token]
		if !ok {
			return store.ErrNotFound
		}
		out = copyInvitation(t)
		return nil
	})
	return out, err
}

func (r *invitationRepo) MarkUsed(_ context.Context, token, userID string, at time.Time) (bool, error) {
	changed := false
	err := r.run(func(st *state) error {
		t, ok := st.invitations[token]
		if !ok || t.Status != types.TokenStatusPending {
			return nil
		}
		redeemer := userID
		redeemedAt := at
		t.Status = types.TokenStatusUsed
		t.RedeemedByUserID = &redeemer
		t.RedeemedAt = &redeemedAt
		changed = true
		return nil
	})
	return changed, err
}

func (r *invitationRepo) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.run(func(st *state) error {
		for _, t := range st.invitations {
			if t.Status == types.TokenStatusPending && now.After(t.ExpiresAt) {
				t.Status = types.TokenStatusExpired
				n++
			}
		}
		return nil
	})
	return n, err
}

// copies keep callers from aliasing stored rows

func copyFlags(in map[string]bool) map[string]bool {
	if in == nil {
		return nil
	}
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyUser(u *models.User) *models.User {
	cp := *u
	cp.FeatureFlags = copyFlags(u.FeatureFlags)
	return &cp
}

func copyPlan(p *models.Plan) *models.Plan {
	cp := *p
	cp.Features = copyFlags(p.Features)
	return &cp
}

func copyTask(t *models.Task) *models.Task {
	cp := *t
	if t.IntegrationID != nil {
		id := *t.IntegrationID
		cp.IntegrationID = &id
	}
	if t.ExtraData != nil {
		cp.ExtraData = make(map[string]any, len(t.ExtraData))
		for k, v := range t.ExtraData {
			cp.ExtraData[k] = v
		}
	}
	return &cp
}

func copyInvitation(t *models.InvitationToken) *models.InvitationToken {
	cp := *t
	if t.RedeemedByUserID != nil {
		id := *t.RedeemedByUserID
		cp.RedeemedByUserID = &id
	}
	if t.RedeemedAt != nil {
		at := *t.RedeemedAt
		cp.RedeemedAt = &at
	}
	return &cp
}
