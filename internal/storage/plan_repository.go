package storage

import (
	"context"
	"fmt"

	"github.com/post-analyzer/internal/models"
)

// PlanRepository reads plans straight from Postgres
type PlanRepository struct {
	q querier
}

// NewPlanRepository creates a plan repository on q
func NewPlanRepository(q querier) *PlanRepository {
	return &PlanRepository{q: q}
}

const planColumns = `id, name, features, max_integrations, max_tracked_keywords, max_competitors, monthly_token_allowance`

// GetByID retrieves a plan by ID
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*models.Plan, error) {
	return r.getOne(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id)
}

// GetByName retrieves a plan by its unique name
func (r *PlanRepository) GetByName(ctx context.Context, name string) (*models.Plan, error) {
	return r.getOne(ctx, `SELECT `+planColumns+` FROM plans WHERE name = $1`, name)
}

func (r *PlanRepository) getOne(ctx context.Context, query, arg string) (*models.Plan, error) {
	var plan models.Plan
	var featuresJSON []byte

	err := r.q.QueryRow(ctx, query, arg).Scan(
		&plan.ID,
		&plan.Name,
		&featuresJSON,
		&plan.MaxIntegrations,
		&plan.MaxTrackedKeywords,
		&plan.MaxCompetitors,
		&plan.MonthlyTokenAllowance,
	)
	if err != nil {
		return nil, mapError("get plan", err)
	}

	features, ignored, err := decodeFlags(featuresJSON)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", plan.ID, err)
	}
	plan.Features = map[string]bool{}
	for name, enabled := range features {
		plan.Features[name] = enabled
	}
	// a plan feature that is not a boolean is off
	for _, name := range ignored {
		plan.Features[name] = false
	}
	return &plan, nil
}

// ProviderRepository reads providers
type ProviderRepository struct {
	q querier
}

// GetByName retrieves a provider by its lower-case name
func (r *ProviderRepository) GetByName(ctx context.Context, name string) (*models.Provider, error) {
	var p models.Provider
	err := r.q.QueryRow(ctx, `SELECT id, name FROM providers WHERE name = $1`, name).Scan(&p.ID, &p.Name)
	if err != nil {
		return nil, mapError("get provider", err)
	}
	return &p, nil
}
