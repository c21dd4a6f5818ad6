// Package catalog manages the purchasable access plans.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wifi-admission-backend/internal/auth"
	"wifi-admission-backend/internal/model"
	"wifi-admission-backend/internal/store"
)

var (
	ErrInvalidPlan = errors.New("invalid plan")
	ErrNotFound    = errors.New("plan not found")
)

// Fields is what an admin supplies to create a plan.
type Fields struct {
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
	DataLimitMB     int     `json:"data_limit_mb"`
}

func (f Fields) validate() error {
	switch {
	case strings.TrimSpace(f.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidPlan)
	case f.DurationMinutes <= 0:
		return fmt.Errorf("%w: duration_minutes must be positive", ErrInvalidPlan)
	case f.Price < 0:
		return fmt.Errorf("%w: price must not be negative", ErrInvalidPlan)
	case f.DataLimitMB < 0:
		return fmt.Errorf("%w: data_limit_mb must not be negative", ErrInvalidPlan)
	}
	return nil
}

// OnChange is called after every successful mutation, for cache invalidation.
type OnChange func()

type Catalog struct {
	plans    store.PlanStore
	onChange OnChange
}

func New(plans store.PlanStore, onChange OnChange) *Catalog {
	if onChange == nil {
		onChange = func() {}
	}
	return &Catalog{plans: plans, onChange: onChange}
}

func (c *Catalog) List(ctx context.Context) ([]model.Plan, error) {
	return c.plans.ListPlans(ctx)
}

func (c *Catalog) Get(ctx context.Context, id int64) (*model.Plan, error) {
	plan, err := c.plans.GetPlan(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return plan, err
}

func (c *Catalog) Create(ctx context.Context, admin auth.Admin, f Fields) (*model.Plan, error) {
	if err := auth.Require(admin); err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}

	plan := &model.Plan{
		Name:            strings.TrimSpace(f.Name),
		DurationMinutes: f.DurationMinutes,
		Price:           f.Price,
		DataLimitMB:     f.DataLimitMB,
	}
	if err := c.plans.CreatePlan(ctx, plan); err != nil {
		return nil, err
	}
	c.onChange()
	return plan, nil
}

// Delete removes a plan. Subscriptions that reference it keep their snapshot.
func (c *Catalog) Delete(ctx context.Context, admin auth.Admin, id int64) error {
	if err := auth.Require(admin); err != nil {
		return err
	}
	if err := c.plans.DeletePlan(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	c.onChange()
	return nil
}
