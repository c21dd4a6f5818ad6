package store

import (
	"context"
	"fmt"

	"wifi-admission-backend/internal/model"
)

func (s *gormStore) ListPlans(ctx context.Context) ([]model.Plan, error) {
	var plans []model.Plan
	if err := s.db.WithContext(ctx).Order("id").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

func (s *gormStore) GetPlan(ctx context.Context, id int64) (*model.Plan, error) {
	var plan model.Plan
	if err := s.db.WithContext(ctx).First(&plan, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &plan, nil
}

func (s *gormStore) CreatePlan(ctx context.Context, plan *model.Plan) error {
	if err := s.db.WithContext(ctx).Create(plan).Error; err != nil {
		return fmt.Errorf("failed to create plan %q: %w", plan.Name, err)
	}
	return nil
}

// DeletePlan removes a plan. Subscriptions keep their own snapshot, so no
// reference check is made.
func (s *gormStore) DeletePlan(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&model.Plan{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete plan %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) CountPlans(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Plan{}).Count(&n).Error
	return n, err
}
