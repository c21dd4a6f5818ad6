package store

import (
	"context"
	"fmt"

	"wifi-admission-backend/internal/model"
)

func (s *gormStore) CreateSubscription(ctx context.Context, sub *model.Subscription) error {
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("failed to create subscription for %s: %w", sub.MACAddress, err)
	}
	return nil
}

func (s *gormStore) GetSubscription(ctx context.Context, id int64) (*model.Subscription, error) {
	var sub model.Subscription
	if err := s.db.WithContext(ctx).First(&sub, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

func (s *gormStore) ListSubscriptions(ctx context.Context, filter SubscriptionFilter) ([]model.Subscription, error) {
	q := s.db.WithContext(ctx).Model(&model.Subscription{})
	if filter.MAC != "" {
		q = q.Where("mac_address = ?", filter.MAC)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.WithTransactionID {
		q = q.Where("transaction_id <> ?", "")
	}
	if filter.NewestFirst {
		q = q.Order("id DESC")
	} else {
		q = q.Order("id")
	}

	var subs []model.Subscription
	if err := q.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *gormStore) TransitionStatus(ctx context.Context, id int64, from, to model.Status, fields map[string]any) (bool, error) {
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to

	res := s.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to move subscription %d from %s to %s: %w", id, from, to, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) SupersedeActive(ctx context.Context, mac string, keepID int64) ([]int64, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("mac_address = ? AND status = ? AND id <> ?", mac, model.StatusActive, keepID).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to find active subscriptions for %s: %w", mac, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if err := s.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("id IN ? AND status = ?", ids, model.StatusActive).
		Update("status", model.StatusExpired).Error; err != nil {
		return nil, fmt.Errorf("failed to supersede subscriptions %v: %w", ids, err)
	}
	return ids, nil
}
