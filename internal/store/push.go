package store

import (
	"context"

	"gorm.io/gorm/clause"

	"wifi-admission-backend/internal/model"
)

func (s *gormStore) SavePushSubscription(ctx context.Context, sub *model.AdminPushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "admin"}),
	}).Create(sub).Error
}

func (s *gormStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.AdminPushSubscription{Endpoint: endpoint}).Error
}

func (s *gormStore) ListPushSubscriptions(ctx context.Context) ([]model.AdminPushSubscription, error) {
	var subs []model.AdminPushSubscription
	err := s.db.WithContext(ctx).Find(&subs).Error
	return subs, err
}
