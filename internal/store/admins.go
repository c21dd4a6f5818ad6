package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"wifi-admission-backend/internal/model"
)

func (s *gormStore) GetAdmin(ctx context.Context, username string) (*model.AdminUser, error) {
	var admin model.AdminUser
	if err := s.db.WithContext(ctx).First(&admin, "username = ?", username).Error; err != nil {
		return nil, notFound(err)
	}
	return &admin, nil
}

// EnsureAdmin creates the admin account if it does not exist yet. An
// existing account keeps its password.
func (s *gormStore) EnsureAdmin(ctx context.Context, username, passwordHash string) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model.AdminUser{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         "admin",
		CreatedAt:    time.Now().UTC(),
	})
	if res.Error != nil {
		return false, fmt.Errorf("failed to ensure admin %q: %w", username, res.Error)
	}
	return res.RowsAffected > 0, nil
}
