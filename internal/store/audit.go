package store

import (
	"context"
	"fmt"

	"wifi-admission-backend/internal/model"
)

func (s *gormStore) AppendAudit(ctx context.Context, entry *model.AuditEntry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append audit entry %s: %w", entry.Action, err)
	}
	return nil
}

func (s *gormStore) ListAudit(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []model.AuditEntry
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}
