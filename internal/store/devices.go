package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"wifi-admission-backend/internal/model"
)

func (s *gormStore) GetDevice(ctx context.Context, mac string) (*model.Device, error) {
	var dev model.Device
	if err := s.db.WithContext(ctx).First(&dev, "mac_address = ?", mac).Error; err != nil {
		return nil, notFound(err)
	}
	return &dev, nil
}

func (s *gormStore) GetDeviceByIP(ctx context.Context, ip string) (*model.Device, error) {
	var dev model.Device
	err := s.db.WithContext(ctx).
		Where("ip_address = ?", ip).
		Order("last_seen DESC").
		First(&dev).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &dev, nil
}

func (s *gormStore) ListDevices(ctx context.Context) ([]model.Device, error) {
	var devices []model.Device
	if err := s.db.WithContext(ctx).Order("last_seen DESC").Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

func (s *gormStore) UpsertDevice(ctx context.Context, now time.Time, mac, ip, name string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Device{}).
		Where("mac_address = ?", mac).
		Updates(map[string]any{"ip_address": ip, "last_seen": now})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update device %s: %w", mac, res.Error)
	}
	if res.RowsAffected > 0 {
		return false, nil
	}

	dev := model.Device{MAC: mac, IP: ip, Name: name, Blocked: true, LastSeen: now}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "mac_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"ip_address", "last_seen"}),
	}).Create(&dev).Error; err != nil {
		return false, fmt.Errorf("failed to insert device %s: %w", mac, err)
	}
	return true, nil
}

func (s *gormStore) SetDeviceBlocked(ctx context.Context, mac string, blocked bool) error {
	res := s.db.WithContext(ctx).Model(&model.Device{}).
		Where("mac_address = ?", mac).
		Update("blocked", blocked)
	if res.Error != nil {
		return fmt.Errorf("failed to set blocked=%t for %s: %w", blocked, mac, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) SetDeviceName(ctx context.Context, mac, name string) error {
	res := s.db.WithContext(ctx).Model(&model.Device{}).
		Where("mac_address = ?", mac).
		Update("device_name", name)
	if res.Error != nil {
		return fmt.Errorf("failed to rename %s: %w", mac, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) CountDevices(ctx context.Context, blockedOnly bool) (int64, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(&model.Device{})
	if blockedOnly {
		q = q.Where("blocked = ?", true)
	}
	err := q.Count(&n).Error
	return n, err
}
