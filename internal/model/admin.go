package model

import "time"

// AdminUser is an operator allowed to use the admin channel.
type AdminUser struct {
	ID           int64     `gorm:"primaryKey"`
	Username     string    `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"size:16;not null;default:admin"`
	CreatedAt    time.Time `gorm:"not null"`
}
