package model

import "time"

// AdminPushSubscription holds a browser push endpoint registered by an
// admin to be told about new pending requests.
type AdminPushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	Admin     string    `gorm:"size:64"`
	CreatedAt time.Time `gorm:"not null"`
}
