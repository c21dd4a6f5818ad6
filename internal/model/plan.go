package model

// Plan is a purchasable access plan.
type Plan struct {
	ID              int64   `gorm:"primaryKey" json:"id"`
	Name            string  `gorm:"size:128;not null" json:"name"`
	DurationMinutes int     `gorm:"not null" json:"duration_minutes"`
	Price           float64 `gorm:"not null" json:"price"`
	DataLimitMB     int     `gorm:"not null;default:0" json:"data_limit_mb"`
}
