package model

import "time"

// Status is the lifecycle state of a Subscription.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"

	// StatusNone is reported to clients that have no live request.
	StatusNone Status = "none"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusExpired
}

// Subscription is one admission request and its outcome. Plan name, price
// and duration are copied from the plan when the request is made.
type Subscription struct {
	ID              int64      `gorm:"primaryKey" json:"id"`
	MACAddress      string     `gorm:"size:17;not null;index" json:"mac_address"`
	PlanID          int64      `gorm:"index" json:"plan_id"`
	PlanName        string     `gorm:"size:128;not null" json:"plan_name"`
	Price           float64    `gorm:"not null" json:"price"`
	DurationMinutes int        `gorm:"not null" json:"duration_minutes"`
	Mobile          string     `gorm:"size:32" json:"mobile"`
	PaymentMethod   string     `gorm:"size:64" json:"payment_method"`
	AmountPaid      float64    `json:"amount_paid"`
	TransactionID   string     `gorm:"size:128;index" json:"transaction_id"`
	Status          Status     `gorm:"size:16;not null;index" json:"status"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DecidedBy       string     `gorm:"size:64" json:"decided_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// EffectiveStatus applies passive expiry: an active subscription whose end
// time has passed reads as expired even before the sweeper persists it.
func (s *Subscription) EffectiveStatus(now time.Time) Status {
	if s.Status == StatusActive && s.EndTime != nil && now.After(*s.EndTime) {
		return StatusExpired
	}
	return s.Status
}
