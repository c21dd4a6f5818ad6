package model

import "time"

// AuditEntry records a privileged override, such as approving a request
// whose transaction id was already consumed.
type AuditEntry struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Action         string    `gorm:"size:32;not null;index" json:"action"`
	Actor          string    `gorm:"size:64;not null" json:"actor"`
	SubscriptionID int64     `gorm:"index" json:"subscription_id"`
	ConflictID     int64     `json:"conflict_id,omitempty"`
	TransactionID  string    `gorm:"size:128" json:"transaction_id,omitempty"`
	Detail         string    `json:"detail,omitempty"`
	CreatedAt      time.Time `gorm:"not null;index" json:"created_at"`
}
