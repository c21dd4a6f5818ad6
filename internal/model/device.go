package model

import "time"

// Device is a client seen on the hotspot, keyed by MAC address.
type Device struct {
	MAC      string    `gorm:"column:mac_address;primaryKey;size:17" json:"mac"`
	IP       string    `gorm:"column:ip_address;size:64;index" json:"ip"`
	Name     string    `gorm:"column:device_name;size:128" json:"name"`
	Blocked  bool      `gorm:"not null" json:"blocked"`
	LastSeen time.Time `gorm:"not null" json:"last_seen"`
}
