package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wifi-admission-backend/internal/auth"
	"wifi-admission-backend/internal/model"
	"wifi-admission-backend/internal/parse"
	"wifi-admission-backend/internal/registry"
	"wifi-admission-backend/internal/store"
)

// List returns subscriptions newest first with passive expiry applied.
// An empty statuses slice returns everything.
func (m *Machine) List(ctx context.Context, admin auth.Admin, statuses ...model.Status) ([]model.Subscription, error) {
	if err := auth.Require(admin); err != nil {
		return nil, err
	}
	subs, err := m.store.ListSubscriptions(ctx, store.SubscriptionFilter{NewestFirst: true})
	if err != nil {
		return nil, err
	}

	now := m.clock()
	want := make(map[model.Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	out := make([]model.Subscription, 0, len(subs))
	for _, sub := range subs {
		sub.Status = sub.EffectiveStatus(now)
		if len(want) > 0 && !want[sub.Status] {
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

type Stats struct {
	TotalRevenue    float64 `json:"total_revenue"`
	ActiveUsers     int     `json:"active_users"`
	TotalPlans      int64   `json:"total_plans"`
	BlockedDevices  int64   `json:"blocked_devices"`
	TotalDevices    int64   `json:"total_devices"`
	PendingRequests int     `json:"pending_requests"`
}

// Stats summarises the ledger. Revenue counts the amount paid on every
// subscription that was ever approved.
func (m *Machine) Stats(ctx context.Context, admin auth.Admin) (*Stats, error) {
	subs, err := m.List(ctx, admin)
	if err != nil {
		return nil, err
	}

	var st Stats
	for _, sub := range subs {
		switch sub.Status {
		case model.StatusActive:
			st.ActiveUsers++
			st.TotalRevenue += sub.AmountPaid
		case model.StatusExpired:
			st.TotalRevenue += sub.AmountPaid
		case model.StatusPending:
			st.PendingRequests++
		}
	}

	if st.TotalPlans, err = m.store.CountPlans(ctx); err != nil {
		return nil, fmt.Errorf("failed to count plans: %w", err)
	}
	if st.TotalDevices, err = m.store.CountDevices(ctx, false); err != nil {
		return nil, fmt.Errorf("failed to count devices: %w", err)
	}
	if st.BlockedDevices, err = m.store.CountDevices(ctx, true); err != nil {
		return nil, fmt.Errorf("failed to count blocked devices: %w", err)
	}
	return &st, nil
}

type RevenuePoint struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
}

// Revenue returns one point per day for the last days days, oldest first,
// bucketed by activation date in UTC.
func (m *Machine) Revenue(ctx context.Context, admin auth.Admin, days int) ([]RevenuePoint, error) {
	if days <= 0 {
		days = 7
	}
	subs, err := m.List(ctx, admin, model.StatusActive, model.StatusExpired)
	if err != nil {
		return nil, err
	}

	today := m.clock().Truncate(24 * time.Hour)
	first := today.AddDate(0, 0, -(days - 1))
	points := make([]RevenuePoint, days)
	for i := range points {
		points[i].Date = first.AddDate(0, 0, i).Format(time.DateOnly)
	}
	for _, sub := range subs {
		if sub.StartTime == nil {
			continue
		}
		day := sub.StartTime.UTC().Truncate(24 * time.Hour)
		if day.Before(first) || day.After(today) {
			continue
		}
		points[int(day.Sub(first)/(24*time.Hour))].Total += sub.AmountPaid
	}
	return points, nil
}

// Customer is a known device with the status its owner would be shown.
type Customer struct {
	model.Device
	Status model.Status `json:"status"`
}

func (m *Machine) Customers(ctx context.Context, admin auth.Admin) ([]Customer, error) {
	if err := auth.Require(admin); err != nil {
		return nil, err
	}
	devices, err := m.devices.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	subs, err := m.store.ListSubscriptions(ctx, store.SubscriptionFilter{Statuses: clientPriority})
	if err != nil {
		return nil, err
	}

	byMAC := make(map[string][]model.Subscription)
	for _, sub := range subs {
		byMAC[sub.MACAddress] = append(byMAC[sub.MACAddress], sub)
	}
	now := m.clock()
	out := make([]Customer, 0, len(devices))
	for _, dev := range devices {
		out = append(out, Customer{Device: dev, Status: clientStatus(byMAC[dev.MAC], now)})
	}
	return out, nil
}

func (m *Machine) RenameDevice(ctx context.Context, admin auth.Admin, mac, name string) error {
	if err := auth.Require(admin); err != nil {
		return err
	}
	mac, err := parse.NormalizeMAC(mac)
	if err != nil {
		return &ValidationError{Field: "mac", Reason: "must be six hex octets"}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	return m.deviceErr(mac, m.devices.Rename(ctx, mac, name))
}

// SetDeviceBlocked is the manual block/unblock switch. The gateway's own
// MAC cannot be blocked.
func (m *Machine) SetDeviceBlocked(ctx context.Context, admin auth.Admin, mac string, blocked bool) error {
	if err := auth.Require(admin); err != nil {
		return err
	}
	mac, err := parse.NormalizeMAC(mac)
	if err != nil {
		return &ValidationError{Field: "mac", Reason: "must be six hex octets"}
	}
	if blocked && mac == m.hostMAC {
		return &ValidationError{Field: "mac", Reason: "is the gateway itself"}
	}
	if err := m.deviceErr(mac, m.devices.SetBlocked(ctx, mac, blocked)); err != nil {
		return err
	}
	m.log.Info().Str("mac", mac).Bool("blocked", blocked).Str("admin", admin.Username).Msg("manual access change")
	return nil
}

// Flush deletes every subscription and device. Plans and admins stay.
func (m *Machine) Flush(ctx context.Context, admin auth.Admin) error {
	if err := auth.Require(admin); err != nil {
		return err
	}
	if err := m.store.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush data: %w", err)
	}
	if f, ok := m.devices.(interface{ Forget() }); ok {
		f.Forget()
	}
	m.log.Warn().Str("admin", admin.Username).Msg("subscriptions and devices flushed")
	return nil
}

// AuditLog returns the most recent forced approvals.
func (m *Machine) AuditLog(ctx context.Context, admin auth.Admin, limit int) ([]model.AuditEntry, error) {
	if err := auth.Require(admin); err != nil {
		return nil, err
	}
	return m.store.ListAudit(ctx, limit)
}

func (m *Machine) deviceErr(mac string, err error) error {
	if errors.Is(err, registry.ErrNotFound) {
		return fmt.Errorf("device %s: %w", mac, ErrNotFound)
	}
	return err
}
