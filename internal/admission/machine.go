// Package admission owns the subscription lifecycle: requests, admin
// decisions, the duplicate-payment check and passive expiry.
package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wifi-admission-backend/internal/auth"
	"wifi-admission-backend/internal/metrics"
	"wifi-admission-backend/internal/model"
	"wifi-admission-backend/internal/parse"
	"wifi-admission-backend/internal/registry"
	"wifi-admission-backend/internal/store"
)

// Devices is the slice of the device directory the machine drives.
type Devices interface {
	Lookup(ctx context.Context, mac string) (*model.Device, error)
	Observe(ctx context.Context, mac, ip, name string) (bool, error)
	Rename(ctx context.Context, mac, name string) error
	SetBlocked(ctx context.Context, mac string, blocked bool) error
	ListAll(ctx context.Context) ([]model.Device, error)
}

// Notifier is told about every new pending request.
type Notifier interface {
	NotifyPending(sub model.Subscription)
}

const auditForcedApproval = "forced_approval"

// Machine applies subscription transitions. Every status change is a
// compare-and-swap on the stored status, so concurrent admins never
// overwrite each other's decision.
type Machine struct {
	store    store.Store
	devices  Devices
	notifier Notifier
	metrics  *metrics.Collector
	log      zerolog.Logger
	now      func() time.Time
	hostMAC  string

	macLocks sync.Map // mac -> *sync.Mutex
	txnLocks sync.Map // normalized transaction id -> *sync.Mutex
}

// Option configures a Machine.
type Option func(*Machine)

func WithNotifier(n Notifier) Option {
	return func(m *Machine) { m.notifier = n }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(m *Machine) { m.metrics = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Machine) { m.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithHostMAC names the gateway's own interface, which is never blocked.
func WithHostMAC(mac string) Option {
	return func(m *Machine) {
		if norm, err := parse.NormalizeMAC(mac); err == nil {
			m.hostMAC = norm
		}
	}
}

func NewMachine(s store.Store, devices Devices, opts ...Option) *Machine {
	m := &Machine{
		store:   s,
		devices: devices,
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Request is a client's proof-of-payment submission.
type Request struct {
	MACAddress    string   `json:"mac_address"`
	PlanID        int64    `json:"plan_id"`
	Mobile        string   `json:"mobile"`
	PaymentMethod string   `json:"payment_method"`
	AmountPaid    *float64 `json:"amount_paid"`
	TransactionID string   `json:"transaction_id"`
	// IP is where the request came from, used to register unknown devices.
	IP string `json:"-"`
}

// ApproveResult is returned by Approve. Conflict is set, and nothing was
// changed, when the transaction id was already used by an approved record.
type ApproveResult struct {
	Subscription *model.Subscription `json:"subscription"`
	Conflict     *Conflict           `json:"conflict,omitempty"`
	Superseded   []int64             `json:"superseded,omitempty"`
}

func (m *Machine) clock() time.Time {
	return m.now().UTC()
}

func (m *Machine) lockMAC(mac string) func() {
	v, _ := m.macLocks.LoadOrStore(mac, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// lockTransactionID serialises approvals that share a transaction id across
// devices. Ids that never conflict are not locked. Taken before lockMAC.
func (m *Machine) lockTransactionID(id string) func() {
	key := normalizeTransactionID(id)
	if key == "" || key == PlaceholderTransactionID {
		return func() {}
	}
	v, _ := m.txnLocks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Submit records a new pending request. A device whose previous request
// was rejected or expired submits again through here; earlier records are
// never touched.
func (m *Machine) Submit(ctx context.Context, req Request) (*model.Subscription, error) {
	mac, err := parse.NormalizeMAC(req.MACAddress)
	if err != nil {
		return nil, &ValidationError{Field: "mac_address", Reason: "must be six hex octets"}
	}
	if req.PlanID <= 0 {
		return nil, &ValidationError{Field: "plan_id", Reason: "is required"}
	}
	if req.AmountPaid == nil {
		return nil, &ValidationError{Field: "amount_paid", Reason: "is required"}
	}
	if *req.AmountPaid < 0 {
		return nil, &ValidationError{Field: "amount_paid", Reason: "must not be negative"}
	}

	plan, err := m.store.GetPlan(ctx, req.PlanID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &ValidationError{Field: "plan_id", Reason: "unknown plan"}
	}
	if err != nil {
		return nil, err
	}

	sub := &model.Subscription{
		MACAddress:      mac,
		PlanID:          plan.ID,
		PlanName:        plan.Name,
		Price:           plan.Price,
		DurationMinutes: plan.DurationMinutes,
		Mobile:          strings.TrimSpace(req.Mobile),
		PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
		AmountPaid:      *req.AmountPaid,
		TransactionID:   strings.TrimSpace(req.TransactionID),
		Status:          model.StatusPending,
	}
	if err := m.store.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	m.metrics.RecordTransition(string(model.StatusNone), string(model.StatusPending))
	m.log.Info().
		Int64("subscription_id", sub.ID).
		Str("mac", mac).
		Str("plan", plan.Name).
		Msg("subscription requested")

	m.registerDevice(ctx, mac, req.IP, sub.Mobile)
	if m.notifier != nil {
		m.notifier.NotifyPending(*sub)
	}
	return sub, nil
}

// registerDevice makes sure the requester is in the directory and labels it
// with the mobile number. Failures only cost the label.
func (m *Machine) registerDevice(ctx context.Context, mac, ip, mobile string) {
	if _, err := m.devices.Lookup(ctx, mac); errors.Is(err, registry.ErrNotFound) {
		if _, err := m.devices.Observe(ctx, mac, ip, mobile); err != nil {
			m.log.Warn().Err(err).Str("mac", mac).Msg("failed to register requesting device")
		}
		return
	} else if err != nil {
		m.log.Warn().Err(err).Str("mac", mac).Msg("failed to look up requesting device")
		return
	}
	if mobile == "" {
		return
	}
	if err := m.devices.Rename(ctx, mac, mobile); err != nil {
		m.log.Warn().Err(err).Str("mac", mac).Msg("failed to label device with mobile number")
	}
}

// Approve activates a pending subscription. Unless force is set, a
// transaction id already consumed by an approved subscription stops the
// approval and the conflicting record is returned instead. A forced
// approval is written to the audit log.
func (m *Machine) Approve(ctx context.Context, admin auth.Admin, id int64, force bool) (*ApproveResult, error) {
	if err := auth.Require(admin); err != nil {
		return nil, err
	}

	current, err := m.get(ctx, m.store, id)
	if err != nil {
		return nil, err
	}
	unlockTxn := m.lockTransactionID(current.TransactionID)
	defer unlockTxn()
	unlock := m.lockMAC(current.MACAddress)
	defer unlock()

	now := m.clock()
	result := &ApproveResult{}
	var bypassed *Conflict

	err = m.store.Transaction(ctx, func(tx store.Store) error {
		sub, err := m.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if got := sub.EffectiveStatus(now); got != model.StatusPending {
			return &PreconditionError{ID: id, Want: model.StatusPending, Got: got}
		}

		history, err := tx.ListSubscriptions(ctx, store.SubscriptionFilter{
			Statuses:          []model.Status{model.StatusActive, model.StatusExpired},
			WithTransactionID: true,
		})
		if err != nil {
			return err
		}
		if conflict := CheckDuplicate(sub.TransactionID, history); conflict != nil {
			if !force {
				result.Conflict = conflict
				result.Subscription = sub
				return nil
			}
			bypassed = conflict
		}

		superseded, err := tx.SupersedeActive(ctx, sub.MACAddress, id)
		if err != nil {
			return err
		}
		end := now.Add(time.Duration(sub.DurationMinutes) * time.Minute)
		if err := m.transition(ctx, tx, id, model.StatusPending, model.StatusActive, map[string]any{
			"start_time": now,
			"end_time":   end,
			"decided_by": admin.Username,
		}); err != nil {
			return err
		}

		if force {
			entry := &model.AuditEntry{
				ID:             uuid.NewString(),
				Action:         auditForcedApproval,
				Actor:          admin.Username,
				SubscriptionID: id,
				TransactionID:  sub.TransactionID,
				CreatedAt:      now,
			}
			if bypassed != nil {
				entry.ConflictID = bypassed.SubscriptionID
				entry.Detail = fmt.Sprintf("transaction id already used by subscription %d (mac %s, mobile %s)",
					bypassed.SubscriptionID, bypassed.MACAddress, bypassed.Mobile)
			} else {
				entry.Detail = "forced approval without a detected conflict"
			}
			if err := tx.AppendAudit(ctx, entry); err != nil {
				return err
			}
		}

		result.Superseded = superseded
		result.Subscription, err = m.get(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Conflict != nil {
		m.metrics.RecordFraudConflict()
		m.log.Info().
			Int64("subscription_id", id).
			Int64("conflict_id", result.Conflict.SubscriptionID).
			Str("admin", admin.Username).
			Msg("approval held: transaction id already used")
		return result, nil
	}

	for range result.Superseded {
		m.metrics.RecordTransition(string(model.StatusActive), string(model.StatusExpired))
	}
	m.metrics.RecordTransition(string(model.StatusPending), string(model.StatusActive))
	if force {
		m.metrics.RecordForcedApproval()
		ev := m.log.Warn().
			Int64("subscription_id", id).
			Str("admin", admin.Username).
			Time("at", now)
		if bypassed != nil {
			ev = ev.Int64("conflict_id", bypassed.SubscriptionID).Str("transaction_id", bypassed.TransactionID)
		}
		ev.Msg("forced approval")
	}
	m.log.Info().
		Int64("subscription_id", id).
		Str("mac", result.Subscription.MACAddress).
		Str("admin", admin.Username).
		Msg("subscription approved")

	m.setAccess(ctx, result.Subscription.MACAddress, false)
	return result, nil
}

// Reject refuses a pending subscription. Rejecting twice fails the second
// time with a PreconditionError.
func (m *Machine) Reject(ctx context.Context, admin auth.Admin, id int64) (*model.Subscription, error) {
	if err := auth.Require(admin); err != nil {
		return nil, err
	}
	if err := m.transition(ctx, m.store, id, model.StatusPending, model.StatusRejected, map[string]any{
		"decided_by": admin.Username,
	}); err != nil {
		return nil, err
	}
	m.metrics.RecordTransition(string(model.StatusPending), string(model.StatusRejected))
	m.log.Info().Int64("subscription_id", id).Str("admin", admin.Username).Msg("subscription rejected")
	return m.get(ctx, m.store, id)
}

// Revoke ends an active subscription now and blocks the device right away.
func (m *Machine) Revoke(ctx context.Context, admin auth.Admin, id int64) (*model.Subscription, error) {
	if err := auth.Require(admin); err != nil {
		return nil, err
	}
	sub, err := m.get(ctx, m.store, id)
	if err != nil {
		return nil, err
	}
	unlock := m.lockMAC(sub.MACAddress)
	defer unlock()

	now := m.clock()
	if got := sub.EffectiveStatus(now); got != model.StatusActive {
		return nil, &PreconditionError{ID: id, Want: model.StatusActive, Got: got}
	}

	if err := m.transition(ctx, m.store, id, model.StatusActive, model.StatusExpired, map[string]any{
		"end_time":   now,
		"decided_by": admin.Username,
	}); err != nil {
		return nil, err
	}
	m.metrics.RecordTransition(string(model.StatusActive), string(model.StatusExpired))
	m.log.Info().Int64("subscription_id", id).Str("admin", admin.Username).Msg("subscription revoked")

	m.setAccess(ctx, sub.MACAddress, true)
	return m.get(ctx, m.store, id)
}

// AssignPlan grants a plan to a device directly, without a client request.
func (m *Machine) AssignPlan(ctx context.Context, admin auth.Admin, mac string, planID int64) (*model.Subscription, error) {
	if err := auth.Require(admin); err != nil {
		return nil, err
	}
	mac, err := parse.NormalizeMAC(mac)
	if err != nil {
		return nil, &ValidationError{Field: "mac_address", Reason: "must be six hex octets"}
	}
	plan, err := m.store.GetPlan(ctx, planID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("plan %d: %w", planID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	unlock := m.lockMAC(mac)
	defer unlock()

	now := m.clock()
	end := now.Add(time.Duration(plan.DurationMinutes) * time.Minute)
	sub := &model.Subscription{
		MACAddress:      mac,
		PlanID:          plan.ID,
		PlanName:        plan.Name,
		Price:           plan.Price,
		DurationMinutes: plan.DurationMinutes,
		AmountPaid:      plan.Price,
		PaymentMethod:   "assigned",
		Status:          model.StatusPending,
		DecidedBy:       admin.Username,
	}

	var superseded []int64
	err = m.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreateSubscription(ctx, sub); err != nil {
			return err
		}
		var err error
		if superseded, err = tx.SupersedeActive(ctx, mac, sub.ID); err != nil {
			return err
		}
		return m.transition(ctx, tx, sub.ID, model.StatusPending, model.StatusActive, map[string]any{
			"start_time": now,
			"end_time":   end,
		})
	})
	if err != nil {
		return nil, err
	}

	m.metrics.RecordTransition(string(model.StatusNone), string(model.StatusPending))
	m.metrics.RecordTransition(string(model.StatusPending), string(model.StatusActive))
	for range superseded {
		m.metrics.RecordTransition(string(model.StatusActive), string(model.StatusExpired))
	}
	m.log.Info().Int64("subscription_id", sub.ID).Str("mac", mac).Str("admin", admin.Username).Msg("plan assigned")

	if _, err := m.devices.Lookup(ctx, mac); errors.Is(err, registry.ErrNotFound) {
		if _, err := m.devices.Observe(ctx, mac, "", ""); err != nil {
			m.log.Warn().Err(err).Str("mac", mac).Msg("failed to register assigned device")
		}
	}
	m.setAccess(ctx, mac, false)
	return m.get(ctx, m.store, sub.ID)
}

// Status is what the device itself is told: an active subscription wins
// over a pending one, which wins over a rejected one, newest first within
// each. Anything else, including passive expiry, reads as none.
func (m *Machine) Status(ctx context.Context, mac string) (model.Status, error) {
	mac, err := parse.NormalizeMAC(mac)
	if err != nil {
		return "", &ValidationError{Field: "mac", Reason: "must be six hex octets"}
	}
	subs, err := m.store.ListSubscriptions(ctx, store.SubscriptionFilter{
		MAC:         mac,
		Statuses:    clientPriority,
		NewestFirst: true,
	})
	if err != nil {
		return "", err
	}

	return clientStatus(subs, m.clock()), nil
}

var clientPriority = []model.Status{model.StatusActive, model.StatusPending, model.StatusRejected}

func clientStatus(subs []model.Subscription, now time.Time) model.Status {
	seen := make(map[model.Status]bool, len(clientPriority))
	for i := range subs {
		seen[subs[i].EffectiveStatus(now)] = true
	}
	for _, s := range clientPriority {
		if seen[s] {
			return s
		}
	}
	return model.StatusNone
}

// Get returns one subscription with passive expiry applied.
func (m *Machine) Get(ctx context.Context, id int64) (*model.Subscription, error) {
	sub, err := m.get(ctx, m.store, id)
	if err != nil {
		return nil, err
	}
	sub.Status = sub.EffectiveStatus(m.clock())
	return sub, nil
}

func (m *Machine) get(ctx context.Context, s store.SubscriptionStore, id int64) (*model.Subscription, error) {
	sub, err := s.GetSubscription(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("subscription %d: %w", id, ErrNotFound)
	}
	return sub, err
}

// transition performs one compare-and-swap on the stored status. The loser
// of a race gets a PreconditionError naming the status it lost to.
func (m *Machine) transition(ctx context.Context, s store.SubscriptionStore, id int64, from, to model.Status, fields map[string]any) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("transition %s -> %s is not allowed", from, to)
	}
	ok, err := s.TransitionStatus(ctx, id, from, to, fields)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	sub, err := m.get(ctx, s, id)
	if err != nil {
		return err
	}
	return &PreconditionError{ID: id, Want: from, Got: sub.Status}
}

// setAccess pushes the access decision to the device directory. The ledger
// is already committed, so failures are logged rather than returned.
func (m *Machine) setAccess(ctx context.Context, mac string, blocked bool) {
	if blocked && m.hostMAC != "" && mac == m.hostMAC {
		m.log.Info().Str("mac", mac).Msg("host protection: not blocking the gateway")
		return
	}
	if err := m.devices.SetBlocked(ctx, mac, blocked); err != nil {
		m.log.Warn().Err(err).Str("mac", mac).Bool("blocked", blocked).Msg("failed to update device access")
	}
}
