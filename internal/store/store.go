package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"wifi-admission-backend/internal/model"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

// PlanStore persists the plan catalog.
type PlanStore interface {
	ListPlans(ctx context.Context) ([]model.Plan, error)
	GetPlan(ctx context.Context, id int64) (*model.Plan, error)
	CreatePlan(ctx context.Context, plan *model.Plan) error
	DeletePlan(ctx context.Context, id int64) error
	CountPlans(ctx context.Context) (int64, error)
}

// DeviceStore persists the device directory.
type DeviceStore interface {
	GetDevice(ctx context.Context, mac string) (*model.Device, error)
	GetDeviceByIP(ctx context.Context, ip string) (*model.Device, error)
	ListDevices(ctx context.Context) ([]model.Device, error)
	// UpsertDevice records an observation. A new device is stored blocked;
	// an existing device keeps its blocked flag and name.
	UpsertDevice(ctx context.Context, now time.Time, mac, ip, name string) (created bool, err error)
	SetDeviceBlocked(ctx context.Context, mac string, blocked bool) error
	SetDeviceName(ctx context.Context, mac, name string) error
	CountDevices(ctx context.Context, blockedOnly bool) (int64, error)
}

// SubscriptionFilter narrows ListSubscriptions.
type SubscriptionFilter struct {
	MAC      string
	Statuses []model.Status
	// NewestFirst orders by id descending; the default is ascending.
	NewestFirst bool
	// WithTransactionID drops rows with an empty transaction id.
	WithTransactionID bool
}

// SubscriptionStore persists the subscription ledger.
type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, sub *model.Subscription) error
	GetSubscription(ctx context.Context, id int64) (*model.Subscription, error)
	ListSubscriptions(ctx context.Context, filter SubscriptionFilter) ([]model.Subscription, error)
	// TransitionStatus moves a subscription from one status to another only
	// if it is still in the expected status. It reports whether the row was
	// updated.
	TransitionStatus(ctx context.Context, id int64, from, to model.Status, fields map[string]any) (bool, error)
	// SupersedeActive expires every active subscription of mac except keepID
	// and returns the ids it changed.
	SupersedeActive(ctx context.Context, mac string, keepID int64) ([]int64, error)
}

// AdminStore persists admin accounts.
type AdminStore interface {
	GetAdmin(ctx context.Context, username string) (*model.AdminUser, error)
	EnsureAdmin(ctx context.Context, username, passwordHash string) (created bool, err error)
}

// AuditStore persists override records.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry *model.AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]model.AuditEntry, error)
}

// PushStore persists admin web push endpoints.
type PushStore interface {
	SavePushSubscription(ctx context.Context, sub *model.AdminPushSubscription) error
	DeletePushSubscription(ctx context.Context, endpoint string) error
	ListPushSubscriptions(ctx context.Context) ([]model.AdminPushSubscription, error)
}

// Store defines the interface for all database operations.
type Store interface {
	PlanStore
	DeviceStore
	SubscriptionStore
	AdminStore
	AuditStore
	PushStore

	// Transaction runs fn against a Store bound to a single database
	// transaction. fn must only use the Store it is given.
	Transaction(ctx context.Context, fn func(tx Store) error) error
	// Flush deletes all subscriptions and devices, keeping plans and admins.
	Flush(ctx context.Context) error
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) Flush(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Subscription{}).Error; err != nil {
			return err
		}
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Device{}).Error
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
