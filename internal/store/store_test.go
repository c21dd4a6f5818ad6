package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wifi-admission-backend/internal/db"
	"wifi-admission-backend/internal/model"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// newSQLiteStore opens a private in-memory database for one test.
func newSQLiteStore(t *testing.T) Store {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gormDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return NewGormStore(gormDB)
}

func TestGormStore_TransitionStatus_SQL(t *testing.T) {
	testCases := []struct {
		name         string
		rowsAffected int64
		want         bool
	}{
		{name: "row still in expected status", rowsAffected: 1, want: true},
		{name: "row already moved by someone else", rowsAffected: 0, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			s := NewGormStore(gormDB)

			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE "subscriptions" SET .*"status"=.* WHERE id = \$\d+ AND status = \$\d+`).
				WillReturnResult(sqlmock.NewResult(0, tc.rowsAffected))
			mock.ExpectCommit()

			ok, err := s.TransitionStatus(context.Background(), 7, model.StatusPending, model.StatusRejected, map[string]any{
				"decided_by": "admin",
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_TransitionStatus_DBError(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "subscriptions"`).WillReturnError(fmt.Errorf("connection reset"))
	mock.ExpectRollback()

	ok, err := s.TransitionStatus(context.Background(), 7, model.StatusActive, model.StatusExpired, nil)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_TransitionStatus_CompareAndSwap(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	sub := &model.Subscription{MACAddress: "aa:bb:cc:11:22:33", PlanName: "1h", Status: model.StatusPending}
	require.NoError(t, s.CreateSubscription(ctx, sub))

	ok, err := s.TransitionStatus(ctx, sub.ID, model.StatusPending, model.StatusRejected, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// The second caller still believes the row is pending.
	ok, err = s.TransitionStatus(ctx, sub.ID, model.StatusPending, model.StatusActive, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.Status)
}

func TestGormStore_SupersedeActive(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	mac := "aa:bb:cc:11:22:33"

	older := &model.Subscription{MACAddress: mac, PlanName: "1h", Status: model.StatusActive}
	other := &model.Subscription{MACAddress: "de:ad:be:ef:00:01", PlanName: "1h", Status: model.StatusActive}
	keep := &model.Subscription{MACAddress: mac, PlanName: "1d", Status: model.StatusActive}
	for _, sub := range []*model.Subscription{older, other, keep} {
		require.NoError(t, s.CreateSubscription(ctx, sub))
	}

	ids, err := s.SupersedeActive(ctx, mac, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{older.ID}, ids)

	active, err := s.ListSubscriptions(ctx, SubscriptionFilter{Statuses: []model.Status{model.StatusActive}})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, other.ID, active[0].ID)
	assert.Equal(t, keep.ID, active[1].ID)
}

func TestGormStore_UpsertDevice(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	created, err := s.UpsertDevice(ctx, now, "aa:bb:cc:11:22:33", "192.168.1.20", "phone")
	require.NoError(t, err)
	assert.True(t, created)

	dev, err := s.GetDevice(ctx, "aa:bb:cc:11:22:33")
	require.NoError(t, err)
	assert.True(t, dev.Blocked, "new devices start blocked")

	require.NoError(t, s.SetDeviceBlocked(ctx, dev.MAC, false))
	require.NoError(t, s.SetDeviceName(ctx, dev.MAC, "9876543210"))

	created, err = s.UpsertDevice(ctx, now.Add(time.Minute), dev.MAC, "192.168.1.21", "ignored")
	require.NoError(t, err)
	assert.False(t, created)

	dev, err = s.GetDevice(ctx, dev.MAC)
	require.NoError(t, err)
	assert.False(t, dev.Blocked, "observations never touch the blocked flag")
	assert.Equal(t, "192.168.1.21", dev.IP)
	assert.Equal(t, "9876543210", dev.Name)

	byIP, err := s.GetDeviceByIP(ctx, "192.168.1.21")
	require.NoError(t, err)
	assert.Equal(t, dev.MAC, byIP.MAC)

	_, err = s.GetDevice(ctx, "00:00:00:00:00:00")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.SetDeviceBlocked(ctx, "00:00:00:00:00:00", true), ErrNotFound)
}

func TestGormStore_DeletePlanKeepsSnapshots(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	plan := &model.Plan{Name: "1 Hour", DurationMinutes: 60, Price: 50}
	require.NoError(t, s.CreatePlan(ctx, plan))
	sub := &model.Subscription{
		MACAddress: "aa:bb:cc:11:22:33", PlanID: plan.ID, PlanName: plan.Name,
		Price: plan.Price, DurationMinutes: plan.DurationMinutes, Status: model.StatusPending,
	}
	require.NoError(t, s.CreateSubscription(ctx, sub))

	require.NoError(t, s.DeletePlan(ctx, plan.ID))
	assert.ErrorIs(t, s.DeletePlan(ctx, plan.ID), ErrNotFound)

	got, err := s.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "1 Hour", got.PlanName)
	assert.Equal(t, 50.0, got.Price)
}

func TestGormStore_TransactionRollsBack(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	err := s.Transaction(ctx, func(tx Store) error {
		if err := tx.CreatePlan(ctx, &model.Plan{Name: "temp", DurationMinutes: 5}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	assert.Error(t, err)

	n, err := s.CountPlans(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGormStore_FlushKeepsPlansAndAdmins(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePlan(ctx, &model.Plan{Name: "1h", DurationMinutes: 60}))
	_, err := s.EnsureAdmin(ctx, "admin", "hash")
	require.NoError(t, err)
	_, err = s.UpsertDevice(ctx, time.Now().UTC(), "aa:bb:cc:11:22:33", "10.0.0.2", "")
	require.NoError(t, err)
	require.NoError(t, s.CreateSubscription(ctx, &model.Subscription{MACAddress: "aa:bb:cc:11:22:33", PlanName: "1h", Status: model.StatusPending}))

	require.NoError(t, s.Flush(ctx))

	devices, err := s.CountDevices(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, devices)
	subs, err := s.ListSubscriptions(ctx, SubscriptionFilter{})
	require.NoError(t, err)
	assert.Empty(t, subs)
	plans, err := s.CountPlans(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), plans)
	_, err = s.GetAdmin(ctx, "admin")
	assert.NoError(t, err)
}

func TestGormStore_EnsureAdminIsIdempotent(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	created, err := s.EnsureAdmin(ctx, "admin", "first")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.EnsureAdmin(ctx, "admin", "second")
	require.NoError(t, err)
	assert.False(t, created)

	admin, err := s.GetAdmin(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "first", admin.PasswordHash)
}
