package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"wifi-admission-backend/internal/model"
	"wifi-admission-backend/internal/store"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func response(code int) *http.Response {
	return &http.Response{StatusCode: code, Body: io.NopCloser(bytes.NewBufferString(""))}
}

var pending = model.Subscription{ID: 42, MACAddress: "aa:bb:cc:11:22:33", PlanName: "1 Hour", AmountPaid: 50}

func TestWorkerPool_NotifyPendingNeverBlocks(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, store.NewGormStore(db), &webpush.Options{}, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			wp.NotifyPending(pending)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("NotifyPending blocked with no workers running")
	}
	assert.Len(t, wp.jobs, cap(wp.jobs))
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(1, store.NewGormStore(gormDB), &webpush.Options{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- wp.Run(ctx) }()
	defer func() {
		cancel()
		<-stopped
	}()

	t.Run("sends notification to every admin", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(2)

		var mu sync.Mutex
		var endpoints []string
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				var msg Message
				assert.NoError(t, json.Unmarshal(payload, &msg))
				assert.Equal(t, int64(42), msg.SubscriptionID)
				assert.Equal(t, "aa:bb:cc:11:22:33 requested 1 Hour (50.00 paid)", msg.Body)
				mu.Lock()
				endpoints = append(endpoints, sub.Endpoint)
				mu.Unlock()
				return response(http.StatusCreated), nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "admin_push_subscriptions"`).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "admin", "created_at"}).
				AddRow("https://example.com/push/1", "p1", "a1", "admin", time.Now()).
				AddRow("https://example.com/push/2", "p2", "a2", "ops", time.Now()))

		wp.NotifyPending(pending)
		wg.Wait()
		assert.ElementsMatch(t, []string{"https://example.com/push/1", "https://example.com/push/2"}, endpoints)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes expired endpoint", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return response(http.StatusGone), nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "admin_push_subscriptions"`).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "admin", "created_at"}).
				AddRow("https://example.com/expired", "p", "a", "admin", time.Now()))
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "admin_push_subscriptions" WHERE "admin_push_subscriptions"."endpoint" = \$1`).
			WithArgs("https://example.com/expired").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		wp.NotifyPending(pending)

		assert.Eventually(t, func() bool {
			return mock.ExpectationsWereMet() == nil
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("send failure keeps endpoint", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				wg.Done()
				return nil, fmt.Errorf("dial tcp: connection refused")
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "admin_push_subscriptions"`).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "admin", "created_at"}).
				AddRow("https://example.com/flaky", "p", "a", "admin", time.Now()))

		wp.NotifyPending(pending)
		wg.Wait()
		time.Sleep(20 * time.Millisecond)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
