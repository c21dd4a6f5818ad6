// Package notification tells admins about new pending requests over web
// push.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"

	"wifi-admission-backend/internal/model"
	"wifi-admission-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Message is the JSON payload an admin's browser receives.
type Message struct {
	Title          string `json:"title"`
	Body           string `json:"body"`
	SubscriptionID int64  `json:"subscription_id"`
	MACAddress     string `json:"mac_address"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan model.Subscription
	store   store.PushStore
	webpush *webpush.Options
	sender  NotificationSender
	log     zerolog.Logger
}

// NewWorkerPool creates a new worker pool. The job queue holds a few jobs
// per worker; once it is full new notifications are dropped.
func NewWorkerPool(size int, push store.PushStore, webpushOptions *webpush.Options, log zerolog.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan model.Subscription, size*8),
		store:   push,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log,
	}
}

// Run launches the worker goroutines and blocks until ctx is done and
// every worker has returned.
func (wp *WorkerPool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < wp.size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			wp.worker(ctx, id)
		}(i)
	}
	wg.Wait()
	return nil
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug().Int("worker", id).Msg("notification worker started")
	for {
		select {
		case sub := <-wp.jobs:
			wp.notifyAdmins(ctx, sub)
		case <-ctx.Done():
			wp.log.Debug().Int("worker", id).Msg("notification worker shutting down")
			return
		}
	}
}

// NotifyPending queues a notification for a new pending request. It never
// blocks the caller.
func (wp *WorkerPool) NotifyPending(sub model.Subscription) {
	select {
	case wp.jobs <- sub:
	default:
		wp.log.Warn().Int64("subscription_id", sub.ID).Msg("notification queue full, dropping")
	}
}

func (wp *WorkerPool) notifyAdmins(ctx context.Context, sub model.Subscription) {
	endpoints, err := wp.store.ListPushSubscriptions(ctx)
	if err != nil {
		wp.log.Error().Err(err).Msg("failed to load admin push subscriptions")
		return
	}
	if len(endpoints) == 0 {
		return
	}

	payload, err := json.Marshal(Message{
		Title:          "New access request",
		Body:           fmt.Sprintf("%s requested %s (%.2f paid)", sub.MACAddress, sub.PlanName, sub.AmountPaid),
		SubscriptionID: sub.ID,
		MACAddress:     sub.MACAddress,
	})
	if err != nil {
		wp.log.Error().Err(err).Msg("failed to encode notification")
		return
	}

	wp.log.Info().Int64("subscription_id", sub.ID).Int("admins", len(endpoints)).Msg("sending pending request notifications")
	for _, ep := range endpoints {
		wp.sendNotification(ctx, ep, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, ep model.AdminPushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: ep.Endpoint,
		Keys: webpush.Keys{
			P256dh: ep.P256DH,
			Auth:   ep.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn().Err(err).Str("endpoint", ep.Endpoint).Msg("failed to send notification")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		wp.log.Info().Str("endpoint", ep.Endpoint).Int("status", resp.StatusCode).Msg("push endpoint expired, deleting")
		if err := wp.store.DeletePushSubscription(ctx, ep.Endpoint); err != nil {
			wp.log.Error().Err(err).Str("endpoint", ep.Endpoint).Msg("failed to delete expired push endpoint")
		}
	}
}
