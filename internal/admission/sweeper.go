package admission

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"wifi-admission-backend/internal/metrics"
	"wifi-admission-backend/internal/model"
	"wifi-admission-backend/internal/store"
)

// Sweep persists passive expiry: every active subscription past its end
// time is moved to expired and its device is blocked. A subscription that
// was revoked or superseded in the meantime loses the compare-and-swap and
// is left alone, so the device is never blocked on its behalf twice.
func (m *Machine) Sweep(ctx context.Context) (int, error) {
	active, err := m.store.ListSubscriptions(ctx, store.SubscriptionFilter{
		Statuses: []model.Status{model.StatusActive},
	})
	if err != nil {
		return 0, err
	}

	now := m.clock()
	expired := 0
	var errs []error
	for i := range active {
		sub := &active[i]
		if sub.EffectiveStatus(now) != model.StatusExpired {
			continue
		}
		ok, err := m.expire(ctx, sub)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, errors.Join(errs...)
}

func (m *Machine) expire(ctx context.Context, sub *model.Subscription) (bool, error) {
	unlock := m.lockMAC(sub.MACAddress)
	defer unlock()

	ok, err := m.store.TransitionStatus(ctx, sub.ID, model.StatusActive, model.StatusExpired, nil)
	if err != nil || !ok {
		return false, err
	}
	m.metrics.RecordTransition(string(model.StatusActive), string(model.StatusExpired))
	m.log.Info().
		Int64("subscription_id", sub.ID).
		Str("mac", sub.MACAddress).
		Time("end_time", *sub.EndTime).
		Msg("subscription expired")
	m.setAccess(ctx, sub.MACAddress, true)
	return true, nil
}

// RestoreAccess unblocks every device that still holds a live subscription.
// It is run once at boot.
func (m *Machine) RestoreAccess(ctx context.Context) (int, error) {
	active, err := m.store.ListSubscriptions(ctx, store.SubscriptionFilter{
		Statuses: []model.Status{model.StatusActive},
	})
	if err != nil {
		return 0, err
	}

	now := m.clock()
	restored := 0
	for i := range active {
		if active[i].EffectiveStatus(now) != model.StatusActive {
			continue
		}
		m.setAccess(ctx, active[i].MACAddress, false)
		restored++
	}
	m.log.Info().Int("devices", restored).Msg("restored access for active subscriptions")
	return restored, nil
}

// Sweeper runs Machine.Sweep on a fixed interval.
type Sweeper struct {
	machine  *Machine
	interval time.Duration
	metrics  *metrics.Collector
	log      zerolog.Logger
}

func NewSweeper(m *Machine, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Sweeper{machine: m, interval: interval, metrics: m.metrics, log: log}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Msg("starting expiry sweeper")
	s.sweepOnce(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("expiry sweeper shutting down")
			return nil
		case <-timer.C:
			s.sweepOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	n, err := s.machine.Sweep(ctx)
	s.metrics.RecordSweep(err)
	if err != nil {
		s.log.Error().Err(err).Msg("expiry sweep failed")
		return
	}
	if n > 0 {
		s.log.Info().Int("expired", n).Msg("expiry sweep finished")
	}
}
