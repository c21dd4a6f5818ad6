// Package agent drives one device through admission: identify, choose a
// plan, submit payment, wait for the verdict and confirm connectivity.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wifi-admission-backend/internal/metrics"
	"wifi-admission-backend/internal/model"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultProbeTimeout = 3 * time.Second
	DefaultRetryWait    = 2 * time.Second
	DefaultMaxAttempts  = 3
)

var (
	ErrWrongStep       = errors.New("operation not allowed in the current step")
	ErrUnknownIdentity = errors.New("device identity is not known")
	ErrMissingField    = errors.New("missing required field")
)

// Options holds the agent's timing. Zero values take the defaults.
type Options struct {
	PollInterval time.Duration
	ProbeTimeout time.Duration
	RetryWait    time.Duration
	MaxAttempts  int
}

func (o *Options) applyDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = DefaultProbeTimeout
	}
	if o.RetryWait <= 0 {
		o.RetryWait = DefaultRetryWait
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
}

// PaymentFields is what the user types on the payment form.
type PaymentFields struct {
	Method        string
	AmountPaid    float64
	TransactionID string
}

type Agent struct {
	portal  Portal
	prober  Prober
	opts    Options
	metrics *metrics.Collector
	log     zerolog.Logger
}

func New(portal Portal, prober Prober, opts Options, log zerolog.Logger) *Agent {
	opts.applyDefaults()
	return &Agent{portal: portal, prober: prober, opts: opts, log: log}
}

// WithMetrics records probe outcomes on c.
func (a *Agent) WithMetrics(c *metrics.Collector) *Agent {
	a.metrics = c
	return a
}

// DetectIdentity asks the gateway who this device is and what its current
// status is. A device with an active, pending or rejected request jumps
// straight to the verdict. Network failures leave the session where it is.
func (a *Agent) DetectIdentity(ctx context.Context, s *Session) {
	id, err := a.portal.WhoAmI(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("whoami failed")
		return
	}
	if !id.Known() {
		a.log.Info().Str("ip", id.IP).Msg("gateway does not know this device yet")
		s.update(func(s *Session) { s.ip = id.IP })
		return
	}
	s.update(func(s *Session) {
		s.mac = id.MAC
		s.ip = id.IP
	})

	status, err := a.portal.Status(ctx, id.MAC)
	if err != nil {
		a.log.Warn().Err(err).Str("mac", id.MAC).Msg("status check failed")
		return
	}
	switch status {
	case model.StatusActive, model.StatusPending, model.StatusRejected:
		s.setVerdict(status)
		a.log.Info().Str("mac", id.MAC).Str("status", string(status)).Msg("resuming existing request")
	}
}

// ListPlans returns the catalog. Failures yield an empty list.
func (a *Agent) ListPlans(ctx context.Context) []model.Plan {
	plans, err := a.portal.Plans(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to fetch plans")
		return nil
	}
	return plans
}

// EnterMobile completes the identity form.
func (a *Agent) EnterMobile(s *Session, mobile string) error {
	mobile = strings.TrimSpace(mobile)
	if mobile == "" {
		return fmt.Errorf("%w: mobile", ErrMissingField)
	}
	var err error
	s.update(func(s *Session) {
		rejected := s.step == StepVerdict && s.status == model.StatusRejected
		if s.step != StepIdentityEntry && !rejected {
			err = fmt.Errorf("%w: %s", ErrWrongStep, s.step)
			return
		}
		s.mobile = mobile
		s.step = StepPlanSelection
	})
	return err
}

// SelectPlan moves to the payment form with the plan price as the expected
// amount. A rejected device may pick a plan again to resubmit.
func (a *Agent) SelectPlan(s *Session, plan model.Plan) error {
	var err error
	s.update(func(s *Session) {
		switch {
		case s.step == StepPlanSelection, s.step == StepPaymentSubmission:
		case s.step == StepVerdict && s.status == model.StatusRejected:
		default:
			err = fmt.Errorf("%w: %s", ErrWrongStep, s.step)
			return
		}
		p := plan
		s.plan = &p
		s.expectedAmount = plan.Price
		s.step = StepPaymentSubmission
	})
	return err
}

// SubmitPayment sends the request. On failure the session is unchanged and
// the error is returned so the user can try again.
func (a *Agent) SubmitPayment(ctx context.Context, s *Session, fields PaymentFields) error {
	snap := s.Snapshot()
	if snap.Step != StepPaymentSubmission || snap.Plan == nil {
		return fmt.Errorf("%w: %s", ErrWrongStep, snap.Step)
	}
	if snap.MAC == "" {
		return ErrUnknownIdentity
	}

	err := a.portal.RequestPlan(ctx, PlanRequest{
		MACAddress:    snap.MAC,
		PlanID:        snap.Plan.ID,
		Mobile:        snap.Mobile,
		PaymentMethod: fields.Method,
		AmountPaid:    fields.AmountPaid,
		TransactionID: fields.TransactionID,
	})
	if err != nil {
		a.log.Warn().Err(err).Str("mac", snap.MAC).Msg("payment submission failed")
		return err
	}

	s.update(func(s *Session) {
		s.resubmission = snap.Status == model.StatusRejected
		s.step = StepVerdict
		s.status = model.StatusPending
		s.connectivity = ConnectivityIdle
	})
	a.log.Info().Str("mac", snap.MAC).Int64("plan_id", snap.Plan.ID).Bool("resubmission", snap.Status == model.StatusRejected).Msg("payment submitted")
	return nil
}

// PollVerdict checks the status every poll interval while the request is
// pending. It returns once active or rejected is seen, or when ctx is done.
// No status call is made after it returns.
func (a *Agent) PollVerdict(ctx context.Context, s *Session) model.Status {
	snap := s.Snapshot()
	if snap.Status != model.StatusPending {
		return snap.Status
	}

	ticker := time.NewTicker(a.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.Snapshot().Status
		case <-ticker.C:
			status, err := a.portal.Status(ctx, snap.MAC)
			if err != nil {
				a.log.Warn().Err(err).Str("mac", snap.MAC).Msg("status poll failed")
				continue
			}
			switch status {
			case model.StatusActive, model.StatusRejected:
				s.setVerdict(status)
				a.log.Info().Str("mac", snap.MAC).Str("status", string(status)).Msg("verdict received")
				return status
			}
		}
	}
}

// VerifyConnectivity probes outbound reachability up to maxAttempts times.
// Each probe is cut off after the probe timeout; failed attempts wait the
// retry interval before the next. Cancelling ctx leaves the check pending.
func (a *Agent) VerifyConnectivity(ctx context.Context, s *Session, maxAttempts int) Connectivity {
	if maxAttempts <= 0 {
		maxAttempts = a.opts.MaxAttempts
	}
	s.setConnectivity(ConnectivityChecking)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := a.probeOnce(ctx)
		a.metrics.RecordProbe(err == nil)
		if err == nil {
			s.setConnectivity(ConnectivitySuccess)
			a.log.Info().Int("attempt", attempt).Msg("connectivity confirmed")
			return ConnectivitySuccess
		}
		if ctx.Err() != nil {
			return ConnectivityChecking
		}
		a.log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", maxAttempts).Msg("connectivity probe failed")

		if attempt == maxAttempts {
			break
		}
		wait := time.NewTimer(a.opts.RetryWait)
		select {
		case <-ctx.Done():
			wait.Stop()
			return ConnectivityChecking
		case <-wait.C:
		}
	}

	s.setConnectivity(ConnectivityFailed)
	return ConnectivityFailed
}

func (a *Agent) probeOnce(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, a.opts.ProbeTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.prober.Probe(probeCtx) }()

	select {
	case err := <-done:
		return err
	case <-probeCtx.Done():
		return fmt.Errorf("probe timed out: %w", probeCtx.Err())
	}
}

// Run carries the session from its current verdict to the end: wait for a
// decision while pending, then verify connectivity once active.
func (a *Agent) Run(ctx context.Context, s *Session) Snapshot {
	snap := s.Snapshot()
	if snap.Step != StepVerdict {
		return snap
	}
	status := snap.Status
	if status == model.StatusPending {
		status = a.PollVerdict(ctx, s)
	}
	if status == model.StatusActive && ctx.Err() == nil {
		a.VerifyConnectivity(ctx, s, a.opts.MaxAttempts)
	}
	return s.Snapshot()
}
