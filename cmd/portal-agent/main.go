// Command portal-agent walks one device through admission against a
// running gateway: it identifies the device, requests a plan, waits for
// the admin's verdict and then checks that the internet is reachable.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"wifi-admission-backend/config"
	"wifi-admission-backend/internal/agent"
	"wifi-admission-backend/internal/logger"
	"wifi-admission-backend/internal/model"
)

func main() {
	var (
		gateway  = flag.String("gateway", "http://192.168.1.1:8080", "gateway base URL")
		mobile   = flag.String("mobile", "", "mobile number used as the device label")
		planID   = flag.Int64("plan", 0, "plan id to request; 0 lists the plans and exits")
		method   = flag.String("method", "mobile money", "payment method")
		amount   = flag.Float64("amount", -1, "amount paid; defaults to the plan price")
		txn      = flag.String("txn", "", "payment transaction id")
		probeURL = flag.String("probe", agent.DefaultProbeURL, "URL fetched to confirm connectivity")
		poll     = flag.Duration("poll", agent.DefaultPollInterval, "status poll interval")
		debug    = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	if err := logger.Init(config.LogConfig{Debug: *debug, Output: "stderr"}); err != nil {
		log.Fatal().Err(err).Msg("failed to initialise logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := agent.New(
		agent.NewHTTPPortal(*gateway, nil),
		agent.NewHTTPProber(*probeURL, nil),
		agent.Options{PollInterval: *poll},
		logger.WithComponent("agent"),
	)
	s := agent.NewSession()
	a.DetectIdentity(ctx, s)

	snap := s.Snapshot()
	if snap.Step == agent.StepVerdict && snap.Status != model.StatusRejected {
		report(a.Run(ctx, s))
		return
	}

	plans := a.ListPlans(ctx)
	if *planID == 0 {
		for _, p := range plans {
			fmt.Printf("%d\t%s\t%d min\t%.2f\n", p.ID, p.Name, p.DurationMinutes, p.Price)
		}
		return
	}
	plan, ok := findPlan(plans, *planID)
	if !ok {
		log.Fatal().Int64("plan_id", *planID).Msg("no such plan")
	}

	// A rejected device resubmits from the verdict step; its mobile is
	// optional there but still labels the new request.
	if snap.Step == agent.StepIdentityEntry || *mobile != "" {
		if err := a.EnterMobile(s, *mobile); err != nil {
			log.Fatal().Err(err).Msg("cannot continue without a mobile number")
		}
	}
	if err := a.SelectPlan(s, plan); err != nil {
		log.Fatal().Err(err).Msg("cannot select plan")
	}

	paid := *amount
	if paid < 0 {
		paid = s.Snapshot().ExpectedAmount
	}
	if err := a.SubmitPayment(ctx, s, agent.PaymentFields{Method: *method, AmountPaid: paid, TransactionID: *txn}); err != nil {
		log.Fatal().Err(err).Msg("payment submission failed")
	}

	report(a.Run(ctx, s))
}

func findPlan(plans []model.Plan, id int64) (model.Plan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return model.Plan{}, false
}

func report(snap agent.Snapshot) {
	fmt.Printf("%s status=%s connectivity=%s mac=%s\n", time.Now().Format(time.TimeOnly), snap.Status, snap.Connectivity, snap.MAC)
	if snap.Connectivity == agent.ConnectivityFailed || snap.Status == model.StatusRejected {
		os.Exit(1)
	}
}
