package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"wifi-admission-backend/config"
	"wifi-admission-backend/internal/admission"
	"wifi-admission-backend/internal/api"
	"wifi-admission-backend/internal/auth"
	"wifi-admission-backend/internal/catalog"
	"wifi-admission-backend/internal/db"
	"wifi-admission-backend/internal/logger"
	"wifi-admission-backend/internal/metrics"
	"wifi-admission-backend/internal/mw"
	"wifi-admission-backend/internal/notification"
	"wifi-admission-backend/internal/registry"
	"wifi-admission-backend/internal/scanner"
	"wifi-admission-backend/internal/store"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("failed to load configuration")
	}
	if err := logger.Init(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("failed to initialise logger")
	}
	log.Info().Str("path", configPath).Msg("configuration loaded")

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("portal stopped with an error")
	}
	log.Info().Msg("portal gracefully stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	appStore := store.NewGormStore(gormDB)
	collector := metrics.New()

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		log.Warn().Msg("VAPID keys are not configured; admin push notifications are disabled")
	}

	devices := registry.New(appStore, cfg.Scanner.LiveWindow,
		registry.WithMetrics(collector),
		registry.WithLogger(logger.WithComponent("registry")))

	planCache := mw.NewResponseCache(cfg.Server.CacheTTL)
	plans := catalog.New(appStore, planCache.Invalidate)

	machineOpts := []admission.Option{
		admission.WithMetrics(collector),
		admission.WithLogger(logger.WithComponent("admission")),
		admission.WithHostMAC(cfg.Portal.HostMAC),
	}
	var workerPool *notification.WorkerPool
	if webpushOptions != nil {
		workerPool = notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, logger.WithComponent("notification"))
		machineOpts = append(machineOpts, admission.WithNotifier(workerPool))
	}
	machine := admission.NewMachine(appStore, devices, machineOpts...)

	authSvc := auth.NewService(appStore, cfg.Auth)
	created, err := authSvc.EnsureDefaultAdmin(ctx, cfg.Auth.DefaultAdminUser, cfg.Auth.DefaultAdminPassword)
	if err != nil {
		return fmt.Errorf("failed to ensure default admin: %w", err)
	}
	if created {
		log.Warn().Str("username", cfg.Auth.DefaultAdminUser).Msg("created default admin account; change its password")
	}

	if _, err := machine.RestoreAccess(ctx); err != nil {
		log.Error().Err(err).Msg("failed to restore access for active subscriptions")
	}

	scan := scanner.NewService(cfg.Scanner, cfg.Portal, devices, logger.WithComponent("scanner"))
	sweeper := admission.NewSweeper(machine, cfg.Sweeper.Interval, logger.WithComponent("sweeper"))

	router := api.NewRouter(cfg.Server, api.Deps{
		Machine:   machine,
		Catalog:   plans,
		Registry:  devices,
		Auth:      authSvc,
		Push:      appStore,
		Resolver:  scan,
		WebPush:   webpushOptions,
		Metrics:   collector,
		PlanCache: planCache,
		Log:       logger.WithComponent("http"),
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error { return scan.Run(gctx) })
	if workerPool != nil {
		g.Go(func() error { return workerPool.Run(gctx) })
	}
	g.Go(func() error {
		log.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server ListenAndServe: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutdown signal received, stopping services")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
