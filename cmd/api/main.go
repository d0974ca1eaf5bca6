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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/wolfman30/storage-assistant/cmd/mainconfig"
	"github.com/wolfman30/storage-assistant/internal/api/router"
	"github.com/wolfman30/storage-assistant/internal/chat"
	"github.com/wolfman30/storage-assistant/internal/completion"
	appconfig "github.com/wolfman30/storage-assistant/internal/config"
	"github.com/wolfman30/storage-assistant/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/storage-assistant/internal/http/middleware"
	"github.com/wolfman30/storage-assistant/internal/notify"
	"github.com/wolfman30/storage-assistant/internal/webchat"
	"github.com/wolfman30/storage-assistant/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting storage-assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"record_store", cfg.RecordStore,
		"llm_provider", cfg.LLMProvider,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	fmt.Println("Server exited gracefully")
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler, cleanup, err := buildHandler(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// No WriteTimeout: chat turns and websockets outlive it.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// buildHandler wires every backend into the HTTP router. The returned
// cleanup releases pools and background workers.
func buildHandler(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	metricsHandler, chatMetrics := setupMetrics()
	loc := cfg.BusinessLocation()

	var awsCfg *aws.Config
	if mainconfig.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
		} else {
			awsCfg = &loaded
		}
	}

	redisClient, err := connectRedis(ctx, cfg, logger)
	if err != nil {
		return nil, cleanup, err
	}
	checks := map[string]router.HealthCheck{}
	if redisClient != nil {
		closers = append(closers, func() { _ = redisClient.Close() })
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	stores, err := setupRecordStore(ctx, cfg, redisClient, logger)
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("record store: %w", err)
	}
	closers = append(closers, stores.close)

	engine := completion.NewEngine(mainconfig.NewLLMClient(ctx, cfg, awsCfg, logger), stores.faqs,
		completion.WithTimeout(cfg.RequestTimeout),
		completion.WithLogger(logger),
		completion.WithMetrics(chatMetrics),
		completion.WithLocation(loc),
	)

	// Keep the interfaces nil rather than holding a nil *calendar.Client.
	var (
		scheduler chat.Scheduler
		calAdmin  handlers.CalendarAdmin
	)
	if cal := setupCalendar(ctx, cfg, logger); cal != nil {
		scheduler = cal
		calAdmin = cal
	}

	orchestrator := chat.NewOrchestrator(engine, stores.store, scheduler, setupSessions(cfg, redisClient), chat.Options{
		FormDelay: cfg.BookingFormDelay,
		Location:  loc,
		Notifier:  notify.NewBookingNotifier(setupEmail(cfg, awsCfg, logger), loc, logger),
		Logger:    logger,
		Metrics:   chatMetrics,
	})

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	closers = append(closers, limiter.Close)

	var faqCache handlers.FAQCacheInvalidator
	if stores.faqCache != nil {
		faqCache = stores.faqCache
	}

	r := router.New(&router.Config{
		Logger:             logger,
		ChatHandler:        webchat.NewHandler(orchestrator, loc, logger),
		AdminRequests:      handlers.NewAdminServiceRequestsHandler(stores.store, calAdmin, loc, logger),
		AdminFAQs:          handlers.NewAdminFAQHandler(stores.faqs, faqCache, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
		OnRateLimited:      func(*http.Request) { chatMetrics.ObserveRateLimited() },
		HealthChecks:       checks,
	})
	return r, cleanup, nil
}
