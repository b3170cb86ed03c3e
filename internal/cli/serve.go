package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/antoniostano/aiplanner/internal/calendarsync"
	"github.com/antoniostano/aiplanner/internal/config"
	"github.com/antoniostano/aiplanner/internal/httpapi"
	"github.com/antoniostano/aiplanner/internal/observability"
	"github.com/antoniostano/aiplanner/internal/planning"
	"github.com/antoniostano/aiplanner/internal/scheduling"
	"github.com/antoniostano/aiplanner/internal/tasks"
	"github.com/antoniostano/aiplanner/internal/wellness"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the HTTP API",
	Long:    `Serve the scheduling API, the schedule websocket stream and Prometheus metrics.`,
	Args:    cobra.NoArgs,
	GroupID: "service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg)
	},
}

func runServe(ctx context.Context, cfg config.Config) error {
	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics := observability.NewMetrics(cfg.MetricsNamespace, nil)

	store, err := tasks.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("task store init failed: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	// Closed before the store so queued writes are flushed.
	manager := tasks.NewManager()
	defer manager.Close()
	storeMode := "in-memory"
	if store != nil {
		if err := manager.AttachStore(ctx, store, logger); err != nil {
			return err
		}
		storeMode = "postgres"
	}

	analyzer := wellness.NewAnalyzer(wellness.Config{
		URL:       cfg.WellnessAIURL,
		APIKey:    cfg.WellnessAIAPIKey,
		Model:     cfg.WellnessAIModel,
		Timeout:   cfg.WellnessAITimeout,
		RedisAddr: cfg.WellnessCacheRedisAddr,
		CacheTTL:  cfg.WellnessCacheTTL,
	}, logger)
	if c, ok := analyzer.(interface{ Close() error }); ok {
		defer c.Close()
	}

	service, err := scheduling.NewService(manager, analyzer, schedulingOptions(cfg), metrics, logger)
	if err != nil {
		return err
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	calendarSync := false
	if cfg.GoogleCalendarID != "" && cfg.GoogleCalendarCredentialsFile != "" {
		srv, err := calendarsync.NewCalendarService(ctx, cfg.GoogleCalendarCredentialsFile)
		if err != nil {
			return fmt.Errorf("calendar mirror init failed: %w", err)
		}
		changes, unsubscribe := service.Changes()
		defer unsubscribe()
		mirror := calendarsync.NewMirror(srv, cfg.GoogleCalendarID, logger.Named("calendarsync"))
		go mirror.Run(runCtx, changes)
		calendarSync = true
	}

	api := httpapi.New(cfg, service, httpapi.Options{StoreMode: storeMode, CalendarSync: calendarSync}, metrics, logger)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", cfg.BindAddr),
			zap.String("store_mode", storeMode),
			zap.String("analyzer_mode", analyzer.Mode()),
			zap.String("timezone", service.Location().String()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		_ = httpServer.Close()
	}
	logger.Info("shutdown complete")
	return nil
}

func schedulingOptions(cfg config.Config) scheduling.Options {
	opts := scheduling.DefaultOptions()
	opts.Slots = planning.SlotOptions{
		EarliestHour: cfg.EarliestHour,
		LatestHour:   cfg.LatestHour,
		Horizon:      cfg.SearchHorizon,
		Granularity:  cfg.SlotGranularity,
	}
	opts.Advisor = planning.AdvisorOptions{
		MaxContinuous: cfg.MaxContinuous,
		MinBreak:      cfg.MinBreak,
		DailyLimit:    cfg.DailyLimit,
		MinTransition: cfg.MinTransition,
	}
	if cfg.Location != nil {
		opts.Location = cfg.Location
	}
	return opts
}
