package app

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/handlers"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/services/broadcast"
	"github.com/ternarybob/vigilo/internal/services/browser"
	"github.com/ternarybob/vigilo/internal/services/debug"
	"github.com/ternarybob/vigilo/internal/services/events"
	"github.com/ternarybob/vigilo/internal/services/monitor"
	"github.com/ternarybob/vigilo/internal/services/scheduler"
	"github.com/ternarybob/vigilo/internal/services/sla"
	"github.com/ternarybob/vigilo/internal/services/targets"
	"github.com/ternarybob/vigilo/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService     interfaces.EventService
	BroadcastService interfaces.BroadcastService

	// Browser and capture
	BrowserService interfaces.BrowserService
	DebugService   interfaces.DebugService

	// Monitoring
	MonitorService   interfaces.MonitorService
	SchedulerService interfaces.SchedulerService

	// Analytics and target management
	SLAService    interfaces.SLAService
	TargetService interfaces.TargetService

	// HTTP handlers
	APIHandler    *handlers.APIHandler
	TargetHandler *handlers.TargetHandler
	SLAHandler    *handlers.SLAHandler
	DebugHandler  *handlers.DebugHandler
	StreamHandler *handlers.StreamHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize database
	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Initialize handlers
	app.initHandlers()

	logger.Info().
		Str("probe_mode", cfg.Probe.Mode).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes all business services in dependency order
func (a *App) initServices() error {
	// Event service carries target lifecycle notifications
	a.EventService = events.NewService(a.Logger)

	// Broadcast service fans captured events out to stream subscribers
	a.BroadcastService = broadcast.NewService(a.Logger)

	// Shared headless browser, launched lazily on first acquire
	a.BrowserService = browser.NewService(&a.Config.Browser, a.Config.Probe.UserAgent, a.Logger)
	a.Logger.Debug().Bool("headless", a.Config.Browser.Headless).Msg("Browser service initialized")

	// Debug capture sessions
	a.DebugService = debug.NewService(
		a.StorageManager,
		a.BrowserService,
		a.BroadcastService,
		&a.Config.Debug,
		a.Logger,
	)
	a.Logger.Debug().Msg("Debug service initialized")

	// Per-target circuit breaker
	breaker := monitor.NewBreaker(
		a.Config.Breaker.FailureThreshold,
		a.Config.Breaker.Cooldown(),
		clockwork.NewRealClock(),
		a.Logger,
	)

	// Prober: plain HTTP by default, or through the shared browser so
	// checks route into an active debug capture when one exists
	var prober interfaces.Prober
	switch a.Config.Probe.Mode {
	case "browser":
		prober = monitor.NewBrowserProbe(a.BrowserService, a.DebugService, a.Logger)
	case "", "http":
		prober = monitor.NewHTTPProbe(&a.Config.Probe, a.Logger)
	default:
		return fmt.Errorf("unknown probe mode %q, expected http or browser", a.Config.Probe.Mode)
	}

	a.MonitorService = monitor.NewService(a.StorageManager, prober, breaker, &a.Config.Probe, a.Logger)
	a.Logger.Debug().Str("mode", a.Config.Probe.Mode).Msg("Monitor service initialized")

	// Availability analytics with a short-lived result cache
	a.SLAService = sla.NewService(a.StorageManager, &a.Config.SLA, a.Logger)

	// Target CRUD with validation and event publishing
	a.TargetService = targets.NewService(a.StorageManager, a.EventService, a.Config, a.Logger)

	// Scheduler drives periodic checks, one cron job per enabled target
	a.SchedulerService = scheduler.NewService(a.StorageManager, a.MonitorService, a.EventService, &a.Config.Scheduler, a.Logger)

	return nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.StorageManager, a.BrowserService)
	a.TargetHandler = handlers.NewTargetHandler(a.TargetService, a.MonitorService, a.StorageManager)
	a.SLAHandler = handlers.NewSLAHandler(a.SLAService)
	a.DebugHandler = handlers.NewDebugHandler(a.DebugService)
	a.StreamHandler = handlers.NewStreamHandler(a.DebugService, a.BroadcastService)
}

// Start begins background processing (the check scheduler)
func (a *App) Start(ctx context.Context) error {
	if !a.Config.Scheduler.Enabled {
		a.Logger.Info().Msg("Scheduler disabled, checks run on demand only")
		return nil
	}

	if err := a.SchedulerService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	a.Logger.Info().Int("jobs", a.SchedulerService.JobCount()).Msg("Scheduler started")

	return nil
}

// Close closes all application resources
func (a *App) Close() error {
	ctx := context.Background()

	// Stop scheduler first so no new checks start mid-shutdown
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	// Finalize any running debug captures
	if a.DebugService != nil {
		if err := a.DebugService.Shutdown(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to shut down debug service")
		}
	}

	// Close the shared browser
	if a.BrowserService != nil {
		if err := a.BrowserService.Shutdown(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to shut down browser service")
		}
	}

	// Close event service
	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	// Close storage
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
