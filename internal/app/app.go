// -----------------------------------------------------------------------
// Application wiring
// Builds storage, extraction, reconciliation and the run lifecycle
// -----------------------------------------------------------------------

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Geldren1/nato-website-2/internal/interfaces"
	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/Geldren1/nato-website-2/internal/services/browser"
	"github.com/Geldren1/nato-website-2/internal/services/discovery"
	"github.com/Geldren1/nato-website-2/internal/services/extraction"
	"github.com/Geldren1/nato-website-2/internal/services/fetcher"
	"github.com/Geldren1/nato-website-2/internal/services/llm"
	"github.com/Geldren1/nato-website-2/internal/services/lock"
	"github.com/Geldren1/nato-website-2/internal/services/metrics"
	"github.com/Geldren1/nato-website-2/internal/services/notify"
	"github.com/Geldren1/nato-website-2/internal/services/pdf"
	"github.com/Geldren1/nato-website-2/internal/services/reconciler"
	"github.com/Geldren1/nato-website-2/internal/services/sources"
	"github.com/Geldren1/nato-website-2/internal/services/succession"
	"github.com/Geldren1/nato-website-2/internal/storage"
	"github.com/ternarybob/arbor"
)

// ErrRunInProgress is returned when another process holds the lock for a run
var ErrRunInProgress = errors.New("run already in progress")

const successionLockName = "succession"

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Storage    interfaces.PostingStorage
	Sources    *sources.Registry
	LLMService interfaces.LLMService

	Reconciler *reconciler.Service
	Succession *succession.Checker
	Notifier   *notify.Notifier

	Lock     interfaces.RunLock
	Metrics  *metrics.Metrics
	Recorder interfaces.RunRecorder

	redisLock *lock.RedisLock
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Lock:     lock.NoopLock{},
		Recorder: metrics.NoopRecorder{},
	}

	registry, err := sources.Load(&cfg.Sources, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}
	app.Sources = registry

	if err := app.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	backend := "none"
	if app.LLMService != nil {
		backend = app.LLMService.Name()
	}
	logger.Info().
		Str("storage", cfg.Storage.Type).
		Str("backend", backend).
		Strs("sources", registry.Enabled()).
		Bool("redis_lock", app.redisLock != nil).
		Bool("metrics", app.Metrics != nil).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the posting store (Badger or Postgres)
func (a *App) initDatabase(ctx context.Context) error {
	store, err := storage.NewPostingStorage(ctx, a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create posting storage: %w", err)
	}
	a.Storage = store

	a.Logger.Debug().
		Str("storage", a.Config.Storage.Type).
		Msg("Storage layer initialized")
	return nil
}

// initServices initializes the business services in dependency order
func (a *App) initServices(ctx context.Context) error {
	cfg := a.Config

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		a.Recorder = a.Metrics
	}

	if cfg.Redis.URL != "" {
		redisLock, err := lock.NewRedisLock(ctx, &cfg.Redis, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect run lock: %w", err)
		}
		a.redisLock = redisLock
		a.Lock = redisLock
	}

	backend, err := llm.NewLLMService(ctx, cfg, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create extraction backend: %w", err)
	}
	a.LLMService = llm.NewInstrumentedService(backend, a.Recorder)

	browsers := browser.NewFactory(&cfg.Browser, a.Logger)
	pages := discovery.NewFactory(browsers, &cfg.Browser, a.Logger)
	documents := fetcher.NewFetcher(&cfg.Fetcher, cfg.Browser.UserAgent, a.Logger)

	a.Reconciler = reconciler.NewService(
		a.Storage,
		pages,
		documents,
		fetcher.NewRetryPolicy(&cfg.Fetcher),
		pdf.NewExtractor(a.Logger),
		a.extractorFor,
		&cfg.Reconciler,
		a.Logger,
	)

	a.Succession = succession.NewChecker(a.Storage, a.Logger)
	a.Notifier = notify.NewNotifier(notify.NewLogDispatcher(a.Logger), a.Storage, a.Logger)

	return nil
}

// extractorFor builds the field extractor of a posting type over the shared backend
func (a *App) extractorFor(postingType models.PostingType) (interfaces.FieldExtractor, error) {
	opts := extraction.OptionsFromConfig(&a.Config.Extraction, postingType)
	extractor, err := extraction.ForType(postingType, a.LLMService, opts, a.Logger)
	if err != nil {
		return nil, err
	}
	return extractor, nil
}

// DefaultMode returns the configured run mode
func (a *App) DefaultMode() models.RunMode {
	mode, ok := models.ParseRunMode(a.Config.Reconciler.Mode)
	if !ok {
		return models.RunModeIncremental
	}
	return mode
}

// RunSource reconciles one source under its run lock, records metrics and hands
// the change-set to the notifier. The returned result reports reconciliation
// failures; the error covers failures to start the run.
func (a *App) RunSource(ctx context.Context, name string, mode models.RunMode) (*models.RunResult, error) {
	source, err := a.Sources.Get(name)
	if err != nil {
		return nil, err
	}

	release, acquired, err := a.Lock.Acquire(ctx, name)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, fmt.Errorf("%s: %w", name, ErrRunInProgress)
	}
	defer release()

	result := a.Reconciler.Run(ctx, source, mode)
	a.Recorder.ObserveRun(result)

	if result.Success && a.Config.Scheduler.NotifyOnChange {
		if _, err := a.Notifier.Notify(ctx, result); err != nil {
			a.Logger.Warn().Err(err).Str("source", name).Msg("Notification failed, changes stay flagged")
		}
	}

	return result, nil
}

// RunSuccession retires notices that have a successor, under the succession lock
func (a *App) RunSuccession(ctx context.Context) (*models.SuccessionResult, error) {
	release, acquired, err := a.Lock.Acquire(ctx, successionLockName)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, fmt.Errorf("%s: %w", successionLockName, ErrRunInProgress)
	}
	defer release()

	result := a.Succession.Check(ctx)
	a.Recorder.ObserveSuccession(result)

	if !result.Success && result.Error != nil {
		return result, errors.New(*result.Error)
	}
	return result, nil
}

// ServeMetrics exposes /metrics until ctx is cancelled. It returns nil when
// metrics are disabled.
func (a *App) ServeMetrics(ctx context.Context) error {
	if a.Metrics == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())

	server := &http.Server{
		Addr:              a.Config.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	a.Logger.Info().Str("address", server.Addr).Msg("Metrics endpoint listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}

// Close closes all application resources
func (a *App) Close() error {
	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close extraction backend")
		}
	}

	if a.redisLock != nil {
		if err := a.redisLock.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close redis client")
		}
	}

	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
