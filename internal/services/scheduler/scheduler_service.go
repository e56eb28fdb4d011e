package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"
)

// Runner executes the work of one scheduled cycle
type Runner interface {
	RunSource(ctx context.Context, name string, mode models.RunMode) (*models.RunResult, error)
	RunSuccession(ctx context.Context) (*models.SuccessionResult, error)
}

// CycleStatus describes the most recent cycle
type CycleStatus struct {
	LastRun   *time.Time
	NextRun   *time.Time
	IsRunning bool
	LastError string
}

// Service runs every enabled source on a cron schedule
type Service struct {
	runner  Runner
	sources []string
	config  *common.SchedulerConfig
	cron    *cron.Cron
	logger  arbor.ILogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex // Protects the fields below
	cronID       cron.EntryID
	isProcessing bool
	running      bool
	lastRun      *time.Time
	lastError    string
}

// NewService creates a scheduler for the given source names
func NewService(runner Runner, sources []string, config *common.SchedulerConfig, logger arbor.ILogger) *Service {
	return &Service{
		runner:  runner,
		sources: sources,
		config:  config,
		cron:    cron.New(),
		logger:  logger,
	}
}

// Start registers the cycle with cron and begins scheduling
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	schedule := s.config.Schedule
	if schedule == "" {
		schedule = "0 6 * * *"
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	id, err := s.cron.AddFunc(schedule, s.runScheduledCycle)
	if err != nil {
		s.cancel()
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.cronID = id

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", schedule).
		Strs("sources", s.sources).
		Int("concurrency", s.concurrency()).
		Msg("Scheduler started")

	if s.config.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runScheduledCycle()
		}()
	}

	return nil
}

// Stop halts scheduling, cancels an in-flight cycle and waits for it to return
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.wg.Wait()

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning reports whether the scheduler has been started
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns the state of the last and next cycle
func (s *Service) Status() CycleStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := CycleStatus{
		LastRun:   s.lastRun,
		IsRunning: s.isProcessing,
		LastError: s.lastError,
	}
	if s.running {
		next := s.cron.Entry(s.cronID).Next
		if !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}

// runScheduledCycle is the cron callback. Overlapping cycles are skipped.
func (s *Service) runScheduledCycle() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in scheduled cycle")
		}
	}()

	s.mu.Lock()
	if s.isProcessing {
		s.mu.Unlock()
		s.logger.Warn().Msg("Previous cycle still running, skipping this cycle")
		return
	}
	s.isProcessing = true
	ctx := s.ctx
	s.mu.Unlock()

	err := s.RunCycle(ctx)

	completed := time.Now()
	s.mu.Lock()
	s.isProcessing = false
	s.lastRun = &completed
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	s.mu.Unlock()
}

// RunCycle reconciles every source in incremental mode, then runs the succession
// check when enabled. Source failures are logged and do not stop other sources.
func (s *Service) RunCycle(ctx context.Context) error {
	started := time.Now()
	s.logger.Info().Int("sources", len(s.sources)).Msg("Starting scheduled cycle")

	var (
		mu     sync.Mutex
		failed []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())

	for _, name := range s.sources {
		g.Go(func() error {
			result, err := s.runner.RunSource(gctx, name, models.RunModeIncremental)
			if err == nil && result != nil && !result.Success {
				err = errors.New("run failed")
				if result.Error != nil {
					err = errors.New(*result.Error)
				}
			}
			if err != nil {
				s.logger.Error().Err(err).Str("source", name).Msg("Source run failed")
				mu.Lock()
				failed = append(failed, name)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if s.config.RunSuccession {
		result, err := s.runner.RunSuccession(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("Succession check failed")
			return fmt.Errorf("succession check: %w", err)
		}
		s.logger.Info().
			Int("checked", result.CheckedCount).
			Int("succeeded", result.SucceededCount).
			Msg("Succession check completed")
	}

	if len(failed) > 0 {
		s.logger.Warn().
			Strs("failed_sources", failed).
			Dur("duration", time.Since(started)).
			Msg("Scheduled cycle completed with failures")
		return fmt.Errorf("%d of %d sources failed", len(failed), len(s.sources))
	}

	s.logger.Info().Dur("duration", time.Since(started)).Msg("Scheduled cycle completed")
	return nil
}

func (s *Service) concurrency() int {
	if s.config.Concurrency < 1 {
		return 1
	}
	return s.config.Concurrency
}
