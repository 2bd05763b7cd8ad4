package service

import (
	"context"
	"sync"
	"time"

	"schedpoll/internal/repository"
	"schedpoll/internal/service/ott"
	"schedpoll/pkg/logger"
)

// Default sweep settings
const (
	DefaultOTTSweepInterval  = time.Hour
	DefaultPollSweepInterval = 24 * time.Hour
	DefaultPollRetention     = 210 * 24 * time.Hour
)

// ExpiryConfig controls the background sweeps
type ExpiryConfig struct {
	OTTSweepInterval  time.Duration
	PollSweepInterval time.Duration
	PollRetention     time.Duration
}

// expiryService periodically drops expired one-time tokens and old polls
type expiryService struct {
	repo   repository.PollRepository
	tokens ott.Store
	logger *logger.Logger
	cfg    ExpiryConfig
	now    func() time.Time

	ottTicker  *time.Ticker
	pollTicker *time.Ticker
	stop       chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	isRunning  bool
}

// NewExpiryService creates the sweeper. Zero config values fall back to defaults.
func NewExpiryService(repo repository.PollRepository, tokens ott.Store, log *logger.Logger, cfg ExpiryConfig) ExpiryService {
	if cfg.OTTSweepInterval <= 0 {
		cfg.OTTSweepInterval = DefaultOTTSweepInterval
	}
	if cfg.PollSweepInterval <= 0 {
		cfg.PollSweepInterval = DefaultPollSweepInterval
	}
	if cfg.PollRetention <= 0 {
		cfg.PollRetention = DefaultPollRetention
	}

	return &expiryService{
		repo:   repo,
		tokens: tokens,
		logger: log,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Start begins both sweep loops
func (s *expiryService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	s.logger.WithFields(map[string]interface{}{
		"ott_interval":   s.cfg.OTTSweepInterval.String(),
		"poll_interval":  s.cfg.PollSweepInterval.String(),
		"poll_retention": s.cfg.PollRetention.String(),
	}).Info("Starting expiry service...")

	s.stop = make(chan struct{})
	s.ottTicker = time.NewTicker(s.cfg.OTTSweepInterval)
	s.pollTicker = time.NewTicker(s.cfg.PollSweepInterval)

	s.wg.Add(1)
	go s.sweepRoutine(ctx)

	s.isRunning = true
	return nil
}

// Stop halts the sweep loops and waits for a running sweep to finish
func (s *expiryService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.ottTicker.Stop()
	s.pollTicker.Stop()
	close(s.stop)
	s.isRunning = false

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("Expiry service stopped")
	return nil
}

// SweepTokens deletes expired one-time tokens
func (s *expiryService) SweepTokens(ctx context.Context) (int, error) {
	removed, err := s.tokens.Sweep(ctx)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.WithField("removed", removed).Info("Swept expired one-time tokens")
	}
	return removed, nil
}

// SweepPolls deletes polls older than the retention period
func (s *expiryService) SweepPolls(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.cfg.PollRetention)
	removed, err := s.repo.DeletePollsCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.WithFields(map[string]interface{}{
			"removed": removed,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("Swept expired polls")
	}
	return removed, nil
}

func (s *expiryService) sweepRoutine(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ottTicker.C:
			if _, err := s.SweepTokens(ctx); err != nil {
				s.logger.WithError(err).Error("Failed to sweep one-time tokens")
			}
		case <-s.pollTicker.C:
			if _, err := s.SweepPolls(ctx); err != nil {
				s.logger.WithError(err).Error("Failed to sweep expired polls")
			}
		case <-s.stop:
			s.logger.Debug("Sweep routine stopped")
			return
		case <-ctx.Done():
			s.logger.Debug("Sweep routine cancelled")
			return
		}
	}
}
