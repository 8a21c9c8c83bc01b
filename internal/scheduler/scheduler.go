package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/stationledger/internal/config"
	"github.com/mamadbah2/stationledger/internal/domain/models"
)

const (
	digestLockKey = "ledger:weekly-digest"
	digestLockTTL = 10 * time.Minute
)

// DigestBuilder renders the weekly multi-material report.
type DigestBuilder interface {
	WeeklyDigest(ctx context.Context, at time.Time) (string, error)
}

// Notifier delivers the report. It is nil when messaging is disabled.
type Notifier interface {
	SendOutbound(ctx context.Context, msg models.OutboundMessage) error
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron      *cron.Cron
	schedule  string
	location  *time.Location
	recipient string
	reporting DigestBuilder
	notifier  Notifier
	locker    *redislock.Client
	logger    *zap.Logger
	now       func() time.Time
}

// NewScheduler creates a new scheduler instance. locker may be nil, in which
// case every replica sends its own digest.
func NewScheduler(cfg config.ReportingConfig, reporting DigestBuilder, notifier Notifier, locker *redislock.Client, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", cfg.Timezone, err)
	}

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		schedule:  cfg.CronSchedule,
		location:  loc,
		recipient: cfg.RecipientID,
		reporting: reporting,
		notifier:  notifier,
		locker:    locker,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Start registers the weekly digest job and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("schedule", s.schedule), zap.String("timezone", s.location.String()))

	if _, err := s.cron.AddFunc(s.schedule, s.sendWeeklyReport); err != nil {
		return fmt.Errorf("schedule weekly digest %q: %w", s.schedule, err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sendWeeklyReport() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.RunWeeklyDigest(ctx); err != nil {
		s.logger.Error("weekly digest failed", zap.Error(err))
	}
}

// RunWeeklyDigest builds the digest of the current week and delivers it once
// across replicas.
func (s *Scheduler) RunWeeklyDigest(ctx context.Context) error {
	if s.locker != nil {
		// The lock is left to expire so a replica firing a little later still skips.
		if _, err := s.locker.Obtain(ctx, digestLockKey, digestLockTTL, nil); err != nil {
			if errors.Is(err, redislock.ErrNotObtained) {
				s.logger.Info("weekly digest already handled by another instance")
				return nil
			}
			return fmt.Errorf("obtain digest lock: %w", err)
		}
	}

	s.logger.Info("generating weekly digest")
	report, err := s.reporting.WeeklyDigest(ctx, s.now().In(s.location))
	if err != nil {
		return fmt.Errorf("build weekly digest: %w", err)
	}

	if s.notifier == nil || s.recipient == "" {
		s.logger.Info("messaging disabled, weekly digest logged only", zap.String("digest", report))
		return nil
	}

	if err := s.notifier.SendOutbound(ctx, models.OutboundMessage{To: s.recipient, Message: report}); err != nil {
		return fmt.Errorf("send weekly digest: %w", err)
	}

	s.logger.Info("weekly digest sent", zap.String("recipient", s.recipient))
	return nil
}
