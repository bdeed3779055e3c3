package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/amutrack/internal/config"
	"github.com/mamadbah2/amutrack/internal/repository/sheets"
	"github.com/mamadbah2/amutrack/internal/service/outbox"
	"github.com/mamadbah2/amutrack/internal/service/reporting"
)

const complianceRange = "Compliance!A:H"

// WithdrawalSweeper clears withdrawal flags whose period has elapsed.
type WithdrawalSweeper interface {
	ClearExpiredWithdrawals(ctx context.Context, now time.Time) (int64, error)
}

// Scheduler manages the background jobs: outbox drain, withdrawal expiry
// sweep and the weekly compliance export.
type Scheduler struct {
	cron         *cron.Cron
	dispatcher   *outbox.Dispatcher
	sweeper      WithdrawalSweeper
	reportingSvc *reporting.Service
	exporter     sheets.Exporter
	cfg          config.Config
	logger       *zap.Logger
}

// NewScheduler creates a new scheduler instance. A nil exporter disables the
// compliance export job.
func NewScheduler(cfg config.Config, dispatcher *outbox.Dispatcher, sweeper WithdrawalSweeper, reportingSvc *reporting.Service, exporter sheets.Exporter, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Jobs.Timezone)
	if err != nil {
		logger.Warn("invalid timezone, falling back to UTC", zap.String("timezone", cfg.Jobs.Timezone), zap.Error(err))
		loc = time.UTC
	}

	return &Scheduler{
		cron:         cron.New(cron.WithLocation(loc)),
		dispatcher:   dispatcher,
		sweeper:      sweeper,
		reportingSvc: reportingSvc,
		exporter:     exporter,
		cfg:          cfg,
		logger:       logger,
	}
}

// Start registers and starts the jobs.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler")

	if _, err := s.cron.AddFunc(s.cfg.Jobs.OutboxSchedule, s.drainOutbox); err != nil {
		s.logger.Error("failed to schedule outbox drain", zap.Error(err))
	}
	if _, err := s.cron.AddFunc(s.cfg.Jobs.WithdrawalSweepSchedule, s.sweepWithdrawals); err != nil {
		s.logger.Error("failed to schedule withdrawal sweep", zap.Error(err))
	}
	if s.exporter != nil {
		if _, err := s.cron.AddFunc(s.cfg.Jobs.ComplianceExportSchedule, s.exportCompliance); err != nil {
			s.logger.Error("failed to schedule compliance export", zap.Error(err))
		}
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

func (s *Scheduler) drainOutbox() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s.dispatcher.Drain(ctx)
}

func (s *Scheduler) sweepWithdrawals() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cleared, err := s.sweeper.ClearExpiredWithdrawals(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("withdrawal sweep failed", zap.Error(err))
		return
	}
	if cleared > 0 {
		s.logger.Info("withdrawal flags cleared", zap.Int64("count", cleared))
	}
}

func (s *Scheduler) exportCompliance() {
	s.logger.Info("generating compliance export")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -7)

	summary, err := s.reportingSvc.UsageSummary(ctx, start, end)
	if err != nil {
		s.logger.Error("failed to generate usage summary", zap.Error(err))
		return
	}

	rows := make([][]interface{}, 0, len(summary))
	for _, row := range summary {
		rows = append(rows, []interface{}{
			row.StartDate.Format("2006-01-02"),
			row.FarmerID,
			row.FarmerName,
			row.FeedName,
			row.ActiveIngredient,
			row.Quantity,
			row.Unit,
			string(row.Status),
		})
	}

	if err := s.exporter.AppendRows(ctx, complianceRange, rows); err != nil {
		s.logger.Error("failed to export compliance rows", zap.Error(err))
		return
	}
	s.logger.Info("compliance export sent", zap.Int("rows", len(rows)))
}
