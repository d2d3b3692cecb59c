package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/teamonboard/flowline-backend/internal/pkg/logger"
	"github.com/teamonboard/flowline-backend/internal/services"
)

const (
	dueSoonWindow    = 48 * time.Hour
	snapshotMinAge   = 90 * 24 * time.Hour
	dispatchBatch    = 100
	scanTimeout      = 2 * time.Minute
	dispatchInterval = "@every 30s"
)

// Scheduler runs the periodic maintenance work: deadline scans, notification
// dispatch, snapshot collection and token cleanup.
type Scheduler struct {
	cron                *cron.Cron
	log                 *logger.Logger
	maintenanceService  services.MaintenanceService
	notificationService services.NotificationService
}

func NewScheduler(
	log *logger.Logger,
	maintenanceService services.MaintenanceService,
	notificationService services.NotificationService,
) *Scheduler {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.DelayIfStillRunning(cron.DefaultLogger),
	))
	return &Scheduler{
		cron:                c,
		log:                 log.With("system", "jobs"),
		maintenanceService:  maintenanceService,
		notificationService: notificationService,
	}
}

func (s *Scheduler) Register() error {
	if _, err := s.cron.AddFunc(dispatchInterval, s.dispatchNotifications); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 15m", s.scanDeadlines); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 3 * * *", s.collectSnapshots); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("30 3 * * *", s.cleanupTokens); err != nil {
		return err
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) dispatchNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()
	sent, err := s.notificationService.DispatchPending(ctx, dispatchBatch)
	if err != nil {
		s.log.Error("failed to dispatch notifications", "error", err)
		return
	}
	if sent > 0 {
		s.log.Info("dispatched notifications", "count", sent)
	}
}

func (s *Scheduler) scanDeadlines() {
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()
	overdue, err := s.maintenanceService.ScanOverdue(ctx)
	if err != nil {
		s.log.Error("overdue scan failed", "error", err)
	} else if overdue > 0 {
		s.log.Info("flagged overdue assignments", "count", overdue)
	}
	dueSoon, err := s.maintenanceService.ScanDueSoon(ctx, dueSoonWindow)
	if err != nil {
		s.log.Error("due-soon scan failed", "error", err)
	} else if dueSoon > 0 {
		s.log.Info("flagged due-soon assignments", "count", dueSoon)
	}
}

func (s *Scheduler) collectSnapshots() {
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()
	removed, err := s.maintenanceService.CollectSnapshots(ctx, snapshotMinAge)
	if err != nil {
		s.log.Error("snapshot collection failed", "error", err)
		return
	}
	s.log.Info("collected snapshots", "count", removed)
}

func (s *Scheduler) cleanupTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()
	removed, err := s.maintenanceService.CleanupExpiredTokens(ctx)
	if err != nil {
		s.log.Error("token cleanup failed", "error", err)
		return
	}
	s.log.Info("cleaned up expired refresh tokens", "count", removed)
}
