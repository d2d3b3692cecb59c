package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teamonboard/flowline-backend/internal/data/repos"
	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/pkg/logger"
)

// MaintenanceService hosts the periodic jobs: overdue detection, snapshot
// garbage collection and token cleanup. Each method is one cron tick and is
// safe to run repeatedly.
type MaintenanceService interface {
	// ScanOverdue notifies assignees whose open assignments slipped past the
	// due date. Each assignment is notified at most once.
	ScanOverdue(ctx context.Context) (int, error)
	// ScanDueSoon warns about assignments due within the window.
	ScanDueSoon(ctx context.Context, window time.Duration) (int, error)
	// CollectSnapshots removes snapshots older than minAge with no remaining
	// non-terminal assignment.
	CollectSnapshots(ctx context.Context, minAge time.Duration) (int, error)
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

type maintenanceService struct {
	db               *gorm.DB
	log              *logger.Logger
	assignmentRepo   repos.AssignmentRepo
	snapshotRepo     repos.FlowSnapshotRepo
	notificationRepo repos.NotificationRepo
	userTokenRepo    repos.UserTokenRepo
}

func NewMaintenanceService(
	db *gorm.DB,
	log *logger.Logger,
	assignmentRepo repos.AssignmentRepo,
	snapshotRepo repos.FlowSnapshotRepo,
	notificationRepo repos.NotificationRepo,
	userTokenRepo repos.UserTokenRepo,
) MaintenanceService {
	return &maintenanceService{
		db:               db,
		log:              log.With("service", "MaintenanceService"),
		assignmentRepo:   assignmentRepo,
		snapshotRepo:     snapshotRepo,
		notificationRepo: notificationRepo,
		userTokenRepo:    userTokenRepo,
	}
}

func (s *maintenanceService) ScanOverdue(ctx context.Context) (int, error) {
	var notified int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		overdue, err := s.assignmentRepo.GetOverdue(ctx, tx, time.Now())
		if err != nil {
			return fmt.Errorf("load overdue: %w", err)
		}
		for _, a := range overdue {
			already, err := s.alreadyNotified(ctx, tx, a.ID, types.NotificationOverdue)
			if err != nil {
				return err
			}
			if already {
				continue
			}
			if err := s.notifyAssignment(ctx, tx, a, types.NotificationOverdue,
				"Assignment overdue",
				fmt.Sprintf("Your assignment was due on %s.", a.DueDate.Format("2006-01-02"))); err != nil {
				return err
			}
			notified++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if notified > 0 {
		s.log.Info("overdue scan finished", "notified", notified)
	}
	return notified, nil
}

func (s *maintenanceService) ScanDueSoon(ctx context.Context, window time.Duration) (int, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	now := time.Now()

	var notified int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dueSoon []*types.FlowAssignment
		if err := tx.WithContext(ctx).
			Where("status IN ? AND due_date IS NOT NULL AND due_date >= ? AND due_date < ?",
				[]types.AssignmentStatus{types.AssignmentAssigned, types.AssignmentInProgress},
				now, now.Add(window)).
			Find(&dueSoon).Error; err != nil {
			return fmt.Errorf("load due soon: %w", err)
		}
		for _, a := range dueSoon {
			already, err := s.alreadyNotified(ctx, tx, a.ID, types.NotificationDueSoon)
			if err != nil {
				return err
			}
			if already {
				continue
			}
			if err := s.notifyAssignment(ctx, tx, a, types.NotificationDueSoon,
				"Assignment due soon",
				fmt.Sprintf("Your assignment is due on %s.", a.DueDate.Format("2006-01-02"))); err != nil {
				return err
			}
			notified++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return notified, nil
}

// alreadyNotified checks for an earlier notification of the given type carrying
// this assignment id in its payload.
func (s *maintenanceService) alreadyNotified(ctx context.Context, tx *gorm.DB, assignmentID uuid.UUID, nt types.NotificationType) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).
		Model(&types.Notification{}).
		Where("type = ? AND payload->>'assignment_id' = ?", nt, assignmentID.String()).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *maintenanceService) notifyAssignment(ctx context.Context, tx *gorm.DB, a *types.FlowAssignment, nt types.NotificationType, title, message string) error {
	payload, err := types.MarshalContent(map[string]string{"assignment_id": a.ID.String()})
	if err != nil {
		return err
	}
	notes := []*types.Notification{{
		ID:      uuid.New(),
		UserID:  a.UserID,
		Type:    nt,
		Title:   title,
		Message: message,
		Payload: payload,
	}}
	// The buddy gets a copy so they can nudge their assignee.
	if a.BuddyID != nil {
		notes = append(notes, &types.Notification{
			ID:      uuid.New(),
			UserID:  *a.BuddyID,
			Type:    nt,
			Title:   title,
			Message: message,
			Payload: payload,
		})
	}
	_, err = s.notificationRepo.Create(ctx, tx, notes)
	return err
}

func (s *maintenanceService) CollectSnapshots(ctx context.Context, minAge time.Duration) (int, error) {
	if minAge <= 0 {
		minAge = 30 * 24 * time.Hour
	}
	candidates, err := s.snapshotRepo.GetOldSnapshots(ctx, nil, time.Now().Add(-minAge))
	if err != nil {
		return 0, fmt.Errorf("load gc candidates: %w", err)
	}

	collected := 0
	for _, snap := range candidates {
		busy, err := s.snapshotRepo.HasActiveAssignments(ctx, nil, snap.ID)
		if err != nil {
			return collected, err
		}
		if busy {
			continue
		}
		// Delete re-checks the guard inside its own transaction, so a racing
		// assignment between the two calls still loses cleanly.
		if err := s.snapshotRepo.Delete(ctx, nil, snap.ID); err != nil {
			s.log.Warn("snapshot gc skipped", "snapshot_id", snap.ID, "error", err)
			continue
		}
		collected++
	}
	if collected > 0 {
		s.log.Info("snapshot gc finished", "collected", collected, "candidates", len(candidates))
	}
	return collected, nil
}

func (s *maintenanceService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	return s.userTokenRepo.DeleteExpired(ctx, nil, time.Now())
}
