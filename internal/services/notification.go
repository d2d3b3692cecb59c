package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teamonboard/flowline-backend/internal/data/repos"
	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
	"github.com/teamonboard/flowline-backend/internal/pkg/logger"
	"github.com/teamonboard/flowline-backend/internal/requestdata"
)

type NotificationService interface {
	List(ctx context.Context, unreadOnly bool, offset, limit int) ([]*types.Notification, int64, error)
	MarkRead(ctx context.Context, notificationIDs []uuid.UUID) error
	// DispatchPending pushes undispatched notifications onto the event bus and
	// marks them dispatched. Called by the cron batch.
	DispatchPending(ctx context.Context, batchSize int) (int, error)
}

type notificationService struct {
	db               *gorm.DB
	log              *logger.Logger
	notificationRepo repos.NotificationRepo
	bus              EventBus
}

func NewNotificationService(db *gorm.DB, log *logger.Logger, notificationRepo repos.NotificationRepo, bus EventBus) NotificationService {
	return &notificationService{
		db:               db,
		log:              log.With("service", "NotificationService"),
		notificationRepo: notificationRepo,
		bus:              bus,
	}
}

func (s *notificationService) List(ctx context.Context, unreadOnly bool, offset, limit int) ([]*types.Notification, int64, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, 0, apperr.ErrUnauthorized
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.notificationRepo.GetByUserID(ctx, nil, rd.UserID, unreadOnly, offset, limit)
}

func (s *notificationService) MarkRead(ctx context.Context, notificationIDs []uuid.UUID) error {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return apperr.ErrUnauthorized
	}
	return s.notificationRepo.MarkRead(ctx, nil, rd.UserID, notificationIDs, time.Now())
}

func (s *notificationService) DispatchPending(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var dispatched int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pending, err := s.notificationRepo.GetUndispatched(ctx, tx, batchSize)
		if err != nil {
			return fmt.Errorf("load pending: %w", err)
		}
		if len(pending) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(pending))
		for _, n := range pending {
			if s.bus != nil {
				if err := s.bus.Publish(ctx, EventMessage{
					UserID: n.UserID,
					Type:   string(n.Type),
					Title:  n.Title,
					Body:   n.Message,
				}); err != nil {
					// Leave the row pending; the next batch retries it.
					s.log.Warn("bus publish failed", "notification_id", n.ID, "error", err)
					continue
				}
			}
			ids = append(ids, n.ID)
		}
		if err := s.notificationRepo.MarkDispatched(ctx, tx, ids, time.Now()); err != nil {
			return fmt.Errorf("mark dispatched: %w", err)
		}
		dispatched = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if dispatched > 0 {
		s.log.Info("dispatched notifications", "count", dispatched)
	}
	return dispatched, nil
}
