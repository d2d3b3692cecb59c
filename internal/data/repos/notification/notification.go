package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
	"github.com/teamonboard/flowline-backend/internal/pkg/logger"
)

type NotificationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, notifications []*types.Notification) ([]*types.Notification, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, unreadOnly bool, offset, limit int) ([]*types.Notification, int64, error)
	MarkRead(ctx context.Context, tx *gorm.DB, userID uuid.UUID, notificationIDs []uuid.UUID, now time.Time) error
	// GetUndispatched returns pending notifications for the dispatch batch,
	// oldest first.
	GetUndispatched(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Notification, error)
	MarkDispatched(ctx context.Context, tx *gorm.DB, notificationIDs []uuid.UUID, now time.Time) error
}

type notificationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNotificationRepo(db *gorm.DB, baseLog *logger.Logger) NotificationRepo {
	return &notificationRepo{db: db, log: baseLog.With("repo", "NotificationRepo")}
}

func (r *notificationRepo) Create(ctx context.Context, tx *gorm.DB, notifications []*types.Notification) ([]*types.Notification, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(notifications) == 0 {
		return []*types.Notification{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *notificationRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, unreadOnly bool, offset, limit int) ([]*types.Notification, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	query := transaction.WithContext(ctx).
		Model(&types.Notification{}).
		Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = false")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*types.Notification
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, tx *gorm.DB, userID uuid.UUID, notificationIDs []uuid.UUID, now time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(notificationIDs) == 0 {
		return nil
	}

	res := transaction.WithContext(ctx).
		Model(&types.Notification{}).
		Where("user_id = ? AND id IN ? AND is_read = false", userID, notificationIDs).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *notificationRepo) GetUndispatched(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Notification, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Notification
	if err := transaction.WithContext(ctx).
		Where("dispatched_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *notificationRepo) MarkDispatched(ctx context.Context, tx *gorm.DB, notificationIDs []uuid.UUID, now time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(notificationIDs) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Model(&types.Notification{}).
		Where("id IN ?", notificationIDs).
		Update("dispatched_at", now).Error
}
