package achievement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
	"github.com/teamonboard/flowline-backend/internal/pkg/logger"
)

type AchievementRepo interface {
	Create(ctx context.Context, tx *gorm.DB, achievements []*types.Achievement) ([]*types.Achievement, error)
	GetByID(ctx context.Context, tx *gorm.DB, achievementID uuid.UUID) (*types.Achievement, error)
	GetByCode(ctx context.Context, tx *gorm.DB, code string) (*types.Achievement, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.Achievement, error)
	Update(ctx context.Context, tx *gorm.DB, achievementID uuid.UUID, updates map[string]interface{}) error
	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, achievementIDs []uuid.UUID) error

	Grant(ctx context.Context, tx *gorm.DB, grant *types.UserAchievement) (*types.UserAchievement, error)
	GetUserAchievements(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UserAchievement, error)
	HasGrant(ctx context.Context, tx *gorm.DB, userID, achievementID uuid.UUID) (bool, error)
}

type achievementRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAchievementRepo(db *gorm.DB, baseLog *logger.Logger) AchievementRepo {
	return &achievementRepo{db: db, log: baseLog.With("repo", "AchievementRepo")}
}

func (r *achievementRepo) Create(ctx context.Context, tx *gorm.DB, achievements []*types.Achievement) ([]*types.Achievement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(achievements) == 0 {
		return []*types.Achievement{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&achievements).Error; err != nil {
		return nil, err
	}
	return achievements, nil
}

func (r *achievementRepo) GetByID(ctx context.Context, tx *gorm.DB, achievementID uuid.UUID) (*types.Achievement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Achievement
	if err := transaction.WithContext(ctx).
		Where("id = ?", achievementID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *achievementRepo) GetByCode(ctx context.Context, tx *gorm.DB, code string) (*types.Achievement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Achievement
	if err := transaction.WithContext(ctx).
		Where("code = ?", code).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *achievementRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Achievement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Achievement
	if err := transaction.WithContext(ctx).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *achievementRepo) Update(ctx context.Context, tx *gorm.DB, achievementID uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(updates) == 0 {
		return nil
	}

	res := transaction.WithContext(ctx).
		Model(&types.Achievement{}).
		Where("id = ?", achievementID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *achievementRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, achievementIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(achievementIDs) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Where("id IN ?", achievementIDs).
		Delete(&types.Achievement{}).Error
}

func (r *achievementRepo) Grant(ctx context.Context, tx *gorm.DB, grant *types.UserAchievement) (*types.UserAchievement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).Create(grant).Error; err != nil {
		return nil, err
	}
	return grant, nil
}

func (r *achievementRepo) GetUserAchievements(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UserAchievement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.UserAchievement
	if err := transaction.WithContext(ctx).
		Preload("Achievement").
		Where("user_id = ?", userID).
		Order("granted_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *achievementRepo) HasGrant(ctx context.Context, tx *gorm.DB, userID, achievementID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.UserAchievement{}).
		Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
