package assignment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
	"github.com/teamonboard/flowline-backend/internal/pkg/logger"
)

type ProgressRepo interface {
	// CreateTree persists a freshly built progress skeleton (flow + steps +
	// components) in one write.
	CreateTree(ctx context.Context, tx *gorm.DB, progress *types.FlowProgress) (*types.FlowProgress, error)
	// GetByAssignmentID loads the full tree, steps ordered by order key.
	GetByAssignmentID(ctx context.Context, tx *gorm.DB, assignmentID uuid.UUID) (*types.FlowProgress, error)
	GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.FlowProgress, error)
	SaveComponent(ctx context.Context, tx *gorm.DB, cp *types.ComponentProgress) error
	SaveStep(ctx context.Context, tx *gorm.DB, sp *types.StepProgress) error
	SaveFlow(ctx context.Context, tx *gorm.DB, fp *types.FlowProgress) error
	DeleteByAssignmentIDs(ctx context.Context, tx *gorm.DB, assignmentIDs []uuid.UUID) error
}

type progressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRepo {
	return &progressRepo{db: db, log: baseLog.With("repo", "ProgressRepo")}
}

func (r *progressRepo) CreateTree(ctx context.Context, tx *gorm.DB, progress *types.FlowProgress) (*types.FlowProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).Create(progress).Error; err != nil {
		return nil, err
	}
	return progress, nil
}

func (r *progressRepo) GetByAssignmentID(ctx context.Context, tx *gorm.DB, assignmentID uuid.UUID) (*types.FlowProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.FlowProgress
	if err := transaction.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_key ASC, id ASC")
		}).
		Preload("Steps.Components").
		Where("assignment_id = ?", assignmentID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *progressRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.FlowProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.FlowProgress
	if len(userIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *progressRepo) SaveComponent(ctx context.Context, tx *gorm.DB, cp *types.ComponentProgress) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.ComponentProgress{}).
		Where("id = ?", cp.ID).
		Updates(map[string]interface{}{
			"is_completed":       cp.IsCompleted,
			"attempts_count":     cp.AttemptsCount,
			"best_score":         cp.BestScore,
			"last_score":         cp.LastScore,
			"time_spent_minutes": cp.TimeSpentMinutes,
			"completed_at":       cp.CompletedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *progressRepo) SaveStep(ctx context.Context, tx *gorm.DB, sp *types.StepProgress) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.StepProgress{}).
		Where("id = ?", sp.ID).
		Updates(map[string]interface{}{
			"completed_components_count": sp.CompletedComponentsCount,
			"total_components_count":     sp.TotalComponentsCount,
			"required_components_count":  sp.RequiredComponentsCount,
			"is_completed":               sp.IsCompleted,
			"time_spent_minutes":         sp.TimeSpentMinutes,
			"completed_at":               sp.CompletedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *progressRepo) SaveFlow(ctx context.Context, tx *gorm.DB, fp *types.FlowProgress) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.FlowProgress{}).
		Where("id = ?", fp.ID).
		Updates(map[string]interface{}{
			"completed_steps_count": fp.CompletedStepsCount,
			"total_steps_count":     fp.TotalStepsCount,
			"required_steps_count":  fp.RequiredStepsCount,
			"overall_progress":      fp.OverallProgress,
			"is_completed":          fp.IsCompleted,
			"time_spent_minutes":    fp.TimeSpentMinutes,
			"completed_at":          fp.CompletedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *progressRepo) DeleteByAssignmentIDs(ctx context.Context, tx *gorm.DB, assignmentIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(assignmentIDs) == 0 {
		return nil
	}

	var flowProgressIDs []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.FlowProgress{}).
		Where("assignment_id IN ?", assignmentIDs).
		Pluck("id", &flowProgressIDs).Error; err != nil {
		return err
	}
	if len(flowProgressIDs) == 0 {
		return nil
	}

	var stepProgressIDs []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.StepProgress{}).
		Where("flow_progress_id IN ?", flowProgressIDs).
		Pluck("id", &stepProgressIDs).Error; err != nil {
		return err
	}

	if len(stepProgressIDs) > 0 {
		if err := transaction.WithContext(ctx).
			Where("step_progress_id IN ?", stepProgressIDs).
			Delete(&types.ComponentProgress{}).Error; err != nil {
			return err
		}
		if err := transaction.WithContext(ctx).
			Where("id IN ?", stepProgressIDs).
			Delete(&types.StepProgress{}).Error; err != nil {
			return err
		}
	}

	return transaction.WithContext(ctx).
		Where("id IN ?", flowProgressIDs).
		Delete(&types.FlowProgress{}).Error
}
