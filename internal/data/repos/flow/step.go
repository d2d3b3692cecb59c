package flow

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
	"github.com/teamonboard/flowline-backend/internal/pkg/logger"
)

type FlowStepRepo interface {
	Create(ctx context.Context, tx *gorm.DB, steps []*types.FlowStep) ([]*types.FlowStep, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, stepIDs []uuid.UUID) ([]*types.FlowStep, error)
	GetByContentIDs(ctx context.Context, tx *gorm.DB, contentIDs []uuid.UUID) ([]*types.FlowStep, error)
	Update(ctx context.Context, tx *gorm.DB, stepID uuid.UUID, updates map[string]interface{}) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, stepIDs []uuid.UUID) error
}

type flowStepRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFlowStepRepo(db *gorm.DB, baseLog *logger.Logger) FlowStepRepo {
	return &flowStepRepo{db: db, log: baseLog.With("repo", "FlowStepRepo")}
}

func (r *flowStepRepo) Create(ctx context.Context, tx *gorm.DB, steps []*types.FlowStep) ([]*types.FlowStep, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(steps) == 0 {
		return []*types.FlowStep{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&steps).Error; err != nil {
		return nil, err
	}
	return steps, nil
}

func (r *flowStepRepo) GetByIDs(ctx context.Context, tx *gorm.DB, stepIDs []uuid.UUID) ([]*types.FlowStep, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.FlowStep
	if len(stepIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", stepIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *flowStepRepo) GetByContentIDs(ctx context.Context, tx *gorm.DB, contentIDs []uuid.UUID) ([]*types.FlowStep, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.FlowStep
	if len(contentIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("content_id IN ?", contentIDs).
		Order("order_key ASC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *flowStepRepo) Update(ctx context.Context, tx *gorm.DB, stepID uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(updates) == 0 {
		return nil
	}

	res := transaction.WithContext(ctx).
		Model(&types.FlowStep{}).
		Where("id = ?", stepID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *flowStepRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, stepIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(stepIDs) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Where("step_id IN ?", stepIDs).
		Delete(&types.Component{}).Error; err != nil {
		return err
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", stepIDs).
		Delete(&types.FlowStep{}).Error; err != nil {
		return err
	}
	return nil
}
