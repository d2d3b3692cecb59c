package flow

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
	"github.com/teamonboard/flowline-backend/internal/pkg/logger"
)

type ComponentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, components []*types.Component) ([]*types.Component, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, componentIDs []uuid.UUID) ([]*types.Component, error)
	GetByStepIDs(ctx context.Context, tx *gorm.DB, stepIDs []uuid.UUID) ([]*types.Component, error)
	Update(ctx context.Context, tx *gorm.DB, componentID uuid.UUID, updates map[string]interface{}) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, componentIDs []uuid.UUID) error
}

type componentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewComponentRepo(db *gorm.DB, baseLog *logger.Logger) ComponentRepo {
	return &componentRepo{db: db, log: baseLog.With("repo", "ComponentRepo")}
}

func (r *componentRepo) Create(ctx context.Context, tx *gorm.DB, components []*types.Component) ([]*types.Component, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(components) == 0 {
		return []*types.Component{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&components).Error; err != nil {
		return nil, err
	}
	return components, nil
}

func (r *componentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, componentIDs []uuid.UUID) ([]*types.Component, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Component
	if len(componentIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", componentIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *componentRepo) GetByStepIDs(ctx context.Context, tx *gorm.DB, stepIDs []uuid.UUID) ([]*types.Component, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Component
	if len(stepIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("step_id IN ?", stepIDs).
		Order("order_key ASC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *componentRepo) Update(ctx context.Context, tx *gorm.DB, componentID uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(updates) == 0 {
		return nil
	}

	res := transaction.WithContext(ctx).
		Model(&types.Component{}).
		Where("id = ?", componentID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *componentRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, componentIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(componentIDs) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", componentIDs).
		Delete(&types.Component{}).Error; err != nil {
		return err
	}
	return nil
}
