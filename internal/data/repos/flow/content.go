package flow

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
	"github.com/teamonboard/flowline-backend/internal/pkg/logger"
)

type FlowContentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, contents []*types.FlowContent) ([]*types.FlowContent, error)
	// GetByID loads a content row with its full step/component tree, steps and
	// components ordered by order key.
	GetByID(ctx context.Context, tx *gorm.DB, contentID uuid.UUID) (*types.FlowContent, error)
	GetByFlowIDs(ctx context.Context, tx *gorm.DB, flowIDs []uuid.UUID) ([]*types.FlowContent, error)
	// NextVersion returns max(version)+1 for the flow's contents.
	NextVersion(ctx context.Context, tx *gorm.DB, flowID uuid.UUID) (int, error)
	Update(ctx context.Context, tx *gorm.DB, contentID uuid.UUID, updates map[string]interface{}) error
}

type flowContentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFlowContentRepo(db *gorm.DB, baseLog *logger.Logger) FlowContentRepo {
	return &flowContentRepo{db: db, log: baseLog.With("repo", "FlowContentRepo")}
}

func (r *flowContentRepo) Create(ctx context.Context, tx *gorm.DB, contents []*types.FlowContent) ([]*types.FlowContent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(contents) == 0 {
		return []*types.FlowContent{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&contents).Error; err != nil {
		return nil, err
	}
	return contents, nil
}

func (r *flowContentRepo) GetByID(ctx context.Context, tx *gorm.DB, contentID uuid.UUID) (*types.FlowContent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.FlowContent
	if err := transaction.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_key ASC, id ASC")
		}).
		Preload("Steps.Components", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_key ASC, id ASC")
		}).
		Where("id = ?", contentID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *flowContentRepo) GetByFlowIDs(ctx context.Context, tx *gorm.DB, flowIDs []uuid.UUID) ([]*types.FlowContent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.FlowContent
	if len(flowIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("flow_id IN ?", flowIDs).
		Order("version ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *flowContentRepo) NextVersion(ctx context.Context, tx *gorm.DB, flowID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var max int
	if err := transaction.WithContext(ctx).
		Model(&types.FlowContent{}).
		Where("flow_id = ?", flowID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (r *flowContentRepo) Update(ctx context.Context, tx *gorm.DB, contentID uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(updates) == 0 {
		return nil
	}

	res := transaction.WithContext(ctx).
		Model(&types.FlowContent{}).
		Where("id = ?", contentID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
