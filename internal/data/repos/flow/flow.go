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

type FlowRepo interface {
	Create(ctx context.Context, tx *gorm.DB, flows []*types.Flow) ([]*types.Flow, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, flowIDs []uuid.UUID) ([]*types.Flow, error)
	GetByID(ctx context.Context, tx *gorm.DB, flowID uuid.UUID) (*types.Flow, error)
	List(ctx context.Context, tx *gorm.DB, onlyActive bool, offset, limit int) ([]*types.Flow, int64, error)
	Update(ctx context.Context, tx *gorm.DB, flowID uuid.UUID, updates map[string]interface{}) error
	SetActiveContent(ctx context.Context, tx *gorm.DB, flowID, contentID uuid.UUID) error
	Archive(ctx context.Context, tx *gorm.DB, flowID uuid.UUID) error
}

type flowRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFlowRepo(db *gorm.DB, baseLog *logger.Logger) FlowRepo {
	return &flowRepo{db: db, log: baseLog.With("repo", "FlowRepo")}
}

func (r *flowRepo) Create(ctx context.Context, tx *gorm.DB, flows []*types.Flow) ([]*types.Flow, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(flows) == 0 {
		return []*types.Flow{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&flows).Error; err != nil {
		return nil, err
	}
	return flows, nil
}

func (r *flowRepo) GetByIDs(ctx context.Context, tx *gorm.DB, flowIDs []uuid.UUID) ([]*types.Flow, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Flow
	if len(flowIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", flowIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *flowRepo) GetByID(ctx context.Context, tx *gorm.DB, flowID uuid.UUID) (*types.Flow, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Flow
	if err := transaction.WithContext(ctx).
		Where("id = ?", flowID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *flowRepo) List(ctx context.Context, tx *gorm.DB, onlyActive bool, offset, limit int) ([]*types.Flow, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	query := transaction.WithContext(ctx).Model(&types.Flow{})
	if onlyActive {
		query = query.Where("is_active = true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*types.Flow
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *flowRepo) Update(ctx context.Context, tx *gorm.DB, flowID uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(updates) == 0 {
		return nil
	}

	res := transaction.WithContext(ctx).
		Model(&types.Flow{}).
		Where("id = ?", flowID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *flowRepo) SetActiveContent(ctx context.Context, tx *gorm.DB, flowID, contentID uuid.UUID) error {
	return r.Update(ctx, tx, flowID, map[string]interface{}{"active_content_id": contentID})
}

func (r *flowRepo) Archive(ctx context.Context, tx *gorm.DB, flowID uuid.UUID) error {
	return r.Update(ctx, tx, flowID, map[string]interface{}{
		"is_active": false,
		"status":    types.FlowStatusArchived,
	})
}
