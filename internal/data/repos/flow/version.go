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

type FlowVersionRepo interface {
	// CreateVersion allocates version = max(existing)+1 for the original and
	// inserts the row inactive. Activation is a separate, explicit step.
	CreateVersion(ctx context.Context, tx *gorm.DB, version *types.FlowVersion) (*types.FlowVersion, error)
	// Activate deactivates every sibling version and activates the target in
	// one transaction. Activating an already-active version is a no-op and
	// leaves updated_at untouched.
	Activate(ctx context.Context, tx *gorm.DB, versionID uuid.UUID) error
	// Deactivate clears the active flag of the original's active version, if
	// any. A fully inactive original (unpublished draft) is legal.
	Deactivate(ctx context.Context, tx *gorm.DB, originalID uuid.UUID) error
	GetActive(ctx context.Context, tx *gorm.DB, originalID uuid.UUID) (*types.FlowVersion, error)
	GetByID(ctx context.Context, tx *gorm.DB, versionID uuid.UUID) (*types.FlowVersion, error)
	GetByOriginalIDs(ctx context.Context, tx *gorm.DB, originalIDs []uuid.UUID) ([]*types.FlowVersion, error)
	NextVersion(ctx context.Context, tx *gorm.DB, originalID uuid.UUID) (int, error)
	// Delete removes a version unless a snapshot taken from it is still
	// referenced by any assignment, in which case it fails with
	// VersionInUseError naming the blocking assignments.
	Delete(ctx context.Context, tx *gorm.DB, versionID uuid.UUID) error
}

type flowVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFlowVersionRepo(db *gorm.DB, baseLog *logger.Logger) FlowVersionRepo {
	return &flowVersionRepo{db: db, log: baseLog.With("repo", "FlowVersionRepo")}
}

// inTx runs fn inside the given transaction, or opens one when tx is nil.
func (r *flowVersionRepo) inTx(tx *gorm.DB, fn func(tx *gorm.DB) error) error {
	if tx != nil {
		return fn(tx)
	}
	return r.db.Transaction(fn)
}

func (r *flowVersionRepo) CreateVersion(ctx context.Context, tx *gorm.DB, version *types.FlowVersion) (*types.FlowVersion, error) {
	err := r.inTx(tx, func(tx *gorm.DB) error {
		next, err := r.NextVersion(ctx, tx, version.OriginalID)
		if err != nil {
			return err
		}
		version.Version = next
		version.IsActive = false
		return tx.WithContext(ctx).Create(version).Error
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

func (r *flowVersionRepo) Activate(ctx context.Context, tx *gorm.DB, versionID uuid.UUID) error {
	return r.inTx(tx, func(tx *gorm.DB) error {
		target, err := r.GetByID(ctx, tx, versionID)
		if err != nil {
			return err
		}
		if target.IsActive {
			return nil
		}
		if err := tx.WithContext(ctx).
			Model(&types.FlowVersion{}).
			Where("original_id = ? AND is_active = true", target.OriginalID).
			Update("is_active", false).Error; err != nil {
			return err
		}
		// The partial unique index idx_flow_version_active rejects a second
		// concurrent activation that slipped past the deactivate above.
		return tx.WithContext(ctx).
			Model(&types.FlowVersion{}).
			Where("id = ?", versionID).
			Update("is_active", true).Error
	})
}

func (r *flowVersionRepo) Deactivate(ctx context.Context, tx *gorm.DB, originalID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.FlowVersion{}).
		Where("original_id = ? AND is_active = true", originalID).
		Update("is_active", false).Error
}

func (r *flowVersionRepo) GetActive(ctx context.Context, tx *gorm.DB, originalID uuid.UUID) (*types.FlowVersion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.FlowVersion
	if err := transaction.WithContext(ctx).
		Where("original_id = ? AND is_active = true", originalID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *flowVersionRepo) GetByID(ctx context.Context, tx *gorm.DB, versionID uuid.UUID) (*types.FlowVersion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.FlowVersion
	if err := transaction.WithContext(ctx).
		Where("id = ?", versionID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *flowVersionRepo) GetByOriginalIDs(ctx context.Context, tx *gorm.DB, originalIDs []uuid.UUID) ([]*types.FlowVersion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.FlowVersion
	if len(originalIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("original_id IN ?", originalIDs).
		Order("version ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *flowVersionRepo) NextVersion(ctx context.Context, tx *gorm.DB, originalID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var max int
	if err := transaction.WithContext(ctx).
		Model(&types.FlowVersion{}).
		Where("original_id = ?", originalID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (r *flowVersionRepo) Delete(ctx context.Context, tx *gorm.DB, versionID uuid.UUID) error {
	return r.inTx(tx, func(tx *gorm.DB) error {
		var snapshotIDs []uuid.UUID
		if err := tx.WithContext(ctx).
			Model(&types.FlowSnapshot{}).
			Where("flow_version_id = ?", versionID).
			Pluck("id", &snapshotIDs).Error; err != nil {
			return err
		}

		if len(snapshotIDs) > 0 {
			var assignmentIDs []uuid.UUID
			if err := tx.WithContext(ctx).
				Model(&types.FlowAssignment{}).
				Where("snapshot_id IN ? AND status IN ?", snapshotIDs, types.NonTerminalStatuses()).
				Pluck("id", &assignmentIDs).Error; err != nil {
				return err
			}
			if len(assignmentIDs) > 0 {
				return &apperr.VersionInUseError{
					Entity:        "flow version",
					ID:            versionID,
					AssignmentIDs: assignmentIDs,
				}
			}
		}

		res := tx.WithContext(ctx).
			Where("id = ?", versionID).
			Delete(&types.FlowVersion{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNotFound
		}
		return nil
	})
}
