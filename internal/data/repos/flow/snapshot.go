package flow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
	"github.com/teamonboard/flowline-backend/internal/pkg/logger"
)

type FlowSnapshotRepo interface {
	// Create persists a fully built snapshot tree (snapshot + steps +
	// components) in one write. The caller assembles the tree from the live
	// content inside the same transaction it read it with, so a concurrent
	// edit can never produce a torn copy.
	Create(ctx context.Context, tx *gorm.DB, snapshot *types.FlowSnapshot) (*types.FlowSnapshot, error)
	GetByID(ctx context.Context, tx *gorm.DB, snapshotID uuid.UUID) (*types.FlowSnapshot, error)
	GetLatest(ctx context.Context, tx *gorm.DB, originalFlowID uuid.UUID) (*types.FlowSnapshot, error)
	GetByVersion(ctx context.Context, tx *gorm.DB, originalFlowID uuid.UUID, version int) (*types.FlowSnapshot, error)
	NextVersion(ctx context.Context, tx *gorm.DB, originalFlowID uuid.UUID) (int, error)
	// GetOldSnapshots lists GC candidates created before the cutoff.
	GetOldSnapshots(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*types.FlowSnapshot, error)
	// HasActiveAssignments reports whether any assignment in a non-terminal
	// status still references the snapshot.
	HasActiveAssignments(ctx context.Context, tx *gorm.DB, snapshotID uuid.UUID) (bool, error)
	// Delete removes a snapshot tree; it fails with VersionInUseError while
	// any assignment in a non-terminal status references it.
	Delete(ctx context.Context, tx *gorm.DB, snapshotID uuid.UUID) error
}

type flowSnapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFlowSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) FlowSnapshotRepo {
	return &flowSnapshotRepo{db: db, log: baseLog.With("repo", "FlowSnapshotRepo")}
}

func (r *flowSnapshotRepo) inTx(tx *gorm.DB, fn func(tx *gorm.DB) error) error {
	if tx != nil {
		return fn(tx)
	}
	return r.db.Transaction(fn)
}

func (r *flowSnapshotRepo) Create(ctx context.Context, tx *gorm.DB, snapshot *types.FlowSnapshot) (*types.FlowSnapshot, error) {
	err := r.inTx(tx, func(tx *gorm.DB) error {
		return tx.WithContext(ctx).Create(snapshot).Error
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (r *flowSnapshotRepo) withTree(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_key ASC, id ASC")
		}).
		Preload("Steps.Components", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_key ASC, id ASC")
		})
}

func (r *flowSnapshotRepo) GetByID(ctx context.Context, tx *gorm.DB, snapshotID uuid.UUID) (*types.FlowSnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.FlowSnapshot
	if err := r.withTree(transaction.WithContext(ctx)).
		Where("id = ?", snapshotID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *flowSnapshotRepo) GetLatest(ctx context.Context, tx *gorm.DB, originalFlowID uuid.UUID) (*types.FlowSnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.FlowSnapshot
	if err := r.withTree(transaction.WithContext(ctx)).
		Where("original_flow_id = ?", originalFlowID).
		Order("version DESC").
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *flowSnapshotRepo) GetByVersion(ctx context.Context, tx *gorm.DB, originalFlowID uuid.UUID, version int) (*types.FlowSnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.FlowSnapshot
	if err := r.withTree(transaction.WithContext(ctx)).
		Where("original_flow_id = ? AND version = ?", originalFlowID, version).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *flowSnapshotRepo) NextVersion(ctx context.Context, tx *gorm.DB, originalFlowID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var max int
	if err := transaction.WithContext(ctx).
		Model(&types.FlowSnapshot{}).
		Where("original_flow_id = ?", originalFlowID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (r *flowSnapshotRepo) GetOldSnapshots(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*types.FlowSnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.FlowSnapshot
	if err := transaction.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *flowSnapshotRepo) HasActiveAssignments(ctx context.Context, tx *gorm.DB, snapshotID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.FlowAssignment{}).
		Where("snapshot_id = ? AND status IN ?", snapshotID, types.NonTerminalStatuses()).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *flowSnapshotRepo) Delete(ctx context.Context, tx *gorm.DB, snapshotID uuid.UUID) error {
	return r.inTx(tx, func(tx *gorm.DB) error {
		var assignmentIDs []uuid.UUID
		if err := tx.WithContext(ctx).
			Model(&types.FlowAssignment{}).
			Where("snapshot_id = ? AND status IN ?", snapshotID, types.NonTerminalStatuses()).
			Pluck("id", &assignmentIDs).Error; err != nil {
			return err
		}
		if len(assignmentIDs) > 0 {
			return &apperr.VersionInUseError{
				Entity:        "flow snapshot",
				ID:            snapshotID,
				AssignmentIDs: assignmentIDs,
			}
		}

		var stepIDs []uuid.UUID
		if err := tx.WithContext(ctx).
			Model(&types.FlowStepSnapshot{}).
			Where("snapshot_id = ?", snapshotID).
			Pluck("id", &stepIDs).Error; err != nil {
			return err
		}
		if len(stepIDs) > 0 {
			if err := tx.WithContext(ctx).
				Where("step_snapshot_id IN ?", stepIDs).
				Delete(&types.ComponentSnapshot{}).Error; err != nil {
				return err
			}
			if err := tx.WithContext(ctx).
				Where("id IN ?", stepIDs).
				Delete(&types.FlowStepSnapshot{}).Error; err != nil {
				return err
			}
		}

		res := tx.WithContext(ctx).
			Where("id = ?", snapshotID).
			Delete(&types.FlowSnapshot{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNotFound
		}
		return nil
	})
}
