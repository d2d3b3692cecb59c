package assignment

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

type AssignmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, assignments []*types.FlowAssignment) ([]*types.FlowAssignment, error)
	GetByID(ctx context.Context, tx *gorm.DB, assignmentID uuid.UUID) (*types.FlowAssignment, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, assignmentIDs []uuid.UUID) ([]*types.FlowAssignment, error)
	GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.FlowAssignment, error)
	GetByFlowIDs(ctx context.Context, tx *gorm.DB, flowIDs []uuid.UUID) ([]*types.FlowAssignment, error)
	// GetOpenForUserAndFlow finds an existing non-terminal assignment, used to
	// reject double assignment of the same flow.
	GetOpenForUserAndFlow(ctx context.Context, tx *gorm.DB, userID, flowID uuid.UUID) (*types.FlowAssignment, error)
	// GetOverdue lists open assignments whose due date passed before now.
	GetOverdue(ctx context.Context, tx *gorm.DB, now time.Time) ([]*types.FlowAssignment, error)
	// Save persists the assignment with an optimistic-lock guard: the UPDATE
	// matches the lock_version the caller read and bumps it by one. A missed
	// match returns ConcurrencyConflictError.
	Save(ctx context.Context, tx *gorm.DB, a *types.FlowAssignment) error
}

type assignmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) AssignmentRepo {
	return &assignmentRepo{db: db, log: baseLog.With("repo", "AssignmentRepo")}
}

func (r *assignmentRepo) Create(ctx context.Context, tx *gorm.DB, assignments []*types.FlowAssignment) ([]*types.FlowAssignment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(assignments) == 0 {
		return []*types.FlowAssignment{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *assignmentRepo) GetByID(ctx context.Context, tx *gorm.DB, assignmentID uuid.UUID) (*types.FlowAssignment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.FlowAssignment
	if err := transaction.WithContext(ctx).
		Where("id = ?", assignmentID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *assignmentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, assignmentIDs []uuid.UUID) ([]*types.FlowAssignment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.FlowAssignment
	if len(assignmentIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", assignmentIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *assignmentRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.FlowAssignment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.FlowAssignment
	if len(userIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Order("assigned_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *assignmentRepo) GetByFlowIDs(ctx context.Context, tx *gorm.DB, flowIDs []uuid.UUID) ([]*types.FlowAssignment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.FlowAssignment
	if len(flowIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("flow_id IN ?", flowIDs).
		Order("assigned_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *assignmentRepo) GetOpenForUserAndFlow(ctx context.Context, tx *gorm.DB, userID, flowID uuid.UUID) (*types.FlowAssignment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.FlowAssignment
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND flow_id = ? AND status IN ?", userID, flowID, types.NonTerminalStatuses()).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (r *assignmentRepo) GetOverdue(ctx context.Context, tx *gorm.DB, now time.Time) ([]*types.FlowAssignment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.FlowAssignment
	if err := transaction.WithContext(ctx).
		Where("status IN ? AND due_date IS NOT NULL AND due_date < ?",
			[]types.AssignmentStatus{types.AssignmentAssigned, types.AssignmentInProgress}, now).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *assignmentRepo) Save(ctx context.Context, tx *gorm.DB, a *types.FlowAssignment) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	readVersion := a.LockVersion
	a.LockVersion = readVersion + 1

	res := transaction.WithContext(ctx).
		Model(&types.FlowAssignment{}).
		Where("id = ? AND lock_version = ?", a.ID, readVersion).
		Updates(map[string]interface{}{
			"status":           a.Status,
			"progress_percent": a.ProgressPercent,
			"completed_steps":  a.CompletedSteps,
			"total_steps":      a.TotalSteps,
			"started_at":       a.StartedAt,
			"due_date":         a.DueDate,
			"completed_at":     a.CompletedAt,
			"paused_at":        a.PausedAt,
			"pause_reason":     a.PauseReason,
			"attempt_count":    a.AttemptCount,
			"final_score":      a.FinalScore,
			"completion_notes": a.CompletionNotes,
			"buddy_id":         a.BuddyID,
			"lock_version":     a.LockVersion,
		})
	if res.Error != nil {
		a.LockVersion = readVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		a.LockVersion = readVersion
		return &apperr.ConcurrencyConflictError{Entity: "assignment", ID: a.ID}
	}
	return nil
}
