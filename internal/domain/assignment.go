package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
)

type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "assigned"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentPaused     AssignmentStatus = "paused"
	AssignmentCompleted  AssignmentStatus = "completed"
	AssignmentCancelled  AssignmentStatus = "cancelled"
)

// NonTerminalStatuses are the statuses that keep a snapshot alive: while any
// assignment in one of these references a snapshot, the snapshot must not be
// garbage collected.
func NonTerminalStatuses() []AssignmentStatus {
	return []AssignmentStatus{AssignmentAssigned, AssignmentInProgress, AssignmentPaused}
}

// FlowAssignment binds a user to a frozen snapshot of a flow. Status moves
// through assigned -> in_progress -> completed, with paused as a resumable
// side branch and cancelled as the second terminal state. "Overdue" is a
// derived predicate, not a stored status. LockVersion guards concurrent
// updates: every persisted transition bumps it, and writers must match the
// value they read.
type FlowAssignment struct {
	ID              uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID          uuid.UUID        `gorm:"type:uuid;column:user_id;not null;index" json:"user_id"`
	User            *User            `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	FlowID          uuid.UUID        `gorm:"type:uuid;column:flow_id;not null;index" json:"flow_id"`
	SnapshotID      uuid.UUID        `gorm:"type:uuid;column:snapshot_id;not null;index" json:"snapshot_id"`
	Snapshot        *FlowSnapshot    `gorm:"foreignKey:SnapshotID;references:ID" json:"snapshot,omitempty"`
	BuddyID         *uuid.UUID       `gorm:"type:uuid;column:buddy_id;index" json:"buddy_id,omitempty"`
	AssignedByID    uuid.UUID        `gorm:"type:uuid;column:assigned_by_id;not null" json:"assigned_by_id"`
	Status          AssignmentStatus `gorm:"column:status;not null;default:'assigned';index" json:"status"`
	ProgressPercent int              `gorm:"column:progress_percent;not null;default:0" json:"progress_percent"`
	CompletedSteps  int              `gorm:"column:completed_steps;not null;default:0" json:"completed_steps"`
	TotalSteps      int              `gorm:"column:total_steps;not null;default:0" json:"total_steps"`
	AssignedAt      time.Time        `gorm:"column:assigned_at;not null;default:now()" json:"assigned_at"`
	StartedAt       *time.Time       `gorm:"column:started_at" json:"started_at,omitempty"`
	DueDate         *time.Time       `gorm:"column:due_date;index" json:"due_date,omitempty"`
	CompletedAt     *time.Time       `gorm:"column:completed_at" json:"completed_at,omitempty"`
	PausedAt        *time.Time       `gorm:"column:paused_at" json:"paused_at,omitempty"`
	PauseReason     string           `gorm:"column:pause_reason" json:"pause_reason,omitempty"`
	AttemptCount    int              `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	FinalScore      int              `gorm:"column:final_score;not null;default:0" json:"final_score"`
	CompletionNotes string           `gorm:"column:completion_notes;type:text" json:"completion_notes,omitempty"`
	LockVersion     int              `gorm:"column:lock_version;not null;default:0" json:"-"`
	CreatedAt       time.Time        `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"not null;default:now()" json:"updated_at"`
}

func (FlowAssignment) TableName() string { return "flow_assignment" }

func (a *FlowAssignment) IsTerminal() bool {
	return a.Status == AssignmentCompleted || a.Status == AssignmentCancelled
}

// IsOverdue is the derived overdue condition: still open past the due date.
func (a *FlowAssignment) IsOverdue(now time.Time) bool {
	if a.DueDate == nil {
		return false
	}
	if a.Status != AssignmentAssigned && a.Status != AssignmentInProgress {
		return false
	}
	return a.DueDate.Before(now)
}

func (a *FlowAssignment) transitionErr(to AssignmentStatus) error {
	return &apperr.InvalidStateTransitionError{
		Entity: "assignment",
		From:   string(a.Status),
		To:     string(to),
	}
}

// Start moves assigned -> in_progress.
func (a *FlowAssignment) Start(now time.Time) error {
	if a.Status != AssignmentAssigned {
		return a.transitionErr(AssignmentInProgress)
	}
	a.Status = AssignmentInProgress
	a.StartedAt = &now
	a.AttemptCount++
	return nil
}

// Pause moves in_progress -> paused. Policy (who may pause) is checked by the
// caller; this only enforces transition legality.
func (a *FlowAssignment) Pause(now time.Time, reason string) error {
	if a.Status != AssignmentInProgress {
		return a.transitionErr(AssignmentPaused)
	}
	a.Status = AssignmentPaused
	a.PausedAt = &now
	a.PauseReason = reason
	return nil
}

// Resume moves paused -> in_progress and clears the pause fields.
func (a *FlowAssignment) Resume() error {
	if a.Status != AssignmentPaused {
		return a.transitionErr(AssignmentInProgress)
	}
	a.Status = AssignmentInProgress
	a.PausedAt = nil
	a.PauseReason = ""
	return nil
}

// Complete moves in_progress -> completed. When required work is unfinished
// the transition is only accepted as an explicit override carrying non-empty
// notes.
func (a *FlowAssignment) Complete(now time.Time, requiredDone bool, notes string, finalScore int) error {
	if a.Status != AssignmentInProgress {
		return a.transitionErr(AssignmentCompleted)
	}
	if !requiredDone && notes == "" {
		return apperr.Validation("completion_notes", "required work unfinished; completing anyway needs notes")
	}
	a.Status = AssignmentCompleted
	a.CompletedAt = &now
	a.ProgressPercent = 100
	a.CompletionNotes = notes
	a.FinalScore = finalScore
	return nil
}

// Cancel is legal from any non-terminal status.
func (a *FlowAssignment) Cancel(now time.Time, reason string) error {
	if a.IsTerminal() {
		return a.transitionErr(AssignmentCancelled)
	}
	a.Status = AssignmentCancelled
	a.PauseReason = reason
	a.UpdatedAt = now
	return nil
}
