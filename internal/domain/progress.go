package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// The progress tree mirrors the snapshot's structure per assignment. Stored
// ComponentProgress rows are the single source of truth; step and flow rows
// are recomputed from their children on every write, and the assignment's
// counters are copied from FlowProgress, never edited independently.

type FlowProgress struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AssignmentID        uuid.UUID      `gorm:"type:uuid;column:assignment_id;not null;uniqueIndex" json:"assignment_id"`
	UserID              uuid.UUID      `gorm:"type:uuid;column:user_id;not null;index" json:"user_id"`
	SnapshotID          uuid.UUID      `gorm:"type:uuid;column:snapshot_id;not null" json:"snapshot_id"`
	CompletedStepsCount int            `gorm:"column:completed_steps_count;not null;default:0" json:"completed_steps_count"`
	TotalStepsCount     int            `gorm:"column:total_steps_count;not null;default:0" json:"total_steps_count"`
	RequiredStepsCount  int            `gorm:"column:required_steps_count;not null;default:0" json:"required_steps_count"`
	OverallProgress     int            `gorm:"column:overall_progress;not null;default:0" json:"overall_progress"`
	IsCompleted         bool           `gorm:"column:is_completed;not null;default:false" json:"is_completed"`
	TimeSpentMinutes    int            `gorm:"column:time_spent_minutes;not null;default:0" json:"time_spent_minutes"`
	CompletedAt         *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Steps               []StepProgress `gorm:"foreignKey:FlowProgressID;references:ID" json:"steps,omitempty"`
	CreatedAt           time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (FlowProgress) TableName() string { return "flow_progress" }

type StepProgress struct {
	ID                       uuid.UUID           `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FlowProgressID           uuid.UUID           `gorm:"type:uuid;column:flow_progress_id;not null;index" json:"flow_progress_id"`
	StepSnapshotID           uuid.UUID           `gorm:"type:uuid;column:step_snapshot_id;not null;index" json:"step_snapshot_id"`
	OrderKey                 string              `gorm:"column:order_key;not null" json:"order_key"`
	IsRequired               bool                `gorm:"column:is_required;not null;default:true" json:"is_required"`
	CompletedComponentsCount int                 `gorm:"column:completed_components_count;not null;default:0" json:"completed_components_count"`
	TotalComponentsCount     int                 `gorm:"column:total_components_count;not null;default:0" json:"total_components_count"`
	RequiredComponentsCount  int                 `gorm:"column:required_components_count;not null;default:0" json:"required_components_count"`
	IsCompleted              bool                `gorm:"column:is_completed;not null;default:false" json:"is_completed"`
	TimeSpentMinutes         int                 `gorm:"column:time_spent_minutes;not null;default:0" json:"time_spent_minutes"`
	CompletedAt              *time.Time          `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Components               []ComponentProgress `gorm:"foreignKey:StepProgressID;references:ID" json:"components,omitempty"`
	CreatedAt                time.Time           `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt                time.Time           `gorm:"not null;default:now()" json:"updated_at"`
}

func (StepProgress) TableName() string { return "step_progress" }

type ComponentProgress struct {
	ID                  uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StepProgressID      uuid.UUID  `gorm:"type:uuid;column:step_progress_id;not null;index" json:"step_progress_id"`
	ComponentSnapshotID uuid.UUID  `gorm:"type:uuid;column:component_snapshot_id;not null;index" json:"component_snapshot_id"`
	IsRequired          bool       `gorm:"column:is_required;not null;default:true" json:"is_required"`
	IsCompleted         bool       `gorm:"column:is_completed;not null;default:false" json:"is_completed"`
	AttemptsCount       int        `gorm:"column:attempts_count;not null;default:0" json:"attempts_count"`
	BestScore           int        `gorm:"column:best_score;not null;default:0" json:"best_score"`
	LastScore           int        `gorm:"column:last_score;not null;default:0" json:"last_score"`
	TimeSpentMinutes    int        `gorm:"column:time_spent_minutes;not null;default:0" json:"time_spent_minutes"`
	CompletedAt         *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt           time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (ComponentProgress) TableName() string { return "component_progress" }

// Complete records an attempt. Repeated attempts keep the best score and the
// first completion timestamp.
func (cp *ComponentProgress) Complete(score, timeSpentMinutes int, now time.Time) {
	cp.AttemptsCount++
	cp.LastScore = score
	if score > cp.BestScore {
		cp.BestScore = score
	}
	cp.TimeSpentMinutes += timeSpentMinutes
	if !cp.IsCompleted {
		cp.IsCompleted = true
		cp.CompletedAt = &now
	}
}

// RecordAttempt registers a failed attempt without completing the component.
func (cp *ComponentProgress) RecordAttempt(score, timeSpentMinutes int) {
	cp.AttemptsCount++
	cp.LastScore = score
	if score > cp.BestScore {
		cp.BestScore = score
	}
	cp.TimeSpentMinutes += timeSpentMinutes
}

// Recompute rolls the step up from its components. A step counts as complete
// when every required component is complete; optional components never block.
func (sp *StepProgress) Recompute(components []*ComponentProgress, now time.Time) {
	completed := 0
	completedRequired := 0
	required := 0
	minutes := 0
	for _, cp := range components {
		if cp.IsCompleted {
			completed++
		}
		if cp.IsRequired {
			required++
			if cp.IsCompleted {
				completedRequired++
			}
		}
		minutes += cp.TimeSpentMinutes
	}
	sp.CompletedComponentsCount = completed
	sp.TotalComponentsCount = len(components)
	sp.RequiredComponentsCount = required
	sp.TimeSpentMinutes = minutes

	done := completedRequired == required
	if done && !sp.IsCompleted {
		sp.CompletedAt = &now
	}
	if !done {
		sp.CompletedAt = nil
	}
	sp.IsCompleted = done
}

// Recompute rolls the flow up from its steps. OverallProgress counts every
// step against every step; IsCompleted only requires the required ones.
func (fp *FlowProgress) Recompute(steps []*StepProgress, now time.Time) {
	completed := 0
	completedRequired := 0
	required := 0
	minutes := 0
	for _, sp := range steps {
		if sp.IsCompleted {
			completed++
		}
		if sp.IsRequired {
			required++
			if sp.IsCompleted {
				completedRequired++
			}
		}
		minutes += sp.TimeSpentMinutes
	}
	fp.CompletedStepsCount = completed
	fp.TotalStepsCount = len(steps)
	fp.RequiredStepsCount = required
	fp.TimeSpentMinutes = minutes
	fp.OverallProgress = ProgressPercent(completed, len(steps))

	done := completedRequired == required
	if done && !fp.IsCompleted {
		fp.CompletedAt = &now
	}
	if !done {
		fp.CompletedAt = nil
	}
	fp.IsCompleted = done
}

// ProgressPercent is the one authoritative percentage formula:
// round(completed * 100 / total), clamped to [0, 100]. An empty denominator
// reads as fully complete (an empty snapshot is valid).
func ProgressPercent(completed, total int) int {
	if total <= 0 {
		return 100
	}
	pct := int(math.Round(float64(completed) * 100 / float64(total)))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// StepAccessibility returns, per step in order, whether the step may be
// opened. Sequential flows gate each step on completion of the one before it;
// the first step is always accessible. Non-sequential flows open everything.
func StepAccessibility(isSequential bool, ordered []*StepProgress) []bool {
	out := make([]bool, len(ordered))
	for i := range ordered {
		if !isSequential || i == 0 {
			out[i] = true
			continue
		}
		out[i] = ordered[i-1].IsCompleted
	}
	return out
}
