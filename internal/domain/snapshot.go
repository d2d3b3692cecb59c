package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// FlowSnapshot is a frozen, fully denormalized copy of a flow's structure
// taken at assignment time. It carries no foreign keys back to the live
// tables; Original*ID fields exist for traceability only. Once written, a
// snapshot row is never mutated.
type FlowSnapshot struct {
	ID             uuid.UUID          `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OriginalFlowID uuid.UUID          `gorm:"type:uuid;column:original_flow_id;not null;index:idx_flow_snapshot_version,unique,priority:1" json:"original_flow_id"`
	Version        int                `gorm:"column:version;not null;index:idx_flow_snapshot_version,unique,priority:2" json:"version"`
	FlowVersionID  *uuid.UUID         `gorm:"type:uuid;column:flow_version_id" json:"flow_version_id,omitempty"`
	Name           string             `gorm:"column:name;not null" json:"name"`
	Description    string             `gorm:"column:description;type:text" json:"description,omitempty"`
	Status         FlowStatus         `gorm:"column:status;not null" json:"status"`
	EstimatedDays  int                `gorm:"column:estimated_days;not null;default:0" json:"estimated_days"`
	IsRequired     bool               `gorm:"column:is_required;not null;default:false" json:"is_required"`
	Tags           datatypes.JSON     `gorm:"column:tags;type:jsonb" json:"tags,omitempty"`
	IsSequential   bool               `gorm:"column:is_sequential;not null;default:true" json:"is_sequential"`
	AllowSelfPause bool               `gorm:"column:allow_self_pause;not null;default:true" json:"allow_self_pause"`
	Steps          []FlowStepSnapshot `gorm:"foreignKey:SnapshotID;references:ID" json:"steps,omitempty"`
	CreatedAt      time.Time          `gorm:"not null;default:now()" json:"created_at"`
}

func (FlowSnapshot) TableName() string { return "flow_snapshot" }

type FlowStepSnapshot struct {
	ID             uuid.UUID           `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SnapshotID     uuid.UUID           `gorm:"type:uuid;column:snapshot_id;not null;index" json:"snapshot_id"`
	OriginalStepID uuid.UUID           `gorm:"type:uuid;column:original_step_id;not null" json:"original_step_id"`
	Title          string              `gorm:"column:title;not null" json:"title"`
	Description    string              `gorm:"column:description;type:text" json:"description,omitempty"`
	OrderKey       string              `gorm:"column:order_key;not null" json:"order_key"`
	IsRequired     bool                `gorm:"column:is_required;not null;default:true" json:"is_required"`
	Components     []ComponentSnapshot `gorm:"foreignKey:StepSnapshotID;references:ID" json:"components,omitempty"`
	CreatedAt      time.Time           `gorm:"not null;default:now()" json:"created_at"`
}

func (FlowStepSnapshot) TableName() string { return "flow_step_snapshot" }

type ComponentSnapshot struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StepSnapshotID      uuid.UUID      `gorm:"type:uuid;column:step_snapshot_id;not null;index" json:"step_snapshot_id"`
	OriginalComponentID uuid.UUID      `gorm:"type:uuid;column:original_component_id;not null" json:"original_component_id"`
	Type                ComponentType  `gorm:"column:type;not null" json:"type"`
	Title               string         `gorm:"column:title;not null" json:"title"`
	Description         string         `gorm:"column:description;type:text" json:"description,omitempty"`
	OrderKey            string         `gorm:"column:order_key;not null" json:"order_key"`
	IsRequired          bool           `gorm:"column:is_required;not null;default:true" json:"is_required"`
	MaxScore            int            `gorm:"column:max_score;not null;default:0" json:"max_score"`
	Content             datatypes.JSON `gorm:"column:content;type:jsonb" json:"content,omitempty"`
	CreatedAt           time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (ComponentSnapshot) TableName() string { return "component_snapshot" }

// OrderedSteps returns the snapshot's steps sorted by order key. Equal keys
// are not expected, but ties fall back to ID so the result is deterministic.
func (s *FlowSnapshot) OrderedSteps() []FlowStepSnapshot {
	steps := make([]FlowStepSnapshot, len(s.Steps))
	copy(steps, s.Steps)
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].OrderKey != steps[j].OrderKey {
			return steps[i].OrderKey < steps[j].OrderKey
		}
		return steps[i].ID.String() < steps[j].ID.String()
	})
	return steps
}

func (st *FlowStepSnapshot) OrderedComponents() []ComponentSnapshot {
	comps := make([]ComponentSnapshot, len(st.Components))
	copy(comps, st.Components)
	sort.Slice(comps, func(i, j int) bool {
		if comps[i].OrderKey != comps[j].OrderKey {
			return comps[i].OrderKey < comps[j].OrderKey
		}
		return comps[i].ID.String() < comps[j].ID.String()
	})
	return comps
}

// TotalComponents sums component counts across all steps; it is the
// denominator for component-level progress.
func (s *FlowSnapshot) TotalComponents() int {
	total := 0
	for i := range s.Steps {
		total += len(s.Steps[i].Components)
	}
	return total
}

// MaxScore sums the component max scores; it is the denominator for
// score-based grading across the whole snapshot.
func (s *FlowSnapshot) MaxScore() int {
	total := 0
	for i := range s.Steps {
		for j := range s.Steps[i].Components {
			total += s.Steps[i].Components[j].MaxScore
		}
	}
	return total
}
