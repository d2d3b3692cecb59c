package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type FlowStatus string

const (
	FlowStatusDraft     FlowStatus = "draft"
	FlowStatusPublished FlowStatus = "published"
	FlowStatusArchived  FlowStatus = "archived"
)

// Flow is the live aggregate root. Its editable structure lives in
// FlowContent; published history lives in FlowVersion rows; frozen copies used
// by assignments live in FlowSnapshot trees.
type Flow struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name            string         `gorm:"column:name;not null" json:"name"`
	Description     string         `gorm:"column:description;type:text" json:"description,omitempty"`
	Status          FlowStatus     `gorm:"column:status;not null;default:'draft';index" json:"status"`
	EstimatedDays   int            `gorm:"column:estimated_days;not null;default:0" json:"estimated_days"`
	IsRequired      bool           `gorm:"column:is_required;not null;default:false" json:"is_required"`
	Tags            datatypes.JSON `gorm:"column:tags;type:jsonb" json:"tags,omitempty"`
	CreatedByID     uuid.UUID      `gorm:"type:uuid;column:created_by_id;not null;index" json:"created_by_id"`
	CreatedBy       *User          `gorm:"foreignKey:CreatedByID;references:ID" json:"created_by,omitempty"`
	ActiveContentID *uuid.UUID     `gorm:"type:uuid;column:active_content_id" json:"active_content_id,omitempty"`
	ActiveContent   *FlowContent   `gorm:"foreignKey:ActiveContentID;references:ID" json:"active_content,omitempty"`
	// IsActive is the soft-archive flag, distinct from version activity.
	IsActive  bool           `gorm:"column:is_active;not null;default:true;index" json:"is_active"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Flow) TableName() string { return "flow" }

// FlowContent is the editable draft surface: one row per edit version, the
// flow's ActiveContentID points at the draft currently open for editing.
type FlowContent struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FlowID uuid.UUID `gorm:"type:uuid;not null;index:idx_flow_content_version,unique,priority:1" json:"flow_id"`
	Flow   *Flow     `gorm:"constraint:OnDelete:CASCADE;foreignKey:FlowID;references:ID" json:"flow,omitempty"`
	// Version is the edit-surface counter, unique per flow. It is unrelated to
	// the publication counter on FlowVersion.
	Version        int        `gorm:"column:version;not null;index:idx_flow_content_version,unique,priority:2" json:"version"`
	IsSequential   bool       `gorm:"column:is_sequential;not null;default:true" json:"is_sequential"`
	AllowSelfPause bool       `gorm:"column:allow_self_pause;not null;default:true" json:"allow_self_pause"`
	CreatedByID    uuid.UUID  `gorm:"type:uuid;column:created_by_id;not null" json:"created_by_id"`
	Steps          []FlowStep `gorm:"foreignKey:ContentID;references:ID" json:"steps,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (FlowContent) TableName() string { return "flow_content" }

type FlowStep struct {
	ID          uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ContentID   uuid.UUID   `gorm:"type:uuid;column:content_id;not null;index:idx_flow_step_order,priority:1" json:"content_id"`
	Title       string      `gorm:"column:title;not null" json:"title"`
	Description string      `gorm:"column:description;type:text" json:"description,omitempty"`
	OrderKey    string      `gorm:"column:order_key;not null;index:idx_flow_step_order,priority:2" json:"order_key"`
	IsRequired  bool        `gorm:"column:is_required;not null;default:true" json:"is_required"`
	Components  []Component `gorm:"foreignKey:StepID;references:ID" json:"components,omitempty"`
	CreatedAt   time.Time   `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"not null;default:now()" json:"updated_at"`
}

func (FlowStep) TableName() string { return "flow_step" }
