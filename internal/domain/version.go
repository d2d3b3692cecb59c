package domain

import (
	"time"

	"github.com/google/uuid"
)

// FlowVersion is the publication record of a flow: an immutable, numbered
// pointer at the frozen content that was published. At most one version per
// original flow is active at a time; the partial unique index
// idx_flow_version_active (original_id WHERE is_active) backs the invariant.
type FlowVersion struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OriginalID uuid.UUID `gorm:"type:uuid;column:original_id;not null;index:idx_flow_version_number,unique,priority:1" json:"original_id"`
	Version    int       `gorm:"column:version;not null;index:idx_flow_version_number,unique,priority:2" json:"version"`
	IsActive   bool      `gorm:"column:is_active;not null;default:false" json:"is_active"`
	// ContentID points at the FlowContent row frozen by this publication.
	ContentID   uuid.UUID `gorm:"type:uuid;column:content_id;not null" json:"content_id"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Description string    `gorm:"column:description;type:text" json:"description,omitempty"`
	CreatedByID uuid.UUID `gorm:"type:uuid;column:created_by_id;not null" json:"created_by_id"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (FlowVersion) TableName() string { return "flow_version" }
