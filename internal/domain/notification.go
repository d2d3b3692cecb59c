package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type NotificationType string

const (
	NotificationAssigned    NotificationType = "flow_assigned"
	NotificationDueSoon     NotificationType = "flow_due_soon"
	NotificationOverdue     NotificationType = "flow_overdue"
	NotificationCompleted   NotificationType = "flow_completed"
	NotificationAchievement NotificationType = "achievement_granted"
)

// Notification is created by domain events and later pushed to the delivery
// bus by the dispatch batch job. Delivery channels are outside this service.
type Notification struct {
	ID           uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID        `gorm:"type:uuid;column:user_id;not null;index" json:"user_id"`
	Type         NotificationType `gorm:"column:type;not null;index" json:"type"`
	Title        string           `gorm:"column:title;not null" json:"title"`
	Message      string           `gorm:"column:message;type:text" json:"message,omitempty"`
	Payload      datatypes.JSON   `gorm:"column:payload;type:jsonb" json:"payload,omitempty"`
	IsRead       bool             `gorm:"column:is_read;not null;default:false;index" json:"is_read"`
	ReadAt       *time.Time       `gorm:"column:read_at" json:"read_at,omitempty"`
	DispatchedAt *time.Time       `gorm:"column:dispatched_at;index" json:"dispatched_at,omitempty"`
	CreatedAt    time.Time        `gorm:"not null;default:now()" json:"created_at"`
}

func (Notification) TableName() string { return "notification" }
