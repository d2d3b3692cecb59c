package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Achievement is a grantable badge definition. Unlocking rules live outside
// this service; granting is an explicit moderator/system call.
type Achievement struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Code        string         `gorm:"column:code;not null;uniqueIndex" json:"code"`
	Title       string         `gorm:"column:title;not null" json:"title"`
	Description string         `gorm:"column:description;type:text" json:"description,omitempty"`
	Icon        string         `gorm:"column:icon" json:"icon,omitempty"`
	Points      int            `gorm:"column:points;not null;default:0" json:"points"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Achievement) TableName() string { return "achievement" }

type UserAchievement struct {
	ID            uuid.UUID    `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID        uuid.UUID    `gorm:"type:uuid;column:user_id;not null;index:idx_user_achievement,unique,priority:1" json:"user_id"`
	AchievementID uuid.UUID    `gorm:"type:uuid;column:achievement_id;not null;index:idx_user_achievement,unique,priority:2" json:"achievement_id"`
	Achievement   *Achievement `gorm:"foreignKey:AchievementID;references:ID" json:"achievement,omitempty"`
	GrantedByID   *uuid.UUID   `gorm:"type:uuid;column:granted_by_id" json:"granted_by_id,omitempty"`
	Note          string       `gorm:"column:note" json:"note,omitempty"`
	GrantedAt     time.Time    `gorm:"column:granted_at;not null;default:now()" json:"granted_at"`
}

func (UserAchievement) TableName() string { return "user_achievement" }
