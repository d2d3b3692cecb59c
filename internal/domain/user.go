package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleEmployee  Role = "employee"
	RoleBuddy     Role = "buddy"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

func (r Role) CanModerate() bool {
	return r == RoleModerator || r == RoleAdmin
}

type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email        string         `gorm:"column:email;not null;uniqueIndex" json:"email"`
	PasswordHash string         `gorm:"column:password_hash;not null" json:"-"`
	FirstName    string         `gorm:"column:first_name;not null" json:"first_name"`
	LastName     string         `gorm:"column:last_name;not null" json:"last_name"`
	Position     string         `gorm:"column:position" json:"position,omitempty"`
	Role         Role           `gorm:"column:role;not null;default:'employee';index" json:"role"`
	IsActive     bool           `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "users" }

type UserToken struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User         *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	RefreshToken string    `gorm:"column:refresh_token;not null;index" json:"-"`
	ExpiresAt    time.Time `gorm:"column:expires_at;not null" json:"expires_at"`
	Revoked      bool      `gorm:"column:revoked;not null;default:false" json:"revoked"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (UserToken) TableName() string { return "user_token" }
