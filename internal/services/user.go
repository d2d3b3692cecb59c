package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teamonboard/flowline-backend/internal/data/repos"
	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
	"github.com/teamonboard/flowline-backend/internal/pkg/logger"
	"github.com/teamonboard/flowline-backend/internal/requestdata"
)

type UserService interface {
	Get(ctx context.Context, userID uuid.UUID) (*types.User, error)
	List(ctx context.Context, offset, limit int) ([]*types.User, int64, error)
	// Update lets users edit their own profile; moderators may edit anyone.
	Update(ctx context.Context, userID uuid.UUID, updates map[string]interface{}) (*types.User, error)
	// SetRole is admin only.
	SetRole(ctx context.Context, userID uuid.UUID, role types.Role) error
	// Deactivate disables login and revokes every refresh token.
	Deactivate(ctx context.Context, userID uuid.UUID) error
}

type userService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	userTokenRepo repos.UserTokenRepo
}

func NewUserService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, userTokenRepo repos.UserTokenRepo) UserService {
	return &userService{
		db:            db,
		log:           log.With("service", "UserService"),
		userRepo:      userRepo,
		userTokenRepo: userTokenRepo,
	}
}

func (us *userService) Get(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	return us.userRepo.GetByID(ctx, nil, userID)
}

func (us *userService) List(ctx context.Context, offset, limit int) ([]*types.User, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return us.userRepo.List(ctx, nil, offset, limit)
}

// Fields a user may change on their own profile. Role and activity flags go
// through the dedicated operations.
var selfEditableFields = map[string]bool{
	"first_name": true,
	"last_name":  true,
	"position":   true,
}

func (us *userService) Update(ctx context.Context, userID uuid.UUID, updates map[string]interface{}) (*types.User, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, apperr.ErrUnauthorized
	}
	if rd.UserID != userID && !rd.Role.CanModerate() {
		return nil, apperr.ErrForbidden
	}
	for field := range updates {
		if !selfEditableFields[field] {
			return nil, apperr.Validation(field, "not an editable field")
		}
	}
	if err := us.userRepo.Update(ctx, nil, userID, updates); err != nil {
		return nil, err
	}
	return us.userRepo.GetByID(ctx, nil, userID)
}

func (us *userService) SetRole(ctx context.Context, userID uuid.UUID, role types.Role) error {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return apperr.ErrUnauthorized
	}
	if rd.Role != types.RoleAdmin {
		return apperr.ErrForbidden
	}
	switch role {
	case types.RoleEmployee, types.RoleBuddy, types.RoleModerator, types.RoleAdmin:
	default:
		return apperr.Validation("role", "unknown role")
	}
	return us.userRepo.Update(ctx, nil, userID, map[string]interface{}{"role": role})
}

func (us *userService) Deactivate(ctx context.Context, userID uuid.UUID) error {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return apperr.ErrUnauthorized
	}
	if !rd.Role.CanModerate() {
		return apperr.ErrForbidden
	}
	return us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := us.userRepo.Update(ctx, tx, userID, map[string]interface{}{"is_active": false}); err != nil {
			return fmt.Errorf("deactivate user: %w", err)
		}
		if err := us.userTokenRepo.RevokeByUserIDs(ctx, tx, []uuid.UUID{userID}); err != nil {
			return fmt.Errorf("revoke tokens: %w", err)
		}
		us.log.Info("deactivated user", "user_id", userID, "by", rd.UserID)
		return nil
	})
}
