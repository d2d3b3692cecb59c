package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teamonboard/flowline-backend/internal/data/repos"
	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
	"github.com/teamonboard/flowline-backend/internal/pkg/logger"
)

// Built-in achievement codes granted automatically on completion events.
const (
	AchievementFirstFlow    = "first_flow_completed"
	AchievementPerfectScore = "perfect_score"
	AchievementEarlyFinish  = "early_finisher"
)

type AchievementService interface {
	List(ctx context.Context) ([]*types.Achievement, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*types.UserAchievement, error)
	// Definition management is moderator only.
	CreateDefinition(ctx context.Context, def *types.Achievement) (*types.Achievement, error)
	UpdateDefinition(ctx context.Context, achievementID uuid.UUID, updates map[string]interface{}) error
	DeleteDefinition(ctx context.Context, achievementID uuid.UUID) error
	// Grant is the manual moderator grant.
	Grant(ctx context.Context, userID uuid.UUID, code, note string) (*types.UserAchievement, error)
	// GrantOnCompletion evaluates the automatic completion badges inside the
	// caller's transaction. Missing definitions and duplicates are skipped.
	GrantOnCompletion(ctx context.Context, tx *gorm.DB, a *types.FlowAssignment, fp *types.FlowProgress, maxScore int) error
}

type achievementService struct {
	db               *gorm.DB
	log              *logger.Logger
	achievementRepo  repos.AchievementRepo
	assignmentRepo   repos.AssignmentRepo
	notificationRepo repos.NotificationRepo
}

func NewAchievementService(
	db *gorm.DB,
	log *logger.Logger,
	achievementRepo repos.AchievementRepo,
	assignmentRepo repos.AssignmentRepo,
	notificationRepo repos.NotificationRepo,
) AchievementService {
	return &achievementService{
		db:               db,
		log:              log.With("service", "AchievementService"),
		achievementRepo:  achievementRepo,
		assignmentRepo:   assignmentRepo,
		notificationRepo: notificationRepo,
	}
}

func (s *achievementService) List(ctx context.Context) ([]*types.Achievement, error) {
	return s.achievementRepo.List(ctx, nil)
}

func (s *achievementService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*types.UserAchievement, error) {
	return s.achievementRepo.GetUserAchievements(ctx, nil, userID)
}

func (s *achievementService) CreateDefinition(ctx context.Context, def *types.Achievement) (*types.Achievement, error) {
	if _, err := requireModerator(ctx); err != nil {
		return nil, err
	}
	if def.Code == "" {
		return nil, apperr.Validation("code", "must not be empty")
	}
	if _, err := s.achievementRepo.GetByCode(ctx, nil, def.Code); err == nil {
		return nil, apperr.Validation("code", "already exists")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}
	created, err := s.achievementRepo.Create(ctx, nil, []*types.Achievement{def})
	if err != nil {
		return nil, fmt.Errorf("create achievement: %w", err)
	}
	return created[0], nil
}

var achievementEditableFields = map[string]bool{
	"title":       true,
	"description": true,
	"icon":        true,
	"points":      true,
}

func (s *achievementService) UpdateDefinition(ctx context.Context, achievementID uuid.UUID, updates map[string]interface{}) error {
	if _, err := requireModerator(ctx); err != nil {
		return err
	}
	filtered := map[string]interface{}{}
	for k, v := range updates {
		if achievementEditableFields[k] {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return apperr.Validation("updates", "no editable fields")
	}
	if _, err := s.achievementRepo.GetByID(ctx, nil, achievementID); err != nil {
		return err
	}
	return s.achievementRepo.Update(ctx, nil, achievementID, filtered)
}

func (s *achievementService) DeleteDefinition(ctx context.Context, achievementID uuid.UUID) error {
	if _, err := requireModerator(ctx); err != nil {
		return err
	}
	if _, err := s.achievementRepo.GetByID(ctx, nil, achievementID); err != nil {
		return err
	}
	return s.achievementRepo.SoftDeleteByIDs(ctx, nil, []uuid.UUID{achievementID})
}

func (s *achievementService) Grant(ctx context.Context, userID uuid.UUID, code, note string) (*types.UserAchievement, error) {
	rd, err := requireModerator(ctx)
	if err != nil {
		return nil, err
	}

	var grant *types.UserAchievement
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		grant, err = s.grantByCode(ctx, tx, userID, code, &rd.UserID, note)
		return err
	})
	if err != nil {
		return nil, err
	}
	if grant == nil {
		return nil, apperr.Validation("code", "already granted")
	}
	return grant, nil
}

// grantByCode grants the achievement once; a repeated grant returns (nil, nil).
func (s *achievementService) grantByCode(ctx context.Context, tx *gorm.DB, userID uuid.UUID, code string, grantedBy *uuid.UUID, note string) (*types.UserAchievement, error) {
	def, err := s.achievementRepo.GetByCode(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	has, err := s.achievementRepo.HasGrant(ctx, tx, userID, def.ID)
	if err != nil {
		return nil, err
	}
	if has {
		return nil, nil
	}
	grant := &types.UserAchievement{
		ID:            uuid.New(),
		UserID:        userID,
		AchievementID: def.ID,
		GrantedByID:   grantedBy,
		Note:          note,
		GrantedAt:     time.Now(),
	}
	if _, err := s.achievementRepo.Grant(ctx, tx, grant); err != nil {
		return nil, err
	}

	notification := &types.Notification{
		ID:      uuid.New(),
		UserID:  userID,
		Type:    types.NotificationAchievement,
		Title:   fmt.Sprintf("Achievement unlocked: %s", def.Title),
		Message: def.Description,
	}
	if _, err := s.notificationRepo.Create(ctx, tx, []*types.Notification{notification}); err != nil {
		return nil, err
	}
	s.log.Info("granted achievement", "user_id", userID, "code", code)
	return grant, nil
}

func (s *achievementService) GrantOnCompletion(ctx context.Context, tx *gorm.DB, a *types.FlowAssignment, fp *types.FlowProgress, maxScore int) error {
	codes := []string{AchievementFirstFlow}
	if maxScore > 0 && a.FinalScore >= maxScore {
		codes = append(codes, AchievementPerfectScore)
	}
	if a.DueDate != nil && a.CompletedAt != nil {
		// Finishing in the first half of the allotted window.
		window := a.DueDate.Sub(a.AssignedAt)
		if window > 0 && a.CompletedAt.Sub(a.AssignedAt) <= window/2 {
			codes = append(codes, AchievementEarlyFinish)
		}
	}

	if containsCode(codes, AchievementFirstFlow) {
		// Only the first ever completion earns the badge.
		all, err := s.assignmentRepo.GetByUserIDs(ctx, tx, []uuid.UUID{a.UserID})
		if err != nil {
			return err
		}
		completed := 0
		for _, other := range all {
			if other.Status == types.AssignmentCompleted {
				completed++
			}
		}
		if completed > 1 {
			codes = removeCode(codes, AchievementFirstFlow)
		}
	}

	for _, code := range codes {
		if _, err := s.grantByCode(ctx, tx, a.UserID, code, nil, ""); err != nil {
			// A missing definition is a deployment gap, not a user error.
			if errors.Is(err, apperr.ErrNotFound) {
				s.log.Warn("achievement definition missing", "code", code)
				continue
			}
			return err
		}
	}
	return nil
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

func removeCode(codes []string, code string) []string {
	out := codes[:0]
	for _, c := range codes {
		if c != code {
			out = append(out, c)
		}
	}
	return out
}
