package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teamonboard/flowline-backend/internal/data/repos"
	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
	"github.com/teamonboard/flowline-backend/internal/pkg/logger"
	"github.com/teamonboard/flowline-backend/internal/requestdata"
)

type AssignInput struct {
	UserID  uuid.UUID
	FlowID  uuid.UUID
	BuddyID *uuid.UUID
	DueDate *time.Time
}

type AssignmentService interface {
	// Assign freezes the flow's active published version into a snapshot and
	// creates the assignment with its progress skeleton in one transaction.
	Assign(ctx context.Context, input AssignInput) (*types.FlowAssignment, error)
	Get(ctx context.Context, assignmentID uuid.UUID) (*types.FlowAssignment, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*types.FlowAssignment, error)
	ListForFlow(ctx context.Context, flowID uuid.UUID) ([]*types.FlowAssignment, error)

	Start(ctx context.Context, assignmentID uuid.UUID) (*types.FlowAssignment, error)
	Pause(ctx context.Context, assignmentID uuid.UUID, reason string) (*types.FlowAssignment, error)
	Resume(ctx context.Context, assignmentID uuid.UUID) (*types.FlowAssignment, error)
	// Complete closes the assignment. With required work unfinished it is an
	// override and requires notes.
	Complete(ctx context.Context, assignmentID uuid.UUID, notes string) (*types.FlowAssignment, error)
	Cancel(ctx context.Context, assignmentID uuid.UUID, reason string) (*types.FlowAssignment, error)
}

type assignmentService struct {
	db               *gorm.DB
	log              *logger.Logger
	userRepo         repos.UserRepo
	flowRepo         repos.FlowRepo
	contentRepo      repos.FlowContentRepo
	versionRepo      repos.FlowVersionRepo
	snapshotRepo     repos.FlowSnapshotRepo
	assignmentRepo   repos.AssignmentRepo
	progressRepo     repos.ProgressRepo
	notificationRepo repos.NotificationRepo

	achievementService AchievementService
}

func NewAssignmentService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	flowRepo repos.FlowRepo,
	contentRepo repos.FlowContentRepo,
	versionRepo repos.FlowVersionRepo,
	snapshotRepo repos.FlowSnapshotRepo,
	assignmentRepo repos.AssignmentRepo,
	progressRepo repos.ProgressRepo,
	notificationRepo repos.NotificationRepo,
	achievementService AchievementService,
) AssignmentService {
	return &assignmentService{
		db:                 db,
		log:                log.With("service", "AssignmentService"),
		userRepo:           userRepo,
		flowRepo:           flowRepo,
		contentRepo:        contentRepo,
		versionRepo:        versionRepo,
		snapshotRepo:       snapshotRepo,
		assignmentRepo:     assignmentRepo,
		progressRepo:       progressRepo,
		notificationRepo:   notificationRepo,
		achievementService: achievementService,
	}
}

func (s *assignmentService) Assign(ctx context.Context, input AssignInput) (*types.FlowAssignment, error) {
	rd, err := requireModerator(ctx)
	if err != nil {
		return nil, err
	}

	var assignment *types.FlowAssignment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.GetByID(ctx, tx, input.UserID)
		if err != nil {
			return err
		}
		if !user.IsActive {
			return apperr.Validation("user_id", "user is deactivated")
		}

		f, err := s.flowRepo.GetByID(ctx, tx, input.FlowID)
		if err != nil {
			return err
		}
		if !f.IsActive || f.Status != types.FlowStatusPublished {
			return apperr.Validation("flow_id", "flow is not published")
		}

		open, err := s.assignmentRepo.GetOpenForUserAndFlow(ctx, tx, input.UserID, input.FlowID)
		if err != nil {
			return fmt.Errorf("check open assignment: %w", err)
		}
		if open != nil {
			return apperr.Validation("flow_id", "user already has an open assignment for this flow")
		}

		version, err := s.versionRepo.GetActive(ctx, tx, input.FlowID)
		if err != nil {
			return fmt.Errorf("active version: %w", err)
		}

		snapshot, err := s.freezeSnapshot(ctx, tx, f, version)
		if err != nil {
			return fmt.Errorf("freeze snapshot: %w", err)
		}

		dueDate := input.DueDate
		if dueDate == nil && f.EstimatedDays > 0 {
			d := time.Now().AddDate(0, 0, f.EstimatedDays)
			dueDate = &d
		}

		assignment = &types.FlowAssignment{
			ID:           uuid.New(),
			UserID:       input.UserID,
			FlowID:       input.FlowID,
			SnapshotID:   snapshot.ID,
			BuddyID:      input.BuddyID,
			AssignedByID: rd.UserID,
			Status:       types.AssignmentAssigned,
			DueDate:      dueDate,
			TotalSteps:   len(snapshot.Steps),
		}
		if _, err := s.assignmentRepo.Create(ctx, tx, []*types.FlowAssignment{assignment}); err != nil {
			return fmt.Errorf("create assignment: %w", err)
		}

		if _, err := s.progressRepo.CreateTree(ctx, tx, buildProgressSkeleton(assignment, snapshot)); err != nil {
			return fmt.Errorf("create progress skeleton: %w", err)
		}

		note := &types.Notification{
			ID:      uuid.New(),
			UserID:  input.UserID,
			Type:    types.NotificationAssigned,
			Title:   fmt.Sprintf("New flow assigned: %s", snapshot.Name),
			Message: fmt.Sprintf("You have been assigned %q (version %d).", snapshot.Name, snapshot.Version),
		}
		if _, err := s.notificationRepo.Create(ctx, tx, []*types.Notification{note}); err != nil {
			return fmt.Errorf("create notification: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("assigned flow", "assignment_id", assignment.ID, "user_id", input.UserID,
		"flow_id", input.FlowID, "by", rd.UserID)
	return assignment, nil
}

// freezeSnapshot deep-copies the published version's frozen content into a new
// snapshot tree. Snapshots never reference live rows, so later edits and even
// deletion of the flow cannot disturb running assignments.
func (s *assignmentService) freezeSnapshot(ctx context.Context, tx *gorm.DB, f *types.Flow, version *types.FlowVersion) (*types.FlowSnapshot, error) {
	content, err := s.contentRepo.GetByID(ctx, tx, version.ContentID)
	if err != nil {
		return nil, fmt.Errorf("load frozen content: %w", err)
	}
	snapVersion, err := s.snapshotRepo.NextVersion(ctx, tx, f.ID)
	if err != nil {
		return nil, err
	}

	snapshot := &types.FlowSnapshot{
		ID:             uuid.New(),
		OriginalFlowID: f.ID,
		Version:        snapVersion,
		FlowVersionID:  &version.ID,
		Name:           version.Name,
		Description:    version.Description,
		Status:         f.Status,
		EstimatedDays:  f.EstimatedDays,
		IsRequired:     f.IsRequired,
		Tags:           f.Tags,
		IsSequential:   content.IsSequential,
		AllowSelfPause: content.AllowSelfPause,
	}
	for i := range content.Steps {
		srcStep := &content.Steps[i]
		step := types.FlowStepSnapshot{
			ID:             uuid.New(),
			SnapshotID:     snapshot.ID,
			OriginalStepID: srcStep.ID,
			Title:          srcStep.Title,
			Description:    srcStep.Description,
			OrderKey:       srcStep.OrderKey,
			IsRequired:     srcStep.IsRequired,
		}
		for j := range srcStep.Components {
			srcComp := &srcStep.Components[j]
			step.Components = append(step.Components, types.ComponentSnapshot{
				ID:                  uuid.New(),
				StepSnapshotID:      step.ID,
				OriginalComponentID: srcComp.ID,
				Type:                srcComp.Type,
				Title:               srcComp.Title,
				Description:         srcComp.Description,
				OrderKey:            srcComp.OrderKey,
				IsRequired:          srcComp.IsRequired,
				MaxScore:            srcComp.MaxScore,
				Content:             srcComp.Content,
			})
		}
		snapshot.Steps = append(snapshot.Steps, step)
	}
	return s.snapshotRepo.Create(ctx, tx, snapshot)
}

// buildProgressSkeleton mirrors the snapshot tree into zeroed progress rows.
func buildProgressSkeleton(a *types.FlowAssignment, snapshot *types.FlowSnapshot) *types.FlowProgress {
	fp := &types.FlowProgress{
		ID:           uuid.New(),
		AssignmentID: a.ID,
		UserID:       a.UserID,
		SnapshotID:   snapshot.ID,
	}
	requiredSteps := 0
	for _, step := range snapshot.OrderedSteps() {
		sp := types.StepProgress{
			ID:                   uuid.New(),
			FlowProgressID:       fp.ID,
			StepSnapshotID:       step.ID,
			OrderKey:             step.OrderKey,
			IsRequired:           step.IsRequired,
			TotalComponentsCount: len(step.Components),
		}
		if step.IsRequired {
			requiredSteps++
		}
		for _, comp := range step.OrderedComponents() {
			if comp.IsRequired {
				sp.RequiredComponentsCount++
			}
			sp.Components = append(sp.Components, types.ComponentProgress{
				ID:                  uuid.New(),
				StepProgressID:      sp.ID,
				ComponentSnapshotID: comp.ID,
				IsRequired:          comp.IsRequired,
			})
		}
		fp.Steps = append(fp.Steps, sp)
	}
	fp.TotalStepsCount = len(fp.Steps)
	fp.RequiredStepsCount = requiredSteps
	return fp
}

func (s *assignmentService) Get(ctx context.Context, assignmentID uuid.UUID) (*types.FlowAssignment, error) {
	a, err := s.assignmentRepo.GetByID(ctx, nil, assignmentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *assignmentService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*types.FlowAssignment, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, apperr.ErrUnauthorized
	}
	if rd.UserID != userID && !rd.Role.CanModerate() {
		return nil, apperr.ErrForbidden
	}
	return s.assignmentRepo.GetByUserIDs(ctx, nil, []uuid.UUID{userID})
}

func (s *assignmentService) ListForFlow(ctx context.Context, flowID uuid.UUID) ([]*types.FlowAssignment, error) {
	if _, err := requireModerator(ctx); err != nil {
		return nil, err
	}
	return s.assignmentRepo.GetByFlowIDs(ctx, nil, []uuid.UUID{flowID})
}

// authorizeView allows the assignee, their buddy and moderators.
func (s *assignmentService) authorizeView(ctx context.Context, a *types.FlowAssignment) error {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return apperr.ErrUnauthorized
	}
	if rd.UserID == a.UserID || rd.Role.CanModerate() {
		return nil
	}
	if a.BuddyID != nil && *a.BuddyID == rd.UserID {
		return nil
	}
	return apperr.ErrForbidden
}

// mutate loads the assignment, applies the transition and saves it with the
// optimistic-lock guard, all in one transaction.
func (s *assignmentService) mutate(ctx context.Context, assignmentID uuid.UUID, fn func(tx *gorm.DB, a *types.FlowAssignment) error) (*types.FlowAssignment, error) {
	var result *types.FlowAssignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := s.assignmentRepo.GetByID(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		if err := fn(tx, a); err != nil {
			return err
		}
		if err := s.assignmentRepo.Save(ctx, tx, a); err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *assignmentService) Start(ctx context.Context, assignmentID uuid.UUID) (*types.FlowAssignment, error) {
	return s.mutate(ctx, assignmentID, func(tx *gorm.DB, a *types.FlowAssignment) error {
		rd := requestdata.GetRequestData(ctx)
		if rd == nil {
			return apperr.ErrUnauthorized
		}
		if rd.UserID != a.UserID {
			return apperr.ErrForbidden
		}
		return a.Start(time.Now())
	})
}

func (s *assignmentService) Pause(ctx context.Context, assignmentID uuid.UUID, reason string) (*types.FlowAssignment, error) {
	return s.mutate(ctx, assignmentID, func(tx *gorm.DB, a *types.FlowAssignment) error {
		rd := requestdata.GetRequestData(ctx)
		if rd == nil {
			return apperr.ErrUnauthorized
		}
		if rd.UserID == a.UserID && !rd.Role.CanModerate() {
			// Self pause is a per-flow policy frozen in the snapshot.
			snap, err := s.snapshotRepo.GetByID(ctx, tx, a.SnapshotID)
			if err != nil {
				return err
			}
			if !snap.AllowSelfPause {
				return apperr.ErrForbidden
			}
		} else if !rd.Role.CanModerate() {
			return apperr.ErrForbidden
		}
		return a.Pause(time.Now(), reason)
	})
}

func (s *assignmentService) Resume(ctx context.Context, assignmentID uuid.UUID) (*types.FlowAssignment, error) {
	return s.mutate(ctx, assignmentID, func(tx *gorm.DB, a *types.FlowAssignment) error {
		rd := requestdata.GetRequestData(ctx)
		if rd == nil {
			return apperr.ErrUnauthorized
		}
		if rd.UserID != a.UserID && !rd.Role.CanModerate() {
			return apperr.ErrForbidden
		}
		return a.Resume()
	})
}

func (s *assignmentService) Complete(ctx context.Context, assignmentID uuid.UUID, notes string) (*types.FlowAssignment, error) {
	a, err := s.mutate(ctx, assignmentID, func(tx *gorm.DB, a *types.FlowAssignment) error {
		rd := requestdata.GetRequestData(ctx)
		if rd == nil {
			return apperr.ErrUnauthorized
		}
		if rd.UserID != a.UserID && !rd.Role.CanModerate() {
			return apperr.ErrForbidden
		}
		fp, err := s.progressRepo.GetByAssignmentID(ctx, tx, a.ID)
		if err != nil {
			return fmt.Errorf("load progress: %w", err)
		}
		requiredDone := true
		finalScore := 0
		for i := range fp.Steps {
			if fp.Steps[i].IsRequired && !fp.Steps[i].IsCompleted {
				requiredDone = false
			}
			for j := range fp.Steps[i].Components {
				finalScore += fp.Steps[i].Components[j].BestScore
			}
		}
		if err := a.Complete(time.Now(), requiredDone, notes, finalScore); err != nil {
			return err
		}

		note := &types.Notification{
			ID:      uuid.New(),
			UserID:  a.UserID,
			Type:    types.NotificationCompleted,
			Title:   "Flow completed",
			Message: fmt.Sprintf("Assignment finished with score %d.", finalScore),
		}
		if _, err := s.notificationRepo.Create(ctx, tx, []*types.Notification{note}); err != nil {
			return fmt.Errorf("create notification: %w", err)
		}

		// Manual completion earns the same badges as the auto-complete path.
		snap, err := s.snapshotRepo.GetByID(ctx, tx, a.SnapshotID)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		if err := s.achievementService.GrantOnCompletion(ctx, tx, a, fp, snap.MaxScore()); err != nil {
			return fmt.Errorf("grant achievements: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("completed assignment", "assignment_id", a.ID, "final_score", a.FinalScore)
	return a, nil
}

func (s *assignmentService) Cancel(ctx context.Context, assignmentID uuid.UUID, reason string) (*types.FlowAssignment, error) {
	if _, err := requireModerator(ctx); err != nil {
		return nil, err
	}
	return s.mutate(ctx, assignmentID, func(tx *gorm.DB, a *types.FlowAssignment) error {
		return a.Cancel(time.Now(), reason)
	})
}
