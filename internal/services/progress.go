package services

import (
	"context"
	"encoding/json"
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

type SubmissionInput struct {
	// QuizAnswers holds the selected option indexes per question.
	QuizAnswers [][]int
	TaskAnswer  string
	TimeSpent   int
}

// SubmissionResult reports the attempt outcome plus the refreshed rollup.
type SubmissionResult struct {
	Completed     bool                     `json:"completed"`
	Score         int                      `json:"score"`
	MaxScore      int                      `json:"max_score"`
	Component     *types.ComponentProgress `json:"component"`
	Step          *types.StepProgress      `json:"step"`
	Flow          *types.FlowProgress      `json:"flow"`
	Assignment    *types.FlowAssignment    `json:"assignment"`
	FlowCompleted bool                     `json:"flow_completed"`
}

// ProgressView is the read model for an assignment's progress: the frozen
// snapshot tree plus per-node progress and the per-step accessibility the
// client needs to render a sequential flow.
type ProgressView struct {
	Snapshot      *types.FlowSnapshot `json:"snapshot"`
	Progress      *types.FlowProgress `json:"progress"`
	Accessibility []bool              `json:"accessibility"`
	IsSequential  bool                `json:"is_sequential"`
}

type ProgressService interface {
	Get(ctx context.Context, assignmentID uuid.UUID) (*ProgressView, error)
	// SubmitComponent records an attempt on a component and rolls progress up
	// to the assignment, auto-completing it when the last required work lands.
	SubmitComponent(ctx context.Context, assignmentID, componentSnapshotID uuid.UUID, input SubmissionInput) (*SubmissionResult, error)
}

type progressService struct {
	db                 *gorm.DB
	log                *logger.Logger
	assignmentRepo     repos.AssignmentRepo
	progressRepo       repos.ProgressRepo
	snapshotRepo       repos.FlowSnapshotRepo
	notificationRepo   repos.NotificationRepo
	achievementService AchievementService
}

func NewProgressService(
	db *gorm.DB,
	log *logger.Logger,
	assignmentRepo repos.AssignmentRepo,
	progressRepo repos.ProgressRepo,
	snapshotRepo repos.FlowSnapshotRepo,
	notificationRepo repos.NotificationRepo,
	achievementService AchievementService,
) ProgressService {
	return &progressService{
		db:                 db,
		log:                log.With("service", "ProgressService"),
		assignmentRepo:     assignmentRepo,
		progressRepo:       progressRepo,
		snapshotRepo:       snapshotRepo,
		notificationRepo:   notificationRepo,
		achievementService: achievementService,
	}
}

func (s *progressService) Get(ctx context.Context, assignmentID uuid.UUID) (*ProgressView, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, apperr.ErrUnauthorized
	}
	a, err := s.assignmentRepo.GetByID(ctx, nil, assignmentID)
	if err != nil {
		return nil, err
	}
	if rd.UserID != a.UserID && !rd.Role.CanModerate() {
		if a.BuddyID == nil || *a.BuddyID != rd.UserID {
			return nil, apperr.ErrForbidden
		}
	}

	fp, err := s.progressRepo.GetByAssignmentID(ctx, nil, assignmentID)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshotRepo.GetByID(ctx, nil, a.SnapshotID)
	if err != nil {
		return nil, err
	}

	if !rd.Role.CanModerate() {
		sanitizeSnapshot(snap)
	}

	ordered := make([]*types.StepProgress, len(fp.Steps))
	for i := range fp.Steps {
		ordered[i] = &fp.Steps[i]
	}
	return &ProgressView{
		Snapshot:      snap,
		Progress:      fp,
		Accessibility: types.StepAccessibility(snap.IsSequential, ordered),
		IsSequential:  snap.IsSequential,
	}, nil
}

// sanitizeSnapshot strips grading secrets from the frozen content before it
// reaches an assignee or buddy: quiz answer keys and task code words.
func sanitizeSnapshot(snap *types.FlowSnapshot) {
	for si := range snap.Steps {
		for ci := range snap.Steps[si].Components {
			cs := &snap.Steps[si].Components[ci]
			switch cs.Type {
			case types.ComponentQuiz:
				var quiz types.QuizContent
				if err := json.Unmarshal(cs.Content, &quiz); err != nil {
					continue
				}
				for qi := range quiz.Questions {
					for oi := range quiz.Questions[qi].Options {
						quiz.Questions[qi].Options[oi].IsCorrect = false
					}
				}
				if raw, err := types.MarshalContent(&quiz); err == nil {
					cs.Content = raw
				}
			case types.ComponentTask:
				var task types.TaskContent
				if err := json.Unmarshal(cs.Content, &task); err != nil {
					continue
				}
				task.CodeWord = ""
				if raw, err := types.MarshalContent(&task); err == nil {
					cs.Content = raw
				}
			}
		}
	}
}

func (s *progressService) SubmitComponent(ctx context.Context, assignmentID, componentSnapshotID uuid.UUID, input SubmissionInput) (*SubmissionResult, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, apperr.ErrUnauthorized
	}
	if input.TimeSpent < 0 {
		return nil, apperr.Validation("time_spent", "cannot be negative")
	}

	var result *SubmissionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := s.assignmentRepo.GetByID(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		if rd.UserID != a.UserID {
			return apperr.ErrForbidden
		}
		if a.Status != types.AssignmentInProgress {
			return &apperr.InvalidStateTransitionError{
				Entity: "assignment",
				From:   string(a.Status),
				To:     "component submission",
			}
		}

		snap, err := s.snapshotRepo.GetByID(ctx, tx, a.SnapshotID)
		if err != nil {
			return err
		}
		fp, err := s.progressRepo.GetByAssignmentID(ctx, tx, assignmentID)
		if err != nil {
			return err
		}

		stepIdx, compIdx := locateComponent(fp, componentSnapshotID)
		if stepIdx < 0 {
			return apperr.ErrNotFound
		}

		// Sequential flows gate each step on the one before it.
		ordered := make([]*types.StepProgress, len(fp.Steps))
		for i := range fp.Steps {
			ordered[i] = &fp.Steps[i]
		}
		if !types.StepAccessibility(snap.IsSequential, ordered)[stepIdx] {
			return apperr.Validation("component", "previous step must be completed first")
		}

		frozen := findSnapshotComponent(snap, componentSnapshotID)
		if frozen == nil {
			return apperr.ErrNotFound
		}

		now := time.Now()
		cp := &fp.Steps[stepIdx].Components[compIdx]
		completed, score, err := applySubmission(cp, frozen, input, now)
		if err != nil {
			return err
		}
		if err := s.progressRepo.SaveComponent(ctx, tx, cp); err != nil {
			return fmt.Errorf("save component progress: %w", err)
		}

		// Roll up bottom to top inside the same transaction.
		sp := &fp.Steps[stepIdx]
		children := make([]*types.ComponentProgress, len(sp.Components))
		for i := range sp.Components {
			children[i] = &sp.Components[i]
		}
		sp.Recompute(children, now)
		if err := s.progressRepo.SaveStep(ctx, tx, sp); err != nil {
			return fmt.Errorf("save step progress: %w", err)
		}

		fp.Recompute(ordered, now)
		if err := s.progressRepo.SaveFlow(ctx, tx, fp); err != nil {
			return fmt.Errorf("save flow progress: %w", err)
		}

		// Mirror the rollup onto the assignment's denormalized counters.
		a.ProgressPercent = fp.OverallProgress
		a.CompletedSteps = fp.CompletedStepsCount
		a.TotalSteps = fp.TotalStepsCount

		flowCompleted := false
		if fp.IsCompleted && a.Status == types.AssignmentInProgress {
			finalScore := 0
			for i := range fp.Steps {
				for j := range fp.Steps[i].Components {
					finalScore += fp.Steps[i].Components[j].BestScore
				}
			}
			maxScore := snap.MaxScore()
			if err := a.Complete(now, true, "", finalScore); err != nil {
				return err
			}
			flowCompleted = true

			note := &types.Notification{
				ID:      uuid.New(),
				UserID:  a.UserID,
				Type:    types.NotificationCompleted,
				Title:   fmt.Sprintf("Flow completed: %s", snap.Name),
				Message: fmt.Sprintf("All steps done, final score %d.", finalScore),
			}
			if _, err := s.notificationRepo.Create(ctx, tx, []*types.Notification{note}); err != nil {
				return fmt.Errorf("create notification: %w", err)
			}
			if err := s.achievementService.GrantOnCompletion(ctx, tx, a, fp, maxScore); err != nil {
				return fmt.Errorf("grant achievements: %w", err)
			}
		}

		if err := s.assignmentRepo.Save(ctx, tx, a); err != nil {
			return err
		}

		result = &SubmissionResult{
			Completed:     completed,
			Score:         score,
			MaxScore:      frozen.MaxScore,
			Component:     cp,
			Step:          sp,
			Flow:          fp,
			Assignment:    a,
			FlowCompleted: flowCompleted,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applySubmission grades the attempt per component type. Articles complete on
// sight; quizzes complete on any graded attempt; tasks require the code word.
func applySubmission(cp *types.ComponentProgress, frozen *types.ComponentSnapshot, input SubmissionInput, now time.Time) (bool, int, error) {
	switch frozen.Type {
	case types.ComponentArticle:
		cp.Complete(0, input.TimeSpent, now)
		return true, 0, nil

	case types.ComponentQuiz:
		var quiz types.QuizContent
		if err := unmarshalSnapshotContent(frozen, &quiz); err != nil {
			return false, 0, err
		}
		if len(input.QuizAnswers) == 0 {
			return false, 0, apperr.Validation("quiz_answers", "cannot be empty")
		}
		score := quiz.Grade(input.QuizAnswers)
		cp.Complete(score, input.TimeSpent, now)
		return true, score, nil

	case types.ComponentTask:
		var task types.TaskContent
		if err := unmarshalSnapshotContent(frozen, &task); err != nil {
			return false, 0, err
		}
		if !task.Check(input.TaskAnswer) {
			cp.RecordAttempt(0, input.TimeSpent)
			return false, 0, nil
		}
		cp.Complete(task.Score, input.TimeSpent, now)
		return true, task.Score, nil

	default:
		return false, 0, apperr.Validation("component", "unknown component type")
	}
}

func unmarshalSnapshotContent(frozen *types.ComponentSnapshot, out any) error {
	if len(frozen.Content) == 0 {
		return apperr.Validation("component", "frozen payload is empty")
	}
	if err := json.Unmarshal(frozen.Content, out); err != nil {
		return fmt.Errorf("decode frozen payload: %w", err)
	}
	return nil
}

func locateComponent(fp *types.FlowProgress, componentSnapshotID uuid.UUID) (int, int) {
	for i := range fp.Steps {
		for j := range fp.Steps[i].Components {
			if fp.Steps[i].Components[j].ComponentSnapshotID == componentSnapshotID {
				return i, j
			}
		}
	}
	return -1, -1
}

func findSnapshotComponent(snap *types.FlowSnapshot, componentSnapshotID uuid.UUID) *types.ComponentSnapshot {
	for i := range snap.Steps {
		for j := range snap.Steps[i].Components {
			if snap.Steps[i].Components[j].ID == componentSnapshotID {
				return &snap.Steps[i].Components[j]
			}
		}
	}
	return nil
}
