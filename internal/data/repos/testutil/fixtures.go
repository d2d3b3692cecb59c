package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/pkg/orderkey"
)

func PtrUUID(id uuid.UUID) *uuid.UUID { return &id }

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "x",
		FirstName:    "A",
		LastName:     "B",
		Role:         types.RoleEmployee,
		IsActive:     true,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedModerator(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *types.User {
	tb.Helper()
	u := SeedUser(tb, ctx, tx, email)
	u.Role = types.RoleModerator
	if err := tx.WithContext(ctx).Model(u).Update("role", types.RoleModerator).Error; err != nil {
		tb.Fatalf("seed moderator: %v", err)
	}
	return u
}

func SeedFlow(tb testing.TB, ctx context.Context, tx *gorm.DB, createdBy uuid.UUID) *types.Flow {
	tb.Helper()
	f := &types.Flow{
		ID:          uuid.New(),
		Name:        "onboarding flow",
		Description: "fixture flow",
		Status:      types.FlowStatusDraft,
		CreatedByID: createdBy,
		IsActive:    true,
	}
	if err := tx.WithContext(ctx).Create(f).Error; err != nil {
		tb.Fatalf("seed flow: %v", err)
	}
	return f
}

func SeedContent(tb testing.TB, ctx context.Context, tx *gorm.DB, flowID, createdBy uuid.UUID, version int) *types.FlowContent {
	tb.Helper()
	c := &types.FlowContent{
		ID:             uuid.New(),
		FlowID:         flowID,
		Version:        version,
		IsSequential:   true,
		AllowSelfPause: true,
		CreatedByID:    createdBy,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed content: %v", err)
	}
	return c
}

func SeedStep(tb testing.TB, ctx context.Context, tx *gorm.DB, contentID uuid.UUID, title, key string, required bool) *types.FlowStep {
	tb.Helper()
	s := &types.FlowStep{
		ID:         uuid.New(),
		ContentID:  contentID,
		Title:      title,
		OrderKey:   key,
		IsRequired: required,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed step: %v", err)
	}
	return s
}

func SeedArticle(tb testing.TB, ctx context.Context, tx *gorm.DB, stepID uuid.UUID, title, key string) *types.Component {
	tb.Helper()
	content, err := types.MarshalContent(&types.ArticleContent{Body: "read me", ReadingTimeMinutes: 5})
	if err != nil {
		tb.Fatalf("marshal article: %v", err)
	}
	c := &types.Component{
		ID:         uuid.New(),
		StepID:     stepID,
		Type:       types.ComponentArticle,
		Title:      title,
		OrderKey:   key,
		IsRequired: true,
		Content:    content,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed article: %v", err)
	}
	return c
}

func SeedTask(tb testing.TB, ctx context.Context, tx *gorm.DB, stepID uuid.UUID, title, key, codeWord string, score int) *types.Component {
	tb.Helper()
	content, err := types.MarshalContent(&types.TaskContent{CodeWord: codeWord, Score: score})
	if err != nil {
		tb.Fatalf("marshal task: %v", err)
	}
	c := &types.Component{
		ID:         uuid.New(),
		StepID:     stepID,
		Type:       types.ComponentTask,
		Title:      title,
		OrderKey:   key,
		IsRequired: true,
		MaxScore:   score,
		Content:    content,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed task: %v", err)
	}
	return c
}

// SeedFlowTree builds a flow with an active content holding stepCount steps,
// one required article component each, and wires ActiveContentID.
func SeedFlowTree(tb testing.TB, ctx context.Context, tx *gorm.DB, createdBy uuid.UUID, stepCount int) (*types.Flow, *types.FlowContent) {
	tb.Helper()
	f := SeedFlow(tb, ctx, tx, createdBy)
	c := SeedContent(tb, ctx, tx, f.ID, createdBy, 1)

	keys := orderkey.Spread(stepCount)
	for i := 0; i < stepCount; i++ {
		s := SeedStep(tb, ctx, tx, c.ID, fmt.Sprintf("step %d", i+1), keys[i], true)
		SeedArticle(tb, ctx, tx, s.ID, fmt.Sprintf("article %d", i+1), orderkey.First())
	}

	if err := tx.WithContext(ctx).Model(f).Update("active_content_id", c.ID).Error; err != nil {
		tb.Fatalf("set active content: %v", err)
	}
	f.ActiveContentID = &c.ID
	return f, c
}

func SeedSnapshot(tb testing.TB, ctx context.Context, tx *gorm.DB, flowID uuid.UUID, version, stepCount int) *types.FlowSnapshot {
	tb.Helper()
	snap := &types.FlowSnapshot{
		ID:             uuid.New(),
		OriginalFlowID: flowID,
		Version:        version,
		Name:           "snapshot",
		Status:         types.FlowStatusPublished,
		IsSequential:   true,
		AllowSelfPause: true,
	}
	keys := orderkey.Spread(stepCount)
	for i := 0; i < stepCount; i++ {
		step := types.FlowStepSnapshot{
			ID:             uuid.New(),
			SnapshotID:     snap.ID,
			OriginalStepID: uuid.New(),
			Title:          fmt.Sprintf("step %d", i+1),
			OrderKey:       keys[i],
			IsRequired:     true,
			Components: []types.ComponentSnapshot{
				{
					ID:                  uuid.New(),
					OriginalComponentID: uuid.New(),
					Type:                types.ComponentArticle,
					Title:               fmt.Sprintf("article %d", i+1),
					OrderKey:            orderkey.First(),
					IsRequired:          true,
				},
			},
		}
		step.Components[0].StepSnapshotID = step.ID
		snap.Steps = append(snap.Steps, step)
	}
	if err := tx.WithContext(ctx).Create(snap).Error; err != nil {
		tb.Fatalf("seed snapshot: %v", err)
	}
	return snap
}

func SeedAssignment(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, flowID, snapshotID, assignedBy uuid.UUID) *types.FlowAssignment {
	tb.Helper()
	a := &types.FlowAssignment{
		ID:           uuid.New(),
		UserID:       userID,
		FlowID:       flowID,
		SnapshotID:   snapshotID,
		AssignedByID: assignedBy,
		Status:       types.AssignmentAssigned,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed assignment: %v", err)
	}
	return a
}
