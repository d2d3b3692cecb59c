package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/teamonboard/flowline-backend/internal/data/repos/testutil"
	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
)

// buildProgressTree mirrors the skeleton the assignment service creates from a
// snapshot.
func buildProgressTree(a *types.FlowAssignment, snap *types.FlowSnapshot) *types.FlowProgress {
	fp := &types.FlowProgress{
		ID:           uuid.New(),
		AssignmentID: a.ID,
		UserID:       a.UserID,
		SnapshotID:   snap.ID,
	}
	for _, step := range snap.OrderedSteps() {
		sp := types.StepProgress{
			ID:                   uuid.New(),
			FlowProgressID:       fp.ID,
			StepSnapshotID:       step.ID,
			OrderKey:             step.OrderKey,
			IsRequired:           step.IsRequired,
			TotalComponentsCount: len(step.Components),
		}
		for _, comp := range step.OrderedComponents() {
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
	return fp
}

func TestProgressTreeRoundTrip(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewProgressRepo(db, testutil.Logger(t))

	mod := testutil.SeedModerator(t, ctx, tx, "progress-tree-mod@example.com")
	u := testutil.SeedUser(t, ctx, tx, "progress-tree@example.com")
	f := testutil.SeedFlow(t, ctx, tx, mod.ID)
	snap := testutil.SeedSnapshot(t, ctx, tx, f.ID, 1, 3)
	a := testutil.SeedAssignment(t, ctx, tx, u.ID, f.ID, snap.ID, mod.ID)

	if _, err := repo.CreateTree(ctx, tx, buildProgressTree(a, snap)); err != nil {
		t.Fatalf("CreateTree: %v", err)
	}

	got, err := repo.GetByAssignmentID(ctx, tx, a.ID)
	if err != nil {
		t.Fatalf("GetByAssignmentID: %v", err)
	}
	if len(got.Steps) != 3 {
		t.Fatalf("step count = %d, want 3", len(got.Steps))
	}
	wantKeys := snap.OrderedSteps()
	for i, sp := range got.Steps {
		if sp.OrderKey != wantKeys[i].OrderKey {
			t.Fatalf("step %d loaded out of order: key %q, want %q", i, sp.OrderKey, wantKeys[i].OrderKey)
		}
		if len(sp.Components) != 1 {
			t.Fatalf("step %d component count = %d, want 1", i, len(sp.Components))
		}
		if sp.IsCompleted {
			t.Fatalf("fresh step %d marked complete", i)
		}
	}
}

func TestProgressRollupPersists(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewProgressRepo(db, testutil.Logger(t))

	mod := testutil.SeedModerator(t, ctx, tx, "progress-rollup-mod@example.com")
	u := testutil.SeedUser(t, ctx, tx, "progress-rollup@example.com")
	f := testutil.SeedFlow(t, ctx, tx, mod.ID)
	snap := testutil.SeedSnapshot(t, ctx, tx, f.ID, 1, 3)
	a := testutil.SeedAssignment(t, ctx, tx, u.ID, f.ID, snap.ID, mod.ID)

	if _, err := repo.CreateTree(ctx, tx, buildProgressTree(a, snap)); err != nil {
		t.Fatal(err)
	}

	// Complete the first step's only component and roll up, the way the
	// progress service does.
	now := time.Now()
	fp, err := repo.GetByAssignmentID(ctx, tx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	cp := &fp.Steps[0].Components[0]
	cp.Complete(10, 7, now)
	if err := repo.SaveComponent(ctx, tx, cp); err != nil {
		t.Fatalf("SaveComponent: %v", err)
	}

	sp := &fp.Steps[0]
	children := make([]*types.ComponentProgress, len(sp.Components))
	for i := range sp.Components {
		children[i] = &sp.Components[i]
	}
	sp.Recompute(children, now)
	if err := repo.SaveStep(ctx, tx, sp); err != nil {
		t.Fatalf("SaveStep: %v", err)
	}

	steps := make([]*types.StepProgress, len(fp.Steps))
	for i := range fp.Steps {
		steps[i] = &fp.Steps[i]
	}
	fp.Recompute(steps, now)
	if err := repo.SaveFlow(ctx, tx, fp); err != nil {
		t.Fatalf("SaveFlow: %v", err)
	}

	got, err := repo.GetByAssignmentID(ctx, tx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CompletedStepsCount != 1 || got.TotalStepsCount != 3 {
		t.Fatalf("counts = %d/%d, want 1/3", got.CompletedStepsCount, got.TotalStepsCount)
	}
	if got.OverallProgress != 33 {
		t.Fatalf("overall progress = %d, want 33", got.OverallProgress)
	}
	if got.IsCompleted {
		t.Fatal("flow must not be complete with two required steps open")
	}
	if !got.Steps[0].IsCompleted {
		t.Fatal("first step rollup not persisted")
	}
	if got.Steps[0].Components[0].BestScore != 10 || got.Steps[0].Components[0].AttemptsCount != 1 {
		t.Fatalf("component attempt not persisted: %+v", got.Steps[0].Components[0])
	}
	if got.TimeSpentMinutes != 7 {
		t.Fatalf("time spent = %d, want 7", got.TimeSpentMinutes)
	}
}

func TestDeleteByAssignmentIDs(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewProgressRepo(db, testutil.Logger(t))

	mod := testutil.SeedModerator(t, ctx, tx, "progress-del-mod@example.com")
	u := testutil.SeedUser(t, ctx, tx, "progress-del@example.com")
	f := testutil.SeedFlow(t, ctx, tx, mod.ID)
	snap := testutil.SeedSnapshot(t, ctx, tx, f.ID, 1, 2)
	a := testutil.SeedAssignment(t, ctx, tx, u.ID, f.ID, snap.ID, mod.ID)
	keep := testutil.SeedAssignment(t, ctx, tx, u.ID, f.ID, snap.ID, mod.ID)

	if _, err := repo.CreateTree(ctx, tx, buildProgressTree(a, snap)); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CreateTree(ctx, tx, buildProgressTree(keep, snap)); err != nil {
		t.Fatal(err)
	}

	if err := repo.DeleteByAssignmentIDs(ctx, tx, []uuid.UUID{a.ID}); err != nil {
		t.Fatalf("DeleteByAssignmentIDs: %v", err)
	}

	if _, err := repo.GetByAssignmentID(ctx, tx, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("deleted tree still loads: err = %v", err)
	}
	var orphans int64
	if err := tx.WithContext(ctx).Model(&types.ComponentProgress{}).Count(&orphans).Error; err != nil {
		t.Fatal(err)
	}
	if orphans != 2 {
		t.Fatalf("component progress rows left = %d, want the 2 of the kept tree", orphans)
	}
	if _, err := repo.GetByAssignmentID(ctx, tx, keep.ID); err != nil {
		t.Fatalf("kept tree vanished: %v", err)
	}
}
