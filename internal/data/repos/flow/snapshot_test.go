package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/teamonboard/flowline-backend/internal/data/repos/testutil"
	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
	"github.com/teamonboard/flowline-backend/internal/pkg/orderkey"
)

func TestSnapshotSurvivesLiveEdits(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	snapRepo := NewFlowSnapshotRepo(db, testutil.Logger(t))
	stepRepo := NewFlowStepRepo(db, testutil.Logger(t))

	u := testutil.SeedModerator(t, ctx, tx, "snap-edit@example.com")
	f, content := testutil.SeedFlowTree(t, ctx, tx, u.ID, 3)

	// Freeze the live tree into a snapshot the way publish does.
	contentRepo := NewFlowContentRepo(db, testutil.Logger(t))
	loaded, err := contentRepo.GetByID(ctx, tx, content.ID)
	if err != nil {
		t.Fatalf("load content: %v", err)
	}
	snap := &types.FlowSnapshot{
		ID:             uuid.New(),
		OriginalFlowID: f.ID,
		Version:        1,
		Name:           f.Name,
		Status:         types.FlowStatusPublished,
		IsSequential:   loaded.IsSequential,
		AllowSelfPause: loaded.AllowSelfPause,
	}
	for _, step := range loaded.Steps {
		frozen := types.FlowStepSnapshot{
			ID:             uuid.New(),
			SnapshotID:     snap.ID,
			OriginalStepID: step.ID,
			Title:          step.Title,
			OrderKey:       step.OrderKey,
			IsRequired:     step.IsRequired,
		}
		for _, comp := range step.Components {
			frozen.Components = append(frozen.Components, types.ComponentSnapshot{
				ID:                  uuid.New(),
				StepSnapshotID:      frozen.ID,
				OriginalComponentID: comp.ID,
				Type:                comp.Type,
				Title:               comp.Title,
				OrderKey:            comp.OrderKey,
				IsRequired:          comp.IsRequired,
				MaxScore:            comp.MaxScore,
				Content:             comp.Content,
			})
		}
		snap.Steps = append(snap.Steps, frozen)
	}
	if _, err := snapRepo.Create(ctx, tx, snap); err != nil {
		t.Fatalf("create snapshot: %v", err)
	}

	// Mutate the live tree: rename a step, delete another, add a new one.
	liveSteps := loaded.Steps
	if err := stepRepo.Update(ctx, tx, liveSteps[0].ID, map[string]interface{}{"title": "renamed"}); err != nil {
		t.Fatalf("rename step: %v", err)
	}
	if err := stepRepo.DeleteByIDs(ctx, tx, []uuid.UUID{liveSteps[2].ID}); err != nil {
		t.Fatalf("delete step: %v", err)
	}
	after, err := orderkey.After(liveSteps[1].OrderKey)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := stepRepo.Create(ctx, tx, []*types.FlowStep{{
		ID:        uuid.New(),
		ContentID: content.ID,
		Title:     "late addition",
		OrderKey:  after,
	}}); err != nil {
		t.Fatalf("add step: %v", err)
	}

	// The frozen copy still shows the original three steps and titles.
	got, err := snapRepo.GetByID(ctx, tx, snap.ID)
	if err != nil {
		t.Fatalf("reload snapshot: %v", err)
	}
	steps := got.OrderedSteps()
	if len(steps) != 3 {
		t.Fatalf("snapshot step count = %d, want 3", len(steps))
	}
	for i, want := range []string{"step 1", "step 2", "step 3"} {
		if steps[i].Title != want {
			t.Fatalf("step %d title = %q, want %q", i, steps[i].Title, want)
		}
		if len(steps[i].Components) != 1 {
			t.Fatalf("step %d component count = %d, want 1", i, len(steps[i].Components))
		}
	}
	if got.TotalComponents() != 3 {
		t.Fatalf("TotalComponents = %d, want 3", got.TotalComponents())
	}
}

func TestSnapshotVersionsPerFlow(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewFlowSnapshotRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "snap-version@example.com")
	f := testutil.SeedFlow(t, ctx, tx, u.ID)
	other := testutil.SeedFlow(t, ctx, tx, u.ID)

	testutil.SeedSnapshot(t, ctx, tx, f.ID, 1, 1)
	testutil.SeedSnapshot(t, ctx, tx, f.ID, 2, 2)
	testutil.SeedSnapshot(t, ctx, tx, other.ID, 1, 1)

	next, err := repo.NextVersion(ctx, tx, f.ID)
	if err != nil {
		t.Fatal(err)
	}
	if next != 3 {
		t.Fatalf("NextVersion = %d, want 3", next)
	}

	latest, err := repo.GetLatest(ctx, tx, f.ID)
	if err != nil {
		t.Fatal(err)
	}
	if latest.Version != 2 {
		t.Fatalf("latest version = %d, want 2", latest.Version)
	}
	if len(latest.Steps) != 2 {
		t.Fatalf("latest step count = %d, want 2", len(latest.Steps))
	}

	v1, err := repo.GetByVersion(ctx, tx, f.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(v1.Steps) != 1 {
		t.Fatalf("v1 step count = %d, want 1", len(v1.Steps))
	}

	if _, err := repo.GetByVersion(ctx, tx, f.ID, 9); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing version err = %v, want ErrNotFound", err)
	}
}

func TestSnapshotDeleteGuardedByOpenAssignments(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewFlowSnapshotRepo(db, testutil.Logger(t))

	mod := testutil.SeedModerator(t, ctx, tx, "snap-gc-mod@example.com")
	f := testutil.SeedFlow(t, ctx, tx, mod.ID)
	snap := testutil.SeedSnapshot(t, ctx, tx, f.ID, 1, 2)

	assignee := testutil.SeedUser(t, ctx, tx, "snap-gc-user@example.com")
	a := testutil.SeedAssignment(t, ctx, tx, assignee.ID, f.ID, snap.ID, mod.ID)

	for _, status := range types.NonTerminalStatuses() {
		if err := tx.WithContext(ctx).Model(a).Update("status", status).Error; err != nil {
			t.Fatal(err)
		}
		busy, err := repo.HasActiveAssignments(ctx, tx, snap.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !busy {
			t.Fatalf("status %s should keep the snapshot alive", status)
		}
		var inUse *apperr.VersionInUseError
		if err := repo.Delete(ctx, tx, snap.ID); !errors.As(err, &inUse) {
			t.Fatalf("delete with %s assignment: err = %v, want VersionInUseError", status, err)
		}
	}

	if err := tx.WithContext(ctx).Model(a).Update("status", types.AssignmentCompleted).Error; err != nil {
		t.Fatal(err)
	}
	busy, err := repo.HasActiveAssignments(ctx, tx, snap.ID)
	if err != nil {
		t.Fatal(err)
	}
	if busy {
		t.Fatal("completed assignment should not pin the snapshot")
	}
	if err := repo.Delete(ctx, tx, snap.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// The whole tree is gone.
	var stepCount int64
	if err := tx.WithContext(ctx).Model(&types.FlowStepSnapshot{}).
		Where("snapshot_id = ?", snap.ID).Count(&stepCount).Error; err != nil {
		t.Fatal(err)
	}
	if stepCount != 0 {
		t.Fatalf("orphaned step snapshots: %d", stepCount)
	}
	if _, err := repo.GetByID(ctx, tx, snap.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("GetByID after delete err = %v, want ErrNotFound", err)
	}
}

func TestGetOldSnapshots(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewFlowSnapshotRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "snap-old@example.com")
	f := testutil.SeedFlow(t, ctx, tx, u.ID)
	old := testutil.SeedSnapshot(t, ctx, tx, f.ID, 1, 1)
	testutil.SeedSnapshot(t, ctx, tx, f.ID, 2, 1)

	stale := time.Now().Add(-48 * time.Hour)
	if err := tx.WithContext(ctx).Model(old).Update("created_at", stale).Error; err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetOldSnapshots(ctx, tx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != old.ID {
		t.Fatalf("GetOldSnapshots returned %d rows, want just the stale one", len(got))
	}
}
