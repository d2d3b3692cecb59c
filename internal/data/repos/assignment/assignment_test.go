package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teamonboard/flowline-backend/internal/data/repos/testutil"
	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
)

func TestSaveBumpsLockVersion(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewAssignmentRepo(db, testutil.Logger(t))

	mod := testutil.SeedModerator(t, ctx, tx, "assign-save-mod@example.com")
	u := testutil.SeedUser(t, ctx, tx, "assign-save@example.com")
	f := testutil.SeedFlow(t, ctx, tx, mod.ID)
	snap := testutil.SeedSnapshot(t, ctx, tx, f.ID, 1, 1)
	a := testutil.SeedAssignment(t, ctx, tx, u.ID, f.ID, snap.ID, mod.ID)

	if err := a.Start(time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(ctx, tx, a); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if a.LockVersion != 1 {
		t.Fatalf("lock version after save = %d, want 1", a.LockVersion)
	}

	got, err := repo.GetByID(ctx, tx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.AssignmentInProgress {
		t.Fatalf("status = %s, want in_progress", got.Status)
	}
	if got.LockVersion != 1 {
		t.Fatalf("stored lock version = %d, want 1", got.LockVersion)
	}
	if got.StartedAt == nil {
		t.Fatal("started_at not persisted")
	}
}

func TestSaveDetectsConcurrentWriter(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewAssignmentRepo(db, testutil.Logger(t))

	mod := testutil.SeedModerator(t, ctx, tx, "assign-conflict-mod@example.com")
	u := testutil.SeedUser(t, ctx, tx, "assign-conflict@example.com")
	f := testutil.SeedFlow(t, ctx, tx, mod.ID)
	snap := testutil.SeedSnapshot(t, ctx, tx, f.ID, 1, 1)
	testutil.SeedAssignment(t, ctx, tx, u.ID, f.ID, snap.ID, mod.ID)

	// Two readers load the same row.
	first, err := repo.GetOpenForUserAndFlow(ctx, tx, u.ID, f.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := repo.GetByID(ctx, tx, first.ID)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	if err := first.Start(now); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(ctx, tx, first); err != nil {
		t.Fatalf("first writer: %v", err)
	}

	// The stale reader loses.
	if err := second.Cancel(now, "reorg"); err != nil {
		t.Fatal(err)
	}
	err = repo.Save(ctx, tx, second)
	var conflict *apperr.ConcurrencyConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("stale save err = %v, want ConcurrencyConflictError", err)
	}
	if second.LockVersion != 0 {
		t.Fatalf("failed save must not bump the in-memory lock version, got %d", second.LockVersion)
	}

	// Re-read and retry succeeds.
	fresh, err := repo.GetByID(ctx, tx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := fresh.Cancel(now, "reorg"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(ctx, tx, fresh); err != nil {
		t.Fatalf("retry after reload: %v", err)
	}
}

func TestGetOpenForUserAndFlow(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewAssignmentRepo(db, testutil.Logger(t))

	mod := testutil.SeedModerator(t, ctx, tx, "assign-open-mod@example.com")
	u := testutil.SeedUser(t, ctx, tx, "assign-open@example.com")
	f := testutil.SeedFlow(t, ctx, tx, mod.ID)
	snap := testutil.SeedSnapshot(t, ctx, tx, f.ID, 1, 1)
	a := testutil.SeedAssignment(t, ctx, tx, u.ID, f.ID, snap.ID, mod.ID)

	got, err := repo.GetOpenForUserAndFlow(ctx, tx, u.ID, f.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != a.ID {
		t.Fatal("open assignment not found")
	}

	// Terminal assignments no longer count as open, so a re-assign is possible.
	if err := tx.WithContext(ctx).Model(a).Update("status", types.AssignmentCancelled).Error; err != nil {
		t.Fatal(err)
	}
	got, err = repo.GetOpenForUserAndFlow(ctx, tx, u.ID, f.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("cancelled assignment reported as open: %+v", got)
	}
}

func TestGetOverdue(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewAssignmentRepo(db, testutil.Logger(t))

	mod := testutil.SeedModerator(t, ctx, tx, "assign-overdue-mod@example.com")
	u := testutil.SeedUser(t, ctx, tx, "assign-overdue@example.com")
	f := testutil.SeedFlow(t, ctx, tx, mod.ID)
	snap := testutil.SeedSnapshot(t, ctx, tx, f.ID, 1, 1)

	now := time.Now()
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	late := testutil.SeedAssignment(t, ctx, tx, u.ID, f.ID, snap.ID, mod.ID)
	onTime := testutil.SeedAssignment(t, ctx, tx, u.ID, f.ID, snap.ID, mod.ID)
	pausedLate := testutil.SeedAssignment(t, ctx, tx, u.ID, f.ID, snap.ID, mod.ID)
	noDue := testutil.SeedAssignment(t, ctx, tx, u.ID, f.ID, snap.ID, mod.ID)

	for _, upd := range []struct {
		a       *types.FlowAssignment
		updates map[string]interface{}
	}{
		{late, map[string]interface{}{"due_date": past}},
		{onTime, map[string]interface{}{"due_date": future}},
		{pausedLate, map[string]interface{}{"due_date": past, "status": types.AssignmentPaused}},
		{noDue, map[string]interface{}{}},
	} {
		if len(upd.updates) == 0 {
			continue
		}
		if err := tx.WithContext(ctx).Model(upd.a).Updates(upd.updates).Error; err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.GetOverdue(ctx, tx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != late.ID {
		t.Fatalf("GetOverdue returned %d rows, want only the open past-due one", len(got))
	}
}
