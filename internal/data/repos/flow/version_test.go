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
)

func TestFlowVersionNumbering(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewFlowVersionRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "version-numbering@example.com")
	f := testutil.SeedFlow(t, ctx, tx, u.ID)
	c := testutil.SeedContent(t, ctx, tx, f.ID, u.ID, 1)

	for want := 1; want <= 3; want++ {
		next, err := repo.NextVersion(ctx, tx, f.ID)
		if err != nil {
			t.Fatalf("NextVersion: %v", err)
		}
		if next != want {
			t.Fatalf("NextVersion = %d, want %d", next, want)
		}
		v, err := repo.CreateVersion(ctx, tx, &types.FlowVersion{
			ID:          uuid.New(),
			OriginalID:  f.ID,
			ContentID:   c.ID,
			Name:        f.Name,
			CreatedByID: u.ID,
		})
		if err != nil {
			t.Fatalf("CreateVersion: %v", err)
		}
		if v.Version != want {
			t.Fatalf("created version %d, want %d", v.Version, want)
		}
		if v.IsActive {
			t.Fatal("a freshly created version must be inactive")
		}
	}
}

func TestActivateKeepsSingleActive(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewFlowVersionRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "version-activate@example.com")
	f := testutil.SeedFlow(t, ctx, tx, u.ID)
	c := testutil.SeedContent(t, ctx, tx, f.ID, u.ID, 1)

	var versions []*types.FlowVersion
	for i := 0; i < 3; i++ {
		v, err := repo.CreateVersion(ctx, tx, &types.FlowVersion{
			ID:          uuid.New(),
			OriginalID:  f.ID,
			ContentID:   c.ID,
			Name:        f.Name,
			CreatedByID: u.ID,
		})
		if err != nil {
			t.Fatalf("CreateVersion: %v", err)
		}
		versions = append(versions, v)
	}

	if _, err := repo.GetActive(ctx, tx, f.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("GetActive before activation: err=%v, want ErrNotFound", err)
	}

	if err := repo.Activate(ctx, tx, versions[0].ID); err != nil {
		t.Fatalf("Activate v1: %v", err)
	}
	if err := repo.Activate(ctx, tx, versions[2].ID); err != nil {
		t.Fatalf("Activate v3: %v", err)
	}

	active, err := repo.GetActive(ctx, tx, f.ID)
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if active.Version != 3 {
		t.Fatalf("active version = %d, want 3", active.Version)
	}

	all, err := repo.GetByOriginalIDs(ctx, tx, []uuid.UUID{f.ID})
	if err != nil {
		t.Fatalf("GetByOriginalIDs: %v", err)
	}
	activeCount := 0
	for _, v := range all {
		if v.IsActive {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Fatalf("active count = %d, want exactly 1", activeCount)
	}
}

func TestActivateIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewFlowVersionRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "version-idem@example.com")
	f := testutil.SeedFlow(t, ctx, tx, u.ID)
	c := testutil.SeedContent(t, ctx, tx, f.ID, u.ID, 1)

	v, err := repo.CreateVersion(ctx, tx, &types.FlowVersion{
		ID:          uuid.New(),
		OriginalID:  f.ID,
		ContentID:   c.ID,
		Name:        f.Name,
		CreatedByID: u.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Activate(ctx, tx, v.ID); err != nil {
		t.Fatal(err)
	}

	before, err := repo.GetByID(ctx, tx, v.ID)
	if err != nil {
		t.Fatal(err)
	}

	if err := repo.Activate(ctx, tx, v.ID); err != nil {
		t.Fatalf("re-activating the active version: %v", err)
	}
	after, err := repo.GetByID(ctx, tx, v.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("idempotent activate touched updated_at: %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}
}

func TestDeactivateLeavesNoActive(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewFlowVersionRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "version-deact@example.com")
	f := testutil.SeedFlow(t, ctx, tx, u.ID)
	c := testutil.SeedContent(t, ctx, tx, f.ID, u.ID, 1)

	v, err := repo.CreateVersion(ctx, tx, &types.FlowVersion{
		ID: uuid.New(), OriginalID: f.ID, ContentID: c.ID, Name: f.Name, CreatedByID: u.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Activate(ctx, tx, v.ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.Deactivate(ctx, tx, f.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := repo.GetActive(ctx, tx, f.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("after Deactivate GetActive err=%v, want ErrNotFound", err)
	}
	// Deactivating with nothing active is legal.
	if err := repo.Deactivate(ctx, tx, f.ID); err != nil {
		t.Fatalf("second Deactivate: %v", err)
	}
}

func TestDeleteVersionGuardedByAssignments(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewFlowVersionRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "version-delete@example.com")
	f := testutil.SeedFlow(t, ctx, tx, u.ID)
	c := testutil.SeedContent(t, ctx, tx, f.ID, u.ID, 1)

	v, err := repo.CreateVersion(ctx, tx, &types.FlowVersion{
		ID: uuid.New(), OriginalID: f.ID, ContentID: c.ID, Name: f.Name, CreatedByID: u.ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	snap := testutil.SeedSnapshot(t, ctx, tx, f.ID, 1, 1)
	if err := tx.WithContext(ctx).Model(snap).Update("flow_version_id", v.ID).Error; err != nil {
		t.Fatal(err)
	}
	assignee := testutil.SeedUser(t, ctx, tx, "version-delete-assignee@example.com")
	a := testutil.SeedAssignment(t, ctx, tx, assignee.ID, f.ID, snap.ID, u.ID)

	err = repo.Delete(ctx, tx, v.ID)
	var inUse *apperr.VersionInUseError
	if !errors.As(err, &inUse) {
		t.Fatalf("expected VersionInUseError, got %v", err)
	}
	if len(inUse.AssignmentIDs) != 1 || inUse.AssignmentIDs[0] != a.ID {
		t.Fatalf("blocking assignments = %v, want [%s]", inUse.AssignmentIDs, a.ID)
	}

	// Terminal assignments do not block deletion of the version.
	now := time.Now()
	if err := tx.WithContext(ctx).Model(a).Updates(map[string]interface{}{
		"status": types.AssignmentCancelled, "updated_at": now,
	}).Error; err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(ctx, tx, v.ID); err != nil {
		t.Fatalf("Delete after assignment became terminal: %v", err)
	}
}
