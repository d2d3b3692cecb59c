package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
)

func mustTransitionErr(t *testing.T, err error) *apperr.InvalidStateTransitionError {
	t.Helper()
	var transition *apperr.InvalidStateTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("expected InvalidStateTransitionError, got %v", err)
	}
	return transition
}

func TestAssignmentHappyPath(t *testing.T) {
	now := time.Now()
	a := &FlowAssignment{Status: AssignmentAssigned}

	if err := a.Start(now); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if a.Status != AssignmentInProgress || a.StartedAt == nil || a.AttemptCount != 1 {
		t.Fatalf("unexpected state after Start: %+v", a)
	}

	if err := a.Complete(now, true, "", 42); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if a.Status != AssignmentCompleted || a.CompletedAt == nil {
		t.Fatalf("unexpected state after Complete: %+v", a)
	}
	if a.ProgressPercent != 100 {
		t.Fatalf("ProgressPercent = %d, want 100", a.ProgressPercent)
	}
	if a.FinalScore != 42 {
		t.Fatalf("FinalScore = %d, want 42", a.FinalScore)
	}
}

func TestStartFromCompletedFails(t *testing.T) {
	a := &FlowAssignment{Status: AssignmentCompleted}
	err := a.Start(time.Now())
	transition := mustTransitionErr(t, err)
	if transition.From != "completed" || transition.To != "in_progress" {
		t.Fatalf("unexpected transition error: %v", transition)
	}
	if a.Status != AssignmentCompleted {
		t.Fatalf("failed transition mutated state: %v", a.Status)
	}
}

func TestCompleteWithoutStartFails(t *testing.T) {
	a := &FlowAssignment{Status: AssignmentAssigned}
	mustTransitionErr(t, a.Complete(time.Now(), true, "", 0))
}

func TestDoubleStartFails(t *testing.T) {
	a := &FlowAssignment{Status: AssignmentAssigned}
	if err := a.Start(time.Now()); err != nil {
		t.Fatal(err)
	}
	mustTransitionErr(t, a.Start(time.Now()))
}

func TestPauseResume(t *testing.T) {
	now := time.Now()
	a := &FlowAssignment{Status: AssignmentAssigned}
	if err := a.Start(now); err != nil {
		t.Fatal(err)
	}
	if err := a.Pause(now, "vacation"); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if a.Status != AssignmentPaused || a.PausedAt == nil || a.PauseReason != "vacation" {
		t.Fatalf("unexpected state after Pause: %+v", a)
	}
	// Completing from paused is illegal.
	mustTransitionErr(t, a.Complete(now, true, "", 0))

	if err := a.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if a.Status != AssignmentInProgress || a.PausedAt != nil || a.PauseReason != "" {
		t.Fatalf("pause fields not cleared: %+v", a)
	}
}

func TestPauseFromAssignedFails(t *testing.T) {
	a := &FlowAssignment{Status: AssignmentAssigned}
	mustTransitionErr(t, a.Pause(time.Now(), ""))
}

func TestCompleteOverrideNeedsNotes(t *testing.T) {
	now := time.Now()
	a := &FlowAssignment{Status: AssignmentInProgress}

	err := a.Complete(now, false, "", 0)
	var validation *apperr.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if a.Status != AssignmentInProgress {
		t.Fatalf("rejected override mutated state: %v", a.Status)
	}

	if err := a.Complete(now, false, "manager sign-off", 0); err != nil {
		t.Fatalf("override with notes: %v", err)
	}
	if a.CompletionNotes != "manager sign-off" {
		t.Fatalf("CompletionNotes = %q", a.CompletionNotes)
	}
}

func TestCancel(t *testing.T) {
	now := time.Now()
	a := &FlowAssignment{Status: AssignmentAssigned}
	if err := a.Cancel(now, "left company"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	mustTransitionErr(t, a.Cancel(now, "again"))
	mustTransitionErr(t, a.Start(now))
}

func TestIsOverdue(t *testing.T) {
	now := time.Now()
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	cases := []struct {
		status AssignmentStatus
		due    *time.Time
		want   bool
	}{
		{AssignmentAssigned, &past, true},
		{AssignmentInProgress, &past, true},
		{AssignmentAssigned, &future, false},
		{AssignmentAssigned, nil, false},
		{AssignmentPaused, &past, false},
		{AssignmentCompleted, &past, false},
		{AssignmentCancelled, &past, false},
	}
	for _, tc := range cases {
		a := &FlowAssignment{Status: tc.status, DueDate: tc.due}
		if got := a.IsOverdue(now); got != tc.want {
			t.Fatalf("IsOverdue(%s, due=%v) = %v, want %v", tc.status, tc.due, got, tc.want)
		}
	}
}
