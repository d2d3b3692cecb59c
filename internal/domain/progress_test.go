package domain

import (
	"testing"
	"time"
)

func TestComponentProgressComplete(t *testing.T) {
	now := time.Now()
	cp := &ComponentProgress{}

	cp.Complete(70, 10, now)
	if !cp.IsCompleted || cp.AttemptsCount != 1 || cp.BestScore != 70 || cp.LastScore != 70 {
		t.Fatalf("after first attempt: %+v", cp)
	}
	first := cp.CompletedAt

	// A worse retry keeps the best score and the first completion time.
	cp.Complete(40, 5, now.Add(time.Hour))
	if cp.AttemptsCount != 2 || cp.BestScore != 70 || cp.LastScore != 40 {
		t.Fatalf("after retry: %+v", cp)
	}
	if cp.CompletedAt != first {
		t.Fatal("retry moved CompletedAt")
	}
	if cp.TimeSpentMinutes != 15 {
		t.Fatalf("TimeSpentMinutes = %d, want 15", cp.TimeSpentMinutes)
	}
}

func TestStepCompleteIgnoresOptionalComponents(t *testing.T) {
	now := time.Now()
	sp := &StepProgress{}
	comps := []*ComponentProgress{
		{IsRequired: true, IsCompleted: true},
		{IsRequired: true, IsCompleted: true},
		{IsRequired: false, IsCompleted: false},
	}
	sp.Recompute(comps, now)
	if !sp.IsCompleted {
		t.Fatal("step with all required components done must be complete")
	}
	if sp.CompletedComponentsCount != 2 || sp.TotalComponentsCount != 3 || sp.RequiredComponentsCount != 2 {
		t.Fatalf("counts: %+v", sp)
	}
}

func TestStepIncompleteWhileRequiredRemain(t *testing.T) {
	sp := &StepProgress{}
	comps := []*ComponentProgress{
		{IsRequired: true, IsCompleted: true},
		{IsRequired: true, IsCompleted: false},
		{IsRequired: false, IsCompleted: true},
	}
	sp.Recompute(comps, time.Now())
	if sp.IsCompleted {
		t.Fatal("step must not be complete with a required component open")
	}
	if sp.CompletedComponentsCount != 2 {
		t.Fatalf("CompletedComponentsCount = %d, want 2", sp.CompletedComponentsCount)
	}
}

// Two required steps done, one optional step open: the flow is complete with
// 2 of 3 steps counted.
func TestFlowCompleteWithOptionalStepOpen(t *testing.T) {
	fp := &FlowProgress{}
	steps := []*StepProgress{
		{IsRequired: true, IsCompleted: true},
		{IsRequired: true, IsCompleted: true},
		{IsRequired: false, IsCompleted: false},
	}
	fp.Recompute(steps, time.Now())
	if !fp.IsCompleted {
		t.Fatal("flow with all required steps done must be complete")
	}
	if fp.CompletedStepsCount != 2 {
		t.Fatalf("CompletedStepsCount = %d, want 2", fp.CompletedStepsCount)
	}
	if fp.OverallProgress != ProgressPercent(2, 3) {
		t.Fatalf("OverallProgress = %d", fp.OverallProgress)
	}
}

func TestProgressPercentRounding(t *testing.T) {
	cases := []struct {
		completed, total, want int
	}{
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{1, 6, 17},
		{1, 2, 50},
		{0, 0, 100},
		{5, 3, 100},
	}
	for _, tc := range cases {
		if got := ProgressPercent(tc.completed, tc.total); got != tc.want {
			t.Fatalf("ProgressPercent(%d, %d) = %d, want %d", tc.completed, tc.total, got, tc.want)
		}
	}
}

func TestFlowProgressReopens(t *testing.T) {
	fp := &FlowProgress{}
	steps := []*StepProgress{{IsRequired: true, IsCompleted: true}}
	fp.Recompute(steps, time.Now())
	if !fp.IsCompleted || fp.CompletedAt == nil {
		t.Fatalf("expected completed: %+v", fp)
	}

	steps[0].IsCompleted = false
	fp.Recompute(steps, time.Now())
	if fp.IsCompleted || fp.CompletedAt != nil {
		t.Fatalf("expected reopened: %+v", fp)
	}
}

func TestStepAccessibilitySequential(t *testing.T) {
	steps := []*StepProgress{
		{IsCompleted: false},
		{IsCompleted: false},
		{IsCompleted: false},
	}
	got := StepAccessibility(true, steps)
	want := []bool{true, false, false}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("before completion: step %d accessible=%v, want %v", i, got[i], want[i])
		}
	}

	steps[0].IsCompleted = true
	got = StepAccessibility(true, steps)
	want = []bool{true, true, false}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after step 1: step %d accessible=%v, want %v", i, got[i], want[i])
		}
	}
}

func TestStepAccessibilityNonSequential(t *testing.T) {
	steps := []*StepProgress{{IsCompleted: false}, {IsCompleted: false}}
	for i, ok := range StepAccessibility(false, steps) {
		if !ok {
			t.Fatalf("non-sequential step %d must be accessible", i)
		}
	}
}
