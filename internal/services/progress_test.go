package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/teamonboard/flowline-backend/internal/domain"
)

func snapshotFixture() *types.FlowSnapshot {
	quizContent, _ := types.MarshalContent(&types.QuizContent{Questions: []types.QuizQuestion{
		{
			Text:    "q1",
			Points:  10,
			Options: []types.QuizOption{{Text: "a", IsCorrect: true}, {Text: "b"}},
		},
	}})
	taskContent, _ := types.MarshalContent(&types.TaskContent{CodeWord: "magic", Score: 5})

	snap := &types.FlowSnapshot{
		ID:             uuid.New(),
		OriginalFlowID: uuid.New(),
		Version:        1,
		Name:           "fixture",
		IsSequential:   true,
	}
	step1 := types.FlowStepSnapshot{
		ID: uuid.New(), SnapshotID: snap.ID, Title: "s1", OrderKey: "8", IsRequired: true,
	}
	step1.Components = []types.ComponentSnapshot{
		{ID: uuid.New(), StepSnapshotID: step1.ID, Type: types.ComponentQuiz, Title: "quiz",
			OrderKey: "8", IsRequired: true, MaxScore: 10, Content: quizContent},
	}
	step2 := types.FlowStepSnapshot{
		ID: uuid.New(), SnapshotID: snap.ID, Title: "s2", OrderKey: "i", IsRequired: true,
	}
	step2.Components = []types.ComponentSnapshot{
		{ID: uuid.New(), StepSnapshotID: step2.ID, Type: types.ComponentTask, Title: "task",
			OrderKey: "8", IsRequired: true, MaxScore: 5, Content: taskContent},
		{ID: uuid.New(), StepSnapshotID: step2.ID, Type: types.ComponentArticle, Title: "extra",
			OrderKey: "i", IsRequired: false},
	}
	snap.Steps = []types.FlowStepSnapshot{step1, step2}
	return snap
}

func TestBuildProgressSkeleton(t *testing.T) {
	snap := snapshotFixture()
	a := &types.FlowAssignment{ID: uuid.New(), UserID: uuid.New(), SnapshotID: snap.ID}

	fp := buildProgressSkeleton(a, snap)
	if fp.TotalStepsCount != 2 || fp.RequiredStepsCount != 2 {
		t.Fatalf("step counts = %d/%d, want 2/2", fp.TotalStepsCount, fp.RequiredStepsCount)
	}
	if len(fp.Steps) != 2 {
		t.Fatalf("skeleton steps = %d, want 2", len(fp.Steps))
	}
	if fp.Steps[0].TotalComponentsCount != 1 || fp.Steps[1].TotalComponentsCount != 2 {
		t.Fatalf("component totals = %d/%d, want 1/2",
			fp.Steps[0].TotalComponentsCount, fp.Steps[1].TotalComponentsCount)
	}
	if fp.Steps[1].RequiredComponentsCount != 1 {
		t.Fatalf("required components in step 2 = %d, want 1", fp.Steps[1].RequiredComponentsCount)
	}
	for i := range fp.Steps {
		if fp.Steps[i].IsCompleted {
			t.Fatalf("fresh skeleton step %d marked complete", i)
		}
		for j := range fp.Steps[i].Components {
			if fp.Steps[i].Components[j].StepProgressID != fp.Steps[i].ID {
				t.Fatal("component progress not wired to its step")
			}
		}
	}
}

func TestApplySubmissionGrading(t *testing.T) {
	snap := snapshotFixture()
	now := time.Now()

	quiz := &snap.Steps[0].Components[0]
	cp := &types.ComponentProgress{ID: uuid.New(), ComponentSnapshotID: quiz.ID, IsRequired: true}
	done, score, err := applySubmission(cp, quiz, SubmissionInput{QuizAnswers: [][]int{{0}}, TimeSpent: 3}, now)
	if err != nil {
		t.Fatal(err)
	}
	if !done || score != 10 {
		t.Fatalf("correct quiz: done=%v score=%d, want true 10", done, score)
	}

	// A wrong retake keeps the best score.
	done, score, err = applySubmission(cp, quiz, SubmissionInput{QuizAnswers: [][]int{{1}}}, now)
	if err != nil {
		t.Fatal(err)
	}
	if !done || score != 0 {
		t.Fatalf("retake: done=%v score=%d, want true 0", done, score)
	}
	if cp.BestScore != 10 || cp.LastScore != 0 || cp.AttemptsCount != 2 {
		t.Fatalf("retake bookkeeping: %+v", cp)
	}

	task := &snap.Steps[1].Components[0]
	tp := &types.ComponentProgress{ID: uuid.New(), ComponentSnapshotID: task.ID, IsRequired: true}
	done, _, err = applySubmission(tp, task, SubmissionInput{TaskAnswer: "wrong"}, now)
	if err != nil {
		t.Fatal(err)
	}
	if done || tp.IsCompleted {
		t.Fatal("wrong code word must not complete the task")
	}
	if tp.AttemptsCount != 1 {
		t.Fatalf("failed attempt not recorded: %+v", tp)
	}
	done, score, err = applySubmission(tp, task, SubmissionInput{TaskAnswer: "  MAGIC "}, now)
	if err != nil {
		t.Fatal(err)
	}
	if !done || score != 5 {
		t.Fatalf("case-insensitive code word: done=%v score=%d, want true 5", done, score)
	}

	article := &snap.Steps[1].Components[1]
	ap := &types.ComponentProgress{ID: uuid.New(), ComponentSnapshotID: article.ID}
	done, _, err = applySubmission(ap, article, SubmissionInput{TimeSpent: 2}, now)
	if err != nil {
		t.Fatal(err)
	}
	if !done || !ap.IsCompleted {
		t.Fatal("article must complete on submission")
	}

	empty := &types.ComponentProgress{ID: uuid.New()}
	if _, _, err := applySubmission(empty, quiz, SubmissionInput{}, now); err == nil {
		t.Fatal("quiz submission without answers must fail")
	}
}

func TestSanitizeSnapshotHidesGradingSecrets(t *testing.T) {
	snap := snapshotFixture()
	sanitizeSnapshot(snap)

	var quiz types.QuizContent
	if err := json.Unmarshal(snap.Steps[0].Components[0].Content, &quiz); err != nil {
		t.Fatalf("unmarshal quiz: %v", err)
	}
	for _, q := range quiz.Questions {
		for _, opt := range q.Options {
			if opt.IsCorrect {
				t.Fatalf("option %q still flagged correct", opt.Text)
			}
		}
	}
	if len(quiz.Questions) != 1 || len(quiz.Questions[0].Options) != 2 {
		t.Fatalf("quiz structure changed: %+v", quiz)
	}

	var task types.TaskContent
	if err := json.Unmarshal(snap.Steps[1].Components[0].Content, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if task.CodeWord != "" {
		t.Fatalf("code word leaked: %q", task.CodeWord)
	}
	if task.Score != 5 {
		t.Fatalf("task score = %d, want 5", task.Score)
	}
}

func TestSnapshotMaxScore(t *testing.T) {
	snap := snapshotFixture()
	// Quiz worth 10, task worth 5, article worth nothing: the same denominator
	// feeds badge evaluation on both the submit and the manual complete path.
	if got := snap.MaxScore(); got != 15 {
		t.Fatalf("MaxScore() = %d, want 15", got)
	}
}
