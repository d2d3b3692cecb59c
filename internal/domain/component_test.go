package domain

import (
	"testing"
)

func TestQuizGrade(t *testing.T) {
	quiz := &QuizContent{
		Questions: []QuizQuestion{
			{
				Text:   "single choice",
				Points: 5,
				Options: []QuizOption{
					{Text: "wrong"},
					{Text: "right", IsCorrect: true},
				},
			},
			{
				Text:   "multi choice",
				Points: 10,
				Options: []QuizOption{
					{Text: "a", IsCorrect: true},
					{Text: "b"},
					{Text: "c", IsCorrect: true},
				},
			},
		},
	}

	if quiz.MaxScore() != 15 {
		t.Fatalf("MaxScore = %d, want 15", quiz.MaxScore())
	}

	cases := []struct {
		name    string
		answers [][]int
		want    int
	}{
		{"all correct", [][]int{{1}, {0, 2}}, 15},
		{"first only", [][]int{{1}, {0}}, 5},
		{"partial selection scores nothing", [][]int{{0}, {0, 2}}, 10},
		{"extra option voids the question", [][]int{{1}, {0, 1, 2}}, 5},
		{"out of range index", [][]int{{9}, {0, 2}}, 10},
		{"missing answers", [][]int{{1}}, 5},
		{"empty sheet", nil, 0},
	}
	for _, tc := range cases {
		if got := quiz.Grade(tc.answers); got != tc.want {
			t.Fatalf("%s: Grade = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestTaskCheck(t *testing.T) {
	insensitive := &TaskContent{CodeWord: "Orange", CaseSensitive: false, Score: 10}
	if !insensitive.Check("orange") || !insensitive.Check("  ORANGE ") {
		t.Fatal("case-insensitive task rejected a matching answer")
	}
	if insensitive.Check("apple") {
		t.Fatal("accepted a wrong code word")
	}

	sensitive := &TaskContent{CodeWord: "Orange", CaseSensitive: true, Score: 10}
	if !sensitive.Check("Orange") {
		t.Fatal("rejected exact match")
	}
	if sensitive.Check("orange") {
		t.Fatal("case-sensitive task accepted a lowercase answer")
	}
}

func TestComponentPayloadRoundTrip(t *testing.T) {
	content, err := MarshalContent(&TaskContent{CodeWord: "w", CaseSensitive: true, Score: 3})
	if err != nil {
		t.Fatal(err)
	}
	c := &Component{Type: ComponentTask, Content: content}

	task, err := c.Task()
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if task.CodeWord != "w" || !task.CaseSensitive || task.Score != 3 {
		t.Fatalf("payload mismatch: %+v", task)
	}

	if _, err := c.Quiz(); err == nil {
		t.Fatal("decoding a task as quiz must fail")
	}
}
