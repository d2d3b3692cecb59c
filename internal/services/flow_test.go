package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
	"github.com/teamonboard/flowline-backend/internal/pkg/orderkey"
)

func TestKeyForInsert(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	keys := orderkey.Spread(3)
	siblings := []orderedElem{
		{id: a, key: keys[0]},
		{id: b, key: keys[1]},
		{id: c, key: keys[2]},
	}

	first, err := keyForInsert(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first != orderkey.First() {
		t.Fatalf("empty list key = %q, want %q", first, orderkey.First())
	}

	end, err := keyForInsert(siblings, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !orderkey.Less(keys[2], end) {
		t.Fatalf("append key %q does not sort after %q", end, keys[2])
	}

	mid, err := keyForInsert(siblings, &a)
	if err != nil {
		t.Fatal(err)
	}
	if !orderkey.Less(keys[0], mid) || !orderkey.Less(mid, keys[1]) {
		t.Fatalf("insert-after-first key %q not between %q and %q", mid, keys[0], keys[1])
	}

	afterLast, err := keyForInsert(siblings, &c)
	if err != nil {
		t.Fatal(err)
	}
	if !orderkey.Less(keys[2], afterLast) {
		t.Fatalf("insert-after-last key %q not after %q", afterLast, keys[2])
	}

	stranger := uuid.New()
	if _, err := keyForInsert(siblings, &stranger); err == nil {
		t.Fatal("expected error for non-sibling anchor")
	}
}

func TestBuildComponentValidation(t *testing.T) {
	quiz := &types.QuizContent{Questions: []types.QuizQuestion{
		{
			Text:    "pick one",
			Points:  5,
			Options: []types.QuizOption{{Text: "a", IsCorrect: true}, {Text: "b"}},
		},
	}}

	c, err := buildComponent(ComponentInput{Type: types.ComponentQuiz, Title: "quiz", Quiz: quiz})
	if err != nil {
		t.Fatalf("valid quiz rejected: %v", err)
	}
	if c.MaxScore != 5 {
		t.Fatalf("quiz max score = %d, want 5", c.MaxScore)
	}

	badQuiz := &types.QuizContent{Questions: []types.QuizQuestion{
		{Text: "no correct option", Options: []types.QuizOption{{Text: "a"}, {Text: "b"}}},
	}}
	var vErr *apperr.ValidationError
	if _, err := buildComponent(ComponentInput{Type: types.ComponentQuiz, Title: "q", Quiz: badQuiz}); !errors.As(err, &vErr) {
		t.Fatalf("quiz without a correct option: err = %v, want ValidationError", err)
	}

	task, err := buildComponent(ComponentInput{
		Type:  types.ComponentTask,
		Title: "task",
		Task:  &types.TaskContent{CodeWord: "shibboleth", Score: 10},
	})
	if err != nil {
		t.Fatal(err)
	}
	if task.MaxScore != 10 {
		t.Fatalf("task max score = %d, want 10", task.MaxScore)
	}

	if _, err := buildComponent(ComponentInput{Type: types.ComponentTask, Title: "t", Task: &types.TaskContent{}}); !errors.As(err, &vErr) {
		t.Fatalf("task without code word: err = %v, want ValidationError", err)
	}
	if _, err := buildComponent(ComponentInput{Type: types.ComponentArticle, Title: "a"}); !errors.As(err, &vErr) {
		t.Fatalf("article without payload: err = %v, want ValidationError", err)
	}
	if _, err := buildComponent(ComponentInput{Type: "video", Title: "x"}); !errors.As(err, &vErr) {
		t.Fatalf("unknown type: err = %v, want ValidationError", err)
	}
}

func TestMarshalTags(t *testing.T) {
	// Handlers decode the update body into map[string]interface{}, so tags
	// arrive as []interface{} and must land in the column as a JSON array.
	raw, err := marshalTags([]interface{}{"onboarding", "sales"})
	if err != nil {
		t.Fatalf("marshalTags: %v", err)
	}
	if string(raw) != `["onboarding","sales"]` {
		t.Fatalf("tags json = %s", raw)
	}

	raw, err = marshalTags([]string{"ops"})
	if err != nil {
		t.Fatalf("marshalTags []string: %v", err)
	}
	if string(raw) != `["ops"]` {
		t.Fatalf("tags json = %s", raw)
	}

	raw, err = marshalTags(nil)
	if err != nil {
		t.Fatalf("marshalTags nil: %v", err)
	}
	if string(raw) != `[]` {
		t.Fatalf("nil tags json = %s", raw)
	}

	var vErr *apperr.ValidationError
	if _, err := marshalTags([]interface{}{"a", 7}); !errors.As(err, &vErr) {
		t.Fatalf("mixed tags: err = %v, want ValidationError", err)
	}
	if _, err := marshalTags("solo"); !errors.As(err, &vErr) {
		t.Fatalf("scalar tags: err = %v, want ValidationError", err)
	}
}
