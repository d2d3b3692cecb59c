package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ComponentType string

const (
	ComponentArticle ComponentType = "article"
	ComponentQuiz    ComponentType = "quiz"
	ComponentTask    ComponentType = "task"
)

// Component is a unit of learnable content inside a step. The type-specific
// payload lives in Content as JSONB; ArticleContent, QuizContent and
// TaskContent are the closed set of payload shapes.
type Component struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StepID      uuid.UUID      `gorm:"type:uuid;column:step_id;not null;index:idx_component_order,priority:1" json:"step_id"`
	Type        ComponentType  `gorm:"column:type;not null" json:"type"`
	Title       string         `gorm:"column:title;not null" json:"title"`
	Description string         `gorm:"column:description;type:text" json:"description,omitempty"`
	OrderKey    string         `gorm:"column:order_key;not null;index:idx_component_order,priority:2" json:"order_key"`
	IsRequired  bool           `gorm:"column:is_required;not null;default:true" json:"is_required"`
	MaxScore    int            `gorm:"column:max_score;not null;default:0" json:"max_score"`
	Content     datatypes.JSON `gorm:"column:content;type:jsonb" json:"content,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Component) TableName() string { return "component" }

type ArticleContent struct {
	Body               string `json:"body"`
	ReadingTimeMinutes int    `json:"reading_time_minutes"`
}

type QuizOption struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type QuizQuestion struct {
	Text    string       `json:"text"`
	Options []QuizOption `json:"options"`
	Points  int          `json:"points"`
}

type QuizContent struct {
	Questions []QuizQuestion `json:"questions"`
}

// MaxScore is the sum of all question points.
func (q *QuizContent) MaxScore() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// Grade scores an answer sheet: one slice of selected option indexes per
// question. A question earns its points only when the selected set matches the
// correct set exactly.
func (q *QuizContent) Grade(answers [][]int) int {
	score := 0
	for i, question := range q.Questions {
		if i >= len(answers) {
			break
		}
		if questionCorrect(question, answers[i]) {
			score += question.Points
		}
	}
	return score
}

func questionCorrect(q QuizQuestion, selected []int) bool {
	picked := make(map[int]bool, len(selected))
	for _, idx := range selected {
		if idx < 0 || idx >= len(q.Options) {
			return false
		}
		picked[idx] = true
	}
	for i, opt := range q.Options {
		if opt.IsCorrect != picked[i] {
			return false
		}
	}
	return true
}

type TaskContent struct {
	CodeWord      string `json:"code_word"`
	CaseSensitive bool   `json:"case_sensitive"`
	Score         int    `json:"score"`
}

// Check matches a submitted code word against the expected one. Surrounding
// whitespace is ignored either way.
func (t *TaskContent) Check(answer string) bool {
	answer = strings.TrimSpace(answer)
	expected := strings.TrimSpace(t.CodeWord)
	if t.CaseSensitive {
		return answer == expected
	}
	return strings.EqualFold(answer, expected)
}

func MarshalContent(v any) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func (c *Component) Article() (*ArticleContent, error) {
	if c.Type != ComponentArticle {
		return nil, fmt.Errorf("component %s is %s, not article", c.ID, c.Type)
	}
	var out ArticleContent
	if err := json.Unmarshal(c.Content, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Component) Quiz() (*QuizContent, error) {
	if c.Type != ComponentQuiz {
		return nil, fmt.Errorf("component %s is %s, not quiz", c.ID, c.Type)
	}
	var out QuizContent
	if err := json.Unmarshal(c.Content, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Component) Task() (*TaskContent, error) {
	if c.Type != ComponentTask {
		return nil, fmt.Errorf("component %s is %s, not task", c.ID, c.Type)
	}
	var out TaskContent
	if err := json.Unmarshal(c.Content, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
