package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/teamonboard/flowline-backend/internal/data/repos"
	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
	"github.com/teamonboard/flowline-backend/internal/pkg/logger"
	"github.com/teamonboard/flowline-backend/internal/pkg/orderkey"
	"github.com/teamonboard/flowline-backend/internal/requestdata"
)

type CreateFlowInput struct {
	Name           string
	Description    string
	EstimatedDays  int
	IsRequired     bool
	Tags           []string
	IsSequential   bool
	AllowSelfPause bool
}

type StepInput struct {
	Title       string
	Description string
	IsRequired  bool
	// AfterStepID positions the new step; nil appends at the end.
	AfterStepID *uuid.UUID
}

type ComponentInput struct {
	Type        types.ComponentType
	Title       string
	Description string
	IsRequired  bool
	Article     *types.ArticleContent
	Quiz        *types.QuizContent
	Task        *types.TaskContent
	AfterID     *uuid.UUID
}

// FlowDetail bundles a flow with its editable draft tree and publication
// history for read endpoints.
type FlowDetail struct {
	Flow          *types.Flow          `json:"flow"`
	Draft         *types.FlowContent   `json:"draft,omitempty"`
	ActiveVersion *types.FlowVersion   `json:"active_version,omitempty"`
	Versions      []*types.FlowVersion `json:"versions,omitempty"`
}

type FlowService interface {
	Create(ctx context.Context, input CreateFlowInput) (*types.Flow, error)
	Get(ctx context.Context, flowID uuid.UUID) (*FlowDetail, error)
	List(ctx context.Context, onlyActive bool, offset, limit int) ([]*types.Flow, int64, error)
	Update(ctx context.Context, flowID uuid.UUID, updates map[string]interface{}) (*types.Flow, error)
	Archive(ctx context.Context, flowID uuid.UUID) error

	AddStep(ctx context.Context, flowID uuid.UUID, input StepInput) (*types.FlowStep, error)
	UpdateStep(ctx context.Context, flowID, stepID uuid.UUID, updates map[string]interface{}) error
	MoveStep(ctx context.Context, flowID, stepID uuid.UUID, afterStepID *uuid.UUID) (*types.FlowStep, error)
	DeleteStep(ctx context.Context, flowID, stepID uuid.UUID) error

	AddComponent(ctx context.Context, flowID, stepID uuid.UUID, input ComponentInput) (*types.Component, error)
	UpdateComponent(ctx context.Context, flowID, componentID uuid.UUID, input ComponentInput) (*types.Component, error)
	DeleteComponent(ctx context.Context, flowID, componentID uuid.UUID) error

	// Publish freezes the current draft into a numbered version, activates it
	// and opens the next draft for further editing.
	Publish(ctx context.Context, flowID uuid.UUID) (*types.FlowVersion, error)
	// ActivateVersion re-activates a previously published version (rollback).
	ActivateVersion(ctx context.Context, flowID, versionID uuid.UUID) error
	DeleteVersion(ctx context.Context, flowID, versionID uuid.UUID) error
}

type flowService struct {
	db            *gorm.DB
	log           *logger.Logger
	flowRepo      repos.FlowRepo
	contentRepo   repos.FlowContentRepo
	stepRepo      repos.FlowStepRepo
	componentRepo repos.ComponentRepo
	versionRepo   repos.FlowVersionRepo
}

func NewFlowService(
	db *gorm.DB,
	log *logger.Logger,
	flowRepo repos.FlowRepo,
	contentRepo repos.FlowContentRepo,
	stepRepo repos.FlowStepRepo,
	componentRepo repos.ComponentRepo,
	versionRepo repos.FlowVersionRepo,
) FlowService {
	return &flowService{
		db:            db,
		log:           log.With("service", "FlowService"),
		flowRepo:      flowRepo,
		contentRepo:   contentRepo,
		stepRepo:      stepRepo,
		componentRepo: componentRepo,
		versionRepo:   versionRepo,
	}
}

func requireModerator(ctx context.Context) (*requestdata.RequestData, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, apperr.ErrUnauthorized
	}
	if !rd.Role.CanModerate() {
		return nil, apperr.ErrForbidden
	}
	return rd, nil
}

func (fs *flowService) Create(ctx context.Context, input CreateFlowInput) (*types.Flow, error) {
	rd, err := requireModerator(ctx)
	if err != nil {
		return nil, err
	}
	if input.Name == "" {
		return nil, apperr.Validation("name", "cannot be empty")
	}

	tags, err := types.MarshalContent(input.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	f := &types.Flow{
		ID:            uuid.New(),
		Name:          input.Name,
		Description:   input.Description,
		Status:        types.FlowStatusDraft,
		EstimatedDays: input.EstimatedDays,
		IsRequired:    input.IsRequired,
		Tags:          tags,
		CreatedByID:   rd.UserID,
		IsActive:      true,
	}
	err = fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := fs.flowRepo.Create(ctx, tx, []*types.Flow{f}); err != nil {
			return fmt.Errorf("create flow: %w", err)
		}
		draft := &types.FlowContent{
			ID:             uuid.New(),
			FlowID:         f.ID,
			Version:        1,
			IsSequential:   input.IsSequential,
			AllowSelfPause: input.AllowSelfPause,
			CreatedByID:    rd.UserID,
		}
		if _, err := fs.contentRepo.Create(ctx, tx, []*types.FlowContent{draft}); err != nil {
			return fmt.Errorf("create draft content: %w", err)
		}
		if err := fs.flowRepo.SetActiveContent(ctx, tx, f.ID, draft.ID); err != nil {
			return fmt.Errorf("wire draft content: %w", err)
		}
		f.ActiveContentID = &draft.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	fs.log.Info("created flow", "flow_id", f.ID, "by", rd.UserID)
	return f, nil
}

func (fs *flowService) Get(ctx context.Context, flowID uuid.UUID) (*FlowDetail, error) {
	f, err := fs.flowRepo.GetByID(ctx, nil, flowID)
	if err != nil {
		return nil, err
	}
	detail := &FlowDetail{Flow: f}

	if f.ActiveContentID != nil {
		draft, err := fs.contentRepo.GetByID(ctx, nil, *f.ActiveContentID)
		if err != nil {
			return nil, fmt.Errorf("load draft: %w", err)
		}
		detail.Draft = draft
	}

	versions, err := fs.versionRepo.GetByOriginalIDs(ctx, nil, []uuid.UUID{flowID})
	if err != nil {
		return nil, fmt.Errorf("load versions: %w", err)
	}
	detail.Versions = versions
	for _, v := range versions {
		if v.IsActive {
			detail.ActiveVersion = v
			break
		}
	}
	return detail, nil
}

func (fs *flowService) List(ctx context.Context, onlyActive bool, offset, limit int) ([]*types.Flow, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return fs.flowRepo.List(ctx, nil, onlyActive, offset, limit)
}

var flowEditableFields = map[string]bool{
	"name":           true,
	"description":    true,
	"estimated_days": true,
	"is_required":    true,
	"tags":           true,
}

func (fs *flowService) Update(ctx context.Context, flowID uuid.UUID, updates map[string]interface{}) (*types.Flow, error) {
	if _, err := requireModerator(ctx); err != nil {
		return nil, err
	}
	for field := range updates {
		if !flowEditableFields[field] {
			return nil, apperr.Validation(field, "not an editable field")
		}
	}
	if name, ok := updates["name"]; ok {
		if s, _ := name.(string); s == "" {
			return nil, apperr.Validation("name", "cannot be empty")
		}
	}
	if v, ok := updates["tags"]; ok {
		tags, err := marshalTags(v)
		if err != nil {
			return nil, err
		}
		updates["tags"] = tags
	}
	if err := fs.flowRepo.Update(ctx, nil, flowID, updates); err != nil {
		return nil, err
	}
	return fs.flowRepo.GetByID(ctx, nil, flowID)
}

// marshalTags converts a tags update into the jsonb value the column stores.
// Decoded JSON arrives as []interface{}, so both shapes are accepted.
func marshalTags(v interface{}) (datatypes.JSON, error) {
	switch tags := v.(type) {
	case nil:
		return types.MarshalContent([]string{})
	case []string:
		return types.MarshalContent(tags)
	case []interface{}:
		out := make([]string, 0, len(tags))
		for _, tag := range tags {
			s, ok := tag.(string)
			if !ok {
				return nil, apperr.Validation("tags", "must be a list of strings")
			}
			out = append(out, s)
		}
		return types.MarshalContent(out)
	default:
		return nil, apperr.Validation("tags", "must be a list of strings")
	}
}

// Archive soft-retires the flow: it disappears from assignable lists and its
// active version is switched off so no new assignments can be created. Open
// assignments keep running on their snapshots.
func (fs *flowService) Archive(ctx context.Context, flowID uuid.UUID) error {
	rd, err := requireModerator(ctx)
	if err != nil {
		return err
	}
	return fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fs.flowRepo.Archive(ctx, tx, flowID); err != nil {
			return err
		}
		if err := fs.versionRepo.Deactivate(ctx, tx, flowID); err != nil {
			return fmt.Errorf("deactivate version: %w", err)
		}
		fs.log.Info("archived flow", "flow_id", flowID, "by", rd.UserID)
		return nil
	})
}

// draftForEdit loads the flow and its editable draft inside the transaction.
func (fs *flowService) draftForEdit(ctx context.Context, tx *gorm.DB, flowID uuid.UUID) (*types.Flow, *types.FlowContent, error) {
	f, err := fs.flowRepo.GetByID(ctx, tx, flowID)
	if err != nil {
		return nil, nil, err
	}
	if f.Status == types.FlowStatusArchived {
		return nil, nil, apperr.Validation("flow", "archived flows are read only")
	}
	if f.ActiveContentID == nil {
		return nil, nil, apperr.Validation("flow", "flow has no editable draft")
	}
	draft, err := fs.contentRepo.GetByID(ctx, tx, *f.ActiveContentID)
	if err != nil {
		return nil, nil, fmt.Errorf("load draft: %w", err)
	}
	return f, draft, nil
}

// keyForInsert picks an order key placing the new element after the given
// sibling, or at the end when afterID is nil. siblings must be ordered.
func keyForInsert(siblings []orderedElem, afterID *uuid.UUID) (string, error) {
	if len(siblings) == 0 {
		return orderkey.First(), nil
	}
	if afterID == nil {
		return orderkey.After(siblings[len(siblings)-1].key)
	}
	for i, s := range siblings {
		if s.id != *afterID {
			continue
		}
		if i == len(siblings)-1 {
			return orderkey.After(s.key)
		}
		return orderkey.Between(s.key, siblings[i+1].key)
	}
	return "", apperr.Validation("after_id", "not a sibling")
}

type orderedElem struct {
	id  uuid.UUID
	key string
}

func stepElems(steps []types.FlowStep) []orderedElem {
	out := make([]orderedElem, len(steps))
	for i, s := range steps {
		out[i] = orderedElem{id: s.ID, key: s.OrderKey}
	}
	return out
}

func componentElems(comps []types.Component) []orderedElem {
	out := make([]orderedElem, len(comps))
	for i, c := range comps {
		out[i] = orderedElem{id: c.ID, key: c.OrderKey}
	}
	return out
}

func (fs *flowService) AddStep(ctx context.Context, flowID uuid.UUID, input StepInput) (*types.FlowStep, error) {
	if _, err := requireModerator(ctx); err != nil {
		return nil, err
	}
	if input.Title == "" {
		return nil, apperr.Validation("title", "cannot be empty")
	}

	var step *types.FlowStep
	err := fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, draft, err := fs.draftForEdit(ctx, tx, flowID)
		if err != nil {
			return err
		}
		key, err := keyForInsert(stepElems(draft.Steps), input.AfterStepID)
		if err != nil {
			return err
		}
		step = &types.FlowStep{
			ID:          uuid.New(),
			ContentID:   draft.ID,
			Title:       input.Title,
			Description: input.Description,
			OrderKey:    key,
			IsRequired:  input.IsRequired,
		}
		if _, err := fs.stepRepo.Create(ctx, tx, []*types.FlowStep{step}); err != nil {
			return fmt.Errorf("create step: %w", err)
		}
		if orderkey.NeedsRebalance(key) {
			return fs.rebalanceSteps(ctx, tx, draft.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return step, nil
}

var stepEditableFields = map[string]bool{
	"title":       true,
	"description": true,
	"is_required": true,
}

func (fs *flowService) UpdateStep(ctx context.Context, flowID, stepID uuid.UUID, updates map[string]interface{}) error {
	if _, err := requireModerator(ctx); err != nil {
		return err
	}
	for field := range updates {
		if !stepEditableFields[field] {
			return apperr.Validation(field, "not an editable field")
		}
	}
	return fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, draft, err := fs.draftForEdit(ctx, tx, flowID)
		if err != nil {
			return err
		}
		if !containsStep(draft.Steps, stepID) {
			return apperr.ErrNotFound
		}
		return fs.stepRepo.Update(ctx, tx, stepID, updates)
	})
}

func (fs *flowService) MoveStep(ctx context.Context, flowID, stepID uuid.UUID, afterStepID *uuid.UUID) (*types.FlowStep, error) {
	if _, err := requireModerator(ctx); err != nil {
		return nil, err
	}
	if afterStepID != nil && *afterStepID == stepID {
		return nil, apperr.Validation("after_step_id", "cannot move a step after itself")
	}

	var moved *types.FlowStep
	err := fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, draft, err := fs.draftForEdit(ctx, tx, flowID)
		if err != nil {
			return err
		}
		var target *types.FlowStep
		siblings := make([]types.FlowStep, 0, len(draft.Steps))
		for i := range draft.Steps {
			if draft.Steps[i].ID == stepID {
				target = &draft.Steps[i]
				continue
			}
			siblings = append(siblings, draft.Steps[i])
		}
		if target == nil {
			return apperr.ErrNotFound
		}
		key, err := keyForInsert(stepElems(siblings), afterStepID)
		if err != nil {
			return err
		}
		if err := fs.stepRepo.Update(ctx, tx, stepID, map[string]interface{}{"order_key": key}); err != nil {
			return err
		}
		target.OrderKey = key
		moved = target
		if orderkey.NeedsRebalance(key) {
			return fs.rebalanceSteps(ctx, tx, draft.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

func (fs *flowService) DeleteStep(ctx context.Context, flowID, stepID uuid.UUID) error {
	if _, err := requireModerator(ctx); err != nil {
		return err
	}
	return fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, draft, err := fs.draftForEdit(ctx, tx, flowID)
		if err != nil {
			return err
		}
		if !containsStep(draft.Steps, stepID) {
			return apperr.ErrNotFound
		}
		return fs.stepRepo.DeleteByIDs(ctx, tx, []uuid.UUID{stepID})
	})
}

// rebalanceSteps rewrites all sibling order keys evenly after a key grew past
// the rebalance threshold.
func (fs *flowService) rebalanceSteps(ctx context.Context, tx *gorm.DB, contentID uuid.UUID) error {
	steps, err := fs.stepRepo.GetByContentIDs(ctx, tx, []uuid.UUID{contentID})
	if err != nil {
		return err
	}
	keys := orderkey.Spread(len(steps))
	for i, s := range steps {
		if s.OrderKey == keys[i] {
			continue
		}
		if err := fs.stepRepo.Update(ctx, tx, s.ID, map[string]interface{}{"order_key": keys[i]}); err != nil {
			return fmt.Errorf("rebalance step %s: %w", s.ID, err)
		}
	}
	fs.log.Info("rebalanced step order keys", "content_id", contentID, "count", len(steps))
	return nil
}

func (fs *flowService) rebalanceComponents(ctx context.Context, tx *gorm.DB, stepID uuid.UUID) error {
	comps, err := fs.componentRepo.GetByStepIDs(ctx, tx, []uuid.UUID{stepID})
	if err != nil {
		return err
	}
	keys := orderkey.Spread(len(comps))
	for i, c := range comps {
		if c.OrderKey == keys[i] {
			continue
		}
		if err := fs.componentRepo.Update(ctx, tx, c.ID, map[string]interface{}{"order_key": keys[i]}); err != nil {
			return fmt.Errorf("rebalance component %s: %w", c.ID, err)
		}
	}
	return nil
}

func containsStep(steps []types.FlowStep, id uuid.UUID) bool {
	for i := range steps {
		if steps[i].ID == id {
			return true
		}
	}
	return false
}

// buildComponent validates the typed payload and derives the max score.
func buildComponent(input ComponentInput) (*types.Component, error) {
	if input.Title == "" {
		return nil, apperr.Validation("title", "cannot be empty")
	}
	c := &types.Component{
		ID:          uuid.New(),
		Type:        input.Type,
		Title:       input.Title,
		Description: input.Description,
		IsRequired:  input.IsRequired,
	}
	switch input.Type {
	case types.ComponentArticle:
		if input.Article == nil {
			return nil, apperr.Validation("article", "payload required")
		}
		raw, err := types.MarshalContent(input.Article)
		if err != nil {
			return nil, err
		}
		c.Content = raw
	case types.ComponentQuiz:
		if input.Quiz == nil || len(input.Quiz.Questions) == 0 {
			return nil, apperr.Validation("quiz", "needs at least one question")
		}
		for qi, q := range input.Quiz.Questions {
			correct := 0
			for _, o := range q.Options {
				if o.IsCorrect {
					correct++
				}
			}
			if len(q.Options) < 2 || correct == 0 {
				return nil, apperr.Validation("quiz",
					fmt.Sprintf("question %d needs at least two options and a correct one", qi+1))
			}
		}
		raw, err := types.MarshalContent(input.Quiz)
		if err != nil {
			return nil, err
		}
		c.Content = raw
		c.MaxScore = input.Quiz.MaxScore()
	case types.ComponentTask:
		if input.Task == nil || input.Task.CodeWord == "" {
			return nil, apperr.Validation("task", "code word required")
		}
		raw, err := types.MarshalContent(input.Task)
		if err != nil {
			return nil, err
		}
		c.Content = raw
		c.MaxScore = input.Task.Score
	default:
		return nil, apperr.Validation("type", "unknown component type")
	}
	return c, nil
}

func (fs *flowService) AddComponent(ctx context.Context, flowID, stepID uuid.UUID, input ComponentInput) (*types.Component, error) {
	if _, err := requireModerator(ctx); err != nil {
		return nil, err
	}
	component, err := buildComponent(input)
	if err != nil {
		return nil, err
	}

	err = fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, draft, err := fs.draftForEdit(ctx, tx, flowID)
		if err != nil {
			return err
		}
		var step *types.FlowStep
		for i := range draft.Steps {
			if draft.Steps[i].ID == stepID {
				step = &draft.Steps[i]
				break
			}
		}
		if step == nil {
			return apperr.ErrNotFound
		}
		key, err := keyForInsert(componentElems(step.Components), input.AfterID)
		if err != nil {
			return err
		}
		component.StepID = stepID
		component.OrderKey = key
		if _, err := fs.componentRepo.Create(ctx, tx, []*types.Component{component}); err != nil {
			return fmt.Errorf("create component: %w", err)
		}
		if orderkey.NeedsRebalance(key) {
			return fs.rebalanceComponents(ctx, tx, stepID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return component, nil
}

func (fs *flowService) UpdateComponent(ctx context.Context, flowID, componentID uuid.UUID, input ComponentInput) (*types.Component, error) {
	if _, err := requireModerator(ctx); err != nil {
		return nil, err
	}
	rebuilt, err := buildComponent(input)
	if err != nil {
		return nil, err
	}

	var updated *types.Component
	err = fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, draft, err := fs.draftForEdit(ctx, tx, flowID)
		if err != nil {
			return err
		}
		existing := findComponent(draft, componentID)
		if existing == nil {
			return apperr.ErrNotFound
		}
		if existing.Type != input.Type {
			return apperr.Validation("type", "component type cannot change; delete and re-add")
		}
		updates := map[string]interface{}{
			"title":       rebuilt.Title,
			"description": rebuilt.Description,
			"is_required": rebuilt.IsRequired,
			"max_score":   rebuilt.MaxScore,
			"content":     rebuilt.Content,
		}
		if err := fs.componentRepo.Update(ctx, tx, componentID, updates); err != nil {
			return err
		}
		existing.Title = rebuilt.Title
		existing.Description = rebuilt.Description
		existing.IsRequired = rebuilt.IsRequired
		existing.MaxScore = rebuilt.MaxScore
		existing.Content = rebuilt.Content
		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (fs *flowService) DeleteComponent(ctx context.Context, flowID, componentID uuid.UUID) error {
	if _, err := requireModerator(ctx); err != nil {
		return err
	}
	return fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, draft, err := fs.draftForEdit(ctx, tx, flowID)
		if err != nil {
			return err
		}
		if findComponent(draft, componentID) == nil {
			return apperr.ErrNotFound
		}
		return fs.componentRepo.DeleteByIDs(ctx, tx, []uuid.UUID{componentID})
	})
}

func findComponent(draft *types.FlowContent, id uuid.UUID) *types.Component {
	for i := range draft.Steps {
		for j := range draft.Steps[i].Components {
			if draft.Steps[i].Components[j].ID == id {
				return &draft.Steps[i].Components[j]
			}
		}
	}
	return nil
}

func (fs *flowService) Publish(ctx context.Context, flowID uuid.UUID) (*types.FlowVersion, error) {
	rd, err := requireModerator(ctx)
	if err != nil {
		return nil, err
	}

	var version *types.FlowVersion
	err = fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f, draft, err := fs.draftForEdit(ctx, tx, flowID)
		if err != nil {
			return err
		}
		if len(draft.Steps) == 0 {
			return apperr.Validation("steps", "cannot publish an empty flow")
		}
		for i := range draft.Steps {
			if len(draft.Steps[i].Components) == 0 {
				return apperr.Validation("steps",
					fmt.Sprintf("step %q has no components", draft.Steps[i].Title))
			}
		}

		version, err = fs.versionRepo.CreateVersion(ctx, tx, &types.FlowVersion{
			ID:          uuid.New(),
			OriginalID:  f.ID,
			ContentID:   draft.ID,
			Name:        f.Name,
			Description: f.Description,
			CreatedByID: rd.UserID,
		})
		if err != nil {
			return fmt.Errorf("create version: %w", err)
		}
		if err := fs.versionRepo.Activate(ctx, tx, version.ID); err != nil {
			return fmt.Errorf("activate version: %w", err)
		}

		// The published content is frozen; editing continues on a fresh draft
		// copied from it.
		nextDraft, err := fs.copyDraft(ctx, tx, draft, rd.UserID)
		if err != nil {
			return fmt.Errorf("open next draft: %w", err)
		}
		if err := fs.flowRepo.SetActiveContent(ctx, tx, f.ID, nextDraft.ID); err != nil {
			return fmt.Errorf("wire next draft: %w", err)
		}
		if f.Status != types.FlowStatusPublished {
			if err := fs.flowRepo.Update(ctx, tx, f.ID, map[string]interface{}{
				"status": types.FlowStatusPublished,
			}); err != nil {
				return fmt.Errorf("mark published: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	fs.log.Info("published flow", "flow_id", flowID, "version", version.Version, "by", rd.UserID)
	return version, nil
}

// copyDraft clones the tree into a new content row with the next edit version.
func (fs *flowService) copyDraft(ctx context.Context, tx *gorm.DB, src *types.FlowContent, createdBy uuid.UUID) (*types.FlowContent, error) {
	next, err := fs.contentRepo.NextVersion(ctx, tx, src.FlowID)
	if err != nil {
		return nil, err
	}
	draft := &types.FlowContent{
		ID:             uuid.New(),
		FlowID:         src.FlowID,
		Version:        next,
		IsSequential:   src.IsSequential,
		AllowSelfPause: src.AllowSelfPause,
		CreatedByID:    createdBy,
	}
	if _, err := fs.contentRepo.Create(ctx, tx, []*types.FlowContent{draft}); err != nil {
		return nil, err
	}

	for i := range src.Steps {
		srcStep := &src.Steps[i]
		step := &types.FlowStep{
			ID:          uuid.New(),
			ContentID:   draft.ID,
			Title:       srcStep.Title,
			Description: srcStep.Description,
			OrderKey:    srcStep.OrderKey,
			IsRequired:  srcStep.IsRequired,
		}
		if _, err := fs.stepRepo.Create(ctx, tx, []*types.FlowStep{step}); err != nil {
			return nil, err
		}
		if len(srcStep.Components) == 0 {
			continue
		}
		comps := make([]*types.Component, 0, len(srcStep.Components))
		for j := range srcStep.Components {
			srcComp := &srcStep.Components[j]
			comps = append(comps, &types.Component{
				ID:          uuid.New(),
				StepID:      step.ID,
				Type:        srcComp.Type,
				Title:       srcComp.Title,
				Description: srcComp.Description,
				OrderKey:    srcComp.OrderKey,
				IsRequired:  srcComp.IsRequired,
				MaxScore:    srcComp.MaxScore,
				Content:     srcComp.Content,
			})
		}
		if _, err := fs.componentRepo.Create(ctx, tx, comps); err != nil {
			return nil, err
		}
	}
	return draft, nil
}

func (fs *flowService) ActivateVersion(ctx context.Context, flowID, versionID uuid.UUID) error {
	rd, err := requireModerator(ctx)
	if err != nil {
		return err
	}
	return fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := fs.versionRepo.GetByID(ctx, tx, versionID)
		if err != nil {
			return err
		}
		if v.OriginalID != flowID {
			return apperr.ErrNotFound
		}
		if err := fs.versionRepo.Activate(ctx, tx, versionID); err != nil {
			return err
		}
		fs.log.Info("activated version", "flow_id", flowID, "version", v.Version, "by", rd.UserID)
		return nil
	})
}

func (fs *flowService) DeleteVersion(ctx context.Context, flowID, versionID uuid.UUID) error {
	if _, err := requireModerator(ctx); err != nil {
		return err
	}
	return fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := fs.versionRepo.GetByID(ctx, tx, versionID)
		if err != nil {
			return err
		}
		if v.OriginalID != flowID {
			return apperr.ErrNotFound
		}
		if v.IsActive {
			return apperr.Validation("version", "cannot delete the active version")
		}
		return fs.versionRepo.Delete(ctx, tx, versionID)
	})
}
