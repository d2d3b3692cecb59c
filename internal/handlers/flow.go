package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/services"
)

type FlowHandler struct {
	flowService services.FlowService
}

func NewFlowHandler(flowService services.FlowService) *FlowHandler {
	return &FlowHandler{flowService: flowService}
}

type createFlowRequest struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	EstimatedDays  int      `json:"estimated_days"`
	IsRequired     bool     `json:"is_required"`
	Tags           []string `json:"tags"`
	IsSequential   *bool    `json:"is_sequential"`
	AllowSelfPause *bool    `json:"allow_self_pause"`
}

func (r createFlowRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.EstimatedDays, validation.Min(0), validation.Max(365)),
	)
}

func (fh *FlowHandler) Create(c *gin.Context) {
	var req createFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.Validate(); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_failed", err)
		return
	}

	input := services.CreateFlowInput{
		Name:           req.Name,
		Description:    req.Description,
		EstimatedDays:  req.EstimatedDays,
		IsRequired:     req.IsRequired,
		Tags:           req.Tags,
		IsSequential:   true,
		AllowSelfPause: true,
	}
	if req.IsSequential != nil {
		input.IsSequential = *req.IsSequential
	}
	if req.AllowSelfPause != nil {
		input.AllowSelfPause = *req.AllowSelfPause
	}

	flow, err := fh.flowService.Create(c.Request.Context(), input)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondCreated(c, flow)
}

func (fh *FlowHandler) Get(c *gin.Context) {
	flowID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	detail, err := fh.flowService.Get(c.Request.Context(), flowID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, detail)
}

func (fh *FlowHandler) List(c *gin.Context) {
	offset, limit := parsePaging(c)
	onlyActive := c.Query("include_archived") != "true"
	flows, total, err := fh.flowService.List(c.Request.Context(), onlyActive, offset, limit)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"flows": flows, "total": total})
}

func (fh *FlowHandler) Update(c *gin.Context) {
	flowID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	flow, err := fh.flowService.Update(c.Request.Context(), flowID, req)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, flow)
}

func (fh *FlowHandler) Archive(c *gin.Context) {
	flowID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := fh.flowService.Archive(c.Request.Context(), flowID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

type stepRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	IsRequired  *bool      `json:"is_required"`
	AfterStepID *uuid.UUID `json:"after_step_id"`
}

func (r stepRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
	)
}

func (fh *FlowHandler) AddStep(c *gin.Context) {
	flowID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req stepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.Validate(); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_failed", err)
		return
	}

	input := services.StepInput{
		Title:       req.Title,
		Description: req.Description,
		IsRequired:  true,
		AfterStepID: req.AfterStepID,
	}
	if req.IsRequired != nil {
		input.IsRequired = *req.IsRequired
	}

	step, err := fh.flowService.AddStep(c.Request.Context(), flowID, input)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondCreated(c, step)
}

func (fh *FlowHandler) UpdateStep(c *gin.Context) {
	flowID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	stepID, ok := parseUUIDParam(c, "stepId")
	if !ok {
		return
	}
	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := fh.flowService.UpdateStep(c.Request.Context(), flowID, stepID, req); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (fh *FlowHandler) MoveStep(c *gin.Context) {
	flowID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	stepID, ok := parseUUIDParam(c, "stepId")
	if !ok {
		return
	}
	var req struct {
		AfterStepID *uuid.UUID `json:"after_step_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	step, err := fh.flowService.MoveStep(c.Request.Context(), flowID, stepID, req.AfterStepID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, step)
}

func (fh *FlowHandler) DeleteStep(c *gin.Context) {
	flowID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	stepID, ok := parseUUIDParam(c, "stepId")
	if !ok {
		return
	}
	if err := fh.flowService.DeleteStep(c.Request.Context(), flowID, stepID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

type componentRequest struct {
	Type        string                `json:"type"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	IsRequired  *bool                 `json:"is_required"`
	Article     *types.ArticleContent `json:"article"`
	Quiz        *types.QuizContent    `json:"quiz"`
	Task        *types.TaskContent    `json:"task"`
	AfterID     *uuid.UUID            `json:"after_id"`
}

func (r componentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Type, validation.Required,
			validation.In("article", "quiz", "task")),
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
	)
}

func (r componentRequest) toInput() services.ComponentInput {
	input := services.ComponentInput{
		Type:        types.ComponentType(r.Type),
		Title:       r.Title,
		Description: r.Description,
		IsRequired:  true,
		Article:     r.Article,
		Quiz:        r.Quiz,
		Task:        r.Task,
		AfterID:     r.AfterID,
	}
	if r.IsRequired != nil {
		input.IsRequired = *r.IsRequired
	}
	return input
}

func (fh *FlowHandler) AddComponent(c *gin.Context) {
	flowID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	stepID, ok := parseUUIDParam(c, "stepId")
	if !ok {
		return
	}
	var req componentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.Validate(); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_failed", err)
		return
	}
	component, err := fh.flowService.AddComponent(c.Request.Context(), flowID, stepID, req.toInput())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondCreated(c, component)
}

func (fh *FlowHandler) UpdateComponent(c *gin.Context) {
	flowID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	componentID, ok := parseUUIDParam(c, "componentId")
	if !ok {
		return
	}
	var req componentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.Validate(); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_failed", err)
		return
	}
	component, err := fh.flowService.UpdateComponent(c.Request.Context(), flowID, componentID, req.toInput())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, component)
}

func (fh *FlowHandler) DeleteComponent(c *gin.Context) {
	flowID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	componentID, ok := parseUUIDParam(c, "componentId")
	if !ok {
		return
	}
	if err := fh.flowService.DeleteComponent(c.Request.Context(), flowID, componentID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (fh *FlowHandler) Publish(c *gin.Context) {
	flowID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	version, err := fh.flowService.Publish(c.Request.Context(), flowID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondCreated(c, version)
}

func (fh *FlowHandler) ActivateVersion(c *gin.Context) {
	flowID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	versionID, ok := parseUUIDParam(c, "versionId")
	if !ok {
		return
	}
	if err := fh.flowService.ActivateVersion(c.Request.Context(), flowID, versionID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (fh *FlowHandler) DeleteVersion(c *gin.Context) {
	flowID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	versionID, ok := parseUUIDParam(c, "versionId")
	if !ok {
		return
	}
	if err := fh.flowService.DeleteVersion(c.Request.Context(), flowID, versionID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}
