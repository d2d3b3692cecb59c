package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/teamonboard/flowline-backend/internal/services"
)

type ProgressHandler struct {
	progressService services.ProgressService
}

func NewProgressHandler(progressService services.ProgressService) *ProgressHandler {
	return &ProgressHandler{progressService: progressService}
}

func (ph *ProgressHandler) Get(c *gin.Context) {
	assignmentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	view, err := ph.progressService.Get(c.Request.Context(), assignmentID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, view)
}

type submitRequest struct {
	QuizAnswers [][]int `json:"quiz_answers"`
	TaskAnswer  string  `json:"task_answer"`
	TimeSpent   int     `json:"time_spent"`
}

func (r submitRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TimeSpent, validation.Min(0)),
	)
}

func (ph *ProgressHandler) SubmitComponent(c *gin.Context) {
	assignmentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	componentID, ok := parseUUIDParam(c, "componentId")
	if !ok {
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.Validate(); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_failed", err)
		return
	}

	result, err := ph.progressService.SubmitComponent(c.Request.Context(), assignmentID, componentID, services.SubmissionInput{
		QuizAnswers: req.QuizAnswers,
		TaskAnswer:  req.TaskAnswer,
		TimeSpent:   req.TimeSpent,
	})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, result)
}
