package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/teamonboard/flowline-backend/internal/services"
)

type AssignmentHandler struct {
	assignmentService services.AssignmentService
}

func NewAssignmentHandler(assignmentService services.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignmentService: assignmentService}
}

type assignRequest struct {
	UserID  uuid.UUID  `json:"user_id"`
	FlowID  uuid.UUID  `json:"flow_id"`
	BuddyID *uuid.UUID `json:"buddy_id"`
	DueDate *time.Time `json:"due_date"`
}

func (r assignRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, validation.By(notNilUUID)),
		validation.Field(&r.FlowID, validation.Required, validation.By(notNilUUID)),
	)
}

func notNilUUID(value interface{}) error {
	id, _ := value.(uuid.UUID)
	if id == uuid.Nil {
		return validation.ErrRequired
	}
	return nil
}

func (ah *AssignmentHandler) Assign(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.Validate(); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_failed", err)
		return
	}

	assignment, err := ah.assignmentService.Assign(c.Request.Context(), services.AssignInput{
		UserID:  req.UserID,
		FlowID:  req.FlowID,
		BuddyID: req.BuddyID,
		DueDate: req.DueDate,
	})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondCreated(c, assignment)
}

func (ah *AssignmentHandler) Get(c *gin.Context) {
	assignmentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	assignment, err := ah.assignmentService.Get(c.Request.Context(), assignmentID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, assignment)
}

func (ah *AssignmentHandler) ListForUser(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	assignments, err := ah.assignmentService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"assignments": assignments})
}

func (ah *AssignmentHandler) ListForFlow(c *gin.Context) {
	flowID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	assignments, err := ah.assignmentService.ListForFlow(c.Request.Context(), flowID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"assignments": assignments})
}

func (ah *AssignmentHandler) Start(c *gin.Context) {
	assignmentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	assignment, err := ah.assignmentService.Start(c.Request.Context(), assignmentID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, assignment)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (ah *AssignmentHandler) Pause(c *gin.Context) {
	assignmentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	// Body is optional.
	_ = c.ShouldBindJSON(&req)
	assignment, err := ah.assignmentService.Pause(c.Request.Context(), assignmentID, req.Reason)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, assignment)
}

func (ah *AssignmentHandler) Resume(c *gin.Context) {
	assignmentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	assignment, err := ah.assignmentService.Resume(c.Request.Context(), assignmentID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, assignment)
}

func (ah *AssignmentHandler) Complete(c *gin.Context) {
	assignmentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	_ = c.ShouldBindJSON(&req)
	assignment, err := ah.assignmentService.Complete(c.Request.Context(), assignmentID, req.Notes)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, assignment)
}

func (ah *AssignmentHandler) Cancel(c *gin.Context) {
	assignmentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)
	assignment, err := ah.assignmentService.Cancel(c.Request.Context(), assignmentID, req.Reason)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, assignment)
}
