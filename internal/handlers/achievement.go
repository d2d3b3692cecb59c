package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/services"
)

type AchievementHandler struct {
	achievementService services.AchievementService
}

func NewAchievementHandler(achievementService services.AchievementService) *AchievementHandler {
	return &AchievementHandler{achievementService: achievementService}
}

func (ah *AchievementHandler) List(c *gin.Context) {
	achievements, err := ah.achievementService.List(c.Request.Context())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"achievements": achievements})
}

func (ah *AchievementHandler) ListForUser(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	grants, err := ah.achievementService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"achievements": grants})
}

type achievementDefRequest struct {
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Points      int    `json:"points"`
}

func (r achievementDefRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Points, validation.Min(0)),
	)
}

func (ah *AchievementHandler) Create(c *gin.Context) {
	var req achievementDefRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.Validate(); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_failed", err)
		return
	}
	def, err := ah.achievementService.CreateDefinition(c.Request.Context(), &types.Achievement{
		Code:        req.Code,
		Title:       req.Title,
		Description: req.Description,
		Icon:        req.Icon,
		Points:      req.Points,
	})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondCreated(c, def)
}

func (ah *AchievementHandler) Update(c *gin.Context) {
	achievementID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := ah.achievementService.UpdateDefinition(c.Request.Context(), achievementID, req); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (ah *AchievementHandler) Delete(c *gin.Context) {
	achievementID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := ah.achievementService.DeleteDefinition(c.Request.Context(), achievementID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

type grantRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Code   string    `json:"code"`
	Note   string    `json:"note"`
}

func (r grantRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, validation.By(notNilUUID)),
		validation.Field(&r.Code, validation.Required, validation.Length(1, 100)),
	)
}

func (ah *AchievementHandler) Grant(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.Validate(); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_failed", err)
		return
	}
	grant, err := ah.achievementService.Grant(c.Request.Context(), req.UserID, req.Code, req.Note)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondCreated(c, grant)
}
