package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/requestdata"
	"github.com/teamonboard/flowline-backend/internal/services"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return uuid.Nil, false
	}
	return id, true
}

func parsePaging(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.Query("offset"))
	limit, _ = strconv.Atoi(c.Query("limit"))
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

func (uh *UserHandler) GetMe(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	user, err := uh.userService.Get(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, user)
}

func (uh *UserHandler) Get(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	user, err := uh.userService.Get(c.Request.Context(), userID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, user)
}

func (uh *UserHandler) List(c *gin.Context) {
	offset, limit := parsePaging(c)
	users, total, err := uh.userService.List(c.Request.Context(), offset, limit)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"users": users, "total": total})
}

type updateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Position  *string `json:"position"`
}

func (r updateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&r.LastName, validation.NilOrNotEmpty, validation.Length(1, 100)),
	)
}

func (uh *UserHandler) Update(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.Validate(); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_failed", err)
		return
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Position != nil {
		updates["position"] = *req.Position
	}

	user, err := uh.userService.Update(c.Request.Context(), userID, updates)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, user)
}

func (uh *UserHandler) SetRole(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := uh.userService.SetRole(c.Request.Context(), userID, types.Role(req.Role)); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (uh *UserHandler) Deactivate(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := uh.userService.Deactivate(c.Request.Context(), userID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}
