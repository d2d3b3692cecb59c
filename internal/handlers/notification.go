package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/teamonboard/flowline-backend/internal/services"
)

var errEmptyIDs = errors.New("ids must not be empty")

type NotificationHandler struct {
	notificationService services.NotificationService
}

func NewNotificationHandler(notificationService services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

func (nh *NotificationHandler) List(c *gin.Context) {
	offset, limit := parsePaging(c)
	unreadOnly := c.Query("unread") == "true"
	notifications, total, err := nh.notificationService.List(c.Request.Context(), unreadOnly, offset, limit)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"notifications": notifications, "total": total})
}

func (nh *NotificationHandler) MarkRead(c *gin.Context) {
	var req struct {
		IDs []uuid.UUID `json:"ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if len(req.IDs) == 0 {
		RespondError(c, http.StatusBadRequest, "validation_failed", errEmptyIDs)
		return
	}
	if err := nh.notificationService.MarkRead(c.Request.Context(), req.IDs); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}
