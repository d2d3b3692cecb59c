package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAppError maps a service error onto its HTTP status and code.
func RespondAppError(c *gin.Context, err error) {
	RespondError(c, apperr.HTTPStatus(err), apperr.Code(err), err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
