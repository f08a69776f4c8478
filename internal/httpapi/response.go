package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"slamonitor_backend/platform/apperr"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// Fail maps a domain error to its HTTP status. Unknown errors become 500s
// with a generic body so internals never leak.
func Fail(c *gin.Context, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		Error(c, appErr.HTTPStatus(), appErr.Message, nil)
		return
	}
	Error(c, http.StatusInternalServerError, "internal error", nil)
}
