// Package httperr maps domain error codes onto HTTP responses so handlers
// never switch on error strings.
package httperr

import (
	"net/http"

	"github.com/campops/procurement-service/internal/model"
	"github.com/gin-gonic/gin"
)

func Status(err error) int {
	switch model.CodeOf(err) {
	case model.ErrCodeValidation, model.ErrCodePrecondition, model.ErrCodeNotPartOfOrder:
		return http.StatusBadRequest
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeConflict, model.ErrCodeBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// JSON writes err as the standard error payload. Internal errors are masked;
// domain errors surface their message.
func JSON(c *gin.Context, err error) {
	status := Status(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	c.JSON(status, gin.H{"error": message})
}
