package handlers

import (
	"errors"
	"net/http"

	"crowdsource-backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// errorStatus maps service errors onto the HTTP taxonomy: missing records
// are 404, duplicate-state conflicts 409, identity mismatches 403 and
// everything else a caller-correctable 400.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrProjectNameTaken),
		errors.Is(err, services.ErrDuplicateSubmission),
		errors.Is(err, services.ErrSubmissionAlreadyAssigned):
		return http.StatusConflict
	case errors.Is(err, services.ErrUserMismatch):
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

// respondError writes the mapped status with the error message
func respondError(c *gin.Context, err error) {
	c.JSON(errorStatus(err), gin.H{
		"error": err.Error(),
	})
}
