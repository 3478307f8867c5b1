package handlers

import (
	"net/http"

	"quizverse/services"

	"github.com/gin-gonic/gin"
)

// respondError maps a service error kind to its HTTP status. Every failure
// leaves as {"error": message}; nothing is swallowed.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch services.KindOf(err) {
	case services.KindValidation, services.KindEncoding:
		status = http.StatusBadRequest
	case services.KindAuthorization, services.KindTiming:
		status = http.StatusForbidden
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindConflict:
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
