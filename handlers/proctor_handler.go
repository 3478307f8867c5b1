package handlers

import (
	"net/http"

	"quizverse/middleware"
	"quizverse/services"

	"github.com/gin-gonic/gin"
)

type ProctorHandler struct {
	proctorService *services.ProctorService
}

func NewProctorHandler(proctorService *services.ProctorService) *ProctorHandler {
	return &ProctorHandler{proctorService: proctorService}
}

func (h *ProctorHandler) RecordEvent(c *gin.Context) {
	userID, role, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	quizID, err := parseID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quiz ID"})
		return
	}

	var req services.RecordEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.proctorService.RecordEvent(c.Request.Context(), quizID, userID, role, &req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "logged"})
}
