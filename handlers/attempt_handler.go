package handlers

import (
	"net/http"

	"quizverse/middleware"
	"quizverse/services"

	"github.com/gin-gonic/gin"
)

type AttemptHandler struct {
	attemptService *services.AttemptService
}

func NewAttemptHandler(attemptService *services.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

func (h *AttemptHandler) ListStudentQuizzes(c *gin.Context) {
	userID, role, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	quizzes, err := h.attemptService.StudentQuizzes(userID, role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, quizzes)
}

func (h *AttemptHandler) StartAttempt(c *gin.Context) {
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

	session, err := h.attemptService.StartAttempt(quizID, userID, role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

type submitAttemptRequest struct {
	Answers map[string]string `json:"answers"`
}

func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
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

	var req submitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.attemptService.SubmitAttempt(quizID, userID, role, req.Answers)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
