package routes

import (
	"log"
	"net/http"
	"strconv"

	"quizverse/handlers"
	"quizverse/middleware"
	"quizverse/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

func SetupRoutes(
	router *gin.Engine,
	authService *services.AuthService,
	quizService *services.QuizService,
	feed *services.ProctorFeed,
	authHandler *handlers.AuthHandler,
	quizHandler *handlers.QuizHandler,
	attemptHandler *handlers.AttemptHandler,
	proctorHandler *handlers.ProctorHandler,
) {
	router.Use(cors.Default())

	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.Auth(authService))
		{
			protected.GET("/auth/profile", authHandler.GetProfile)

			// Teacher-side quiz routes
			quizzes := protected.Group("/quizzes")
			{
				quizzes.GET("", quizHandler.ListQuizzes)
				quizzes.POST("", quizHandler.CreateQuiz)
				quizzes.GET("/:id", quizHandler.GetQuizDetail)
				quizzes.DELETE("/:id", quizHandler.DeleteQuiz)
				quizzes.POST("/:id/questions", quizHandler.AddQuestion)
				quizzes.POST("/:id/questions/import", quizHandler.ImportQuestions)
			}

			// Student-side attempt routes
			student := protected.Group("/student")
			{
				student.GET("/quizzes", attemptHandler.ListStudentQuizzes)
				student.POST("/quizzes/:id/start", attemptHandler.StartAttempt)
				student.POST("/quizzes/:id/submit", attemptHandler.SubmitAttempt)
				student.POST("/quizzes/:id/events", proctorHandler.RecordEvent)
			}
		}
	}

	// Live proctor feed for the owning teacher's dashboard. The bearer token
	// arrives as a query parameter since browsers cannot set WebSocket headers.
	ws := router.Group("/ws")
	ws.Use(middleware.Auth(authService))
	ws.GET("/quizzes/:id/proctor", func(c *gin.Context) {
		userID, role, ok := middleware.Identity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		quizID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quiz ID"})
			return
		}

		if err := quizService.OwnsQuiz(uint(quizID), userID, role); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for this quiz"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for quiz %d: %v", quizID, err)
			return
		}
		feed.Subscribe(conn, uint(quizID))
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
