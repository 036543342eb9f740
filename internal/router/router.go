package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stemsi/exquiz-backend/internal/config"
	"github.com/stemsi/exquiz-backend/internal/handler"
	"github.com/stemsi/exquiz-backend/internal/middleware"
	"github.com/stemsi/exquiz-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth        *handler.AuthHandler
	Quiz        *handler.QuizHandler
	Bucket      *handler.BucketHandler
	Participant *handler.ParticipantHandler
	Result      *handler.ResultHandler
	Proctoring  *handler.ProctoringHandler
	WS          *handler.WSHandler
	Monitor     *handler.MonitorHandler
	Code        *handler.CodeHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth middleware.TokenValidator,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// Restrict to AllowedOrigins when configured, allow all otherwise.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Metrics())
	router.Use(middleware.Brotli())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ─── 1. Auth ───────────────────────────────────────────────────────
	authAPI := router.Group("/api/v1/auth")
	{
		authAPI.POST("/admin/login", handlers.Auth.AdminLogin)
		authAPI.GET("/admin/me", middleware.RequireAdminJWT(auth), handlers.Auth.GetAdminProfile)
	}

	// ─── 2. Public quiz taking ─────────────────────────────────────────
	publicAPI := router.Group("/api/v1")
	{
		publicAPI.GET("/quizzes", middleware.CacheControl(60), handlers.Quiz.ListQuizzes)
		publicAPI.GET("/quizzes/:id", middleware.NoStore(), handlers.Quiz.DeliverQuiz)
		publicAPI.POST("/results", handlers.Result.SubmitResult)
	}

	// ─── 3. Proctoring ─────────────────────────────────────────────────
	proctoring := router.Group("/api/v1/proctoring")
	{
		proctoring.POST("/sessions", handlers.Proctoring.StartSession)
		proctoring.GET("/sessions/:session_id", handlers.Proctoring.GetSession)
		proctoring.POST("/sessions/:session_id/violations", handlers.Proctoring.LogViolation)
		proctoring.GET("/sessions/:session_id/violations", handlers.Proctoring.ListViolations)
		proctoring.POST("/sessions/:session_id/end", handlers.Proctoring.EndSession)
	}

	// ─── 4. WebSocket ──────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/proctoring/sessions/:session_id/stream", handlers.WS.ProctoringStream)
	}

	// ─── 5. Admin (JWT) ────────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(auth))
	{
		// Quizzes
		adminAPI.GET("/quizzes", handlers.Quiz.ListQuizzes)
		adminAPI.POST("/quizzes", handlers.Quiz.CreateQuiz)
		adminAPI.POST("/quizzes/compose", handlers.Quiz.ComposeQuiz)
		adminAPI.GET("/quizzes/:id", handlers.Quiz.GetQuiz)
		adminAPI.PUT("/quizzes/:id", handlers.Quiz.UpdateQuiz)
		adminAPI.DELETE("/quizzes/:id", handlers.Quiz.DeleteQuiz)
		adminAPI.PUT("/quizzes/:id/questions", handlers.Quiz.ReplaceQuestions)

		// Question buckets
		buckets := adminAPI.Group("/buckets")
		{
			buckets.GET("", handlers.Bucket.ListBuckets)
			buckets.POST("", handlers.Bucket.CreateBucket)
			buckets.GET("/:id", handlers.Bucket.GetBucket)
			buckets.PUT("/:id", handlers.Bucket.UpdateBucket)
			buckets.DELETE("/:id", handlers.Bucket.DeleteBucket)
			buckets.GET("/:id/questions", handlers.Bucket.ListQuestions)
			buckets.POST("/:id/questions", handlers.Bucket.AddQuestion)
			buckets.PUT("/:id/questions/:question_id", handlers.Bucket.UpdateQuestion)
			buckets.DELETE("/:id/questions/:question_id", handlers.Bucket.DeactivateQuestion)
			buckets.POST("/:id/import", handlers.Bucket.ImportQuestions)
		}

		// Participants
		adminAPI.GET("/participants", handlers.Participant.ListParticipants)
		adminAPI.POST("/participants", handlers.Participant.CreateParticipant)
		adminAPI.PUT("/participants/:id", handlers.Participant.UpdateParticipant)
		adminAPI.DELETE("/participants/:id", handlers.Participant.DeleteParticipant)

		// Results
		adminAPI.GET("/results", handlers.Result.ListResults)

		// Proctoring oversight
		adminAPI.GET("/proctoring/sessions", handlers.Proctoring.ListSessions)
		adminAPI.GET("/proctoring/statistics", handlers.Proctoring.GetStatistics)
		adminAPI.GET("/proctoring/assessments/:id/monitor", handlers.Monitor.MonitorAssessmentSSE)

		// Code execution
		adminAPI.POST("/code/run", handlers.Code.RunCode)
	}

	return router
}
