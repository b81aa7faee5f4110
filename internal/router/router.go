package router

import (
	"net/http"
	"time"

	"github.com/barathRC/databricks-mcq-copilot-agent/internal/config"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/handler"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/middleware"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/response"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam    *handler.ExamHandler
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter sized for one interactive user plus headroom.
	apiLimiter := middleware.NewRateLimiter(240, time.Minute)

	// ─── API Group ─────────────────────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(apiLimiter.Middleware())
	{
		api.GET("/exams", handlers.Exam.ListExams)

		api.POST("/sessions", handlers.Session.StartSession)

		session := api.Group("/sessions/:username/:exam_code")
		{
			session.GET("", handlers.Session.ResumeSession)
			session.GET("/questions", handlers.Session.ListQuestions)
			session.GET("/questions/:index", handlers.Session.GetQuestion)
			session.POST("/answers", handlers.Session.SubmitAnswer)
			session.POST("/review", handlers.Session.ToggleReview)
			session.POST("/tick", handlers.Session.Tick)
			session.POST("/finish", handlers.Session.FinishSession)
			session.GET("/summary", handlers.Session.GetSummary)
			session.GET("/feedback", handlers.Session.GetFeedback)
		}
	}

	// ─── WebSocket Group ───────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/sessions/:username/:exam_code/stream", handlers.WS.SessionStream)
	}

	return router
}
