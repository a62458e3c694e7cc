package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/aeroprep/examd/internal/config"
	"github.com/aeroprep/examd/internal/handler"
	"github.com/aeroprep/examd/internal/middleware"
	"github.com/aeroprep/examd/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam *handler.ExamHandler
	WS   *handler.WSHandler
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

	// Rate limiter for exam starts: each start fans out to the question
	// generator, which is the expensive call worth protecting.
	startLimiter := middleware.NewRateLimiter(cfg.StartRatePerMinute, time.Minute)

	// ─── Exam Group ────────────────────────────────────────────────────
	examAPI := router.Group("/api/v1/exam")
	{
		examAPI.GET("", handlers.Exam.GetState)
		examAPI.POST("/start", startLimiter.Middleware(), handlers.Exam.Start)
		examAPI.POST("/answer", handlers.Exam.Answer)
		examAPI.POST("/flag", handlers.Exam.ToggleFlag)
		examAPI.POST("/submit", handlers.Exam.Submit)
		examAPI.POST("/restart", handlers.Exam.Restart)
		examAPI.POST("/home", handlers.Exam.GoHome)
		examAPI.POST("/info", handlers.Exam.GoInfo)
	}

	router.GET("/api/v1/history", handlers.Exam.GetHistory)

	// ─── WebSocket Group ───────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/exam/stream", handlers.WS.StateStream)
	}

	return router
}
