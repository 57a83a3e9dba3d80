package router

import (
	"net/http"
	"time"

	"Q-ITS-Mastery-Backend/internal/api"
	"Q-ITS-Mastery-Backend/internal/config"
	"Q-ITS-Mastery-Backend/internal/middleware"
	"Q-ITS-Mastery-Backend/internal/monitoring"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(handler *api.SessionHandler, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), monitoring.MetricsMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, api.SessionHeader, "Content-Type")
	corsConfig.ExposeHeaders = append(corsConfig.ExposeHeaders, api.SessionHeader)
	r.Use(cors.New(corsConfig))

	analysisLimit := middleware.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/generate-question", handler.GenerateQuestionHandler)
		apiV1.POST("/submit-answer", handler.SubmitAnswerHandler)
		apiV1.POST("/end-session", handler.EndSessionHandler)
		apiV1.POST("/get-quantum-analysis", analysisLimit, handler.QuantumAnalysisHandler)
		apiV1.GET("/machines", handler.MachinesHandler)
		apiV1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "UP"})
		})
	}
	r.GET("/metrics", monitoring.PrometheusHandler())

	return r
}
