package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up the API routes
func SetupRoutes(handler *Handler) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(Recovery())
	router.Use(CORS(handler.corsOrigins))
	router.Use(Logger(handler.logger))

	// Health check
	router.GET("/health", handler.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/presets", handler.ListPresets)

		campaigns := v1.Group("/campaigns/:campaign")
		{
			campaigns.POST("/scan", handler.Scan)
			campaigns.POST("/enrich", handler.StartEnrichment)
			campaigns.GET("/summary", handler.GetSummary)

			candidates := campaigns.Group("/candidates")
			{
				candidates.GET("", handler.ListCandidates)
				candidates.DELETE("/:username", handler.DeleteCandidate)
			}
		}

		runs := v1.Group("/runs/:id")
		{
			runs.GET("", handler.GetRun)
			runs.POST("/pause", handler.PauseRun)
			runs.POST("/resume", handler.ResumeRun)
			runs.POST("/cancel", handler.CancelRun)
		}
	}

	return router
}
