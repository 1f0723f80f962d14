package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pdfrag/internal/config"
	"pdfrag/services"
)

// SetupRoutes registers the service's HTTP surface.
func SetupRoutes(router *gin.Engine, cfg *config.Config, ingestion *services.IngestionService, retrieval *services.RetrievalService, index services.VectorIndex) {
	router.GET("/health", HandleHealth())
	router.GET("/stats", HandleStats(ingestion, index))
	router.POST("/ingest", HandleIngest(cfg, ingestion))
	router.POST("/ask", HandleAsk(retrieval))
}

// HandleHealth reports liveness and the available operations.
func HandleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"operations": []string{
				"POST /ingest",
				"POST /ask",
				"GET /stats",
				"GET /health",
			},
		})
	}
}
