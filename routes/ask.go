package routes

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pdfrag/models"
	"pdfrag/services"
	"pdfrag/utils"
)

// HandleAsk answers a single free-text question against the current corpus.
// Questions are independent of each other; no conversation state is kept.
func HandleAsk(retrieval *services.RetrievalService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Request must contain a question", err.Error())
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			utils.RespondWithBadRequest(c, "Question must not be empty", nil)
			return
		}

		resp, err := retrieval.Answer(c.Request.Context(), req.Question)
		if err != nil {
			utils.RespondWithInternalError(c, "Query failed", err.Error())
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// HandleStats exposes the current index state for observability.
func HandleStats(ingestion *services.IngestionService, index services.VectorIndex) gin.HandlerFunc {
	return func(c *gin.Context) {
		points, err := index.CountPoints(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read index state", err.Error())
			return
		}

		c.JSON(http.StatusOK, models.StatsResponse{
			Collection: collectionName(index),
			Points:     points,
			LastIngest: ingestion.LastResult(),
		})
	}
}

func collectionName(index services.VectorIndex) string {
	type named interface{ Collection() string }
	if n, ok := index.(named); ok {
		return n.Collection()
	}
	return ""
}
