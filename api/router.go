package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/driveindex/api/handlers"
	"github.com/meghashyamc/driveindex/logger"
	"github.com/meghashyamc/driveindex/services/search"
	"github.com/meghashyamc/driveindex/validation"
)

type healthResponse struct {
	Status    string `json:"status"`
	Indexing  bool   `json:"indexing"`
	LastRunID string `json:"last_run_id,omitempty"`
}

func setupRoutes(router *gin.Engine, logger logger.Logger, indexService handlers.IndexService, searcher search.Searcher, validator *validation.Validator) {
	router.GET(healthPath, health(indexService))

	handlers.SetupIndex(router, logger, indexService, validator)
	handlers.SetupSearch(router, logger, searcher, validator)
}

func health(indexService handlers.IndexService) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := healthResponse{Status: "ok"}
		if status, ok := indexService.LatestStatus(); ok {
			response.Indexing = !status.IsComplete
		}
		if lastRun := indexService.LastRun(); lastRun != nil {
			response.LastRunID = lastRun.ID
		}
		c.JSON(http.StatusOK, response)
	}
}

func newRouter(logger logger.Logger) *gin.Engine {
	router := gin.New()
	router.UseRawPath = true
	router.Use(corsMiddleware())
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))

	return router
}
