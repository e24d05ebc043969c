package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/driveindex/db"
	"github.com/meghashyamc/driveindex/logger"
	"github.com/meghashyamc/driveindex/services/index"
	"github.com/meghashyamc/driveindex/services/progress"
	"github.com/meghashyamc/driveindex/validation"
)

type IndexRequest struct {
	Drives []string `json:"drives" validate:"max=26,unique,dive,drive"`
}

type IndexResponse struct {
	ID string `json:"id"`
}

type CompletionResponse struct {
	Complete bool `json:"complete"`
}

type EntriesResponse struct {
	Entries []db.FileRecord `json:"entries"`
}

// IndexService is the backend contract served over HTTP.
type IndexService interface {
	Build(drives []string) (string, error)
	IsIndexingComplete(ctx context.Context) (bool, error)
	GetAllIndexEntries(ctx context.Context) ([]db.FileRecord, error)
	SubscribeProgress(ctx context.Context) (<-chan db.IndexingStatus, func(), error)
	LatestStatus() (db.IndexingStatus, bool)
	LastRun() *db.RunMetadata
}

func SetupIndex(router *gin.Engine, logger logger.Logger, service IndexService, validator *validation.Validator) {
	router.POST("/index", handleIndex(service, logger, validator))
	router.GET("/index/complete", handleIsIndexingComplete(service, logger))
	router.GET("/index/entries", handleGetAllIndexEntries(service, logger))
	router.GET("/index/run", handleGetLastRun(service))
	router.GET("/index/status", handleGetLatestStatus(service))
	router.GET("/index/events", handleIndexEvents(service, logger))
}

func handleIndex(service IndexService, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := IndexRequest{}
		if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
			logger.Warn("could not extract expected parameters from index request", "err", err.Error())
			writeError(c, http.StatusUnprocessableEntity, "failed to extract request body parameters")
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate request", "err", err.Error())
			writeError(c, http.StatusNotAcceptable, err.Error())
			return
		}

		requestID, err := service.Build(request.Drives)
		if err != nil {
			statusCode := http.StatusInternalServerError
			switch {
			case errors.Is(err, index.ErrIndexingInProgress):
				statusCode = http.StatusConflict
			case errors.Is(err, index.ErrNoDrives):
				statusCode = http.StatusNotAcceptable
			}
			logger.Warn("could not start indexing", "err", err.Error())
			writeError(c, statusCode, err.Error())
			return
		}

		writeResponse(c, IndexResponse{ID: requestID}, http.StatusAccepted, nil)
	}
}

func handleIsIndexingComplete(service IndexService, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		complete, err := service.IsIndexingComplete(c.Request.Context())
		if err != nil {
			logger.Error("could not check indexing completion", "err", err.Error())
			writeError(c, http.StatusInternalServerError, err.Error())
			return
		}

		writeResponse(c, CompletionResponse{Complete: complete}, http.StatusOK, nil)
	}
}

func handleGetAllIndexEntries(service IndexService, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := service.GetAllIndexEntries(c.Request.Context())
		if err != nil {
			logger.Error("could not get index entries", "err", err.Error())
			writeError(c, http.StatusInternalServerError, err.Error())
			return
		}

		writeResponse(c, EntriesResponse{Entries: entries}, http.StatusOK, nil)
	}
}

func handleGetLastRun(service IndexService) gin.HandlerFunc {
	return func(c *gin.Context) {
		lastRun := service.LastRun()
		if lastRun == nil {
			writeError(c, http.StatusNotFound, "no completed indexing run")
			return
		}

		writeResponse(c, lastRun, http.StatusOK, nil)
	}
}

func handleGetLatestStatus(service IndexService) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, ok := service.LatestStatus()
		if !ok {
			writeError(c, http.StatusNotFound, "no indexing status published yet")
			return
		}

		writeResponse(c, status, http.StatusOK, nil)
	}
}

// handleIndexEvents streams progress statuses as server-sent events until the
// client goes away. The latest status, if any, is sent first.
func handleIndexEvents(service IndexService, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		statusC, unsubscribe, err := service.SubscribeProgress(ctx)
		if err != nil {
			logger.Error("could not subscribe to indexing progress", "err", err.Error())
			writeError(c, http.StatusInternalServerError, err.Error())
			return
		}
		defer unsubscribe()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
		c.Writer.Flush()

		logger.Info("progress stream opened", "remote_addr", c.ClientIP())
		c.Stream(func(w io.Writer) bool {
			select {
			case status, ok := <-statusC:
				if !ok {
					return false
				}
				c.SSEvent(progress.EventIndexingStatus, status)
				return true
			case <-ctx.Done():
				return false
			}
		})
		logger.Info("progress stream closed", "remote_addr", c.ClientIP())
	}
}
