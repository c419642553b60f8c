package routes

import (
	"encoding/json"
	"net/http"

	"github.com/OFFIS-RIT/lumen/backend/internal/queue"
	"github.com/OFFIS-RIT/lumen/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/lumen/backend/internal/storage"
	"github.com/OFFIS-RIT/lumen/backend/pkg/logger"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// CreateGraphJobHandler queues a graph build for text already stored in S3.
func CreateGraphJobHandler(c echo.Context) error {
	type createGraphJobBody struct {
		FileKey    string  `json:"file_key" validate:"required"`
		FileName   string  `json:"file_name"`
		SourceType string  `json:"source_type"`
		TotalPages int     `json:"total_pages" validate:"min=0"`
		Duration   float64 `json:"duration" validate:"min=0"`
		Replace    bool    `json:"replace"`
	}

	type createGraphJobResponse struct {
		Message   string `json:"message"`
		JobID     string `json:"job_id,omitempty"`
		GraphKey  string `json:"graph_key,omitempty"`
		ChunksKey string `json:"chunks_key,omitempty"`
	}

	data := new(createGraphJobBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createGraphJobResponse{
			Message: "Invalid request body",
		})
	}

	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createGraphJobResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App
	if app.Queue == nil {
		return c.JSON(http.StatusServiceUnavailable, createGraphJobResponse{
			Message: "Job queue not configured",
		})
	}

	jobID, err := gonanoid.New()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, createGraphJobResponse{
			Message: "Internal server error",
		})
	}

	msg := queue.BuildGraphMsg{
		JobID:        jobID,
		FileKey:      data.FileKey,
		FileName:     data.FileName,
		SourceType:   data.SourceType,
		TotalPages:   data.TotalPages,
		Duration:     data.Duration,
		OutputPrefix: "graphs/" + jobID,
		Replace:      data.Replace,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, createGraphJobResponse{
			Message: "Internal server error",
		})
	}
	if err := queue.PublishFIFO(app.Queue, queue.GraphQueue, body); err != nil {
		logger.Error("[Server] Failed to queue graph job", "job_id", jobID, "err", err)
		return c.JSON(http.StatusInternalServerError, createGraphJobResponse{
			Message: "Internal server error",
		})
	}

	graphKey, chunksKey := storage.OutputKeys(msg.OutputPrefix)
	return c.JSON(http.StatusAccepted, createGraphJobResponse{
		Message:   "Graph job queued",
		JobID:     jobID,
		GraphKey:  graphKey,
		ChunksKey: chunksKey,
	})
}

// GetGraphJobLinksHandler presigns download links for a finished job.
func GetGraphJobLinksHandler(c echo.Context) error {
	type graphJobLinksResponse struct {
		Message   string `json:"message"`
		GraphURL  string `json:"graph_url,omitempty"`
		ChunksURL string `json:"chunks_url,omitempty"`
	}

	jobID := c.Param("id")
	app := c.(*middleware.AppContext).App
	if app.S3 == nil {
		return c.JSON(http.StatusServiceUnavailable, graphJobLinksResponse{
			Message: "Storage not configured",
		})
	}

	ctx := c.Request().Context()
	graphKey, chunksKey := storage.OutputKeys("graphs/" + jobID)
	graphURL, err := storage.GenerateDownloadLink(ctx, app.S3, graphKey)
	if err != nil {
		logger.Error("[Server] Failed to presign graph link", "job_id", jobID, "err", err)
		return c.JSON(http.StatusInternalServerError, graphJobLinksResponse{
			Message: "Internal server error",
		})
	}
	chunksURL, err := storage.GenerateDownloadLink(ctx, app.S3, chunksKey)
	if err != nil {
		logger.Error("[Server] Failed to presign chunks link", "job_id", jobID, "err", err)
		return c.JSON(http.StatusInternalServerError, graphJobLinksResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, graphJobLinksResponse{
		Message:   "OK",
		GraphURL:  graphURL,
		ChunksURL: chunksURL,
	})
}
