package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/lumen/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/lumen/backend/pkg/graph"
	"github.com/OFFIS-RIT/lumen/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// BuildGraphHandler runs the pipeline synchronously on the posted text.
func BuildGraphHandler(c echo.Context) error {
	type buildGraphBody struct {
		Text       string  `json:"text" validate:"required"`
		SourceType string  `json:"source_type"`
		TotalPages int     `json:"total_pages" validate:"min=0"`
		Duration   float64 `json:"duration" validate:"min=0"`
		FileName   string  `json:"file_name"`
	}

	type buildGraphResponse struct {
		Message string             `json:"message"`
		Result  *graph.BuildResult `json:"result,omitempty"`
	}

	data := new(buildGraphBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, buildGraphResponse{
			Message: "Invalid request body",
		})
	}

	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, buildGraphResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	res, err := app.Graph.BuildGraph(ctx, graph.Document{
		Text:       data.Text,
		SourceType: data.SourceType,
		TotalPages: data.TotalPages,
		Duration:   data.Duration,
		FileName:   data.FileName,
	}, app.AiClient)
	if err != nil {
		if errors.Is(err, ctx.Err()) {
			return c.JSON(http.StatusRequestTimeout, buildGraphResponse{
				Message: "Request cancelled",
			})
		}
		logger.Error("[Server] Graph build failed", "err", err)
		return c.JSON(http.StatusInternalServerError, buildGraphResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, buildGraphResponse{
		Message: "Graph built",
		Result:  res,
	})
}
