package server

import (
	"github.com/OFFIS-RIT/lumen/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiRoutes := e.Group("/api")

	// Synchronous pipeline
	apiRoutes.POST("/graphs", routes.BuildGraphHandler)

	// Queued pipeline
	apiRoutes.POST("/graphs/jobs", routes.CreateGraphJobHandler)
	apiRoutes.GET("/graphs/jobs/:id/links", routes.GetGraphJobLinksHandler)

	// Graph snapshot utilities
	apiRoutes.POST("/graphs/query", routes.QueryGraphHandler)
	apiRoutes.POST("/graphs/enrich", routes.EnrichContentHandler)
}
