package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/lumen/backend/pkg/common"
	"github.com/OFFIS-RIT/lumen/backend/pkg/graph"

	"github.com/labstack/echo/v4"
)

// QueryGraphHandler filters the entities of a posted graph snapshot.
func QueryGraphHandler(c echo.Context) error {
	type queryGraphBody struct {
		Graph         *graph.KnowledgeGraph `json:"graph" validate:"required"`
		Types         []common.EntityType   `json:"types"`
		Categories    []string              `json:"categories"`
		MinConfidence float64               `json:"min_confidence" validate:"min=0,max=1"`
		MaxResults    int                   `json:"max_results" validate:"min=0"`
		HasExamples   bool                  `json:"has_examples"`
	}

	type queryGraphResponse struct {
		Message  string                   `json:"message"`
		Entities []common.KnowledgeEntity `json:"entities,omitempty"`
		Stats    *graph.GraphStats        `json:"stats,omitempty"`
	}

	data := new(queryGraphBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryGraphResponse{
			Message: "Invalid request body",
		})
	}

	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryGraphResponse{
			Message: "Invalid request body",
		})
	}

	entities := graph.GetEntities(data.Graph, graph.EntityFilter{
		Types:         data.Types,
		Categories:    data.Categories,
		MinConfidence: data.MinConfidence,
		MaxResults:    data.MaxResults,
		HasExamples:   data.HasExamples,
	})
	stats := graph.GetStats(data.Graph)

	return c.JSON(http.StatusOK, queryGraphResponse{
		Message:  "OK",
		Entities: entities,
		Stats:    &stats,
	})
}

// EnrichContentHandler appends the graph digest for a content type to the
// posted base text.
func EnrichContentHandler(c echo.Context) error {
	type enrichBody struct {
		BaseText    string                `json:"base_text" validate:"required"`
		ContentType string                `json:"content_type" validate:"required,oneof=flashcards quiz notes summary"`
		Graph       *graph.KnowledgeGraph `json:"graph" validate:"required"`
	}

	type enrichResponse struct {
		Message string `json:"message"`
		Text    string `json:"text,omitempty"`
	}

	data := new(enrichBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, enrichResponse{
			Message: "Invalid request body",
		})
	}

	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, enrichResponse{
			Message: "Invalid request body",
		})
	}

	return c.JSON(http.StatusOK, enrichResponse{
		Message: "OK",
		Text:    graph.EnrichContentWithGraph(data.BaseText, data.Graph, graph.ContentType(data.ContentType)),
	})
}
