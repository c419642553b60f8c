package middleware

import (
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/OFFIS-RIT/lumen/backend/pkg/ai"
	"github.com/OFFIS-RIT/lumen/backend/pkg/graph"
)

// App holds the long lived dependencies shared by all handlers. Queue and
// S3 may be nil when the server runs without asynchronous jobs.
type App struct {
	Queue    *amqp091.Channel
	S3       *s3.Client
	Graph    *graph.GraphClient
	AiClient ai.CompletionClient
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
