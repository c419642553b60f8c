package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/lumen/backend/internal/queue"
	"github.com/OFFIS-RIT/lumen/backend/internal/setup"
	"github.com/OFFIS-RIT/lumen/backend/internal/storage"
	"github.com/OFFIS-RIT/lumen/backend/internal/util"
	"github.com/OFFIS-RIT/lumen/backend/pkg/loader"
	lio "github.com/OFFIS-RIT/lumen/backend/pkg/loader/io"
	ls3 "github.com/OFFIS-RIT/lumen/backend/pkg/loader/s3"
	"github.com/OFFIS-RIT/lumen/backend/pkg/logger"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setup.Logger("worker")

	aiClient, err := setup.AIClient()
	if err != nil {
		logger.Fatal("Could not create AI client", "err", err)
	}
	graphClient, err := setup.GraphClient()
	if err != nil {
		logger.Fatal("Could not create graph client", "err", err)
	}

	// Init s3 client
	client, err := storage.NewS3Client(ctx)
	if err != nil {
		logger.Fatal("Could not create S3 client", "err", err)
	}
	// SOURCE_LOADER=io reads file keys from the local filesystem, which is
	// handy when the worker shares a volume with the text extractor.
	var sourceLoader loader.SourceLoader
	switch util.GetEnvString("SOURCE_LOADER", "s3") {
	case "io":
		sourceLoader = lio.NewIOSourceLoader()
	default:
		sourceLoader = ls3.NewS3SourceLoaderWithClient(util.GetEnvString("AWS_BUCKET", "lumen"), client)
	}

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	queues := []string{queue.GraphQueue}
	if err := queue.SetupQueues(ch, queues); err != nil {
		logger.Fatal("Failed to setup queues", "err", err)
	}

	// A single consumer channel with prefetch=1 keeps one document in
	// flight per worker.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.GraphQueue,
		queue.GraphQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.GraphQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.GraphQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Info("Message channel closed", "queue", queue.GraphQueue)
					stop()
					return
				}
				startTime := time.Now()
				logger.Info("Received message", "queue", queue.GraphQueue)

				processingErr := queue.ProcessBuildGraphMessage(
					ctx, client, sourceLoader, graphClient, aiClient, ch, msg.Body,
				)
				if processingErr != nil {
					logger.Error("Error processing message", "queue", queue.GraphQueue, "err", processingErr)
					queue.HandleProcessingError(consumerCh, msg, queue.GraphQueue)
				} else {
					if err := msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", queue.GraphQueue)
				}

				metrics := aiClient.GetMetrics()
				logger.Info(
					"AI Metrics",
					"requests", metrics.Requests,
					"input_tokens", metrics.InputTokens,
					"output_tokens", metrics.OutputTokens,
					"total_tokens", metrics.TotalTokens,
					"duration", clock(time.Duration(metrics.DurationMs)*time.Millisecond),
				)
				logger.Info("Processing time", "duration", clock(time.Since(startTime)))
				logger.Info("Waiting for next message")
				aiClient.ResetMetrics()
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

// clock formats d as hh:mm:ss.
func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
