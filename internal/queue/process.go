package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/lumen/backend/internal/storage"
	"github.com/OFFIS-RIT/lumen/backend/internal/util"
	"github.com/OFFIS-RIT/lumen/backend/pkg/ai"
	"github.com/OFFIS-RIT/lumen/backend/pkg/graph"
	"github.com/OFFIS-RIT/lumen/backend/pkg/loader"
	"github.com/OFFIS-RIT/lumen/backend/pkg/logger"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rabbitmq/amqp091-go"
)

// ProcessBuildGraphMessage runs the pipeline for one BuildGraphMsg, writes
// graph.json and chunks.json below the output prefix and announces the
// result on GraphDoneTopic.
func ProcessBuildGraphMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	sourceLoader loader.SourceLoader,
	graphClient *graph.GraphClient,
	aiClient ai.CompletionClient,
	ch *amqp091.Channel,
	body []byte,
) error {
	msg, err := DecodeBuildGraphMsg(body)
	if err != nil {
		return err
	}
	start := time.Now()

	file := loader.NewSourceFile(loader.NewSourceFileParams{
		ID:         msg.JobID,
		FilePath:   msg.FileKey,
		FileName:   msg.FileName,
		SourceType: msg.SourceType,
		TotalPages: msg.TotalPages,
		Duration:   msg.Duration,
		Loader:     sourceLoader,
	})
	doc, err := file.Document(ctx)
	if err != nil {
		return err
	}

	logger.Info("[Queue] Building graph", "job_id", msg.JobID, "file", msg.FileKey, "source_type", doc.SourceType)
	res, err := graphClient.BuildGraph(ctx, doc, aiClient)
	if err != nil {
		return fmt.Errorf("failed to build graph for job %s: %w", msg.JobID, err)
	}

	if msg.Replace {
		if err := storage.DeleteFolder(ctx, s3Client, msg.OutputPrefix+"/"); err != nil {
			return err
		}
	}
	graphKey, chunksKey := storage.OutputKeys(msg.OutputPrefix)
	put := func(ctx context.Context, key string, v any) error {
		return storage.PutJSON(ctx, s3Client, key, v)
	}
	if err := storeResult(ctx, put, graphKey, chunksKey, res); err != nil {
		return err
	}

	done, err := json.Marshal(doneMessage(msg, res, graphKey, chunksKey, time.Since(start)))
	if err != nil {
		return err
	}
	if err := publishWithRetry(func() error { return PublishTopic(ch, GraphDoneTopic, done) }); err != nil {
		logger.Warn("[Queue] Failed to publish completion", "job_id", msg.JobID, "err", err)
	}

	logger.Info("[Queue] Graph stored",
		"job_id", msg.JobID,
		"graph", graphKey,
		"entities", res.Stats.TotalEntities,
		"relations", res.Stats.TotalRelations,
		"fallback", res.Fallback,
	)
	return nil
}

const (
	storeAttempts   = 3
	publishAttempts = 3
)

type putFunc func(ctx context.Context, key string, v any) error

// storeResult writes the chunk list and then the graph snapshot. Each write
// is retried on its own.
func storeResult(ctx context.Context, put putFunc, graphKey, chunksKey string, res *graph.BuildResult) error {
	objects := []struct {
		key string
		v   any
	}{
		{chunksKey, res.Chunks},
		{graphKey, res.Graph},
	}
	for _, obj := range objects {
		err := util.RetryErrWithContext(ctx, storeAttempts, func(ctx context.Context) error {
			return put(ctx, obj.key, obj.v)
		})
		if err != nil {
			return fmt.Errorf("failed to store %s: %w", obj.key, err)
		}
	}
	return nil
}

func publishWithRetry(publish func() error) error {
	_, err := util.Retry(publishAttempts, func() (struct{}, error) {
		return struct{}{}, publish()
	})
	return err
}

func doneMessage(msg BuildGraphMsg, res *graph.BuildResult, graphKey, chunksKey string, d time.Duration) GraphDoneMsg {
	return GraphDoneMsg{
		JobID:          msg.JobID,
		GraphKey:       graphKey,
		ChunksKey:      chunksKey,
		ProcessingMode: res.Config.ProcessingMode,
		Entities:       res.Stats.TotalEntities,
		Relations:      res.Stats.TotalRelations,
		Fallback:       res.Fallback,
		DurationMs:     d.Milliseconds(),
	}
}
