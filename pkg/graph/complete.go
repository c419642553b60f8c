package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/lumen/backend/internal/util"
	"github.com/OFFIS-RIT/lumen/backend/pkg/ai"
)

var (
	// ErrEmptyDocument is logged when a document yields no chunks.
	ErrEmptyDocument = errors.New("document contains no text")
	// ErrMalformedResponse wraps completion answers that parsed as JSON but
	// do not have the expected shape.
	ErrMalformedResponse = errors.New("malformed completion response")
)

// completeTyped asks the completion collaborator for a JSON answer of type T
// and validates it. Every attempt gets its own timeout and a fresh T; a call
// that ran into its own timeout is retried like any other failure.
func completeTyped[T any](
	ctx context.Context,
	g *GraphClient,
	client ai.CompletionClient,
	name string,
	description string,
	prompt string,
	validate func(*T) error,
	opts ...ai.GenerateOption,
) (*T, error) {
	return util.RetryWithBackoff(ctx, g.maxRetries+1, g.retryBackoff, func(ctx context.Context) (*T, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
		defer cancel()

		out := new(T)
		err := client.GenerateCompletionWithFormat(callCtx, name, description, prompt, out, opts...)
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("completion call timed out after %s", g.callTimeout)
			}
			return nil, err
		}
		if validate != nil {
			if err := validate(out); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
			}
		}
		return out, nil
	})
}
