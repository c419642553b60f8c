package graph

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type waveResult[T any] struct {
	value T
	err   error
}

// runWaves runs fn for every index in [0, n) in consecutive waves of at most
// size tasks. A wave only starts after the previous one settled; a failing
// task is recorded in its slot and never cancels its siblings. Tasks that
// were not started because ctx ended carry ctx.Err().
//
// Consecutive waves are at least delay apart. A panicking task is re-raised
// on the calling goroutine once its wave settled.
func runWaves[T any](
	ctx context.Context,
	n int,
	size int,
	delay time.Duration,
	fn func(ctx context.Context, i int) (T, error),
) []waveResult[T] {
	results := make([]waveResult[T], n)
	if n == 0 {
		return results
	}
	if size <= 0 {
		size = 1
	}

	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	for start := 0; start < n; start += size {
		end := min(start+size, n)

		if err := limiter.Wait(ctx); err != nil {
			for i := start; i < n; i++ {
				results[i].err = err
			}
			return results
		}

		var (
			eg        errgroup.Group
			mu        sync.Mutex
			recovered any
		)
		eg.SetLimit(size)
		for i := start; i < end; i++ {
			eg.Go(func() error {
				defer func() {
					if p := recover(); p != nil {
						mu.Lock()
						if recovered == nil {
							recovered = p
						}
						mu.Unlock()
					}
				}()
				v, err := fn(ctx, i)
				results[i] = waveResult[T]{value: v, err: err}
				return nil
			})
		}
		_ = eg.Wait()
		if recovered != nil {
			panic(recovered)
		}
	}

	return results
}
