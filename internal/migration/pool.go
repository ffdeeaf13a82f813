package migration

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// PoolOptions bounds a RunParallel call.
type PoolOptions struct {
	Workers int
	// Limiter, when set, paces dispatch.
	Limiter *rate.Limiter
}

// newLimiter returns a limiter for perSecond items, or nil when disabled.
func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// RunParallel calls fn for every item on at most opts.Workers goroutines and
// returns once all dispatched calls have finished. The first error cancels
// the context passed to fn and stops dispatch; it is the error returned.
func RunParallel[T any](ctx context.Context, items []T, opts PoolOptions, fn func(ctx context.Context, item T) error) error {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var dispatchErr error
	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(gctx); err != nil {
				dispatchErr = err
				break
			}
		}
		g.Go(func() error {
			return fn(gctx, item)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if dispatchErr != nil {
		return dispatchErr
	}
	// dispatch may have stopped because the parent was cancelled
	return ctx.Err()
}

// RunLinear calls fn for every item in order on the calling goroutine,
// stopping at the first error.
func RunLinear[T any](ctx context.Context, items []T, fn func(ctx context.Context, item T) error) error {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, item); err != nil {
			return err
		}
	}
	return nil
}
