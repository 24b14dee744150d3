// Package runner executes labeled units of work concurrently, collecting
// completions as they finish with success, error and always callbacks.
package runner

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Options tunes a Run call. All callbacks are optional; OnError defaults to
// printing the failed item and its error to stderr.
type Options[I, O any] struct {
	// OnSuccess runs after an item completes without error.
	OnSuccess func(item I, result O)
	// OnError runs when an item returns an error or panics.
	OnError func(item I, err error)
	// OnAlways runs after every executed item, whatever the outcome.
	// Items whose start was prevented by cancellation never run it.
	OnAlways func(item I)
	// MaxWorkers bounds concurrency; zero or negative means unbounded.
	MaxWorkers int
}

// Run executes fn for every item with bounded concurrency and returns the
// successful results in completion order. Cancelling ctx prevents
// not-yet-started items from running and discards the results of items that
// finish afterwards; items already executing are not interrupted.
func Run[I, O any](ctx context.Context, items []I, fn func(context.Context, I) (O, error), opts Options[I, O]) []O {
	onError := opts.OnError
	if onError == nil {
		onError = func(item I, err error) {
			fmt.Fprintf(os.Stderr, "Error when executing %v:\n%v\n", item, err)
		}
	}

	var (
		mu      sync.Mutex
		results []O
	)

	g := new(errgroup.Group)
	if opts.MaxWorkers > 0 {
		g.SetLimit(opts.MaxWorkers)
	}

	for _, item := range items {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			result, err := call(ctx, fn, item)

			if ctx.Err() != nil {
				// Cancelled mid-flight: the outcome is discarded.
				return nil
			}

			defer func() {
				if opts.OnAlways != nil {
					opts.OnAlways(item)
				}
			}()

			if err != nil {
				onError(item, err)
				return nil
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()

			if opts.OnSuccess != nil {
				opts.OnSuccess(item, result)
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// call shields the pool from a panicking work item.
func call[I, O any](ctx context.Context, fn func(context.Context, I) (O, error), item I) (result O, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx, item)
}
