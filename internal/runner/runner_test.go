package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunCollectsSuccessfulResults(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	var errCount atomic.Int32
	results := Run(context.Background(), items, func(_ context.Context, n int) (int, error) {
		if n == 3 {
			return 0, errors.New("boom")
		}
		return n * 10, nil
	}, Options[int, int]{
		OnError: func(n int, err error) {
			if n != 3 {
				t.Errorf("OnError called for item %d, want 3", n)
			}
			errCount.Add(1)
		},
	})

	if errCount.Load() != 1 {
		t.Errorf("OnError ran %d times, want exactly once", errCount.Load())
	}
	sort.Ints(results)
	want := []int{10, 20, 40, 50}
	if len(results) != len(want) {
		t.Fatalf("Run() returned %d results, want %d", len(results), len(want))
	}
	for i, r := range results {
		if r != want[i] {
			t.Errorf("results[%d] = %d, want %d", i, r, want[i])
		}
	}
}

func TestRunCallbacks(t *testing.T) {
	var (
		mu      sync.Mutex
		success []string
		always  []string
	)

	Run(context.Background(), []string{"a", "b"}, func(_ context.Context, s string) (string, error) {
		if s == "b" {
			return "", errors.New("nope")
		}
		return s, nil
	}, Options[string, string]{
		OnSuccess: func(item, result string) {
			mu.Lock()
			success = append(success, item)
			mu.Unlock()
		},
		OnError: func(string, error) {},
		OnAlways: func(item string) {
			mu.Lock()
			always = append(always, item)
			mu.Unlock()
		},
	})

	if len(success) != 1 || success[0] != "a" {
		t.Errorf("OnSuccess ran for %v, want [a]", success)
	}
	if len(always) != 2 {
		t.Errorf("OnAlways ran %d times, want 2", len(always))
	}
}

func TestRunRecoversPanics(t *testing.T) {
	called := false
	results := Run(context.Background(), []int{1}, func(_ context.Context, _ int) (int, error) {
		panic("kaboom")
	}, Options[int, int]{
		OnError: func(_ int, err error) {
			called = true
			if err == nil {
				t.Error("expected panic to surface as an error")
			}
		},
	})

	if !called {
		t.Error("OnError was not invoked for a panicking item")
	}
	if len(results) != 0 {
		t.Errorf("Run() = %v, want no results", results)
	}
}

func TestRunMaxWorkers(t *testing.T) {
	var current, peak atomic.Int32

	Run(context.Background(), make([]int, 8), func(_ context.Context, _ int) (int, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
		return 0, nil
	}, Options[int, int]{MaxWorkers: 2})

	if p := peak.Load(); p > 2 {
		t.Errorf("observed %d concurrent workers, want at most 2", p)
	}
}

func TestRunCancellationSkipsPendingItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var started atomic.Int32
	results := Run(ctx, []int{1, 2, 3, 4, 5, 6, 7, 8}, func(_ context.Context, n int) (int, error) {
		started.Add(1)
		cancel()
		return n, nil
	}, Options[int, int]{MaxWorkers: 1})

	// The first item triggers cancellation; later items must not start and
	// results finishing after the cancel are discarded.
	if got := started.Load(); got != 1 {
		t.Errorf("%d items started, want 1", got)
	}
	if len(results) != 0 {
		t.Errorf("Run() = %v, want results after cancellation discarded", results)
	}
}

func TestRunDefaultErrorHandlerDoesNotAbort(t *testing.T) {
	// No OnError supplied: failures print to stderr and the rest proceeds.
	results := Run(context.Background(), []int{1, 2}, func(_ context.Context, n int) (int, error) {
		if n == 1 {
			return 0, fmt.Errorf("fail %d", n)
		}
		return n, nil
	}, Options[int, int]{})

	if len(results) != 1 || results[0] != 2 {
		t.Errorf("Run() = %v, want [2]", results)
	}
}
