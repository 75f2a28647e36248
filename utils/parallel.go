package utils

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.viam.com/utils"
	"golang.org/x/sync/errgroup"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

// ParallelForEachRow calls f for every row in [from, to), splitting the rows into contiguous
// bands run on separate goroutines. f must only write state owned by its row.
func ParallelForEachRow(from, to int, f func(y int)) {
	total := to - from
	if total <= 0 {
		return
	}
	bands := ParallelFactor
	if bands > total {
		bands = total
	}
	bandSize := total / bands
	extra := total % bands

	var wait sync.WaitGroup
	wait.Add(bands)
	start := from
	for band := 0; band < bands; band++ {
		end := start + bandSize
		if band < extra {
			end++
		}
		bandStart, bandEnd := start, end
		utils.PanicCapturingGo(func() {
			defer wait.Done()
			for y := bandStart; y < bandEnd; y++ {
				f(y)
			}
		})
		start = end
	}
	wait.Wait()
}

// SimpleFunc is for RunInParallel.
type SimpleFunc func(ctx context.Context) error

// RunInParallel runs every function on its own goroutine and waits for all of them. The first
// failure cancels the context the others observe. Errors other than the resulting cancellations
// are combined. A panic is reported as an error.
func RunInParallel(ctx context.Context, fs []SimpleFunc) (time.Duration, error) {
	start := time.Now()
	group, groupCtx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var combined error
	for _, f := range fs {
		f := f
		group.Go(func() (err error) {
			defer func() {
				if thePanic := recover(); thePanic != nil {
					err = fmt.Errorf("got panic running something in parallel: %v", thePanic)
				}
				if err == nil {
					return
				}
				mu.Lock()
				if combined == nil || !errors.Is(err, context.Canceled) {
					combined = multierr.Append(combined, err)
				}
				mu.Unlock()
			}()
			return f(groupCtx)
		})
	}

	// every error, not just the first, is already in combined
	_ = group.Wait()
	return time.Since(start), combined
}
