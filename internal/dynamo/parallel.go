package dynamo

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the worker count used when a caller passes workers <= 0.
var DefaultWorkers = runtime.NumCPU()

// ParallelFor executes fn over [0, n) split into contiguous chunks.
// It returns only after every chunk has finished, so consecutive calls act
// as a barrier between loop stages.
func ParallelFor(workers, n, minChunk int, fn func(start, end int)) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if minChunk < 1 {
		minChunk = 1
	}
	if n <= minChunk || workers <= 1 {
		fn(0, n)
		return
	}

	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (n + workers - 1) / workers

	var g errgroup.Group
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		g.Go(func() error {
			fn(start, end)
			return nil
		})
	}
	_ = g.Wait()
}
