// Package parallel runs index-addressed work on a bounded pool of goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// DefaultWorkers returns the worker count used when none is configured.
func DefaultWorkers() int {
	return runtime.NumCPU()
}

// For calls fn(i) for every i in [0, n) using at most workers goroutines.
// Each index is visited exactly once; fn must only write state owned by i.
// workers <= 1 runs everything on the calling goroutine.
func For(n, workers int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if workers <= 1 || n == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	workers = min(workers, n)

	indices := make(chan int, workers*2)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				fn(i)
			}
		}()
	}

	for i := 0; i < n; i++ {
		indices <- i
	}
	close(indices)

	wg.Wait()
}

// ForErr is For with a per-index error. Errors are returned indexed like the
// work, nil where fn succeeded.
func ForErr(n, workers int, fn func(i int) error) []error {
	errs := make([]error, max(n, 0))
	For(n, workers, func(i int) {
		errs[i] = fn(i)
	})
	return errs
}
