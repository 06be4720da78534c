// Package parallel provides the fork/join loop used by the CPU code paths.
//
// Iterations handed to [For] must be write-disjoint: no locking happens
// inside the loop and the call returns only after every chunk has finished.
package parallel

import (
	"runtime"
	"sync"
)

// Workers caps the worker count at n and at the number of logical CPUs.
// A non-positive limit means "use every logical CPU".
func Workers(n, limit int) int {
	workers := runtime.NumCPU()
	if limit > 0 && limit < workers {
		workers = limit
	}
	if n < workers {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// For executes fn over [0, n) split into contiguous chunks, one goroutine
// per chunk. With a single worker fn runs on the calling goroutine.
func For(n, workers int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		fn(0, n)
		return
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}
