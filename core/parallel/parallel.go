package parallel

import (
	"runtime"
	"sync"
)

// Parallelize divides items into one contiguous range per CPU core and
// runs fn on each range (start, end) concurrently.
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeN(items, runtime.NumCPU(), fn)
}

// ParallelizeN is Parallelize with an explicit worker count. workers <= 0
// means one per CPU core; workers == 1 runs fn(0, items) on the caller's
// goroutine.
func ParallelizeN(items, workers int, fn func(start, end int)) {
	if items == 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items
	}
	if workers == 1 {
		fn(0, items)
		return
	}

	// ceiling division
	chunkSize := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs sequentially when items <= threshold.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// ForEach calls fn(i) for every i in [0, items) using at most workers
// goroutines. Callers write results into index i of a preallocated slice.
func ForEach(items, workers int, fn func(i int)) {
	ParallelizeN(items, workers, func(start, end int) {
		for i := start; i < end; i++ {
			fn(i)
		}
	})
}
