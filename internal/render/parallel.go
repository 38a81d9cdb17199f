package render

import (
	"runtime"
	"sync"
)

func workerCount(requested, n int) int {
	workers := requested
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// parallelRange splits [0, n) into contiguous chunks, one per worker. fn must
// only write outputs addressed by the indices it is given.
func parallelRange(n, workers int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers = workerCount(workers, n)
	if workers == 1 {
		fn(0, n)
		return
	}
	per := n / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * per
		end := start + per
		if w == workers-1 {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
}
