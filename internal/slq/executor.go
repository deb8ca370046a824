package slq

import "sync"

// forEachRange splits [0, n) into at most workers contiguous ranges and
// runs fn once per range on its own goroutine. Each invocation receives a
// distinct worker index, so callers can hand every worker its own cloned
// evaluators. Output slots are addressed by step index and ranges are
// disjoint, so no two goroutines ever write the same slot.
//
// With workers == 1 this degenerates to a plain sequential loop and
// produces bit-identical results to any higher worker count.
func forEachRange(n, workers int, fn func(worker, start, end int)) {
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		fn(0, 0, n)
		return
	}

	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		go func(worker, start, end int) {
			defer wg.Done()
			fn(worker, start, end)
		}(w, start, end)
	}
	wg.Wait()
}
