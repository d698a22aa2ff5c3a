package testutil

import (
	"sync"
	"sync/atomic"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes int32
	Failures  int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Failures
}

// RunConcurrent executes fn in parallel goroutines and counts how many
// reported success. It replaces the WaitGroup + atomic counters pattern in
// tests that race cookie writes against the idle timer.
func RunConcurrent(goroutines int, fn func(idx int) bool) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, failures atomic.Int32

	for i := range goroutines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if fn(idx) {
				successes.Add(1)
				return
			}
			failures.Add(1)
		}(i)
	}

	wg.Wait()

	return &ConcurrentResult{
		Successes: successes.Load(),
		Failures:  failures.Load(),
	}
}
