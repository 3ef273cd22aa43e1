package convert

import (
	"runtime"
	"sync"
)

// indexed pairs a task result with the index of its task.
type indexed[R any] struct {
	index  int
	result R
}

// runPool processes tasks 0..n-1 with up to workers goroutines and hands
// every result to collect from the calling goroutine, in completion order.
// workers <= 0 means one worker per CPU.
func runPool[R any](n, workers int, process func(i int) R, collect func(i int, r R)) {
	if n == 0 {
		return
	}
	numWorkers := workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > n {
		numWorkers = n
	}

	taskChan := make(chan int, n)
	resultChan := make(chan indexed[R], n)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range taskChan {
				resultChan <- indexed[R]{index: i, result: process(i)}
			}
		}()
	}

	for i := 0; i < n; i++ {
		taskChan <- i
	}
	close(taskChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for r := range resultChan {
		collect(r.index, r.result)
	}
}
