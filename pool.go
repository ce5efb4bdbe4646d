package bmxtract

import (
	"runtime"
	"sync"
	"sync/atomic"
)

func maxWorkers() int {
	return runtime.GOMAXPROCS(0)
}

// forEachIndex runs fn over [0, n) on up to GOMAXPROCS goroutines. Each
// index is handed to exactly one worker; fn must not depend on ordering.
func forEachIndex(n int, fn func(int)) {
	workers := maxWorkers()
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	var next atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1)) - 1
				if i >= n {
					return
				}
				fn(i)
			}
		}()
	}
	wg.Wait()
}
