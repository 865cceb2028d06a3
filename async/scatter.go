package async

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

// ScatterResult is one worker's contribution to a Scatter call: the input
// offset it was assigned and whatever value its function returned.
type ScatterResult struct {
	Offset int
	Extent interface{}
}

// Scatter splits n units of work across GOMAXPROCS workers, calling f once
// per worker with a disjoint [offset, offset+entries) range and a shared
// mutex for any cross-worker bookkeeping f itself needs. It waits for every
// worker to finish and returns the first error encountered, if any.
func Scatter(n int, f func(offset int, entries int, mu *sync.RWMutex) (interface{}, error)) ([]ScatterResult, error) {
	if n <= 0 {
		return nil, errors.New("input length must be greater than 0")
	}

	nRoutines := runtime.GOMAXPROCS(0)
	if nRoutines > n {
		nRoutines = n
	}
	entriesPer := n / nRoutines
	remainder := n % nRoutines

	var wg sync.WaitGroup
	var mu sync.RWMutex
	results := make([]ScatterResult, nRoutines)
	errs := make([]error, nRoutines)

	offset := 0
	for i := 0; i < nRoutines; i++ {
		count := entriesPer
		if i < remainder {
			count++
		}
		wg.Add(1)
		go func(i, offset, count int) {
			defer wg.Done()
			extent, err := f(offset, count, &mu)
			results[i] = ScatterResult{Offset: offset, Extent: extent}
			errs[i] = err
		}(i, offset, count)
		offset += count
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
