package worker

import (
	"context"
	"sync"
)

// Result pairs one batch item's outcome with its position in the input, so
// callers can report per-item errors without losing submission order.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// fanOut runs fn over every item with at most width goroutines in flight,
// returning results in input order. Individual item errors are captured
// per-result rather than aborting the batch. Once ctx is canceled,
// unstarted items are recorded with ctx.Err(); items already running
// finish normally.
func fanOut[In, T any](ctx context.Context, width int, items []In, fn func(In) (T, error)) []Result[T] {
	if len(items) == 0 {
		return nil
	}
	if width <= 0 || width > len(items) {
		width = len(items)
	}

	type job struct {
		index int
		item  In
	}

	jobs := make(chan job)
	results := make([]Result[T], len(items))
	var wg sync.WaitGroup

	for w := 0; w < width; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				val, err := fn(j.item)
				results[j.index] = Result[T]{Index: j.index, Value: val, Err: err}
			}
		}()
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			results[i] = Result[T]{Index: i, Err: err}
			continue
		}
		jobs <- job{index: i, item: item}
	}
	close(jobs)
	wg.Wait()

	return results
}
