package workflow

import (
	"context"
	"fmt"
	"sync"
)

// Outcome is the result slot of one unit.
type Outcome[Out any] struct {
	Index int
	Value Out
	Err   error
}

// FanOut runs fn for every item concurrently and waits for all of them.
// limit caps the number of units running at once; zero or less means no
// cap. A failing or panicking unit only fills its own slot. Outcomes are
// returned in completion order.
func FanOut[In, Out any](ctx context.Context, items []In, limit int, fn func(ctx context.Context, i int, item In) (Out, error)) []Outcome[Out] {
	if len(items) == 0 {
		return nil
	}

	var sem chan struct{}
	if limit > 0 {
		sem = make(chan struct{}, limit)
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		outcomes = make([]Outcome[Out], 0, len(items))
	)

	for i, item := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					mu.Lock()
					outcomes = append(outcomes, Outcome[Out]{Index: i, Err: ctx.Err()})
					mu.Unlock()
					return
				}
			}

			out := run(ctx, i, item, fn)
			mu.Lock()
			outcomes = append(outcomes, out)
			mu.Unlock()
		}()
	}
	wg.Wait()

	return outcomes
}

func run[In, Out any](ctx context.Context, i int, item In, fn func(ctx context.Context, i int, item In) (Out, error)) (out Outcome[Out]) {
	out.Index = i
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("unit %d panicked: %v", i, r)
		}
	}()
	out.Value, out.Err = fn(ctx, i, item)
	return out
}

// Gather splits outcomes into successful values and errors, both keyed
// back to the item index.
func Gather[Out any](outcomes []Outcome[Out]) (values map[int]Out, errs map[int]error) {
	values = make(map[int]Out, len(outcomes))
	errs = make(map[int]error)
	for _, o := range outcomes {
		if o.Err != nil {
			errs[o.Index] = o.Err
			continue
		}
		values[o.Index] = o.Value
	}
	return values, errs
}
