// Package testutil holds polling helpers and timing constants shared by
// tests that drive trees on real goroutines.
package testutil

import (
	"context"
	"fmt"
	"time"
)

// Poll calls condition every interval until it returns true, timeout passes,
// or ctx ends.
func Poll(ctx context.Context, condition func() bool, timeout, interval time.Duration) error {
	_, err := WaitForState(ctx, condition, func(ok bool) bool { return ok }, timeout, interval)
	return err
}

// WaitForState polls getter until predicate accepts its value, returning
// that value.
//
//	s, err := WaitForState(ctx, d.Last,
//		func(s tree.State) bool { return s == tree.Running },
//		testutil.Timeout, testutil.PollInterval)
func WaitForState[T any](ctx context.Context, getter func() T, predicate func(T) bool, timeout, interval time.Duration) (T, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		v := getter()
		if predicate(v) {
			return v, nil
		}
		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-deadline.C:
			return v, fmt.Errorf("timeout waiting for state (last %v, threshold: %v)", v, timeout)
		case <-ticker.C:
		}
	}
}
