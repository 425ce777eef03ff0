package testutil

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoll(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Poll(t.Context(), func() bool {
		calls++
		return calls >= 3
	}, Timeout, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPoll_Timeout(t *testing.T) {
	t.Parallel()

	err := Poll(t.Context(), func() bool { return false }, 20*time.Millisecond, time.Millisecond)
	require.ErrorContains(t, err, "timeout waiting for state")
}

func TestPoll_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	err := Poll(ctx, func() bool {
		cancel()
		return false
	}, Timeout, time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaitForState(t *testing.T) {
	t.Parallel()

	var v atomic.Int64
	go func() {
		for range 5 {
			time.Sleep(time.Millisecond)
			v.Add(1)
		}
	}()

	got, err := WaitForState(t.Context(), v.Load, func(n int64) bool { return n >= 5 }, Timeout, PollInterval)
	require.NoError(t, err)
	assert.EqualValues(t, 5, got)
}

func TestWaitForState_TimeoutReportsLast(t *testing.T) {
	t.Parallel()

	got, err := WaitForState(t.Context(), func() string { return "running" },
		func(s string) bool { return s == "success" }, 10*time.Millisecond, time.Millisecond)
	require.ErrorContains(t, err, "last running")
	assert.Equal(t, "running", got)
}
