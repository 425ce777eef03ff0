package testutil

import "time"

// Timeout bounds any single wait on a tree. Trees in tests finish in
// milliseconds; hitting this means a deadlock.
const Timeout = 10 * time.Second

// PollInterval is the interval for Poll and WaitForState.
const PollInterval = 5 * time.Millisecond

// TickInterval is the driver interval used by tests. Non-zero so a busy
// driver still yields to leaf goroutines under -race.
const TickInterval = time.Millisecond
