package handshake

import (
	"context"
	"sync"
)

// Signal is a counting, coalescing wake primitive. The zero value is ready to
// use and must not be copied after first use.
//
// Each Notify grants exactly one Wait. Notifications issued while nobody is
// waiting are retained, not collapsed.
type Signal struct {
	mu    sync.Mutex
	count int
	// wake is closed (and replaced) on every Notify, broadcasting to every
	// parked waiter, which then re-checks count under mu. Lazily allocated.
	wake chan struct{}
}

// Notify increments the counter and wakes any waiters.
func (s *Signal) Notify() {
	s.mu.Lock()
	s.count++
	if s.wake != nil {
		close(s.wake)
		s.wake = nil
	}
	s.mu.Unlock()
}

// Wait blocks until the counter is positive, then decrements it and returns
// nil. If ctx is done first, Wait returns ctx.Err() and the counter is left
// untouched.
func (s *Signal) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.count > 0 {
			s.count--
			s.mu.Unlock()
			return nil
		}
		if s.wake == nil {
			s.wake = make(chan struct{})
		}
		wake := s.wake
		s.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pending returns the number of notifications not yet consumed by Wait.
func (s *Signal) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
