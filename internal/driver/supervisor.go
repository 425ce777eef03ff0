package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	bt "github.com/joeycumines/go-behaviortree"
)

// ErrSupervisorStopped is returned by Supervisor.Add after Stop or Wait.
var ErrSupervisorStopped = errors.New("driver: supervisor stopped")

// Supervisor runs several drivers side by side. Their tickers are aggregated
// by a bt.Manager, so Stop tears every tree down at once.
type Supervisor struct {
	manager bt.Manager
	log     *slog.Logger

	mu      sync.Mutex
	wg      sync.WaitGroup
	stopped bool
	tickers []bt.Ticker
	names   []string
}

// NewSupervisor returns an empty Supervisor. A nil logger means
// slog.Default().
func NewSupervisor(logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		manager: bt.NewManager(),
		log:     logger,
	}
}

// Add starts d and places its ticker under supervision.
func (s *Supervisor) Add(ctx context.Context, d *Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSupervisorStopped
	}

	tk, err := d.Start(ctx)
	if err != nil {
		return err
	}
	if err := s.manager.Add(tk); err != nil {
		tk.Stop()
		<-tk.Done()
		return fmt.Errorf("supervise tree %q: %w", d.Tree().Root().Name(), err)
	}
	s.tickers = append(s.tickers, tk)
	s.names = append(s.names, d.Tree().Root().Name())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-tk.Done()
	}()
	s.log.Debug("supervising tree", slog.String("root", d.Tree().Root().Name()), slog.String("run", d.Tree().RunID()))
	return nil
}

// Len returns the number of supervised drivers.
func (s *Supervisor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickers)
}

// Stop stops every supervised driver. It does not wait; use Wait.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.stopped = true
	tickers := append([]bt.Ticker(nil), s.tickers...)
	s.mu.Unlock()
	s.manager.Stop()
	for _, tk := range tickers {
		tk.Stop()
	}
}

// Wait blocks until every supervised tree has settled and been joined, then
// shuts the manager down. It returns the errors of every driver that did not
// settle cleanly, joined.
func (s *Supervisor) Wait() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.wg.Wait()
	s.manager.Stop()
	<-s.manager.Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for i, tk := range s.tickers {
		if err := tk.Err(); err != nil {
			errs = append(errs, fmt.Errorf("tree %q: %w", s.names[i], err))
		}
	}
	return errors.Join(errs...)
}
