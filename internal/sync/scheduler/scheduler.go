// Package scheduler owns the automatic drain triggers: one pass on
// every offline to online transition of the network monitor, and an
// optional periodic pass. Automatic drains skip items at the retry
// ceiling; those wait for a manual retry.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/theonlywayisdigital/donedex-sub004/internal/logging"
	"github.com/theonlywayisdigital/donedex-sub004/internal/netmon"
	syncpkg "github.com/theonlywayisdigital/donedex-sub004/internal/sync"
)

// Scheduler drives background drains of the sync engine.
type Scheduler struct {
	engine   syncpkg.Drainer
	monitor  *netmon.Monitor
	interval time.Duration

	mu          sync.Mutex
	running     bool
	online      bool
	unsubscribe func()
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewScheduler creates a Scheduler. interval is the periodic drain
// cadence; zero disables the periodic pass and leaves only the
// reconnect trigger.
func NewScheduler(engine syncpkg.Drainer, monitor *netmon.Monitor, interval time.Duration) *Scheduler {
	return &Scheduler{
		engine:   engine,
		monitor:  monitor,
		interval: interval,
		// Assume reachable until the monitor reports, so the first
		// online observation is not treated as a reconnect.
		online: true,
	}
}

// Start subscribes to the network monitor and begins the periodic loop.
// Starting a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.online = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.unsubscribe = s.monitor.Subscribe(func(online bool) {
		s.observe(ctx, online)
	})
	s.mu.Unlock()

	if s.interval > 0 {
		s.wg.Add(1)
		go s.periodicLoop(ctx, stopCh)
	}

	logging.Info("sync scheduler started", map[string]interface{}{
		"periodic_interval": s.interval.String(),
	})
}

// Stop unsubscribes from the monitor and stops the periodic loop. A
// drain already in flight finishes on its own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	stopCh := s.stopCh
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	close(stopCh)
	s.wg.Wait()

	logging.Info("sync scheduler stopped")
}

// Running reports whether the scheduler is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// observe handles one monitor observation. The monitor reports every
// observation, so a drain fires only on the offline to online edge.
func (s *Scheduler) observe(ctx context.Context, online bool) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	wasOnline := s.online
	s.online = online
	s.mu.Unlock()

	if online && !wasOnline {
		logging.Info("network restored, draining sync queue")
		go s.drain(ctx)
	}
}

// periodicLoop drains on a fixed cadence until stopped.
func (s *Scheduler) periodicLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.drain(ctx)
		}
	}
}

// drain runs one automatic pass. Overlapping passes are rejected by the
// engine itself, so triggers never queue up.
func (s *Scheduler) drain(ctx context.Context) {
	res := s.engine.DrainWith(ctx, syncpkg.DrainOpts{SkipExhausted: true})
	if res.Success > 0 || res.Failed > 0 {
		logging.Info("background drain finished", map[string]interface{}{
			"delivered": res.Success,
			"failed":    res.Failed,
		})
	}
}
