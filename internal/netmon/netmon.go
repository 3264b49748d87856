// Package netmon maintains the single source of truth for network
// reachability. State is tri-valued: unknown before the first
// observation, then online or offline. Other components read a cached
// snapshot or subscribe to observations; they never probe on their own.
package netmon

import (
	"context"
	"sync"
	"time"

	"github.com/theonlywayisdigital/donedex-sub004/internal/logging"
)

// NetworkState describes the last observed reachability.
type NetworkState string

const (
	// StateUnknown means no observation has been made yet.
	StateUnknown NetworkState = "unknown"
	// StateOnline means the last observation reached the network.
	StateOnline NetworkState = "online"
	// StateOffline means the last observation failed to reach the network.
	StateOffline NetworkState = "offline"
)

// Prober answers a single reachability question. Implementations must
// honor the context deadline and must not block past it.
type Prober interface {
	Probe(ctx context.Context) bool
}

// Monitor owns the reachability state. It can be fed by a periodic
// probe loop, by one-shot probes, or pushed from a host platform via
// SetState. Every observation is fanned out to all subscribers, state
// change or not.
type Monitor struct {
	mu      sync.Mutex
	state   NetworkState
	subs    map[int]func(online bool)
	nextSub int
	started bool

	prober   Prober
	interval time.Duration
	stopChan chan struct{}
}

// New returns a Monitor in the unknown state. prober may be nil when a
// host platform owns connectivity and pushes updates through SetState.
// interval <= 0 disables the periodic probe loop.
func New(prober Prober, interval time.Duration) *Monitor {
	return &Monitor{
		state:    StateUnknown,
		subs:     make(map[int]func(online bool)),
		prober:   prober,
		interval: interval,
		stopChan: make(chan struct{}, 1),
	}
}

// Initialize takes an initial observation and starts the periodic probe
// loop. Idempotent: a second call while started is a no-op and never
// creates a duplicate loop.
func (m *Monitor) Initialize(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	// Discard any stop signal left over from a previous run.
	select {
	case <-m.stopChan:
	default:
	}

	if m.prober == nil {
		return
	}
	m.observe(m.prober.Probe(ctx))
	if m.interval > 0 {
		go m.probeLoop()
	}
}

// Stop halts the periodic probe loop. Safe to call multiple times and
// safe to call when Initialize never ran.
func (m *Monitor) Stop() {
	m.mu.Lock()
	started := m.started
	m.started = false
	m.mu.Unlock()
	if !started {
		return
	}
	select {
	case m.stopChan <- struct{}{}:
	default:
	}
}

// State returns the current tri-state snapshot.
func (m *Monitor) State() NetworkState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsOnline returns the cached reachability when an observation exists.
// With no observation yet it performs a one-shot probe and caches the
// result; without a prober it assumes reachable and lets the caller's
// dispatch attempt fail on its own.
func (m *Monitor) IsOnline(ctx context.Context) bool {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()

	if state != StateUnknown {
		return state == StateOnline
	}
	if m.prober == nil {
		return true
	}
	online := m.prober.Probe(ctx)
	m.observe(online)
	return online
}

// SetState records an observation pushed by a host platform that owns
// the connectivity primitive.
func (m *Monitor) SetState(online bool) {
	m.observe(online)
}

// Subscribe registers a callback invoked on every observation,
// including repeats of the current state. The returned function
// removes the subscription and is safe to call more than once.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// observe records one reachability observation and fans it out.
// Callbacks run outside the lock so they may call back into the
// Monitor.
func (m *Monitor) observe(online bool) {
	next := StateOffline
	if online {
		next = StateOnline
	}

	m.mu.Lock()
	prev := m.state
	m.state = next
	subs := make([]func(online bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	if prev != next {
		logging.Info("network state changed", map[string]interface{}{
			"from": string(prev),
			"to":   string(next),
		})
	}
	for _, fn := range subs {
		fn(online)
	}
}

func (m *Monitor) probeLoop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.observe(m.prober.Probe(context.Background()))
		}
	}
}
