// Package connectivity tracks whether the remote store is reachable and
// publishes online/offline transitions.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/julianstephens/quitlog/internal/logger"
)

// Transition is published whenever the online state changes.
type Transition struct {
	Online bool
	At     time.Time
}

// Probe checks reachability; a nil error means online.
type Probe func(ctx context.Context) error

type Monitor struct {
	mu       sync.RWMutex
	online   bool
	nextID   int
	subs     map[int]func(Transition)
	onOnline map[int]func()
	now      func() time.Time
}

// NewMonitor returns a monitor in the given initial state. No transition is
// published for the initial state.
func NewMonitor(online bool) *Monitor {
	return &Monitor{
		online:   online,
		subs:     make(map[int]func(Transition)),
		onOnline: make(map[int]func()),
		now:      time.Now,
	}
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Set records the current state. Subscribers are notified only when the
// state actually changes; repeated values are ignored.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	t := Transition{Online: online, At: m.now()}

	subs := make([]func(Transition), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	var hooks []func()
	if online {
		for _, fn := range m.onOnline {
			hooks = append(hooks, fn)
		}
	}
	m.mu.Unlock()

	logger.Component("connectivity").Info("Connectivity changed", "online", online)

	// Callbacks run outside the lock so they may call back into the monitor.
	for _, fn := range subs {
		fn(t)
	}
	for _, fn := range hooks {
		fn()
	}
}

// Subscribe registers fn for every transition and returns a function that
// unregisters it.
func (m *Monitor) Subscribe(fn func(Transition)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// OnOnline registers fn to run once per offline to online transition.
func (m *Monitor) OnOnline(fn func()) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.onOnline[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.onOnline, id)
	}
}

// Check runs probe once with the given timeout and records the result.
func (m *Monitor) Check(ctx context.Context, probe Probe, timeout time.Duration) bool {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := probe(probeCtx)
	if err != nil {
		logger.Component("connectivity").Debug("Probe failed", "error", err)
	}
	m.Set(err == nil)
	return err == nil
}

// Run probes immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, probe Probe, interval, timeout time.Duration) {
	m.Check(ctx, probe, timeout)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx, probe, timeout)
		}
	}
}
