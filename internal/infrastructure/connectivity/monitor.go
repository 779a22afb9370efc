// Package connectivity provides the online/offline signal.
//
// Monitor derives the signal by probing the remote store on an interval.
// Switch is a manually driven signal for one-shot commands and tests.
package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/ports"
)

var (
	_ ports.Connectivity = (*Monitor)(nil)
	_ ports.Connectivity = (*Switch)(nil)
)

// Prober checks whether the remote store is reachable.
type Prober interface {
	Ping(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

// Ping implements Prober.
func (f ProberFunc) Ping(ctx context.Context) error { return f(ctx) }

// Switch holds an online flag and notifies subscribers when it changes.
type Switch struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(bool)
	nextID int
}

// NewSwitch returns a Switch in the given state.
func NewSwitch(online bool) *Switch {
	return &Switch{online: online, subs: make(map[int]func(bool))}
}

// Online reports the current state.
func (s *Switch) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Subscribe registers fn for transitions.
func (s *Switch) Subscribe(fn func(online bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Set updates the state and notifies subscribers when it changed. It
// reports whether a transition happened.
func (s *Switch) Set(online bool) bool {
	s.mu.Lock()
	if s.online == online {
		s.mu.Unlock()
		return false
	}
	s.online = online
	subs := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
	return true
}

// Monitor probes on an interval and drives a Switch with the outcome.
type Monitor struct {
	*Switch
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	log      ports.Logger

	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	started atomic.Bool
}

// NewMonitor returns a monitor that starts out offline until the first probe.
func NewMonitor(prober Prober, settings domain.SyncSettings, log ports.Logger) *Monitor {
	interval := settings.ProbeInterval
	if interval <= 0 {
		interval = domain.DefaultProbeInterval
	}
	timeout := settings.ProbeTimeout
	if timeout <= 0 {
		timeout = domain.DefaultProbeTimeout
	}
	return &Monitor{
		Switch:   NewSwitch(false),
		prober:   prober,
		interval: interval,
		timeout:  timeout,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Probe runs one check now and updates the state.
func (m *Monitor) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	err := m.prober.Ping(ctx)
	online := err == nil
	if m.Set(online) {
		fields := map[string]interface{}{"online": online}
		if err != nil {
			fields["error"] = err.Error()
		}
		m.log.Info("connectivity changed", fields)
	}
	return online
}

// Start probes once synchronously, then keeps probing in the background
// until Stop or ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	m.Probe(ctx)
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.Probe(ctx)
			}
		}
	}()
}

// Stop ends background probing and waits for the probe loop to exit.
func (m *Monitor) Stop() {
	m.once.Do(func() { close(m.stop) })
	if m.started.Load() {
		<-m.done
	}
}
