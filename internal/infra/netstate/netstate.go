// Package netstate tracks whether the remote authority is reachable.
//
// Monitor answers the "if online" checks of the snapshot and sync services
// and notifies subscribers on every offline to online transition, which is
// what triggers a background sync pass after reconnecting.
package netstate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bobbyquantum/inkweld-sub009/internal/telemetry/logger"
)

// Prober checks reachability of the remote. remote.Client implements it.
type Prober interface {
	Ping(ctx context.Context, path string) error
}

// Config configures a Monitor.
type Config struct {
	// ProbePath is requested on every probe, e.g. "/api/v1/health".
	ProbePath string

	// Interval between probes in Run. Default: 30s.
	Interval time.Duration

	// Timeout bounds one probe. Default: 5s.
	Timeout time.Duration
}

// Monitor holds the current connectivity state.
type Monitor struct {
	online atomic.Bool
	prober Prober
	cfg    Config
	logger logger.Logger

	mu   sync.Mutex
	subs []chan struct{}
}

// NewMonitor creates a monitor that starts offline. A nil prober leaves
// the state under manual control through Set.
func NewMonitor(prober Prober, cfg Config, log logger.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Monitor{
		prober: prober,
		cfg:    cfg,
		logger: logger.Or(log).With("component", "netstate"),
	}
}

// Online reports the last known state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Set records the state. Subscribers are notified when it changes from
// offline to online.
func (m *Monitor) Set(online bool) {
	was := m.online.Swap(online)
	if was == online {
		return
	}
	if !online {
		m.logger.Info("remote unreachable")
		return
	}
	m.logger.Info("remote reachable")

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe returns a channel receiving one value per online transition.
// Notifications are coalesced when the receiver lags.
func (m *Monitor) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Check probes once and records the result.
func (m *Monitor) Check(ctx context.Context) bool {
	if m.prober == nil {
		return m.Online()
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	err := m.prober.Ping(ctx, m.cfg.ProbePath)
	if err != nil && m.Online() {
		m.logger.Warn("connectivity probe failed", "error", err)
	}
	m.Set(err == nil)
	return err == nil
}

// Run probes immediately and then every Interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	if m.prober == nil {
		<-ctx.Done()
		return
	}
	m.Check(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
