// Package shutdown provides idle monitoring for scale-to-zero deployments.
package shutdown

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// BackgroundWorkChecker reports whether background work is in progress.
// Used to hold off idle shutdown while the job worker has jobs in flight.
type BackgroundWorkChecker func() bool

// IdleMonitor tracks request activity and signals when the server has been
// idle for a configurable duration, so platforms like Fly.io can stop the
// machine between bursts of work.
type IdleMonitor struct {
	timeout        time.Duration
	logger         *slog.Logger
	activeRequests atomic.Int64

	mu           sync.RWMutex
	lastActivity time.Time

	shutdownChan chan struct{}
	stopChan     chan struct{}

	// Paths that never count as activity, e.g. probe endpoints polled by
	// the platform itself.
	excludePaths        []string
	backgroundWorkCheck BackgroundWorkChecker
}

// IdleMonitorConfig holds configuration for the idle monitor.
type IdleMonitorConfig struct {
	Timeout             time.Duration
	Logger              *slog.Logger
	ExcludePaths        []string
	BackgroundWorkCheck BackgroundWorkChecker
}

// NewIdleMonitor creates a new idle monitor.
// A zero timeout disables it.
func NewIdleMonitor(cfg IdleMonitorConfig) *IdleMonitor {
	return &IdleMonitor{
		timeout:             cfg.Timeout,
		logger:              cfg.Logger,
		lastActivity:        time.Now(),
		shutdownChan:        make(chan struct{}),
		stopChan:            make(chan struct{}),
		excludePaths:        cfg.ExcludePaths,
		backgroundWorkCheck: cfg.BackgroundWorkCheck,
	}
}

// Start begins monitoring for idle periods.
func (m *IdleMonitor) Start() {
	if m.timeout <= 0 {
		m.logger.Debug("idle monitoring disabled (timeout=0)")
		return
	}

	m.logger.Info("idle monitoring started", "timeout", m.timeout, "exclude_paths", m.excludePaths)

	go m.run()
}

// Stop stops the idle monitor.
func (m *IdleMonitor) Stop() {
	if m.timeout <= 0 {
		return
	}
	close(m.stopChan)
}

// ShutdownChan returns a channel that is closed when the idle timeout is
// reached.
func (m *IdleMonitor) ShutdownChan() <-chan struct{} {
	return m.shutdownChan
}

// Middleware returns an HTTP middleware that tracks request activity.
// Excluded paths pass through without touching the idle timer.
func (m *IdleMonitor) Middleware(next http.Handler) http.Handler {
	if m.timeout <= 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		excluded := false
		for _, prefix := range m.excludePaths {
			if strings.HasPrefix(r.URL.Path, prefix) {
				excluded = true
				break
			}
		}

		if !excluded {
			m.requestStart()
			defer m.requestEnd()
		}

		next.ServeHTTP(w, r)
	})
}

func (m *IdleMonitor) requestStart() {
	m.activeRequests.Add(1)
	m.touch()
}

func (m *IdleMonitor) requestEnd() {
	m.activeRequests.Add(-1)
	m.touch()
}

func (m *IdleMonitor) touch() {
	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

// run is the monitoring loop. The check interval stays well under the
// timeout so shutdown follows the idle period promptly.
func (m *IdleMonitor) run() {
	checkInterval := m.timeout / 6
	if checkInterval < 5*time.Second {
		checkInterval = 5 * time.Second
	}
	if checkInterval > 30*time.Second {
		checkInterval = 30 * time.Second
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			active := m.activeRequests.Load()
			m.mu.RLock()
			idleTime := time.Since(m.lastActivity)
			m.mu.RUnlock()

			backgroundBusy := false
			if m.backgroundWorkCheck != nil {
				backgroundBusy = m.backgroundWorkCheck()
			}

			// In-flight requests or running jobs reset the timer, so the
			// full idle period must elapse after the last work completes.
			if active > 0 || backgroundBusy {
				m.touch()
				idleTime = 0
			}

			if active == 0 && !backgroundBusy && idleTime >= m.timeout {
				m.logger.Info("idle timeout reached, signaling graceful shutdown",
					"idle_time", idleTime,
					"timeout", m.timeout,
				)
				close(m.shutdownChan)
				return
			}

			m.logger.Debug("idle check",
				"idle_time", idleTime,
				"active_requests", active,
				"background_busy", backgroundBusy,
				"timeout", m.timeout,
			)
		}
	}
}
