// Package monitor runs the background loop that polls every in-flight
// worker session for completion and folds the result back into the
// session's state. Polling (not a push notification from the worker) is
// authoritative — the fsnotify watcher here is purely a latency
// optimization that wakes a poll early, mirroring how a tail/session
// watcher elsewhere in this ecosystem debounces filesystem events into a
// single rebuild signal rather than trusting the watch itself.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/boshu2/orchestratord/internal/state"
	"github.com/boshu2/orchestratord/internal/worker"
)

// Checker is the subset of *worker.Manager the monitor depends on, so tests
// can substitute a fake.
type Checker interface {
	CheckAllWorkers(ctx context.Context, sessionNames []string) map[string]worker.Observation
}

// Monitor polls a single project's running workers on a fixed interval,
// applying observed completions/crashes back into the Session via a single
// state.Store.Transaction call per tick.
type Monitor struct {
	store   *state.Store
	checker Checker
	log     zerolog.Logger

	interval        time.Duration
	maxConsecErrors int

	mu      sync.Mutex
	cancel  context.CancelFunc
	wake    chan struct{}
	running bool
}

// New constructs a Monitor. It does not start polling until Start is called.
func New(store *state.Store, checker Checker, interval time.Duration, maxConsecErrors int, log zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if maxConsecErrors <= 0 {
		maxConsecErrors = 5
	}
	return &Monitor{
		store:           store,
		checker:         checker,
		log:             log.With().Str("component", "monitor").Logger(),
		interval:        interval,
		maxConsecErrors: maxConsecErrors,
		wake:            make(chan struct{}, 1),
	}
}

// Start launches the poll loop in a goroutine. Calling Start on an
// already-running Monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	go m.runWatcher(ctx)
	go m.loop(ctx)
}

// Stop cancels the context of the poll loop and the watcher and returns
// without waiting for either goroutine to exit. Safe to call multiple times.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.cancel()
	m.running = false
}

func (m *Monitor) loop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	consecutiveErrors := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-m.wake:
		}

		if err := m.tick(ctx); err != nil {
			consecutiveErrors++
			m.log.Warn().Err(err).Int("consecutive_errors", consecutiveErrors).Msg("monitor tick failed")
			if consecutiveErrors >= m.maxConsecErrors {
				m.log.Error().Int("consecutive_errors", consecutiveErrors).Msg("monitor stopping after too many consecutive errors")
				_ = m.store.AppendLog("completion monitor stopped after repeated errors; restart with resume")
				m.mu.Lock()
				if ctx.Err() == nil {
					m.running = false
					m.cancel()
				}
				m.mu.Unlock()
				return
			}
			continue
		}
		consecutiveErrors = 0
	}
}

// tick runs a single poll. Tests call it directly to drive the monitor
// synchronously without waiting on the ticker.
func (m *Monitor) tick(ctx context.Context) error {
	sess, err := m.store.Load()
	if err != nil {
		return err
	}
	if sess == nil || len(sess.Workers) == 0 {
		return nil
	}

	names := make([]string, 0, len(sess.Workers))
	for name := range sess.Workers {
		names = append(names, name)
	}
	observations := m.checker.CheckAllWorkers(ctx, names)

	_, err = m.store.Transaction(func(sess *state.Session) error {
		for name, obs := range observations {
			w, ok := sess.Workers[name]
			if !ok {
				continue
			}
			w.LastChecked = time.Now().UTC()
			switch obs.State {
			case worker.ObservedRunning:
				w.Status = state.WorkerRunning
			case worker.ObservedCompleted:
				w.Status = state.WorkerCompleted
			case worker.ObservedCrashed:
				if w.Status != state.WorkerCrashed {
					m.log.Error().Str("worker", name).Str("feature", w.FeatureID).Msg("worker crashed")
					sess.ProgressLog = append(sess.ProgressLog, "["+time.Now().UTC().Format(time.RFC3339)+"] worker "+name+" for feature "+w.FeatureID+" crashed")
				}
				w.Status = state.WorkerCrashed
			default:
				w.Status = state.WorkerUnknown
			}
		}
		sess.Recompute()
		return nil
	})
	return err
}

// runWatcher starts a best-effort fsnotify watch on the workers directory
// and nudges the poll loop awake on any write, so a worker that finishes
// seconds after a tick doesn't sit idle until the next scheduled poll. A
// failure to start the watcher is logged and otherwise ignored — the
// ticker-driven loop remains correct without it.
func (m *Monitor) runWatcher(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.log.Warn().Err(err).Msg("fsnotify watcher unavailable, falling back to ticker-only polling")
		return
	}
	defer watcher.Close()

	if err := watcher.Add(m.store.WorkersDir()); err != nil {
		m.log.Warn().Err(err).Msg("could not watch workers directory")
		return
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-watcher.Events:
			if !ok {
				return
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(500*time.Millisecond, m.nudge)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.log.Warn().Err(err).Msg("fsnotify watcher error")
		}
	}
}

func (m *Monitor) nudge() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}
