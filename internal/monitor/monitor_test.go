package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/boshu2/orchestratord/internal/state"
	"github.com/boshu2/orchestratord/internal/worker"
)

type fakeChecker struct {
	mu       sync.Mutex
	observed map[string]worker.Observation
	calls    int
}

func (f *fakeChecker) CheckAllWorkers(ctx context.Context, sessionNames []string) map[string]worker.Observation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make(map[string]worker.Observation, len(sessionNames))
	for _, n := range sessionNames {
		if obs, ok := f.observed[n]; ok {
			out[n] = obs
			continue
		}
		out[n] = worker.Observation{State: worker.ObservedRunning}
	}
	return out
}

func (f *fakeChecker) set(name string, obs worker.Observation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observed[name] = obs
}

func newTestMonitor(t *testing.T) (*Monitor, *state.Store, *fakeChecker) {
	t.Helper()
	store := state.Open(t.TempDir(), zerolog.Nop())
	fc := &fakeChecker{observed: map[string]worker.Observation{}}
	m := New(store, fc, 10*time.Millisecond, 5, zerolog.Nop())
	return m, store, fc
}

// seedSession persists a session with one in_progress feature and one
// running worker.
func seedSession(t *testing.T, store *state.Store, workerName string) {
	t.Helper()
	now := time.Now().UTC()
	sess := &state.Session{
		ProjectDir:      store.ProjectDir(),
		TaskDescription: "task",
		Status:          state.SessionInProgress,
		StartTime:       now,
		LastUpdated:     now,
		Features: []*state.Feature{{
			ID:         "feat-a",
			Status:     state.FeatureInProgress,
			Attempts:   1,
			MaxRetries: 3,
			WorkerID:   workerName,
			StartedAt:  &now,
		}},
		Workers: map[string]*state.WorkerStatus{
			workerName: {
				SessionName: workerName,
				FeatureID:   "feat-a",
				StartedAt:   now,
				LastChecked: now,
				Status:      state.WorkerRunning,
			},
		},
	}
	if err := store.Init(sess, false); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func TestTickNoSessionIsNoop(t *testing.T) {
	m, _, fc := newTestMonitor(t)
	if err := m.tick(context.Background()); err != nil {
		t.Fatalf("tick with no session: %v", err)
	}
	if fc.calls != 0 {
		t.Fatalf("expected no checker calls, got %d", fc.calls)
	}
}

func TestTickMarksWorkerCompleted(t *testing.T) {
	m, store, fc := newTestMonitor(t)
	seedSession(t, store, "cc-worker-feat-a-abc12345")
	fc.set("cc-worker-feat-a-abc12345", worker.Observation{State: worker.ObservedCompleted})

	if err := m.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	sess, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	w := sess.Workers["cc-worker-feat-a-abc12345"]
	if w.Status != state.WorkerCompleted {
		t.Fatalf("worker status = %q, want completed", w.Status)
	}
	// The monitor never advances Feature state; that is mark_complete's job.
	if got := sess.FeatureByID("feat-a").Status; got != state.FeatureInProgress {
		t.Fatalf("feature status = %q, want in_progress", got)
	}
}

func TestTickMarksWorkerCrashed(t *testing.T) {
	m, store, fc := newTestMonitor(t)
	seedSession(t, store, "cc-worker-feat-a-abc12345")
	fc.set("cc-worker-feat-a-abc12345", worker.Observation{State: worker.ObservedCrashed})

	if err := m.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	sess, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := sess.Workers["cc-worker-feat-a-abc12345"].Status; got != state.WorkerCrashed {
		t.Fatalf("worker status = %q, want crashed", got)
	}
}

func TestTickRefreshesLastChecked(t *testing.T) {
	m, store, _ := newTestMonitor(t)
	seedSession(t, store, "cc-worker-feat-a-abc12345")

	before, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	was := before.Workers["cc-worker-feat-a-abc12345"].LastChecked

	time.Sleep(5 * time.Millisecond)
	if err := m.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	after, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !after.Workers["cc-worker-feat-a-abc12345"].LastChecked.After(was) {
		t.Fatal("expected last_checked to advance")
	}
}

func TestTickFailsOnCorruptState(t *testing.T) {
	m, store, _ := newTestMonitor(t)
	seedSession(t, store, "cc-worker-feat-a-abc12345")

	statePath := filepath.Join(store.ProjectDir(), ".claude", "orchestrator", "state.json")
	if err := os.WriteFile(statePath, []byte("{not json"), 0600); err != nil {
		t.Fatalf("corrupt state: %v", err)
	}
	if err := m.tick(context.Background()); err == nil {
		t.Fatal("expected tick to surface corrupt state")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	m, store, _ := newTestMonitor(t)
	seedSession(t, store, "cc-worker-feat-a-abc12345")

	ctx := context.Background()
	m.Start(ctx)
	m.Start(ctx) // second Start is a no-op
	m.Stop()
	m.Stop() // second Stop is a no-op
}

func TestLoopPollsOnInterval(t *testing.T) {
	m, store, fc := newTestMonitor(t)
	seedSession(t, store, "cc-worker-feat-a-abc12345")
	fc.set("cc-worker-feat-a-abc12345", worker.Observation{State: worker.ObservedCompleted})

	m.Start(context.Background())
	defer m.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sess, err := store.Load()
		if err == nil && sess != nil {
			if w := sess.Workers["cc-worker-feat-a-abc12345"]; w != nil && w.Status == state.WorkerCompleted {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("monitor never applied the observed completion")
}
