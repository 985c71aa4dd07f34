// Package worker manages the lifecycle of worker processes: one terminal
// multiplexer session per in-flight Feature, communicating with the
// orchestrator entirely through files on disk (a prompt handed in at
// launch, and done/status/confidence markers reported back) since the
// worker is an independently running agent process, not a library call.
package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/boshu2/orchestratord/internal/orcherr"
	"github.com/boshu2/orchestratord/internal/security"
)

// Observation is what CheckWorker learns about a session on a single poll.
// NextCursor is the byte offset a caller passes back on its next poll to
// read only log output it has not seen yet.
type Observation struct {
	State      ObservedState
	Confidence *float64
	LogTail    string
	NextCursor int64
}

// ObservedState mirrors state.WorkerState but lives in this package so
// worker never needs to import internal/state just to report an outcome;
// internal/ops is the only place both vocabularies meet.
type ObservedState string

const (
	ObservedRunning   ObservedState = "running"
	ObservedCompleted ObservedState = "completed"
	ObservedCrashed   ObservedState = "crashed"
	ObservedUnknown   ObservedState = "unknown"
)

// sessionBackend is the subset of Mux's behavior Manager depends on. Tests
// substitute a fake implementation so worker lifecycle logic can be
// exercised without a real terminal multiplexer installed.
type sessionBackend interface {
	NewSession(ctx context.Context, name, workDir string, command ...string) error
	PipePane(ctx context.Context, name, logPath string) error
	SendKeys(ctx context.Context, name, text string) error
	HasSession(ctx context.Context, name string) bool
	KillSession(ctx context.Context, name string) error
	CapturePane(ctx context.Context, name string) (string, error)
}

// Manager starts, messages, polls, and kills worker sessions for a single
// project directory. One Manager is held per project by the registry.
type Manager struct {
	mux         sessionBackend
	workersDir  string
	agentBinary string
	log         zerolog.Logger
}

// NewManager constructs a Manager. workersDir must already exist or be
// creatable by the caller (internal/state.Store.WorkersDir()'s parent is
// created by Store's own lock path).
func NewManager(mux sessionBackend, workersDir, agentBinary string, log zerolog.Logger) *Manager {
	return &Manager{
		mux:         mux,
		workersDir:  workersDir,
		agentBinary: agentBinary,
		log:         log.With().Str("component", "worker").Logger(),
	}
}

// StartSpec describes one worker launch request.
type StartSpec struct {
	FeatureID string
	Prompt    string
	WorkDir   string
}

// StartResult is what StartWorker (and StartParallelWorkers) returns per
// feature.
type StartResult struct {
	FeatureID   string
	SessionName string
	Err         error
}

// StartWorker launches a new session for spec.FeatureID: it picks a unique
// session name, writes the prompt file, and starts the multiplexer session
// running the agent binary with the prompt handed over as a file path. The
// prompt text itself never appears in the argv.
func (m *Manager) StartWorker(ctx context.Context, spec StartSpec) (string, error) {
	if err := security.ValidateFeatureID(spec.FeatureID); err != nil {
		return "", orcherr.Wrap(orcherr.InvalidInput, err, "invalid feature id")
	}
	if err := os.MkdirAll(m.workersDir, 0700); err != nil {
		return "", orcherr.Wrap(orcherr.FilesystemError, err, "create workers directory")
	}

	name, err := security.NewWorkerSessionName(spec.FeatureID, func(candidate string) bool {
		return m.mux.HasSession(ctx, candidate)
	})
	if err != nil {
		return "", orcherr.Wrap(orcherr.Concurrency, err, "allocate worker session name")
	}

	l := newLayout(m.workersDir, name)
	if err := atomicWrite(l.promptPath(), []byte(spec.Prompt), 0600); err != nil {
		return "", orcherr.Wrap(orcherr.FilesystemError, err, "write prompt file")
	}
	for _, p := range []string{l.donePath(), l.statusPath(), l.confidencePath(), l.inboxPath(), l.logPath()} {
		_ = os.Remove(p)
	}

	command := []string{m.agentBinary, "--prompt-file", l.promptPath(), "--workdir", spec.WorkDir}
	if err := m.mux.NewSession(ctx, name, spec.WorkDir, command...); err != nil {
		return "", orcherr.Wrap(orcherr.SubprocessFailed, err, "start worker session")
	}
	if err := m.mux.PipePane(ctx, name, l.logPath()); err != nil {
		m.log.Warn().Err(err).Str("session", name).Msg("could not attach log capture; falling back to pane snapshots")
	}

	m.log.Info().Str("session", name).Str("feature", spec.FeatureID).Msg("worker started")
	return name, nil
}

// StartParallelWorkers launches every spec concurrently, bounded by
// maxParallel goroutines, collecting per-feature results in input order. A
// spawn failure is recorded on its own result rather than aborting the
// rest of the batch; admission-level all-or-nothing validation is the ops
// layer's job, not this one's.
func (m *Manager) StartParallelWorkers(ctx context.Context, specs []StartSpec, maxParallel int) []StartResult {
	results := fanOut(ctx, maxParallel, specs, func(sp StartSpec) (string, error) {
		return m.StartWorker(ctx, sp)
	})

	out := make([]StartResult, len(results))
	for i, r := range results {
		out[i] = StartResult{FeatureID: specs[r.Index].FeatureID, SessionName: r.Value, Err: r.Err}
	}
	return out
}

// SendWorkerMessage drops message into the worker's inbox file via atomic
// rename; the agent polls its inbox on its own schedule and the
// orchestrator never blocks on acknowledgement. A fixed notice is typed
// into the pane afterward so an interactive agent notices sooner — the
// message text itself never travels through send-keys.
func (m *Manager) SendWorkerMessage(ctx context.Context, sessionName, message string) error {
	if err := security.ValidateSessionName(sessionName); err != nil {
		return orcherr.Wrap(orcherr.InvalidInput, err, "invalid session name")
	}
	if !m.mux.HasSession(ctx, sessionName) {
		return orcherr.Newf(orcherr.UnknownWorker, "no running session named %q", sessionName)
	}
	l := newLayout(m.workersDir, sessionName)
	if err := atomicWrite(l.inboxPath(), []byte(message), 0600); err != nil {
		return orcherr.Wrap(orcherr.FilesystemError, err, "write inbox file")
	}
	if err := m.mux.SendKeys(ctx, sessionName, "orchestrator: new message in inbox"); err != nil {
		m.log.Debug().Err(err).Str("session", sessionName).Msg("inbox nudge failed")
	}
	return nil
}

// maxLogWindow bounds how many log bytes a single CheckWorker call returns.
const maxLogWindow = 64 * 1024

// CheckWorker polls one session's liveness and its filesystem side-channel
// markers. A session that has written .done is treated as finished
// regardless of whether the multiplexer session itself has already exited;
// a session that is simply gone with no .done file is reported crashed,
// since a worker that exits cleanly is expected to signal first.
//
// cursor is the byte offset into the session's captured log to resume
// reading from; pass 0 (or a stale offset past a truncated file) to read
// the most recent window. When no log capture exists the pane snapshot is
// returned instead and NextCursor stays 0.
func (m *Manager) CheckWorker(ctx context.Context, sessionName string, cursor int64) (Observation, error) {
	if err := security.ValidateSessionName(sessionName); err != nil {
		return Observation{}, orcherr.Wrap(orcherr.InvalidInput, err, "invalid session name")
	}

	l := newLayout(m.workersDir, sessionName)
	obs := Observation{State: ObservedUnknown}

	if _, err := os.Stat(l.donePath()); err == nil {
		obs.State = ObservedCompleted
		if status, err := readTrimmed(l.statusPath()); err == nil && strings.EqualFold(status, "failure") {
			obs.State = ObservedCrashed
		}
	} else if m.mux.HasSession(ctx, sessionName) {
		obs.State = ObservedRunning
	} else {
		obs.State = ObservedCrashed
	}

	if raw, err := readTrimmed(l.confidencePath()); err == nil {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			obs.Confidence = &v
		}
	}

	if tail, next, err := readLogWindow(l.logPath(), cursor); err == nil {
		obs.LogTail = tail
		obs.NextCursor = next
	} else if obs.State == ObservedRunning {
		if tail, err := m.mux.CapturePane(ctx, sessionName); err == nil {
			obs.LogTail = tail
		}
	}

	return obs, nil
}

// readLogWindow reads up to maxLogWindow bytes of path starting at cursor.
// A cursor beyond the current size (the file was recreated) rewinds to the
// start. Missing files are reported as an error for the caller's fallback.
func readLogWindow(path string, cursor int64) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	}
	size := info.Size()
	if cursor < 0 || cursor > size {
		cursor = 0
	}
	if size-cursor > maxLogWindow {
		cursor = size - maxLogWindow
	}
	buf := make([]byte, size-cursor)
	n, err := f.ReadAt(buf, cursor)
	if err != nil && n == 0 {
		return "", cursor, err
	}
	return string(buf[:n]), cursor + int64(n), nil
}

// CheckAllWorkers polls every named session with cursor 0 (the most recent
// log window) and returns each Observation keyed by session name; a
// per-session error does not abort the batch.
func (m *Manager) CheckAllWorkers(ctx context.Context, sessionNames []string) map[string]Observation {
	out := make(map[string]Observation, len(sessionNames))
	for _, name := range sessionNames {
		obs, err := m.CheckWorker(ctx, name, 0)
		if err != nil {
			out[name] = Observation{State: ObservedUnknown}
			continue
		}
		out[name] = obs
	}
	return out
}

// KillWorker terminates a session. Its side-channel files stay on disk;
// StartWorker removes any stale markers for a session name before launching
// it.
func (m *Manager) KillWorker(ctx context.Context, sessionName string) error {
	if err := security.ValidateSessionName(sessionName); err != nil {
		return orcherr.Wrap(orcherr.InvalidInput, err, "invalid session name")
	}
	if err := m.mux.KillSession(ctx, sessionName); err != nil {
		return orcherr.Wrap(orcherr.SubprocessFailed, err, "kill worker session")
	}
	return nil
}

// Shutdown kills every named session, collecting errors rather than
// stopping at the first failure, since this is primarily called from
// signal handling where every worker should get a termination attempt.
func (m *Manager) Shutdown(ctx context.Context, sessionNames []string) []error {
	var errs []error
	for _, name := range sessionNames {
		if err := m.KillWorker(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errs
}

// atomicWrite writes data to path via a same-directory temp file and
// rename, so a polling reader never observes a partial file.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func readTrimmed(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	return "", scanner.Err()
}
