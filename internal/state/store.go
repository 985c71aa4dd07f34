package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/boshu2/orchestratord/internal/security"
)

const (
	orchestratorSubdir  = ".claude/orchestrator"
	stateFileName       = "state.json"
	featureListFileName = "feature_list.json"
	lockFileName        = "state.json.lock"
	notebookFileName    = "claude-progress.txt"
	initScriptFileName  = "init.sh"
	workersSubdir       = "workers"
)

// Store durably persists a single project directory's Session aggregate and
// regenerates its notebook file on every save. One Store exists per
// project directory, held by the process-wide registry (internal/registry).
type Store struct {
	projectDir string
	mu         *fairMutex
	flock      *flock.Flock
	log        zerolog.Logger
}

// Open constructs a Store rooted at projectDir, which must already be the
// value returned by security.ValidateProjectDir.
func Open(projectDir string, log zerolog.Logger) *Store {
	lockPath := filepath.Join(projectDir, orchestratorSubdir, lockFileName)
	return &Store{
		projectDir: projectDir,
		mu:         newFairMutex(),
		flock:      flock.New(lockPath),
		log:        log.With().Str("component", "state").Logger(),
	}
}

// ProjectDir returns the Store's project directory.
func (s *Store) ProjectDir() string { return s.projectDir }

func (s *Store) orchestratorDir() string {
	return filepath.Join(s.projectDir, orchestratorSubdir)
}

func (s *Store) statePath() string {
	return filepath.Join(s.orchestratorDir(), stateFileName)
}

func (s *Store) featureListPath() string {
	return filepath.Join(s.orchestratorDir(), featureListFileName)
}

func (s *Store) notebookPath() string {
	return filepath.Join(s.projectDir, notebookFileName)
}

func (s *Store) initScriptPath() string {
	return filepath.Join(s.projectDir, initScriptFileName)
}

// WorkersDir returns the directory the worker lifecycle manager writes its
// per-worker files into.
func (s *Store) WorkersDir() string {
	return filepath.Join(s.orchestratorDir(), workersSubdir)
}

// lock acquires both the in-process fair mutex and the cross-process
// advisory file lock for the duration of a transaction, returning an unlock
// function. If the directory does not exist yet (first-ever init), the
// flock acquisition creates it.
func (s *Store) lock() (func(), error) {
	s.mu.Lock()
	if err := os.MkdirAll(s.orchestratorDir(), 0700); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("create orchestrator directory: %w", err)
	}
	locked, err := s.flock.TryLock()
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("acquire state lock: %w", err)
	}
	if !locked {
		// Another process holds the lock; block until it releases rather
		// than failing the transaction outright.
		if err := s.flock.Lock(); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("acquire state lock: %w", err)
		}
	}
	return func() {
		_ = s.flock.Unlock()
		s.mu.Unlock()
	}, nil
}

// Load reads and schema-validates state.json. It returns (nil, nil) if no
// session has ever been initialized for this project directory. Corruption
// raises an *ErrCorrupt; callers must surface it, not silently truncate.
func (s *Store) Load() (*Session, error) {
	unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (*Session, error) {
	data, err := os.ReadFile(s.statePath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var sess Session
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sess); err != nil {
		return nil, &ErrCorrupt{Reason: fmt.Sprintf("unmarshal state.json: %v", err)}
	}

	if err := Validate(&sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Save updates LastUpdated, truncates ProgressLog to the most recent
// MaxProgressLogEntries entries, and atomically writes state.json,
// feature_list.json, and the regenerated notebook.
func (s *Store) Save(sess *Session) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()
	return s.saveLocked(sess)
}

func (s *Store) saveLocked(sess *Session) error {
	sess.LastUpdated = time.Now().UTC()
	if len(sess.ProgressLog) > MaxProgressLogEntries {
		sess.ProgressLog = sess.ProgressLog[len(sess.ProgressLog)-MaxProgressLogEntries:]
	}

	if err := Validate(sess); err != nil {
		return fmt.Errorf("refusing to save invalid session: %w", err)
	}

	if err := atomicWriteJSON(s.statePath(), sess); err != nil {
		return fmt.Errorf("write state.json: %w", err)
	}
	if err := atomicWriteJSON(s.featureListPath(), toFeatureListDigest(sess)); err != nil {
		return fmt.Errorf("write feature_list.json: %w", err)
	}
	if err := s.writeNotebookLocked(sess); err != nil {
		return fmt.Errorf("write notebook: %w", err)
	}

	s.log.Info().
		Str("status", string(sess.Status)).
		Int("features", len(sess.Features)).
		Msg("session saved")
	return nil
}

// Transaction loads the current Session (failing if none exists), applies
// fn, and saves the result — all under a single lock acquisition, so the
// whole load-modify-save sequence is atomic with respect to every other
// operation and the monitor. If fn returns an error, nothing is written.
func (s *Store) Transaction(fn func(sess *Session) error) (*Session, error) {
	unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("no session initialized for %s", s.projectDir)
	}

	if err := fn(sess); err != nil {
		return nil, err
	}

	if err := s.saveLocked(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Init creates a brand-new Session transactionally, refusing to clobber an
// existing one unless replace is true (orchestrator_init's "Creates or
// replaces" contract).
func (s *Store) Init(sess *Session, replace bool) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	existing, err := s.loadLocked()
	if err != nil && !isCorrupt(err) {
		return err
	}
	if existing != nil && !replace {
		return fmt.Errorf("a session already exists for %s", s.projectDir)
	}

	return s.saveLocked(sess)
}

func isCorrupt(err error) bool {
	_, ok := err.(*ErrCorrupt)
	return ok
}

// AppendLog loads the session, pushes a timestamped line, and saves —
// rewriting the notebook as part of Save.
func (s *Store) AppendLog(msg string) error {
	_, err := s.Transaction(func(sess *Session) error {
		sess.ProgressLog = append(sess.ProgressLog, formatLogLine(msg))
		return nil
	})
	return err
}

func formatLogLine(msg string) string {
	return "[" + time.Now().UTC().Format(time.RFC3339) + "] " + msg
}

// Clear removes state.json, feature_list.json, and the notebook. It does
// NOT kill workers; callers (internal/ops) compose with the worker manager
// for that before calling Clear.
func (s *Store) Clear() error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	for _, p := range []string{s.statePath(), s.featureListPath(), s.notebookPath()} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

// featureListDigest is the external, trimmed view written to
// feature_list.json for readers that do not want the full Session.
type featureListDigest struct {
	ProjectDir      string                   `json:"projectDir"`
	TaskDescription string                   `json:"taskDescription"`
	LastUpdated     time.Time                `json:"lastUpdated"`
	Features        []featureListDigestEntry `json:"features"`
}

type featureListDigestEntry struct {
	ID          string        `json:"id"`
	Description string        `json:"description"`
	Status      FeatureStatus `json:"status"`
	Passes      bool          `json:"passes"`
}

func toFeatureListDigest(sess *Session) featureListDigest {
	entries := make([]featureListDigestEntry, 0, len(sess.Features))
	for _, f := range sess.Features {
		passes := f.ValidationResult != nil && f.ValidationResult.Ok
		entries = append(entries, featureListDigestEntry{
			ID:          f.ID,
			Description: f.Description,
			Status:      f.Status,
			Passes:      passes,
		})
	}
	return featureListDigest{
		ProjectDir:      sess.ProjectDir,
		TaskDescription: sess.TaskDescription,
		LastUpdated:     sess.LastUpdated,
		Features:        entries,
	}
}

// SanitizedPath exposes security.ValidateRelativePath to other orchestrator
// packages so all of them resolve paths under the same project root through
// one choke point.
func (s *Store) SanitizedPath(rel string) (string, error) {
	return security.ValidateRelativePath(s.projectDir, rel)
}
