package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return Open(dir, zerolog.Nop()), dir
}

func newTestSession(projectDir string) *Session {
	now := time.Now().UTC()
	return &Session{
		ProjectDir:      projectDir,
		TaskDescription: "build the thing",
		Status:          SessionInProgress,
		StartTime:       now,
		LastUpdated:     now,
		Features: []*Feature{
			{ID: "feat-a", Description: "first", Status: FeaturePending, MaxRetries: 3},
			{ID: "feat-b", Description: "second", Status: FeaturePending, MaxRetries: 3, DependsOn: []string{"feat-a"}},
		},
		Workers:     map[string]*WorkerStatus{},
		ProgressLog: []string{},
	}
}

func TestStoreInitLoadRoundTrip(t *testing.T) {
	s, dir := testStore(t)
	sess := newTestSession(dir)

	if err := s.Init(sess, false); err != nil {
		t.Fatalf("Init: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load returned nil after Init")
	}
	if loaded.TaskDescription != sess.TaskDescription {
		t.Errorf("task description = %q, want %q", loaded.TaskDescription, sess.TaskDescription)
	}
	if len(loaded.Features) != 2 {
		t.Fatalf("got %d features, want 2", len(loaded.Features))
	}
}

func TestStoreLoadMissingReturnsNil(t *testing.T) {
	s, _ := testStore(t)
	sess, err := s.Load()
	if err != nil {
		t.Fatalf("Load on empty project dir: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected nil session, got %+v", sess)
	}
}

func TestStoreInitRefusesToClobber(t *testing.T) {
	s, dir := testStore(t)
	sess := newTestSession(dir)
	if err := s.Init(sess, false); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	if err := s.Init(sess, false); err == nil {
		t.Fatal("expected second Init without replace=true to fail")
	}
	if err := s.Init(sess, true); err != nil {
		t.Fatalf("Init with replace=true: %v", err)
	}
}

func TestStoreTransactionAppliesAndPersists(t *testing.T) {
	s, dir := testStore(t)
	sess := newTestSession(dir)
	if err := s.Init(sess, false); err != nil {
		t.Fatalf("Init: %v", err)
	}

	_, err := s.Transaction(func(sess *Session) error {
		f := sess.FeatureByID("feat-a")
		f.Status = FeatureInProgress
		f.WorkerID = "cc-worker-feat-a-abc123"
		sess.Workers[f.WorkerID] = &WorkerStatus{
			SessionName: f.WorkerID,
			FeatureID:   f.ID,
			StartedAt:   time.Now().UTC(),
			LastChecked: time.Now().UTC(),
			Status:      WorkerRunning,
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load after transaction: %v", err)
	}
	f := loaded.FeatureByID("feat-a")
	if f.Status != FeatureInProgress {
		t.Errorf("feat-a status = %q, want in_progress", f.Status)
	}
	if len(loaded.Workers) != 1 {
		t.Fatalf("got %d workers, want 1", len(loaded.Workers))
	}
}

func TestStoreTransactionRejectsInvalidResult(t *testing.T) {
	s, dir := testStore(t)
	sess := newTestSession(dir)
	if err := s.Init(sess, false); err != nil {
		t.Fatalf("Init: %v", err)
	}

	_, err := s.Transaction(func(sess *Session) error {
		sess.FeatureByID("feat-a").Status = FeatureInProgress // no worker_id set: invalid
		return nil
	})
	if err == nil {
		t.Fatal("expected Transaction to reject an invalid resulting session")
	}

	loaded, loadErr := s.Load()
	if loadErr != nil {
		t.Fatalf("Load: %v", loadErr)
	}
	if loaded.FeatureByID("feat-a").Status != FeaturePending {
		t.Error("invalid transaction must not have been persisted")
	}
}

func TestStoreTransactionNoExistingSession(t *testing.T) {
	s, _ := testStore(t)
	_, err := s.Transaction(func(sess *Session) error { return nil })
	if err == nil {
		t.Fatal("expected Transaction to fail when no session exists")
	}
}

func TestStoreAppendLogTruncates(t *testing.T) {
	s, dir := testStore(t)
	sess := newTestSession(dir)
	for i := 0; i < MaxProgressLogEntries-2; i++ {
		sess.ProgressLog = append(sess.ProgressLog, "preexisting")
	}
	if err := s.Init(sess, false); err != nil {
		t.Fatalf("Init: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := s.AppendLog("tick"); err != nil {
			t.Fatalf("AppendLog: %v", err)
		}
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.ProgressLog) != MaxProgressLogEntries {
		t.Errorf("progress log length = %d, want %d", len(loaded.ProgressLog), MaxProgressLogEntries)
	}
}

func TestStoreSaveWritesNotebookAndFeatureList(t *testing.T) {
	s, dir := testStore(t)
	sess := newTestSession(dir)
	if err := s.Init(sess, false); err != nil {
		t.Fatalf("Init: %v", err)
	}

	notebook := filepath.Join(dir, notebookFileName)
	data, err := os.ReadFile(notebook)
	if err != nil {
		t.Fatalf("read notebook: %v", err)
	}
	if len(data) == 0 {
		t.Error("notebook is empty")
	}

	featureList := filepath.Join(dir, orchestratorSubdir, featureListFileName)
	if _, err := os.Stat(featureList); err != nil {
		t.Errorf("feature_list.json missing: %v", err)
	}
}

func TestStoreClearRemovesFiles(t *testing.T) {
	s, dir := testStore(t)
	sess := newTestSession(dir)
	if err := s.Init(sess, false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load after Clear: %v", err)
	}
	if loaded != nil {
		t.Error("expected nil session after Clear")
	}
	if _, err := os.Stat(filepath.Join(dir, notebookFileName)); !os.IsNotExist(err) {
		t.Error("notebook should have been removed")
	}
}

func TestStoreClearOnEmptyProjectIsNotError(t *testing.T) {
	s, _ := testStore(t)
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear on empty project: %v", err)
	}
}

func TestStoreWriteInitScript(t *testing.T) {
	s, dir := testStore(t)
	sess := newTestSession(dir)
	if err := s.Init(sess, false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s.WriteInitScript("claude"); err != nil {
		t.Fatalf("WriteInitScript: %v", err)
	}

	path := filepath.Join(dir, initScriptFileName)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat init.sh: %v", err)
	}
	if info.Mode().Perm()&0100 == 0 {
		t.Error("init.sh should be executable by owner")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read init.sh: %v", err)
	}
	if len(data) == 0 {
		t.Error("init.sh is empty")
	}
}

func TestStoreLoadRejectsCorruptJSON(t *testing.T) {
	s, dir := testStore(t)
	sess := newTestSession(dir)
	if err := s.Init(sess, false); err != nil {
		t.Fatalf("Init: %v", err)
	}

	statePath := filepath.Join(dir, orchestratorSubdir, stateFileName)
	if err := os.WriteFile(statePath, []byte("{not json"), 0600); err != nil {
		t.Fatalf("corrupt state.json: %v", err)
	}

	if _, err := s.Load(); err == nil {
		t.Fatal("expected Load to reject corrupt JSON")
	}
}

func TestStoreSanitizedPathRejectsEscape(t *testing.T) {
	s, _ := testStore(t)
	if _, err := s.SanitizedPath("../../etc/passwd"); err == nil {
		t.Fatal("expected SanitizedPath to reject a path escaping the project dir")
	}
	if _, err := s.SanitizedPath("subdir/file.txt"); err != nil {
		t.Fatalf("expected a normal relative path to validate, got %v", err)
	}
}
