// Package state owns the Session aggregate: its schema, durable
// persistence (atomic write, cross-process locking), and the
// human-readable notebook and init-script side files described in
// the data model and state-store sections of the design.
package state

import "time"

// SessionStatus is the Session's lifecycle status.
type SessionStatus string

const (
	SessionInProgress        SessionStatus = "in_progress"
	SessionReviewing         SessionStatus = "reviewing"
	SessionCompleted         SessionStatus = "completed"
	SessionCompletedWithFail SessionStatus = "completed_with_failures"
	SessionPaused            SessionStatus = "paused"
)

func (s SessionStatus) valid() bool {
	switch s {
	case SessionInProgress, SessionReviewing, SessionCompleted, SessionCompletedWithFail, SessionPaused:
		return true
	}
	return false
}

// FeatureStatus is a Feature's lifecycle status.
type FeatureStatus string

const (
	FeaturePending    FeatureStatus = "pending"
	FeatureInProgress FeatureStatus = "in_progress"
	FeatureCompleted  FeatureStatus = "completed"
	FeatureFailed     FeatureStatus = "failed"
)

func (s FeatureStatus) valid() bool {
	switch s {
	case FeaturePending, FeatureInProgress, FeatureCompleted, FeatureFailed:
		return true
	}
	return false
}

// WorkerState is a WorkerStatus's process-level state.
type WorkerState string

const (
	WorkerRunning   WorkerState = "running"
	WorkerCompleted WorkerState = "completed"
	WorkerCrashed   WorkerState = "crashed"
	WorkerUnknown   WorkerState = "unknown"
)

func (s WorkerState) valid() bool {
	switch s {
	case WorkerRunning, WorkerCompleted, WorkerCrashed, WorkerUnknown:
		return true
	}
	return false
}

// GitVerification records before/after commit hashes and diff stats
// collected around a Feature's work, when git verification is enabled.
type GitVerification struct {
	BeforeCommit string `json:"before_commit,omitempty"`
	AfterCommit  string `json:"after_commit,omitempty"`
	FilesChanged int    `json:"files_changed,omitempty"`
	Insertions   int    `json:"insertions,omitempty"`
	Deletions    int    `json:"deletions,omitempty"`
}

// ValidationResult is the outcome of running a Feature's self-described
// validation/verification criteria.
type ValidationResult struct {
	Ok         bool   `json:"ok"`
	Command    string `json:"command,omitempty"`
	ExitCode   int    `json:"exit_code,omitempty"`
	Output     string `json:"output,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Feature is the unit of work.
type Feature struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Notes       string `json:"notes,omitempty"`
	LastError   string `json:"last_error,omitempty"`

	Status FeatureStatus `json:"status"`

	Attempts   int `json:"attempts"`
	MaxRetries int `json:"max_retries"`

	WorkerID string `json:"worker_id,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	DependsOn []string `json:"depends_on,omitempty"`

	Validation       string            `json:"validation,omitempty"`
	ValidationResult *ValidationResult `json:"validation_result,omitempty"`
	GitVerification  *GitVerification  `json:"git_verification,omitempty"`
}

// WorkerStatus is a process-level handle.
type WorkerStatus struct {
	SessionName string    `json:"session_name"`
	FeatureID   string    `json:"feature_id"`
	StartedAt   time.Time `json:"started_at"`
	LastChecked time.Time `json:"last_checked"`
	Status      WorkerState `json:"status"`
}

// ConfidenceConfig, ReviewConfig, and VerificationConfig are optional,
// self-describing configuration blocks layered on top of a Session by the
// out-of-scope confidence-scoring and review-worker collaborators;
// the core only ever reads VerificationConfig.
type ConfidenceConfig struct {
	Enabled           bool `json:"enabled"`
	MinConfidence     int  `json:"min_confidence,omitempty"`
}

type ReviewConfig struct {
	Enabled       bool `json:"enabled"`
	RequiredVotes int  `json:"required_votes,omitempty"`
}

type VerificationConfig struct {
	Enabled      bool     `json:"enabled"`
	Commands     []string `json:"commands,omitempty"`
	FailOnError  bool     `json:"fail_on_error,omitempty"`
	TimeoutSec   int      `json:"timeout_sec,omitempty"`
}

// MaxProgressLogEntries bounds Session.ProgressLog at rest.
const MaxProgressLogEntries = 1000

// Session is the root aggregate: at most one active Session per
// project directory.
type Session struct {
	ProjectDir      string `json:"project_dir"`
	TaskDescription string `json:"task_description"`

	Status SessionStatus `json:"status"`

	StartTime     time.Time  `json:"start_time"`
	LastUpdated   time.Time  `json:"last_updated"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	Features []*Feature               `json:"features"`
	Workers  map[string]*WorkerStatus `json:"workers"`

	ProgressLog []string `json:"progress_log"`

	ConfidenceConfig    *ConfidenceConfig    `json:"confidence_config,omitempty"`
	ReviewConfig        *ReviewConfig        `json:"review_config,omitempty"`
	VerificationConfig  *VerificationConfig  `json:"verification_config,omitempty"`
}

// FeatureByID returns the Feature with the given id, or nil if absent.
func (s *Session) FeatureByID(id string) *Feature {
	for _, f := range s.Features {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// Recompute derives Session.Status from its Features:
// completed only if every Feature is completed, completed_with_failures
// if any Feature is failed and none is in_progress/pending. Paused and
// reviewing are operator-driven states Recompute never overwrites.
func (s *Session) Recompute() {
	if s.Status == SessionPaused || s.Status == SessionReviewing {
		return
	}

	allCompleted := true
	anyFailed := false
	anyActive := false
	for _, f := range s.Features {
		switch f.Status {
		case FeatureCompleted:
		case FeatureFailed:
			anyFailed = true
			allCompleted = false
		default: // pending, in_progress
			anyActive = true
			allCompleted = false
		}
	}

	switch {
	case len(s.Features) > 0 && allCompleted:
		s.Status = SessionCompleted
		if s.CompletedAt == nil {
			now := time.Now().UTC()
			s.CompletedAt = &now
		}
	case anyFailed && !anyActive:
		s.Status = SessionCompletedWithFail
	default:
		s.Status = SessionInProgress
	}
}
