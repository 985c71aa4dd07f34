package state

import (
	"fmt"

	"github.com/boshu2/orchestratord/internal/security"
)

// ErrCorrupt wraps every validation failure raised by Validate so callers
// (internal/ops) can translate it into orcherr.StateCorruption without
// string-matching.
type ErrCorrupt struct {
	Reason string
}

func (e *ErrCorrupt) Error() string {
	return fmt.Sprintf("corrupt orchestrator state: %s", e.Reason)
}

// Validate checks s against the declarative OrchestratorStateSchema shape
// on every load: every enumerated field must be one of its known values,
// every Feature id and WorkerStatus session name must pass the security
// package's identifier checks, every dependsOn id must refer to an existing
// Feature, no dependsOn cycle may exist, and every invariant connecting
// Feature/WorkerStatus status must hold. It is called on every Load and
// again before every save, so an invalid Session is never written.
func Validate(s *Session) error {
	if s == nil {
		return &ErrCorrupt{Reason: "nil session"}
	}
	if !s.Status.valid() {
		return &ErrCorrupt{Reason: fmt.Sprintf("unknown session status %q", s.Status)}
	}
	if s.StartTime.After(s.LastUpdated) {
		return &ErrCorrupt{Reason: "start_time is after last_updated"}
	}
	if len(s.ProgressLog) > MaxProgressLogEntries {
		return &ErrCorrupt{Reason: fmt.Sprintf("progress_log has %d entries, exceeds max %d", len(s.ProgressLog), MaxProgressLogEntries)}
	}

	seen := make(map[string]bool, len(s.Features))
	for _, f := range s.Features {
		if err := security.ValidateFeatureID(f.ID); err != nil {
			return &ErrCorrupt{Reason: fmt.Sprintf("feature id: %v", err)}
		}
		if seen[f.ID] {
			return &ErrCorrupt{Reason: fmt.Sprintf("duplicate feature id %q", f.ID)}
		}
		seen[f.ID] = true

		if !f.Status.valid() {
			return &ErrCorrupt{Reason: fmt.Sprintf("feature %q: unknown status %q", f.ID, f.Status)}
		}
		if f.Attempts < 0 {
			return &ErrCorrupt{Reason: fmt.Sprintf("feature %q: negative attempts", f.ID)}
		}
		if f.Attempts > f.MaxRetries && f.Status != FeatureFailed {
			return &ErrCorrupt{Reason: fmt.Sprintf("feature %q: attempts (%d) exceed max_retries (%d) while not failed", f.ID, f.Attempts, f.MaxRetries)}
		}
		if f.Status == FeatureInProgress && f.WorkerID == "" {
			return &ErrCorrupt{Reason: fmt.Sprintf("feature %q: in_progress with no worker_id", f.ID)}
		}
		if f.Status != FeatureInProgress && f.WorkerID != "" {
			return &ErrCorrupt{Reason: fmt.Sprintf("feature %q: worker_id set while status is %q", f.ID, f.Status)}
		}
		if f.CompletedAt != nil && f.StartedAt != nil && f.CompletedAt.Before(*f.StartedAt) {
			return &ErrCorrupt{Reason: fmt.Sprintf("feature %q: completed_at before started_at", f.ID)}
		}
	}

	for _, f := range s.Features {
		for _, dep := range f.DependsOn {
			if _, err := securityValidateOrDupe(dep); err != nil {
				return &ErrCorrupt{Reason: fmt.Sprintf("feature %q: depends_on id: %v", f.ID, err)}
			}
			if !seen[dep] {
				return &ErrCorrupt{Reason: fmt.Sprintf("feature %q: depends_on unknown feature %q", f.ID, dep)}
			}
		}
	}
	if cycle := FindCycle(s.Features); cycle != "" {
		return &ErrCorrupt{Reason: fmt.Sprintf("dependency cycle detected at feature %q", cycle)}
	}

	runningWorkers := map[string]bool{}
	for name, w := range s.Workers {
		if w.SessionName != name {
			return &ErrCorrupt{Reason: fmt.Sprintf("worker key %q does not match session_name %q", name, w.SessionName)}
		}
		if err := security.ValidateSessionName(w.SessionName); err != nil {
			return &ErrCorrupt{Reason: fmt.Sprintf("worker session name: %v", err)}
		}
		if !w.Status.valid() {
			return &ErrCorrupt{Reason: fmt.Sprintf("worker %q: unknown status %q", name, w.Status)}
		}
		if !seen[w.FeatureID] {
			return &ErrCorrupt{Reason: fmt.Sprintf("worker %q: references unknown feature %q", name, w.FeatureID)}
		}
		if w.Status == WorkerRunning {
			if runningWorkers[w.FeatureID] {
				return &ErrCorrupt{Reason: fmt.Sprintf("feature %q: more than one running worker", w.FeatureID)}
			}
			runningWorkers[w.FeatureID] = true
		}
	}

	for _, f := range s.Features {
		hasRunning := runningWorkers[f.ID]
		if f.Status == FeatureInProgress && !hasRunningOrRecent(s, f.ID) {
			return &ErrCorrupt{Reason: fmt.Sprintf("feature %q: in_progress with no corresponding worker", f.ID)}
		}
		if f.Status != FeatureInProgress && hasRunning {
			return &ErrCorrupt{Reason: fmt.Sprintf("feature %q: not in_progress but has a running worker", f.ID)}
		}
	}

	return nil
}

// hasRunningOrRecent reports whether feature id has any WorkerStatus at all
// (running, completed, or crashed) — the invariant only requires that some
// worker record exists once a feature is in_progress, not that it is still
// "running" (a completed/crashed worker is still pending an explicit
// mark_complete acknowledgement, per the monitor/operations separation).
func hasRunningOrRecent(s *Session, featureID string) bool {
	for _, w := range s.Workers {
		if w.FeatureID == featureID {
			return true
		}
	}
	return false
}

func securityValidateOrDupe(id string) (string, error) {
	if err := security.ValidateFeatureID(id); err != nil {
		return "", err
	}
	return id, nil
}
