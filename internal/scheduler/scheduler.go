// Package scheduler implements the dependency-aware admission rule and
// retry policy. It is a pull scheduler: there is no background scheduling
// thread, only pure functions over a *state.Session that internal/ops
// calls from inside a single state.Store.Transaction.
package scheduler

import (
	"github.com/boshu2/orchestratord/internal/orcherr"
	"github.com/boshu2/orchestratord/internal/state"
)

// CanStart reports whether featureID may transition pending -> in_progress:
// the Feature must exist, be pending, have every dependsOn entry completed,
// and have attempts < maxRetries. A failed Feature whose retry budget is
// spent reports RetryBudgetExhausted rather than InvalidTransition. It
// returns the first unmet dependency id via the returned error's Details
// when that is the failure reason.
func CanStart(sess *state.Session, featureID string) error {
	f := sess.FeatureByID(featureID)
	if f == nil {
		return orcherr.Newf(orcherr.UnknownFeature, "no such feature %q", featureID)
	}
	exhausted := f.Attempts >= f.MaxRetries && f.MaxRetries > 0
	if f.Status != state.FeaturePending && !(f.Status == state.FeatureFailed && exhausted) {
		return orcherr.Newf(orcherr.InvalidTransition, "feature %q is %q, not pending", featureID, f.Status).
			WithDetails(map[string]any{"status": string(f.Status)})
	}
	if exhausted {
		return orcherr.Newf(orcherr.RetryBudgetExhausted, "feature %q has exhausted its retry budget (%d/%d)", featureID, f.Attempts, f.MaxRetries).
			WithDetails(map[string]any{"attempts": f.Attempts, "max_retries": f.MaxRetries})
	}
	if dep := firstUnmetDependency(sess, f); dep != "" {
		return orcherr.Newf(orcherr.UnmetDependency, "feature %q depends on %q, which is not completed", featureID, dep).
			WithDetails(map[string]any{"depends_on": dep})
	}
	return nil
}

func firstUnmetDependency(sess *state.Session, f *state.Feature) string {
	for _, dep := range f.DependsOn {
		d := sess.FeatureByID(dep)
		if d == nil || d.Status != state.FeatureCompleted {
			return dep
		}
	}
	return ""
}

// ValidationIssue names one reason a batch admission request
// (start_parallel_workers) would fail for one of its feature ids.
type ValidationIssue struct {
	FeatureID string
	Err       error
}

// ValidateBatch reports every issue found across featureIDs: unknown ids,
// non-pending features, unmet dependencies, and duplicates within the
// batch itself. StartParallelWorkers must call this first and refuse the
// whole batch atomically if the returned slice is non-empty.
func ValidateBatch(sess *state.Session, featureIDs []string) []ValidationIssue {
	var issues []ValidationIssue

	seen := make(map[string]bool, len(featureIDs))
	for _, id := range featureIDs {
		if seen[id] {
			issues = append(issues, ValidationIssue{
				FeatureID: id,
				Err:       orcherr.Newf(orcherr.InvalidInput, "feature %q appears more than once in the batch", id),
			})
			continue
		}
		seen[id] = true

		if err := CanStart(sess, id); err != nil {
			issues = append(issues, ValidationIssue{FeatureID: id, Err: err})
		}
	}
	return issues
}

// CountInProgress counts how many Features are currently in_progress
// within a Session, for enforcing the back-pressure cap (default 10).
func CountInProgress(sess *state.Session) int {
	n := 0
	for _, f := range sess.Features {
		if f.Status == state.FeatureInProgress {
			n++
		}
	}
	return n
}

// RetryDecision is the outcome of applying the retry policy to a
// mark_complete(success=false) call.
type RetryDecision struct {
	// Retry is true if the Feature should be reset to pending; false means
	// the retry budget is exhausted and the Feature becomes failed.
	Retry bool
}

// DecideRetry applies the retry policy: attempts < maxRetries resets to
// pending, attempts >= maxRetries makes the Feature terminally failed.
// Callers are expected to have already incremented Attempts at spawn time,
// so this only compares the post-increment count.
func DecideRetry(f *state.Feature) RetryDecision {
	return RetryDecision{Retry: f.Attempts < f.MaxRetries}
}

// ApplyFailure mutates f per the chosen RetryDecision: pending (clear
// worker, retain lastError) or terminally failed.
func ApplyFailure(f *state.Feature, decision RetryDecision, lastError string) {
	f.LastError = lastError
	f.WorkerID = ""
	if decision.Retry {
		f.Status = state.FeaturePending
		f.StartedAt = nil
	} else {
		f.Status = state.FeatureFailed
	}
}

// ApplyRetryFeature resets a failed Feature back to pending with a clean
// retry budget, per the explicit retry_feature operation. It is a no-op
// (not an error) if the Feature is already pending.
func ApplyRetryFeature(f *state.Feature) {
	if f.Status == state.FeaturePending {
		return
	}
	f.Status = state.FeaturePending
	f.Attempts = 0
	f.LastError = ""
	f.WorkerID = ""
	f.StartedAt = nil
	f.CompletedAt = nil
}
