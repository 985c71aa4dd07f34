package scheduler

import (
	"testing"

	"github.com/boshu2/orchestratord/internal/orcherr"
	"github.com/boshu2/orchestratord/internal/state"
)

func newSession(features ...*state.Feature) *state.Session {
	return &state.Session{
		Features: features,
		Workers:  map[string]*state.WorkerStatus{},
	}
}

func feature(id string, status state.FeatureStatus, dependsOn ...string) *state.Feature {
	return &state.Feature{ID: id, Status: status, MaxRetries: 3, DependsOn: dependsOn}
}

func TestCanStart_UnmetDependency(t *testing.T) {
	sess := newSession(
		feature("feat-1", state.FeaturePending),
		feature("feat-2", state.FeaturePending, "feat-1"),
	)
	err := CanStart(sess, "feat-2")
	if orcherr.KindOf(err) != orcherr.UnmetDependency {
		t.Fatalf("expected UnmetDependency, got %v", err)
	}
}

func TestCanStart_AdmitsWhenDependenciesComplete(t *testing.T) {
	sess := newSession(
		feature("feat-1", state.FeatureCompleted),
		feature("feat-2", state.FeaturePending, "feat-1"),
	)
	if err := CanStart(sess, "feat-2"); err != nil {
		t.Fatalf("expected admission, got %v", err)
	}
}

func TestCanStart_RetryBudgetExhausted(t *testing.T) {
	f := feature("feat-1", state.FeaturePending)
	f.Attempts = 3
	sess := newSession(f)
	err := CanStart(sess, "feat-1")
	if orcherr.KindOf(err) != orcherr.RetryBudgetExhausted {
		t.Fatalf("expected RetryBudgetExhausted, got %v", err)
	}
}

func TestCanStart_NotPending(t *testing.T) {
	sess := newSession(feature("feat-1", state.FeatureInProgress))
	err := CanStart(sess, "feat-1")
	if orcherr.KindOf(err) != orcherr.InvalidTransition {
		t.Fatalf("expected InvalidTransition, got %v", err)
	}
}

func TestValidateBatch_DetectsDuplicateAndUnmet(t *testing.T) {
	sess := newSession(
		feature("feat-1", state.FeaturePending),
		feature("feat-2", state.FeaturePending, "feat-1"),
	)
	issues := ValidateBatch(sess, []string{"feat-1", "feat-1", "feat-2"})
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues (duplicate + unmet dep), got %d: %+v", len(issues), issues)
	}
}

func TestDecideRetry_WithinBudget(t *testing.T) {
	f := &state.Feature{Attempts: 1, MaxRetries: 3}
	d := DecideRetry(f)
	if !d.Retry {
		t.Fatal("expected retry to be allowed")
	}
}

func TestDecideRetry_Exhausted(t *testing.T) {
	f := &state.Feature{Attempts: 3, MaxRetries: 3}
	d := DecideRetry(f)
	if d.Retry {
		t.Fatal("expected retry budget exhausted")
	}
}

func TestApplyFailure_RetriesResetsToPending(t *testing.T) {
	f := &state.Feature{Attempts: 1, MaxRetries: 3, Status: state.FeatureInProgress, WorkerID: "w1"}
	ApplyFailure(f, RetryDecision{Retry: true}, "boom")
	if f.Status != state.FeaturePending || f.WorkerID != "" || f.LastError != "boom" {
		t.Fatalf("unexpected feature state after retry: %+v", f)
	}
}

func TestApplyFailure_ExhaustedBecomesFailed(t *testing.T) {
	f := &state.Feature{Attempts: 3, MaxRetries: 3, Status: state.FeatureInProgress, WorkerID: "w1"}
	ApplyFailure(f, RetryDecision{Retry: false}, "boom")
	if f.Status != state.FeatureFailed {
		t.Fatalf("expected failed, got %q", f.Status)
	}
}

func TestApplyRetryFeature_NoOpWhenPending(t *testing.T) {
	f := &state.Feature{Status: state.FeaturePending, Attempts: 2}
	ApplyRetryFeature(f)
	if f.Attempts != 2 {
		t.Fatalf("expected no-op, attempts changed to %d", f.Attempts)
	}
}

func TestApplyRetryFeature_ResetsFailed(t *testing.T) {
	f := &state.Feature{Status: state.FeatureFailed, Attempts: 3, LastError: "x"}
	ApplyRetryFeature(f)
	if f.Status != state.FeaturePending || f.Attempts != 0 || f.LastError != "" {
		t.Fatalf("unexpected reset result: %+v", f)
	}
}
