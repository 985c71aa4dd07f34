package state

import "testing"

func validSession() *Session {
	return &Session{
		Status: SessionInProgress,
		Features: []*Feature{
			{ID: "a", Status: FeaturePending, MaxRetries: 3},
			{ID: "b", Status: FeaturePending, MaxRetries: 3, DependsOn: []string{"a"}},
		},
		Workers: map[string]*WorkerStatus{},
	}
}

func TestValidateAcceptsWellFormedSession(t *testing.T) {
	if err := Validate(validSession()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsNil(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Fatal("expected error for nil session")
	}
}

func TestValidateRejectsUnknownStatus(t *testing.T) {
	s := validSession()
	s.Status = "bogus"
	if err := Validate(s); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestValidateRejectsDuplicateFeatureID(t *testing.T) {
	s := validSession()
	s.Features = append(s.Features, &Feature{ID: "a", Status: FeaturePending})
	if err := Validate(s); err == nil {
		t.Fatal("expected error for duplicate feature id")
	}
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	s := validSession()
	s.Features[0].DependsOn = []string{"ghost"}
	if err := Validate(s); err == nil {
		t.Fatal("expected error for dependency on unknown feature")
	}
}

func TestValidateRejectsDependencyCycle(t *testing.T) {
	s := validSession()
	s.Features[0].DependsOn = []string{"b"}
	if err := Validate(s); err == nil {
		t.Fatal("expected error for dependency cycle")
	}
}

func TestValidateRejectsInProgressWithoutWorker(t *testing.T) {
	s := validSession()
	s.Features[0].Status = FeatureInProgress
	if err := Validate(s); err == nil {
		t.Fatal("expected error for in_progress feature with no worker_id")
	}
}

func TestValidateRejectsWorkerIDOnNonInProgress(t *testing.T) {
	s := validSession()
	s.Features[0].WorkerID = "cc-worker-a-xyz"
	if err := Validate(s); err == nil {
		t.Fatal("expected error for worker_id set while not in_progress")
	}
}

func TestValidateRejectsUnknownWorkerFeatureReference(t *testing.T) {
	s := validSession()
	s.Workers["cc-worker-a-xyz"] = &WorkerStatus{
		SessionName: "cc-worker-a-xyz",
		FeatureID:   "ghost",
		Status:      WorkerRunning,
	}
	if err := Validate(s); err == nil {
		t.Fatal("expected error for worker referencing unknown feature")
	}
}

func TestValidateRejectsWorkerKeyMismatch(t *testing.T) {
	s := validSession()
	s.Features[0].Status = FeatureInProgress
	s.Features[0].WorkerID = "cc-worker-a-xyz"
	s.Workers["wrong-key"] = &WorkerStatus{
		SessionName: "cc-worker-a-xyz",
		FeatureID:   "a",
		Status:      WorkerRunning,
	}
	if err := Validate(s); err == nil {
		t.Fatal("expected error for worker map key not matching session_name")
	}
}

func TestValidateAcceptsInProgressWithMatchingWorker(t *testing.T) {
	s := validSession()
	s.Features[0].Status = FeatureInProgress
	s.Features[0].WorkerID = "cc-worker-a-xyz"
	s.Workers["cc-worker-a-xyz"] = &WorkerStatus{
		SessionName: "cc-worker-a-xyz",
		FeatureID:   "a",
		Status:      WorkerRunning,
	}
	if err := Validate(s); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsTwoRunningWorkersSameFeature(t *testing.T) {
	s := validSession()
	s.Features[0].Status = FeatureInProgress
	s.Features[0].WorkerID = "cc-worker-a-one"
	s.Workers["cc-worker-a-one"] = &WorkerStatus{
		SessionName: "cc-worker-a-one", FeatureID: "a", Status: WorkerRunning,
	}
	s.Workers["cc-worker-a-two"] = &WorkerStatus{
		SessionName: "cc-worker-a-two", FeatureID: "a", Status: WorkerRunning,
	}
	if err := Validate(s); err == nil {
		t.Fatal("expected error for two running workers on the same feature")
	}
}

func TestValidateRejectsAttemptsExceedingMaxRetriesWhenNotFailed(t *testing.T) {
	s := validSession()
	s.Features[0].Attempts = 5
	s.Features[0].MaxRetries = 3
	if err := Validate(s); err == nil {
		t.Fatal("expected error for attempts exceeding max_retries while not failed")
	}
}

func TestValidateAllowsAttemptsExceedingMaxRetriesWhenFailed(t *testing.T) {
	s := validSession()
	s.Features[0].Attempts = 5
	s.Features[0].MaxRetries = 3
	s.Features[0].Status = FeatureFailed
	if err := Validate(s); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
