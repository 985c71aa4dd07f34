package state

import "testing"

func TestSessionRecomputeAllCompleted(t *testing.T) {
	s := &Session{Features: []*Feature{
		{ID: "a", Status: FeatureCompleted},
		{ID: "b", Status: FeatureCompleted},
	}}
	s.Recompute()
	if s.Status != SessionCompleted {
		t.Errorf("Status = %q, want completed", s.Status)
	}
	if s.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}
}

func TestSessionRecomputeFailedNoneActive(t *testing.T) {
	s := &Session{Features: []*Feature{
		{ID: "a", Status: FeatureCompleted},
		{ID: "b", Status: FeatureFailed},
	}}
	s.Recompute()
	if s.Status != SessionCompletedWithFail {
		t.Errorf("Status = %q, want completed_with_failures", s.Status)
	}
}

func TestSessionRecomputeStillActive(t *testing.T) {
	s := &Session{Features: []*Feature{
		{ID: "a", Status: FeatureCompleted},
		{ID: "b", Status: FeatureInProgress},
		{ID: "c", Status: FeatureFailed},
	}}
	s.Recompute()
	if s.Status != SessionInProgress {
		t.Errorf("Status = %q, want in_progress", s.Status)
	}
}

func TestSessionRecomputeIgnoresPausedAndReviewing(t *testing.T) {
	for _, st := range []SessionStatus{SessionPaused, SessionReviewing} {
		s := &Session{Status: st, Features: []*Feature{{ID: "a", Status: FeatureCompleted}}}
		s.Recompute()
		if s.Status != st {
			t.Errorf("Recompute overwrote %q", st)
		}
	}
}

func TestSessionFeatureByID(t *testing.T) {
	s := &Session{Features: []*Feature{{ID: "a"}, {ID: "b"}}}
	if f := s.FeatureByID("b"); f == nil || f.ID != "b" {
		t.Error("FeatureByID(\"b\") failed to find feature")
	}
	if f := s.FeatureByID("missing"); f != nil {
		t.Error("FeatureByID(\"missing\") should return nil")
	}
}
