package worker

import (
	"path/filepath"
	"testing"
)

func TestLayoutPaths(t *testing.T) {
	l := newLayout("/workers", "cc-worker-feat-a-abc12345")

	cases := map[string]string{
		"prompt":     l.promptPath(),
		"log":        l.logPath(),
		"done":       l.donePath(),
		"status":     l.statusPath(),
		"confidence": l.confidencePath(),
		"inbox":      l.inboxPath(),
	}
	wantSuffix := map[string]string{
		"prompt":     ".prompt",
		"log":        ".log",
		"done":       ".done",
		"status":     ".status",
		"confidence": ".confidence",
		"inbox":      ".inbox",
	}

	for name, got := range cases {
		want := filepath.Join("/workers", "cc-worker-feat-a-abc12345"+wantSuffix[name])
		if got != want {
			t.Errorf("%s path = %q, want %q", name, got, want)
		}
	}
}
