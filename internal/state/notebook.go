package state

import (
	"fmt"
	"strings"
	"time"

	"github.com/boshu2/orchestratord/internal/formatter"
)

// writeNotebookLocked regenerates claude-progress.txt from scratch on every
// save. The notebook is a human-readable progress summary meant to be read
// by the agent running inside a worker session at the start of its next
// turn, not parsed by the orchestrator itself — so it is plain text, not
// JSON, a human-facing companion to the machine-facing JSON state
// files.
func (s *Store) writeNotebookLocked(sess *Session) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", sess.TaskDescription)
	fmt.Fprintf(&b, "Status: %s\n", sess.Status)
	fmt.Fprintf(&b, "Started: %s\n", sess.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "Last updated: %s\n", sess.LastUpdated.Format(time.RFC3339))
	if sess.CompletedAt != nil {
		fmt.Fprintf(&b, "Completed: %s\n", sess.CompletedAt.Format(time.RFC3339))
	}
	b.WriteString("\n## Features\n\n")

	for _, f := range sess.Features {
		fmt.Fprintf(&b, "- [%s] %s (%s)", f.ID, f.Description, f.Status)
		if f.Attempts > 0 {
			fmt.Fprintf(&b, " attempts=%d/%d", f.Attempts, f.MaxRetries)
		}
		if len(f.DependsOn) > 0 {
			fmt.Fprintf(&b, " depends_on=%s", strings.Join(f.DependsOn, ","))
		}
		b.WriteString("\n")
		if f.LastError != "" {
			fmt.Fprintf(&b, "    last_error: %s\n", f.LastError)
		}
		if f.Notes != "" {
			fmt.Fprintf(&b, "    notes: %s\n", f.Notes)
		}
	}

	if len(sess.Workers) > 0 {
		b.WriteString("\n## Workers\n\n")
		for name, w := range sess.Workers {
			fmt.Fprintf(&b, "- %s -> feature %s [%s], running for %s\n",
				name, w.FeatureID, w.Status, formatter.Age(time.Since(w.StartedAt)))
		}
	}

	if len(sess.ProgressLog) > 0 {
		b.WriteString("\n## Log\n\n")
		start := 0
		if len(sess.ProgressLog) > 50 {
			start = len(sess.ProgressLog) - 50
		}
		for _, line := range sess.ProgressLog[start:] {
			fmt.Fprintf(&b, "%s\n", line)
		}
	}

	return atomicWriteFile(s.notebookPath(), []byte(b.String()), 0600)
}

