package worker

import "path/filepath"

// layout resolves the filesystem side-channel paths a worker session and
// the orchestrator use to exchange signals: a .prompt file handed to the
// worker at launch, a .log tail of captured pane output, and the .done /
// .status / .confidence markers the worker writes itself to report
// completion without requiring a direct channel back into the orchestrator
// process.
type layout struct {
	dir  string
	name string
}

func newLayout(workersDir, sessionName string) layout {
	return layout{dir: workersDir, name: sessionName}
}

func (l layout) promptPath() string     { return filepath.Join(l.dir, l.name+".prompt") }
func (l layout) logPath() string        { return filepath.Join(l.dir, l.name+".log") }
func (l layout) donePath() string       { return filepath.Join(l.dir, l.name+".done") }
func (l layout) statusPath() string     { return filepath.Join(l.dir, l.name+".status") }
func (l layout) confidencePath() string { return filepath.Join(l.dir, l.name+".confidence") }
func (l layout) inboxPath() string      { return filepath.Join(l.dir, l.name+".inbox") }
