package state

import (
	"fmt"
	"strings"

	"github.com/boshu2/orchestratord/internal/security"
)

// WriteInitScript (re)generates init.sh, the environment bootstrap an
// operator (or a worker doing manual recovery) runs to land in the project
// directory with dependencies installed and the current orchestrator state
// on screen. It is regenerated on every Init rather than templated ahead
// of time so the quoted project path always reflects the session's actual
// directory.
func (s *Store) WriteInitScript(agentBinary string) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("# Generated by orchestratord. Do not edit by hand; it is overwritten\n")
	b.WriteString("# whenever the session is initialized.\n")
	fmt.Fprintf(&b, "cd %s || exit 1\n", security.ShellQuote(s.projectDir))
	b.WriteString("\n# Install dependencies for whichever toolchain the project uses.\n")
	b.WriteString("if [ -f package.json ] && [ ! -d node_modules ]; then npm install; fi\n")
	b.WriteString("if [ -f go.mod ]; then go mod download; fi\n")
	b.WriteString("if [ -f requirements.txt ] && [ ! -d .venv ]; then python3 -m venv .venv && .venv/bin/pip install -r requirements.txt; fi\n")
	b.WriteString("if [ -f Cargo.toml ]; then cargo fetch; fi\n")
	b.WriteString("\n# Show where the orchestrator left off.\n")
	b.WriteString("if [ -f claude-progress.txt ]; then cat claude-progress.txt; else echo 'no orchestrator session yet'; fi\n")
	fmt.Fprintf(&b, "echo 'agent binary:' %s\n", security.ShellQuote(agentBinary))

	return atomicWriteFile(s.initScriptPath(), []byte(b.String()), 0700)
}
