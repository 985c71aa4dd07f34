package security

import (
	shellquote "github.com/kballard/go-shellquote"
)

// ShellQuote wraps s for safe embedding in emitted shell text: the
// generated init.sh script, and the fixed-shape log-capture fragment handed
// to the multiplexer's pipe facility. This process itself never launches
// anything through a shell — subprocesses always get an explicit argv (see
// internal/worker and internal/verify). The one command string this process
// builds with ShellQuote, commit_progress's "git commit -am" in
// internal/ops, is split back into argv by the verification runner's
// tokeniser and never reaches a shell.
func ShellQuote(s string) string {
	return shellquote.Join(s)
}
