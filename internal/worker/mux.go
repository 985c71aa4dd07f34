package worker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/boshu2/orchestratord/internal/security"
)

// Mux wraps the terminal multiplexer binary (tmux by default) used to host
// one long-lived session per worker. Every call builds a fixed argv and
// executes it directly via exec.CommandContext — never through a shell — so
// a feature id or prompt string can never be interpreted as shell syntax.
type Mux struct {
	bin     string
	timeout time.Duration
}

// NewMux constructs a Mux wrapping the given multiplexer binary name (or
// absolute path), as configured by internal/config's Mux field.
func NewMux(bin string) *Mux {
	return &Mux{bin: bin, timeout: 10 * time.Second}
}

func (m *Mux) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.bin, args...)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("%s %v: %w: %s", m.bin, args, err, errBuf.String())
	}
	return out.String(), nil
}

// NewSession starts a detached session named name with its working
// directory set to workDir, running command as a fixed argv. The command
// is passed through to the multiplexer word by word, so none of it is ever
// re-parsed as shell syntax.
func (m *Mux) NewSession(ctx context.Context, name, workDir string, command ...string) error {
	args := append([]string{"new-session", "-d", "-s", name, "-c", workDir}, command...)
	_, err := m.run(ctx, args...)
	return err
}

// PipePane attaches an append-only capture of the session's pane output to
// logPath. The cat pipeline handed to the multiplexer contains only the
// orchestrator-generated log path (quoted), never caller text.
func (m *Mux) PipePane(ctx context.Context, name, logPath string) error {
	_, err := m.run(ctx, "pipe-pane", "-t", name, "-o", "cat >> "+security.ShellQuote(logPath))
	return err
}

// SendKeys types text into the named session's active pane followed by
// Enter, the tmux idiom for feeding a running program a line of input.
func (m *Mux) SendKeys(ctx context.Context, name, text string) error {
	_, err := m.run(ctx, "send-keys", "-t", name, "-l", text)
	if err != nil {
		return err
	}
	_, err = m.run(ctx, "send-keys", "-t", name, "Enter")
	return err
}

// HasSession reports whether a session with the given name currently
// exists. tmux exits non-zero when it doesn't, which is treated as "not
// found" rather than an error.
func (m *Mux) HasSession(ctx context.Context, name string) bool {
	_, err := m.run(ctx, "has-session", "-t", name)
	return err == nil
}

// KillSession terminates the named session if it exists. Killing an
// already-gone session is not an error.
func (m *Mux) KillSession(ctx context.Context, name string) error {
	if !m.HasSession(ctx, name) {
		return nil
	}
	_, err := m.run(ctx, "kill-session", "-t", name)
	return err
}

// CapturePane returns the current visible contents of the named session's
// pane, used to surface a tail of worker output in status output.
func (m *Mux) CapturePane(ctx context.Context, name string) (string, error) {
	return m.run(ctx, "capture-pane", "-t", name, "-p")
}
