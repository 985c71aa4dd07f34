// Package verify runs the small, allow-listed set of verification commands
// (test/build/lint runners) a Feature or commit_progress may trigger,
// bounded in time and captured output. No command ever reaches a shell: it
// is tokenised once, matched against the allow-list as a rejoined string,
// and then executed from its own argv — the same "argv form, never a shell
// string" discipline the worker lifecycle manager uses to launch agent
// sessions.
package verify

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/rs/zerolog"

	"github.com/boshu2/orchestratord/internal/orcherr"
	"github.com/boshu2/orchestratord/internal/security"
)

// Result is the outcome of a single verification command run.
type Result struct {
	Ok         bool   `json:"ok"`
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	DurationMs int64  `json:"duration_ms"`
	Reason     string `json:"reason,omitempty"`
}

// DefaultTimeout is used when a caller passes timeoutSec <= 0.
const DefaultTimeout = 300 * time.Second

// DefaultMaxOutputBytes caps combined stdout+stderr retained per run.
const DefaultMaxOutputBytes = 1 << 20 // 1 MiB

// Runner executes allow-listed verification commands from a fixed project
// directory, with an environment limited to a configured allowlist.
type Runner struct {
	projectDir     string
	allowedEnv     []string
	maxOutputBytes int
	log            zerolog.Logger
}

// New constructs a Runner rooted at projectDir (already validated by
// security.ValidateProjectDir). allowedEnv names the environment variables
// passed through to a subprocess; every other variable is stripped. A zero
// or negative maxOutputBytes falls back to DefaultMaxOutputBytes.
func New(projectDir string, allowedEnv []string, maxOutputBytes int, log zerolog.Logger) *Runner {
	if maxOutputBytes <= 0 {
		maxOutputBytes = DefaultMaxOutputBytes
	}
	return &Runner{
		projectDir:     projectDir,
		allowedEnv:     allowedEnv,
		maxOutputBytes: maxOutputBytes,
		log:            log.With().Str("component", "verify").Logger(),
	}
}

// Run tokenises command, rejects it outright if it does not match
// ALLOWED_COMMAND_PATTERNS, then executes it by argv (no shell
// interpreter), bounded by timeoutSec (DefaultTimeout if <= 0). Combined
// output is capped at maxOutputBytes, split evenly between stdout and
// stderr, each keeping head+tail with a marker on overflow. A
// CommandNotAllowed rejection never spawns a process.
func (r *Runner) Run(ctx context.Context, command string, timeoutSec int) (Result, error) {
	argv, err := tokenize(command)
	if err != nil {
		return Result{}, orcherr.Wrap(orcherr.InvalidInput, err, "tokenize verification command")
	}
	if len(argv) == 0 {
		return Result{}, orcherr.New(orcherr.InvalidInput, "empty verification command")
	}

	rejoined := strings.Join(argv, " ")
	if !security.MatchAllowedCommand(rejoined) {
		return Result{}, orcherr.Newf(orcherr.CommandNotAllowed, "command %q does not match any allowed verification pattern", rejoined)
	}

	if timeoutSec <= 0 {
		timeoutSec = int(DefaultTimeout / time.Second)
	}
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = r.projectDir
	cmd.Env = r.filteredEnv()

	var stdout, stderr boundedBuffer
	stdout.limit = r.maxOutputBytes / 2
	stderr.limit = r.maxOutputBytes - stdout.limit
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		r.log.Warn().Str("command", rejoined).Dur("duration", duration).Msg("verification command timed out")
		return Result{
			Ok:         false,
			DurationMs: duration.Milliseconds(),
			Stdout:     stdout.String(),
			Stderr:     stderr.String(),
			Reason:     "timeout",
		}, orcherr.Newf(orcherr.Timeout, "verification command %q exceeded %ds", rejoined, timeoutSec)
	}

	exitCode := 0
	ok := runErr == nil
	if exitErr, isExit := runErr.(*exec.ExitError); isExit {
		exitCode = exitErr.ExitCode()
	} else if runErr != nil {
		return Result{}, orcherr.Wrap(orcherr.SubprocessFailed, runErr, "run verification command")
	}

	r.log.Info().Str("command", rejoined).Bool("ok", ok).Int("exit_code", exitCode).Dur("duration", duration).Msg("verification command finished")
	return Result{
		Ok:         ok,
		ExitCode:   exitCode,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: duration.Milliseconds(),
	}, nil
}

// tokenize splits command using standard shell-like tokenisation with glob
// and variable expansion both disabled.
func tokenize(command string) ([]string, error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = false
	parser.ParseBacktick = false
	argv, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}
	return argv, nil
}

// filteredEnv builds a subprocess environment limited to r.allowedEnv,
// looking each name up in the orchestrator's own environment.
func (r *Runner) filteredEnv() []string {
	env := make([]string, 0, len(r.allowedEnv))
	for _, name := range r.allowedEnv {
		if v, ok := os.LookupEnv(name); ok {
			env = append(env, name+"="+v)
		}
	}
	return env
}

// boundedBuffer caps the bytes it retains at limit, keeping the head and
// tail (split evenly) separated by a truncation marker once exceeded,
// so both the start and the end of a huge output survive.
type boundedBuffer struct {
	head  bytes.Buffer
	tail  []byte // ring buffer of the most recent bytes, capacity limit/2
	limit int
	total int
}

func (b *boundedBuffer) half() int {
	if b.limit <= 1 {
		return b.limit
	}
	return b.limit / 2
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.total += len(p)

	half := b.half()
	if b.head.Len() < half {
		room := half - b.head.Len()
		if room > len(p) {
			room = len(p)
		}
		b.head.Write(p[:room])
	}

	// Maintain a sliding window of the last `half` bytes seen so far for
	// the tail, regardless of whether overflow has actually occurred —
	// cheap relative to process I/O and avoids a second pass at the end.
	b.tail = append(b.tail, p...)
	if len(b.tail) > half {
		b.tail = b.tail[len(b.tail)-half:]
	}

	return len(p), nil
}

func (b *boundedBuffer) String() string {
	if b.total <= b.head.Len() {
		return b.head.String()
	}
	if b.total-b.head.Len() <= len(b.tail) {
		// Nothing was dropped: the tail window still covers everything past
		// the head.
		rest := b.total - b.head.Len()
		return b.head.String() + string(b.tail[len(b.tail)-rest:])
	}
	return fmt.Sprintf("%s\n...[truncated, %d bytes total]...\n%s", b.head.String(), b.total, string(b.tail))
}
