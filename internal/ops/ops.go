// Package ops is the boundary operations layer: thin, input-validated
// transactions composing internal/security, internal/state,
// internal/worker, internal/scheduler, and internal/verify. Every exported
// method here is one of the named operations an RPC tool registry or the
// cmd/orchestratord CLI exposes. Inputs are validated before any state is
// touched; on validation error nothing is written.
package ops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/boshu2/orchestratord/internal/formatter"
	"github.com/boshu2/orchestratord/internal/orcherr"
	"github.com/boshu2/orchestratord/internal/scheduler"
	"github.com/boshu2/orchestratord/internal/security"
	"github.com/boshu2/orchestratord/internal/state"
	"github.com/boshu2/orchestratord/internal/verify"
	"github.com/boshu2/orchestratord/internal/worker"
)

// WorkerManager is the subset of *worker.Manager Operations depends on, so
// tests can substitute a fake without a real terminal multiplexer.
type WorkerManager interface {
	StartWorker(ctx context.Context, spec worker.StartSpec) (string, error)
	StartParallelWorkers(ctx context.Context, specs []worker.StartSpec, maxParallel int) []worker.StartResult
	SendWorkerMessage(ctx context.Context, sessionName, message string) error
	CheckWorker(ctx context.Context, sessionName string, cursor int64) (worker.Observation, error)
	CheckAllWorkers(ctx context.Context, sessionNames []string) map[string]worker.Observation
	KillWorker(ctx context.Context, sessionName string) error
	Shutdown(ctx context.Context, sessionNames []string) []error
}

// Verifier is the subset of *verify.Runner Operations depends on.
type Verifier interface {
	Run(ctx context.Context, command string, timeoutSec int) (verify.Result, error)
}

// MonitorControl is the subset of *monitor.Monitor Operations depends on
// for pause/resume.
type MonitorControl interface {
	Start(ctx context.Context)
	Stop()
}

// Options configures an Operations instance with the resolved
// internal/config defaults it needs outside of what's stored on the
// Session itself.
type Options struct {
	AgentBinary       string
	MaxParallel       int
	DefaultMaxRetries int
}

// Operations is bound to a single project directory's Store, WorkerManager,
// Verifier, and (optionally) Monitor — the triple the process-wide registry
// (internal/registry) constructs once per project directory.
type Operations struct {
	store   *state.Store
	workers WorkerManager
	verify  Verifier
	monitor MonitorControl
	opts    Options
	log     zerolog.Logger
}

// New constructs an Operations instance. monitor may be nil if the caller
// does not want pause/resume to drive it (e.g. in tests).
func New(store *state.Store, workers WorkerManager, verifier Verifier, mon MonitorControl, opts Options, log zerolog.Logger) *Operations {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 10
	}
	if opts.DefaultMaxRetries <= 0 {
		opts.DefaultMaxRetries = 3
	}
	return &Operations{
		store:   store,
		workers: workers,
		verify:  verifier,
		monitor: mon,
		opts:    opts,
		log:     log.With().Str("component", "ops").Logger(),
	}
}

func boundaryErr(kind orcherr.Kind, message string) *orcherr.Error {
	return orcherr.New(kind, message).WithDetails(map[string]any{"trace_id": security.NewTraceID()})
}

func wrapBoundary(kind orcherr.Kind, cause error, message string) *orcherr.Error {
	e := orcherr.Wrap(kind, cause, message)
	e.Details = map[string]any{"trace_id": security.NewTraceID()}
	return e
}

// FeatureInput is one feature description passed to Init or AddFeature.
type FeatureInput struct {
	ID          string
	Description string
	DependsOn   []string
	MaxRetries  int
	Validation  string
}

// Init creates (or, with replace=true, clobbers) a Session with every
// feature pending, and writes init.sh (orchestrator_init).
func (o *Operations) Init(projectDir, task string, features []FeatureInput, replace bool) (*state.Session, error) {
	resolved, err := security.ValidateProjectDir(projectDir)
	if err != nil {
		return nil, wrapBoundary(orcherr.InvalidInput, err, "invalid project directory")
	}

	seen := make(map[string]bool, len(features))
	fs := make([]*state.Feature, 0, len(features))
	for _, in := range features {
		if err := security.ValidateFeatureID(in.ID); err != nil {
			return nil, wrapBoundary(orcherr.InvalidInput, err, "invalid feature id")
		}
		if seen[in.ID] {
			return nil, boundaryErr(orcherr.InvalidInput, fmt.Sprintf("duplicate feature id %q", in.ID))
		}
		seen[in.ID] = true

		maxRetries := in.MaxRetries
		if maxRetries <= 0 {
			maxRetries = o.opts.DefaultMaxRetries
		}
		fs = append(fs, &state.Feature{
			ID:          in.ID,
			Description: in.Description,
			Status:      state.FeaturePending,
			MaxRetries:  maxRetries,
			DependsOn:   in.DependsOn,
			Validation:  in.Validation,
		})
	}
	for _, in := range features {
		for _, dep := range in.DependsOn {
			if !seen[dep] {
				return nil, boundaryErr(orcherr.InvalidInput, fmt.Sprintf("feature %q depends on unknown feature %q", in.ID, dep))
			}
		}
	}
	if cycle := state.FindCycle(fs); cycle != "" {
		return nil, boundaryErr(orcherr.InvalidInput, fmt.Sprintf("dependency cycle detected at feature %q", cycle))
	}

	now := time.Now().UTC()
	sess := &state.Session{
		ProjectDir:      resolved,
		TaskDescription: task,
		Status:          state.SessionInProgress,
		StartTime:       now,
		LastUpdated:     now,
		Features:        fs,
		Workers:         map[string]*state.WorkerStatus{},
	}

	if err := o.store.Init(sess, replace); err != nil {
		return nil, wrapBoundary(orcherr.InvalidTransition, err, "initialize session")
	}
	if err := o.store.WriteInitScript(o.opts.AgentBinary); err != nil {
		return nil, wrapBoundary(orcherr.FilesystemError, err, "write init script")
	}
	_ = o.store.AppendLog(fmt.Sprintf("session initialized with %d features", len(fs)))
	return sess, nil
}

// Status returns the current Session, or nil if none has been initialized
// (orchestrator_status).
func (o *Operations) Status() (*state.Session, error) {
	sess, err := o.store.Load()
	if err != nil {
		return nil, wrapBoundary(orcherr.StateCorruption, err, "load session")
	}
	return sess, nil
}

// ListFeatures returns every Feature in the Session (list_features).
func (o *Operations) ListFeatures() ([]*state.Feature, error) {
	sess, err := o.Status()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, boundaryErr(orcherr.InvalidTransition, "no session initialized")
	}
	return sess.Features, nil
}

// GetFeature returns a single Feature by id (get_feature).
func (o *Operations) GetFeature(featureID string) (*state.Feature, error) {
	sess, err := o.Status()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, boundaryErr(orcherr.InvalidTransition, "no session initialized")
	}
	f := sess.FeatureByID(featureID)
	if f == nil {
		return nil, boundaryErr(orcherr.UnknownFeature, fmt.Sprintf("no such feature %q", featureID))
	}
	return f, nil
}

// Reset kills all workers and clears state files (orchestrator_reset).
// confirm must be true: this is destructive and irreversible from the
// orchestrator's point of view, so it is the one operation that requires
// positive confirmation.
func (o *Operations) Reset(ctx context.Context, confirm bool) error {
	if !confirm {
		return boundaryErr(orcherr.InvalidInput, "reset requires explicit confirmation")
	}

	sess, err := o.store.Load()
	if err != nil && !isStateCorrupt(err) {
		return wrapBoundary(orcherr.StateCorruption, err, "load session before reset")
	}
	if sess != nil {
		names := make([]string, 0, len(sess.Workers))
		for name := range sess.Workers {
			names = append(names, name)
		}
		o.workers.Shutdown(ctx, names)
	}

	if err := o.store.Clear(); err != nil {
		return wrapBoundary(orcherr.FilesystemError, err, "clear session state")
	}
	return nil
}

func isStateCorrupt(err error) bool {
	var corrupt *state.ErrCorrupt
	return errors.As(err, &corrupt) || orcherr.KindOf(err) == orcherr.StateCorruption
}

// StartWorker admits and spawns a worker for featureID (start_worker). It
// validates admission inside the same transaction that flips the Feature to
// in_progress, so two concurrent calls for the same feature can never both
// succeed: exactly one spawns, the other gets InvalidTransition.
func (o *Operations) StartWorker(ctx context.Context, featureID, prompt string) (*state.WorkerStatus, error) {
	if err := security.ValidateFeatureID(featureID); err != nil {
		return nil, wrapBoundary(orcherr.InvalidInput, err, "invalid feature id")
	}

	var ws *state.WorkerStatus
	sess, err := o.store.Transaction(func(sess *state.Session) error {
		if err := scheduler.CanStart(sess, featureID); err != nil {
			return err
		}
		if scheduler.CountInProgress(sess) >= o.opts.MaxParallel {
			return orcherr.Newf(orcherr.Concurrency, "max parallel workers (%d) already in flight", o.opts.MaxParallel)
		}

		name, err := o.workers.StartWorker(ctx, worker.StartSpec{
			FeatureID: featureID,
			Prompt:    prompt,
			WorkDir:   sess.ProjectDir,
		})
		if err != nil {
			return err
		}

		f := sess.FeatureByID(featureID)
		now := time.Now().UTC()
		f.Status = state.FeatureInProgress
		f.Attempts++
		f.WorkerID = name
		f.StartedAt = &now
		f.CompletedAt = nil

		ws = &state.WorkerStatus{SessionName: name, FeatureID: featureID, StartedAt: now, LastChecked: now, Status: state.WorkerRunning}
		sess.Workers[name] = ws
		sess.Recompute()
		return nil
	})
	if err != nil {
		return nil, translateSchedulerErr(err)
	}
	_ = sess
	o.log.Info().Str("feature", featureID).Str("worker", ws.SessionName).Msg("worker started")
	_ = o.store.AppendLog(fmt.Sprintf("started worker %s for feature %s", ws.SessionName, featureID))
	return ws, nil
}

// translateSchedulerErr passes through already-typed orcherr errors,
// stamping a trace id on any that lack one, and wraps anything else as a
// generic InvalidTransition, since every other failure path inside the
// Transaction closure above already returns a typed error.
func translateSchedulerErr(err error) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*orcherr.Error); ok {
		if e.Details == nil {
			e.Details = map[string]any{}
		}
		if _, ok := e.Details["trace_id"]; !ok {
			e.Details["trace_id"] = security.NewTraceID()
		}
		return e
	}
	return wrapBoundary(orcherr.InvalidTransition, err, "start worker")
}

// ParallelStartRequest pairs a featureID with its prompt for
// StartParallelWorkers.
type ParallelStartRequest struct {
	FeatureID string
	Prompt    string
}

// StartParallelWorkers validates the whole batch atomically before
// launching anything, then spawns sequentially in input order. A single
// admission failure refuses the whole batch; once spawning begins, a later
// spawn failure does not roll back earlier successful spawns.
func (o *Operations) StartParallelWorkers(ctx context.Context, reqs []ParallelStartRequest) ([]worker.StartResult, error) {
	ids := make([]string, len(reqs))
	byID := make(map[string]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.FeatureID
		byID[r.FeatureID] = r.Prompt
	}

	sess, err := o.store.Load()
	if err != nil {
		return nil, wrapBoundary(orcherr.StateCorruption, err, "load session")
	}
	if sess == nil {
		return nil, boundaryErr(orcherr.InvalidTransition, "no session initialized")
	}
	if issues := scheduler.ValidateBatch(sess, ids); len(issues) > 0 {
		details := map[string]any{"trace_id": security.NewTraceID()}
		for _, iss := range issues {
			details[iss.FeatureID] = iss.Err.Error()
		}
		return nil, boundaryErr(orcherr.InvalidTransition, "batch admission failed").WithDetails(details)
	}
	if scheduler.CountInProgress(sess)+len(ids) > o.opts.MaxParallel {
		return nil, boundaryErr(orcherr.Concurrency, fmt.Sprintf("starting %d workers would exceed max parallel (%d)", len(ids), o.opts.MaxParallel))
	}

	results := make([]worker.StartResult, 0, len(reqs))
	for _, r := range reqs {
		ws, err := o.StartWorker(ctx, r.FeatureID, r.Prompt)
		res := worker.StartResult{FeatureID: r.FeatureID, Err: err}
		if ws != nil {
			res.SessionName = ws.SessionName
		}
		results = append(results, res)
		if err != nil {
			break
		}
	}
	return results, nil
}

// SendWorkerMessage writes to a running worker's inbox
// (send_worker_message). Delivery is fire-and-forget: the agent polls its
// inbox, and the orchestrator never blocks on acknowledgement.
func (o *Operations) SendWorkerMessage(ctx context.Context, featureID, text string) error {
	f, err := o.GetFeature(featureID)
	if err != nil {
		return err
	}
	if f.Status != state.FeatureInProgress || f.WorkerID == "" {
		return boundaryErr(orcherr.InvalidTransition, fmt.Sprintf("feature %q has no running worker", featureID))
	}
	sanitized := security.SanitizeOutput(text, 8192)
	if err := o.workers.SendWorkerMessage(ctx, f.WorkerID, sanitized); err != nil {
		return wrapBoundary(orcherr.SubprocessFailed, err, "send worker message")
	}
	return nil
}

// CheckResult is check_worker's response: either a sanitised log tail
// (default) or a Heartbeat summary (heartbeat=true). NextCursor is the
// byte offset to pass on the next call to read only fresh output.
type CheckResult struct {
	LogTail    string
	NextCursor int64
	Heartbeat  *Heartbeat
}

// Heartbeat is the compact worker status summary:
// { status, lastToolUsed, lastFile, lastActivity, runningFor }.
type Heartbeat struct {
	Status       state.WorkerState
	LastToolUsed string
	LastFile     string
	LastActivity string
	RunningFor   string
}

// CheckWorker polls one feature's worker (check_worker). cursor resumes
// log reading from a prior call's NextCursor; heartbeat=true returns the
// compact Heartbeat summary instead of the raw log tail.
func (o *Operations) CheckWorker(ctx context.Context, featureID string, cursor int64, heartbeat bool) (CheckResult, error) {
	f, err := o.GetFeature(featureID)
	if err != nil {
		return CheckResult{}, err
	}
	if f.WorkerID == "" {
		return CheckResult{}, boundaryErr(orcherr.UnknownWorker, fmt.Sprintf("feature %q has no worker on record", featureID))
	}

	obs, err := o.workers.CheckWorker(ctx, f.WorkerID, cursor)
	if err != nil {
		return CheckResult{}, wrapBoundary(orcherr.UnknownWorker, err, "check worker")
	}

	sess, loadErr := o.store.Load()
	var startedAt time.Time
	if loadErr == nil && sess != nil {
		if w, ok := sess.Workers[f.WorkerID]; ok {
			startedAt = w.StartedAt
		}
	}

	if !heartbeat {
		return CheckResult{LogTail: security.SanitizeOutput(obs.LogTail, 32*1024), NextCursor: obs.NextCursor}, nil
	}

	return CheckResult{Heartbeat: buildHeartbeat(obs, startedAt)}, nil
}

// CheckAllWorkers applies CheckWorker's contract to every in_progress
// Feature (check_all_workers).
func (o *Operations) CheckAllWorkers(ctx context.Context, heartbeat bool) (map[string]CheckResult, error) {
	sess, err := o.Status()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return map[string]CheckResult{}, nil
	}

	names := make([]string, 0, len(sess.Workers))
	for name := range sess.Workers {
		names = append(names, name)
	}
	observations := o.workers.CheckAllWorkers(ctx, names)

	out := make(map[string]CheckResult, len(observations))
	for name, obs := range observations {
		w := sess.Workers[name]
		if !heartbeat {
			out[w.FeatureID] = CheckResult{LogTail: security.SanitizeOutput(obs.LogTail, 32*1024), NextCursor: obs.NextCursor}
			continue
		}
		out[w.FeatureID] = CheckResult{Heartbeat: buildHeartbeat(obs, w.StartedAt)}
	}
	return out, nil
}

// toolUsePattern and fileEditPattern are the heuristic markers the
// heartbeat scanner looks for in a worker's captured pane output. They are
// explicit tool-use hints, never a semantic parse of agent reasoning.
var (
	toolUsePattern  = `(?i)using tool[: ]+(\S+)`
	fileEditPattern = `(?i)(?:editing|writing|reading) (\S+)`
)

func buildHeartbeat(obs worker.Observation, startedAt time.Time) *Heartbeat {
	hb := &Heartbeat{Status: mapObservedState(obs.State)}
	if obs.LogTail != "" {
		tail := obs.LogTail
		if len(tail) > 8192 {
			tail = tail[len(tail)-8192:]
		}
		hb.LastToolUsed = lastSafeMatch(toolUsePattern, tail)
		hb.LastFile = lastSafeMatch(fileEditPattern, tail)
		hb.LastActivity = lastNonEmptyLine(tail)
	}
	if !startedAt.IsZero() {
		hb.RunningFor = formatter.Age(time.Since(startedAt))
	}
	return hb
}

func mapObservedState(s worker.ObservedState) state.WorkerState {
	switch s {
	case worker.ObservedRunning:
		return state.WorkerRunning
	case worker.ObservedCompleted:
		return state.WorkerCompleted
	case worker.ObservedCrashed:
		return state.WorkerCrashed
	default:
		return state.WorkerUnknown
	}
}

// lastSafeMatch reports the capture group of the last match of pattern in
// text, so the heartbeat names the most recent tool and file seen in the
// tail. It uses a plain regexp.Compile fallback-free path since these two
// patterns are fixed
// in-code literals (never caller-supplied), so ReDoS classification is
// beside the point — they're still routed through the same safe-match
// helper for consistency with the rest of the codebase's policy that all
// pattern matching on worker-sourced text goes through one choke point.
func lastSafeMatch(pattern, text string) string {
	if !security.SafeRegexTest(pattern, text) {
		return ""
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return ""
	}
	all := re.FindAllStringSubmatch(text, -1)
	if len(all) == 0 {
		return ""
	}
	m := all[len(all)-1]
	if len(m) > 1 {
		return m[len(m)-1]
	}
	return ""
}

func lastNonEmptyLine(text string) string {
	lines := splitLines(text)
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) > 0 {
			return lines[i]
		}
	}
	return ""
}

// MarkComplete applies the retry/terminal-state policy (mark_complete).
// success=true is only accepted when the worker's .done marker (or an
// already-recorded completed/crashed WorkerStatus) confirms the worker
// actually finished, unless force=true (operator override, e.g. recovering
// from a monitor that never got to observe the session before it was torn
// down).
func (o *Operations) MarkComplete(ctx context.Context, featureID string, success bool, notes string, force bool) (retryScheduled bool, err error) {
	f0, err := o.GetFeature(featureID)
	if err != nil {
		return false, err
	}
	if f0.Status == state.FeatureCompleted {
		return false, nil // idempotent no-op
	}
	if f0.Status != state.FeatureInProgress {
		return false, boundaryErr(orcherr.InvalidTransition, fmt.Sprintf("feature %q is %q, not in_progress", featureID, f0.Status))
	}

	if success && !force {
		confirmed, err := o.confirmWorkerDone(ctx, f0.WorkerID)
		if err != nil {
			return false, err
		}
		if !confirmed {
			return false, boundaryErr(orcherr.InvalidTransition, fmt.Sprintf("feature %q's worker has not signaled completion (.done absent); pass force to override", featureID))
		}
	}

	// Configured verification runs outside the store mutex: a slow test
	// suite must not block concurrent operations or the monitor.
	var vres *state.ValidationResult
	if success {
		sess0, loadErr := o.store.Load()
		if loadErr == nil && sess0 != nil && sess0.VerificationConfig != nil && sess0.VerificationConfig.Enabled {
			vres = o.runConfiguredVerification(ctx, sess0.VerificationConfig)
			if vres != nil && !vres.Ok && sess0.VerificationConfig.FailOnError {
				success = false
				if notes == "" {
					notes = "verification failed: " + vres.Reason
				}
			}
		}
	}

	var sess *state.Session
	sess, err = o.store.Transaction(func(sess *state.Session) error {
		f := sess.FeatureByID(featureID)
		if f == nil {
			return orcherr.Newf(orcherr.UnknownFeature, "no such feature %q", featureID)
		}
		if f.Status == state.FeatureCompleted {
			return nil
		}
		if f.Status != state.FeatureInProgress {
			return orcherr.Newf(orcherr.InvalidTransition, "feature %q is %q, not in_progress", featureID, f.Status)
		}

		now := time.Now().UTC()
		workerID := f.WorkerID

		if vres != nil {
			f.ValidationResult = vres
		}
		if success {
			f.Status = state.FeatureCompleted
			f.CompletedAt = &now
			f.WorkerID = ""
			f.Notes = notes
			f.LastError = ""
		} else {
			decision := scheduler.DecideRetry(f)
			scheduler.ApplyFailure(f, decision, notes)
			retryScheduled = decision.Retry
			if !decision.Retry {
				f.CompletedAt = &now
			}
		}

		if workerID != "" {
			delete(sess.Workers, workerID)
		}
		sess.Recompute()
		return nil
	})
	if err != nil {
		return false, translateSchedulerErr(err)
	}

	if f0.WorkerID != "" {
		_ = o.workers.KillWorker(ctx, f0.WorkerID)
	}

	if success {
		_ = o.store.AppendLog(fmt.Sprintf("feature %s marked complete", featureID))
	} else if retryScheduled {
		_ = o.store.AppendLog(fmt.Sprintf("feature %s failed (%s), retry scheduled", featureID, notes))
	} else {
		o.log.Error().Str("feature", featureID).Str("reason", notes).Msg("feature failed, retry budget exhausted")
		_ = o.store.AppendLog(fmt.Sprintf("feature %s failed permanently: %s", featureID, notes))
	}
	_ = sess
	return retryScheduled, nil
}

// runConfiguredVerification executes the session's verification commands
// in order, stopping at the first failure. Advisory by default: the caller
// decides, via FailOnError, whether a failed result downgrades success.
func (o *Operations) runConfiguredVerification(ctx context.Context, cfg *state.VerificationConfig) *state.ValidationResult {
	for _, command := range cfg.Commands {
		result, err := o.verify.Run(ctx, command, cfg.TimeoutSec)
		if err != nil {
			o.log.Error().Err(err).Str("command", command).Msg("verification command rejected or failed to run")
			return &state.ValidationResult{Ok: false, Command: command, Reason: err.Error()}
		}
		if !result.Ok {
			_ = o.store.AppendLog(fmt.Sprintf("verification failed: %s (exit %d)", command, result.ExitCode))
			return &state.ValidationResult{
				Ok:         false,
				Command:    command,
				ExitCode:   result.ExitCode,
				Output:     security.SanitizeOutput(result.Stdout+"\n"+result.Stderr, 8192),
				DurationMs: result.DurationMs,
				Reason:     "command exited non-zero",
			}
		}
	}
	if len(cfg.Commands) == 0 {
		return nil
	}
	return &state.ValidationResult{Ok: true}
}

// confirmWorkerDone checks the worker's current Observation for a completed
// or crashed state — the filesystem .done marker (via internal/worker) or
// a prior monitor tick's WorkerStatus — before mark_complete(success=true)
// is accepted outright.
func (o *Operations) confirmWorkerDone(ctx context.Context, workerID string) (bool, error) {
	if workerID == "" {
		return false, nil
	}
	obs, err := o.workers.CheckWorker(ctx, workerID, 0)
	if err != nil {
		return false, wrapBoundary(orcherr.UnknownWorker, err, "check worker before mark_complete")
	}
	return obs.State == worker.ObservedCompleted || obs.State == worker.ObservedCrashed, nil
}

// RetryFeature resets a failed Feature's retry budget (retry_feature). A
// no-op on an already-pending Feature.
func (o *Operations) RetryFeature(featureID string) error {
	if err := security.ValidateFeatureID(featureID); err != nil {
		return wrapBoundary(orcherr.InvalidInput, err, "invalid feature id")
	}
	_, err := o.store.Transaction(func(sess *state.Session) error {
		f := sess.FeatureByID(featureID)
		if f == nil {
			return orcherr.Newf(orcherr.UnknownFeature, "no such feature %q", featureID)
		}
		if f.Status != state.FeatureFailed && f.Status != state.FeaturePending {
			return orcherr.Newf(orcherr.InvalidTransition, "feature %q is %q, not failed", featureID, f.Status)
		}
		scheduler.ApplyRetryFeature(f)
		sess.Recompute()
		return nil
	})
	if err != nil {
		return translateSchedulerErr(err)
	}
	_ = o.store.AppendLog(fmt.Sprintf("feature %s retry budget reset", featureID))
	return nil
}

// RunVerification executes an allow-listed command (run_verification). The
// subprocess runs outside the Session mutex so a slow test suite cannot
// starve concurrent operations.
func (o *Operations) RunVerification(ctx context.Context, command string, timeoutSec int) (verify.Result, error) {
	result, err := o.verify.Run(ctx, command, timeoutSec)
	if err != nil {
		return result, translateSchedulerErr(err)
	}
	return result, nil
}

// AddFeature appends a new pending Feature (add_feature).
func (o *Operations) AddFeature(in FeatureInput) error {
	if err := security.ValidateFeatureID(in.ID); err != nil {
		return wrapBoundary(orcherr.InvalidInput, err, "invalid feature id")
	}
	_, err := o.store.Transaction(func(sess *state.Session) error {
		if sess.FeatureByID(in.ID) != nil {
			return orcherr.Newf(orcherr.InvalidInput, "duplicate feature id %q", in.ID)
		}
		for _, dep := range in.DependsOn {
			if sess.FeatureByID(dep) == nil {
				return orcherr.Newf(orcherr.InvalidInput, "feature %q depends on unknown feature %q", in.ID, dep)
			}
		}
		maxRetries := in.MaxRetries
		if maxRetries <= 0 {
			maxRetries = o.opts.DefaultMaxRetries
		}
		candidate := append(append([]*state.Feature{}, sess.Features...), &state.Feature{
			ID: in.ID, Description: in.Description, Status: state.FeaturePending,
			MaxRetries: maxRetries, DependsOn: in.DependsOn, Validation: in.Validation,
		})
		if cycle := state.FindCycle(candidate); cycle != "" {
			return orcherr.Newf(orcherr.InvalidInput, "adding feature %q would create a dependency cycle at %q", in.ID, cycle)
		}
		sess.Features = candidate
		sess.Recompute()
		return nil
	})
	if err != nil {
		return translateSchedulerErr(err)
	}
	_ = o.store.AppendLog(fmt.Sprintf("feature %s added", in.ID))
	return nil
}

// SetDependencies replaces featureID's dependsOn set (set_dependencies),
// rejecting unknown ids and any resulting cycle before writing.
func (o *Operations) SetDependencies(featureID string, dependsOn []string) error {
	_, err := o.store.Transaction(func(sess *state.Session) error {
		f := sess.FeatureByID(featureID)
		if f == nil {
			return orcherr.Newf(orcherr.UnknownFeature, "no such feature %q", featureID)
		}
		for _, dep := range dependsOn {
			if dep == featureID {
				return orcherr.Newf(orcherr.InvalidInput, "feature %q cannot depend on itself", featureID)
			}
			if sess.FeatureByID(dep) == nil {
				return orcherr.Newf(orcherr.InvalidInput, "unknown dependency %q", dep)
			}
		}
		previous := f.DependsOn
		f.DependsOn = dependsOn
		if cycle := state.FindCycle(sess.Features); cycle != "" {
			f.DependsOn = previous
			return orcherr.Newf(orcherr.InvalidInput, "dependency cycle detected at feature %q", cycle)
		}
		return nil
	})
	return translateSchedulerErr(err)
}

// PauseSession kills all running workers and flips Session status to
// paused (pause_session). In the same transaction every in_progress
// Feature returns to pending and the worker records are dropped, so those
// features can be started again after resume.
func (o *Operations) PauseSession(ctx context.Context) error {
	var names []string
	_, err := o.store.Transaction(func(sess *state.Session) error {
		if sess.Status == state.SessionPaused {
			return orcherr.New(orcherr.InvalidTransition, "session is already paused")
		}
		sess.Status = state.SessionPaused
		names = names[:0]
		for name := range sess.Workers {
			names = append(names, name)
		}
		for _, f := range sess.Features {
			if f.Status == state.FeatureInProgress {
				f.Status = state.FeaturePending
				f.WorkerID = ""
				f.StartedAt = nil
			}
		}
		sess.Workers = map[string]*state.WorkerStatus{}
		return nil
	})
	if err != nil {
		return translateSchedulerErr(err)
	}
	if o.monitor != nil {
		o.monitor.Stop()
	}
	o.workers.Shutdown(ctx, names)
	_ = o.store.AppendLog("session paused")
	return nil
}

// ResumeSession flips Session status back to in_progress and restarts the
// monitor; workers themselves are not relaunched automatically — the
// caller must re-issue start_worker for any feature it wants resumed,
// since a paused worker's process is gone, not suspended.
func (o *Operations) ResumeSession(ctx context.Context) error {
	_, err := o.store.Transaction(func(sess *state.Session) error {
		if sess.Status != state.SessionPaused {
			return orcherr.New(orcherr.InvalidTransition, "session is not paused")
		}
		sess.Status = state.SessionInProgress
		sess.Recompute()
		return nil
	})
	if err != nil {
		return translateSchedulerErr(err)
	}
	if o.monitor != nil {
		o.monitor.Start(ctx)
	}
	_ = o.store.AppendLog("session resumed")
	return nil
}

// CommitProgress runs `git commit -am <message>` through the verification
// runner's allow-list and journals the result (commit_progress).
func (o *Operations) CommitProgress(ctx context.Context, message string) (verify.Result, error) {
	if _, err := os.Stat(filepath.Join(o.store.ProjectDir(), ".git")); err != nil {
		return verify.Result{}, boundaryErr(orcherr.InvalidInput, "not a git repository")
	}
	command := "git commit -am " + security.ShellQuote(message)
	result, err := o.RunVerification(ctx, command, 60)
	if err != nil {
		return result, err
	}
	_ = o.store.AppendLog(fmt.Sprintf("commit_progress: %s", message))
	return result, nil
}

// splitLines splits on \n without the stdlib strings import cluttering the
// call sites above; kept tiny and local since it's only used by the
// heartbeat scanner.
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}
