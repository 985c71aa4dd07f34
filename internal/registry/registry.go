// Package registry owns the process-wide mapping from project directory to
// its (Store, WorkerManager, Monitor, Operations) quadruple. There is no
// implicit lazy initialization at first write: a project directory's
// Instance is created exactly once, the first time any operation touches
// it, and torn down exactly once, on orchestrator_reset or process
// shutdown.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/boshu2/orchestratord/internal/config"
	"github.com/boshu2/orchestratord/internal/monitor"
	"github.com/boshu2/orchestratord/internal/ops"
	"github.com/boshu2/orchestratord/internal/security"
	"github.com/boshu2/orchestratord/internal/state"
	"github.com/boshu2/orchestratord/internal/verify"
	"github.com/boshu2/orchestratord/internal/worker"
)

// Instance bundles everything a single project directory needs: its
// durable Store, the WorkerManager that owns its multiplexer sessions, the
// background Monitor, and the Operations boundary layer composing all
// three.
type Instance struct {
	Store   *state.Store
	Workers *worker.Manager
	Monitor *monitor.Monitor
	Ops     *ops.Operations

	cancel context.CancelFunc
}

// Registry is the process-wide `projectDir -> Instance` map. One Registry
// is constructed at process startup (cmd/orchestratord) and shared by every
// request handler.
type Registry struct {
	mu        sync.Mutex
	instances map[string]*Instance
	cfg       *config.Config
	log       zerolog.Logger
}

// New constructs an empty Registry bound to cfg and log.
func New(cfg *config.Config, log zerolog.Logger) *Registry {
	return &Registry{
		instances: map[string]*Instance{},
		cfg:       cfg,
		log:       log.With().Str("component", "registry").Logger(),
	}
}

// Get returns the Instance for projectDir, constructing and starting it if
// this is the first time the directory has been seen by this process.
// projectDir must already be the value returned by
// security.ValidateProjectDir.
func (r *Registry) Get(ctx context.Context, projectDir string) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.instances[projectDir]; ok {
		return inst, nil
	}

	store := state.Open(projectDir, r.log)

	mux := worker.NewMux(r.cfg.Mux)
	wm := worker.NewManager(mux, store.WorkersDir(), r.cfg.AgentBinary, r.log)

	runner := verify.New(projectDir, r.cfg.Verification.AllowedEnv, r.cfg.Verification.MaxOutputBytes, r.log)

	mon := monitor.New(store, wm, time.Duration(r.cfg.MonitorIntervalSec)*time.Second, r.cfg.MonitorMaxConsecutiveErrors, r.log)

	opsInstance := ops.New(store, wm, runner, mon, ops.Options{
		AgentBinary:       r.cfg.AgentBinary,
		MaxParallel:       r.cfg.MaxParallelWorkers,
		DefaultMaxRetries: r.cfg.MaxRetries,
	}, r.log)

	monCtx, cancel := context.WithCancel(context.Background())
	mon.Start(monCtx)

	inst := &Instance{Store: store, Workers: wm, Monitor: mon, Ops: opsInstance, cancel: cancel}
	r.instances[projectDir] = inst
	r.log.Info().Str("project_dir", projectDir).Msg("registry instance created")
	return inst, nil
}

// Resolve validates raw and returns the canonical project directory used as
// the Registry's key, without constructing an Instance — callers that need
// both call ValidateProjectDir once via this helper, then Get.
func Resolve(raw string) (string, error) {
	return security.ValidateProjectDir(raw)
}

// Teardown stops projectDir's monitor and removes it from the registry
// without touching its on-disk state (compare Reset, which also clears
// state files). Used by orchestrator_reset after Ops.Reset has already run.
func (r *Registry) Teardown(projectDir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[projectDir]
	if !ok {
		return
	}
	inst.Monitor.Stop()
	if inst.cancel != nil {
		inst.cancel()
	}
	delete(r.instances, projectDir)
}

// Shutdown stops every registered Monitor and best-effort kills every live
// worker session across every project directory. It is the method
// cmd/orchestratord calls from its SIGINT/SIGTERM handler.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for projectDir, inst := range r.instances {
		inst.Monitor.Stop()
		if inst.cancel != nil {
			inst.cancel()
		}

		sess, err := inst.Store.Load()
		if err != nil {
			r.log.Warn().Err(err).Str("project_dir", projectDir).Msg("could not load session during shutdown")
			if firstErr == nil {
				firstErr = fmt.Errorf("load session for %s: %w", projectDir, err)
			}
			continue
		}
		if sess == nil {
			continue
		}
		names := make([]string, 0, len(sess.Workers))
		for name := range sess.Workers {
			names = append(names, name)
		}
		if errs := inst.Workers.Shutdown(ctx, names); len(errs) > 0 {
			r.log.Warn().Int("errors", len(errs)).Str("project_dir", projectDir).Msg("errors killing workers during shutdown")
		}
	}
	r.instances = map[string]*Instance{}
	return firstErr
}
