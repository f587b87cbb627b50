// Package engine serves compiled policies to a running host. It owns the
// compile-attach-swap cycle: a policy file is compiled, bound to the host's
// externals and published atomically, so in-flight invocations finish on
// the program they started with while new ones pick up the replacement.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/pipeline"
	"github.com/ruta-lang/ruta/internal/types"
	"github.com/ruta-lang/ruta/internal/vm"
)

// Config describes one served policy unit.
type Config struct {
	// Path is the policy source file.
	Path string
	// Entry names the filtermap or filter to invoke. Empty picks the
	// unit's only entrypoint and fails if there are several.
	Entry string
	// Registry is the sealed external type surface.
	Registry *types.Registry
	// Bindings back the external-call table.
	Bindings map[string]vm.ExternalFunc
	// Options passes through to the VM.
	Options vm.Options
}

// Engine runs one policy unit and hot-reloads it.
type Engine struct {
	cfg   Config
	cur   atomic.Pointer[instance]
	gen   atomic.Uint64
	onLog func(format string, args ...any)
}

// instance pairs one compiled program with its entry so both swap
// together.
type instance struct {
	machine *vm.Machine
	entry   string
}

// New prepares an engine; nothing is loaded yet.
func New(cfg Config) (*Engine, error) {
	if cfg.Registry == nil || !cfg.Registry.Sealed() {
		return nil, fmt.Errorf("engine: registry must be sealed")
	}
	return &Engine{cfg: cfg, onLog: func(string, ...any) {}}, nil
}

// SetLogf installs a reload log sink.
func (e *Engine) SetLogf(f func(format string, args ...any)) {
	if f != nil {
		e.onLog = f
	}
}

// Load compiles the policy file and, on success, publishes it. Failure
// leaves the previous program serving; the diagnostics say why.
func (e *Engine) Load() ([]diag.Diagnostic, error) {
	src, err := os.ReadFile(e.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	res := pipeline.Compile(string(src), filepath.Base(e.cfg.Path), e.cfg.Registry)
	if res.Program == nil {
		return res.Diags, fmt.Errorf("engine: %s does not compile", e.cfg.Path)
	}
	machine, err := vm.Attach(res.Program, e.cfg.Bindings, e.cfg.Options)
	if err != nil {
		return res.Diags, fmt.Errorf("engine: %w", err)
	}
	entry, err := resolveEntry(res.Program, e.cfg.Entry)
	if err != nil {
		return res.Diags, err
	}
	e.cur.Store(&instance{machine: machine, entry: entry})
	gen := e.gen.Add(1)
	e.onLog("loaded %s entry=%s build=%s generation=%d", e.cfg.Path, entry, res.Program.BuildID, gen)
	return res.Diags, nil
}

func resolveEntry(p *vm.Program, want string) (string, error) {
	entries := p.Entrypoints()
	if want != "" {
		for _, name := range entries {
			if name == want {
				return want, nil
			}
		}
		return "", fmt.Errorf("engine: no entrypoint %q in unit (have %v)", want, entries)
	}
	switch len(entries) {
	case 0:
		return "", fmt.Errorf("engine: unit has no filtermap or filter")
	case 1:
		return entries[0], nil
	default:
		return "", fmt.Errorf("engine: unit has several entrypoints %v, configure one", entries)
	}
}

// Run evaluates the current program. Concurrent with Load.
func (e *Engine) Run(args []vm.Value) (vm.Outcome, error) {
	inst := e.cur.Load()
	if inst == nil {
		return vm.Outcome{}, fmt.Errorf("engine: no program loaded")
	}
	return inst.machine.Run(inst.entry, args)
}

// Program returns the currently served program, nil before first Load.
func (e *Engine) Program() *vm.Program {
	inst := e.cur.Load()
	if inst == nil {
		return nil
	}
	return inst.machine.Program()
}

// Generation counts successful loads.
func (e *Engine) Generation() uint64 { return e.gen.Load() }

// Watch reloads the policy whenever its file changes, until the context
// ends. The parent directory is watched because editors commonly replace
// the file by rename, which drops a watch on the file itself.
func (e *Engine) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(e.cfg.Path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("engine: watch %s: %w", dir, err)
	}
	target, err := filepath.Abs(e.cfg.Path)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			path, err := filepath.Abs(ev.Name)
			if err != nil || path != target {
				continue
			}
			if diags, err := e.Load(); err != nil {
				e.onLog("reload failed, keeping generation %d: %v", e.gen.Load(), err)
				for _, d := range diags {
					e.onLog("  %s", d)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			e.onLog("watch error: %v", err)
		}
	}
}
