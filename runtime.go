// Package wrtcore is the public facade over the eight core components: a
// safety-critical Wasm runtime combining a capability-gated memory system, a
// stackless fuel-metered interpreter, a Canonical ABI engine, and a
// fuel-aware async executor with a thread pool behind it. Everything outside
// this facade and api/ is an internal implementation detail; the cargo-style
// CLI, diagnostics, and report generation a host application builds on top
// are strictly external collaborators (spec section 6) that only ever call
// LoadModule/Instantiate/Invoke-shaped operations exposed here.
package wrtcore

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/pulseengine/wrtcore/internal/async"
	"github.com/pulseengine/wrtcore/internal/capability"
	"github.com/pulseengine/wrtcore/internal/decode"
	"github.com/pulseengine/wrtcore/internal/module"
	"github.com/pulseengine/wrtcore/internal/threads"
	"github.com/pulseengine/wrtcore/internal/wrterr"
)

var log = logrus.WithField("component", "wrtcore")

// Runtime is the top-level handle an embedder holds: one capability
// Context (spec section 9: "route all capability creation through the
// returned context handle"), one thread pool, and one async executor. A
// process should construct at most one Runtime, matching capability.Init's
// call-once contract.
type Runtime struct {
	config  *RuntimeConfig
	capCtx  *capability.Context
	tracker *threads.ResourceTracker
	pool    *threads.Pool
	exec    *async.Executor

	nextTaskID uint64
}

// NewRuntime constructs a Runtime from config (or NewRuntimeConfig()'s
// defaults if nil), initializing the process-wide capability Context exactly
// once. A second call to NewRuntime within the same process returns the
// error capability.Init produces on reinitialization, per spec section 9.
func NewRuntime(config *RuntimeConfig) (*Runtime, error) {
	if config == nil {
		config = NewRuntimeConfig()
	}
	capCtx, err := capability.Init(config.verificationLevel)
	if err != nil {
		return nil, err
	}
	tracker := threads.NewResourceTracker(config.threadPool.MaxThreads, config.threadPool.MaxThreads)
	pool := threads.NewPool(config.threadPool, tracker)
	return &Runtime{
		config:  config,
		capCtx:  capCtx,
		tracker: tracker,
		pool:    pool,
		exec:    async.NewExecutor(),
	}, nil
}

// Close cancels the pool's workers whose health is not Healthy (see
// threads.Pool.ReapUnhealthy); healthy workers are left running. It never
// returns an error from the Wasm side; thread teardown is best-effort
// cancellation, matching the cooperative cancellation model of spec
// section 5.
func (r *Runtime) Close(context.Context) error {
	r.pool.ReapUnhealthy()
	return nil
}

// CompiledModule is the immutable output of Runtime.CompileModule: a
// decoded, not-yet-instantiated Module (spec section 3's "Module" record).
type CompiledModule struct {
	mod *module.Module
}

// Format reports whether m is a core Wasm module or a Component Model
// binary (spec section 4.3).
func (m *CompiledModule) Format() module.Format { return m.mod.Format }

// CompileModule decodes binary (spec operation "load_module"), charging its
// byte length against the decoder crate's capability budget before parsing
// so that a hostile or oversized input cannot allocate past the decoder's
// compile-time budget. The decoder itself performs no allocation (spec
// section 4.3); this charge only accounts for holding the input bytes.
func (r *Runtime) CompileModule(binary []byte) (*CompiledModule, error) {
	cap, err := r.capCtx.Alloc(capability.CrateDecoder, uint64(len(binary)))
	if err != nil {
		return nil, err
	}
	defer cap.Release()
	if err := cap.Verify(capability.OpRead, uint64(len(binary))); err != nil {
		return nil, err
	}

	mod, err := decode.Decode(binary)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"format": mod.Format, "functions": mod.NumFunctions()}).Debug("module compiled")
	return &CompiledModule{mod: mod}, nil
}

// HostFunction is an import resolved by the embedder, keyed by the
// (module, name) pair an Import names (spec section 3: Instance ownership;
// imports are resolved at instantiation, not at decode time).
type HostFunction struct {
	Module, Name string
	Type         *module.FunctionType
	Func         func(ctx context.Context, args []uint64) ([]uint64, error)
}

// newTask wraps a fresh async.Task carrying the next runtime-wide task id
// and the given priority and fuel budget.
func (r *Runtime) newTask(priority async.Priority, fuel uint64, f async.Future) *Task {
	id := atomic.AddUint64(&r.nextTaskID, 1)
	return &Task{t: async.NewTask(id, priority, fuel, f)}
}

// Task is the embedder-facing handle onto one scheduled unit of execution
// (spec section 3's Task record): a fuel budget, priority, and terminal
// state. It satisfies internal/interp.Budget so an exported Function.Call
// made while driving a Task meters against the same fuel pool as the Task's
// own scheduling (spec section 4.7).
type Task struct {
	t *async.Task
}

// NewTask creates a Task with its own fuel budget, not yet spawned onto the
// Runtime's executor. Use Runtime.Spawn to run it.
func (r *Runtime) NewTask(priority async.Priority, fuel uint64, f async.Future) *Task {
	return r.newTask(priority, fuel, f)
}

// Spawn admits t onto the Runtime's single-threaded cooperative executor.
func (r *Runtime) Spawn(t *Task) { r.exec.Spawn(t.t) }

// RunExecutor drives every spawned Task to completion, cancellation, or
// fuel exhaustion, polling in FIFO order within priority (spec section
// 4.7).
func (r *Runtime) RunExecutor(ctx context.Context) error { return r.exec.Run(ctx) }

// Consume implements interp.Budget, delegating to the underlying
// internal/async.Task.
func (tk *Task) Consume(cost uint64) error { return tk.t.Consume(cost) }

// State reports the Task's current lifecycle state.
func (tk *Task) State() async.State { return tk.t.State() }

// Err returns the error a Failed task terminated with, if any.
func (tk *Task) Err() error { return tk.t.Err() }

// TrapDetail is the user-visible description of a trapped invocation (spec
// section 7): the trap kind, faulting (module, function, pc), and source
// line when debug info was present. ExtractTrapDetail recovers one from any
// error a Function.Call returned.
type TrapDetail struct {
	Kind       string
	Function   uint32
	PC         uint64
	SourceLine uint32
	HasLine    bool
	Found      bool
}

// taskContextKey is the unexported context.Context key WithTask/
// TaskFromContext use, mirroring wazero's experimental package pattern of
// small, swappable values threaded through context.Context rather than
// package-level globals.
type taskContextKey struct{}

// WithTask attaches t to ctx so that a subsequent exportedFunction.Call
// meters fuel against it.
func WithTask(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, taskContextKey{}, t)
}

// TaskFromContext retrieves the Task attached by WithTask, if any.
func TaskFromContext(ctx context.Context) (*Task, bool) {
	t, ok := ctx.Value(taskContextKey{}).(*Task)
	return t, ok
}

// ExtractTrapDetail inspects err for the structured fields an
// internal/interp trap attaches via wrterr.Error.WithFields. It returns
// Found=false for any error that is not a KindTrap wrterr.Error, including
// nil.
func ExtractTrapDetail(err error) TrapDetail {
	we, ok := err.(*wrterr.Error)
	if !ok || we.Kind != wrterr.KindTrap {
		return TrapDetail{}
	}
	return TrapDetail{
		Kind:       we.Message,
		Function:   we.Fields.FunctionIdx,
		PC:         we.Fields.PC,
		SourceLine: we.Fields.SourceLine,
		HasLine:    we.Fields.HasSourceLine,
		Found:      true,
	}
}
