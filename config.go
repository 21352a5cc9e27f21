package wrtcore

import (
	"context"

	"github.com/pulseengine/wrtcore/internal/capability"
	"github.com/pulseengine/wrtcore/internal/threads"
)

// RuntimeConfig controls Runtime behavior, with the default implementation
// produced by NewRuntimeConfig. Mirrors the teacher's RuntimeConfig/clone
// builder pattern (config.go): every With* method returns a modified copy
// rather than mutating the receiver, so a shared base config can be safely
// specialized per Runtime.
type RuntimeConfig struct {
	ctx               context.Context
	verificationLevel capability.Level
	defaultFuelBudget uint64
	memoryMaxPages    uint32
	threadPool        threads.PoolConfig
}

// defaultConfig mirrors the teacher's engineLessConfig: a package-level
// template that every NewRuntimeConfig call clones from, so defaults live in
// exactly one place.
var defaultConfig = &RuntimeConfig{
	ctx:               context.Background(),
	verificationLevel: capability.LevelStandard,
	defaultFuelBudget: 1_000_000,
	memoryMaxPages:    65536,
	threadPool: threads.PoolConfig{
		MaxThreads:      8,
		MinPriority:     0,
		MaxPriority:     7,
		PerThreadMemory: 4 << 20,
		StackBytes:      1 << 20,
		LifetimeCap:     0,
	},
}

// NewRuntimeConfig returns a RuntimeConfig with safety-critical defaults:
// Standard capability verification, a bounded default fuel budget per task,
// and a small fixed thread pool. Embedders targeting ASIL D should also call
// WithVerificationLevel(capability.LevelFull).
func NewRuntimeConfig() *RuntimeConfig {
	return defaultConfig.clone()
}

func (c *RuntimeConfig) clone() *RuntimeConfig {
	cp := *c
	return &cp
}

// WithContext sets the default context used for Runtime-level operations
// that are not already threaded through an explicit context.Context
// parameter. Defaults to context.Background if nil.
func (c *RuntimeConfig) WithContext(ctx context.Context) *RuntimeConfig {
	if ctx == nil {
		ctx = context.Background()
	}
	ret := c.clone()
	ret.ctx = ctx
	return ret
}

// WithVerificationLevel sets the capability verification level every
// Capability issued by this Runtime's Context carries (spec section 4.1).
func (c *RuntimeConfig) WithVerificationLevel(level capability.Level) *RuntimeConfig {
	ret := c.clone()
	ret.verificationLevel = level
	return ret
}

// WithDefaultFuelBudget records a default per-task fuel budget in the
// config. Runtime.NewTask takes its fuel budget as an explicit argument and
// does not read this value.
func (c *RuntimeConfig) WithDefaultFuelBudget(fuel uint64) *RuntimeConfig {
	ret := c.clone()
	ret.defaultFuelBudget = fuel
	return ret
}

// WithMemoryMaxPages reduces the maximum number of pages a memory can grow
// to when its module declares no explicit maximum, mirroring the teacher's
// WithMemoryMaxPages (config.go) but defaulting to the full Wasm32 address
// space rather than an arbitrary lower bound.
func (c *RuntimeConfig) WithMemoryMaxPages(pages uint32) *RuntimeConfig {
	ret := c.clone()
	ret.memoryMaxPages = pages
	return ret
}

// WithThreadPoolConfig overrides the C8 thread pool's sizing and health
// parameters.
func (c *RuntimeConfig) WithThreadPoolConfig(pc threads.PoolConfig) *RuntimeConfig {
	ret := c.clone()
	ret.threadPool = pc
	return ret
}
