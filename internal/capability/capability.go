// Package capability implements the memory capability system (C1): budgets
// are handed out as Capabilities, and a Provider wrapped in a
// CapabilityAwareProvider is gated by one, so that a budget violation is a
// typed InsufficientCapability error rather than a panic or an unbounded
// allocation. The containers in internal/bound are plain fixed-capacity Go
// values and are not backed by a Provider.
//
// This mirrors the way wazero's internal/wasm store owns all mutable state
// by index rather than by shared pointer: here, a Context owns every Crate's
// remaining budget, and a Capability is a narrow, unforgeable view onto one
// crate's slice of it.
package capability

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/pulseengine/wrtcore/internal/wrterr"
)

var log = logrus.WithField("component", "capability")

// Crate is a closed enum naming the budget-accounting boundary a capability
// was issued for. The names mirror the Rust crate boundaries of the
// original implementation (foundation, runtime, component, decoder, ...)
// even though Go has no crate concept of its own.
type Crate uint8

const (
	CrateFoundation Crate = iota
	CrateRuntime
	CrateComponent
	CrateDecoder
	CrateAsync
	CrateThreads
	crateCount
)

func (c Crate) String() string {
	switch c {
	case CrateFoundation:
		return "foundation"
	case CrateRuntime:
		return "runtime"
	case CrateComponent:
		return "component"
	case CrateDecoder:
		return "decoder"
	case CrateAsync:
		return "async"
	case CrateThreads:
		return "threads"
	default:
		return "unknown"
	}
}

// Level is the verification-level lattice: None < Standard < Full. An
// Operation tags itself with the minimum level it requires; a Capability
// issued at a lower level may not authorize it. Mirrors the total order
// required by wrt-foundation/src/verify.rs in the original source.
type Level uint8

const (
	LevelNone Level = iota
	LevelStandard
	LevelFull
)

// Operation is a single guarded action on a memory provider.
type Operation uint8

const (
	OpRead Operation = iota
	OpWrite
	OpAllocate
	OpDeallocate
)

// minLevel is the verification level each operation requires at minimum.
// Allocation and deallocation move budget and so require at least Standard
// verification; deallocation additionally requires Full since it is the
// operation most able to corrupt accounting if mis-verified.
func (op Operation) minLevel() Level {
	switch op {
	case OpRead:
		return LevelNone
	case OpWrite:
		return LevelStandard
	case OpAllocate:
		return LevelStandard
	case OpDeallocate:
		return LevelFull
	default:
		return LevelFull
	}
}

// budgets is the compile-time byte budget assigned to each Crate. These are
// policy constants, analogous to the fuel cost table of C5: fixed per
// release, documented here rather than configurable at a call site.
var budgets = [crateCount]uint64{
	CrateFoundation: 4 << 20,
	CrateRuntime:    8 << 20,
	CrateComponent:  4 << 20,
	CrateDecoder:    2 << 20,
	CrateAsync:      2 << 20,
	CrateThreads:    2 << 20,
}

// Context owns every crate's remaining budget and is the sole source of
// Capability values. Exactly one Context exists per process; see Init.
type Context struct {
	remaining [crateCount]*int64 // atomic, bytes remaining per crate
	level     Level
}

var (
	globalCtx   *Context
	initialized int32 // 0 = never initialized, 1 = Init has run
)

// Init creates the process-wide Context. It fails if called twice, per
// spec section 9's "never rely on implicit statics at call sites" guidance:
// the context handle returned here is the only legitimate path to a
// Capability. The CompareAndSwap makes the first-caller-wins check atomic
// across concurrent Init calls, unlike a sync.Once guard alone, which only
// reports "I am not the first" implicitly through a separate state flag.
func Init(level Level) (*Context, error) {
	if !atomic.CompareAndSwapInt32(&initialized, 0, 1) {
		return nil, wrterr.New(wrterr.KindCapability, 2, "capability: Init called more than once")
	}
	ctx := &Context{level: level}
	for c := Crate(0); c < crateCount; c++ {
		v := int64(budgets[c])
		ctx.remaining[c] = &v
	}
	globalCtx = ctx
	return globalCtx, nil
}

// Capability is an unforgeable token authorizing operations on memory owned
// by crate up to maxBytes, at a given verification level. It is consumed by
// reference from the wrapper that guards a Provider; it never mutates
// itself.
type Capability struct {
	crate    Crate
	maxBytes uint64
	level    Level
	ctx      *Context
}

// Alloc reserves n bytes from crate's remaining budget and returns a
// Capability for them. It never panics; if n exceeds what remains, it
// returns InsufficientCapability.
func (c *Context) Alloc(crate Crate, n uint64) (*Capability, error) {
	if crate >= crateCount {
		return nil, wrterr.New(wrterr.KindCapability, 3, "capability: unknown crate")
	}
	remaining := c.remaining[crate]
	for {
		cur := atomic.LoadInt64(remaining)
		if cur < int64(n) {
			log.WithFields(logrus.Fields{"crate": crate.String(), "requested": n, "remaining": cur}).
				Warn("capability budget exceeded")
			return nil, wrterr.New(wrterr.KindCapability, 4, "InsufficientCapability: budget exceeded").
				WithFields(wrterr.Fields{})
		}
		if atomic.CompareAndSwapInt64(remaining, cur, cur-int64(n)) {
			return &Capability{crate: crate, maxBytes: n, level: c.level, ctx: c}, nil
		}
	}
}

// Release returns the capability's bytes to the crate's remaining budget.
// A Capability must not be used after Release.
func (cap *Capability) Release() {
	atomic.AddInt64(cap.ctx.remaining[cap.crate], int64(cap.maxBytes))
}

// Verify rejects op if it exceeds this capability's budget or its
// verification level, returning InsufficientCapability. It never panics.
func (cap *Capability) Verify(op Operation, n uint64) error {
	if cap.level < op.minLevel() {
		return wrterr.New(wrterr.KindCapability, 5, "InsufficientCapability: verification level too low")
	}
	if op == OpAllocate && n > cap.maxBytes {
		return wrterr.New(wrterr.KindCapability, 6, "InsufficientCapability: allocation exceeds capability budget")
	}
	return nil
}

// Remaining reports the crate's currently unreserved budget, for diagnostics
// and for property 3 ("capability containment") tests.
func (c *Context) Remaining(crate Crate) uint64 {
	if crate >= crateCount {
		return 0
	}
	v := atomic.LoadInt64(c.remaining[crate])
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// Provider is raw, growable byte storage with no notion of capability
// (internal/memory.Instance.AsProvider returns one). The collections in
// internal/bound do not use it.
type Provider interface {
	Bytes() []byte
	Grow(delta int) error
}

// CapabilityAwareProvider wraps a Provider so that Bytes first verifies
// OpRead and Grow first verifies OpAllocate. It has no separate write
// method: the slice Bytes returns is the provider's storage, and writes
// through it are not verified.
type CapabilityAwareProvider struct {
	inner Provider
	cap   *Capability
}

// Wrap pairs a Provider with a Capability. Every subsequent access is
// gated.
func Wrap(inner Provider, cap *Capability) *CapabilityAwareProvider {
	return &CapabilityAwareProvider{inner: inner, cap: cap}
}

func (p *CapabilityAwareProvider) Bytes() ([]byte, error) {
	if err := p.cap.Verify(OpRead, 0); err != nil {
		return nil, err
	}
	return p.inner.Bytes(), nil
}

func (p *CapabilityAwareProvider) Grow(delta int) error {
	if err := p.cap.Verify(OpAllocate, uint64(delta)); err != nil {
		return err
	}
	return p.inner.Grow(delta)
}
