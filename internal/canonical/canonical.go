// Package canonical implements the Component Model's lift/lower rules
// (C6): translating between core Wasm values/memory and component-level
// types under a fixed set of per-call canonical options.
//
// Wholly new relative to the teacher (wazero's retrieved slice predates
// Component Model support), but follows wazero's own option-struct
// pattern (RuntimeConfig/ModuleConfig in config.go) for Options,
// and calls back into C5 through the same Instance.Call convention an
// ordinary export would use, with a fuel sub-budget guarding the
// realloc invocation.
package canonical

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/pulseengine/wrtcore/internal/interp"
	"github.com/pulseengine/wrtcore/internal/wrterr"
)

var log = logrus.WithField("component", "canonical")

// StringEncoding is the component-level string encoding in effect for one
// set of canonical options.
type StringEncoding uint8

const (
	EncodingUTF8 StringEncoding = iota
	EncodingUTF16LE
	EncodingUTF16BE
	EncodingLatin1
)

// Options fixes the canonical ABI parameters for one component-level call:
// which memory to read/write, which function (if any) performs allocation
// for variable-sized output, which function (if any) runs as post-return,
// and the string encoding in effect. Lower calls the post-return function
// itself, right after the value has been written and before it returns to
// its caller, so it runs before the caller has read the lowered result.
type Options struct {
	MemoryIdx      uint32
	ReallocFuncIdx uint32
	HasRealloc     bool
	PostReturnIdx  uint32
	HasPostReturn  bool
	StringEncoding StringEncoding
}

// reallocFuelCost is the sub-budget charged for one realloc invocation
// during lowering, guarding against a realloc implementation that loops
// indefinitely under the same task fuel budget as the caller.
const reallocFuelCost = 64

// guardedBudget caps consumption at a fixed ceiling regardless of the
// caller's remaining fuel, implementing the "guarded fuel sub-budget"
// realloc must run under.
type guardedBudget struct {
	remaining uint64
}

func (g *guardedBudget) Consume(cost uint64) error {
	if cost > g.remaining {
		return wrterr.New(wrterr.KindResource, 600, "realloc fuel sub-budget exhausted")
	}
	g.remaining -= cost
	return nil
}

// Engine lifts and lowers values against one component instance's linear
// memory, using its core Wasm functions for allocation.
type Engine struct {
	inst       *interp.Instance
	inRealloc  bool // per-task recursion guard: realloc must not call into lower again
}

// NewEngine binds an Engine to the already-instantiated core module that
// backs one component.
func NewEngine(inst *interp.Instance) *Engine {
	return &Engine{inst: inst}
}

// Value is a lifted or pre-lowering component-level value: a number, a
// string, a list, or a record (Fields in FieldOrd order). Variants and
// tuples are not represented. Lift and Lower handle only strings and byte
// lists; any other kind is rejected at lift/lower time.
type Value struct {
	Kind     ValueKind
	Num      uint64
	Str      string
	List     []Value
	Fields   map[string]Value
	FieldOrd []string // field iteration order, since Go maps are unordered
}

type ValueKind uint8

const (
	KindI32 ValueKind = iota
	KindI64
	KindF32
	KindF64
	KindString
	KindList
	KindRecord
)

// Lift reads ptr/len out of the component's memory and interprets them as
// kind, per the fixed canonical options. Numbers are lifted directly from
// the argument registers the caller already holds and never touch memory;
// Lift is for the memory-backed kinds.
func (e *Engine) Lift(kind ValueKind, ptr, length uint32, opts Options) (Value, error) {
	mem := e.memory(opts)
	if mem == nil {
		return Value{}, wrterr.New(wrterr.KindValidation, 601, "canonical options name an unknown memory")
	}
	switch kind {
	case KindString:
		return e.liftString(mem, ptr, length, opts.StringEncoding)
	case KindList:
		return e.liftByteList(mem, ptr, length)
	default:
		return Value{}, wrterr.New(wrterr.KindValidation, 602, "unsupported lift kind")
	}
}

func (e *Engine) memory(opts Options) memoryBytes {
	if int(opts.MemoryIdx) >= len(e.inst.Memories) {
		return nil
	}
	return e.inst.Memories[opts.MemoryIdx]
}

// memoryBytes is the narrow view Lift/Lower need onto a linear memory,
// satisfied by *memory.Instance.
type memoryBytes interface {
	Bytes() []byte
}

func (e *Engine) liftString(mem memoryBytes, ptr, length uint32, enc StringEncoding) (Value, error) {
	buf := mem.Bytes()
	if uint64(ptr)+uint64(length) > uint64(len(buf)) {
		return Value{}, wrterr.New(wrterr.KindTrap, 603, "string lift out of bounds")
	}
	raw := buf[ptr : ptr+length]
	s, err := decodeString(raw, enc)
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: KindString, Str: s}, nil
}

func (e *Engine) liftByteList(mem memoryBytes, ptr, length uint32) (Value, error) {
	buf := mem.Bytes()
	if uint64(ptr)+uint64(length) > uint64(len(buf)) {
		return Value{}, wrterr.New(wrterr.KindTrap, 604, "list lift out of bounds")
	}
	out := make([]Value, length)
	for i := uint32(0); i < length; i++ {
		out[i] = Value{Kind: KindI32, Num: uint64(buf[ptr+i])}
	}
	return Value{Kind: KindList, List: out}, nil
}

// allocation records one realloc-provided buffer, so a failed lower can
// free every buffer it allocated along the way.
type allocation struct {
	ptr, size, align uint32
}

// lowerState accumulates allocations across one Lower call for the
// cleanup pass spec.md §4.6 requires on failure.
type lowerState struct {
	allocs []allocation
}

// Lower writes v into the component's memory under opts, calling realloc
// for any variable-sized content. If any step fails, every buffer
// obtained via realloc during this call is freed (a zero-size realloc of
// the same pointer, the conventional free encoding) before the error is
// returned.
func (e *Engine) Lower(ctx context.Context, v Value, opts Options) (ptr, length uint32, err error) {
	if e.inRealloc {
		return 0, 0, wrterr.New(wrterr.KindValidation, 605, "realloc recursion is not permitted")
	}
	mem := e.memory(opts)
	if mem == nil {
		return 0, 0, wrterr.New(wrterr.KindValidation, 601, "canonical options name an unknown memory")
	}
	st := &lowerState{}
	ptr, length, err = e.lowerValue(ctx, v, opts, st)
	if err != nil {
		e.cleanup(ctx, opts, st)
		return 0, 0, err
	}
	if opts.HasPostReturn {
		if _, perr := e.inst.Call(ctx, opts.PostReturnIdx, nil, interp.NoBudget); perr != nil {
			log.WithError(perr).Warn("post-return function failed")
		}
	}
	return ptr, length, nil
}

func (e *Engine) lowerValue(ctx context.Context, v Value, opts Options, st *lowerState) (uint32, uint32, error) {
	switch v.Kind {
	case KindString:
		return e.lowerBytes(ctx, []byte(v.Str), opts, st)
	case KindList:
		b := make([]byte, len(v.List))
		for i, el := range v.List {
			b[i] = byte(el.Num)
		}
		return e.lowerBytes(ctx, b, opts, st)
	default:
		return 0, 0, wrterr.New(wrterr.KindValidation, 606, "unsupported lower kind")
	}
}

func (e *Engine) lowerBytes(ctx context.Context, data []byte, opts Options, st *lowerState) (uint32, uint32, error) {
	if !opts.HasRealloc {
		return 0, 0, wrterr.New(wrterr.KindValidation, 607, "lowering variable-sized data requires realloc")
	}
	ptr, err := e.realloc(ctx, opts, 0, 0, 8, uint32(len(data)))
	if err != nil {
		return 0, 0, err
	}
	st.allocs = append(st.allocs, allocation{ptr: ptr, size: uint32(len(data)), align: 8})

	buf := e.inst.Memories[opts.MemoryIdx].Bytes()
	if uint64(ptr)+uint64(len(data)) > uint64(len(buf)) {
		return 0, 0, wrterr.New(wrterr.KindTrap, 608, "realloc returned a buffer outside memory bounds")
	}
	copy(buf[ptr:], data)
	return ptr, uint32(len(data)), nil
}

// realloc invokes the component's realloc export through C5, under a fixed
// fuel sub-budget, with the recursion guard set for the duration of the
// call.
func (e *Engine) realloc(ctx context.Context, opts Options, prevPtr, prevSize, align, newSize uint32) (uint32, error) {
	e.inRealloc = true
	defer func() { e.inRealloc = false }()

	budget := &guardedBudget{remaining: reallocFuelCost}
	results, err := e.inst.Call(ctx, opts.ReallocFuncIdx,
		[]uint64{uint64(prevPtr), uint64(prevSize), uint64(align), uint64(newSize)}, budget)
	if err != nil {
		return 0, wrterr.Wrap(wrterr.KindResource, 609, "realloc failed", err)
	}
	if len(results) == 0 {
		return 0, wrterr.New(wrterr.KindValidation, 610, "realloc returned no pointer")
	}
	return uint32(results[0]), nil
}

// cleanup frees every buffer recorded in st by calling realloc with a
// zero new_size, the conventional deallocation encoding, per spec.md
// §4.6's "none of them leak" requirement.
func (e *Engine) cleanup(ctx context.Context, opts Options, st *lowerState) {
	if !opts.HasRealloc {
		return
	}
	for _, a := range st.allocs {
		if _, err := e.realloc(ctx, opts, a.ptr, a.size, a.align, 0); err != nil {
			log.WithError(err).Warn("cleanup realloc failed; buffer leaked")
		}
	}
}

func decodeString(raw []byte, enc StringEncoding) (string, error) {
	switch enc {
	case EncodingUTF8:
		return string(raw), nil
	case EncodingLatin1:
		runes := make([]rune, len(raw))
		for i, b := range raw {
			runes[i] = rune(b)
		}
		return string(runes), nil
	case EncodingUTF16LE, EncodingUTF16BE:
		if len(raw)%2 != 0 {
			return "", wrterr.New(wrterr.KindValidation, 611, "UTF-16 string has odd byte length")
		}
		units := make([]uint16, len(raw)/2)
		for i := range units {
			if enc == EncodingUTF16LE {
				units[i] = uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
			} else {
				units[i] = uint16(raw[2*i+1]) | uint16(raw[2*i])<<8
			}
		}
		return utf16Decode(units), nil
	default:
		return "", wrterr.New(wrterr.KindValidation, 612, "unsupported string encoding")
	}
}

func utf16Decode(units []uint16) string {
	runes := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		if u >= 0xd800 && u <= 0xdbff && i+1 < len(units) {
			lo := units[i+1]
			if lo >= 0xdc00 && lo <= 0xdfff {
				r := (rune(u-0xd800)<<10 | rune(lo-0xdc00)) + 0x10000
				runes = append(runes, r)
				i++
				continue
			}
		}
		runes = append(runes, rune(u))
	}
	return string(runes)
}
