// Package interp implements the stackless interpreter (C5): execution over
// explicit value/call/control stacks, with no use of the host machine's
// call stack for Wasm frames. This is grounded directly on
// internal/engine/interpreter/interpreter.go's callEngine/callFrame shape
// (stack []uint64, frames []*callFrame, pushFrame/popFrame with a
// callStackCeiling) and its big switch-over-opcode dispatch loop, adapted
// to operate on raw decoded opcodes (this package's own, simpler compile
// pass in compile.go) rather than reproducing wazeroir's full IR lowering.
package interp

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/pulseengine/wrtcore/internal/memory"
	"github.com/pulseengine/wrtcore/internal/module"
	"github.com/pulseengine/wrtcore/internal/wrterr"
)

var log = logrus.WithField("component", "interp")

// callStackCeiling bounds call-stack depth the same way the teacher's
// buildoptions.CallStackCeiling does; exceeding it traps rather than
// growing without bound, since unhosted builds have no heap to grow into.
const callStackCeiling = 8192

// HostFunc is a function implemented in Go rather than Wasm bytecode.
type HostFunc func(ctx context.Context, args []uint64) ([]uint64, error)

// FunctionInstance is one entry of a module's function index space: either
// a compiled Wasm function body or a host function.
type FunctionInstance struct {
	Idx       uint32
	Type      *module.FunctionType
	NumLocals int // params + declared locals
	compiled  *compiledFunction
	host      HostFunc
}

// IsHost reports whether this function is implemented in Go.
func (f *FunctionInstance) IsHost() bool { return f.host != nil }

// Instance pairs a Module with concrete memory/table/global/function
// vectors, per spec section 3: the instance exclusively owns its mutable
// state, and function references elsewhere are weak (an index into this
// vector), never a pointer, avoiding the Module<->Instance cycle spec
// section 9 calls out.
type Instance struct {
	Module    *module.Module
	Functions []*FunctionInstance
	Memories  []*memory.Instance
	Tables    []*memory.Table
	Globals   []uint64
	globalMut []bool
}

// NewInstance compiles every function body in mod and wires up the
// memory/table/global vectors from already-allocated backing stores.
// Validation (spec section 8, property 1) must have already succeeded;
// NewInstance does not re-validate, it only compiles block structure.
func NewInstance(mod *module.Module, memories []*memory.Instance, tables []*memory.Table) (*Instance, error) {
	inst := &Instance{Module: mod, Memories: memories, Tables: tables}
	// Imported functions take the low indices; their slots stay nil until
	// BindHostFunction fills them.
	inst.Functions = make([]*FunctionInstance, mod.ImportedFunctionCount())

	for _, g := range mod.GlobalSection {
		inst.Globals = append(inst.Globals, evalConstExprAsGlobalInit(g.Init))
		inst.globalMut = append(inst.globalMut, g.Type.Mutable)
	}

	for i, code := range mod.CodeSection {
		typeIdx := mod.FunctionSection[i]
		if int(typeIdx) >= len(mod.TypeSection) {
			return nil, wrterr.New(wrterr.KindValidation, 310, "function type index out of bounds")
		}
		cf, err := compileFunction(code.Body)
		if err != nil {
			return nil, err
		}
		inst.Functions = append(inst.Functions, &FunctionInstance{
			Idx:       uint32(i) + mod.ImportedFunctionCount(),
			Type:      mod.TypeSection[typeIdx],
			NumLocals: len(mod.TypeSection[typeIdx].Params) + len(code.LocalTypes),
			compiled:  cf,
		})
	}
	return inst, nil
}

// evalConstExprAsGlobalInit evaluates the restricted constant-expression
// grammar (i32/i64/f32/f64 const; global.get of an already-initialized
// imported global is not supported in this simplified constant evaluator)
// used for global initializers.
func evalConstExprAsGlobalInit(c *module.ConstantExpression) uint64 {
	switch c.Opcode {
	case 0x41: // i32.const
		v, _, _ := decodeI32LEB(c.Data)
		return uint64(uint32(v))
	case 0x42: // i64.const
		v, _, _ := decodeI64LEB(c.Data)
		return uint64(v)
	case 0x43: // f32.const
		if len(c.Data) >= 4 {
			return uint64(littleEndianU32(c.Data))
		}
	case 0x44: // f64.const
		if len(c.Data) >= 8 {
			return littleEndianU64(c.Data)
		}
	}
	return 0
}

// BindHostFunction registers a Go function at the given function index,
// for imported functions resolved by the embedder.
func (inst *Instance) BindHostFunction(idx uint32, sig *module.FunctionType, fn HostFunc) {
	hf := &FunctionInstance{Idx: idx, Type: sig, host: fn}
	for uint32(len(inst.Functions)) <= idx {
		inst.Functions = append(inst.Functions, nil)
	}
	// Host functions occupy the low, imported indices, which NewInstance
	// leaves empty ahead of the module's own functions, so this simply
	// places hf directly at idx.
	inst.Functions[idx] = hf
}

type label struct {
	targetPC  int
	arity     int
	stackBase int
	isLoop    bool
}

type callFrame struct {
	fn     *FunctionInstance
	locals []uint64
	pc     int
	labels []label
}

// callEngine holds per-Call state: the operand stack and the call-frame
// stack, directly mirroring the teacher's callEngine.
type callEngine struct {
	stack  []uint64
	frames []*callFrame
	ctx    context.Context
}

func (ce *callEngine) push(v uint64) { ce.stack = append(ce.stack, v) }

func (ce *callEngine) pop() uint64 {
	v := ce.stack[len(ce.stack)-1]
	ce.stack = ce.stack[:len(ce.stack)-1]
	return v
}

func (ce *callEngine) pushFrame(f *callFrame) error {
	if len(ce.frames) >= callStackCeiling {
		return newTrap(TrapCallStackExhausted, f.fn.Idx, uint64(f.pc), 0, false)
	}
	ce.frames = append(ce.frames, f)
	return nil
}

func (ce *callEngine) popFrame() *callFrame {
	f := ce.frames[len(ce.frames)-1]
	ce.frames = ce.frames[:len(ce.frames)-1]
	return f
}

// Call invokes function funcIdx with args, metering every instruction
// against budget. It never uses the host Go call stack for Wasm-to-Wasm
// calls: pushFrame/popFrame grow and shrink an explicit slice instead.
func (inst *Instance) Call(ctx context.Context, funcIdx uint32, args []uint64, budget Budget) ([]uint64, error) {
	if budget == nil {
		budget = NoBudget
	}
	if int(funcIdx) >= len(inst.Functions) || inst.Functions[funcIdx] == nil {
		return nil, wrterr.New(wrterr.KindValidation, 311, "call to undefined function index")
	}
	fn := inst.Functions[funcIdx]
	if fn.IsHost() {
		return fn.host(ctx, args)
	}

	ce := &callEngine{ctx: ctx}
	frame := newCallFrame(fn, args)
	if err := ce.pushFrame(frame); err != nil {
		return nil, err
	}

	for len(ce.frames) > 0 {
		select {
		case <-ctx.Done():
			return nil, wrterr.Wrap(wrterr.KindAsync, 312, "context cancelled", ctx.Err())
		default:
		}
		done, results, err := ce.step(inst, budget)
		if err != nil {
			return nil, err
		}
		if done {
			return results, nil
		}
	}
	return nil, nil
}

func newCallFrame(fn *FunctionInstance, args []uint64) *callFrame {
	locals := make([]uint64, fn.NumLocals)
	copy(locals, args)
	return &callFrame{fn: fn, locals: locals}
}

// step executes instructions from the top frame until that frame either
// calls into a new frame, returns (possibly unwinding several frames via
// tail call), or the whole call completes. Returning done=true means the
// top-level Call is finished and results holds its return values.
func (ce *callEngine) step(inst *Instance, budget Budget) (done bool, results []uint64, err error) {
	top := ce.frames[len(ce.frames)-1]
	body := top.fn.compiled.body

	for top.pc < len(body) {
		op := body[top.pc]
		opPC := top.pc
		top.pc++

		if cerr := budget.Consume(cost(op)); cerr != nil {
			return false, nil, cerr
		}

		switch op {
		case OpUnreachable:
			return false, nil, newTrap(TrapUnreachable, top.fn.Idx, uint64(opPC), 0, false)
		case OpNop:
		case OpBlock, OpLoop, OpIf:
			arity, n, _ := readBlockType(body[top.pc:])
			top.pc += n
			bi := top.fn.compiled.blocks[opPC]
			if op == OpIf {
				cond := ce.pop()
				lbl := label{arity: arity, stackBase: len(ce.stack), isLoop: false, targetPC: bi.endPC + 1}
				top.labels = append(top.labels, lbl)
				if cond == 0 {
					if bi.elsePC >= 0 {
						top.pc = bi.elsePC + 1
					} else {
						top.pc = bi.endPC + 1
						top.labels = top.labels[:len(top.labels)-1]
					}
				}
			} else {
				target := top.pc
				if !bi.isLoop {
					target = bi.endPC + 1
				}
				top.labels = append(top.labels, label{arity: arity, stackBase: len(ce.stack), isLoop: bi.isLoop, targetPC: target})
			}
		case OpElse:
			// Reached by falling through a taken if-branch: skip to the
			// matching end.
			lbl := top.labels[len(top.labels)-1]
			top.labels = top.labels[:len(top.labels)-1]
			top.pc = lbl.targetPC
		case OpEnd:
			if len(top.labels) > 0 {
				top.labels = top.labels[:len(top.labels)-1]
			}
		case OpBr:
			k, n := readU32(body[top.pc:])
			top.pc += n
			ce.branch(top, int(k))
		case OpBrIf:
			k, n := readU32(body[top.pc:])
			top.pc += n
			if ce.pop() != 0 {
				ce.branch(top, int(k))
			}
		case OpBrTable:
			targets, def, n := readBrTable(body[top.pc:])
			top.pc += n
			idx := uint32(ce.pop())
			k := def
			if int(idx) < len(targets) {
				k = targets[idx]
			}
			ce.branch(top, int(k))
		case OpReturn:
			rframe, rresults := ce.returnFrom(top)
			if rframe == nil {
				return true, rresults, nil
			}
			top = rframe
			body = top.fn.compiled.body
		case OpDrop:
			ce.pop()
		case OpSelect:
			c := ce.pop()
			b := ce.pop()
			a := ce.pop()
			if c != 0 {
				ce.push(a)
			} else {
				ce.push(b)
			}
		case OpLocalGet:
			idx, n := readU32(body[top.pc:])
			top.pc += n
			ce.push(top.locals[idx])
		case OpLocalSet:
			idx, n := readU32(body[top.pc:])
			top.pc += n
			top.locals[idx] = ce.pop()
		case OpLocalTee:
			idx, n := readU32(body[top.pc:])
			top.pc += n
			top.locals[idx] = ce.stack[len(ce.stack)-1]
		case OpGlobalGet:
			idx, n := readU32(body[top.pc:])
			top.pc += n
			ce.push(inst.Globals[idx])
		case OpGlobalSet:
			idx, n := readU32(body[top.pc:])
			top.pc += n
			inst.Globals[idx] = ce.pop()
		case OpI32Const:
			v, n := readI32(body[top.pc:])
			top.pc += n
			ce.push(uint64(uint32(v)))
		case OpI64Const:
			v, n := readI64(body[top.pc:])
			top.pc += n
			ce.push(uint64(v))
		case OpF32Const:
			ce.push(uint64(littleEndianU32(body[top.pc : top.pc+4])))
			top.pc += 4
		case OpF64Const:
			ce.push(littleEndianU64(body[top.pc : top.pc+8]))
			top.pc += 8

		case OpI32Load, OpI64Load, OpI32Store, OpI64Store:
			_, n1 := readU32(body[top.pc:]) // align, unused here
			offset, n2 := readU32(body[top.pc+n1:])
			top.pc += n1 + n2
			if err := ce.memOp(inst, op, offset, top.fn.Idx, opPC); err != nil {
				return false, nil, err
			}
		case OpMemorySize:
			top.pc++ // memory index immediate
			ce.push(uint64(inst.Memories[0].PageSize()))
		case OpMemoryGrow:
			top.pc++
			delta := uint32(ce.pop())
			ce.push(uint64(inst.Memories[0].Grow(delta)))

		case OpCall:
			idx, n := readU32(body[top.pc:])
			top.pc += n
			if int(idx) >= len(inst.Functions) || inst.Functions[idx] == nil {
				return false, nil, wrterr.New(wrterr.KindValidation, 311, "call to undefined function index")
			}
			if err := ce.call(inst.Functions[idx]); err != nil {
				return false, nil, err
			}
			// A newly pushed frame may now be on top; step() returns so
			// the outer Call loop re-enters with the correct top.
			return false, nil, nil
		case OpReturnCall:
			idx, n := readU32(body[top.pc:])
			top.pc += n
			if int(idx) >= len(inst.Functions) || inst.Functions[idx] == nil {
				return false, nil, wrterr.New(wrterr.KindValidation, 311, "call to undefined function index")
			}
			done, results, terr := ce.tailCall(inst.Functions[idx])
			if terr != nil {
				return false, nil, terr
			}
			if done {
				return true, results, nil
			}
			return false, nil, nil

		case OpCallIndirect:
			typeIdx, n1 := readU32(body[top.pc:])
			tableIdx, n2 := readU32(body[top.pc+n1:])
			top.pc += n1 + n2
			target, terr := ce.resolveIndirect(inst, tableIdx, typeIdx, top.fn.Idx, opPC)
			if terr != nil {
				return false, nil, terr
			}
			if err := ce.call(target); err != nil {
				return false, nil, err
			}
			return false, nil, nil

		case OpReturnCallIndirect:
			typeIdx, n1 := readU32(body[top.pc:])
			tableIdx, n2 := readU32(body[top.pc+n1:])
			top.pc += n1 + n2
			target, terr := ce.resolveIndirect(inst, tableIdx, typeIdx, top.fn.Idx, opPC)
			if terr != nil {
				return false, nil, terr
			}
			done, results, terr2 := ce.tailCall(target)
			if terr2 != nil {
				return false, nil, terr2
			}
			if done {
				return true, results, nil
			}
			return false, nil, nil

		case OpI32Eqz:
			ce.push(b2u(uint32(ce.pop()) == 0))
		case OpI32Eq:
			b, a := ce.pop(), ce.pop()
			ce.push(b2u(uint32(a) == uint32(b)))
		case OpI32Ne:
			b, a := ce.pop(), ce.pop()
			ce.push(b2u(uint32(a) != uint32(b)))
		case OpI32LtS:
			b, a := ce.pop(), ce.pop()
			ce.push(b2u(int32(a) < int32(b)))
		case OpI32GtS:
			b, a := ce.pop(), ce.pop()
			ce.push(b2u(int32(a) > int32(b)))
		case OpI32LeS:
			b, a := ce.pop(), ce.pop()
			ce.push(b2u(int32(a) <= int32(b)))
		case OpI32GeS:
			b, a := ce.pop(), ce.pop()
			ce.push(b2u(int32(a) >= int32(b)))

		case OpI32Add:
			b, a := ce.pop(), ce.pop()
			ce.push(uint64(uint32(a) + uint32(b)))
		case OpI32Sub:
			b, a := ce.pop(), ce.pop()
			ce.push(uint64(uint32(a) - uint32(b)))
		case OpI32Mul:
			b, a := ce.pop(), ce.pop()
			ce.push(uint64(uint32(a) * uint32(b)))
		case OpI32DivS:
			b, a := int32(ce.pop()), int32(ce.pop())
			if b == 0 {
				return false, nil, newTrap(TrapDivideByZero, top.fn.Idx, uint64(opPC), 0, false)
			}
			if a == math.MinInt32 && b == -1 {
				return false, nil, newTrap(TrapIntegerOverflow, top.fn.Idx, uint64(opPC), 0, false)
			}
			ce.push(uint64(uint32(a / b)))
		case OpI32DivU:
			b, a := uint32(ce.pop()), uint32(ce.pop())
			if b == 0 {
				return false, nil, newTrap(TrapDivideByZero, top.fn.Idx, uint64(opPC), 0, false)
			}
			ce.push(uint64(a / b))
		case OpI32RemS:
			b, a := int32(ce.pop()), int32(ce.pop())
			if b == 0 {
				return false, nil, newTrap(TrapDivideByZero, top.fn.Idx, uint64(opPC), 0, false)
			}
			if a == math.MinInt32 && b == -1 {
				ce.push(0)
			} else {
				ce.push(uint64(uint32(a % b)))
			}
		case OpI32RemU:
			b, a := uint32(ce.pop()), uint32(ce.pop())
			if b == 0 {
				return false, nil, newTrap(TrapDivideByZero, top.fn.Idx, uint64(opPC), 0, false)
			}
			ce.push(uint64(a % b))
		case OpI32And:
			b, a := ce.pop(), ce.pop()
			ce.push(uint64(uint32(a) & uint32(b)))
		case OpI32Or:
			b, a := ce.pop(), ce.pop()
			ce.push(uint64(uint32(a) | uint32(b)))
		case OpI32Xor:
			b, a := ce.pop(), ce.pop()
			ce.push(uint64(uint32(a) ^ uint32(b)))
		case OpI32Shl:
			b, a := ce.pop(), ce.pop()
			ce.push(uint64(uint32(a) << (uint32(b) % 32)))
		case OpI32ShrS:
			b, a := ce.pop(), ce.pop()
			ce.push(uint64(uint32(int32(a) >> (uint32(b) % 32))))
		case OpI32ShrU:
			b, a := ce.pop(), ce.pop()
			ce.push(uint64(uint32(a) >> (uint32(b) % 32)))

		case OpI64Add:
			b, a := ce.pop(), ce.pop()
			ce.push(a + b)
		case OpI64Sub:
			b, a := ce.pop(), ce.pop()
			ce.push(a - b)
		case OpI64Mul:
			b, a := ce.pop(), ce.pop()
			ce.push(a * b)
		case OpI64DivS:
			b, a := int64(ce.pop()), int64(ce.pop())
			if b == 0 {
				return false, nil, newTrap(TrapDivideByZero, top.fn.Idx, uint64(opPC), 0, false)
			}
			if a == math.MinInt64 && b == -1 {
				return false, nil, newTrap(TrapIntegerOverflow, top.fn.Idx, uint64(opPC), 0, false)
			}
			ce.push(uint64(a / b))
		case OpI64DivU:
			b, a := ce.pop(), ce.pop()
			if b == 0 {
				return false, nil, newTrap(TrapDivideByZero, top.fn.Idx, uint64(opPC), 0, false)
			}
			ce.push(a / b)

		case OpAtomicPrefix:
			n, terr := ce.atomicOp(inst, body[top.pc:], top.fn.Idx, opPC)
			if terr != nil {
				return false, nil, terr
			}
			top.pc += n

		case OpSimdPrefix:
			n, terr := ce.simdOp(inst, body[top.pc:], top.fn.Idx, opPC)
			if terr != nil {
				return false, nil, terr
			}
			top.pc += n

		default:
			return false, nil, newTrap(TrapUnsupportedOpcode, top.fn.Idx, uint64(opPC), 0, false)
		}
	}

	// Fell off the end of the function body without an explicit `return`:
	// implicit return of whatever is on the stack per the function arity.
	rframe, rresults := ce.returnFrom(top)
	if rframe == nil {
		return true, rresults, nil
	}
	return false, nil, nil
}

// branch implements br k: truncate the value stack to the k-th enclosing
// label's entry height, keep that label's arity results, and jump.
func (ce *callEngine) branch(f *callFrame, k int) {
	idx := len(f.labels) - 1 - k
	lbl := f.labels[idx]
	var kept []uint64
	if lbl.arity > 0 {
		kept = append(kept, ce.stack[len(ce.stack)-lbl.arity:]...)
	}
	ce.stack = ce.stack[:lbl.stackBase]
	ce.stack = append(ce.stack, kept...)
	f.labels = f.labels[:idx]
	if !lbl.isLoop {
		f.pc = lbl.targetPC
	} else {
		f.pc = lbl.targetPC
		f.labels = append(f.labels, lbl) // loop label persists for repeated backward branches
	}
}

// returnFrom pops the current frame, carrying its arity-many results to
// the caller frame (or to the top-level Call if none remain).
func (ce *callEngine) returnFrom(f *callFrame) (*callFrame, []uint64) {
	arity := len(f.fn.Type.Results)
	var results []uint64
	if arity > 0 {
		results = append(results, ce.stack[len(ce.stack)-arity:]...)
	}
	ce.popFrame()
	if len(ce.frames) == 0 {
		return nil, results
	}
	ce.stack = append(ce.stack, results...)
	return ce.frames[len(ce.frames)-1], nil
}

// call implements a regular (non-tail) call to an already-resolved target:
// it pushes a new frame on top, leaving the caller's frame intact below it.
func (ce *callEngine) call(target *FunctionInstance) error {
	args := make([]uint64, len(target.Type.Params))
	for i := len(args) - 1; i >= 0; i-- {
		args[i] = ce.pop()
	}
	if target.IsHost() {
		results, err := target.host(ce.ctx, args)
		if err != nil {
			return err
		}
		for _, r := range results {
			ce.push(r)
		}
		return nil
	}
	return ce.pushFrame(newCallFrame(target, args))
}

// tailCall implements return_call/return_call_indirect against an already-
// resolved target: it replaces the current frame in place rather than
// pushing a new one, guaranteeing O(1) call-stack height for a tail-
// recursive call graph (spec section 8, property 7). Locals storage is
// reused when the target needs no more slots than are already allocated;
// otherwise a new slice is allocated for just that frame. A host-function
// target has no frame of its own: it is invoked in place of the (now
// discarded) current frame, and its results propagate to whatever frame
// called it — done=true and results are returned when that was the
// outermost frame.
func (ce *callEngine) tailCall(target *FunctionInstance) (done bool, results []uint64, err error) {
	args := make([]uint64, len(target.Type.Params))
	for i := len(args) - 1; i >= 0; i-- {
		args[i] = ce.pop()
	}
	if target.IsHost() {
		hresults, herr := target.host(ce.ctx, args)
		if herr != nil {
			return false, nil, herr
		}
		ce.popFrame()
		if len(ce.frames) == 0 {
			return true, hresults, nil
		}
		ce.stack = append(ce.stack, hresults...)
		return false, nil, nil
	}
	cur := ce.frames[len(ce.frames)-1]
	var locals []uint64
	if cap(cur.locals) >= target.NumLocals {
		locals = cur.locals[:target.NumLocals]
		for i := range locals {
			locals[i] = 0
		}
	} else {
		locals = make([]uint64, target.NumLocals)
	}
	copy(locals, args)
	ce.frames[len(ce.frames)-1] = &callFrame{fn: target, locals: locals}
	return false, nil, nil
}

// resolveIndirect implements the call_indirect/return_call_indirect lookup:
// pop the element index, bounds-check it against tableIdx's table, reject a
// null slot, and verify the resolved function's signature against typeIdx
// before returning it. Per spec section 4.5 this traps on null or a type
// mismatch rather than ever dispatching to the wrong signature.
func (ce *callEngine) resolveIndirect(inst *Instance, tableIdx, typeIdx, fnIdx uint32, pc int) (*FunctionInstance, error) {
	if int(tableIdx) >= len(inst.Tables) {
		return nil, newTrap(TrapTableOutOfBounds, fnIdx, uint64(pc), 0, false)
	}
	elemIdx := uint32(ce.pop())
	elem, ok := inst.Tables[tableIdx].Get(elemIdx)
	if !ok || elem == 0 {
		return nil, newTrap(TrapTableOutOfBounds, fnIdx, uint64(pc), 0, false)
	}
	targetIdx := uint32(elem)
	if int(targetIdx) >= len(inst.Functions) || inst.Functions[targetIdx] == nil {
		return nil, newTrap(TrapTableOutOfBounds, fnIdx, uint64(pc), 0, false)
	}
	target := inst.Functions[targetIdx]
	if int(typeIdx) >= len(inst.Module.TypeSection) || !typesEqual(inst.Module.TypeSection[typeIdx], target.Type) {
		return nil, newTrap(TrapIndirectCallTypeMismatch, fnIdx, uint64(pc), 0, false)
	}
	return target, nil
}

// typesEqual reports whether a and b declare the same params/results.
func typesEqual(a, b *module.FunctionType) bool {
	if len(a.Params) != len(b.Params) || len(a.Results) != len(b.Results) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	for i := range a.Results {
		if a.Results[i] != b.Results[i] {
			return false
		}
	}
	return true
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func littleEndianU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func littleEndianU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
