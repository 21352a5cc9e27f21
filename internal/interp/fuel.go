package interp

// Budget is the narrow view the interpreter needs onto a task's fuel
// accounting (internal/async.Task implements this), decoupling C5 from C7
// per spec section 2's stated data flow: the interpreter is driven BY the
// executor, not the reverse.
type Budget interface {
	// Consume charges cost fuel, returning an error if doing so
	// would exceed the budget. On error, no fuel is charged.
	Consume(cost uint64) error
}

// cost is the fixed, positive fuel price of one opcode. Values are a
// policy choice (spec section 9's open question), set here once and
// documented per release rather than made configurable per call site.
// Control-flow and locals access are cheap; memory and calls cost more,
// mirroring the relative expense the teacher's own instruction set implies
// by which ops require bounds/type checks.
func cost(op byte) uint64 {
	switch op {
	case OpNop, OpDrop, OpEnd, OpElse:
		return 1
	case OpLocalGet, OpLocalSet, OpLocalTee, OpGlobalGet, OpGlobalSet:
		return 1
	case OpI32Const, OpI64Const, OpF32Const, OpF64Const:
		return 1
	case OpBlock, OpLoop, OpIf, OpBr, OpBrIf, OpBrTable, OpReturn:
		return 2
	case OpCall, OpCallIndirect:
		return 4
	case OpReturnCall, OpReturnCallIndirect:
		return 4
	case OpI32Load, OpI64Load, OpI32Store, OpI64Store, OpMemorySize, OpMemoryGrow:
		return 3
	case OpAtomicPrefix:
		return 5
	case OpSimdPrefix:
		return 4
	default:
		return 2 // arithmetic, comparison, conversion
	}
}

// noBudget is a Budget that never charges fuel, for contexts (tests,
// one-off host invocations) that intentionally opt out of metering.
type noBudget struct{}

func (noBudget) Consume(uint64) error { return nil }

// NoBudget is the shared unmetered Budget instance.
var NoBudget Budget = noBudget{}
