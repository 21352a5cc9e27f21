package interp

import (
	"fmt"

	"github.com/pulseengine/wrtcore/internal/wrterr"
)

// TrapKind enumerates every typed trap the interpreter can raise (spec
// section 4.5). Traps unwind frames back to the outermost host call
// without exposing partial effects above the faulting frame — memory
// writes already performed are retained per Wasm semantics, but no frame
// above the trap observes a half-executed instruction.
type TrapKind uint8

const (
	TrapUnreachable TrapKind = iota
	TrapDivideByZero
	TrapIntegerOverflow
	TrapInvalidConversion
	TrapMemoryOutOfBounds
	TrapTableOutOfBounds
	TrapIndirectCallTypeMismatch
	TrapCallStackExhausted
	TrapUnalignedAtomic
	TrapUnsupportedOpcode
)

func (k TrapKind) String() string {
	switch k {
	case TrapUnreachable:
		return "Unreachable"
	case TrapDivideByZero:
		return "DivideByZero"
	case TrapIntegerOverflow:
		return "IntegerOverflow"
	case TrapInvalidConversion:
		return "InvalidConversion"
	case TrapMemoryOutOfBounds:
		return "MemoryOutOfBounds"
	case TrapTableOutOfBounds:
		return "TableOutOfBounds"
	case TrapIndirectCallTypeMismatch:
		return "IndirectCallTypeMismatch"
	case TrapCallStackExhausted:
		return "CallStackExhausted"
	case TrapUnalignedAtomic:
		return "UnalignedAtomic"
	case TrapUnsupportedOpcode:
		return "UnsupportedOpcode"
	default:
		return "Unknown"
	}
}

// TrapInfo is the user-visible description of a trapped invocation: the
// trap kind, the faulting (module, function, pc), and — when a line-info
// section was present in the decoded module — the source line.
type TrapInfo struct {
	Kind       TrapKind
	Function   uint32
	PC         uint64
	SourceLine uint32
	HasLine    bool
}

func newTrap(kind TrapKind, fn uint32, pc uint64, line uint32, hasLine bool) *wrterr.Error {
	e := wrterr.New(wrterr.KindTrap, 400+uint32(kind), fmt.Sprintf("trap: %s", kind))
	return e.WithFields(wrterr.Fields{
		FunctionIdx:   fn,
		PC:            pc,
		SourceLine:    line,
		HasSourceLine: hasLine,
	})
}
