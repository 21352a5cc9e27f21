package interp

import (
	"github.com/tetratelabs/wabin/leb128"

	"github.com/pulseengine/wrtcore/internal/wrterr"
)

// immediateLen returns how many bytes of b (immediately following op) are
// consumed by op's immediate operands, without interpreting their values.
// Used only by the one-time block-matching compile pass in compile.go.
func immediateLen(op byte, b []byte) (int, error) {
	switch op {
	case OpBr, OpBrIf, OpCall, OpLocalGet, OpLocalSet, OpLocalTee,
		OpGlobalGet, OpGlobalSet, OpMemorySize, OpMemoryGrow:
		return leb128Len(b)
	case OpCallIndirect, OpReturnCall, OpReturnCallIndirect:
		n1, err := leb128Len(b)
		if err != nil {
			return 0, err
		}
		if op == OpCallIndirect || op == OpReturnCallIndirect {
			n2, err := leb128Len(b[n1:])
			if err != nil {
				return 0, err
			}
			return n1 + n2, nil
		}
		return n1, nil
	case OpI32Load, OpI64Load, OpI32Store, OpI64Store:
		n1, err := leb128Len(b) // align
		if err != nil {
			return 0, err
		}
		n2, err := leb128Len(b[n1:]) // offset
		if err != nil {
			return 0, err
		}
		return n1 + n2, nil
	case OpI32Const:
		return leb128Len(b)
	case OpI64Const:
		return leb128Len(b)
	case OpF32Const:
		return 4, nil
	case OpF64Const:
		return 8, nil
	case OpBrTable:
		return brTableLen(b)
	case OpSimdPrefix:
		sub, n0, err := leb128.LoadUint32(b)
		if err != nil {
			return 0, wrterr.New(wrterr.KindParse, 308, "OverlongLeb128")
		}
		rest := b[n0:]
		switch sub {
		case SimdV128Const:
			return int(n0) + 16, nil
		case SimdV128Load, SimdV128Store:
			n1, err := leb128Len(rest)
			if err != nil {
				return 0, err
			}
			n2, err := leb128Len(rest[n1:])
			if err != nil {
				return 0, err
			}
			return int(n0) + n1 + n2, nil
		default:
			// Splat and lane-arithmetic sub-opcodes carry no further
			// immediate beyond the sub-opcode itself.
			return int(n0), nil
		}
	case OpAtomicPrefix:
		sub, n0, err := leb128.LoadUint32(b)
		if err != nil {
			return 0, wrterr.New(wrterr.KindParse, 303, "OverlongLeb128")
		}
		rest := b[n0:]
		switch sub {
		case AtomicNotify, AtomicWait32, AtomicWait64,
			AtomicI32Load, AtomicI32Store, AtomicI32RmwAdd, AtomicI32RmwSub,
			AtomicI32RmwAnd, AtomicI32RmwOr, AtomicI32RmwXor, AtomicI32RmwXchg, AtomicI32RmwCmpxchg:
			n1, err := leb128Len(rest)
			if err != nil {
				return 0, err
			}
			n2, err := leb128Len(rest[n1:])
			if err != nil {
				return 0, err
			}
			return int(n0) + n1 + n2, nil
		default:
			return int(n0), nil
		}
	default:
		// Opcodes with no immediate operand (unreachable, nop, end, else,
		// drop, select, the arithmetic/comparison/control-transfer set).
		return 0, nil
	}
}

func leb128Len(b []byte) (int, error) {
	_, n, err := leb128.LoadUint32(b)
	if err != nil {
		return 0, wrterr.New(wrterr.KindParse, 304, "OverlongLeb128")
	}
	return int(n), nil
}

// brTableLen computes the byte length of a br_table instruction's
// immediates: a vector of label indices plus a default label index.
func brTableLen(b []byte) (int, error) {
	count, n0, err := leb128.LoadUint32(b)
	if err != nil {
		return 0, wrterr.New(wrterr.KindParse, 305, "OverlongLeb128")
	}
	pos := int(n0)
	for i := uint32(0); i < count; i++ {
		_, n, err := leb128.LoadUint32(b[pos:])
		if err != nil {
			return 0, wrterr.New(wrterr.KindParse, 305, "OverlongLeb128")
		}
		pos += int(n)
	}
	_, n, err := leb128.LoadUint32(b[pos:])
	if err != nil {
		return 0, wrterr.New(wrterr.KindParse, 305, "OverlongLeb128")
	}
	return pos + int(n), nil
}
