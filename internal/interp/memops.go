package interp

import (
	"github.com/tetratelabs/wabin/leb128"

	"github.com/pulseengine/wrtcore/internal/wrterr"
)

// memOp executes one non-atomic load/store against memory 0. Multi-memory
// (memory index other than 0 in the opcode's immediate) is left for a
// follow-on extension; spec section 3 names memory 0 as the common case
// every conformance scenario in section 8 exercises.
func (ce *callEngine) memOp(inst *Instance, op byte, offset uint32, fnIdx uint32, pc int) error {
	mem := inst.Memories[0]
	switch op {
	case OpI32Load:
		addr := uint32(ce.pop()) + offset
		v, ok := mem.ReadUint32Le(addr)
		if !ok {
			return newTrap(TrapMemoryOutOfBounds, fnIdx, uint64(pc), 0, false)
		}
		ce.push(uint64(v))
	case OpI64Load:
		addr := uint32(ce.pop()) + offset
		v, ok := mem.ReadUint64Le(addr)
		if !ok {
			return newTrap(TrapMemoryOutOfBounds, fnIdx, uint64(pc), 0, false)
		}
		ce.push(v)
	case OpI32Store:
		v := uint32(ce.pop())
		addr := uint32(ce.pop()) + offset
		if !mem.WriteUint32Le(addr, v) {
			return newTrap(TrapMemoryOutOfBounds, fnIdx, uint64(pc), 0, false)
		}
	case OpI64Store:
		v := ce.pop()
		addr := uint32(ce.pop()) + offset
		if !mem.WriteUint64Le(addr, v) {
			return newTrap(TrapMemoryOutOfBounds, fnIdx, uint64(pc), 0, false)
		}
	}
	return nil
}

// atomicOp executes one threads-proposal instruction, prefixed by
// OpAtomicPrefix in the byte stream. It returns how many immediate bytes
// (sub-opcode plus align/offset) were consumed, so the caller can advance
// its pc the same way the one-time compile pass already accounted for via
// immediateLen.
func (ce *callEngine) atomicOp(inst *Instance, b []byte, fnIdx uint32, pc int) (int, error) {
	sub, n0, err := leb128.LoadUint32(b)
	if err != nil {
		return 0, wrterr.New(wrterr.KindParse, 306, "OverlongLeb128")
	}
	rest := b[n0:]
	mem := inst.Memories[0]

	asTrap := func(err error) error {
		if err == nil {
			return nil
		}
		if werr, ok := err.(*wrterr.Error); ok && werr.Kind == wrterr.KindTrap {
			return newTrap(TrapUnalignedAtomic, fnIdx, uint64(pc), 0, false)
		}
		return err
	}

	switch sub {
	case AtomicNotify:
		_, n1 := readU32(rest)
		offset, n2 := readU32(rest[n1:])
		count := uint32(ce.pop())
		addr := uint32(ce.pop()) + offset
		woken, err := mem.Notify(addr, count)
		if err != nil {
			return 0, newTrap(TrapUnalignedAtomic, fnIdx, uint64(pc), 0, false)
		}
		ce.push(uint64(woken))
		return int(n0) + n1 + n2, nil
	case AtomicWait32:
		_, n1 := readU32(rest)
		offset, n2 := readU32(rest[n1:])
		timeout := int64(ce.pop())
		expected := uint32(ce.pop())
		addr := uint32(ce.pop()) + offset
		res, err := mem.Wait32(addr, expected, timeout)
		if err != nil {
			return 0, asTrap(err)
		}
		ce.push(uint64(res))
		return int(n0) + n1 + n2, nil
	case AtomicI32Load:
		_, n1 := readU32(rest)
		offset, n2 := readU32(rest[n1:])
		addr := uint32(ce.pop()) + offset
		v, err := mem.AtomicLoad32(addr)
		if err != nil {
			return 0, asTrap(err)
		}
		ce.push(uint64(v))
		return int(n0) + n1 + n2, nil
	case AtomicI32Store:
		_, n1 := readU32(rest)
		offset, n2 := readU32(rest[n1:])
		v := uint32(ce.pop())
		addr := uint32(ce.pop()) + offset
		if err := mem.AtomicStore32(addr, v); err != nil {
			return 0, asTrap(err)
		}
		return int(n0) + n1 + n2, nil
	case AtomicI32RmwAdd:
		_, n1 := readU32(rest)
		offset, n2 := readU32(rest[n1:])
		v := uint32(ce.pop())
		addr := uint32(ce.pop()) + offset
		prev, err := mem.AtomicRMWAdd32(addr, v)
		if err != nil {
			return 0, asTrap(err)
		}
		ce.push(uint64(prev))
		return int(n0) + n1 + n2, nil
	case AtomicI32RmwCmpxchg:
		_, n1 := readU32(rest)
		offset, n2 := readU32(rest[n1:])
		replacement := uint32(ce.pop())
		expected := uint32(ce.pop())
		addr := uint32(ce.pop()) + offset
		prev, err := mem.AtomicCmpxchg32(addr, expected, replacement)
		if err != nil {
			return 0, asTrap(err)
		}
		ce.push(uint64(prev))
		return int(n0) + n1 + n2, nil
	default:
		// Unimplemented atomic sub-opcode (e.g. 64-bit or 8/16-bit RMW
		// variants): trap rather than silently skip, since most of these
		// pop operands and push a result and a no-op here would desync
		// the value stack for every instruction after it.
		return 0, newTrap(TrapUnsupportedOpcode, fnIdx, uint64(pc), 0, false)
	}
}
