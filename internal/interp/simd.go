package interp

import (
	"github.com/tetratelabs/wabin/leb128"

	"github.com/pulseengine/wrtcore/internal/wrterr"
)

// simdOp executes one vector-proposal instruction, prefixed by OpSimdPrefix
// in the byte stream. A v128 value occupies two stack slots (low 64 bits
// pushed first, matching the push/pop order every other multi-word value
// in this interpreter already follows); lane arithmetic operates directly
// on the value's byte layout rather than a host vector type, per the
// safety profile's ban on host SIMD intrinsics (spec section 4.5).
func (ce *callEngine) simdOp(inst *Instance, b []byte, fnIdx uint32, pc int) (int, error) {
	sub, n0, err := leb128.LoadUint32(b)
	if err != nil {
		return 0, wrterr.New(wrterr.KindParse, 307, "OverlongLeb128")
	}
	rest := b[n0:]

	switch sub {
	case SimdV128Const:
		if len(rest) < 16 {
			return 0, newTrap(TrapUnsupportedOpcode, fnIdx, uint64(pc), 0, false)
		}
		var v [16]byte
		copy(v[:], rest[:16])
		ce.pushV128(v)
		return int(n0) + 16, nil

	case SimdV128Load:
		_, n1 := readU32(rest)
		offset, n2 := readU32(rest[n1:])
		addr := uint32(ce.pop()) + offset
		mem := inst.Memories[0]
		var v [16]byte
		for i := 0; i < 16; i++ {
			byt, ok := mem.ReadByte(addr + uint32(i))
			if !ok {
				return 0, newTrap(TrapMemoryOutOfBounds, fnIdx, uint64(pc), 0, false)
			}
			v[i] = byt
		}
		ce.pushV128(v)
		return int(n0) + n1 + n2, nil

	case SimdV128Store:
		_, n1 := readU32(rest)
		offset, n2 := readU32(rest[n1:])
		v := ce.popV128()
		addr := uint32(ce.pop()) + offset
		mem := inst.Memories[0]
		for i := 0; i < 16; i++ {
			if !mem.WriteByte(addr+uint32(i), v[i]) {
				return 0, newTrap(TrapMemoryOutOfBounds, fnIdx, uint64(pc), 0, false)
			}
		}
		return int(n0) + n1 + n2, nil

	case SimdI8x16Splat:
		x := byte(ce.pop())
		var v [16]byte
		for i := range v {
			v[i] = x
		}
		ce.pushV128(v)
		return int(n0), nil

	case SimdI32x4Splat:
		x := uint64(uint32(ce.pop()))
		var v [16]byte
		for i := 0; i < 4; i++ {
			lePutUint(v[i*4:i*4+4], x)
		}
		ce.pushV128(v)
		return int(n0), nil

	case SimdI64x2Splat:
		x := ce.pop()
		var v [16]byte
		for i := 0; i < 2; i++ {
			lePutUint(v[i*8:i*8+8], x)
		}
		ce.pushV128(v)
		return int(n0), nil

	case SimdI8x16Add:
		b2, a2 := ce.popV128(), ce.popV128()
		ce.pushV128(simdLaneBinOp(a2, b2, 1, func(x, y uint64) uint64 { return x + y }))
		return int(n0), nil
	case SimdI8x16Sub:
		b2, a2 := ce.popV128(), ce.popV128()
		ce.pushV128(simdLaneBinOp(a2, b2, 1, func(x, y uint64) uint64 { return x - y }))
		return int(n0), nil

	case SimdI16x8Add:
		b2, a2 := ce.popV128(), ce.popV128()
		ce.pushV128(simdLaneBinOp(a2, b2, 2, func(x, y uint64) uint64 { return x + y }))
		return int(n0), nil
	case SimdI16x8Sub:
		b2, a2 := ce.popV128(), ce.popV128()
		ce.pushV128(simdLaneBinOp(a2, b2, 2, func(x, y uint64) uint64 { return x - y }))
		return int(n0), nil

	case SimdI32x4Add:
		b2, a2 := ce.popV128(), ce.popV128()
		ce.pushV128(simdLaneBinOp(a2, b2, 4, func(x, y uint64) uint64 { return x + y }))
		return int(n0), nil
	case SimdI32x4Sub:
		b2, a2 := ce.popV128(), ce.popV128()
		ce.pushV128(simdLaneBinOp(a2, b2, 4, func(x, y uint64) uint64 { return x - y }))
		return int(n0), nil
	case SimdI32x4Mul:
		b2, a2 := ce.popV128(), ce.popV128()
		ce.pushV128(simdLaneBinOp(a2, b2, 4, func(x, y uint64) uint64 { return x * y }))
		return int(n0), nil

	case SimdI64x2Add:
		b2, a2 := ce.popV128(), ce.popV128()
		ce.pushV128(simdLaneBinOp(a2, b2, 8, func(x, y uint64) uint64 { return x + y }))
		return int(n0), nil
	case SimdI64x2Sub:
		b2, a2 := ce.popV128(), ce.popV128()
		ce.pushV128(simdLaneBinOp(a2, b2, 8, func(x, y uint64) uint64 { return x - y }))
		return int(n0), nil
	case SimdI64x2Mul:
		b2, a2 := ce.popV128(), ce.popV128()
		ce.pushV128(simdLaneBinOp(a2, b2, 8, func(x, y uint64) uint64 { return x * y }))
		return int(n0), nil

	default:
		// Unimplemented vector sub-opcode: trap rather than guess at its
		// immediate length and desync the instruction stream.
		return 0, newTrap(TrapUnsupportedOpcode, fnIdx, uint64(pc), 0, false)
	}
}

// pushV128 and popV128 push/pop a 128-bit vector as two stack words, low
// half first, matching how every other multi-word push/pop pair in this
// file is ordered (push low-to-high, pop high-to-low).
func (ce *callEngine) pushV128(v [16]byte) {
	ce.push(leUint(v[0:8]))
	ce.push(leUint(v[8:16]))
}

func (ce *callEngine) popV128() [16]byte {
	hi := ce.pop()
	lo := ce.pop()
	var v [16]byte
	lePutUint(v[0:8], lo)
	lePutUint(v[8:16], hi)
	return v
}

// simdLaneBinOp applies f lane-wise across a and b, each lane width bytes
// wide, decoding/encoding each lane as a little-endian unsigned integer
// directly in the byte array rather than through a host vector type.
func simdLaneBinOp(a, b [16]byte, width int, f func(x, y uint64) uint64) [16]byte {
	var out [16]byte
	for off := 0; off < 16; off += width {
		x := leUint(a[off : off+width])
		y := leUint(b[off : off+width])
		lePutUint(out[off:off+width], f(x, y))
	}
	return out
}

func leUint(b []byte) uint64 {
	var v uint64
	for i, c := range b {
		v |= uint64(c) << (8 * i)
	}
	return v
}

func lePutUint(b []byte, v uint64) {
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
}
