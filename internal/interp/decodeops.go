package interp

import (
	"github.com/tetratelabs/wabin/leb128"
)

// readU32 decodes an unsigned LEB128 index/count immediate, returning the
// value and how many bytes it consumed.
func readU32(b []byte) (uint32, int) {
	v, n, err := leb128.LoadUint32(b)
	if err != nil {
		return 0, int(n)
	}
	return v, int(n)
}

// readI32 decodes a signed LEB128 i32.const immediate.
func readI32(b []byte) (int32, int) {
	v, n, err := leb128.LoadInt32(b)
	if err != nil {
		return 0, int(n)
	}
	return v, int(n)
}

// readI64 decodes a signed LEB128 i64.const immediate.
func readI64(b []byte) (int64, int) {
	v, n, err := leb128.LoadInt64(b)
	if err != nil {
		return 0, int(n)
	}
	return v, int(n)
}

// decodeI32LEB and decodeI64LEB are used by global constant-expression
// evaluation, which only has the raw encoded operand bytes available.
func decodeI32LEB(b []byte) (int32, int, error) {
	v, n, err := leb128.LoadInt32(b)
	return v, int(n), err
}

func decodeI64LEB(b []byte) (int64, int, error) {
	v, n, err := leb128.LoadInt64(b)
	return v, int(n), err
}

// readBrTable decodes a br_table instruction's label vector and default
// label, returning the byte length consumed alongside them.
func readBrTable(b []byte) (targets []uint32, def uint32, n int) {
	count, n0, err := leb128.LoadUint32(b)
	if err != nil {
		return nil, 0, int(n0)
	}
	pos := int(n0)
	targets = make([]uint32, count)
	for i := uint32(0); i < count; i++ {
		v, nn, err := leb128.LoadUint32(b[pos:])
		if err != nil {
			return targets, 0, pos
		}
		targets[i] = v
		pos += int(nn)
	}
	d, nn, err := leb128.LoadUint32(b[pos:])
	if err != nil {
		return targets, 0, pos
	}
	pos += int(nn)
	return targets, d, pos
}
