package interp

// Opcode is a core Wasm instruction opcode. Values match the upstream core
// spec, as also used (with wazeroir's own naming) by the teacher's
// internal/engine/interpreter.
type Opcode = byte

const (
	OpUnreachable Opcode = 0x00
	OpNop         Opcode = 0x01
	OpBlock       Opcode = 0x02
	OpLoop        Opcode = 0x03
	OpIf          Opcode = 0x04
	OpElse        Opcode = 0x05
	OpEnd         Opcode = 0x0b
	OpBr          Opcode = 0x0c
	OpBrIf        Opcode = 0x0d
	OpBrTable     Opcode = 0x0e
	OpReturn      Opcode = 0x0f
	OpCall        Opcode = 0x10
	OpCallIndirect Opcode = 0x11
	OpReturnCall         Opcode = 0x12
	OpReturnCallIndirect Opcode = 0x13

	OpDrop   Opcode = 0x1a
	OpSelect Opcode = 0x1b

	OpLocalGet  Opcode = 0x20
	OpLocalSet  Opcode = 0x21
	OpLocalTee  Opcode = 0x22
	OpGlobalGet Opcode = 0x23
	OpGlobalSet Opcode = 0x24

	OpI32Load Opcode = 0x28
	OpI64Load Opcode = 0x29
	OpI32Store Opcode = 0x36
	OpI64Store Opcode = 0x37
	OpMemorySize Opcode = 0x3f
	OpMemoryGrow Opcode = 0x40

	OpI32Const Opcode = 0x41
	OpI64Const Opcode = 0x42
	OpF32Const Opcode = 0x43
	OpF64Const Opcode = 0x44

	OpI32Eqz Opcode = 0x45
	OpI32Eq  Opcode = 0x46
	OpI32Ne  Opcode = 0x47
	OpI32LtS Opcode = 0x48
	OpI32GtS Opcode = 0x4a
	OpI32LeS Opcode = 0x4c
	OpI32GeS Opcode = 0x4e

	OpI32Add  Opcode = 0x6a
	OpI32Sub  Opcode = 0x6b
	OpI32Mul  Opcode = 0x6c
	OpI32DivS Opcode = 0x6d
	OpI32DivU Opcode = 0x6e
	OpI32RemS Opcode = 0x6f
	OpI32RemU Opcode = 0x70
	OpI32And  Opcode = 0x71
	OpI32Or   Opcode = 0x72
	OpI32Xor  Opcode = 0x73
	OpI32Shl  Opcode = 0x74
	OpI32ShrS Opcode = 0x75
	OpI32ShrU Opcode = 0x76

	OpI64Add Opcode = 0x7c
	OpI64Sub Opcode = 0x7d
	OpI64Mul Opcode = 0x7e
	OpI64DivS Opcode = 0x7f
	OpI64DivU Opcode = 0x80

	// The atomic instruction prefix (0xFE) introduces a second opcode byte
	// for every threads-proposal instruction, mirroring the upstream
	// encoding this package's decoder also assumes.
	OpAtomicPrefix Opcode = 0xfe

	// The vector (SIMD) instruction prefix (0xFD) introduces an unsigned
	// LEB128 sub-opcode for every v128 instruction, same encoding shape as
	// OpAtomicPrefix.
	OpSimdPrefix Opcode = 0xfd
)

// Atomic sub-opcodes, read as the byte following OpAtomicPrefix.
const (
	AtomicNotify       = 0x00
	AtomicWait32       = 0x01
	AtomicWait64       = 0x02
	AtomicI32Load      = 0x10
	AtomicI32Store     = 0x17
	AtomicI32RmwAdd    = 0x1e
	AtomicI32RmwSub    = 0x25
	AtomicI32RmwAnd    = 0x2c
	AtomicI32RmwOr     = 0x33
	AtomicI32RmwXor    = 0x3a
	AtomicI32RmwXchg   = 0x41
	AtomicI32RmwCmpxchg = 0x48
)

// Vector (SIMD) sub-opcodes, read as an unsigned LEB128 following
// OpSimdPrefix. Values match the upstream vector-instruction encoding; this
// package implements only v128 load/store/const, splat for i8x16/i32x4/
// i64x2, add/sub for every integer lane width, and mul for i32x4/i64x2,
// rather than the full vector instruction set.
const (
	SimdV128Load  = 0x00
	SimdV128Store = 0x0b
	SimdV128Const = 0x0c

	SimdI8x16Splat = 0x0f
	SimdI32x4Splat = 0x11
	SimdI64x2Splat = 0x12

	SimdI8x16Add = 0x6e
	SimdI8x16Sub = 0x71

	SimdI16x8Add = 0x8e
	SimdI16x8Sub = 0x91

	SimdI32x4Add = 0xae
	SimdI32x4Sub = 0xb1
	SimdI32x4Mul = 0xb5

	SimdI64x2Add = 0xce
	SimdI64x2Sub = 0xd1
	SimdI64x2Mul = 0xd5
)

// BlockKind distinguishes the three structured control-flow forms.
type BlockKind uint8

const (
	BlockKindBlock BlockKind = iota
	BlockKindLoop
	BlockKindIf
)
