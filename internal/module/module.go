// Package module holds the immutable, index-based data model produced by
// internal/decode and consumed by internal/interp, internal/memory, and
// internal/canonical: a Module record plus the descriptors instantiated
// from it. Cross-references are always indices into a section, never
// pointers, following spec section 9's "arena + indices" guidance for
// avoiding cyclic Module<->Instance references.
package module

// ValueType is a core Wasm value's type tag.
type ValueType byte

const (
	ValueTypeI32     ValueType = 0x7f
	ValueTypeI64     ValueType = 0x7e
	ValueTypeF32     ValueType = 0x7d
	ValueTypeF64     ValueType = 0x7c
	ValueTypeV128    ValueType = 0x7b
	ValueTypeFuncref ValueType = 0x70
	ValueTypeExternref ValueType = 0x6f
)

// Index is a section-relative index (function, type, table, memory,
// global, element, or data index depending on context).
type Index = uint32

// FunctionType is a function signature: the sole entry of the type
// section.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// ImportKind distinguishes what an Import resolves to.
type ImportKind byte

const (
	ImportKindFunc ImportKind = iota
	ImportKindTable
	ImportKindMemory
	ImportKindGlobal
)

// Import is one entry of the import section.
type Import struct {
	Module, Name string
	Kind         ImportKind
	DescFunc     Index
	DescTable    *TableType
	DescMem      *MemoryType
	DescGlobal   *GlobalType
}

// Code is one function body: its declared locals and body bytes. The
// function's type index is held separately, at the same position in
// Module.FunctionSection. LocalTypes are declared locals only, not
// parameters.
type Code struct {
	LocalTypes []ValueType
	Body       []byte
}

// TableType describes a table's element type and size limits.
type TableType struct {
	ElemType ValueType // ValueTypeFuncref or ValueTypeExternref
	Min      uint32
	Max      *uint32
}

// MemoryType describes a linear memory's size limits and sharing mode.
type MemoryType struct {
	Min    uint32
	Max    *uint32
	Shared bool
}

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// ConstantExpression is a single-instruction constant initializer, as used
// by globals, element segment offsets, and data segment offsets.
type ConstantExpression struct {
	Opcode byte
	Data   []byte
}

// Global is one entry of the global section.
type Global struct {
	Type *GlobalType
	Init *ConstantExpression
}

// ExportKind distinguishes what an Export resolves to.
type ExportKind = ImportKind

// Export is one entry of the export section.
type Export struct {
	Name  string
	Kind  ExportKind
	Index Index
}

// ElementSegment initializes a range of a table with function indices.
type ElementSegment struct {
	TableIndex       Index
	OffsetExpression *ConstantExpression
	Init             []Index
	Passive          bool
}

// DataSegment initializes a range of a memory with bytes.
type DataSegment struct {
	MemoryIndex      Index
	OffsetExpression ConstantExpression
	Init             []byte
	Passive          bool
}

// NameSection holds the optional debug names parsed from the custom "name"
// section (core) or its Component Model equivalent. Absent or malformed
// name data is non-fatal per spec section 4.3, so every field defaults to
// empty rather than causing a parse failure.
type NameSection struct {
	ModuleName    string
	FunctionNames map[Index]string
	LocalNames    map[Index]map[Index]string
}

// Format distinguishes a core module from a Component Model binary, per the
// layer field detected in the 12-byte header.
type Format byte

const (
	FormatCoreModule Format = iota
	FormatComponent
)

// Module is the immutable record produced by decode.Decode. All indices
// resolve within their section; section order is canonical; validation has
// succeeded before any Instance exists (spec invariant, section 3).
type Module struct {
	Format Format

	TypeSection     []*FunctionType
	ImportSection   []*Import
	FunctionSection []Index // type indices, one per function in CodeSection
	TableSection    []*TableType
	MemorySection   []*MemoryType
	GlobalSection   []*Global
	ExportSection   map[string]*Export
	StartSection    *Index
	ElementSection  []*ElementSegment
	CodeSection     []*Code
	DataSection     []*DataSegment

	NameSection *NameSection

	// ID identifies this module for engine-side compiled-code caching,
	// mirroring wazero's wasm.ModuleID keyed cache in
	// internal/engine/interpreter.
	ID [32]byte
}

// ImportedFunctionCount returns the number of function imports, which form
// a contiguous prefix of the function index space ahead of FunctionSection.
func (m *Module) ImportedFunctionCount() uint32 {
	var n uint32
	for _, imp := range m.ImportSection {
		if imp.Kind == ImportKindFunc {
			n++
		}
	}
	return n
}

// NumFunctions returns the total function index space size: imports plus
// locally defined functions.
func (m *Module) NumFunctions() uint32 {
	return m.ImportedFunctionCount() + uint32(len(m.FunctionSection))
}
