package decode

import (
	"github.com/tetratelabs/wabin/leb128"

	"github.com/pulseengine/wrtcore/internal/module"
)

// Encode serializes m back to the binary format Decode accepts. It exists
// primarily to exercise the decoder round-trip property (spec section 8,
// property 8) in tests; it is not part of the external interface described
// in spec section 6; a full-fidelity encoder belongs to the external
// tooling this package's spec explicitly excludes.
func Encode(m *module.Module) []byte {
	var out []byte
	out = append(out, magic0, magic1, magic2, magic3)
	out = append(out, 1, 0, 0, 0)
	if m.Format == module.FormatComponent {
		out = append(out, componentLayer, 0, 0, 0)
	}

	if len(m.TypeSection) > 0 {
		out = append(out, sectionByte(sectionType, encodeTypeSection(m))...)
	}
	if len(m.ImportSection) > 0 {
		out = append(out, sectionByte(sectionImport, encodeImportSection(m))...)
	}
	if len(m.FunctionSection) > 0 {
		out = append(out, sectionByte(sectionFunction, encodeFunctionSection(m))...)
	}
	if len(m.MemorySection) > 0 {
		out = append(out, sectionByte(sectionMemory, encodeMemorySection(m))...)
	}
	if len(m.GlobalSection) > 0 {
		out = append(out, sectionByte(sectionGlobal, encodeGlobalSection(m))...)
	}
	if len(m.ExportSection) > 0 {
		out = append(out, sectionByte(sectionExport, encodeExportSection(m))...)
	}
	if len(m.CodeSection) > 0 {
		out = append(out, sectionByte(sectionCode, encodeCodeSection(m))...)
	}
	return out
}

func sectionByte(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, leb128.EncodeUint32(uint32(len(body)))...)
	return append(out, body...)
}

func encodeValueTypeVec(vs []module.ValueType) []byte {
	out := leb128.EncodeUint32(uint32(len(vs)))
	for _, v := range vs {
		out = append(out, byte(v))
	}
	return out
}

func encodeTypeSection(m *module.Module) []byte {
	out := leb128.EncodeUint32(uint32(len(m.TypeSection)))
	for _, ft := range m.TypeSection {
		out = append(out, 0x60)
		out = append(out, encodeValueTypeVec(ft.Params)...)
		out = append(out, encodeValueTypeVec(ft.Results)...)
	}
	return out
}

func encodeLimits(min uint32, max *uint32, shared bool) []byte {
	var flags byte
	if max != nil {
		flags |= 0x1
	}
	if shared {
		flags |= 0x2
	}
	out := []byte{flags}
	out = append(out, leb128.EncodeUint32(min)...)
	if max != nil {
		out = append(out, leb128.EncodeUint32(*max)...)
	}
	return out
}

func encodeImportSection(m *module.Module) []byte {
	out := leb128.EncodeUint32(uint32(len(m.ImportSection)))
	for _, imp := range m.ImportSection {
		out = append(out, encodeName(imp.Module)...)
		out = append(out, encodeName(imp.Name)...)
		out = append(out, byte(imp.Kind))
		switch imp.Kind {
		case module.ImportKindFunc:
			out = append(out, leb128.EncodeUint32(imp.DescFunc)...)
		case module.ImportKindTable:
			out = append(out, byte(imp.DescTable.ElemType))
			out = append(out, encodeLimits(imp.DescTable.Min, imp.DescTable.Max, false)...)
		case module.ImportKindMemory:
			out = append(out, encodeLimits(imp.DescMem.Min, imp.DescMem.Max, imp.DescMem.Shared)...)
		case module.ImportKindGlobal:
			out = append(out, byte(imp.DescGlobal.ValType))
			if imp.DescGlobal.Mutable {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
	}
	return out
}

func encodeName(s string) []byte {
	out := leb128.EncodeUint32(uint32(len(s)))
	return append(out, s...)
}

func encodeFunctionSection(m *module.Module) []byte {
	out := leb128.EncodeUint32(uint32(len(m.FunctionSection)))
	for _, idx := range m.FunctionSection {
		out = append(out, leb128.EncodeUint32(idx)...)
	}
	return out
}

func encodeMemorySection(m *module.Module) []byte {
	out := leb128.EncodeUint32(uint32(len(m.MemorySection)))
	for _, mt := range m.MemorySection {
		out = append(out, encodeLimits(mt.Min, mt.Max, mt.Shared)...)
	}
	return out
}

func encodeConstExpr(c *module.ConstantExpression) []byte {
	out := []byte{c.Opcode}
	out = append(out, c.Data...)
	return append(out, 0x0b)
}

func encodeGlobalSection(m *module.Module) []byte {
	out := leb128.EncodeUint32(uint32(len(m.GlobalSection)))
	for _, g := range m.GlobalSection {
		out = append(out, byte(g.Type.ValType))
		if g.Type.Mutable {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
		out = append(out, encodeConstExpr(g.Init)...)
	}
	return out
}

func encodeExportSection(m *module.Module) []byte {
	out := leb128.EncodeUint32(uint32(len(m.ExportSection)))
	// Map iteration order is unspecified; spec section 8 allows decoder
	// round-trip equality modulo unspecified name-section ordering, and
	// the export section here is likewise compared by content, not byte
	// order, in tests.
	for name, exp := range m.ExportSection {
		out = append(out, encodeName(name)...)
		out = append(out, byte(exp.Kind))
		out = append(out, leb128.EncodeUint32(exp.Index)...)
	}
	return out
}

func encodeCodeSection(m *module.Module) []byte {
	out := leb128.EncodeUint32(uint32(len(m.CodeSection)))
	for _, c := range m.CodeSection {
		var body []byte
		if len(c.LocalTypes) == 0 {
			body = append(body, leb128.EncodeUint32(0)...)
		} else {
			body = append(body, leb128.EncodeUint32(uint32(len(c.LocalTypes)))...)
			for _, vt := range c.LocalTypes {
				body = append(body, leb128.EncodeUint32(1)...)
				body = append(body, byte(vt))
			}
		}
		body = append(body, c.Body...)
		out = append(out, leb128.EncodeUint32(uint32(len(body)))...)
		out = append(out, body...)
	}
	return out
}
