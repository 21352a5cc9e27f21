package decode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulseengine/wrtcore/internal/module"
)

func u32ptr(v uint32) *uint32 { return &v }

func TestDecode_InvalidMagic(t *testing.T) {
	_, err := Decode([]byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00})
	require.ErrorIs(t, err, errInvalidMagic)
}

func TestDecode_Truncated(t *testing.T) {
	_, err := Decode([]byte{0x00, 0x61, 0x73})
	require.ErrorIs(t, err, errTruncated)
}

func TestDecode_UnsupportedVersion(t *testing.T) {
	_, err := Decode([]byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00})
	require.ErrorIs(t, err, errUnsupportedVer)
}

func TestDecode_RoundTrip(t *testing.T) {
	i32 := module.ValueTypeI32
	in := &module.Module{
		ExportSection: map[string]*module.Export{},
		TypeSection: []*module.FunctionType{
			{Params: []module.ValueType{i32, i32}, Results: []module.ValueType{i32}},
		},
		FunctionSection: []module.Index{0},
		MemorySection:   []*module.MemoryType{{Min: 1, Max: u32ptr(2)}},
		CodeSection: []*module.Code{
			{Body: []byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b}}, // local.get 0, local.get 1, i32.add, end
		},
	}
	in.ExportSection["add"] = &module.Export{Name: "add", Kind: module.ExportKind(module.ImportKindFunc), Index: 0}

	encoded := Encode(in)
	out, err := Decode(encoded)
	require.NoError(t, err)

	require.Equal(t, in.TypeSection, out.TypeSection)
	require.Equal(t, in.FunctionSection, out.FunctionSection)
	require.Equal(t, in.MemorySection, out.MemorySection)
	require.Equal(t, in.CodeSection, out.CodeSection)
	require.Equal(t, in.ExportSection, out.ExportSection)
	require.Equal(t, module.FormatCoreModule, out.Format)
}

func TestDecode_SectionOutOfOrder(t *testing.T) {
	// Function section (3) before type section (1) is out of order.
	data := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x03, 0x01, 0x00, // empty function section
		0x01, 0x04, 0x01, 0x60, 0x00, 0x00, // type section after it
	}
	_, err := Decode(data)
	require.ErrorIs(t, err, errSectionOrder)
}

func TestDecode_SharedMemoryRequiresMax(t *testing.T) {
	data := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x05, 0x03, 0x01, 0x02, 0x01, // memory section: 1 entry, flags=shared(no max)=0x2, min=1
	}
	_, err := Decode(data)
	require.Error(t, err)
}
