package wrtcore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulseengine/wrtcore/api"
	"github.com/pulseengine/wrtcore/internal/decode"
	"github.com/pulseengine/wrtcore/internal/module"
)

// addModule builds the binary for spec scenario E1: an exported
// add: (i32 i32) -> i32 returning the sum of its two params.
func addModule(t *testing.T) []byte {
	t.Helper()
	i32 := module.ValueTypeI32
	m := &module.Module{
		ExportSection: map[string]*module.Export{
			"add": {Name: "add", Kind: module.ExportKind(module.ImportKindFunc), Index: 0},
		},
		TypeSection:     []*module.FunctionType{{Params: []module.ValueType{i32, i32}, Results: []module.ValueType{i32}}},
		FunctionSection: []module.Index{0},
		CodeSection: []*module.Code{
			{Body: []byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b}}, // local.get 0, local.get 1, i32.add, end
		},
	}
	return decode.Encode(m)
}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	// capability.Init is call-once per process; tests in this package share
	// one Runtime's worth of global capability state, so build the config
	// once and let require.NoError surface a double-Init mistake loudly.
	rt, err := NewRuntime(NewRuntimeConfig())
	require.NoError(t, err)
	return rt
}

var sharedTestRuntime *Runtime

func testRuntime(t *testing.T) *Runtime {
	t.Helper()
	if sharedTestRuntime == nil {
		sharedTestRuntime = newTestRuntime(t)
	}
	return sharedTestRuntime
}

func TestRuntime_CompileInstantiateInvoke(t *testing.T) {
	rt := testRuntime(t)
	ctx := context.Background()

	compiled, err := rt.CompileModule(addModule(t))
	require.NoError(t, err)
	require.Equal(t, module.FormatCoreModule, compiled.Format())

	inst, err := rt.InstantiateModule(ctx, "adder", compiled, nil)
	require.NoError(t, err)
	defer inst.Close(ctx)

	fn, err := inst.ExportedFunction("add")
	require.NoError(t, err)
	require.Equal(t, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, fn.ParamTypes())
	require.Equal(t, []api.ValueType{api.ValueTypeI32}, fn.ResultTypes())

	results, err := fn.Call(ctx, api.EncodeI32(2), api.EncodeI32(3))
	require.NoError(t, err)
	require.Equal(t, []uint64{5}, results)
}

func TestRuntime_MissingExport(t *testing.T) {
	rt := testRuntime(t)
	ctx := context.Background()

	compiled, err := rt.CompileModule(addModule(t))
	require.NoError(t, err)
	inst, err := rt.InstantiateModule(ctx, "adder", compiled, nil)
	require.NoError(t, err)
	defer inst.Close(ctx)

	_, err = inst.ExportedFunction("subtract")
	require.Error(t, err)
}

func TestRuntimeConfig_Builder(t *testing.T) {
	c := NewRuntimeConfig().WithDefaultFuelBudget(42).WithMemoryMaxPages(10)
	require.Equal(t, uint64(42), c.defaultFuelBudget)
	require.Equal(t, uint32(10), c.memoryMaxPages)
	// NewRuntimeConfig's base template is untouched by the chained calls.
	require.NotEqual(t, c.defaultFuelBudget, defaultConfig.defaultFuelBudget)
}

func TestExtractTrapDetail_NonTrap(t *testing.T) {
	d := ExtractTrapDetail(nil)
	require.False(t, d.Found)
}
