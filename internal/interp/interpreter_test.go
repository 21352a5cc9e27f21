package interp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseengine/wrtcore/internal/memory"
	"github.com/pulseengine/wrtcore/internal/module"
	"github.com/pulseengine/wrtcore/internal/wrterr"
)

// countingBudget is a Budget that fails once more than limit fuel has been
// charged, for asserting both the exact cost of a call and exhaustion.
type countingBudget struct {
	limit, spent uint64
}

func (b *countingBudget) Consume(cost uint64) error {
	if b.spent+cost > b.limit {
		return wrterr.New(wrterr.KindResource, 500, "fuel exhausted")
	}
	b.spent += cost
	return nil
}

func addFunctionModule() *module.Module {
	ft := &module.FunctionType{
		Params:  []module.ValueType{module.ValueTypeI32, module.ValueTypeI32},
		Results: []module.ValueType{module.ValueTypeI32},
	}
	body := []byte{
		0x20, 0x00, // local.get 0
		0x20, 0x01, // local.get 1
		0x6a,       // i32.add
		0x0b,       // end
	}
	return &module.Module{
		TypeSection:     []*module.FunctionType{ft},
		FunctionSection: []module.Index{0},
		CodeSection:     []*module.Code{{Body: body}},
	}
}

// E1: a two-argument add function executes and charges the exact fuel its
// instruction stream should cost.
func TestCallAddFunctionChargesFuel(t *testing.T) {
	mod := addFunctionModule()
	inst, err := NewInstance(mod, nil, nil)
	require.NoError(t, err)

	budget := &countingBudget{limit: 100}
	results, err := inst.Call(context.Background(), 0, []uint64{5, 7}, budget)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.EqualValues(t, 12, results[0])

	// local.get x2 (1 each) + i32.add (2, default arithmetic cost) + end (1).
	assert.EqualValues(t, 5, budget.spent)
}

func TestCallAddFunctionExhaustsFuel(t *testing.T) {
	mod := addFunctionModule()
	inst, err := NewInstance(mod, nil, nil)
	require.NoError(t, err)

	_, err = inst.Call(context.Background(), 0, []uint64{1, 1}, &countingBudget{limit: 2})
	require.Error(t, err)
}

// E2: dividing by zero traps with the DivideByZero kind rather than
// panicking or returning a garbage result.
func TestCallDivByZeroTraps(t *testing.T) {
	ft := &module.FunctionType{
		Params:  []module.ValueType{module.ValueTypeI32},
		Results: []module.ValueType{module.ValueTypeI32},
	}
	body := []byte{
		0x20, 0x00, // local.get 0
		0x41, 0x00, // i32.const 0
		0x6d,       // i32.div_s
		0x0b,       // end
	}
	mod := &module.Module{
		TypeSection:     []*module.FunctionType{ft},
		FunctionSection: []module.Index{0},
		CodeSection:     []*module.Code{{Body: body}},
	}
	inst, err := NewInstance(mod, nil, nil)
	require.NoError(t, err)

	_, err = inst.Call(context.Background(), 0, []uint64{10}, NoBudget)
	require.Error(t, err)
	werr, ok := err.(*wrterr.Error)
	require.True(t, ok)
	assert.Equal(t, wrterr.KindTrap, werr.Kind)
	assert.EqualValues(t, 400+uint32(TrapDivideByZero), werr.Code)
}

// E3: a store followed by a load round-trips through linear memory (the
// out-of-bounds store case is the next test).
func TestCallMemoryStoreLoadRoundTrip(t *testing.T) {
	mem, err := memory.NewInstance(1, nil, false)
	require.NoError(t, err)

	ft := &module.FunctionType{Results: []module.ValueType{module.ValueTypeI32}}
	body := []byte{
		0x41, 0x0a, // i32.const 10
		0x41, 0x2a, // i32.const 42
		0x36, 0x02, 0x00, // i32.store align=2 offset=0
		0x41, 0x0a, // i32.const 10
		0x28, 0x02, 0x00, // i32.load align=2 offset=0
		0x0b, // end
	}
	mod := &module.Module{
		TypeSection:     []*module.FunctionType{ft},
		FunctionSection: []module.Index{0},
		CodeSection:     []*module.Code{{Body: body}},
	}
	inst, err := NewInstance(mod, []*memory.Instance{mem}, nil)
	require.NoError(t, err)

	results, err := inst.Call(context.Background(), 0, nil, NoBudget)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.EqualValues(t, 42, results[0])
}

func TestCallMemoryStoreOutOfBoundsTraps(t *testing.T) {
	mem, err := memory.NewInstance(1, nil, false)
	require.NoError(t, err)

	ft := &module.FunctionType{}
	body := []byte{
		0x41, 0x00, // i32.const 0 (address immediate, offset carries the OOB part)
		0x41, 0x01, // i32.const 1 (value)
		0x36, 0x02, 0xff, 0xff, 0x03, // i32.store align=2 offset=65535
		0x0b, // end
	}
	mod := &module.Module{
		TypeSection:     []*module.FunctionType{ft},
		FunctionSection: []module.Index{0},
		CodeSection:     []*module.Code{{Body: body}},
	}
	inst, err := NewInstance(mod, []*memory.Instance{mem}, nil)
	require.NoError(t, err)

	_, err = inst.Call(context.Background(), 0, nil, NoBudget)
	require.Error(t, err)
	werr, ok := err.(*wrterr.Error)
	require.True(t, ok)
	assert.Equal(t, wrterr.KindTrap, werr.Kind)
}

// countdownModule encodes: if n == 0 { return n } else { return_call self(n-1) }.
// return_call must reuse the current frame rather than pushing a new one, so
// a large iteration count completes without tripping callStackCeiling.
func countdownModule() *module.Module {
	ft := &module.FunctionType{
		Params:  []module.ValueType{module.ValueTypeI32},
		Results: []module.ValueType{module.ValueTypeI32},
	}
	body := []byte{
		0x20, 0x00, // local.get 0
		0x45,       // i32.eqz
		0x04, 0x40, // if void
		0x20, 0x00, // local.get 0
		0x0f, // return
		0x05, // else
		0x20, 0x00, // local.get 0
		0x41, 0x01, // i32.const 1
		0x6b,       // i32.sub
		0x12, 0x00, // return_call 0
		0x0b, // end (closes if)
	}
	return &module.Module{
		TypeSection:     []*module.FunctionType{ft},
		FunctionSection: []module.Index{0},
		CodeSection:     []*module.Code{{Body: body}},
	}
}

func TestReturnCallReusesFrameForDeepRecursion(t *testing.T) {
	inst, err := NewInstance(countdownModule(), nil, nil)
	require.NoError(t, err)

	results, err := inst.Call(context.Background(), 0, []uint64{50000}, NoBudget)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.EqualValues(t, 0, results[0])
}

func TestCallUndefinedFunctionIndexIsValidationError(t *testing.T) {
	inst, err := NewInstance(addFunctionModule(), nil, nil)
	require.NoError(t, err)

	_, err = inst.Call(context.Background(), 7, nil, NoBudget)
	require.Error(t, err)
	werr, ok := err.(*wrterr.Error)
	require.True(t, ok)
	assert.Equal(t, wrterr.KindValidation, werr.Kind)
}

// callIndirectModule builds: func 0 (type () -> i32, the caller) pushes 21
// and a table slot index of 0, then call_indirects through table 0 to
// whatever function typeIdx names; func 1 (type (i32) -> i32, "double")
// is placed at the non-null table slot 1 so the implementation's
// zero-means-null table convention never hides function index 0.
func callIndirectModule() (*module.Module, *memory.Table) {
	ftDouble := &module.FunctionType{Params: []module.ValueType{module.ValueTypeI32}, Results: []module.ValueType{module.ValueTypeI32}}
	ftCaller := &module.FunctionType{Results: []module.ValueType{module.ValueTypeI32}}
	callerBody := []byte{
		0x41, 0x15, // i32.const 21
		0x41, 0x00, // i32.const 0 (table slot)
		0x11, 0x00, 0x00, // call_indirect typeIdx=0 tableIdx=0
		0x0b, // end
	}
	doubleBody := []byte{
		0x20, 0x00, // local.get 0
		0x41, 0x02, // i32.const 2
		0x6c,       // i32.mul
		0x0b,       // end
	}
	mod := &module.Module{
		TypeSection:     []*module.FunctionType{ftDouble, ftCaller},
		FunctionSection: []module.Index{1, 0},
		CodeSection:     []*module.Code{{Body: callerBody}, {Body: doubleBody}},
	}
	table := memory.NewTable(0x70, 2, nil)
	table.Set(1, 1) // slot 1 -> function index 1 ("double")
	return mod, table
}

func TestCallIndirectDispatchesThroughTable(t *testing.T) {
	mod, table := callIndirectModule()
	// Route the caller's table-slot operand to the populated slot 1.
	mod.CodeSection[0].Body[3] = 0x01
	inst, err := NewInstance(mod, nil, []*memory.Table{table})
	require.NoError(t, err)

	results, err := inst.Call(context.Background(), 0, nil, NoBudget)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.EqualValues(t, 42, results[0])
}

func TestCallIndirectNullElementTraps(t *testing.T) {
	mod, table := callIndirectModule()
	// Slot 0 is left null; the caller body already targets slot 0.
	inst, err := NewInstance(mod, nil, []*memory.Table{table})
	require.NoError(t, err)

	_, err = inst.Call(context.Background(), 0, nil, NoBudget)
	require.Error(t, err)
	werr, ok := err.(*wrterr.Error)
	require.True(t, ok)
	assert.Equal(t, wrterr.KindTrap, werr.Kind)
	assert.Equal(t, uint32(400+uint32(TrapTableOutOfBounds)), werr.Code)
}

func TestCallIndirectTypeMismatchTraps(t *testing.T) {
	mod, table := callIndirectModule()
	mod.CodeSection[0].Body[3] = 0x01     // target the populated slot
	mod.CodeSection[0].Body[5] = 0x01     // but declare typeIdx=1 (the caller's own 0-arg type)
	inst, err := NewInstance(mod, nil, []*memory.Table{table})
	require.NoError(t, err)

	_, err = inst.Call(context.Background(), 0, nil, NoBudget)
	require.Error(t, err)
	werr, ok := err.(*wrterr.Error)
	require.True(t, ok)
	assert.Equal(t, wrterr.KindTrap, werr.Kind)
	assert.Equal(t, uint32(400+uint32(TrapIndirectCallTypeMismatch)), werr.Code)
}

func TestUnsupportedOpcodeTraps(t *testing.T) {
	ft := &module.FunctionType{}
	body := []byte{0x06, 0x0b} // reserved/unassigned opcode byte, then end
	mod := &module.Module{
		TypeSection:     []*module.FunctionType{ft},
		FunctionSection: []module.Index{0},
		CodeSection:     []*module.Code{{Body: body}},
	}
	inst, err := NewInstance(mod, nil, nil)
	require.NoError(t, err)

	_, err = inst.Call(context.Background(), 0, nil, NoBudget)
	require.Error(t, err)
	werr, ok := err.(*wrterr.Error)
	require.True(t, ok)
	assert.Equal(t, wrterr.KindTrap, werr.Kind)
	assert.Equal(t, uint32(400+uint32(TrapUnsupportedOpcode)), werr.Code)
}

func TestAtomicUnsupportedSubopcodeTraps(t *testing.T) {
	mem, err := memory.NewInstance(1, nil, true)
	require.NoError(t, err)
	ce := &callEngine{}

	_, err = ce.atomicOp(&Instance{Memories: []*memory.Instance{mem}}, []byte{0x7f, 0x02, 0x00}, 0, 0)
	require.Error(t, err)
	werr, ok := err.(*wrterr.Error)
	require.True(t, ok)
	assert.Equal(t, wrterr.KindTrap, werr.Kind)
}

func TestSimdI32x4AddIsLaneWise(t *testing.T) {
	ce := &callEngine{}
	inst := &Instance{}

	ce.push(5)
	_, err := ce.simdOp(inst, []byte{SimdI32x4Splat}, 0, 0)
	require.NoError(t, err)
	ce.push(7)
	_, err = ce.simdOp(inst, []byte{SimdI32x4Splat}, 0, 0)
	require.NoError(t, err)
	_, err = ce.simdOp(inst, []byte{SimdI32x4Add}, 0, 0)
	require.NoError(t, err)

	v := ce.popV128()
	for i := 0; i < 4; i++ {
		assert.EqualValues(t, 12, leUint(v[i*4:i*4+4]))
	}
}

func TestSimdUnsupportedSubopcodeTraps(t *testing.T) {
	ce := &callEngine{}
	_, err := ce.simdOp(&Instance{}, []byte{0xff, 0x01}, 0, 0)
	require.Error(t, err)
	werr, ok := err.(*wrterr.Error)
	require.True(t, ok)
	assert.Equal(t, wrterr.KindTrap, werr.Kind)
}

func TestBindHostFunctionIsInvocable(t *testing.T) {
	inst, err := NewInstance(addFunctionModule(), nil, nil)
	require.NoError(t, err)

	sig := &module.FunctionType{Params: []module.ValueType{module.ValueTypeI32}, Results: []module.ValueType{module.ValueTypeI32}}
	inst.BindHostFunction(5, sig, func(ctx context.Context, args []uint64) ([]uint64, error) {
		return []uint64{args[0] * 2}, nil
	})

	results, err := inst.Call(context.Background(), 5, []uint64{21}, NoBudget)
	require.NoError(t, err)
	assert.EqualValues(t, 42, results[0])
}
