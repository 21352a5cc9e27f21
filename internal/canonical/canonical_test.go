package canonical

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseengine/wrtcore/internal/interp"
	"github.com/pulseengine/wrtcore/internal/memory"
	"github.com/pulseengine/wrtcore/internal/module"
)

// reallocModule encodes a realloc(prev_ptr, prev_len, align, new_size) ->
// ptr that always returns a fixed offset, sufficient to drive
// the lower/cleanup protocol under test without a real allocator.
func reallocModule() *module.Module {
	ft := &module.FunctionType{
		Params:  []module.ValueType{module.ValueTypeI32, module.ValueTypeI32, module.ValueTypeI32, module.ValueTypeI32},
		Results: []module.ValueType{module.ValueTypeI32},
	}
	body := []byte{
		0x41, 0xc0, 0x00, // i32.const 64 (fixed bump offset)
		0x0b, // end
	}
	return &module.Module{
		TypeSection:     []*module.FunctionType{ft},
		FunctionSection: []module.Index{0},
		CodeSection:     []*module.Code{{Body: body}},
	}
}

func newTestEngine(t *testing.T) (*Engine, *interp.Instance) {
	t.Helper()
	mem, err := memory.NewInstance(1, nil, false)
	require.NoError(t, err)
	inst, err := interp.NewInstance(reallocModule(), []*memory.Instance{mem}, nil)
	require.NoError(t, err)
	return NewEngine(inst), inst
}

func TestLowerStringAllocatesAndWrites(t *testing.T) {
	e, _ := newTestEngine(t)
	opts := Options{HasRealloc: true, ReallocFuncIdx: 0}

	ptr, length, err := e.Lower(context.Background(), Value{Kind: KindString, Str: "hi"}, opts)
	require.NoError(t, err)
	assert.EqualValues(t, 64, ptr)
	assert.EqualValues(t, 2, length)
}

func TestLiftStringRoundTrips(t *testing.T) {
	e, inst := newTestEngine(t)
	opts := Options{HasRealloc: true, ReallocFuncIdx: 0, StringEncoding: EncodingUTF8}

	ptr, length, err := e.Lower(context.Background(), Value{Kind: KindString, Str: "hello"}, opts)
	require.NoError(t, err)

	v, err := e.Lift(KindString, ptr, length, opts)
	require.NoError(t, err)
	assert.Equal(t, "hello", v.Str)
	_ = inst
}

func TestLowerWithoutReallocFailsForVariableSizedData(t *testing.T) {
	e, _ := newTestEngine(t)
	_, _, err := e.Lower(context.Background(), Value{Kind: KindString, Str: "x"}, Options{})
	require.Error(t, err)
}

func TestLiftOutOfBoundsTraps(t *testing.T) {
	e, _ := newTestEngine(t)
	opts := Options{HasRealloc: true}
	_, err := e.Lift(KindString, 1<<20, 4, opts)
	require.Error(t, err)
}

func TestReallocRecursionIsRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	e.inRealloc = true
	_, _, err := e.Lower(context.Background(), Value{Kind: KindString, Str: "x"}, Options{HasRealloc: true})
	require.Error(t, err)
}
