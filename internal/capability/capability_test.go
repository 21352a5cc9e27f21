package capability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlloc_RejectsOverBudget(t *testing.T) {
	ctx := &Context{level: LevelFull}
	for c := Crate(0); c < crateCount; c++ {
		v := int64(16)
		ctx.remaining[c] = &v
	}

	cap1, err := ctx.Alloc(CrateRuntime, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(6), ctx.Remaining(CrateRuntime))

	_, err = ctx.Alloc(CrateRuntime, 7)
	require.Error(t, err)
	require.Contains(t, err.Error(), "InsufficientCapability")

	cap1.Release()
	require.Equal(t, uint64(16), ctx.Remaining(CrateRuntime))
}

func TestVerify_LevelGating(t *testing.T) {
	cap := &Capability{crate: CrateRuntime, maxBytes: 100, level: LevelNone}
	require.NoError(t, cap.Verify(OpRead, 0))
	require.Error(t, cap.Verify(OpWrite, 1))
	require.Error(t, cap.Verify(OpDeallocate, 1))

	full := &Capability{crate: CrateRuntime, maxBytes: 100, level: LevelFull}
	require.NoError(t, full.Verify(OpDeallocate, 1))
	require.Error(t, full.Verify(OpAllocate, 200))
}

func TestInit_SecondCallFails(t *testing.T) {
	// Init guards a single process-wide Context; the first call in this
	// test binary may come from another test package's init path, so only
	// assert that some call already claimed it and a further one is
	// rejected, not that this is literally the first call ever made.
	_, first := Init(LevelStandard)
	_, second := Init(LevelStandard)
	if first == nil {
		require.Error(t, second)
	} else {
		// Another test already called Init first; this call and the next
		// must both fail identically.
		require.Error(t, first)
		require.Error(t, second)
	}
}
