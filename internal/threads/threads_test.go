package threads

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool(t *testing.T, maxThreads int) *Pool {
	t.Helper()
	cfg := PoolConfig{MaxThreads: maxThreads, MinPriority: 0, MaxPriority: 2, LifetimeCap: time.Hour}
	return NewPool(cfg, NewResourceTracker(maxThreads, maxThreads))
}

func TestSpawnRunsAndReleasesSlot(t *testing.T) {
	p := testPool(t, 2)
	done := make(chan struct{})
	_, err := p.Spawn(context.Background(), SpawnRequest{
		ModuleID: 1, Priority: 0,
		Run: func(ctx context.Context, args []uint64) ([]uint64, error) {
			close(done)
			return nil, nil
		},
	})
	require.NoError(t, err)
	<-done
	require.Eventually(t, func() bool { return len(p.Health()) == 0 }, time.Second, time.Millisecond)
}

func TestSpawnRejectsPriorityOutOfRange(t *testing.T) {
	p := testPool(t, 2)
	_, err := p.Spawn(context.Background(), SpawnRequest{Priority: 99, Run: func(ctx context.Context, args []uint64) ([]uint64, error) { return nil, nil }})
	require.Error(t, err)
}

func TestResourceTrackerEnforcesPerModuleCap(t *testing.T) {
	tr := NewResourceTracker(10, 1)
	require.NoError(t, tr.Acquire(1))
	err := tr.Acquire(1)
	require.Error(t, err)
	tr.Release(1)
	require.NoError(t, tr.Acquire(1))
}

func TestResourceTrackerEnforcesGlobalCap(t *testing.T) {
	tr := NewResourceTracker(1, 10)
	require.NoError(t, tr.Acquire(1))
	err := tr.Acquire(2)
	require.Error(t, err)
}

func TestHealthReportsLifetimeExceeded(t *testing.T) {
	p := NewPool(PoolConfig{MaxThreads: 1, LifetimeCap: time.Millisecond}, NewResourceTracker(1, 1))
	block := make(chan struct{})
	id, err := p.Spawn(context.Background(), SpawnRequest{
		Run: func(ctx context.Context, args []uint64) ([]uint64, error) {
			<-block
			return nil, nil
		},
	})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	states := p.Health()
	assert.Equal(t, LifetimeExceeded, states[id])
	close(block)
}

func TestReapUnhealthyCancelsWorkerContext(t *testing.T) {
	p := NewPool(PoolConfig{MaxThreads: 1, LifetimeCap: time.Millisecond}, NewResourceTracker(1, 1))
	cancelled := make(chan struct{})
	_, err := p.Spawn(context.Background(), SpawnRequest{
		Run: func(ctx context.Context, args []uint64) ([]uint64, error) {
			<-ctx.Done()
			close(cancelled)
			return nil, ctx.Err()
		},
	})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	reaped := p.ReapUnhealthy()
	assert.NotEmpty(t, reaped)
	<-cancelled
}
