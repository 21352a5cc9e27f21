package async

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completesAfter(n int) *countingFuture {
	return &countingFuture{remaining: n}
}

type countingFuture struct {
	remaining int
}

func (f *countingFuture) Poll(ctx context.Context, t *Task) (bool, error) {
	if f.remaining <= 0 {
		return true, nil
	}
	f.remaining--
	return false, nil
}

func TestExecutorRunsTaskToCompletion(t *testing.T) {
	ex := NewExecutor()
	task := NewTask(1, PriorityNormal, 100, completesAfter(3))
	ex.Spawn(task)

	require.NoError(t, ex.Run(context.Background()))
	assert.Equal(t, StateCompleted, task.State())
}

func TestHigherPriorityRunsFirst(t *testing.T) {
	ex := NewExecutor()
	var order []int
	mkFuture := func(id int) Future {
		return FutureFunc(func(ctx context.Context, t *Task) (bool, error) {
			order = append(order, id)
			return true, nil
		})
	}
	ex.Spawn(NewTask(1, PriorityLow, 10, mkFuture(1)))
	ex.Spawn(NewTask(2, PriorityHigh, 10, mkFuture(2)))
	ex.Spawn(NewTask(3, PriorityNormal, 10, mkFuture(3)))

	require.NoError(t, ex.Run(context.Background()))
	assert.Equal(t, []int{2, 3, 1}, order)
}

func TestTaskFuelExhaustionFailsWithoutRerun(t *testing.T) {
	ex := NewExecutor()
	attempts := 0
	fut := FutureFunc(func(ctx context.Context, t *Task) (bool, error) {
		attempts++
		if err := t.Consume(1000); err != nil {
			return false, err
		}
		return true, nil
	})
	task := NewTask(1, PriorityNormal, 1, fut)
	ex.Spawn(task)

	require.NoError(t, ex.Run(context.Background()))
	assert.Equal(t, StateFailed, task.State())
	assert.Equal(t, FailureFuelExhausted, task.Failure())
	assert.Equal(t, 1, attempts)
}

func TestCancelStopsTaskAtNextPoll(t *testing.T) {
	ex := NewExecutor()
	task := NewTask(1, PriorityNormal, 100, completesAfter(5))
	task.Cancel()
	ex.Spawn(task)

	require.NoError(t, ex.Run(context.Background()))
	assert.Equal(t, StateCancelled, task.State())
}

func TestSelectResolvesOnFirstReady(t *testing.T) {
	sel := NewSelect(completesAfter(5), completesAfter(0), completesAfter(9))
	task := NewTask(1, PriorityNormal, 100, nil)
	done, err := sel.Poll(context.Background(), task)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 1, sel.idx)
}

func TestChainRunsInOrder(t *testing.T) {
	var order []int
	step := func(id int) Future {
		return FutureFunc(func(ctx context.Context, t *Task) (bool, error) {
			order = append(order, id)
			return true, nil
		})
	}
	chain := NewChain(step(1), step(2), step(3))
	task := NewTask(1, PriorityNormal, 100, nil)

	for {
		done, err := chain.Poll(context.Background(), task)
		require.NoError(t, err)
		if done {
			break
		}
	}
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestJoinWaitsForAll(t *testing.T) {
	join := NewJoin(completesAfter(1), completesAfter(0), completesAfter(2))
	task := NewTask(1, PriorityNormal, 100, nil)

	var done bool
	var err error
	for i := 0; i < 10 && !done; i++ {
		done, err = join.Poll(context.Background(), task)
		require.NoError(t, err)
	}
	assert.True(t, done)
}

func TestWakeIsDroppedWithoutChargeAfterFailure(t *testing.T) {
	task := NewTask(1, PriorityNormal, 5, nil)
	task.mu.Lock()
	task.state = StateFailed
	task.mu.Unlock()

	task.Wake()
	assert.Equal(t, StateFailed, task.State())
	assert.EqualValues(t, 5, task.fuel)
}
