// Package async implements the fuel-metered cooperative task executor
// (C7): a single-threaded scheduler over a state machine of futures,
// fuel-aware wakers, and yield-boundary combinators.
//
// Grounded on wazero's moduleEngine.Call(ctx, ...) context-threaded call
// convention (a task's Poll takes a context the same way), generalized
// into a scheduler loop; the FIFO-within-priority run queue and
// cooperative worker shape follow moby/moby's pattern of driving bounded
// fan-out with golang.org/x/sync/errgroup.
package async

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pulseengine/wrtcore/internal/wrterr"
)

var log = logrus.WithField("component", "async")

// State is a task's position in its lifecycle state machine.
type State uint8

const (
	StateReady State = iota
	StateRunning
	StateWaiting
	StateCompleted
	StateFailed
	StateCancelled
)

// FailureReason distinguishes why a task entered StateFailed.
type FailureReason uint8

const (
	FailureNone FailureReason = iota
	FailureFuelExhausted
	FailureError
)

// Priority orders tasks within the scheduler; lower numeric value runs
// first and is strictly preferred over any pending lower-priority task.
type Priority int

const (
	PriorityHigh   Priority = 0
	PriorityNormal Priority = 1
	PriorityLow    Priority = 2
)

// Future is the unit of work a Task drives. Poll returns (done, error);
// done=false with err=nil means the future yielded at a suspension point
// and should be polled again once its waker fires.
type Future interface {
	Poll(ctx context.Context, t *Task) (done bool, err error)
}

// FutureFunc adapts a plain function to the Future interface, for
// leaf futures that complete in one poll.
type FutureFunc func(ctx context.Context, t *Task) (bool, error)

func (f FutureFunc) Poll(ctx context.Context, t *Task) (bool, error) { return f(ctx, t) }

// wakeFuelCost is charged against a task's budget every time one of its
// wakers fires, the defense against wake-storm denial of service spec.md
// §4.7 requires.
const wakeFuelCost = 1

// Task is one scheduled unit: a future plus its fuel budget, priority,
// and cancellation flag. Task implements interp.Budget so the same
// accounting drives both its own fuel charges and any interpreter call it
// makes.
type Task struct {
	ID       uint64
	Priority Priority
	future   Future

	mu        sync.Mutex
	state     State
	failure   FailureReason
	fuel      uint64
	cancelled bool
	waker     chan struct{}

	err error
}

// NewTask constructs a Ready task with the given fuel budget.
func NewTask(id uint64, priority Priority, fuel uint64, f Future) *Task {
	return &Task{ID: id, Priority: priority, future: f, fuel: fuel, state: StateReady, waker: make(chan struct{}, 1)}
}

// Consume implements interp.Budget: fuel charged by the interpreter while
// executing on behalf of this task draws from the same pool as the
// task's own scheduling fuel.
func (t *Task) Consume(cost uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cost > t.fuel {
		return wrterr.New(wrterr.KindResource, 700, "task fuel exhausted")
	}
	t.fuel -= cost
	return nil
}

// Cancel sets the cooperative cancellation flag; the task observes it at
// its next suspension point, not before.
func (t *Task) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
}

// Cancelled reports whether Cancel has been called. Futures must check
// this at every suspension point per spec.md §4.7.
func (t *Task) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// State reports the task's current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the error a Failed task ended with, if any.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Failure reports why a Failed task failed.
func (t *Task) Failure() FailureReason {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failure
}

// Wake fires the task's waker, charging wakeFuelCost against its budget.
// A wake against an already-failed task's dropped waker is a no-op and is
// not charged, per spec.md §4.7 ("a task that exhausts its budget ...
// its wakers are dropped without charge").
func (t *Task) Wake() {
	t.mu.Lock()
	if t.state == StateFailed || t.state == StateCompleted || t.state == StateCancelled {
		t.mu.Unlock()
		return
	}
	if t.fuel < wakeFuelCost {
		t.state = StateFailed
		t.failure = FailureFuelExhausted
		t.mu.Unlock()
		return
	}
	t.fuel -= wakeFuelCost
	if t.state == StateWaiting {
		t.state = StateReady
	}
	t.mu.Unlock()
	select {
	case t.waker <- struct{}{}:
	default:
	}
}

// Executor runs one cooperative scheduling loop. Many Executors may run on
// different host threads (see internal/threads); within one Executor, a
// task never loses control except at an explicit suspension point.
type Executor struct {
	mu    sync.Mutex
	queue [3][]*Task // FIFO ring per Priority
}

// NewExecutor returns an empty, ready-to-schedule Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Spawn enqueues t in its priority's FIFO queue.
func (e *Executor) Spawn(t *Task) {
	e.mu.Lock()
	e.queue[t.Priority] = append(e.queue[t.Priority], t)
	e.mu.Unlock()
}

// next pops the earliest-queued task from the highest-priority non-empty
// queue, implementing "higher priority is strictly preferred until it
// yields".
func (e *Executor) next() *Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	for p := PriorityHigh; p <= PriorityLow; p++ {
		q := e.queue[p]
		if len(q) > 0 {
			t := q[0]
			e.queue[p] = q[1:]
			return t
		}
	}
	return nil
}

func (e *Executor) requeue(t *Task) {
	e.mu.Lock()
	e.queue[t.Priority] = append(e.queue[t.Priority], t)
	e.mu.Unlock()
}

// Run drains the ready queue until it is empty or ctx is cancelled,
// polling each task once per visit and requeueing it if it yields rather
// than completes. This single-goroutine loop is the "cooperative" half of
// spec.md §5; RunPool below adds the "many executors in parallel" half.
func (e *Executor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		t := e.next()
		if t == nil {
			return nil
		}
		e.pollOnce(ctx, t)
	}
}

func (e *Executor) pollOnce(ctx context.Context, t *Task) {
	t.mu.Lock()
	if t.cancelled {
		t.state = StateCancelled
		t.mu.Unlock()
		return
	}
	t.state = StateRunning
	t.mu.Unlock()

	done, err := t.future.Poll(ctx, t)

	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case err != nil:
		t.state = StateFailed
		t.failure = FailureError
		if werr, ok := err.(*wrterr.Error); ok && werr.Kind == wrterr.KindResource && werr.Code == 700 {
			t.failure = FailureFuelExhausted
		}
		t.err = err
		log.WithField("task_id", t.ID).WithError(err).Debug("task failed")
	case done:
		t.state = StateCompleted
	default:
		t.state = StateWaiting
		t.mu.Unlock()
		e.requeue(t)
		t.mu.Lock()
	}
}

// RunPool runs n Executors concurrently via errgroup, each draining its own
// run queue; used when multiple independent executors (e.g. one per
// internal/threads worker) need a bounded fan-out driver.
func RunPool(ctx context.Context, executors []*Executor) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, ex := range executors {
		ex := ex
		g.Go(func() error { return ex.Run(gctx) })
	}
	return g.Wait()
}

// Select resolves as soon as any of futs completes. It is itself a yield
// boundary: one call to Poll polls the children in order and stops at the
// first one that completes or fails, so children after it are not polled in
// that call.
type Select struct {
	futs []Future
	done bool
	idx  int
}

func NewSelect(futs ...Future) *Select { return &Select{futs: futs, idx: -1} }

func (s *Select) Poll(ctx context.Context, t *Task) (bool, error) {
	if t.Cancelled() {
		return false, wrterr.New(wrterr.KindAsync, 701, "cancelled")
	}
	for i, f := range s.futs {
		done, err := f.Poll(ctx, t)
		if err != nil {
			return false, err
		}
		if done {
			s.idx = i
			return true, nil
		}
	}
	return false, nil
}

// Chain runs futs strictly in order, each to completion before the next
// starts, suspending the whole chain at each child's yield boundary.
type Chain struct {
	futs []Future
	at   int
}

func NewChain(futs ...Future) *Chain { return &Chain{futs: futs} }

func (c *Chain) Poll(ctx context.Context, t *Task) (bool, error) {
	if t.Cancelled() {
		return false, wrterr.New(wrterr.KindAsync, 702, "cancelled")
	}
	for c.at < len(c.futs) {
		done, err := c.futs[c.at].Poll(ctx, t)
		if err != nil {
			return false, err
		}
		if !done {
			return false, nil
		}
		c.at++
	}
	return true, nil
}

// Join waits for every future in futs to complete, polling all
// not-yet-done children on each call.
type Join struct {
	futs []Future
	done []bool
}

func NewJoin(futs ...Future) *Join { return &Join{futs: futs, done: make([]bool, len(futs))} }

func (j *Join) Poll(ctx context.Context, t *Task) (bool, error) {
	if t.Cancelled() {
		return false, wrterr.New(wrterr.KindAsync, 703, "cancelled")
	}
	all := true
	for i, f := range j.futs {
		if j.done[i] {
			continue
		}
		done, err := f.Poll(ctx, t)
		if err != nil {
			return false, err
		}
		if done {
			j.done[i] = true
		} else {
			all = false
		}
	}
	return all, nil
}

// TimeProvider is the host collaborator for monotonic time, overridable by
// embedders (spec.md §6). This package ships no implementation of it; the
// caller of NewTimeout supplies one.
type TimeProvider interface {
	NowMonotonicNanos() int64
}

// Timeout wraps a future with a deadline measured against a TimeProvider;
// on expiry it resolves to a Timeout error rather than running the
// wrapped future again.
type Timeout struct {
	inner    Future
	clock    TimeProvider
	deadline int64
	started  bool
}

func NewTimeout(inner Future, clock TimeProvider, durationNanos int64) *Timeout {
	return &Timeout{inner: inner, clock: clock, deadline: durationNanos}
}

func (to *Timeout) Poll(ctx context.Context, t *Task) (bool, error) {
	if !to.started {
		to.deadline += to.clock.NowMonotonicNanos()
		to.started = true
	}
	if to.clock.NowMonotonicNanos() >= to.deadline {
		return false, wrterr.New(wrterr.KindAsync, 704, "Timeout")
	}
	return to.inner.Poll(ctx, t)
}
