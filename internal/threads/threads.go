// Package threads implements the thread & atomic coordinator (C8): a
// bounded worker pool, per-module/global resource tracking, and health
// monitoring. Atomic wait/notify is not handled here: the wait queue lives
// in internal/memory and this package does not use it.
//
// Grounded on moby/moby's worker-pool-with-health-check idiom (a bounded
// number of concurrent workers, each polled for liveness, unhealthy ones
// torn down) — golang.org/x/sync/semaphore bounds concurrent spawns the
// way moby bounds concurrent container operations, and
// github.com/prometheus/client_golang/prometheus gauges mirror moby's
// daemon metrics registration for tracking pool occupancy and health
// transitions. PoolConfig's shape (max threads, priority range,
// per-thread memory limit, stack size, lifetime cap, optional affinity)
// is taken from wrt-platform/src/threading.rs, adapted to a Go option
// struct.
package threads

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/pulseengine/wrtcore/internal/wrterr"
)

var log = logrus.WithField("component", "threads")

// HealthState is the result of polling one worker thread for liveness.
type HealthState uint8

const (
	Healthy HealthState = iota
	CpuQuotaExceeded
	LifetimeExceeded
	Deadlocked
	Unresponsive
)

func (h HealthState) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case CpuQuotaExceeded:
		return "cpu_quota_exceeded"
	case LifetimeExceeded:
		return "lifetime_exceeded"
	case Deadlocked:
		return "deadlocked"
	case Unresponsive:
		return "unresponsive"
	default:
		return "unknown"
	}
}

// PoolConfig parameterizes the worker pool, per spec.md §4.8.
type PoolConfig struct {
	MaxThreads      int
	MinPriority     int
	MaxPriority     int
	PerThreadMemory uint64
	StackBytes      uint64
	LifetimeCap     time.Duration
	Affinity        []int // CPU indices; empty means no pinning
}

// SpawnRequest carries everything needed to start one worker thread.
type SpawnRequest struct {
	ModuleID   uint64
	FunctionID uint32
	Args       []uint64
	Priority   int
	Run        func(ctx context.Context, args []uint64) ([]uint64, error)
}

var errPoolCapExceeded = wrterr.New(wrterr.KindResource, 800, "thread pool capacity exceeded")
var errModuleCapExceeded = wrterr.New(wrterr.KindResource, 801, "per-module thread cap exceeded")
var errPriorityOutOfRange = wrterr.New(wrterr.KindValidation, 802, "priority outside pool's configured range")

// ResourceTracker enforces per-module and global thread caps, refusing
// spawns that would exceed either.
type ResourceTracker struct {
	mu         sync.Mutex
	globalMax  int
	moduleMax  int
	globalUsed int
	perModule  map[uint64]int
}

// NewResourceTracker returns a tracker bounding the pool to globalMax
// concurrent threads, with at most moduleMax per module id.
func NewResourceTracker(globalMax, moduleMax int) *ResourceTracker {
	return &ResourceTracker{globalMax: globalMax, moduleMax: moduleMax, perModule: map[uint64]int{}}
}

// Acquire reserves one thread slot for moduleID, failing if either cap
// would be exceeded.
func (r *ResourceTracker) Acquire(moduleID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.globalUsed >= r.globalMax {
		return errPoolCapExceeded
	}
	if r.perModule[moduleID] >= r.moduleMax {
		return errModuleCapExceeded
	}
	r.globalUsed++
	r.perModule[moduleID]++
	return nil
}

// Release frees the slot reserved by a prior Acquire.
func (r *ResourceTracker) Release(moduleID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.globalUsed--
	r.perModule[moduleID]--
	if r.perModule[moduleID] <= 0 {
		delete(r.perModule, moduleID)
	}
}

// worker tracks one live spawned thread for health monitoring.
type worker struct {
	id        uint64
	moduleID  uint64
	startedAt time.Time
	cancel    context.CancelFunc
	lastBeat  time.Time
	mu        sync.Mutex
}

func (w *worker) heartbeat() {
	w.mu.Lock()
	w.lastBeat = time.Now()
	w.mu.Unlock()
}

func (w *worker) health(cfg PoolConfig, now time.Time) HealthState {
	w.mu.Lock()
	defer w.mu.Unlock()
	if cfg.LifetimeCap > 0 && now.Sub(w.startedAt) > cfg.LifetimeCap {
		return LifetimeExceeded
	}
	if now.Sub(w.lastBeat) > 5*time.Second {
		return Unresponsive
	}
	return Healthy
}

// Pool is a bounded thread pool: Spawn requests are admitted only up to
// cfg.MaxThreads concurrently (guarded by a semaphore the same way moby
// bounds concurrent daemon operations), and every running worker is
// periodically polled for health.
type Pool struct {
	cfg     PoolConfig
	sem     *semaphore.Weighted
	tracker *ResourceTracker

	mu      sync.Mutex
	workers map[uint64]*worker
	nextID  uint64

	occupancy prometheus.Gauge
	unhealthy *prometheus.CounterVec
}

// NewPool constructs a Pool bounded by cfg and tracker.
func NewPool(cfg PoolConfig, tracker *ResourceTracker) *Pool {
	return &Pool{
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.MaxThreads)),
		tracker: tracker,
		workers: map[uint64]*worker{},
		occupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wrtcore_threads_occupancy",
			Help: "Number of worker threads currently running.",
		}),
		unhealthy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wrtcore_threads_unhealthy_total",
			Help: "Count of worker threads torn down by health state.",
		}, []string{"state"}),
	}
}

// Describe and Collect let a Pool register directly as a prometheus
// Collector, mirroring moby's own metrics registration pattern.
func (p *Pool) Describe(ch chan<- *prometheus.Desc) {
	p.occupancy.Describe(ch)
	p.unhealthy.Describe(ch)
}

func (p *Pool) Collect(ch chan<- prometheus.Metric) {
	p.occupancy.Collect(ch)
	p.unhealthy.Collect(ch)
}

// Spawn admits req if the pool has capacity and the tracker's caps allow
// it, running req.Run on a new goroutine standing in for a dedicated
// worker thread. It returns a worker id used for health polling and
// cancellation.
func (p *Pool) Spawn(ctx context.Context, req SpawnRequest) (uint64, error) {
	if req.Priority < p.cfg.MinPriority || req.Priority > p.cfg.MaxPriority {
		return 0, errPriorityOutOfRange
	}
	if err := p.tracker.Acquire(req.ModuleID); err != nil {
		return 0, err
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.tracker.Release(req.ModuleID)
		return 0, wrterr.Wrap(wrterr.KindResource, 803, "pool admission cancelled", err)
	}

	wctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	w := &worker{id: id, moduleID: req.ModuleID, startedAt: time.Now(), lastBeat: time.Now(), cancel: cancel}
	p.workers[id] = w
	p.mu.Unlock()
	p.occupancy.Inc()

	go func() {
		defer func() {
			p.sem.Release(1)
			p.tracker.Release(req.ModuleID)
			p.occupancy.Dec()
			p.mu.Lock()
			delete(p.workers, id)
			p.mu.Unlock()
		}()
		w.heartbeat()
		if _, err := req.Run(wctx, req.Args); err != nil {
			log.WithField("worker_id", id).WithError(err).Debug("worker exited with error")
		}
	}()

	return id, nil
}

// Health reports the current HealthState of every live worker.
func (p *Pool) Health() map[uint64]HealthState {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	out := make(map[uint64]HealthState, len(p.workers))
	for id, w := range p.workers {
		out[id] = w.health(p.cfg, now)
	}
	return out
}

// ReapUnhealthy force-terminates every worker whose health is not Healthy,
// freeing its resources through the tracker via its own deferred cleanup.
func (p *Pool) ReapUnhealthy() []uint64 {
	p.mu.Lock()
	now := time.Now()
	var reaped []uint64
	for id, w := range p.workers {
		st := w.health(p.cfg, now)
		if st != Healthy {
			w.cancel()
			reaped = append(reaped, id)
			p.unhealthy.WithLabelValues(st.String()).Inc()
		}
	}
	p.mu.Unlock()
	return reaped
}

// Heartbeat records liveness for worker id, called by the running task
// itself (e.g. at every fuel-metered instruction batch) to distinguish a
// slow-but-alive worker from an Unresponsive one.
func (p *Pool) Heartbeat(id uint64) {
	p.mu.Lock()
	w, ok := p.workers[id]
	p.mu.Unlock()
	if ok {
		w.heartbeat()
	}
}
