package wrtcore

import "github.com/pulseengine/wrtcore/internal/capability"

// CrateStats reports one capability crate's budget accounting (spec section
// 8 property 3: "the sum of live allocations attributed to c never exceeds
// c's compile-time budget").
type CrateStats struct {
	Crate     string
	Remaining uint64
}

// Stats is the snapshot Runtime.Stats returns: capability budget headroom
// per crate plus thread pool health, the "stats" operation external
// collaborators (spec section 6) consume for reporting without reaching
// inside the runtime.
type Stats struct {
	Crates  []CrateStats
	Threads map[uint64]string
}

var allCrates = []capability.Crate{
	capability.CrateFoundation,
	capability.CrateRuntime,
	capability.CrateComponent,
	capability.CrateDecoder,
	capability.CrateAsync,
	capability.CrateThreads,
}

// Stats returns a point-in-time snapshot of capability and thread-pool
// state.
func (r *Runtime) Stats() Stats {
	crates := make([]CrateStats, 0, len(allCrates))
	for _, c := range allCrates {
		crates = append(crates, CrateStats{Crate: c.String(), Remaining: r.capCtx.Remaining(c)})
	}
	health := make(map[uint64]string)
	for id, h := range r.pool.Health() {
		health[id] = h.String()
	}
	return Stats{Crates: crates, Threads: health}
}
