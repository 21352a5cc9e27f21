// Package memory implements linear memories and tables (C4): page-granular
// byte buffers with bounds-checked access and atomic primitives, plus
// typed tables with bulk operations.
//
// Grounded on internal/wasm's MemoryInstance contract as observed in
// memory_test.go (Grow monotonicity, ReadByte/ReadUint32Le bounds
// checking) and table_test.go (Min/Max, resolveImports compatibility
// rules). The non-test memory.go/table.go were not present in the
// retrieval pack; this package reconstructs their observable behavior from
// those tests rather than inventing new semantics.
package memory

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pulseengine/wrtcore/internal/wrterr"
)

// PageSize is the unit of linear memory growth, per spec section 3.
const PageSize = 65536

// MemoryMaxPages is the implicit ceiling when no explicit maximum is
// declared, matching the teacher's own MemoryMaxPages test constant
// (MemoryPageSize used doubly, as both the byte-per-page constant and the
// page-count ceiling, per internal/wasm/memory_test.go).
const MemoryMaxPages = PageSize

// Instance is a page-addressed linear memory. Grow is monotonic; size stays
// within [Min, Max]. Every Instance's mutex, shared or not, serializes grow
// against every accessor (spec section 5: "readers observe either old or
// new capacity, never a torn view").
type Instance struct {
	mu     sync.RWMutex
	buf    []byte
	min    uint32
	max    *uint32
	shared bool

	waitQueue *waitQueue
}

// NewInstance allocates a memory of min pages, growable to max (or
// MemoryMaxPages if max is nil).
func NewInstance(min uint32, max *uint32, shared bool) (*Instance, error) {
	if shared && max == nil {
		return nil, wrterr.New(wrterr.KindValidation, 200, "shared memory must declare a maximum")
	}
	return &Instance{
		buf:       make([]byte, uint64(min)*PageSize),
		min:       min,
		max:       max,
		shared:    shared,
		waitQueue: newWaitQueue(1024),
	}, nil
}

// PageSize reports the current size in pages.
func (m *Instance) PageSize() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint32(len(m.buf) / PageSize)
}

func (m *Instance) maxPages() uint32 {
	if m.max != nil {
		return *m.max
	}
	return MemoryMaxPages
}

// Grow attempts to add delta pages, returning the previous page count, or
// 0xffffffff (-1 as uint32) if the grow would exceed the maximum. Grow is
// serialized against all accessors of this memory.
func (m *Instance) Grow(delta uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := uint32(len(m.buf) / PageSize)
	if uint64(cur)+uint64(delta) > uint64(m.maxPages()) {
		return 0xffffffff
	}
	m.buf = append(m.buf, make([]byte, uint64(delta)*PageSize)...)
	return cur
}

// ReadByte reads one byte at addr, bounds-checked.
func (m *Instance) ReadByte(addr uint32) (byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if int(addr) >= len(m.buf) {
		return 0, false
	}
	return m.buf[addr], true
}

// WriteByte writes one byte at addr, bounds-checked.
func (m *Instance) WriteByte(addr uint32, v byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(addr) >= len(m.buf) {
		return false
	}
	m.buf[addr] = v
	return true
}

// ReadUint32Le reads a little-endian uint32 at addr, bounds-checked against
// the full 4-byte width (a read starting 3 bytes from the end fails, not
// just one starting past the end).
func (m *Instance) ReadUint32Le(addr uint32) (uint32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if uint64(addr)+4 > uint64(len(m.buf)) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.buf[addr:]), true
}

// WriteUint32Le writes a little-endian uint32 at addr, bounds-checked.
func (m *Instance) WriteUint32Le(addr uint32, v uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uint64(addr)+4 > uint64(len(m.buf)) {
		return false
	}
	binary.LittleEndian.PutUint32(m.buf[addr:], v)
	return true
}

// ReadUint64Le reads a little-endian uint64 at addr, bounds-checked.
func (m *Instance) ReadUint64Le(addr uint32) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if uint64(addr)+8 > uint64(len(m.buf)) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(m.buf[addr:]), true
}

// WriteUint64Le writes a little-endian uint64 at addr, bounds-checked.
func (m *Instance) WriteUint64Le(addr uint32, v uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uint64(addr)+8 > uint64(len(m.buf)) {
		return false
	}
	binary.LittleEndian.PutUint64(m.buf[addr:], v)
	return true
}

// Bytes exposes the raw buffer for bulk operations (e.g. the canonical ABI
// engine's lift/lower). Callers must respect the same bounds rules as the
// typed accessors above.
func (m *Instance) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buf
}

// AtomicWidth is the bit width of an atomic access.
type AtomicWidth uint8

const (
	Width8 AtomicWidth = 8
	Width16 AtomicWidth = 16
	Width32 AtomicWidth = 32
	Width64 AtomicWidth = 64
)

var errUnaligned = wrterr.New(wrterr.KindTrap, 201, "unaligned atomic access")
var errOOB = wrterr.New(wrterr.KindTrap, 202, "out of bounds memory access")

func checkAlign(addr uint32, width AtomicWidth) error {
	align := uint32(width) / 8
	if addr%align != 0 {
		return errUnaligned
	}
	return nil
}

// AtomicLoad32 performs a sequentially-consistent 32-bit atomic load.
func (m *Instance) AtomicLoad32(addr uint32) (uint32, error) {
	if err := checkAlign(addr, Width32); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if uint64(addr)+4 > uint64(len(m.buf)) {
		return 0, errOOB
	}
	p := (*uint32)(ptr32(m.buf, addr))
	return atomic.LoadUint32(p), nil
}

// AtomicStore32 performs a sequentially-consistent 32-bit atomic store.
func (m *Instance) AtomicStore32(addr uint32, v uint32) error {
	if err := checkAlign(addr, Width32); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if uint64(addr)+4 > uint64(len(m.buf)) {
		return errOOB
	}
	p := (*uint32)(ptr32(m.buf, addr))
	atomic.StoreUint32(p, v)
	return nil
}

// AtomicRMWAdd32 performs a fetch-and-add, returning the prior value.
func (m *Instance) AtomicRMWAdd32(addr uint32, v uint32) (uint32, error) {
	if err := checkAlign(addr, Width32); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if uint64(addr)+4 > uint64(len(m.buf)) {
		return 0, errOOB
	}
	p := (*uint32)(ptr32(m.buf, addr))
	return atomic.AddUint32(p, v) - v, nil
}

// AtomicCmpxchg32 performs a compare-and-swap, returning the value observed
// before the (possibly no-op) swap.
func (m *Instance) AtomicCmpxchg32(addr uint32, expected, replacement uint32) (uint32, error) {
	if err := checkAlign(addr, Width32); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if uint64(addr)+4 > uint64(len(m.buf)) {
		return 0, errOOB
	}
	p := (*uint32)(ptr32(m.buf, addr))
	for {
		cur := atomic.LoadUint32(p)
		if cur != expected {
			return cur, nil
		}
		if atomic.CompareAndSwapUint32(p, cur, replacement) {
			return cur, nil
		}
	}
}

// waitResult mirrors the three-way result of memory.atomic.wait*.
type waitResult uint8

const (
	WaitWoken waitResult = iota
	WaitNotEqual
	WaitTimeout
)

var errTooManyWaiters = wrterr.New(wrterr.KindResource, 203, "TooManyWaiters")

// Wait32 implements memory.atomic.wait32: it atomically checks that the
// current value at addr equals expected and, if so, parks the caller on the
// wait queue for that offset until notified or timeoutNs elapses (0 means
// no timeout).
func (m *Instance) Wait32(addr uint32, expected uint32, timeoutNs int64) (waitResult, error) {
	if !m.shared {
		return 0, wrterr.New(wrterr.KindTrap, 204, "wait on non-shared memory")
	}
	// The queue lock is held from the load until the waiter is registered,
	// so a notify cannot fall between the check and the enqueue.
	q := m.waitQueue
	q.mu.Lock()
	cur, err := m.AtomicLoad32(addr)
	if err != nil || cur != expected || q.size >= q.capacity {
		q.mu.Unlock()
		if err != nil {
			return 0, err
		}
		if cur != expected {
			return WaitNotEqual, nil
		}
		return 0, errTooManyWaiters
	}
	ch := make(chan struct{})
	q.waiters[addr] = append(q.waiters[addr], ch)
	q.size++
	q.mu.Unlock()
	if timeoutNs <= 0 {
		<-ch
		return WaitWoken, nil
	}
	select {
	case <-ch:
		return WaitWoken, nil
	case <-time.After(time.Duration(timeoutNs)):
		m.waitQueue.remove(addr, ch)
		return WaitTimeout, nil
	}
}

// Notify implements memory.atomic.notify: it wakes up to count waiters
// parked at addr, returning the number actually woken. Per spec section
// 4.4, unshared memories may only be notified with count == 0; any other
// call traps.
func (m *Instance) Notify(addr uint32, count uint32) (uint32, error) {
	if !m.shared {
		if count != 0 {
			return 0, wrterr.New(wrterr.KindTrap, 205, "notify on non-shared memory")
		}
		return 0, nil
	}
	return m.waitQueue.notify(addr, count), nil
}

// Table stores funcref or externref elements with independent size/grow
// semantics from linear memory.
type Table struct {
	mu       sync.Mutex
	elements []uint64 // 0 means null; a funcref/externref handle otherwise
	min      uint32
	max      *uint32
	elemType byte
}

// NewTable allocates a table of min elements, growable to max.
func NewTable(elemType byte, min uint32, max *uint32) *Table {
	return &Table{elements: make([]uint64, min), min: min, max: max, elemType: elemType}
}

// Size reports the current element count.
func (t *Table) Size() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return uint32(len(t.elements))
}

// Grow adds delta elements, filled with init, returning the previous size
// or 0xffffffff on failure.
func (t *Table) Grow(delta uint32, init uint64) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := uint32(len(t.elements))
	if t.max != nil && uint64(cur)+uint64(delta) > uint64(*t.max) {
		return 0xffffffff
	}
	for i := uint32(0); i < delta; i++ {
		t.elements = append(t.elements, init)
	}
	return cur
}

// Get returns the element at i, bounds-checked.
func (t *Table) Get(i uint32) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(i) >= len(t.elements) {
		return 0, false
	}
	return t.elements[i], true
}

// Set overwrites the element at i, bounds-checked.
func (t *Table) Set(i uint32, v uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(i) >= len(t.elements) {
		return false
	}
	t.elements[i] = v
	return true
}

// Init implements table.init: copies n elements from src (an element
// segment's already-resolved funcref handles) starting at srcOffset into
// this table starting at dstOffset.
func (t *Table) Init(dstOffset uint32, src []uint64, srcOffset, n uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if uint64(srcOffset)+uint64(n) > uint64(len(src)) || uint64(dstOffset)+uint64(n) > uint64(len(t.elements)) {
		return errOOB
	}
	copy(t.elements[dstOffset:dstOffset+n], src[srcOffset:srcOffset+n])
	return nil
}

// Copy implements table.copy, correctly handling overlapping ranges within
// the same table.
func (t *Table) Copy(dstOffset, srcOffset, n uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if uint64(srcOffset)+uint64(n) > uint64(len(t.elements)) || uint64(dstOffset)+uint64(n) > uint64(len(t.elements)) {
		return errOOB
	}
	copy(t.elements[dstOffset:dstOffset+n], t.elements[srcOffset:srcOffset+n])
	return nil
}

// Fill implements table.fill.
func (t *Table) Fill(offset uint32, v uint64, n uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if uint64(offset)+uint64(n) > uint64(len(t.elements)) {
		return errOOB
	}
	for i := uint32(0); i < n; i++ {
		t.elements[offset+i] = v
	}
	return nil
}

// provider adapts *Instance to capability.Provider for bound-collection
// integration (internal/capability wraps this in a CapabilityAwareProvider
// before handing it to a consumer).
type provider struct{ inst *Instance }

func (p *provider) Bytes() []byte { return p.inst.Bytes() }
func (p *provider) Grow(delta int) error {
	if p.inst.Grow(uint32(delta)) == 0xffffffff {
		return wrterr.New(wrterr.KindResource, 206, "memory grow failed")
	}
	return nil
}

// AsProvider exposes m as a capability.Provider (unwrapped; the caller
// pairs it with a Capability through capability.Wrap if gating is needed).
func (m *Instance) AsProvider() interface{ Bytes() []byte; Grow(int) error } {
	return &provider{inst: m}
}
