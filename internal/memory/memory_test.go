package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInstance_Grow_Size(t *testing.T) {
	t.Run("with max", func(t *testing.T) {
		max := uint32(10)
		m, err := NewInstance(0, &max, false)
		require.NoError(t, err)
		require.Equal(t, uint32(0), m.Grow(5))
		require.Equal(t, uint32(5), m.PageSize())
		require.Equal(t, uint32(5), m.Grow(0))
		require.Equal(t, uint32(5), m.PageSize())
		require.Equal(t, uint32(5), m.Grow(4))
		require.Equal(t, uint32(9), m.PageSize())
		require.Equal(t, uint32(0xffffffff), m.Grow(2))
		require.Equal(t, uint32(9), m.PageSize())
		require.Equal(t, uint32(9), m.Grow(1))
		require.Equal(t, max, m.PageSize())
	})
	t.Run("without max", func(t *testing.T) {
		m, err := NewInstance(0, nil, false)
		require.NoError(t, err)
		require.Equal(t, uint32(0), m.Grow(1))
		require.Equal(t, uint32(1), m.PageSize())
		require.Equal(t, uint32(0xffffffff), m.Grow(MemoryMaxPages))
		require.Equal(t, uint32(1), m.PageSize())
	})
}

func TestSharedMemory_RequiresMax(t *testing.T) {
	_, err := NewInstance(1, nil, true)
	require.Error(t, err)
}

func TestReadWriteByte_Bounds(t *testing.T) {
	m, err := NewInstance(1, nil, false)
	require.NoError(t, err)
	require.True(t, m.WriteByte(7, 16))
	v, ok := m.ReadByte(7)
	require.True(t, ok)
	require.Equal(t, byte(16), v)

	_, ok = m.ReadByte(uint32(PageSize))
	require.False(t, ok)
}

func TestAtomicRoundTrip(t *testing.T) {
	max := uint32(1)
	m, err := NewInstance(1, &max, true)
	require.NoError(t, err)
	require.NoError(t, m.AtomicStore32(0, 42))
	v, err := m.AtomicLoad32(0)
	require.NoError(t, err)
	require.Equal(t, uint32(42), v)
}

func TestAtomic_MisalignedTraps(t *testing.T) {
	m, err := NewInstance(1, nil, false)
	require.NoError(t, err)
	_, err = m.AtomicLoad32(1)
	require.ErrorIs(t, err, errUnaligned)
}

func TestWaitNotify_Liveness(t *testing.T) {
	max := uint32(1)
	m, err := NewInstance(1, &max, true)
	require.NoError(t, err)

	done := make(chan waitResult, 1)
	go func() {
		res, err := m.Wait32(0, 0, 0)
		require.NoError(t, err)
		done <- res
	}()

	// Give the waiter time to enqueue before notifying.
	time.Sleep(20 * time.Millisecond)
	woken, err := m.Notify(0, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(1), woken)

	select {
	case res := <-done:
		require.Equal(t, WaitWoken, res)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken in time")
	}
}

func TestWait_NotEqualReturnsImmediately(t *testing.T) {
	max := uint32(1)
	m, err := NewInstance(1, &max, true)
	require.NoError(t, err)
	res, err := m.Wait32(0, 99, 0)
	require.NoError(t, err)
	require.Equal(t, WaitNotEqual, res)
}

func TestTable_GrowInitCopyFill(t *testing.T) {
	tbl := NewTable(0x70, 2, nil)
	require.Equal(t, uint32(2), tbl.Size())
	require.Equal(t, uint32(2), tbl.Grow(3, 7))
	require.Equal(t, uint32(5), tbl.Size())

	v, ok := tbl.Get(2)
	require.True(t, ok)
	require.Equal(t, uint64(7), v)

	require.NoError(t, tbl.Init(0, []uint64{100, 200}, 0, 2))
	v, _ = tbl.Get(0)
	require.Equal(t, uint64(100), v)

	require.NoError(t, tbl.Copy(3, 0, 2))
	v, _ = tbl.Get(3)
	require.Equal(t, uint64(100), v)

	require.NoError(t, tbl.Fill(0, 9, 5))
	v, _ = tbl.Get(4)
	require.Equal(t, uint64(9), v)

	require.Error(t, tbl.Fill(0, 9, 100))
}
