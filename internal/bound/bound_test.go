package bound

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVec_CapacityExceeded(t *testing.T) {
	v := NewVec[uint32](3)
	require.NoError(t, v.Push(1))
	require.NoError(t, v.Push(2))
	require.NoError(t, v.Push(3))
	require.Equal(t, 3, v.Len())

	err := v.Push(4)
	require.ErrorIs(t, err, ErrCapacityExceeded)
	require.Equal(t, 3, v.Len())
}

func TestVec_GetSetIterate(t *testing.T) {
	v := NewVec[string](2)
	require.NoError(t, v.Push("a"))
	require.NoError(t, v.Push("b"))

	val, ok := v.Get(1)
	require.True(t, ok)
	require.Equal(t, "b", val)

	_, ok = v.Get(5)
	require.False(t, ok)

	var seen []string
	v.Iterate(func(_ int, s string) bool {
		seen = append(seen, s)
		return true
	})
	require.Equal(t, []string{"a", "b"}, seen)
}

func TestMap_CapacityExceeded(t *testing.T) {
	m := NewMap[string, int](2)
	require.NoError(t, m.Put("a", 1))
	require.NoError(t, m.Put("b", 2))
	require.ErrorIs(t, m.Put("c", 3), ErrCapacityExceeded)

	// Overwriting an existing key at full capacity must still succeed.
	require.NoError(t, m.Put("a", 99))
	val, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, 99, val)
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue[int](2)
	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Enqueue(2))
	require.ErrorIs(t, q.Enqueue(3), ErrCapacityExceeded)

	v, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.NoError(t, q.Enqueue(3))
}

func TestString_InvalidUTF8AndCapacity(t *testing.T) {
	s := NewString(4)
	require.NoError(t, s.Append("ab"))
	require.Error(t, s.Append("invalid\xff"))
	require.Equal(t, "ab", s.String())

	require.NoError(t, s.Append("cd"))
	require.ErrorIs(t, s.Append("e"), ErrCapacityExceeded)
}
