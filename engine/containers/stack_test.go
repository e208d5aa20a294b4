package containers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStackLIFO(t *testing.T) {
	s := NewStack[int](0)
	require.True(t, s.IsEmpty())
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Push(i))
	}
	top, err := s.Peek()
	require.NoError(t, err)
	require.Equal(t, 4, top)

	for i := 4; i >= 0; i-- {
		v, err := s.Pop()
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
	_, err = s.Pop()
	require.ErrorIs(t, err, ErrStackEmpty)
}

func TestStackCapacity(t *testing.T) {
	s := NewStack[string](2)
	require.NoError(t, s.Push("a"))
	require.NoError(t, s.Push("b"))
	require.True(t, s.IsFull())
	require.ErrorIs(t, s.Push("c"), ErrStackFull)
	require.Equal(t, 2, s.Len())
}

func TestStackDrain(t *testing.T) {
	s := NewStack[int](0)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Push(i))
	}
	var seen []int
	s.Drain(func(v int) { seen = append(seen, v) })
	require.Equal(t, []int{2, 1, 0}, seen)
	require.True(t, s.IsEmpty())
}
