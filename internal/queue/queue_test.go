package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRaisesCapacity(t *testing.T) {
	q := New[int](1, 0)
	assert.Equal(t, 1, q.Capacity())
	assert.True(t, q.IsEmpty())
	assert.Equal(t, 1, q.ID())
}

func TestFIFOOrder(t *testing.T) {
	q := New[int](1, 3)
	for i := 1; i <= 3; i++ {
		require.True(t, q.Enqueue(i))
	}
	assert.True(t, q.IsFull())

	front, ok := q.Front()
	require.True(t, ok)
	assert.Equal(t, 1, front)
	assert.Equal(t, 3, q.Size(), "Front must not remove")

	for i := 1; i <= 3; i++ {
		got, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, i, got)
	}
	assert.True(t, q.IsEmpty())
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	q := New[string](2, 2)
	require.True(t, q.Enqueue("a"))
	require.True(t, q.Enqueue("b"))

	assert.False(t, q.Enqueue("c"))
	assert.Equal(t, 2, q.Size())

	got, _ := q.Dequeue()
	assert.Equal(t, "a", got)
}

func TestDequeueEmpty(t *testing.T) {
	q := New[*int](1, 2)
	got, ok := q.Dequeue()
	assert.False(t, ok)
	assert.Nil(t, got)

	_, ok = q.Front()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Size())
}

func TestWrapAround(t *testing.T) {
	q := New[int](1, 3)
	next := 0
	want := 0
	// Cycle well past the capacity so front and back wrap several times.
	for round := 0; round < 10; round++ {
		for q.Enqueue(next) {
			next++
		}
		assert.LessOrEqual(t, q.Size(), q.Capacity())
		for i := 0; i < 2; i++ {
			got, ok := q.Dequeue()
			require.True(t, ok)
			assert.Equal(t, want, got)
			want++
		}
	}
}

func TestReset(t *testing.T) {
	q := New[int](1, 2)
	q.Enqueue(1)
	q.Enqueue(2)
	q.Dequeue()

	q.Reset()
	assert.True(t, q.IsEmpty())

	require.True(t, q.Enqueue(7))
	require.True(t, q.Enqueue(8))
	got, _ := q.Dequeue()
	assert.Equal(t, 7, got)
}
