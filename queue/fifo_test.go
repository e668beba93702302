package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPacket uint32

func (p testPacket) Len() uint32 { return uint32(p) }

func TestFIFO_OrderPreserved(t *testing.T) {
	t.Parallel()

	f := NewFIFO(0)
	for i := uint32(1); i <= 40; i++ {
		res := f.Enqueue(testPacket(i))
		require.True(t, res.OK)
	}
	require.EqualValues(t, 40, f.Length())

	for i := uint32(1); i <= 40; i++ {
		require.EqualValues(t, i, f.PeekLength())
		pkt := f.DequeuePeeked()
		require.Equal(t, testPacket(i), pkt)
	}
	require.EqualValues(t, 0, f.Length())
	assert.Nil(t, f.DequeuePeeked())
}

func TestFIFO_DropsWhenFull(t *testing.T) {
	t.Parallel()

	f := NewFIFO(2)
	require.True(t, f.Enqueue(testPacket(10)).OK)
	require.True(t, f.Enqueue(testPacket(20)).OK)

	res := f.Enqueue(testPacket(30))
	require.False(t, res.OK)
	require.True(t, res.Dropped)
	require.Equal(t, EnqueueDroppedFull, res.Kind)
	require.EqualValues(t, 1, f.Dropped())
}

func TestFIFO_DropOne(t *testing.T) {
	t.Parallel()

	f := NewFIFO(0)
	require.True(t, f.Enqueue(testPacket(5)).OK)
	require.True(t, f.Enqueue(testPacket(7)).OK)

	require.EqualValues(t, 5, f.DropOne())
	require.EqualValues(t, 1, f.Length())
	require.EqualValues(t, 7, f.PeekLength())
}

func TestFIFO_Reset(t *testing.T) {
	t.Parallel()

	f := NewFIFO(0)
	for i := uint32(1); i <= 5; i++ {
		f.Enqueue(testPacket(i))
	}
	f.Reset()
	require.EqualValues(t, 0, f.Length())
	require.EqualValues(t, 0, f.PeekLength())
}

func TestRingBuffer_WrapAndGrow(t *testing.T) {
	t.Parallel()

	r := newRingBuffer[int](2)
	r.PushBack(1)
	r.PushBack(2)
	v, ok := r.PopFront()
	require.True(t, ok)
	require.Equal(t, 1, v)
	r.PushBack(3) // wraps within cap 2
	r.PushBack(4) // forces growth
	require.Equal(t, 3, r.Len())

	for _, want := range []int{2, 3, 4} {
		v, ok := r.PopFront()
		require.True(t, ok)
		require.Equal(t, want, v)
	}
	_, ok = r.PopFront()
	require.False(t, ok)
}
