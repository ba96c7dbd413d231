package ring

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otuscore.dev/sip/internal/core"
)

func TestAppendPopBasic(t *testing.T) {
	r := New(NewArrayAllocator(8))
	require.NoError(t, r.Append([]byte{1, 2, 3}))
	assert.Equal(t, 3, r.GetAvailableElements())
	assert.Equal(t, 5, r.GetFreeElements())

	out, err := r.Pop(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, out)
	assert.True(t, r.IsEmpty())
}

func TestAppendOutOfMemory(t *testing.T) {
	r := New(NewArrayAllocator(4))
	err := r.Append([]byte{1, 2, 3, 4, 5})
	assert.ErrorIs(t, err, core.ErrOutOfMemory)
	assert.Equal(t, 0, r.GetAvailableElements())
}

func TestWrapAroundAppendAndPop(t *testing.T) {
	r := New(NewArrayAllocator(4))
	require.NoError(t, r.Append([]byte{1, 2, 3}))
	_, err := r.Pop(2)
	require.NoError(t, err)
	// write index is now 3, read index is 2; appending 3 bytes wraps.
	require.NoError(t, r.Append([]byte{4, 5, 6}))

	out, err := r.Pop(4)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4, 5, 6}, out)
}

func TestPeekDoesNotConsume(t *testing.T) {
	r := New(NewArrayAllocator(8))
	require.NoError(t, r.Append([]byte{1, 2, 3, 4}))

	view, err := r.Peek(2, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3}, view)
	assert.Equal(t, 4, r.GetAvailableElements())
}

func TestPeekUnsatisfiableReturnsEmpty(t *testing.T) {
	r := New(NewArrayAllocator(8))
	require.NoError(t, r.Append([]byte{1, 2}))

	view, err := r.Peek(5, 0)
	require.NoError(t, err)
	assert.Empty(t, view)
}

func TestResetAfterTruncates(t *testing.T) {
	r := New(NewArrayAllocator(8))
	require.NoError(t, r.Append([]byte{1, 2, 3, 4}))
	r.ResetAfter(2)
	assert.Equal(t, 2, r.GetAvailableElements())

	out, err := r.Pop(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, out)
}

func TestAppendPaddingElementsReservesSpace(t *testing.T) {
	r := New(NewArrayAllocator(8))
	require.NoError(t, r.AppendPaddingElements(3))
	assert.Equal(t, 3, r.GetAvailableElements())
	assert.Equal(t, 5, r.GetFreeElements())
}

// TestConservationInvariant exercises invariant 1 of spec.md §8: for any
// interleaving of valid append/pop with total appended <= capacity-used,
// the concatenation of popped bytes equals the concatenation of appended
// bytes in order.
func TestConservationInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	r := New(NewArrayAllocator(16))

	var appended, popped []byte
	nextByte := byte(0)

	for i := 0; i < 2000; i++ {
		if rng.Intn(2) == 0 {
			n := rng.Intn(5)
			if n > r.GetFreeElements() {
				n = r.GetFreeElements()
			}
			data := make([]byte, n)
			for j := range data {
				data[j] = nextByte
				nextByte++
			}
			require.NoError(t, r.Append(data))
			appended = append(appended, data...)
		} else {
			n := rng.Intn(5)
			out, err := r.Pop(n)
			require.NoError(t, err)
			popped = append(popped, out...)
		}
	}
	remaining, err := r.Pop(r.GetAvailableElements())
	require.NoError(t, err)
	popped = append(popped, remaining...)

	assert.Equal(t, appended, popped)
}
