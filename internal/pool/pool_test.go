package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otuscore.dev/sip/internal/core"
)

func TestAllocateAndRelease(t *testing.T) {
	p := NewSharedBufferPool(2, 16)
	assert.Equal(t, 2, p.FreeCount())

	b1, err := p.Allocate()
	require.NoError(t, err)
	assert.Equal(t, 1, p.FreeCount())
	assert.Equal(t, 16, b1.GetLength())

	b1.Release()
	assert.Equal(t, 2, p.FreeCount())
}

func TestPoolExhausted(t *testing.T) {
	p := NewSharedBufferPool(1, 8)
	_, err := p.Allocate()
	require.NoError(t, err)

	_, err = p.Allocate()
	assert.ErrorIs(t, err, core.ErrPoolExhausted)
}

func TestRetainKeepsSlotAliveUntilAllReleased(t *testing.T) {
	p := NewSharedBufferPool(1, 8)
	b1, err := p.Allocate()
	require.NoError(t, err)

	b2 := b1.Retain()
	b1.Release()
	assert.Equal(t, 0, p.FreeCount(), "slot must stay allocated while b2 is live")

	b2.Release()
	assert.Equal(t, 1, p.FreeCount())
}

func TestSubSliceSharesLifetimeButWindowsView(t *testing.T) {
	p := NewSharedBufferPool(1, 16)
	root, err := p.Allocate()
	require.NoError(t, err)
	copy(root.Bytes(), []byte("0123456789abcdef"))

	sub := root.SubSlice(4, 4)
	require.NotNil(t, sub)
	assert.Equal(t, "4567", string(sub.Bytes()))

	root.Release()
	assert.Equal(t, 0, p.FreeCount(), "sub-slice keeps the slot alive")

	sub.Release()
	assert.Equal(t, 1, p.FreeCount())
}

func TestConstViewCannotBeMutatedThroughItsAPI(t *testing.T) {
	p := NewSharedBufferPool(1, 4)
	root, err := p.Allocate()
	require.NoError(t, err)
	copy(root.Bytes(), []byte("abcd"))

	view := root.ConstView()
	assert.Equal(t, "abcd", string(view.Bytes()))

	root.Release()
	view.Release()
	assert.Equal(t, 1, p.FreeCount())
}

// TestReferenceCountingInvariant exercises invariant 5 of spec.md §8:
// after any sequence of copies, sub-slicings, and drops, the pool's free
// count equals initial minus the number of root allocations still
// reachable.
func TestReferenceCountingInvariant(t *testing.T) {
	p := NewSharedBufferPool(4, 32)

	a, err := p.Allocate()
	require.NoError(t, err)
	b, err := p.Allocate()
	require.NoError(t, err)

	aCopy := a.Retain()
	aSub := a.SubSlice(0, 8)
	bView := b.ConstView()

	assert.Equal(t, 2, p.FreeCount()) // a and b roots taken, 2 of 4 free

	aCopy.Release()
	aSub.Release()
	assert.Equal(t, 2, p.FreeCount(), "a's slot still referenced by a itself")

	a.Release()
	assert.Equal(t, 3, p.FreeCount())

	bView.Release()
	assert.Equal(t, 3, p.FreeCount(), "b's slot still referenced by b itself")

	b.Release()
	assert.Equal(t, 4, p.FreeCount())
}
