package malloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAllocator(t *testing.T, cellSize, arenaLen uint) (*Allocator, []byte) {
	t.Helper()
	arena := newAlignedArena(t, arenaLen, MaxSupportedAlign)
	eng, err := NewFromRegion(arena, nil, cellSize)
	require.NoError(t, err)
	return NewAllocator(arena, eng), arena
}

func TestAllocatorAllocateDeallocate(t *testing.T) {
	alloc, _ := newTestAllocator(t, 64, 4096)

	a, err := alloc.Allocate(100, 64)
	require.NoError(t, err)
	assert.Len(t, a, 128)

	b, err := alloc.Allocate(64, 64)
	require.NoError(t, err)
	assert.Len(t, b, 64)

	require.NoError(t, alloc.Deallocate(a, 64))
	require.NoError(t, alloc.Deallocate(b, 64))
}

func TestAllocatorErrorHookInvoked(t *testing.T) {
	arena := newAlignedArena(t, 256, MaxSupportedAlign)
	eng, err := NewFromRegion(arena, nil, 64)
	require.NoError(t, err)

	var hookErr error
	alloc := NewAllocator(arena, eng, WithErrorHook(func(e error) { hookErr = e }))

	// Exhaust the arena, then force NoMoreSpace.
	for i := 0; i < 3; i++ {
		_, err := alloc.Allocate(64, 64)
		require.NoError(t, err)
	}
	_, err = alloc.Allocate(64, 64)
	require.Error(t, err)
	require.ErrorIs(t, hookErr, ErrNoMoreSpace)
}

func TestAllocatorReservedOpsUnsupported(t *testing.T) {
	alloc, _ := newTestAllocator(t, 64, 256)

	require.ErrorIs(t, alloc.Reserve(0, 64), ErrUnsupported)
	require.ErrorIs(t, alloc.Unreserve(0), ErrUnsupported)

	b, err := alloc.Allocate(64, 64)
	require.NoError(t, err)
	_, err = alloc.Shrink(b, 32, 64)
	require.ErrorIs(t, err, ErrUnsupported)
	_, err = alloc.Grow(b, 128, 64)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestAllocatorAvailable(t *testing.T) {
	// Use external metadata here so Available() isn't complicated by a
	// self-hosted reservation; that case has its own test below.
	arenaLen := uint(256)
	cellSize := uint(64)
	want, err := MetadataLen(arenaLen, cellSize)
	require.NoError(t, err)
	arena := newAlignedArena(t, arenaLen, MaxSupportedAlign)
	meta := make([]byte, want)
	eng, err := NewFromRegion(arena, meta, cellSize)
	require.NoError(t, err)
	alloc := NewAllocator(arena, eng)

	full := alloc.Available()
	assert.EqualValues(t, 256, full)

	b, err := alloc.Allocate(64, 64)
	require.NoError(t, err)
	assert.EqualValues(t, 256-64, alloc.Available())

	require.NoError(t, alloc.Deallocate(b, 64))
	assert.EqualValues(t, full, alloc.Available())
}

func TestAllocatorSelfHostedReservesMetadataOnce(t *testing.T) {
	arenaLen := uint(4096)
	cellSize := uint(64)
	arena := newAlignedArena(t, arenaLen, MaxSupportedAlign)
	eng, err := NewFromRegion(arena, nil, cellSize)
	require.NoError(t, err)
	alloc := NewAllocator(arena, eng)

	want, err := MetadataLen(arenaLen, cellSize)
	require.NoError(t, err)
	metaChunk := want
	if cellSize > metaChunk {
		metaChunk = cellSize
	}
	assert.EqualValues(t, arenaLen-metaChunk, alloc.Available())
}

func TestAllocatorExternalMetadataDoesNotReserveArenaSpace(t *testing.T) {
	arenaLen := uint(256)
	cellSize := uint(64)
	want, err := MetadataLen(arenaLen, cellSize)
	require.NoError(t, err)
	arena := newAlignedArena(t, arenaLen, MaxSupportedAlign)
	meta := make([]byte, want)
	eng, err := NewFromRegion(arena, meta, cellSize)
	require.NoError(t, err)
	alloc := NewAllocator(arena, eng)
	assert.EqualValues(t, arenaLen, alloc.Available())
}
