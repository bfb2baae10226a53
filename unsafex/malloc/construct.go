package malloc

import (
	"fmt"
	"unsafe"
)

// MetadataLen returns the exact byte length an external metadata buffer
// must have for the given arena length and cell size: 2 * (arenaLen /
// cellSize), i.e. 2 * 2^maxOrder (spec.md §3, §6).
func MetadataLen(arenaLen, cellSize uint) (uint, error) {
	maxOrder, err := maxOrderFor(cellSize, arenaLen)
	if err != nil {
		return 0, fmt.Errorf("MetadataLen: %w", err)
	}
	return metadataBytesNeeded(maxOrder), nil
}

// AlignRegion carves a length-byte sub-slice out of buf whose base address
// is aligned to align. Plain make([]byte, n) and most pool allocators make
// no alignment guarantee beyond what their size class happens to provide,
// so a caller sourcing an arena from one of them needs this to satisfy the
// base-alignment precondition NewFromRegion/NewFromStatic enforce. buf
// must be at least length+align-1 bytes long.
func AlignRegion(buf []byte, length, align uint) []byte {
	addr := sliceDataAddr(buf)
	pad := uint(0)
	if rem := addr % align; rem != 0 {
		pad = align - rem
	}
	if uint(len(buf)) < pad+length {
		panic(fmt.Sprintf("malloc: buffer of %d bytes too small to carve an aligned %d-byte region (align=%d)", len(buf), length, align))
	}
	return buf[pad : pad+length]
}

func checkBaseAlignment(region []byte, arenaLen uint) {
	if len(region) == 0 {
		return
	}
	want := arenaLen
	if want > MaxSupportedAlign {
		want = MaxSupportedAlign
	}
	addr := uintptr(unsafe.Pointer(&region[0]))
	if addr%uintptr(want) != 0 {
		panic(fmt.Sprintf("malloc: arena base address is not aligned to %d bytes", want))
	}
}

// NewFromRegion builds an engine in run-time mode: the caller supplies a
// mutable arena it owns for the engine's whole lifetime and, optionally,
// a separately-allocated metadata buffer. When externalMeta is nil the
// metadata tree self-hosts inside the front of the arena and the engine
// permanently reserves the bytes it occupies.
//
// Preconditions are checked with aborting assertions, matching spec.md §6:
// these are programmer errors, not runtime allocation failures.
func NewFromRegion(arena []byte, externalMeta []byte, cellSize uint) (*Engine, error) {
	arenaLen := uint(len(arena))
	validateConstruction(cellSize, arenaLen)
	checkBaseAlignment(arena, arenaLen)

	var eng *Engine
	var err error
	if externalMeta == nil {
		maxOrder, moErr := maxOrderFor(cellSize, arenaLen)
		if moErr != nil {
			return nil, fmt.Errorf("NewFromRegion: %w", moErr)
		}
		meta := arena[:metadataBytesNeeded(maxOrder)]
		eng, err = newEngine(meta, cellSize, arenaLen, true)
	} else {
		want, mlErr := MetadataLen(arenaLen, cellSize)
		if mlErr != nil {
			return nil, fmt.Errorf("NewFromRegion: %w", mlErr)
		}
		if uint(len(externalMeta)) != want {
			panic(fmt.Sprintf("malloc: external metadata buffer has %d bytes, need exactly %d", len(externalMeta), want))
		}
		eng, err = newEngine(externalMeta, cellSize, arenaLen, false)
	}
	if err != nil {
		return nil, fmt.Errorf("NewFromRegion: %w", err)
	}
	if err := eng.initEagerly(); err != nil {
		return nil, fmt.Errorf("NewFromRegion: %w", err)
	}
	return eng, nil
}

// PrepareStaticRegion stamps the "not yet materialised" sentinel into a
// caller-allocated metadata buffer intended for a compile-time reserved
// region, so that the first operation against it (via NewFromStatic)
// triggers lazy initialisation instead of reading garbage.
func PrepareStaticRegion(meta []byte, arenaLen, cellSize uint) error {
	want, err := MetadataLen(arenaLen, cellSize)
	if err != nil {
		return fmt.Errorf("PrepareStaticRegion: %w", err)
	}
	if uint(len(meta)) != want {
		panic(fmt.Sprintf("malloc: static metadata buffer has %d bytes, need exactly %d", len(meta), want))
	}
	meta[rootIndex] = uninitSentinel
	return nil
}

// NewFromStatic attaches an engine to a compile-time reserved (arena,
// metadata) pair. It never runs the initialiser itself: if meta still
// carries the uninitialised sentinel, the first Allocator operation
// (Allocate, Deallocate, Available) materialises it lazily; Engine.Alloc
// and Engine.Dealloc do not. If meta is already stamped (a previous process
// run, or a region shared across attach calls), it is used as-is.
func NewFromStatic(arena, meta []byte, cellSize uint) (*Engine, error) {
	arenaLen := uint(len(arena))
	validateConstruction(cellSize, arenaLen)
	checkBaseAlignment(arena, arenaLen)

	eng, err := newEngine(meta, cellSize, arenaLen, false)
	if err != nil {
		return nil, fmt.Errorf("NewFromStatic: %w", err)
	}
	return eng, nil
}
