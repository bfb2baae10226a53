package malloc

import "errors"

// Sentinel errors returned by the buddy engine and its wrappers.
// Compare with errors.Is; messages are wrapped with context via fmt.Errorf.
var (
	// ErrTooBigSize means the requested size cannot be represented as a
	// buddy size on this arena (it overflows MIN_BUDDY_NB's headroom).
	ErrTooBigSize = errors.New("malloc: requested size is too big to represent as a buddy")

	// ErrTooBigAlignment means the requested alignment exceeds MaxSupportedAlign.
	ErrTooBigAlignment = errors.New("malloc: requested alignment exceeds the maximum supported alignment")

	// ErrCannotFit means the requested buddy size is larger than the arena's
	// largest possible buddy (order would be negative).
	ErrCannotFit = errors.New("malloc: requested size cannot fit in this arena")

	// ErrNoMoreSpace means the arena has no free buddy of the required order
	// right now. Transient: a later Deallocate may cure it.
	ErrNoMoreSpace = errors.New("malloc: no free block of the requested size is currently available")

	// ErrDoubleFreeOrCorruption means the metadata node implied by the
	// pointer being freed was not marked occupied.
	ErrDoubleFreeOrCorruption = errors.New("malloc: double free or metadata corruption")

	// ErrUnsupported is returned by the reserved operations (Reserve,
	// Unreserve, Shrink, Grow). Their semantics were never defined upstream;
	// callers must not rely on them doing anything.
	ErrUnsupported = errors.New("malloc: operation is reserved and not implemented")
)
