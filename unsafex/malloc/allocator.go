package malloc

import (
	"fmt"
	"sync"
)

// Allocator is the exclusion-wrapper facade of spec.md §4.6: it serialises
// Engine calls behind a caller-pluggable sync.Locker, lazily materialises
// the metadata tree on first use, and optionally reports every engine
// error through a caller-installed hook before returning it.
//
// sync.Locker is the Go rendering of "run a closure with exclusive access
// to the engine" — any spin-lock, OS mutex, or single-threaded no-op lock
// that implements Lock/Unlock plugs in.
type Allocator struct {
	mu     sync.Locker
	engine *Engine

	// arena is the full backing region, including the metadata prefix
	// when the engine self-hosts its tree inside it. userArena is the
	// sub-slice visible to callers; its base address corresponds to
	// offset 0 as returned by Engine.
	arena     []byte
	userArena []byte

	errorHook func(error)
}

// Option configures an Allocator at construction time.
type Option func(*Allocator)

// WithLocker installs the mutual-exclusion primitive guarding the engine.
// Defaults to a plain *sync.Mutex when not supplied.
func WithLocker(mu sync.Locker) Option {
	return func(a *Allocator) { a.mu = mu }
}

// WithErrorHook installs a callback invoked with every engine error before
// it is returned to the caller. The hook must not call back into this
// Allocator — doing so deadlocks, since the hook runs inside the critical
// section.
func WithErrorHook(hook func(error)) Option {
	return func(a *Allocator) { a.errorHook = hook }
}

// NewAllocator wraps an already-constructed engine and its backing arena
// in the exclusion facade. arena must be the exact slice passed to
// NewFromRegion/NewFromStatic.
func NewAllocator(arena []byte, engine *Engine, opts ...Option) *Allocator {
	a := &Allocator{
		mu:        &sync.Mutex{},
		engine:    engine,
		arena:     arena,
		userArena: arena[engine.metaPrefixLen:],
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Allocator) reportAndWrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if a.errorHook != nil {
		a.errorHook(err)
	}
	return fmt.Errorf("malloc: %s: %w", op, err)
}

// Allocate reserves a buddy of at least size bytes aligned to align and
// returns the slice backing it. The returned bytes are not zeroed; they
// carry whatever was previously in that arena range.
func (a *Allocator) Allocate(size, align uint) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.engine.ensureInit(); err != nil {
		return nil, a.reportAndWrap("allocate", err)
	}
	offset, buddySize, err := a.engine.Alloc(size, align)
	if err != nil {
		return nil, a.reportAndWrap("allocate", err)
	}
	return a.userArena[offset : offset+buddySize], nil
}

// Deallocate releases a block previously returned by Allocate. align must
// match the align used to obtain it; size is taken from len(block).
func (a *Allocator) Deallocate(block []byte, align uint) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.engine.ensureInit(); err != nil {
		return a.reportAndWrap("deallocate", err)
	}
	off, err := a.offsetOf(block)
	if err != nil {
		return a.reportAndWrap("deallocate", err)
	}
	if err := a.engine.Dealloc(off, uint(len(block)), align); err != nil {
		return a.reportAndWrap("deallocate", err)
	}
	return nil
}

// offsetOf recovers the user-visible arena offset of block by pointer
// arithmetic against the base of userArena.
func (a *Allocator) offsetOf(block []byte) (uint, error) {
	if len(block) == 0 {
		return 0, fmt.Errorf("offsetOf: empty block")
	}
	base := sliceDataAddr(a.userArena)
	ptr := sliceDataAddr(block)
	if ptr < base {
		return 0, fmt.Errorf("offsetOf: pointer precedes arena base")
	}
	return ptr - base, nil
}

// Available returns the total number of free bytes currently reachable
// from the root of the metadata tree.
func (a *Allocator) Available() uint {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.engine.ensureInit(); err != nil {
		return 0
	}
	return a.engine.Available()
}

// DebugString hex-dumps the metadata tree under lock.
func (a *Allocator) DebugString() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.engine.DebugString()
}

// Reserve is a reserved operation (spec.md §4.6, §9): its intended effect
// on the tree was never defined upstream. It always returns ErrUnsupported.
func (a *Allocator) Reserve(index, size uint) error {
	return a.reportAndWrap("reserve", ErrUnsupported)
}

// Unreserve is a reserved operation; see Reserve.
func (a *Allocator) Unreserve(index uint) error {
	return a.reportAndWrap("unreserve", ErrUnsupported)
}

// Shrink is a reserved operation; see Reserve.
func (a *Allocator) Shrink(block []byte, newSize, align uint) ([]byte, error) {
	return nil, a.reportAndWrap("shrink", ErrUnsupported)
}

// Grow is a reserved operation; see Reserve.
func (a *Allocator) Grow(block []byte, newSize, align uint) ([]byte, error) {
	return nil, a.reportAndWrap("grow", ErrUnsupported)
}
