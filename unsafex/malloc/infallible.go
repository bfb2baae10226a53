package malloc

import (
	"errors"
	"fmt"
)

// InfallibleAllocator adapts an Allocator for use as a process-wide
// allocator, per spec.md §4.6/§7: allocation failures that are ordinary
// conditions for the fallible facade (out of space, size/alignment
// rejected) become either a hard abort (hosted environment, Go's
// equivalent being a panic that a caller is not expected to recover from)
// or a nil slice (freestanding environment, mirroring a null pointer).
// Deallocation errors are always fatal regardless of environment: a
// double free or corrupted metadata tree is never a condition the caller
// can sensibly continue past.
type InfallibleAllocator struct {
	alloc  *Allocator
	hosted bool
}

// NewInfallibleAllocator wraps alloc. hosted selects the OOM behaviour:
// true aborts (panics) on OOM-class errors, false returns nil.
func NewInfallibleAllocator(alloc *Allocator, hosted bool) *InfallibleAllocator {
	return &InfallibleAllocator{alloc: alloc, hosted: hosted}
}

func isOOMClass(err error) bool {
	return errors.Is(err, ErrCannotFit) ||
		errors.Is(err, ErrTooBigSize) ||
		errors.Is(err, ErrTooBigAlignment) ||
		errors.Is(err, ErrNoMoreSpace)
}

// Allocate returns a buddy of at least size bytes aligned to align. On an
// OOM-class failure it either panics (hosted) or returns nil
// (freestanding); any other error (there are none defined today) panics
// unconditionally, since the infallible facade has no channel to report it.
func (ia *InfallibleAllocator) Allocate(size, align uint) []byte {
	block, err := ia.alloc.Allocate(size, align)
	if err == nil {
		return block
	}
	if isOOMClass(err) {
		if ia.hosted {
			panic(fmt.Errorf("malloc: out of memory: %w", err))
		}
		return nil
	}
	panic(fmt.Errorf("malloc: unexpected allocator fault: %w", err))
}

// Deallocate releases block. Any error — double free, corruption, a
// mismatched align — is always fatal, hosted or not.
func (ia *InfallibleAllocator) Deallocate(block []byte, align uint) {
	if err := ia.alloc.Deallocate(block, align); err != nil {
		panic(fmt.Errorf("malloc: deallocation fault: %w", err))
	}
}
