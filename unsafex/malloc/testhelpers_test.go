package malloc

import "testing"

// newAlignedArena returns a length-byte slice whose base address is
// aligned to align, regardless of what alignment the runtime's allocator
// happens to give a plain make([]byte, length) — see AlignRegion.
func newAlignedArena(t *testing.T, length, align uint) []byte {
	t.Helper()
	raw := make([]byte, length+align)
	return AlignRegion(raw, length, align)
}
