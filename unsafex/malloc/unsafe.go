package malloc

import "unsafe"

// sliceDataAddr returns the address of a byte slice's backing array. Used
// only to recover the arena offset a previously-returned block lives at;
// the engine itself never touches unsafe.Pointer, only integer offsets.
func sliceDataAddr(b []byte) uint {
	if len(b) == 0 {
		return uint(uintptr(0))
	}
	return uint(uintptr(unsafe.Pointer(&b[0])))
}
