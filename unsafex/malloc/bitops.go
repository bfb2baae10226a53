package malloc

import "math/bits"

// wordBits is the width of the uint this package does its bit math on.
// The buddy engine only ever deals in sizes that fit a machine word, so a
// single width (rather than parameterizing over uint32/uint64) keeps the
// de Bruijn table a single 64-entry lookup.
const wordBits = bits.UintSize

// deBruijn64 is the canonical 64-bit de Bruijn sequence used to turn an
// isolated low bit into its index via a single multiply-and-shift.
const deBruijn64 = 0x22FDD63CC95386D

var deBruijn64Table = [64]uint{
	0, 1, 2, 53, 3, 7, 54, 27,
	4, 38, 41, 8, 34, 55, 48, 28,
	62, 5, 39, 46, 44, 42, 22, 9,
	24, 35, 59, 56, 49, 18, 29, 11,
	63, 52, 6, 26, 37, 40, 33, 47,
	61, 45, 43, 21, 23, 58, 17, 10,
	51, 25, 36, 32, 60, 20, 57, 16,
	50, 31, 19, 15, 30, 14, 13, 12,
}

// NextPowerOfTwo returns the smallest power of two greater than or equal to
// v, using the canonical decrement/smear/increment bit trick. v must be
// nonzero; the caller is expected to have already rejected v == 0 (the
// buddy size/order pipeline never calls this with zero).
func NextPowerOfTwo(v uint) uint {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	if wordBits > 32 {
		v |= v >> 32
	}
	v++
	return v
}

// TrailingZeroCount returns the number of trailing zero bits of v via the
// de Bruijn multiply-and-lookup method. v must be nonzero; for a power of
// two this is exactly log2(v).
func TrailingZeroCount(v uint) uint {
	isolated := v & (-v)
	idx := (uint64(isolated) * deBruijn64) >> (64 - 6)
	return deBruijn64Table[idx&63]
}
