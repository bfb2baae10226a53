/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package mempool is a sync.Pool-backed source of power-of-two buffers,
// size-classed directly by malloc.Order rather than an independent
// bucketing scheme: pools[o] always hands out exactly 1<<o bytes, the
// same quantity the buddy engine itself would compute as the size of an
// order-o block. Callers that need an arena for unsafex/malloc get one
// without paying a fresh make([]byte, n) on every run.
package mempool

import (
	"sync"

	"github.com/mordaklameuh/buddyalloc/unsafex/malloc"
)

// maxPooledOrder bounds how large an order this package keeps a sync.Pool
// for; 1<<24 (16MiB) covers the allocator's own stress-test arena size,
// so requests above it fall back
// to a plain make and are never pooled on Free.
const maxPooledOrder = 24

var pools [maxPooledOrder + 1]sync.Pool

func init() {
	for o := range pools {
		order := o
		pools[order].New = func() interface{} {
			b := make([]byte, uint(1)<<uint(order))
			return &b
		}
	}
}

// MallocOrder returns a buffer of exactly 2^order bytes, reused from the
// pool for that order when one is available.
func MallocOrder(order malloc.Order) []byte {
	if uint(order) > maxPooledOrder {
		return make([]byte, uint(1)<<uint(order))
	}
	bp := pools[order].Get().(*[]byte)
	return *bp
}

// MallocSize rounds size up to the next power of two via
// malloc.NextPowerOfTwo and returns a buffer of exactly that length —
// the same rounding the buddy engine applies to a requested allocation
// size before computing its order.
func MallocSize(size uint) []byte {
	if size == 0 {
		size = 1
	}
	bs := malloc.NextPowerOfTwo(size)
	return MallocOrder(malloc.Order(malloc.TrailingZeroCount(bs)))
}

// Free returns buf to the pool for its length. Buffers whose length is
// not a power of two, or whose order exceeds maxPooledOrder, were never
// handed out by this package and are silently dropped rather than
// pooled — mirroring Free's original "safe regardless of input" contract.
func Free(buf []byte) {
	n := uint(len(buf))
	if n == 0 || n&(n-1) != 0 {
		return
	}
	order := malloc.TrailingZeroCount(n)
	if order > maxPooledOrder {
		return
	}
	pools[order].Put(&buf)
}
