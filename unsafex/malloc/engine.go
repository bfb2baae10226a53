package malloc

import (
	"fmt"
	"strings"
)

// Engine is the buddy allocation state machine: a binary heap of per-node
// minimum-free-order bytes over a cell-granular partition of an arena. It
// holds no lock of its own — callers (Allocator) serialise access to it.
type Engine struct {
	meta     []byte
	cellSize uint
	arenaLen uint
	maxOrder Order

	// selfHosted is true when the metadata tree lives inside the arena it
	// describes; metaPrefixLen is the number of leading arena bytes that
	// reservation permanently consumes and every returned offset must
	// skip.
	selfHosted    bool
	metaPrefixLen uint
}

// newEngine wires an already-sized metadata buffer to an arena length and
// cell size. It does not stamp the tree; call ensureInit (or initEagerly)
// before the first Alloc/Dealloc.
func newEngine(meta []byte, cellSize, arenaLen uint, selfHosted bool) (*Engine, error) {
	maxOrder, err := maxOrderFor(cellSize, arenaLen)
	if err != nil {
		return nil, fmt.Errorf("newEngine: %w", err)
	}
	want := metadataBytesNeeded(maxOrder)
	if uint(len(meta)) != want {
		panic(fmt.Sprintf("malloc: metadata buffer has %d bytes, need exactly %d", len(meta), want))
	}
	return &Engine{
		meta:       meta,
		cellSize:   cellSize,
		arenaLen:   arenaLen,
		maxOrder:   maxOrder,
		selfHosted: selfHosted,
	}, nil
}

// ensureInit materialises the metadata tree if it still carries the
// uninitialised sentinel (spec.md §4.3). Safe to call on every operation;
// it is a no-op once the tree has been stamped.
func (e *Engine) ensureInit() error {
	if !isUninitialised(e.meta) {
		return nil
	}
	return e.initTree()
}

// initEagerly forces materialisation regardless of the sentinel, for the
// run-time construction mode where the caller wants the tree ready
// immediately rather than on first use.
func (e *Engine) initEagerly() error {
	return e.initTree()
}

func (e *Engine) initTree() error {
	bytesNeeded := metadataBytesNeeded(e.maxOrder)
	stampTree(e.meta, bytesNeeded)
	e.meta[rootIndex] = idleFlag

	if e.selfHosted {
		metaChunkSize := bytesNeeded
		if e.cellSize > metaChunkSize {
			metaChunkSize = e.cellSize
		}
		order, err := orderOf(BuddySize(metaChunkSize), e.arenaLen)
		if err != nil {
			return fmt.Errorf("initTree: reserving self-hosted metadata: %w", err)
		}
		offset, err := e.allocAtOrder(order)
		if err != nil {
			return fmt.Errorf("initTree: reserving self-hosted metadata: %w", err)
		}
		if offset != 0 {
			panic("malloc: self-hosted metadata reservation did not land at arena offset 0")
		}
		e.metaPrefixLen = metaChunkSize
	}
	return nil
}

// effectiveByte returns the node byte at i, resolving the idleFlag
// sentinel (which can only ever appear at the root, and only before the
// first operation following initialisation) to the value it stands in
// for: the freshly-stamped depth of that index.
func (e *Engine) effectiveByte(i uint) byte {
	v := e.meta[i]
	if v == idleFlag {
		return byte(bitsLen(i))
	}
	return v
}

// Alloc runs the allocation state machine of spec.md §4.4 and returns a
// user-visible offset into the arena (already adjusted for any self-hosted
// metadata prefix) together with the actual buddy size reserved there.
func (e *Engine) Alloc(size, align uint) (offset, buddySize uint, err error) {
	bs, err := buddySizeOf(size, align, e.cellSize)
	if err != nil {
		return 0, 0, err
	}
	order, err := orderOf(bs, e.arenaLen)
	if err != nil {
		return 0, 0, err
	}
	raw, err := e.allocAtOrder(order)
	if err != nil {
		return 0, 0, err
	}
	return raw - e.metaPrefixLen, uint(bs), nil
}

// allocAtOrder performs the descent/mark/propagate sequence for a single
// order and returns the raw (pre metadata-prefix-adjustment) arena offset.
func (e *Engine) allocAtOrder(order Order) (uint, error) {
	rootVal := e.effectiveByte(rootIndex)
	if nodeOccupied(rootVal) || nodeOrder(rootVal) > uint(order) {
		return 0, ErrNoMoreSpace
	}

	i := uint(rootIndex)
	for bitsLen(i) < uint(order) {
		left := nodeOrder(e.effectiveByte(2 * i))
		right := nodeOrder(e.effectiveByte(2*i + 1))
		switch {
		case left <= uint(order):
			i = 2 * i
		case right <= uint(order):
			i = 2*i + 1
		default:
			return 0, ErrNoMoreSpace
		}
	}

	e.meta[i] = occupiedBit | byte(e.maxOrder+1)
	e.propagateUp(i)

	span := e.arenaLen >> uint(order)
	offset := span * (i & ((1 << uint(order)) - 1))
	return offset, nil
}

// Dealloc runs the deallocation state machine of spec.md §4.5.
func (e *Engine) Dealloc(offset, size, align uint) error {
	buddySize, err := buddySizeOf(size, align, e.cellSize)
	if err != nil {
		return err
	}
	order, err := orderOf(buddySize, e.arenaLen)
	if err != nil {
		return err
	}

	rawOffset := offset + e.metaPrefixLen
	arenaPow := TrailingZeroCount(e.arenaLen)
	i := (uint(1) << uint(order)) + (rawOffset >> (arenaPow - uint(order)))

	if !nodeOccupied(e.effectiveByte(i)) {
		return ErrDoubleFreeOrCorruption
	}
	e.meta[i] = byte(order)
	e.propagateUp(i)
	return nil
}

// propagateUp recomputes every ancestor of i as the min of its two
// children's masked order bytes, or as the ancestor's own depth when both
// children are wholly free (the two buddies coalesce), stopping as soon as
// a recomputed value equals the value already stored there.
func (e *Engine) propagateUp(i uint) {
	for i > rootIndex {
		i /= 2
		left := nodeOrder(e.effectiveByte(2 * i))
		right := nodeOrder(e.effectiveByte(2*i + 1))
		newVal := left
		if right < newVal {
			newVal = right
		}
		if childDepth := bitsLen(i) + 1; left == childDepth && right == childDepth {
			newVal = childDepth - 1
		}
		if newVal == nodeOrder(e.effectiveByte(i)) {
			return
		}
		e.meta[i] = byte(newVal)
	}
}

// Available returns the total number of free bytes currently reachable
// from the root, derived from the tree rather than tracked separately.
func (e *Engine) Available() uint {
	return e.availableFrom(rootIndex, 0)
}

func (e *Engine) availableFrom(i, depth uint) uint {
	v := e.effectiveByte(i)
	if nodeOccupied(v) {
		return 0
	}
	order := nodeOrder(v)
	if order == depth {
		// This whole subtree is one free buddy of this depth's order.
		return e.arenaLen >> depth
	}
	if 2*i+1 >= uint(len(e.meta)) {
		return 0
	}
	return e.availableFrom(2*i, depth+1) + e.availableFrom(2*i+1, depth+1)
}

// DebugString hex-dumps the metadata tree, one row per depth, for use in
// tests and troubleshooting. The root's idleFlag is shown as the depth it
// stands for (see effectiveByte). Not on any allocation hot path.
func (e *Engine) DebugString() string {
	var b strings.Builder
	bytesNeeded := metadataBytesNeeded(e.maxOrder)
	depth := uint(0)
	i := uint(rootIndex)
	for i < bytesNeeded {
		rowEnd := uint(2) << depth
		if rowEnd > bytesNeeded {
			rowEnd = bytesNeeded
		}
		fmt.Fprintf(&b, "d%-2d:", depth)
		for ; i < rowEnd; i++ {
			fmt.Fprintf(&b, " %02x", e.effectiveByte(i))
		}
		b.WriteByte('\n')
		depth++
	}
	return b.String()
}
