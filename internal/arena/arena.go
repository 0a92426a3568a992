// Package arena implements the virtual-memory-backed arena abstraction
// that backs Segward's user-visible segment region (its segment table is
// kept in ordinary Go slices, not in the arena). It hides
// the reserve/commit/decommit primitives behind a small linear
// sub-allocation interface: callers bump a cursor forward and never free
// individual sub-allocations, only the whole arena at once.
package arena

import (
	"fmt"
	"sync"
	"unsafe"
)

// Arena is a contiguous byte region with a monotonic allocation cursor.
// The concrete reservation strategy is selected per build target in
// arena_unix.go / arena_other.go; both satisfy this same shape.
type Arena struct {
	mu      sync.Mutex
	backing []byte
	release func() error
	cursor  uintptr
	size    uintptr
}

// New reserves an arena of at least totalSize bytes. initialCommit is
// advisory sizing hint for platforms that commit memory incrementally;
// build targets that cannot honor it lazily ignore it.
func New(totalSize, initialCommit uintptr) (*Arena, error) {
	if totalSize == 0 {
		return nil, fmt.Errorf("arena: total size must be > 0")
	}

	return newPlatform(totalSize, initialCommit)
}

// Allocate bumps the arena's internal cursor forward and returns a
// pointer to a zero-initialized sub-region of n bytes, aligned to
// alignment. Segward itself does not call it: Create takes its base
// address from AddressAt(SavePoint()), and the hot allocate/deallocate
// path never calls back into the arena.
func (a *Arena) Allocate(n, alignment uintptr) (unsafe.Pointer, error) {
	if n == 0 {
		return nil, fmt.Errorf("arena: allocate requires n > 0")
	}

	if alignment == 0 {
		alignment = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	aligned := alignUp(a.cursor, alignment)

	end := aligned + n
	if end > a.size {
		return nil, fmt.Errorf("arena: out of space (need %d bytes at offset %d, size %d)", n, aligned, a.size)
	}

	a.cursor = end

	return a.addressAtLocked(aligned), nil
}

// SavePoint returns the current cursor position. Bytes at and after this
// position are untouched by any prior Allocate call.
func (a *Arena) SavePoint() uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.cursor
}

// AddressAt returns the absolute pointer for a position previously
// obtained from SavePoint (or any offset within the arena).
func (a *Arena) AddressAt(pos uintptr) unsafe.Pointer {
	a.mu.Lock()
	defer a.mu.Unlock()

	if pos > a.size {
		panic(fmt.Sprintf("arena: address_at position %d exceeds size %d", pos, a.size))
	}

	return a.addressAtLocked(pos)
}

func (a *Arena) addressAtLocked(pos uintptr) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(unsafe.SliceData(a.backing)), int(pos))
}

// Size returns the total reserved size of the arena.
func (a *Arena) Size() uintptr {
	return a.size
}

// Release returns the arena's memory to the operating system (unix) or
// drops the last reference to it (portable fallback). All pointers
// previously handed out by Allocate/AddressAt are invalidated.
func (a *Arena) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.release == nil {
		return nil
	}

	err := a.release()
	a.release = nil
	a.backing = nil

	return err
}

func alignUp(v, alignment uintptr) uintptr {
	return (v + alignment - 1) &^ (alignment - 1)
}
