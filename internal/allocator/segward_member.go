package allocator

import (
	"sync"
	"unsafe"

	"github.com/jurgen-kluft/segward"
	"github.com/jurgen-kluft/segward/config"
)

// SegwardAllocatorImpl adapts the real segmented forward allocator to the
// Allocator interface, so a host can register it alongside
// SystemAllocatorImpl and switch between them through the same registry.
//
// The Allocator interface has no alignment parameter, so every
// allocation goes through with the registry's configured AlignmentSize;
// callers who need per-call alignment should use *segward.Allocator
// directly instead of going through this adapter.
type SegwardAllocatorImpl struct {
	alloc     *segward.Allocator
	alignment uintptr
	mu        sync.Mutex
}

// NewSegwardAllocator builds a segward.Allocator from cfg and wraps it.
func NewSegwardAllocator(cfg *Config) (*SegwardAllocatorImpl, error) {
	opts := []config.Option{
		config.WithSegmentSize(cfg.SegmentSize),
		config.WithTotalSize(cfg.ArenaSize),
	}
	if cfg.APIVersionConstraint != "" {
		opts = append(opts, config.WithAPIVersionConstraint(cfg.APIVersionConstraint))
	}

	alloc, err := segward.Create(opts...)
	if err != nil {
		return nil, err
	}

	alignment := cfg.AlignmentSize
	if alignment == 0 {
		alignment = 1
	}

	return &SegwardAllocatorImpl{alloc: alloc, alignment: alignment}, nil
}

// Alloc allocates size bytes at the registry's configured alignment. It
// returns nil instead of propagating segward.ErrOutOfMemory, matching
// the Allocator interface's C-like "nil means failed" convention.
func (sw *SegwardAllocatorImpl) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	ptr, err := sw.alloc.Allocate(size, sw.alignment)
	if err != nil {
		return nil
	}

	return ptr
}

// Free releases one live allocation back to its owning segment.
func (sw *SegwardAllocatorImpl) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.alloc.Deallocate(ptr)
}

// Realloc allocates newSize bytes and frees ptr; segward never grows an
// allocation in place. The old allocation's size isn't tracked by this
// thin adapter, so nothing is copied: the returned storage does not carry
// over ptr's contents (as with the system allocator's Realloc when
// tracking is disabled).
func (sw *SegwardAllocatorImpl) Realloc(ptr unsafe.Pointer, newSize uintptr) unsafe.Pointer {
	if ptr == nil {
		return sw.Alloc(newSize)
	}

	if newSize == 0 {
		sw.Free(ptr)

		return nil
	}

	newPtr := sw.Alloc(newSize)
	if newPtr == nil {
		return nil
	}

	sw.Free(ptr)

	return newPtr
}

// TotalAllocated returns the cumulative bytes handed out across this
// allocator's lifetime.
func (sw *SegwardAllocatorImpl) TotalAllocated() uintptr {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	return uintptr(sw.alloc.Stats().TotalAllocated)
}

// TotalFreed returns the number of Deallocate calls made so far (segward
// doesn't track freed bytes, only freed allocation counts).
func (sw *SegwardAllocatorImpl) TotalFreed() uintptr {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	return uintptr(sw.alloc.Stats().TotalFreed)
}

// ActiveAllocations returns the number of outstanding allocations across
// every segment.
func (sw *SegwardAllocatorImpl) ActiveAllocations() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	return int(sw.alloc.Stats().LiveAllocations)
}

// Stats returns a registry-shaped view of the underlying segward.Stats.
func (sw *SegwardAllocatorImpl) Stats() AllocatorStats {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	s := sw.alloc.Stats()

	return AllocatorStats{
		TotalAllocated:    uintptr(s.TotalAllocated),
		TotalFreed:        uintptr(s.TotalFreed),
		ActiveAllocations: int(s.LiveAllocations),
		AllocationCount:   uint64(s.LiveAllocations + s.TotalFreed),
		FreeCount:         uint64(s.TotalFreed),
		BytesInUse:        uintptr(s.TotalAllocated) - uintptr(s.TotalFreed),
		SystemMemory:      uintptr(s.SegmentCount) * s.SegmentSize,
	}
}

// Reset is unsupported: spec.md carries no arena-wide reset operation,
// only per-segment retirement via Deallocate. Close and Create a new
// allocator instead.
func (sw *SegwardAllocatorImpl) Reset() {
}
