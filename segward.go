// Package segward implements a forward segmented allocator: a
// virtual-memory-backed arena partitioned into fixed-size, power-of-two
// segments, each an independent bump arena with a live-allocation
// counter. Segments move through EMPTY -> ACTIVE -> FULL -> RETIRED ->
// ACTIVE as allocations and deallocations drain them, never coalescing
// and never relocating live data.
package segward

import (
	"unsafe"

	"github.com/jurgen-kluft/segward/config"
	"github.com/jurgen-kluft/segward/internal/arena"
	"github.com/jurgen-kluft/segward/internal/segtable"
)

const (
	minSegmentSize = 4 * 1024
	maxSegmentSize = 1 << 30
	minSegments    = 3

	// sizeGranularity is the smallest unit a requested size or alignment
	// is rounded up to. Matches the teacher's own bump allocator, which
	// rounds every request to an 8-byte boundary before touching a cursor.
	sizeGranularity = 8

	// alignmentCapDivisor bounds a single allocation's alignment to a
	// fraction of the segment size, so one over-aligned request can never
	// by itself make a freshly activated segment unable to satisfy it.
	alignmentCapDivisor = 256
)

// Allocator is a forward segmented allocator over one arena.
//
// It keeps one "current" segment as the active bump-allocation target;
// when an allocation would overflow it, the current segment is marked
// FULL and the segment table's ReplacementSearch picks the lowest-indexed EMPTY or RETIRED
// segment to activate next. There is no free list, no coalescing, and
// no thread safety: callers serialize their own access.
type Allocator struct {
	arena   *arena.Arena
	table   *segtable.Table
	base    unsafe.Pointer
	shift   uint
	current int

	replacementSearches uint64
	totalAllocated      int64
	totalFreed          int64
}

// Stats is a point-in-time snapshot of an Allocator's bookkeeping,
// useful for diagnostics and for cmd/segwardctl's reporting.
type Stats struct {
	SegmentCount        int     `json:"segment_count"`
	SegmentSize         uintptr `json:"segment_size"`
	CurrentSegment      int     `json:"current_segment"`
	EmptySegments       int     `json:"empty_segments"`
	ActiveSegments      int     `json:"active_segments"`
	FullSegments        int     `json:"full_segments"`
	RetiredSegments     int     `json:"retired_segments"`
	LiveAllocations     int64   `json:"live_allocations"`
	TotalAllocated      int64   `json:"total_allocated"`
	TotalFreed          int64   `json:"total_freed"`
	ReplacementSearches uint64  `json:"replacement_searches"`
}

// Create builds a new Allocator from the given options. SegmentSize is
// rounded up to the next power of two and validated against
// [4KiB, 1GiB]; TotalSize is rounded up to a multiple of the resulting
// segment size and must yield at least 3 segments.
//
// Unlike the allocator this package is grounded on, the segment
// bookkeeping table (counters/cursors/states) is kept as ordinary Go
// slices rather than carved out of the arena's raw bytes: nothing
// outside this package ever observes a bookkeeping array's address, so
// there is nothing to gain from placing it in VM-backed memory, and
// doing so would mean reinterpreting raw arena bytes as a live Go slice
// header — a much larger unsafe surface for no semantic benefit. Only
// the user-visible segment region is arena-backed.
func Create(opts ...config.Option) (*Allocator, error) {
	cfg := config.New(opts...)

	if err := cfg.CheckAPIVersion(); err != nil {
		return nil, err
	}

	segmentSize := ceilPow2(cfg.SegmentSize)
	if segmentSize < minSegmentSize || segmentSize > maxSegmentSize {
		return nil, configurationError("SEGMENT_SIZE_OUT_OF_RANGE",
			"segment size must round up to a power of two between 4KiB and 1GiB",
			map[string]interface{}{"requested": cfg.SegmentSize, "rounded": segmentSize})
	}

	totalSize := alignUp(cfg.TotalSize, segmentSize)
	segmentCount := totalSize / segmentSize
	if segmentCount < minSegments {
		return nil, configurationError("TOTAL_SIZE_TOO_SMALL",
			"total size must be large enough to hold at least 3 segments",
			map[string]interface{}{"total_size": cfg.TotalSize, "segment_size": segmentSize, "segments": segmentCount})
	}

	ar, err := arena.New(totalSize, totalSize)
	if err != nil {
		return nil, err
	}

	base := ar.AddressAt(ar.SavePoint())

	table := segtable.New(int(segmentCount))
	table.SetState(0, segtable.Active)

	return &Allocator{
		arena: ar,
		table: table,
		base:  base,
		shift: ilog2(segmentSize),
	}, nil
}

// segmentSize returns the fixed size of every segment in this allocator.
func (a *Allocator) segmentSize() uintptr {
	return uintptr(1) << a.shift
}

// Allocate returns a pointer to a region of at least size bytes aligned
// to alignment (alignment must be a power of two; 0 means "no stronger
// than natural", rounded up to sizeGranularity). It panics if size is 0
// or alignment exceeds one 256th of the segment size — those are
// contract violations, not recoverable conditions. It returns
// ErrOutOfMemory if every segment is FULL and none is EMPTY or RETIRED.
func (a *Allocator) Allocate(size, alignment uintptr) (unsafe.Pointer, error) {
	if size == 0 {
		contractViolation("ZERO_SIZE_ALLOCATION", "allocate requires size > 0", nil)
	}

	segSize := a.segmentSize()
	alignCap := segSize / alignmentCapDivisor
	if alignment > alignCap {
		contractViolation("ALIGNMENT_TOO_LARGE", "requested alignment exceeds 1/256th of the segment size",
			map[string]interface{}{"alignment": alignment, "segment_size": segSize, "cap": alignCap})
	}

	if alignment < sizeGranularity {
		alignment = sizeGranularity
	}
	alignment = alignUp(alignment, sizeGranularity)
	size = alignUp(size, sizeGranularity)

	seg := a.current

	// The current segment may have drained and retired since the last
	// allocation; it is reused in place, its cursor already reset to 0.
	if a.table.State(seg) == segtable.Retired {
		a.table.SetState(seg, segtable.Active)
	}

	cursor := uintptr(a.table.Cursor(seg))
	offset := alignUp(cursor, alignment)

	// A FULL current segment (left behind by an earlier out-of-memory
	// result) takes no new allocations, even ones that would still fit.
	if a.table.State(seg) == segtable.Full || offset+size > segSize {
		a.table.SetState(seg, segtable.Full)

		next := a.table.ReplacementSearch()
		a.replacementSearches++

		if next == -1 {
			return nil, ErrOutOfMemory
		}

		a.table.SetState(next, segtable.Active)
		a.current = next
		seg = next
		offset = alignUp(0, alignment)

		if offset+size > segSize {
			contractViolation("ALLOCATION_EXCEEDS_SEGMENT", "a single allocation may not exceed one segment",
				map[string]interface{}{"size": size, "segment_size": segSize})
		}
	}

	a.table.SetCursor(seg, uint32(offset+size))
	a.table.IncrementCounter(seg)
	a.totalAllocated += int64(size)

	return unsafe.Add(a.base, int(uintptr(seg)<<a.shift+offset)), nil
}

// Deallocate releases one live allocation from the segment that owns
// ptr. It panics if ptr is nil, lies outside this allocator's arena, or
// names a segment that is EMPTY or RETIRED (a double free or a stale
// pointer) — spec-corrected from the ACTIVE-only check its C++ origin
// used, since a segment legitimately drains allocations while FULL too.
func (a *Allocator) Deallocate(ptr unsafe.Pointer) {
	if ptr == nil {
		contractViolation("NULL_POINTER_DEALLOCATE", "deallocate requires a non-nil pointer", nil)
	}

	offset := uintptr(ptr) - uintptr(a.base)
	seg := int(offset >> a.shift)

	if seg < 0 || seg >= a.table.Len() {
		contractViolation("POINTER_OUT_OF_RANGE", "pointer does not belong to this allocator's arena",
			map[string]interface{}{"segment": seg, "segment_count": a.table.Len()})
	}

	state := a.table.State(seg)
	if state != segtable.Active && state != segtable.Full {
		contractViolation("DOUBLE_FREE_OR_STALE_POINTER", "segment is not live (EMPTY or RETIRED)",
			map[string]interface{}{"segment": seg, "state": state.String()})
	}

	post := a.table.DecrementCounter(seg)
	if post < 0 {
		contractViolation("COUNTER_UNDERFLOW", "live-allocation counter went negative", map[string]interface{}{"segment": seg})
	}

	a.totalFreed++

	// Corrected from the original's inverted branch: a segment retires
	// exactly when its counter reaches zero after this decrement,
	// regardless of whether it was ACTIVE or FULL beforehand.
	if post == 0 {
		a.table.SetState(seg, segtable.Retired)
		a.table.SetCursor(seg, 0)
	}
}

// Stats returns a snapshot of this allocator's bookkeeping.
func (a *Allocator) Stats() Stats {
	empty, active, full, retired := a.table.Counts()

	return Stats{
		SegmentCount:        a.table.Len(),
		SegmentSize:         a.segmentSize(),
		CurrentSegment:      a.current,
		EmptySegments:       empty,
		ActiveSegments:      active,
		FullSegments:        full,
		RetiredSegments:     retired,
		LiveAllocations:     a.table.LiveAllocations(),
		TotalAllocated:      a.totalAllocated,
		TotalFreed:          a.totalFreed,
		ReplacementSearches: a.replacementSearches,
	}
}

// Close releases the allocator's arena back to the operating system.
// Every pointer it ever handed out is invalid after Close returns.
func (a *Allocator) Close() error {
	return a.arena.Release()
}

func alignUp(v, alignment uintptr) uintptr {
	return (v + alignment - 1) &^ (alignment - 1)
}

func ceilPow2(v uintptr) uintptr {
	if v == 0 {
		return 1
	}

	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	v++

	return v
}

func ilog2(v uintptr) uint {
	var n uint
	for v > 1 {
		v >>= 1
		n++
	}

	return n
}
