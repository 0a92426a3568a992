package segward

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/jurgen-kluft/segward/config"
)

func mustCreate(t *testing.T, segmentSize, totalSize uintptr) *Allocator {
	t.Helper()

	a, err := Create(config.WithSegmentSize(segmentSize), config.WithTotalSize(totalSize))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Cleanup(func() { a.Close() })

	return a
}

func TestCreateRoundsSegmentSizeUpToPowerOfTwo(t *testing.T) {
	a := mustCreate(t, 100_000, 1<<20)

	if got := a.segmentSize(); got != 128*1024 {
		t.Fatalf("segmentSize = %d, want %d", got, 128*1024)
	}
}

func TestCreateRejectsSegmentSizeBelowMinimum(t *testing.T) {
	_, err := Create(config.WithSegmentSize(1024), config.WithTotalSize(1<<20))
	if err == nil {
		t.Fatal("expected an error for a sub-4KiB segment size")
	}
}

func TestCreateRejectsTotalSizeYieldingFewerThanThreeSegments(t *testing.T) {
	_, err := Create(config.WithSegmentSize(64*1024), config.WithTotalSize(64*1024))
	if err == nil {
		t.Fatal("expected an error when total size yields fewer than 3 segments")
	}
}

func TestCreateRejectsUnsatisfiedAPIVersionConstraint(t *testing.T) {
	_, err := Create(config.WithSegmentSize(64*1024), config.WithTotalSize(1<<20),
		config.WithAPIVersionConstraint(">=9.0.0"))
	if err == nil {
		t.Fatal("expected an error for an unsatisfiable API version constraint")
	}
}

func TestAllocateRoundTrip(t *testing.T) {
	a := mustCreate(t, 64*1024, 1<<20)

	p, err := a.Allocate(128, 16)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if p == nil {
		t.Fatal("Allocate returned a nil pointer for a non-zero size")
	}

	if uintptr(p)%16 != 0 {
		t.Fatalf("pointer %p is not 16-byte aligned", p)
	}

	a.Deallocate(p)

	stats := a.Stats()
	if stats.LiveAllocations != 0 {
		t.Fatalf("expected 0 live allocations after the only allocation was freed, got %d", stats.LiveAllocations)
	}
}

func TestAllocateAlignmentMatrix(t *testing.T) {
	a := mustCreate(t, 64*1024, 1<<20)

	sizes := []uintptr{1, 7, 8, 63, 4096}
	alignments := []uintptr{0, 8, 16, 64, 256}

	for _, size := range sizes {
		for _, alignment := range alignments {
			p, err := a.Allocate(size, alignment)
			if err != nil {
				t.Fatalf("Allocate(%d, %d) failed: %v", size, alignment, err)
			}

			want := alignment
			if want < sizeGranularity {
				want = sizeGranularity
			}

			if uintptr(p)%want != 0 {
				t.Fatalf("Allocate(%d, %d): pointer %p not aligned to %d", size, alignment, p, want)
			}
		}
	}
}

func TestAllocateZeroSizePanics(t *testing.T) {
	a := mustCreate(t, 64*1024, 1<<20)

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for a zero-size allocation")
		}
	}()

	a.Allocate(0, 0)
}

func TestAllocateOveralignedRequestPanics(t *testing.T) {
	a := mustCreate(t, 64*1024, 1<<20)

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for an alignment exceeding the segment cap")
		}
	}()

	a.Allocate(64, a.segmentSize())
}

func TestSegmentRolloverActivatesNextSegment(t *testing.T) {
	a := mustCreate(t, 4096, 3*4096)

	segSize := a.segmentSize()

	// Fill segment 0 completely.
	for {
		_, err := a.Allocate(segSize/4, 8)
		if err != nil {
			break
		}
		if a.current != 0 {
			break
		}
	}

	if a.current == 0 {
		t.Fatal("expected rollover to have moved off segment 0")
	}

	stats := a.Stats()
	if stats.FullSegments == 0 {
		t.Fatalf("expected at least one FULL segment after rollover, got stats %+v", stats)
	}
}

func TestOutOfMemoryWhenAllSegmentsFull(t *testing.T) {
	a := mustCreate(t, 4096, 3*4096)

	segSize := a.segmentSize()

	var lastErr error
	for i := 0; i < 1000; i++ {
		_, err := a.Allocate(segSize, 8)
		if err != nil {
			lastErr = err
			break
		}
	}

	if !errors.Is(lastErr, ErrOutOfMemory) {
		t.Fatalf("expected ErrOutOfMemory once every segment is full, got %v", lastErr)
	}
}

func TestRetiredSegmentIsReusedAfterOOM(t *testing.T) {
	a := mustCreate(t, 4096, 3*4096)

	segSize := a.segmentSize()

	p0, err := a.Allocate(segSize, 8)
	if err != nil {
		t.Fatalf("Allocate segment 0 failed: %v", err)
	}

	if _, err := a.Allocate(segSize, 8); err != nil {
		t.Fatalf("Allocate segment 1 failed: %v", err)
	}
	if _, err := a.Allocate(segSize, 8); err != nil {
		t.Fatalf("Allocate segment 2 failed: %v", err)
	}

	if _, err := a.Allocate(segSize, 8); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("expected ErrOutOfMemory with all 3 segments FULL, got %v", err)
	}

	// Freeing the only allocation in segment 0 retires it, making it
	// available to the next replacement search.
	a.Deallocate(p0)

	p3, err := a.Allocate(segSize, 8)
	if err != nil {
		t.Fatalf("expected allocation to succeed after a segment retired, got %v", err)
	}
	if p3 != p0 {
		t.Fatalf("expected the retired segment's base address to be reused, got %p want %p", p3, p0)
	}
}

func TestDeallocateNilPointerPanics(t *testing.T) {
	a := mustCreate(t, 64*1024, 1<<20)

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for deallocating a nil pointer")
		}
	}()

	a.Deallocate(nil)
}

func TestDeallocatePointerOutsideArenaPanics(t *testing.T) {
	a := mustCreate(t, 64*1024, 1<<20)

	var stray int
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for a pointer outside this allocator's arena")
		}
	}()

	a.Deallocate(unsafe.Pointer(&stray))
}

func TestDoubleFreePanics(t *testing.T) {
	a := mustCreate(t, 64*1024, 1<<20)

	p, err := a.Allocate(64, 8)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	a.Deallocate(p)

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for a double free")
		}
	}()

	a.Deallocate(p)
}

func TestDeallocateFromFullSegmentDoesNotPanic(t *testing.T) {
	// Regression test for the corrected deallocate assertion: the
	// original only allowed freeing from ACTIVE segments, but a segment
	// legitimately holds live allocations while FULL too.
	a := mustCreate(t, 4096, 3*4096)

	segSize := a.segmentSize()

	p0, err := a.Allocate(segSize/2, 8)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if _, err := a.Allocate(segSize/2+8, 8); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	stats := a.Stats()
	if stats.FullSegments == 0 {
		t.Fatalf("expected segment 0 to have rolled over to FULL, got %+v", stats)
	}

	a.Deallocate(p0)
}

func TestInterleavedFreesAcrossSegments(t *testing.T) {
	a := mustCreate(t, 4096, 4*4096)

	segSize := a.segmentSize()

	var ptrs []unsafe.Pointer
	for i := 0; i < 3; i++ {
		p, err := a.Allocate(segSize, 8)
		if err != nil {
			t.Fatalf("Allocate(%d) failed: %v", i, err)
		}
		ptrs = append(ptrs, p)
	}

	a.Deallocate(ptrs[1])
	a.Deallocate(ptrs[0])
	a.Deallocate(ptrs[2])

	if got := a.Stats().LiveAllocations; got != 0 {
		t.Fatalf("expected 0 live allocations, got %d", got)
	}
	if got := a.Stats().RetiredSegments; got != 3 {
		t.Fatalf("expected all 3 segments to have retired, got %d", got)
	}
}

func TestStatsReflectAllocationActivity(t *testing.T) {
	a := mustCreate(t, 4096, 3*4096)

	p, err := a.Allocate(64, 8)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	stats := a.Stats()
	if stats.SegmentCount != 3 {
		t.Fatalf("SegmentCount = %d, want 3", stats.SegmentCount)
	}
	if stats.TotalAllocated == 0 {
		t.Fatal("expected TotalAllocated to be non-zero after an allocation")
	}

	a.Deallocate(p)

	if got := a.Stats().TotalFreed; got != 1 {
		t.Fatalf("TotalFreed = %d, want 1", got)
	}
}

func TestCloseReleasesArena(t *testing.T) {
	a, err := Create(config.WithSegmentSize(64*1024), config.WithTotalSize(1<<20))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}
