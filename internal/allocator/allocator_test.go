package allocator

import "testing"

func TestSystemAllocatorRoundTrip(t *testing.T) {
	sa := NewSystemAllocator(defaultConfig())

	ptr := sa.Alloc(128)
	if ptr == nil {
		t.Fatal("Alloc returned nil for a 128-byte request")
	}

	if got := sa.ActiveAllocations(); got != 1 {
		t.Fatalf("ActiveAllocations = %d, want 1", got)
	}

	sa.Free(ptr)

	if got := sa.ActiveAllocations(); got != 0 {
		t.Fatalf("ActiveAllocations after Free = %d, want 0", got)
	}
}

func TestSystemAllocatorRespectsMemoryLimit(t *testing.T) {
	cfg := defaultConfig()
	cfg.MemoryLimit = 64

	sa := NewSystemAllocator(cfg)

	if ptr := sa.Alloc(128); ptr != nil {
		t.Fatal("expected Alloc to fail when the request exceeds MemoryLimit")
	}
}

func TestSegwardAllocatorRoundTrip(t *testing.T) {
	cfg := defaultConfig()
	cfg.SegmentSize = 4096
	cfg.ArenaSize = 3 * 4096

	sw, err := NewSegwardAllocator(cfg)
	if err != nil {
		t.Fatalf("NewSegwardAllocator failed: %v", err)
	}

	ptr := sw.Alloc(64)
	if ptr == nil {
		t.Fatal("Alloc returned nil for a 64-byte request")
	}

	if got := sw.ActiveAllocations(); got != 1 {
		t.Fatalf("ActiveAllocations = %d, want 1", got)
	}

	sw.Free(ptr)

	if got := sw.ActiveAllocations(); got != 0 {
		t.Fatalf("ActiveAllocations after Free = %d, want 0", got)
	}
}

func TestSegwardAllocatorReturnsNilOnOutOfMemory(t *testing.T) {
	cfg := defaultConfig()
	cfg.SegmentSize = 4096
	cfg.ArenaSize = 3 * 4096
	cfg.AlignmentSize = 8

	sw, err := NewSegwardAllocator(cfg)
	if err != nil {
		t.Fatalf("NewSegwardAllocator failed: %v", err)
	}

	exhausted := false
	for i := 0; i < 8; i++ {
		if sw.Alloc(4096) == nil {
			exhausted = true

			break
		}
	}

	if !exhausted {
		t.Fatal("expected Alloc to eventually return nil once the arena is exhausted")
	}
}

func TestInitializeSelectsRegisteredKind(t *testing.T) {
	if err := Initialize(SystemAllocatorKind); err != nil {
		t.Fatalf("Initialize(SystemAllocatorKind) failed: %v", err)
	}
	if GlobalAllocator == nil {
		t.Fatal("expected GlobalAllocator to be set after Initialize")
	}

	ptr := Alloc(32)
	if ptr == nil {
		t.Fatal("global Alloc returned nil")
	}
	Free(ptr)
}

func TestInitializeRejectsUnknownKind(t *testing.T) {
	if err := Initialize(AllocatorKind(99)); err == nil {
		t.Fatal("expected an error for an unregistered allocator kind")
	}
}
