package allocator

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

// SystemAllocatorImpl implements a simple wrapper around Go's memory allocator.
type SystemAllocatorImpl struct {
	config            *Config
	activeAllocations map[unsafe.Pointer]*AllocationInfo
	allocatedSlices   map[unsafe.Pointer][]byte
	totalAllocated    uintptr
	totalFreed        uintptr
	allocationCount   uint64
	freeCount         uint64
	peakAllocations   int
	mu                sync.RWMutex
}

// NewSystemAllocator creates a new system allocator.
func NewSystemAllocator(config *Config) *SystemAllocatorImpl {
	return &SystemAllocatorImpl{
		config:            config,
		activeAllocations: make(map[unsafe.Pointer]*AllocationInfo),
		allocatedSlices:   make(map[unsafe.Pointer][]byte),
	}
}

// shouldCheckMemoryLimit returns true if memory limit checking is enabled
func (sa *SystemAllocatorImpl) shouldCheckMemoryLimit() bool {
	return sa.config.MemoryLimit > 0 && sa.config.EnableTracking
}

// shouldTrackAllocation returns true if allocation tracking is enabled
func (sa *SystemAllocatorImpl) shouldTrackAllocation() bool {
	return sa.config.EnableTracking
}

// Alloc allocates memory using the system allocator with optimized performance.
func (sa *SystemAllocatorImpl) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	alignedSize := alignUp(size, sa.config.AlignmentSize)
	if alignedSize == 0 {
		return nil // Overflow or invalid size
	}

	if sa.shouldCheckMemoryLimit() {
		current := atomic.LoadUintptr(&sa.totalAllocated) - atomic.LoadUintptr(&sa.totalFreed)
		if current+alignedSize > sa.config.MemoryLimit {
			return nil // Out of memory
		}
	}

	slice := make([]byte, alignedSize)
	if len(slice) != int(alignedSize) || len(slice) == 0 {
		return nil
	}

	ptr := unsafe.Pointer(&slice[0])

	if sa.shouldTrackAllocation() {
		info := &AllocationInfo{
			Size:      alignedSize,
			Timestamp: getTimestamp(),
		}
		if sa.config.EnableDebug {
			info.StackTrace = captureStackTrace()
		}

		sa.mu.Lock()
		sa.allocatedSlices[ptr] = slice
		sa.activeAllocations[ptr] = info

		if len(sa.activeAllocations) > sa.peakAllocations {
			sa.peakAllocations = len(sa.activeAllocations)
		}
		sa.mu.Unlock()
	} else {
		sa.mu.Lock()
		sa.allocatedSlices[ptr] = slice
		sa.mu.Unlock()
	}

	atomic.AddUintptr(&sa.totalAllocated, alignedSize)
	atomic.AddUint64(&sa.allocationCount, 1)

	return ptr
}

// Free frees memory allocated by the system allocator.
func (sa *SystemAllocatorImpl) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	var size uintptr

	if sa.shouldTrackAllocation() {
		size = sa.untrackAllocation(ptr)
	}

	sa.mu.Lock()
	if slice, exists := sa.allocatedSlices[ptr]; exists {
		size = uintptr(len(slice))

		delete(sa.allocatedSlices, ptr)
	}
	sa.mu.Unlock()

	atomic.AddUintptr(&sa.totalFreed, size)
	atomic.AddUint64(&sa.freeCount, 1)
}

// Realloc reallocates memory.
func (sa *SystemAllocatorImpl) Realloc(ptr unsafe.Pointer, newSize uintptr) unsafe.Pointer {
	if ptr == nil {
		return sa.Alloc(newSize)
	}

	if newSize == 0 {
		sa.Free(ptr)

		return nil
	}

	var oldSize uintptr

	if sa.config.EnableTracking {
		sa.mu.RLock()
		if info, exists := sa.activeAllocations[ptr]; exists {
			oldSize = info.Size
		}
		sa.mu.RUnlock()
	}

	newPtr := sa.Alloc(newSize)
	if newPtr == nil {
		return nil
	}

	if oldSize > 0 {
		copySize := oldSize
		if newSize < oldSize {
			copySize = newSize
		}

		copyMemory(newPtr, ptr, copySize)
	}

	sa.Free(ptr)

	return newPtr
}

// TotalAllocated returns total allocated bytes.
func (sa *SystemAllocatorImpl) TotalAllocated() uintptr {
	return atomic.LoadUintptr(&sa.totalAllocated)
}

// TotalFreed returns total freed bytes.
func (sa *SystemAllocatorImpl) TotalFreed() uintptr {
	return atomic.LoadUintptr(&sa.totalFreed)
}

// ActiveAllocations returns the number of active allocations.
func (sa *SystemAllocatorImpl) ActiveAllocations() int {
	if !sa.config.EnableTracking {
		return 0
	}

	sa.mu.RLock()
	defer sa.mu.RUnlock()

	return len(sa.activeAllocations)
}

// Stats returns allocation statistics.
func (sa *SystemAllocatorImpl) Stats() AllocatorStats {
	sa.mu.RLock()
	defer sa.mu.RUnlock()

	return AllocatorStats{
		TotalAllocated:    atomic.LoadUintptr(&sa.totalAllocated),
		TotalFreed:        atomic.LoadUintptr(&sa.totalFreed),
		ActiveAllocations: len(sa.activeAllocations),
		PeakAllocations:   sa.peakAllocations,
		AllocationCount:   atomic.LoadUint64(&sa.allocationCount),
		FreeCount:         atomic.LoadUint64(&sa.freeCount),
		BytesInUse:        atomic.LoadUintptr(&sa.totalAllocated) - atomic.LoadUintptr(&sa.totalFreed),
		SystemMemory:      getSystemMemory(),
	}
}

// Reset is a no-op for system allocator.
func (sa *SystemAllocatorImpl) Reset() {
	// System allocator doesn't support reset.
}

func (sa *SystemAllocatorImpl) untrackAllocation(ptr unsafe.Pointer) uintptr {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	if info, exists := sa.activeAllocations[ptr]; exists {
		delete(sa.activeAllocations, ptr)

		return info.Size
	}

	return 0
}

// CheckLeaks reports every allocation still outstanding.
func (sa *SystemAllocatorImpl) CheckLeaks() []LeakInfo {
	if !sa.config.EnableLeakCheck || !sa.config.EnableTracking {
		return nil
	}

	sa.mu.RLock()
	defer sa.mu.RUnlock()

	var leaks []LeakInfo
	for ptr, info := range sa.activeAllocations {
		leaks = append(leaks, LeakInfo{
			Pointer:    ptr,
			Size:       info.Size,
			Timestamp:  info.Timestamp,
			StackTrace: info.StackTrace,
		})
	}

	return leaks
}

// LeakInfo represents information about a memory leak.
type LeakInfo struct {
	Pointer    unsafe.Pointer
	StackTrace []uintptr
	Size       uintptr
	Timestamp  int64
}

// FormatLeaks formats leak information for display.
func FormatLeaks(leaks []LeakInfo) string {
	if len(leaks) == 0 {
		return "No memory leaks detected"
	}

	result := fmt.Sprintf("Detected %d memory leaks:\n", len(leaks))
	for i, leak := range leaks {
		result += fmt.Sprintf("  Leak %d: %d bytes at %p\n", i+1, leak.Size, leak.Pointer)
		if len(leak.StackTrace) > 0 {
			result += "    Stack trace:\n"
			frames := runtime.CallersFrames(leak.StackTrace)

			for {
				frame, more := frames.Next()
				result += fmt.Sprintf("      %s:%d %s\n", frame.File, frame.Line, frame.Function)

				if !more {
					break
				}
			}
		}
	}

	return result
}

// alignUp aligns a size up to the nearest multiple of alignment.
func alignUp(size, alignment uintptr) uintptr {
	return (size + alignment - 1) &^ (alignment - 1)
}

// copyMemory copies memory from src to dst.
func copyMemory(dst, src unsafe.Pointer, size uintptr) {
	dstSlice := (*[1 << 30]byte)(dst)[:size:size]
	srcSlice := (*[1 << 30]byte)(src)[:size:size]
	copy(dstSlice, srcSlice)
}

// getTimestamp returns current timestamp (simplified).
func getTimestamp() int64 {
	return 0 // Simplified for bootstrap
}

// captureStackTrace captures the current stack trace.
func captureStackTrace() []uintptr {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])

	return pcs[:n]
}

// getSystemMemory returns system memory usage.
func getSystemMemory() uintptr {
	var m runtime.MemStats

	runtime.ReadMemStats(&m)

	return uintptr(m.Sys)
}
