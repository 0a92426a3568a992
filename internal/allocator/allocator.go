// Package allocator provides a small registry of interchangeable
// Allocator implementations: a trivial wrapper around Go's own
// allocator, and one backed by the segmented forward allocator this
// module implements. Both satisfy the same Allocator interface so a
// host can swap between them (e.g. for A/B benchmarking) without
// caring which one is live.
package allocator

import (
	"fmt"
	"unsafe"
)

// AllocatorKind selects which Allocator implementation Initialize builds.
type AllocatorKind int

const (
	SystemAllocatorKind AllocatorKind = iota
	SegwardAllocatorKind
)

// Allocator defines the interface shared by every registered allocator.
type Allocator interface {
	Alloc(size uintptr) unsafe.Pointer
	Free(ptr unsafe.Pointer)
	Realloc(ptr unsafe.Pointer, newSize uintptr) unsafe.Pointer
	TotalAllocated() uintptr
	TotalFreed() uintptr
	ActiveAllocations() int
	Stats() AllocatorStats
	Reset()
}

// AllocatorStats provides allocation statistics.
type AllocatorStats struct {
	TotalAllocated    uintptr
	TotalFreed        uintptr
	ActiveAllocations int
	PeakAllocations   int
	AllocationCount   uint64
	FreeCount         uint64
	BytesInUse        uintptr
	SystemMemory      uintptr
}

// GlobalAllocator provides the process-wide default allocator.
var GlobalAllocator Allocator

// Initialize sets up the global allocator.
func Initialize(kind AllocatorKind, options ...Option) error {
	config := defaultConfig()
	for _, opt := range options {
		opt(config)
	}

	switch kind {
	case SystemAllocatorKind:
		GlobalAllocator = NewSystemAllocator(config)
	case SegwardAllocatorKind:
		allocator, err := NewSegwardAllocator(config)
		if err != nil {
			return fmt.Errorf("failed to create segward allocator: %w", err)
		}

		GlobalAllocator = allocator
	default:
		return fmt.Errorf("unknown allocator kind: %v", kind)
	}

	return nil
}

// Config configures the registered allocators.
type Config struct {
	ArenaSize            uintptr
	SegmentSize          uintptr
	MemoryLimit          uintptr
	AlignmentSize        uintptr
	APIVersionConstraint string
	EnableTracking       bool
	EnableDebug          bool
	EnableLeakCheck      bool
}

type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		EnableTracking:  true,
		EnableDebug:     false,
		ArenaSize:       64 * 1024 * 1024, // 64MB default total size
		SegmentSize:     64 * 1024,        // 64KB default segment size
		MemoryLimit:     1024 * 1024 * 1024,
		EnableLeakCheck: true,
		AlignmentSize:   8,
	}
}

// Option functions.
func WithTracking(enabled bool) Option {
	return func(c *Config) { c.EnableTracking = enabled }
}

func WithDebug(enabled bool) Option {
	return func(c *Config) { c.EnableDebug = enabled }
}

func WithArenaSize(size uintptr) Option {
	return func(c *Config) { c.ArenaSize = size }
}

func WithSegmentSize(size uintptr) Option {
	return func(c *Config) { c.SegmentSize = size }
}

func WithMemoryLimit(limit uintptr) Option {
	return func(c *Config) { c.MemoryLimit = limit }
}

func WithLeakCheck(enabled bool) Option {
	return func(c *Config) { c.EnableLeakCheck = enabled }
}

func WithAlignment(alignment uintptr) Option {
	return func(c *Config) { c.AlignmentSize = alignment }
}

func WithAPIVersionConstraint(constraint string) Option {
	return func(c *Config) { c.APIVersionConstraint = constraint }
}

// AllocationInfo holds metadata tracked per live allocation.
type AllocationInfo struct {
	StackTrace []uintptr
	Size       uintptr
	Timestamp  int64
}

// Global allocation functions for convenience.

// Alloc allocates memory using the global allocator.
func Alloc(size uintptr) unsafe.Pointer {
	if GlobalAllocator == nil {
		panic("allocator: global allocator not initialized")
	}

	return GlobalAllocator.Alloc(size)
}

// Free frees memory using the global allocator.
func Free(ptr unsafe.Pointer) {
	if GlobalAllocator == nil {
		panic("allocator: global allocator not initialized")
	}

	GlobalAllocator.Free(ptr)
}

// Realloc reallocates memory using the global allocator.
func Realloc(ptr unsafe.Pointer, newSize uintptr) unsafe.Pointer {
	if GlobalAllocator == nil {
		panic("allocator: global allocator not initialized")
	}

	return GlobalAllocator.Realloc(ptr, newSize)
}

// GetStats returns global allocator statistics.
func GetStats() AllocatorStats {
	if GlobalAllocator == nil {
		return AllocatorStats{}
	}

	return GlobalAllocator.Stats()
}
