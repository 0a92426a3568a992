//go:build !unix

package arena

import "runtime"

// newPlatform falls back to a plain Go-managed buffer on build targets
// without a unix mmap. It is pinned with KeepAlive so the garbage
// collector never reclaims it out from under outstanding pointers handed
// out by Allocate/AddressAt.
func newPlatform(totalSize, initialCommit uintptr) (*Arena, error) {
	mem := make([]byte, totalSize)
	runtime.KeepAlive(mem)

	return &Arena{
		backing: mem,
		size:    totalSize,
		release: func() error { runtime.KeepAlive(mem); return nil },
	}, nil
}
