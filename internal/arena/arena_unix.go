//go:build unix

package arena

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// newPlatform reserves totalSize bytes as an anonymous, private mapping.
// The kernel commits pages lazily as they are touched, so reserving a
// large arena up front is cheap even when most segments stay EMPTY.
func newPlatform(totalSize, initialCommit uintptr) (*Arena, error) {
	mem, err := unix.Mmap(-1, 0, int(totalSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("arena: mmap %d bytes failed: %w", totalSize, err)
	}

	return &Arena{
		backing: mem,
		size:    totalSize,
		release: func() error { return unix.Munmap(mem) },
	}, nil
}
