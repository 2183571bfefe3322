//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package vmem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

type system struct {
	pageSize int
}

// System returns the host's anonymous mapping facility.
func System() Source {
	return system{pageSize: unix.Getpagesize()}
}

// Map maps size bytes of private anonymous memory. The kernel hands out
// zero-filled pages aligned to the page size.
func (s system) Map(size int) ([]byte, error) {
	if err := checkSize(size, s.pageSize); err != nil {
		return nil, err
	}
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("vmem: mmap %d bytes: %w", size, err)
	}
	return region, nil
}

// Unmap releases a region returned by Map.
func (s system) Unmap(region []byte) error {
	if err := unix.Munmap(region); err != nil {
		return fmt.Errorf("vmem: munmap %d bytes: %w", len(region), err)
	}
	return nil
}

func (s system) PageSize() int {
	return s.pageSize
}
