//go:build windows

package vmem

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

type system struct {
	pageSize int
}

// System returns the host's anonymous mapping facility.
func System() Source {
	return system{pageSize: os.Getpagesize()}
}

// Map reserves and commits size bytes. Committed pages are zero-filled and
// the base address is aligned to the allocation granularity.
func (s system) Map(size int) ([]byte, error) {
	if err := checkSize(size, s.pageSize); err != nil {
		return nil, err
	}
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("vmem: VirtualAlloc %d bytes: %w", size, err)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

// Unmap releases the whole reservation backing region.
func (s system) Unmap(region []byte) error {
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(region)))
	if err := windows.VirtualFree(addr, 0, windows.MEM_RELEASE); err != nil {
		return fmt.Errorf("vmem: VirtualFree %d bytes: %w", len(region), err)
	}
	return nil
}

func (s system) PageSize() int {
	return s.pageSize
}
