//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly && !windows

package vmem

import "os"

type system struct {
	pageSize int
}

// System returns a source that refuses every mapping on platforms without an
// anonymous mapping facility.
func System() Source {
	return system{pageSize: os.Getpagesize()}
}

func (s system) Map(size int) ([]byte, error) {
	return nil, ErrUnsupported
}

func (s system) Unmap(region []byte) error {
	return ErrUnsupported
}

func (s system) PageSize() int {
	return s.pageSize
}
