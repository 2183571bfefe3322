package vmem

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported indicates that the platform has no anonymous mapping facility.
	ErrUnsupported = errors.New("vmem: anonymous mappings not supported on this platform")

	// ErrInvalidSize indicates a size that is not a positive multiple of the page size.
	ErrInvalidSize = errors.New("vmem: size must be a positive multiple of the page size")

	// ErrLimit indicates that a Limited source would exceed its byte budget.
	ErrLimit = errors.New("vmem: mapping limit exceeded")
)

// Source maps and unmaps anonymous memory regions.
type Source interface {
	// Map returns a zero-filled, page-aligned region of exactly size bytes.
	// size must be a positive multiple of PageSize.
	Map(size int) ([]byte, error)

	// Unmap releases a region previously returned by Map. The slice must
	// cover the whole region (same start, same length).
	Unmap(region []byte) error

	// PageSize reports the mapping granularity in bytes.
	PageSize() int
}

// checkSize validates a mapping request against the page size.
func checkSize(size, pageSize int) error {
	if size <= 0 || size%pageSize != 0 {
		return fmt.Errorf("%w: %d (page size %d)", ErrInvalidSize, size, pageSize)
	}
	return nil
}

// Limited caps the number of bytes a Source may have mapped at once.
type Limited struct {
	src   Source
	limit int
	used  int
	live  int
}

// NewLimited wraps src so that no more than limit bytes are mapped at a time.
func NewLimited(src Source, limit int) *Limited {
	return &Limited{src: src, limit: limit}
}

// Map forwards to the wrapped source unless the request would exceed the limit.
func (l *Limited) Map(size int) ([]byte, error) {
	if size > l.limit-l.used {
		return nil, fmt.Errorf("%w: want %d bytes, %d of %d in use", ErrLimit, size, l.used, l.limit)
	}
	region, err := l.src.Map(size)
	if err != nil {
		return nil, err
	}
	l.used += len(region)
	l.live++
	return region, nil
}

// Unmap forwards to the wrapped source and returns the bytes to the budget.
func (l *Limited) Unmap(region []byte) error {
	if err := l.src.Unmap(region); err != nil {
		return err
	}
	l.used -= len(region)
	l.live--
	return nil
}

// PageSize reports the wrapped source's page size.
func (l *Limited) PageSize() int {
	return l.src.PageSize()
}

// InUse returns the number of bytes currently mapped through l.
func (l *Limited) InUse() int {
	return l.used
}

// Live returns the number of regions currently mapped through l.
func (l *Limited) Live() int {
	return l.live
}

// SetLimit changes the byte budget. Regions already mapped are unaffected.
func (l *Limited) SetLimit(limit int) {
	l.limit = limit
}
