package alloc

import (
	"sync"
	"unsafe"
)

// Locked serializes every entry point of an Allocator behind one mutex so it
// can be shared between goroutines.
type Locked struct {
	mu sync.Mutex
	a  *Allocator
}

// NewLocked creates a mutex-guarded Allocator. A nil opts uses DefaultOptions.
func NewLocked(opts *Options) (*Locked, error) {
	a, err := New(opts)
	if err != nil {
		return nil, err
	}
	return &Locked{a: a}, nil
}

func (l *Locked) Alloc(size uintptr) (unsafe.Pointer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Alloc(size)
}

func (l *Locked) Calloc(count, size uintptr) (unsafe.Pointer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Calloc(count, size)
}

func (l *Locked) Realloc(ptr unsafe.Pointer, size uintptr) (unsafe.Pointer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Realloc(ptr, size)
}

func (l *Locked) Free(ptr unsafe.Pointer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Free(ptr)
}

func (l *Locked) UsableSize(ptr unsafe.Pointer) (uintptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.UsableSize(ptr)
}

func (l *Locked) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Stats()
}

func (l *Locked) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Close()
}
