package heap

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/joshuapare/slabkit/alloc"
	"github.com/joshuapare/slabkit/internal/buf"
	"github.com/joshuapare/slabkit/internal/logger"
)

var (
	mu  sync.Mutex
	def *alloc.Locked
)

// Init creates the default allocator with opts. A nil opts uses
// alloc.DefaultOptions. Calling Init while an allocator is already installed
// is a no-op; call Teardown first to replace it.
func Init(opts *alloc.Options) error {
	mu.Lock()
	defer mu.Unlock()
	_, err := installLocked(opts)
	return err
}

func installLocked(opts *alloc.Options) (*alloc.Locked, error) {
	if def != nil {
		return def, nil
	}
	l, err := alloc.NewLocked(opts)
	if err != nil {
		return nil, err
	}
	def = l
	return def, nil
}

// instance returns the installed allocator, creating it with default options
// on first use.
func instance() *alloc.Locked {
	mu.Lock()
	defer mu.Unlock()
	l, err := installLocked(nil)
	if err != nil {
		logger.Error("heap init failed", "err", err)
		return nil
	}
	return l
}

// current returns the installed allocator without creating one.
func current() *alloc.Locked {
	mu.Lock()
	defer mu.Unlock()
	return def
}

// Teardown closes the default allocator, unmapping every slab and large
// object. The next entry point call creates a fresh allocator.
func Teardown() error {
	mu.Lock()
	l := def
	def = nil
	mu.Unlock()
	if l == nil {
		return nil
	}
	return l.Close()
}

// Malloc returns a zeroed block of at least size bytes, or nil.
func Malloc(size uintptr) unsafe.Pointer {
	l := instance()
	if l == nil {
		return nil
	}
	p, err := l.Alloc(size)
	if err != nil {
		logger.Debug("malloc failed", "size", size, "err", err)
		return nil
	}
	return p
}

// Calloc returns a zeroed block of count*size bytes, or nil if the product
// overflows or memory is exhausted.
func Calloc(count, size uintptr) unsafe.Pointer {
	l := instance()
	if l == nil {
		return nil
	}
	p, err := l.Calloc(count, size)
	if err != nil {
		logger.Debug("calloc failed", "count", count, "size", size, "err", err)
		return nil
	}
	return p
}

// Realloc resizes ptr. It returns nil when size is zero (ptr is freed) or
// when the new block cannot be allocated (ptr stays valid).
func Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	l := instance()
	if l == nil {
		return nil
	}
	p, err := l.Realloc(ptr, size)
	if err != nil {
		logger.Debug("realloc failed", "ptr", fmt.Sprintf("%p", ptr), "size", size, "err", err)
		return nil
	}
	return p
}

// Free returns ptr to the default allocator. nil is ignored.
func Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	l := current()
	if l == nil {
		logger.Error("free without allocator", "ptr", fmt.Sprintf("%p", ptr))
		return
	}
	if err := l.Free(ptr); err != nil {
		logger.Error("free failed", "ptr", fmt.Sprintf("%p", ptr), "err", err)
	}
}

// UsableSize returns the usable size of ptr, or 0 if ptr is nil or not owned
// by the default allocator.
func UsableSize(ptr unsafe.Pointer) uintptr {
	if ptr == nil {
		return 0
	}
	l := current()
	if l == nil {
		return 0
	}
	n, err := l.UsableSize(ptr)
	if err != nil {
		return 0
	}
	return n
}

// Stats returns a snapshot of the default allocator, or the zero Stats when
// none is installed.
func Stats() alloc.Stats {
	l := current()
	if l == nil {
		return alloc.Stats{}
	}
	return l.Stats()
}

// Bytes returns an n-byte slice over the block at p.
func Bytes(p unsafe.Pointer, n uintptr) []byte {
	return buf.Bytes(p, n)
}
