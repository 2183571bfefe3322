package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"unsafe"

	"github.com/joshuapare/slabkit/alloc"
	"github.com/joshuapare/slabkit/internal/buf"
)

// errCorrupt reports a block whose contents changed while it was live.
var errCorrupt = errors.New("block contents corrupted")

// workloadConfig drives one synthetic run.
type workloadConfig struct {
	Ops       int
	Seed      uint64
	MaxSize   uintptr
	LargeRate float64 // fraction of allocations above alloc.MaxSmall
	Keep      bool    // leave live blocks allocated at the end
}

// workloadResult summarizes a run.
type workloadResult struct {
	Allocs     int         `json:"allocs"`
	Reallocs   int         `json:"reallocs"`
	Frees      int         `json:"frees"`
	Failures   int         `json:"failures"`
	PeakLive   int         `json:"peak_live"`
	PeakMapped uint64      `json:"peak_mapped_bytes"`
	LiveAtEnd  int         `json:"live_at_end"`
	Stats      alloc.Stats `json:"stats"`
}

type liveBlock struct {
	p    unsafe.Pointer
	size uintptr
	tag  byte
}

// heapAPI is the subset of allocator entry points the workload uses, so it
// can run against a plain or a mutex-guarded allocator.
type heapAPI interface {
	Alloc(size uintptr) (unsafe.Pointer, error)
	Realloc(ptr unsafe.Pointer, size uintptr) (unsafe.Pointer, error)
	Free(ptr unsafe.Pointer) error
	Stats() alloc.Stats
}

// runWorkload performs cfg.Ops random operations against h, checking every
// block's contents before it is resized or freed. Allocation failures are
// counted, not fatal; corruption and bad frees abort the run.
func runWorkload(h heapAPI, cfg workloadConfig) (workloadResult, error) {
	var res workloadResult
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5AB5))
	var live []liveBlock
	var tag byte

	size := func() uintptr {
		if cfg.MaxSize > alloc.MaxSmall && rng.Float64() < cfg.LargeRate {
			return alloc.MaxSmall + 1 + uintptr(rng.Uint64N(uint64(cfg.MaxSize-alloc.MaxSmall)))
		}
		limit := min(cfg.MaxSize, alloc.MaxSmall)
		return 1 + uintptr(rng.Uint64N(uint64(limit)))
	}

	for i := 0; i < cfg.Ops; i++ {
		switch op := rng.IntN(10); {
		case op < 5 || len(live) == 0:
			n := size()
			p, err := h.Alloc(n)
			if err != nil {
				res.Failures++
				continue
			}
			tag++
			b := buf.Bytes(p, n)
			if err := checkFill(b, 0); err != nil {
				return res, fmt.Errorf("fresh block of %d bytes: %w", n, err)
			}
			fillTag(b, tag)
			live = append(live, liveBlock{p: p, size: n, tag: tag})
			res.Allocs++

		case op < 8:
			j := rng.IntN(len(live))
			blk := live[j]
			if err := checkFill(buf.Bytes(blk.p, blk.size), blk.tag); err != nil {
				return res, fmt.Errorf("free of %d-byte block: %w", blk.size, err)
			}
			if err := h.Free(blk.p); err != nil {
				return res, err
			}
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
			res.Frees++

		default:
			j := rng.IntN(len(live))
			blk := live[j]
			n := size()
			p, err := h.Realloc(blk.p, n)
			if err != nil {
				res.Failures++
				continue
			}
			keep := min(blk.size, n)
			if err := checkFill(buf.Bytes(p, keep), blk.tag); err != nil {
				return res, fmt.Errorf("realloc %d -> %d bytes: %w", blk.size, n, err)
			}
			fillTag(buf.Bytes(p, n), blk.tag)
			live[j] = liveBlock{p: p, size: n, tag: blk.tag}
			res.Reallocs++
		}

		res.PeakLive = max(res.PeakLive, len(live))
		if i%64 == 0 {
			res.PeakMapped = max(res.PeakMapped, h.Stats().MappedBytes)
		}
	}

	res.Stats = h.Stats()
	res.PeakMapped = max(res.PeakMapped, res.Stats.MappedBytes)
	res.LiveAtEnd = len(live)
	if cfg.Keep {
		return res, nil
	}
	for _, blk := range live {
		if err := checkFill(buf.Bytes(blk.p, blk.size), blk.tag); err != nil {
			return res, err
		}
		if err := h.Free(blk.p); err != nil {
			return res, err
		}
		res.Frees++
	}
	return res, nil
}

func fillTag(b []byte, tag byte) {
	for i := range b {
		b[i] = tag
	}
}

func checkFill(b []byte, tag byte) error {
	for i, c := range b {
		if c != tag {
			return fmt.Errorf("%w: byte %d is %#x, want %#x", errCorrupt, i, c, tag)
		}
	}
	return nil
}
