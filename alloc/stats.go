package alloc

// ClassStats describes one size class.
type ClassStats struct {
	Class     int    `json:"class"`
	BlockSize uint64 `json:"block_size"`
	PerSlab   uint64 `json:"per_slab"`
	Slabs     uint64 `json:"slabs"`
	InUse     uint64 `json:"in_use"`
	Free      uint64 `json:"free"`
}

// Stats is a snapshot of allocator state.
type Stats struct {
	PageSize     uint64       `json:"page_size"`
	Classes      []ClassStats `json:"classes"`
	LargeObjects uint64       `json:"large_objects"`
	LargeBytes   uint64       `json:"large_bytes"`
	MappedBytes  uint64       `json:"mapped_bytes"`
	Allocs       uint64       `json:"allocs"`
	Frees        uint64       `json:"frees"`
}

// Stats returns a snapshot of the size-class table and large-object list.
func (a *Allocator) Stats() Stats {
	s := Stats{
		PageSize:     uint64(a.pageSize),
		Classes:      make([]ClassStats, NumClasses),
		LargeObjects: uint64(a.largeCount),
		LargeBytes:   uint64(a.largeBytes),
		MappedBytes:  uint64(a.mapped),
		Allocs:       a.allocs,
		Frees:        a.frees,
	}
	for class := range a.classes {
		sc := &a.classes[class]
		s.Classes[class] = ClassStats{
			Class:     class,
			BlockSize: uint64(sc.blockSize),
			PerSlab:   uint64(sc.perSlab),
			Slabs:     uint64(sc.slabs),
			InUse:     uint64(sc.inUse),
			Free:      uint64(sc.capacity() - sc.inUse),
		}
	}
	return s
}

// Live returns the number of blocks and large objects still allocated.
func (s Stats) Live() uint64 {
	n := s.LargeObjects
	for _, c := range s.Classes {
		n += c.InUse
	}
	return n
}

// Slabs returns the number of slabs mapped across all classes.
func (s Stats) Slabs() uint64 {
	var n uint64
	for _, c := range s.Classes {
		n += c.Slabs
	}
	return n
}
