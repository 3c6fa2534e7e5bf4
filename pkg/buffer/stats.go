package buffer

import (
	"sync/atomic"
)

// Snapshot is a point-in-time copy of buffer counters.
type Snapshot struct {
	Writes  int64
	Reads   int64
	Drops   int64
	Size    int64
	MaxSize int64
}

// DropRate returns drops as a fraction of attempted writes.
func (s Snapshot) DropRate() float64 {
	attempted := s.Writes + s.Drops
	if attempted == 0 {
		return 0
	}
	return float64(s.Drops) / float64(attempted)
}

type statistics struct {
	writes  atomic.Int64
	reads   atomic.Int64
	drops   atomic.Int64
	size    atomic.Int64
	maxSize atomic.Int64
}

func (s *statistics) setSize(n int) {
	v := int64(n)
	s.size.Store(v)
	for {
		cur := s.maxSize.Load()
		if v <= cur || s.maxSize.CompareAndSwap(cur, v) {
			return
		}
	}
}

func (s *statistics) snapshot() Snapshot {
	return Snapshot{
		Writes:  s.writes.Load(),
		Reads:   s.reads.Load(),
		Drops:   s.drops.Load(),
		Size:    s.size.Load(),
		MaxSize: s.maxSize.Load(),
	}
}
