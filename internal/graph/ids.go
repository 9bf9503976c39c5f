package graph

import (
	"fmt"
	"sync/atomic"
)

// ID identifies a vertex within its graph. Ids are strictly increasing in
// construction order and never reused.
type ID int64

func (id ID) String() string {
	return fmt.Sprintf("v%d", int64(id))
}

// IDAllocator hands out vertex ids.
//
// Every Graph owns an allocator; none is shared through package state, so
// graphs built on different goroutines never contend. An allocator may be
// injected with WithIDAllocator, for example to continue numbering from a
// persisted model.
//
// Thread-safety: IDAllocator is safe for concurrent use (atomic operations),
// although a Graph only calls it from the goroutine building it.
type IDAllocator struct {
	last atomic.Int64
}

// NewIDAllocator creates an allocator whose first id is 1.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// NewIDAllocatorAt creates an allocator whose first id is start+1.
func NewIDAllocatorAt(start ID) *IDAllocator {
	a := &IDAllocator{}
	a.last.Store(int64(start))
	return a
}

// Next returns a fresh id, greater than every id returned before.
func (a *IDAllocator) Next() ID {
	return ID(a.last.Add(1))
}

// Current returns the last id handed out, or the start value if none was.
func (a *IDAllocator) Current() ID {
	return ID(a.last.Load())
}
