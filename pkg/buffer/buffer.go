// Package buffer provides a generic, thread-safe bounded FIFO with overflow
// policies. SimuCore uses it to hand inbound signal mutations from network
// goroutines to the tick loop.
package buffer

// Buffer is a bounded FIFO of T.
type Buffer[T any] interface {
	// Write appends item. When the buffer is full the overflow policy decides
	// which item is discarded; Write itself only fails after Close.
	Write(item T) error

	// Read removes the oldest item.
	Read() (T, bool)

	// ReadBatch removes up to max items, oldest first.
	ReadBatch(max int) []T

	// Drain removes every buffered item, oldest first.
	Drain() []T

	Size() int
	Capacity() int
	Stats() Snapshot
	Close() error
}

// OverflowPolicy defines what a full buffer discards on Write.
type OverflowPolicy int

const (
	// DropOldest evicts the oldest item to make room for the new one.
	DropOldest OverflowPolicy = iota
	// DropNewest discards the incoming item.
	DropNewest
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// DropCallback receives every item discarded by the overflow policy.
type DropCallback[T any] func(item T)

// NewCircularBuffer creates a ring buffer holding at most capacity items.
// A capacity below 1 is raised to 1. An error is returned only if metrics
// registration fails.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	return newCircularBuffer(capacity, applyOptions(options...))
}
