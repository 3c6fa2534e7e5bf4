package buffer

import (
	"sync"

	"github.com/c360/simucore/errors"
)

type circularBuffer[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // next read position
	closed   bool

	stats   statistics
	metrics *bufferMetrics
	opts    *bufferOptions[T]
}

func newCircularBuffer[T any](capacity int, opts *bufferOptions[T]) (*circularBuffer[T], error) {
	if capacity <= 0 {
		capacity = 1
	}

	var metrics *bufferMetrics
	if opts.metricsReg != nil {
		var err error
		metrics, err = newBufferMetrics(opts.metricsReg, opts.metricsName)
		if err != nil {
			return nil, errors.WrapTransient(err, "buffer", "newCircularBuffer", "metrics registration")
		}
	}

	return &circularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		metrics:  metrics,
		opts:     opts,
	}, nil
}

func (cb *circularBuffer[T]) Write(item T) error {
	var (
		dropped    T
		hasDropped bool
	)

	cb.mu.Lock()
	if cb.closed {
		cb.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "Buffer", "Write", "buffer closed")
	}

	if cb.size == cb.capacity {
		cb.stats.drops.Add(1)
		cb.metrics.recordDrop()

		if cb.opts.overflowPolicy == DropNewest {
			cb.mu.Unlock()
			cb.notifyDrop(item)
			return nil
		}

		dropped, hasDropped = cb.pop()
	}

	cb.items[cb.head] = item
	cb.head = (cb.head + 1) % cb.capacity
	cb.size++
	cb.stats.writes.Add(1)
	cb.stats.setSize(cb.size)
	cb.metrics.recordWrite(cb.size)
	cb.mu.Unlock()

	if hasDropped {
		cb.notifyDrop(dropped)
	}
	return nil
}

func (cb *circularBuffer[T]) notifyDrop(item T) {
	if cb.opts.dropCallback != nil {
		cb.opts.dropCallback(item)
	}
}

// pop removes the tail item. Caller holds mu and has checked size > 0.
func (cb *circularBuffer[T]) pop() (T, bool) {
	var zero T
	item := cb.items[cb.tail]
	cb.items[cb.tail] = zero
	cb.tail = (cb.tail + 1) % cb.capacity
	cb.size--
	return item, true
}

func (cb *circularBuffer[T]) Read() (T, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.size == 0 {
		var zero T
		return zero, false
	}
	item, ok := cb.pop()
	cb.stats.reads.Add(1)
	cb.stats.setSize(cb.size)
	cb.metrics.recordReads(1, cb.size)
	return item, ok
}

func (cb *circularBuffer[T]) ReadBatch(max int) []T {
	if max <= 0 {
		return nil
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.size == 0 {
		return nil
	}
	n := min(max, cb.size)
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		item, _ := cb.pop()
		out = append(out, item)
	}
	cb.stats.reads.Add(int64(n))
	cb.stats.setSize(cb.size)
	cb.metrics.recordReads(n, cb.size)
	return out
}

func (cb *circularBuffer[T]) Drain() []T {
	return cb.ReadBatch(cb.capacity)
}

func (cb *circularBuffer[T]) Size() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.size
}

func (cb *circularBuffer[T]) Capacity() int {
	return cb.capacity
}

func (cb *circularBuffer[T]) Stats() Snapshot {
	return cb.stats.snapshot()
}

// Close rejects further writes. Items already buffered can still be read.
func (cb *circularBuffer[T]) Close() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.closed = true
	return nil
}
