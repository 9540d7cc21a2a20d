package journal

import "sync"

// growableBuffer is a thread-safe buffer that doubles its capacity when it
// reaches 70% full. Recording a fill must never block the feed, so the
// journal absorbs bursts here instead of applying backpressure.
type growableBuffer[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int
	tail     int
	count    int
	capacity int
	closed   bool
}

func newGrowableBuffer[T any](initialCapacity int) *growableBuffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &growableBuffer[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
	}
}

// send adds an item, growing first when at 70% capacity. Returns false if
// the buffer is closed.
func (b *growableBuffer[T]) send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	threshold := max((b.capacity*70)/100, 1)
	if b.count+1 >= threshold {
		b.grow()
	}

	b.buf[b.tail] = item
	b.tail = (b.tail + 1) % b.capacity
	b.count++
	return true
}

// tryReceive removes one item without blocking.
func (b *growableBuffer[T]) tryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		var zero T
		return zero, false
	}

	item := b.buf[b.head]
	var zero T
	b.buf[b.head] = zero
	b.head = (b.head + 1) % b.capacity
	b.count--
	return item, true
}

// drainTo removes up to max items, all of them when max <= 0.
func (b *growableBuffer[T]) drainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	n := b.count
	if max > 0 && max < n {
		n = max
	}

	result := make([]T, n)
	for i := 0; i < n; i++ {
		result[i] = b.buf[b.head]
		var zero T
		b.buf[b.head] = zero
		b.head = (b.head + 1) % b.capacity
		b.count--
	}
	return result
}

func (b *growableBuffer[T]) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

func (b *growableBuffer[T]) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// grow doubles the capacity. Caller holds the lock.
func (b *growableBuffer[T]) grow() {
	newCapacity := b.capacity * 2
	newBuf := make([]T, newCapacity)

	if b.count > 0 {
		if b.head < b.tail {
			copy(newBuf, b.buf[b.head:b.tail])
		} else {
			n := copy(newBuf, b.buf[b.head:])
			copy(newBuf[n:], b.buf[:b.tail])
		}
	}

	b.buf = newBuf
	b.head = 0
	b.tail = b.count
	b.capacity = newCapacity
}
