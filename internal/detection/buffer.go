package detection

// Buffer capacities for the per-user rolling windows
const (
	LocationBufferSize = 100
	HealthBufferSize   = 50
	CheckInBufferSize  = 64
)

// Buffer is a fixed-capacity FIFO window; pushing onto a full buffer
// evicts the oldest item
type Buffer[T any] struct {
	items    []T
	capacity int
}

// NewBuffer creates an empty buffer holding at most capacity items
func NewBuffer[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push appends v, dropping the oldest item when full
func (b *Buffer[T]) Push(v T) {
	if len(b.items) == b.capacity {
		copy(b.items, b.items[1:])
		b.items = b.items[:len(b.items)-1]
	}
	b.items = append(b.items, v)
}

// Len returns the number of buffered items
func (b *Buffer[T]) Len() int {
	return len(b.items)
}

// Cap returns the buffer capacity
func (b *Buffer[T]) Cap() int {
	return b.capacity
}

// Items returns a copy of the buffered items, oldest first
func (b *Buffer[T]) Items() []T {
	out := make([]T, len(b.items))
	copy(out, b.items)
	return out
}

// Last returns a copy of the newest n items, oldest first
func (b *Buffer[T]) Last(n int) []T {
	if n > len(b.items) {
		n = len(b.items)
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	copy(out, b.items[len(b.items)-n:])
	return out
}

// Newest returns the most recent item
func (b *Buffer[T]) Newest() (T, bool) {
	var zero T
	if len(b.items) == 0 {
		return zero, false
	}
	return b.items[len(b.items)-1], true
}
