// File: pool/ring.go
// Author: momentics <momentics@gmail.com>
//
// Fixed-capacity FIFO ring for a single owning goroutine. The arena keeps its
// free region handles here; the owner thread is the only reader and writer,
// so no atomics are involved.

package pool

// Ring is a fixed-capacity FIFO (power-of-two size).
type Ring[T any] struct {
	data []T
	mask uint64
	head uint64
	tail uint64
}

// NewRing allocates a ring with size slots (must be power of two).
func NewRing[T any](size uint64) *Ring[T] {
	if size == 0 || (size&(size-1)) != 0 {
		panic("pool: ring size must be power of two")
	}
	return &Ring[T]{
		data: make([]T, size),
		mask: size - 1,
	}
}

// Enqueue adds an item; returns false if full.
func (r *Ring[T]) Enqueue(val T) bool {
	if r.tail-r.head == uint64(len(r.data)) {
		return false
	}
	r.data[r.tail&r.mask] = val
	r.tail++
	return true
}

// Dequeue removes and returns (item, ok); ok==false if empty.
func (r *Ring[T]) Dequeue() (res T, ok bool) {
	if r.head == r.tail {
		return res, false
	}
	idx := r.head & r.mask
	res = r.data[idx]
	var zero T
	r.data[idx] = zero
	r.head++
	return res, true
}

// Len returns number of items in the ring.
func (r *Ring[T]) Len() int {
	return int(r.tail - r.head)
}

// Cap returns ring capacity.
func (r *Ring[T]) Cap() int {
	return len(r.data)
}

// nextPowerOfTwo returns the next power-of-two >= v (v > 0).
func nextPowerOfTwo(v uint64) uint64 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	v++
	return v
}
