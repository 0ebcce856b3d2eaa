package common

import (
	"fmt"
	"sync/atomic"
)

// SingleReaderSingleWriterFIFO is a wait-free ring buffer for exactly one
// reader goroutine and one writer goroutine. Read and write positions are
// 32-bit unsigned atomics that advance monotonically; slot indexing uses the
// low bits, so unsigned wraparound of the positions is harmless. The capacity
// must be a power of two.
type SingleReaderSingleWriterFIFO[T any] struct {
	slots []T
	mask  uint32

	readPos  atomic.Uint32
	writePos atomic.Uint32
}

// NewSingleReaderSingleWriterFIFO creates a FIFO with the given capacity.
// Panics if the capacity is zero or not a power of two.
//
// Parameters:
//   - capacity: number of slots (must be a power of two)
//
// Returns:
//   - *SingleReaderSingleWriterFIFO[T]: the newly created FIFO
func NewSingleReaderSingleWriterFIFO[T any](capacity uint32) *SingleReaderSingleWriterFIFO[T] {
	if capacity == 0 || capacity&(capacity-1) != 0 {
		panic(fmt.Sprintf("common: FIFO capacity %d is not a power of two", capacity))
	}
	return &SingleReaderSingleWriterFIFO[T]{
		slots: make([]T, capacity),
		mask:  capacity - 1,
	}
}

// Capacity returns the total number of slots in the FIFO.
func (f *SingleReaderSingleWriterFIFO[T]) Capacity() uint32 {
	return f.mask + 1
}

// Used returns the number of occupied slots. The 32-bit unsigned subtraction
// tolerates position wraparound.
func (f *SingleReaderSingleWriterFIFO[T]) Used() uint32 {
	return f.writePos.Load() - f.readPos.Load()
}

// Free returns the number of unoccupied slots.
func (f *SingleReaderSingleWriterFIFO[T]) Free() uint32 {
	return f.Capacity() - f.Used()
}

// Push writes a value into the next free slot. Must only be called from the
// single writer goroutine.
//
// Parameters:
//   - value: the value to enqueue
//
// Returns:
//   - bool: true if the value was enqueued, false if the FIFO was full
func (f *SingleReaderSingleWriterFIFO[T]) Push(value T) bool {
	if f.Free() == 0 {
		return false
	}
	w := f.writePos.Load()
	f.slots[w&f.mask] = value
	// The store below publishes the slot write to the reader; atomic stores in
	// Go have release semantics with respect to prior writes.
	f.writePos.Store(w + 1)
	return true
}

// Pop moves the oldest value out of the FIFO. Must only be called from the
// single reader goroutine.
//
// Returns:
//   - T: the dequeued value, or the zero value if the FIFO was empty
//   - bool: true if a value was dequeued
func (f *SingleReaderSingleWriterFIFO[T]) Pop() (T, bool) {
	var zero T
	if f.Used() == 0 {
		return zero, false
	}
	r := f.readPos.Load()
	value := f.slots[r&f.mask]
	f.slots[r&f.mask] = zero // release references held by the slot
	f.readPos.Store(r + 1)
	return value, true
}

// SingleReaderMultiWriterFIFO is a ring buffer for exactly one reader
// goroutine and any number of writer goroutines. Writers serialize through an
// atomic-flag spin lock; the reader stays lock-free. Capacity must be a power
// of two.
type SingleReaderMultiWriterFIFO[T any] struct {
	fifo      *SingleReaderSingleWriterFIFO[T]
	writeLock atomic.Bool
}

// NewSingleReaderMultiWriterFIFO creates a multi-writer FIFO with the given
// capacity. Panics if the capacity is zero or not a power of two.
//
// Parameters:
//   - capacity: number of slots (must be a power of two)
//
// Returns:
//   - *SingleReaderMultiWriterFIFO[T]: the newly created FIFO
func NewSingleReaderMultiWriterFIFO[T any](capacity uint32) *SingleReaderMultiWriterFIFO[T] {
	return &SingleReaderMultiWriterFIFO[T]{
		fifo: NewSingleReaderSingleWriterFIFO[T](capacity),
	}
}

// Capacity returns the total number of slots in the FIFO.
func (f *SingleReaderMultiWriterFIFO[T]) Capacity() uint32 {
	return f.fifo.Capacity()
}

// Used returns the number of occupied slots.
func (f *SingleReaderMultiWriterFIFO[T]) Used() uint32 {
	return f.fifo.Used()
}

// Push writes a value into the next free slot. Safe to call from any
// goroutine; concurrent writers spin briefly on an atomic flag.
//
// Parameters:
//   - value: the value to enqueue
//
// Returns:
//   - bool: true if the value was enqueued, false if the FIFO was full
func (f *SingleReaderMultiWriterFIFO[T]) Push(value T) bool {
	for !f.writeLock.CompareAndSwap(false, true) {
	}
	ok := f.fifo.Push(value)
	f.writeLock.Store(false)
	return ok
}

// Pop moves the oldest value out of the FIFO. Must only be called from the
// single reader goroutine.
//
// Returns:
//   - T: the dequeued value, or the zero value if the FIFO was empty
//   - bool: true if a value was dequeued
func (f *SingleReaderMultiWriterFIFO[T]) Pop() (T, bool) {
	return f.fifo.Pop()
}
