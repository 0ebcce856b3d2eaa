package audio

import (
	"runtime"
	"sync/atomic"
)

// Fence provides ordered synchronization between the main thread and the
// audio thread. Begin schedules a marker task; Wait spins until every marker
// scheduled so far has been executed, at which point all effects of tasks
// submitted before the fence are visible to the waiter (the counter decrement
// is an atomic release, the waiter's load an acquire).
//
// Fence operations must never be called from the audio thread itself: the
// marker task could then never run while Wait spins, deadlocking the worker.
// This is enforced with a panic.
type Fence struct {
	thread  *Thread
	counter *atomic.Int32
}

// NewFence creates a fence bound to the given audio thread.
//
// Parameters:
//   - t: the audio thread to synchronize against
//
// Returns:
//   - *Fence: the newly created fence
func NewFence(t *Thread) *Fence {
	return &Fence{
		thread:  t,
		counter: new(atomic.Int32),
	}
}

// Begin increments the fence counter and schedules a task that decrements it
// once all previously-submitted audio work has run. Panics if called from the
// audio thread.
func (f *Fence) Begin() {
	if f.thread.OnAudioThread() {
		panic("audio: Fence.Begin called from the audio thread")
	}
	f.counter.Add(1)
	counter := f.counter
	f.thread.SubmitTask(func() {
		counter.Add(-1)
	}, "fence", ExecuteAsync)
}

// Wait spin-yields until the fence counter reaches zero. Panics if called
// from the audio thread.
func (f *Fence) Wait() {
	if f.thread.OnAudioThread() {
		panic("audio: Fence.Wait called from the audio thread")
	}
	for f.counter.Load() > 0 {
		runtime.Gosched()
	}
}

// BeginAndWait is the composition of Begin followed by Wait.
func (f *Fence) BeginAndWait() {
	f.Begin()
	f.Wait()
}
