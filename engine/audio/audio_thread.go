package audio

import (
	"bytes"
	"log"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oloengine/olo/common"
)

// TaskQueueCapacity is the fixed number of slots in the audio task queue.
// Must be a power of two. Overflowing submissions are dropped with a warning.
const TaskQueueCapacity = 1024

// workerSleep is the pause between audio thread loop iterations, keeping the
// loop responsive without spinning a core at 100%.
const workerSleep = 100 * time.Microsecond

// ExecutionPolicy controls how SubmitTask behaves when called from the audio
// thread itself.
type ExecutionPolicy int

const (
	// ExecuteNow runs the task inline when submitted from the audio thread,
	// instead of enqueueing it behind already-pending tasks.
	ExecuteNow ExecutionPolicy = iota
	// ExecuteAsync always enqueues the task, even from the audio thread.
	ExecuteAsync
)

// Task is a unit of deferred work executed on the audio thread.
type Task struct {
	// Fn is the callable to execute.
	Fn func()
	// Name identifies the task in logs.
	Name string
}

// Thread is a dedicated worker goroutine (pinned to an OS thread) that
// executes deferred audio work in FIFO order. Submissions from any goroutine
// go through a single-reader/multi-writer lock-free FIFO; the worker is the
// only reader.
type Thread struct {
	queue  *common.SingleReaderMultiWriterFIFO[Task]
	active atomic.Bool

	workerID atomic.Uint64 // goroutine ID of the worker, 0 when stopped

	lastUpdateDuration atomic.Int64 // nanoseconds taken by the last OnUpdate

	wg sync.WaitGroup
}

// NewThread creates an audio thread. The thread does not run until Start is
// called.
//
// Returns:
//   - *Thread: the newly created audio thread
func NewThread() *Thread {
	return &Thread{
		queue: common.NewSingleReaderMultiWriterFIFO[Task](TaskQueueCapacity),
	}
}

// Start atomically marks the thread active and spawns the worker goroutine.
// Safe to call multiple times; subsequent calls while running are no-ops.
func (t *Thread) Start() {
	if !t.active.CompareAndSwap(false, true) {
		return
	}
	t.wg.Add(1)
	go t.run()
}

// Stop clears the active flag and joins the worker. Pending tasks that were
// already dequeued finish; tasks still in the queue are drained on the final
// loop iteration before the worker exits.
func (t *Thread) Stop() {
	if !t.active.CompareAndSwap(true, false) {
		return
	}
	t.wg.Wait()
}

// Running reports whether the worker goroutine is active.
func (t *Thread) Running() bool {
	return t.active.Load()
}

// OnAudioThread reports whether the calling goroutine is the audio worker.
//
// Returns:
//   - bool: true when called from within an audio task
func (t *Thread) OnAudioThread() bool {
	id := t.workerID.Load()
	return id != 0 && id == currentGoroutineID()
}

// SubmitTask schedules a callable for execution on the audio thread. With
// ExecuteNow and a call site already on the audio thread, the callable runs
// inline. Otherwise the task is enqueued; if the queue is full the task is
// dropped and a warning logged.
//
// Parameters:
//   - fn: the callable to execute
//   - name: identifier for the task, used in logs
//   - policy: ExecuteNow or ExecuteAsync
//
// Returns:
//   - bool: true if the task ran or was enqueued, false if dropped
func (t *Thread) SubmitTask(fn func(), name string, policy ExecutionPolicy) bool {
	if policy == ExecuteNow && t.OnAudioThread() {
		t.invoke(Task{Fn: fn, Name: name})
		return true
	}
	if !t.queue.Push(Task{Fn: fn, Name: name}) {
		log.Printf("[Audio] task queue full, dropping task %q", name)
		return false
	}
	return true
}

// LastUpdateDuration returns the wall time the most recent OnUpdate took,
// for diagnostics.
func (t *Thread) LastUpdateDuration() time.Duration {
	return time.Duration(t.lastUpdateDuration.Load())
}

// run is the worker loop. Locks the goroutine to an OS thread so audio
// libraries with thread-affinity requirements behave.
func (t *Thread) run() {
	defer t.wg.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	t.workerID.Store(currentGoroutineID())
	defer t.workerID.Store(0)

	for t.active.Load() {
		t.onUpdate()
		time.Sleep(workerSleep)
	}

	// Drain whatever was enqueued before the active flag cleared.
	t.onUpdate()
}

// onUpdate pops and executes all pending tasks in FIFO order, recording the
// time taken.
func (t *Thread) onUpdate() {
	start := time.Now()
	for {
		task, ok := t.queue.Pop()
		if !ok {
			break
		}
		t.invoke(task)
	}
	t.lastUpdateDuration.Store(int64(time.Since(start)))
}

// invoke runs a single task, recovering from panics so one failing task
// cannot kill the worker.
func (t *Thread) invoke(task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Audio] task %q panicked: %v", task.Name, r)
		}
	}()
	if task.Fn != nil {
		task.Fn()
	}
}

// currentGoroutineID extracts the numeric goroutine ID from the runtime stack
// header. Only used for the audio-thread identity check; never in a hot path.
func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Header has the form "goroutine 123 [running]:".
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
