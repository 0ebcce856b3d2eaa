package audio

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadExecutesTasksInOrder(t *testing.T) {
	th := NewThread()
	th.Start()
	defer th.Stop()

	var order []int
	var mu atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		th.SubmitTask(func() {
			order = append(order, i) // single reader: only the worker touches this
			if mu.Add(1) == 5 {
				close(done)
			}
		}, "ordered", ExecuteAsync)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not complete")
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestFenceOrdering(t *testing.T) {
	th := NewThread()
	th.Start()
	defer th.Stop()

	var flag atomic.Int32
	th.SubmitTask(func() {
		flag.Store(1)
	}, "set-flag", ExecuteAsync)

	f := NewFence(th)
	f.BeginAndWait()

	// The fence marker runs after the flag task; its effects must be visible.
	assert.Equal(t, int32(1), flag.Load())
}

func TestFencePanicsOnAudioThread(t *testing.T) {
	th := NewThread()
	th.Start()
	defer th.Stop()

	f := NewFence(th)
	panicked := make(chan bool, 1)
	th.SubmitTask(func() {
		defer func() {
			panicked <- recover() != nil
		}()
		f.Begin()
	}, "fence-on-audio-thread", ExecuteAsync)

	select {
	case p := <-panicked:
		assert.True(t, p, "Fence.Begin on the audio thread must panic")
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestExecuteNowRunsInlineOnAudioThread(t *testing.T) {
	th := NewThread()
	th.Start()
	defer th.Stop()

	result := make(chan bool, 1)
	th.SubmitTask(func() {
		ran := false
		th.SubmitTask(func() { ran = true }, "inline", ExecuteNow)
		// ExecuteNow from the audio thread runs before SubmitTask returns.
		result <- ran
	}, "outer", ExecuteAsync)

	select {
	case ran := <-result:
		assert.True(t, ran)
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestTaskPanicDoesNotKillThread(t *testing.T) {
	th := NewThread()
	th.Start()
	defer th.Stop()

	th.SubmitTask(func() { panic("boom") }, "panicking", ExecuteAsync)

	var after atomic.Bool
	done := make(chan struct{})
	th.SubmitTask(func() {
		after.Store(true)
		close(done)
	}, "after-panic", ExecuteAsync)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("thread died after task panic")
	}
	require.True(t, after.Load())
}

func TestStopDrainsQueue(t *testing.T) {
	th := NewThread()
	th.Start()

	var count atomic.Int32
	for i := 0; i < 20; i++ {
		th.SubmitTask(func() { count.Add(1) }, "drain", ExecuteAsync)
	}
	th.Stop()

	assert.Equal(t, int32(20), count.Load())
	assert.False(t, th.Running())
}
