package renderer

import (
	"fmt"
	"log"
	"sync"
)

// ResourceKind categorizes GPU resources tracked by the ResourceTable.
type ResourceKind uint8

const (
	// ResourceKindBuffer is a vertex, index, uniform, storage, or indirect buffer.
	ResourceKindBuffer ResourceKind = iota

	// ResourceKindTexture is a sampled or storage texture.
	ResourceKindTexture

	// ResourceKindSampler is a texture sampler.
	ResourceKindSampler

	// ResourceKindShader is a compiled shader module.
	ResourceKindShader

	// ResourceKindFramebuffer is an offscreen render target.
	ResourceKindFramebuffer

	// ResourceKindPipeline is a render or compute pipeline.
	ResourceKindPipeline
)

// Handle is a generational reference to a GPU resource owned by a ResourceTable.
// A Handle stays valid until the last reference is released and the slot is
// reused; resolving a stale handle fails rather than aliasing the new occupant.
type Handle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether h is the zero handle, which never resolves.
//
// Returns:
//   - bool: true if h was never acquired from a table
func (h Handle) IsZero() bool {
	return h.generation == 0
}

// LiveReference describes one live entry in the resource table, used by the
// profiler overlay and leak diagnostics at shutdown.
type LiveReference struct {
	// Kind is the resource category.
	Kind ResourceKind

	// Name is the debug label supplied at acquisition.
	Name string

	// RefCount is the current reference count.
	RefCount int
}

// tableSlot is one entry in the resource table. A slot is live while refCount > 0,
// pending while queued for deferred destruction, and free otherwise.
type tableSlot struct {
	kind       ResourceKind
	name       string
	generation uint32
	refCount   int
	destroy    func()
	live       bool
}

// resourceTable is the implementation of the ResourceTable interface.
type resourceTable struct {
	mu       sync.Mutex
	slots    []tableSlot
	freeList []uint32
	pending  []uint32
	shutdown bool
}

// ResourceTable tracks reference-counted GPU resources behind generational
// handles. Dropping the last reference never destroys the resource inline;
// the destructor is queued and runs when the render thread calls
// FlushReleases, so a reference may be released from any thread.
//
// After Shutdown the table is invalid: every operation becomes a no-op, which
// guards against double-free when engine subsystems are torn down in an
// unspecified order at program exit.
type ResourceTable interface {
	// Acquire registers a resource and returns a handle with reference count 1.
	//
	// Parameters:
	//   - kind: the resource category
	//   - name: a debug label for leak reports
	//   - destroy: the destructor to run on the render thread once the last reference drops
	//
	// Returns:
	//   - Handle: the generational handle for the new resource
	Acquire(kind ResourceKind, name string, destroy func()) Handle

	// Retain increments the reference count of a live handle.
	//
	// Parameters:
	//   - h: the handle to retain
	//
	// Returns:
	//   - error: an error if the handle is stale or the table is shut down
	Retain(h Handle) error

	// Release decrements the reference count. When the count reaches zero the
	// destructor is queued for the next FlushReleases call. Releasing a stale
	// handle or releasing after Shutdown is a no-op.
	//
	// Parameters:
	//   - h: the handle to release
	Release(h Handle)

	// Resolve reports whether a handle still refers to a live resource.
	//
	// Parameters:
	//   - h: the handle to check
	//
	// Returns:
	//   - bool: true if the handle is live
	Resolve(h Handle) bool

	// FlushReleases runs all queued destructors. Must be called on the render
	// thread, typically once per frame after command submission.
	//
	// Returns:
	//   - int: the number of destructors run
	FlushReleases() int

	// LiveCount returns the number of live resources.
	//
	// Returns:
	//   - int: the live resource count
	LiveCount() int

	// LiveReferences returns a snapshot of all live entries for diagnostics.
	//
	// Returns:
	//   - []LiveReference: the live entries, in slot order
	LiveReferences() []LiveReference

	// Shutdown flushes all queued destructors, logs any still-live resources as
	// leaks, and marks the table invalid. Subsequent operations are no-ops.
	Shutdown()
}

var _ ResourceTable = &resourceTable{}

// NewResourceTable creates an empty ResourceTable.
//
// Returns:
//   - ResourceTable: a ready-to-use table
func NewResourceTable() ResourceTable {
	return &resourceTable{}
}

func (t *resourceTable) Acquire(kind ResourceKind, name string, destroy func()) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shutdown {
		return Handle{}
	}

	var idx uint32
	if n := len(t.freeList); n > 0 {
		idx = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
	} else {
		idx = uint32(len(t.slots))
		t.slots = append(t.slots, tableSlot{})
	}

	slot := &t.slots[idx]
	slot.kind = kind
	slot.name = name
	slot.generation++
	slot.refCount = 1
	slot.destroy = destroy
	slot.live = true

	return Handle{index: idx, generation: slot.generation}
}

func (t *resourceTable) Retain(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shutdown {
		return fmt.Errorf("resource table is shut down")
	}
	slot := t.lookup(h)
	if slot == nil {
		return fmt.Errorf("stale resource handle (index %d, generation %d)", h.index, h.generation)
	}
	slot.refCount++
	return nil
}

func (t *resourceTable) Release(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shutdown {
		return
	}
	slot := t.lookup(h)
	if slot == nil {
		return
	}
	slot.refCount--
	if slot.refCount > 0 {
		return
	}
	slot.live = false
	t.pending = append(t.pending, h.index)
}

func (t *resourceTable) Resolve(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shutdown {
		return false
	}
	return t.lookup(h) != nil
}

func (t *resourceTable) FlushReleases() int {
	t.mu.Lock()
	pending := t.pending
	t.pending = nil
	destructors := make([]func(), 0, len(pending))
	for _, idx := range pending {
		slot := &t.slots[idx]
		if slot.destroy != nil {
			destructors = append(destructors, slot.destroy)
		}
		slot.destroy = nil
		t.freeList = append(t.freeList, idx)
	}
	t.mu.Unlock()

	// Destructors run outside the lock so a destroy callback can touch the
	// table without deadlocking.
	for _, destroy := range destructors {
		destroy()
	}
	return len(destructors)
}

func (t *resourceTable) LiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for i := range t.slots {
		if t.slots[i].live {
			count++
		}
	}
	return count
}

func (t *resourceTable) LiveReferences() []LiveReference {
	t.mu.Lock()
	defer t.mu.Unlock()
	refs := make([]LiveReference, 0, len(t.slots))
	for i := range t.slots {
		if !t.slots[i].live {
			continue
		}
		refs = append(refs, LiveReference{
			Kind:     t.slots[i].kind,
			Name:     t.slots[i].name,
			RefCount: t.slots[i].refCount,
		})
	}
	return refs
}

func (t *resourceTable) Shutdown() {
	t.FlushReleases()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shutdown {
		return
	}
	for i := range t.slots {
		if t.slots[i].live {
			log.Printf("[Renderer] leaked resource %q (kind %d, refcount %d)", t.slots[i].name, t.slots[i].kind, t.slots[i].refCount)
		}
	}
	t.shutdown = true
	t.slots = nil
	t.freeList = nil
	t.pending = nil
}

// lookup returns the slot for h if it is live and the generation matches.
// Caller must hold t.mu.
func (t *resourceTable) lookup(h Handle) *tableSlot {
	if int(h.index) >= len(t.slots) {
		return nil
	}
	slot := &t.slots[h.index]
	if !slot.live || slot.generation != h.generation {
		return nil
	}
	return slot
}
