// Package command implements the frame-lifetime draw command bucket. Draw
// packets submitted during a pass are copied into arena storage, sorted by a
// 64-bit key, merged into instanced batches where compatible, and replayed
// through the renderer in a single walk.
package command

import (
	"math"
	"sort"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/oloengine/olo/engine/renderer"
	"github.com/oloengine/olo/engine/renderer/bind_group_provider"
)

// Packet is one recorded draw. Packets are value types; Submit copies them
// into the bucket's arena so callers may reuse the struct immediately.
type Packet struct {
	// PipelineKey identifies the cached render pipeline for this draw.
	PipelineKey string

	// MeshProvider holds the vertex and index buffers.
	MeshProvider bind_group_provider.BindGroupProvider

	// BindGroups are the providers bound on the render pass, in group order.
	BindGroups []bind_group_provider.BindGroupProvider

	// IndirectBuffer, when non-nil, sources draw arguments from the GPU and
	// excludes the packet from instanced batching.
	IndirectBuffer *wgpu.Buffer

	// InstanceCount is the number of instances to draw. Ignored for indirect packets.
	InstanceCount uint32

	// State is the fixed-function state required by this draw.
	State renderer.RenderState
}

// Metadata carries the sort inputs for a packet.
type Metadata struct {
	// Layer is the pass layer. Higher layers draw later regardless of depth.
	Layer uint8

	// Transparent marks the packet for the back-to-front transparent range,
	// which sorts after all opaque packets within the same layer.
	Transparent bool

	// MaterialFingerprint groups packets sharing identical material state so
	// they sort adjacently and batch without texture rebinds.
	MaterialFingerprint uint64

	// Depth is the view-space distance from the camera. Opaque packets sort
	// front-to-back to maximize early-Z rejection; transparent packets sort
	// back-to-front for correct blending.
	Depth float32
}

// PacketHandle refers to a submitted packet within the current frame.
// Handles are invalidated by Reset.
type PacketHandle int

// Stats summarizes one frame of bucket activity, surfaced through the profiler.
type Stats struct {
	// Packets is the total number of submitted packets.
	Packets int

	// BatchedPackets is the number of packets merged into a preceding batch.
	BatchedPackets int

	// DrawCalls is the number of draw calls issued during Execute.
	DrawCalls int

	// StateChanges counts fixed-function state transitions between consecutive draws.
	StateChanges int

	// ShaderSwitches counts pipeline changes between consecutive draws.
	ShaderSwitches int

	// TextureSwitches counts material fingerprint changes between consecutive draws.
	TextureSwitches int
}

// entry pairs an arena packet with its sort key and metadata.
type entry struct {
	key     uint64
	meta    Metadata
	packet  Packet
	batched bool
}

// arena is the frame-lifetime packet store. Reset keeps capacity so steady
// frames allocate nothing.
type arena struct {
	entries []entry
}

// arenaPool recycles arenas across buckets and frames.
var arenaPool = sync.Pool{
	New: func() any { return &arena{} },
}

// DrawExecutor is the subset of the renderer the bucket replays packets
// through. renderer.Renderer satisfies it.
type DrawExecutor interface {
	DrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider) error
	DrawCallIndirect(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, indirectBuffer *wgpu.Buffer, bindGroups []bind_group_provider.BindGroupProvider) error
}

// bucket is the implementation of the Bucket interface.
type bucket struct {
	arena  *arena
	stats  Stats
	sorted bool
}

// Bucket collects heterogeneous draw packets within a pass, orders them by a
// 64-bit sort key (layer, then opaque before transparent, then material
// fingerprint, then depth), merges compatible adjacent packets into instanced
// draws, and replays the result through a DrawExecutor.
//
// The bucket is single-threaded: all methods must be called from the render
// thread. Reset returns the backing arena to a shared pool.
type Bucket interface {
	// Submit copies a packet into the bucket's arena.
	//
	// Parameters:
	//   - p: the draw packet
	//   - meta: the sort metadata
	//
	// Returns:
	//   - PacketHandle: a frame-scoped handle for the packet
	Submit(p Packet, meta Metadata) PacketHandle

	// Packet returns the arena copy of a submitted packet.
	//
	// Parameters:
	//   - h: the handle returned by Submit
	//
	// Returns:
	//   - *Packet: the packet, or nil if the handle is out of range
	Packet(h PacketHandle) *Packet

	// Sort orders packets by their 64-bit keys. Stable with respect to
	// submission order for equal keys.
	Sort()

	// Batch merges adjacent sorted packets that share pipeline, mesh, and
	// fixed-function state into single instanced draws. Indirect packets
	// never merge. Must run after Sort.
	Batch()

	// Execute replays the sorted, batched packets through the executor and
	// accumulates statistics.
	//
	// Parameters:
	//   - api: the draw executor
	//
	// Returns:
	//   - error: the first draw error encountered, if any
	Execute(api DrawExecutor) error

	// Stats returns the statistics accumulated since the last Reset.
	//
	// Returns:
	//   - Stats: the frame statistics
	Stats() Stats

	// Len returns the number of submitted packets.
	//
	// Returns:
	//   - int: the packet count
	Len() int

	// Reset clears the bucket for the next frame and returns its arena to the
	// shared pool. All handles become invalid.
	Reset()
}

var _ Bucket = &bucket{}

// NewBucket creates an empty Bucket backed by a pooled arena.
//
// Returns:
//   - Bucket: a ready-to-use bucket
func NewBucket() Bucket {
	return &bucket{arena: arenaPool.Get().(*arena)}
}

// Sort key layout, most significant first:
//
//	bits 56-63: layer
//	bit  55:    transparency (opaque sorts first)
//	bits 32-54: material fingerprint (folded to 23 bits)
//	bits 0-31:  depth (front-to-back opaque, back-to-front transparent)
const (
	keyLayerShift       = 56
	keyTransparentShift = 55
	keyMaterialShift    = 32
	keyMaterialBits     = 23
)

// makeSortKey builds the 64-bit ordering key for a packet.
func makeSortKey(meta Metadata) uint64 {
	key := uint64(meta.Layer) << keyLayerShift
	if meta.Transparent {
		key |= 1 << keyTransparentShift
	}

	material := meta.MaterialFingerprint ^ (meta.MaterialFingerprint >> keyMaterialBits)
	key |= (material & (1<<keyMaterialBits - 1)) << keyMaterialShift

	// Non-negative float bits are monotonic, so the raw bit pattern orders
	// depths front-to-back. Transparent draws invert to sort back-to-front.
	depth := math.Float32bits(max(meta.Depth, 0))
	if meta.Transparent {
		depth = ^depth
	}
	key |= uint64(depth)
	return key
}

func (b *bucket) Submit(p Packet, meta Metadata) PacketHandle {
	b.arena.entries = append(b.arena.entries, entry{
		key:    makeSortKey(meta),
		meta:   meta,
		packet: p,
	})
	b.stats.Packets++
	b.sorted = false
	return PacketHandle(len(b.arena.entries) - 1)
}

func (b *bucket) Packet(h PacketHandle) *Packet {
	if h < 0 || int(h) >= len(b.arena.entries) {
		return nil
	}
	return &b.arena.entries[h].packet
}

func (b *bucket) Sort() {
	sort.SliceStable(b.arena.entries, func(i, j int) bool {
		return b.arena.entries[i].key < b.arena.entries[j].key
	})
	b.sorted = true
}

func (b *bucket) Batch() {
	if !b.sorted {
		b.Sort()
	}
	entries := b.arena.entries
	for i := 1; i < len(entries); i++ {
		cur := &entries[i]
		// The head of the current run is the nearest preceding unbatched
		// packet; folded packets in between stay marked.
		head := i - 1
		for head > 0 && entries[head].batched {
			head--
		}
		if !canMerge(&entries[head].packet, &cur.packet) {
			continue
		}
		entries[head].packet.InstanceCount += cur.packet.InstanceCount
		cur.batched = true
		b.stats.BatchedPackets++
	}
}

// canMerge reports whether two adjacent packets can fold into one instanced draw.
func canMerge(a, b *Packet) bool {
	if a.IndirectBuffer != nil || b.IndirectBuffer != nil {
		return false
	}
	if a.PipelineKey != b.PipelineKey || a.MeshProvider != b.MeshProvider {
		return false
	}
	if a.State != b.State {
		return false
	}
	if len(a.BindGroups) != len(b.BindGroups) {
		return false
	}
	for i := range a.BindGroups {
		if a.BindGroups[i] != b.BindGroups[i] {
			return false
		}
	}
	return true
}

func (b *bucket) Execute(api DrawExecutor) error {
	if !b.sorted {
		b.Sort()
	}

	var firstErr error
	var prev *entry
	for i := range b.arena.entries {
		e := &b.arena.entries[i]
		if e.batched {
			continue
		}

		if prev != nil {
			if prev.packet.PipelineKey != e.packet.PipelineKey {
				b.stats.ShaderSwitches++
			}
			if prev.packet.State != e.packet.State {
				b.stats.StateChanges++
			}
			if prev.meta.MaterialFingerprint != e.meta.MaterialFingerprint {
				b.stats.TextureSwitches++
			}
		}

		var err error
		if e.packet.IndirectBuffer != nil {
			err = api.DrawCallIndirect(e.packet.PipelineKey, e.packet.MeshProvider, e.packet.IndirectBuffer, e.packet.BindGroups)
		} else {
			err = api.DrawCall(e.packet.PipelineKey, e.packet.MeshProvider, e.packet.InstanceCount, e.packet.BindGroups)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
		b.stats.DrawCalls++
		prev = e
	}
	return firstErr
}

func (b *bucket) Stats() Stats {
	return b.stats
}

func (b *bucket) Len() int {
	return len(b.arena.entries)
}

func (b *bucket) Reset() {
	b.arena.entries = b.arena.entries[:0]
	arenaPool.Put(b.arena)
	b.arena = arenaPool.Get().(*arena)
	b.stats = Stats{}
	b.sorted = false
}
