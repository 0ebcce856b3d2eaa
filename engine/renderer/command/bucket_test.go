package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/oloengine/olo/engine/renderer"
	"github.com/oloengine/olo/engine/renderer/bind_group_provider"
)

// recordedDraw captures one executor invocation for ordering assertions.
type recordedDraw struct {
	pipelineKey   string
	instanceCount uint32
	indirect      bool
}

type recordingExecutor struct {
	draws []recordedDraw
}

var _ DrawExecutor = &recordingExecutor{}

func (r *recordingExecutor) DrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider) error {
	r.draws = append(r.draws, recordedDraw{pipelineKey: pipelineKey, instanceCount: instanceCount})
	return nil
}

func (r *recordingExecutor) DrawCallIndirect(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, indirectBuffer *wgpu.Buffer, bindGroups []bind_group_provider.BindGroupProvider) error {
	r.draws = append(r.draws, recordedDraw{pipelineKey: pipelineKey, indirect: true})
	return nil
}

func submitDepth(b Bucket, key string, depth float32, transparent bool) {
	b.Submit(Packet{PipelineKey: key, InstanceCount: 1, State: renderer.DefaultRenderState()}, Metadata{
		Depth:       depth,
		Transparent: transparent,
	})
}

func TestBucketSortsOpaqueFrontToBack(t *testing.T) {
	b := NewBucket()
	submitDepth(b, "far", 90, false)
	submitDepth(b, "near", 2, false)
	submitDepth(b, "mid", 45, false)

	b.Sort()
	exec := &recordingExecutor{}
	require.NoError(t, b.Execute(exec))

	require.Len(t, exec.draws, 3)
	assert.Equal(t, "near", exec.draws[0].pipelineKey)
	assert.Equal(t, "mid", exec.draws[1].pipelineKey)
	assert.Equal(t, "far", exec.draws[2].pipelineKey)
}

func TestBucketSortsTransparentBackToFront(t *testing.T) {
	b := NewBucket()
	submitDepth(b, "near", 2, true)
	submitDepth(b, "far", 90, true)
	submitDepth(b, "mid", 45, true)

	b.Sort()
	exec := &recordingExecutor{}
	require.NoError(t, b.Execute(exec))

	require.Len(t, exec.draws, 3)
	assert.Equal(t, "far", exec.draws[0].pipelineKey)
	assert.Equal(t, "mid", exec.draws[1].pipelineKey)
	assert.Equal(t, "near", exec.draws[2].pipelineKey)
}

func TestBucketOpaqueDrawsBeforeTransparent(t *testing.T) {
	b := NewBucket()
	submitDepth(b, "glass", 1, true)
	submitDepth(b, "wall", 50, false)

	b.Sort()
	exec := &recordingExecutor{}
	require.NoError(t, b.Execute(exec))

	require.Len(t, exec.draws, 2)
	assert.Equal(t, "wall", exec.draws[0].pipelineKey)
	assert.Equal(t, "glass", exec.draws[1].pipelineKey)
}

func TestBucketLayerDominatesDepthAndTransparency(t *testing.T) {
	b := NewBucket()
	b.Submit(Packet{PipelineKey: "overlay", InstanceCount: 1}, Metadata{Layer: 2, Depth: 1})
	b.Submit(Packet{PipelineKey: "scene_transparent", InstanceCount: 1}, Metadata{Layer: 0, Transparent: true, Depth: 99})
	b.Submit(Packet{PipelineKey: "scene_opaque", InstanceCount: 1}, Metadata{Layer: 0, Depth: 5})

	b.Sort()
	exec := &recordingExecutor{}
	require.NoError(t, b.Execute(exec))

	require.Len(t, exec.draws, 3)
	assert.Equal(t, "scene_opaque", exec.draws[0].pipelineKey)
	assert.Equal(t, "scene_transparent", exec.draws[1].pipelineKey)
	assert.Equal(t, "overlay", exec.draws[2].pipelineKey)
}

func TestBucketBatchMergesCompatiblePackets(t *testing.T) {
	mesh := bind_group_provider.NewBindGroupProvider("test mesh")
	state := renderer.DefaultRenderState()
	b := NewBucket()
	for i := 0; i < 3; i++ {
		b.Submit(Packet{PipelineKey: "rock", MeshProvider: mesh, InstanceCount: 2, State: state}, Metadata{MaterialFingerprint: 7, Depth: float32(i)})
	}

	b.Sort()
	b.Batch()
	exec := &recordingExecutor{}
	require.NoError(t, b.Execute(exec))

	require.Len(t, exec.draws, 1, "three compatible packets fold into one instanced draw")
	assert.Equal(t, uint32(6), exec.draws[0].instanceCount)

	stats := b.Stats()
	assert.Equal(t, 3, stats.Packets)
	assert.Equal(t, 2, stats.BatchedPackets)
	assert.Equal(t, 1, stats.DrawCalls)
}

func TestBucketBatchSkipsIncompatiblePackets(t *testing.T) {
	meshA := bind_group_provider.NewBindGroupProvider("test mesh")
	meshB := bind_group_provider.NewBindGroupProvider("test mesh")
	state := renderer.DefaultRenderState()
	b := NewBucket()
	b.Submit(Packet{PipelineKey: "rock", MeshProvider: meshA, InstanceCount: 1, State: state}, Metadata{Depth: 1})
	b.Submit(Packet{PipelineKey: "rock", MeshProvider: meshB, InstanceCount: 1, State: state}, Metadata{Depth: 2})
	b.Submit(Packet{PipelineKey: "tree", MeshProvider: meshA, InstanceCount: 1, State: state}, Metadata{Depth: 3})

	b.Sort()
	b.Batch()
	exec := &recordingExecutor{}
	require.NoError(t, b.Execute(exec))

	assert.Len(t, exec.draws, 3)
	assert.Equal(t, 0, b.Stats().BatchedPackets)
}

func TestBucketIndirectPacketsNeverBatch(t *testing.T) {
	mesh := bind_group_provider.NewBindGroupProvider("test mesh")
	state := renderer.DefaultRenderState()
	indirect := &wgpu.Buffer{}
	b := NewBucket()
	b.Submit(Packet{PipelineKey: "particles", MeshProvider: mesh, IndirectBuffer: indirect, State: state}, Metadata{Depth: 1})
	b.Submit(Packet{PipelineKey: "particles", MeshProvider: mesh, IndirectBuffer: indirect, State: state}, Metadata{Depth: 2})

	b.Sort()
	b.Batch()
	exec := &recordingExecutor{}
	require.NoError(t, b.Execute(exec))

	require.Len(t, exec.draws, 2)
	assert.True(t, exec.draws[0].indirect)
	assert.Equal(t, 0, b.Stats().BatchedPackets)
}

func TestBucketStatsCountSwitches(t *testing.T) {
	stateA := renderer.DefaultRenderState()
	stateB := stateA
	stateB.Blend = renderer.BlendAlpha
	b := NewBucket()
	b.Submit(Packet{PipelineKey: "a", InstanceCount: 1, State: stateA}, Metadata{MaterialFingerprint: 1, Depth: 1})
	b.Submit(Packet{PipelineKey: "a", InstanceCount: 1, State: stateB}, Metadata{MaterialFingerprint: 1, Depth: 2})
	b.Submit(Packet{PipelineKey: "b", InstanceCount: 1, State: stateB}, Metadata{MaterialFingerprint: 9, Depth: 3})

	b.Sort()
	exec := &recordingExecutor{}
	require.NoError(t, b.Execute(exec))

	stats := b.Stats()
	assert.Equal(t, 3, stats.DrawCalls)
	assert.Equal(t, 1, stats.ShaderSwitches)
	assert.Equal(t, 2, stats.StateChanges)
	assert.Equal(t, 1, stats.TextureSwitches)
}

func TestBucketResetClearsStateAndHandles(t *testing.T) {
	b := NewBucket()
	h := b.Submit(Packet{PipelineKey: "a", InstanceCount: 1}, Metadata{})
	require.NotNil(t, b.Packet(h))

	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, Stats{}, b.Stats())
	assert.Nil(t, b.Packet(h))

	// The bucket stays usable for the next frame.
	submitDepth(b, "next", 1, false)
	exec := &recordingExecutor{}
	require.NoError(t, b.Execute(exec))
	assert.Len(t, exec.draws, 1)
}

func TestBucketStableOrderForEqualKeys(t *testing.T) {
	b := NewBucket()
	for _, key := range []string{"first", "second", "third"} {
		b.Submit(Packet{PipelineKey: key, InstanceCount: 1}, Metadata{Depth: 10})
	}

	b.Sort()
	exec := &recordingExecutor{}
	require.NoError(t, b.Execute(exec))

	require.Len(t, exec.draws, 3)
	assert.Equal(t, "first", exec.draws[0].pipelineKey)
	assert.Equal(t, "second", exec.draws[1].pipelineKey)
	assert.Equal(t, "third", exec.draws[2].pipelineKey)
}
