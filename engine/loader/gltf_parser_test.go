package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// triangleBuffer packs three vec3 positions followed by three uint16 indices
// (42 bytes total) — the smallest indexed triangle a glTF buffer can carry.
func triangleBuffer() []byte {
	buf := make([]byte, 0, 42)
	for _, v := range []float32{
		0, 0, 0,
		1, 0, 0,
		0, 1, 0,
	} {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	for _, idx := range []uint16{0, 1, 2} {
		buf = binary.LittleEndian.AppendUint16(buf, idx)
	}
	return buf
}

// triangleJSON builds a glTF document describing the triangle buffer with the
// buffer embedded as a base64 data URI.
func triangleJSON() []byte {
	bin := triangleBuffer()
	return []byte(fmt.Sprintf(`{
		"asset": {"version": "2.0"},
		"scene": 0,
		"scenes": [{"name": "triangle", "nodes": [0]}],
		"nodes": [{"mesh": 0}],
		"meshes": [{"primitives": [{"attributes": {"POSITION": 0}, "indices": 1}]}],
		"accessors": [
			{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"},
			{"bufferView": 1, "componentType": 5123, "count": 3, "type": "SCALAR"}
		],
		"bufferViews": [
			{"buffer": 0, "byteOffset": 0, "byteLength": 36},
			{"buffer": 0, "byteOffset": 36, "byteLength": 6}
		],
		"buffers": [{"byteLength": %d, "uri": "data:application/octet-stream;base64,%s"}]
	}`, len(bin), base64.StdEncoding.EncodeToString(bin)))
}

// triangleGLB wraps the triangle document and its binary buffer in a GLB
// container, with the buffer carried as the BIN chunk instead of a data URI.
func triangleGLB() []byte {
	bin := triangleBuffer()
	jsonChunk := []byte(fmt.Sprintf(`{
		"asset": {"version": "2.0"},
		"scene": 0,
		"scenes": [{"name": "triangle"}],
		"meshes": [{"primitives": [{"attributes": {"POSITION": 0}, "indices": 1}]}],
		"accessors": [
			{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"},
			{"bufferView": 1, "componentType": 5123, "count": 3, "type": "SCALAR"}
		],
		"bufferViews": [
			{"buffer": 0, "byteOffset": 0, "byteLength": 36},
			{"buffer": 0, "byteOffset": 36, "byteLength": 6}
		],
		"buffers": [{"byteLength": %d}]
	}`, len(bin)))

	// Chunks are padded to 4-byte boundaries: JSON with spaces, BIN with zeros.
	for len(jsonChunk)%4 != 0 {
		jsonChunk = append(jsonChunk, ' ')
	}
	for len(bin)%4 != 0 {
		bin = append(bin, 0)
	}

	total := 12 + 8 + len(jsonChunk) + 8 + len(bin)
	glb := make([]byte, 0, total)
	glb = binary.LittleEndian.AppendUint32(glb, gltfGLBMagic)
	glb = binary.LittleEndian.AppendUint32(glb, gltfGLBVersion)
	glb = binary.LittleEndian.AppendUint32(glb, uint32(total))
	glb = binary.LittleEndian.AppendUint32(glb, uint32(len(jsonChunk)))
	glb = binary.LittleEndian.AppendUint32(glb, gltfGLBChunkJSON)
	glb = append(glb, jsonChunk...)
	glb = binary.LittleEndian.AppendUint32(glb, uint32(len(bin)))
	glb = binary.LittleEndian.AppendUint32(glb, gltfGLBChunkBIN)
	glb = append(glb, bin...)
	return glb
}

func TestParserReadsDataURIBuffers(t *testing.T) {
	p := newGLTFParser()
	require.NoError(t, p.ParseReader(bytes.NewReader(triangleJSON()), false))
	require.NotNil(t, p.Document())

	positions, err := p.ReadVec3Accessor(0)
	require.NoError(t, err)
	require.Len(t, positions, 3)
	assert.Equal(t, [3]float32{1, 0, 0}, positions[1])
	assert.Equal(t, [3]float32{0, 1, 0}, positions[2])

	indices, err := p.ReadIndicesAccessor(1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2}, indices)
}

func TestParserUnpacksGLBChunks(t *testing.T) {
	p := newGLTFParser()
	require.NoError(t, p.ParseReader(bytes.NewReader(triangleGLB()), true))

	doc := p.Document()
	require.NotNil(t, doc)
	require.Len(t, doc.Buffers, 1)
	assert.GreaterOrEqual(t, len(doc.Buffers[0].Data), doc.Buffers[0].ByteLength)

	positions, err := p.ReadVec3Accessor(0)
	require.NoError(t, err)
	assert.Equal(t, [3]float32{0, 0, 0}, positions[0])
}

func TestParserRejectsUnsupportedVersion(t *testing.T) {
	p := newGLTFParser()
	err := p.ParseReader(bytes.NewReader([]byte(`{"asset": {"version": "1.0"}}`)), false)
	assert.ErrorIs(t, err, errInvalidGLTFVersion)
}

func TestParserRejectsBadGLBMagic(t *testing.T) {
	glb := triangleGLB()
	glb[0] = 'X'

	p := newGLTFParser()
	err := p.ParseReader(bytes.NewReader(glb), true)
	assert.ErrorIs(t, err, errInvalidGLBMagic)
}

func TestParserRejectsAccessorOverrunningBuffer(t *testing.T) {
	bin := triangleBuffer()
	doc := []byte(fmt.Sprintf(`{
		"asset": {"version": "2.0"},
		"accessors": [{"bufferView": 0, "componentType": 5126, "count": 100, "type": "VEC3"}],
		"bufferViews": [{"buffer": 0, "byteOffset": 0, "byteLength": 36}],
		"buffers": [{"byteLength": %d, "uri": "data:application/octet-stream;base64,%s"}]
	}`, len(bin), base64.StdEncoding.EncodeToString(bin)))

	p := newGLTFParser()
	require.NoError(t, p.ParseReader(bytes.NewReader(doc), false))

	_, err := p.ReadVec3Accessor(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overruns buffer")
}

func TestParserCollapsesInterleavedStride(t *testing.T) {
	// Three vec3 elements interleaved at a 16-byte stride, with 4 junk bytes
	// after each position.
	buf := make([]byte, 0, 44)
	for i, v := range [][3]float32{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}} {
		for _, c := range v {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(c))
		}
		if i < 2 {
			buf = binary.LittleEndian.AppendUint32(buf, 0xDEADBEEF)
		}
	}

	doc := []byte(fmt.Sprintf(`{
		"asset": {"version": "2.0"},
		"accessors": [{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"}],
		"bufferViews": [{"buffer": 0, "byteOffset": 0, "byteLength": %d, "byteStride": 16}],
		"buffers": [{"byteLength": %d, "uri": "data:application/octet-stream;base64,%s"}]
	}`, len(buf), len(buf), base64.StdEncoding.EncodeToString(buf)))

	p := newGLTFParser()
	require.NoError(t, p.ParseReader(bytes.NewReader(doc), false))

	positions, err := p.ReadVec3Accessor(0)
	require.NoError(t, err)
	assert.Equal(t, [][3]float32{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}, positions)
}
