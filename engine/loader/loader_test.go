package loader

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Loader tests run without a Renderer: import produces CPU-side models with
// staged mesh providers and no GPU resources.

func TestLoadReaderBuildsModelAndCachesByName(t *testing.T) {
	l := NewLoader(BackendTypeGLTF)

	m, err := l.LoadReader("tri", bytes.NewReader(triangleGLB()), true, nil)
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, "triangle", m.Name())
	assert.False(t, m.Skinned())
	assert.NotNil(t, m.MeshProvider())
	assert.Zero(t, m.AnimationCount())

	// Second load with the same name hits the cache.
	again, err := l.LoadReader("tri", bytes.NewReader(nil), true, nil)
	require.NoError(t, err)
	assert.Same(t, m, again)

	assert.Same(t, m, l.Get("tri"))
	assert.Len(t, l.Models(), 1)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	l := NewLoader(BackendTypeGLTF)

	_, err := l.Load("fox.obj", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported model format")
}

func TestLoadMeshOnlyResolvesExternalBuffer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tri.bin"), triangleBuffer(), 0o644))

	doc := []byte(`{
		"asset": {"version": "2.0"},
		"scene": 0,
		"scenes": [{"name": "external_tri"}],
		"meshes": [{"primitives": [{"attributes": {"POSITION": 0}, "indices": 1}]}],
		"accessors": [
			{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"},
			{"bufferView": 1, "componentType": 5123, "count": 3, "type": "SCALAR"}
		],
		"bufferViews": [
			{"buffer": 0, "byteOffset": 0, "byteLength": 36},
			{"buffer": 0, "byteOffset": 36, "byteLength": 6}
		],
		"buffers": [{"byteLength": 42, "uri": "tri.bin"}]
	}`)
	path := filepath.Join(dir, "tri.gltf")
	require.NoError(t, os.WriteFile(path, doc, 0o644))

	l := NewLoader(BackendTypeGLTF)
	m, err := l.LoadMeshOnly(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "external_tri", m.Name())
	assert.Nil(t, m.Skeleton())

	// Cached under the file path.
	again, err := l.LoadMeshOnly(path, nil)
	require.NoError(t, err)
	assert.Same(t, m, again)
}
