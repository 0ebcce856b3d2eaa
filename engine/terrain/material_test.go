package terrain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLayerTexturesProceduralDefaults(t *testing.T) {
	layers := []TerrainLayer{
		{Name: "grass", BaseColor: [3]float32{0.2, 0.6, 0.1}, Roughness: 0.9},
		{Name: "rock", BaseColor: [3]float32{0.5, 0.5, 0.5}, Roughness: 0.7, Metallic: 0.1},
	}

	arrays, err := BuildLayerTextures(layers, 64)
	require.NoError(t, err)
	assert.Equal(t, 64, arrays.Size)
	assert.Equal(t, 2, arrays.LayerCount)
	assert.Equal(t, 7, arrays.MipLevels) // 64 down to 1

	require.Len(t, arrays.Albedo, 2)
	require.Len(t, arrays.Albedo[0], 7)
	assert.Len(t, arrays.Albedo[0][0], 64*64*4)
	assert.Len(t, arrays.Albedo[0][6], 4)

	// Procedural albedo carries the base color.
	px := arrays.Albedo[0][0]
	assert.Equal(t, byte(0.2*255), px[0])
	assert.Equal(t, byte(0.6*255), px[1])

	// Default normal is flat tangent space.
	npx := arrays.Normal[0][0]
	assert.Equal(t, byte(128), npx[0])
	assert.Equal(t, byte(255), npx[2])

	// ARM packs occlusion, roughness, metallic.
	apx := arrays.ARM[1][0]
	assert.Equal(t, byte(255), apx[0])
	roughness := float32(0.7)
	assert.Equal(t, byte(roughness*255), apx[1])
}

func TestGenerateMipChainBoxFilter(t *testing.T) {
	// 2×2 texture with distinct corner values averages into one texel.
	base := []byte{
		100, 0, 0, 255, 200, 0, 0, 255,
		0, 100, 0, 255, 0, 0, 100, 255,
	}
	chain := generateMipChain(base, 2)
	require.Len(t, chain, 2)
	top := chain[1]
	assert.Equal(t, byte(75), top[0])  // (100+200+0+0)/4
	assert.Equal(t, byte(25), top[1])  // (0+0+100+0)/4
	assert.Equal(t, byte(25), top[2])  // (0+0+0+100)/4
	assert.Equal(t, byte(255), top[3])
}

func TestMipLevelCount(t *testing.T) {
	assert.Equal(t, 1, mipLevelCount(1))
	assert.Equal(t, 10, mipLevelCount(512))
}
