package ibl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		IrradianceSize:     32,
		PrefilterSize:      128,
		PrefilterMipLevels: 5,
		BRDFLUTSize:        512,
		SampleCount:        1024,
	}
}

func TestCacheStoreLoadRoundTrip(t *testing.T) {
	c := NewCache(t.TempDir())
	entry := &Entry{
		Width:     32,
		Height:    32,
		Format:    1,
		MipLevels: 1,
		FaceCount: 6,
		Data:      []byte{1, 2, 3, 4, 5, 6, 7, 8},
	}
	require.NoError(t, c.Store(EntryIrradiance, "skies/dusk.hdr", testConfig(), entry))

	loaded, err := c.Load(EntryIrradiance, "skies/dusk.hdr", testConfig())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, entry.Width, loaded.Width)
	assert.Equal(t, entry.FaceCount, loaded.FaceCount)
	assert.Equal(t, entry.Data, loaded.Data)
}

func TestCacheMissReturnsNilWithoutError(t *testing.T) {
	c := NewCache(t.TempDir())
	loaded, err := c.Load(EntryPrefilter, "skies/missing.hdr", testConfig())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestCacheKeyChangesWithSourceAndConfig(t *testing.T) {
	c := NewCache(t.TempDir())
	cfg := testConfig()

	base := c.Key(EntryIrradiance, "skies/dusk.hdr", cfg)
	assert.NotEqual(t, base, c.Key(EntryIrradiance, "skies/dawn.hdr", cfg))

	changed := cfg
	changed.SampleCount = 2048
	assert.NotEqual(t, base, c.Key(EntryIrradiance, "skies/dusk.hdr", changed))

	assert.Equal(t, base, c.Key(EntryIrradiance, "skies/dusk.hdr", testConfig()), "key is deterministic")
}

func TestBRDFLUTSharedAcrossSources(t *testing.T) {
	c := NewCache(t.TempDir())
	cfg := testConfig()
	assert.Equal(t,
		c.Key(EntryBRDFLUT, "skies/dusk.hdr", cfg),
		c.Key(EntryBRDFLUT, "skies/dawn.hdr", cfg),
		"the BRDF LUT depends only on configuration")
	assert.NotEqual(t,
		c.Key(EntryIrradiance, "skies/dusk.hdr", cfg),
		c.Key(EntryIrradiance, "skies/dawn.hdr", cfg))
}

func TestCacheRejectsCorruptEntries(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir)
	cfg := testConfig()
	entry := &Entry{Width: 4, Height: 4, FaceCount: 1, Data: []byte{1, 2, 3, 4}}
	require.NoError(t, c.Store(EntryBRDFLUT, "", cfg, entry))
	path := c.Path(EntryBRDFLUT, c.Key(EntryBRDFLUT, "", cfg))

	// Bad magic.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	bad := append([]byte{}, raw...)
	bad[0] = 'X'
	require.NoError(t, os.WriteFile(path, bad, 0o644))
	_, err = c.Load(EntryBRDFLUT, "", cfg)
	assert.Error(t, err)

	// Truncated header.
	require.NoError(t, os.WriteFile(path, raw[:10], 0o644))
	_, err = c.Load(EntryBRDFLUT, "", cfg)
	assert.Error(t, err)

	// Data size mismatch.
	short := append([]byte{}, raw[:len(raw)-2]...)
	require.NoError(t, os.WriteFile(path, short, 0o644))
	_, err = c.Load(EntryBRDFLUT, "", cfg)
	assert.Error(t, err)
}

func TestCacheRejectsFutureVersion(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir)
	cfg := testConfig()
	require.NoError(t, c.Store(EntryPrefilter, "sky.hdr", cfg, &Entry{Data: []byte{}}))
	path := c.Path(EntryPrefilter, c.Key(EntryPrefilter, "sky.hdr", cfg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[4] = 99
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	_, err = c.Load(EntryPrefilter, "sky.hdr", cfg)
	assert.Error(t, err)
}

func TestCachePathUsesKindPrefix(t *testing.T) {
	c := NewCache("/tmp/ibl")
	key := uint64(0xDEADBEEF)
	assert.Equal(t, filepath.Join("/tmp/ibl", "irradiance_00000000deadbeef.iblc"), c.Path(EntryIrradiance, key))
	assert.Equal(t, filepath.Join("/tmp/ibl", "prefilter_00000000deadbeef.iblc"), c.Path(EntryPrefilter, key))
	assert.Equal(t, filepath.Join("/tmp/ibl", "brdf_lut_00000000deadbeef.iblc"), c.Path(EntryBRDFLUT, key))
}
