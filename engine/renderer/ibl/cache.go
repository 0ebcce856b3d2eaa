// Package ibl persists precomputed image-based-lighting textures on disk so
// the irradiance and prefilter convolutions run once per environment map
// instead of once per launch. Cache entries are raw texel dumps with a small
// binary header; entries are keyed by an FNV-1a hash of the source path and
// the full IBL configuration, so any parameter change invalidates the entry.
package ibl

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
)

// cacheMagic identifies an IBL cache file.
var cacheMagic = [4]byte{'I', 'B', 'L', 'C'}

// CacheVersion is bumped whenever the entry layout changes; old entries are
// regenerated rather than migrated.
const CacheVersion uint32 = 1

// headerSize is the fixed byte length of the cache file header.
const headerSize = 32

// EntryKind selects which precomputed texture an entry holds.
type EntryKind int

const (
	// EntryIrradiance is the diffuse irradiance cubemap, stored per source.
	EntryIrradiance EntryKind = iota

	// EntryPrefilter is the specular prefiltered cubemap with roughness mips,
	// stored per source.
	EntryPrefilter

	// EntryBRDFLUT is the split-sum BRDF lookup table. Source-independent and
	// shared across all environments.
	EntryBRDFLUT
)

// prefix returns the file name prefix for an entry kind.
func (k EntryKind) prefix() string {
	switch k {
	case EntryIrradiance:
		return "irradiance"
	case EntryPrefilter:
		return "prefilter"
	case EntryBRDFLUT:
		return "brdf_lut"
	default:
		return "unknown"
	}
}

// Config carries every parameter that affects IBL precomputation. All fields
// participate in the cache key.
type Config struct {
	// IrradianceSize is the irradiance cubemap face size in texels.
	IrradianceSize uint32

	// PrefilterSize is the prefilter cubemap base face size in texels.
	PrefilterSize uint32

	// PrefilterMipLevels is the roughness mip chain length.
	PrefilterMipLevels uint32

	// BRDFLUTSize is the BRDF lookup table side length in texels.
	BRDFLUTSize uint32

	// SampleCount is the Monte Carlo sample count per texel.
	SampleCount uint32
}

// Entry is one cached texture: its dimensions, format tag, mip chain length,
// face count (6 for cubemaps, 1 for the BRDF LUT), and raw texel data.
type Entry struct {
	Width     uint32
	Height    uint32
	Format    uint32
	MipLevels uint32
	FaceCount uint32
	Data      []byte
}

// cache is the implementation of the Cache interface.
type cache struct {
	dir string
}

// Cache stores and retrieves precomputed IBL textures on disk.
type Cache interface {
	// Key computes the 64-bit FNV-1a cache key for a source and configuration.
	// EntryBRDFLUT entries ignore the source path; the LUT depends only on
	// the configuration.
	//
	// Parameters:
	//   - kind: the entry kind
	//   - sourcePath: the environment map path (ignored for EntryBRDFLUT)
	//   - cfg: the IBL configuration
	//
	// Returns:
	//   - uint64: the cache key
	Key(kind EntryKind, sourcePath string, cfg Config) uint64

	// Path returns the on-disk file path for an entry.
	//
	// Parameters:
	//   - kind: the entry kind
	//   - key: the cache key from Key
	//
	// Returns:
	//   - string: the absolute file path
	Path(kind EntryKind, key uint64) string

	// Load reads and validates a cached entry.
	//
	// Parameters:
	//   - kind: the entry kind
	//   - sourcePath: the environment map path
	//   - cfg: the IBL configuration
	//
	// Returns:
	//   - *Entry: the entry, or nil if absent
	//   - error: an error if the file exists but is corrupt or incompatible
	Load(kind EntryKind, sourcePath string, cfg Config) (*Entry, error)

	// Store writes an entry, creating the cache directory if needed.
	//
	// Parameters:
	//   - kind: the entry kind
	//   - sourcePath: the environment map path
	//   - cfg: the IBL configuration
	//   - entry: the entry to persist
	//
	// Returns:
	//   - error: an error if the write fails
	Store(kind EntryKind, sourcePath string, cfg Config, entry *Entry) error
}

var _ Cache = &cache{}

// NewCache creates a Cache rooted at the given directory.
//
// Parameters:
//   - dir: the cache directory
//
// Returns:
//   - Cache: the disk cache
func NewCache(dir string) Cache {
	return &cache{dir: dir}
}

func (c *cache) Key(kind EntryKind, sourcePath string, cfg Config) uint64 {
	h := fnv.New64a()
	if kind != EntryBRDFLUT {
		h.Write([]byte(sourcePath))
	}
	var scratch [4]byte
	for _, v := range []uint32{cfg.IrradianceSize, cfg.PrefilterSize, cfg.PrefilterMipLevels, cfg.BRDFLUTSize, cfg.SampleCount} {
		binary.LittleEndian.PutUint32(scratch[:], v)
		h.Write(scratch[:])
	}
	return h.Sum64()
}

func (c *cache) Path(kind EntryKind, key uint64) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s_%016x.iblc", kind.prefix(), key))
}

func (c *cache) Load(kind EntryKind, sourcePath string, cfg Config) (*Entry, error) {
	path := c.Path(kind, c.Key(kind, sourcePath, cfg))
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeEntry(raw)
}

func (c *cache) Store(kind EntryKind, sourcePath string, cfg Config, entry *Entry) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create IBL cache directory: %w", err)
	}
	path := c.Path(kind, c.Key(kind, sourcePath, cfg))
	return os.WriteFile(path, encodeEntry(entry), 0o644)
}

// encodeEntry serializes the header and texel data.
func encodeEntry(entry *Entry) []byte {
	buf := make([]byte, headerSize+len(entry.Data))
	copy(buf[0:4], cacheMagic[:])
	binary.LittleEndian.PutUint32(buf[4:8], CacheVersion)
	binary.LittleEndian.PutUint32(buf[8:12], entry.Width)
	binary.LittleEndian.PutUint32(buf[12:16], entry.Height)
	binary.LittleEndian.PutUint32(buf[16:20], entry.Format)
	binary.LittleEndian.PutUint32(buf[20:24], entry.MipLevels)
	binary.LittleEndian.PutUint32(buf[24:28], entry.FaceCount)
	binary.LittleEndian.PutUint32(buf[28:32], uint32(len(entry.Data)))
	copy(buf[headerSize:], entry.Data)
	return buf
}

// decodeEntry validates the header and splits out the texel data.
func decodeEntry(raw []byte) (*Entry, error) {
	if len(raw) < headerSize {
		return nil, fmt.Errorf("IBL cache entry truncated: %d bytes", len(raw))
	}
	if [4]byte(raw[0:4]) != cacheMagic {
		return nil, fmt.Errorf("not an IBL cache file")
	}
	if version := binary.LittleEndian.Uint32(raw[4:8]); version != CacheVersion {
		return nil, fmt.Errorf("unsupported IBL cache version %d (want %d)", version, CacheVersion)
	}
	entry := &Entry{
		Width:     binary.LittleEndian.Uint32(raw[8:12]),
		Height:    binary.LittleEndian.Uint32(raw[12:16]),
		Format:    binary.LittleEndian.Uint32(raw[16:20]),
		MipLevels: binary.LittleEndian.Uint32(raw[20:24]),
		FaceCount: binary.LittleEndian.Uint32(raw[24:28]),
	}
	dataSize := binary.LittleEndian.Uint32(raw[28:32])
	if int(dataSize) != len(raw)-headerSize {
		return nil, fmt.Errorf("IBL cache data size mismatch: header says %d, file has %d", dataSize, len(raw)-headerSize)
	}
	entry.Data = raw[headerSize:]
	return entry, nil
}
