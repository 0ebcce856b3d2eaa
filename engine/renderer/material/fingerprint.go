package material

import (
	"math"
	"sort"
)

const (
	fnvOffsetBasis uint64 = 14695981039346656037
	fnvPrime       uint64 = 1099511628211
)

// fnv1a folds bytes into an FNV-1a accumulator.
func fnv1a(h uint64, data ...byte) uint64 {
	for _, b := range data {
		h ^= uint64(b)
		h *= fnvPrime
	}
	return h
}

func fnv1aU32(h uint64, v uint32) uint64 {
	return fnv1a(h, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func fnv1aF32(h uint64, v float32) uint64 {
	return fnv1aU32(h, math.Float32bits(v))
}

func fnv1aString(h uint64, s string) uint64 {
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime
	}
	return h
}

// Fingerprint hashes every surface property and texture binding. Texture
// slots are folded in ascending slot order so map iteration order cannot
// perturb the hash.
func (m *material) Fingerprint() uint64 {
	h := fnvOffsetBasis
	for _, c := range m.baseColor {
		h = fnv1aF32(h, c)
	}
	for _, c := range m.emissive {
		h = fnv1aF32(h, c)
	}
	h = fnv1aF32(h, m.metallic)
	h = fnv1aF32(h, m.roughness)
	h = fnv1aF32(h, m.normalScale)
	h = fnv1aF32(h, m.occlusionStrength)

	slots := make([]int, 0, len(m.textures))
	for slot := range m.textures {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	for _, slot := range slots {
		h = fnv1aU32(h, uint32(slot))
		h = fnv1aString(h, m.textures[slot].Path)
	}
	h = fnv1aString(h, m.pipelineKey)
	return h
}

// FingerprintPath hashes a string with FNV-1a from the offset basis. Used by
// the IBL cache for (source path, config) keys.
//
// Parameters:
//   - s: the string to hash
//
// Returns:
//   - uint64: the FNV-1a hash
func FingerprintPath(s string) uint64 {
	return fnv1aString(fnvOffsetBasis, s)
}
