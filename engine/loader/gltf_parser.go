package loader

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Common errors returned by the parser
var (
	errInvalidGLTFVersion = errors.New("invalid glTF version: must be 2.0")
	errInvalidGLBMagic    = errors.New("invalid GLB magic number")
	errInvalidGLBVersion  = errors.New("invalid GLB version: must be 2")
	errMissingJSONChunk   = errors.New("GLB file missing JSON chunk")
	errInvalidBufferURI   = errors.New("invalid buffer URI")
	errBufferSizeMismatch = errors.New("buffer size mismatch")
)

// gltfParserImpl is the implementation of the gltfParser interface.
type gltfParserImpl struct {
	baseDir        string
	document       *gltfDocument
	glbBinaryChunk []byte
}

// gltfParser loads a glTF/GLB file and exposes typed accessor reads over the
// raw buffer data. File I/O, JSON deserialization, buffer resolution (external
// files, data URIs, GLB binary chunk), and element extraction all live behind
// this interface. Internal to the loader package.
type gltfParser interface {
	// Parse loads and parses a glTF/GLB file from the given path.
	// Automatically detects .gltf (JSON) vs .glb (binary) format.
	//
	// Parameters:
	//   - path: path to the glTF or GLB file
	//
	// Returns:
	//   - error: error if parsing fails
	Parse(path string) error

	// ParseReader parses a glTF document from a reader.
	// Use this when loading from embedded resources or network streams.
	//
	// Parameters:
	//   - r: reader containing glTF JSON or GLB data
	//   - isGLB: true if the data is in GLB format
	//
	// Returns:
	//   - error: error if parsing fails
	ParseReader(r io.Reader, isGLB bool) error

	// Document returns the parsed glTF document.
	// Returns nil if Parse has not been called successfully.
	//
	// Returns:
	//   - *gltfDocument: the parsed document or nil
	Document() *gltfDocument

	// BaseDir returns the directory containing the loaded glTF file.
	// Used for resolving relative URIs to external resources.
	//
	// Returns:
	//   - string: the base directory path
	BaseDir() string

	// ReadAccessorData reads an accessor's elements as tightly packed bytes,
	// collapsing any bufferView stride.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - []byte: the raw data
	//   - error: error if reading fails
	ReadAccessorData(accessorIndex int) ([]byte, error)

	// ReadVec2Accessor reads an accessor as vec2 float data.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - [][2]float32: the vec2 data
	//   - error: error if reading fails
	ReadVec2Accessor(accessorIndex int) ([][2]float32, error)

	// ReadVec3Accessor reads an accessor as vec3 float data.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - [][3]float32: the vec3 data
	//   - error: error if reading fails
	ReadVec3Accessor(accessorIndex int) ([][3]float32, error)

	// ReadVec4Accessor reads an accessor as vec4 float data.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - [][4]float32: the vec4 data
	//   - error: error if reading fails
	ReadVec4Accessor(accessorIndex int) ([][4]float32, error)

	// ReadScalarAccessor reads an accessor as scalar float data.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - []float32: the scalar data
	//   - error: error if reading fails
	ReadScalarAccessor(accessorIndex int) ([]float32, error)

	// ReadMat4Accessor reads an accessor as mat4 float data.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - [][16]float32: the mat4 data
	//   - error: error if reading fails
	ReadMat4Accessor(accessorIndex int) ([][16]float32, error)

	// ReadIndicesAccessor reads an accessor as index data, widening
	// UNSIGNED_BYTE and UNSIGNED_SHORT components to uint32.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - []uint32: the index data (converted to uint32)
	//   - error: error if reading fails
	ReadIndicesAccessor(accessorIndex int) ([]uint32, error)

	// ReadJointsAccessor reads an accessor as joint indices (vec4 of
	// UNSIGNED_BYTE or UNSIGNED_SHORT, widened to uint32).
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - [][4]uint32: the joint indices (converted to uint32)
	//   - error: error if reading fails
	ReadJointsAccessor(accessorIndex int) ([][4]uint32, error)
}

var _ gltfParser = &gltfParserImpl{}

// newGLTFParser creates a new glTF parser instance.
//
// Returns:
//   - gltfParser: a new parser instance
func newGLTFParser() gltfParser {
	return &gltfParserImpl{}
}

func (p *gltfParserImpl) Document() *gltfDocument {
	return p.document
}

func (p *gltfParserImpl) BaseDir() string {
	return p.baseDir
}

func (p *gltfParserImpl) Parse(path string) error {
	p.baseDir = filepath.Dir(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	// A .glb extension or the GLB magic in the first four bytes selects the
	// binary container; everything else is treated as glTF JSON.
	ext := strings.ToLower(filepath.Ext(path))
	isGLB := ext == ".glb" || (len(data) >= 4 && binary.LittleEndian.Uint32(data[:4]) == gltfGLBMagic)
	return p.decode(data, isGLB)
}

func (p *gltfParserImpl) ParseReader(r io.Reader, isGLB bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	return p.decode(data, isGLB)
}

// decode routes raw bytes through the container-specific front half, then
// finishes the document (version check and buffer resolution).
func (p *gltfParserImpl) decode(data []byte, isGLB bool) error {
	jsonData := data
	if isGLB {
		var err error
		jsonData, err = p.unpackGLB(data)
		if err != nil {
			return err
		}
	}

	var doc gltfDocument
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("failed to parse glTF JSON: %w", err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return errInvalidGLTFVersion
	}
	if err := p.loadBuffers(&doc); err != nil {
		return fmt.Errorf("failed to load buffers: %w", err)
	}

	p.document = &doc
	return nil
}

// unpackGLB walks the GLB container chunks, stashes the BIN chunk for buffer
// resolution, and returns the JSON chunk.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
func (p *gltfParserImpl) unpackGLB(data []byte) ([]byte, error) {
	const glbHeaderSize = 12
	const chunkHeaderSize = 8

	if len(data) < glbHeaderSize {
		return nil, errors.New("GLB file too small")
	}
	if binary.LittleEndian.Uint32(data[0:4]) != gltfGLBMagic {
		return nil, errInvalidGLBMagic
	}
	if binary.LittleEndian.Uint32(data[4:8]) != gltfGLBVersion {
		return nil, errInvalidGLBVersion
	}

	var jsonChunk []byte
	for off := glbHeaderSize; off+chunkHeaderSize <= len(data); {
		length := int(binary.LittleEndian.Uint32(data[off : off+4]))
		kind := binary.LittleEndian.Uint32(data[off+4 : off+8])
		off += chunkHeaderSize
		if off+length > len(data) {
			return nil, fmt.Errorf("GLB chunk overruns file: %d bytes at offset %d", length, off)
		}
		switch kind {
		case gltfGLBChunkJSON:
			jsonChunk = data[off : off+length]
		case gltfGLBChunkBIN:
			p.glbBinaryChunk = data[off : off+length]
		}
		off += length
	}

	if jsonChunk == nil {
		return nil, errMissingJSONChunk
	}
	return jsonChunk, nil
}

// loadBuffers resolves every buffer's Data: from a data URI, an external
// file relative to the base directory, or the GLB binary chunk (buffer 0
// with no URI).
func (p *gltfParserImpl) loadBuffers(doc *gltfDocument) error {
	for i := range doc.Buffers {
		buf := &doc.Buffers[i]

		switch {
		case buf.URI == "" && i == 0 && p.glbBinaryChunk != nil:
			buf.Data = p.glbBinaryChunk
		case buf.URI == "":
			return fmt.Errorf("buffer %d has no URI and no GLB binary chunk", i)
		default:
			data, err := p.loadBufferURI(buf.URI)
			if err != nil {
				return fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.Data = data
		}

		if len(buf.Data) < buf.ByteLength {
			return fmt.Errorf("buffer %d: %w", i, errBufferSizeMismatch)
		}
	}

	return nil
}

// loadBufferURI loads buffer data from a data: URI or a file path relative
// to the glTF file.
func (p *gltfParserImpl) loadBufferURI(uri string) ([]byte, error) {
	if strings.HasPrefix(uri, "data:") {
		return p.loadDataURI(uri)
	}

	fullPath := filepath.Join(p.baseDir, uri)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load buffer file %q: %w", uri, err)
	}

	return data, nil
}

// loadDataURI decodes a base64 data URI of the form
// data:[<mediatype>][;base64],<data>.
func (p *gltfParserImpl) loadDataURI(uri string) ([]byte, error) {
	header, encoded, ok := strings.Cut(uri[len("data:"):], ",")
	if !ok {
		return nil, errInvalidBufferURI
	}
	if !strings.Contains(header, "base64") {
		return nil, fmt.Errorf("unsupported data URI encoding: %s", header)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	return data, nil
}

// --- Accessor Data Reading ---

func (p *gltfParserImpl) ReadAccessorData(accessorIndex int) ([]byte, error) {
	if p.document == nil {
		return nil, errors.New("no document loaded")
	}
	if accessorIndex < 0 || accessorIndex >= len(p.document.Accessors) {
		return nil, fmt.Errorf("accessor index %d out of range", accessorIndex)
	}

	acc := &p.document.Accessors[accessorIndex]

	if acc.Sparse != nil {
		return nil, errors.New("sparse accessors not yet supported")
	}
	if acc.BufferView == nil {
		return nil, errors.New("accessor has no bufferView")
	}
	if *acc.BufferView < 0 || *acc.BufferView >= len(p.document.BufferViews) {
		return nil, fmt.Errorf("accessor %d: bufferView %d out of range", accessorIndex, *acc.BufferView)
	}

	bv := &p.document.BufferViews[*acc.BufferView]
	if bv.Buffer < 0 || bv.Buffer >= len(p.document.Buffers) {
		return nil, fmt.Errorf("bufferView %d: buffer %d out of range", *acc.BufferView, bv.Buffer)
	}
	buf := &p.document.Buffers[bv.Buffer]

	elementSize := gltfComponentTypeSize(acc.ComponentType) * gltfAccessorTypeComponentCount(acc.Type)
	if elementSize == 0 {
		return nil, fmt.Errorf("accessor %d: unknown element layout (type=%s, componentType=%d)", accessorIndex, acc.Type, acc.ComponentType)
	}

	stride := elementSize
	if bv.ByteStride != nil && *bv.ByteStride > 0 {
		stride = *bv.ByteStride
	}

	base := bv.ByteOffset + acc.ByteOffset
	if acc.Count > 0 {
		last := base + (acc.Count-1)*stride + elementSize
		if last > len(buf.Data) {
			return nil, fmt.Errorf("accessor %d overruns buffer %d: needs %d bytes, have %d", accessorIndex, bv.Buffer, last, len(buf.Data))
		}
	}

	result := make([]byte, acc.Count*elementSize)
	for i := 0; i < acc.Count; i++ {
		src := base + i*stride
		copy(result[i*elementSize:(i+1)*elementSize], buf.Data[src:src+elementSize])
	}

	return result, nil
}

// readFloats reads an accessor's elements as little-endian float32 values,
// after checking the accessor matches the expected type. The result holds
// count*comps floats in element order.
func (p *gltfParserImpl) readFloats(accessorIndex int, wantType string, comps int) ([]float32, int, error) {
	if p.document == nil {
		return nil, 0, errors.New("no document loaded")
	}
	if accessorIndex < 0 || accessorIndex >= len(p.document.Accessors) {
		return nil, 0, fmt.Errorf("accessor index %d out of range", accessorIndex)
	}
	acc := &p.document.Accessors[accessorIndex]
	if acc.Type != wantType || acc.ComponentType != gltfComponentTypeFloat {
		return nil, 0, fmt.Errorf("accessor is not %s FLOAT: type=%s, componentType=%d", wantType, acc.Type, acc.ComponentType)
	}

	data, err := p.ReadAccessorData(accessorIndex)
	if err != nil {
		return nil, 0, err
	}

	out := make([]float32, acc.Count*comps)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, acc.Count, nil
}

func (p *gltfParserImpl) ReadVec2Accessor(accessorIndex int) ([][2]float32, error) {
	flat, count, err := p.readFloats(accessorIndex, gltfAccessorTypeVec2, 2)
	if err != nil {
		return nil, err
	}
	result := make([][2]float32, count)
	for i := range result {
		copy(result[i][:], flat[i*2:])
	}
	return result, nil
}

func (p *gltfParserImpl) ReadVec3Accessor(accessorIndex int) ([][3]float32, error) {
	flat, count, err := p.readFloats(accessorIndex, gltfAccessorTypeVec3, 3)
	if err != nil {
		return nil, err
	}
	result := make([][3]float32, count)
	for i := range result {
		copy(result[i][:], flat[i*3:])
	}
	return result, nil
}

func (p *gltfParserImpl) ReadVec4Accessor(accessorIndex int) ([][4]float32, error) {
	flat, count, err := p.readFloats(accessorIndex, gltfAccessorTypeVec4, 4)
	if err != nil {
		return nil, err
	}
	result := make([][4]float32, count)
	for i := range result {
		copy(result[i][:], flat[i*4:])
	}
	return result, nil
}

func (p *gltfParserImpl) ReadScalarAccessor(accessorIndex int) ([]float32, error) {
	flat, _, err := p.readFloats(accessorIndex, gltfAccessorTypeScalar, 1)
	return flat, err
}

func (p *gltfParserImpl) ReadMat4Accessor(accessorIndex int) ([][16]float32, error) {
	flat, count, err := p.readFloats(accessorIndex, gltfAccessorTypeMat4, 16)
	if err != nil {
		return nil, err
	}
	result := make([][16]float32, count)
	for i := range result {
		copy(result[i][:], flat[i*16:])
	}
	return result, nil
}

func (p *gltfParserImpl) ReadIndicesAccessor(accessorIndex int) ([]uint32, error) {
	acc := &p.document.Accessors[accessorIndex]
	if acc.Type != gltfAccessorTypeScalar {
		return nil, fmt.Errorf("index accessor is not SCALAR: type=%s", acc.Type)
	}

	data, err := p.ReadAccessorData(accessorIndex)
	if err != nil {
		return nil, err
	}

	result := make([]uint32, acc.Count)
	switch acc.ComponentType {
	case gltfComponentTypeUnsignedByte:
		for i := range result {
			result[i] = uint32(data[i])
		}
	case gltfComponentTypeUnsignedShort:
		for i := range result {
			result[i] = uint32(binary.LittleEndian.Uint16(data[i*2:]))
		}
	case gltfComponentTypeUnsignedInt:
		for i := range result {
			result[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
	default:
		return nil, fmt.Errorf("unsupported index component type: %d", acc.ComponentType)
	}

	return result, nil
}

func (p *gltfParserImpl) ReadJointsAccessor(accessorIndex int) ([][4]uint32, error) {
	acc := &p.document.Accessors[accessorIndex]
	if acc.Type != gltfAccessorTypeVec4 {
		return nil, fmt.Errorf("joints accessor is not VEC4: type=%s", acc.Type)
	}

	data, err := p.ReadAccessorData(accessorIndex)
	if err != nil {
		return nil, err
	}

	result := make([][4]uint32, acc.Count)
	switch acc.ComponentType {
	case gltfComponentTypeUnsignedByte:
		for i := range result {
			for c := 0; c < 4; c++ {
				result[i][c] = uint32(data[i*4+c])
			}
		}
	case gltfComponentTypeUnsignedShort:
		for i := range result {
			for c := 0; c < 4; c++ {
				result[i][c] = uint32(binary.LittleEndian.Uint16(data[(i*4+c)*2:]))
			}
		}
	default:
		return nil, fmt.Errorf("unsupported joints component type: %d", acc.ComponentType)
	}

	return result, nil
}

// --- Helper Functions ---

// gltfComponentTypeSize returns the byte size of a component type, or 0 for
// unknown types.
func gltfComponentTypeSize(componentType int) int {
	switch componentType {
	case gltfComponentTypeByte, gltfComponentTypeUnsignedByte:
		return 1
	case gltfComponentTypeShort, gltfComponentTypeUnsignedShort:
		return 2
	case gltfComponentTypeUnsignedInt, gltfComponentTypeFloat:
		return 4
	default:
		return 0
	}
}

// gltfAccessorTypeComponentCount returns the number of components for an
// accessor type, or 0 for unknown types.
func gltfAccessorTypeComponentCount(accessorType string) int {
	switch accessorType {
	case gltfAccessorTypeScalar:
		return 1
	case gltfAccessorTypeVec2:
		return 2
	case gltfAccessorTypeVec3:
		return 3
	case gltfAccessorTypeVec4:
		return 4
	case gltfAccessorTypeMat2:
		return 4
	case gltfAccessorTypeMat3:
		return 9
	case gltfAccessorTypeMat4:
		return 16
	default:
		return 0
	}
}
