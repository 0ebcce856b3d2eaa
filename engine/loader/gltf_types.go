// gltf_types.go holds the JSON deserialization targets for the glTF 2.0
// schema, limited to the parts of the format the importer consumes. Field
// names and tags follow the schema; pointer fields distinguish "absent" from
// a meaningful zero.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html
package loader

// gltfDocument is the root of a glTF JSON document.
type gltfDocument struct {
	Asset gltfAsset `json:"asset"`

	// Scene is the index of the default scene.
	Scene  *int        `json:"scene,omitempty"`
	Scenes []gltfScene `json:"scenes,omitempty"`

	// Nodes form the transform hierarchy.
	Nodes  []gltfNode `json:"nodes,omitempty"`
	Meshes []gltfMesh `json:"meshes,omitempty"`

	// Accessors describe typed views over buffer data; BufferViews slice the
	// raw Buffers.
	Accessors   []gltfAccessor   `json:"accessors,omitempty"`
	BufferViews []gltfBufferView `json:"bufferViews,omitempty"`
	Buffers     []gltfBuffer     `json:"buffers,omitempty"`

	Materials []gltfMaterial `json:"materials,omitempty"`
	Textures  []gltfTexture  `json:"textures,omitempty"`
	Images    []gltfImage    `json:"images,omitempty"`
	Samplers  []gltfSampler  `json:"samplers,omitempty"`

	Skins      []gltfSkin      `json:"skins,omitempty"`
	Animations []gltfAnimation `json:"animations,omitempty"`

	ExtensionsUsed     []string `json:"extensionsUsed,omitempty"`
	ExtensionsRequired []string `json:"extensionsRequired,omitempty"`
}

// gltfAsset is the asset metadata block. Version is required and must be 2.x.
type gltfAsset struct {
	Version    string `json:"version"`
	MinVersion string `json:"minVersion,omitempty"`
	Generator  string `json:"generator,omitempty"`
	Copyright  string `json:"copyright,omitempty"`
}

// gltfScene names the root nodes of one renderable scene.
type gltfScene struct {
	Name  string `json:"name,omitempty"`
	Nodes []int  `json:"nodes,omitempty"`
}

// gltfNode is one node in the hierarchy. The transform is either the Matrix
// field or the Translation/Rotation/Scale triple, never both.
type gltfNode struct {
	Name     string `json:"name,omitempty"`
	Children []int  `json:"children,omitempty"`
	Mesh     *int   `json:"mesh,omitempty"`
	Skin     *int   `json:"skin,omitempty"`

	// Matrix is column-major.
	Matrix      *[16]float32 `json:"matrix,omitempty"`
	Translation *[3]float32  `json:"translation,omitempty"`
	// Rotation is a quaternion in x, y, z, w order.
	Rotation *[4]float32 `json:"rotation,omitempty"`
	Scale    *[3]float32 `json:"scale,omitempty"`

	// Weights are morph target weights.
	Weights []float32 `json:"weights,omitempty"`
}

// gltfMesh groups the primitives rendered for one node.
type gltfMesh struct {
	Name       string          `json:"name,omitempty"`
	Primitives []gltfPrimitive `json:"primitives"`
	Weights    []float32       `json:"weights,omitempty"`
}

// gltfPrimitive is one draw: attribute accessors, an optional index
// accessor, and an optional material. Attribute keys are the schema
// semantics (POSITION, NORMAL, TANGENT, TEXCOORD_0, COLOR_0, JOINTS_0,
// WEIGHTS_0).
type gltfPrimitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    *int           `json:"indices,omitempty"`
	Material   *int           `json:"material,omitempty"`

	// Mode is the primitive topology; nil means TRIANGLES.
	Mode *int `json:"mode,omitempty"`

	// Targets are morph targets.
	Targets []map[string]int `json:"targets,omitempty"`
}

// gltfPrimitiveModeTriangles is the only topology the importer accepts;
// the schema also defines points, lines, strips, and fans (modes 0-6).
const gltfPrimitiveModeTriangles = 4

// gltfAccessor types a contiguous run of elements within a bufferView.
type gltfAccessor struct {
	Name       string `json:"name,omitempty"`
	BufferView *int   `json:"bufferView,omitempty"`
	ByteOffset int    `json:"byteOffset,omitempty"`

	// ComponentType is one of the gltfComponentType* constants.
	ComponentType int  `json:"componentType"`
	Normalized    bool `json:"normalized,omitempty"`

	Count int `json:"count"`

	// Type is one of the gltfAccessorType* constants.
	Type string `json:"type"`

	Max []float32 `json:"max,omitempty"`
	Min []float32 `json:"min,omitempty"`

	Sparse *gltfAccessorSparse `json:"sparse,omitempty"`
}

// Component type codes from the schema.
const (
	gltfComponentTypeByte          = 5120
	gltfComponentTypeUnsignedByte  = 5121
	gltfComponentTypeShort         = 5122
	gltfComponentTypeUnsignedShort = 5123
	gltfComponentTypeUnsignedInt   = 5125
	gltfComponentTypeFloat         = 5126
)

// Accessor element types.
const (
	gltfAccessorTypeScalar = "SCALAR"
	gltfAccessorTypeVec2   = "VEC2"
	gltfAccessorTypeVec3   = "VEC3"
	gltfAccessorTypeVec4   = "VEC4"
	gltfAccessorTypeMat2   = "MAT2"
	gltfAccessorTypeMat3   = "MAT3"
	gltfAccessorTypeMat4   = "MAT4"
)

// gltfAccessorSparse marks sparse storage. The parser rejects sparse
// accessors, so only Count is retained; encoding/json drops the unread
// indices and values sub-objects.
type gltfAccessorSparse struct {
	Count int `json:"count"`
}

// gltfBufferView slices a byte range out of a buffer, optionally with an
// interleaving stride.
type gltfBufferView struct {
	Name       string `json:"name,omitempty"`
	Buffer     int    `json:"buffer"`
	ByteOffset int    `json:"byteOffset,omitempty"`
	ByteLength int    `json:"byteLength"`
	ByteStride *int   `json:"byteStride,omitempty"`

	// Target is the intended GPU buffer type (34962 ARRAY_BUFFER,
	// 34963 ELEMENT_ARRAY_BUFFER). Informational only.
	Target *int `json:"target,omitempty"`
}

// gltfBuffer is a binary data container. URI may be a relative file path or
// a base64 data URI; a GLB's buffer 0 has no URI and resolves to the binary
// chunk. Data is filled during load and never serialized.
type gltfBuffer struct {
	Name       string `json:"name,omitempty"`
	URI        string `json:"uri,omitempty"`
	ByteLength int    `json:"byteLength"`
	Data       []byte `json:"-"`
}

// gltfMaterial is the subset of the material schema the importer maps onto
// render materials: the metallic-roughness model plus a normal map.
type gltfMaterial struct {
	Name                 string                    `json:"name,omitempty"`
	PbrMetallicRoughness *gltfPbrMetallicRoughness `json:"pbrMetallicRoughness,omitempty"`
	NormalTexture        *gltfNormalTextureInfo    `json:"normalTexture,omitempty"`
}

// gltfPbrMetallicRoughness is the metallic-roughness material model. The
// metallic-roughness texture packs roughness in G and metallic in B.
type gltfPbrMetallicRoughness struct {
	BaseColorFactor          *[4]float32      `json:"baseColorFactor,omitempty"`
	BaseColorTexture         *gltfTextureInfo `json:"baseColorTexture,omitempty"`
	MetallicFactor           *float32         `json:"metallicFactor,omitempty"`
	RoughnessFactor          *float32         `json:"roughnessFactor,omitempty"`
	MetallicRoughnessTexture *gltfTextureInfo `json:"metallicRoughnessTexture,omitempty"`
}

// gltfTextureInfo references a texture and the UV set sampling it.
type gltfTextureInfo struct {
	Index    int `json:"index"`
	TexCoord int `json:"texCoord,omitempty"`
}

// gltfNormalTextureInfo references a normal map with its scale factor.
type gltfNormalTextureInfo struct {
	gltfTextureInfo

	Scale *float32 `json:"scale,omitempty"`
}

// gltfTexture pairs an image with a sampler.
type gltfTexture struct {
	Name    string `json:"name,omitempty"`
	Sampler *int   `json:"sampler,omitempty"`
	Source  *int   `json:"source,omitempty"`
}

// gltfImage is a texture image source, either an external/data URI or an
// embedded bufferView.
type gltfImage struct {
	Name       string `json:"name,omitempty"`
	URI        string `json:"uri,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	BufferView *int   `json:"bufferView,omitempty"`
}

// gltfSampler carries texture filtering and wrapping modes using the
// gltfFilter* and gltfWrap* codes.
type gltfSampler struct {
	Name      string `json:"name,omitempty"`
	MagFilter *int   `json:"magFilter,omitempty"`
	MinFilter *int   `json:"minFilter,omitempty"`
	WrapS     *int   `json:"wrapS,omitempty"`
	WrapT     *int   `json:"wrapT,omitempty"`
}

// Sampler filter codes.
const (
	gltfFilterNearest              = 9728
	gltfFilterLinear               = 9729
	gltfFilterNearestMipmapNearest = 9984
	gltfFilterLinearMipmapNearest  = 9985
	gltfFilterNearestMipmapLinear  = 9986
	gltfFilterLinearMipmapLinear   = 9987
)

// Sampler wrap codes. REPEAT is the schema default.
const (
	gltfWrapClampToEdge    = 33071
	gltfWrapMirroredRepeat = 33648
	gltfWrapRepeat         = 10497
)

// gltfSkin binds mesh vertices to skeleton joints. Joints index into the
// node array; InverseBindMatrices is a MAT4 accessor with one matrix per
// joint.
type gltfSkin struct {
	Name                string `json:"name,omitempty"`
	InverseBindMatrices *int   `json:"inverseBindMatrices,omitempty"`
	Skeleton            *int   `json:"skeleton,omitempty"`
	Joints              []int  `json:"joints"`
}

// gltfAnimation is one keyframed clip: channels route sampler curves onto
// node properties.
type gltfAnimation struct {
	Name     string            `json:"name,omitempty"`
	Channels []gltfAnimChannel `json:"channels"`
	Samplers []gltfAnimSampler `json:"samplers"`
}

// gltfAnimChannel connects a sampler to its target.
type gltfAnimChannel struct {
	Sampler int            `json:"sampler"`
	Target  gltfAnimTarget `json:"target"`
}

// gltfAnimTarget names the animated node property; Path is one of the
// gltfAnimPath* constants.
type gltfAnimTarget struct {
	Node *int   `json:"node,omitempty"`
	Path string `json:"path"`
}

// gltfAnimSampler holds one keyframe curve: Input is the time accessor,
// Output the value accessor. Interpolation defaults to LINEAR.
type gltfAnimSampler struct {
	Input         int    `json:"input"`
	Output        int    `json:"output"`
	Interpolation string `json:"interpolation,omitempty"`
}

// Animation target paths.
const (
	gltfAnimPathTranslation = "translation"
	gltfAnimPathRotation    = "rotation"
	gltfAnimPathScale       = "scale"
	gltfAnimPathWeights     = "weights"
)

// GLB container constants: the 12-byte header magic and the chunk type tags.
const (
	gltfGLBMagic     = 0x46546C67 // "glTF" little-endian
	gltfGLBVersion   = 2
	gltfGLBChunkJSON = 0x4E4F534A // "JSON"
	gltfGLBChunkBIN  = 0x004E4942 // "BIN\0"
)
