// modelinfo prints the import inventory of a glTF/GLB model file without
// touching the GPU: meshes, skeleton, animation clips, and materials.
//
// Usage:
//
//	modelinfo [-mesh-only] <model.gltf|model.glb>
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/oloengine/olo/engine/loader"
	"github.com/oloengine/olo/engine/model"
)

func main() {
	meshOnly := flag.Bool("mesh-only", false, "skip skeleton and animation extraction")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-mesh-only] <model.gltf|model.glb>\n", os.Args[0])
		os.Exit(2)
	}
	path := flag.Arg(0)

	// No renderer and no fragment shader: the loader stays on the CPU-only
	// import path and never allocates GPU resources.
	l := loader.NewLoader(loader.BackendTypeGLTF)

	var (
		m   model.Model
		err error
	)
	if *meshOnly {
		m, err = l.LoadMeshOnly(path, nil)
	} else {
		m, err = l.Load(path, nil)
	}
	if err != nil {
		log.Fatalf("[ModelInfo] %v", err)
	}

	fmt.Printf("model:    %s\n", m.Name())
	fmt.Printf("skinned:  %v\n", m.Skinned())

	if skel := m.Skeleton(); skel != nil {
		fmt.Printf("skeleton: %d bones (%d roots)\n", len(skel.Bones), len(skel.RootBoneIndices))
	} else {
		fmt.Println("skeleton: none")
	}

	anims := m.Animations()
	fmt.Printf("clips:    %d\n", len(anims))
	for _, clip := range anims {
		fmt.Printf("  %-24s %6.2fs\n", clip.Name, clip.Duration)
	}

	mats := m.ImportedMaterials()
	fmt.Printf("materials: %d\n", len(mats))
	for _, mat := range mats {
		name := mat.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("  %-24s metallic=%.2f roughness=%.2f\n", name, mat.Metallic, mat.Roughness)
	}
}
