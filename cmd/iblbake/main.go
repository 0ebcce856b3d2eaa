// iblbake precomputes image-based-lighting textures for an environment map
// and stores them in the on-disk IBL cache: the diffuse irradiance cubemap,
// the specular prefiltered cubemap, and the shared BRDF lookup table.
//
// Usage:
//
//	iblbake -cache <dir> [-samples N] <environment.png|environment.jpg>
package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"

	"github.com/oloengine/olo/engine/renderer/ibl"
)

func main() {
	cacheDir := flag.String("cache", "ibl_cache", "cache directory for baked entries")
	samples := flag.Uint("samples", 1024, "Monte Carlo samples per texel")
	irradianceSize := flag.Uint("irradiance-size", 32, "irradiance cubemap face size")
	prefilterSize := flag.Uint("prefilter-size", 128, "prefilter cubemap base face size")
	prefilterMips := flag.Uint("prefilter-mips", 5, "prefilter roughness mip levels")
	lutSize := flag.Uint("lut-size", 512, "BRDF lookup table size")
	force := flag.Bool("force", false, "rebake even when cached entries exist")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <environment image>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	sourcePath := flag.Arg(0)

	cfg := ibl.Config{
		IrradianceSize:     uint32(*irradianceSize),
		PrefilterSize:      uint32(*prefilterSize),
		PrefilterMipLevels: uint32(*prefilterMips),
		BRDFLUTSize:        uint32(*lutSize),
		SampleCount:        uint32(*samples),
	}
	cache := ibl.NewCache(*cacheDir)

	f, err := os.Open(sourcePath)
	if err != nil {
		log.Fatalf("[IBLBake] %v", err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		log.Fatalf("[IBLBake] failed to decode %s: %v", sourcePath, err)
	}
	env, err := ibl.EnvironmentFromImage(img)
	if err != nil {
		log.Fatalf("[IBLBake] %v", err)
	}

	bake(cache, ibl.EntryIrradiance, sourcePath, cfg, *force, func() *ibl.Entry {
		return ibl.BakeIrradiance(env, cfg)
	})
	bake(cache, ibl.EntryPrefilter, sourcePath, cfg, *force, func() *ibl.Entry {
		return ibl.BakePrefilter(env, cfg)
	})
	bake(cache, ibl.EntryBRDFLUT, sourcePath, cfg, *force, func() *ibl.Entry {
		return ibl.BakeBRDFLUT(cfg)
	})
}

// bake produces and stores one entry unless a valid cached copy already
// exists.
func bake(cache ibl.Cache, kind ibl.EntryKind, sourcePath string, cfg ibl.Config, force bool, produce func() *ibl.Entry) {
	path := cache.Path(kind, cache.Key(kind, sourcePath, cfg))

	if !force {
		existing, err := cache.Load(kind, sourcePath, cfg)
		if err != nil {
			log.Printf("[IBLBake] discarding unreadable entry %s: %v", path, err)
		} else if existing != nil {
			fmt.Printf("cached   %s (%d bytes)\n", path, len(existing.Data))
			return
		}
	}

	entry := produce()
	if err := cache.Store(kind, sourcePath, cfg, entry); err != nil {
		log.Fatalf("[IBLBake] failed to store %s: %v", path, err)
	}
	fmt.Printf("baked    %s (%dx%d, %d faces, %d mips, %d bytes)\n",
		path, entry.Width, entry.Height, entry.FaceCount, entry.MipLevels, len(entry.Data))
}
