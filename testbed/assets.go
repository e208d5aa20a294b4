package testbed

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/texstream/engine/assets/loaders"
	"github.com/spaghettifunk/texstream/engine/core"
	"github.com/spaghettifunk/texstream/engine/math"
	"github.com/spaghettifunk/texstream/engine/renderer"
	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
	"github.com/spaghettifunk/texstream/engine/resources"
)

// writeDemoAssets generates the testbed assets under dir/demo unless they
// already exist.
func writeDemoAssets(dir string) error {
	demo := filepath.Join(dir, "demo")
	if _, err := os.Stat(demo); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(demo, 0o755); err != nil {
		return err
	}
	core.LogInfo("writing demo assets to %s", demo)

	if err := writeGradient(filepath.Join(demo, "gradient.png"), 256); err != nil {
		return err
	}
	if err := writeMipArchive(filepath.Join(demo, "sky.tex"), metadata.TextureTypeCube, metadata.TextureFormatRGBA8, 32, 1); err != nil {
		return err
	}
	return writeMipArchive(filepath.Join(demo, "noise.tex"), metadata.TextureTypeVolume, metadata.TextureFormatR8, 16, 16)
}

func writeGradient(path string, size int) error {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / size), G: uint8(y * 255 / size), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeMipArchive packs a full mip chain whose every level is a flat shade,
// different per face and level.
func writeMipArchive(path string, textureType metadata.TextureType, format metadata.TextureFormat, size, depth uint32) error {
	header := resources.Header{
		TextureType:   textureType,
		Format:        format,
		Width:         size,
		Height:        size,
		Depth:         depth,
		MipLevelCount: math.MipLevelCount(size, size, depth),
	}
	levels := make([][]*renderer.Surface, header.MipLevelCount)
	for l := range levels {
		level := uint32(l)
		levels[l] = make([]*renderer.Surface, textureType.FaceCount())
		for f := range levels[l] {
			s := renderer.NewSurface(format, math.MipExtent(size, level), math.MipExtent(size, level), math.MipExtent(depth, level))
			for i := range s.Data {
				s.Data[i] = uint8(40*f + 20*l)
			}
			levels[l][f] = s
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := loaders.WriteArchive(file, header, levels); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
