package textures

import (
	"github.com/spaghettifunk/texstream/engine/core"
	"github.com/spaghettifunk/texstream/engine/renderer"
	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
)

// fallback uploads the generated checkerboard in place of contents that
// could not be loaded.
type fallback struct {
	surface *renderer.Surface
}

func newFallback(def *metadata.DefaultTexture) *fallback {
	tex := def.DefaultTexture
	return &fallback{
		surface: &renderer.Surface{
			Data:   def.TexturePixels,
			Format: tex.Format,
			Width:  tex.Width,
			Height: tex.Height,
			Depth:  1,
			Pitch:  tex.Format.RowPitch(tex.Width),
		},
	}
}

// apply gives texture one fallback level on every face and marks it missing.
func (f *fallback) apply(device renderer.Device, texture *metadata.Texture, layout surfaceLayout) error {
	s := f.surface
	if err := recreate(device, texture, s.Format, s.Width, s.Height, 1, 1); err != nil {
		core.LogError("missing-texture fallback for %q: %s", texture.Name, err)
		return err
	}
	for face := uint32(0); face < layout.faceCount(); face++ {
		if err := layout.upload(device, texture, s, face, 0); err != nil {
			core.LogError("missing-texture fallback for %q face %d: %s", texture.Name, face, err)
			return err
		}
	}
	texture.Flags = metadata.TextureFlagBits(metadata.TextureFlagIsMissing)
	bumpGeneration(texture)
	return nil
}
