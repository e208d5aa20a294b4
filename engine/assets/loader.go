package assets

import (
	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
	"github.com/spaghettifunk/texstream/engine/resources"
)

// Loader opens texture sources of one resource type. Cube textures stored as
// separate images pass one path per face.
type Loader interface {
	Open(paths []string, textureType metadata.TextureType) (resources.Source, error)
}
