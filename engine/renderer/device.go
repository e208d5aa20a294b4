package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
)

var (
	ErrNoResource       = errors.New("texture has no device resource")
	ErrSurfaceLocked    = errors.New("surface is already locked")
	ErrSurfaceNotLocked = errors.New("surface is not locked")
	ErrInvalidSurface   = errors.New("face or mip level out of range")
	ErrSurfaceMismatch  = errors.New("surface extents or format differ")
)

// Limits are the hardware constraints the loader validates sizes against.
type Limits struct {
	// MaxTextureDimension caps width and height of 2-D and cube textures.
	MaxTextureDimension uint32
	// MaxVolumeDimension caps every dimension of volume textures.
	MaxVolumeDimension uint32
	PowerOfTwoOnly     bool
	SquareOnly         bool
}

func DefaultLimits() Limits {
	return Limits{
		MaxTextureDimension: 4096,
		MaxVolumeDimension:  256,
		PowerOfTwoOnly:      true,
	}
}

/**
 * @brief A locked region of texture memory, or a system-memory buffer laid out
 * the same way. Pitch is the byte distance between block rows and SlicePitch
 * the distance between depth slices (zero for 2-D surfaces).
 */
type Surface struct {
	Data       []byte
	Format     metadata.TextureFormat
	Width      uint32
	Height     uint32
	Depth      uint32
	Pitch      uint32
	SlicePitch uint32
}

// NewSurface allocates a tightly packed system-memory surface.
func NewSurface(format metadata.TextureFormat, width, height, depth uint32) *Surface {
	depth = max(depth, 1)
	pitch := format.RowPitch(width)
	slicePitch := pitch * format.RowCount(height)
	s := &Surface{
		Format: format,
		Width:  width,
		Height: height,
		Depth:  depth,
		Pitch:  pitch,
	}
	if depth > 1 {
		s.SlicePitch = slicePitch
	}
	s.Data = make([]byte, slicePitch*depth)
	return s
}

// Row returns the bytes of block row y in slice z, without pitch padding.
func (s *Surface) Row(y, z uint32) []byte {
	start := z*s.SlicePitch + y*s.Pitch
	return s.Data[start : start+s.Format.RowPitch(s.Width)]
}

// CopyFrom copies src into s row by row, honouring both pitches.
func (s *Surface) CopyFrom(src *Surface) error {
	if s.Format != src.Format || s.Width != src.Width || s.Height != src.Height || max(s.Depth, 1) != max(src.Depth, 1) {
		return fmt.Errorf("%w: dst %dx%dx%d %s, src %dx%dx%d %s", ErrSurfaceMismatch,
			s.Width, s.Height, s.Depth, s.Format, src.Width, src.Height, src.Depth, src.Format)
	}
	rows := s.Format.RowCount(s.Height)
	for z := uint32(0); z < max(s.Depth, 1); z++ {
		for y := uint32(0); y < rows; y++ {
			copy(s.Row(y, z), src.Row(y, z))
		}
	}
	return nil
}

/**
 * @brief The hardware capability the texture loader talks to. Every method but
 * Limits must be called on the device thread.
 */
type Device interface {
	Limits() Limits
	// TextureCreate allocates a resource sized from the texture's type, format,
	// extents and mip count and stores it in texture.InternalData.
	TextureCreate(texture *metadata.Texture) error
	TextureDestroy(texture *metadata.Texture) error
	// TextureLock maps one sub-surface. Face selects the cube face and must be
	// zero for other types; volume levels come back with every slice.
	TextureLock(texture *metadata.Texture, face, level uint32) (*Surface, error)
	TextureUnlock(texture *metadata.Texture, face, level uint32) error
}
