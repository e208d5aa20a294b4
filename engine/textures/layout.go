package textures

import (
	"fmt"

	"github.com/spaghettifunk/texstream/engine/math"
	"github.com/spaghettifunk/texstream/engine/renderer"
	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
)

// surfaceLayout holds what differs between task shapes: how many surfaces a
// mip level has, how big they are and how a decoded surface reaches the
// device. It is picked once per task when the task is constructed.
type surfaceLayout interface {
	faceCount() uint32
	extent(width, height, depth, level uint32) (w, h, d uint32)
	upload(device renderer.Device, texture *metadata.Texture, src *renderer.Surface, face, level uint32) error
}

func layoutFor(shape metadata.TextureType) (surfaceLayout, error) {
	switch shape {
	case metadata.TextureType2d:
		return planeLayout{faces: 1}, nil
	case metadata.TextureTypeCube:
		return planeLayout{faces: metadata.CubeFaceCount}, nil
	case metadata.TextureTypeVolume:
		return volumeLayout{}, nil
	default:
		return nil, fmt.Errorf("layout for %s: %w", shape, ErrInvalidShape)
	}
}

// planeLayout covers plain and cube textures: every level is one 2-D
// surface per face.
type planeLayout struct {
	faces uint32
}

func (l planeLayout) faceCount() uint32 {
	return l.faces
}

func (l planeLayout) extent(width, height, _ uint32, level uint32) (uint32, uint32, uint32) {
	return math.MipExtent(width, level), math.MipExtent(height, level), 1
}

func (l planeLayout) upload(device renderer.Device, texture *metadata.Texture, src *renderer.Surface, face, level uint32) error {
	dst, err := device.TextureLock(texture, face, level)
	if err != nil {
		return err
	}
	copyErr := copyRows(dst, src, 0)
	if err := device.TextureUnlock(texture, face, level); err != nil {
		return err
	}
	return copyErr
}

// volumeLayout locks a whole mip level of a volume at once and walks it
// slice by slice using the slice pitch.
type volumeLayout struct{}

func (volumeLayout) faceCount() uint32 {
	return 1
}

func (volumeLayout) extent(width, height, depth, level uint32) (uint32, uint32, uint32) {
	return math.MipExtent(width, level), math.MipExtent(height, level), math.MipExtent(depth, level)
}

func (volumeLayout) upload(device renderer.Device, texture *metadata.Texture, src *renderer.Surface, _ uint32, level uint32) error {
	dst, err := device.TextureLock(texture, 0, level)
	if err != nil {
		return err
	}
	var copyErr error
	if max(dst.Depth, 1) != max(src.Depth, 1) {
		copyErr = fmt.Errorf("%w: %d slices locked, %d decoded", renderer.ErrSurfaceMismatch, dst.Depth, src.Depth)
	}
	for z := uint32(0); copyErr == nil && z < max(src.Depth, 1); z++ {
		copyErr = copyRows(dst, src, z)
	}
	if err := device.TextureUnlock(texture, 0, level); err != nil {
		return err
	}
	return copyErr
}

// copyRows copies one slice between surfaces whose pitches may differ.
func copyRows(dst, src *renderer.Surface, z uint32) error {
	if dst.Format != src.Format || dst.Width != src.Width || dst.Height != src.Height {
		return fmt.Errorf("%w: locked %dx%d %s, decoded %dx%d %s", renderer.ErrSurfaceMismatch,
			dst.Width, dst.Height, dst.Format, src.Width, src.Height, src.Format)
	}
	rowBytes := src.Format.RowPitch(src.Width)
	rows := src.Format.RowCount(src.Height)
	dstBase := z * dst.SlicePitch
	srcBase := z * src.SlicePitch
	for y := uint32(0); y < rows; y++ {
		d := dstBase + y*dst.Pitch
		s := srcBase + y*src.Pitch
		copy(dst.Data[d:d+rowBytes], src.Data[s:s+rowBytes])
	}
	return nil
}
