package loaders

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/texstream/engine/renderer"
	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
	"github.com/spaghettifunk/texstream/engine/resources"
)

// ImageLoader opens png, jpeg, bmp, tiff and webp files. Mip levels are
// produced by scaling the base image to whatever extent is asked for.
type ImageLoader struct {
	Params ImageParams
}

/** @brief Parameters used when loading an image. */
type ImageParams struct {
	/** @brief Indicates if the image should be flipped on the y-axis when loaded. */
	FlipY bool
}

func (il *ImageLoader) Open(paths []string, textureType metadata.TextureType) (resources.Source, error) {
	if textureType == metadata.TextureTypeVolume {
		return nil, fmt.Errorf("image loader: %w: volume textures need an archive", resources.ErrUnsupportedShape)
	}
	if uint32(len(paths)) != textureType.FaceCount() {
		return nil, fmt.Errorf("image loader: %s texture needs %d images, got %d", textureType, textureType.FaceCount(), len(paths))
	}

	var width, height int
	for i, path := range paths {
		cfg, err := decodeConfig(path)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			width, height = cfg.Width, cfg.Height
			continue
		}
		// Verify all faces are the same size.
		if cfg.Width != width || cfg.Height != height {
			return nil, fmt.Errorf("image loader: %w: face %q is %dx%d, expected %dx%d",
				resources.ErrCorruptSource, path, cfg.Width, cfg.Height, width, height)
		}
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("image loader: %w: empty image", resources.ErrCorruptSource)
	}

	return &imageSource{
		paths: paths,
		flipY: il.Params.FlipY,
		faces: make([]*image.NRGBA, len(paths)),
		header: resources.Header{
			TextureType:   textureType,
			Format:        metadata.TextureFormatRGBA8,
			Width:         uint32(width),
			Height:        uint32(height),
			Depth:         1,
			MipLevelCount: 1,
			Scalable:      true,
		},
	}, nil
}

func decodeConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return image.Config{}, fmt.Errorf("image loader: %w: %s", resources.ErrAssetNotFound, path)
		}
		return image.Config{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Config{}, fmt.Errorf("image loader: %w: %s: %v", resources.ErrCorruptSource, path, err)
	}
	return cfg, nil
}

type imageSource struct {
	paths  []string
	flipY  bool
	header resources.Header
	// Decoded lazily, one face per first request.
	faces  []*image.NRGBA
	closed bool
}

func (s *imageSource) Header() resources.Header {
	return s.header
}

func (s *imageSource) Close() error {
	s.closed = true
	s.faces = nil
	return nil
}

func (s *imageSource) base(face uint32) (*image.NRGBA, error) {
	if img := s.faces[face]; img != nil {
		return img, nil
	}
	f, err := os.Open(s.paths[face])
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("image loader: %w: %s: %v", resources.ErrCorruptSource, s.paths[face], err)
	}
	b := src.Bounds()
	if uint32(b.Dx()) != s.header.Width || uint32(b.Dy()) != s.header.Height {
		return nil, fmt.Errorf("image loader: %w: %s changed size while loading", resources.ErrCorruptSource, s.paths[face])
	}
	img := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(img, img.Bounds(), src, b.Min, draw.Src)
	if s.flipY {
		flipRows(img)
	}
	s.faces[face] = img
	return img, nil
}

func (s *imageSource) DecodeLevel(face, level uint32, dst *renderer.Surface) error {
	if s.closed {
		return resources.ErrSourceClosed
	}
	if int(face) >= len(s.paths) {
		return fmt.Errorf("image loader: %w: face %d", resources.ErrLevelOutOfRange, face)
	}
	if max(dst.Depth, 1) != 1 {
		return fmt.Errorf("image loader: %w: depth %d", resources.ErrUnsupportedShape, dst.Depth)
	}
	switch dst.Format {
	case metadata.TextureFormatRGBA8, metadata.TextureFormatBGRA8, metadata.TextureFormatR8:
	default:
		return fmt.Errorf("image loader: %w: %s", resources.ErrUnsupportedFormat, dst.Format)
	}
	if dst.Width == 0 || dst.Height == 0 {
		return fmt.Errorf("image loader: %w: zero extent", resources.ErrSizeMismatch)
	}

	base, err := s.base(face)
	if err != nil {
		return err
	}

	img := base
	if uint32(base.Rect.Dx()) != dst.Width || uint32(base.Rect.Dy()) != dst.Height {
		img = image.NewNRGBA(image.Rect(0, 0, int(dst.Width), int(dst.Height)))
		draw.ApproxBiLinear.Scale(img, img.Bounds(), base, base.Bounds(), draw.Src, nil)
	}

	for y := uint32(0); y < dst.Height; y++ {
		src := img.Pix[int(y)*img.Stride : int(y)*img.Stride+int(dst.Width)*4]
		writeRow(dst.Format, dst.Row(y, 0), src)
	}
	return nil
}

func writeRow(format metadata.TextureFormat, row, src []byte) {
	switch format {
	case metadata.TextureFormatRGBA8:
		copy(row, src)
	case metadata.TextureFormatBGRA8:
		for i := 0; i+3 < len(src); i += 4 {
			row[i+0] = src[i+2]
			row[i+1] = src[i+1]
			row[i+2] = src[i+0]
			row[i+3] = src[i+3]
		}
	case metadata.TextureFormatR8:
		for i, j := 0, 0; i+3 < len(src); i, j = i+4, j+1 {
			r, g, b := uint32(src[i]), uint32(src[i+1]), uint32(src[i+2])
			// Same weights as color.GrayModel.
			row[j] = uint8((19595*r + 38470*g + 7471*b + 1<<15) >> 16)
		}
	}
}

func flipRows(img *image.NRGBA) {
	h := img.Rect.Dy()
	tmp := make([]byte, img.Stride)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*img.Stride : (y+1)*img.Stride]
		bottom := img.Pix[(h-1-y)*img.Stride : (h-y)*img.Stride]
		copy(tmp, top)
		copy(top, bottom)
		copy(bottom, tmp)
	}
}
