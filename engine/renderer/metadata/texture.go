package metadata

import "fmt"

const (
	/** @brief The default texture name. Used for the missing-texture fallback. */
	DEFAULT_TEXTURE_NAME string = "default"
	/** @brief Width and height of the generated default texture. */
	DEFAULT_TEXTURE_DIMENSION uint32 = 256
)

type TextureReference struct {
	ReferenceCount uint64
	Handle         uint32
	AutoRelease    bool
}

type TextureFlag int

const (
	/** @brief Indicates if the texture has transparency. */
	TextureFlagHasTransparency TextureFlag = 0x1
	/** @brief Indicates the contents are the missing-texture fallback. */
	TextureFlagIsMissing TextureFlag = 0x2
	/** @brief Indicates the contents are a single-level thumbnail. */
	TextureFlagIsThumbnail TextureFlag = 0x4
)

/** @brief Holds bit flags for textures.. */
type TextureFlagBits uint8

func (b TextureFlagBits) Has(f TextureFlag) bool {
	return b&TextureFlagBits(f) != 0
}

/**
 * @brief Represents various types of textures. The type decides how many
 * sub-surfaces a mip level has.
 */
type TextureType int

const (
	/** @brief A standard two-dimensional texture. One surface per level. */
	TextureType2d TextureType = iota
	/** @brief A cube texture, used for cubemaps. Six face surfaces per level. */
	TextureTypeCube
	/** @brief A volume texture. One depth-sliced region per level. */
	TextureTypeVolume
)

// CubeFaceCount is the number of faces of a cube texture.
const CubeFaceCount uint32 = 6

func (t TextureType) String() string {
	switch t {
	case TextureType2d:
		return "plain"
	case TextureTypeCube:
		return "cube"
	case TextureTypeVolume:
		return "volume"
	default:
		return fmt.Sprintf("TextureType(%d)", int(t))
	}
}

// FaceCount is the number of surfaces locked per mip level.
func (t TextureType) FaceCount() uint32 {
	if t == TextureTypeCube {
		return CubeFaceCount
	}
	return 1
}

/** @brief Pixel layouts understood by the device and decoders. */
type TextureFormat int

const (
	/** @brief Let the source decide. */
	TextureFormatUnknown TextureFormat = iota
	TextureFormatRGBA8
	TextureFormatBGRA8
	TextureFormatR8
	/** @brief 4x4 block compressed, 8 bytes per block. */
	TextureFormatBC1
	/** @brief 4x4 block compressed, 16 bytes per block. */
	TextureFormatBC3
)

func (f TextureFormat) String() string {
	switch f {
	case TextureFormatUnknown:
		return "unknown"
	case TextureFormatRGBA8:
		return "rgba8"
	case TextureFormatBGRA8:
		return "bgra8"
	case TextureFormatR8:
		return "r8"
	case TextureFormatBC1:
		return "bc1"
	case TextureFormatBC3:
		return "bc3"
	default:
		return fmt.Sprintf("TextureFormat(%d)", int(f))
	}
}

func (f TextureFormat) IsCompressed() bool {
	return f == TextureFormatBC1 || f == TextureFormatBC3
}

// BlockDimension is the edge of the pixel block the format stores as a unit.
func (f TextureFormat) BlockDimension() uint32 {
	if f.IsCompressed() {
		return 4
	}
	return 1
}

// BytesPerBlock is the storage size of one block (one pixel when uncompressed).
func (f TextureFormat) BytesPerBlock() uint32 {
	switch f {
	case TextureFormatRGBA8, TextureFormatBGRA8:
		return 4
	case TextureFormatR8:
		return 1
	case TextureFormatBC1:
		return 8
	case TextureFormatBC3:
		return 16
	default:
		return 0
	}
}

// RowPitch is the tightly packed size of one row of blocks.
func (f TextureFormat) RowPitch(width uint32) uint32 {
	b := f.BlockDimension()
	return ((width + b - 1) / b) * f.BytesPerBlock()
}

// RowCount is the number of block rows covering height pixels.
func (f TextureFormat) RowCount(height uint32) uint32 {
	b := f.BlockDimension()
	return (height + b - 1) / b
}

/**
 * @brief Represents a texture. The loader only mutates a texture on the
 * device thread, while committing.
 */
type Texture struct {
	/** @brief The unique texture identifier. */
	ID uint32
	/** @brief The texture type. */
	TextureType TextureType
	/** @brief The format requested by the owner. Read by the loader when a load is requested. */
	RequestedFormat TextureFormat
	/** @brief The format of the committed contents. */
	Format TextureFormat
	/** @brief The texture Width. */
	Width uint32
	/** @brief The texture Height. */
	Height uint32
	/** @brief Depth in slices. One for non-volume textures. */
	Depth uint32
	/** @brief Number of committed mip levels. */
	MipLevelCount uint32
	/** @brief Holds various Flags for this texture. */
	Flags TextureFlagBits
	/** @brief The texture Generation. Incremented every time the data is reloaded. */
	Generation uint32
	/** @brief The texture Name. */
	Name string
	/** @brief The device resource backing this texture. */
	InternalData interface{}
}

// DefaultTexture is the generated missing-texture asset.
type DefaultTexture struct {
	DefaultTexture *Texture
	TexturePixels  []uint8
}

func NewDefaultTexture() *DefaultTexture {
	return &DefaultTexture{
		DefaultTexture: &Texture{},
	}
}

// CreateSkeletonTexture misses the call to the actual device to properly generate the texture
// this method creates the shell of the object and the pixels that fill it
func (ts *DefaultTexture) CreateSkeletonTextures() bool {
	// NOTE: Create default texture, a 256x256 blue/white checkerboard pattern.
	// This is done in code to eliminate asset dependencies.
	texDimension := DEFAULT_TEXTURE_DIMENSION
	channels := uint32(4)
	pixelCount := texDimension * texDimension

	pixels := make([]uint8, pixelCount*channels)
	for i := range pixels {
		pixels[i] = 255
	}

	// Each pixel.
	for row := uint32(0); row < texDimension; row++ {
		for col := uint32(0); col < texDimension; col++ {
			index := (row * texDimension) + col
			indexBpp := index * channels
			if row%2 != 0 {
				if col%2 != 0 {
					pixels[indexBpp+0] = 0
					pixels[indexBpp+1] = 0
				}
			} else {
				if col%2 == 0 {
					pixels[indexBpp+0] = 0
					pixels[indexBpp+1] = 0
				}
			}
		}
	}

	ts.DefaultTexture.Name = DEFAULT_TEXTURE_NAME
	ts.DefaultTexture.Width = texDimension
	ts.DefaultTexture.Height = texDimension
	ts.DefaultTexture.Depth = 1
	ts.DefaultTexture.MipLevelCount = 1
	ts.DefaultTexture.Format = TextureFormatRGBA8
	ts.DefaultTexture.RequestedFormat = TextureFormatRGBA8
	ts.DefaultTexture.Flags = TextureFlagBits(TextureFlagIsMissing)
	ts.DefaultTexture.TextureType = TextureType2d
	// Manually set the texture generation to invalid since this is a default texture.
	ts.DefaultTexture.Generation = InvalidID
	ts.TexturePixels = pixels

	return true
}

func (ts *DefaultTexture) DestroySkeletonTexture(texture *Texture) {
	texture.ID = InvalidID
	texture.Generation = InvalidID
}
