package resources

import (
	"errors"

	"github.com/spaghettifunk/texstream/engine/renderer"
	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
)

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	/** @brief Not a resource the engine knows how to load. */
	ResourceTypeNone ResourceType = iota
	/** @brief Image resource type (png, jpeg, bmp, tiff, webp). */
	ResourceTypeImage
	/** @brief Packed mip-chain texture archive. */
	ResourceTypeTextureArchive
)

/** @brief A magic number indicating the file as a texstream binary file. */
const ResourceMagic uint32 = 0xdaaaadd1

/**
 * @brief The header data for binary resource types.
 */
type ResourceHeader struct {
	/** @brief A magic number indicating the file as a texstream binary file. */
	MagicNumber uint32
	/** @brief The resource type. Maps to the enum resource_type. */
	ResourceType uint8
	/** @brief The format version this resource uses. */
	Version uint8
	/** @brief Reserved for future header data.. */
	Reserved uint16
}

var (
	ErrAssetNotFound     = errors.New("asset not found")
	ErrUnsupportedFormat = errors.New("unsupported texture format")
	ErrUnsupportedShape  = errors.New("unsupported texture shape")
	ErrCorruptSource     = errors.New("corrupt texture source")
	ErrSizeMismatch      = errors.New("requested extents do not match the source")
	ErrLevelOutOfRange   = errors.New("mip level or face out of range")
	ErrSourceClosed      = errors.New("texture source closed")
)

/**
 * @brief Describes a texture source as it is stored.
 */
type Header struct {
	TextureType metadata.TextureType
	/** @brief Native format of the stored data. */
	Format metadata.TextureFormat
	Width  uint32
	Height uint32
	Depth  uint32
	/** @brief Number of stored mip levels. */
	MipLevelCount uint32
	/** @brief The source can produce any level at any extent (raw images). */
	Scalable bool
}

/**
 * @brief An opened texture source. Sources are used by one goroutine at a time.
 */
type Source interface {
	Header() Header
	// DecodeLevel writes one face of a source mip level into dst. The extents
	// and format of dst decide the output. Sources that cannot scale reject
	// extents other than the stored ones with ErrSizeMismatch.
	DecodeLevel(face, level uint32, dst *renderer.Surface) error
	Close() error
}

/**
 * @brief Opens texture sources by name.
 */
type Decoder interface {
	Open(name string, textureType metadata.TextureType) (Source, error)
}
