package loaders

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/pierrec/lz4/v4"

	"github.com/spaghettifunk/texstream/engine/math"
	"github.com/spaghettifunk/texstream/engine/renderer"
	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
	"github.com/spaghettifunk/texstream/engine/resources"
)

// ArchiveVersion is the current layout of .tex archives.
const ArchiveVersion uint8 = 1

// An archive is a fixed header, a chunk table with one entry per (level, face)
// in level-major order, then one lz4 frame per chunk. Chunks hold tightly
// packed block rows; volume chunks hold every slice of the level.
type archiveHeader struct {
	resources.ResourceHeader
	TextureType   uint8
	Format        uint8
	Reserved      uint16
	Width         uint32
	Height        uint32
	Depth         uint32
	MipLevelCount uint32
}

type archiveChunk struct {
	Offset  uint64
	Size    uint32
	RawSize uint32
}

var (
	archiveHeaderSize = int64(binary.Size(archiveHeader{}))
	archiveChunkSize  = int64(binary.Size(archiveChunk{}))
)

// ArchiveLoader opens packed mip-chain archives. They carry precomputed
// levels, including block-compressed ones.
type ArchiveLoader struct{}

func (al *ArchiveLoader) Open(paths []string, textureType metadata.TextureType) (resources.Source, error) {
	if len(paths) != 1 {
		return nil, fmt.Errorf("archive loader: expected a single archive, got %d paths", len(paths))
	}
	f, err := os.Open(paths[0])
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("archive loader: %w: %s", resources.ErrAssetNotFound, paths[0])
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	src, err := OpenArchive(f, info.Size(), f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("archive loader: %s: %w", paths[0], err)
	}
	if src.Header().TextureType != textureType {
		src.Close()
		return nil, fmt.Errorf("archive loader: %w: %s holds a %s texture, %s requested",
			resources.ErrUnsupportedShape, paths[0], src.Header().TextureType, textureType)
	}
	return src, nil
}

type archiveSource struct {
	r      io.ReaderAt
	closer io.Closer
	header resources.Header
	chunks []archiveChunk
	closed bool
}

// OpenArchive reads the header and chunk table of an archive of the given
// size. closer may be nil.
func OpenArchive(r io.ReaderAt, size int64, closer io.Closer) (resources.Source, error) {
	var hdr archiveHeader
	if err := binary.Read(io.NewSectionReader(r, 0, archiveHeaderSize), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %v", resources.ErrCorruptSource, err)
	}
	if hdr.MagicNumber != resources.ResourceMagic {
		return nil, fmt.Errorf("%w: bad magic %#x", resources.ErrCorruptSource, hdr.MagicNumber)
	}
	if hdr.ResourceType != uint8(resources.ResourceTypeTextureArchive) || hdr.Version != ArchiveVersion {
		return nil, fmt.Errorf("%w: resource type %d version %d", resources.ErrCorruptSource, hdr.ResourceType, hdr.Version)
	}
	textureType := metadata.TextureType(hdr.TextureType)
	format := metadata.TextureFormat(hdr.Format)
	if textureType > metadata.TextureTypeVolume || format.BytesPerBlock() == 0 {
		return nil, fmt.Errorf("%w: type %d format %d", resources.ErrCorruptSource, hdr.TextureType, hdr.Format)
	}
	if hdr.Width == 0 || hdr.Height == 0 || hdr.Depth == 0 || hdr.MipLevelCount == 0 ||
		hdr.MipLevelCount > math.MipLevelCount(hdr.Width, hdr.Height, hdr.Depth) {
		return nil, fmt.Errorf("%w: extents %dx%dx%d with %d levels", resources.ErrCorruptSource,
			hdr.Width, hdr.Height, hdr.Depth, hdr.MipLevelCount)
	}

	count := int64(hdr.MipLevelCount) * int64(textureType.FaceCount())
	if archiveHeaderSize+count*archiveChunkSize > size {
		return nil, fmt.Errorf("%w: truncated chunk table", resources.ErrCorruptSource)
	}
	chunks := make([]archiveChunk, count)
	if err := binary.Read(io.NewSectionReader(r, archiveHeaderSize, count*archiveChunkSize), binary.LittleEndian, chunks); err != nil {
		return nil, fmt.Errorf("%w: chunk table: %v", resources.ErrCorruptSource, err)
	}
	for i, c := range chunks {
		if int64(c.Offset)+int64(c.Size) > size {
			return nil, fmt.Errorf("%w: chunk %d past end of archive", resources.ErrCorruptSource, i)
		}
	}

	return &archiveSource{
		r:      r,
		closer: closer,
		chunks: chunks,
		header: resources.Header{
			TextureType:   textureType,
			Format:        format,
			Width:         hdr.Width,
			Height:        hdr.Height,
			Depth:         hdr.Depth,
			MipLevelCount: hdr.MipLevelCount,
		},
	}, nil
}

func (s *archiveSource) Header() resources.Header {
	return s.header
}

func (s *archiveSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func (s *archiveSource) levelExtent(level uint32) (uint32, uint32, uint32) {
	depth := uint32(1)
	if s.header.TextureType == metadata.TextureTypeVolume {
		depth = math.MipExtent(s.header.Depth, level)
	}
	return math.MipExtent(s.header.Width, level), math.MipExtent(s.header.Height, level), depth
}

func (s *archiveSource) DecodeLevel(face, level uint32, dst *renderer.Surface) error {
	if s.closed {
		return resources.ErrSourceClosed
	}
	faces := s.header.TextureType.FaceCount()
	if face >= faces || level >= s.header.MipLevelCount {
		return fmt.Errorf("%w: face %d level %d", resources.ErrLevelOutOfRange, face, level)
	}
	if dst.Format != s.header.Format {
		return fmt.Errorf("%w: archive stores %s, %s requested", resources.ErrUnsupportedFormat, s.header.Format, dst.Format)
	}
	w, h, d := s.levelExtent(level)
	if dst.Width != w || dst.Height != h || max(dst.Depth, 1) != d {
		return fmt.Errorf("%w: level %d is %dx%dx%d, %dx%dx%d requested", resources.ErrSizeMismatch,
			level, w, h, d, dst.Width, dst.Height, dst.Depth)
	}

	chunk := s.chunks[level*faces+face]
	src := renderer.NewSurface(s.header.Format, w, h, d)
	if uint32(len(src.Data)) != chunk.RawSize {
		return fmt.Errorf("%w: chunk holds %d bytes, level needs %d", resources.ErrCorruptSource, chunk.RawSize, len(src.Data))
	}
	zr := lz4.NewReader(io.NewSectionReader(s.r, int64(chunk.Offset), int64(chunk.Size)))
	if _, err := io.ReadFull(zr, src.Data); err != nil {
		return fmt.Errorf("%w: level %d face %d: %v", resources.ErrCorruptSource, level, face, err)
	}
	return dst.CopyFrom(src)
}

// WriteArchive packs levels[level][face] into w. Every surface must match the
// extents and format the header implies.
func WriteArchive(w io.Writer, header resources.Header, levels [][]*renderer.Surface) error {
	faces := header.TextureType.FaceCount()
	if header.MipLevelCount == 0 || uint32(len(levels)) != header.MipLevelCount {
		return fmt.Errorf("write archive: header has %d levels, got %d", header.MipLevelCount, len(levels))
	}
	src := &archiveSource{header: header}
	if header.TextureType != metadata.TextureTypeVolume {
		src.header.Depth = 1
	}

	chunks := make([]archiveChunk, 0, len(levels)*int(faces))
	var payload bytes.Buffer
	offset := uint64(archiveHeaderSize) + uint64(len(levels))*uint64(faces)*uint64(archiveChunkSize)
	for l, level := range levels {
		if uint32(len(level)) != faces {
			return fmt.Errorf("write archive: level %d has %d faces, want %d", l, len(level), faces)
		}
		lw, lh, ld := src.levelExtent(uint32(l))
		for f, surface := range level {
			packed := renderer.NewSurface(header.Format, lw, lh, ld)
			if err := packed.CopyFrom(surface); err != nil {
				return fmt.Errorf("write archive: level %d face %d: %w", l, f, err)
			}
			start := payload.Len()
			zw := lz4.NewWriter(&payload)
			if _, err := zw.Write(packed.Data); err != nil {
				return err
			}
			if err := zw.Close(); err != nil {
				return err
			}
			size := uint32(payload.Len() - start)
			chunks = append(chunks, archiveChunk{Offset: offset, Size: size, RawSize: uint32(len(packed.Data))})
			offset += uint64(size)
		}
	}

	hdr := archiveHeader{
		ResourceHeader: resources.ResourceHeader{
			MagicNumber:  resources.ResourceMagic,
			ResourceType: uint8(resources.ResourceTypeTextureArchive),
			Version:      ArchiveVersion,
		},
		TextureType:   uint8(header.TextureType),
		Format:        uint8(header.Format),
		Width:         header.Width,
		Height:        header.Height,
		Depth:         src.header.Depth,
		MipLevelCount: header.MipLevelCount,
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, chunks); err != nil {
		return err
	}
	_, err := payload.WriteTo(w)
	return err
}
