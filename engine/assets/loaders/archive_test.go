package loaders

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/texstream/engine/math"
	"github.com/spaghettifunk/texstream/engine/renderer"
	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
	"github.com/spaghettifunk/texstream/engine/resources"
)

// buildLevels fills every surface with a value derived from level and face.
func buildLevels(hdr resources.Header) [][]*renderer.Surface {
	levels := make([][]*renderer.Surface, hdr.MipLevelCount)
	for l := uint32(0); l < hdr.MipLevelCount; l++ {
		depth := uint32(1)
		if hdr.TextureType == metadata.TextureTypeVolume {
			depth = math.MipExtent(hdr.Depth, l)
		}
		for f := uint32(0); f < hdr.TextureType.FaceCount(); f++ {
			s := renderer.NewSurface(hdr.Format, math.MipExtent(hdr.Width, l), math.MipExtent(hdr.Height, l), depth)
			for i := range s.Data {
				s.Data[i] = byte(l*16 + f + uint32(i%7))
			}
			levels[l] = append(levels[l], s)
		}
	}
	return levels
}

func roundTrip(t *testing.T, hdr resources.Header) (resources.Source, [][]*renderer.Surface) {
	t.Helper()
	levels := buildLevels(hdr)
	var buf bytes.Buffer
	require.NoError(t, WriteArchive(&buf, hdr, levels))
	src, err := OpenArchive(bytes.NewReader(buf.Bytes()), int64(buf.Len()), nil)
	require.NoError(t, err)
	return src, levels
}

func TestArchiveRoundTripPlainCompressed(t *testing.T) {
	hdr := resources.Header{
		TextureType:   metadata.TextureType2d,
		Format:        metadata.TextureFormatBC1,
		Width:         32,
		Height:        16,
		Depth:         1,
		MipLevelCount: 3,
	}
	src, levels := roundTrip(t, hdr)
	require.Equal(t, hdr, src.Header())

	for l := uint32(0); l < hdr.MipLevelCount; l++ {
		want := levels[l][0]
		got := renderer.NewSurface(hdr.Format, want.Width, want.Height, 1)
		require.NoError(t, src.DecodeLevel(0, l, got))
		require.Equal(t, want.Data, got.Data)
	}
}

func TestArchiveRoundTripCubeAndVolume(t *testing.T) {
	cube := resources.Header{
		TextureType:   metadata.TextureTypeCube,
		Format:        metadata.TextureFormatRGBA8,
		Width:         8,
		Height:        8,
		Depth:         1,
		MipLevelCount: 2,
	}
	src, levels := roundTrip(t, cube)
	for f := uint32(0); f < 6; f++ {
		got := renderer.NewSurface(cube.Format, 4, 4, 1)
		require.NoError(t, src.DecodeLevel(f, 1, got))
		require.Equal(t, levels[1][f].Data, got.Data)
	}

	vol := resources.Header{
		TextureType:   metadata.TextureTypeVolume,
		Format:        metadata.TextureFormatR8,
		Width:         4,
		Height:        4,
		Depth:         8,
		MipLevelCount: 4,
	}
	src, levels = roundTrip(t, vol)
	got := renderer.NewSurface(vol.Format, 2, 2, 4)
	require.NoError(t, src.DecodeLevel(0, 1, got))
	require.Equal(t, levels[1][0].Data, got.Data)
}

func TestArchiveRejectsMismatches(t *testing.T) {
	hdr := resources.Header{
		TextureType:   metadata.TextureType2d,
		Format:        metadata.TextureFormatRGBA8,
		Width:         8,
		Height:        8,
		Depth:         1,
		MipLevelCount: 1,
	}
	src, _ := roundTrip(t, hdr)

	require.ErrorIs(t, src.DecodeLevel(0, 0, renderer.NewSurface(metadata.TextureFormatRGBA8, 4, 4, 1)), resources.ErrSizeMismatch)
	require.ErrorIs(t, src.DecodeLevel(0, 0, renderer.NewSurface(metadata.TextureFormatBGRA8, 8, 8, 1)), resources.ErrUnsupportedFormat)
	require.ErrorIs(t, src.DecodeLevel(0, 1, renderer.NewSurface(metadata.TextureFormatRGBA8, 4, 4, 1)), resources.ErrLevelOutOfRange)
}

func TestArchiveCorruption(t *testing.T) {
	hdr := resources.Header{
		TextureType:   metadata.TextureType2d,
		Format:        metadata.TextureFormatRGBA8,
		Width:         8,
		Height:        8,
		Depth:         1,
		MipLevelCount: 1,
	}
	var buf bytes.Buffer
	require.NoError(t, WriteArchive(&buf, hdr, buildLevels(hdr)))
	data := buf.Bytes()

	bad := bytes.Clone(data)
	binary.LittleEndian.PutUint32(bad[0:4], 0xbadf00d)
	_, err := OpenArchive(bytes.NewReader(bad), int64(len(bad)), nil)
	require.ErrorIs(t, err, resources.ErrCorruptSource)

	truncated := data[:archiveHeaderSize+4]
	_, err = OpenArchive(bytes.NewReader(truncated), int64(len(truncated)), nil)
	require.ErrorIs(t, err, resources.ErrCorruptSource)

	// Scribble over the lz4 payload: the table still checks out, decode fails.
	garbled := bytes.Clone(data)
	payload := archiveHeaderSize + archiveChunkSize
	for i := payload; i < int64(len(garbled)); i++ {
		garbled[i] = 0xff
	}
	src, err := OpenArchive(bytes.NewReader(garbled), int64(len(garbled)), nil)
	require.NoError(t, err)
	err = src.DecodeLevel(0, 0, renderer.NewSurface(metadata.TextureFormatRGBA8, 8, 8, 1))
	require.ErrorIs(t, err, resources.ErrCorruptSource)
}

func TestArchiveLoaderOpen(t *testing.T) {
	hdr := resources.Header{
		TextureType:   metadata.TextureTypeCube,
		Format:        metadata.TextureFormatRGBA8,
		Width:         4,
		Height:        4,
		Depth:         1,
		MipLevelCount: 1,
	}
	var buf bytes.Buffer
	require.NoError(t, WriteArchive(&buf, hdr, buildLevels(hdr)))
	path := filepath.Join(t.TempDir(), "sky.tex")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	al := &ArchiveLoader{}
	src, err := al.Open([]string{path}, metadata.TextureTypeCube)
	require.NoError(t, err)
	require.NoError(t, src.Close())

	_, err = al.Open([]string{path}, metadata.TextureType2d)
	require.ErrorIs(t, err, resources.ErrUnsupportedShape)

	_, err = al.Open([]string{filepath.Join(t.TempDir(), "nope.tex")}, metadata.TextureType2d)
	require.ErrorIs(t, err, resources.ErrAssetNotFound)
}
