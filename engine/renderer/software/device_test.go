package software

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/texstream/engine/core"
	"github.com/spaghettifunk/texstream/engine/renderer"
	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
)

func newPlain(w, h, levels uint32) *metadata.Texture {
	return &metadata.Texture{
		Name:          "plain",
		TextureType:   metadata.TextureType2d,
		Format:        metadata.TextureFormatRGBA8,
		Width:         w,
		Height:        h,
		Depth:         1,
		MipLevelCount: levels,
	}
}

func TestCreateLockUnlock(t *testing.T) {
	d := NewDevice(renderer.DefaultLimits())
	tex := newPlain(6, 4, 3)
	require.NoError(t, d.TextureCreate(tex))
	require.Equal(t, 1, d.LiveResources())

	s, err := d.TextureLock(tex, 0, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(32), s.Pitch, "rows are padded to 16 bytes")
	require.Equal(t, uint32(6), s.Width)

	_, err = d.TextureLock(tex, 0, 0)
	require.ErrorIs(t, err, renderer.ErrSurfaceLocked)

	for x := range s.Row(1, 0) {
		s.Row(1, 0)[x] = 7
	}
	require.NoError(t, d.TextureUnlock(tex, 0, 0))
	require.ErrorIs(t, d.TextureUnlock(tex, 0, 0), renderer.ErrSurfaceNotLocked)

	read, err := d.ReadSurface(tex, 0, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(24), read.Pitch)
	require.Equal(t, byte(7), read.Row(1, 0)[23])
	require.Equal(t, byte(0), read.Row(0, 0)[0])

	s, err = d.TextureLock(tex, 0, 2)
	require.NoError(t, err)
	require.Equal(t, uint32(1), s.Width)
	require.Equal(t, uint32(1), s.Height)
	require.NoError(t, d.TextureUnlock(tex, 0, 2))

	_, err = d.TextureLock(tex, 0, 3)
	require.ErrorIs(t, err, renderer.ErrInvalidSurface)

	require.NoError(t, d.TextureDestroy(tex))
	require.Nil(t, tex.InternalData)
	require.Zero(t, d.LiveResources())
}

func TestCubeAndVolumeLayout(t *testing.T) {
	d := NewDevice(renderer.DefaultLimits())
	cube := newPlain(8, 8, 1)
	cube.TextureType = metadata.TextureTypeCube
	require.NoError(t, d.TextureCreate(cube))
	for f := uint32(0); f < metadata.CubeFaceCount; f++ {
		_, err := d.TextureLock(cube, f, 0)
		require.NoError(t, err)
		require.NoError(t, d.TextureUnlock(cube, f, 0))
	}
	_, err := d.TextureLock(cube, 6, 0)
	require.ErrorIs(t, err, renderer.ErrInvalidSurface)

	vol := newPlain(4, 4, 2)
	vol.TextureType = metadata.TextureTypeVolume
	vol.Depth = 4
	require.NoError(t, d.TextureCreate(vol))
	s, err := d.TextureLock(vol, 0, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(2), s.Depth)
	require.Equal(t, s.Pitch*2, s.SlicePitch)
	require.Len(t, s.Data, int(s.SlicePitch*2))
}

func TestOffThreadCallsAreRejected(t *testing.T) {
	d := NewDevice(renderer.DefaultLimits())
	tex := newPlain(4, 4, 1)

	errCh := make(chan error)
	go func() { errCh <- d.TextureCreate(tex) }()
	require.ErrorIs(t, <-errCh, core.ErrWrongThread)
	require.Nil(t, tex.InternalData)
	require.Equal(t, int64(1), d.Violations())
	require.Zero(t, d.Mutations())
}

func TestSurfaceCopyFrom(t *testing.T) {
	src := renderer.NewSurface(metadata.TextureFormatR8, 3, 2, 1)
	copy(src.Data, []byte{1, 2, 3, 4, 5, 6})

	dst := &renderer.Surface{Format: metadata.TextureFormatR8, Width: 3, Height: 2, Depth: 1, Pitch: 8, Data: make([]byte, 16)}
	require.NoError(t, dst.CopyFrom(src))
	require.Equal(t, []byte{1, 2, 3}, dst.Data[0:3])
	require.Equal(t, []byte{4, 5, 6}, dst.Data[8:11])

	wrong := renderer.NewSurface(metadata.TextureFormatR8, 2, 2, 1)
	require.ErrorIs(t, dst.CopyFrom(wrong), renderer.ErrSurfaceMismatch)
}
