package engine

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/texstream/engine/core"
	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "texstream.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadApplicationConfig(t *testing.T) {
	path := writeConfig(t, `
name = "demo"
log_level = "warn"

[loader]
commit_batch = 4
thumbnail_size = 32

[device]
square_only = true
`)
	config, err := LoadApplicationConfig(path)
	require.NoError(t, err)
	require.Equal(t, "demo", config.Name)
	require.Equal(t, core.WarnLevel, config.LogLevel)
	require.Equal(t, 4, config.Loader.CommitBatch)
	require.Equal(t, uint32(32), config.Loader.ThumbnailSize)
	require.Equal(t, 512, config.Loader.MaxTasks, "unset keys keep their defaults")
	require.Equal(t, uint32(1024), config.Textures.MaxTextureCount)
	require.True(t, config.Device.Limits().SquareOnly)
	require.Equal(t, uint32(4096), config.Device.Limits().MaxTextureDimension)
}

func TestLoadApplicationConfigExample(t *testing.T) {
	config, err := LoadApplicationConfig(filepath.Join("..", "texstream.toml"))
	require.NoError(t, err)
	require.Equal(t, DefaultApplicationConfig().Loader, config.Loader)
}

func TestLoadApplicationConfigErrors(t *testing.T) {
	_, err := LoadApplicationConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadApplicationConfig(writeConfig(t, "name = \n"))
	require.ErrorContains(t, err, ":1:")

	_, err = LoadApplicationConfig(writeConfig(t, "[loader]\ncommit_batch = 0\n"))
	require.ErrorContains(t, err, "commit_batch")

	_, err = LoadApplicationConfig(writeConfig(t, "log_level = \"loud\"\n"))
	require.ErrorContains(t, err, "loud")

	_, err = LoadApplicationConfig(writeConfig(t, "[textures]\nmax_texture_count = 0\n"))
	require.Error(t, err)
}

func writeCrate(t *testing.T, dir string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetNRGBA(0, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	f, err := os.Create(filepath.Join(dir, "crate.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestEngineLoadsTexturesWhileRunning(t *testing.T) {
	dir := t.TempDir()
	writeCrate(t, dir)

	config := DefaultApplicationConfig()
	config.AssetsDir = dir
	config.TargetFPS = 500

	var crate *metadata.Texture
	frames := 0
	g := &Game{ApplicationConfig: config}
	e, err := New(g)
	require.NoError(t, err)
	require.Equal(t, EngineStageBootComplete, e.Stage())
	require.NotNil(t, g.SystemManager)

	g.FnInitialize = func() error {
		var err error
		crate, err = g.SystemManager.TextureSystem().Acquire("crate", true)
		return err
	}
	g.FnUpdate = func(float64) error {
		frames++
		if crate.Generation != metadata.InvalidID {
			e.Quit()
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.Error(t, e.Run(ctx), "run before initialize")
	require.NoError(t, e.Initialize(ctx))
	require.NoError(t, e.Run(ctx))
	require.NoError(t, ctx.Err(), "the texture arrived before the deadline")

	require.Equal(t, uint32(64), crate.Width)
	require.Equal(t, uint32(7), crate.MipLevelCount)
	require.Positive(t, frames)
	require.EqualValues(t, frames, e.FrameCount())

	got, err := e.Device().ReadSurface(crate, 0, 0)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 255}, got.Data[:4])

	families, err := e.Registry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	require.NoError(t, e.Shutdown(context.Background()))
	require.Equal(t, EngineStageShuttingDown, e.Stage())
	require.Zero(t, e.Device().LiveResources())
}

func TestEngineSuspendResume(t *testing.T) {
	config := DefaultApplicationConfig()
	config.AssetsDir = t.TempDir()
	g := &Game{ApplicationConfig: config}
	e, err := New(g)
	require.NoError(t, err)

	e.Suspend()
	require.True(t, g.SystemManager.Loader().IsSuspended())
	e.Resume()
	require.False(t, g.SystemManager.Loader().IsSuspended())

	require.NoError(t, e.Initialize(context.Background()))
	require.NoError(t, e.Shutdown(context.Background()))
}
