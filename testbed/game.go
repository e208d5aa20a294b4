package testbed

import (
	"fmt"

	"github.com/spaghettifunk/texstream/engine"
	"github.com/spaghettifunk/texstream/engine/core"
	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
)

type TestGame struct {
	*engine.Game
}

type watchedTexture struct {
	texture    *metadata.Texture
	generation uint32
}

type gameState struct {
	textures map[string]*watchedTexture
	elapsed  float64
}

func NewTestGame(config *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State: &gameState{
				textures: make(map[string]*watchedTexture),
			},
		},
	}

	tg.FnBoot = tg.Boot
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Boot() error {
	core.LogInfo("booting testbed...")
	return writeDemoAssets(g.ApplicationConfig.AssetsDir)
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	if g.SystemManager == nil {
		return fmt.Errorf("the engine is not yet initialized with all the system managers ")
	}
	ts := g.SystemManager.TextureSystem()
	state := g.State.(*gameState)

	acquire := []struct {
		name string
		fn   func(string, bool) (*metadata.Texture, error)
	}{
		{"demo/gradient", ts.AcquireThumbnail},
		{"demo/sky", ts.AcquireCube},
		{"demo/noise", ts.AcquireVolume},
		// Not on disk: shows the missing-texture fallback.
		{"demo/missing", ts.Acquire},
	}
	for _, a := range acquire {
		t, err := a.fn(a.name, true)
		if err != nil {
			return err
		}
		state.textures[a.name] = &watchedTexture{texture: t, generation: t.Generation}
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	state.elapsed += deltaTime

	for name, w := range state.textures {
		t := w.texture
		if t.Generation == w.generation {
			continue
		}
		w.generation = t.Generation
		core.LogInfo("texture %s: %s %dx%dx%d %s, %d levels, generation %d, missing=%t thumbnail=%t",
			name, t.TextureType, t.Width, t.Height, t.Depth, t.Format, t.MipLevelCount, t.Generation,
			t.Flags.Has(metadata.TextureFlagIsMissing), t.Flags.Has(metadata.TextureFlagIsThumbnail))
	}
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.State.(*gameState)
	stats := g.SystemManager.Loader().Stats()
	core.LogInfo("testbed ran %.1fs, loader: %d pending, %d in flight", state.elapsed, stats.Pending, stats.InFlight)
	for name := range state.textures {
		if err := g.SystemManager.TextureSystem().Release(name); err != nil {
			return err
		}
	}
	return nil
}
