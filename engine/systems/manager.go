package systems

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spaghettifunk/texstream/engine/assets"
	"github.com/spaghettifunk/texstream/engine/core"
	"github.com/spaghettifunk/texstream/engine/renderer"
	"github.com/spaghettifunk/texstream/engine/textures"
)

type SystemManager struct {
	loader        *textures.Loader
	textureSystem *TextureSystem
}

// NewSystemManager wires the loader and the texture system. It must run on
// the device thread: the loader binds the calling goroutine. reg may be nil.
func NewSystemManager(loaderConfig textures.LoaderConfig, textureConfig *TextureSystemConfig, device renderer.Device, am *assets.AssetManager, reg prometheus.Registerer) (*SystemManager, error) {
	loader, err := textures.NewLoader(loaderConfig, device, am, core.NewLoaderMetrics(reg))
	if err != nil {
		return nil, err
	}
	ts, err := NewTextureSystem(textureConfig, loader, device, am)
	if err != nil {
		return nil, err
	}
	return &SystemManager{
		loader:        loader,
		textureSystem: ts,
	}, nil
}

func (sm *SystemManager) Initialize(ctx context.Context) error {
	if err := sm.textureSystem.Initialize(); err != nil {
		return err
	}
	sm.loader.Start(ctx)
	return nil
}

/**
 * @brief Commits finished texture loads. Should happen once an update cycle,
 * on the device thread.
 */
func (sm *SystemManager) Update(heartbeat func()) error {
	return sm.textureSystem.Update(heartbeat)
}

func (sm *SystemManager) Shutdown(ctx context.Context) error {
	if err := sm.textureSystem.Shutdown(ctx); err != nil {
		return err
	}
	return sm.loader.Close()
}

func (sm *SystemManager) TextureSystem() *TextureSystem {
	return sm.textureSystem
}

func (sm *SystemManager) Loader() *textures.Loader {
	return sm.loader
}
