package systems

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/spaghettifunk/texstream/engine/assets"
	"github.com/spaghettifunk/texstream/engine/core"
	"github.com/spaghettifunk/texstream/engine/renderer"
	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
	"github.com/spaghettifunk/texstream/engine/textures"
)

var (
	ErrTextureTableFull = errors.New("texture system cannot hold any more textures")
	ErrTextureShape     = errors.New("texture already registered with another shape")
	ErrUnknownTexture   = errors.New("texture is not registered")
)

type TextureSystemConfig struct {
	/** @brief The maximum number of textures that can be loaded at once. */
	MaxTextureCount uint32 `toml:"max_texture_count"`
}

// AssetWatcher reports asset files changing on disk.
type AssetWatcher interface {
	Subscribe(fn assets.ChangeFunc)
}

// pendingLoad remembers a request so it can be cancelled while still queued.
// The id tells whether the pooled task still serves this request.
type pendingLoad struct {
	task *textures.LoadTask
	id   uuid.UUID
}

func (p pendingLoad) current() bool {
	return p.task.ID() == p.id
}

type textureEntry struct {
	metadata.TextureReference
	loads []pendingLoad
	// releasing marks an auto-release entry whose last reference is gone;
	// its slot is freed by Update once no load targets it anymore.
	releasing bool
}

/**
 * @brief Owns every named texture. Names are reference counted and map to a
 * fixed table of texture slots; loads go through the texture loader and the
 * results show up in the slot's texture once committed. Everything but the
 * asset change callback runs on the device thread.
 */
type TextureSystem struct {
	Config *TextureSystemConfig
	// Array of registered textures.
	RegisteredTextures []*metadata.Texture
	// Hashtable for texture lookups.
	RegisteredTextureTable map[string]*textureEntry

	defaultTexture *metadata.Texture
	loader         *textures.Loader
	device         renderer.Device
	watcher        AssetWatcher

	mu      sync.Mutex
	changed map[string]struct{}
}

func NewTextureSystem(config *TextureSystemConfig, loader *textures.Loader, device renderer.Device, watcher AssetWatcher) (*TextureSystem, error) {
	if config.MaxTextureCount == 0 {
		err := fmt.Errorf("func NewTextureSystem - config.MaxTextureCount must be > 0")
		core.LogError("%s", err)
		return nil, err
	}

	ts := &TextureSystem{
		Config:                 config,
		RegisteredTextures:     make([]*metadata.Texture, config.MaxTextureCount),
		RegisteredTextureTable: make(map[string]*textureEntry),
		loader:                 loader,
		device:                 device,
		watcher:                watcher,
		changed:                make(map[string]struct{}),
	}

	// Invalidate all textures in the array.
	for i := uint32(0); i < config.MaxTextureCount; i++ {
		ts.RegisteredTextures[i] = &metadata.Texture{
			ID:         metadata.InvalidID,
			Generation: metadata.InvalidID,
		}
	}
	return ts, nil
}

// Initialize uploads the default texture and starts listening for asset
// changes. Device thread only.
func (ts *TextureSystem) Initialize() error {
	def := ts.loader.DefaultTexture().DefaultTexture
	ts.defaultTexture = &metadata.Texture{
		ID:          metadata.InvalidID,
		Name:        def.Name,
		TextureType: def.TextureType,
		Generation:  metadata.InvalidID,
	}
	if err := ts.loader.ApplyFallback(ts.defaultTexture); err != nil {
		return fmt.Errorf("create default texture: %w", err)
	}
	if ts.watcher != nil {
		ts.watcher.Subscribe(ts.onAssetChanged)
	}
	return nil
}

// Shutdown cancels what it can, waits for the remaining loads and destroys
// every device resource. Device thread only.
func (ts *TextureSystem) Shutdown(ctx context.Context) error {
	for _, entry := range ts.RegisteredTextureTable {
		ts.cancelLoads(entry)
	}
	if err := ts.loader.FlushPendingLoads(ctx); err != nil {
		return err
	}
	for _, t := range ts.RegisteredTextures {
		if t.InternalData != nil {
			if err := ts.DestroyTexture(t); err != nil {
				return err
			}
		}
	}
	if ts.defaultTexture != nil && ts.defaultTexture.InternalData != nil {
		if err := ts.device.TextureDestroy(ts.defaultTexture); err != nil {
			return err
		}
		ts.loader.DefaultTexture().DestroySkeletonTexture(ts.defaultTexture)
	}
	clear(ts.RegisteredTextureTable)
	return nil
}

func (ts *TextureSystem) GetDefaultTexture() *metadata.Texture {
	return ts.defaultTexture
}

// Acquire returns the plain texture called name, queueing a background load
// the first time it is referenced.
func (ts *TextureSystem) Acquire(name string, autoRelease bool) (*metadata.Texture, error) {
	return ts.acquire(name, metadata.TextureType2d, autoRelease, ts.backgroundLoad)
}

/**
 * @brief Attempts to acquire a cubemap texture with the given name. Either
 * an archive called name, or six images named after it, one per face, in the
 * following order:
 * - name_r Right
 * - name_l Left
 * - name_u Up
 * - name_d Down
 * - name_f Front
 * - name_b Back
 *
 * For example, "skybox_f.png", "skybox_b.png", etc. where name is "skybox".
 */
func (ts *TextureSystem) AcquireCube(name string, autoRelease bool) (*metadata.Texture, error) {
	return ts.acquire(name, metadata.TextureTypeCube, autoRelease, ts.backgroundLoad)
}

func (ts *TextureSystem) AcquireVolume(name string, autoRelease bool) (*metadata.Texture, error) {
	return ts.acquire(name, metadata.TextureTypeVolume, autoRelease, ts.backgroundLoad)
}

// AcquireThumbnail is Acquire with a quick single-level thumbnail queued
// ahead of the full load.
func (ts *TextureSystem) AcquireThumbnail(name string, autoRelease bool) (*metadata.Texture, error) {
	return ts.acquire(name, metadata.TextureType2d, autoRelease, func(t *metadata.Texture) ([]*textures.LoadTask, error) {
		var tasks []*textures.LoadTask
		thumb, err := ts.loader.RequestThumbnail(t)
		if err != nil {
			core.LogWarn("thumbnail for %q skipped: %s", t.Name, err)
		} else {
			tasks = append(tasks, thumb)
		}
		full, err := ts.loader.RequestBackgroundLoad(t)
		if err != nil {
			return tasks, err
		}
		return append(tasks, full), nil
	})
}

// AcquireNow loads the plain texture before returning.
func (ts *TextureSystem) AcquireNow(name string, autoRelease bool) (*metadata.Texture, error) {
	return ts.acquire(name, metadata.TextureType2d, autoRelease, func(t *metadata.Texture) ([]*textures.LoadTask, error) {
		return nil, ts.loader.RequestForegroundLoad(t)
	})
}

func (ts *TextureSystem) backgroundLoad(t *metadata.Texture) ([]*textures.LoadTask, error) {
	task, err := ts.loader.RequestBackgroundLoad(t)
	if err != nil {
		return nil, err
	}
	return []*textures.LoadTask{task}, nil
}

// loadFunc queues the loads of a newly registered texture and returns every
// task it queued, including on error.
type loadFunc func(*metadata.Texture) ([]*textures.LoadTask, error)

func (ts *TextureSystem) acquire(name string, textureType metadata.TextureType, autoRelease bool, load loadFunc) (*metadata.Texture, error) {
	// Return default texture, but warn about it since this should be returned via GetDefaultTexture().
	if name == metadata.DEFAULT_TEXTURE_NAME {
		core.LogWarn("texture system acquire called for the default texture, use GetDefaultTexture instead")
		return ts.defaultTexture, nil
	}

	entry, ok := ts.RegisteredTextureTable[name]
	if ok {
		t := ts.RegisteredTextures[entry.Handle]
		if t.TextureType != textureType {
			return nil, fmt.Errorf("acquire %s %q: %w (%s)", textureType, name, ErrTextureShape, t.TextureType)
		}
		entry.ReferenceCount++
		entry.releasing = false
		return t, nil
	}

	handle := ts.freeSlot()
	if handle == metadata.InvalidID {
		core.LogError("texture system cannot hold any more textures, adjust max_texture_count")
		return nil, fmt.Errorf("acquire %q: %w", name, ErrTextureTableFull)
	}

	t := ts.RegisteredTextures[handle]
	if t.InternalData != nil {
		// A free slot must not hand over another texture's contents.
		core.LogWarn("texture slot %d still held a device resource, destroying it", handle)
		if err := ts.DestroyTexture(t); err != nil {
			return nil, fmt.Errorf("acquire %q: reclaim slot %d: %w", name, handle, err)
		}
	}
	t.ID = handle
	t.Name = name
	t.TextureType = textureType
	t.Generation = metadata.InvalidID
	t.Flags = 0

	entry = &textureEntry{
		TextureReference: metadata.TextureReference{
			ReferenceCount: 1,
			Handle:         handle,
			AutoRelease:    autoRelease,
		},
	}
	ts.RegisteredTextureTable[name] = entry

	tasks, err := load(t)
	for _, task := range tasks {
		ts.track(entry, task)
	}
	if err != nil {
		// The slot keeps the fallback so callers always get something to bind.
		core.LogError("load texture %q: %s", name, err)
		if t.InternalData == nil {
			if fbErr := ts.loader.ApplyFallback(t); fbErr != nil {
				core.LogError("fallback for %q: %s", name, fbErr)
			}
		}
		return t, nil
	}
	core.LogDebug("texture %q registered in slot %d", name, handle)
	return t, nil
}

// Release drops one reference to name. Auto-release textures are destroyed
// by Update once the last reference is gone.
func (ts *TextureSystem) Release(name string) error {
	// Ignore release requests for the default texture.
	if name == metadata.DEFAULT_TEXTURE_NAME {
		return nil
	}
	entry, ok := ts.RegisteredTextureTable[name]
	if !ok {
		core.LogWarn("tried to release non-existent texture: '%s'", name)
		return fmt.Errorf("release %q: %w", name, ErrUnknownTexture)
	}
	if entry.ReferenceCount == 0 {
		core.LogWarn("tried to release texture '%s' with no references left", name)
		return nil
	}
	entry.ReferenceCount--
	if entry.ReferenceCount == 0 && entry.AutoRelease {
		entry.releasing = true
		ts.cancelLoads(entry)
	}
	core.LogDebug("released texture '%s', reference count %d", name, entry.ReferenceCount)
	return nil
}

// Reload queues a fresh background load of a registered texture.
func (ts *TextureSystem) Reload(name string) error {
	entry, ok := ts.RegisteredTextureTable[name]
	if !ok {
		return fmt.Errorf("reload %q: %w", name, ErrUnknownTexture)
	}
	task, err := ts.loader.RequestBackgroundLoad(ts.RegisteredTextures[entry.Handle])
	if err != nil {
		return err
	}
	ts.track(entry, task)
	core.LogInfo("reloading texture '%s'", name)
	return nil
}

// Update commits finished loads, then reloads changed assets and frees
// released slots. Device thread only.
func (ts *TextureSystem) Update(heartbeat func()) error {
	if err := ts.loader.Update(heartbeat); err != nil {
		return err
	}

	for _, name := range ts.takeChanged() {
		entry, ok := ts.RegisteredTextureTable[name]
		if !ok || entry.releasing {
			continue
		}
		if err := ts.Reload(name); err != nil {
			core.LogWarn("reload of changed texture '%s' failed: %s", name, err)
		}
	}

	for name, entry := range ts.RegisteredTextureTable {
		ts.pruneLoads(entry)
		if !entry.releasing || len(entry.loads) > 0 {
			continue
		}
		t := ts.RegisteredTextures[entry.Handle]
		if t.InternalData != nil {
			if err := ts.DestroyTexture(t); err != nil {
				core.LogError("destroy texture '%s': %s", name, err)
				continue
			}
		}
		ts.resetSlot(t)
		delete(ts.RegisteredTextureTable, name)
		core.LogDebug("texture '%s' unloaded, reference count reached 0", name)
	}
	return nil
}

// DestroyTexture frees the device resource behind texture.
func (ts *TextureSystem) DestroyTexture(texture *metadata.Texture) error {
	if err := ts.device.TextureDestroy(texture); err != nil {
		return err
	}
	texture.Generation = metadata.InvalidID
	return nil
}

// References returns the reference count of name.
func (ts *TextureSystem) References(name string) (uint64, bool) {
	entry, ok := ts.RegisteredTextureTable[name]
	if !ok {
		return 0, false
	}
	return entry.ReferenceCount, true
}

func (ts *TextureSystem) freeSlot() uint32 {
	for i, t := range ts.RegisteredTextures {
		if t.ID == metadata.InvalidID {
			return uint32(i)
		}
	}
	return metadata.InvalidID
}

func (ts *TextureSystem) resetSlot(t *metadata.Texture) {
	*t = metadata.Texture{
		ID:         metadata.InvalidID,
		Generation: metadata.InvalidID,
	}
}

func (ts *TextureSystem) track(entry *textureEntry, task *textures.LoadTask) {
	if task == nil {
		return
	}
	ts.pruneLoads(entry)
	entry.loads = append(entry.loads, pendingLoad{task: task, id: task.ID()})
}

func (ts *TextureSystem) pruneLoads(entry *textureEntry) {
	live := entry.loads[:0]
	for _, p := range entry.loads {
		if p.current() {
			live = append(live, p)
		}
	}
	clear(entry.loads[len(live):])
	entry.loads = live
}

func (ts *TextureSystem) cancelLoads(entry *textureEntry) {
	for _, p := range entry.loads {
		if p.current() {
			ts.loader.Cancel(p.task)
		}
	}
	ts.pruneLoads(entry)
}

// onAssetChanged runs on the asset watcher goroutine.
func (ts *TextureSystem) onAssetChanged(name string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.changed[name] = struct{}{}
	// A changed cube face reloads the whole cube.
	for _, suffix := range assets.CubeFaceSuffixes {
		if base, ok := strings.CutSuffix(name, suffix); ok {
			ts.changed[base] = struct{}{}
		}
	}
}

func (ts *TextureSystem) takeChanged() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	names := make([]string, 0, len(ts.changed))
	for name := range ts.changed {
		names = append(names, name)
	}
	clear(ts.changed)
	return names
}
