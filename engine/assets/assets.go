package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/texstream/engine/assets/loaders"
	"github.com/spaghettifunk/texstream/engine/core"
	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
	"github.com/spaghettifunk/texstream/engine/resources"
)

// Cube faces stored as separate images use these suffixes, in the
// +X,-X,+Y,-Y,+Z,-Z order of cubemap space.
var CubeFaceSuffixes = [metadata.CubeFaceCount]string{"_r", "_l", "_u", "_d", "_f", "_b"}

type AssetInfo struct {
	Name       string
	Path       string
	Type       resources.ResourceType
	LastLoaded time.Time
}

// ChangeFunc is called with the asset name when a watched file is created or written.
type ChangeFunc func(name string)

type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[resources.ResourceType]Loader

	mutex sync.RWMutex

	subscribers []ChangeFunc
	subMutex    sync.Mutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	started  bool
	isClosed bool
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	am := &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[resources.ResourceType]Loader),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	// Register loaders
	am.registerLoader(resources.ResourceTypeImage, &loaders.ImageLoader{})
	am.registerLoader(resources.ResourceTypeTextureArchive, &loaders.ArchiveLoader{})

	return am, nil
}

// Initialize indexes every asset under assetsDir and starts watching it.
func (am *AssetManager) Initialize(assetsDir string) error {
	root, err := filepath.Abs(assetsDir)
	if err != nil {
		return err
	}
	am.root = root

	am.started = true
	go am.start()

	if err := am.addRecursive(root); err != nil {
		return err
	}
	core.LogInfo("asset manager watching %s (%d assets)", root, am.Count())
	return nil
}

// Shutdown stops the watcher goroutine.
func (am *AssetManager) Shutdown() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	if !am.started {
		return am.fsnotify.Close()
	}
	close(am.done)
	<-am.stopped
	return nil
}

// Subscribe registers fn for asset change notifications. Callbacks run on the
// watcher goroutine.
func (am *AssetManager) Subscribe(fn ChangeFunc) {
	am.subMutex.Lock()
	defer am.subMutex.Unlock()
	am.subscribers = append(am.subscribers, fn)
}

func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// AddRecursive starts watching the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	if am.isClosed {
		return errors.New("asset manager already closed")
	}
	return am.watchRecursive(name, false)
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType resources.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Lookup resolves an asset name to its indexed entry.
func (am *AssetManager) Lookup(name string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	asset, ok := am.assets[name]
	return asset, ok
}

// Open implements resources.Decoder. A cube texture is either a single
// archive with the cube's name or six images named with CubeFaceSuffixes.
func (am *AssetManager) Open(name string, textureType metadata.TextureType) (resources.Source, error) {
	var infos []AssetInfo
	if asset, ok := am.Lookup(name); ok {
		infos = append(infos, asset)
	} else if textureType == metadata.TextureTypeCube {
		for _, suffix := range CubeFaceSuffixes {
			face, ok := am.Lookup(name + suffix)
			if !ok {
				return nil, fmt.Errorf("%w: cube face %s%s", resources.ErrAssetNotFound, name, suffix)
			}
			infos = append(infos, face)
		}
	} else {
		return nil, fmt.Errorf("%w: %s", resources.ErrAssetNotFound, name)
	}

	paths := make([]string, len(infos))
	for i, info := range infos {
		if info.Type != infos[0].Type {
			return nil, fmt.Errorf("%w: cube %s mixes resource types", resources.ErrUnsupportedFormat, name)
		}
		paths[i] = info.Path
	}

	loader, loaderExists := am.loaders[infos[0].Type]
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type: %d", infos[0].Type)
	}

	am.mutex.Lock()
	for _, info := range infos {
		info.LastLoaded = time.Now()
		am.assets[info.Name] = info
	}
	am.mutex.Unlock()

	return loader.Open(paths, textureType)
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {

		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name, false); err != nil {
						core.LogWarn("asset manager: failed to watch %s: %s", e.Name, err)
					}
				}
				continue
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if name, ok := am.handleFileEvent(e.Name); ok {
					am.notify(name)
				}
			}
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
			}

		case e, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("%s", e)

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) notify(name string) {
	am.subMutex.Lock()
	subs := append([]ChangeFunc(nil), am.subscribers...)
	am.subMutex.Unlock()
	for _, fn := range subs {
		fn(name)
	}
}

// watchRecursive adds all directories under the given one to the watch list
// and indexes the files found on the way.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// assetName turns a path into the name used to request it: relative to the
// root, slash separated, without extension.
func (am *AssetManager) assetName(path string) string {
	rel, err := filepath.Rel(am.root, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) (string, bool) {
	assetType := determineAssetType(path)
	if assetType == resources.ResourceTypeNone {
		return "", false
	}
	name := am.assetName(path)

	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[name] = AssetInfo{
		Name: name,
		Path: path,
		Type: assetType,
	}
	return name, true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, am.assetName(path))
}

func determineAssetType(path string) resources.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tex":
		return resources.ResourceTypeTextureArchive
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return resources.ResourceTypeImage
	default:
		return resources.ResourceTypeNone
	}
}
