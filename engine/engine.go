package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/atomic"

	"github.com/spaghettifunk/texstream/engine/assets"
	"github.com/spaghettifunk/texstream/engine/core"
	"github.com/spaghettifunk/texstream/engine/renderer/software"
	"github.com/spaghettifunk/texstream/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

/**
 * @brief Runs the game on the device thread. New, Initialize, Run and
 * Shutdown must all be called from the same goroutine, locked to its OS
 * thread with runtime.LockOSThread.
 */
type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	config        *ApplicationConfig
	isRunning     atomic.Bool
	isSuspended   atomic.Bool
	device        *software.Device
	assetManager  *assets.AssetManager
	systemManager *systems.SystemManager
	registry      *prometheus.Registry
	metricsServer *http.Server
	clock         *core.Clock
	lastTime      time.Duration
	frameCount    uint64
}

func New(g *Game) (*Engine, error) {
	config := g.ApplicationConfig
	if config == nil {
		config = DefaultApplicationConfig()
		g.ApplicationConfig = config
	}
	if err := config.Validate(); err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	core.SetLogLevel(config.LogLevel)

	e := &Engine{
		currentStage: EngineStageBooting,
		gameInstance: g,
		config:       config,
		clock:        core.NewClock(),
		registry:     prometheus.NewRegistry(),
	}

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	e.assetManager = am
	e.device = software.NewDevice(config.Device.Limits())

	sm, err := systems.NewSystemManager(config.Loader, &config.Textures, e.device, am, e.registry)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	e.systemManager = sm
	g.SystemManager = sm

	if g.FnBoot != nil {
		if err := g.FnBoot(); err != nil {
			core.LogError("game boot failed: %s", err)
			return nil, err
		}
	}
	e.currentStage = EngineStageBootComplete
	return e, nil
}

func (e *Engine) Initialize(ctx context.Context) error {
	if e.currentStage != EngineStageBootComplete {
		return fmt.Errorf("engine initialize in stage %d", e.currentStage)
	}
	e.currentStage = EngineStageInitializing

	assetsDir := e.config.AssetsDir
	if !filepath.IsAbs(assetsDir) {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		assetsDir = filepath.Join(wd, assetsDir)
	}
	if err := os.MkdirAll(assetsDir, 0o755); err != nil {
		return err
	}
	if err := e.assetManager.Initialize(assetsDir); err != nil {
		return err
	}
	if err := e.systemManager.Initialize(ctx); err != nil {
		return err
	}
	if e.config.MetricsAddress != "" {
		e.startMetricsServer(e.config.MetricsAddress)
	}
	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			core.LogError("game initialize failed: %s", err)
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	core.LogInfo("%s initialized, %d assets indexed", e.config.Name, e.assetManager.Count())
	return nil
}

// Run drives the frame loop until ctx is done or Quit is called. Every frame
// updates the game and commits finished texture loads.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine run in stage %d", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	targetFrame := time.Second / time.Duration(e.config.TargetFPS)
	ticker := time.NewTicker(targetFrame)
	defer ticker.Stop()

	for e.isRunning.Load() {
		select {
		case <-ctx.Done():
			core.LogInfo("shutting down: %s", context.Cause(ctx))
			e.isRunning.Store(false)
			continue
		case <-ticker.C:
		}
		if e.isSuspended.Load() {
			continue
		}
		if err := e.frame(); err != nil {
			e.isRunning.Store(false)
			return err
		}
	}
	return nil
}

func (e *Engine) frame() error {
	e.clock.Update()
	currentTime := e.clock.Elapsed()
	delta := (currentTime - e.lastTime).Seconds()

	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("game update failed, shutting down: %s", err)
			return err
		}
	}
	if err := e.systemManager.Update(e.heartbeat); err != nil {
		core.LogError("texture update failed, shutting down: %s", err)
		return err
	}

	e.frameCount++
	e.lastTime = currentTime
	return nil
}

// heartbeat is called by the loader when committing takes longer than the
// heartbeat interval.
func (e *Engine) heartbeat() {
	core.LogDebug("frame %d: texture commits still running", e.frameCount)
}

// Quit makes Run return after the current frame. Safe from any goroutine.
func (e *Engine) Quit() {
	e.isRunning.Store(false)
}

// Suspend pauses the frame loop and background decoding.
func (e *Engine) Suspend() {
	if !e.isSuspended.Swap(true) {
		core.LogInfo("suspending application")
		e.systemManager.Loader().Suspend()
	}
}

func (e *Engine) Resume() {
	if e.isSuspended.Swap(false) {
		core.LogInfo("resuming application")
		e.systemManager.Loader().Resume()
	}
}

func (e *Engine) Shutdown(ctx context.Context) error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	var errs []error
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	errs = append(errs, e.systemManager.Shutdown(ctx))
	errs = append(errs, e.assetManager.Shutdown())
	if e.metricsServer != nil {
		errs = append(errs, e.metricsServer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) FrameCount() uint64 {
	return e.frameCount
}

func (e *Engine) Registry() *prometheus.Registry {
	return e.registry
}

func (e *Engine) Device() *software.Device {
	return e.device
}

func (e *Engine) startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	e.metricsServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := e.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			core.LogError("metrics server: %s", err)
		}
	}()
	core.LogInfo("serving metrics on %s/metrics", addr)
}
