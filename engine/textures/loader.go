package textures

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/texstream/engine/core"
	"github.com/spaghettifunk/texstream/engine/renderer"
	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
	"github.com/spaghettifunk/texstream/engine/resources"
)

// LoaderStats is a snapshot of the loader queues.
type LoaderStats struct {
	Pending   int
	Finished  int
	InFlight  int64
	Suspended bool
	Pool      PoolStats
}

/**
 * @brief Schedules texture loads. Requests are decoded by a background worker
 * into system memory and committed to the device on the device thread by
 * Update or FlushPendingLoads. Foreground loads run to completion on the
 * device thread right away.
 */
type Loader struct {
	config   LoaderConfig
	device   renderer.Device
	decoder  resources.Decoder
	metrics  *core.LoaderMetrics
	fallback *fallback
	defaults *metadata.DefaultTexture

	deviceThread core.ThreadAffinity
	pool         *TaskPool
	pending      *SynchronizedTaskQueue
	finished     *SynchronizedTaskQueue

	suspended        atomic.Bool
	closed           atomic.Bool
	inFlight         atomic.Int64
	inactiveOverride atomic.Duration

	wake chan struct{}
	// mu and progress wake FlushPendingLoads whenever the worker moves a task.
	mu       sync.Mutex
	progress *sync.Cond

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewLoader creates a loader and binds the calling goroutine as its device
// thread. metrics may be nil.
func NewLoader(config LoaderConfig, device renderer.Device, decoder resources.Decoder, metrics *core.LoaderMetrics) (*Loader, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = core.NewLoaderMetrics(nil)
	}
	defaults := metadata.NewDefaultTexture()
	defaults.CreateSkeletonTextures()

	l := &Loader{
		config:   config,
		device:   device,
		decoder:  decoder,
		metrics:  metrics,
		fallback: newFallback(defaults),
		defaults: defaults,
		pool:     NewTaskPool(config.MaxTasks, config.MaxFreePerShape),
		pending:  NewSynchronizedTaskQueue(),
		finished: NewSynchronizedTaskQueue(),
		wake:     make(chan struct{}, 1),
	}
	l.progress = sync.NewCond(&l.mu)
	l.inactiveOverride.Store(time.Duration(config.InactiveOverrideTimeMS) * time.Millisecond)
	l.deviceThread.Bind()
	return l, nil
}

// Start launches the background worker. It stops when ctx is cancelled or
// the loader is closed.
func (l *Loader) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.group, ctx = errgroup.WithContext(ctx)
	l.group.Go(func() error {
		return l.work(ctx)
	})
	core.LogInfo("texture loader started (max tasks %d, commit batch %d)", l.config.MaxTasks, l.config.CommitBatch)
}

// Close stops the worker and drops every uncommitted task. Textures whose
// loads were dropped keep their current contents.
func (l *Loader) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if l.cancel != nil {
		l.cancel()
		err = l.group.Wait()
	}
	dropped := 0
	for _, q := range []*SynchronizedTaskQueue{l.pending, l.finished} {
		for task := q.PopFront(); task != nil; task = q.PopFront() {
			l.retire(task)
			dropped++
		}
	}
	if dropped > 0 {
		core.LogWarn("texture loader closed with %d uncommitted tasks", dropped)
	}
	if drainErr := l.pool.DrainAll(); drainErr != nil && err == nil {
		err = drainErr
	}
	l.signal()
	return err
}

// BindDeviceThread makes the calling goroutine the device thread.
func (l *Loader) BindDeviceThread() {
	l.deviceThread.Bind()
}

// IsDeviceThread reports whether the caller runs on the device thread.
func (l *Loader) IsDeviceThread() bool {
	return l.deviceThread.IsOwner()
}

// ValidateSize returns the nearest extents the loader's device accepts.
func (l *Loader) ValidateSize(shape metadata.TextureType, width, height, depth uint32) (uint32, uint32, uint32) {
	return ValidateSize(l.device.Limits(), shape, width, height, depth)
}

// Suspend stops the worker from picking up tasks. A task the worker already
// holds finishes its current step.
func (l *Loader) Suspend() {
	l.suspended.Store(true)
	core.LogDebug("texture loader suspended")
}

func (l *Loader) Resume() {
	l.suspended.Store(false)
	l.wakeWorker()
	core.LogDebug("texture loader resumed")
}

func (l *Loader) IsSuspended() bool {
	return l.suspended.Load()
}

// SetInactiveOverrideTime stores how long a texture may stay unused before a
// residency policy may evict it. The loader itself does not evict.
func (l *Loader) SetInactiveOverrideTime(d time.Duration) {
	l.inactiveOverride.Store(d)
}

func (l *Loader) InactiveOverrideTime() time.Duration {
	return l.inactiveOverride.Load()
}

// DefaultTexture returns the generated missing-texture asset.
func (l *Loader) DefaultTexture() *metadata.DefaultTexture {
	return l.defaults
}

func (l *Loader) Stats() LoaderStats {
	return LoaderStats{
		Pending:   l.pending.Len(),
		Finished:  l.finished.Len(),
		InFlight:  l.inFlight.Load(),
		Suspended: l.suspended.Load(),
		Pool:      l.pool.Stats(),
	}
}

// RequestBackgroundLoad queues a full load of texture at low priority.
func (l *Loader) RequestBackgroundLoad(texture *metadata.Texture) (*LoadTask, error) {
	return l.request(texture, TaskKindLoad, TaskPriorityLow)
}

// RequestThumbnail queues a single-level load no larger than the configured
// thumbnail size, ahead of every background load.
func (l *Loader) RequestThumbnail(texture *metadata.Texture) (*LoadTask, error) {
	return l.request(texture, TaskKindThumbnail, TaskPriorityHigh)
}

func (l *Loader) request(texture *metadata.Texture, kind TaskKind, priority TaskPriority) (*LoadTask, error) {
	if l.closed.Load() {
		return nil, ErrLoaderClosed
	}
	if texture == nil {
		return nil, fmt.Errorf("request %s: %w", kind, ErrNilTexture)
	}
	task, err := l.acquire(texture, kind, priority)
	if err != nil {
		return nil, err
	}
	if priority == TaskPriorityHigh {
		l.pending.PushFront(task)
	} else {
		l.pending.PushBack(task)
	}
	core.LogDebug("texture %s %q accepted as task %s", kind, texture.Name, task.ID())
	l.wakeWorker()
	return task, nil
}

func (l *Loader) acquire(texture *metadata.Texture, kind TaskKind, priority TaskPriority) (*LoadTask, error) {
	task, err := l.pool.Acquire(texture.TextureType)
	if err != nil {
		l.metrics.Exhausted.Inc()
		core.LogWarn("texture load %q rejected: %s", texture.Name, err)
		return nil, err
	}
	task.init(texture, kind, priority)
	l.inFlight.Inc()
	l.metrics.InFlight.Inc()
	l.metrics.Requested.WithLabelValues(kind.String()).Inc()
	return task, nil
}

// RequestForegroundLoad loads and commits texture before returning. It must
// be called on the device thread; elsewhere it fails with core.ErrWrongThread
// and touches nothing. When the pool is exhausted the texture gets the
// missing-texture fallback and the error is returned.
func (l *Loader) RequestForegroundLoad(texture *metadata.Texture) error {
	if !l.IsDeviceThread() {
		core.LogError("foreground load requested off the device thread")
		return fmt.Errorf("request foreground load: %w", core.ErrWrongThread)
	}
	if l.closed.Load() {
		return ErrLoaderClosed
	}
	if texture == nil {
		return fmt.Errorf("request foreground load: %w", ErrNilTexture)
	}
	task, err := l.acquire(texture, TaskKindLoad, TaskPriorityHigh)
	if err != nil {
		if fbErr := l.ApplyFallback(texture); fbErr != nil {
			core.LogError("fallback for %q: %s", texture.Name, fbErr)
		}
		return err
	}
	for !l.advance(task) {
	}
	l.commit(task)
	return nil
}

// Cancel removes a task that is still waiting in the pending queue and
// reports whether it did. A task the worker holds, or one already finished,
// runs to completion. The handle must not be used after a successful
// cancel, nor after the task was committed.
func (l *Loader) Cancel(task *LoadTask) bool {
	if task == nil || !l.pending.TryRemove(task) {
		return false
	}
	l.metrics.Cancelled.Inc()
	core.LogDebug("texture load %q cancelled", task.Name())
	l.retire(task)
	l.signal()
	return true
}

// ApplyFallback gives texture the missing-texture contents. Device thread only.
func (l *Loader) ApplyFallback(texture *metadata.Texture) error {
	if !l.IsDeviceThread() {
		return fmt.Errorf("apply fallback: %w", core.ErrWrongThread)
	}
	layout, err := layoutFor(texture.TextureType)
	if err != nil {
		return err
	}
	return l.fallback.apply(l.device, texture, layout)
}

// Update commits up to CommitBatch finished tasks. heartbeat, when not nil,
// is called each time the commit phase has run for HeartbeatInterval.
func (l *Loader) Update(heartbeat func()) error {
	if !l.IsDeviceThread() {
		return fmt.Errorf("loader update: %w", core.ErrWrongThread)
	}
	clock := core.NewClock()
	clock.Start()
	interval := l.config.heartbeatInterval()
	for i := 0; i < l.config.CommitBatch; i++ {
		task := l.finished.PopFront()
		if task == nil {
			break
		}
		l.commit(task)
		if heartbeat == nil {
			continue
		}
		clock.Update()
		if clock.Elapsed() >= interval {
			heartbeat()
			clock.Start()
		}
	}
	return nil
}

// FlushPendingLoads commits every accepted task before returning, decoding
// queued ones on the calling goroutine instead of waiting for the worker.
// Device thread only. It ignores suspension.
func (l *Loader) FlushPendingLoads(ctx context.Context) error {
	if !l.IsDeviceThread() {
		return fmt.Errorf("flush pending loads: %w", core.ErrWrongThread)
	}
	stop := context.AfterFunc(ctx, l.signal)
	defer stop()

	core.LogDebug("flushing texture loads, %d in flight", l.inFlight.Load())
	for {
		for task := l.finished.PopFront(); task != nil; task = l.finished.PopFront() {
			l.commit(task)
		}
		if task := l.pending.PopFront(); task != nil {
			for !l.advance(task) {
			}
			l.commit(task)
			continue
		}
		if l.inFlight.Load() == 0 {
			core.LogDebug("texture loads flushed")
			return nil
		}

		// Whatever is left is in the worker's hands.
		l.mu.Lock()
		for l.finished.IsEmpty() && l.pending.IsEmpty() && l.inFlight.Load() > 0 && ctx.Err() == nil {
			l.progress.Wait()
		}
		l.mu.Unlock()
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// advance runs one step of task and reports whether it reached LoadComplete.
func (l *Loader) advance(task *LoadTask) bool {
	switch task.State() {
	case TaskStateNone:
		params := beginParams{limits: l.device.Limits(), thumbnailSize: l.config.ThumbnailSize}
		return !task.Begin(l.decoder, params)
	case TaskStateBegun, TaskStateMipmapInProgress:
		return task.Load()
	default:
		return true
	}
}

func (l *Loader) commit(task *LoadTask) {
	start := time.Now()
	if err := task.Commit(l.device, l.fallback); err != nil {
		core.LogError("commit texture %q: %s", task.Name(), err)
	}
	if task.Failed() {
		l.metrics.Failed.Inc()
	}
	l.metrics.Committed.WithLabelValues(task.Shape().String()).Inc()
	l.metrics.CommitTime.Observe(time.Since(start).Seconds())
	l.retire(task)
}

// retire returns a task that left the queues to the pool.
func (l *Loader) retire(task *LoadTask) {
	l.pool.Release(task)
	l.inFlight.Dec()
	l.metrics.InFlight.Dec()
}

func (l *Loader) work(ctx context.Context) error {
	idle := time.NewTimer(l.config.idlePoll())
	defer idle.Stop()
	for {
		if ctx.Err() != nil {
			return nil
		}
		var task *LoadTask
		if !l.suspended.Load() {
			task = l.pending.PopFront()
		}
		if task == nil {
			idle.Reset(l.config.idlePoll())
			select {
			case <-ctx.Done():
				return nil
			case <-l.wake:
			case <-idle.C:
			}
			continue
		}

		if l.advance(task) {
			l.finished.PushBack(task)
		} else {
			l.pending.PushBack(task)
		}
		l.signal()
	}
}

func (l *Loader) wakeWorker() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loader) signal() {
	l.mu.Lock()
	l.progress.Broadcast()
	l.mu.Unlock()
}
