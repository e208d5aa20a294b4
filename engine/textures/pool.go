package textures

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/texstream/engine/containers"
	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
)

var poolShapes = [...]metadata.TextureType{
	metadata.TextureType2d,
	metadata.TextureTypeCube,
	metadata.TextureTypeVolume,
}

// PoolStats is a snapshot of the task pool.
type PoolStats struct {
	// Live counts tasks handed out and not yet released.
	Live int
	// Free counts recycled tasks per shape.
	Free    map[metadata.TextureType]int
	Created int
}

/**
 * @brief Recycles load tasks through one free list per shape, so a task keeps
 * the surface layout it was built with. Safe for concurrent use.
 */
type TaskPool struct {
	mu      sync.Mutex
	free    map[metadata.TextureType]*containers.Stack[*LoadTask]
	limit   int
	live    int
	created int
}

// NewTaskPool builds a pool handing out at most limit live tasks (zero means
// no limit) and keeping at most maxFree idle tasks per shape.
func NewTaskPool(limit, maxFree int) *TaskPool {
	p := &TaskPool{
		free:  make(map[metadata.TextureType]*containers.Stack[*LoadTask], len(poolShapes)),
		limit: limit,
	}
	for _, shape := range poolShapes {
		p.free[shape] = containers.NewStack[*LoadTask](maxFree)
	}
	return p
}

// Acquire pops a recycled task of the given shape or constructs one. The
// task comes back with every request field reset.
func (p *TaskPool) Acquire(shape metadata.TextureType) (*LoadTask, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	free, ok := p.free[shape]
	if !ok {
		return nil, fmt.Errorf("acquire load task: %w: %s", ErrInvalidShape, shape)
	}
	if p.limit > 0 && p.live >= p.limit {
		return nil, fmt.Errorf("acquire %s load task: %w (%d live)", shape, ErrPoolExhausted, p.live)
	}

	task, err := free.Pop()
	if err != nil {
		if task, err = newLoadTask(shape); err != nil {
			return nil, err
		}
		p.created++
	}
	task.reset()
	p.live++
	return task, nil
}

// Release resets task and returns it to the free list of its shape. Tasks
// beyond the free-list cap are left to the garbage collector.
func (p *TaskPool) Release(task *LoadTask) {
	if task.IsQueued() {
		panic("textures: releasing a task that is still queued")
	}
	task.reset()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.live--
	_ = p.free[task.shape].Push(task)
}

// DrainAll drops every idle task. It fails while tasks are still live.
func (p *TaskPool) DrainAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.live > 0 {
		return fmt.Errorf("drain task pool: %w (%d live)", ErrTasksInFlight, p.live)
	}
	for _, free := range p.free {
		free.Drain(func(task *LoadTask) {
			task.layout = nil
			task.link.task = nil
		})
	}
	return nil
}

func (p *TaskPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := PoolStats{
		Live:    p.live,
		Free:    make(map[metadata.TextureType]int, len(p.free)),
		Created: p.created,
	}
	for shape, free := range p.free {
		s.Free[shape] = free.Len()
	}
	return s
}
