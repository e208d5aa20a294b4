package textures

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
)

func TestTaskPoolRecyclesPerShape(t *testing.T) {
	p := NewTaskPool(0, 4)
	plain, err := p.Acquire(metadata.TextureType2d)
	require.NoError(t, err)
	cube, err := p.Acquire(metadata.TextureTypeCube)
	require.NoError(t, err)
	require.Equal(t, 2, p.Stats().Live)

	p.Release(plain)
	p.Release(cube)
	stats := p.Stats()
	require.Zero(t, stats.Live)
	require.Equal(t, 1, stats.Free[metadata.TextureType2d])
	require.Equal(t, 1, stats.Free[metadata.TextureTypeCube])

	again, err := p.Acquire(metadata.TextureTypeCube)
	require.NoError(t, err)
	require.Same(t, cube, again)
	require.Equal(t, uint32(6), again.layout.faceCount())

	volume, err := p.Acquire(metadata.TextureTypeVolume)
	require.NoError(t, err)
	require.NotSame(t, plain, volume)
	require.Equal(t, 3, p.Stats().Created)

	_, err = p.Acquire(metadata.TextureType(42))
	require.ErrorIs(t, err, ErrInvalidShape)
}

func TestTaskPoolAcquireResetsFields(t *testing.T) {
	dec := newFakeDecoder()
	dec.addMips("sign", metadata.TextureType2d, metadata.TextureFormatRGBA8, 4, 4, 1)
	p := NewTaskPool(0, 4)

	task, err := p.Acquire(metadata.TextureType2d)
	require.NoError(t, err)
	tex := &metadata.Texture{Name: "sign", TextureType: metadata.TextureType2d}
	task.init(tex, TaskKindLoad, TaskPriorityHigh)
	runTask(t, task, dec, testParams())
	p.Release(task)

	again, err := p.Acquire(metadata.TextureType2d)
	require.NoError(t, err)
	require.Same(t, task, again)
	require.Equal(t, TaskStateNone, again.State())
	require.Equal(t, TaskKindNone, again.Kind())
	require.Nil(t, again.Texture())
	require.Nil(t, again.Surface(0, 0))
	require.False(t, again.IsQueued())
}

func TestTaskPoolLimits(t *testing.T) {
	p := NewTaskPool(2, 1)
	a, err := p.Acquire(metadata.TextureType2d)
	require.NoError(t, err)
	b, err := p.Acquire(metadata.TextureType2d)
	require.NoError(t, err)
	_, err = p.Acquire(metadata.TextureTypeVolume)
	require.ErrorIs(t, err, ErrPoolExhausted)

	require.ErrorIs(t, p.DrainAll(), ErrTasksInFlight)

	p.Release(a)
	p.Release(b)
	require.Equal(t, 1, p.Stats().Free[metadata.TextureType2d], "free list is capped")

	require.NoError(t, p.DrainAll())
	require.Zero(t, p.Stats().Free[metadata.TextureType2d])
}

func TestTaskPoolRejectsQueuedRelease(t *testing.T) {
	p := NewTaskPool(0, 1)
	task, err := p.Acquire(metadata.TextureType2d)
	require.NoError(t, err)
	q := NewTaskQueue()
	q.PushBack(task)
	require.Panics(t, func() { p.Release(task) })
}
