// Package software provides a Device backed by system memory. It behaves like
// a hardware device as far as the loader can tell: resources are created and
// locked only on the bound device thread, and locked rows are padded to the
// configured alignment.
package software

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/spaghettifunk/texstream/engine/core"
	"github.com/spaghettifunk/texstream/engine/math"
	"github.com/spaghettifunk/texstream/engine/renderer"
	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
)

const defaultRowAlignment uint32 = 16

type level struct {
	surface renderer.Surface
	locked  bool
}

type resource struct {
	textureType metadata.TextureType
	// faces[face][level]
	faces [][]*level
}

type Device struct {
	affinity  core.ThreadAffinity
	limits    renderer.Limits
	alignment uint32

	mu        sync.Mutex
	resources map[*resource]struct{}

	mutations  atomic.Int64
	violations atomic.Int64
}

// NewDevice creates a device bound to the calling goroutine.
func NewDevice(limits renderer.Limits) *Device {
	d := &Device{
		limits:    limits,
		alignment: defaultRowAlignment,
		resources: make(map[*resource]struct{}),
	}
	d.affinity.Bind()
	return d
}

// BindDeviceThread moves ownership to the calling goroutine.
func (d *Device) BindDeviceThread() {
	d.affinity.Bind()
}

func (d *Device) Limits() renderer.Limits {
	return d.limits
}

// Mutations counts successful create, destroy and lock calls.
func (d *Device) Mutations() int64 {
	return d.mutations.Load()
}

// Violations counts calls rejected for running off the device thread.
func (d *Device) Violations() int64 {
	return d.violations.Load()
}

func (d *Device) LiveResources() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.resources)
}

func (d *Device) checkThread(op string) error {
	if d.affinity.IsOwner() {
		return nil
	}
	d.violations.Inc()
	core.LogError("software device: %s called off the device thread", op)
	return fmt.Errorf("%s: %w", op, core.ErrWrongThread)
}

func (d *Device) TextureCreate(texture *metadata.Texture) error {
	if err := d.checkThread("TextureCreate"); err != nil {
		return err
	}
	if texture.Format.BytesPerBlock() == 0 {
		return fmt.Errorf("TextureCreate %q: unsupported format %s", texture.Name, texture.Format)
	}
	if texture.Width == 0 || texture.Height == 0 {
		return fmt.Errorf("TextureCreate %q: zero extent %dx%d", texture.Name, texture.Width, texture.Height)
	}

	depth := uint32(1)
	if texture.TextureType == metadata.TextureTypeVolume {
		depth = max(texture.Depth, 1)
	}
	levels := max(texture.MipLevelCount, 1)

	res := &resource{
		textureType: texture.TextureType,
		faces:       make([][]*level, texture.TextureType.FaceCount()),
	}
	for f := range res.faces {
		res.faces[f] = make([]*level, levels)
		for l := uint32(0); l < levels; l++ {
			w := math.MipExtent(texture.Width, l)
			h := math.MipExtent(texture.Height, l)
			dd := math.MipExtent(depth, l)
			pitch := metadata.GetAligned(texture.Format.RowPitch(w), d.alignment)
			slice := pitch * texture.Format.RowCount(h)
			s := renderer.Surface{
				Format: texture.Format,
				Width:  w,
				Height: h,
				Depth:  dd,
				Pitch:  pitch,
				Data:   make([]byte, slice*dd),
			}
			if texture.TextureType == metadata.TextureTypeVolume {
				s.SlicePitch = slice
			}
			res.faces[f][l] = &level{surface: s}
		}
	}

	d.mu.Lock()
	d.resources[res] = struct{}{}
	d.mu.Unlock()

	texture.InternalData = res
	d.mutations.Inc()
	return nil
}

func (d *Device) TextureDestroy(texture *metadata.Texture) error {
	if err := d.checkThread("TextureDestroy"); err != nil {
		return err
	}
	res, ok := texture.InternalData.(*resource)
	if !ok || res == nil {
		return renderer.ErrNoResource
	}
	d.mu.Lock()
	delete(d.resources, res)
	d.mu.Unlock()

	texture.InternalData = nil
	d.mutations.Inc()
	return nil
}

func (d *Device) lookup(texture *metadata.Texture, face, lvl uint32) (*level, error) {
	res, ok := texture.InternalData.(*resource)
	if !ok || res == nil {
		return nil, renderer.ErrNoResource
	}
	if int(face) >= len(res.faces) || int(lvl) >= len(res.faces[face]) {
		return nil, fmt.Errorf("%w: face %d level %d", renderer.ErrInvalidSurface, face, lvl)
	}
	return res.faces[face][lvl], nil
}

func (d *Device) TextureLock(texture *metadata.Texture, face, lvl uint32) (*renderer.Surface, error) {
	if err := d.checkThread("TextureLock"); err != nil {
		return nil, err
	}
	l, err := d.lookup(texture, face, lvl)
	if err != nil {
		return nil, err
	}
	if l.locked {
		return nil, renderer.ErrSurfaceLocked
	}
	l.locked = true
	d.mutations.Inc()
	s := l.surface
	return &s, nil
}

func (d *Device) TextureUnlock(texture *metadata.Texture, face, lvl uint32) error {
	if err := d.checkThread("TextureUnlock"); err != nil {
		return err
	}
	l, err := d.lookup(texture, face, lvl)
	if err != nil {
		return err
	}
	if !l.locked {
		return renderer.ErrSurfaceNotLocked
	}
	l.locked = false
	return nil
}

// ReadSurface returns a tightly packed copy of one sub-surface. It is a debug
// readback and does not require the device thread.
func (d *Device) ReadSurface(texture *metadata.Texture, face, lvl uint32) (*renderer.Surface, error) {
	l, err := d.lookup(texture, face, lvl)
	if err != nil {
		return nil, err
	}
	out := renderer.NewSurface(l.surface.Format, l.surface.Width, l.surface.Height, l.surface.Depth)
	if err := out.CopyFrom(&l.surface); err != nil {
		return nil, err
	}
	return out, nil
}
