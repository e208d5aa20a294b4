package textures

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/texstream/engine/math"
	"github.com/spaghettifunk/texstream/engine/renderer"
	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
	"github.com/spaghettifunk/texstream/engine/resources"
)

// fakeAsset describes a source served by fakeDecoder.
type fakeAsset struct {
	header resources.Header
	opaque bool
	// failAt makes the n-th DecodeLevel call (1-based) fail.
	failAt int
	// gate, when set, blocks every DecodeLevel until it receives or closes;
	// entered is signalled before blocking.
	gate    chan struct{}
	entered chan struct{}
}

type fakeDecoder struct {
	mu     sync.Mutex
	assets map[string]*fakeAsset
	opened []string
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{assets: make(map[string]*fakeAsset)}
}

func (d *fakeDecoder) add(name string, asset *fakeAsset) *fakeAsset {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assets[name] = asset
	return asset
}

// addMips registers a stored (non-scalable) source with a full mip chain.
func (d *fakeDecoder) addMips(name string, shape metadata.TextureType, format metadata.TextureFormat, w, h, depth uint32) *fakeAsset {
	return d.add(name, &fakeAsset{header: resources.Header{
		TextureType:   shape,
		Format:        format,
		Width:         w,
		Height:        h,
		Depth:         depth,
		MipLevelCount: math.MipLevelCount(w, h, depth),
	}})
}

// opens returns the names opened so far, in order.
func (d *fakeDecoder) opens() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.opened...)
}

func (d *fakeDecoder) Open(name string, textureType metadata.TextureType) (resources.Source, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	asset, ok := d.assets[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, resources.ErrAssetNotFound)
	}
	d.opened = append(d.opened, name)
	return &fakeSource{asset: asset}, nil
}

type fakeSource struct {
	asset  *fakeAsset
	calls  int
	closed bool
}

func (s *fakeSource) Header() resources.Header {
	return s.asset.header
}

func (s *fakeSource) DecodeLevel(face, level uint32, dst *renderer.Surface) error {
	if s.closed {
		return resources.ErrSourceClosed
	}
	if s.asset.gate != nil {
		select {
		case s.asset.entered <- struct{}{}:
		default:
		}
		<-s.asset.gate
	}
	s.calls++
	if s.asset.failAt == s.calls {
		return resources.ErrCorruptSource
	}
	hdr := s.asset.header
	if face >= hdr.TextureType.FaceCount() || (!hdr.Scalable && level >= hdr.MipLevelCount) {
		return resources.ErrLevelOutOfRange
	}
	if !hdr.Scalable {
		if dst.Format != hdr.Format {
			return resources.ErrUnsupportedFormat
		}
		if dst.Width != math.MipExtent(hdr.Width, level) || dst.Height != math.MipExtent(hdr.Height, level) {
			return resources.ErrSizeMismatch
		}
	}
	fillPattern(dst, face, level, s.asset.opaque)
	return nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

func fillPattern(s *renderer.Surface, face, level uint32, opaque bool) {
	rows := s.Format.RowCount(s.Height)
	for z := uint32(0); z < max(s.Depth, 1); z++ {
		for y := uint32(0); y < rows; y++ {
			row := s.Row(y, z)
			for i := range row {
				row[i] = byte(face*31 + level*17 + z*7 + y*5 + uint32(i))
				if opaque && s.Format.BytesPerBlock() == 4 && i%4 == 3 {
					row[i] = 255
				}
			}
		}
	}
}

// expectedSurface is what a device surface holds after committing the
// pattern of one face and source level.
func expectedSurface(format metadata.TextureFormat, w, h, d, face, level uint32, opaque bool) *renderer.Surface {
	s := renderer.NewSurface(format, w, h, d)
	fillPattern(s, face, level, opaque)
	return s
}
