package textures

import (
	"fmt"
	"weak"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/spaghettifunk/texstream/engine/core"
	"github.com/spaghettifunk/texstream/engine/math"
	"github.com/spaghettifunk/texstream/engine/renderer"
	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
	"github.com/spaghettifunk/texstream/engine/resources"
)

type TaskKind int

const (
	TaskKindNone TaskKind = iota
	// TaskKindThumbnail produces a single small level.
	TaskKindThumbnail
	// TaskKindLoad produces the full mip chain.
	TaskKindLoad
)

func (k TaskKind) String() string {
	switch k {
	case TaskKindThumbnail:
		return "thumbnail"
	case TaskKindLoad:
		return "load"
	default:
		return "none"
	}
}

type TaskPriority int

const (
	TaskPriorityLow TaskPriority = iota
	TaskPriorityHigh
)

// TaskState only ever moves forward while a task is in use. Release resets it
// to TaskStateNone.
type TaskState int32

const (
	TaskStateNone TaskState = iota
	TaskStateBegun
	TaskStateMipmapInProgress
	TaskStateLoadComplete
	TaskStateCommitted
)

func (s TaskState) String() string {
	switch s {
	case TaskStateNone:
		return "none"
	case TaskStateBegun:
		return "begun"
	case TaskStateMipmapInProgress:
		return "mipmap-in-progress"
	case TaskStateLoadComplete:
		return "load-complete"
	case TaskStateCommitted:
		return "committed"
	default:
		return fmt.Sprintf("TaskState(%d)", int32(s))
	}
}

// beginParams are the loader settings a task needs to size itself.
type beginParams struct {
	limits        renderer.Limits
	thumbnailSize uint32
}

/**
 * @brief A pooled unit of work that turns one texture request into committed
 * device contents. Begin and Load run on whichever goroutine owns the task
 * (a worker, or the device thread for foreground loads); Commit runs on the
 * device thread only.
 */
type LoadTask struct {
	link   taskLink
	shape  metadata.TextureType
	layout surfaceLayout

	id       uuid.UUID
	kind     TaskKind
	priority TaskPriority
	state    atomic.Int32

	texture weak.Pointer[metadata.Texture]
	name    string

	source        resources.Source
	format        metadata.TextureFormat
	width         uint32
	height        uint32
	depth         uint32
	mipLevelCount uint32
	reduction     uint32
	transparent   bool
	failed        bool
	err           error

	// surfaces[face][level] hold the decoded contents in system memory.
	surfaces [][]*renderer.Surface
	face     uint32
	level    uint32
}

func newLoadTask(shape metadata.TextureType) (*LoadTask, error) {
	layout, err := layoutFor(shape)
	if err != nil {
		return nil, err
	}
	t := &LoadTask{shape: shape, layout: layout}
	t.link.task = t
	return t, nil
}

func (t *LoadTask) ID() uuid.UUID                  { return t.id }
func (t *LoadTask) Kind() TaskKind                 { return t.kind }
func (t *LoadTask) Priority() TaskPriority         { return t.priority }
func (t *LoadTask) Shape() metadata.TextureType    { return t.shape }
func (t *LoadTask) State() TaskState               { return TaskState(t.state.Load()) }
func (t *LoadTask) Name() string                   { return t.name }
func (t *LoadTask) Format() metadata.TextureFormat { return t.format }
func (t *LoadTask) Width() uint32                  { return t.width }
func (t *LoadTask) Height() uint32                 { return t.height }
func (t *LoadTask) Depth() uint32                  { return t.depth }
func (t *LoadTask) MipLevelCount() uint32          { return t.mipLevelCount }
func (t *LoadTask) Reduction() uint32              { return t.reduction }
func (t *LoadTask) Failed() bool                   { return t.failed }
func (t *LoadTask) Err() error                     { return t.err }

// Texture returns the target texture, or nil once its owner has dropped it.
func (t *LoadTask) Texture() *metadata.Texture {
	return t.texture.Value()
}

// Surface returns the decoded system-memory surface of one face and level,
// nil when out of range.
func (t *LoadTask) Surface(face, level uint32) *renderer.Surface {
	if int(face) >= len(t.surfaces) || int(level) >= len(t.surfaces[face]) {
		return nil
	}
	return t.surfaces[face][level]
}

// IsQueued reports whether the task is linked into any queue.
func (t *LoadTask) IsQueued() bool {
	return t.link.queue.Load() != nil
}

func (t *LoadTask) setState(s TaskState) {
	if cur := t.State(); s < cur {
		panic(fmt.Sprintf("textures: task %s moving from %s back to %s", t.id, cur, s))
	}
	t.state.Store(int32(s))
}

func (t *LoadTask) init(texture *metadata.Texture, kind TaskKind, priority TaskPriority) {
	t.id = uuid.New()
	t.kind = kind
	t.priority = priority
	t.texture = weak.Make(texture)
	t.name = texture.Name
	t.format = texture.RequestedFormat
}

// reset clears everything tied to a request. The task must be unlinked.
func (t *LoadTask) reset() {
	if t.source != nil {
		t.source.Close()
	}
	t.id = uuid.Nil
	t.kind = TaskKindNone
	t.priority = TaskPriorityLow
	t.state.Store(int32(TaskStateNone))
	t.texture = weak.Pointer[metadata.Texture]{}
	t.name = ""
	t.source = nil
	t.format = metadata.TextureFormatUnknown
	t.width, t.height, t.depth = 0, 0, 0
	t.mipLevelCount = 0
	t.reduction = 0
	t.transparent = false
	t.failed = false
	t.err = nil
	t.surfaces = nil
	t.face, t.level = 0, 0
}

// fail records err and jumps straight to LoadComplete so the commit applies
// the missing-texture fallback.
func (t *LoadTask) fail(err error) {
	core.LogWarn("texture load %q failed: %s", t.name, err)
	if t.source != nil {
		t.source.Close()
		t.source = nil
	}
	t.failed = true
	t.err = err
	t.surfaces = nil
	t.setState(TaskStateLoadComplete)
}

// Begin opens the source, settles format, extents and mip count, and
// allocates the system-memory surfaces. It returns false if the task failed.
func (t *LoadTask) Begin(decoder resources.Decoder, params beginParams) bool {
	if t.State() != TaskStateNone {
		return !t.failed
	}
	src, err := decoder.Open(t.name, t.shape)
	if err != nil {
		t.fail(err)
		return false
	}
	t.source = src
	if err := t.plan(src.Header(), params); err != nil {
		t.fail(err)
		return false
	}

	t.surfaces = make([][]*renderer.Surface, t.layout.faceCount())
	for face := range t.surfaces {
		t.surfaces[face] = make([]*renderer.Surface, t.mipLevelCount)
		for level := uint32(0); level < t.mipLevelCount; level++ {
			w, h, d := t.layout.extent(t.width, t.height, t.depth, level)
			t.surfaces[face][level] = renderer.NewSurface(t.format, w, h, d)
		}
	}
	t.setState(TaskStateBegun)
	return true
}

func (t *LoadTask) plan(hdr resources.Header, params beginParams) error {
	if hdr.TextureType != t.shape {
		return fmt.Errorf("%q is a %s source: %w", t.name, hdr.TextureType, resources.ErrUnsupportedShape)
	}
	format := t.format
	if format == metadata.TextureFormatUnknown {
		format = hdr.Format
	}
	if format == metadata.TextureFormatUnknown {
		format = metadata.TextureFormatRGBA8
	}
	// Block compressed data is never converted, and stored sources cannot
	// be converted either.
	if (format.IsCompressed() || !hdr.Scalable) && hdr.Format != format {
		return fmt.Errorf("%q stores %s, %s requested: %w", t.name, hdr.Format, format, resources.ErrUnsupportedFormat)
	}

	width, height, depth := hdr.Width, hdr.Height, uint32(1)
	if t.shape == metadata.TextureTypeVolume {
		depth = max(hdr.Depth, 1)
	}

	reduction := uint32(0)
	if t.kind == TaskKindThumbnail && params.thumbnailSize > 0 {
		for reduction < 31 && max(math.MipExtent(width, reduction), math.MipExtent(height, reduction)) > params.thumbnailSize {
			reduction++
		}
	}

	var w, h, d uint32
	if hdr.Scalable {
		w, h, d = ValidateSize(params.limits, t.shape,
			math.MipExtent(width, reduction), math.MipExtent(height, reduction), math.MipExtent(depth, reduction))
		for reduction < 31 && (math.MipExtent(width, reduction) > w || math.MipExtent(height, reduction) > h) {
			reduction++
		}
	} else {
		// Stored levels cannot be resampled: pick the first one at or below
		// the reduction that the device accepts as is.
		found := false
		for ; reduction < hdr.MipLevelCount; reduction++ {
			w = math.MipExtent(width, reduction)
			h = math.MipExtent(height, reduction)
			d = math.MipExtent(depth, reduction)
			vw, vh, vd := ValidateSize(params.limits, t.shape, w, h, d)
			if vw == w && vh == h && vd == d {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%q has no level of %dx%dx%d the device accepts: %w", t.name, width, height, depth, resources.ErrSizeMismatch)
		}
	}

	levels := uint32(1)
	switch {
	case t.kind == TaskKindThumbnail:
	case hdr.Scalable:
		levels = math.MipLevelCount(w, h, d)
	default:
		levels = hdr.MipLevelCount - reduction
	}

	t.format = format
	t.width, t.height, t.depth = w, h, d
	t.reduction = reduction
	t.mipLevelCount = levels
	return nil
}

// Load decodes one unit of work: a single face of a single level, or a whole
// level of a volume. It returns true once the task reached LoadComplete.
func (t *LoadTask) Load() bool {
	switch t.State() {
	case TaskStateBegun:
		t.setState(TaskStateMipmapInProgress)
	case TaskStateMipmapInProgress:
	default:
		return t.State() >= TaskStateLoadComplete
	}

	dst := t.surfaces[t.face][t.level]
	if err := t.source.DecodeLevel(t.face, t.level+t.reduction, dst); err != nil {
		t.fail(fmt.Errorf("decode %q face %d level %d: %w", t.name, t.face, t.level, err))
		return true
	}
	if t.level == 0 && !t.transparent {
		t.transparent = hasTransparency(dst)
	}

	t.face++
	if t.face == t.layout.faceCount() {
		t.face = 0
		t.level++
	}
	if t.level < t.mipLevelCount {
		return false
	}
	t.source.Close()
	t.source = nil
	t.setState(TaskStateLoadComplete)
	return true
}

// Commit uploads the decoded contents, or the fallback when the task failed,
// into the target texture. Device thread only.
func (t *LoadTask) Commit(device renderer.Device, fb *fallback) error {
	if s := t.State(); s != TaskStateLoadComplete {
		return fmt.Errorf("commit %q in state %s", t.name, s)
	}
	defer t.setState(TaskStateCommitted)

	texture := t.texture.Value()
	if texture == nil {
		core.LogDebug("texture %q dropped before commit, discarding", t.name)
		return nil
	}
	if t.kind == TaskKindThumbnail && hasFullContents(texture) {
		core.LogDebug("thumbnail of %q arrived after the full load, discarding", t.name)
		return nil
	}
	if t.failed {
		return fb.apply(device, texture, t.layout)
	}

	if err := recreate(device, texture, t.format, t.width, t.height, t.depth, t.mipLevelCount); err != nil {
		t.failed = true
		t.err = err
		return fb.apply(device, texture, t.layout)
	}
	for level := uint32(0); level < t.mipLevelCount; level++ {
		for face := uint32(0); face < t.layout.faceCount(); face++ {
			if err := t.layout.upload(device, texture, t.surfaces[face][level], face, level); err != nil {
				t.failed = true
				t.err = fmt.Errorf("upload %q face %d level %d: %w", t.name, face, level, err)
				core.LogError("%s", t.err)
				return fb.apply(device, texture, t.layout)
			}
		}
	}

	flags := texture.Flags &^ metadata.TextureFlagBits(metadata.TextureFlagIsMissing|metadata.TextureFlagIsThumbnail|metadata.TextureFlagHasTransparency)
	if t.kind == TaskKindThumbnail {
		flags |= metadata.TextureFlagBits(metadata.TextureFlagIsThumbnail)
	}
	if t.transparent {
		flags |= metadata.TextureFlagBits(metadata.TextureFlagHasTransparency)
	}
	texture.Flags = flags
	bumpGeneration(texture)
	return nil
}

// recreate replaces the texture's device resource with one of the given
// layout.
func recreate(device renderer.Device, texture *metadata.Texture, format metadata.TextureFormat, width, height, depth, levels uint32) error {
	if texture.InternalData != nil {
		if err := device.TextureDestroy(texture); err != nil {
			return fmt.Errorf("destroy %q: %w", texture.Name, err)
		}
	}
	texture.Format = format
	texture.Width = width
	texture.Height = height
	texture.Depth = depth
	texture.MipLevelCount = levels
	if err := device.TextureCreate(texture); err != nil {
		return fmt.Errorf("create %q: %w", texture.Name, err)
	}
	return nil
}

func bumpGeneration(texture *metadata.Texture) {
	if texture.Generation == metadata.InvalidID {
		texture.Generation = 0
	} else {
		texture.Generation++
	}
}

// hasFullContents reports whether texture holds a committed full load.
func hasFullContents(texture *metadata.Texture) bool {
	return texture.InternalData != nil &&
		!texture.Flags.Has(metadata.TextureFlagIsThumbnail) &&
		!texture.Flags.Has(metadata.TextureFlagIsMissing)
}

func hasTransparency(s *renderer.Surface) bool {
	if s.Format != metadata.TextureFormatRGBA8 && s.Format != metadata.TextureFormatBGRA8 {
		return false
	}
	for i := 3; i < len(s.Data); i += 4 {
		if s.Data[i] < 255 {
			return true
		}
	}
	return false
}
