package renderhost

import (
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/renderhost/config"
	"github.com/gogpu/renderhost/host"
)

var errFake = errors.New("fake: injected failure")

type fakeContext struct {
	version host.APIVersion
	share   host.Context
}

func (c *fakeContext) Version() host.APIVersion { return c.version }

type fakeSurface struct {
	w, h    int
	cb      host.ColorBuffer
	flushes int
}

func (s *fakeSurface) Size() (int, int)                   { return s.w, s.h }
func (s *fakeSurface) SetColorBuffer(cb host.ColorBuffer) { s.cb = cb }

func (s *fakeSurface) Flush() error {
	s.flushes++
	return nil
}

type fakeColorBuffer struct {
	mu      sync.Mutex
	desc    host.ColorBufferDesc
	pix     []byte
	touches int
}

func (c *fakeColorBuffer) Desc() host.ColorBufferDesc { return c.desc }

func (c *fakeColorBuffer) ReadPixels(r image.Rectangle, dst []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !r.In(c.desc.Bounds()) || len(dst) < r.Dx()*r.Dy()*4 {
		return errFake
	}
	for y := 0; y < r.Dy(); y++ {
		off := ((r.Min.Y+y)*c.desc.Width + r.Min.X) * 4
		copy(dst[y*r.Dx()*4:(y+1)*r.Dx()*4], c.pix[off:off+r.Dx()*4])
	}
	return nil
}

func (c *fakeColorBuffer) UpdatePixels(r image.Rectangle, src []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !r.In(c.desc.Bounds()) || len(src) < r.Dx()*r.Dy()*4 {
		return errFake
	}
	for y := 0; y < r.Dy(); y++ {
		off := ((r.Min.Y+y)*c.desc.Width + r.Min.X) * 4
		copy(c.pix[off:off+r.Dx()*4], src[y*r.Dx()*4:(y+1)*r.Dx()*4])
	}
	return nil
}

func (c *fakeColorBuffer) Touch() {
	c.mu.Lock()
	c.touches++
	c.mu.Unlock()
}

type fakeImage struct{ target uint32 }

func (i *fakeImage) Target() uint32 { return i.target }

type fakeWindow struct {
	mu      sync.Mutex
	w, h    int
	binding host.Binding
	frames  []*image.RGBA
}

func (w *fakeWindow) Size() (int, int)      { return w.w, w.h }
func (w *fakeWindow) Binding() host.Binding { return w.binding }

func (w *fakeWindow) Present(img *image.RGBA) error {
	cp := image.NewRGBA(img.Rect)
	copy(cp.Pix, img.Pix)
	w.mu.Lock()
	w.frames = append(w.frames, cp)
	w.mu.Unlock()
	return nil
}

func (w *fakeWindow) lastFrame() *image.RGBA {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.frames) == 0 {
		return nil
	}
	return w.frames[len(w.frames)-1]
}

// fakeBackend is an in-memory host.Backend.
type fakeBackend struct {
	mu       sync.Mutex
	source   config.Source
	internal host.Binding

	failContext bool
	failSurface bool
	failCurrent bool

	contexts     map[*fakeContext]bool
	surfaces     map[*fakeSurface]bool
	colorBuffers map[*fakeColorBuffer]bool
	images       map[*fakeImage]bool
	windows      []*fakeWindow
	current      host.Binding
	makeCurrents int
	destroyedCBs []uint32
}

func newFakeBackend() *fakeBackend {
	rows := make([][config.NumAttributes]int32, 1)
	rows[0] = config.ReferenceConfigs[0]
	ctx := &fakeContext{version: host.APIVersionES2}
	surf := &fakeSurface{w: 1, h: 1}
	return &fakeBackend{
		source:       config.NewStaticSource(rows),
		internal:     host.Binding{Context: ctx, Draw: surf, Read: surf},
		contexts:     make(map[*fakeContext]bool),
		surfaces:     make(map[*fakeSurface]bool),
		colorBuffers: make(map[*fakeColorBuffer]bool),
		images:       make(map[*fakeImage]bool),
	}
}

func (b *fakeBackend) Info() host.Info {
	return host.Info{Vendor: "fake", Renderer: "fake renderer", Version: "OpenGL ES 3.0", Extensions: "GL_OES_EGL_image"}
}

func (b *fakeBackend) CreateContext(_ *config.Config, share host.Context, version host.APIVersion) (host.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failContext {
		return nil, errFake
	}
	c := &fakeContext{version: version, share: share}
	b.contexts[c] = true
	return c, nil
}

func (b *fakeBackend) DestroyContext(ctx host.Context) {
	b.mu.Lock()
	delete(b.contexts, ctx.(*fakeContext))
	b.mu.Unlock()
}

func (b *fakeBackend) CreateSurface(_ *config.Config, width, height int) (host.Surface, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSurface {
		return nil, errFake
	}
	s := &fakeSurface{w: width, h: height}
	b.surfaces[s] = true
	return s, nil
}

func (b *fakeBackend) DestroySurface(s host.Surface) {
	b.mu.Lock()
	delete(b.surfaces, s.(*fakeSurface))
	b.mu.Unlock()
}

func (b *fakeBackend) CreateColorBuffer(desc host.ColorBufferDesc) (host.ColorBuffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cb := &fakeColorBuffer{desc: desc, pix: make([]byte, desc.Width*desc.Height*4)}
	b.colorBuffers[cb] = true
	return cb, nil
}

func (b *fakeBackend) DestroyColorBuffer(cb host.ColorBuffer) {
	b.mu.Lock()
	delete(b.colorBuffers, cb.(*fakeColorBuffer))
	b.destroyedCBs = append(b.destroyedCBs, cb.Desc().Handle)
	b.mu.Unlock()
}

func (b *fakeBackend) CreateImage(_ host.Context, target, _ uint32) (host.Image, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	img := &fakeImage{target: target}
	b.images[img] = true
	return img, nil
}

func (b *fakeBackend) DestroyImage(img host.Image) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	fi := img.(*fakeImage)
	if !b.images[fi] {
		return errFake
	}
	delete(b.images, fi)
	return nil
}

func (b *fakeBackend) MakeCurrent(bind host.Binding) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failCurrent {
		return errFake
	}
	b.current = bind
	b.makeCurrents++
	return nil
}

func (b *fakeBackend) InternalBinding() host.Binding { return b.internal }

func (b *fakeBackend) CreateWindow(_ any, width, height int) (host.Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ctx := &fakeContext{version: host.APIVersionES2}
	surf := &fakeSurface{w: width, h: height}
	w := &fakeWindow{w: width, h: height, binding: host.Binding{Context: ctx, Draw: surf, Read: surf}}
	b.windows = append(b.windows, w)
	return w, nil
}

func (b *fakeBackend) DestroyWindow(host.Window) {}

func (b *fakeBackend) ConfigSource() config.Source { return b.source }

func (b *fakeBackend) Close() error { return nil }

// live returns the number of live host objects of each kind.
func (b *fakeBackend) live() (contexts, surfaces, colorBuffers, images int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.contexts), len(b.surfaces), len(b.colorBuffers), len(b.images)
}

func (b *fakeBackend) makeCurrentCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.makeCurrents
}

// manualClock is a clock tests advance by hand.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newTestFrameBuffer returns a FrameBuffer on a fake backend with a manual
// clock. It is finalized when the test ends.
func newTestFrameBuffer(t *testing.T, opts ...Option) (*FrameBuffer, *fakeBackend, *manualClock) {
	t.Helper()
	b := newFakeBackend()
	clk := newManualClock()
	all := append([]Option{WithBackend(b), WithClock(clk.Now)}, opts...)
	fb, err := New(all...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(fb.Finalize)
	return fb, b, clk
}

// refCount returns the reference count of h, or -1 when h is gone.
func refCount(fb *FrameBuffer, h Handle) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	cb, ok := fb.colorBuffers[h]
	if !ok {
		return -1
	}
	return cb.refCount
}
