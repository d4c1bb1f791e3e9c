package renderhost

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/renderhost/internal/worker"
)

var (
	red   = color.RGBA{R: 0xff, A: 0xff}
	green = color.RGBA{G: 0xff, A: 0xff}
	blue  = color.RGBA{B: 0xff, A: 0xff}
)

func filledColorBuffer(t *testing.T, fb *FrameBuffer, rt *RenderThread, w, h int, c color.RGBA) Handle {
	t.Helper()
	cb := newTestColorBuffer(t, fb, rt, w, h)
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = c.R, c.G, c.B, c.A
	}
	if err := fb.ReplaceColorBufferContents(rt, cb, pix); err != nil {
		t.Fatalf("ReplaceColorBufferContents() error = %v", err)
	}
	return cb
}

func uniform(img *image.RGBA, c color.RGBA) bool {
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		for x := img.Rect.Min.X; x < img.Rect.Max.X; x++ {
			if img.RGBAAt(x, y) != c {
				return false
			}
		}
	}
	return true
}

func (b *fakeBackend) window(t *testing.T) *fakeWindow {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.windows) == 0 {
		t.Fatal("no window created")
	}
	return b.windows[len(b.windows)-1]
}

// waitPresented waits for every queued presentation command by taking a screenshot.
func waitPresented(t *testing.T, fb *FrameBuffer) {
	t.Helper()
	if _, err := fb.Screenshot(4, 1, 1, Rotate0, make([]byte, 4)); err != nil && !errors.Is(err, ErrNoFrame) {
		t.Fatalf("Screenshot() error = %v", err)
	}
}

func TestPostWithoutSubWindow(t *testing.T) {
	fb, _, _ := newTestFrameBuffer(t)
	rt := NewRenderThread(1)

	if err := fb.SetupSubWindow(nil, 0, 0, 4, 4, Rotate0); !errors.Is(err, ErrNoSubWindow) {
		t.Errorf("SetupSubWindow() error = %v, want ErrNoSubWindow", err)
	}
	if err := fb.Repost(); err != nil {
		t.Errorf("Repost() with nothing posted error = %v", err)
	}

	cb := filledColorBuffer(t, fb, rt, 4, 4, red)
	if err := fb.Post(cb); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if got := fb.LastPosted(); got != cb {
		t.Errorf("LastPosted() = %v, want %v", got, cb)
	}
	if err := fb.Post(999); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Post(unknown) error = %v", err)
	}
	if err := fb.ClearWindow(); !errors.Is(err, ErrNoSubWindow) {
		t.Errorf("ClearWindow() error = %v", err)
	}
}

func TestPostCancelsDelayedClose(t *testing.T) {
	fb, _, clk := newTestFrameBuffer(t)
	rt := NewRenderThread(1)

	cb := newTestColorBuffer(t, fb, rt, 2, 2)
	fb.CloseColorBuffer(rt, cb)
	fb.Post(cb)
	clk.Advance(5 * time.Second)
	newTestColorBuffer(t, fb, rt, 1, 1)
	if refCount(fb, cb) != 0 {
		t.Error("posted buffer was collected")
	}
}

func TestPostToSubWindow(t *testing.T) {
	fb, b, _ := newTestFrameBuffer(t, WithSubWindow(true))
	rt := NewRenderThread(1)

	if err := fb.SetupSubWindow(nil, 0, 0, 4, 4, Rotate0); err != nil {
		t.Fatalf("SetupSubWindow() error = %v", err)
	}
	win := b.window(t)
	if f := win.lastFrame(); f == nil || !uniform(f, color.RGBA{A: 0xff}) {
		t.Error("new subwindow was not cleared")
	}

	cb := filledColorBuffer(t, fb, rt, 4, 4, red)
	if err := fb.Post(cb); err != nil {
		t.Fatal(err)
	}
	waitPresented(t, fb)
	if f := win.lastFrame(); f == nil || !uniform(f, red) {
		t.Error("posted frame not presented")
	}

	if err := fb.ReplaceColorBufferContents(rt, cb, make([]byte, 4*4*4)); err != nil {
		t.Fatal(err)
	}
	if err := fb.Repost(); err != nil {
		t.Fatal(err)
	}
	waitPresented(t, fb)
	if f := win.lastFrame(); !uniform(f, color.RGBA{}) {
		t.Error("repost did not present the new contents")
	}

	if err := fb.ClearWindow(); err != nil {
		t.Fatal(err)
	}
	if f := win.lastFrame(); !uniform(f, color.RGBA{A: 0xff}) {
		t.Error("ClearWindow did not blank the window")
	}

	if err := fb.RemoveSubWindow(); err != nil {
		t.Fatalf("RemoveSubWindow() error = %v", err)
	}
	if err := fb.ClearWindow(); !errors.Is(err, ErrNoSubWindow) {
		t.Errorf("ClearWindow() after remove error = %v", err)
	}
	if err := fb.RemoveSubWindow(); err != nil {
		t.Errorf("second RemoveSubWindow() error = %v", err)
	}
}

func TestSetupSubWindowRepostsLastFrame(t *testing.T) {
	fb, b, _ := newTestFrameBuffer(t, WithSubWindow(true))
	rt := NewRenderThread(1)

	cb := filledColorBuffer(t, fb, rt, 4, 4, blue)
	fb.Post(cb)
	if err := fb.SetupSubWindow(nil, 0, 0, 8, 8, Rotate0); err != nil {
		t.Fatal(err)
	}
	waitPresented(t, fb)
	f := b.window(t).lastFrame()
	if f == nil || f.Rect.Dx() != 8 || !uniform(f, blue) {
		t.Error("last posted frame not shown in the new subwindow")
	}

	if err := fb.SetupSubWindow(nil, 0, 0, 0, 8, Rotate0); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("zero width error = %v", err)
	}
	if err := fb.SetupSubWindow(nil, 0, 0, 8, 8, Rotation(45)); err == nil {
		t.Error("invalid rotation accepted")
	}
}

func TestScreenshot(t *testing.T) {
	fb, _, _ := newTestFrameBuffer(t)
	rt := NewRenderThread(1)

	if _, err := fb.Screenshot(4, 0, 0, Rotate0, nil); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Screenshot() before post error = %v, want ErrNoFrame", err)
	}
	if _, err := fb.Screenshot(2, 0, 0, Rotate0, nil); !errors.Is(err, ErrChannels) {
		t.Errorf("Screenshot(2 channels) error = %v, want ErrChannels", err)
	}

	cb := filledColorBuffer(t, fb, rt, 4, 2, green)
	fb.Post(cb)

	res, err := fb.Screenshot(4, 0, 0, Rotate0, make([]byte, 8))
	if !errors.Is(err, ErrBufferTooSmall) {
		t.Fatalf("short buffer error = %v, want ErrBufferTooSmall", err)
	}
	if res.Size != 4*2*4 {
		t.Errorf("required size = %d, want %d", res.Size, 4*2*4)
	}

	dst := make([]byte, res.Size)
	res, err = fb.Screenshot(4, 0, 0, Rotate0, dst)
	if err != nil {
		t.Fatalf("Screenshot() error = %v", err)
	}
	if res.Width != 4 || res.Height != 2 {
		t.Errorf("size = %dx%d, want 4x2", res.Width, res.Height)
	}
	for i := 0; i < len(dst); i += 4 {
		if dst[i] != 0 || dst[i+1] != 0xff || dst[i+2] != 0 || dst[i+3] != 0xff {
			t.Fatalf("pixel %d = %v, want green", i/4, dst[i:i+4])
		}
	}

	res, err = fb.Screenshot(3, 0, 0, Rotate90, make([]byte, 4*2*3))
	if err != nil {
		t.Fatalf("rotated Screenshot() error = %v", err)
	}
	if res.Width != 2 || res.Height != 4 || res.Size != 24 {
		t.Errorf("rotated result = %+v, want 2x4 of 24 bytes", res)
	}
}

func TestPostCallback(t *testing.T) {
	fb, _, _ := newTestFrameBuffer(t)
	rt := NewRenderThread(1)

	var frames []*image.RGBA
	err := fb.SetPostCallback(0, func(id uint32, frame *image.RGBA) {
		if id != 0 {
			t.Errorf("callback display = %d, want 0", id)
		}
		frames = append(frames, frame)
	})
	if err != nil {
		t.Fatalf("SetPostCallback() error = %v", err)
	}
	if err := fb.SetPostCallback(0, func(uint32, *image.RGBA) {}); !errors.Is(err, ErrDisplayInUse) {
		t.Errorf("duplicate SetPostCallback() error = %v", err)
	}
	if _, err := fb.GetPixels(0, nil); !errors.Is(err, ErrNoFrame) {
		t.Errorf("GetPixels() before post error = %v", err)
	}

	cb := filledColorBuffer(t, fb, rt, 2, 2, red)
	fb.Post(cb)
	if len(frames) != 1 || !uniform(frames[0], red) {
		t.Fatalf("callback frames = %d, want one red frame", len(frames))
	}

	n, err := fb.GetPixels(0, make([]byte, 4))
	if !errors.Is(err, ErrBufferTooSmall) || n != 16 {
		t.Errorf("GetPixels(short) = %d, %v, want 16, ErrBufferTooSmall", n, err)
	}
	dst := make([]byte, 16)
	if n, err := fb.GetPixels(0, dst); err != nil || n != 16 {
		t.Fatalf("GetPixels() = %d, %v", n, err)
	}
	if dst[0] != 0xff || dst[1] != 0 {
		t.Errorf("GetPixels() first pixel = %v", dst[:4])
	}

	if err := fb.ClearPostCallback(0); err != nil {
		t.Fatalf("ClearPostCallback() error = %v", err)
	}
	if err := fb.ClearPostCallback(0); !errors.Is(err, ErrUnknownDisplay) {
		t.Errorf("second ClearPostCallback() error = %v", err)
	}
	fb.Post(cb)
	if len(frames) != 1 {
		t.Error("callback ran after it was cleared")
	}
	if _, err := fb.GetPixels(0, dst); !errors.Is(err, ErrUnknownDisplay) {
		t.Errorf("GetPixels() after clear error = %v", err)
	}
}

func TestSetPostCallbackConcurrent(t *testing.T) {
	fb, _, _ := newTestFrameBuffer(t)

	const callers = 16
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ok    int
		inUse int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fb.SetPostCallback(3, func(uint32, *image.RGBA) {})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrDisplayInUse):
				inUse++
			default:
				t.Errorf("SetPostCallback() error = %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 1 || inUse != callers-1 {
		t.Errorf("registered %d times, refused %d times; want 1 and %d", ok, inUse, callers-1)
	}

	fb.Finalize()
	if err := fb.SetPostCallback(4, func(uint32, *image.RGBA) {}); !errors.Is(err, worker.ErrStopped) {
		t.Errorf("SetPostCallback() after Finalize error = %v, want worker.ErrStopped", err)
	}
	if err := fb.ClearPostCallback(3); !errors.Is(err, worker.ErrStopped) {
		t.Errorf("ClearPostCallback() after Finalize error = %v, want worker.ErrStopped", err)
	}
}

func TestPostCallbackSecondaryDisplay(t *testing.T) {
	fb, _, _ := newTestFrameBuffer(t)
	rt := NewRenderThread(1)

	primary := filledColorBuffer(t, fb, rt, 2, 2, red)
	secondary := filledColorBuffer(t, fb, rt, 2, 2, blue)
	if err := fb.SetDisplayColorBuffer(1, secondary); err != nil {
		t.Fatal(err)
	}
	if err := fb.SetDisplayColorBuffer(1, 999); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("SetDisplayColorBuffer(unknown) error = %v", err)
	}

	var got *image.RGBA
	fb.SetPostCallback(1, func(_ uint32, frame *image.RGBA) { got = frame })
	fb.Post(primary)
	if got == nil || !uniform(got, blue) {
		t.Error("secondary display did not receive its own buffer")
	}

	// Destroying the buffer forgets the display binding.
	fb.CloseColorBuffer(rt, secondary)
	fb.mu.Lock()
	fb.expireLocked(true)
	fb.mu.Unlock()
	if _, ok := fb.DisplayColorBuffer(1); ok {
		t.Error("display still bound to a destroyed buffer")
	}
}

func TestAsyncPostCallback(t *testing.T) {
	fb, _, _ := newTestFrameBuffer(t, WithAsyncReadback(true))
	rt := NewRenderThread(1)

	ch := make(chan *image.RGBA, 1)
	if err := fb.SetPostCallback(0, func(_ uint32, frame *image.RGBA) { ch <- frame }); err != nil {
		t.Fatal(err)
	}
	cb := filledColorBuffer(t, fb, rt, 2, 2, green)
	fb.Post(cb)

	select {
	case f := <-ch:
		if !uniform(f, green) {
			t.Error("async frame has wrong contents")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("async callback did not run")
	}
}

func TestCompose(t *testing.T) {
	fb, _, _ := newTestFrameBuffer(t)
	rt := NewRenderThread(1)

	target := filledColorBuffer(t, fb, rt, 4, 4, red)
	src := filledColorBuffer(t, fb, rt, 4, 4, blue)

	dev := &ComposeDevice{
		Version:   2,
		DisplayID: 1,
		Target:    target,
		Layers: []ComposeLayer{
			{Mode: LayerSolidColor, Color: green, Blend: BlendNone, Alpha: 1, Frame: image.Rect(0, 0, 4, 2)},
		},
	}
	if err := fb.Compose(dev); err != nil {
		t.Fatalf("Compose(v2) error = %v", err)
	}
	pix, _ := fb.ReadColorBufferContents(rt, target)
	img := &image.RGBA{Pix: pix, Stride: 16, Rect: image.Rect(0, 0, 4, 4)}
	if !uniform(img.SubImage(image.Rect(0, 0, 4, 2)).(*image.RGBA), green) {
		t.Error("solid layer not drawn")
	}
	if !uniform(img.SubImage(image.Rect(0, 2, 4, 4)).(*image.RGBA), red) {
		t.Error("area outside the layer changed")
	}
	if h, ok := fb.DisplayColorBuffer(1); !ok || h != target {
		t.Errorf("DisplayColorBuffer(1) = %v, %v", h, ok)
	}
	if fb.LastPosted() != 0 {
		t.Error("secondary display composition was posted")
	}

	dev = &ComposeDevice{
		Version: 1,
		Target:  target,
		Layers: []ComposeLayer{{
			Mode:        LayerDevice,
			ColorBuffer: src,
			Blend:       BlendNone,
			Alpha:       1,
			Frame:       image.Rect(0, 0, 4, 4),
			Crop:        LayerCrop{Right: 4, Bottom: 4},
		}},
	}
	if err := fb.Compose(dev); err != nil {
		t.Fatalf("Compose(v1) error = %v", err)
	}
	if fb.LastPosted() != target {
		t.Error("v1 composition was not posted")
	}
	pix, _ = fb.ReadColorBufferContents(rt, target)
	if pix[0] != 0 || pix[2] != 0xff {
		t.Errorf("device layer not drawn, first pixel %v", pix[:4])
	}

	if err := fb.Compose(&ComposeDevice{Version: 3, Target: target}); !errors.Is(err, ErrComposeVersion) {
		t.Errorf("Compose(v3) error = %v", err)
	}
	if err := fb.Compose(&ComposeDevice{Version: 1, Target: 999}); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Compose(unknown target) error = %v", err)
	}
}

func TestColorBufferTouchedOnPost(t *testing.T) {
	fb, _, _ := newTestFrameBuffer(t)
	rt := NewRenderThread(1)

	cb := newTestColorBuffer(t, fb, rt, 2, 2)
	fb.Post(cb)
	fb.Post(cb)
	fb.mu.Lock()
	touches := fb.colorBuffers[cb].host.(*fakeColorBuffer).touches
	fb.mu.Unlock()
	if touches != 2 {
		t.Errorf("touches = %d, want 2", touches)
	}
}
