package composition

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/gogpu/xrcompose"
	"github.com/gogpu/xrcompose/graphics"
	"github.com/gogpu/xrcompose/graphics/soft"
	"github.com/gogpu/xrcompose/xr"
	"github.com/gogpu/xrcompose/xr/xrtest"
)

// softSession is a session on a soft application device driven by the
// fake runtime.
type softSession struct {
	adapter *soft.Adapter
	app     *soft.Device
	runtime *xrtest.Runtime
	factory *Factory
	hooks   xr.SessionHooks
	session xr.Session
	fw      *Framework
}

func newSoftSession(t *testing.T, rtOpts []xrtest.Option, opts ...Option) *softSession {
	t.Helper()
	s := &softSession{adapter: soft.NewAdapter("GPU 0")}
	s.app = s.adapter.CreateDevice("app")
	t.Cleanup(func() { _ = s.app.Close() })

	s.runtime = xrtest.New(rtOpts...)
	s.factory = NewFactory(1, &xr.InstanceCreateInfo{
		ApplicationName:   "test",
		EnabledExtensions: []string{soft.ExtensionName},
	}, s.runtime, opts...)
	s.hooks = s.factory.Hook(s.runtime.Hooks())

	session, err := s.hooks.CreateSession(1, &xr.SessionCreateInfo{
		Next: []any{soft.Binding{Device: s.app}},
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	s.session = session
	t.Cleanup(func() { _ = s.hooks.DestroySession(session) })

	s.fw, err = s.factory.Framework(session)
	if err != nil {
		t.Fatalf("Framework() error = %v", err)
	}
	return s
}

func (s *softSession) comp(t *testing.T) *soft.Device {
	t.Helper()
	dev, err := soft.DeviceOf(s.fw.CompositionDevice())
	if err != nil {
		t.Fatalf("DeviceOf(composition) error = %v", err)
	}
	return dev
}

func (s *softSession) swapchain(t *testing.T, mode Mode) Swapchain {
	t.Helper()
	sc, err := s.fw.CreateSwapchain(colorInfo(), mode)
	if err != nil {
		t.Fatalf("CreateSwapchain(%v) error = %v", mode, err)
	}
	t.Cleanup(func() { _ = sc.Close() })
	return sc
}

func (s *softSession) log(t *testing.T, sc Swapchain) xrtest.Log {
	t.Helper()
	h, err := sc.Handle()
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	l, err := s.runtime.SwapchainLog(h)
	if err != nil {
		t.Fatalf("SwapchainLog() error = %v", err)
	}
	return l
}

func colorInfo() *xr.SwapchainCreateInfo {
	return &xr.SwapchainCreateInfo{
		TextureInfo: graphics.TextureInfo{
			Format: soft.FormatRGBA8Unorm,
			Width:  4,
			Height: 4,
			Usage:  graphics.UsageColorAttachment | graphics.UsageSampled,
		},
	}
}

func mustAcquire(t *testing.T, sc Swapchain) *SwapchainImage {
	t.Helper()
	img, err := sc.AcquireImage(true)
	if err != nil {
		t.Fatalf("AcquireImage() error = %v", err)
	}
	return img
}

func mustRelease(t *testing.T, sc Swapchain) {
	t.Helper()
	if err := sc.ReleaseImage(); err != nil {
		t.Fatalf("ReleaseImage() error = %v", err)
	}
}

func nativeImage(t *testing.T, tex graphics.Texture) *soft.Image {
	t.Helper()
	img, err := soft.ImageOf(tex)
	if err != nil {
		t.Fatalf("ImageOf() error = %v", err)
	}
	return img
}

// readBack returns the contents of img as seen by work enqueued on dev now.
func readBack(t *testing.T, dev *soft.Device, img *soft.Image) []byte {
	t.Helper()
	var got []byte
	if err := dev.Context().Read(img, func(data []byte) { got = data }); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if err := dev.Context().Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	return got
}

func equalUint32s(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSubmittableReleaseIsFIFO(t *testing.T) {
	s := newSoftSession(t, nil)
	sc := s.swapchain(t, ModeSubmit)

	for want := range uint32(3) {
		if img := mustAcquire(t, sc); img.Index != want {
			t.Fatalf("AcquireImage() index = %d, want %d", img.Index, want)
		}
	}
	mustRelease(t, sc)
	mustRelease(t, sc)
	if got := s.log(t, sc).Released; !equalUint32s(got, []uint32{0, 1}) {
		t.Errorf("released = %v, want [0 1]", got)
	}

	if img := mustAcquire(t, sc); img.Index != 0 {
		t.Errorf("re-acquired index = %d, want 0", img.Index)
	}
	mustRelease(t, sc)
	mustRelease(t, sc)
	if got := s.log(t, sc).Released; !equalUint32s(got, []uint32{0, 1, 2, 0}) {
		t.Errorf("released = %v, want [0 1 2 0]", got)
	}

	if err := sc.ReleaseImage(); !errors.Is(err, ErrNoImageAcquired) {
		t.Errorf("ReleaseImage(empty) = %v, want ErrNoImageAcquired", err)
	}
}

func TestSubmittableDefersRelease(t *testing.T) {
	s := newSoftSession(t, nil)
	sc := s.swapchain(t, ModeSubmit|ModeRead)

	if img, err := sc.LastReleasedImage(); img != nil || err != nil {
		t.Fatalf("LastReleasedImage() before release = %v, %v", img, err)
	}

	mustAcquire(t, sc)
	mustAcquire(t, sc)
	mustRelease(t, sc)
	if got := s.log(t, sc).Released; len(got) != 0 {
		t.Errorf("release reached the runtime early: %v", got)
	}
	img, err := sc.LastReleasedImage()
	if err != nil || img == nil || img.Index != 0 {
		t.Fatalf("LastReleasedImage() = %v, %v; want index 0", img, err)
	}

	// A read-only swapchain retires the pending image on the next release.
	mustRelease(t, sc)
	if got := s.log(t, sc).Released; !equalUint32s(got, []uint32{0}) {
		t.Errorf("released = %v, want [0]", got)
	}
	if img, _ := sc.LastReleasedImage(); img == nil || img.Index != 1 {
		t.Errorf("LastReleasedImage() = %v, want index 1", img)
	}
}

func TestAccessModes(t *testing.T) {
	s := newSoftSession(t, nil)

	tests := []struct {
		name string
		mode Mode
	}{
		{"submittable", ModeSubmit},
		{"non-submittable", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := s.swapchain(t, tt.mode)
			if _, err := sc.LastReleasedImage(); !errors.Is(err, ErrNotReadable) {
				t.Errorf("LastReleasedImage() = %v, want ErrNotReadable", err)
			}
			if err := sc.CommitLastReleasedImage(); !errors.Is(err, ErrNotWritable) {
				t.Errorf("CommitLastReleasedImage() = %v, want ErrNotWritable", err)
			}
		})
	}
}

func TestCommitIsIdempotent(t *testing.T) {
	s := newSoftSession(t, nil)
	sc := s.swapchain(t, ModeSubmit|ModeWrite)
	comp := s.comp(t)

	mustAcquire(t, sc)
	mustRelease(t, sc)
	if err := sc.CommitLastReleasedImage(); err != nil {
		t.Fatalf("CommitLastReleasedImage() error = %v", err)
	}
	if got := s.log(t, sc).Released; !equalUint32s(got, []uint32{0}) {
		t.Fatalf("released = %v, want [0]", got)
	}

	appBefore, compBefore := s.app.Stats(), comp.Stats()
	if err := sc.CommitLastReleasedImage(); err != nil {
		t.Fatalf("second CommitLastReleasedImage() error = %v", err)
	}
	if got := s.log(t, sc).Released; len(got) != 1 {
		t.Errorf("second commit released again: %v", got)
	}
	if s.app.Stats() != appBefore || comp.Stats() != compBefore {
		t.Errorf("second commit issued GPU work: app %+v -> %+v, comp %+v -> %+v",
			appBefore, s.app.Stats(), compBefore, comp.Stats())
	}
}

func TestReleaseBeforeCommit(t *testing.T) {
	s := newSoftSession(t, nil)
	sc := s.swapchain(t, ModeSubmit|ModeRead|ModeWrite)

	mustAcquire(t, sc)
	mustAcquire(t, sc)
	mustRelease(t, sc)

	err := sc.ReleaseImage()
	if !errors.Is(err, ErrReleaseBeforeCommit) {
		t.Fatalf("ReleaseImage() = %v, want ErrReleaseBeforeCommit", err)
	}
	if r := xr.ResultFromError(err); r != xr.ErrorCallOrderInvalid {
		t.Errorf("ResultFromError() = %v", r)
	}
	if img, _ := sc.LastReleasedImage(); img == nil || img.Index != 0 {
		t.Errorf("pending image changed: %v", img)
	}

	if err := sc.CommitLastReleasedImage(); err != nil {
		t.Fatalf("CommitLastReleasedImage() error = %v", err)
	}
	mustRelease(t, sc)
	if img, _ := sc.LastReleasedImage(); img == nil || img.Index != 1 {
		t.Errorf("LastReleasedImage() = %v, want index 1", img)
	}
}

func TestForcedBounceCopy(t *testing.T) {
	s := newSoftSession(t, []xrtest.Option{xrtest.WithRuntimeName("Varjo OpenXR")})
	if !s.fw.Quirks().ForceBounceCopy {
		t.Fatal("Varjo runtime did not force bounce copies")
	}
	sc := s.swapchain(t, ModeSubmit|ModeRead)
	comp := s.comp(t)

	bounce := sc.Image(0).ReadTexture
	for i := range uint32(sc.Len()) {
		img := sc.Image(i)
		if img.ReadTexture != bounce || img.WriteTexture != bounce {
			t.Fatalf("image %d does not use the bounce buffer", i)
		}
	}

	acquired := mustAcquire(t, sc)
	pattern := []byte{1, 2, 3, 4}
	if err := s.app.Context().Fill(nativeImage(t, acquired.ApplicationTexture), pattern); err != nil {
		t.Fatal(err)
	}
	mustRelease(t, sc)

	appBefore, compBefore := s.app.Stats(), comp.Stats()
	img, err := sc.LastReleasedImage()
	if err != nil {
		t.Fatalf("LastReleasedImage() error = %v", err)
	}
	appAfter, compAfter := s.app.Stats(), comp.Stats()

	if d := appAfter.Copies - appBefore.Copies; d != 1 {
		t.Errorf("copies = %d, want 1", d)
	}
	if d := appAfter.Signals - appBefore.Signals; d != 1 {
		t.Errorf("application signals = %d, want 1", d)
	}
	if d := compAfter.DeviceWaits - compBefore.DeviceWaits; d != 1 {
		t.Errorf("composition waits = %d, want 1", d)
	}
	if compAfter.Copies != compBefore.Copies || compAfter.Signals != compBefore.Signals {
		t.Errorf("composition device did extra work: %+v -> %+v", compBefore, compAfter)
	}

	got := readBack(t, comp, nativeImage(t, img.ReadTexture))
	if want := bytes.Repeat(pattern, 16); !bytes.Equal(got, want) {
		t.Errorf("bounce buffer = %v, want %v", got, want)
	}
}

func TestBounceCommitCopiesBack(t *testing.T) {
	s := newSoftSession(t, nil, WithQuirkRules(xrcompose.QuirkRule{Runtime: "XRTEST", ForceBounceCopy: true}))
	sc := s.swapchain(t, ModeSubmit|ModeWrite)
	comp := s.comp(t)

	acquired := mustAcquire(t, sc)
	mustRelease(t, sc)

	if err := comp.Context().Fill(nativeImage(t, acquired.WriteTexture), []byte{9}); err != nil {
		t.Fatal(err)
	}
	before := s.app.Stats()
	if err := sc.CommitLastReleasedImage(); err != nil {
		t.Fatalf("CommitLastReleasedImage() error = %v", err)
	}
	if d := s.app.Stats().Copies - before.Copies; d != 1 {
		t.Errorf("copies = %d, want 1", d)
	}
	if got := s.log(t, sc).Released; !equalUint32s(got, []uint32{0}) {
		t.Errorf("released = %v, want [0]", got)
	}

	got := readBack(t, s.app, nativeImage(t, acquired.ApplicationTexture))
	if want := bytes.Repeat([]byte{9}, 64); !bytes.Equal(got, want) {
		t.Errorf("application image = %v, want all 9", got)
	}
}

func TestSharedImagesAreNotCopied(t *testing.T) {
	s := newSoftSession(t, nil)
	sc := s.swapchain(t, ModeSubmit|ModeRead)

	for i := range uint32(sc.Len()) {
		img := sc.Image(i)
		if nativeImage(t, img.ReadTexture) != nativeImage(t, img.ApplicationTexture) {
			t.Errorf("image %d is not shared with the composition device", i)
		}
	}
	if sc.Image(uint32(sc.Len())) != nil {
		t.Error("Image(out of range) != nil")
	}

	mustAcquire(t, sc)
	mustRelease(t, sc)
	before := s.app.Stats()
	if _, err := sc.LastReleasedImage(); err != nil {
		t.Fatal(err)
	}
	if s.app.Stats().Copies != before.Copies {
		t.Error("shared image was copied")
	}
}

func TestNonShareableRuntimeImagesBounce(t *testing.T) {
	s := newSoftSession(t, []xrtest.Option{xrtest.WithShareableImages(false)})
	sc := s.swapchain(t, ModeSubmit|ModeRead)

	if s.fw.Quirks().ForceBounceCopy {
		t.Fatal("unexpected quirk")
	}
	if sc.Image(0).ReadTexture != sc.Image(1).ReadTexture {
		t.Error("non-shareable images should share one bounce buffer")
	}
}

func TestNonSubmittableRing(t *testing.T) {
	s := newSoftSession(t, nil)
	sc := s.swapchain(t, ModeRead)

	if sc.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", sc.Len())
	}
	if err := sc.WaitImage(); !errors.Is(err, ErrNoImageAcquired) {
		t.Errorf("WaitImage() before acquire = %v", err)
	}
	if img, err := sc.LastReleasedImage(); img != nil || err != nil {
		t.Errorf("LastReleasedImage() before release = %v, %v", img, err)
	}

	if img := mustAcquire(t, sc); img.Index != 0 {
		t.Fatalf("first acquire = %d", img.Index)
	}
	if img := mustAcquire(t, sc); img.Index != 1 {
		t.Fatalf("second acquire = %d", img.Index)
	}
	if _, err := sc.AcquireImage(false); !errors.Is(err, ErrNoImageAvailable) {
		t.Fatalf("third acquire = %v, want ErrNoImageAvailable", err)
	}

	mustRelease(t, sc)
	if img, _ := sc.LastReleasedImage(); img == nil || img.Index != 0 {
		t.Errorf("LastReleasedImage() = %v, want index 0", img)
	}
	if img := mustAcquire(t, sc); img.Index != 0 {
		t.Errorf("acquire after release = %d, want 0", img.Index)
	}
	if err := sc.WaitImage(); err != nil {
		t.Errorf("WaitImage() = %v", err)
	}

	mustRelease(t, sc)
	mustRelease(t, sc)
	if err := sc.ReleaseImage(); !errors.Is(err, ErrNoImageAcquired) {
		t.Errorf("ReleaseImage(empty) = %v", err)
	}

	img := sc.Image(0)
	if nativeImage(t, img.ApplicationTexture) != nativeImage(t, img.ReadTexture) {
		t.Error("ring image is not shared")
	}
	if _, err := sc.Handle(); !errors.Is(err, ErrNotSubmittable) {
		t.Errorf("Handle() = %v", err)
	}
	if _, err := sc.SubImage(); !errors.Is(err, ErrNotSubmittable) {
		t.Errorf("SubImage() = %v", err)
	}
}

func TestNonSubmittableClose(t *testing.T) {
	s := newSoftSession(t, nil)
	sc := s.swapchain(t, ModeRead|ModeWrite)

	mustAcquire(t, sc)
	mustAcquire(t, sc)
	mustRelease(t, sc)
	if err := sc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := sc.WaitImage(); !errors.Is(err, graphics.ErrClosed) {
		t.Errorf("WaitImage() after Close = %v", err)
	}
	if err := sc.ReleaseImage(); !errors.Is(err, graphics.ErrClosed) {
		t.Errorf("ReleaseImage() after Close = %v", err)
	}
	if img, err := sc.LastReleasedImage(); img != nil || !errors.Is(err, graphics.ErrClosed) {
		t.Errorf("LastReleasedImage() after Close = %v, %v", img, err)
	}
	if err := sc.CommitLastReleasedImage(); !errors.Is(err, graphics.ErrClosed) {
		t.Errorf("CommitLastReleasedImage() after Close = %v", err)
	}
	if _, err := sc.AcquireImage(false); !errors.Is(err, graphics.ErrClosed) {
		t.Errorf("AcquireImage() after Close = %v", err)
	}
}

func TestSerializeCompositionOrdersWork(t *testing.T) {
	s := newSoftSession(t, nil)
	sc := s.swapchain(t, ModeRead|ModeWrite)
	comp := s.comp(t)

	img := mustAcquire(t, sc)
	onApp := nativeImage(t, img.ApplicationTexture)
	onComp := nativeImage(t, img.ReadTexture)

	// A slow producer: the composition read must still see its write.
	if err := s.app.Context().Submit(func() { time.Sleep(30 * time.Millisecond) }); err != nil {
		t.Fatal(err)
	}
	if err := s.app.Context().Fill(onApp, []byte{7}); err != nil {
		t.Fatal(err)
	}
	if err := s.fw.SerializePreComposition(); err != nil {
		t.Fatalf("SerializePreComposition() error = %v", err)
	}
	if got := readBack(t, comp, onComp); !bytes.Equal(got, bytes.Repeat([]byte{7}, 64)) {
		t.Fatalf("composition saw %v before the application write", got)
	}

	if err := comp.Context().Submit(func() { time.Sleep(30 * time.Millisecond) }); err != nil {
		t.Fatal(err)
	}
	if err := comp.Context().Fill(onComp, []byte{8}); err != nil {
		t.Fatal(err)
	}
	if err := s.fw.SerializePostComposition(); err != nil {
		t.Fatalf("SerializePostComposition() error = %v", err)
	}
	if got := readBack(t, s.app, onApp); !bytes.Equal(got, bytes.Repeat([]byte{8}, 64)) {
		t.Fatalf("application saw %v before the composition write", got)
	}
}

func TestSwapchainClose(t *testing.T) {
	s := newSoftSession(t, nil)

	sc, err := s.fw.CreateSwapchain(colorInfo(), ModeSubmit|ModeRead)
	if err != nil {
		t.Fatal(err)
	}
	h, _ := sc.Handle()
	mustAcquire(t, sc)
	if err := sc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sc.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if l, _ := s.runtime.SwapchainLog(h); !l.Destroyed {
		t.Error("owned runtime swapchain was not destroyed")
	}
	if _, err := sc.AcquireImage(false); !errors.Is(err, graphics.ErrClosed) {
		t.Errorf("AcquireImage() after Close = %v", err)
	}

	// Wrapped swapchains belong to the caller.
	raw, err := s.runtime.CreateSwapchain(s.session, colorInfo())
	if err != nil {
		t.Fatal(err)
	}
	wrapped, err := s.fw.WrapSwapchain(raw, colorInfo(), ModeRead)
	if err != nil {
		t.Fatalf("WrapSwapchain() error = %v", err)
	}
	mustAcquire(t, wrapped)
	mustRelease(t, wrapped)
	if err := wrapped.Close(); err != nil {
		t.Fatal(err)
	}
	l, _ := s.runtime.SwapchainLog(raw)
	if l.Destroyed {
		t.Error("wrapped runtime swapchain was destroyed")
	}
	// The deferred release must reach the runtime, or the caller's next
	// release would retire the wrong image.
	if got := s.runtime.Outstanding(raw); len(got) != 0 {
		t.Errorf("outstanding after Close = %v, want none", got)
	}
	if !equalUint32s(l.Released, []uint32{0}) {
		t.Errorf("released = %v, want [0]", l.Released)
	}
	if err := wrapped.WaitImage(); !errors.Is(err, graphics.ErrClosed) {
		t.Errorf("WaitImage() after Close = %v", err)
	}
	_ = s.runtime.DestroySwapchain(raw)
}

func TestWrappedCloseCommitsPending(t *testing.T) {
	s := newSoftSession(t, nil, WithQuirkRules(xrcompose.QuirkRule{Runtime: "XRTEST", ForceBounceCopy: true}))
	comp := s.comp(t)

	raw, err := s.runtime.CreateSwapchain(s.session, colorInfo())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.runtime.DestroySwapchain(raw) })
	sc, err := s.fw.WrapSwapchain(raw, colorInfo(), ModeRead|ModeWrite)
	if err != nil {
		t.Fatalf("WrapSwapchain() error = %v", err)
	}

	acquired := mustAcquire(t, sc)
	onApp := nativeImage(t, acquired.ApplicationTexture)
	mustRelease(t, sc)
	if _, err := sc.LastReleasedImage(); err != nil {
		t.Fatal(err)
	}
	if err := comp.Context().Fill(nativeImage(t, acquired.WriteTexture), []byte{7}); err != nil {
		t.Fatal(err)
	}

	before := s.app.Stats()
	if err := sc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if d := s.app.Stats().Copies - before.Copies; d != 1 {
		t.Errorf("copies on Close = %d, want 1", d)
	}
	if got := s.runtime.Outstanding(raw); len(got) != 0 {
		t.Errorf("outstanding after Close = %v, want none", got)
	}
	got := readBack(t, s.app, onApp)
	if want := bytes.Repeat([]byte{7}, 64); !bytes.Equal(got, want) {
		t.Errorf("application image = %v, want all 7", got)
	}
}

func TestSwapchainInfo(t *testing.T) {
	s := newSoftSession(t, nil)
	sc := s.swapchain(t, ModeSubmit)

	info := sc.InfoOnCompositionDevice()
	if info.Format != soft.FormatRGBA8Unorm || info.Width != 4 || info.ArraySize != 1 {
		t.Errorf("InfoOnCompositionDevice() = %+v", info)
	}
	if sc.FormatOnApplicationDevice() != soft.FormatRGBA8Unorm {
		t.Errorf("FormatOnApplicationDevice() = %d", sc.FormatOnApplicationDevice())
	}
	sub, err := sc.SubImage()
	if err != nil {
		t.Fatal(err)
	}
	if sub.ImageRect.Dx() != 4 || sub.ImageRect.Dy() != 4 || sub.ImageArrayIndex != 0 {
		t.Errorf("SubImage() = %+v", sub)
	}

	bad := colorInfo()
	bad.Format = 12345
	if _, err := s.fw.CreateSwapchain(bad, 0); !errors.Is(err, graphics.ErrInvalidDescriptor) {
		t.Errorf("CreateSwapchain(unknown format) = %v", err)
	}
}

func TestModeString(t *testing.T) {
	tests := []struct {
		m    Mode
		want string
	}{
		{0, "none"},
		{ModeSubmit, "submit"},
		{ModeSubmit | ModeRead | ModeWrite, "submit|read|write"},
		{ModeRead | ModeWrite, "read|write"},
	}
	for _, tt := range tests {
		if got := tt.m.String(); got != tt.want {
			t.Errorf("Mode(%d).String() = %q, want %q", tt.m, got, tt.want)
		}
	}
}
