package soft

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/xrcompose/graphics"
)

func newPair(t *testing.T) (*Adapter, *GraphicsDevice, *GraphicsDevice) {
	t.Helper()
	a := NewAdapter("test adapter")
	app := NewGraphicsDevice(a.CreateDevice("app"), WithOwnership())
	comp := NewGraphicsDevice(a.CreateDevice("comp"), WithOwnership())
	t.Cleanup(func() {
		_ = comp.Close()
		_ = app.Close()
	})
	return a, app, comp
}

func rgba(w, h uint32) graphics.TextureInfo {
	return graphics.TextureInfo{
		Format: FormatRGBA8Unorm,
		Width:  w,
		Height: h,
		Usage:  graphics.UsageColorAttachment | graphics.UsageSampled,
	}
}

func TestFormatRoundTrip(t *testing.T) {
	d := NewGraphicsDevice(NewAdapter("fmt").CreateDevice("d"), WithOwnership())
	defer d.Close()

	for _, f := range d.SupportedFormats() {
		g := d.TranslateToGenericFormat(f)
		if g == gputypes.TextureFormatUndefined {
			t.Errorf("format %d has no generic mapping", f)
			continue
		}
		if back := d.TranslateFromGenericFormat(g); back != f {
			t.Errorf("round trip %d -> %v -> %d", f, g, back)
		}
	}

	if got := d.TranslateToGenericFormat(9999); got != gputypes.TextureFormatUndefined {
		t.Errorf("unknown format mapped to %v", got)
	}
	if got := d.TranslateFromGenericFormat(gputypes.TextureFormatBC1RGBAUnorm); got != FormatUnknown {
		t.Errorf("unsupported generic format mapped to %d", got)
	}
}

func TestAdapterLUIDAndPlatform(t *testing.T) {
	a, b := NewAdapter("a"), NewAdapter("b")
	if a.LUID() == b.LUID() {
		t.Fatal("adapters share a LUID")
	}
	if a.LUID() == 0 {
		t.Error("zero LUID")
	}

	p := NewPlatform(a)
	p.AddAdapter(b)
	if got, err := p.AdapterByLUID(b.LUID()); err != nil || got != b {
		t.Errorf("AdapterByLUID(b) = %v, %v", got, err)
	}
	if _, err := p.AdapterByLUID(12345); !errors.Is(err, graphics.ErrUnsupportedBackend) {
		t.Errorf("AdapterByLUID(unknown) = %v", err)
	}
	if len(p.Adapters()) != 2 {
		t.Errorf("Adapters() = %d entries", len(p.Adapters()))
	}
}

func TestTextureSharing(t *testing.T) {
	_, app, comp := newPair(t)

	tex, err := comp.CreateTexture(rgba(4, 4), true)
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	defer tex.Close()

	h, err := tex.Handle()
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if h.NT || h.Origin != graphics.APISoft {
		t.Errorf("handle = %v, want legacy soft handle", h)
	}

	opened, err := app.OpenTexture(h, rgba(4, 4))
	if err != nil {
		t.Fatalf("OpenTexture() error = %v", err)
	}
	defer opened.Close()

	a, _ := ImageOf(tex)
	b, _ := ImageOf(opened)
	if a != b {
		t.Error("opened texture does not alias the created image")
	}

	if _, err := app.OpenTexture(h, rgba(8, 4)); !errors.Is(err, graphics.ErrInvalidDescriptor) {
		t.Errorf("OpenTexture(wrong size) = %v", err)
	}
}

func TestTextureNTHandles(t *testing.T) {
	a := NewAdapter("nt")
	d := NewGraphicsDevice(a.CreateDevice("d"), WithOwnership(), WithNTHandles())
	defer d.Close()

	tex, err := d.CreateTexture(rgba(2, 2), true)
	if err != nil {
		t.Fatal(err)
	}
	defer tex.Close()

	h, err := tex.Handle()
	if err != nil {
		t.Fatal(err)
	}
	if !h.NT {
		t.Error("WithNTHandles texture exported a legacy handle")
	}
	if err := a.Namespace().Close(h); err != nil {
		t.Errorf("Namespace().Close() = %v", err)
	}
}

func TestNotShareable(t *testing.T) {
	_, app, _ := newPair(t)

	tex, err := app.CreateTexture(rgba(2, 2), false)
	if err != nil {
		t.Fatal(err)
	}
	defer tex.Close()
	if _, err := tex.Handle(); !errors.Is(err, graphics.ErrNotShareable) {
		t.Errorf("texture Handle() = %v, want ErrNotShareable", err)
	}

	f, err := app.CreateFence(false)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if f.IsShareable() {
		t.Error("IsShareable() = true")
	}
	if _, err := f.Handle(); !errors.Is(err, graphics.ErrNotShareable) {
		t.Errorf("fence Handle() = %v, want ErrNotShareable", err)
	}
}

func TestOpenFenceRequiresNT(t *testing.T) {
	a, app, comp := newPair(t)

	f, err := comp.CreateFence(true)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	h, err := f.Handle()
	if err != nil {
		t.Fatal(err)
	}
	defer a.Namespace().Close(h)

	legacy := h
	legacy.NT = false
	if _, err := app.OpenFence(legacy); !errors.Is(err, graphics.ErrInvalidHandle) {
		t.Errorf("OpenFence(legacy) = %v, want ErrInvalidHandle", err)
	}

	opened, err := app.OpenFence(h)
	if err != nil {
		t.Fatalf("OpenFence() error = %v", err)
	}
	defer opened.Close()
	if opened.IsShareable() {
		t.Error("opened fence reports shareable")
	}

	// Both sides observe one timeline.
	if err := opened.WaitOnCPU(7); err != nil {
		t.Fatal(err)
	}
	tl, _ := TimelineOf(f)
	if tl.Value() != 7 {
		t.Errorf("creator timeline = %d, want 7", tl.Value())
	}
}

func TestFenceOrderingAcrossDevices(t *testing.T) {
	a, app, comp := newPair(t)

	tex, err := app.CreateTexture(rgba(8, 8), true)
	if err != nil {
		t.Fatal(err)
	}
	defer tex.Close()
	th, _ := tex.Handle()
	compTex, err := comp.OpenTexture(th, rgba(8, 8))
	if err != nil {
		t.Fatal(err)
	}
	defer compTex.Close()

	compFence, _ := comp.CreateFence(true)
	fh, _ := compFence.Handle()
	appFence, err := app.OpenFence(fh)
	if err != nil {
		t.Fatal(err)
	}
	_ = a.Namespace().Close(fh)

	appCtx, _ := ContextOf(app)
	compCtx, _ := ContextOf(comp)
	img, _ := ImageOf(tex)
	compImg, _ := ImageOf(compTex)

	pattern := []byte{1, 2, 3, 4}

	// Slow producer: the fill lands well after the consumer enqueued its read.
	_ = appCtx.Submit(func() { time.Sleep(30 * time.Millisecond) })
	_ = appCtx.Fill(img, pattern)
	if err := appFence.Signal(1); err != nil {
		t.Fatal(err)
	}
	if err := compFence.WaitOnDevice(1); err != nil {
		t.Fatal(err)
	}

	var got []byte
	_ = compCtx.Read(compImg, func(data []byte) { got = data })
	if err := compCtx.Finish(); err != nil {
		t.Fatal(err)
	}

	want := bytes.Repeat(pattern, 64)
	if !bytes.Equal(got, want) {
		t.Errorf("consumer observed %v..., want the producer's fill", got[:8])
	}

	_ = appFence.Close()
	_ = compFence.Close()
}

func TestCopyTexture(t *testing.T) {
	_, app, comp := newPair(t)

	src, _ := app.CreateTexture(rgba(2, 2), true)
	dst, _ := app.CreateTexture(rgba(2, 2), false)
	other, _ := app.CreateTexture(rgba(4, 2), false)
	defer src.Close()
	defer dst.Close()
	defer other.Close()

	ctx, _ := ContextOf(app)
	srcImg, _ := ImageOf(src)
	_ = ctx.Fill(srcImg, []byte{9, 9, 9, 9})
	if err := app.CopyTexture(src, dst); err != nil {
		t.Fatalf("CopyTexture() error = %v", err)
	}
	_ = ctx.Finish()

	dstImg, _ := ImageOf(dst)
	if !bytes.Equal(dstImg.Bytes(), bytes.Repeat([]byte{9}, 16)) {
		t.Errorf("copy result = %v", dstImg.Bytes())
	}

	if err := app.CopyTexture(src, other); !errors.Is(err, graphics.ErrInvalidDescriptor) {
		t.Errorf("CopyTexture(shape mismatch) = %v", err)
	}
	if err := comp.CopyTexture(src, dst); !errors.Is(err, graphics.ErrWrongDevice) {
		t.Errorf("CopyTexture(foreign textures) = %v", err)
	}

	native, _ := DeviceOf(app)
	if native.Stats().Copies != 1 {
		t.Errorf("Stats().Copies = %d, want 1", native.Stats().Copies)
	}
}

func TestOpenTexturePtr(t *testing.T) {
	a, app, _ := newPair(t)

	native, _ := DeviceOf(app)
	img, err := native.CreateImage(ImageDesc{Format: FormatBGRA8Unorm, Width: 4, Height: 4, Shared: true})
	if err != nil {
		t.Fatal(err)
	}
	defer img.Release()

	info := rgba(4, 4)
	info.Format = FormatBGRA8Unorm
	tex, err := app.OpenTexturePtr(img, info)
	if err != nil {
		t.Fatalf("OpenTexturePtr() error = %v", err)
	}
	if !tex.IsShareable() {
		t.Error("shareability not inferred from the image flags")
	}
	_ = tex.Close()

	if _, err := app.OpenTexturePtr("not an image", info); !errors.Is(err, graphics.ErrAPIMismatch) {
		t.Errorf("OpenTexturePtr(string) = %v, want ErrAPIMismatch", err)
	}

	foreign, _ := NewAdapter("other").CreateDevice("x").CreateImage(ImageDesc{Format: FormatBGRA8Unorm, Width: 4, Height: 4})
	if _, err := app.OpenTexturePtr(foreign, info); !errors.Is(err, graphics.ErrWrongDevice) {
		t.Errorf("OpenTexturePtr(foreign) = %v, want ErrWrongDevice", err)
	}
	_ = a
}

func TestHandlesAreAdapterScoped(t *testing.T) {
	_, app, _ := newPair(t)
	other := NewGraphicsDevice(NewAdapter("other").CreateDevice("other"), WithOwnership())
	defer other.Close()

	tex, _ := app.CreateTexture(rgba(2, 2), true)
	defer tex.Close()
	h, _ := tex.Handle()
	if _, err := other.OpenTexture(h, rgba(2, 2)); !errors.Is(err, graphics.ErrInvalidHandle) {
		t.Errorf("cross-adapter OpenTexture = %v, want ErrInvalidHandle", err)
	}
}

func TestImageReleaseRevokesHandles(t *testing.T) {
	_, app, comp := newPair(t)

	tex, _ := app.CreateTexture(rgba(2, 2), true)
	h, _ := tex.Handle()
	_ = tex.Close()

	if _, err := comp.OpenTexture(h, rgba(2, 2)); !errors.Is(err, graphics.ErrInvalidHandle) {
		t.Errorf("OpenTexture after release = %v, want ErrInvalidHandle", err)
	}
}

func TestAccessorMismatch(t *testing.T) {
	_, app, _ := newPair(t)
	if _, err := graphics.NativeDevice[*Context](app, graphics.APISoft); !errors.Is(err, graphics.ErrAPIMismatch) {
		t.Errorf("NativeDevice[*Context] = %v", err)
	}
	if _, err := graphics.NativeDevice[*Device](app, graphics.APIHAL); !errors.Is(err, graphics.ErrAPIMismatch) {
		t.Errorf("NativeDevice(APIHAL) = %v", err)
	}
}

func TestClosedDevice(t *testing.T) {
	d := NewGraphicsDevice(NewAdapter("c").CreateDevice("c"), WithOwnership())
	f, _ := d.CreateFence(false)
	_ = d.Close()

	if err := f.Signal(1); !errors.Is(err, graphics.ErrClosed) {
		t.Errorf("Signal after Close = %v, want ErrClosed", err)
	}
	if _, err := d.CreateFence(false); !errors.Is(err, graphics.ErrClosed) {
		t.Errorf("CreateFence after Close = %v, want ErrClosed", err)
	}
	// Nothing was signaled, so Close does not wait.
	_ = f.Close()
	// Idempotent.
	_ = d.Close()
}
