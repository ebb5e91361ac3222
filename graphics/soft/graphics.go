package soft

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/xrcompose/graphics"
)

// Option configures a GraphicsDevice.
type Option func(*GraphicsDevice)

// WithNTHandles makes textures created by the device export NT handles
// instead of legacy handles.
func WithNTHandles() Option {
	return func(d *GraphicsDevice) { d.preferNT = true }
}

// WithOwnership makes Close also close the native device.
func WithOwnership() Option {
	return func(d *GraphicsDevice) { d.owned = true }
}

// GraphicsDevice adapts a soft Device to graphics.Device.
type GraphicsDevice struct {
	dev      *Device
	owned    bool
	preferNT bool
	closed   atomic.Bool
}

var _ graphics.Device = (*GraphicsDevice)(nil)

// NewGraphicsDevice wraps dev. Without WithOwnership the native device is
// left running on Close.
func NewGraphicsDevice(dev *Device, opts ...Option) *GraphicsDevice {
	d := &GraphicsDevice{dev: dev}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// API implements graphics.Device.
func (d *GraphicsDevice) API() graphics.API { return graphics.APISoft }

// NativeDevice returns the *Device.
func (d *GraphicsDevice) NativeDevice() any { return d.dev }

// NativeContext returns the *Context.
func (d *GraphicsDevice) NativeContext() any { return d.dev.ctx }

// AdapterLUID implements graphics.Device.
func (d *GraphicsDevice) AdapterLUID() graphics.LUID { return d.dev.adapter.luid }

// CreateFence implements graphics.Device.
func (d *GraphicsDevice) CreateFence(shareable bool) (graphics.Fence, error) {
	if d.closed.Load() {
		return nil, graphics.ErrClosed
	}
	return &Fence{
		dev:       d,
		tl:        d.dev.CreateTimeline(),
		shareable: shareable,
		creator:   true,
	}, nil
}

// OpenFence implements graphics.Device.
func (d *GraphicsDevice) OpenFence(h graphics.ShareableHandle) (graphics.Fence, error) {
	if !h.NT {
		return nil, fmt.Errorf("%w: fences open from NT handles only", graphics.ErrInvalidHandle)
	}
	obj, err := d.dev.adapter.ns.Lookup(h)
	if err != nil {
		return nil, err
	}
	tl, ok := obj.(*Timeline)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a fence", graphics.ErrInvalidHandle, h)
	}
	return &Fence{dev: d, tl: tl}, nil
}

// CloseHandle implements graphics.Device.
func (d *GraphicsDevice) CloseHandle(h graphics.ShareableHandle) error {
	return d.dev.adapter.ns.Close(h)
}

// CreateTexture implements graphics.Device.
func (d *GraphicsDevice) CreateTexture(info graphics.TextureInfo, shareable bool) (graphics.Texture, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	info = info.Normalized()
	img, err := d.dev.CreateImage(ImageDesc{
		Format:   info.Format,
		Width:    info.Width,
		Height:   info.Height,
		Layers:   info.ArraySize * info.FaceCount,
		Shared:   shareable && !d.preferNT,
		SharedNT: shareable && d.preferNT,
	})
	if err != nil {
		return nil, err
	}
	return &Texture{dev: d, img: img, info: info, shareable: shareable}, nil
}

// OpenTexture implements graphics.Device.
func (d *GraphicsDevice) OpenTexture(h graphics.ShareableHandle, info graphics.TextureInfo) (graphics.Texture, error) {
	obj, err := d.dev.adapter.ns.Lookup(h)
	if err != nil {
		return nil, err
	}
	img, ok := obj.(*Image)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a texture", graphics.ErrInvalidHandle, h)
	}
	return d.wrapImage(img, info)
}

// OpenTexturePtr implements graphics.Device. native must be an *Image on
// the device's adapter.
func (d *GraphicsDevice) OpenTexturePtr(native any, info graphics.TextureInfo) (graphics.Texture, error) {
	img, ok := native.(*Image)
	if !ok {
		return nil, fmt.Errorf("%w: soft device cannot wrap %T", graphics.ErrAPIMismatch, native)
	}
	if img.adapter != d.dev.adapter {
		return nil, fmt.Errorf("%w: image lives on adapter %s", graphics.ErrWrongDevice, img.adapter.luid)
	}
	return d.wrapImage(img, info)
}

func (d *GraphicsDevice) wrapImage(img *Image, info graphics.TextureInfo) (graphics.Texture, error) {
	info = info.Normalized()
	desc := img.desc
	if desc.Width != info.Width || desc.Height != info.Height || desc.Layers != info.ArraySize*info.FaceCount {
		return nil, fmt.Errorf("%w: image is %dx%dx%d, descriptor is %dx%dx%d", graphics.ErrInvalidDescriptor,
			desc.Width, desc.Height, desc.Layers, info.Width, info.Height, info.ArraySize*info.FaceCount)
	}
	img.Retain()
	return &Texture{dev: d, img: img, info: info, shareable: img.Shareable()}, nil
}

// CopyTexture implements graphics.Device.
func (d *GraphicsDevice) CopyTexture(from, to graphics.Texture) error {
	src, err := d.resident(from)
	if err != nil {
		return err
	}
	dst, err := d.resident(to)
	if err != nil {
		return err
	}
	if !graphics.SameShape(src.info, dst.info) {
		return fmt.Errorf("%w: copy between different shapes", graphics.ErrInvalidDescriptor)
	}
	return d.dev.ctx.Copy(dst.img, src.img)
}

func (d *GraphicsDevice) resident(t graphics.Texture) (*Texture, error) {
	st, ok := t.(*Texture)
	if !ok {
		return nil, fmt.Errorf("%w: %s texture on a soft device", graphics.ErrAPIMismatch, t.API())
	}
	if st.dev.dev != d.dev {
		return nil, fmt.Errorf("%w: texture is resident on %s, not %s",
			graphics.ErrWrongDevice, st.dev.dev.label, d.dev.label)
	}
	return st, nil
}

// TranslateToGenericFormat implements graphics.Device.
func (d *GraphicsDevice) TranslateToGenericFormat(format int64) gputypes.TextureFormat {
	return ToGeneric(format)
}

// TranslateFromGenericFormat implements graphics.Device.
func (d *GraphicsDevice) TranslateFromGenericFormat(format gputypes.TextureFormat) int64 {
	return FromGeneric(format)
}

// SupportedFormats implements graphics.Device.
func (d *GraphicsDevice) SupportedFormats() []int64 { return SupportedFormats() }

// Close waits for queued work, then closes the native device if owned.
func (d *GraphicsDevice) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	if d.owned {
		return d.dev.Close()
	}
	// The application may already have torn its device down.
	_ = d.dev.ctx.Finish()
	return nil
}

// Texture is a soft image as seen by one device.
type Texture struct {
	dev       *GraphicsDevice
	img       *Image
	info      graphics.TextureInfo
	shareable bool
	closeOnce sync.Once
}

var _ graphics.Texture = (*Texture)(nil)

// API implements graphics.Texture.
func (t *Texture) API() graphics.API { return graphics.APISoft }

// Info implements graphics.Texture.
func (t *Texture) Info() graphics.TextureInfo { return t.info }

// IsShareable implements graphics.Texture.
func (t *Texture) IsShareable() bool { return t.shareable }

// NativeTexture returns the *Image.
func (t *Texture) NativeTexture() any { return t.img }

// Handle implements graphics.Texture. NT-only images export NT handles;
// everything else exports a stable legacy handle.
func (t *Texture) Handle() (graphics.ShareableHandle, error) {
	if !t.shareable {
		return graphics.ShareableHandle{}, graphics.ErrNotShareable
	}
	return t.dev.dev.adapter.ns.Export(t.img, graphics.APISoft, t.img.desc.SharedNT), nil
}

// Close drops this wrapper's reference to the image.
func (t *Texture) Close() error {
	t.closeOnce.Do(t.img.Release)
	return nil
}

// Fence is a timeline as seen by one device.
type Fence struct {
	dev       *GraphicsDevice
	tl        *Timeline
	shareable bool
	creator   bool
	last      atomic.Uint64
	closed    atomic.Bool
}

var _ graphics.Fence = (*Fence)(nil)

// API implements graphics.Fence.
func (f *Fence) API() graphics.API { return graphics.APISoft }

// NativeFence returns the *Timeline.
func (f *Fence) NativeFence() any { return f.tl }

// IsShareable implements graphics.Fence.
func (f *Fence) IsShareable() bool { return f.shareable }

// Handle exports an NT handle. The receiver closes it.
func (f *Fence) Handle() (graphics.ShareableHandle, error) {
	if !f.shareable {
		return graphics.ShareableHandle{}, graphics.ErrNotShareable
	}
	return f.dev.dev.adapter.ns.Export(f.tl, graphics.APISoft, true), nil
}

// Signal implements graphics.Fence.
func (f *Fence) Signal(value uint64) error {
	tl := f.tl
	if err := f.dev.dev.submit(func() { tl.Signal(value) }); err != nil {
		return err
	}
	f.dev.dev.signals.Add(1)
	f.raiseLast(value)
	return nil
}

// WaitOnDevice implements graphics.Fence. The wait stalls the device queue,
// never the caller.
func (f *Fence) WaitOnDevice(value uint64) error {
	tl := f.tl
	if err := f.dev.dev.submit(func() { tl.Wait(value) }); err != nil {
		return err
	}
	f.dev.dev.deviceWaits.Add(1)
	return nil
}

// WaitOnCPU implements graphics.Fence.
func (f *Fence) WaitOnCPU(value uint64) error {
	if err := f.Signal(value); err != nil {
		return err
	}
	f.dev.dev.hostWaits.Add(1)
	f.tl.Wait(value)
	return nil
}

// Close waits for the last value signaled through f. Closing the creating
// fence revokes its handles.
func (f *Fence) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	if last := f.last.Load(); last > 0 {
		f.tl.Wait(last)
	}
	if f.creator {
		f.dev.dev.adapter.ns.Revoke(f.tl)
	}
	return nil
}

func (f *Fence) raiseLast(v uint64) {
	for {
		cur := f.last.Load()
		if v <= cur || f.last.CompareAndSwap(cur, v) {
			return
		}
	}
}
