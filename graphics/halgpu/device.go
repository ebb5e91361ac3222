// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/xrcompose/graphics"
)

// Stats counts work a device wrapper issued.
type Stats struct {
	Copies      uint64
	Signals     uint64
	DeviceWaits uint64
	HostWaits   uint64
}

// Device is one wrapper over an adapter's hal device and queue.
type Device struct {
	adapter *Adapter
	label   string
	closed  atomic.Bool

	copies      atomic.Uint64
	signals     atomic.Uint64
	deviceWaits atomic.Uint64
	hostWaits   atomic.Uint64
}

var _ graphics.Device = (*Device)(nil)

// Adapter returns the adapter the wrapper was created on.
func (d *Device) Adapter() *Adapter { return d.adapter }

// Stats returns a snapshot of the wrapper counters.
func (d *Device) Stats() Stats {
	return Stats{
		Copies:      d.copies.Load(),
		Signals:     d.signals.Load(),
		DeviceWaits: d.deviceWaits.Load(),
		HostWaits:   d.hostWaits.Load(),
	}
}

// API implements graphics.Device.
func (d *Device) API() graphics.API { return graphics.APIHAL }

// NativeDevice returns the hal.Device.
func (d *Device) NativeDevice() any { return d.adapter.device }

// NativeContext returns the hal.Queue.
func (d *Device) NativeContext() any { return d.adapter.queue }

// AdapterLUID implements graphics.Device.
func (d *Device) AdapterLUID() graphics.LUID { return d.adapter.luid }

// CreateFence implements graphics.Device.
func (d *Device) CreateFence(shareable bool) (graphics.Fence, error) {
	if d.closed.Load() {
		return nil, graphics.ErrClosed
	}
	hf, err := d.adapter.device.CreateFence()
	if err != nil {
		return nil, graphics.PlatformCall("CreateFence", err)
	}
	tl := &Timeline{adapter: d.adapter, fence: hf}
	return &Fence{dev: d, tl: tl, shareable: shareable, creator: true}, nil
}

// OpenFence implements graphics.Device.
func (d *Device) OpenFence(h graphics.ShareableHandle) (graphics.Fence, error) {
	if !h.NT {
		return nil, fmt.Errorf("%w: fences open from NT handles only", graphics.ErrInvalidHandle)
	}
	obj, err := d.adapter.ns.Lookup(h)
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
func (d *Device) CloseHandle(h graphics.ShareableHandle) error {
	return d.adapter.ns.Close(h)
}

// CreateTexture implements graphics.Device.
func (d *Device) CreateTexture(info graphics.TextureInfo, shareable bool) (graphics.Texture, error) {
	if d.closed.Load() {
		return nil, graphics.ErrClosed
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	info = info.Normalized()
	format := gputypes.TextureFormat(info.Format)
	if !isSupported(format) {
		return nil, fmt.Errorf("%w: unsupported format %v", graphics.ErrInvalidDescriptor, format)
	}

	tex, err := d.adapter.device.CreateTexture(&hal.TextureDescriptor{
		Label: d.label,
		Size: hal.Extent3D{
			Width:              info.Width,
			Height:             info.Height,
			DepthOrArrayLayers: info.ArraySize * info.FaceCount,
		},
		MipLevelCount: info.MipCount,
		SampleCount:   info.SampleCount,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         toHalUsage(info.Usage),
		ViewFormats:   viewFormats(format, info.Usage),
	})
	if err != nil {
		return nil, graphics.PlatformCall("CreateTexture", err)
	}

	img := &Image{adapter: d.adapter, tex: tex, info: info, owned: true}
	img.refs.Store(1)
	return &Texture{dev: d, img: img, info: info, shareable: shareable}, nil
}

// OpenTexture implements graphics.Device.
func (d *Device) OpenTexture(h graphics.ShareableHandle, info graphics.TextureInfo) (graphics.Texture, error) {
	obj, err := d.adapter.ns.Lookup(h)
	if err != nil {
		return nil, err
	}
	img, ok := obj.(*Image)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a texture", graphics.ErrInvalidHandle, h)
	}
	info = info.Normalized()
	if !graphics.SameShape(img.info, info) {
		return nil, fmt.Errorf("%w: handle refers to a %dx%d texture", graphics.ErrInvalidDescriptor,
			img.info.Width, img.info.Height)
	}
	img.refs.Add(1)
	return &Texture{dev: d, img: img, info: info, shareable: true}, nil
}

// OpenTexturePtr implements graphics.Device. native must be a hal.Texture
// created on the adapter's device. The result is never shareable.
func (d *Device) OpenTexturePtr(native any, info graphics.TextureInfo) (graphics.Texture, error) {
	tex, ok := native.(hal.Texture)
	if !ok {
		return nil, fmt.Errorf("%w: hal device cannot wrap %T", graphics.ErrAPIMismatch, native)
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	info = info.Normalized()
	img := &Image{adapter: d.adapter, tex: tex, info: info}
	img.refs.Store(1)
	return &Texture{dev: d, img: img, info: info}, nil
}

// CopyTexture implements graphics.Device.
func (d *Device) CopyTexture(from, to graphics.Texture) error {
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

	device := d.adapter.device
	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: d.label + " copy"})
	if err != nil {
		return graphics.PlatformCall("CreateCommandEncoder", err)
	}
	if err := encoder.BeginEncoding(d.label + " copy"); err != nil {
		encoder.Destroy()
		return graphics.PlatformCall("BeginEncoding", err)
	}

	info := src.info
	regions := make([]hal.TextureCopy, 0, info.MipCount)
	for mip := range info.MipCount {
		regions = append(regions, hal.TextureCopy{
			SrcBase: hal.ImageCopyTexture{Texture: src.img.tex, MipLevel: mip},
			DstBase: hal.ImageCopyTexture{Texture: dst.img.tex, MipLevel: mip},
			Size: hal.Extent3D{
				Width:              max(info.Width>>mip, 1),
				Height:             max(info.Height>>mip, 1),
				DepthOrArrayLayers: info.ArraySize * info.FaceCount,
			},
		})
	}
	encoder.CopyTextureToTexture(src.img.tex, dst.img.tex, regions)

	cmd, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		encoder.Destroy()
		return graphics.PlatformCall("EndEncoding", err)
	}
	if _, err := d.adapter.submit(encoder, cmd); err != nil {
		device.FreeCommandBuffer(cmd)
		encoder.Destroy()
		return err
	}
	d.copies.Add(1)
	return nil
}

func (d *Device) resident(t graphics.Texture) (*Texture, error) {
	ht, ok := t.(*Texture)
	if !ok {
		return nil, fmt.Errorf("%w: %s texture on a hal device", graphics.ErrAPIMismatch, t.API())
	}
	if ht.dev != d {
		return nil, fmt.Errorf("%w: texture is resident on %q, not %q",
			graphics.ErrWrongDevice, ht.dev.label, d.label)
	}
	return ht, nil
}

// TranslateToGenericFormat implements graphics.Device. Native formats are
// gputypes values already.
func (d *Device) TranslateToGenericFormat(format int64) gputypes.TextureFormat {
	f := gputypes.TextureFormat(format)
	if !isSupported(f) {
		return gputypes.TextureFormatUndefined
	}
	return f
}

// TranslateFromGenericFormat implements graphics.Device.
func (d *Device) TranslateFromGenericFormat(format gputypes.TextureFormat) int64 {
	if !isSupported(format) {
		return 0
	}
	return int64(format)
}

// SupportedFormats implements graphics.Device.
func (d *Device) SupportedFormats() []int64 {
	out := make([]int64, len(supportedFormats))
	for i, f := range supportedFormats {
		out[i] = int64(f)
	}
	return out
}

// Close frees completed work. The shared hal device stays open; close the
// adapter to release it.
func (d *Device) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	d.adapter.completed()
	return nil
}

// Image is a hal texture shared between wrappers on one adapter.
type Image struct {
	adapter *Adapter
	tex     hal.Texture
	info    graphics.TextureInfo
	owned   bool
	refs    atomic.Int32
}

// HalTexture returns the underlying hal texture.
func (img *Image) HalTexture() hal.Texture { return img.tex }

func (img *Image) release() {
	if img.refs.Add(-1) != 0 {
		return
	}
	img.adapter.ns.Revoke(img)
	if img.owned {
		img.adapter.device.DestroyTexture(img.tex)
	}
}

// Texture is a hal texture as seen by one wrapper.
type Texture struct {
	dev       *Device
	img       *Image
	info      graphics.TextureInfo
	shareable bool
	closeOnce sync.Once
}

var _ graphics.Texture = (*Texture)(nil)

// API implements graphics.Texture.
func (t *Texture) API() graphics.API { return graphics.APIHAL }

// Info implements graphics.Texture.
func (t *Texture) Info() graphics.TextureInfo { return t.info }

// IsShareable implements graphics.Texture.
func (t *Texture) IsShareable() bool { return t.shareable }

// NativeTexture returns the hal.Texture.
func (t *Texture) NativeTexture() any { return t.img.tex }

// Handle implements graphics.Texture. hal textures always export legacy
// handles.
func (t *Texture) Handle() (graphics.ShareableHandle, error) {
	if !t.shareable {
		return graphics.ShareableHandle{}, graphics.ErrNotShareable
	}
	return t.dev.adapter.ns.Export(t.img, graphics.APIHAL, false), nil
}

// Close implements graphics.Texture.
func (t *Texture) Close() error {
	t.closeOnce.Do(t.img.release)
	return nil
}
