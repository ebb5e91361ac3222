// Package xrtest provides an in-process runtime for exercising the
// composition engine without a real device.
//
// The runtime accepts soft and hal graphics bindings, allocates swapchain
// images on the application's adapter, and enforces the host API's
// acquire/wait/release ordering. Every call is recorded so tests can assert
// on the exact sequence the engine issued.
package xrtest

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/xrcompose/graphics"
	"github.com/gogpu/xrcompose/graphics/halgpu"
	"github.com/gogpu/xrcompose/graphics/soft"
	"github.com/gogpu/xrcompose/xr"
)

// DefaultFormats is the runtime's format preference order.
var DefaultFormats = []gputypes.TextureFormat{
	gputypes.TextureFormatRGBA8UnormSrgb,
	gputypes.TextureFormatBGRA8UnormSrgb,
	gputypes.TextureFormatRGBA8Unorm,
	gputypes.TextureFormatBGRA8Unorm,
	gputypes.TextureFormatDepth32Float,
	gputypes.TextureFormatDepth24PlusStencil8,
	gputypes.TextureFormatDepth16Unorm,
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithRuntimeName sets the name reported by InstanceProperties.
func WithRuntimeName(name string) Option {
	return func(r *Runtime) { r.name = name }
}

// WithFormats sets the formats EnumerateSwapchainFormats reports, in order.
func WithFormats(formats ...gputypes.TextureFormat) Option {
	return func(r *Runtime) { r.formats = formats }
}

// WithImageCount sets the number of images per swapchain.
func WithImageCount(n int) Option {
	return func(r *Runtime) { r.imageCount = n }
}

// WithShareableImages controls whether soft swapchain images carry the
// shared flag. hal images are never shareable.
func WithShareableImages(shareable bool) Option {
	return func(r *Runtime) { r.shareable = shareable }
}

// Runtime is a fake runtime. It is safe for concurrent use.
type Runtime struct {
	name       string
	formats    []gputypes.TextureFormat
	imageCount int
	shareable  bool

	mu         sync.Mutex
	nextHandle uint64
	sessions   map[xr.Session]*session
	swapchains map[xr.Swapchain]*swapchain
	logs       []closedLog
	destroyed  []xr.Session
}

type session struct {
	instance xr.Instance
	api      graphics.API
	softDev  *soft.Device
	hal      *halgpu.Adapter
}

type swapchain struct {
	session  *session
	info     xr.SwapchainCreateInfo
	images   []any
	acquired []uint32
	waited   int
	next     uint32
	log      Log
}

// Log records the calls made on one swapchain.
type Log struct {
	Acquired []uint32
	Waits    int
	Released []uint32
	// Destroyed is set once DestroySwapchain succeeds.
	Destroyed bool
}

var _ xr.Runtime = (*Runtime)(nil)

// New creates a runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		name:       "xrtest",
		formats:    DefaultFormats,
		imageCount: 3,
		shareable:  true,
		sessions:   make(map[xr.Session]*session),
		swapchains: make(map[xr.Swapchain]*swapchain),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Hooks returns the runtime's session entry points, for a layer to wrap.
func (r *Runtime) Hooks() xr.SessionHooks {
	return xr.SessionHooks{
		CreateSession:  r.CreateSession,
		DestroySession: r.DestroySession,
	}
}

// CreateSession registers a session for the binding found in info.Next.
func (r *Runtime) CreateSession(instance xr.Instance, info *xr.SessionCreateInfo) (xr.Session, error) {
	s := &session{instance: instance}
	if b, ok := xr.FindNext[soft.Binding](info.Next); ok && b.Device != nil {
		s.api = graphics.APISoft
		s.softDev = b.Device
	} else if b, ok := xr.FindNext[halgpu.Binding](info.Next); ok {
		a, err := halgpu.FromBinding(b)
		if err != nil {
			return xr.NullHandle, xr.ErrorGraphicsDeviceInvalid
		}
		s.api = graphics.APIHAL
		s.hal = a
	} else {
		return xr.NullHandle, xr.ErrorGraphicsDeviceInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextHandle++
	h := xr.Session(r.nextHandle)
	r.sessions[h] = s
	return h, nil
}

// DestroySession forgets a session.
func (r *Runtime) DestroySession(h xr.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[h]; !ok {
		return xr.ErrorHandleInvalid
	}
	delete(r.sessions, h)
	r.destroyed = append(r.destroyed, h)
	return nil
}

// DestroyedSessions returns the sessions destroyed so far, in order.
func (r *Runtime) DestroyedSessions() []xr.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]xr.Session(nil), r.destroyed...)
}

// InstanceProperties implements xr.Runtime.
func (r *Runtime) InstanceProperties(xr.Instance) (xr.InstanceProperties, error) {
	return xr.InstanceProperties{RuntimeName: r.name, RuntimeVersion: 1}, nil
}

// EnumerateSwapchainFormats implements xr.Runtime. Formats are reported in
// the session API's native space.
func (r *Runtime) EnumerateSwapchainFormats(h xr.Session) ([]int64, error) {
	r.mu.Lock()
	s, ok := r.sessions[h]
	r.mu.Unlock()
	if !ok {
		return nil, xr.ErrorHandleInvalid
	}

	out := make([]int64, 0, len(r.formats))
	for _, f := range r.formats {
		if s.api == graphics.APISoft {
			out = append(out, soft.FromGeneric(f))
		} else {
			out = append(out, int64(f))
		}
	}
	return out, nil
}

// CreateSwapchain implements xr.Runtime.
func (r *Runtime) CreateSwapchain(h xr.Session, info *xr.SwapchainCreateInfo) (xr.Swapchain, error) {
	r.mu.Lock()
	s, ok := r.sessions[h]
	r.mu.Unlock()
	if !ok {
		return xr.NullHandle, xr.ErrorHandleInvalid
	}
	if info.Width == 0 || info.Height == 0 {
		return xr.NullHandle, xr.ErrorValidationFailure
	}

	ti := info.TextureInfo.Normalized()
	count := r.imageCount
	if info.CreateFlags&xr.SwapchainCreateStaticImage != 0 {
		count = 1
	}
	images := make([]any, 0, count)
	for range count {
		img, err := r.createImage(s, ti)
		if err != nil {
			r.destroyImages(s, images)
			return xr.NullHandle, err
		}
		images = append(images, img)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextHandle++
	sc := xr.Swapchain(r.nextHandle)
	r.swapchains[sc] = &swapchain{session: s, info: *info, images: images}
	return sc, nil
}

func (r *Runtime) createImage(s *session, ti graphics.TextureInfo) (any, error) {
	if s.api == graphics.APISoft {
		img, err := s.softDev.CreateImage(soft.ImageDesc{
			Format: ti.Format,
			Width:  ti.Width,
			Height: ti.Height,
			Layers: ti.ArraySize * ti.FaceCount,
			Shared: r.shareable,
		})
		if err != nil {
			return nil, xr.ErrorSwapchainFormatUnsupported
		}
		return img, nil
	}

	tex, err := s.hal.HalDevice().CreateTexture(&hal.TextureDescriptor{
		Label: "xrtest swapchain",
		Size: hal.Extent3D{
			Width:              ti.Width,
			Height:             ti.Height,
			DepthOrArrayLayers: ti.ArraySize * ti.FaceCount,
		},
		MipLevelCount: ti.MipCount,
		SampleCount:   ti.SampleCount,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormat(ti.Format),
		Usage: gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst |
			gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, xr.ErrorRuntimeFailure
	}
	return tex, nil
}

func (r *Runtime) destroyImages(s *session, images []any) {
	for _, img := range images {
		switch v := img.(type) {
		case *soft.Image:
			v.Release()
		case hal.Texture:
			s.hal.HalDevice().DestroyTexture(v)
		}
	}
}

func (r *Runtime) lookup(h xr.Swapchain) (*swapchain, error) {
	sc, ok := r.swapchains[h]
	if !ok {
		return nil, xr.ErrorHandleInvalid
	}
	return sc, nil
}

// EnumerateSwapchainImages implements xr.Runtime.
func (r *Runtime) EnumerateSwapchainImages(h xr.Swapchain) ([]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, err := r.lookup(h)
	if err != nil {
		return nil, err
	}
	return append([]any(nil), sc.images...), nil
}

// AcquireSwapchainImage implements xr.Runtime. Images are handed out in
// ring order.
func (r *Runtime) AcquireSwapchainImage(h xr.Swapchain) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, err := r.lookup(h)
	if err != nil {
		return 0, err
	}
	if len(sc.acquired) == len(sc.images) {
		return 0, xr.ErrorCallOrderInvalid
	}
	idx := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	sc.acquired = append(sc.acquired, idx)
	sc.log.Acquired = append(sc.log.Acquired, idx)
	return idx, nil
}

// WaitSwapchainImage implements xr.Runtime. Images are always ready.
func (r *Runtime) WaitSwapchainImage(h xr.Swapchain, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, err := r.lookup(h)
	if err != nil {
		return err
	}
	if sc.waited >= len(sc.acquired) {
		return xr.ErrorCallOrderInvalid
	}
	sc.waited++
	sc.log.Waits++
	return nil
}

// ReleaseSwapchainImage implements xr.Runtime.
func (r *Runtime) ReleaseSwapchainImage(h xr.Swapchain) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, err := r.lookup(h)
	if err != nil {
		return err
	}
	if len(sc.acquired) == 0 {
		return xr.ErrorCallOrderInvalid
	}
	idx := sc.acquired[0]
	sc.acquired = sc.acquired[1:]
	if sc.waited > 0 {
		sc.waited--
	}
	sc.log.Released = append(sc.log.Released, idx)
	return nil
}

// DestroySwapchain implements xr.Runtime.
func (r *Runtime) DestroySwapchain(h xr.Swapchain) error {
	r.mu.Lock()
	sc, err := r.lookup(h)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	delete(r.swapchains, h)
	sc.log.Destroyed = true
	r.mu.Unlock()

	r.destroyImages(sc.session, sc.images)
	r.mu.Lock()
	r.logs = append(r.logs, closedLog{h: h, log: sc.log})
	r.mu.Unlock()
	return nil
}

// SwapchainLog returns the call log of a live or destroyed swapchain.
func (r *Runtime) SwapchainLog(h xr.Swapchain) (Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sc, ok := r.swapchains[h]; ok {
		return copyLog(sc.log), nil
	}
	for _, c := range r.logs {
		if c.h == h {
			return copyLog(c.log), nil
		}
	}
	return Log{}, fmt.Errorf("xrtest: unknown swapchain %d", h)
}

// Outstanding returns the indices currently acquired, oldest first.
func (r *Runtime) Outstanding(h xr.Swapchain) []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sc, ok := r.swapchains[h]; ok {
		return append([]uint32(nil), sc.acquired...)
	}
	return nil
}

type closedLog struct {
	h   xr.Swapchain
	log Log
}

func copyLog(l Log) Log {
	return Log{
		Acquired:  append([]uint32(nil), l.Acquired...),
		Waits:     l.Waits,
		Released:  append([]uint32(nil), l.Released...),
		Destroyed: l.Destroyed,
	}
}
