package composition

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gogpu/xrcompose"
	"github.com/gogpu/xrcompose/graphics"
	"github.com/gogpu/xrcompose/graphics/halgpu"
	"github.com/gogpu/xrcompose/graphics/soft"
	"github.com/gogpu/xrcompose/xr"
)

// Framework is the composition state of one session.
type Framework struct {
	instance xr.Instance
	session  xr.Session
	runtime  xr.Runtime

	app  graphics.Device
	comp graphics.Device

	// halAdapter is set when the application bound a hal device.
	halAdapter *halgpu.Adapter

	quirks    Quirks
	preferred preferredFormats

	fenceMu     sync.Mutex
	fenceOnApp  graphics.Fence
	fenceOnComp graphics.Fence
	fenceValue  uint64

	dataMu sync.Mutex
	data   any

	closeOnce sync.Once
	closeErr  error
}

type frameworkConfig struct {
	instance     xr.Instance
	instanceInfo *xr.InstanceCreateInfo
	runtime      xr.Runtime
	session      xr.Session
	sessionInfo  *xr.SessionCreateInfo

	// compositionAPI is APIUnknown to match the application.
	compositionAPI graphics.API
	platform       *soft.Platform
	rules          []xrcompose.QuirkRule
	bouncePolicy   string
}

func newFramework(cfg frameworkConfig) (_ *Framework, err error) {
	f := &Framework{
		instance: cfg.instance,
		session:  cfg.session,
		runtime:  cfg.runtime,
	}
	defer func() {
		if err != nil {
			_ = f.closeDevices()
		}
	}()

	if err := f.wrapApplicationDevice(cfg.instanceInfo, cfg.sessionInfo.Next); err != nil {
		return nil, err
	}

	api := cfg.compositionAPI
	if api == graphics.APIUnknown {
		api = f.app.API()
	}
	if err := f.createCompositionDevice(api, cfg.platform); err != nil {
		return nil, err
	}

	f.fenceOnComp, f.fenceOnApp, err = shareFence(f.comp, f.app)
	if err != nil {
		return nil, fmt.Errorf("composition: session fence: %w", err)
	}

	props, err := f.runtime.InstanceProperties(f.instance)
	if err != nil {
		return nil, graphics.PlatformCall("xrGetInstanceProperties", err)
	}
	f.quirks = probeQuirks(props.RuntimeName, cfg.rules, cfg.bouncePolicy)

	formats, err := f.runtime.EnumerateSwapchainFormats(f.session)
	if err != nil {
		return nil, graphics.PlatformCall("xrEnumerateSwapchainFormats", err)
	}
	f.preferred = classifyFormats(f.app, formats)

	xrcompose.Logger().Info("composition: framework created",
		"session", f.session,
		"runtime", props.RuntimeName,
		"application", f.app.API(),
		"composition", f.comp.API(),
		"adapter", f.app.AdapterLUID(),
		"forceBounceCopy", f.quirks.ForceBounceCopy,
		"quirks", f.quirks.Matched,
		"color", f.preferred.color,
		"srgb", f.preferred.srgb,
		"depth", f.preferred.depth)
	return f, nil
}

// wrapApplicationDevice takes the first binding in next whose enable
// extension is on.
func (f *Framework) wrapApplicationDevice(info *xr.InstanceCreateInfo, next []any) error {
	for _, entry := range next {
		switch b := entry.(type) {
		case soft.Binding:
			if b.Device == nil || !info.HasExtension(soft.ExtensionName) {
				continue
			}
			f.app = soft.NewGraphicsDevice(b.Device)
			return nil

		case halgpu.Binding:
			if !info.HasExtension(halgpu.ExtensionName) {
				continue
			}
			a, err := halgpu.FromBinding(b)
			if err != nil {
				return err
			}
			f.halAdapter = a
			f.app = a.NewDevice("application")
			return nil
		}
	}
	return fmt.Errorf("%w: no enabled graphics binding in session create info", graphics.ErrUnsupportedBackend)
}

// createCompositionDevice creates the composition device on the
// application's adapter. Cross-adapter sharing is not supported.
func (f *Framework) createCompositionDevice(api graphics.API, platform *soft.Platform) error {
	luid := f.app.AdapterLUID()

	switch api {
	case graphics.APISoft:
		var adapter *soft.Adapter
		switch {
		case platform != nil:
			a, err := platform.AdapterByLUID(luid)
			if err != nil {
				return err
			}
			adapter = a
		case f.app.API() == graphics.APISoft:
			dev, err := soft.DeviceOf(f.app)
			if err != nil {
				return err
			}
			adapter = dev.Adapter()
		default:
			return fmt.Errorf("%w: no soft adapter for %s application device", graphics.ErrUnsupportedBackend, f.app.API())
		}
		f.comp = soft.NewGraphicsDevice(adapter.CreateDevice("composition"), soft.WithOwnership())

	case graphics.APIHAL:
		if f.halAdapter == nil {
			return fmt.Errorf("%w: hal composition needs a hal application device", graphics.ErrUnsupportedBackend)
		}
		f.comp = f.halAdapter.NewDevice("composition")

	default:
		return fmt.Errorf("%w: composition API %s", graphics.ErrUnsupportedBackend, api)
	}

	if got := f.comp.AdapterLUID(); got != luid {
		return fmt.Errorf("%w: composition adapter %s differs from application adapter %s",
			graphics.ErrUnsupportedBackend, got, luid)
	}
	return nil
}

// Session returns the session the framework belongs to.
func (f *Framework) Session() xr.Session { return f.session }

// ApplicationDevice returns the wrapper around the application's device.
func (f *Framework) ApplicationDevice() graphics.Device { return f.app }

// CompositionDevice returns the layer's composition device.
func (f *Framework) CompositionDevice() graphics.Device { return f.comp }

// Quirks returns the workarounds chosen for the runtime.
func (f *Framework) Quirks() Quirks { return f.quirks }

// SetSessionData attaches caller data to the session and returns the
// previous value. The previous value is not closed.
func (f *Framework) SetSessionData(data any) any {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	prev := f.data
	f.data = data
	return prev
}

// SessionData returns the data attached with SetSessionData.
func (f *Framework) SessionData() any {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	return f.data
}

// CreateSwapchain creates a swapchain described in the application
// device's format space. With ModeSubmit the runtime swapchain is created
// first and destroyed with the returned swapchain.
func (f *Framework) CreateSwapchain(info *xr.SwapchainCreateInfo, mode Mode) (Swapchain, error) {
	if !mode.Has(ModeSubmit) {
		return newNonSubmittableSwapchain(info, f.app, f.comp, mode)
	}

	h, err := f.runtime.CreateSwapchain(f.session, info)
	if err != nil {
		return nil, graphics.PlatformCall("xrCreateSwapchain", err)
	}
	return f.newSubmittable(h, info, mode, true)
}

// WrapSwapchain wraps a runtime swapchain created by someone else, for
// instance the application. Closing the result leaves the runtime
// swapchain alive.
func (f *Framework) WrapSwapchain(h xr.Swapchain, info *xr.SwapchainCreateInfo, mode Mode) (Swapchain, error) {
	return f.newSubmittable(h, info, mode|ModeSubmit, false)
}

func (f *Framework) newSubmittable(h xr.Swapchain, info *xr.SwapchainCreateInfo, mode Mode, owned bool) (Swapchain, error) {
	return newSubmittableSwapchain(submittableConfig{
		runtime:     f.runtime,
		handle:      h,
		owned:       owned,
		info:        info,
		app:         f.app,
		comp:        f.comp,
		mode:        mode,
		forceBounce: f.quirks.ForceBounceCopy,
	})
}

// SerializePreComposition makes all application work enqueued so far
// visible to composition work enqueued afterwards.
func (f *Framework) SerializePreComposition() error {
	return f.serialize(f.fenceOnApp, f.fenceOnComp, "pre")
}

// SerializePostComposition makes all composition work enqueued so far
// visible to application work enqueued afterwards.
func (f *Framework) SerializePostComposition() error {
	return f.serialize(f.fenceOnComp, f.fenceOnApp, "post")
}

func (f *Framework) serialize(signal, wait graphics.Fence, stage string) error {
	f.fenceMu.Lock()
	defer f.fenceMu.Unlock()

	f.fenceValue++
	if err := signal.Signal(f.fenceValue); err != nil {
		return err
	}
	if err := wait.WaitOnDevice(f.fenceValue); err != nil {
		return err
	}
	xrcompose.Logger().Debug("composition: serialize", "session", f.session, "stage", stage, "value", f.fenceValue)
	return nil
}

// PreferredSwapchainFormatOnApplicationDevice returns the runtime's
// preferred format for usage, in the application device's native space.
// Color attachments get the sRGB variant when preferSRGB is set. It
// returns 0 when the runtime offers no matching format.
func (f *Framework) PreferredSwapchainFormatOnApplicationDevice(usage graphics.UsageFlags, preferSRGB bool) int64 {
	return f.app.TranslateFromGenericFormat(f.preferred.forUsage(usage, preferSRGB))
}

// Close drains the session fence on the host, closes session data that
// implements io.Closer, and releases both devices. Swapchains created by
// the framework must be closed first.
func (f *Framework) Close() error {
	f.closeOnce.Do(func() {
		var errs []error
		if f.fenceOnComp != nil {
			f.fenceMu.Lock()
			errs = append(errs, f.fenceOnComp.WaitOnCPU(f.fenceValue))
			f.fenceMu.Unlock()
		}
		if c, ok := f.SetSessionData(nil).(io.Closer); ok {
			errs = append(errs, c.Close())
		}
		errs = append(errs, f.closeDevices())
		f.closeErr = errors.Join(errs...)

		xrcompose.Logger().Info("composition: framework closed", "session", f.session)
	})
	return f.closeErr
}

func (f *Framework) closeDevices() error {
	var errs []error
	for _, fence := range []graphics.Fence{f.fenceOnApp, f.fenceOnComp} {
		if fence != nil {
			errs = append(errs, fence.Close())
		}
	}
	for _, d := range []graphics.Device{f.comp, f.app} {
		if d != nil {
			errs = append(errs, d.Close())
		}
	}
	if f.halAdapter != nil {
		errs = append(errs, f.halAdapter.Close())
	}
	return errors.Join(errs...)
}
