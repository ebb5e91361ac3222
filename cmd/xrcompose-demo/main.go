// Command xrcompose-demo runs a headless frame loop through the
// composition engine.
//
// A fake runtime stands in for the immersive runtime. The "application"
// renders a moving gradient into a runtime swapchain; the layer reads each
// released frame on its composition device, draws a scaled-down copy of it
// into the corner, and commits the result before the runtime sees it.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	_ "github.com/gogpu/wgpu/hal/noop"
	"golang.org/x/image/draw"

	"github.com/gogpu/xrcompose"
	"github.com/gogpu/xrcompose/composition"
	"github.com/gogpu/xrcompose/graphics"
	"github.com/gogpu/xrcompose/graphics/halgpu"
	"github.com/gogpu/xrcompose/graphics/soft"
	"github.com/gogpu/xrcompose/xr"
	"github.com/gogpu/xrcompose/xr/xrtest"
)

func main() {
	var (
		config  = flag.String("config", "", "layer settings file (YAML)")
		api     = flag.String("api", "soft", "application graphics API: soft or hal")
		frames  = flag.Int("frames", 30, "frames to render")
		width   = flag.Int("width", 256, "swapchain width")
		height  = flag.Int("height", 256, "swapchain height")
		runtime = flag.String("runtime", "xrtest", "runtime name reported to the layer")
		output  = flag.String("output", "", "write the last composed frame to this PNG (soft only)")
	)
	flag.Parse()

	settings := xrcompose.DefaultSettings()
	if *config != "" {
		s, err := xrcompose.LoadSettings(*config)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		settings = *s
	}
	level, _ := settings.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	xrcompose.SetLogger(logger)

	d := demo{
		settings: &settings,
		frames:   *frames,
		width:    uint32(*width),
		height:   uint32(*height),
		runtime:  xrtest.New(xrtest.WithRuntimeName(*runtime)),
		output:   *output,
		log:      logger,
	}
	var err error
	switch *api {
	case "soft":
		err = d.runSoft()
	case "hal":
		err = d.runHAL()
	default:
		err = fmt.Errorf("unknown -api %q", *api)
	}
	if err != nil {
		logger.Error("demo failed", "err", err, "result", xr.ResultFromError(err))
		os.Exit(1)
	}
}

type demo struct {
	settings *xrcompose.Settings
	frames   int
	width    uint32
	height   uint32
	runtime  *xrtest.Runtime
	output   string
	log      *slog.Logger
}

// session creates a session through the layer's hooks.
func (d *demo) session(extension string, binding any) (*composition.Factory, xr.SessionHooks, xr.Session, error) {
	info := &xr.InstanceCreateInfo{
		ApplicationName:   "xrcompose-demo",
		EnabledExtensions: []string{extension},
	}
	factory := composition.NewFactory(1, info, d.runtime, composition.WithSettings(d.settings))
	hooks := factory.Hook(d.runtime.Hooks())
	session, err := hooks.CreateSession(1, &xr.SessionCreateInfo{Next: []any{binding}})
	return factory, hooks, session, err
}

func (d *demo) runSoft() (err error) {
	app := soft.NewAdapter("Soft GPU").CreateDevice("application")
	defer app.Close()

	factory, hooks, session, err := d.session(soft.ExtensionName, soft.Binding{Device: app})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, hooks.DestroySession(session)) }()
	fw, err := factory.Framework(session)
	if err != nil {
		return err
	}

	// The application owns its swapchain; the layer wraps it.
	info := &xr.SwapchainCreateInfo{TextureInfo: graphics.TextureInfo{
		Format: fw.PreferredSwapchainFormatOnApplicationDevice(graphics.UsageColorAttachment, false),
		Width:  d.width,
		Height: d.height,
		Usage:  graphics.UsageColorAttachment | graphics.UsageSampled,
	}}
	if info.Format != soft.FormatRGBA8Unorm {
		return fmt.Errorf("demo draws RGBA8 frames, runtime prefers format %d", info.Format)
	}
	handle, err := d.runtime.CreateSwapchain(session, info)
	if err != nil {
		return err
	}
	defer d.runtime.DestroySwapchain(handle)

	sc, err := fw.WrapSwapchain(handle, info, composition.ModeRead|composition.ModeWrite)
	if err != nil {
		return err
	}
	defer sc.Close()

	comp, err := soft.DeviceOf(fw.CompositionDevice())
	if err != nil {
		return err
	}

	var last *soft.Image
	for frame := range d.frames {
		// Application side.
		img, err := sc.AcquireImage(true)
		if err != nil {
			return err
		}
		onApp, err := soft.ImageOf(img.ApplicationTexture)
		if err != nil {
			return err
		}
		if err := app.Context().Write(onApp, gradient(int(d.width), int(d.height), frame).Pix); err != nil {
			return err
		}
		if err := sc.ReleaseImage(); err != nil {
			return err
		}

		// Layer side.
		if err := fw.SerializePreComposition(); err != nil {
			return err
		}
		released, err := sc.LastReleasedImage()
		if err != nil {
			return err
		}
		if err := d.overlay(comp, released); err != nil {
			return err
		}
		if err := sc.CommitLastReleasedImage(); err != nil {
			return err
		}
		if err := fw.SerializePostComposition(); err != nil {
			return err
		}
		last = onApp
	}

	appStats, compStats := app.Stats(), comp.Stats()
	d.log.Info("frames composed",
		"frames", d.frames,
		"bounce", fw.Quirks().ForceBounceCopy,
		"appCopies", appStats.Copies,
		"appSignals", appStats.Signals,
		"compSignals", compStats.Signals,
		"compWaits", compStats.DeviceWaits)

	if d.output == "" || last == nil {
		return nil
	}
	return d.save(app, last)
}

// overlay draws a quarter-size copy of the released frame into its top
// left corner, on the composition device.
func (d *demo) overlay(comp *soft.Device, img *composition.SwapchainImage) error {
	source, err := soft.ImageOf(img.ReadTexture)
	if err != nil {
		return err
	}
	target, err := soft.ImageOf(img.WriteTexture)
	if err != nil {
		return err
	}

	w, h := int(d.width), int(d.height)
	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	ctx := comp.Context()
	if err := ctx.Read(source, func(data []byte) { copy(frame.Pix, data) }); err != nil {
		return err
	}
	if err := ctx.Finish(); err != nil {
		return err
	}

	src := image.NewRGBA(frame.Rect)
	copy(src.Pix, frame.Pix)
	inset := image.Rect(4, 4, 4+w/4, 4+h/4)
	draw.Draw(frame, inset.Inset(-2), image.White, image.Point{}, draw.Src)
	draw.ApproxBiLinear.Scale(frame, inset, src, src.Bounds(), draw.Src, nil)
	return ctx.Write(target, frame.Pix)
}

func (d *demo) save(app *soft.Device, img *soft.Image) error {
	var pix []byte
	if err := app.Context().Read(img, func(data []byte) { pix = data }); err != nil {
		return err
	}
	if err := app.Context().Finish(); err != nil {
		return err
	}

	f, err := os.Create(d.output)
	if err != nil {
		return err
	}
	out := &image.RGBA{Pix: pix, Stride: 4 * int(d.width), Rect: image.Rect(0, 0, int(d.width), int(d.height))}
	if err := png.Encode(f, out); err != nil {
		f.Close()
		return err
	}
	d.log.Info("frame saved", "path", d.output)
	return f.Close()
}

// gradient renders the application's frame.
func gradient(w, h, frame int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			i := img.PixOffset(x, y)
			img.Pix[i+0] = uint8((x + frame*4) * 255 / max(w, 1))
			img.Pix[i+1] = uint8(y * 255 / max(h, 1))
			img.Pix[i+2] = uint8(128 + frame*8)
			img.Pix[i+3] = 0xff
		}
	}
	return img
}

// halProvider hands the demo's hal device to the layer.
type halProvider struct {
	adapter *halgpu.Adapter
}

func (p *halProvider) Device() gpucontext.Device             { return nil }
func (p *halProvider) Queue() gpucontext.Queue               { return nil }
func (p *halProvider) Adapter() gpucontext.Adapter           { return nil }
func (p *halProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatRGBA8Unorm }
func (p *halProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: p.adapter.Name()}
}
func (p *halProvider) HalDevice() any { return p.adapter.HalDevice() }
func (p *halProvider) HalQueue() any  { return p.adapter.HalQueue() }

// runHAL drives the same loop on a headless hal device. Texture contents
// are not observable there, so only the copy and fence traffic is logged.
func (d *demo) runHAL() (err error) {
	adapter, err := halgpu.OpenAdapter(gputypes.BackendEmpty)
	if err != nil {
		return err
	}
	defer adapter.Close()

	factory, hooks, session, err := d.session(halgpu.ExtensionName, halgpu.Binding{Provider: &halProvider{adapter: adapter}})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, hooks.DestroySession(session)) }()
	fw, err := factory.Framework(session)
	if err != nil {
		return err
	}

	info := &xr.SwapchainCreateInfo{TextureInfo: graphics.TextureInfo{
		Format: fw.PreferredSwapchainFormatOnApplicationDevice(graphics.UsageColorAttachment, true),
		Width:  d.width,
		Height: d.height,
		Usage:  graphics.UsageColorAttachment,
	}}
	sc, err := fw.CreateSwapchain(info, composition.ModeSubmit|composition.ModeRead|composition.ModeWrite)
	if err != nil {
		return err
	}
	defer sc.Close()

	for range d.frames {
		if _, err := sc.AcquireImage(true); err != nil {
			return err
		}
		if err := sc.ReleaseImage(); err != nil {
			return err
		}
		if err := fw.SerializePreComposition(); err != nil {
			return err
		}
		if _, err := sc.LastReleasedImage(); err != nil {
			return err
		}
		if err := sc.CommitLastReleasedImage(); err != nil {
			return err
		}
		if err := fw.SerializePostComposition(); err != nil {
			return err
		}
	}

	app, ok := fw.ApplicationDevice().(*halgpu.Device)
	if !ok {
		return fmt.Errorf("application device is %s, not hal", fw.ApplicationDevice().API())
	}
	stats := app.Stats()
	d.log.Info("frames composed",
		"frames", d.frames,
		"adapter", adapter.Name(),
		"copies", stats.Copies,
		"signals", stats.Signals)
	if d.output != "" {
		d.log.Warn("-output is ignored for hal")
	}
	return nil
}
