// Package xrcompose is a cross-device swapchain composition engine for
// immersive-rendering API layers.
//
// # Overview
//
// An API layer sits between an application and its runtime. To draw its own
// content on top of (or instead of) the application's frames, the layer needs
// a GPU device of its own, the composition device, and a way to read and
// write the application's swapchain images from that device without adding
// CPU stalls to the frame loop.
//
// xrcompose wraps the application's device and the composition device behind
// one interface (package graphics), shares textures and timeline fences across
// them, and orders all producer/consumer work with GPU fence signal/wait pairs.
//
// # Quick Start
//
//	factory := composition.NewFactory(instance, instanceInfo, runtime,
//	    composition.WithSoftPlatform(platform))
//	hooks := factory.Hook(xr.SessionHooks{
//	    CreateSession:  runtime.CreateSession,
//	    DestroySession: runtime.DestroySession,
//	})
//	session, _ := hooks.CreateSession(instance, &sessionInfo)
//
//	fw, _ := factory.Framework(session)
//	sc, _ := fw.CreateSwapchain(info, composition.ModeSubmit|composition.ModeRead)
//
// # Architecture
//
// The module is organized into:
//   - graphics: device, texture and fence contracts, shareable handles, formats
//   - graphics/soft: software backend with per-device execution queues
//   - graphics/halgpu: backend over gogpu/wgpu hal
//   - composition: swapchains, per-session Framework, Factory
//   - xr: host API surface (handles, create infos, runtime entry points)
//   - xr/xrtest: in-process runtime for tests and demos
//
// # Logging
//
// xrcompose is silent by default. Use [SetLogger] to route diagnostics to any
// slog.Handler.
package xrcompose
