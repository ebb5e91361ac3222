// Package composition shares swapchain images and GPU timelines between an
// application's graphics device and a composition device owned by the
// layer.
//
// A [Factory] hooks session creation and builds one [Framework] per
// session. The framework wraps the application device named by the
// session's graphics binding, creates a composition device on the same
// adapter, and hands out two kinds of [Swapchain]:
//
//   - Submittable swapchains wrap a runtime swapchain. Each runtime image is
//     opened on the composition device, or bounced through a shared copy
//     when it cannot be shared. Releasing an image is deferred so the layer
//     can read it ([Swapchain.LastReleasedImage]) and write it
//     ([Swapchain.CommitLastReleasedImage]) before the runtime gets it back.
//   - Non-submittable swapchains are a ring of two images the layer
//     allocates for its own intermediate surfaces.
//
// Every cross-device transition is ordered with a fence signal on one
// device and a device-side wait on the other. The host never blocks on the
// per-frame path; [graphics.Fence.WaitOnCPU] is only used when tearing
// down.
//
// A typical frame on the composition side:
//
//	if err := fw.SerializePreComposition(); err != nil {
//		return err
//	}
//	img, err := sc.LastReleasedImage()
//	// ... draw into img.WriteTexture on fw.CompositionDevice() ...
//	if err := sc.CommitLastReleasedImage(); err != nil {
//		return err
//	}
//	return fw.SerializePostComposition()
package composition
