// Package soft implements the software graphics backend.
//
// A soft [Device] is a real, independent device: it owns an in-order
// execution queue running on its own goroutine, and work submitted to its
// [Context] executes asynchronously in submission order. Texture memory
// ([Image]) and timeline fences ([Timeline]) live in host memory and can be
// shared between devices created on the same [Adapter] through the adapter's
// handle namespace, exactly like shared resources on one physical GPU.
//
// Devices are wrapped for the composition engine with [NewGraphicsDevice],
// which returns a [graphics.Device]. The native objects stay reachable
// through the checked accessors [DeviceOf], [ContextOf], [ImageOf] and
// [TimelineOf].
//
// Formats use DXGI-style numeric codes in the native format space (see
// [FormatRGBA8Unorm] and friends). Only mip level 0 of each array layer is
// backed by memory.
package soft
