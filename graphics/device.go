// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graphics

import "github.com/gogpu/gputypes"

// Fence is a monotonically increasing GPU timeline.
//
// Only one device-side actor should signal a given timeline; concurrent
// signalers are not supported.
type Fence interface {
	// API returns the backend that owns the fence.
	API() API

	// NativeFence returns the backend object. Prefer NativeFence[T].
	NativeFence() any

	// Handle exports the fence as an NT handle. It returns ErrNotShareable
	// for fences not created shareable. Opened fences are never shareable.
	Handle() (ShareableHandle, error)

	// Signal enqueues a signal of value on the owning device's timeline.
	Signal(value uint64) error

	// WaitOnDevice enqueues a device-side wait for value. Work enqueued on
	// the owning device afterwards observes everything that happened before
	// the matching Signal. It does not block the caller.
	WaitOnDevice(value uint64) error

	// WaitOnCPU signals value from the owning device's timeline and blocks
	// until it retires. There is no timeout.
	WaitOnCPU(value uint64) error

	// IsShareable reports whether Handle can succeed. Fixed at creation.
	IsShareable() bool

	// Close waits on the host for the last value signaled through this
	// fence, then releases it.
	Close() error
}

// Device wraps a graphics device and its execution context.
type Device interface {
	// API returns the backend tag.
	API() API

	// NativeDevice returns the backend device. Prefer NativeDevice[T].
	NativeDevice() any

	// NativeContext returns the backend execution context (queue or
	// immediate context). Prefer NativeContext[T].
	NativeContext() any

	// CreateFence creates a timeline fence starting at 0.
	CreateFence(shareable bool) (Fence, error)

	// OpenFence imports a fence exported by another device. The handle
	// must be an NT handle; anything else fails with ErrInvalidHandle.
	// The caller keeps ownership of h and closes it.
	OpenFence(h ShareableHandle) (Fence, error)

	// CloseHandle closes an NT handle received from another device on the
	// same adapter. Legacy handles are left alone.
	CloseHandle(h ShareableHandle) error

	// CreateTexture allocates a texture. If shareable, Handle succeeds on
	// the result.
	CreateTexture(info TextureInfo, shareable bool) (Texture, error)

	// OpenTexture imports a texture exported by another device. info uses
	// this device's native format space.
	OpenTexture(h ShareableHandle, info TextureInfo) (Texture, error)

	// OpenTexturePtr wraps a native texture already valid on this device.
	// A native value of another backend fails with ErrAPIMismatch.
	OpenTexturePtr(native any, info TextureInfo) (Texture, error)

	// CopyTexture enqueues a full-resource copy. Both textures must be
	// resident on this device.
	CopyTexture(from, to Texture) error

	// TranslateToGenericFormat maps a native format to the canonical space.
	TranslateToGenericFormat(format int64) gputypes.TextureFormat

	// TranslateFromGenericFormat maps a canonical format to native.
	TranslateFromGenericFormat(format gputypes.TextureFormat) int64

	// SupportedFormats lists the native formats the device advertises.
	// Translation round-trips for every one of them.
	SupportedFormats() []int64

	// AdapterLUID identifies the adapter backing the device.
	AdapterLUID() LUID

	// Close drains work this wrapper enqueued and releases it. Wrappers
	// around application-owned devices never destroy the native device.
	Close() error
}
