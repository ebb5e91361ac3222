// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graphics

import "fmt"

// UsageFlags describes how a swapchain image or texture is used.
// The bit values match the host API's swapchain usage flags.
type UsageFlags uint64

const (
	UsageColorAttachment UsageFlags = 1 << iota
	UsageDepthStencilAttachment
	UsageUnorderedAccess
	UsageTransferSrc
	UsageTransferDst
	UsageSampled
	UsageMutableFormat
)

// TextureInfo describes a texture. Format is expressed in the native format
// space of the device the texture lives on; use the device's translate
// methods to move between devices.
type TextureInfo struct {
	Format      int64
	Width       uint32
	Height      uint32
	ArraySize   uint32
	MipCount    uint32
	SampleCount uint32
	FaceCount   uint32
	Usage       UsageFlags
}

// Normalized returns a copy of info with zero counts replaced by 1.
func (info TextureInfo) Normalized() TextureInfo {
	if info.ArraySize == 0 {
		info.ArraySize = 1
	}
	if info.MipCount == 0 {
		info.MipCount = 1
	}
	if info.SampleCount == 0 {
		info.SampleCount = 1
	}
	if info.FaceCount == 0 {
		info.FaceCount = 1
	}
	return info
}

// Validate checks the dimensions of info.
func (info TextureInfo) Validate() error {
	if info.Width == 0 || info.Height == 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDescriptor, info.Width, info.Height)
	}
	return nil
}

// SameShape reports whether a and b have identical dimensions, counts and
// sample layout, ignoring format and usage.
func SameShape(a, b TextureInfo) bool {
	a, b = a.Normalized(), b.Normalized()
	return a.Width == b.Width && a.Height == b.Height &&
		a.ArraySize == b.ArraySize && a.MipCount == b.MipCount &&
		a.SampleCount == b.SampleCount && a.FaceCount == b.FaceCount
}

// Texture is a GPU-resident image on one device.
type Texture interface {
	// API returns the backend that owns the texture.
	API() API

	// Info returns the descriptor, with the format in the owning device's
	// native space.
	Info() TextureInfo

	// IsShareable reports whether Handle can succeed. Fixed at creation.
	IsShareable() bool

	// Handle exports the texture for another device on the same adapter.
	// It returns ErrNotShareable for textures not created shareable.
	Handle() (ShareableHandle, error)

	// NativeTexture returns the backend object. Prefer NativeTexture[T].
	NativeTexture() any

	// Close releases this wrapper. Memory shared with other wrappers stays
	// alive until the last one is closed.
	Close() error
}
