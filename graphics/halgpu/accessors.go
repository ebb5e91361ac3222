// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/xrcompose/graphics"
)

// DeviceOf returns the hal device behind d.
func DeviceOf(d graphics.Device) (hal.Device, error) {
	return graphics.NativeDevice[hal.Device](d, graphics.APIHAL)
}

// QueueOf returns the hal queue behind d.
func QueueOf(d graphics.Device) (hal.Queue, error) {
	return graphics.NativeContext[hal.Queue](d, graphics.APIHAL)
}

// TextureOf returns the hal texture behind t.
func TextureOf(t graphics.Texture) (hal.Texture, error) {
	return graphics.NativeTexture[hal.Texture](t, graphics.APIHAL)
}

// TimelineOf returns the timeline behind f.
func TimelineOf(f graphics.Fence) (*Timeline, error) {
	return graphics.NativeFence[*Timeline](f, graphics.APIHAL)
}
