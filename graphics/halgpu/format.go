// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/xrcompose/graphics"
)

// supportedFormats are the formats the backend advertises, in preference
// order. Native values are gputypes.TextureFormat values.
var supportedFormats = []gputypes.TextureFormat{
	gputypes.TextureFormatRGBA8Unorm,
	gputypes.TextureFormatRGBA8UnormSrgb,
	gputypes.TextureFormatBGRA8Unorm,
	gputypes.TextureFormatBGRA8UnormSrgb,
	gputypes.TextureFormatRGBA16Float,
	gputypes.TextureFormatRGB10A2Unorm,
	gputypes.TextureFormatDepth16Unorm,
	gputypes.TextureFormatDepth24PlusStencil8,
	gputypes.TextureFormatDepth32Float,
}

func isSupported(f gputypes.TextureFormat) bool {
	for _, s := range supportedFormats {
		if s == f {
			return true
		}
	}
	return false
}

// toHalUsage maps swapchain usage to hal texture usage. Copies are always
// allowed so the texture can take part in bounce transfers.
func toHalUsage(u graphics.UsageFlags) gputypes.TextureUsage {
	usage := gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst
	if u&(graphics.UsageColorAttachment|graphics.UsageDepthStencilAttachment) != 0 {
		usage |= gputypes.TextureUsageRenderAttachment
	}
	if u&graphics.UsageUnorderedAccess != 0 {
		usage |= gputypes.TextureUsageStorageBinding
	}
	if u&graphics.UsageSampled != 0 {
		usage |= gputypes.TextureUsageTextureBinding
	}
	return usage
}

// viewFormats returns the sRGB/linear sibling of f for mutable-format
// textures.
func viewFormats(f gputypes.TextureFormat, u graphics.UsageFlags) []gputypes.TextureFormat {
	if u&graphics.UsageMutableFormat == 0 {
		return nil
	}
	switch f {
	case gputypes.TextureFormatRGBA8Unorm:
		return []gputypes.TextureFormat{gputypes.TextureFormatRGBA8UnormSrgb}
	case gputypes.TextureFormatRGBA8UnormSrgb:
		return []gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm}
	case gputypes.TextureFormatBGRA8Unorm:
		return []gputypes.TextureFormat{gputypes.TextureFormatBGRA8UnormSrgb}
	case gputypes.TextureFormatBGRA8UnormSrgb:
		return []gputypes.TextureFormat{gputypes.TextureFormatBGRA8Unorm}
	}
	return nil
}
