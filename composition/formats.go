package composition

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/xrcompose/graphics"
)

// preferredFormats holds the first runtime format of each category, in the
// generic format space.
type preferredFormats struct {
	color gputypes.TextureFormat
	srgb  gputypes.TextureFormat
	depth gputypes.TextureFormat
}

// classifyFormats keeps the first color, sRGB color and depth format of
// formats, which are native to app and in runtime preference order.
func classifyFormats(app graphics.Device, formats []int64) preferredFormats {
	var p preferredFormats
	for _, native := range formats {
		f := app.TranslateToGenericFormat(native)
		if f == gputypes.TextureFormatUndefined {
			continue
		}
		depth := graphics.IsDepthFormat(f)
		srgb := !depth && graphics.IsSRGBFormat(f)

		switch {
		case depth:
			if p.depth == gputypes.TextureFormatUndefined {
				p.depth = f
			}
		case srgb:
			if p.srgb == gputypes.TextureFormatUndefined {
				p.srgb = f
			}
		default:
			if p.color == gputypes.TextureFormatUndefined {
				p.color = f
			}
		}
	}
	return p
}

func (p preferredFormats) forUsage(usage graphics.UsageFlags, preferSRGB bool) gputypes.TextureFormat {
	switch {
	case usage&graphics.UsageColorAttachment != 0:
		if preferSRGB {
			return p.srgb
		}
		return p.color
	case usage&graphics.UsageDepthStencilAttachment != 0:
		return p.depth
	}
	return gputypes.TextureFormatUndefined
}
