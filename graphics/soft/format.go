package soft

import "github.com/gogpu/gputypes"

// Native format codes.
const (
	FormatUnknown              int64 = 0
	FormatRGBA16Float          int64 = 10
	FormatDepth32FloatStencil8 int64 = 20
	FormatRGB10A2Unorm         int64 = 24
	FormatRGBA8Unorm           int64 = 28
	FormatRGBA8UnormSrgb       int64 = 29
	FormatDepth32Float         int64 = 40
	FormatDepth24Stencil8      int64 = 45
	FormatDepth16Unorm         int64 = 55
	FormatR8Unorm              int64 = 61
	FormatBGRA8Unorm           int64 = 87
	FormatBGRA8UnormSrgb       int64 = 91
)

var formatTable = []struct {
	native  int64
	generic gputypes.TextureFormat
}{
	{FormatRGBA8Unorm, gputypes.TextureFormatRGBA8Unorm},
	{FormatRGBA8UnormSrgb, gputypes.TextureFormatRGBA8UnormSrgb},
	{FormatBGRA8Unorm, gputypes.TextureFormatBGRA8Unorm},
	{FormatBGRA8UnormSrgb, gputypes.TextureFormatBGRA8UnormSrgb},
	{FormatRGBA16Float, gputypes.TextureFormatRGBA16Float},
	{FormatRGB10A2Unorm, gputypes.TextureFormatRGB10A2Unorm},
	{FormatR8Unorm, gputypes.TextureFormatR8Unorm},
	{FormatDepth16Unorm, gputypes.TextureFormatDepth16Unorm},
	{FormatDepth24Stencil8, gputypes.TextureFormatDepth24PlusStencil8},
	{FormatDepth32Float, gputypes.TextureFormatDepth32Float},
	{FormatDepth32FloatStencil8, gputypes.TextureFormatDepth32FloatStencil8},
}

// ToGeneric maps a native format code to the canonical format space.
// Unknown codes map to TextureFormatUndefined.
func ToGeneric(format int64) gputypes.TextureFormat {
	for _, e := range formatTable {
		if e.native == format {
			return e.generic
		}
	}
	return gputypes.TextureFormatUndefined
}

// FromGeneric maps a canonical format to its native code, or FormatUnknown.
func FromGeneric(format gputypes.TextureFormat) int64 {
	for _, e := range formatTable {
		if e.generic == format {
			return e.native
		}
	}
	return FormatUnknown
}

// SupportedFormats returns every native format the backend can allocate.
func SupportedFormats() []int64 {
	out := make([]int64, len(formatTable))
	for i, e := range formatTable {
		out[i] = e.native
	}
	return out
}
