package soft

import "github.com/gogpu/xrcompose/graphics"

// ExtensionName is the instance extension that enables soft bindings.
const ExtensionName = "XR_GOGPU_soft_enable"

// Binding is the graphics binding an application chains into session
// creation to run on a soft device.
type Binding struct {
	Device *Device
}

// DeviceOf returns the native device behind d.
func DeviceOf(d graphics.Device) (*Device, error) {
	return graphics.NativeDevice[*Device](d, graphics.APISoft)
}

// ContextOf returns the immediate context behind d.
func ContextOf(d graphics.Device) (*Context, error) {
	return graphics.NativeContext[*Context](d, graphics.APISoft)
}

// ImageOf returns the image memory behind t.
func ImageOf(t graphics.Texture) (*Image, error) {
	return graphics.NativeTexture[*Image](t, graphics.APISoft)
}

// TimelineOf returns the timeline behind f.
func TimelineOf(f graphics.Fence) (*Timeline, error) {
	return graphics.NativeFence[*Timeline](f, graphics.APISoft)
}
