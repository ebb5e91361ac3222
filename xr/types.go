package xr

import (
	"image"
	"math"
	"time"

	"github.com/gogpu/xrcompose/graphics"
)

// Handles are opaque values minted by the runtime.
type (
	Instance  uint64
	Session   uint64
	Swapchain uint64
)

// NullHandle is the zero value of every handle type.
const NullHandle = 0

// InfiniteDuration waits without a timeout.
const InfiniteDuration time.Duration = math.MaxInt64

// InstanceCreateInfo is the subset of instance creation the engine needs.
type InstanceCreateInfo struct {
	ApplicationName   string
	EnabledExtensions []string
}

// HasExtension reports whether name was enabled at instance creation.
func (info *InstanceCreateInfo) HasExtension(name string) bool {
	for _, ext := range info.EnabledExtensions {
		if ext == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of info.
func (info *InstanceCreateInfo) Clone() InstanceCreateInfo {
	return InstanceCreateInfo{
		ApplicationName:   info.ApplicationName,
		EnabledExtensions: append([]string(nil), info.EnabledExtensions...),
	}
}

// SessionCreateInfo describes a session. Next carries extension structs,
// in particular the application's graphics binding.
type SessionCreateInfo struct {
	SystemID uint64
	Next     []any
}

// FindNext returns the first element of next with type T.
func FindNext[T any](next []any) (T, bool) {
	for _, n := range next {
		if v, ok := n.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// SwapchainCreateFlags are swapchain creation flags.
type SwapchainCreateFlags uint64

const (
	SwapchainCreateProtectedContent SwapchainCreateFlags = 1 << iota
	SwapchainCreateStaticImage
)

// SwapchainCreateInfo describes a runtime swapchain. The embedded format is
// in the application device's native format space.
type SwapchainCreateInfo struct {
	CreateFlags SwapchainCreateFlags
	graphics.TextureInfo
}

// InstanceProperties identifies the runtime.
type InstanceProperties struct {
	RuntimeName    string
	RuntimeVersion uint64
}

// SwapchainSubImage references a region of one swapchain image layer.
type SwapchainSubImage struct {
	Swapchain       Swapchain
	ImageRect       image.Rectangle
	ImageArrayIndex uint32
}

// Runtime is the set of downstream entry points the engine calls through.
// Implementations forward to the next layer or the runtime itself.
type Runtime interface {
	InstanceProperties(instance Instance) (InstanceProperties, error)
	EnumerateSwapchainFormats(session Session) ([]int64, error)
	CreateSwapchain(session Session, info *SwapchainCreateInfo) (Swapchain, error)

	// EnumerateSwapchainImages returns the native textures of the
	// swapchain, in index order (e.g. *soft.Image or hal.Texture).
	EnumerateSwapchainImages(swapchain Swapchain) ([]any, error)

	AcquireSwapchainImage(swapchain Swapchain) (uint32, error)
	WaitSwapchainImage(swapchain Swapchain, timeout time.Duration) error

	// ReleaseSwapchainImage releases the oldest acquired image.
	ReleaseSwapchainImage(swapchain Swapchain) error

	DestroySwapchain(swapchain Swapchain) error
}

// SessionHooks is the callback table for session lifetime. A layer wraps
// the next layer's hooks and returns its own.
type SessionHooks struct {
	CreateSession  func(instance Instance, info *SessionCreateInfo) (Session, error)
	DestroySession func(session Session) error
}
