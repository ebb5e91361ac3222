package composition

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/xrcompose/graphics"
	"github.com/gogpu/xrcompose/xr"
)

// SwapchainImage is one swapchain image as seen by both devices.
//
// ReadTexture and WriteTexture live on the composition device. They are
// the same texture: either the image itself opened on the composition
// device, or the swapchain's shared bounce texture.
type SwapchainImage struct {
	ApplicationTexture graphics.Texture
	ReadTexture        graphics.Texture
	WriteTexture       graphics.Texture
	Index              uint32
}

// Swapchain is a set of images visible to the application and the
// composition device. Implementations are safe for concurrent use, but a
// swapchain is normally driven from one frame thread.
type Swapchain interface {
	// AcquireImage acquires the next image. If wait is true it also waits
	// for the image to be ready.
	AcquireImage(wait bool) (*SwapchainImage, error)

	// WaitImage waits for the last acquired image, with no timeout.
	WaitImage() error

	// ReleaseImage releases the oldest acquired image.
	ReleaseImage() error

	// LastReleasedImage returns the image most recently released and not
	// yet committed, ready to read on the composition device. It returns
	// nil if there is none.
	LastReleasedImage() (*SwapchainImage, error)

	// CommitLastReleasedImage makes composition writes to the last
	// released image visible to the application and hands the image back
	// to the runtime. It does nothing if no image is pending.
	CommitLastReleasedImage() error

	// Image returns the image at index, or nil if out of range.
	Image(index uint32) *SwapchainImage

	// Len returns the number of images.
	Len() int

	// InfoOnCompositionDevice returns the create info with the format in
	// the composition device's native space.
	InfoOnCompositionDevice() xr.SwapchainCreateInfo

	// FormatOnApplicationDevice returns the format in the application
	// device's native space.
	FormatOnApplicationDevice() int64

	// Handle returns the runtime swapchain, or ErrNotSubmittable.
	Handle() (xr.Swapchain, error)

	// SubImage returns a sub-image covering the whole of array slice 0,
	// or ErrNotSubmittable.
	SubImage() (xr.SwapchainSubImage, error)

	// Close drains outstanding GPU work and releases every texture.
	Close() error
}

// translateInfo converts info from the application device's format space
// to the composition device's.
func translateInfo(info *xr.SwapchainCreateInfo, app, comp graphics.Device) (xr.SwapchainCreateInfo, error) {
	out := *info
	out.TextureInfo = info.TextureInfo.Normalized()
	if err := out.Validate(); err != nil {
		return out, err
	}
	generic := app.TranslateToGenericFormat(info.Format)
	if generic == gputypes.TextureFormatUndefined {
		return out, fmt.Errorf("%w: format %d is unknown to the %s device", graphics.ErrInvalidDescriptor, info.Format, app.API())
	}
	out.Format = comp.TranslateFromGenericFormat(generic)
	if out.Format == 0 {
		return out, fmt.Errorf("%w: %v has no %s equivalent", graphics.ErrInvalidDescriptor, generic, comp.API())
	}
	return out, nil
}

// shareTexture exports src and opens it on dst with info, closing the
// handle afterwards if it is an NT handle.
func shareTexture(src graphics.Texture, dst graphics.Device, info graphics.TextureInfo) (graphics.Texture, error) {
	h, err := src.Handle()
	if err != nil {
		return nil, err
	}
	t, err := dst.OpenTexture(h, info)
	if cerr := dst.CloseHandle(h); err == nil && cerr != nil {
		_ = t.Close()
		return nil, cerr
	}
	return t, err
}

// shareFence creates a shareable fence on owner and opens it on peer.
func shareFence(owner, peer graphics.Device) (onOwner, onPeer graphics.Fence, err error) {
	onOwner, err = owner.CreateFence(true)
	if err != nil {
		return nil, nil, err
	}
	h, err := onOwner.Handle()
	if err != nil {
		_ = onOwner.Close()
		return nil, nil, err
	}
	onPeer, err = peer.OpenFence(h)
	if cerr := peer.CloseHandle(h); err == nil {
		err = cerr
	}
	if err != nil {
		if onPeer != nil {
			_ = onPeer.Close()
		}
		_ = onOwner.Close()
		return nil, nil, err
	}
	return onOwner, onPeer, nil
}

// closeImages closes every distinct texture referenced by images.
func closeImages(images []*SwapchainImage, extra ...graphics.Texture) {
	seen := make(map[graphics.Texture]bool)
	closeOnce := func(t graphics.Texture) {
		if t == nil || seen[t] {
			return
		}
		seen[t] = true
		_ = t.Close()
	}
	for _, img := range images {
		closeOnce(img.ApplicationTexture)
		closeOnce(img.ReadTexture)
		closeOnce(img.WriteTexture)
	}
	for _, t := range extra {
		closeOnce(t)
	}
}
