package composition

import (
	"fmt"
	"sync"

	"github.com/gogpu/xrcompose/graphics"
	"github.com/gogpu/xrcompose/xr"
)

// nonSubmittableImages is the ring size of internal swapchains.
const nonSubmittableImages = 2

// nonSubmittableSwapchain is a ring of textures created shareable on the
// composition device and opened on the application device. Nothing is
// copied and no fences are issued; callers serialize through the
// framework.
type nonSubmittableSwapchain struct {
	infoOnComp  xr.SwapchainCreateInfo
	formatOnApp int64
	read        bool
	write       bool

	images []*SwapchainImage

	mu        sync.Mutex
	next      uint32
	acquired  []uint32
	released  bool
	lastIndex uint32
	closed    bool
}

var _ Swapchain = (*nonSubmittableSwapchain)(nil)

func newNonSubmittableSwapchain(info *xr.SwapchainCreateInfo, app, comp graphics.Device, mode Mode) (*nonSubmittableSwapchain, error) {
	infoOnComp, err := translateInfo(info, app, comp)
	if err != nil {
		return nil, err
	}
	s := &nonSubmittableSwapchain{
		infoOnComp:  infoOnComp,
		formatOnApp: info.Format,
		read:        mode.Has(ModeRead),
		write:       mode.Has(ModeWrite),
	}
	infoOnApp := info.TextureInfo.Normalized()

	for i := range uint32(nonSubmittableImages) {
		onComp, err := comp.CreateTexture(infoOnComp.TextureInfo, true)
		if err != nil {
			closeImages(s.images)
			return nil, fmt.Errorf("composition: create image %d: %w", i, err)
		}
		onApp, err := shareTexture(onComp, app, infoOnApp)
		if err != nil {
			_ = onComp.Close()
			closeImages(s.images)
			return nil, fmt.Errorf("composition: share image %d: %w", i, err)
		}
		s.images = append(s.images, &SwapchainImage{
			ApplicationTexture: onApp,
			ReadTexture:        onComp,
			WriteTexture:       onComp,
			Index:              i,
		})
	}
	return s, nil
}

// AcquireImage implements Swapchain. Images are handed out in ring order.
func (s *nonSubmittableSwapchain) AcquireImage(bool) (*SwapchainImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, graphics.ErrClosed
	}
	if len(s.acquired) == len(s.images) {
		return nil, ErrNoImageAvailable
	}

	index := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	s.acquired = append(s.acquired, index)
	return s.images[index], nil
}

// WaitImage implements Swapchain. The images are always ready.
func (s *nonSubmittableSwapchain) WaitImage() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return graphics.ErrClosed
	}
	if len(s.acquired) == 0 {
		return ErrNoImageAcquired
	}
	return nil
}

// ReleaseImage implements Swapchain.
func (s *nonSubmittableSwapchain) ReleaseImage() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return graphics.ErrClosed
	}
	if len(s.acquired) == 0 {
		return ErrNoImageAcquired
	}
	s.lastIndex = s.acquired[0]
	s.released = true
	s.acquired = s.acquired[1:]
	return nil
}

// LastReleasedImage implements Swapchain.
func (s *nonSubmittableSwapchain) LastReleasedImage() (*SwapchainImage, error) {
	if !s.read {
		return nil, ErrNotReadable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, graphics.ErrClosed
	}
	if !s.released {
		return nil, nil
	}
	return s.images[s.lastIndex], nil
}

// CommitLastReleasedImage implements Swapchain. The images are shared
// directly, so there is nothing to copy.
func (s *nonSubmittableSwapchain) CommitLastReleasedImage() error {
	if !s.write {
		return ErrNotWritable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return graphics.ErrClosed
	}
	return nil
}

// Image implements Swapchain.
func (s *nonSubmittableSwapchain) Image(index uint32) *SwapchainImage {
	if int(index) >= len(s.images) {
		return nil
	}
	return s.images[index]
}

// Len implements Swapchain.
func (s *nonSubmittableSwapchain) Len() int { return len(s.images) }

// InfoOnCompositionDevice implements Swapchain.
func (s *nonSubmittableSwapchain) InfoOnCompositionDevice() xr.SwapchainCreateInfo { return s.infoOnComp }

// FormatOnApplicationDevice implements Swapchain.
func (s *nonSubmittableSwapchain) FormatOnApplicationDevice() int64 { return s.formatOnApp }

// Handle implements Swapchain.
func (s *nonSubmittableSwapchain) Handle() (xr.Swapchain, error) {
	return xr.NullHandle, ErrNotSubmittable
}

// SubImage implements Swapchain.
func (s *nonSubmittableSwapchain) SubImage() (xr.SwapchainSubImage, error) {
	return xr.SwapchainSubImage{}, ErrNotSubmittable
}

// Close implements Swapchain.
func (s *nonSubmittableSwapchain) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	closeImages(s.images)
	return nil
}
