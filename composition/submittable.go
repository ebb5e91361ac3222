package composition

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/xrcompose"
	"github.com/gogpu/xrcompose/graphics"
	"github.com/gogpu/xrcompose/xr"
)

// submittableSwapchain wraps a runtime swapchain.
//
// Per image the state is Free, Acquired, or Released (pending commit).
// Acquired indices are kept in runtime order; at most one index is pending.
type submittableSwapchain struct {
	runtime xr.Runtime
	handle  xr.Swapchain
	owned   bool

	app  graphics.Device
	comp graphics.Device

	infoOnComp  xr.SwapchainCreateInfo
	formatOnApp int64
	read        bool
	write       bool

	images  []*SwapchainImage
	bounced []bool

	// Created on the first image that cannot be shared, then reused.
	bounceOnComp graphics.Texture
	bounceOnApp  graphics.Texture

	fenceOnApp  graphics.Fence
	fenceOnComp graphics.Fence

	mu         sync.Mutex
	fenceValue uint64
	acquired   []uint32
	pending    bool
	lastIndex  uint32
	closed     bool
}

var _ Swapchain = (*submittableSwapchain)(nil)

type submittableConfig struct {
	runtime     xr.Runtime
	handle      xr.Swapchain
	owned       bool
	info        *xr.SwapchainCreateInfo
	app         graphics.Device
	comp        graphics.Device
	mode        Mode
	forceBounce bool
}

func newSubmittableSwapchain(cfg submittableConfig) (_ *submittableSwapchain, err error) {
	s := &submittableSwapchain{
		runtime:     cfg.runtime,
		handle:      cfg.handle,
		owned:       cfg.owned,
		app:         cfg.app,
		comp:        cfg.comp,
		formatOnApp: cfg.info.Format,
		read:        cfg.mode.Has(ModeRead),
		write:       cfg.mode.Has(ModeWrite),
	}
	defer func() {
		if err != nil {
			_ = s.teardown()
		}
	}()

	s.infoOnComp, err = translateInfo(cfg.info, cfg.app, cfg.comp)
	if err != nil {
		return nil, err
	}
	infoOnApp := cfg.info.TextureInfo.Normalized()

	natives, err := s.runtime.EnumerateSwapchainImages(s.handle)
	if err != nil {
		return nil, graphics.PlatformCall("xrEnumerateSwapchainImages", err)
	}

	for i, native := range natives {
		onApp, err := s.app.OpenTexturePtr(native, infoOnApp)
		if err != nil {
			return nil, fmt.Errorf("composition: open swapchain image %d: %w", i, err)
		}
		img := &SwapchainImage{ApplicationTexture: onApp, Index: uint32(i)}
		s.images = append(s.images, img)

		if onApp.IsShareable() && !cfg.forceBounce {
			onComp, err := shareTexture(onApp, s.comp, s.infoOnComp.TextureInfo)
			if err != nil {
				return nil, fmt.Errorf("composition: share swapchain image %d: %w", i, err)
			}
			img.ReadTexture, img.WriteTexture = onComp, onComp
			s.bounced = append(s.bounced, false)
			continue
		}

		if s.bounceOnComp == nil {
			if err := s.createBounceBuffer(infoOnApp); err != nil {
				return nil, err
			}
		}
		img.ReadTexture, img.WriteTexture = s.bounceOnComp, s.bounceOnComp
		s.bounced = append(s.bounced, true)
	}

	s.fenceOnComp, s.fenceOnApp, err = shareFence(s.comp, s.app)
	if err != nil {
		return nil, fmt.Errorf("composition: swapchain fence: %w", err)
	}

	xrcompose.Logger().Info("composition: submittable swapchain created",
		"swapchain", s.handle,
		"images", len(s.images),
		"bounce", s.bounceOnComp != nil,
		"read", s.read,
		"write", s.write)
	return s, nil
}

func (s *submittableSwapchain) createBounceBuffer(infoOnApp graphics.TextureInfo) error {
	onComp, err := s.comp.CreateTexture(s.infoOnComp.TextureInfo, true)
	if err != nil {
		return fmt.Errorf("composition: create bounce buffer: %w", err)
	}
	onApp, err := shareTexture(onComp, s.app, infoOnApp)
	if err != nil {
		_ = onComp.Close()
		return fmt.Errorf("composition: share bounce buffer: %w", err)
	}
	s.bounceOnComp, s.bounceOnApp = onComp, onApp
	return nil
}

// serialize orders everything enqueued on signal's device before work
// enqueued on wait's device afterwards. s.mu must be held.
func (s *submittableSwapchain) serialize(signal, wait graphics.Fence) error {
	s.fenceValue++
	if err := signal.Signal(s.fenceValue); err != nil {
		return err
	}
	if err := wait.WaitOnDevice(s.fenceValue); err != nil {
		return err
	}
	xrcompose.Logger().Debug("composition: swapchain fence", "swapchain", s.handle, "value", s.fenceValue)
	return nil
}

// AcquireImage implements Swapchain.
func (s *submittableSwapchain) AcquireImage(wait bool) (*SwapchainImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, graphics.ErrClosed
	}

	index, err := s.runtime.AcquireSwapchainImage(s.handle)
	if err != nil {
		return nil, graphics.PlatformCall("xrAcquireSwapchainImage", err)
	}
	if int(index) >= len(s.images) {
		return nil, fmt.Errorf("composition: runtime acquired index %d of %d", index, len(s.images))
	}
	s.acquired = append(s.acquired, index)

	if wait {
		if err := s.runtime.WaitSwapchainImage(s.handle, xr.InfiniteDuration); err != nil {
			return nil, graphics.PlatformCall("xrWaitSwapchainImage", err)
		}
	}

	// Whatever the runtime did to make the image available happened on the
	// application device.
	if err := s.serialize(s.fenceOnApp, s.fenceOnComp); err != nil {
		return nil, err
	}
	return s.images[index], nil
}

// WaitImage implements Swapchain. The runtime validates that an image is
// acquired.
func (s *submittableSwapchain) WaitImage() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return graphics.ErrClosed
	}
	if err := s.runtime.WaitSwapchainImage(s.handle, xr.InfiniteDuration); err != nil {
		return graphics.PlatformCall("xrWaitSwapchainImage", err)
	}
	return nil
}

// ReleaseImage implements Swapchain.
//
// Without read or write access the runtime release is issued at once.
// Otherwise it is deferred until CommitLastReleasedImage. Releasing again
// while an image is pending retires the pending image on a read-only
// swapchain and fails with ErrReleaseBeforeCommit on a writable one.
func (s *submittableSwapchain) ReleaseImage() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return graphics.ErrClosed
	}
	if len(s.acquired) == 0 {
		return ErrNoImageAcquired
	}

	switch {
	case !s.read && !s.write:
		if err := s.releaseToRuntime(); err != nil {
			return err
		}
		s.acquired = s.acquired[1:]
		return nil

	case s.pending && s.write:
		return fmt.Errorf("%w: image %d is still pending", ErrReleaseBeforeCommit, s.lastIndex)

	case s.pending:
		// The runtime releases in acquisition order, so this hands back
		// the pending image.
		if err := s.releaseToRuntime(); err != nil {
			return err
		}
	}

	s.lastIndex = s.acquired[0]
	s.pending = true
	s.acquired = s.acquired[1:]
	return nil
}

func (s *submittableSwapchain) releaseToRuntime() error {
	if err := s.runtime.ReleaseSwapchainImage(s.handle); err != nil {
		return graphics.PlatformCall("xrReleaseSwapchainImage", err)
	}
	return nil
}

// LastReleasedImage implements Swapchain.
func (s *submittableSwapchain) LastReleasedImage() (*SwapchainImage, error) {
	if !s.read {
		return nil, ErrNotReadable
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, graphics.ErrClosed
	}
	if !s.pending {
		return nil, nil
	}

	img := s.images[s.lastIndex]
	if s.bounced[s.lastIndex] {
		if err := s.app.CopyTexture(img.ApplicationTexture, s.bounceOnApp); err != nil {
			return nil, fmt.Errorf("composition: copy image %d to bounce buffer: %w", img.Index, err)
		}
		xrcompose.Logger().Debug("composition: bounce copy", "swapchain", s.handle, "index", img.Index, "to", "composition")
	}

	if err := s.serialize(s.fenceOnApp, s.fenceOnComp); err != nil {
		return nil, err
	}
	return img, nil
}

// CommitLastReleasedImage implements Swapchain.
func (s *submittableSwapchain) CommitLastReleasedImage() error {
	if !s.write {
		return ErrNotWritable
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return graphics.ErrClosed
	}
	return s.finishPending()
}

// finishPending hands the pending image back to the runtime, first making
// composition writes visible to the application when the swapchain is
// writable. s.mu must be held.
func (s *submittableSwapchain) finishPending() error {
	if !s.pending {
		return nil
	}

	if s.write {
		if err := s.serialize(s.fenceOnComp, s.fenceOnApp); err != nil {
			return err
		}
		img := s.images[s.lastIndex]
		if s.bounced[s.lastIndex] {
			if err := s.app.CopyTexture(s.bounceOnApp, img.ApplicationTexture); err != nil {
				return fmt.Errorf("composition: copy bounce buffer to image %d: %w", img.Index, err)
			}
			xrcompose.Logger().Debug("composition: bounce copy", "swapchain", s.handle, "index", img.Index, "to", "application")
		}
	}

	if err := s.releaseToRuntime(); err != nil {
		return err
	}
	s.pending = false
	return nil
}

// Image implements Swapchain.
func (s *submittableSwapchain) Image(index uint32) *SwapchainImage {
	if int(index) >= len(s.images) {
		return nil
	}
	return s.images[index]
}

// Len implements Swapchain.
func (s *submittableSwapchain) Len() int { return len(s.images) }

// InfoOnCompositionDevice implements Swapchain.
func (s *submittableSwapchain) InfoOnCompositionDevice() xr.SwapchainCreateInfo { return s.infoOnComp }

// FormatOnApplicationDevice implements Swapchain.
func (s *submittableSwapchain) FormatOnApplicationDevice() int64 { return s.formatOnApp }

// Handle implements Swapchain.
func (s *submittableSwapchain) Handle() (xr.Swapchain, error) { return s.handle, nil }

// SubImage implements Swapchain.
func (s *submittableSwapchain) SubImage() (xr.SwapchainSubImage, error) {
	return xr.SwapchainSubImage{
		Swapchain: s.handle,
		ImageRect: image.Rect(0, 0, int(s.infoOnComp.Width), int(s.infoOnComp.Height)),
	}, nil
}

// Close implements Swapchain. The runtime swapchain is destroyed only if
// the framework created it. A wrapped swapchain outlives the wrapper, so
// a deferred release is handed to the runtime first.
func (s *submittableSwapchain) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if !s.owned {
		err = s.finishPending()
	}
	return errors.Join(err, s.teardown())
}

func (s *submittableSwapchain) teardown() error {
	var errs []error
	if s.fenceOnApp != nil {
		errs = append(errs, s.fenceOnApp.WaitOnCPU(s.fenceValue))
	}
	if s.fenceOnComp != nil {
		errs = append(errs, s.fenceOnComp.WaitOnCPU(s.fenceValue))
	}
	for _, f := range []graphics.Fence{s.fenceOnApp, s.fenceOnComp} {
		if f != nil {
			errs = append(errs, f.Close())
		}
	}

	closeImages(s.images, s.bounceOnApp, s.bounceOnComp)

	if s.owned {
		if err := s.runtime.DestroySwapchain(s.handle); err != nil {
			errs = append(errs, graphics.PlatformCall("xrDestroySwapchain", err))
		}
	}
	return errors.Join(errs...)
}
