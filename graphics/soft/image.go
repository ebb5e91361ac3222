package soft

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/xrcompose/graphics"
)

// ImageDesc describes an image allocation.
type ImageDesc struct {
	Format int64
	Width  uint32
	Height uint32
	Layers uint32

	// Shared allows export as a legacy handle.
	Shared bool

	// SharedNT allows export as an NT handle only.
	SharedNT bool
}

// Image is texture memory on an adapter. Every device on the adapter that
// opens the image sees the same bytes.
//
// Image is reference counted. The creator holds the first reference;
// every texture wrapper holds one more.
type Image struct {
	desc    ImageDesc
	adapter *Adapter

	mu   sync.Mutex
	data []byte

	refs atomic.Int32
}

func newImage(a *Adapter, desc ImageDesc) (*Image, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: %dx%d image", graphics.ErrInvalidDescriptor, desc.Width, desc.Height)
	}
	if desc.Layers == 0 {
		desc.Layers = 1
	}
	bpp := graphics.BytesPerPixel(ToGeneric(desc.Format))
	if bpp == 0 {
		return nil, fmt.Errorf("%w: unsupported format %d", graphics.ErrInvalidDescriptor, desc.Format)
	}

	img := &Image{
		desc:    desc,
		adapter: a,
		data:    make([]byte, int(desc.Width)*int(desc.Height)*int(desc.Layers)*bpp),
	}
	img.refs.Store(1)
	return img, nil
}

// Desc returns the allocation descriptor.
func (img *Image) Desc() ImageDesc { return img.desc }

// Adapter returns the adapter the memory lives on.
func (img *Image) Adapter() *Adapter { return img.adapter }

// Shareable reports whether the image was created with a shared flag.
func (img *Image) Shareable() bool { return img.desc.Shared || img.desc.SharedNT }

// Size returns the number of bytes backing the image.
func (img *Image) Size() int {
	img.mu.Lock()
	defer img.mu.Unlock()
	return len(img.data)
}

// Bytes returns a copy of the image contents as of now. Work still queued
// on a device is not reflected; read through [Context.Read] for ordered
// access.
func (img *Image) Bytes() []byte {
	img.mu.Lock()
	defer img.mu.Unlock()
	return append([]byte(nil), img.data...)
}

// Retain adds a reference.
func (img *Image) Retain() { img.refs.Add(1) }

// Release drops a reference. The last release revokes every handle to the
// image and frees its memory.
func (img *Image) Release() {
	if img.refs.Add(-1) != 0 {
		return
	}
	img.adapter.ns.Revoke(img)
	img.mu.Lock()
	img.data = nil
	img.mu.Unlock()
}

func (img *Image) write(data []byte) {
	img.mu.Lock()
	copy(img.data, data)
	img.mu.Unlock()
}

func (img *Image) fill(pattern []byte) {
	if len(pattern) == 0 {
		return
	}
	img.mu.Lock()
	for i := 0; i < len(img.data); i += len(pattern) {
		copy(img.data[i:], pattern)
	}
	img.mu.Unlock()
}

func copyImage(dst, src *Image) {
	if dst == src {
		return
	}
	snap := src.Bytes()
	dst.write(snap)
}

// Timeline is a monotonic 64-bit fence value shared by every fence opened
// from it.
type Timeline struct {
	adapter *Adapter

	mu    sync.Mutex
	cond  *sync.Cond
	value uint64
}

func newTimeline(a *Adapter) *Timeline {
	tl := &Timeline{adapter: a}
	tl.cond = sync.NewCond(&tl.mu)
	return tl
}

// Value returns the current completed value.
func (tl *Timeline) Value() uint64 {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.value
}

// Signal raises the value to v. Lower values are ignored.
func (tl *Timeline) Signal(v uint64) {
	tl.mu.Lock()
	if v > tl.value {
		tl.value = v
		tl.cond.Broadcast()
	}
	tl.mu.Unlock()
}

// Wait blocks until the value reaches v.
func (tl *Timeline) Wait(v uint64) {
	tl.mu.Lock()
	for tl.value < v {
		tl.cond.Wait()
	}
	tl.mu.Unlock()
}
