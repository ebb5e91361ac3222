package soft

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/xrcompose/graphics"
	"github.com/gogpu/xrcompose/internal/queue"
)

// Stats counts the work a device has executed or enqueued.
type Stats struct {
	Copies      uint64
	Signals     uint64
	DeviceWaits uint64
	HostWaits   uint64
}

// Device is a native software device. All GPU work goes through its
// [Context] and executes on the device's own queue.
type Device struct {
	adapter *Adapter
	label   string
	queue   *queue.Queue
	ctx     *Context

	copies      atomic.Uint64
	signals     atomic.Uint64
	deviceWaits atomic.Uint64
	hostWaits   atomic.Uint64
}

func newDevice(a *Adapter, label string) *Device {
	d := &Device{
		adapter: a,
		label:   label,
		queue:   queue.New(label),
	}
	d.ctx = &Context{dev: d}
	return d
}

// Adapter returns the adapter the device was created on.
func (d *Device) Adapter() *Adapter { return d.adapter }

// Label returns the debug label.
func (d *Device) Label() string { return d.label }

// Context returns the device's immediate context.
func (d *Device) Context() *Context { return d.ctx }

// CreateImage allocates image memory on the device's adapter.
func (d *Device) CreateImage(desc ImageDesc) (*Image, error) {
	return newImage(d.adapter, desc)
}

// CreateTimeline creates a fence timeline starting at 0.
func (d *Device) CreateTimeline() *Timeline {
	return newTimeline(d.adapter)
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	return Stats{
		Copies:      d.copies.Load(),
		Signals:     d.signals.Load(),
		DeviceWaits: d.deviceWaits.Load(),
		HostWaits:   d.hostWaits.Load(),
	}
}

// Close drains the queue and stops the device.
func (d *Device) Close() error {
	d.queue.Close()
	return nil
}

func (d *Device) submit(fn func()) error {
	if err := d.queue.Submit(fn); err != nil {
		if errors.Is(err, queue.ErrClosed) {
			return fmt.Errorf("%w: %s", graphics.ErrClosed, d.label)
		}
		return err
	}
	return nil
}

// Context is the immediate context of a soft device. Every method enqueues
// work and returns without waiting for it, except Finish.
type Context struct {
	dev *Device
}

// Device returns the owning device.
func (c *Context) Device() *Device { return c.dev }

// Submit enqueues arbitrary work.
func (c *Context) Submit(fn func()) error {
	return c.dev.submit(fn)
}

// Write enqueues an upload of data into img, starting at byte 0.
func (c *Context) Write(img *Image, data []byte) error {
	if err := c.checkImage(img); err != nil {
		return err
	}
	buf := append([]byte(nil), data...)
	return c.dev.submit(func() { img.write(buf) })
}

// Fill enqueues a repeated write of pattern over all of img.
func (c *Context) Fill(img *Image, pattern []byte) error {
	if err := c.checkImage(img); err != nil {
		return err
	}
	buf := append([]byte(nil), pattern...)
	return c.dev.submit(func() { img.fill(buf) })
}

// Read enqueues fn with a snapshot of img taken when the read executes.
func (c *Context) Read(img *Image, fn func(data []byte)) error {
	if err := c.checkImage(img); err != nil {
		return err
	}
	return c.dev.submit(func() { fn(img.Bytes()) })
}

// Copy enqueues a full copy of src into dst.
func (c *Context) Copy(dst, src *Image) error {
	if err := c.checkImage(dst); err != nil {
		return err
	}
	if err := c.checkImage(src); err != nil {
		return err
	}
	if dst.Size() != src.Size() {
		return fmt.Errorf("%w: copy of %d bytes into %d", graphics.ErrInvalidDescriptor, src.Size(), dst.Size())
	}
	c.dev.copies.Add(1)
	return c.dev.submit(func() { copyImage(dst, src) })
}

// Finish blocks until all work enqueued so far has executed.
func (c *Context) Finish() error {
	if err := c.dev.queue.Flush(); err != nil {
		return fmt.Errorf("%w: %s", graphics.ErrClosed, c.dev.label)
	}
	return nil
}

func (c *Context) checkImage(img *Image) error {
	if img == nil || img.adapter != c.dev.adapter {
		return fmt.Errorf("%w: image is not on adapter %s", graphics.ErrWrongDevice, c.dev.adapter.luid)
	}
	return nil
}
