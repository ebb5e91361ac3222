// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/xrcompose/graphics"
)

// Timeline is a fence value carried by the shared hal queue. A signal is an
// empty submission; the value is reached once that submission completes.
type Timeline struct {
	adapter *Adapter
	fence   hal.Fence

	mu      sync.Mutex
	value   uint64
	pending []timelineSignal
}

type timelineSignal struct {
	value      uint64
	submission uint64
}

// HalFence returns the hal fence backing the timeline.
func (tl *Timeline) HalFence() hal.Fence { return tl.fence }

// Value polls the queue and returns the completed value.
func (tl *Timeline) Value() uint64 {
	tl.advance(tl.adapter.completed())
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.value
}

func (tl *Timeline) signal(v uint64) error {
	idx, err := tl.adapter.submit(nil, nil)
	if err != nil {
		return err
	}
	tl.mu.Lock()
	tl.pending = append(tl.pending, timelineSignal{value: v, submission: idx})
	tl.mu.Unlock()
	return nil
}

// advance retires every signal whose submission is done.
func (tl *Timeline) advance(done uint64) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	kept := tl.pending[:0]
	for _, s := range tl.pending {
		if s.submission > done {
			kept = append(kept, s)
			continue
		}
		tl.value = max(tl.value, s.value)
	}
	tl.pending = kept
}

// waitHost blocks until v is reached. hal exposes no per-submission wait,
// so it idles the device when the value is still outstanding.
func (tl *Timeline) waitHost(v uint64) error {
	if tl.Value() >= v {
		return nil
	}
	if err := tl.adapter.device.WaitIdle(); err != nil {
		return graphics.PlatformCall("WaitIdle", err)
	}
	tl.advance(tl.adapter.completed())
	return nil
}

// Fence is a timeline as seen by one wrapper.
type Fence struct {
	dev       *Device
	tl        *Timeline
	shareable bool
	creator   bool
	last      atomic.Uint64
	closed    atomic.Bool
}

var _ graphics.Fence = (*Fence)(nil)

// API implements graphics.Fence.
func (f *Fence) API() graphics.API { return graphics.APIHAL }

// NativeFence returns the *Timeline.
func (f *Fence) NativeFence() any { return f.tl }

// IsShareable implements graphics.Fence.
func (f *Fence) IsShareable() bool { return f.shareable }

// Handle exports an NT handle. The receiver closes it.
func (f *Fence) Handle() (graphics.ShareableHandle, error) {
	if !f.shareable {
		return graphics.ShareableHandle{}, graphics.ErrNotShareable
	}
	return f.dev.adapter.ns.Export(f.tl, graphics.APIHAL, true), nil
}

// Signal implements graphics.Fence.
func (f *Fence) Signal(value uint64) error {
	if f.dev.closed.Load() {
		return graphics.ErrClosed
	}
	if err := f.tl.signal(value); err != nil {
		return err
	}
	f.dev.signals.Add(1)
	for {
		cur := f.last.Load()
		if value <= cur || f.last.CompareAndSwap(cur, value) {
			break
		}
	}
	return nil
}

// WaitOnDevice implements graphics.Fence. Every wrapper on the adapter
// submits to one queue, so work enqueued after this call already runs
// after the matching signal.
func (f *Fence) WaitOnDevice(value uint64) error {
	if f.dev.closed.Load() {
		return graphics.ErrClosed
	}
	f.dev.deviceWaits.Add(1)
	return nil
}

// WaitOnCPU implements graphics.Fence.
func (f *Fence) WaitOnCPU(value uint64) error {
	if err := f.Signal(value); err != nil {
		return err
	}
	f.dev.hostWaits.Add(1)
	return f.tl.waitHost(value)
}

// Close waits for the last value signaled through f. Closing the creating
// fence revokes its handles and destroys the hal fence.
func (f *Fence) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if last := f.last.Load(); last > 0 {
		err = f.tl.waitHost(last)
	}
	if f.creator {
		f.dev.adapter.ns.Revoke(f.tl)
		f.dev.adapter.device.DestroyFence(f.tl.fence)
	}
	return err
}
