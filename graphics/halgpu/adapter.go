// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/xrcompose/graphics"
)

// ExtensionName is the instance extension that enables hal bindings.
const ExtensionName = "XR_GOGPU_hal_enable"

// Binding is the graphics binding an application chains into session
// creation to run on a hal device. Provider must also implement
// HalDevice() any and HalQueue() any returning hal.Device and hal.Queue.
type Binding struct {
	Provider gpucontext.DeviceProvider
}

// halProvider is the optional provider extension exposing the hal objects.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// Adapter is one opened hal device and queue, shared by every Device
// wrapper created from it.
type Adapter struct {
	name   string
	luid   graphics.LUID
	device hal.Device
	queue  hal.Queue
	ns     *graphics.Namespace

	// owned is set when the adapter opened the hal device itself.
	owned    bool
	instance hal.Instance

	// mu serializes queue submission and completion bookkeeping.
	mu      sync.Mutex
	pending []pendingWork
}

// pendingWork is a submission whose resources are freed once it completes.
type pendingWork struct {
	submission uint64
	encoder    hal.CommandEncoder
	cmd        hal.CommandBuffer
}

// NewAdapter wraps an existing hal device and queue. The caller keeps
// ownership of both.
func NewAdapter(name string, device hal.Device, queue hal.Queue) *Adapter {
	return &Adapter{
		name:   name,
		luid:   luidFromName(name),
		device: device,
		queue:  queue,
		ns:     graphics.NewNamespace(),
	}
}

// FromBinding extracts the application's hal device from b.
func FromBinding(b Binding) (*Adapter, error) {
	if b.Provider == nil {
		return nil, fmt.Errorf("%w: hal binding has no provider", graphics.ErrUnsupportedBackend)
	}
	hp, ok := b.Provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("%w: provider does not expose HalDevice/HalQueue", graphics.ErrUnsupportedBackend)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("%w: provider HalDevice is not hal.Device", graphics.ErrUnsupportedBackend)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("%w: provider HalQueue is not hal.Queue", graphics.ErrUnsupportedBackend)
	}
	return NewAdapter(b.Provider.AdapterInfo().Name, device, queue), nil
}

// OpenAdapter opens the first adapter of a registered hal backend. The
// backend package must be imported for its registration side effect.
func OpenAdapter(variant gputypes.Backend) (*Adapter, error) {
	backend, ok := hal.GetBackend(variant)
	if !ok {
		return nil, fmt.Errorf("%w: hal backend %v not registered", graphics.ErrUnsupportedBackend, variant)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return nil, graphics.PlatformCall("CreateInstance", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no %v adapters", graphics.ErrUnsupportedBackend, variant)
	}
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, graphics.PlatformCall("Adapter.Open", err)
	}

	a := NewAdapter(adapters[0].Info.Name, open.Device, open.Queue)
	a.owned = true
	a.instance = instance
	return a, nil
}

// Name returns the adapter name the LUID is derived from.
func (a *Adapter) Name() string { return a.name }

// LUID returns the adapter identity.
func (a *Adapter) LUID() graphics.LUID { return a.luid }

// HalDevice returns the shared hal device.
func (a *Adapter) HalDevice() hal.Device { return a.device }

// HalQueue returns the shared hal queue.
func (a *Adapter) HalQueue() hal.Queue { return a.queue }

// Namespace returns the adapter's shared-handle table.
func (a *Adapter) Namespace() *graphics.Namespace { return a.ns }

// NewDevice creates a device wrapper on the adapter.
func (a *Adapter) NewDevice(label string) *Device {
	return &Device{adapter: a, label: label}
}

// Close waits for the GPU to go idle, frees completed work, and destroys
// the hal device if the adapter opened it.
func (a *Adapter) Close() error {
	err := a.device.WaitIdle()
	a.mu.Lock()
	a.retireLocked(^uint64(0))
	a.mu.Unlock()
	if a.owned {
		a.device.Destroy()
		a.instance.Destroy()
	}
	return graphics.PlatformCall("WaitIdle", err)
}

// submit submits cmd (which may be nil) and returns its submission index.
func (a *Adapter) submit(encoder hal.CommandEncoder, cmd hal.CommandBuffer) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var cmds []hal.CommandBuffer
	if cmd != nil {
		cmds = []hal.CommandBuffer{cmd}
	}
	idx, err := a.queue.Submit(cmds)
	if err != nil {
		return 0, graphics.PlatformCall("Queue.Submit", err)
	}
	if cmd != nil {
		a.pending = append(a.pending, pendingWork{submission: idx, encoder: encoder, cmd: cmd})
	}
	a.retireLocked(a.queue.PollCompleted())
	return idx, nil
}

// completed polls the queue and frees finished work.
func (a *Adapter) completed() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	done := a.queue.PollCompleted()
	a.retireLocked(done)
	return done
}

func (a *Adapter) retireLocked(done uint64) {
	kept := a.pending[:0]
	for _, w := range a.pending {
		if w.submission > done {
			kept = append(kept, w)
			continue
		}
		a.device.FreeCommandBuffer(w.cmd)
		w.encoder.Destroy()
	}
	a.pending = kept
}

func luidFromName(name string) graphics.LUID {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return graphics.LUID(h.Sum64())
}
