package soft

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/xrcompose/graphics"
)

// Adapter is a virtual GPU. Devices created on the same adapter can share
// images and timelines through its handle namespace.
type Adapter struct {
	id   uuid.UUID
	name string
	luid graphics.LUID
	ns   *graphics.Namespace
}

// NewAdapter creates an adapter with a fresh identity.
func NewAdapter(name string) *Adapter {
	id := uuid.New()
	luid := graphics.LUID(binary.BigEndian.Uint64(id[8:]))
	if luid == 0 {
		luid = 1
	}
	return &Adapter{
		id:   id,
		name: name,
		luid: luid,
		ns:   graphics.NewNamespace(),
	}
}

// ID returns the adapter's stable identity.
func (a *Adapter) ID() uuid.UUID { return a.id }

// Name returns the adapter's display name.
func (a *Adapter) Name() string { return a.name }

// LUID returns the locally unique identifier derived from the adapter ID.
func (a *Adapter) LUID() graphics.LUID { return a.luid }

// Namespace returns the adapter's shared-handle table.
func (a *Adapter) Namespace() *graphics.Namespace { return a.ns }

// CreateDevice creates an independent device on the adapter.
func (a *Adapter) CreateDevice(label string) *Device {
	return newDevice(a, label)
}

// Platform is the set of adapters visible to a process.
type Platform struct {
	mu       sync.RWMutex
	adapters []*Adapter
}

// NewPlatform creates a platform exposing adapters.
func NewPlatform(adapters ...*Adapter) *Platform {
	return &Platform{adapters: adapters}
}

// AddAdapter makes a visible on the platform.
func (p *Platform) AddAdapter(a *Adapter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.adapters = append(p.adapters, a)
}

// Adapters returns a snapshot of the platform's adapters.
func (p *Platform) Adapters() []*Adapter {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*Adapter(nil), p.adapters...)
}

// AdapterByLUID finds the adapter with the given LUID.
func (p *Platform) AdapterByLUID(luid graphics.LUID) (*Adapter, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, a := range p.adapters {
		if a.luid == luid {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: no soft adapter with LUID %s", graphics.ErrUnsupportedBackend, luid)
}
