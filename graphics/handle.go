// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graphics

import (
	"fmt"
	"sync"
)

// ShareableHandle references a GPU resource that another device on the same
// adapter can open. It is a plain value and never changes once created.
//
// NT handles are created per export and must be closed by whoever receives
// them (see [Namespace.Close]). Legacy (non-NT) handles are stable for the
// lifetime of the resource and are never closed.
type ShareableHandle struct {
	Handle uintptr
	NT     bool
	Origin API
}

// IsZero reports whether h is the zero handle.
func (h ShareableHandle) IsZero() bool { return h.Handle == 0 }

// String implements fmt.Stringer.
func (h ShareableHandle) String() string {
	kind := "kmt"
	if h.NT {
		kind = "nt"
	}
	return fmt.Sprintf("%s:%#x(%s)", kind, h.Handle, h.Origin)
}

// handleStride mirrors the platform's handle allocation granularity.
const handleStride = 4

type namespaceEntry struct {
	obj    any
	nt     bool
	origin API
}

// Namespace is the shared-handle table of one adapter. Devices created on
// the adapter export into it and import from it; handles from another
// adapter's namespace do not resolve.
//
// Namespace is safe for concurrent use.
type Namespace struct {
	mu      sync.Mutex
	next    uintptr
	entries map[uintptr]namespaceEntry
	legacy  map[any]uintptr
}

// NewNamespace creates an empty handle table.
func NewNamespace() *Namespace {
	return &Namespace{
		next:    0x100,
		entries: make(map[uintptr]namespaceEntry),
		legacy:  make(map[any]uintptr),
	}
}

// Export returns a handle for obj. Legacy handles are stable: exporting the
// same object twice yields the same value. NT handles are fresh each time.
// obj must be comparable (typically a pointer).
func (ns *Namespace) Export(obj any, origin API, nt bool) ShareableHandle {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if !nt {
		if h, ok := ns.legacy[obj]; ok {
			return ShareableHandle{Handle: h, Origin: origin}
		}
	}

	h := ns.next
	ns.next += handleStride
	ns.entries[h] = namespaceEntry{obj: obj, nt: nt, origin: origin}
	if !nt {
		ns.legacy[obj] = h
	}
	return ShareableHandle{Handle: h, NT: nt, Origin: origin}
}

// Lookup resolves h to the exported object.
func (ns *Namespace) Lookup(h ShareableHandle) (any, error) {
	if h.IsZero() {
		return nil, fmt.Errorf("%w: zero handle", ErrInvalidHandle)
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	e, ok := ns.entries[h.Handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s not found", ErrInvalidHandle, h)
	}
	if e.nt != h.NT {
		return nil, fmt.Errorf("%w: %s has the wrong variant", ErrInvalidHandle, h)
	}
	return e.obj, nil
}

// Close releases an NT handle. Closing a legacy handle has no effect.
func (ns *Namespace) Close(h ShareableHandle) error {
	if !h.NT {
		return nil
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	e, ok := ns.entries[h.Handle]
	if !ok || !e.nt {
		return fmt.Errorf("%w: %s not open", ErrInvalidHandle, h)
	}
	delete(ns.entries, h.Handle)
	return nil
}

// Revoke invalidates every handle referring to obj. Backends call it when
// the underlying resource is destroyed.
func (ns *Namespace) Revoke(obj any) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	for h, e := range ns.entries {
		if e.obj == obj {
			delete(ns.entries, h)
		}
	}
	delete(ns.legacy, obj)
}

// Len returns the number of live handles.
func (ns *Namespace) Len() int {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return len(ns.entries)
}
