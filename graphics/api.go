// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graphics

import "fmt"

// API identifies the concrete backend behind a device, texture or fence.
type API uint8

const (
	// APIUnknown is the zero value; no object reports it.
	APIUnknown API = iota

	// APISoft is the software backend (graphics/soft).
	APISoft

	// APIHAL is the gogpu/wgpu hal backend (graphics/halgpu).
	APIHAL
)

// String returns the backend name.
func (a API) String() string {
	switch a {
	case APISoft:
		return "soft"
	case APIHAL:
		return "hal"
	default:
		return fmt.Sprintf("API(%d)", uint8(a))
	}
}

// LUID identifies the adapter (physical or virtual GPU) backing a device.
type LUID uint64

// String formats the LUID the way adapter tools print it.
func (l LUID) String() string {
	return fmt.Sprintf("%08x:%08x", uint32(l>>32), uint32(l))
}
