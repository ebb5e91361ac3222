// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package halgpu implements the graphics backend over github.com/gogpu/wgpu/hal.
//
// hal has no external-memory or external-semaphore primitives, so sharing is
// modeled at the adapter: every [Device] created from one [Adapter] wraps the
// same hal.Device and hal.Queue, and textures and timelines are exported into
// the adapter's handle namespace and opened by the other wrapper. All work
// from all wrappers lands on the one hal queue in submission order, which
// makes device-side fence waits implicit.
//
// The application device is obtained from a [Binding] whose provider exposes
// HalDevice() and HalQueue(); the composition device is created on the same
// adapter with [Adapter.NewDevice].
package halgpu
