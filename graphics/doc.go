// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package graphics defines the device, texture and fence contracts shared by
// the application device and the composition device.
//
// Two devices meet through shareable handles: a texture or fence created
// shareable on one device is exported as a [ShareableHandle] and opened on the
// other. Handles live in a [Namespace] owned by the adapter, so objects can
// only cross between devices backed by the same adapter (identified by its
// [LUID]).
//
// Every object carries an [API] tag. Typed accessors such as [NativeDevice]
// check the tag before handing out a backend-specific value and fail with
// [ErrAPIMismatch] otherwise; callers never get a silently wrong type.
//
// Formats are reconciled through one canonical space, [gputypes.TextureFormat].
// Each backend translates its native format values to and from it.
package graphics
