// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graphics

import "fmt"

// NativeDevice returns d's backend device as T, checking that d belongs to
// want first. A mismatch is reported as ErrAPIMismatch, never as a bad cast.
func NativeDevice[T any](d Device, want API) (T, error) {
	return nativeAs[T](want, d.API(), d.NativeDevice())
}

// NativeContext returns d's backend execution context as T.
func NativeContext[T any](d Device, want API) (T, error) {
	return nativeAs[T](want, d.API(), d.NativeContext())
}

// NativeTexture returns t's backend texture as T.
func NativeTexture[T any](t Texture, want API) (T, error) {
	return nativeAs[T](want, t.API(), t.NativeTexture())
}

// NativeFence returns f's backend fence as T.
func NativeFence[T any](f Fence, want API) (T, error) {
	return nativeAs[T](want, f.API(), f.NativeFence())
}

func nativeAs[T any](want, got API, v any) (T, error) {
	var zero T
	if want != got {
		return zero, fmt.Errorf("%w: want %s, object is %s", ErrAPIMismatch, want, got)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s object is %T, not %T", ErrAPIMismatch, got, v, zero)
	}
	return t, nil
}
