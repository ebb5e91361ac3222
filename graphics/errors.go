// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graphics

import (
	"errors"
	"fmt"
)

// Device-level errors.
var (
	// ErrAPIMismatch is returned when a typed accessor assumes a backend
	// that does not match the object's actual backend.
	ErrAPIMismatch = errors.New("graphics: api mismatch")

	// ErrNotShareable is returned when exporting a texture or fence that
	// was not created shareable.
	ErrNotShareable = errors.New("graphics: resource is not shareable")

	// ErrInvalidHandle is returned when importing a zero handle, an unknown
	// handle, or a handle of the wrong variant.
	ErrInvalidHandle = errors.New("graphics: invalid handle")

	// ErrUnsupportedBackend is returned when the requested API/adapter
	// combination cannot be satisfied.
	ErrUnsupportedBackend = errors.New("graphics: unsupported backend")

	// ErrPlatformCallFailed is matched by every *PlatformError.
	ErrPlatformCallFailed = errors.New("graphics: platform call failed")

	// ErrWrongDevice is returned when a texture passed to a device
	// operation is resident on another device.
	ErrWrongDevice = errors.New("graphics: resource belongs to another device")

	// ErrInvalidDescriptor is returned for zero-sized textures, unknown
	// formats, or copies between textures of different shapes.
	ErrInvalidDescriptor = errors.New("graphics: invalid texture descriptor")

	// ErrClosed is returned by operations on a closed device.
	ErrClosed = errors.New("graphics: device closed")
)

// PlatformError wraps a failed native graphics or runtime call.
type PlatformError struct {
	// Op is the native entry point that failed.
	Op string

	// Code is the platform's native result code, if it has one.
	Code int64

	// Err is the underlying error.
	Err error
}

// Error implements error.
func (e *PlatformError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("graphics: %s failed (code %d): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("graphics: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *PlatformError) Unwrap() error { return e.Err }

// Is reports ErrPlatformCallFailed as a match.
func (e *PlatformError) Is(target error) bool { return target == ErrPlatformCallFailed }

// codeCarrier is implemented by native error types that expose a result code.
type codeCarrier interface {
	Code() int64
}

// PlatformCall wraps err as a *PlatformError for op. It returns nil if err
// is nil, and err unchanged if it already is a *PlatformError.
func PlatformCall(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PlatformError
	if errors.As(err, &pe) {
		return err
	}
	e := &PlatformError{Op: op, Err: err}
	var cc codeCarrier
	if errors.As(err, &cc) {
		e.Code = cc.Code()
	}
	return e
}
