package xr

import (
	"errors"
	"fmt"

	"github.com/gogpu/xrcompose/graphics"
)

// Result is a host API result code. Negative values are errors.
type Result int32

// Result codes used by the engine.
const (
	Success                         Result = 0
	TimeoutExpired                  Result = 1
	ErrorValidationFailure          Result = -1
	ErrorRuntimeFailure             Result = -2
	ErrorOutOfMemory                Result = -3
	ErrorFunctionUnsupported        Result = -7
	ErrorFeatureUnsupported         Result = -8
	ErrorHandleInvalid              Result = -12
	ErrorSwapchainFormatUnsupported Result = -26
	ErrorCallOrderInvalid           Result = -37
	ErrorGraphicsDeviceInvalid      Result = -38
)

var resultNames = map[Result]string{
	Success:                         "XR_SUCCESS",
	TimeoutExpired:                  "XR_TIMEOUT_EXPIRED",
	ErrorValidationFailure:          "XR_ERROR_VALIDATION_FAILURE",
	ErrorRuntimeFailure:             "XR_ERROR_RUNTIME_FAILURE",
	ErrorOutOfMemory:                "XR_ERROR_OUT_OF_MEMORY",
	ErrorFunctionUnsupported:        "XR_ERROR_FUNCTION_UNSUPPORTED",
	ErrorFeatureUnsupported:         "XR_ERROR_FEATURE_UNSUPPORTED",
	ErrorHandleInvalid:              "XR_ERROR_HANDLE_INVALID",
	ErrorSwapchainFormatUnsupported: "XR_ERROR_SWAPCHAIN_FORMAT_UNSUPPORTED",
	ErrorCallOrderInvalid:           "XR_ERROR_CALL_ORDER_INVALID",
	ErrorGraphicsDeviceInvalid:      "XR_ERROR_GRAPHICS_DEVICE_INVALID",
}

// String returns the symbolic name of r.
func (r Result) String() string {
	if s, ok := resultNames[r]; ok {
		return s
	}
	return fmt.Sprintf("XrResult(%d)", int32(r))
}

// Error implements error so runtimes can return Results directly.
func (r Result) Error() string { return "xr: " + r.String() }

// Failed reports whether r is an error code.
func (r Result) Failed() bool { return r < 0 }

// Code returns r as a platform result code.
func (r Result) Code() int64 { return int64(r) }

// Error is a sentinel error that maps to a fixed Result at the dispatch
// boundary.
type Error struct {
	msg    string
	result Result
}

// NewError creates a sentinel error mapping to r.
func NewError(msg string, r Result) *Error {
	return &Error{msg: msg, result: r}
}

// Error implements error.
func (e *Error) Error() string { return e.msg }

// Result returns the mapped result code.
func (e *Error) Result() Result { return e.result }

// ResultFromError maps an engine error to the result code the dispatch
// boundary returns to the application.
func ResultFromError(err error) Result {
	if err == nil {
		return Success
	}

	var xe *Error
	if errors.As(err, &xe) {
		return xe.result
	}
	var r Result
	if errors.As(err, &r) {
		return r
	}

	switch {
	case errors.Is(err, graphics.ErrUnsupportedBackend),
		errors.Is(err, graphics.ErrAPIMismatch),
		errors.Is(err, graphics.ErrWrongDevice),
		errors.Is(err, graphics.ErrClosed):
		return ErrorGraphicsDeviceInvalid
	case errors.Is(err, graphics.ErrInvalidHandle),
		errors.Is(err, graphics.ErrNotShareable):
		return ErrorHandleInvalid
	case errors.Is(err, graphics.ErrInvalidDescriptor):
		return ErrorValidationFailure
	}

	var pe *graphics.PlatformError
	if errors.As(err, &pe) && pe.Code < 0 && pe.Code >= -1<<31 {
		return Result(pe.Code)
	}
	return ErrorRuntimeFailure
}
