package composition

import "github.com/gogpu/xrcompose/xr"

// Swapchain and session errors. Each maps to a fixed host result code
// through xr.ResultFromError.
var (
	// ErrNotReadable is returned by LastReleasedImage on a swapchain
	// created without ModeRead.
	ErrNotReadable = xr.NewError("composition: swapchain is not readable", xr.ErrorValidationFailure)

	// ErrNotWritable is returned by CommitLastReleasedImage on a swapchain
	// created without ModeWrite.
	ErrNotWritable = xr.NewError("composition: swapchain is not writable", xr.ErrorValidationFailure)

	// ErrNoImageAcquired is returned when releasing or waiting with no
	// image acquired.
	ErrNoImageAcquired = xr.NewError("composition: no image acquired", xr.ErrorCallOrderInvalid)

	// ErrNoImageAvailable is returned when every image of a
	// non-submittable swapchain is already acquired.
	ErrNoImageAvailable = xr.NewError("composition: no image available", xr.ErrorCallOrderInvalid)

	// ErrReleaseBeforeCommit is returned when a writable swapchain is
	// released again before its last released image was committed.
	ErrReleaseBeforeCommit = xr.NewError("composition: image released before the previous one was committed", xr.ErrorCallOrderInvalid)

	// ErrNotSubmittable is returned for runtime handles of a
	// non-submittable swapchain.
	ErrNotSubmittable = xr.NewError("composition: swapchain is not submittable", xr.ErrorValidationFailure)

	// ErrNoSession is returned by Factory.Framework for unknown sessions.
	ErrNoSession = xr.NewError("composition: no framework for session", xr.ErrorHandleInvalid)
)
