// Package xr defines the host-API surface the composition engine talks to:
// object handles, create infos, result codes, the runtime entry points the
// engine calls through, and the session lifetime hooks it registers.
//
// The dispatch layer that intercepts application calls is not part of this
// module; it owns a [Runtime] for the next layer down and routes session
// creation and destruction through [SessionHooks].
package xr
