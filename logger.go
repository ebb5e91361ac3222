package xrcompose

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip attribute formatting entirely,
// which keeps the per-frame paths free of logging cost when disabled.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called while sessions are producing frames.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for xrcompose and all its sub-packages.
// By default nothing is logged. Pass nil to restore the silent default.
//
// Log levels used by xrcompose:
//   - [slog.LevelDebug]: per-frame diagnostics (fence values, bounce copies)
//   - [slog.LevelInfo]: session and device lifecycle, quirks, preferred formats
//   - [slog.LevelWarn]: errors swallowed during teardown
//
// Example:
//
//	xrcompose.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger used by xrcompose.
// Sub-packages (graphics/..., composition) call this to share one
// configuration without threading a logger through every constructor.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
