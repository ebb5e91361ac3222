package composition

import (
	"errors"
	"sync"

	"github.com/gogpu/xrcompose"
	"github.com/gogpu/xrcompose/graphics"
	"github.com/gogpu/xrcompose/graphics/soft"
	"github.com/gogpu/xrcompose/xr"
)

// Option configures a Factory.
type Option func(*Factory)

// WithCompositionAPI selects the backend of composition devices. The
// default creates them with the application's API.
func WithCompositionAPI(api graphics.API) Option {
	return func(f *Factory) { f.compositionAPI = api }
}

// WithSoftPlatform makes soft composition devices find their adapter on p
// by LUID instead of reusing the application's adapter object.
func WithSoftPlatform(p *soft.Platform) Option {
	return func(f *Factory) { f.platform = p }
}

// WithQuirkRules adds runtime quirk rules after the built-in ones.
func WithQuirkRules(rules ...xrcompose.QuirkRule) Option {
	return func(f *Factory) { f.rules = append(f.rules, rules...) }
}

// WithSettings applies layer settings: composition API, bounce copy policy
// and quirk rules.
func WithSettings(s *xrcompose.Settings) Option {
	return func(f *Factory) {
		if s == nil {
			return
		}
		switch s.CompositionAPI {
		case xrcompose.CompositionSoft:
			f.compositionAPI = graphics.APISoft
		case xrcompose.CompositionHAL:
			f.compositionAPI = graphics.APIHAL
		default:
			f.compositionAPI = graphics.APIUnknown
		}
		if s.BounceCopy != "" {
			f.bouncePolicy = s.BounceCopy
		}
		f.rules = append(f.rules, s.Quirks...)
	}
}

// Factory creates one Framework per session. The dispatch layer owns the
// factory and installs the hooks returned by Hook in its dispatch table.
//
// Factory is safe for concurrent use.
type Factory struct {
	instance     xr.Instance
	instanceInfo xr.InstanceCreateInfo
	runtime      xr.Runtime

	compositionAPI graphics.API
	platform       *soft.Platform
	rules          []xrcompose.QuirkRule
	bouncePolicy   string

	mu       sync.RWMutex
	sessions map[xr.Session]*Framework
}

// NewFactory creates a factory for instance. info is copied.
func NewFactory(instance xr.Instance, info *xr.InstanceCreateInfo, runtime xr.Runtime, opts ...Option) *Factory {
	f := &Factory{
		instance:     instance,
		instanceInfo: info.Clone(),
		runtime:      runtime,
		bouncePolicy: xrcompose.BounceCopyAuto,
		sessions:     make(map[xr.Session]*Framework),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Hook wraps next so that session creation builds a Framework and session
// destruction closes it.
func (f *Factory) Hook(next xr.SessionHooks) xr.SessionHooks {
	return xr.SessionHooks{
		CreateSession: func(instance xr.Instance, info *xr.SessionCreateInfo) (xr.Session, error) {
			return f.createSession(next, instance, info)
		},
		DestroySession: func(session xr.Session) error {
			return f.destroySession(next, session)
		},
	}
}

func (f *Factory) createSession(next xr.SessionHooks, instance xr.Instance, info *xr.SessionCreateInfo) (xr.Session, error) {
	session, err := next.CreateSession(instance, info)
	if err != nil {
		return session, err
	}

	fw, err := newFramework(frameworkConfig{
		instance:       f.instance,
		instanceInfo:   &f.instanceInfo,
		runtime:        f.runtime,
		session:        session,
		sessionInfo:    info,
		compositionAPI: f.compositionAPI,
		platform:       f.platform,
		rules:          f.rules,
		bouncePolicy:   f.bouncePolicy,
	})
	if err != nil {
		xrcompose.Logger().Warn("composition: framework creation failed", "session", session, "err", err)
		if derr := next.DestroySession(session); derr != nil {
			xrcompose.Logger().Warn("composition: destroy session after failure", "session", session, "err", derr)
		}
		return xr.NullHandle, err
	}

	f.mu.Lock()
	prev := f.sessions[session]
	f.sessions[session] = fw
	f.mu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			xrcompose.Logger().Warn("composition: close replaced framework", "session", session, "err", err)
		}
	}
	return session, nil
}

func (f *Factory) destroySession(next xr.SessionHooks, session xr.Session) error {
	f.mu.Lock()
	fw := f.sessions[session]
	delete(f.sessions, session)
	f.mu.Unlock()

	if fw != nil {
		if err := fw.Close(); err != nil {
			xrcompose.Logger().Warn("composition: close framework", "session", session, "err", err)
		}
	}
	return next.DestroySession(session)
}

// Framework returns the framework of session.
func (f *Factory) Framework(session xr.Session) (*Framework, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	fw, ok := f.sessions[session]
	if !ok {
		return nil, ErrNoSession
	}
	return fw, nil
}

// Len returns the number of live sessions.
func (f *Factory) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sessions)
}

// Close closes every remaining framework. The sessions themselves are
// left to the runtime.
func (f *Factory) Close() error {
	f.mu.Lock()
	sessions := f.sessions
	f.sessions = make(map[xr.Session]*Framework)
	f.mu.Unlock()

	var errs []error
	for _, fw := range sessions {
		errs = append(errs, fw.Close())
	}
	return errors.Join(errs...)
}
