// Package optin is the in-process entry point of the consent widget: one
// Manager per visitor view, holding the panel state and the idle timer over
// a cookie jar.
//
// Usage:
//
//	m := optin.Init(config.Consent{Idle: time.Minute}, jar)
//	defer m.Close()
//	if m.CanUseTargeting() {
//	    // load the ad script
//	}
package optin

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"optin/internal/consent/gate"
	"optin/internal/consent/idle"
	"optin/internal/consent/metrics"
	"optin/internal/consent/models"
	"optin/internal/consent/panel"
	"optin/internal/consent/service"
	"optin/internal/consent/store"
	"optin/internal/platform/config"
)

type Option func(*Manager)

// WithLogger sets the logger passed to the decision engine.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics counts decisions, purges and idle declines.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// Manager is safe for concurrent use: the idle timer fires on its own
// goroutine.
type Manager struct {
	mu      sync.Mutex
	cfg     config.Consent
	svc     *service.Service
	cookies *store.CookieStore
	state   panel.State
	timer   idle.Timer

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Init merges cfg over the defaults, reads the current decision from jar and
// starts the idle timer when the panel opens with an idle window configured.
func Init(cfg config.Consent, jar store.Jar, opts ...Option) *Manager {
	m := &Manager{
		cfg:    cfg.WithDefaults(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}

	var svcOpts []service.Option
	if m.metrics != nil {
		svcOpts = append(svcOpts, service.WithMetrics(m.metrics))
	}
	m.svc = service.New(m.cfg, m.logger, svcOpts...)
	m.cookies = store.New(jar, store.WithPath(m.cfg.Path), store.WithDomain(m.cfg.Domain))

	m.state = panel.InitialState(m.svc.HasCookie(m.cookies))
	if m.state.Visible {
		m.timer.Start(m.cfg.Idle, m.idleDecline)
	}
	return m
}

// Config is the merged configuration in effect.
func (m *Manager) Config() config.Consent {
	return m.cfg
}

// Panel returns the current panel state.
func (m *Manager) Panel() panel.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Show opens the panel on the options view.
func (m *Manager) Show() {
	m.update(panel.State.Show)
}

// Hide closes the panel.
func (m *Manager) Hide() {
	m.update(panel.State.Hide)
}

// Toggle shows a hidden panel on the banner view, or hides a visible one.
func (m *Manager) Toggle() {
	m.update(panel.State.Toggle)
}

// ToggleOptions switches between the banner and the options view.
func (m *Manager) ToggleOptions() {
	m.update(panel.State.ToggleOptions)
}

// Interact is any pointer interaction with the panel; it stops the idle
// countdown.
func (m *Manager) Interact() bool {
	return m.timer.Cancel()
}

// IdlePending reports whether an idle decline is scheduled.
func (m *Manager) IdlePending() bool {
	return m.timer.Pending()
}

func (m *Manager) HasSubscribed() bool {
	return m.svc.HasRecordedConsent(m.cookies)
}

func (m *Manager) CanUseFunctional() bool {
	return m.svc.CanUseFunctional(context.Background(), m.cookies)
}

func (m *Manager) CanUsePerformance() bool {
	return m.svc.CanUsePerformance(context.Background(), m.cookies)
}

func (m *Manager) CanUseTargeting() bool {
	return m.svc.CanUseTargeting(context.Background(), m.cookies)
}

// LoadScript returns the <script> element for src when category may run,
// ready for the host to append to <head>, and "" when it may not. Strict
// scripts always load.
func (m *Manager) LoadScript(category models.Category, src string) string {
	if src == "" || !category.IsValid() {
		return ""
	}
	if category != models.CategoryStrict && !m.svc.CanUse(context.Background(), m.cookies, category) {
		return ""
	}
	return gate.ScriptTag(src)
}

// AcceptAll records every category and closes the panel.
func (m *Manager) AcceptAll(ctx context.Context) bool {
	return m.decide(func() bool { return m.svc.AcceptAll(ctx, m.cookies) })
}

// RejectAll records strict only and closes the panel.
func (m *Manager) RejectAll(ctx context.Context) bool {
	return m.decide(func() bool { return m.svc.RejectAll(ctx, m.cookies) })
}

// Save records flags as chosen in the options view and closes the panel.
func (m *Manager) Save(ctx context.Context, flags models.Flags) bool {
	return m.decide(func() bool { return m.svc.Save(ctx, m.cookies, flags) })
}

// Revoke narrows consent to level. Performance sits outside the nesting
// chain and is withdrawn with Save instead.
func (m *Manager) Revoke(ctx context.Context, level models.Category) bool {
	if !level.IsValid() || level == models.CategoryPerformance {
		return false
	}
	return m.decide(func() bool { return m.svc.Narrow(ctx, m.cookies, level) })
}

// Close cancels a pending idle decline.
func (m *Manager) Close() {
	m.timer.Cancel()
}

func (m *Manager) decide(record func() bool) bool {
	m.timer.Cancel()
	m.mu.Lock()
	defer m.mu.Unlock()
	ok := record()
	m.state = m.state.Hide()
	return ok
}

func (m *Manager) idleDecline() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.svc.RecordIdleDecline(context.Background(), m.cookies) {
		m.logger.Info("idle window lapsed, decline recorded", "cookie", m.cfg.CookieName)
	}
	m.state = m.state.Hide()
}

func (m *Manager) update(op func(panel.State) panel.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = op(m.state)
}
