package service

import (
	"context"
	"log/slog"

	"optin/internal/consent/metrics"
	"optin/internal/consent/models"
	"optin/internal/platform/config"
	"optin/pkg/requestcontext"
)

// CookieStore is the cookie header of the page being served.
// Error Contract:
// - Get reports absence with false
// - Set reports whether the written value reads back
// - Remove reports false only when called without names
type CookieStore interface {
	Get(name string) (string, bool)
	Set(ctx context.Context, spec models.CookieSpec) bool
	Remove(names ...string) bool
}

type Option func(*Service)

// Write actions, used as metric labels and log attributes.
const (
	ActionAcceptAll   = "accept_all"
	ActionRejectAll   = "reject_all"
	ActionSave        = "save"
	ActionNarrow      = "narrow"
	ActionIdleDecline = "idle_decline"
)

// Service decides what a stored mask permits and records new decisions.
// It keeps no state between calls: every read goes back to the cookie.
type Service struct {
	cfg     config.Consent
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(cfg config.Consent, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.cfg.CookieName == "" {
		svc.cfg.CookieName = config.DefaultCookieName
	}
	return svc
}

// WithMetrics sets the metrics instance for the service
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger instance for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// CookieName is the name of the consent cookie.
func (s *Service) CookieName() string {
	return s.cfg.CookieName
}

func (s *Service) raw(cookies CookieStore) (string, bool) {
	return cookies.Get(s.cfg.CookieName)
}

// HasCookie reports whether any consent cookie exists, the declined
// sentinel included. The panel is shown only when this is false.
func (s *Service) HasCookie(cookies CookieStore) bool {
	_, ok := s.raw(cookies)
	return ok
}

// HasRecordedConsent reports whether the consent cookie exists and is not
// the declined sentinel.
func (s *Service) HasRecordedConsent(cookies CookieStore) bool {
	return models.IsRecorded(s.raw(cookies))
}

// Flags decodes the stored mask. Nothing recorded decodes to all false.
func (s *Service) Flags(cookies CookieStore) models.Flags {
	raw, ok := s.raw(cookies)
	if !models.IsRecorded(raw, ok) {
		return models.Flags{}
	}
	return models.Decode(raw)
}

// CanUse reports whether category is permitted. Categories are read
// independently; a stored targeting bit is honoured even without functional.
func (s *Service) CanUse(ctx context.Context, cookies CookieStore, category models.Category) bool {
	return s.Decide(ctx, cookies).Allows(category)
}

func (s *Service) CanUseFunctional(ctx context.Context, cookies CookieStore) bool {
	return s.CanUse(ctx, cookies, models.CategoryFunctional)
}

func (s *Service) CanUsePerformance(ctx context.Context, cookies CookieStore) bool {
	return s.CanUse(ctx, cookies, models.CategoryPerformance)
}

func (s *Service) CanUseTargeting(ctx context.Context, cookies CookieStore) bool {
	return s.CanUse(ctx, cookies, models.CategoryTargeting)
}

// Decide derives the gating verdict for one page render.
func (s *Service) Decide(ctx context.Context, cookies CookieStore) models.Decision {
	raw, ok := s.raw(cookies)
	d := models.DecisionFrom(raw, ok)
	if d.Recorded && !models.Decode(raw).Consistent() {
		s.reportInconsistent(ctx, raw)
	}
	return d
}

// AcceptAll records "1111".
func (s *Service) AcceptAll(ctx context.Context, cookies CookieStore) bool {
	return s.record(ctx, cookies, ActionAcceptAll, models.AcceptAll)
}

// RejectAll records "1000" and purges everything consent no longer covers.
func (s *Service) RejectAll(ctx context.Context, cookies CookieStore) bool {
	return s.record(ctx, cookies, ActionRejectAll, models.RejectAll)
}

// Save records a custom choice. Strict is forced on.
func (s *Service) Save(ctx context.Context, cookies CookieStore, flags models.Flags) bool {
	return s.record(ctx, cookies, ActionSave, flags)
}

// Narrow withdraws every category of the nesting chain broader than level,
// keeping the rest of the recorded choice.
func (s *Service) Narrow(ctx context.Context, cookies CookieStore, level models.Category) bool {
	next := s.Flags(cookies)
	next.Strict = true
	if models.CategoryFunctional.Broader(level) {
		next.Functional = false
	}
	if models.CategoryTargeting.Broader(level) {
		next.Targeting = false
	}
	return s.record(ctx, cookies, ActionNarrow, next)
}

// RecordIdleDecline writes the declined sentinel when the visitor let the
// idle window lapse. A recorded mask is never overwritten.
func (s *Service) RecordIdleDecline(ctx context.Context, cookies CookieStore) bool {
	if s.HasRecordedConsent(cookies) {
		return false
	}
	ok := s.write(ctx, cookies, ActionIdleDecline, models.MaskDeclined)
	if ok && s.metrics != nil {
		s.metrics.IncrementIdleDeclines()
	}
	return ok
}

func (s *Service) record(ctx context.Context, cookies CookieStore, action string, next models.Flags) bool {
	prior := s.Flags(cookies)
	next.Strict = true

	ok := s.write(ctx, cookies, action, next.Mask())
	s.cascade(ctx, cookies, prior, next)
	return ok
}

func (s *Service) write(ctx context.Context, cookies CookieStore, action, mask string) bool {
	ok := cookies.Set(ctx, models.CookieSpec{
		Name:          s.cfg.CookieName,
		Value:         mask,
		ExpiresInDays: s.cfg.ExpiresDays,
		Secure:        s.cfg.Secure,
	})
	if !ok {
		s.logWarn(ctx, "consent cookie did not read back",
			"action", action,
			"mask", mask,
		)
		s.incrementWriteFailures(action)
		return false
	}
	s.logInfo(ctx, "consent recorded",
		"action", action,
		"mask", mask,
	)
	s.incrementDecisionsRecorded(action)
	return true
}

func (s *Service) reportInconsistent(ctx context.Context, raw string) {
	s.logWarn(ctx, "recorded mask grants targeting without functional", "mask", raw)
	if s.metrics != nil {
		s.metrics.IncrementInconsistentMasks()
	}
}

func (s *Service) incrementDecisionsRecorded(action string) {
	if s.metrics != nil {
		s.metrics.IncrementDecisionsRecorded(action)
	}
}

func (s *Service) incrementWriteFailures(action string) {
	if s.metrics != nil {
		s.metrics.IncrementWriteFailures(action)
	}
}

func (s *Service) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.InfoContext(ctx, msg, append(args, "request_id", requestcontext.RequestID(ctx))...)
}

func (s *Service) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.WarnContext(ctx, msg, append(args, "request_id", requestcontext.RequestID(ctx))...)
}
