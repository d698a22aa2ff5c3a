package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"optin/internal/consent/gate"
	"optin/internal/consent/idle"
	"optin/internal/consent/metrics"
	"optin/internal/consent/models"
	"optin/internal/consent/panel"
	"optin/internal/consent/service"
	"optin/internal/consent/store"
	"optin/internal/platform/config"
	dErrors "optin/pkg/domain-errors"
	"optin/pkg/platform/httputil"
	"optin/pkg/requestcontext"
)

// Service defines the consent operations the handler drives.
type Service interface {
	Decide(ctx context.Context, cookies service.CookieStore) models.Decision
	Flags(cookies service.CookieStore) models.Flags
	HasCookie(cookies service.CookieStore) bool
	AcceptAll(ctx context.Context, cookies service.CookieStore) bool
	RejectAll(ctx context.Context, cookies service.CookieStore) bool
	Save(ctx context.Context, cookies service.CookieStore, flags models.Flags) bool
	Narrow(ctx context.Context, cookies service.CookieStore, level models.Category) bool
	RecordIdleDecline(ctx context.Context, cookies service.CookieStore) bool
}

type Option func(*Handler)

// WithMetrics counts panel renders.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// Handler serves the consent endpoints and gates HTML pages.
type Handler struct {
	consent  Service
	renderer *panel.Renderer
	gate     *gate.Gate
	tracker  *idle.Tracker
	cfg      config.Consent
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a consent Handler.
func New(consent Service, renderer *panel.Renderer, g *gate.Gate, cfg config.Consent, logger *slog.Logger, opts ...Option) *Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = config.DefaultCookieName
	}
	h := &Handler{
		consent:  consent,
		renderer: renderer,
		gate:     g,
		tracker:  idle.NewTracker(cfg.IdleCookieName(), cfg.Idle),
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the consent routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get(panel.PanelPath, h.handlePanel)
	r.Get("/consent/status", h.handleStatus)
	r.Post(panel.ActionAcceptAll, h.handleAcceptAll)
	r.Post(panel.ActionRejectAll, h.handleRejectAll)
	r.Post(panel.ActionSave, h.handleSave)
	r.Post("/consent/revoke", h.handleRevoke)
	r.Post(panel.ActionInteract, h.handleInteract)
}

// cookies binds a store to the exchange. Without a configured path the
// browser would scope writes made under /consent/ to that prefix.
func (h *Handler) cookies(w http.ResponseWriter, r *http.Request) *store.CookieStore {
	path := h.cfg.Path
	if path == "" {
		path = "/"
	}
	return store.New(store.NewHTTPJar(w, r),
		store.WithPath(path),
		store.WithDomain(h.cfg.Domain),
	)
}

// handlePanel renders the panel fragment on demand, for the placeholder
// control and the "change settings" link. Opening it is an interaction, so
// the idle window ends here too.
func (h *Handler) handlePanel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cookies := h.cookies(w, r)

	view := r.URL.Query().Get("view")
	switch view {
	case "":
		view = panel.ViewOptions
	case panel.ViewBanner, panel.ViewOptions:
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "unknown panel view"))
		return
	}
	out, err := h.renderer.RenderString(ctx, panel.Model{
		State:    panel.StateForView(view),
		Flags:    h.consent.Flags(cookies),
		ReturnTo: h.returnTo(r, r.URL.Query().Get("return_to")),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to render consent panel",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render panel"))
		return
	}
	h.tracker.Stop(cookies)
	h.incrementPanelsShown()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	cookies := h.cookies(w, r)
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(h.consent.Decide(r.Context(), cookies)))
}

func (h *Handler) handleAcceptAll(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeForm[ActionRequest](r.Context(), w, r, h.logger)
	if !ok {
		return
	}
	h.act(w, r, req.ReturnTo, func(ctx context.Context, cookies service.CookieStore) bool {
		return h.consent.AcceptAll(ctx, cookies)
	})
}

func (h *Handler) handleRejectAll(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeForm[ActionRequest](r.Context(), w, r, h.logger)
	if !ok {
		return
	}
	h.act(w, r, req.ReturnTo, func(ctx context.Context, cookies service.CookieStore) bool {
		return h.consent.RejectAll(ctx, cookies)
	})
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeForm[SaveRequest](r.Context(), w, r, h.logger)
	if !ok {
		return
	}
	h.act(w, r, req.ReturnTo, func(ctx context.Context, cookies service.CookieStore) bool {
		return h.consent.Save(ctx, cookies, req.Flags())
	})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeForm[RevokeRequest](r.Context(), w, r, h.logger)
	if !ok {
		return
	}
	h.act(w, r, req.ReturnTo, func(ctx context.Context, cookies service.CookieStore) bool {
		return h.consent.Narrow(ctx, cookies, req.level)
	})
}

// handleInteract stops the idle window without recording anything.
func (h *Handler) handleInteract(w http.ResponseWriter, r *http.Request) {
	h.tracker.Stop(h.cookies(w, r))
	w.WriteHeader(http.StatusNoContent)
}

// act runs a recording action, ends idle tracking and reloads the page the
// visitor came from. A write that does not read back still reloads: the
// panel will simply show again.
func (h *Handler) act(w http.ResponseWriter, r *http.Request, returnTo string, record func(context.Context, service.CookieStore) bool) {
	ctx := r.Context()
	cookies := h.cookies(w, r)

	if !record(ctx, cookies) {
		h.logger.WarnContext(ctx, "consent decision was not stored",
			"request_id", requestcontext.RequestID(ctx),
			"path", r.URL.Path,
		)
	}
	h.tracker.Stop(cookies)

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, h.returnTo(r, returnTo), http.StatusSeeOther)
}

// returnTo picks a same-site path to reload: the posted return_to, then the
// Referer when it points at this host, then the root.
func (h *Handler) returnTo(r *http.Request, candidate string) string {
	if p, ok := localPath(candidate); ok {
		return p
	}
	if ref, err := url.Parse(r.Referer()); err == nil && ref.Host == r.Host {
		if p, ok := localPath(ref.RequestURI()); ok {
			return p
		}
	}
	return "/"
}

// localPath accepts only absolute paths on this origin.
func localPath(raw string) (string, bool) {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, `/\`) {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	return u.RequestURI(), true
}

func (h *Handler) incrementPanelsShown() {
	if h.metrics != nil {
		h.metrics.IncrementPanelsShown()
	}
}
