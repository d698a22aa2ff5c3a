package main

import (
	"context"
	"embed"
	"io"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"optin/internal/consent/gate"
	"optin/internal/consent/handler"
	consentMetrics "optin/internal/consent/metrics"
	"optin/internal/consent/panel"
	"optin/internal/consent/service"
	"optin/internal/platform/config"
	"optin/internal/platform/health"
	"optin/internal/platform/tracer"
	httptransport "optin/internal/transport/http"
	"optin/pkg/platform/middleware/request"
)

//go:embed site
var site embed.FS

// newServer builds the consent gateway in front of the demo site.
func newServer(cfg config.Config, log *slog.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*http.Server, error) {
	router, err := newRouter(cfg, log, reg, gatherer)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, nil
}

func newRouter(cfg config.Config, log *slog.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (http.Handler, error) {
	var t tracer.Tracer = tracer.NewNoop()
	if cfg.Server.TracingEnabled {
		t = tracer.NewOTel()
	}
	m := consentMetrics.New(reg)

	svc := service.New(cfg.Consent, log, service.WithMetrics(m))
	renderer, err := panel.NewRenderer(cfg.Consent, panel.WithTracer(t))
	if err != nil {
		return nil, err
	}
	g := gate.New(cfg.Consent.Text, cfg.Consent.PanelURL,
		gate.WithMetrics(m),
		gate.WithTracer(t),
		gate.WithLogger(log),
	)
	consent := handler.New(svc, renderer, g, cfg.Consent, log, handler.WithMetrics(m))

	pages, err := fs.Sub(site, "site")
	if err != nil {
		return nil, err
	}

	h := health.New(cfg.Server.Environment)
	h.RegisterCheck("config", func(context.Context) error {
		return cfg.Consent.Validate()
	})
	h.RegisterCheck("panel_templates", func(ctx context.Context) error {
		return renderer.Render(ctx, io.Discard, panel.Model{State: panel.State{}.Show()})
	})

	return httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Health:         h,
		Consent:        consent,
		Pages:          http.FileServerFS(pages),
		Metrics:        request.NewMetrics(reg),
		Gatherer:       gatherer,
		RequestTimeout: cfg.Server.RequestTimeout,
	}), nil
}
