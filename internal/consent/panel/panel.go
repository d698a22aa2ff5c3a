// Package panel renders the cookie preference panel and tracks whether it
// is shown.
package panel

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"io"

	"optin/internal/consent/models"
	"optin/internal/platform/config"
	"optin/internal/platform/tracer"
)

//go:embed templates/*.tmpl
var templates embed.FS

// Action endpoints the panel forms post to.
const (
	ActionAcceptAll = "/consent/accept-all"
	ActionRejectAll = "/consent/reject-all"
	ActionSave      = "/consent/save"
	ActionInteract  = "/consent/interact"
	PanelPath       = "/consent/panel"
)

// Model is what one rendering of the panel needs.
type Model struct {
	State    State
	Flags    models.Flags
	ReturnTo string
}

type category struct {
	Name     string
	Checked  bool
	Disabled bool
	Features config.FeatureList
}

type viewData struct {
	Text       config.PanelText
	View       string
	Options    bool
	ReturnTo   string
	Categories []category
	Actions    map[string]string
	IdleWindow int
}

type Option func(*Renderer)

// WithTracer wraps Render in a span.
func WithTracer(t tracer.Tracer) Option {
	return func(r *Renderer) {
		r.tracer = t
	}
}

// Renderer renders the panel fragment from configuration text.
type Renderer struct {
	tmpl   *template.Template
	cfg    config.Consent
	tracer tracer.Tracer
}

// NewRenderer parses the embedded templates.
func NewRenderer(cfg config.Consent, opts ...Option) (*Renderer, error) {
	tmpl, err := template.ParseFS(templates, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}
	r := &Renderer{tmpl: tmpl, cfg: cfg, tracer: tracer.NewNoop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Features lists what the site will and will not do at category.
func (r *Renderer) Features(c models.Category) config.FeatureList {
	return r.cfg.Features(c)
}

// Render writes the panel fragment for m. A hidden state renders nothing.
func (r *Renderer) Render(ctx context.Context, w io.Writer, m Model) (err error) {
	if !m.State.Visible {
		return nil
	}
	_, span := r.tracer.Start(ctx, tracer.SpanPanelRender, tracer.String("panel.view", m.State.View()))
	defer func() { span.End(err) }()

	return r.tmpl.ExecuteTemplate(w, "panel", r.data(m))
}

// RenderString is Render into a string.
func (r *Renderer) RenderString(ctx context.Context, m Model) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(ctx, &buf, m); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *Renderer) data(m Model) viewData {
	returnTo := m.ReturnTo
	if returnTo == "" {
		returnTo = "/"
	}
	return viewData{
		Text:     r.cfg.Text,
		View:     m.State.View(),
		Options:  m.State.OptionsOpen,
		ReturnTo: returnTo,
		Categories: []category{
			{Name: models.CategoryStrict.String(), Checked: true, Disabled: true, Features: r.Features(models.CategoryStrict)},
			{Name: models.CategoryFunctional.String(), Checked: m.Flags.Functional, Features: r.Features(models.CategoryFunctional)},
			{Name: models.CategoryPerformance.String(), Checked: m.Flags.Performance, Features: r.Features(models.CategoryPerformance)},
			{Name: models.CategoryTargeting.String(), Checked: m.Flags.Targeting, Features: r.Features(models.CategoryTargeting)},
		},
		Actions: map[string]string{
			"accept":   ActionAcceptAll,
			"reject":   ActionRejectAll,
			"save":     ActionSave,
			"interact": ActionInteract,
			"panel":    PanelPath,
		},
		IdleWindow: int(r.cfg.Idle.Seconds()),
	}
}
