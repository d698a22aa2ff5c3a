package panel

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optin/internal/consent/models"
	"optin/internal/platform/config"
	"optin/internal/platform/tracer"
)

func TestInitialState(t *testing.T) {
	assert.Equal(t, State{Visible: true}, InitialState(false), "no cookie shows the banner")
	assert.Equal(t, State{}, InitialState(true), "any cookie, the declined sentinel included, hides it")
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		name string
		from State
		op   func(State) State
		want State
	}{
		{"show opens options", State{}, State.Show, State{Visible: true, OptionsOpen: true}},
		{"hide collapses", State{Visible: true, OptionsOpen: true}, State.Hide, State{}},
		{"toggle hidden", State{}, State.Toggle, State{Visible: true}},
		{"toggle visible", State{Visible: true, OptionsOpen: true}, State.Toggle, State{}},
		{"options from banner", State{Visible: true}, State.ToggleOptions, State{Visible: true, OptionsOpen: true}},
		{"options from hidden", State{}, State.ToggleOptions, State{Visible: true, OptionsOpen: true}},
		{"options back to banner", State{Visible: true, OptionsOpen: true}, State.ToggleOptions, State{Visible: true}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.op(tc.from))
		})
	}
}

func TestStateForView(t *testing.T) {
	assert.Equal(t, ViewOptions, StateForView("options").View())
	assert.Equal(t, ViewBanner, StateForView("banner").View())
	assert.Equal(t, ViewBanner, StateForView("unknown").View())
	assert.True(t, StateForView("").Visible)
}

func newRenderer(t *testing.T, mutate func(*config.Consent), opts ...Option) *Renderer {
	t.Helper()
	cfg := config.DefaultConsent()
	if mutate != nil {
		mutate(&cfg)
	}
	r, err := NewRenderer(cfg, opts...)
	require.NoError(t, err)
	return r
}

func TestRender_Banner(t *testing.T) {
	r := newRenderer(t, nil)

	out, err := r.RenderString(context.Background(), Model{State: InitialState(false), ReturnTo: "/shop"})
	require.NoError(t, err)

	assert.Contains(t, out, `data-view="banner"`)
	assert.Contains(t, out, `action="/consent/accept-all"`)
	assert.Contains(t, out, `action="/consent/reject-all"`)
	assert.Contains(t, out, `name="return_to" value="/shop"`)
	assert.Contains(t, out, "Find out more about cookies")
	assert.NotContains(t, out, `id="optin-options"`, "banner has no category form")
	assert.NotContains(t, out, "data-idle")
	assert.NotContains(t, out, "optin-interact", "nothing to cancel without an idle window")
}

func TestRender_Options(t *testing.T) {
	rec := tracer.NewRecorder()
	r := newRenderer(t, func(c *config.Consent) { c.Idle = 30 * time.Second }, WithTracer(rec))

	out, err := r.RenderString(context.Background(), Model{
		State: State{}.Show(),
		Flags: models.Decode("1101"),
	})
	require.NoError(t, err)

	assert.Contains(t, out, `data-view="options"`)
	assert.Contains(t, out, `data-idle="30"`)
	assert.Contains(t, out, `<form id="optin-interact" class="optin-interact" method="post" action="/consent/interact">`)
	assert.Contains(t, out, `p.addEventListener("pointerenter"`, "hovering the panel cancels the idle decline")
	assert.Contains(t, out, `name="return_to" value="/"`, "missing return_to falls back to the root")
	assert.Contains(t, out, `id="optin-strict" name="strict" value="1" checked disabled`)
	assert.Contains(t, out, `id="optin-functional" name="functional" value="1" checked>`)
	assert.Contains(t, out, `id="optin-performance" name="performance" value="1">`)
	assert.Contains(t, out, `id="optin-targeting" name="targeting" value="1" checked>`)
	assert.Contains(t, out, "<li>Offer live chat support</li>")

	performance := out[strings.Index(out, `data-category="performance"`):strings.Index(out, `data-category="targeting"`)]
	assert.NotContains(t, performance, "This website will:", "no list configured for performance")

	require.Len(t, rec.Named(tracer.SpanPanelRender), 1)
}

func TestRender_EscapesConfiguredText(t *testing.T) {
	r := newRenderer(t, func(c *config.Consent) { c.Text.Message = `<script>alert(1)</script>` })

	out, err := r.RenderString(context.Background(), Model{State: State{Visible: true}, ReturnTo: `/"><x`})
	require.NoError(t, err)

	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.NotContains(t, out, `"><x`)
}

func TestRender_HiddenRendersNothing(t *testing.T) {
	r := newRenderer(t, nil)

	out, err := r.RenderString(context.Background(), Model{State: InitialState(true)})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFeatures(t *testing.T) {
	r := newRenderer(t, nil)

	assert.Len(t, r.Features(models.CategoryTargeting).Will, 6)
	assert.Empty(t, r.Features(models.CategoryTargeting).WillNot)
	assert.Empty(t, r.Features(models.CategoryPerformance).Will)
}
