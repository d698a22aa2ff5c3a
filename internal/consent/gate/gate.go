// Package gate activates or blocks third-party embeds in an HTML document
// according to the visitor's consent.
//
// A gated embed is an <iframe> or <script> carrying data-consent with a
// gateable category and its real source staged in data-src:
//
//	<iframe data-consent="targeting" data-src="https://video.example/embed/1"></iframe>
//
// Allowed embeds get src from data-src. Blocked embeds keep no src, iframes
// are hidden, and a placeholder with a control that opens the preference
// panel is inserted right after the element. Elements without data-consent,
// or with a value that is not a gateable category, are left as they are.
package gate

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"optin/internal/consent/metrics"
	"optin/internal/consent/models"
	"optin/internal/platform/config"
	"optin/internal/platform/tracer"
	"optin/pkg/requestcontext"
)

// Attribute and class names of the markup contract.
const (
	AttrConsent     = "data-consent"
	AttrStagedSrc   = "data-src"
	AttrPlaceholder = "data-consent-placeholder"
	ClassBlocked    = "blocked_content"
	ClassOpenPanel  = "consent-open"
	ClassShare      = "entry_share"

	hiddenStyle = "display:none"
)

// Report counts the gated embeds of one document by category.
type Report struct {
	Activated map[models.Category]int
	Blocked   map[models.Category]int
}

func newReport() Report {
	return Report{
		Activated: map[models.Category]int{},
		Blocked:   map[models.Category]int{},
	}
}

// Total returns how many gated embeds were seen.
func (r Report) Total() int {
	return sum(r.Activated) + sum(r.Blocked)
}

type Option func(*Gate)

// WithMetrics records per-category results and rewrite latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// WithTracer wraps Rewrite in a span.
func WithTracer(t tracer.Tracer) Option {
	return func(g *Gate) {
		g.tracer = t
	}
}

// WithLogger sets the logger used for parse failures.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// Gate rewrites documents. It holds no per-request state and is safe for
// concurrent use.
type Gate struct {
	text     config.PanelText
	panelURL string
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
	logger   *slog.Logger
}

// New builds a Gate whose placeholders use text and link to panelURL.
func New(text config.PanelText, panelURL string, opts ...Option) *Gate {
	g := &Gate{
		text:     text,
		panelURL: panelURL,
		tracer:   tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.panelURL == "" {
		g.panelURL = config.DefaultPanelURL
	}
	return g
}

// Apply gates every embed under doc for d. Applying twice with the same
// decision leaves the document unchanged.
func (g *Gate) Apply(doc *html.Node, d models.Decision) Report {
	report := newReport()
	for _, n := range gatedElements(doc) {
		category, ok := gatedCategory(n)
		if !ok {
			continue
		}
		if d.Allows(category) {
			activate(n)
			report.Activated[category]++
			continue
		}
		g.block(n, category)
		report.Blocked[category]++
	}
	return report
}

// Rewrite parses r, gates it for d, appends inject to <body> and renders the
// result to w.
func (g *Gate) Rewrite(ctx context.Context, r io.Reader, w io.Writer, d models.Decision, inject ...*html.Node) (report Report, err error) {
	start := time.Now()
	_, span := g.tracer.Start(ctx, tracer.SpanGateRewrite,
		tracer.Bool(tracer.AttrRecorded, d.Recorded),
		tracer.Bool(tracer.AttrPanel, len(inject) > 0),
	)
	defer func() { span.End(err) }()

	doc, err := html.Parse(r)
	if err != nil {
		if g.logger != nil {
			g.logger.ErrorContext(ctx, "failed to parse page for gating",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return Report{}, err
	}

	report = g.Apply(doc, d)
	if body := findBody(doc); body != nil {
		for _, n := range inject {
			body.AppendChild(n)
		}
	}
	if err = html.Render(w, doc); err != nil {
		return report, err
	}

	span.SetAttributes(
		tracer.Int(tracer.AttrActivated, sum(report.Activated)),
		tracer.Int(tracer.AttrBlocked, sum(report.Blocked)),
	)
	g.observe(report, time.Since(start))
	return report, nil
}

// ScriptTag renders an active <script> for src, the element a host appends
// to <head> once consent for it has been checked.
func ScriptTag(src string) string {
	var b strings.Builder
	_ = html.Render(&b, element(atom.Script,
		html.Attribute{Key: "src", Val: src},
		html.Attribute{Key: "type", Val: "text/javascript"},
	))
	return b.String()
}

// Fragment parses markup meant to be appended to <body>.
func Fragment(markup string) ([]*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	return html.ParseFragment(strings.NewReader(markup), body)
}

func (g *Gate) observe(report Report, elapsed time.Duration) {
	if g.metrics == nil {
		return
	}
	for c, n := range report.Activated {
		g.metrics.AddEmbedsGated(c.String(), "activated", n)
	}
	for c, n := range report.Blocked {
		g.metrics.AddEmbedsGated(c.String(), "blocked", n)
	}
	g.metrics.ObserveGateRewriteLatency(elapsed.Seconds())
}

func activate(n *html.Node) {
	if staged, ok := getAttr(n, AttrStagedSrc); ok && staged != "" {
		setAttr(n, "src", staged)
	}
}

func (g *Gate) block(n *html.Node, category models.Category) {
	removeAttr(n, "src")

	var message string
	if n.DataAtom == atom.Iframe {
		hide(n)
		message = g.iframeMessage(category)
	} else {
		message = g.text.BlockedFeature
		if n.Parent != nil && hasClass(n.Parent, ClassShare) {
			message = g.text.BlockedShare
		}
	}

	// A placeholder inside <head> would be moved by the browser; the
	// withheld src is enough there.
	if n.Parent == nil || n.Parent.DataAtom == atom.Head || hasPlaceholder(n) {
		return
	}
	insertAfter(n, g.placeholder(category, message))
}

func (g *Gate) iframeMessage(category models.Category) string {
	switch category {
	case models.CategoryFunctional:
		return g.text.BlockedFunctional
	case models.CategoryTargeting:
		return g.text.BlockedTargeting
	default:
		return g.text.BlockedFeature
	}
}

// placeholder builds
//
//	<div class="blocked_content" data-consent-placeholder="{category}">
//	  <div><h2>{heading}</h2><p>{message} <a class="consent-open" href="{panelURL}">{control}</a></p></div>
//	</div>
func (g *Gate) placeholder(category models.Category, message string) *html.Node {
	link := element(atom.A, html.Attribute{Key: "class", Val: ClassOpenPanel}, html.Attribute{Key: "href", Val: g.panelURL})
	link.AppendChild(text(g.text.BlockedControl))

	p := element(atom.P)
	p.AppendChild(text(message + " "))
	p.AppendChild(link)

	h := element(atom.H2)
	h.AppendChild(text(g.text.BlockedHeading))

	inner := element(atom.Div)
	inner.AppendChild(h)
	inner.AppendChild(p)

	outer := element(atom.Div,
		html.Attribute{Key: "class", Val: ClassBlocked},
		html.Attribute{Key: AttrPlaceholder, Val: category.String()},
	)
	outer.AppendChild(inner)
	return outer
}

// gatedElements collects candidates before any mutation so inserted
// placeholders are never walked.
func gatedElements(doc *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Iframe || n.DataAtom == atom.Script) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func gatedCategory(n *html.Node) (models.Category, bool) {
	raw, ok := getAttr(n, AttrConsent)
	if !ok {
		return "", false
	}
	c := models.Category(strings.ToLower(strings.TrimSpace(raw)))
	return c, c.IsGateable()
}

func hide(n *html.Node) {
	style, _ := getAttr(n, "style")
	if strings.Contains(strings.ReplaceAll(style, " ", ""), hiddenStyle) {
		return
	}
	style = strings.TrimSpace(style)
	if style != "" && !strings.HasSuffix(style, ";") {
		style += ";"
	}
	setAttr(n, "style", style+hiddenStyle)
}

// hasPlaceholder reports whether the next element sibling is a placeholder
// from an earlier pass.
func hasPlaceholder(n *html.Node) bool {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		switch s.Type {
		case html.TextNode:
			if strings.TrimSpace(s.Data) == "" {
				continue
			}
			return false
		case html.ElementNode:
			_, ok := getAttr(s, AttrPlaceholder)
			return ok
		default:
			return false
		}
	}
	return false
}

func insertAfter(n, sibling *html.Node) {
	n.Parent.InsertBefore(sibling, n.NextSibling)
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func hasClass(n *html.Node, class string) bool {
	v, _ := getAttr(n, "class")
	return slices.Contains(strings.Fields(v), class)
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	n.Attr = slices.DeleteFunc(n.Attr, func(a html.Attribute) bool {
		return a.Namespace == "" && a.Key == key
	})
}

func sum(m map[models.Category]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}
