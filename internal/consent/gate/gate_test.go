package gate

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"optin/internal/consent/metrics"
	"optin/internal/consent/models"
	"optin/internal/platform/config"
	"optin/internal/platform/tracer"
)

type GateSuite struct {
	suite.Suite
	gate    *Gate
	metrics *metrics.Metrics
	rec     *tracer.Recorder
}

func (s *GateSuite) SetupTest() {
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.rec = tracer.NewRecorder()
	s.gate = New(config.DefaultConsent().Text, "/consent/panel?view=options",
		WithMetrics(s.metrics),
		WithTracer(s.rec),
	)
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func decision(mask string) models.Decision {
	return models.DecisionFrom(mask, true)
}

func (s *GateSuite) parse(page string) *html.Node {
	doc, err := html.Parse(strings.NewReader(page))
	s.Require().NoError(err)
	return doc
}

func (s *GateSuite) render(doc *html.Node) string {
	var buf bytes.Buffer
	s.Require().NoError(html.Render(&buf, doc))
	return buf.String()
}

// find returns the first element with the given id.
func find(n *html.Node, id string) *html.Node {
	if v, ok := getAttr(n, "id"); ok && v == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := find(c, id); f != nil {
			return f
		}
	}
	return nil
}

func placeholders(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if _, ok := getAttr(n, AttrPlaceholder); ok && n.Type == html.ElementNode {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

const videoPage = `<html><body>
<iframe id="video" data-consent="targeting" data-src="https://video.example/embed/1"></iframe>
</body></html>`

// =============================================================================
// Iframe Tests
// =============================================================================

// TestIframe_TargetingDenied verifies "1110" hides a targeting iframe and adds a placeholder.
func (s *GateSuite) TestIframe_TargetingDenied() {
	doc := s.parse(videoPage)

	report := s.gate.Apply(doc, decision("1110"))

	frame := find(doc, "video")
	_, hasSrc := getAttr(frame, "src")
	s.False(hasSrc)
	style, _ := getAttr(frame, "style")
	s.Contains(style, "display:none")

	next := frame.NextSibling
	s.Require().NotNil(next)
	s.Equal("div", next.Data)
	s.True(hasClass(next, ClassBlocked))
	s.Equal(1, report.Blocked[models.CategoryTargeting])
	s.Zero(report.Activated[models.CategoryTargeting])

	out := s.render(doc)
	s.Contains(out, `<a class="consent-open" href="/consent/panel?view=options">`)
	s.Contains(out, "enable advertising cookies")
}

// TestIframe_TargetingAllowed verifies "1111" promotes data-src and adds nothing.
func (s *GateSuite) TestIframe_TargetingAllowed() {
	doc := s.parse(videoPage)

	report := s.gate.Apply(doc, decision("1111"))

	frame := find(doc, "video")
	src, ok := getAttr(frame, "src")
	s.True(ok)
	s.Equal("https://video.example/embed/1", src)
	_, hidden := getAttr(frame, "style")
	s.False(hidden)
	s.Empty(placeholders(doc))
	s.Equal(1, report.Activated[models.CategoryTargeting])
}

func (s *GateSuite) TestIframe_ExistingStyleKept() {
	doc := s.parse(`<body><iframe id="f" style="width:100%" data-consent="functional" data-src="/chat"></iframe></body>`)

	s.gate.Apply(doc, decision("1000"))

	style, _ := getAttr(find(doc, "f"), "style")
	s.Equal("width:100%;display:none", style)
	s.Contains(s.render(doc), "enable functional cookies")
}

func (s *GateSuite) TestUnrecordedBlocksEverything() {
	doc := s.parse(`<body>
<iframe data-consent="functional" data-src="/a"></iframe>
<iframe data-consent="performance" data-src="/b"></iframe>
<iframe data-consent="targeting" data-src="/c"></iframe>
</body>`)

	report := s.gate.Apply(doc, models.DecisionFrom(models.MaskDeclined, true))

	s.Zero(report.Activated[models.CategoryFunctional])
	s.Equal(3, report.Total())
	s.Len(placeholders(doc), 3)
}

// =============================================================================
// Script Tests
// =============================================================================

func (s *GateSuite) TestScript_Denied() {
	doc := s.parse(`<body><div id="widgets"><script id="chat" data-consent="functional" data-src="/chat.js"></script></div></body>`)

	s.gate.Apply(doc, decision("1000"))

	script := find(doc, "chat")
	_, hasSrc := getAttr(script, "src")
	s.False(hasSrc)
	_, styled := getAttr(script, "style")
	s.False(styled, "scripts are not hidden")

	ph := placeholders(doc)
	s.Require().Len(ph, 1)
	s.Same(ph[0], script.NextSibling)
	s.Contains(s.render(doc), "To use every feature of this page")
}

func (s *GateSuite) TestScript_ShareParentUsesShareText() {
	doc := s.parse(`<body><div class="entry entry_share"><script data-consent="targeting" data-src="/share.js"></script></div></body>`)

	s.gate.Apply(doc, decision("1100"))

	out := s.render(doc)
	s.Contains(out, "To share this page")
	s.NotContains(out, "To use every feature")
}

func (s *GateSuite) TestScript_Allowed() {
	doc := s.parse(`<body><script id="ga" data-consent="performance" data-src="/ga.js"></script></body>`)

	report := s.gate.Apply(doc, decision("1010"))

	src, _ := getAttr(find(doc, "ga"), "src")
	s.Equal("/ga.js", src)
	s.Equal(1, report.Activated[models.CategoryPerformance])
}

func (s *GateSuite) TestScript_InHeadGetsNoPlaceholder() {
	doc := s.parse(`<html><head><script id="pixel" data-consent="targeting" data-src="/px.js"></script></head><body></body></html>`)

	report := s.gate.Apply(doc, decision("1000"))

	s.Equal(1, report.Blocked[models.CategoryTargeting])
	s.Empty(placeholders(doc))
}

// =============================================================================
// Contract Edge Cases
// =============================================================================

func (s *GateSuite) TestUngatedElementsUntouched() {
	page := `<body>
<iframe id="plain" src="/map"></iframe>
<iframe id="empty" data-consent="" data-src="/x"></iframe>
<iframe id="strict" data-consent="strict" data-src="/y"></iframe>
<script id="vendor" data-consent="vendor" data-src="/z.js"></script>
</body>`
	doc := s.parse(page)

	report := s.gate.Apply(doc, decision("1000"))

	s.Zero(report.Total())
	s.Empty(placeholders(doc))
	src, _ := getAttr(find(doc, "plain"), "src")
	s.Equal("/map", src)
	_, ok := getAttr(find(doc, "vendor"), "src")
	s.False(ok)
}

func (s *GateSuite) TestCategoryIsCaseInsensitive() {
	doc := s.parse(`<body><iframe id="f" data-consent=" Functional " data-src="/chat"></iframe></body>`)

	report := s.gate.Apply(doc, decision("1100"))

	s.Equal(1, report.Activated[models.CategoryFunctional])
}

func (s *GateSuite) TestDeniedStripsLiveSrc() {
	doc := s.parse(`<body><iframe id="f" data-consent="targeting" src="/live" data-src="/live"></iframe></body>`)

	s.gate.Apply(doc, decision("1000"))

	_, ok := getAttr(find(doc, "f"), "src")
	s.False(ok)
}

// TestApply_Idempotent verifies a second pass inserts no second placeholder.
func (s *GateSuite) TestApply_Idempotent() {
	doc := s.parse(videoPage)

	s.gate.Apply(doc, decision("1000"))
	first := s.render(doc)
	s.gate.Apply(doc, decision("1000"))

	s.Equal(first, s.render(doc))
	s.Len(placeholders(doc), 1)
	style, _ := getAttr(find(doc, "video"), "style")
	s.Equal("display:none", style)
}

// =============================================================================
// Rewrite Tests
// =============================================================================

func (s *GateSuite) TestRewrite() {
	var out bytes.Buffer
	panel, err := Fragment(`<div id="optin-panel">panel</div>`)
	s.Require().NoError(err)

	report, err := s.gate.Rewrite(context.Background(), strings.NewReader(videoPage), &out, decision("1110"), panel...)
	s.Require().NoError(err)

	s.Equal(1, report.Blocked[models.CategoryTargeting])
	s.Contains(out.String(), `<div id="optin-panel">panel</div></body>`)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.EmbedsGated.WithLabelValues("targeting", "blocked")))

	spans := s.rec.Named(tracer.SpanGateRewrite)
	s.Require().Len(spans, 1)
	s.Equal(int64(1), spans[0].Attrs[tracer.AttrBlocked])
	s.Equal(true, spans[0].Attrs[tracer.AttrPanel])
}

func TestFragment(t *testing.T) {
	nodes, err := Fragment(`<section id="a"></section><p>b</p>`)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, atom.Section, nodes[0].DataAtom)
	assert.Nil(t, nodes[0].Parent, "fragment nodes are detached")
}

func TestScriptTag(t *testing.T) {
	assert.Equal(t, `<script src="/js/chat.js" type="text/javascript"></script>`, ScriptTag("/js/chat.js"))
	assert.Equal(t, `<script src="/a.js?x=1&amp;y=&#34;2&#34;" type="text/javascript"></script>`, ScriptTag(`/a.js?x=1&y="2"`))
}

func TestNew_DefaultPanelURL(t *testing.T) {
	g := New(config.PanelText{}, "")
	doc, err := html.Parse(strings.NewReader(videoPage))
	require.NoError(t, err)

	g.Apply(doc, models.Decision{})

	var buf bytes.Buffer
	require.NoError(t, html.Render(&buf, doc))
	assert.Contains(t, buf.String(), `href="/consent/panel?view=options"`)
}
