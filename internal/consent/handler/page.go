package handler

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"optin/internal/consent/gate"
	"optin/internal/consent/panel"
	"optin/internal/consent/store"
	"optin/pkg/platform/validation"
	"optin/pkg/requestcontext"
)

// PageMiddleware gates the embeds of every HTML page served by next and
// appends the preference panel while no decision is stored.
//
// Responses that are not 200 text/html, and pages larger than
// validation.MaxPageSize, are streamed through unchanged; staged embeds stay
// inert without a src.
//
// On each page it first settles a lapsed idle window: the declined sentinel
// is written and the panel is not shown again. Crawlers get gated markup
// but neither the panel nor idle tracking.
func (h *Handler) PageMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		bw := &bufferedWriter{w: w, status: http.StatusOK, limit: validation.MaxPageSize}
		next.ServeHTTP(bw, r)

		if bw.streaming {
			return
		}
		if bw.status != http.StatusOK || !bw.isHTML() {
			bw.flush()
			return
		}
		h.serveGated(w, r, bw)
	})
}

func (h *Handler) serveGated(w http.ResponseWriter, r *http.Request, bw *bufferedWriter) {
	ctx := r.Context()
	cookies := h.cookies(w, r)
	bot := requestcontext.IsBot(ctx)

	if !bot && h.tracker.Due(ctx, cookies) {
		h.consent.RecordIdleDecline(ctx, cookies)
		h.tracker.Stop(cookies)
	}

	decision := h.consent.Decide(ctx, cookies)
	state := panel.InitialState(h.consent.HasCookie(cookies))

	var inject []*html.Node
	if state.Visible && !bot {
		inject = h.panelNodes(ctx, r, state, cookies)
		if len(inject) > 0 {
			h.tracker.Begin(ctx, cookies)
			h.incrementPanelsShown()
		}
	}

	var out bytes.Buffer
	if _, err := h.gate.Rewrite(ctx, bytes.NewReader(bw.buf.Bytes()), &out, decision, inject...); err != nil {
		h.logger.ErrorContext(ctx, "failed to gate page, serving it unchanged",
			"request_id", requestcontext.RequestID(ctx),
			"path", r.URL.Path,
			"error", err,
		)
		bw.flush()
		return
	}

	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	w.Header().Del("Content-Length")
	w.Header().Add("Vary", "Cookie")
	w.WriteHeader(bw.status)
	_, _ = w.Write(out.Bytes())
}

func (h *Handler) panelNodes(ctx context.Context, r *http.Request, state panel.State, cookies *store.CookieStore) []*html.Node {
	markup, err := h.renderer.RenderString(ctx, panel.Model{
		State:    state,
		Flags:    h.consent.Flags(cookies),
		ReturnTo: r.URL.RequestURI(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to render consent panel",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil
	}
	nodes, err := gate.Fragment(markup)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to parse consent panel",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil
	}
	return nodes
}

// bufferedWriter holds the page body until it has been gated. Headers go
// straight to the underlying writer so cookie writes made while gating land
// in the same response. Once the body is known not to be gated it streams.
type bufferedWriter struct {
	w           http.ResponseWriter
	status      int
	limit       int
	wroteHeader bool
	streaming   bool
	buf         bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header {
	return b.w.Header()
}

func (b *bufferedWriter) WriteHeader(code int) {
	if b.wroteHeader {
		return
	}
	b.wroteHeader = true
	b.status = code
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.wroteHeader = true
	if !b.streaming && (b.status != http.StatusOK || b.declaredNotHTML() || b.buf.Len()+len(p) > b.limit) {
		b.flush()
		b.streaming = true
	}
	if b.streaming {
		return b.w.Write(p)
	}
	return b.buf.Write(p)
}

// declaredNotHTML is true when the handler set a non-HTML content type.
// Without one the body is sniffed once buffered.
func (b *bufferedWriter) declaredNotHTML() bool {
	ct := b.w.Header().Get("Content-Type")
	return ct != "" && !isHTMLType(ct)
}

func (b *bufferedWriter) isHTML() bool {
	ct := b.w.Header().Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(b.buf.Bytes())
	}
	return isHTMLType(ct)
}

func isHTMLType(ct string) bool {
	return strings.HasPrefix(strings.ToLower(ct), "text/html")
}

func (b *bufferedWriter) flush() {
	b.w.WriteHeader(b.status)
	_, _ = b.w.Write(b.buf.Bytes())
	b.buf.Reset()
}
