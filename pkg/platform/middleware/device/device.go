package device

import (
	"net/http"

	"github.com/mssola/useragent"

	"optin/pkg/requestcontext"
)

// BotDetection classifies the request's User-Agent and marks crawlers in the
// context. It must run after request.ClientMetadata.
//
// Crawlers never see the preference panel and never start idle tracking, so
// a search engine visit cannot record a decline for a human visitor's cookie.
func BotDetection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if raw := requestcontext.UserAgent(ctx); raw != "" {
			ua := useragent.New(raw)
			ctx = requestcontext.WithBot(ctx, ua.Bot())
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
