package store

import (
	"context"
	"net/http"
	"time"

	"optin/internal/consent/models"
	"optin/pkg/platform/middleware/requesttime"
)

// Error Contract:
// The store never returns errors. Get reports absence with false, Set reports
// whether the write is immediately readable, Remove reports whether any
// removal was attempted. A jar that silently drops writes (cookies disabled)
// surfaces only as a failed Set verification.

// Jar is the cookie header visible to one page: it renders the current
// name=value pairs and accepts writes.
type Jar interface {
	Header() string
	SetCookie(c *http.Cookie)
}

// epoch is the expiry used to remove a cookie: Thu, 01 Jan 1970 00:00:01 GMT.
var epoch = time.Unix(1, 0).UTC()

// Option configures a CookieStore.
type Option func(*CookieStore)

// WithPath scopes writes and removals to a path. Unset by default.
func WithPath(path string) Option {
	return func(s *CookieStore) {
		s.path = path
	}
}

// WithDomain scopes writes and removals to a domain. Unset by default.
func WithDomain(domain string) Option {
	return func(s *CookieStore) {
		s.domain = domain
	}
}

// CookieStore reads and writes cookies by name over a Jar.
type CookieStore struct {
	jar    Jar
	path   string
	domain string
}

// New constructs a CookieStore over jar.
func New(jar Jar, opts ...Option) *CookieStore {
	s := &CookieStore{jar: jar}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the unescaped value stored under name.
func (s *CookieStore) Get(name string) (string, bool) {
	return LocateCookie(s.jar.Header(), name)
}

// Set writes spec with an absolute expiry of now + ExpiresInDays days
// (a session cookie when zero) and reports whether the value reads back.
func (s *CookieStore) Set(ctx context.Context, spec models.CookieSpec) bool {
	if spec.Name == "" {
		return false
	}
	c := &http.Cookie{
		Name:   spec.Name,
		Value:  escapeValue(spec.Value),
		Path:   s.path,
		Domain: s.domain,
		Secure: spec.Secure,
	}
	if spec.ExpiresInDays != 0 {
		c.Expires = requesttime.Now(ctx).Add(time.Duration(spec.ExpiresInDays) * 24 * time.Hour)
	}
	s.jar.SetCookie(c)

	got, ok := s.Get(spec.Name)
	return ok && got == spec.Value
}

// Remove expires every named cookie. It returns false when no name was
// given, blank names included.
func (s *CookieStore) Remove(names ...string) bool {
	attempted := false
	for _, name := range names {
		if name == "" {
			continue
		}
		s.jar.SetCookie(&http.Cookie{
			Name:    name,
			Value:   "",
			Path:    s.path,
			Domain:  s.domain,
			Expires: epoch,
		})
		attempted = true
	}
	return attempted
}

// isExpired reports whether a write removes the cookie rather than storing it.
func isExpired(c *http.Cookie, now time.Time) bool {
	if c.MaxAge < 0 {
		return true
	}
	return !c.Expires.IsZero() && !c.Expires.After(now)
}
