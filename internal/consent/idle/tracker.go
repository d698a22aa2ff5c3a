package idle

import (
	"context"
	"strconv"
	"time"

	"optin/internal/consent/models"
	"optin/pkg/platform/middleware/requesttime"
)

// Cookies is the cookie access Tracker needs.
type Cookies interface {
	Get(name string) (string, bool)
	Set(ctx context.Context, spec models.CookieSpec) bool
	Remove(names ...string) bool
}

// Tracker measures the idle window across requests with a session cookie
// holding the unix time the panel was first shown.
type Tracker struct {
	name   string
	window time.Duration
}

// NewTracker tracks window in the session cookie name.
func NewTracker(name string, window time.Duration) *Tracker {
	return &Tracker{name: name, window: window}
}

// Enabled reports whether an idle window is configured.
func (t *Tracker) Enabled() bool {
	return t.window > 0
}

// CookieName is the tracking cookie.
func (t *Tracker) CookieName() string {
	return t.name
}

// Begin stamps the first display unless tracking already started.
func (t *Tracker) Begin(ctx context.Context, cookies Cookies) bool {
	if !t.Enabled() {
		return false
	}
	if _, ok := t.started(cookies); ok {
		return false
	}
	return cookies.Set(ctx, models.CookieSpec{
		Name:  t.name,
		Value: strconv.FormatInt(requesttime.Now(ctx).Unix(), 10),
	})
}

// Due reports whether the window has elapsed since the panel was first shown.
func (t *Tracker) Due(ctx context.Context, cookies Cookies) bool {
	if !t.Enabled() {
		return false
	}
	since, ok := t.started(cookies)
	if !ok {
		return false
	}
	return !requesttime.Now(ctx).Before(since.Add(t.window))
}

// Stop removes the tracking cookie; any interaction with the panel calls it.
func (t *Tracker) Stop(cookies Cookies) bool {
	if _, ok := cookies.Get(t.name); !ok {
		return false
	}
	return cookies.Remove(t.name)
}

func (t *Tracker) started(cookies Cookies) (time.Time, bool) {
	raw, ok := cookies.Get(t.name)
	if !ok {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}
