package store

import (
	"net/http"
	"sync"
	"time"
)

// InMemoryJar keeps cookies in process for embedded hosts and tests.
// It is safe for concurrent use; the idle timer writes from its own goroutine.
type InMemoryJar struct {
	mu       sync.RWMutex
	order    []string
	cookies  map[string]memoryCookie
	now      func() time.Time
	disabled bool
}

type memoryCookie struct {
	value   string
	expires time.Time
	secure  bool
}

// InMemoryOption configures an InMemoryJar.
type InMemoryOption func(*InMemoryJar)

// WithClock overrides the clock used to expire cookies.
func WithClock(now func() time.Time) InMemoryOption {
	return func(j *InMemoryJar) {
		j.now = now
	}
}

// WithCookiesDisabled makes the jar drop every write, like a browser with
// cookies turned off.
func WithCookiesDisabled() InMemoryOption {
	return func(j *InMemoryJar) {
		j.disabled = true
	}
}

// NewInMemoryJar constructs an empty jar.
func NewInMemoryJar(opts ...InMemoryOption) *InMemoryJar {
	j := &InMemoryJar{
		cookies: make(map[string]memoryCookie),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Header renders the unexpired cookies in insertion order.
func (j *InMemoryJar) Header() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	now := j.now()
	pairs := make([][2]string, 0, len(j.order))
	for _, name := range j.order {
		c := j.cookies[name]
		if !c.expires.IsZero() && !c.expires.After(now) {
			continue
		}
		pairs = append(pairs, [2]string{name, c.value})
	}
	return renderHeader(pairs)
}

// SetCookie stores or expires c.
func (j *InMemoryJar) SetCookie(c *http.Cookie) {
	if j.disabled || c.String() == "" {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if isExpired(c, j.now()) {
		j.remove(c.Name)
		return
	}
	if _, exists := j.cookies[c.Name]; !exists {
		j.order = append(j.order, c.Name)
	}
	j.cookies[c.Name] = memoryCookie{value: c.Value, expires: c.Expires, secure: c.Secure}
}

// Expiry returns the absolute expiry recorded for name. A zero time with
// true means a session cookie.
func (j *InMemoryJar) Expiry(name string) (time.Time, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	c, ok := j.cookies[name]
	return c.expires, ok
}

// Secure reports whether name was written with the secure attribute.
func (j *InMemoryJar) Secure(name string) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.cookies[name].secure
}

func (j *InMemoryJar) remove(name string) {
	if _, ok := j.cookies[name]; !ok {
		return
	}
	delete(j.cookies, name)
	for i, n := range j.order {
		if n == name {
			j.order = append(j.order[:i], j.order[i+1:]...)
			return
		}
	}
}
