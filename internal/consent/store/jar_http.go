package store

import (
	"net/http"
	"sync"
	"time"
)

// HTTPJar is the Jar of a single HTTP exchange. It starts from the request's
// Cookie header; writes are emitted as Set-Cookie on the response and folded
// into the local view, so a value written during the request reads back
// before the browser ever sees it.
//
// Set-Cookie headers only reach the client if SetCookie runs before the
// response header is written.
type HTTPJar struct {
	mu    sync.Mutex
	w     http.ResponseWriter
	pairs [][2]string
	now   func() time.Time
}

// NewHTTPJar binds a jar to one request/response pair.
func NewHTTPJar(w http.ResponseWriter, r *http.Request) *HTTPJar {
	j := &HTTPJar{w: w, now: time.Now}
	for _, c := range r.Cookies() {
		j.upsert(c.Name, c.Value)
	}
	return j
}

// Header renders the cookies visible to the current request.
func (j *HTTPJar) Header() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return renderHeader(j.pairs)
}

// SetCookie emits c on the response and updates the local view. Cookies the
// standard library refuses to serialise (invalid names) are dropped.
func (j *HTTPJar) SetCookie(c *http.Cookie) {
	line := c.String()
	if line == "" {
		return
	}
	j.w.Header().Add("Set-Cookie", line)

	j.mu.Lock()
	defer j.mu.Unlock()
	if isExpired(c, j.now()) {
		j.delete(c.Name)
		return
	}
	j.upsert(c.Name, c.Value)
}

func (j *HTTPJar) upsert(name, value string) {
	for i := range j.pairs {
		if j.pairs[i][0] == name {
			j.pairs[i][1] = value
			return
		}
	}
	j.pairs = append(j.pairs, [2]string{name, value})
}

func (j *HTTPJar) delete(name string) {
	for i := range j.pairs {
		if j.pairs[i][0] == name {
			j.pairs = append(j.pairs[:i], j.pairs[i+1:]...)
			return
		}
	}
}
