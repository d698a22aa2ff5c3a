package store

import (
	"net/url"
	"strings"
)

// LocateCookie finds name among the semicolon-delimited pairs of a cookie
// header. The match is on the exact name, so "XOPTIN" never satisfies a
// lookup for "OPTIN", and the pair may sit anywhere in the header.
func LocateCookie(header, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	for part := range strings.SplitSeq(header, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || k != name {
			continue
		}
		return unescapeValue(v), true
	}
	return "", false
}

// renderHeader joins pairs the way a browser exposes them to a page.
func renderHeader(pairs [][2]string) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(p[0])
		b.WriteByte('=')
		b.WriteString(p[1])
	}
	return b.String()
}

func escapeValue(v string) string {
	return url.PathEscape(v)
}

// unescapeValue tolerates malformed escapes by returning the raw value.
func unescapeValue(v string) string {
	out, err := url.PathUnescape(v)
	if err != nil {
		return v
	}
	return out
}
