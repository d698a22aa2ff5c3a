package models

// CookieSpec describes a single cookie write.
type CookieSpec struct {
	Name  string
	Value string
	// ExpiresInDays of zero writes a session cookie.
	ExpiresInDays int
	Secure        bool
}
