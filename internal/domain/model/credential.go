package model

import "time"

// Credential holds the OAuth2 token pair issued by the Xert token endpoint.
// The AuthManager owns the in-memory copy; the TokenStore port persists it
// so a restart can resume on the refresh token without a fresh login.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Valid reports whether the access token can still be presented upstream.
// A credential within margin of its expiry counts as expired so renewal
// happens before the token dies mid-request.
func (c Credential) Valid(margin time.Duration) bool {
	return c.AccessToken != "" && time.Now().Before(c.ExpiresAt.Add(-margin))
}
